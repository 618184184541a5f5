package observer

import (
	"context"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailtask/internal/host"
	"github.com/nhle/mailtask/internal/logging"
)

// InjectedMsg is a tea.Msg sent after each injection pass that added at
// least one trigger.
type InjectedMsg struct {
	Added    int
	Triggers []Trigger
}

// Observer re-runs the injector whenever the page reports structural
// changes. Bursts of changes are coalesced by a debouncer.
type Observer struct {
	page     host.Page
	injector *Injector
	delay    time.Duration
	logger   *slog.Logger
	resultCh chan InjectedMsg
}

// New creates an observer for page with the given debounce delay.
func New(page host.Page, delay time.Duration, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Observer{
		page:     page,
		injector: NewInjector(),
		delay:    delay,
		logger:   logger,
		resultCh: make(chan InjectedMsg, 16),
	}
}

// Run injects once, then after every debounced batch of mutations, until
// ctx is cancelled.
func (o *Observer) Run(ctx context.Context) {
	changes, cancel := o.page.Subscribe()
	defer cancel()

	d := NewDebouncer(o.delay, o.Pass)
	defer d.Stop()

	o.Pass()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			d.Trigger()
		}
	}
}

// Pass runs one injection pass. Injected nodes are not published as a
// mutation, otherwise every pass would schedule another.
func (o *Observer) Pass() {
	var added int
	var triggers []Trigger
	o.page.Mutate(func(doc *goquery.Document) host.Mutation {
		added = o.injector.Inject(doc)
		triggers = Triggers(doc)
		return host.Mutation{}
	})
	if added == 0 {
		return
	}
	logging.WithOperation(o.logger, "observer.inject").Debug("triggers injected",
		slog.Int("added", added),
		slog.Int("total", len(triggers)),
	)
	o.publish(InjectedMsg{Added: added, Triggers: triggers})
}

// publish never blocks. A full buffer drops the oldest pass so the latest
// one always reaches a lagging consumer.
func (o *Observer) publish(msg InjectedMsg) {
	for {
		select {
		case o.resultCh <- msg:
			return
		default:
		}
		select {
		case <-o.resultCh:
		default:
		}
	}
}

// Results exposes injection results for non-TUI consumers.
func (o *Observer) Results() <-chan InjectedMsg {
	return o.resultCh
}

// WaitForNext returns a tea.Cmd that blocks until the next injection
// result arrives.
func (o *Observer) WaitForNext() tea.Cmd {
	return func() tea.Msg {
		return <-o.resultCh
	}
}
