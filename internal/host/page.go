// Package host models the webmail page as a capability: a document that
// can be read, mutated, observed, clicked, and used to fetch resources
// with the page's own session.
package host

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/dom"
)

// Mutation summarizes one structural change batch.
type Mutation struct {
	Added    int
	Removed  int
	Replaced bool
}

// Empty reports whether the batch carries no change.
func (m Mutation) Empty() bool {
	return m.Added == 0 && m.Removed == 0 && !m.Replaced
}

// Command is an action queued for the in-browser shim to perform on the
// real page.
type Command struct {
	Action string `json:"action"`
	Path   string `json:"path"`
}

// Page is what the observer, extractor and composer need from the host.
type Page interface {
	// Read runs fn with a consistent view of the document.
	Read(fn func(doc *goquery.Document))

	// Mutate runs fn with exclusive access and publishes the returned
	// batch to subscribers unless it is empty.
	Mutate(fn func(doc *goquery.Document) Mutation)

	// Subscribe returns a channel of change batches and a cancel func.
	Subscribe() (<-chan Mutation, func())

	// Click asks the host to activate n.
	Click(n *html.Node) error

	// Fetch downloads rawURL with the page session's cookies.
	Fetch(ctx context.Context, rawURL string) (*Download, error)
}

// ClickHandler reacts to a click locally; tests use it to simulate the
// host expanding a collapsed message.
type ClickHandler func(doc *goquery.Document, n *html.Node) Mutation

// Live is an in-memory Page fed by snapshots.
type Live struct {
	mu      gosync.RWMutex
	doc     *goquery.Document
	session *Session
	onClick ClickHandler

	subMu   gosync.Mutex
	subs    map[int]chan Mutation
	nextSub int

	cmdMu    gosync.Mutex
	commands []Command
}

// NewLive wraps root as the current page.
func NewLive(root *html.Node, pageURL string, session *Session) *Live {
	return &Live{
		doc:     dom.FromNode(root, pageURL),
		session: session,
		subs:    make(map[int]chan Mutation),
	}
}

// SetClickHandler installs h for subsequent clicks.
func (p *Live) SetClickHandler(h ClickHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick = h
}

// SetSession replaces the session used by Fetch.
func (p *Live) SetSession(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = s
}

// Replace swaps in a new snapshot and notifies subscribers.
func (p *Live) Replace(root *html.Node, pageURL string) {
	p.mu.Lock()
	p.doc = dom.FromNode(root, pageURL)
	p.mu.Unlock()
	p.publish(Mutation{Replaced: true})
}

// Read implements Page.
func (p *Live) Read(fn func(doc *goquery.Document)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn(p.doc)
}

// Mutate implements Page.
func (p *Live) Mutate(fn func(doc *goquery.Document) Mutation) {
	p.mu.Lock()
	m := fn(p.doc)
	p.mu.Unlock()
	if !m.Empty() {
		p.publish(m)
	}
}

// Subscribe implements Page.
func (p *Live) Subscribe() (<-chan Mutation, func()) {
	ch := make(chan Mutation, 16)

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once gosync.Once
	cancel := func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (p *Live) publish(m Mutation) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- m:
		default:
			// Full: a queued batch already guarantees another pass.
		}
	}
}

// Click implements Page. The click is queued for the shim and, when a
// handler is installed, applied locally as well.
func (p *Live) Click(n *html.Node) error {
	if n == nil {
		return fmt.Errorf("click: nil node")
	}
	p.cmdMu.Lock()
	p.commands = append(p.commands, Command{Action: "click", Path: CSSPath(n)})
	p.cmdMu.Unlock()

	p.mu.RLock()
	h := p.onClick
	p.mu.RUnlock()
	if h != nil {
		p.Mutate(func(doc *goquery.Document) Mutation { return h(doc, n) })
	}
	return nil
}

// PendingCommands drains the commands queued for the shim.
func (p *Live) PendingCommands() []Command {
	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()
	out := p.commands
	p.commands = nil
	return out
}

// Fetch implements Page.
func (p *Live) Fetch(ctx context.Context, rawURL string) (*Download, error) {
	p.mu.RLock()
	s := p.session
	p.mu.RUnlock()
	if s == nil {
		return nil, fmt.Errorf("fetching %s: no page session", rawURL)
	}
	return s.Fetch(ctx, rawURL)
}
