package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/key"
	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/bridge"
	"github.com/nhle/mailtask/internal/composer"
	"github.com/nhle/mailtask/internal/dom"
	"github.com/nhle/mailtask/internal/host"
	"github.com/nhle/mailtask/internal/i18n"
	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/mailbox"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/observer"
	"github.com/nhle/mailtask/internal/ui"
	helpview "github.com/nhle/mailtask/internal/ui/help"
	"github.com/nhle/mailtask/internal/ui/modal"
	"github.com/nhle/mailtask/internal/ui/settings"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewTriggers ViewState = iota
	ViewComposer
	ViewSettings
	ViewHelp
)

// Backend is the gateway surface the root model hands to its views.
// *gateway.Client implements it.
type Backend interface {
	composer.Backend
	settings.Backend
}

// Config wires the root model.
type Config struct {
	Page     *host.Live
	Observer *observer.Observer
	Backend  Backend
	Labeler  mailbox.Labeler
	Timing   model.TimingConfig
	Logger   *slog.Logger

	// Clicks and Notifications are optional; the bridge feeds both.
	Clicks        <-chan bridge.Click
	Notifications <-chan model.Notification

	// Source describes where page snapshots come from, for the header.
	Source string
}

// triggerRow is one entry of the trigger list.
type triggerRow struct {
	trigger observer.Trigger
	title   string
	detail  string
}

type triggersLoadedMsg struct {
	rows []triggerRow
}

type clickMsg struct {
	click bridge.Click
}

type notificationMsg struct {
	note model.Notification
}

// composeReadyMsg carries everything needed to build a composer session.
type composeReadyMsg struct {
	email  model.EmailContext
	thread []model.ThreadMessage
	scope  *html.Node
	lang   string
}

// Model is the root Bubble Tea model that routes between the trigger
// list, the composer dialog, settings and help.
type Model struct {
	ctx          context.Context
	cfg          Config
	logger       *slog.Logger
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *KeyMap

	rows   []triggerRow
	cursor int

	composer modal.Model
	settings settings.Model
	helpView helpview.Model

	ready      bool
	notice     string
	noticeKind string
}

// New creates the root model.
func New(ctx context.Context, cfg Config) Model {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Labeler == nil {
		cfg.Labeler = mailbox.Nop{}
	}
	km := DefaultKeyMap()
	return Model{
		ctx:         ctx,
		cfg:         cfg,
		logger:      logging.WithOperation(cfg.Logger, "app"),
		currentView: ViewTriggers,
		keys:        km,
		settings:    settings.New(ctx, cfg.Backend, 80, 24),
		helpView:    helpview.New(km, 80, 24),
	}
}

// Init lists the current triggers and starts listening for page events.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadTriggers()}
	if m.cfg.Observer != nil {
		cmds = append(cmds, m.cfg.Observer.WaitForNext())
	}
	cmds = append(cmds, m.waitForClick(), m.waitForNotification())
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.composer.SetWidth(m.layout.ModalWidth())
		m.settings.SetSize(w, h)
		m.helpView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case observer.InjectedMsg:
		var wait tea.Cmd
		if m.cfg.Observer != nil {
			wait = m.cfg.Observer.WaitForNext()
		}
		return m, tea.Batch(m.loadTriggers(), wait)

	case triggersLoadedMsg:
		m.rows = msg.rows
		if m.cursor >= len(m.rows) {
			m.cursor = max(len(m.rows)-1, 0)
		}
		return m, nil

	case clickMsg:
		wait := m.waitForClick()
		if m.currentView == ViewComposer {
			m.setNotice("info", "Composer already open")
			return m, wait
		}
		c := msg.click
		return m, tea.Batch(wait, m.prepare(c.Email, c.Thread, c.Trigger.Scope))

	case notificationMsg:
		m.setNotice("success", notificationText(msg.note))
		return m, m.waitForNotification()

	case composeReadyMsg:
		return m.openComposer(msg)

	case modal.ClosedMsg:
		m.currentView = ViewTriggers
		if r := msg.Result; r != nil && r.Link != "" {
			m.setNotice("success", fmt.Sprintf("%s: %s", r.TaskName, r.Link))
		}
		return m, m.loadTriggers()

	case settings.SavedMsg:
		m.currentView = m.previousView
		if msg.Err != nil {
			m.setNotice("error", msg.Err.Error())
		} else {
			m.setNotice("success", "Settings saved")
		}
		return m, nil

	case settings.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.closeComposer()
			return m, tea.Quit
		}
		// The composer and settings own every other key.
		if m.currentView == ViewComposer || m.currentView == ViewSettings {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case m.currentView == ViewHelp && key.Matches(msg, m.keys.Back):
			m.currentView = m.previousView
			return m, nil

		case m.currentView != ViewTriggers:

		case msg.String() == "q":
			return m, tea.Quit

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
			return m, nil

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case key.Matches(msg, m.keys.Select):
			if len(m.rows) == 0 {
				return m, nil
			}
			return m, m.compose(m.rows[m.cursor].trigger)

		case key.Matches(msg, m.keys.Rescan):
			if m.cfg.Observer != nil {
				m.cfg.Observer.Pass()
			}
			return m, m.loadTriggers()

		case key.Matches(msg, m.keys.Settings):
			m.previousView = m.currentView
			m.currentView = ViewSettings
			return m, m.settings.Start()
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewComposer:
		m.composer, cmd = m.composer.Update(msg)
	case ViewSettings:
		m.settings, cmd = m.settings.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

func (m *Model) setNotice(kind, text string) {
	m.noticeKind = kind
	m.notice = text
}

func (m *Model) closeComposer() {
	if m.currentView == ViewComposer && m.composer.Session() != nil {
		m.composer.Session().Close()
	}
}

// compose extracts the email context for t from the live page.
func (m Model) compose(t observer.Trigger) tea.Cmd {
	var (
		email  model.EmailContext
		thread []model.ThreadMessage
	)
	m.cfg.Page.Read(func(doc *goquery.Document) {
		email = dom.ExtractActiveContext(doc, t.Scope)
		thread = dom.ScanThread(doc)
	})
	return m.prepare(email, thread, t.Scope)
}

// prepare resolves the UI language before the session exists, so the
// session never switches translators while open.
func (m Model) prepare(email model.EmailContext, thread []model.ThreadMessage, scope *html.Node) tea.Cmd {
	b, ctx, logger := m.cfg.Backend, m.ctx, m.logger
	return func() tea.Msg {
		lang := model.DefaultPreferences().Language
		if prefs, err := b.GetPreferences(ctx); err != nil {
			logger.Debug("preferences unavailable, using default language", logging.Err(err))
		} else if prefs.Language != "" {
			lang = prefs.Language
		}
		return composeReadyMsg{email: email, thread: thread, scope: scope, lang: lang}
	}
}

func (m Model) openComposer(msg composeReadyMsg) (tea.Model, tea.Cmd) {
	if m.currentView == ViewComposer {
		return m, nil
	}
	sess := composer.New(composer.Deps{
		Backend:    m.cfg.Backend,
		Page:       m.cfg.Page,
		Labeler:    m.cfg.Labeler,
		Translator: i18n.New(msg.lang),
		Timing:     m.cfg.Timing,
		Logger:     m.cfg.Logger,
	}, msg.email, msg.thread, msg.scope)

	width := 80
	if m.ready {
		width = m.layout.ModalWidth()
	}
	m.composer = modal.New(m.ctx, sess, m.keys, m.cfg.Timing, width)
	m.previousView = m.currentView
	m.currentView = ViewComposer
	m.notice = ""
	return m, m.composer.Init()
}

// loadTriggers lists the triggers on the page with a short description.
func (m Model) loadTriggers() tea.Cmd {
	page := m.cfg.Page
	return func() tea.Msg {
		var rows []triggerRow
		page.Read(func(doc *goquery.Document) {
			for _, t := range observer.Triggers(doc) {
				ctx := dom.ExtractActiveContext(doc, t.Scope)
				row := triggerRow{trigger: t, title: ctx.Subject, detail: ctx.Sender}
				if t.Kind == observer.KindMessage && ctx.Date != "" {
					row.detail += " · " + ctx.Date
				}
				if row.title == "" {
					row.title = "(no subject)"
				}
				rows = append(rows, row)
			}
		})
		return triggersLoadedMsg{rows: rows}
	}
}

func (m Model) waitForClick() tea.Cmd {
	ch := m.cfg.Clicks
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return clickMsg{click: c}
	}
}

func (m Model) waitForNotification() tea.Cmd {
	ch := m.cfg.Notifications
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg{note: n}
	}
}

func notificationText(n model.Notification) string {
	if n.Message == "" {
		return n.Title
	}
	return n.Title + ": " + n.Message
}
