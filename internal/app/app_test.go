package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/PuerkitoBio/goquery"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/bridge"
	"github.com/nhle/mailtask/internal/composer"
	"github.com/nhle/mailtask/internal/host"
	"github.com/nhle/mailtask/internal/i18n"
	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/observer"
	"github.com/nhle/mailtask/internal/tracker"
	"github.com/nhle/mailtask/internal/ui/modal"
	"github.com/nhle/mailtask/internal/ui/settings"
)

type stubBackend struct {
	prefs    model.Preferences
	prefsErr error
}

func (b *stubBackend) GetPreferences(context.Context) (model.Preferences, error) {
	return b.prefs, b.prefsErr
}
func (b *stubBackend) SavePreferences(context.Context, model.Preferences) error { return nil }
func (b *stubBackend) ListWorkspaces(context.Context) ([]tracker.Workspace, error) {
	return []tracker.Workspace{{GID: "W1", Name: "Acme"}}, nil
}
func (b *stubBackend) ListProjects(context.Context, string) ([]tracker.Project, error) {
	return []tracker.Project{{GID: "P1", Name: "Ops"}}, nil
}
func (b *stubBackend) ListUsers(context.Context, string) ([]tracker.User, error) { return nil, nil }
func (b *stubBackend) ListTags(context.Context, string) ([]tracker.Tag, error)   { return nil, nil }
func (b *stubBackend) GetCustomFields(context.Context, string) ([]tracker.CustomFieldSetting, error) {
	return nil, nil
}
func (b *stubBackend) SearchTasks(context.Context, string, string) ([]tracker.Task, error) {
	return nil, nil
}
func (b *stubBackend) GetTask(_ context.Context, id string) (tracker.Task, error) {
	return tracker.Task{GID: id}, nil
}
func (b *stubBackend) CreateTask(_ context.Context, in tracker.TaskInput) (tracker.Task, error) {
	return tracker.Task{GID: "T1", Name: in.Name}, nil
}
func (b *stubBackend) AddComment(context.Context, string, string) error { return nil }
func (b *stubBackend) UploadAttachment(context.Context, string, string, string, []byte) error {
	return nil
}
func (b *stubBackend) ShowNotification(context.Context, string, string, string) (string, error) {
	return "N1", nil
}

func threadPage(t *testing.T) *host.Live {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "dom", "testdata", "thread.html"))
	require.NoError(t, err)
	defer f.Close()
	root, err := html.Parse(f)
	require.NoError(t, err)

	page := host.NewLive(root, "https://mail.example/mail/u/0/", nil)
	in := observer.NewInjector()
	page.Mutate(func(doc *goquery.Document) host.Mutation {
		return host.Mutation{Added: in.Inject(doc)}
	})
	return page
}

func newTestModel(t *testing.T, cfg Config) Model {
	t.Helper()
	if cfg.Page == nil {
		cfg.Page = threadPage(t)
	}
	if cfg.Backend == nil {
		cfg.Backend = &stubBackend{prefs: model.DefaultPreferences()}
	}
	m := New(context.Background(), cfg)
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return update(t, m, m.loadTriggers()())
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTriggerListFromPage(t *testing.T) {
	m := newTestModel(t, Config{})

	require.Len(t, m.rows, 4)
	assert.Equal(t, observer.KindToolbar, m.rows[0].trigger.Kind)
	assert.Equal(t, "Invoice #42", m.rows[0].title)
	assert.Contains(t, m.rows[2].detail, "Alice")
	assert.Contains(t, m.View(), "4 triggers")
}

func TestEnterOpensComposerInPreferredLanguage(t *testing.T) {
	prefs := model.DefaultPreferences()
	prefs.Language = "ja"
	m := newTestModel(t, Config{Backend: &stubBackend{prefs: prefs}})

	m = update(t, m, keyPress("down"))
	m = update(t, m, keyPress("down"))
	_, cmd := m.Update(keyPress("enter"))
	require.NotNil(t, cmd)

	msg := cmd()
	ready, ok := msg.(composeReadyMsg)
	require.True(t, ok)
	assert.Equal(t, "ja", ready.lang)
	assert.Equal(t, "Alice <a@x.com>", ready.email.Sender)

	next, initCmd := m.Update(ready)
	m = next.(Model)
	assert.Equal(t, ViewComposer, m.currentView)
	assert.NotNil(t, initCmd)

	sess := m.composer.Session()
	require.NotNil(t, sess)
	assert.Equal(t, "Invoice #42", sess.View().Email.Subject)
	assert.NotEqual(t, i18n.New("en").T("label_project", nil), sess.Translator().T("label_project", nil))
}

func TestPreferencesFailureFallsBackToEnglish(t *testing.T) {
	var logs bytes.Buffer
	m := newTestModel(t, Config{
		Backend: &stubBackend{prefsErr: errors.New("keyring locked")},
		Logger:  logging.New(&logs, "debug"),
	})

	ready, ok := m.prepare(model.EmailContext{Subject: "Hi"}, nil, nil)().(composeReadyMsg)
	require.True(t, ok)
	assert.Equal(t, "en", ready.lang)
	assert.Contains(t, logs.String(), logging.KeyError+`="keyring locked"`)
}

func TestComposerClosedReturnsToList(t *testing.T) {
	m := newTestModel(t, Config{})
	m = update(t, m, composeReadyMsg{email: model.EmailContext{Subject: "x"}, lang: "en"})
	require.Equal(t, ViewComposer, m.currentView)

	m = update(t, m, modal.ClosedMsg{Result: &composer.Result{TaskName: "Pay invoice", Link: "https://app.example/T1"}})
	assert.Equal(t, ViewTriggers, m.currentView)
	assert.Equal(t, "Pay invoice: https://app.example/T1", m.notice)
	assert.Equal(t, "success", m.noticeKind)
}

// collect runs cmd and flattens batches into their messages.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, collect(c)...)
	}
	return out
}

func TestWaitForClick(t *testing.T) {
	clicks := make(chan bridge.Click, 1)
	m := newTestModel(t, Config{Clicks: clicks})

	clicks <- bridge.Click{Email: model.EmailContext{Subject: "From the browser"}}
	msg, ok := m.waitForClick()().(clickMsg)
	require.True(t, ok)
	assert.Equal(t, "From the browser", msg.click.Email.Subject)

	assert.Nil(t, newTestModel(t, Config{}).waitForClick())
}

func TestBridgeClickOpensComposer(t *testing.T) {
	m := newTestModel(t, Config{})

	_, cmd := m.Update(clickMsg{click: bridge.Click{
		Trigger: observer.Trigger{Kind: observer.KindToolbar},
		Email:   model.EmailContext{Subject: "From the browser"},
	}})

	var ready *composeReadyMsg
	for _, msg := range collect(cmd) {
		if r, ok := msg.(composeReadyMsg); ok {
			ready = &r
		}
	}
	require.NotNil(t, ready)
	assert.Equal(t, "From the browser", ready.email.Subject)
	assert.Equal(t, "en", ready.lang)
}

func TestNotificationShowsNotice(t *testing.T) {
	notes := make(chan model.Notification, 1)
	m := newTestModel(t, Config{Notifications: notes})

	notes <- model.Notification{Title: "Task created", Message: "https://app.example/T1"}
	m = update(t, m, m.waitForNotification()())
	assert.Equal(t, "Task created: https://app.example/T1", m.notice)
}

func TestSettingsRoundTrip(t *testing.T) {
	m := newTestModel(t, Config{})

	m = update(t, m, keyPress("s"))
	assert.Equal(t, ViewSettings, m.currentView)

	m = update(t, m, settings.CancelMsg{})
	assert.Equal(t, ViewTriggers, m.currentView)

	m = update(t, m, keyPress("s"))
	m = update(t, m, settings.SavedMsg{Prefs: model.DefaultPreferences()})
	assert.Equal(t, ViewTriggers, m.currentView)
	assert.Equal(t, "Settings saved", m.notice)
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t, Config{})

	m = update(t, m, keyPress("?"))
	assert.Equal(t, ViewHelp, m.currentView)
	m = update(t, m, keyPress("esc"))
	assert.Equal(t, ViewTriggers, m.currentView)
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, Config{})
	_, cmd := m.Update(keyPress("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
