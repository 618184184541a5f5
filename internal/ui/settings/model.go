// Package settings is the preferences form: default destination, note
// toggles, auto-close and language.
package settings

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/nhle/mailtask/internal/i18n"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/theme"
	"github.com/nhle/mailtask/internal/tracker"
)

// Backend is what the form needs from the gateway.
type Backend interface {
	GetPreferences(ctx context.Context) (model.Preferences, error)
	SavePreferences(ctx context.Context, prefs model.Preferences) error
	ListWorkspaces(ctx context.Context) ([]tracker.Workspace, error)
	ListProjects(ctx context.Context, workspaceID string) ([]tracker.Project, error)
}

// SavedMsg is dispatched after the preferences were written.
type SavedMsg struct {
	Prefs model.Preferences
	Err   error
}

// CancelMsg is dispatched when the user leaves the form without saving.
type CancelMsg struct{}

type loadedMsg struct {
	prefs      model.Preferences
	workspaces []tracker.Workspace
	err        error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	prefs model.Preferences
}

// Model is the Bubble Tea model for the preferences form.
type Model struct {
	ctx        context.Context
	backend    Backend
	form       *huh.Form
	fb         *formBindings
	workspaces []tracker.Workspace
	err        error
	width      int
	height     int
}

// New creates the form. Call Start to load the current preferences.
func New(ctx context.Context, backend Backend, width, height int) Model {
	return Model{
		ctx:     ctx,
		backend: backend,
		fb:      &formBindings{prefs: model.DefaultPreferences()},
		width:   width,
		height:  height,
	}
}

// Start loads the stored preferences and the workspaces.
func (m *Model) Start() tea.Cmd {
	m.form = nil
	m.err = nil
	b, ctx := m.backend, m.ctx
	return func() tea.Msg {
		prefs, err := b.GetPreferences(ctx)
		if err != nil {
			return loadedMsg{err: err}
		}
		// Without a token the toggles can still be edited.
		ws, _ := b.ListWorkspaces(ctx)
		return loadedMsg{prefs: prefs, workspaces: ws}
	}
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(loadedMsg); ok {
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.fb.prefs = msg.prefs
		m.workspaces = msg.workspaces
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		return m, func() tea.Msg { return CancelMsg{} }
	}
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.save()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

func (m Model) save() tea.Cmd {
	prefs := m.fb.prefs
	b, ctx := m.backend, m.ctx
	return func() tea.Msg {
		return SavedMsg{Prefs: prefs, Err: b.SavePreferences(ctx, prefs)}
	}
}

// View renders the form.
func (m Model) View() string {
	content := theme.TitleStyle.Render("Settings") + "\n"
	switch {
	case m.err != nil:
		content += theme.StatusStyle("error").Render(m.err.Error())
	case m.form == nil:
		content += theme.HelpStyle.Render("Loading…")
	default:
		content += m.form.View()
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	p := &m.fb.prefs
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default workspace").
				Options(m.workspaceOptions()...).
				Value(&p.DefaultWorkspace),
			huh.NewSelect[string]().
				Title("Default project").
				OptionsFunc(func() []huh.Option[string] {
					return m.projectOptions(p.DefaultWorkspace)
				}, &p.DefaultWorkspace).
				Value(&p.DefaultProject),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Include message body").Value(&p.IncludeBody),
			huh.NewConfirm().Title("Include link to message").Value(&p.IncludeLink),
			huh.NewConfirm().Title("Attach original message").Value(&p.IncludeOriginal),
			huh.NewConfirm().Title("Label message in mailbox").Value(&p.ApplyLabel),
			huh.NewConfirm().Title("Close after submitting").Value(&p.AutoClose),
			huh.NewSelect[string]().
				Title("Language").
				Options(languageOptions()...).
				Value(&p.Language),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m *Model) workspaceOptions() []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("None (last used)", "")}
	for _, w := range m.workspaces {
		opts = append(opts, huh.NewOption(w.Name, w.GID))
	}
	return opts
}

func (m *Model) projectOptions(workspaceID string) []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("None (last used)", "")}
	if workspaceID == "" {
		return opts
	}
	projects, err := m.backend.ListProjects(m.ctx, workspaceID)
	if err != nil {
		return opts
	}
	for _, p := range projects {
		if !p.Archived {
			opts = append(opts, huh.NewOption(p.Name, p.GID))
		}
	}
	return opts
}

// languageOptions names every bundled locale in its own language.
func languageOptions() []huh.Option[string] {
	var opts []huh.Option[string]
	for _, tag := range i18n.Supported() {
		base, _ := tag.Base()
		name := display.Self.Name(tag)
		if name == "" {
			name = tag.String()
		}
		opts = append(opts, huh.NewOption(name, base.String()))
	}
	if len(opts) == 0 {
		opts = append(opts, huh.NewOption("English", language.English.String()))
	}
	return opts
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}
