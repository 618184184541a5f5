// Package modal renders a composer session as a Bubble Tea dialog.
package modal

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailtask/internal/composer"
	"github.com/nhle/mailtask/internal/keys"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/theme"
	"github.com/nhle/mailtask/internal/tracker"
)

// ClosedMsg is dispatched when the composer closes, by the user or after
// the auto-close delay.
type ClosedMsg struct {
	Result *composer.Result
}

type openedMsg struct{ err error }

type destinationMsg struct{ err error }

type searchTickMsg struct {
	seq   int
	query string
}

type searchDoneMsg struct{ err error }

type submittedMsg struct {
	res *composer.Result
	err error
}

type expandedMsg struct{ err error }

type autoCloseMsg struct{ res *composer.Result }

type slotKind int

const (
	slotMode slotKind = iota
	slotWorkspace
	slotProject
	slotName
	slotAssignee
	slotDue
	slotTags
	slotField
	slotTask
	slotToggle
	slotAttachment
	slotSubmit
)

// slot is one focusable row. idx selects the custom field, toggle or
// attachment for the kinds that repeat.
type slot struct {
	kind slotKind
	idx  int
}

// Toggle rows, in display order.
const (
	toggleBody = iota
	toggleLink
	toggleOriginal
	toggleLabel
	toggleCount
)

// maxSuggestions bounds the dropdown under a focused picker.
const maxSuggestions = 6

type suggestion struct {
	id    string
	label string
}

// Model is the Bubble Tea model for one composer session.
type Model struct {
	ctx     context.Context
	session *composer.Session
	keys    *keys.KeyMap
	timing  model.TimingConfig

	workspace textinput.Model
	project   textinput.Model
	name      textinput.Model
	assignee  textinput.Model
	due       textinput.Model
	tags      textinput.Model
	task      textinput.Model
	fields    []textinput.Model
	fieldsFor string

	fieldErr map[string]string
	cursor   composer.Cursor
	focus    int
	busy     bool
	width    int
}

// New creates the dialog for session. Call Init to open the session.
func New(ctx context.Context, session *composer.Session, km *keys.KeyMap, timing model.TimingConfig, width int) Model {
	newInput := func(placeholder string) textinput.Model {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.Prompt = ""
		ti.CharLimit = 256
		return ti
	}
	due := newInput("YYYY-MM-DD")
	due.CharLimit = 10

	return Model{
		ctx:       ctx,
		session:   session,
		keys:      km,
		timing:    timing,
		workspace: newInput("type to filter"),
		project:   newInput("type to filter"),
		name:      newInput(""),
		assignee:  newInput("type to filter"),
		due:       due,
		tags:      newInput("type to add"),
		task:      newInput("at least 3 characters"),
		fieldErr:  make(map[string]string),
		width:     width,
	}
}

// Init opens the session.
func (m Model) Init() tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		return openedMsg{err: s.Open(ctx)}
	}
}

// SetWidth updates the dialog width.
func (m *Model) SetWidth(width int) {
	m.width = width
}

// Session returns the underlying composer session.
func (m Model) Session() *composer.Session {
	return m.session
}

// Update handles messages for the composer dialog.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case openedMsg:
		v := m.session.View()
		m.name.SetValue(v.Draft.Name)
		m.syncDestination(v)
		m.focus = 0
		return m, m.enterSlot()

	case destinationMsg:
		m.syncDestination(m.session.View())
		m.cursor.Reset(len(m.suggestions()))
		return m, nil

	case searchTickMsg:
		s, ctx := m.session, m.ctx
		return m, func() tea.Msg {
			return searchDoneMsg{err: s.RunSearch(ctx, msg.seq, msg.query)}
		}

	case searchDoneMsg:
		m.cursor.Reset(len(m.suggestions()))
		return m, nil

	case expandedMsg:
		return m, nil

	case submittedMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		if _, ok := m.session.AutoCloseDelay(msg.res); !ok {
			return m, nil
		}
		s, ctx, res := m.session, m.ctx, msg.res
		return m, func() tea.Msg {
			if err := s.CloseAfter(ctx, res); err != nil {
				return nil
			}
			return autoCloseMsg{res: res}
		}

	case autoCloseMsg:
		res := msg.res
		return m, func() tea.Msg { return ClosedMsg{Result: res} }

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	v := m.session.View()
	slots := m.slots(v)
	if m.focus >= len(slots) {
		m.focus = len(slots) - 1
	}
	cur := slots[m.focus]

	switch {
	case key.Matches(msg, m.keys.Back):
		m.session.Close()
		return m, func() tea.Msg { return ClosedMsg{} }

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Mode):
		m.leaveSlot(cur)
		mode := model.ModeLinkExisting
		if v.Draft.Mode == model.ModeLinkExisting {
			mode = model.ModeCreate
		}
		m.session.SetMode(mode)
		m.focus = 0
		return m, m.enterSlot()

	case key.Matches(msg, m.keys.Expand):
		s, ctx := m.session, m.ctx
		return m, func() tea.Msg { return expandedMsg{err: s.ExpandAllAndRescan(ctx)} }

	case key.Matches(msg, m.keys.Next):
		m.leaveSlot(cur)
		m.focus = (m.focus + 1) % len(slots)
		return m, m.enterSlot()

	case key.Matches(msg, m.keys.Prev):
		m.leaveSlot(cur)
		m.focus = (m.focus - 1 + len(slots)) % len(slots)
		return m, m.enterSlot()

	case key.Matches(msg, m.keys.Up):
		m.cursor.Up()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.cursor.Down()
		return m, nil

	case key.Matches(msg, m.keys.Remove) && cur.kind == slotTags:
		if n := len(v.Draft.TagIDs); n > 0 {
			m.session.RemoveTag(v.Draft.TagIDs[n-1])
			m.cursor.Reset(len(m.suggestions()))
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		return m.activate(cur, v)

	case key.Matches(msg, m.keys.Toggle) && isSwitch(cur.kind):
		return m.activate(cur, v)
	}

	return m.typeInto(cur, msg)
}

func isSwitch(k slotKind) bool {
	return k == slotMode || k == slotToggle || k == slotAttachment || k == slotSubmit
}

// activate handles enter on the focused row.
func (m Model) activate(cur slot, v composer.View) (Model, tea.Cmd) {
	switch cur.kind {
	case slotMode:
		if v.Draft.Mode == model.ModeLinkExisting {
			m.session.SetMode(model.ModeCreate)
		} else {
			m.session.SetMode(model.ModeLinkExisting)
		}
		return m, nil
	case slotToggle:
		m.session.Edit(func(d *model.TaskDraft) {
			switch cur.idx {
			case toggleBody:
				d.IncludeBody = !d.IncludeBody
			case toggleLink:
				d.IncludeLink = !d.IncludeLink
			case toggleOriginal:
				d.IncludeOriginal = !d.IncludeOriginal
			case toggleLabel:
				d.ApplyLabel = !d.ApplyLabel
			}
		})
		return m, nil
	case slotAttachment:
		m.session.ToggleAttachment(cur.idx)
		return m, nil
	case slotSubmit:
		return m.submit()
	}
	return m.pick(cur, v)
}

// pick applies the highlighted suggestion of a picker row.
func (m Model) pick(cur slot, v composer.View) (Model, tea.Cmd) {
	list := m.suggestions()
	i := m.cursor.Index()
	if i < 0 || i >= len(list) {
		return m, nil
	}
	chosen := list[i]
	s, ctx := m.session, m.ctx

	switch cur.kind {
	case slotWorkspace:
		m.workspace.SetValue(chosen.label)
		return m, func() tea.Msg { return destinationMsg{err: s.SelectWorkspace(ctx, chosen.id)} }
	case slotProject:
		m.project.SetValue(chosen.label)
		return m, func() tea.Msg { return destinationMsg{err: s.SelectProject(ctx, chosen.id)} }
	case slotAssignee:
		m.session.SelectAssignee(chosen.id)
		m.assignee.SetValue(chosen.label)
	case slotTags:
		m.session.AddTag(chosen.id)
		m.tags.SetValue("")
		m.cursor.Reset(len(m.suggestions()))
	case slotTask:
		for _, t := range v.SearchResults {
			if t.GID == chosen.id {
				m.session.SelectExistingTask(t)
			}
		}
		m.task.SetValue(chosen.label)
	}
	return m, nil
}

// typeInto forwards a keystroke to the focused text input.
func (m Model) typeInto(cur slot, msg tea.KeyMsg) (Model, tea.Cmd) {
	in := m.input(cur)
	if in == nil {
		return m, nil
	}
	before := in.Value()
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	after := in.Value()
	if after == before {
		return m, cmd
	}

	switch cur.kind {
	case slotName:
		m.session.Edit(func(d *model.TaskDraft) { d.Name = after })
	case slotDue:
		m.session.Edit(func(d *model.TaskDraft) { d.DueDate = strings.TrimSpace(after) })
	case slotAssignee:
		if after == "" {
			m.session.SelectAssignee("")
		}
	case slotTask:
		seq := m.session.QueueSearch()
		tick := tea.Tick(m.timing.SearchDebounce(), func(time.Time) tea.Msg {
			return searchTickMsg{seq: seq, query: after}
		})
		return m, tea.Batch(cmd, tick)
	}
	m.cursor.Reset(len(m.suggestions()))
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	m.commitFields()
	m.busy = true
	s, ctx := m.session, m.ctx
	return m, func() tea.Msg {
		res, err := s.Submit(ctx)
		return submittedMsg{res: res, err: err}
	}
}

// commitFields pushes every custom field input into the draft.
func (m *Model) commitFields() {
	v := m.session.View()
	for i, f := range v.Fields {
		if i < len(m.fields) {
			m.setField(f, m.fields[i].Value())
		}
	}
}

func (m *Model) setField(f composer.CustomField, raw string) {
	if err := m.session.SetCustomField(f.ID, raw); err != nil {
		m.fieldErr[f.ID] = err.Error()
		return
	}
	delete(m.fieldErr, f.ID)
}

func (m *Model) leaveSlot(cur slot) {
	if in := m.input(cur); in != nil {
		in.Blur()
	}
	if cur.kind == slotField {
		v := m.session.View()
		if cur.idx < len(v.Fields) && cur.idx < len(m.fields) {
			m.setField(v.Fields[cur.idx], m.fields[cur.idx].Value())
		}
	}
}

func (m *Model) enterSlot() tea.Cmd {
	slots := m.slots(m.session.View())
	if m.focus >= len(slots) {
		m.focus = 0
	}
	m.cursor.Reset(len(m.suggestions()))
	if in := m.input(slots[m.focus]); in != nil {
		return in.Focus()
	}
	return nil
}

// syncDestination mirrors the session's selections into the picker inputs
// and rebuilds the custom field inputs when the project changed.
func (m *Model) syncDestination(v composer.View) {
	m.workspace.SetValue(workspaceName(v.Workspaces, v.Draft.WorkspaceID))
	m.project.SetValue(projectName(v.Projects, v.Draft.ProjectID))
	if v.Draft.AssigneeID == "" {
		m.assignee.SetValue("")
	}
	if v.Draft.ExistingTaskID == "" {
		m.task.SetValue("")
	}

	sig := v.Draft.ProjectID + fmt.Sprint(len(v.Fields))
	if sig == m.fieldsFor {
		return
	}
	m.fieldsFor = sig
	m.fields = make([]textinput.Model, len(v.Fields))
	for i, f := range v.Fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = fieldPlaceholder(f)
		m.fields[i] = ti
	}
}

func fieldPlaceholder(f composer.CustomField) string {
	switch f.Type {
	case model.FieldNumber:
		return "number"
	case model.FieldDate:
		return "YYYY-MM-DD"
	case model.FieldEnum:
		names := make([]string, len(f.Options))
		for i, o := range f.Options {
			names[i] = o.Name
		}
		return strings.Join(names, " | ")
	default:
		return ""
	}
}

func (m *Model) input(s slot) *textinput.Model {
	switch s.kind {
	case slotWorkspace:
		return &m.workspace
	case slotProject:
		return &m.project
	case slotName:
		return &m.name
	case slotAssignee:
		return &m.assignee
	case slotDue:
		return &m.due
	case slotTags:
		return &m.tags
	case slotTask:
		return &m.task
	case slotField:
		if s.idx < len(m.fields) {
			return &m.fields[s.idx]
		}
	}
	return nil
}

// slots lists the focusable rows for the current mode.
func (m Model) slots(v composer.View) []slot {
	out := []slot{{kind: slotMode}, {kind: slotWorkspace}}
	if v.Draft.Mode == model.ModeLinkExisting {
		out = append(out, slot{kind: slotTask})
	} else {
		out = append(out,
			slot{kind: slotProject},
			slot{kind: slotName},
			slot{kind: slotAssignee},
			slot{kind: slotDue},
			slot{kind: slotTags},
		)
		for i := range v.Fields {
			out = append(out, slot{kind: slotField, idx: i})
		}
	}
	for i := 0; i < toggleCount; i++ {
		out = append(out, slot{kind: slotToggle, idx: i})
	}
	for i, a := range v.Email.Attachments {
		if a.Downloadable() {
			out = append(out, slot{kind: slotAttachment, idx: i})
		}
	}
	return append(out, slot{kind: slotSubmit})
}

func (m Model) focused(v composer.View) slot {
	slots := m.slots(v)
	if m.focus < len(slots) {
		return slots[m.focus]
	}
	return slots[0]
}

// suggestions returns the dropdown entries of the focused picker.
func (m Model) suggestions() []suggestion {
	v := m.session.View()
	var out []suggestion
	switch m.focused(v).kind {
	case slotWorkspace:
		for _, w := range composer.Filter(v.Workspaces, func(w tracker.Workspace) string { return w.Name }, m.workspace.Value()) {
			out = append(out, suggestion{id: w.GID, label: w.Name})
		}
	case slotProject:
		for _, p := range m.session.ProjectSuggestions(m.project.Value()) {
			out = append(out, suggestion{id: p.GID, label: p.Name})
		}
	case slotAssignee:
		for _, u := range m.session.UserSuggestions(m.assignee.Value()) {
			out = append(out, suggestion{id: u.GID, label: u.Name})
		}
	case slotTags:
		for _, t := range m.session.TagSuggestions(m.tags.Value()) {
			out = append(out, suggestion{id: t.GID, label: t.Name})
		}
	case slotTask:
		for _, t := range v.SearchResults {
			out = append(out, suggestion{id: t.GID, label: t.Name})
		}
	}
	return out
}

func workspaceName(list []tracker.Workspace, id string) string {
	for _, w := range list {
		if w.GID == id {
			return w.Name
		}
	}
	return ""
}

func projectName(list []tracker.Project, id string) string {
	for _, p := range list {
		if p.GID == id {
			return p.Name
		}
	}
	return ""
}

// View renders the composer dialog.
func (m Model) View() string {
	v := m.session.View()
	tr := m.session.Translator()
	cur := m.focused(v)

	var b strings.Builder

	title := tr.T("label_mode_create", nil)
	if v.Draft.Mode == model.ModeLinkExisting {
		title = tr.T("label_mode_link", nil)
	}
	b.WriteString(theme.TitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render(v.Email.Subject))
	b.WriteString("\n")
	for _, msg := range v.Thread {
		if msg.Expanded {
			continue
		}
		for _, a := range msg.Attachments {
			if a.IsPlaceholder {
				b.WriteString(theme.DimmedStyle.Render(tr.T("label_collapsed", map[string]any{"Hint": a.Name})))
				b.WriteString("\n")
			}
		}
	}
	b.WriteString("\n")

	for _, s := range m.slots(v) {
		focused := s == cur
		b.WriteString(m.renderSlot(s, v, focused))
		b.WriteString("\n")
		if focused {
			b.WriteString(m.renderSuggestions(v))
		}
	}

	if v.Status.Text != "" {
		b.WriteString("\n")
		line := v.Status.Text
		if v.Status.Link != "" {
			line += "  " + v.Status.Link
		}
		b.WriteString(theme.StatusStyle(v.Status.Kind.String()).Render(line))
		b.WriteString("\n")
	}

	return theme.ModalStyle.Width(m.width).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderSlot(s slot, v composer.View, focused bool) string {
	tr := m.session.Translator()
	label := func(text string) string {
		if focused {
			return theme.FocusedLabelStyle.Render(text)
		}
		return theme.LabelStyle.Render(text)
	}
	check := func(on bool) string {
		if on {
			return "[x] "
		}
		return "[ ] "
	}

	switch s.kind {
	case slotMode:
		create, link := tr.T("label_mode_create", nil), tr.T("label_mode_link", nil)
		if v.Draft.Mode == model.ModeLinkExisting {
			link = theme.SelectedItemStyle.Render(link)
		} else {
			create = theme.SelectedItemStyle.Render(create)
		}
		return label("") + lipgloss.JoinHorizontal(lipgloss.Top, create, "  ", link)
	case slotWorkspace:
		return label(tr.T("label_workspace", nil)) + m.workspace.View()
	case slotProject:
		return label(tr.T("label_project", nil)) + m.project.View()
	case slotName:
		return label(tr.T("label_name", nil)) + m.name.View()
	case slotAssignee:
		return label(tr.T("label_assignee", nil)) + m.assignee.View()
	case slotDue:
		return label(tr.T("label_due", nil)) + m.due.View()
	case slotTags:
		var chips []string
		for _, id := range v.Draft.TagIDs {
			chips = append(chips, theme.ChipStyle.Render(tagName(v.Tags, id)))
		}
		return label(tr.T("label_tags", nil)) + strings.Join(chips, "") + m.tags.View()
	case slotField:
		f := v.Fields[s.idx]
		line := label(f.Name)
		if s.idx < len(m.fields) {
			line += m.fields[s.idx].View()
		}
		if e := m.fieldErr[f.ID]; e != "" {
			line += "  " + theme.StatusStyle("error").Render(e)
		}
		return line
	case slotTask:
		return label(tr.T("label_task", nil)) + m.task.View()
	case slotToggle:
		on, id := false, ""
		switch s.idx {
		case toggleBody:
			on, id = v.Draft.IncludeBody, "label_include_body"
		case toggleLink:
			on, id = v.Draft.IncludeLink, "label_include_link"
		case toggleOriginal:
			on, id = v.Draft.IncludeOriginal, "label_include_original"
		case toggleLabel:
			on, id = v.Draft.ApplyLabel, "label_apply_label"
		}
		return label("") + check(on) + tr.T(id, nil)
	case slotAttachment:
		a := v.Email.Attachments[s.idx]
		selected := slices.Contains(v.Draft.Attachments, s.idx)
		text := a.Name
		if a.Size != "" {
			text += " (" + a.Size + ")"
		}
		return label(tr.T("label_attachments", nil)) + check(selected) + text
	case slotSubmit:
		text := tr.T("label_mode_create", nil)
		if v.Draft.Mode == model.ModeLinkExisting {
			text = tr.T("label_mode_link", nil)
		}
		if focused {
			return label("") + theme.FocusedButtonStyle.Render(text)
		}
		return label("") + theme.ButtonStyle.Render(text)
	}
	return ""
}

func (m Model) renderSuggestions(v composer.View) string {
	cur := m.focused(v)
	var query string
	if in := (&m).input(cur); in != nil {
		query = in.Value()
	}
	list := m.suggestions()
	if len(list) == 0 {
		return ""
	}

	var b strings.Builder
	for i, sg := range list {
		if i == maxSuggestions {
			b.WriteString(theme.HelpStyle.Render(fmt.Sprintf("  … %d more", len(list)-maxSuggestions)))
			b.WriteString("\n")
			break
		}
		var parts []string
		for _, span := range composer.Highlight(sg.label, query) {
			if span.Match {
				parts = append(parts, theme.MatchStyle.Render(span.Text))
			} else {
				parts = append(parts, span.Text)
			}
		}
		row := strings.Join(parts, "")
		if i == m.cursor.Index() {
			b.WriteString(theme.SelectedItemStyle.Render(row))
		} else {
			b.WriteString(theme.ListItemStyle.Render(row))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func tagName(list []tracker.Tag, id string) string {
	for _, t := range list {
		if t.GID == id {
			return t.Name
		}
	}
	return id
}
