package composer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/dom"
	"github.com/nhle/mailtask/internal/gateway"
	"github.com/nhle/mailtask/internal/host"
	"github.com/nhle/mailtask/internal/i18n"
	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/mailbox"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/tracker"
)

type fakeBackend struct {
	mu gosync.Mutex

	prefs      model.Preferences
	workspaces []tracker.Workspace
	projects   map[string][]tracker.Project
	tags       map[string][]tracker.Tag
	fields     map[string][]tracker.CustomFieldSetting
	search     []tracker.Task
	listErr    error

	calls    []string
	created  []tracker.TaskInput
	comments map[string]string
	uploads  []string
	payloads []string
	notified []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		prefs:      model.DefaultPreferences(),
		workspaces: []tracker.Workspace{{GID: "W1", Name: "Acme"}},
		projects: map[string][]tracker.Project{
			"W1": {{GID: "P1", Name: "Ops"}, {GID: "P2", Name: "Billing"}, {GID: "P0", Name: "Old", Archived: true}},
			"W2": {{GID: "P1", Name: "Other ops"}, {GID: "P3", Name: "Sales"}},
		},
		tags: map[string][]tracker.Tag{
			"W1": {{GID: "G1", Name: "urgent"}, {GID: "G2", Name: "finance"}, {GID: "G3", Name: "later"}},
		},
		fields: map[string][]tracker.CustomFieldSetting{
			"P1": {
				{CustomField: tracker.CustomField{GID: "F1", Name: "Cost", Type: "number"}},
				{CustomField: tracker.CustomField{GID: "F2", Name: "Who", Type: "people"}},
				{CustomField: tracker.CustomField{GID: "F3", Name: "Stage", Type: "enum", EnumOptions: []tracker.EnumOption{
					{GID: "E1", Name: "New", Enabled: true},
					{GID: "E2", Name: "Gone", Enabled: false},
				}}},
			},
		},
		comments: map[string]string{},
	}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) GetPreferences(context.Context) (model.Preferences, error) {
	f.record("getPreferences")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs, nil
}

func (f *fakeBackend) SavePreferences(_ context.Context, p model.Preferences) error {
	f.record("savePreferences")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs = p
	return nil
}

func (f *fakeBackend) ListWorkspaces(context.Context) ([]tracker.Workspace, error) {
	f.record("listWorkspaces")
	return f.workspaces, f.listErr
}

func (f *fakeBackend) ListProjects(_ context.Context, ws string) ([]tracker.Project, error) {
	f.record("listProjects")
	return f.projects[ws], nil
}

func (f *fakeBackend) ListUsers(context.Context, string) ([]tracker.User, error) {
	f.record("listUsers")
	return []tracker.User{{GID: "U1", Name: "Nam", Email: "n@x.com"}}, nil
}

func (f *fakeBackend) ListTags(_ context.Context, ws string) ([]tracker.Tag, error) {
	f.record("listTags")
	return f.tags[ws], nil
}

func (f *fakeBackend) GetCustomFields(_ context.Context, p string) ([]tracker.CustomFieldSetting, error) {
	f.record("getCustomFields")
	return f.fields[p], nil
}

func (f *fakeBackend) SearchTasks(_ context.Context, _, q string) ([]tracker.Task, error) {
	f.record("searchTasks:" + q)
	return f.search, nil
}

func (f *fakeBackend) GetTask(_ context.Context, id string) (tracker.Task, error) {
	f.record("getTask")
	return tracker.Task{GID: id, Name: "Existing", PermalinkURL: "https://app.example/" + id}, nil
}

func (f *fakeBackend) CreateTask(_ context.Context, in tracker.TaskInput) (tracker.Task, error) {
	f.record("createTask")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return tracker.Task{GID: "T1", Name: in.Name, PermalinkURL: "https://app.example/T1"}, nil
}

func (f *fakeBackend) AddComment(_ context.Context, id, text string) error {
	f.record("addComment")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[id] = text
	return nil
}

func (f *fakeBackend) UploadAttachment(_ context.Context, taskID, name, _ string, data []byte) error {
	f.record("uploadAttachment")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, taskID+"/"+name)
	f.payloads = append(f.payloads, string(data))
	return nil
}

func (f *fakeBackend) ShowNotification(_ context.Context, title, _, link string) (string, error) {
	f.record("showNotification")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, title+" "+link)
	return "N1", nil
}

func emptyPage(t *testing.T) *host.Live {
	t.Helper()
	root, err := html.Parse(strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)
	return host.NewLive(root, "https://mail.example/", nil)
}

func newTestSession(t *testing.T, b *fakeBackend, page host.Page, email model.EmailContext) *Session {
	t.Helper()
	s := New(Deps{
		Backend:    b,
		Page:       page,
		Translator: i18n.New("en"),
		Timing:     model.TimingConfig{AutoCloseMs: 2500, ExpandSettleMs: 800},
		Logger:     logging.Discard(),
	}, email, nil, nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

var invoiceEmail = model.EmailContext{
	Subject:  "Invoice #42",
	Sender:   "a@x.com",
	Body:     "Please pay",
	EmailURL: "https://mail.example/#inbox/abc",
}

func TestOpenPicksSoleWorkspaceAndSkipsArchivedProjects(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)

	require.NoError(t, s.Open(context.Background()))

	v := s.View()
	assert.Equal(t, StateReady, v.State)
	assert.Equal(t, "W1", v.Draft.WorkspaceID)
	assert.Equal(t, "Invoice #42", v.Draft.Name)
	assert.Len(t, v.Projects, 2)
	assert.Empty(t, v.Draft.ProjectID, "two projects and no preference means no pick")
}

func TestPickWorkspacePriority(t *testing.T) {
	list := []tracker.Workspace{{GID: "W1"}, {GID: "W2"}}
	tests := []struct {
		name  string
		prefs model.Preferences
		list  []tracker.Workspace
		want  string
	}{
		{"default wins", model.Preferences{DefaultWorkspace: "W2", LastWorkspace: "W1"}, list, "W2"},
		{"last used", model.Preferences{LastWorkspace: "W1"}, list, "W1"},
		{"stale default falls through", model.Preferences{DefaultWorkspace: "W9", LastWorkspace: "W2"}, list, "W2"},
		{"sole", model.Preferences{}, list[:1], "W1"},
		{"none", model.Preferences{}, list, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pickWorkspace(tt.prefs, tt.list))
		})
	}
}

func TestOpenAppliesDefaultProject(t *testing.T) {
	b := newFakeBackend()
	b.prefs.DefaultWorkspace = "W1"
	b.prefs.DefaultProject = "P2"
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)

	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, "P2", s.View().Draft.ProjectID)
}

func TestSelectProjectPersistsAndFiltersFields(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))

	require.NoError(t, s.SelectProject(ctx, "P1"))

	assert.Equal(t, "P1", b.prefs.LastProject)
	assert.Equal(t, "W1", b.prefs.LastWorkspace)

	v := s.View()
	require.Len(t, v.Fields, 2, "people fields are not rendered")
	assert.Equal(t, "F1", v.Fields[0].ID)
	require.Len(t, v.Fields[1].Options, 1, "disabled enum options are hidden")

	assert.Error(t, s.SelectProject(ctx, "P0"), "archived project is not selectable")
}

func TestWorkspaceSwitchClearsStaleSelections(t *testing.T) {
	b := newFakeBackend()
	b.workspaces = append(b.workspaces, tracker.Workspace{GID: "W2", Name: "Other"})
	b.prefs.DefaultWorkspace = "W1"
	b.projects["W2"] = []tracker.Project{{GID: "P1", Name: "Other ops"}}
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))

	require.NoError(t, s.SelectProject(ctx, "P1"))
	s.AddTag("G1")
	require.NoError(t, s.SetCustomField("F1", "12.5"))
	s.SelectExistingTask(tracker.Task{GID: "T9"})

	require.NoError(t, s.SelectWorkspace(ctx, "W2"))

	v := s.View()
	assert.Equal(t, "W2", v.Draft.WorkspaceID)
	assert.Empty(t, v.Draft.ProjectID, "W2 only has a P1 of its own, which must not be picked")
	assert.Equal(t, "W1", b.prefs.LastWorkspace, "nothing in W2 was remembered")
	assert.Empty(t, v.Draft.TagIDs)
	assert.Empty(t, v.Draft.CustomFields)
	assert.Empty(t, v.Draft.ExistingTaskID)
	assert.Empty(t, v.Fields)
}

func TestSubmitCreateTask(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.SelectProject(ctx, "P1"))
	s.Edit(func(d *model.TaskDraft) {
		d.Name = "Invoice #42"
		d.IncludeBody = true
		d.IncludeLink = true
	})

	res, err := s.Submit(ctx)
	require.NoError(t, err)

	require.Len(t, b.created, 1)
	in := b.created[0]
	assert.Equal(t, "Invoice #42", in.Name)
	assert.Equal(t, []string{"P1"}, in.Projects)
	assert.Contains(t, in.HTMLNotes, "https://mail.example/#inbox/abc")
	assert.Contains(t, in.HTMLNotes, "<blockquote>Please pay</blockquote>")

	assert.Equal(t, "T1", res.TaskID)
	assert.Empty(t, res.Failures)
	v := s.View()
	assert.Equal(t, StatusSuccess, v.Status.Kind)
	assert.Equal(t, "https://app.example/T1", v.Status.Link)
	assert.Equal(t, []string{"Task created https://app.example/T1"}, b.notified)
}

func TestSubmitLinkExistingNeedsNoProject(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))

	s.SetMode(model.ModeLinkExisting)
	s.Edit(func(d *model.TaskDraft) { d.ExistingTaskID = "T9" })

	res, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.Contains(t, b.comments, "T9")
	assert.Empty(t, b.created)
	assert.Equal(t, "https://app.example/T9", res.Link)
}

func TestSubmitMissingProjectMakesNoNetworkCall(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)
	require.NoError(t, s.Open(context.Background()))
	s.Edit(func(d *model.TaskDraft) { d.Name = "X" })

	before := b.callCount()
	_, err := s.Submit(context.Background())

	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, before, b.callCount())
	v := s.View()
	assert.Equal(t, StatusError, v.Status.Kind)
	assert.Equal(t, "Select a project", v.Status.Text)
	assert.Equal(t, StateReady, v.State)
}

func TestSubmitReportsPartialAttachmentFailure(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, "%PDF")
	}))
	defer files.Close()

	session, err := host.NewSession(files.URL, "SID=abc")
	require.NoError(t, err)
	page := emptyPage(t)
	page.SetSession(session)

	email := invoiceEmail
	email.Attachments = []model.Attachment{
		{Name: "invoice.pdf", URL: model.StringRef(files.URL + "/att/invoice")},
		{Name: "receipt.png", URL: model.StringRef(files.URL + "/att/missing")},
		{Name: "1 attachment", IsPlaceholder: true},
	}

	b := newFakeBackend()
	s := newTestSession(t, b, page, email)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.SelectProject(ctx, "P1"))
	assert.Equal(t, []int{0, 1}, s.View().Draft.Attachments)

	res, err := s.Submit(ctx)
	require.NoError(t, err, "the task was created")

	assert.Equal(t, []string{"T1/invoice.pdf"}, b.uploads)
	require.Len(t, res.Failed(StepAttachment), 1)
	assert.Equal(t, "receipt.png", res.Failures[0].Name)
	v := s.View()
	assert.Equal(t, StatusSuccess, v.Status.Kind)
	assert.Contains(t, v.Status.Text, "1 attachment could not be attached")
}

func TestSameNamedAttachmentsUploadTheirOwnFiles(t *testing.T) {
	var (
		mu     gosync.Mutex
		served []string
	)
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		served = append(served, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, strings.TrimPrefix(r.URL.Path, "/"))
	}))
	defer files.Close()

	session, err := host.NewSession(files.URL, "SID=abc")
	require.NoError(t, err)
	page := emptyPage(t)
	page.SetSession(session)

	email := invoiceEmail
	email.Attachments = []model.Attachment{
		{Name: "invoice.pdf", URL: model.StringRef(files.URL + "/msg1/invoice")},
		{Name: "invoice.pdf", URL: model.StringRef(files.URL + "/msg2/invoice")},
	}

	b := newFakeBackend()
	s := newTestSession(t, b, page, email)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.SelectProject(ctx, "P1"))
	require.Equal(t, []int{0, 1}, s.View().Draft.Attachments)

	s.ToggleAttachment(0)
	assert.Equal(t, []int{1}, s.View().Draft.Attachments, "only the first invoice is deselected")
	s.ToggleAttachment(0)
	assert.Equal(t, []int{0, 1}, s.View().Draft.Attachments)

	_, err = s.Submit(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"/msg1/invoice", "/msg2/invoice"}, served)
	assert.Equal(t, []string{"T1/invoice.pdf", "T1/invoice.pdf"}, b.uploads)
	assert.Equal(t, []string{"msg1/invoice", "msg2/invoice"}, b.payloads)
}

func TestRemapSelectionFollowsAttachmentsAcrossRescans(t *testing.T) {
	first := model.Attachment{Name: "invoice.pdf", URL: model.StringRef("/msg1/invoice")}
	second := model.Attachment{Name: "invoice.pdf", URL: model.StringRef("/msg2/invoice")}
	extra := model.Attachment{Name: "budget.xlsx", URL: model.StringRef("/msg0/budget")}

	prev := []model.Attachment{first, second}
	next := []model.Attachment{extra, first, second}

	assert.Equal(t, []int{2}, remapSelection(prev, next, []int{1}))
	assert.Equal(t, []int{1, 2}, remapSelection(prev, next, []int{0, 1}))
	assert.Empty(t, remapSelection(prev, []model.Attachment{extra}, []int{0, 1}), "vanished attachments are dropped")
	assert.Empty(t, remapSelection(prev, next, []int{5}))
}

type failingLabeler struct{ called bool }

func (l *failingLabeler) Apply(context.Context, mailbox.Target) error {
	l.called = true
	return errors.New("imap down")
}

func TestLabelFailureDoesNotBlockSubmission(t *testing.T) {
	b := newFakeBackend()
	labeler := &failingLabeler{}
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)
	s.deps.Labeler = labeler
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.SelectProject(ctx, "P1"))
	s.Edit(func(d *model.TaskDraft) { d.ApplyLabel = true })

	res, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, labeler.called)
	require.Len(t, res.Failed(StepLabel), 1)
	assert.Contains(t, s.View().Status.Text, "The label could not be applied")
}

func TestMissingCredentialShowsSetupPrompt(t *testing.T) {
	b := newFakeBackend()
	b.listErr = &gateway.RemoteError{Message: "configuration error", NeedsSetup: true}
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)

	err := s.Open(context.Background())
	require.Error(t, err)
	v := s.View()
	assert.Equal(t, StatusSetup, v.Status.Kind)
	assert.Contains(t, v.Status.Text, "mailtask login")
	assert.Equal(t, StateReady, v.State)
}

func TestSetModeKeepsBothSides(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.SelectProject(ctx, "P1"))
	s.SelectExistingTask(tracker.Task{GID: "T9"})

	s.SetMode(model.ModeLinkExisting)
	s.SetMode(model.ModeCreate)

	v := s.View()
	assert.Equal(t, "P1", v.Draft.ProjectID)
	assert.Equal(t, "T9", v.Draft.ExistingTaskID)
}

func TestSearchNeedsMinimumLengthAndLatestSequence(t *testing.T) {
	b := newFakeBackend()
	b.search = []tracker.Task{{GID: "T9", Name: "Invoice follow-up"}}
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))

	seq := s.QueueSearch()
	require.NoError(t, s.RunSearch(ctx, seq, "in"))
	assert.Empty(t, s.View().SearchResults)

	stale := s.QueueSearch()
	latest := s.QueueSearch()
	require.NoError(t, s.RunSearch(ctx, stale, "invo"))
	require.NoError(t, s.RunSearch(ctx, latest, "invoice"))

	assert.NotContains(t, b.calls, "searchTasks:invo")
	assert.Contains(t, b.calls, "searchTasks:invoice")
	assert.Len(t, s.View().SearchResults, 1)
}

func TestTagSuggestionsExcludeSelected(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)
	require.NoError(t, s.Open(context.Background()))

	s.AddTag("G1")
	s.AddTag("G1")
	got := s.TagSuggestions("")
	require.Len(t, got, 2)
	assert.Equal(t, "G2", got[0].GID)
	assert.Equal(t, []string{"G1"}, s.View().Draft.TagIDs)

	s.RemoveTag("G1")
	assert.Len(t, s.TagSuggestions("ur"), 1)
}

func TestSetCustomFieldParsesByType(t *testing.T) {
	b := newFakeBackend()
	s := newTestSession(t, b, emptyPage(t), invoiceEmail)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.SelectProject(ctx, "P1"))

	assert.Error(t, s.SetCustomField("F1", "lots"))
	require.NoError(t, s.SetCustomField("F1", "3"))
	require.NoError(t, s.SetCustomField("F3", "new"))
	assert.Error(t, s.SetCustomField("F3", "Gone"))

	v := s.View()
	assert.Equal(t, 3.0, v.Draft.CustomFields["F1"].Number)
	assert.Equal(t, "E1", v.Draft.CustomFields["F3"].EnumID)

	require.NoError(t, s.SetCustomField("F1", ""))
	assert.NotContains(t, s.View().Draft.CustomFields, "F1")
}

func TestCloseAfterHonorsAutoClose(t *testing.T) {
	s := newTestSession(t, newFakeBackend(), emptyPage(t), invoiceEmail)
	require.NoError(t, s.Open(context.Background()))

	require.NoError(t, s.CloseAfter(context.Background(), &Result{AutoClose: false}))
	assert.Equal(t, StateReady, s.State())

	d, ok := s.AutoCloseDelay(&Result{AutoClose: true})
	assert.True(t, ok)
	assert.Equal(t, 2500*time.Millisecond, d)

	require.NoError(t, s.CloseAfter(context.Background(), &Result{AutoClose: true}))
	assert.Equal(t, StateClosed, s.State())
}

const collapsedThread = `<html><body><div role="main">
<h2 class="hP">Budget</h2>
<div class="kv" data-legacy-message-id="m1">
  <span class="zF" email="c@z.com" name="Cy">Cy</span><span class="aZi">1 attachment</span>
</div>
<div class="adn ads" data-message-id="#msg-f:m2">
  <span class="gD" email="d@z.com" name="Di">Di</span>
  <div class="a3s aiL">Latest</div>
</div>
</div></body></html>`

func TestExpandAllAndRescan(t *testing.T) {
	root, err := html.Parse(strings.NewReader(collapsedThread))
	require.NoError(t, err)
	page := host.NewLive(root, "https://mail.example/", nil)

	// The host renders the collapsed message when its row is clicked.
	page.SetClickHandler(func(doc *goquery.Document, n *html.Node) host.Mutation {
		row := doc.FindNodes(n)
		if !row.Is("div.kv") {
			return host.Mutation{}
		}
		row.SetAttr("class", "adn ads")
		row.AppendHtml(`<div class="a3s aiL">Budget attached</div>` +
			`<div class="aQH"><span class="aZo"><span class="aV3">budget.xlsx</span>` +
			`<a class="aQy" href="/att/budget">download</a></span></div>`)
		return host.Mutation{Added: 1}
	})

	var (
		thread []model.ThreadMessage
		email  model.EmailContext
	)
	page.Read(func(doc *goquery.Document) {
		thread = dom.ScanThread(doc)
		email = dom.ExtractActiveContext(doc, nil)
	})
	require.Len(t, thread, 2)
	require.False(t, thread[0].Expanded)

	b := newFakeBackend()
	s := New(Deps{Backend: b, Page: page, Logger: logging.Discard()}, email, thread, nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	require.NoError(t, s.Open(context.Background()))

	require.NoError(t, s.ExpandAllAndRescan(context.Background()))

	v := s.View()
	require.Len(t, v.Thread, 2)
	assert.True(t, v.Thread[0].Expanded)
	names := []string{}
	for _, a := range v.Email.Attachments {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"budget.xlsx"}, names)
	assert.Len(t, page.PendingCommands(), 1)
}

func TestExpandWithNothingCollapsedIsNotAnError(t *testing.T) {
	s := newTestSession(t, newFakeBackend(), emptyPage(t), invoiceEmail)
	require.NoError(t, s.Open(context.Background()))
	assert.NoError(t, s.ExpandAllAndRescan(context.Background()))
	assert.Empty(t, s.View().Thread)
}
