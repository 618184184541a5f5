package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/99designs/keyring"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailtask/internal/credential"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/tracker"
	"github.com/nhle/mailtask/tests/testutil"
)

type fakeAPI struct {
	token     string
	panicOnMe bool
	createErr error

	created  []tracker.TaskInput
	uploaded map[string][]byte
}

func (f *fakeAPI) Me(context.Context) (*tracker.User, error) {
	if f.panicOnMe {
		panic("boom")
	}
	return &tracker.User{GID: "u1", Name: "Nam", Email: "n@x.com"}, nil
}

func (f *fakeAPI) Workspaces(context.Context) ([]tracker.Workspace, error) {
	return []tracker.Workspace{{GID: "W1", Name: "Acme"}}, nil
}

func (f *fakeAPI) Projects(_ context.Context, ws string) ([]tracker.Project, error) {
	return []tracker.Project{{GID: "P1", Name: "Ops " + ws}}, nil
}

func (f *fakeAPI) Users(context.Context, string) ([]tracker.User, error) { return nil, nil }
func (f *fakeAPI) Tags(context.Context, string) ([]tracker.Tag, error)   { return nil, nil }

func (f *fakeAPI) SearchTasks(context.Context, string, string) ([]tracker.Task, error) {
	return nil, nil
}

func (f *fakeAPI) CustomFieldSettings(context.Context, string) ([]tracker.CustomFieldSetting, error) {
	return nil, nil
}

func (f *fakeAPI) CreateTask(_ context.Context, in tracker.TaskInput) (*tracker.Task, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &tracker.Task{GID: "T1", Name: in.Name, PermalinkURL: "https://app.example/T1"}, nil
}

func (f *fakeAPI) GetTask(_ context.Context, id string) (*tracker.Task, error) {
	return &tracker.Task{GID: id}, nil
}

func (f *fakeAPI) AddComment(context.Context, string, string) (*tracker.Story, error) {
	return &tracker.Story{GID: "S1"}, nil
}

func (f *fakeAPI) UploadAttachment(_ context.Context, _, name, _ string, data []byte) (*tracker.Attachment, error) {
	if f.uploaded == nil {
		f.uploaded = map[string][]byte{}
	}
	f.uploaded[name] = data
	return &tracker.Attachment{GID: "A1", Name: name}, nil
}

func (f *fakeAPI) UploadAttachmentFromURL(_ context.Context, _, _, name string) (*tracker.Attachment, error) {
	return &tracker.Attachment{GID: "A2", Name: name}, nil
}

func newTestGateway(t *testing.T, api *fakeAPI, token string) (*Gateway, *Metrics) {
	t.Helper()
	creds := credential.New(keyring.NewArrayKeyring(nil))
	if token != "" {
		require.NoError(t, creds.Set(credential.KeyAccessToken, token))
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	g := New(Config{
		Tokens: creds,
		NewAPI: func(tok string) API {
			api.token = tok
			return api
		},
		Store:    testutil.NewTestStore(t),
		Identity: "mailtask",
		Metrics:  metrics,
	})
	return g, metrics
}

func serve(t *testing.T, g *Gateway) *Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go g.Serve(ctx)
	return NewClient(g)
}

func TestUnknownKindIsRejected(t *testing.T) {
	g, _ := newTestGateway(t, &fakeAPI{}, "tok")

	resp := g.Handle(context.Background(), Request{ID: "r1", Kind: "deleteEverything"})
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, `unknown message kind "deleteEverything"`, resp.Error)
	assert.Nil(t, resp.Data)
	assert.False(t, g.Known("deleteEverything"))
	assert.True(t, g.Known(KindSearchTasks))
}

func TestMissingCredentialAsksForSetup(t *testing.T) {
	g, _ := newTestGateway(t, &fakeAPI{}, "")
	c := serve(t, g)

	_, err := c.ListWorkspaces(context.Background())
	require.Error(t, err)
	assert.True(t, NeedsSetup(err))
	assert.Contains(t, err.Error(), "mailtask login")
}

func TestHandlerPanicBecomesError(t *testing.T) {
	g, metrics := newTestGateway(t, &fakeAPI{panicOnMe: true}, "tok")

	resp := g.Handle(context.Background(), Request{Kind: KindCheckSession})
	assert.Equal(t, "internal error handling checkSession", resp.Error)
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.requests.WithLabelValues("checkSession", "error")))
}

func TestTokenNeverLeavesGateway(t *testing.T) {
	api := &fakeAPI{}
	g, _ := newTestGateway(t, api, "secret-token")
	c := serve(t, g)

	s, err := c.CheckSession(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "secret-token", api.token)

	resp := g.Handle(context.Background(), Request{Kind: KindCheckSession})
	assert.NotContains(t, string(resp.Data), "secret-token")
}

func TestUploadAttachmentDecodesBase64(t *testing.T) {
	api := &fakeAPI{}
	g, metrics := newTestGateway(t, api, "tok")
	c := serve(t, g)

	err := c.UploadAttachment(context.Background(), "T1", "invoice.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), api.uploaded["invoice.pdf"])
	assert.Equal(t, 4.0, promtest.ToFloat64(metrics.uploaded))
}

func TestUploadAcceptsDataURL(t *testing.T) {
	api := &fakeAPI{}
	g, _ := newTestGateway(t, api, "tok")

	payload, _ := json.Marshal(UploadParams{TaskID: "T1", Name: "a.txt", Base64: "data:text/plain;base64,aGk="})
	resp := g.Handle(context.Background(), Request{Kind: KindUploadAttachment, Payload: payload})
	require.Empty(t, resp.Error)
	assert.Equal(t, []byte("hi"), api.uploaded["a.txt"])
}

func TestAPIErrorMessageIsRelayed(t *testing.T) {
	api := &fakeAPI{createErr: &tracker.APIError{Status: 400, Message: "projects: Unknown object"}}
	g, _ := newTestGateway(t, api, "tok")
	c := serve(t, g)

	_, err := c.CreateTask(context.Background(), tracker.TaskInput{Name: "X", Projects: []string{"P?"}})
	require.Error(t, err)
	assert.Equal(t, "tracker API error (400): projects: Unknown object", err.Error())
	assert.False(t, NeedsSetup(err))
}

func TestNotificationLinkIsConsumedOnce(t *testing.T) {
	notes := NewChanNotifier(4)
	g, _ := newTestGateway(t, &fakeAPI{}, "tok")
	g.notifier = notes
	c := serve(t, g)
	ctx := context.Background()

	id, err := c.ShowNotification(ctx, "Task created", "Invoice #42", "https://app.example/T1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	shown := <-notes.C()
	assert.Equal(t, id, shown.ID)

	link, err := c.NotificationClicked(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example/T1", link)

	link, err = c.NotificationClicked(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, link)
}

func TestPreferencesRoundTrip(t *testing.T) {
	g, _ := newTestGateway(t, &fakeAPI{}, "")
	c := serve(t, g)
	ctx := context.Background()

	prefs, err := c.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(), prefs)

	prefs.DefaultWorkspace = "W1"
	require.NoError(t, c.SavePreferences(ctx, prefs))

	got, err := c.GetPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "W1", got.DefaultWorkspace)
}

func TestChanNotifierDropsOldest(t *testing.T) {
	n := NewChanNotifier(1)
	require.NoError(t, n.Notify(context.Background(), model.Notification{ID: "1"}))
	require.NoError(t, n.Notify(context.Background(), model.Notification{ID: "2"}))
	assert.Equal(t, "2", (<-n.C()).ID)
}
