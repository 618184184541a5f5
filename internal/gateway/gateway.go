// Package gateway is the only component that holds the tracker access
// token. Other components talk to it through a closed set of typed
// messages and never see the credential.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nhle/mailtask/internal/credential"
	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/store"
	"github.com/nhle/mailtask/internal/tracker"
)

// API is the tracker surface the gateway relays to.
type API interface {
	Me(ctx context.Context) (*tracker.User, error)
	Workspaces(ctx context.Context) ([]tracker.Workspace, error)
	Projects(ctx context.Context, workspaceID string) ([]tracker.Project, error)
	Users(ctx context.Context, workspaceID string) ([]tracker.User, error)
	Tags(ctx context.Context, workspaceID string) ([]tracker.Tag, error)
	SearchTasks(ctx context.Context, workspaceID, query string) ([]tracker.Task, error)
	CustomFieldSettings(ctx context.Context, projectID string) ([]tracker.CustomFieldSetting, error)
	CreateTask(ctx context.Context, in tracker.TaskInput) (*tracker.Task, error)
	GetTask(ctx context.Context, taskID string) (*tracker.Task, error)
	AddComment(ctx context.Context, taskID, htmlText string) (*tracker.Story, error)
	UploadAttachment(ctx context.Context, taskID, name, contentType string, data []byte) (*tracker.Attachment, error)
	UploadAttachmentFromURL(ctx context.Context, taskID, rawURL, name string) (*tracker.Attachment, error)
}

// TokenSource yields the access token; credential.Store implements it.
type TokenSource interface {
	Token() (string, error)
}

// Config wires a Gateway.
type Config struct {
	Tokens   TokenSource
	NewAPI   func(token string) API
	Store    store.Store
	Notifier Notifier
	Identity string
	Logger   *slog.Logger
	Metrics  *Metrics
}

// Gateway dispatches messages to handlers.
type Gateway struct {
	tokens   TokenSource
	newAPI   func(token string) API
	store    store.Store
	notifier Notifier
	identity string
	logger   *slog.Logger
	metrics  *Metrics
	calls    chan call
	handlers map[Kind]handler
}

type handler struct {
	fn func(g *Gateway, ctx context.Context, payload json.RawMessage) (any, error)
	// stateful handlers touch the shared store and run on the Serve
	// goroutine; the rest only call out to the network.
	stateful bool
}

// New creates a gateway from cfg.
func New(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{Logger: cfg.Logger}
	}
	g := &Gateway{
		tokens:   cfg.Tokens,
		newAPI:   cfg.NewAPI,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		identity: cfg.Identity,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		calls:    make(chan call),
	}
	g.handlers = map[Kind]handler{
		KindCheckSession:            {fn: (*Gateway).checkSession},
		KindListWorkspaces:          {fn: (*Gateway).listWorkspaces},
		KindListProjects:            {fn: (*Gateway).listProjects},
		KindListUsers:               {fn: (*Gateway).listUsers},
		KindListTags:                {fn: (*Gateway).listTags},
		KindCreateTask:              {fn: (*Gateway).createTask},
		KindAddComment:              {fn: (*Gateway).addComment},
		KindUploadAttachment:        {fn: (*Gateway).uploadAttachment},
		KindUploadAttachmentFromURL: {fn: (*Gateway).uploadAttachmentFromURL},
		KindGetCustomFields:         {fn: (*Gateway).getCustomFields},
		KindGetTask:                 {fn: (*Gateway).getTask},
		KindSearchTasks:             {fn: (*Gateway).searchTasks},
		KindShowNotification:        {fn: (*Gateway).showNotification, stateful: true},
		KindNotificationClicked:     {fn: (*Gateway).notificationClicked, stateful: true},
		KindGetPreferences:          {fn: (*Gateway).getPreferences, stateful: true},
		KindSavePreferences:         {fn: (*Gateway).savePreferences, stateful: true},
	}
	return g
}

// Known reports whether kind belongs to the closed message set.
func (g *Gateway) Known(kind Kind) bool {
	_, ok := g.handlers[kind]
	return ok
}

// Handle runs one request to completion. It never panics and never
// returns a Go error: failures are carried in Response.Error.
func (g *Gateway) Handle(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	resp.ID = req.ID
	logger := logging.WithOperation(g.logger, "gateway.handle").With(logging.Kind(string(req.Kind)))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", slog.Any("panic", r))
			resp = Response{ID: req.ID, Error: fmt.Sprintf("internal error handling %s", req.Kind)}
		}
		status := logging.StatusSuccess
		if resp.Error != "" {
			status = logging.StatusError
		}
		g.metrics.observe(req.Kind, status, time.Since(start).Seconds())
	}()

	h, ok := g.handlers[req.Kind]
	if !ok {
		err := &ErrUnknownKind{Kind: req.Kind}
		logger.Warn("rejected message", logging.Err(err))
		resp.Error = err.Error()
		return resp
	}

	data, err := h.fn(g, ctx, req.Payload)
	if err != nil {
		logger.Warn("message failed", logging.Err(err))
		resp.Error = err.Error()
		resp.NeedsSetup = tracker.IsConfigError(err) || tracker.IsUnauthorized(err)
		return resp
	}

	raw, err := json.Marshal(data)
	if err != nil {
		resp.Error = fmt.Sprintf("encoding %s result: %v", req.Kind, err)
		return resp
	}
	resp.Data = raw
	logger.Debug("message handled", logging.Status(logging.StatusSuccess))
	return resp
}

type call struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

// Serve processes queued requests until ctx is cancelled. Stateful
// messages run one at a time on this goroutine; network messages are
// handed to their own goroutine so a slow upload does not stall lookups.
func (g *Gateway) Serve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-g.calls:
			if h, ok := g.handlers[c.req.Kind]; ok && !h.stateful {
				go func() { c.reply <- g.Handle(c.ctx, c.req) }()
				continue
			}
			c.reply <- g.Handle(c.ctx, c.req)
		}
	}
}

// Send queues req for Serve and waits for its response.
func (g *Gateway) Send(ctx context.Context, req Request) Response {
	c := call{ctx: ctx, req: req, reply: make(chan Response, 1)}
	select {
	case g.calls <- c:
	case <-ctx.Done():
		return Response{ID: req.ID, Error: ctx.Err().Error()}
	}
	select {
	case resp := <-c.reply:
		return resp
	case <-ctx.Done():
		return Response{ID: req.ID, Error: ctx.Err().Error()}
	}
}

// api builds a tracker client from the stored token.
func (g *Gateway) api() (API, error) {
	if g.tokens == nil || g.newAPI == nil {
		return nil, tracker.ErrNoToken
	}
	token, err := g.tokens.Token()
	if errors.Is(err, credential.ErrNotFound) || (err == nil && token == "") {
		return nil, tracker.ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading access token: %w", err)
	}
	return g.newAPI(token), nil
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("invalid payload: %w", err)
	}
	return v, nil
}

func requireField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func (g *Gateway) checkSession(ctx context.Context, _ json.RawMessage) (any, error) {
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	u, err := api.Me(ctx)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("session ok", logging.UserHash(u.Email))
	return Session{Authenticated: true, User: u}, nil
}

func (g *Gateway) listWorkspaces(ctx context.Context, _ json.RawMessage) (any, error) {
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	return api.Workspaces(ctx)
}

func (g *Gateway) listProjects(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[WorkspaceParams](payload)
	if err != nil {
		return nil, err
	}
	if err := requireField("workspaceId", p.WorkspaceID); err != nil {
		return nil, err
	}
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	return api.Projects(ctx, p.WorkspaceID)
}

func (g *Gateway) listUsers(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[WorkspaceParams](payload)
	if err != nil {
		return nil, err
	}
	if err := requireField("workspaceId", p.WorkspaceID); err != nil {
		return nil, err
	}
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	return api.Users(ctx, p.WorkspaceID)
}

func (g *Gateway) listTags(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[WorkspaceParams](payload)
	if err != nil {
		return nil, err
	}
	if err := requireField("workspaceId", p.WorkspaceID); err != nil {
		return nil, err
	}
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	return api.Tags(ctx, p.WorkspaceID)
}

func (g *Gateway) createTask(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[tracker.TaskInput](payload)
	if err != nil {
		return nil, err
	}
	if err := requireField("name", in.Name); err != nil {
		return nil, err
	}
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	return api.CreateTask(ctx, in)
}

func (g *Gateway) addComment(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[CommentParams](payload)
	if err != nil {
		return nil, err
	}
	if err := requireField("taskId", p.TaskID); err != nil {
		return nil, err
	}
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	return api.AddComment(ctx, p.TaskID, p.HTMLText)
}

func (g *Gateway) uploadAttachment(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[UploadParams](payload)
	if err != nil {
		return nil, err
	}
	if err := requireField("taskId", p.TaskID); err != nil {
		return nil, err
	}
	data, err := decodeBase64(p.Base64)
	if err != nil {
		return nil, fmt.Errorf("decoding attachment %s: %w", p.Name, err)
	}
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	a, err := api.UploadAttachment(ctx, p.TaskID, p.Name, p.ContentType, data)
	if err != nil {
		return nil, err
	}
	g.metrics.addUploaded(len(data))
	return a, nil
}

// decodeBase64 accepts a bare payload or a data: URL.
func decodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ";base64,"); i >= 0 {
			s = s[i+len(";base64,"):]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}

func (g *Gateway) uploadAttachmentFromURL(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[UploadURLParams](payload)
	if err != nil {
		return nil, err
	}
	if err := requireField("taskId", p.TaskID); err != nil {
		return nil, err
	}
	if err := requireField("url", p.URL); err != nil {
		return nil, err
	}
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	return api.UploadAttachmentFromURL(ctx, p.TaskID, p.URL, p.Name)
}

func (g *Gateway) getCustomFields(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[ProjectParams](payload)
	if err != nil {
		return nil, err
	}
	if err := requireField("projectId", p.ProjectID); err != nil {
		return nil, err
	}
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	return api.CustomFieldSettings(ctx, p.ProjectID)
}

func (g *Gateway) getTask(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[TaskParams](payload)
	if err != nil {
		return nil, err
	}
	if err := requireField("taskId", p.TaskID); err != nil {
		return nil, err
	}
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	return api.GetTask(ctx, p.TaskID)
}

func (g *Gateway) searchTasks(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[SearchParams](payload)
	if err != nil {
		return nil, err
	}
	if err := requireField("workspaceId", p.WorkspaceID); err != nil {
		return nil, err
	}
	api, err := g.api()
	if err != nil {
		return nil, err
	}
	return api.SearchTasks(ctx, p.WorkspaceID, p.Query)
}

func (g *Gateway) showNotification(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[NotificationParams](payload)
	if err != nil {
		return nil, err
	}
	n := model.Notification{Title: p.Title, Message: p.Message, Link: p.Link, CreatedAt: time.Now()}
	if g.store != nil && p.Link != "" {
		id, err := g.store.CreateNotification(ctx, n)
		if err != nil {
			return nil, err
		}
		n.ID = id
	}
	if err := g.notifier.Notify(ctx, n); err != nil {
		return nil, fmt.Errorf("showing notification: %w", err)
	}
	return NotificationRef{NotificationID: n.ID}, nil
}

func (g *Gateway) notificationClicked(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[NotificationRef](payload)
	if err != nil {
		return nil, err
	}
	if g.store == nil {
		return ClickResult{}, nil
	}
	link, err := g.store.TakeNotificationLink(ctx, p.NotificationID)
	if errors.Is(err, store.ErrNotFound) {
		return ClickResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ClickResult{Link: link}, nil
}

func (g *Gateway) getPreferences(ctx context.Context, _ json.RawMessage) (any, error) {
	if g.store == nil {
		return model.DefaultPreferences(), nil
	}
	return g.store.GetPreferences(ctx, g.identity)
}

func (g *Gateway) savePreferences(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[PreferencesParams](payload)
	if err != nil {
		return nil, err
	}
	if g.store == nil {
		return nil, errors.New("no preference store configured")
	}
	if err := g.store.SavePreferences(ctx, g.identity, p.Preferences); err != nil {
		return nil, err
	}
	return p.Preferences, nil
}
