// Package composer holds the state and orchestration of one task
// composer: destination selection, note assembly, submission, and the
// best-effort steps that follow it.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	gosync "sync"
	"time"

	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/gateway"
	"github.com/nhle/mailtask/internal/host"
	"github.com/nhle/mailtask/internal/i18n"
	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/mailbox"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/tracker"
)

// Backend is the gateway surface the composer uses. *gateway.Client
// implements it.
type Backend interface {
	GetPreferences(ctx context.Context) (model.Preferences, error)
	SavePreferences(ctx context.Context, prefs model.Preferences) error
	ListWorkspaces(ctx context.Context) ([]tracker.Workspace, error)
	ListProjects(ctx context.Context, workspaceID string) ([]tracker.Project, error)
	ListUsers(ctx context.Context, workspaceID string) ([]tracker.User, error)
	ListTags(ctx context.Context, workspaceID string) ([]tracker.Tag, error)
	GetCustomFields(ctx context.Context, projectID string) ([]tracker.CustomFieldSetting, error)
	SearchTasks(ctx context.Context, workspaceID, query string) ([]tracker.Task, error)
	GetTask(ctx context.Context, taskID string) (tracker.Task, error)
	CreateTask(ctx context.Context, in tracker.TaskInput) (tracker.Task, error)
	AddComment(ctx context.Context, taskID, htmlText string) error
	UploadAttachment(ctx context.Context, taskID, name, contentType string, data []byte) error
	ShowNotification(ctx context.Context, title, message, link string) (string, error)
}

var _ Backend = (*gateway.Client)(nil)

// State is the composer lifecycle position.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateReady
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	default:
		return "closed"
	}
}

// StatusKind classifies the inline status line.
type StatusKind int

const (
	StatusNone StatusKind = iota
	StatusInfo
	StatusSuccess
	StatusError
	StatusSetup
)

func (k StatusKind) String() string {
	switch k {
	case StatusInfo:
		return "info"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusSetup:
		return "setup"
	default:
		return "none"
	}
}

// Status is the inline message shown under the form.
type Status struct {
	Kind StatusKind
	Text string
	Link string
}

// CustomField is a renderable custom-field definition.
type CustomField struct {
	ID      string
	Name    string
	Type    model.CustomFieldType
	Options []tracker.EnumOption
}

// Deps are the collaborators of a Session.
type Deps struct {
	Backend    Backend
	Page       host.Page
	Labeler    mailbox.Labeler
	Translator *i18n.Translator
	Timing     model.TimingConfig
	Logger     *slog.Logger
}

// Session is one open/close cycle of the composer. Create a new one for
// every trigger click and drop it on close.
type Session struct {
	deps   Deps
	logger *slog.Logger
	tr     *i18n.Translator
	sleep  func(ctx context.Context, d time.Duration) error

	mu     gosync.Mutex
	state  State
	email  model.EmailContext
	thread []model.ThreadMessage
	scope  *html.Node

	prefs model.Preferences
	draft model.TaskDraft

	workspaces []tracker.Workspace
	projects   []tracker.Project
	users      []tracker.User
	tags       []tracker.Tag
	fields     []CustomField

	searchSeq     int
	searchResults []tracker.Task
	existing      *tracker.Task

	status Status
	result *Result
}

// New creates a closed session for an extracted email. scope is the
// message the trigger belonged to, nil for the toolbar trigger.
func New(deps Deps, email model.EmailContext, thread []model.ThreadMessage, scope *html.Node) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	tr := deps.Translator
	if tr == nil {
		tr = i18n.New("en")
	}
	return &Session{
		deps:   deps,
		logger: logging.WithOperation(logger, "composer"),
		tr:     tr,
		sleep:  sleepCtx,
		email:  email,
		thread: thread,
		scope:  scope,
		state:  StateClosed,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// View is a consistent copy of the session for rendering.
type View struct {
	State         State
	Email         model.EmailContext
	Thread        []model.ThreadMessage
	Draft         model.TaskDraft
	Prefs         model.Preferences
	Workspaces    []tracker.Workspace
	Projects      []tracker.Project
	Users         []tracker.User
	Tags          []tracker.Tag
	Fields        []CustomField
	SearchResults []tracker.Task
	Existing      *tracker.Task
	Status        Status
	Result        *Result
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.draft
	d.TagIDs = append([]string(nil), s.draft.TagIDs...)
	d.Attachments = append([]int(nil), s.draft.Attachments...)
	d.CustomFields = make(map[string]model.CustomFieldValue, len(s.draft.CustomFields))
	for k, v := range s.draft.CustomFields {
		d.CustomFields[k] = v
	}

	return View{
		State:         s.state,
		Email:         s.email,
		Thread:        s.thread,
		Draft:         d,
		Prefs:         s.prefs,
		Workspaces:    s.workspaces,
		Projects:      s.projects,
		Users:         s.users,
		Tags:          s.tags,
		Fields:        s.fields,
		SearchResults: s.searchResults,
		Existing:      s.existing,
		Status:        s.status,
		Result:        s.result,
	}
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Translator returns the session's translator.
func (s *Session) Translator() *i18n.Translator {
	return s.tr
}

// Open loads the preferences and workspaces, then applies the workspace
// priority: explicit default, last used, the only one, or none.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateClosed {
		s.mu.Unlock()
		return fmt.Errorf("composer already %s", s.state)
	}
	s.state = StateOpening
	s.status = Status{Kind: StatusInfo, Text: s.tr.T("status_loading", nil)}
	s.mu.Unlock()

	prefs, err := s.deps.Backend.GetPreferences(ctx)
	if err != nil {
		s.logger.Warn("loading preferences", logging.Err(err))
		prefs = model.DefaultPreferences()
	}

	s.mu.Lock()
	s.prefs = prefs
	s.draft = model.NewTaskDraft(prefs)
	s.draft.Name = s.email.Subject
	s.draft.Attachments = nil
	for i, a := range s.email.Attachments {
		if a.Downloadable() {
			s.draft.Attachments = append(s.draft.Attachments, i)
		}
	}
	s.mu.Unlock()

	workspaces, err := s.deps.Backend.ListWorkspaces(ctx)
	if err != nil {
		s.fail(err)
		s.setState(StateReady)
		return err
	}

	s.mu.Lock()
	s.workspaces = workspaces
	chosen := pickWorkspace(prefs, workspaces)
	s.status = Status{}
	s.mu.Unlock()

	if chosen != "" {
		if err := s.SelectWorkspace(ctx, chosen); err != nil {
			s.setState(StateReady)
			return err
		}
	}
	s.setState(StateReady)
	return nil
}

// Close ends the session.
func (s *Session) Close() {
	s.setState(StateClosed)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// fail records err as the inline status. Missing credentials become a
// setup prompt.
func (s *Session) fail(err error) {
	s.logger.Warn("composer call failed", logging.Err(err))
	st := Status{Kind: StatusError, Text: s.tr.T("status_failed", map[string]any{"Error": err.Error()})}
	if gateway.NeedsSetup(err) || tracker.IsConfigError(err) {
		st = Status{Kind: StatusSetup, Text: s.tr.T("status_setup", nil)}
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		st = Status{Kind: StatusError, Text: s.tr.T("validation_"+verr.Field, nil)}
	}
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// SetMode switches between creating a task and commenting on one. Input
// on both sides is kept.
func (s *Session) SetMode(m model.DraftMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Mode = m
}

// Edit applies fn to the draft under the session lock.
func (s *Session) Edit(fn func(d *model.TaskDraft)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.draft)
}

// ToggleAttachment selects or deselects the downloadable attachment at
// index i of the email's attachment list.
func (s *Session) ToggleAttachment(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos := slices.Index(s.draft.Attachments, i); pos >= 0 {
		s.draft.Attachments = slices.Delete(s.draft.Attachments, pos, pos+1)
		return
	}
	if _, ok := attachmentAt(s.email.Attachments, i); ok {
		s.draft.Attachments = append(s.draft.Attachments, i)
		slices.Sort(s.draft.Attachments)
	}
}
