package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/mailbox"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/tracker"
)

// Post-submission step names.
const (
	StepOriginal   = "original"
	StepAttachment = "attachment"
	StepLabel      = "label"
	StepNotify     = "notify"
)

// StepError is a failed best-effort step.
type StepError struct {
	Step string
	Name string
	Err  error
}

func (e StepError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s: %v", e.Step, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Result describes a completed submission. Failures lists the
// best-effort steps that did not go through; the submission still counts
// as a success.
type Result struct {
	Mode      model.DraftMode
	TaskID    string
	TaskName  string
	Link      string
	Uploaded  []string
	Failures  []StepError
	AutoClose bool
}

// Failed returns the failures of one step kind.
func (r *Result) Failed(step string) []StepError {
	var out []StepError
	for _, f := range r.Failures {
		if f.Step == step {
			out = append(out, f)
		}
	}
	return out
}

// Submit validates the draft locally, creates the task (or adds the
// comment), then runs the post steps: raw original upload, sequential
// attachment uploads, label application. Post steps never fail the
// submission.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("cannot submit while %s", st)
	}
	draft := s.draft
	draft.TagIDs = append([]string(nil), s.draft.TagIDs...)
	draft.Attachments = append([]int(nil), s.draft.Attachments...)
	email := s.email
	existing := s.existing
	autoClose := s.prefs.AutoClose
	s.mu.Unlock()

	if err := draft.Validate(); err != nil {
		s.fail(err)
		return nil, err
	}

	s.mu.Lock()
	s.state = StateSubmitting
	s.status = Status{Kind: StatusInfo, Text: s.tr.T("status_submitting", nil)}
	s.mu.Unlock()

	logger := s.logger.With(slog.String("mode", string(draft.Mode)))
	note := BuildNote(email, draft)

	res := &Result{Mode: draft.Mode, AutoClose: autoClose}
	switch draft.Mode {
	case model.ModeLinkExisting:
		if err := s.deps.Backend.AddComment(ctx, draft.ExistingTaskID, note); err != nil {
			s.fail(err)
			s.setState(StateReady)
			return nil, err
		}
		res.TaskID = draft.ExistingTaskID
		if existing != nil && existing.GID == draft.ExistingTaskID {
			res.TaskName, res.Link = existing.Name, existing.PermalinkURL
		}
		if res.Link == "" {
			if t, err := s.deps.Backend.GetTask(ctx, draft.ExistingTaskID); err == nil {
				res.TaskName, res.Link = t.Name, t.PermalinkURL
			}
		}
	default:
		task, err := s.deps.Backend.CreateTask(ctx, taskInput(draft, note))
		if err != nil {
			s.fail(err)
			s.setState(StateReady)
			return nil, err
		}
		res.TaskID, res.TaskName, res.Link = task.GID, task.Name, task.PermalinkURL
	}
	logger.Info("submission accepted", slog.String("task", res.TaskID))

	res.Failures = settle(ctx, logger, s.postSteps(draft, email, res)...)

	s.mu.Lock()
	s.result = res
	s.status = s.completionStatus(res)
	s.state = StateReady
	s.mu.Unlock()

	title := s.tr.T("notify_created", nil)
	if res.Mode == model.ModeLinkExisting {
		title = s.tr.T("notify_commented", nil)
	}
	if _, err := s.deps.Backend.ShowNotification(ctx, title, res.TaskName, res.Link); err != nil {
		logger.Warn("notification failed", logging.Err(err))
		res.Failures = append(res.Failures, StepError{Step: StepNotify, Err: err})
	}

	return res, nil
}

func taskInput(d model.TaskDraft, note string) tracker.TaskInput {
	in := tracker.TaskInput{
		Name:      strings.TrimSpace(d.Name),
		Workspace: d.WorkspaceID,
		Projects:  []string{d.ProjectID},
		HTMLNotes: note,
		Assignee:  d.AssigneeID,
		DueOn:     d.DueDate,
		Tags:      d.TagIDs,
	}
	if len(d.CustomFields) > 0 {
		in.CustomFields = make(map[string]any, len(d.CustomFields))
		for id, v := range d.CustomFields {
			in.CustomFields[id] = v.Payload()
		}
	}
	return in
}

// step is one best-effort action run after the primary submission.
type step struct {
	kind string
	name string
	run  func(ctx context.Context) error
}

// settle runs every step in order and collects failures. A failing or
// panicking step does not stop the ones after it.
func settle(ctx context.Context, logger *slog.Logger, steps ...step) []StepError {
	var failures []StepError
	for _, st := range steps {
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return st.run(ctx)
		}()
		if err != nil {
			logger.Warn("post step failed",
				slog.String("step", st.kind),
				slog.String("name", st.name),
				logging.Err(err),
			)
			failures = append(failures, StepError{Step: st.kind, Name: st.name, Err: err})
		}
	}
	return failures
}

func (s *Session) postSteps(d model.TaskDraft, email model.EmailContext, res *Result) []step {
	var steps []step
	target := mailbox.Target{Subject: email.Subject}

	if d.IncludeOriginal && email.OriginalURL != nil {
		steps = append(steps, step{kind: StepOriginal, run: func(ctx context.Context) error {
			dl, err := s.deps.Page.Fetch(ctx, *email.OriginalURL)
			if err != nil {
				return err
			}
			orig, err := mailbox.ParseOriginal(dl.Data)
			if err != nil {
				return err
			}
			target.MessageID = orig.MessageID
			if err := s.deps.Backend.UploadAttachment(ctx, res.TaskID, orig.Filename, mailbox.ContentType, orig.Data); err != nil {
				return err
			}
			res.Uploaded = append(res.Uploaded, orig.Filename)
			return nil
		}})
	}

	for _, i := range d.Attachments {
		att, ok := attachmentAt(email.Attachments, i)
		if !ok {
			continue
		}
		name := att.Name
		steps = append(steps, step{kind: StepAttachment, name: name, run: func(ctx context.Context) error {
			s.setStatus(Status{Kind: StatusInfo, Text: s.tr.T("status_uploading", map[string]any{"Name": name})})
			dl, err := s.deps.Page.Fetch(ctx, *att.URL)
			if err != nil {
				return err
			}
			if err := s.deps.Backend.UploadAttachment(ctx, res.TaskID, att.Name, dl.ContentType, dl.Data); err != nil {
				return err
			}
			res.Uploaded = append(res.Uploaded, att.Name)
			return nil
		}})
	}

	if d.ApplyLabel && s.deps.Labeler != nil {
		steps = append(steps, step{kind: StepLabel, run: func(ctx context.Context) error {
			return s.deps.Labeler.Apply(ctx, target)
		}})
	}
	return steps
}

func attachmentAt(list []model.Attachment, i int) (model.Attachment, bool) {
	if i < 0 || i >= len(list) || !list[i].Downloadable() {
		return model.Attachment{}, false
	}
	return list[i], true
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// completionStatus reports success with the link, noting any partial
// failures. Callers hold s.mu.
func (s *Session) completionStatus(res *Result) Status {
	id := "status_created"
	if res.Mode == model.ModeLinkExisting {
		id = "status_commented"
	}
	name := res.TaskName
	if name == "" {
		name = res.TaskID
	}
	parts := []string{s.tr.T(id, map[string]any{"Name": name})}
	if n := len(res.Failed(StepAttachment)); n > 0 {
		parts = append(parts, s.tr.Plural("status_attach_failed", n))
	}
	if len(res.Failed(StepOriginal)) > 0 {
		parts = append(parts, s.tr.T("status_original_failed", nil))
	}
	if len(res.Failed(StepLabel)) > 0 {
		parts = append(parts, s.tr.T("status_label_failed", nil))
	}
	return Status{Kind: StatusSuccess, Text: strings.Join(parts, ". "), Link: res.Link}
}

// AutoCloseDelay returns how long to wait before closing after res, and
// false when the session should stay open.
func (s *Session) AutoCloseDelay(res *Result) (time.Duration, bool) {
	if res == nil || !res.AutoClose {
		return 0, false
	}
	return s.deps.Timing.AutoClose(), true
}

// CloseAfter waits the auto-close delay and closes the session. It returns
// early, leaving the session open, when ctx ends first.
func (s *Session) CloseAfter(ctx context.Context, res *Result) error {
	d, ok := s.AutoCloseDelay(res)
	if !ok {
		return nil
	}
	if err := s.sleep(ctx, d); err != nil {
		return err
	}
	s.Close()
	return nil
}

// IsValidation reports whether err came from local validation.
func IsValidation(err error) bool {
	var verr *model.ValidationError
	return errors.As(err, &verr)
}
