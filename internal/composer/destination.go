package composer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailtask/internal/logging"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/tracker"
)

func pickWorkspace(prefs model.Preferences, list []tracker.Workspace) string {
	has := func(id string) bool {
		for _, w := range list {
			if id != "" && w.GID == id {
				return true
			}
		}
		return false
	}
	switch {
	case has(prefs.DefaultWorkspace):
		return prefs.DefaultWorkspace
	case has(prefs.LastWorkspace):
		return prefs.LastWorkspace
	case len(list) == 1:
		return list[0].GID
	}
	return ""
}

// pickProject applies the project priority within workspace: default, then
// last used. Remembered projects only count in the workspace they were
// remembered with, so a project id shared by two workspaces is never
// carried across.
func pickProject(prefs model.Preferences, workspace string, list []tracker.Project) string {
	has := func(id string) bool {
		for _, p := range list {
			if id != "" && p.GID == id {
				return true
			}
		}
		return false
	}
	switch {
	case prefs.DefaultWorkspace == workspace && has(prefs.DefaultProject):
		return prefs.DefaultProject
	case prefs.LastWorkspace == workspace && has(prefs.LastProject):
		return prefs.LastProject
	}
	return ""
}

// SelectWorkspace switches the destination workspace. Everything scoped to
// the previous workspace is cleared first, then projects, users and tags
// are loaded concurrently and the project priority is reapplied.
func (s *Session) SelectWorkspace(ctx context.Context, id string) error {
	s.mu.Lock()
	s.draft.WorkspaceID = id
	s.draft.ProjectID = ""
	s.draft.TagIDs = nil
	s.draft.CustomFields = make(map[string]model.CustomFieldValue)
	s.draft.ExistingTaskID = ""
	s.draft.AssigneeID = ""
	s.projects, s.users, s.tags, s.fields = nil, nil, nil, nil
	s.searchResults = nil
	s.existing = nil
	s.searchSeq++
	prefs := s.prefs
	s.mu.Unlock()

	var (
		projects []tracker.Project
		users    []tracker.User
		tags     []tracker.Tag
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projects, err = s.deps.Backend.ListProjects(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.deps.Backend.ListUsers(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = s.deps.Backend.ListTags(gctx, id)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	if s.draft.WorkspaceID != id {
		// Superseded by a later selection.
		s.mu.Unlock()
		return nil
	}
	s.projects = activeProjects(projects)
	s.users = users
	s.tags = tags
	s.mu.Unlock()

	if err != nil {
		s.fail(err)
		return err
	}

	if p := pickProject(prefs, id, s.View().Projects); p != "" {
		return s.SelectProject(ctx, p)
	}
	return nil
}

func activeProjects(list []tracker.Project) []tracker.Project {
	var out []tracker.Project
	for _, p := range list {
		if !p.Archived {
			out = append(out, p)
		}
	}
	return out
}

// SelectProject sets the project, remembers it as last used right away,
// and loads its custom fields. Field types the composer cannot render are
// dropped.
func (s *Session) SelectProject(ctx context.Context, id string) error {
	s.mu.Lock()
	known := false
	for _, p := range s.projects {
		if p.GID == id {
			known = true
			break
		}
	}
	if !known {
		s.mu.Unlock()
		return fmt.Errorf("project %s is not in the selected workspace", id)
	}
	s.draft.ProjectID = id
	s.draft.CustomFields = make(map[string]model.CustomFieldValue)
	s.fields = nil
	s.prefs.LastWorkspace = s.draft.WorkspaceID
	s.prefs.LastProject = id
	prefs := s.prefs
	s.mu.Unlock()

	if err := s.deps.Backend.SavePreferences(ctx, prefs); err != nil {
		s.logger.Warn("saving last-used project", logging.Err(err))
	}

	settings, err := s.deps.Backend.GetCustomFields(ctx, id)
	if err != nil {
		s.fail(err)
		return err
	}

	fields := supportedFields(settings)
	s.mu.Lock()
	if s.draft.ProjectID == id {
		s.fields = fields
	}
	s.mu.Unlock()
	return nil
}

func supportedFields(settings []tracker.CustomFieldSetting) []CustomField {
	var out []CustomField
	for _, st := range settings {
		t := model.CustomFieldType(st.CustomField.Type)
		if !t.Supported() {
			continue
		}
		f := CustomField{ID: st.CustomField.GID, Name: st.CustomField.Name, Type: t}
		for _, o := range st.CustomField.EnumOptions {
			if o.Enabled {
				f.Options = append(f.Options, o)
			}
		}
		out = append(out, f)
	}
	return out
}

// SetCustomField parses raw according to the field's type. An empty raw
// value clears the field.
func (s *Session) SetCustomField(id, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var field *CustomField
	for i := range s.fields {
		if s.fields[i].ID == id {
			field = &s.fields[i]
			break
		}
	}
	if field == nil {
		return fmt.Errorf("unknown custom field %s", id)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		delete(s.draft.CustomFields, id)
		return nil
	}

	v := model.CustomFieldValue{Type: field.Type}
	switch field.Type {
	case model.FieldNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return &model.ValidationError{Field: field.Name, Message: "not a number"}
		}
		v.Number = n
	case model.FieldEnum:
		for _, o := range field.Options {
			if o.GID == raw || strings.EqualFold(o.Name, raw) {
				v.EnumID = o.GID
			}
		}
		if v.EnumID == "" {
			return &model.ValidationError{Field: field.Name, Message: "unknown option"}
		}
	case model.FieldDate:
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return &model.ValidationError{Field: field.Name, Message: "use YYYY-MM-DD"}
		}
		v.Date = raw
	default:
		v.Text = raw
	}
	s.draft.CustomFields[id] = v
	return nil
}

// ProjectSuggestions filters the workspace's projects.
func (s *Session) ProjectSuggestions(query string) []tracker.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Filter(s.projects, func(p tracker.Project) string { return p.Name }, query)
}

// UserSuggestions filters the workspace's users by name or email.
func (s *Session) UserSuggestions(query string) []tracker.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Filter(s.users, func(u tracker.User) string { return u.Name + " " + u.Email }, query)
}

// TagSuggestions filters the workspace's tags, leaving out selected ones.
func (s *Session) TagSuggestions(query string) []tracker.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	var free []tracker.Tag
	for _, t := range s.tags {
		if !s.draft.HasTag(t.GID) {
			free = append(free, t)
		}
	}
	return Filter(free, func(t tracker.Tag) string { return t.Name }, query)
}

// AddTag selects a tag chip.
func (s *Session) AddTag(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.draft.HasTag(id) {
		s.draft.TagIDs = append(s.draft.TagIDs, id)
	}
}

// RemoveTag drops a tag chip.
func (s *Session) RemoveTag(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.draft.TagIDs {
		if t == id {
			s.draft.TagIDs = append(s.draft.TagIDs[:i:i], s.draft.TagIDs[i+1:]...)
			return
		}
	}
}

// SelectAssignee sets the assignee; empty clears it.
func (s *Session) SelectAssignee(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.AssigneeID = id
}

// QueueSearch records a keystroke in the task search box and returns its
// sequence number. Only the latest sequence may run, which is what makes
// the caller's delayed RunSearch a debounce.
func (s *Session) QueueSearch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchSeq++
	return s.searchSeq
}

// RunSearch looks up tasks in the selected workspace if seq is still the
// latest queued search. Queries shorter than MinSearchLength clear the
// results without a lookup.
func (s *Session) RunSearch(ctx context.Context, seq int, query string) error {
	s.mu.Lock()
	if seq != s.searchSeq {
		s.mu.Unlock()
		return nil
	}
	ws := s.draft.WorkspaceID
	if !searchable(query) || ws == "" {
		s.searchResults = nil
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	tasks, err := s.deps.Backend.SearchTasks(ctx, ws, strings.TrimSpace(query))
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.searchSeq && s.draft.WorkspaceID == ws {
		s.searchResults = tasks
	}
	return nil
}

// SelectExistingTask picks the task a comment will be added to.
func (s *Session) SelectExistingTask(t tracker.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.ExistingTaskID = t.GID
	s.existing = &t
}
