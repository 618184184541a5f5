package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/tracker"
)

// Sender delivers a request and returns its response. *Gateway
// implements it in-process.
type Sender interface {
	Send(ctx context.Context, req Request) Response
}

// Client offers typed calls over a Sender.
type Client struct {
	sender Sender
}

// NewClient wraps s.
func NewClient(s Sender) *Client {
	return &Client{sender: s}
}

// Call sends kind with params and decodes the response data into out.
func (c *Client) Call(ctx context.Context, kind Kind, params, out any) error {
	req := Request{ID: uuid.NewString(), Kind: kind}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", kind, err)
		}
		req.Payload = raw
	}

	resp := c.sender.Send(ctx, req)
	if resp.Error != "" {
		return &RemoteError{Kind: kind, Message: resp.Error, NeedsSetup: resp.NeedsSetup}
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", kind, err)
	}
	return nil
}

func (c *Client) CheckSession(ctx context.Context) (Session, error) {
	var s Session
	err := c.Call(ctx, KindCheckSession, nil, &s)
	return s, err
}

func (c *Client) ListWorkspaces(ctx context.Context) ([]tracker.Workspace, error) {
	var out []tracker.Workspace
	err := c.Call(ctx, KindListWorkspaces, nil, &out)
	return out, err
}

func (c *Client) ListProjects(ctx context.Context, workspaceID string) ([]tracker.Project, error) {
	var out []tracker.Project
	err := c.Call(ctx, KindListProjects, WorkspaceParams{WorkspaceID: workspaceID}, &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context, workspaceID string) ([]tracker.User, error) {
	var out []tracker.User
	err := c.Call(ctx, KindListUsers, WorkspaceParams{WorkspaceID: workspaceID}, &out)
	return out, err
}

func (c *Client) ListTags(ctx context.Context, workspaceID string) ([]tracker.Tag, error) {
	var out []tracker.Tag
	err := c.Call(ctx, KindListTags, WorkspaceParams{WorkspaceID: workspaceID}, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, in tracker.TaskInput) (tracker.Task, error) {
	var out tracker.Task
	err := c.Call(ctx, KindCreateTask, in, &out)
	return out, err
}

func (c *Client) AddComment(ctx context.Context, taskID, htmlText string) error {
	return c.Call(ctx, KindAddComment, CommentParams{TaskID: taskID, HTMLText: htmlText}, nil)
}

// UploadAttachment base64-encodes data for the trip across the boundary.
func (c *Client) UploadAttachment(ctx context.Context, taskID, name, contentType string, data []byte) error {
	return c.Call(ctx, KindUploadAttachment, UploadParams{
		TaskID:      taskID,
		Name:        name,
		ContentType: contentType,
		Base64:      base64.StdEncoding.EncodeToString(data),
	}, nil)
}

func (c *Client) GetCustomFields(ctx context.Context, projectID string) ([]tracker.CustomFieldSetting, error) {
	var out []tracker.CustomFieldSetting
	err := c.Call(ctx, KindGetCustomFields, ProjectParams{ProjectID: projectID}, &out)
	return out, err
}

func (c *Client) GetTask(ctx context.Context, taskID string) (tracker.Task, error) {
	var out tracker.Task
	err := c.Call(ctx, KindGetTask, TaskParams{TaskID: taskID}, &out)
	return out, err
}

func (c *Client) SearchTasks(ctx context.Context, workspaceID, query string) ([]tracker.Task, error) {
	var out []tracker.Task
	err := c.Call(ctx, KindSearchTasks, SearchParams{WorkspaceID: workspaceID, Query: query}, &out)
	return out, err
}

func (c *Client) ShowNotification(ctx context.Context, title, message, link string) (string, error) {
	var ref NotificationRef
	err := c.Call(ctx, KindShowNotification, NotificationParams{Title: title, Message: message, Link: link}, &ref)
	return ref.NotificationID, err
}

func (c *Client) NotificationClicked(ctx context.Context, id string) (string, error) {
	var res ClickResult
	err := c.Call(ctx, KindNotificationClicked, NotificationRef{NotificationID: id}, &res)
	return res.Link, err
}

func (c *Client) GetPreferences(ctx context.Context) (model.Preferences, error) {
	prefs := model.DefaultPreferences()
	err := c.Call(ctx, KindGetPreferences, nil, &prefs)
	return prefs, err
}

func (c *Client) SavePreferences(ctx context.Context, prefs model.Preferences) error {
	return c.Call(ctx, KindSavePreferences, PreferencesParams{Preferences: prefs}, nil)
}
