package tracker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
)

const pageLimit = 100

// MaxUploadSize matches the API's attachment limit.
const MaxUploadSize = 100 << 20

// list follows offset pagination until the API stops reporting a next page.
func list[T any](ctx context.Context, c *Client, p string, q url.Values) ([]T, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("limit", fmt.Sprint(pageLimit))

	var all []T
	for {
		var page []T
		next, err := c.do(ctx, http.MethodGet, p+"?"+q.Encode(), nil, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		q.Set("offset", next)
	}
}

// Me returns the user owning the token; it doubles as the session check.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if _, err := c.do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Workspaces lists the workspaces visible to the token.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	return list[Workspace](ctx, c, "/workspaces", nil)
}

// Projects lists the workspace's projects, skipping archived ones.
func (c *Client) Projects(ctx context.Context, workspaceID string) ([]Project, error) {
	q := url.Values{"archived": {"false"}, "opt_fields": {"name,archived"}}
	all, err := list[Project](ctx, c, "/workspaces/"+url.PathEscape(workspaceID)+"/projects", q)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, p := range all {
		if !p.Archived {
			active = append(active, p)
		}
	}
	return active, nil
}

// Users lists the workspace's members.
func (c *Client) Users(ctx context.Context, workspaceID string) ([]User, error) {
	q := url.Values{"opt_fields": {"name,email"}}
	return list[User](ctx, c, "/workspaces/"+url.PathEscape(workspaceID)+"/users", q)
}

// Tags lists the workspace's tags.
func (c *Client) Tags(ctx context.Context, workspaceID string) ([]Tag, error) {
	return list[Tag](ctx, c, "/workspaces/"+url.PathEscape(workspaceID)+"/tags", nil)
}

// SearchTasks runs a typeahead lookup for tasks in the workspace.
func (c *Client) SearchTasks(ctx context.Context, workspaceID, query string) ([]Task, error) {
	q := url.Values{
		"resource_type": {"task"},
		"query":         {query},
		"count":         {"20"},
		"opt_fields":    {"name,completed,permalink_url"},
	}
	var tasks []Task
	p := "/workspaces/" + url.PathEscape(workspaceID) + "/typeahead?" + q.Encode()
	if _, err := c.do(ctx, http.MethodGet, p, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CustomFieldSettings lists the custom fields attached to a project.
func (c *Client) CustomFieldSettings(ctx context.Context, projectID string) ([]CustomFieldSetting, error) {
	return list[CustomFieldSetting](ctx, c, "/projects/"+url.PathEscape(projectID)+"/custom_field_settings", nil)
}

// CreateTask creates a task and returns it with its permalink.
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	var t Task
	q := url.Values{"opt_fields": {"name,permalink_url"}}
	if _, err := c.do(ctx, http.MethodPost, "/tasks?"+q.Encode(), jsonPayload(in), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var t Task
	q := url.Values{"opt_fields": {"name,completed,permalink_url"}}
	if _, err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"?"+q.Encode(), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// AddComment posts a rich-text story on a task.
func (c *Client) AddComment(ctx context.Context, taskID, htmlText string) (*Story, error) {
	var s Story
	body := map[string]string{"html_text": htmlText}
	if _, err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/stories", jsonPayload(body), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UploadAttachment attaches data to a task as a multipart upload.
func (c *Client) UploadAttachment(ctx context.Context, taskID, name, contentType string, data []byte) (*Attachment, error) {
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("attachment %s is %d bytes, over the %d byte limit", name, len(data), MaxUploadSize)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := w.WriteField("parent", taskID); err != nil {
			return nil, "", err
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating file part: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("writing file part: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}

	var a Attachment
	if _, err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/attachments", body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UploadAttachmentFromURL downloads a publicly reachable file and attaches
// it to a task. The token is never sent to the download host.
func (c *Client) UploadAttachmentFromURL(ctx context.Context, taskID, rawURL, name string) (*Attachment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("downloading %s: status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading download: %w", err)
	}
	if name == "" {
		name = path.Base(req.URL.Path)
	}
	ct := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return c.UploadAttachment(ctx, taskID, name, ct, data)
}
