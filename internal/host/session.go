package host

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strings"
)

// MaxDownloadSize bounds a single page-session download (25MB).
const MaxDownloadSize = 25 * 1024 * 1024

// Download is a resource fetched with the page session.
type Download struct {
	Name        string
	ContentType string
	Data        []byte
}

// Session fetches host resources with the cookies of the user's webmail
// session. It never carries task-tracker credentials.
type Session struct {
	client *http.Client
}

// NewSession seeds a cookie jar for baseURL from a raw Cookie header as
// reported by the shim.
func NewSession(baseURL, cookieHeader string) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if cookieHeader != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing mail base url %q: %w", baseURL, err)
		}
		cookies, err := http.ParseCookie(cookieHeader)
		if err != nil {
			return nil, fmt.Errorf("parsing session cookies: %w", err)
		}
		jar.SetCookies(u, cookies)
	}
	return &Session{client: &http.Client{Jar: jar}}, nil
}

// NewSessionWithClient wraps an existing client.
func NewSessionWithClient(c *http.Client) *Session {
	return &Session{client: c}
}

// Fetch downloads rawURL and names the result from Content-Disposition,
// falling back to the URL path.
func (s *Session) Fetch(ctx context.Context, rawURL string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("downloading %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	if len(data) > MaxDownloadSize {
		return nil, fmt.Errorf("downloading %s: exceeds maximum size %d", rawURL, MaxDownloadSize)
	}

	return &Download{
		Name:        downloadName(resp),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func downloadName(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	name := path.Base(resp.Request.URL.Path)
	if name == "/" || name == "." || strings.TrimSpace(name) == "" {
		return "download"
	}
	return name
}
