// Package editorapi is the HTTP client for the CV editor's section, guidance,
// save and assessment endpoints.
package editorapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/cv-editor/internal/types"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; CVEditor/1.0)"

// Error represents a failed call to the editor API.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("request to %s failed: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("request to %s failed: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Token is sent as a bearer token when set.
	Token string
	// CSRFToken is added to every form POST as csrf_token.
	CSRFToken string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Client talks to one editor server.
type Client struct {
	baseURL string
	http    *http.Client
	opts    Options
}

// New creates a client for baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client, opts *Options) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: baseURL, Message: "invalid server URL", Cause: err}
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, opts: o}, nil
}

// SectionForm fetches the HTML fragment for a section. params carries
// section_id plus any of edit, view, add, create, job and variant_id.
func (c *Client) SectionForm(ctx context.Context, params url.Values) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/section-form?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Guidance fetches writing guidance for a section.
func (c *Client) Guidance(ctx context.Context, sectionID string) (*types.Guidance, error) {
	path := "/guidance?" + url.Values{"section_id": {sectionID}}.Encode()
	var resp types.GuidanceResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Guidance == nil {
		return nil, &Error{URL: c.baseURL + path, Message: orDefault(resp.Error, "no guidance available")}
	}
	return resp.Guidance, nil
}

// SaveSection submits a section form. A decoded response with
// success=false is returned without error so callers can show its message.
func (c *Client) SaveSection(ctx context.Context, form url.Values) (*types.SaveResult, error) {
	var resp types.SaveResult
	if err := c.postForm(ctx, "/save-section", form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Session fetches the authenticated user and their CSRF token. The token
// is used for later form POSTs unless one was configured.
func (c *Client) Session(ctx context.Context) (*types.Session, error) {
	var session types.Session
	if err := c.getJSON(ctx, "/session", &session); err != nil {
		return nil, err
	}
	if session.CSRFToken == "" {
		return nil, &Error{URL: c.baseURL + "/session", Message: "session has no CSRF token"}
	}
	if c.opts.CSRFToken == "" {
		c.opts.CSRFToken = session.CSRFToken
	}
	return &session, nil
}

// ReorderSection stores a new order for the entries of a section.
func (c *Client) ReorderSection(ctx context.Context, sectionID string, entryIDs []string) (*types.SaveResult, error) {
	form := url.Values{"section_id": {sectionID}, "order": {strings.Join(entryIDs, ",")}}
	var resp types.SaveResult
	if err := c.postForm(ctx, "/reorder-section", form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AssessSection requests an assessment of a section, or of one entry when
// entryID is set and the section supports single-entry assessment.
func (c *Client) AssessSection(ctx context.Context, sectionID, entryID string) (*types.AssessResponse, error) {
	form := url.Values{"section_id": {sectionID}}
	if field := types.EntryField(sectionID); field != "" && entryID != "" {
		form.Set(field, entryID)
	}
	var resp types.AssessResponse
	if err := c.postForm(ctx, "/assess-section", form, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &Error{URL: c.baseURL + "/assess-section", Message: orDefault(resp.Error, "assessment failed")}
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{URL: c.baseURL + path, Message: "invalid JSON response", Cause: err}
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, v any) error {
	payload := url.Values{}
	for k, vals := range form {
		payload[k] = append([]string(nil), vals...)
	}
	if c.opts.CSRFToken != "" {
		payload.Set("csrf_token", c.opts.CSRFToken)
	}
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		var apiErr *Error
		// Save and assess report failures as JSON bodies with 4xx statuses.
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && len(body) > 0 {
			if jsonErr := json.Unmarshal(body, v); jsonErr == nil {
				return nil
			}
		}
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{URL: c.baseURL + path, Message: "invalid JSON response", Cause: err}
	}
	return nil
}

// do executes a request and returns the body. On a non-2xx status the body
// is returned alongside the error.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	target := c.baseURL + path
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &Error{URL: target, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: target, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: target, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &Error{URL: target, StatusCode: resp.StatusCode, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return body, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
