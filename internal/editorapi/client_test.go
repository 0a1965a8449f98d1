package editorapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts *Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, srv.Client(), opts)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("not a url", nil, nil)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "invalid server URL")
}

func TestSectionForm(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/section-form", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		got = r.URL.Query()
		_, _ = w.Write([]byte(`<form class="section-form"></form>`))
	}, &Options{Token: "tok"})

	html, err := c.SectionForm(context.Background(), url.Values{"section_id": {"work-experience"}, "edit": {"7"}})
	require.NoError(t, err)
	assert.Equal(t, `<form class="section-form"></form>`, html)
	assert.Equal(t, "7", got.Get("edit"))
	assert.Equal(t, "work-experience", got.Get("section_id"))
}

func TestSectionForm_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, nil)

	_, err := c.SectionForm(context.Background(), url.Values{"section_id": {"skills"}})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestGuidance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("section_id") == "skills" {
			_, _ = w.Write([]byte(`{"success":true,"guidance":{"title":"Skills","description":"d","tips":["t1"],"examples":[],"common_mistakes":["m1"]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"error":"unknown section"}`))
	}, nil)

	g, err := c.Guidance(context.Background(), "skills")
	require.NoError(t, err)
	assert.Equal(t, "Skills", g.Title)
	assert.Equal(t, []string{"t1"}, g.Tips)
	assert.Equal(t, []string{"m1"}, g.CommonMistakes)

	_, err = c.Guidance(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown section")
}

func TestSaveSection_AddsCSRFToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		if r.PostForm.Get("csrf_token") != "csrf-1" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"error":"invalid CSRF token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"Saved"}`))
	}, &Options{CSRFToken: "csrf-1"})

	form := url.Values{"section_id": {"skills"}, "action": {"add"}, "name": {"Go"}}
	res, err := c.SaveSection(context.Background(), form)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Saved", res.Message)
	assert.Empty(t, form.Get("csrf_token"), "caller's form must not be mutated")
}

func TestSaveSection_RejectedBodyIsReturned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"field \"name\" is required"}`))
	}, nil)

	res, err := c.SaveSection(context.Background(), url.Values{"section_id": {"skills"}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "required")
}

func TestReorderSection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/reorder-section", r.URL.Path)
		assert.Equal(t, "jobs", r.PostForm.Get("section_id"))
		assert.Equal(t, "b,a", r.PostForm.Get("order"))
		assert.Equal(t, "csrf-1", r.PostForm.Get("csrf_token"))
		_, _ = w.Write([]byte(`{"success":true,"message":"Order saved."}`))
	}, &Options{CSRFToken: "csrf-1"})

	res, err := c.ReorderSection(context.Background(), "jobs", []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, "Order saved.", res.Message)
}

func TestAssessSection(t *testing.T) {
	var form url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		_, _ = w.Write([]byte(`{"success":true,"browser_execution":true,"model_type":"webllm","model":"phi","prompt":"assess this"}`))
	}, nil)

	resp, err := c.AssessSection(context.Background(), "work-experience", "42")
	require.NoError(t, err)
	assert.True(t, resp.BrowserExecution)
	assert.Equal(t, "phi", resp.Model)
	assert.Equal(t, "42", form.Get("experience_id"))

	_, err = c.AssessSection(context.Background(), "skills", "42")
	require.NoError(t, err)
	assert.Empty(t, form.Get("experience_id"))
	assert.Len(t, form, 1, "skills has no entry scope")
}

func TestAssessSection_Failure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"success":false,"error":"rate limit exceeded"}`))
	}, nil)

	_, err := c.AssessSection(context.Background(), "skills", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, &Options{Timeout: 20 * time.Millisecond})

	_, err := c.SectionForm(context.Background(), url.Values{"section_id": {"skills"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSession_AdoptsCSRFToken(t *testing.T) {
	var posted string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session":
			_, _ = w.Write([]byte(`{"user_id":"6f1c1a52-8a36-4b55-9f5a-0c6b1e3c9d11","csrf_token":"from-session"}`))
		case "/reorder-section":
			require.NoError(t, r.ParseForm())
			posted = r.PostForm.Get("csrf_token")
			assert.Equal(t, "b,a", r.PostForm.Get("order"))
			_, _ = w.Write([]byte(`{"success":true,"message":"Order saved."}`))
		}
	}, nil)

	session, err := c.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "6f1c1a52-8a36-4b55-9f5a-0c6b1e3c9d11", session.UserID.String())

	res, err := c.ReorderSection(context.Background(), "skills", []string{"b", "a"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "from-session", posted)
}

func TestSession_MissingToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"user_id":"6f1c1a52-8a36-4b55-9f5a-0c6b1e3c9d11"}`))
	}, nil)

	_, err := c.Session(context.Background())
	assert.Error(t, err)
}
