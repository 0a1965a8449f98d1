package browserai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Library is a third-party runtime the engines depend on.
type Library struct {
	Name string
	URL  string
}

// Loader fetches each library at most once for its lifetime.
// Failed loads are not remembered, so a later Init may try again.
type Loader struct {
	client *http.Client

	mu     sync.Mutex
	loaded map[string]bool
}

// NewLoader returns a loader using client, or http.DefaultClient when nil.
func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client, loaded: make(map[string]bool)}
}

// Load fetches lib unless it was already loaded.
func (l *Loader) Load(ctx context.Context, lib Library) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded[lib.URL] {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lib.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", lib.Name, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", lib.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to load %s: HTTP status %d", lib.Name, resp.StatusCode)
	}

	l.loaded[lib.URL] = true
	return nil
}

// Loaded reports whether lib has been loaded.
func (l *Loader) Loaded(lib Library) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[lib.URL]
}
