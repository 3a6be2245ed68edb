package browser

import (
	"context"
	"net/http"
	"sync"
)

// StaticEngine serves pages from memory. It replays saved pages and backs
// tests that must not start a browser.
type StaticEngine struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
	closed  bool
}

// NewStaticEngine creates an engine serving pages keyed by URL
func NewStaticEngine(pages map[string]string) *StaticEngine {
	cp := make(map[string]string, len(pages))
	for k, v := range pages {
		cp[k] = v
	}
	return &StaticEngine{pages: cp}
}

// Name returns the engine name
func (e *StaticEngine) Name() string {
	return "static"
}

// Fetch returns the stored page, or a 404 result when none is stored
func (e *StaticEngine) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetched = append(e.fetched, url)

	html, ok := e.pages[url]
	if !ok {
		return &FetchResult{FinalURL: url, Status: http.StatusNotFound}, nil
	}
	return &FetchResult{HTML: html, FinalURL: url, Status: http.StatusOK}, nil
}

// Fetched returns the URLs requested so far
func (e *StaticEngine) Fetched() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.fetched))
	copy(out, e.fetched)
	return out
}

// Closed reports whether Close has been called
func (e *StaticEngine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close marks the engine closed
func (e *StaticEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
