package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"social-scraper/internal/utils"
	"social-scraper/pkg/models"
)

const fixture = `<html><head>
<title> Test  Page </title>
<meta property="og:title" content=" NASA - YouTube ">
</head><body>
<h1>  Hello
   world </h1>
<ul>
  <li><a href="/p/1">one</a></li>
  <li><a href="/p/2">two</a></li>
  <li><a href="">   </a></li>
</ul>
</body></html>`

func TestPageQueries(t *testing.T) {
	page, err := NewPage("https://example.com/x", fixture)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if page.URL() != "https://example.com/x" {
		t.Errorf("Expected URL https://example.com/x, got %s", page.URL())
	}
	if text, ok := page.Text("h1"); !ok || text != "Hello world" {
		t.Errorf("Expected 'Hello world', got %q (%v)", text, ok)
	}
	if _, ok := page.Text("h2"); ok {
		t.Error("Expected missing selector to report not found")
	}
	if v, ok := page.Attr(`meta[property="og:title"]`, "content"); !ok || v != "NASA - YouTube" {
		t.Errorf("Expected og:title content, got %q", v)
	}
	if _, ok := page.Attr("h1", "data-missing"); ok {
		t.Error("Expected missing attribute to report not found")
	}
	if v, _ := page.Text("title"); v != "Test Page" {
		t.Errorf("Expected title 'Test Page', got %q", v)
	}

	hrefs := page.All("ul a", "href")
	if len(hrefs) != 2 || hrefs[0] != "/p/1" || hrefs[1] != "/p/2" {
		t.Errorf("Unexpected hrefs: %v", hrefs)
	}
	texts := page.All("ul a", "")
	if len(texts) != 2 {
		t.Errorf("Expected 2 non-empty texts, got %v", texts)
	}
}

func TestPageInvalidSelector(t *testing.T) {
	page, _ := NewPage("https://example.com", fixture)
	if _, ok := page.Text("[[["); ok {
		t.Error("Expected invalid selector to match nothing")
	}
}

// flakyEngine fails a number of times before serving a page
type flakyEngine struct {
	mu       sync.Mutex
	failures int
	err      error
	status   int
	calls    int
	closed   bool
}

func (e *flakyEngine) Name() string { return "flaky" }

func (e *flakyEngine) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls <= e.failures {
		if e.status != 0 {
			return &FetchResult{FinalURL: url, Status: e.status}, nil
		}
		return nil, e.err
	}
	return &FetchResult{HTML: fixture, FinalURL: url, Status: http.StatusOK}, nil
}

func (e *flakyEngine) Close() error {
	e.closed = true
	return nil
}

// blockingEngine never answers before the context ends
type blockingEngine struct{}

func (blockingEngine) Name() string { return "blocking" }

func (blockingEngine) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingEngine) Close() error { return nil }

func fastOptions(retries int) Options {
	return Options{
		Timeout:    50 * time.Millisecond,
		Retries:    retries,
		RetryDelay: time.Millisecond,
	}
}

func TestSessionRetriesThenSucceeds(t *testing.T) {
	engine := &flakyEngine{failures: 2, err: errors.New("connection reset")}
	session := NewSession(engine, fastOptions(3))

	page, err := session.Load(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("Expected success on third attempt, got %v", err)
	}
	if text, _ := page.Text("h1"); text != "Hello world" {
		t.Errorf("Unexpected page text %q", text)
	}
	if engine.calls != 3 {
		t.Errorf("Expected 3 calls, got %d", engine.calls)
	}
}

func TestSessionGivesUpAfterRetries(t *testing.T) {
	engine := &flakyEngine{failures: 10, status: http.StatusServiceUnavailable}
	session := NewSession(engine, fastOptions(3))

	_, err := session.Load(context.Background(), "https://example.com/x")
	if !errors.Is(err, models.ErrPageUnavailable) {
		t.Fatalf("Expected ErrPageUnavailable, got %v", err)
	}
	if engine.calls != 3 {
		t.Errorf("Expected 3 calls, got %d", engine.calls)
	}
}

func TestSessionDoesNotRetryNotFound(t *testing.T) {
	engine := &flakyEngine{failures: 10, status: http.StatusNotFound}
	session := NewSession(engine, fastOptions(3))

	_, err := session.Load(context.Background(), "https://example.com/x")
	if !errors.Is(err, models.ErrPageUnavailable) {
		t.Fatalf("Expected ErrPageUnavailable, got %v", err)
	}
	if engine.calls != 1 {
		t.Errorf("Expected 1 call, got %d", engine.calls)
	}
}

func TestSessionTimeoutIsPageUnavailable(t *testing.T) {
	session := NewSession(blockingEngine{}, fastOptions(2))

	start := time.Now()
	_, err := session.Load(context.Background(), "https://example.com/slow")
	if !errors.Is(err, models.ErrPageUnavailable) {
		t.Fatalf("Expected ErrPageUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Expected load to give up quickly, took %s", elapsed)
	}
}

func TestSessionCancelledContext(t *testing.T) {
	engine := &flakyEngine{}
	session := NewSession(engine, fastOptions(3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := session.Load(ctx, "https://example.com/x")
	if !errors.Is(err, models.ErrPageUnavailable) {
		t.Fatalf("Expected ErrPageUnavailable, got %v", err)
	}
}

func TestSessionClose(t *testing.T) {
	engine := &flakyEngine{}
	session := NewSession(engine, fastOptions(1))

	if err := session.Close(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Expected second close to be a no-op, got %v", err)
	}
	if !engine.closed || !session.Closed() {
		t.Error("Expected engine and session to be closed")
	}

	_, err := session.Load(context.Background(), "https://example.com/x")
	if !errors.Is(err, models.ErrPageUnavailable) {
		t.Errorf("Expected load after close to fail with ErrPageUnavailable, got %v", err)
	}
}

func TestStaticEngine(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	opts := fastOptions(1)
	opts.Logger = &logger

	engine := NewStaticEngine(map[string]string{"https://example.com/x": fixture})
	session := NewSession(engine, opts)

	if _, err := session.Load(context.Background(), "https://example.com/x"); err != nil {
		t.Fatalf("Expected stored page, got %v", err)
	}
	if _, err := session.Load(context.Background(), "https://example.com/missing"); !errors.Is(err, models.ErrPageUnavailable) {
		t.Errorf("Expected ErrPageUnavailable for missing page, got %v", err)
	}
	if got := engine.Fetched(); len(got) != 2 {
		t.Errorf("Expected 2 fetches, got %v", got)
	}
	session.Close()
	if !strings.Contains(logs.String(), `"loads":2`) {
		t.Errorf("Expected the close log to count 2 loads, got %s", logs.String())
	}
}

func TestSessionOptionsFromConfig(t *testing.T) {
	cfg := &models.Config{}
	cfg.Renderer.Timeout = 30
	cfg.Renderer.Retries = 3
	cfg.Renderer.RetryDelay = 2

	opts := SessionOptions(cfg, zeroLogger())
	if opts.Timeout != 30*time.Second || opts.Retries != 3 || opts.RetryDelay != 2*time.Second {
		t.Errorf("Unexpected options %+v", opts)
	}

	cfg.Renderer.Engine = "netscape"
	if _, err := NewEngine(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for unknown engine")
	}
}

func zeroLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newHTTPSession(t *testing.T, retries int) *Session {
	t.Helper()
	logger := zerolog.Nop()
	engine, err := NewHTTPEngine(utils.ClientConfig{Timeout: time.Second, UserAgent: "scraper-test", Logger: &logger})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	opts := fastOptions(retries)
	opts.Timeout = time.Second
	opts.Logger = &logger
	session := NewSession(engine, opts)
	t.Cleanup(func() { session.Close() })
	return session
}

func TestHTTPEngineFollowsRedirects(t *testing.T) {
	var userAgent string
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Write([]byte(fixture))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := newHTTPSession(t, 1).Load(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if page.URL() != srv.URL+"/new" {
		t.Errorf("Expected final URL %s/new, got %s", srv.URL, page.URL())
	}
	if v, _ := page.Text("h1"); v != "Hello world" {
		t.Errorf("Expected heading text, got %q", v)
	}
	if userAgent != "scraper-test" {
		t.Errorf("Expected configured user agent, got %q", userAgent)
	}
}

func TestHTTPEngineErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected int32
	}{
		{"not found is final", http.StatusNotFound, 1},
		{"gone is final", http.StatusGone, 1},
		{"rate limited is retried", http.StatusTooManyRequests, 3},
		{"server error is retried", http.StatusServiceUnavailable, 3},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(test.status)
			}))
			defer srv.Close()

			_, err := newHTTPSession(t, 3).Load(context.Background(), srv.URL)
			if !errors.Is(err, models.ErrPageUnavailable) {
				t.Errorf("Expected ErrPageUnavailable, got %v", err)
			}
			if !strings.Contains(fmt.Sprint(err), fmt.Sprintf("unexpected status code: %d", test.status)) {
				t.Errorf("Expected the status in the error, got %v", err)
			}
			if hits.Load() != test.expected {
				t.Errorf("Expected %d requests, got %d", test.expected, hits.Load())
			}
		})
	}
}

func TestHTTPEngineFetchReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<html><body>missing</body></html>"))
	}))
	defer srv.Close()

	engine, err := NewHTTPEngine(utils.ClientConfig{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	result, err := engine.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Status != http.StatusNotFound || !strings.Contains(result.HTML, "missing") {
		t.Errorf("Unexpected result %+v", result)
	}
}

func TestNewHTTPEngineRejectsProxyScheme(t *testing.T) {
	if _, err := NewHTTPEngine(utils.ClientConfig{ProxyURL: "ftp://proxy.local:21"}); err == nil {
		t.Error("Expected error for an ftp proxy")
	}
}
