package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func newRouter(mw gin.HandlerFunc, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/ping", handler)
	return r
}

func pong(c *gin.Context) { c.String(http.StatusOK, "pong") }

func get(r http.Handler, header map[string]string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, zerolog.Nop())
	r := newRouter(rl.Middleware(), pong)

	codes := []int{get(r, nil), get(r, nil), get(r, nil)}
	expected := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range expected {
		if codes[i] != expected[i] {
			t.Errorf("Request %d: expected %d, got %d", i, expected[i], codes[i])
		}
	}

	// API keys get their own bucket
	if code := get(r, map[string]string{"X-API-Key": "k1"}); code != http.StatusOK {
		t.Errorf("Expected API key request to pass, got %d", code)
	}
	if rl.Visitors() != 2 {
		t.Errorf("Expected 2 visitors, got %d", rl.Visitors())
	}
}

func TestCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, zerolog.Nop())
	rl.getLimiter("a")
	rl.getLimiter("b")

	if n := rl.Cleanup(time.Hour); n != 0 {
		t.Errorf("Expected fresh visitors to stay, removed %d", n)
	}
	if n := rl.Cleanup(0); n != 2 {
		t.Errorf("Expected 2 removed, got %d", n)
	}
	if rl.Visitors() != 0 {
		t.Errorf("Expected no visitors, got %d", rl.Visitors())
	}
}

func TestThrottler(t *testing.T) {
	th := NewThrottler(1, zerolog.Nop())
	entered := make(chan struct{})
	release := make(chan struct{})
	r := newRouter(th.Middleware(), func(c *gin.Context) {
		entered <- struct{}{}
		<-release
		c.Status(http.StatusOK)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		get(r, nil)
	}()
	<-entered

	w := httptest.NewRecorder()
	// The second request is rejected before reaching the handler
	r2 := newRouter(th.Middleware(), pong)
	r2.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}

	close(release)
	wg.Wait()

	if code := get(r2, nil); code != http.StatusOK {
		t.Errorf("Expected slot to be released, got %d", code)
	}
}

func TestManager(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected []int
	}{
		{
			name:     "disabled",
			config:   Config{Enabled: false, RequestsPerSecond: 1, Burst: 1},
			expected: []int{http.StatusOK, http.StatusOK, http.StatusOK},
		},
		{
			name:     "limited",
			config:   Config{Enabled: true, RequestsPerSecond: 1, Burst: 1, MaxConcurrent: 4},
			expected: []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests},
		},
		{
			name: "whitelisted",
			// httptest requests come from 192.0.2.1
			config:   Config{Enabled: true, RequestsPerSecond: 1, Burst: 1, MaxConcurrent: 4, WhitelistedIPs: []string{"192.0.2.1"}},
			expected: []int{http.StatusOK, http.StatusOK, http.StatusOK},
		},
	}

	logger := zerolog.Nop()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := NewManager(test.config, &logger)
			r := newRouter(m.Middleware(), pong)
			for i, want := range test.expected {
				if code := get(r, nil); code != want {
					t.Errorf("Request %d: expected %d, got %d", i, want, code)
				}
			}
		})
	}
}

func TestWhitelist(t *testing.T) {
	w := NewIPWhitelist("10.0.0.1")
	if !w.Contains("10.0.0.1") {
		t.Error("Expected 10.0.0.1 to be whitelisted")
	}
	w.Add("10.0.0.2")
	if !w.Contains("10.0.0.2") || w.Contains("10.0.0.3") {
		t.Error("Unexpected whitelist contents")
	}
}
