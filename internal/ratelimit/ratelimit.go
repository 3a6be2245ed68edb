package ratelimit

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// visitorTTL is how long an idle visitor keeps its bucket
const visitorTTL = time.Hour

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	visitors map[string]*Visitor
	mu       sync.Mutex
	rps      int
	burst    int
	logger   zerolog.Logger
}

// Visitor represents a visitor with rate limiting info
type Visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing rps requests per second
// per client with the given burst
func NewRateLimiter(rps, burst int, logger zerolog.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*Visitor),
		rps:      rps,
		burst:    burst,
		logger:   logger,
	}
}

// visitorKey identifies the caller: API key when present, else client IP
func visitorKey(c *gin.Context) string {
	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
		return "api_key:" + apiKey
	}
	return c.ClientIP()
}

// Middleware creates a rate limiting middleware
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.allow(c) {
			c.Next()
		}
	}
}

// allow takes a token for the caller or aborts with 429
func (rl *RateLimiter) allow(c *gin.Context) bool {
	key := visitorKey(c)
	limiter := rl.getLimiter(key)

	if !limiter.Allow() {
		rl.logger.Warn().Str("client", key).Str("path", c.Request.URL.Path).Msg("Rate limit exceeded")
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded",
			"kind":  "RateLimited",
		})
		return false
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rps))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
	return true
}

// getLimiter gets or creates a limiter for a visitor
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		v = &Visitor{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Cleanup removes visitors idle for longer than maxIdle and returns how
// many were removed
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, v := range rl.visitors {
		if time.Since(v.lastSeen) >= maxIdle {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// Visitors returns the number of tracked clients
func (rl *RateLimiter) Visitors() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// Throttler bounds the number of requests handled at once
type Throttler struct {
	requests chan struct{}
	logger   zerolog.Logger
}

// NewThrottler creates a new throttler
func NewThrottler(maxConcurrent int, logger zerolog.Logger) *Throttler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Throttler{
		requests: make(chan struct{}, maxConcurrent),
		logger:   logger,
	}
}

// Middleware creates a throttling middleware
func (t *Throttler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.acquire(c) {
			return
		}
		defer t.release()
		c.Next()
	}
}

// acquire takes a request slot or aborts with 503
func (t *Throttler) acquire(c *gin.Context) bool {
	select {
	case t.requests <- struct{}{}:
		return true
	default:
		t.logger.Warn().Msg("Server overloaded")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "server overloaded, please try again later",
			"kind":  "Overloaded",
		})
		return false
	}
}

func (t *Throttler) release() {
	<-t.requests
}

// IPWhitelist represents a whitelist of IPs that bypass rate limiting
type IPWhitelist struct {
	ips map[string]bool
	mu  sync.RWMutex
}

// NewIPWhitelist creates a new IP whitelist
func NewIPWhitelist(ips ...string) *IPWhitelist {
	w := &IPWhitelist{ips: make(map[string]bool)}
	for _, ip := range ips {
		w.Add(ip)
	}
	return w
}

// Add adds an IP to the whitelist
func (w *IPWhitelist) Add(ip string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ips[ip] = true
}

// Contains checks if an IP is in the whitelist
func (w *IPWhitelist) Contains(ip string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ips[ip]
}

// Config represents rate limiting configuration
type Config struct {
	Enabled           bool
	RequestsPerSecond int
	Burst             int
	MaxConcurrent     int
	WhitelistedIPs    []string
}

// Manager combines the whitelist, throttler and per-client limiter
type Manager struct {
	rateLimiter *RateLimiter
	throttler   *Throttler
	whitelist   *IPWhitelist
	config      Config
	logger      zerolog.Logger
	startOnce   sync.Once
}

// NewManager creates a new rate limiting manager
func NewManager(config Config, logger *zerolog.Logger) *Manager {
	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if logger != nil {
		l = *logger
	}
	l = l.With().Str("component", "ratelimit").Logger()

	m := &Manager{
		config:    config,
		whitelist: NewIPWhitelist(config.WhitelistedIPs...),
		logger:    l,
	}
	if config.Enabled {
		m.rateLimiter = NewRateLimiter(config.RequestsPerSecond, config.Burst, l)
		m.throttler = NewThrottler(config.MaxConcurrent, l)
	}
	return m
}

// Start evicts idle visitors until ctx is done
func (m *Manager) Start(ctx context.Context) {
	if m.rateLimiter == nil {
		return
	}
	m.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := m.rateLimiter.Cleanup(visitorTTL); n > 0 {
						m.logger.Debug().
							Int("removed", n).
							Int("remaining", m.rateLimiter.Visitors()).
							Msg("Evicted idle visitors")
					}
				}
			}
		}()
	})
}

// Middleware returns the appropriate middleware based on configuration
func (m *Manager) Middleware() gin.HandlerFunc {
	if !m.config.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if m.whitelist.Contains(c.ClientIP()) {
			c.Next()
			return
		}

		if !m.rateLimiter.allow(c) || !m.throttler.acquire(c) {
			return
		}
		defer m.throttler.release()

		c.Next()
	}
}
