package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"social-scraper/pkg/models"
)

// Engine fetches the HTML of a page. Engines do not retry.
type Engine interface {
	Name() string
	Fetch(ctx context.Context, url string) (*FetchResult, error)
	Close() error
}

// FetchResult represents the result of fetching a URL
type FetchResult struct {
	HTML     string
	FinalURL string
	Status   int
}

// StatusError is returned for pages answered with an HTTP error status
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Options controls timeouts, retries and pacing of page loads
type Options struct {
	Timeout           time.Duration
	Retries           int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	Logger            *zerolog.Logger
}

// DefaultOptions returns 30s loads, 3 attempts and a 2s initial backoff
func DefaultOptions() Options {
	return Options{
		Timeout:           30 * time.Second,
		Retries:           3,
		RetryDelay:        2 * time.Second,
		RequestsPerSecond: 1,
	}
}

// Session is a models.Renderer owned by one pipeline run
type Session struct {
	engine  Engine
	opts    Options
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
	loads  int
}

// NewSession wraps engine with timeout, retry and pacing
func NewSession(engine Engine, opts Options) *Session {
	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Session{
		engine:  engine,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("engine", engine.Name()).Logger(),
	}
}

// Load renders url. Every failure, including a timeout, wraps ErrPageUnavailable.
func (s *Session) Load(ctx context.Context, url string) (models.Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s: renderer closed", models.ErrPageUnavailable, url)
	}
	s.loads++
	s.mu.Unlock()

	var lastErr error
	delay := s.opts.RetryDelay

	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		page, err := s.loadOnce(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == s.opts.Retries {
			break
		}

		s.logger.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", attempt).
			Int("max", s.opts.Retries).
			Dur("backoff", delay).
			Msg("Page load failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%w: %s: %v", models.ErrPageUnavailable, url, lastErr)
}

func (s *Session) loadOnce(ctx context.Context, url string) (models.Page, error) {
	loadCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	result, err := s.engine.Fetch(loadCtx, url)
	if err != nil {
		if errors.Is(loadCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("timed out after %s: %w", s.opts.Timeout, context.DeadlineExceeded)
		}
		return nil, err
	}
	if result.Status >= 400 {
		return nil, &StatusError{Code: result.Status}
	}

	finalURL := result.FinalURL
	if finalURL == "" {
		finalURL = url
	}

	page, err := NewPage(finalURL, result.HTML)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("url", url).
		Str("final_url", finalURL).
		Int("html_len", len(result.HTML)).
		Dur("took", time.Since(start)).
		Msg("Page loaded")

	return page, nil
}

// retryable reports whether another attempt could succeed
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	return true
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the engine. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug().Int("loads", s.loads).Msg("Renderer closed")
	return s.engine.Close()
}
