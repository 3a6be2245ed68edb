package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-scraper/internal/browser"
	"social-scraper/internal/monitor"
	"social-scraper/internal/normalize"
	"social-scraper/internal/registry"
	"social-scraper/pkg/models"
)

const youtubePostHTML = `<html><head>
<title>Never Gonna Give You Up - YouTube</title>
<meta property="og:title" content="Never Gonna Give You Up">
</head><body></body></html>`

const instagramProfileHTML = `<html><head>
<meta property="og:description" content="283M Followers, 164 Following, 30K Posts - See Instagram photos and videos from National Geographic (@natgeo)">
<meta property="og:url" content="https://www.instagram.com/natgeo/">
</head><body><main><article>
<a href="/natgeo/p/C1a2B3c4D5e/">one</a>
<a href="/p/C1a2B3c4D5e/">two</a>
<a href="/reel/C9x8Y7z6W5v/">three</a>
</article></main></body></html>`

const instagramPostHTML = `<html><head>
<meta property="og:description" content="12K likes, 340 comments - natgeo on March 3, 2024: &quot;Photo by a photographer&quot;">
</head><body></body></html>`

// blockingEngine never answers before the load context ends
type blockingEngine struct {
	closed atomic.Bool
}

func (e *blockingEngine) Name() string { return "blocking" }

func (e *blockingEngine) Fetch(ctx context.Context, url string) (*browser.FetchResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (e *blockingEngine) Close() error {
	e.closed.Store(true)
	return nil
}

type harness struct {
	pipeline *Pipeline
	monitor  *monitor.Monitor
	opened   atomic.Int32
	sessions []*browser.Session
}

func newHarness(t *testing.T, engine func() browser.Engine, opts browser.Options) *harness {
	t.Helper()
	logger := zerolog.Nop()
	reg, err := registry.NewDefault(&logger)
	require.NoError(t, err)

	h := &harness{monitor: monitor.NewMonitor()}
	opts.Logger = &logger
	open := func(ctx context.Context) (models.Renderer, error) {
		h.opened.Add(1)
		s := browser.NewSession(engine(), opts)
		h.sessions = append(h.sessions, s)
		return s, nil
	}
	h.pipeline = New(reg, normalize.New(""), open, Options{
		MaxItems: 10,
		Monitor:  h.monitor,
		Logger:   &logger,
	})
	return h
}

func staticPages() func() browser.Engine {
	return func() browser.Engine {
		return browser.NewStaticEngine(map[string]string{
			"https://youtube.com/watch?v=abc123":     youtubePostHTML,
			"https://instagram.com/natgeo":           instagramProfileHTML,
			"https://instagram.com/p/C1a2B3c4D5e":    instagramPostHTML,
			"https://instagram.com/reel/C9x8Y7z6W5v": instagramPostHTML,
		})
	}
}

func TestRunYouTubePost(t *testing.T) {
	h := newHarness(t, staticPages(), browser.Options{Retries: 1})

	result, err := h.pipeline.Run(context.Background(), "https://www.youtube.com/watch?v=abc123", models.PlatformUnknown, -1)
	require.NoError(t, err)

	require.Equal(t, 1, result.Table.Len())
	rec := result.Table.Records[0]
	assert.Equal(t, "YouTube", rec.Get(models.ColPlatform))
	assert.Equal(t, "post", rec.Get(models.ColKind))
	assert.Equal(t, "Never Gonna Give You Up", rec.Get(models.ColTitle))
	assert.Equal(t, "N/A", rec.Get(models.ColFollowers))
	assert.Equal(t, "YouTube/post", result.Strategy)

	require.Len(t, h.sessions, 1)
	assert.True(t, h.sessions[0].Closed(), "renderer must be closed after the run")
	assert.False(t, h.pipeline.Busy())
}

func TestRunInstagramProfile(t *testing.T) {
	h := newHarness(t, staticPages(), browser.Options{Retries: 1})

	result, err := h.pipeline.Run(context.Background(), "instagram.com/natgeo", models.PlatformInstagram, 2)
	require.NoError(t, err)

	assert.LessOrEqual(t, result.Table.Len(), 2)
	assert.NotZero(t, result.Table.Len())
	for _, rec := range result.Table.Records {
		assert.Equal(t, "Instagram", rec.Get(models.ColPlatform))
		assert.Equal(t, "https://instagram.com/natgeo", rec.Get(models.ColSourceURL))
		assert.Equal(t, "283000000", rec.Get(models.ColFollowers))
	}
	assert.True(t, h.sessions[0].Closed())
}

func TestRunInstagramProfileDeduplicatesPosts(t *testing.T) {
	h := newHarness(t, staticPages(), browser.Options{Retries: 1})

	result, err := h.pipeline.Run(context.Background(), "instagram.com/natgeo", models.PlatformInstagram, 10)
	require.NoError(t, err)

	var urls []string
	for _, rec := range result.Table.Records {
		urls = append(urls, rec.Get(models.ColURL))
	}
	assert.Equal(t, []string{
		"https://instagram.com/p/C1a2B3c4D5e",
		"https://instagram.com/reel/C9x8Y7z6W5v",
	}, urls)
}

func TestRunUnsupportedPlatform(t *testing.T) {
	h := newHarness(t, staticPages(), browser.Options{Retries: 1})

	_, err := h.pipeline.Run(context.Background(), "https://example.com/foo", models.PlatformUnknown, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnsupportedPlatform))
	assert.Equal(t, models.KindUnsupportedPlatform, models.ErrorKind(err))
	assert.Zero(t, h.opened.Load(), "renderer must not be opened for an unsupported link")

	failed := h.monitor.GetMetrics().RunsFailed.WithLabelValues("Unknown", models.KindUnsupportedPlatform)
	assert.Equal(t, float64(1), testutil.ToFloat64(failed))
}

func TestRunUnsupportedLinkShape(t *testing.T) {
	h := newHarness(t, staticPages(), browser.Options{Retries: 1})

	_, err := h.pipeline.Run(context.Background(), "https://instagram.com/explore", models.PlatformUnknown, -1)
	assert.ErrorIs(t, err, models.ErrUnsupportedLinkShape)
	assert.Zero(t, h.opened.Load())
}

func TestRunTimeout(t *testing.T) {
	engine := &blockingEngine{}
	h := newHarness(t, func() browser.Engine { return engine }, browser.Options{
		Timeout: 50 * time.Millisecond,
		Retries: 1,
	})

	_, err := h.pipeline.Run(context.Background(), "https://tiktok.com/@someone/video/7234567890123456789", models.PlatformUnknown, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPageUnavailable)
	assert.Equal(t, models.KindPageUnavailable, models.ErrorKind(err))

	require.Len(t, h.sessions, 1)
	assert.True(t, h.sessions[0].Closed(), "renderer must be closed after a failed run")
	assert.True(t, engine.closed.Load())
}

func TestRunRendererUnavailable(t *testing.T) {
	logger := zerolog.Nop()
	reg, err := registry.NewDefault(&logger)
	require.NoError(t, err)

	startErr := errors.New(`start browser: exec: "google-chrome": executable file not found in $PATH`)
	open := func(ctx context.Context) (models.Renderer, error) {
		return nil, startErr
	}
	p := New(reg, normalize.New(""), open, Options{Logger: &logger})

	_, err = p.Run(context.Background(), "https://youtube.com/watch?v=abc123", models.PlatformUnknown, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPageUnavailable)
	assert.ErrorIs(t, err, startErr)
	assert.Equal(t, models.KindPageUnavailable, models.ErrorKind(err))
	assert.False(t, p.Busy())
}

func TestRunPageMissing(t *testing.T) {
	h := newHarness(t, staticPages(), browser.Options{Retries: 1})

	_, err := h.pipeline.Run(context.Background(), "https://facebook.com/nasa", models.PlatformUnknown, -1)
	assert.ErrorIs(t, err, models.ErrPageUnavailable)
	assert.True(t, h.sessions[0].Closed())
}

func TestTryRunBusy(t *testing.T) {
	h := newHarness(t, staticPages(), browser.Options{Retries: 1})

	h.pipeline.slot <- struct{}{}
	_, err := h.pipeline.TryRun(context.Background(), "https://youtube.com/watch?v=abc123", models.PlatformUnknown, -1)
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, h.pipeline.Busy())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.pipeline.Run(ctx, "https://youtube.com/watch?v=abc123", models.PlatformUnknown, -1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	<-h.pipeline.slot
	_, err = h.pipeline.TryRun(context.Background(), "https://youtube.com/watch?v=abc123", models.PlatformUnknown, -1)
	assert.NoError(t, err)
}

func TestClassify(t *testing.T) {
	h := newHarness(t, staticPages(), browser.Options{Retries: 1})

	l, s, err := h.pipeline.Classify("https://vm.tiktok.com/ZMabc123/", models.PlatformUnknown)
	require.NoError(t, err)
	assert.Equal(t, models.PlatformTikTok, l.Platform)
	assert.Equal(t, models.KindPost, l.Kind)
	assert.Equal(t, "TikTok/post", s.ID)

	_, _, err = h.pipeline.Classify("https://youtube.com/@MrBeast", models.PlatformTikTok)
	assert.ErrorIs(t, err, models.ErrUnsupportedPlatform)
}

func TestRunBatch(t *testing.T) {
	h := newHarness(t, staticPages(), browser.Options{Retries: 1})

	var calls int
	job, err := h.pipeline.RunBatch(context.Background(), []BatchItem{
		{URL: "https://youtube.com/watch?v=abc123"},
		{URL: "https://example.com"},
		{URL: "https://instagram.com/natgeo", Platform: models.PlatformInstagram},
	}, 1, func(job *BatchJob, result BatchResult) { calls++ })
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, JobStatusPartial, job.Status)
	assert.Equal(t, 2, job.Progress.Completed)
	assert.Equal(t, 1, job.Progress.Failed)
	assert.Equal(t, float64(100), job.Progress.Percentage)
	assert.Equal(t, models.KindUnsupportedPlatform, job.Results[1].ErrorKind)
	assert.Equal(t, 2, job.Table.Len())
	assert.NotNil(t, job.CompletedAt)
	assert.False(t, h.pipeline.Busy())
}

func TestRunBatchCancelled(t *testing.T) {
	h := newHarness(t, staticPages(), browser.Options{Retries: 1})

	ctx, cancel := context.WithCancel(context.Background())
	job, err := h.pipeline.RunBatch(ctx, []BatchItem{
		{URL: "https://youtube.com/watch?v=abc123"},
		{URL: "https://youtube.com/watch?v=abc123"},
	}, 0, func(job *BatchJob, result BatchResult) { cancel() })
	require.NoError(t, err)

	assert.Equal(t, JobStatusCancelled, job.Status)
	assert.Equal(t, 1, job.Progress.Completed)
	assert.Equal(t, 1, job.Progress.Skipped)
	assert.Equal(t, "skipped", job.Results[1].Status)

	_, err = h.pipeline.RunBatch(context.Background(), nil, 0, nil)
	assert.Error(t, err)
}
