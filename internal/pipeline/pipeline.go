package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"social-scraper/internal/link"
	"social-scraper/internal/monitor"
	"social-scraper/internal/normalize"
	"social-scraper/internal/registry"
	"social-scraper/pkg/models"
)

// ErrBusy is returned by TryRun while another run holds the pipeline
var ErrBusy = errors.New("a scrape is already running")

// OpenFunc opens the renderer for one run
type OpenFunc func(ctx context.Context) (models.Renderer, error)

// Options configures a pipeline. Storage and Monitor are optional.
type Options struct {
	MaxItems int
	Storage  models.Storage
	Monitor  *monitor.Monitor
	Logger   *zerolog.Logger
}

// Result is the outcome of one successful run
type Result struct {
	RunID    string        `json:"run_id"`
	Link     *models.Link  `json:"link"`
	Strategy string        `json:"strategy"`
	Table    *models.Table `json:"table"`
	Duration time.Duration `json:"duration"`
}

// Pipeline takes a raw link through classification, extraction and
// normalization. Runs are serialized; each run owns its renderer.
type Pipeline struct {
	registry   *registry.Registry
	normalizer *normalize.Normalizer
	open       OpenFunc
	storage    models.Storage
	monitor    *monitor.Monitor
	logger     zerolog.Logger
	maxItems   int
	slot       chan struct{}
}

// New creates a pipeline
func New(reg *registry.Registry, norm *normalize.Normalizer, open OpenFunc, opts Options) *Pipeline {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if norm == nil {
		norm = normalize.New("")
	}
	if opts.MaxItems < 0 {
		opts.MaxItems = 0
	}

	return &Pipeline{
		registry:   reg,
		normalizer: norm,
		open:       open,
		storage:    opts.Storage,
		monitor:    opts.Monitor,
		logger:     logger.With().Str("component", "pipeline").Logger(),
		maxItems:   opts.MaxItems,
		slot:       make(chan struct{}, 1),
	}
}

// Normalizer returns the record normalizer
func (p *Pipeline) Normalizer() *normalize.Normalizer {
	return p.normalizer
}

// MaxItems returns the default fan-out limit
func (p *Pipeline) MaxItems() int {
	return p.maxItems
}

// Busy reports whether a run is in progress
func (p *Pipeline) Busy() bool {
	return len(p.slot) > 0
}

// Classify parses a link and resolves its strategy without loading anything
func (p *Pipeline) Classify(raw string, hint models.Platform) (*models.Link, registry.Strategy, error) {
	l, err := link.Parse(raw, hint)
	if err != nil {
		return nil, registry.Strategy{}, err
	}
	s, err := p.registry.Lookup(l.Platform, l.Kind)
	if err != nil {
		return l, registry.Strategy{}, err
	}
	return l, s, nil
}

// Run waits for the pipeline to be free and scrapes raw. A negative
// maxItems uses the configured default.
func (p *Pipeline) Run(ctx context.Context, raw string, hint models.Platform, maxItems int) (*Result, error) {
	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.slot }()

	return p.run(ctx, raw, hint, maxItems)
}

// TryRun is Run without waiting: it fails with ErrBusy when another run is
// in progress
func (p *Pipeline) TryRun(ctx context.Context, raw string, hint models.Platform, maxItems int) (*Result, error) {
	select {
	case p.slot <- struct{}{}:
	default:
		return nil, ErrBusy
	}
	defer func() { <-p.slot }()

	return p.run(ctx, raw, hint, maxItems)
}

func (p *Pipeline) run(ctx context.Context, raw string, hint models.Platform, maxItems int) (*Result, error) {
	start := time.Now()
	if maxItems < 0 {
		maxItems = p.maxItems
	}
	logger := p.logger.With().Str("url", raw).Logger()

	l, s, err := p.Classify(raw, hint)
	if err != nil {
		event := logger.Warn()
		if errors.Is(err, models.ErrNoExtractorRegistered) {
			event = logger.Error()
		}
		event.Err(err).Str("error_kind", models.ErrorKind(err)).Msg("Cannot dispatch link")
		p.recordFailure(l, err, start)
		return nil, err
	}
	logger = logger.With().
		Str("platform", string(l.Platform)).
		Str("kind", string(l.Kind)).
		Str("strategy", s.ID).
		Logger()

	if p.monitor != nil {
		p.monitor.RecordRunStart(string(l.Platform), string(l.Kind))
	}

	table, err := p.extract(ctx, logger, l, s, maxItems)
	if err != nil {
		logger.Error().Err(err).Str("error_kind", models.ErrorKind(err)).Msg("Scrape failed")
		if p.monitor != nil {
			p.monitor.RecordRunFailure(string(l.Platform), string(l.Kind), models.ErrorKind(err), time.Since(start))
		}
		return nil, err
	}

	result := &Result{
		RunID:    fmt.Sprintf("run_%d", start.UnixNano()),
		Link:     l,
		Strategy: s.ID,
		Table:    table,
		Duration: time.Since(start),
	}

	if p.monitor != nil {
		p.monitor.RecordRunSuccess(string(l.Platform), string(l.Kind), result.Duration, table.Len(), len(table.Skipped))
	}
	p.save(logger, raw, result)

	logger.Info().
		Int("records", table.Len()).
		Int("skipped", len(table.Skipped)).
		Dur("duration", result.Duration).
		Msg("Scrape completed")
	return result, nil
}

// extract owns the renderer for the duration of one run
func (p *Pipeline) extract(ctx context.Context, logger zerolog.Logger, l *models.Link, s registry.Strategy, maxItems int) (*models.Table, error) {
	renderer, err := p.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening renderer: %w", models.ErrPageUnavailable, err)
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			logger.Warn().Err(err).Msg("Error closing renderer")
		}
	}()

	extraction, err := s.Extractor.Extract(ctx, renderer, l, maxItems)
	if err != nil {
		return nil, err
	}
	p.recordMissing(extraction)

	for _, skipped := range extraction.Skipped {
		logger.Warn().Str("item", skipped.URL).Str("reason", skipped.Reason).Msg("Item skipped")
	}

	return p.normalizer.BuildTable(l, extraction)
}

func (p *Pipeline) recordMissing(ex *models.Extraction) {
	if p.monitor == nil || ex == nil {
		return
	}
	pages := append([]*models.RawExtraction{ex.Primary}, ex.Items...)
	for _, raw := range pages {
		if raw == nil {
			continue
		}
		for _, field := range raw.Missing {
			p.monitor.RecordFieldMissing(string(raw.Platform), string(raw.Kind), field)
		}
	}
}

func (p *Pipeline) recordFailure(l *models.Link, err error, start time.Time) {
	if p.monitor == nil {
		return
	}
	platform, kind := string(models.PlatformUnknown), string(models.KindInvalid)
	if l != nil {
		platform, kind = string(l.Platform), string(l.Kind)
	}
	p.monitor.RecordRunStart(platform, kind)
	p.monitor.RecordRunFailure(platform, kind, models.ErrorKind(err), time.Since(start))
}

// save persists the run. Storage failures are logged and do not fail the
// run.
func (p *Pipeline) save(logger zerolog.Logger, raw string, result *Result) {
	if p.storage == nil {
		return
	}
	start := time.Now()

	run := &models.ScrapeRun{
		ID:          result.RunID,
		RawURL:      raw,
		URL:         result.Link.Normalized,
		Platform:    result.Link.Platform,
		Kind:        result.Link.Kind,
		Strategy:    result.Strategy,
		RecordCount: result.Table.Len(),
		Skipped:     len(result.Table.Skipped),
		DurationMS:  result.Duration.Milliseconds(),
	}

	status := "success"
	if err := p.storage.SaveRun(run, result.Table); err != nil {
		status = "error"
		logger.Error().Err(err).Msg("Error saving run")
	}
	if p.monitor != nil {
		p.monitor.RecordStorageOperation("save_run", status, time.Since(start))
	}
}
