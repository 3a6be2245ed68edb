// Package app assembles the scraper from configuration. The CLI, the API
// server and the TUI all start from New.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"social-scraper/internal/browser"
	"social-scraper/internal/export"
	"social-scraper/internal/monitor"
	"social-scraper/internal/normalize"
	"social-scraper/internal/pipeline"
	"social-scraper/internal/registry"
	"social-scraper/internal/storage"
	"social-scraper/pkg/models"
)

// App holds the wired components
type App struct {
	Config     *models.Config
	Logger     zerolog.Logger
	Registry   *registry.Registry
	Normalizer *normalize.Normalizer
	Storage    *storage.SQLite
	Monitor    *monitor.Monitor
	Pipeline   *pipeline.Pipeline
}

// Option changes how an App is assembled
type Option func(*options)

type options struct {
	open pipeline.OpenFunc
}

// WithOpenFunc replaces the configured renderer
func WithOpenFunc(open pipeline.OpenFunc) Option {
	return func(o *options) { o.open = open }
}

// New builds every component named by cfg. History is opened only when
// database.enabled is set.
func New(cfg *models.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reg, err := registry.NewDefault(&logger)
	if err != nil {
		return nil, fmt.Errorf("error building registry: %w", err)
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   reg,
		Normalizer: normalize.New(cfg.Scrape.Placeholder),
		Monitor:    monitor.NewMonitor(),
	}
	a.Monitor.SetLogger(logger)

	if cfg.Database.Enabled {
		a.Storage, err = storage.NewSQLite(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("error initializing storage: %w", err)
		}
	}

	open := o.open
	if open == nil {
		open = func(ctx context.Context) (models.Renderer, error) {
			session, err := browser.Open(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return session, nil
		}
	}

	a.Pipeline = pipeline.New(reg, a.Normalizer, open, pipeline.Options{
		MaxItems: cfg.Scrape.MaxItems,
		Storage:  a.History(),
		Monitor:  a.Monitor,
		Logger:   &logger,
	})
	return a, nil
}

// History returns the storage as an interface, nil when history is off
func (a *App) History() models.Storage {
	if a.Storage == nil {
		return nil
	}
	return a.Storage
}

// Exporter returns an exporter for format using the export settings
func (a *App) Exporter(format export.ExportFormat, withExtra bool) *export.DataExporter {
	return export.NewDataExporter(export.ExportConfig{
		Format:    format,
		WithExtra: withExtra || a.Config.Export.WithExtra,
	})
}

// Close releases the storage and stops the monitor
func (a *App) Close() error {
	a.Monitor.Stop()
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
