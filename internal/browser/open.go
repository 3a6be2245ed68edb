package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"social-scraper/internal/utils"
	"social-scraper/pkg/models"
)

// Engine names accepted by renderer.engine
const (
	EngineChrome = "chrome"
	EngineHTTP   = "http"
)

// SessionOptions converts the renderer configuration into session options
func SessionOptions(cfg *models.Config, logger zerolog.Logger) Options {
	return Options{
		Timeout:           time.Duration(cfg.Renderer.Timeout) * time.Second,
		Retries:           cfg.Renderer.Retries,
		RetryDelay:        time.Duration(cfg.Renderer.RetryDelay) * time.Second,
		RequestsPerSecond: cfg.Renderer.RequestsPerSecond,
		Logger:            &logger,
	}
}

// NewEngine creates the engine selected by renderer.engine
func NewEngine(ctx context.Context, cfg *models.Config, logger zerolog.Logger) (Engine, error) {
	proxyURL := ""
	if cfg.Proxy.Enabled {
		proxyURL = utils.BuildProxyURL(cfg.Proxy.Type, cfg.Proxy.Host, cfg.Proxy.Port, cfg.Proxy.Username, cfg.Proxy.Password)
	}

	switch cfg.Renderer.Engine {
	case EngineChrome, "":
		return NewChromeEngine(ctx, ChromeOptions{
			ExecPath:    cfg.Renderer.ExecPath,
			UserAgent:   cfg.Renderer.UserAgent,
			Headless:    cfg.Renderer.Headless,
			SettleDelay: time.Duration(cfg.Renderer.SettleDelayMS) * time.Millisecond,
			Scroll:      cfg.Renderer.Scroll,
			ProxyURL:    proxyURL,
		})
	case EngineHTTP:
		return NewHTTPEngine(utils.ClientConfig{
			Timeout:         time.Duration(cfg.Renderer.Timeout) * time.Second,
			MaxIdleConns:    10,
			IdleConnTimeout: 90 * time.Second,
			ProxyURL:        proxyURL,
			UserAgent:       cfg.Renderer.UserAgent,
			Logger:          &logger,
		})
	default:
		return nil, fmt.Errorf("unknown renderer engine: %s", cfg.Renderer.Engine)
	}
}

// Open starts the configured engine and wraps it in a session
func Open(ctx context.Context, cfg *models.Config, logger zerolog.Logger) (*Session, error) {
	engine, err := NewEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("engine", engine.Name()).Msg("Renderer opened")
	return NewSession(engine, SessionOptions(cfg, logger)), nil
}
