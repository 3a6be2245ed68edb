package browser

import (
	"context"
	"fmt"

	"social-scraper/internal/utils"
)

// HTTPEngine fetches static HTML without running scripts. Pages that build
// their content client-side only expose their meta tags to this engine.
type HTTPEngine struct {
	client *utils.HTTPClient
}

// NewHTTPEngine creates an engine backed by utils.HTTPClient
func NewHTTPEngine(config utils.ClientConfig) (*HTTPEngine, error) {
	client, err := utils.NewHTTPClient(config)
	if err != nil {
		return nil, fmt.Errorf("error creating http client: %w", err)
	}
	return &HTTPEngine{client: client}, nil
}

// Name returns the engine name
func (e *HTTPEngine) Name() string {
	return "http"
}

// Fetch performs a GET request for url
func (e *HTTPEngine) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	finalURL, status, body, err := e.client.GetBody(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	return &FetchResult{
		HTML:     string(body),
		FinalURL: finalURL,
		Status:   status,
	}, nil
}

// Close releases idle connections
func (e *HTTPEngine) Close() error {
	return e.client.Close()
}
