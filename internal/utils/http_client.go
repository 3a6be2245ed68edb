package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// DefaultMaxBodySize caps how much of a page body is read
const DefaultMaxBodySize = 16 << 20

// HTTPClient represents a configurable HTTP client
type HTTPClient struct {
	client    *http.Client
	transport *http.Transport
	userAgent string
	maxBody   int64
	logger    zerolog.Logger
}

// ClientConfig represents HTTP client configuration
type ClientConfig struct {
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	ProxyURL        string
	UserAgent       string
	MaxBodySize     int64
	Logger          *zerolog.Logger
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config ClientConfig) (*HTTPClient, error) {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 10,
	}

	if config.ProxyURL != "" {
		proxyURL, err := url.Parse(config.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		switch proxyURL.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		case "socks5":
			dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("error creating socks5 dialer: %w", err)
			}
			contextDialer, ok := dialer.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("socks5 dialer does not support contexts")
			}
			transport.DialContext = contextDialer.DialContext
		default:
			return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
		}
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	maxBody := config.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		transport: transport,
		userAgent: userAgent,
		maxBody:   maxBody,
		logger:    logger,
	}, nil
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	return c.Do(req, headers)
}

// Do performs an HTTP request with custom headers
func (c *HTTPClient) Do(req *http.Request, headers map[string]string) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Making HTTP request")

	return c.client.Do(req)
}

// GetBody performs a GET request and returns the final URL, status and body
func (c *HTTPClient) GetBody(ctx context.Context, rawURL string, headers map[string]string) (string, int, []byte, error) {
	resp, err := c.Get(ctx, rawURL, headers)
	if err != nil {
		return "", 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return "", resp.StatusCode, nil, fmt.Errorf("error reading body: %w", err)
	}

	return resp.Request.URL.String(), resp.StatusCode, body, nil
}

// Close closes the HTTP client and cleans up resources
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// BuildProxyURL assembles a proxy URL from its parts. An empty host yields "".
func BuildProxyURL(scheme, host string, port int, username, password string) string {
	if host == "" {
		return ""
	}
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{Scheme: scheme, Host: host}
	if port > 0 {
		u.Host = fmt.Sprintf("%s:%d", host, port)
	}
	if username != "" {
		u.User = url.UserPassword(username, password)
	}
	return u.String()
}

// FormatDuration formats duration to human readable string
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	} else if d < time.Minute {
		return d.Round(time.Second).String()
	} else if d < time.Hour {
		return fmt.Sprintf("%vm %vs", int(d.Minutes()), int(d.Seconds())%60)
	} else {
		return fmt.Sprintf("%vh %vm %vs", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
}
