package browser

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the headless Chrome engine
type ChromeOptions struct {
	ExecPath    string
	UserAgent   string
	Headless    bool
	SettleDelay time.Duration
	Scroll      bool
	ProxyURL    string
}

// ChromeEngine renders pages in headless Chrome through chromedp.
// One browser process is started per engine; every fetch opens a new tab.
type ChromeEngine struct {
	opts          ChromeOptions
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// chromePaths are tried when no executable is configured
var chromePaths = []string{
	"/headless-shell/headless-shell",
	"/usr/bin/chromium-browser",
	"/usr/bin/chromium",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
}

// execAllocatorOptions returns chromedp options that work both locally and in Docker
func execAllocatorOptions(opts ChromeOptions) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("js-flags", "--max-old-space-size=512"),
	)

	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	execPath := opts.ExecPath
	if execPath == "" {
		for _, p := range chromePaths {
			if _, err := os.Stat(p); err == nil {
				execPath = p
				break
			}
		}
	}
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}

	return allocOpts
}

// NewChromeEngine starts a browser. The browser lives until Close.
func NewChromeEngine(ctx context.Context, opts ChromeOptions) (*ChromeEngine, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), execAllocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &ChromeEngine{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Name returns the engine name
func (e *ChromeEngine) Name() string {
	return "chrome"
}

// Fetch loads url in a new tab and returns the rendered HTML
func (e *ChromeEngine) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	tabCtx, tabCancel := chromedp.NewContext(e.browserCtx)
	defer tabCancel()

	// The tab inherits the browser context, so the caller's deadline is
	// carried over explicitly
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithDeadline(tabCtx, deadline)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	var html, finalURL string
	var status atomic.Int64

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Type == network.ResourceTypeDocument {
			status.CompareAndSwap(0, resp.Response.Status)
		}
	})

	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if e.opts.UserAgent != "" {
		tasks = append(chromedp.Tasks{
			chromedp.ActionFunc(func(ctx context.Context) error {
				return emulation.SetUserAgentOverride(e.opts.UserAgent).
					WithAcceptLanguage("en-US,en;q=0.9").
					Do(ctx)
			}),
		}, tasks...)
	}
	if e.opts.Scroll {
		// Lazy lists only render after the viewport moves
		tasks = append(tasks, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil))
	}
	if e.opts.SettleDelay > 0 {
		tasks = append(tasks, chromedp.Sleep(e.opts.SettleDelay))
	}
	tasks = append(tasks,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch page: %w", ctx.Err())
		}
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	return &FetchResult{
		HTML:     html,
		FinalURL: finalURL,
		Status:   int(status.Load()),
	}, nil
}

// Close shuts down the browser
func (e *ChromeEngine) Close() error {
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}
