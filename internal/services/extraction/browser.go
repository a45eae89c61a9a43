package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// pageLoadTimeout caps a single navigation including render settle time
const pageLoadTimeout = 45 * time.Second

// Browser owns one headless Chrome process shared by all extractions in a
// run. Each FetchHTML call opens a fresh tab so page state never leaks
// between jobs.
type Browser struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        arbor.ILogger
}

// NewBrowser starts the headless browser and verifies it responds.
// Returns an error when Chrome cannot be launched in this environment.
func NewBrowser(logger arbor.ILogger) (*Browser, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(defaultUserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Startup probe: a browser that cannot reach about:blank will not
	// survive real navigations either.
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed startup probe: %w", err)
	}

	logger.Info().Msg("Headless browser started")

	return &Browser{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
	}, nil
}

// FetchHTML navigates to url in a new tab and returns the rendered DOM
func (b *Browser) FetchHTML(ctx context.Context, url string) (string, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, pageLoadTimeout)
	defer runCancel()

	// Honour the caller's cancellation as well as the page deadline
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			tabCancel()
		case <-done:
		}
	}()
	defer close(done)

	start := time.Now()
	var html string
	err := chromedp.Run(runCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}

	b.logger.Debug().
		Str("url", url).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Int("html_bytes", len(html)).
		Msg("Rendered job page")

	return html, nil
}

// Close tears down the browser process
func (b *Browser) Close() error {
	b.browserCancel()
	b.allocCancel()
	b.logger.Debug().Msg("Headless browser closed")
	return nil
}
