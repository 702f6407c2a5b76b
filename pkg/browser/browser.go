// Package browser hides headless-browser automation behind a narrow
// interface. The browser is an external, fallible, slow collaborator: each
// call gets its own browser context with a hard timeout, and every exit path
// releases the underlying process. Site-specific selectors stay with the
// adapters; this package only navigates and snapshots.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/104.0.0.0 Safari/537.36"

// PageOptions tunes a single rendered-page fetch.
type PageOptions struct {
	// WaitVisible is a CSS selector the page must render before the snapshot
	// is taken. Empty means snapshot as soon as navigation settles.
	WaitVisible string
	// ScrollToBottom forces below-the-fold content to lazy-load.
	ScrollToBottom bool
	// Settle is an extra pause after navigation for script-driven pages.
	Settle time.Duration
	// UserAgent overrides the default desktop identity.
	UserAgent string
}

// Renderer fetches a fully rendered page and returns its HTML snapshot.
type Renderer interface {
	HTML(ctx context.Context, url string, opts PageOptions) (string, error)
}

// ChromeRenderer implements Renderer on top of chromedp. One headless
// browser process is launched per call and torn down with it.
type ChromeRenderer struct {
	timeout time.Duration
}

// NewChromeRenderer builds a renderer whose page fetches abort after timeout.
func NewChromeRenderer(timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &ChromeRenderer{timeout: timeout}
}

// HTML navigates to url and returns the rendered document.
func (r *ChromeRenderer) HTML(ctx context.Context, url string, opts PageOptions) (string, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.UserAgent(ua),
		chromedp.WindowSize(1920, 1080),
	)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	pageCtx, cancelPage := chromedp.NewContext(allocCtx)
	defer cancelPage()

	actions := []chromedp.Action{chromedp.Navigate(url)}
	if opts.WaitVisible != "" {
		actions = append(actions, chromedp.WaitVisible(opts.WaitVisible, chromedp.ByQuery))
	}
	if opts.ScrollToBottom {
		actions = append(actions, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
	}
	if opts.Settle > 0 {
		actions = append(actions, chromedp.Sleep(opts.Settle))
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(pageCtx, actions...); err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}
