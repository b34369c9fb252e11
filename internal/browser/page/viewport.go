package page

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/codebrowser/codebrowser/internal/browser/berr"
)

// ActualViewport reports the layout viewport's CSS pixel size as Chrome
// currently sees it, independent of what the config asked for. The
// viewport monitor diffs this against the configured size to detect OS
// window-manager drift (e.g. a window manager refusing the requested
// size) on internally launched browsers. Read via document.documentElement
// rather than Page.getLayoutMetrics, which reports the visual viewport and
// would raise false positives on pages with scrollbars.
func (p *Page) ActualViewport(ctx context.Context) (width, height int64, err error) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var dims struct {
		Width  int64 `json:"width"`
		Height int64 `json:"height"`
	}
	script := `({width: document.documentElement.clientWidth, height: document.documentElement.clientHeight})`
	if runErr := chromedp.Run(runCtx, chromedp.Evaluate(script, &dims)); runErr != nil {
		return 0, 0, &berr.CdpError{Message: "viewport dimension read failed: " + runErr.Error()}
	}
	return dims.Width, dims.Height, nil
}

// SetViewport overrides the emulated device metrics. It is only ever
// called by the manager for internally launched browsers: forcing device
// metrics on an external connection would reach into windows the user
// owns, which the spec forbids outright.
func (p *Page) SetViewport(ctx context.Context, width, height uint32, deviceScaleFactor float64, mobile bool) error {
	runCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.EmulateViewport(int64(width), int64(height),
		chromedp.EmulateScale(deviceScaleFactor)))
	if err != nil {
		return &berr.CdpError{Message: "setDeviceMetricsOverride failed: " + err.Error()}
	}
	return nil
}

// PollURL reads window.location.href directly from the page, used by the
// navigation monitor to notice same-document SPA transitions that never
// fire a CDP Page.frameNavigated event.
func (p *Page) PollURL(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var href string
	err := chromedp.Run(runCtx, chromedp.Evaluate(`window.location.href`, &href))
	if err != nil {
		return "", &berr.CdpError{Message: "location poll failed: " + err.Error()}
	}
	return href, nil
}

// NavSeq reads window.__code_nav_seq, the bootstrap script's counter of
// codex:locationchange events fired in this document. The navigation
// monitor polls it on external connections to notice SPA route changes
// without depending on CDP frame-navigated events, which the monitor has
// no way to subscribe to from outside a launched-and-owned browser.
func (p *Page) NavSeq(ctx context.Context) (int64, error) {
	runCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var seq int64
	err := chromedp.Run(runCtx, chromedp.Evaluate(`window.__code_nav_seq || 0`, &seq))
	if err != nil {
		return 0, &berr.CdpError{Message: "nav seq read failed: " + err.Error()}
	}
	return seq, nil
}

// IsVisibleAndFocused reports the page's document.visibilityState and
// document.hasFocus(), bounded by a 300ms probe; it returns false, false
// when the probe fails.
func (p *Page) IsVisibleAndFocused(ctx context.Context) (visible, focused bool) {
	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	var result struct {
		Visible bool `json:"visible"`
		Focused bool `json:"focused"`
	}
	script := `({visible: document.visibilityState === 'visible', focused: document.hasFocus()})`
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &result)); err != nil {
		return false, false
	}
	return result.Visible, result.Focused
}
