package page

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/codebrowser/codebrowser/internal/browser/berr"
)

const preflightCacheTTL = 5 * time.Second

// isVisibleJS probes document.visibilityState so the capture ladder can
// tell a backgrounded tab from a foregrounded one. It defaults to
// visible=true on any evaluation failure, so a failed probe leads to the
// from_surface=false (no-flash) attempt first rather than failing the
// capture outright.
const isVisibleJS = `
(() => {
  try {
    return document.visibilityState === 'visible';
  } catch (e) {
    return true;
  }
})();
`

func (p *Page) probeVisible(ctx context.Context) bool {
	visible := true
	_ = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, _, err := runtime.Evaluate(isVisibleJS).Do(ctx)
		if err != nil {
			return err
		}
		if len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal(res.Value, &visible)
	}))
	return visible
}

// preflightProbe takes a tiny 8x8 screenshot with from_surface=false to
// check whether capturing without surface compositing will actually
// produce pixels, without paying for a full-size capture. Only run when
// the page looks hidden; the result is cached briefly since a hidden tab
// tends to stay hidden across several calls in quick succession.
func (p *Page) preflightProbe(ctx context.Context) bool {
	p.preflightMu.Lock()
	if p.havePreflight && time.Since(p.preflightAt) < preflightCacheTTL {
		ok := p.preflightResult
		p.preflightMu.Unlock()
		return ok
	}
	p.preflightMu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, 350*time.Millisecond)
	defer cancel()

	ok := false
	err := chromedp.Run(probeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, err := cdppage.CaptureScreenshot().
			WithClip(&cdppage.Viewport{X: 0, Y: 0, Width: 8, Height: 8, Scale: 1}).
			WithFromSurface(false).
			Do(ctx)
		if err != nil {
			return err
		}
		ok = len(data) > 0
		return nil
	}))
	if err != nil {
		ok = false
	}

	p.preflightMu.Lock()
	p.preflightAt = time.Now()
	p.preflightResult = ok
	p.havePreflight = true
	p.preflightMu.Unlock()

	return ok
}

func (p *Page) captureOnce(ctx context.Context, fromSurface bool, timeout time.Duration) ([]byte, error) {
	capCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var data []byte
	err := chromedp.Run(capCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, err = cdppage.CaptureScreenshot().WithFromSurface(fromSurface).Do(ctx)
		return err
	}))
	return data, err
}

// CaptureScreenshotWithRetry implements the visibility-aware capture ladder:
// a visible page is always attempted first with from_surface=false (the
// non-flashing path) and only falls back to from_surface=true if that
// fails; a hidden page is preflighted cheaply and goes straight to whichever
// mode the preflight says will actually produce pixels, still with a
// from_surface=true fallback if the first attempt errors or times out.
func (p *Page) CaptureScreenshotWithRetry(ctx context.Context) ([]byte, error) {
	visible := p.probeVisible(ctx)

	// firstAttemptFromSurfaceFalse tracks whether the first attempt used
	// from_surface=false, so the retry branch below knows which fallback
	// ladder it's on.
	var firstAttemptFromSurfaceFalse bool
	var firstTimeout time.Duration
	switch {
	case visible:
		firstAttemptFromSurfaceFalse = true
		firstTimeout = 3 * time.Second
	case p.preflightProbe(ctx):
		firstAttemptFromSurfaceFalse = true
		firstTimeout = 6 * time.Second
	default:
		firstAttemptFromSurfaceFalse = false
		firstTimeout = 6 * time.Second
	}

	data, err := p.captureOnce(ctx, !firstAttemptFromSurfaceFalse, firstTimeout)
	if err == nil && len(data) > 0 {
		return data, nil
	}

	if !visible || !firstAttemptFromSurfaceFalse {
		data, err = p.captureOnce(ctx, true, 8*time.Second)
		if err == nil && len(data) > 0 {
			return data, nil
		}
		return nil, &berr.ScreenshotError{Message: "screenshot capture failed: " + errString(err)}
	}

	time.Sleep(120 * time.Millisecond)
	data, err = p.captureOnce(ctx, false, 4*time.Second)
	if err == nil && len(data) > 0 {
		return data, nil
	}

	data, err = p.captureOnce(ctx, true, 4*time.Second)
	if err == nil && len(data) > 0 {
		return data, nil
	}
	return nil, &berr.ScreenshotError{Message: "screenshot capture failed after all retries: " + errString(err)}
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// CaptureFullPageScreenshot slices the full document into up to segmentsMax
// clipped captures of size vw x vh (no scrolling: each slice uses
// capture_beyond_viewport=true against a clip rect at increasing y
// offsets), reporting whether content_height required more slices than the
// cap allowed.
func (p *Page) CaptureFullPageScreenshot(ctx context.Context, vw, vh uint32, segmentsMax int) (slices [][]byte, truncated bool, err error) {
	metricsCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var contentWidth, contentHeight float64
	runErr := chromedp.Run(metricsCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, _, _, _, cssContent, err := cdppage.GetLayoutMetrics().Do(ctx)
		if err != nil {
			return err
		}
		if cssContent == nil {
			return fmt.Errorf("css content metrics unavailable")
		}
		contentWidth = cssContent.Width
		contentHeight = cssContent.Height
		return nil
	}))
	if runErr != nil {
		return nil, false, &berr.ScreenshotError{Message: "failed to read layout metrics: " + errString(runErr)}
	}

	sliceW := float64(vw)
	if contentWidth > 0 && contentWidth < sliceW {
		sliceW = contentWidth
	}
	sliceH := float64(vh)
	if sliceH <= 0 {
		sliceH = contentHeight
	}

	total := 1
	if sliceH > 0 && contentHeight > sliceH {
		total = int((contentHeight + sliceH - 1) / sliceH)
	}
	if total > segmentsMax {
		total = segmentsMax
		truncated = true
	}
	if total < 1 {
		total = 1
	}

	for i := 0; i < total; i++ {
		y := float64(i) * sliceH
		h := sliceH
		if y+h > contentHeight && contentHeight > 0 {
			h = contentHeight - y
		}
		if h <= 0 {
			break
		}

		data, captureErr := p.captureClipped(ctx, 0, y, sliceW, h)
		if captureErr != nil {
			return slices, truncated, &berr.ScreenshotError{Message: fmt.Sprintf("full-page slice %d failed: %s", i, errString(captureErr))}
		}
		slices = append(slices, data)
	}

	return slices, truncated, nil
}

// CaptureRegionScreenshot clips a single capture to the given page-relative
// rectangle, using capture_beyond_viewport=true exactly like the full-page
// slices so a region larger than the viewport still captures fully.
func (p *Page) CaptureRegionScreenshot(ctx context.Context, x, y, w, h float64) ([]byte, error) {
	data, err := p.captureClipped(ctx, x, y, w, h)
	if err != nil {
		return nil, &berr.ScreenshotError{Message: "region capture failed: " + errString(err)}
	}
	return data, nil
}

func (p *Page) captureClipped(ctx context.Context, x, y, w, h float64) ([]byte, error) {
	capCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()

	var data []byte
	err := chromedp.Run(capCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, err = cdppage.CaptureScreenshot().
			WithClip(&cdppage.Viewport{X: x, Y: y, Width: w, Height: h, Scale: 1}).
			WithCaptureBeyondViewport(true).
			Do(ctx)
		return err
	}))
	return data, err
}
