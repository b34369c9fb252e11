package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/codebrowser/codebrowser/internal/browser/berr"
	"github.com/codebrowser/codebrowser/internal/config"
)

const gotoMaxRetries = 3

// GotoResult is the outcome of a successful navigation: the page's final
// URL (which may differ from the requested one after redirects or a
// same-document SPA change) and its document title, when available.
type GotoResult struct {
	URL   string
	Title string
}

// Goto navigates to url and applies the configured wait strategy. A
// Page.navigate timeout is not automatically a failure: if the browser's
// own URL is already an http(s) page (any such URL, not only url itself),
// the navigation is taken to have gone through and counts as success
// rather than being retried.
func (p *Page) Goto(ctx context.Context, url string, wait config.WaitStrategy) (GotoResult, error) {
	var lastErr error
	var fallbackNavigated bool

	for attempt := 1; attempt <= gotoMaxRetries; attempt++ {
		navCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := chromedp.Run(navCtx, chromedp.Navigate(url))
		cancel()

		if err == nil {
			fallbackNavigated = false
			lastErr = nil
			break
		}

		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "request timed out") || strings.Contains(msg, "timeout") || strings.Contains(msg, "context deadline exceeded") {
			if cur := p.currentBrowserURL(ctx); strings.HasPrefix(cur, "http://") || strings.HasPrefix(cur, "https://") {
				if cur != "about:blank" {
					fallbackNavigated = true
					lastErr = nil
					break
				}
			}
			lastErr = err
		} else {
			return GotoResult{}, &berr.CdpError{Message: fmt.Sprintf("navigation failed: %s", err.Error())}
		}

		if attempt < gotoMaxRetries {
			time.Sleep(time.Duration(1000*attempt) * time.Millisecond)
		}
	}

	if lastErr != nil {
		return GotoResult{}, &berr.CdpError{Message: fmt.Sprintf("navigation failed after %d retries: %s", gotoMaxRetries, lastErr.Error())}
	}

	if err := p.applyWaitStrategy(ctx, wait, fallbackNavigated); err != nil {
		return GotoResult{}, err
	}

	finalURL := url
	for i := 0; i < 3; i++ {
		if cur := p.currentBrowserURL(ctx); cur != "" {
			finalURL = cur
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	p.setCurrentURL(finalURL)

	// Title is tolerated to be absent: a page that errors reading it (or
	// never sets one) still counts as a successful navigation.
	title := p.currentTitle(ctx)

	x, y := p.GetCursorPosition()
	_ = p.ensureVirtualCursor(ctx, x, y)

	return GotoResult{URL: finalURL, Title: title}, nil
}

func (p *Page) currentTitle(ctx context.Context) string {
	titleCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var title string
	_ = chromedp.Run(titleCtx, chromedp.Title(&title))
	return title
}

func (p *Page) applyWaitStrategy(ctx context.Context, wait config.WaitStrategy, fallbackNavigated bool) error {
	if wait.IsDelay() {
		time.Sleep(time.Duration(wait.DelayMs) * time.Millisecond)
		return nil
	}

	switch wait.Event {
	case "domcontentloaded":
		if fallbackNavigated {
			return p.pollReadyState(ctx, []string{"interactive", "complete"}, 3*time.Second)
		}
		return chromedp.Run(ctx, chromedp.WaitReady("body"))
	case "load":
		if fallbackNavigated {
			if err := p.pollReadyState(ctx, []string{"complete"}, 4*time.Second); err != nil {
				return err
			}
			time.Sleep(300 * time.Millisecond)
			return nil
		}
		if err := chromedp.Run(ctx, chromedp.WaitReady("body")); err != nil {
			return &berr.CdpError{Message: err.Error()}
		}
		time.Sleep(500 * time.Millisecond)
		return nil
	case "networkidle", "networkidle0":
		time.Sleep(1000 * time.Millisecond)
		return nil
	case "networkidle2":
		time.Sleep(500 * time.Millisecond)
		return nil
	default:
		return &berr.ConfigError{Message: fmt.Sprintf("unknown wait event %q", wait.Event)}
	}
}

func (p *Page) pollReadyState(ctx context.Context, acceptable []string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var state string
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			res, _, err := runtime.Evaluate(`document.readyState`).Do(ctx)
			if err != nil {
				return err
			}
			return json.Unmarshal(res.Value, &state)
		}))
		if err == nil {
			for _, s := range acceptable {
				if state == s {
					return nil
				}
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil // best-effort: proceed even if readyState never settled
}

func (p *Page) currentBrowserURL(ctx context.Context) string {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var url string
	err := chromedp.Run(probeCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cur, history, err := cdppage.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		for _, entry := range history {
			if entry.ID == cur {
				url = entry.URL
				return nil
			}
		}
		return nil
	}))
	if err != nil {
		return ""
	}
	return url
}
