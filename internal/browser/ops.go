package browser

import (
	"context"
	"log"

	"github.com/codebrowser/codebrowser/internal/browser/page"
)

// Screenshot captures the current page: one viewport-clipped image in
// Viewport mode (the default), or up to cfg.SegmentsMax vertical slices of
// the full document when cfg.FullPage is set. Every slice is persisted to
// the asset sink (if configured) alongside the raw bytes returned to the
// caller.
func (m *Manager) Screenshot(ctx context.Context) (data [][]byte, assetPaths []string, err error) {
	p, err := m.GetOrCreatePage(ctx)
	if err != nil {
		return nil, nil, err
	}

	var shots [][]byte
	if m.cfg.FullPage {
		var truncated bool
		shots, truncated, err = p.CaptureFullPageScreenshot(ctx, m.cfg.Viewport.Width, m.cfg.Viewport.Height, m.cfg.SegmentsMax)
		if err != nil {
			return nil, nil, err
		}
		if truncated {
			log.Printf("codebrowser: full-page screenshot truncated to %d segments", m.cfg.SegmentsMax)
		}
	} else {
		shot, captureErr := p.CaptureScreenshotWithRetry(ctx)
		if captureErr != nil {
			return nil, nil, captureErr
		}
		shots = [][]byte{shot}
	}
	m.touchActivity()

	if m.assets == nil {
		return shots, nil, nil
	}

	paths := make([]string, len(shots))
	for i, shot := range shots {
		assetPath, storeErr := m.assets.StoreScreenshot(ctx, shot, m.cfg.Format, m.cfg.Viewport.Width, m.cfg.Viewport.Height, defaultScreenshotTTL)
		if storeErr != nil {
			return shots, paths, storeErr
		}
		paths[i] = assetPath
	}
	return shots, paths, nil
}

// ScreenshotRegion captures a single image clipped to the given
// page-relative rectangle, bypassing both the Viewport and FullPage modes.
func (m *Manager) ScreenshotRegion(ctx context.Context, x, y, w, h float64) (data []byte, assetPath string, err error) {
	p, err := m.GetOrCreatePage(ctx)
	if err != nil {
		return nil, "", err
	}

	data, err = p.CaptureRegionScreenshot(ctx, x, y, w, h)
	if err != nil {
		return nil, "", err
	}
	m.touchActivity()

	if m.assets == nil {
		return data, "", nil
	}

	assetPath, err = m.assets.StoreScreenshot(ctx, data, m.cfg.Format, uint32(w), uint32(h), defaultScreenshotTTL)
	if err != nil {
		return data, "", err
	}
	return data, assetPath, nil
}

func (m *Manager) withPage(ctx context.Context, fn func(p *page.Page) error) error {
	p, err := m.GetOrCreatePage(ctx)
	if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		return err
	}
	m.touchActivity()
	return nil
}

// MoveMouse moves the virtual cursor to an absolute page position.
func (m *Manager) MoveMouse(ctx context.Context, x, y float64) error {
	return m.withPage(ctx, func(p *page.Page) error { return p.MoveMouse(ctx, x, y) })
}

// Click moves to (x, y) and dispatches a full press/release with the given
// button.
func (m *Manager) Click(ctx context.Context, x, y float64, button page.MouseButton) error {
	return m.withPage(ctx, func(p *page.Page) error { return p.Click(ctx, x, y, button) })
}

// TypeText focuses the element under the cursor (if any) and types text
// using the paste-style/per-character strategy appropriate to its length.
func (m *Manager) TypeText(ctx context.Context, text string) error {
	return m.withPage(ctx, func(p *page.Page) error { return p.TypeText(ctx, text) })
}

// PressKey dispatches a named key (Enter, Tab, ArrowDown, ...) or, for an
// unrecognized name, a best-effort raw key event.
func (m *Manager) PressKey(ctx context.Context, key string) error {
	return m.withPage(ctx, func(p *page.Page) error { return p.PressKey(ctx, key) })
}

// ScrollBy scrolls the page by (dx, dy) and returns the resulting scroll
// offset.
func (m *Manager) ScrollBy(ctx context.Context, dx, dy float64) (x, y float64, err error) {
	p, err := m.GetOrCreatePage(ctx)
	if err != nil {
		return 0, 0, err
	}
	x, y, err = p.ScrollBy(ctx, dx, dy)
	if err == nil {
		m.touchActivity()
	}
	return x, y, err
}

// HistoryBack navigates the current page backward in its session history.
func (m *Manager) HistoryBack(ctx context.Context) error {
	return m.withPage(ctx, func(p *page.Page) error { return p.HistoryBack(ctx) })
}

// HistoryForward navigates the current page forward in its session
// history.
func (m *Manager) HistoryForward(ctx context.Context) error {
	return m.withPage(ctx, func(p *page.Page) error { return p.HistoryForward(ctx) })
}

// ExecuteJavaScript runs userCode inside the page's execution harness and
// returns its captured result, console output, and any thrown error.
func (m *Manager) ExecuteJavaScript(ctx context.Context, userCode string) (*page.ExecuteResult, error) {
	p, err := m.GetOrCreatePage(ctx)
	if err != nil {
		return nil, err
	}
	result, err := p.ExecuteJavaScript(ctx, userCode)
	if err == nil {
		m.touchActivity()
	}
	return result, err
}

// ExecuteCDPRaw forwards an arbitrary CDP method/params pair to the current
// page's target, for callers that need a protocol surface this core
// doesn't otherwise expose.
func (m *Manager) ExecuteCDPRaw(ctx context.Context, method string, params []byte) ([]byte, error) {
	p, err := m.GetOrCreatePage(ctx)
	if err != nil {
		return nil, err
	}
	result, err := p.ExecuteCDPRaw(ctx, method, params)
	if err == nil {
		m.touchActivity()
	}
	return result, err
}

// ConsoleLogs returns the current page's captured console/runtime log
// history.
func (m *Manager) ConsoleLogs(ctx context.Context) ([]page.ConsoleLogEntry, error) {
	p, err := m.GetOrCreatePage(ctx)
	if err != nil {
		return nil, err
	}
	return p.GetConsoleLogs(), nil
}

// CursorPosition returns the virtual cursor's last known position.
func (m *Manager) CursorPosition(ctx context.Context) (x, y float64, err error) {
	p, err := m.GetOrCreatePage(ctx)
	if err != nil {
		return 0, 0, err
	}
	x, y = p.GetCursorPosition()
	return x, y, nil
}
