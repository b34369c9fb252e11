package browser

import (
	"context"
	"log"
	"time"
)

const (
	navMonitorInterval      = 500 * time.Millisecond
	pageLoadedDelay         = 2000 * time.Millisecond
	spaSettleDelay          = 400 * time.Millisecond
	viewportMonitorInterval = 60 * time.Second
	viewportMismatchLimit   = 2
	viewportCorrectionCooldown = 60 * time.Second
	viewportWarnThrottle    = 5 * time.Minute
	idleMonitorInterval     = 10 * time.Second
)

// navSeqPoller is implemented by *page.Page; it is checked via a type
// assertion rather than folded into startNavigationMonitor's parameter
// interface because seq polling only ever runs for external connections.
type navSeqPoller interface {
	NavSeq(ctx context.Context) (int64, error)
}

// startNavigationMonitor polls the page's URL every 500ms so SPA
// navigations and plain page loads alike — many of which never fire a CDP
// Page.frameNavigated event the manager can observe — still surface
// through onNavigate/onPageLoaded. On a non-about:blank URL change it
// fires onNavigate immediately and schedules onPageLoaded ~2s later, once
// the page has had a chance to settle. For external connections it also
// polls window.__code_nav_seq (populated by the bootstrap script's
// codex:locationchange hook) on the same tick; each increase fires
// onNavigate again with the last polled URL and takes an async screenshot
// after a short settle delay. It stops itself once pageCtx is done, so callers
// never need to remember to cancel it on ordinary page teardown.
func (m *Manager) startNavigationMonitor(pageCtx context.Context, p interface {
	PollURL(ctx context.Context) (string, error)
}) {
	monitorCtx, cancel := context.WithCancel(context.Background())

	m.monitorMu.Lock()
	m.navMonitorCancel = cancel
	m.monitorMu.Unlock()

	seqPoller, hasSeq := p.(navSeqPoller)
	isExternal := m.cfg.IsExternal()

	go func() {
		ticker := time.NewTicker(navMonitorInterval)
		defer ticker.Stop()

		lastURL := ""
		var lastSeq int64
		seqInitialized := false

		for {
			select {
			case <-pageCtx.Done():
				return
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				if url, err := p.PollURL(pageCtx); err == nil && url != "" && url != lastURL {
					lastURL = url
					if url != "about:blank" {
						m.fireNavigate(url)
						capturedURL := url
						time.AfterFunc(pageLoadedDelay, func() { m.firePageLoaded(capturedURL) })
					}
				}

				if !isExternal || !hasSeq {
					continue
				}

				seq, err := seqPoller.NavSeq(pageCtx)
				if err != nil {
					continue
				}
				if !seqInitialized {
					lastSeq = seq
					seqInitialized = true
					continue
				}
				if seq <= lastSeq {
					continue
				}
				lastSeq = seq

				m.fireNavigate(lastURL)
				go func() {
					time.Sleep(spaSettleDelay)
					if _, _, err := m.Screenshot(pageCtx); err != nil {
						log.Printf("codebrowser: spa navigation screenshot failed: %v", err)
					}
				}()
			}
		}
	}()
}

func (m *Manager) fireNavigate(url string) {
	m.mu.RLock()
	onNavigate := m.onNavigate
	m.mu.RUnlock()
	if onNavigate != nil {
		onNavigate(url)
	}
}

func (m *Manager) firePageLoaded(url string) {
	m.mu.RLock()
	onPageLoaded := m.onPageLoaded
	m.mu.RUnlock()
	if onPageLoaded != nil {
		onPageLoaded(url)
	}
}

// startViewportMonitor periodically compares the page's actual CSS
// viewport against the configured size and, for internally launched
// browsers only, corrects sustained drift. External connections are never
// touched: the spec forbids reaching into a window the user owns.
func (m *Manager) startViewportMonitor(pageCtx context.Context, p interface {
	ActualViewport(ctx context.Context) (int64, int64, error)
	SetViewport(ctx context.Context, width, height uint32, deviceScaleFactor float64, mobile bool) error
}) {
	monitorCtx, cancel := context.WithCancel(context.Background())

	m.monitorMu.Lock()
	m.viewportMonitorCancel = cancel
	m.monitorMu.Unlock()

	go func() {
		ticker := time.NewTicker(viewportMonitorInterval)
		defer ticker.Stop()

		mismatchCount := 0
		var lastCorrection time.Time
		var lastWarn time.Time

		for {
			select {
			case <-pageCtx.Done():
				return
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				wantW, wantH := m.GetViewportSize()
				gotW, gotH, err := p.ActualViewport(pageCtx)
				if err != nil {
					continue
				}

				// Differences of up to 5 CSS px per dimension count as a match.
				dw, dh := gotW-int64(wantW), gotH-int64(wantH)
				if dw >= -5 && dw <= 5 && dh >= -5 && dh <= 5 {
					mismatchCount = 0
					continue
				}

				mismatchCount++
				if time.Since(lastWarn) > viewportWarnThrottle {
					log.Printf("codebrowser: viewport mismatch detected: want %dx%d, got %dx%d", wantW, wantH, gotW, gotH)
					lastWarn = time.Now()
				}

				if mismatchCount < viewportMismatchLimit {
					continue
				}
				if time.Since(lastCorrection) < viewportCorrectionCooldown {
					continue
				}

				m.mu.RLock()
				autoCorrect := m.autoViewportCorrection
				isExternal := m.cfg.IsExternal()
				m.mu.RUnlock()

				if isExternal || !autoCorrect {
					continue
				}

				if err := p.SetViewport(pageCtx, wantW, wantH, m.cfg.Viewport.DeviceScaleFactor, m.cfg.Viewport.Mobile); err != nil {
					log.Printf("codebrowser: viewport correction failed: %v", err)
					continue
				}
				lastCorrection = time.Now()
				mismatchCount = 0
			}
		}
	}()
}

// startIdleMonitor watches for prolonged inactivity on an internally
// launched browser and tears it down to free resources. External
// connections never get an idle monitor: the spec bars the core from
// ever closing a browser it did not launch, idle or not.
func (m *Manager) startIdleMonitor(ctx context.Context) {
	if m.cfg.IsExternal() || m.cfg.IdleTimeout() == 0 {
		return
	}

	monitorCtx, cancel := context.WithCancel(context.Background())
	m.monitorMu.Lock()
	m.idleMonitorCancel = cancel
	m.monitorMu.Unlock()

	go func() {
		ticker := time.NewTicker(idleMonitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				m.mu.RLock()
				idleFor := time.Since(m.lastActivity)
				m.mu.RUnlock()

				if idleFor < m.cfg.IdleTimeout() {
					continue
				}

				log.Printf("codebrowser: idle for %s, shutting down internal browser", idleFor)
				if err := m.Cleanup(); err != nil {
					log.Printf("codebrowser: idle cleanup failed: %v", err)
				}
				return
			}
		}
	}()
}

// stopMonitors cancels any running background monitors. Safe to call even
// if none were ever started.
func (m *Manager) stopMonitors() {
	m.monitorMu.Lock()
	defer m.monitorMu.Unlock()

	if m.navMonitorCancel != nil {
		m.navMonitorCancel()
		m.navMonitorCancel = nil
	}
	if m.viewportMonitorCancel != nil {
		m.viewportMonitorCancel()
		m.viewportMonitorCancel = nil
	}
	if m.idleMonitorCancel != nil {
		m.idleMonitorCancel()
		m.idleMonitorCancel = nil
	}
}
