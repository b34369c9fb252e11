// Package browser is the Browser Manager: it owns the single active page
// the rest of the system drives, whether that page lives in a Chrome this
// process launched or one the caller already had running. It decides when
// to reconnect after a crash, which tab counts as "the" page on an external
// Chrome with many tabs open, and it fans out every per-page operation
// (navigate, screenshot, click, type, eval) to the current page.Page.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/codebrowser/codebrowser/internal/assets"
	"github.com/codebrowser/codebrowser/internal/browser/berr"
	"github.com/codebrowser/codebrowser/internal/browser/page"
	"github.com/codebrowser/codebrowser/internal/browser/procscan"
	"github.com/codebrowser/codebrowser/internal/cdp"
	"github.com/codebrowser/codebrowser/internal/config"
)

const defaultScreenshotTTL = 5 * time.Minute

const connectRetryBackoff = 200 * time.Millisecond

// GotoResult is the outcome of a successful navigation: the page's final
// URL (which may differ from the requested one after redirects) and its
// document title, when available.
type GotoResult = page.GotoResult

// deniedSchemes are never selected as "the" external tab to adopt: picking
// one of the browser's own UI surfaces would hijack devtools or extension
// pages instead of a page the user is actually looking at.
var deniedSchemes = []string{
	"chrome://", "devtools://", "edge://", "chrome-extension://",
	"brave://", "vivaldi://", "opera://",
}

// Manager owns the lifecycle of a browser connection and the single page
// the core drives.
type Manager struct {
	cfg       *config.Config
	assets    assets.Sink
	sessionID string

	mu              sync.RWMutex
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	chromeProcess   *cdp.ChromeProcess
	currentPage     *page.Page

	lastActivity time.Time

	autoViewportCorrection bool

	monitorMu          sync.Mutex
	navMonitorCancel    context.CancelFunc
	viewportMonitorCancel context.CancelFunc
	idleMonitorCancel   context.CancelFunc

	onNavigate   func(url string)
	onPageLoaded func(url string)
}

// New creates a Manager. sink may be nil, in which case screenshots are
// only returned to the caller in memory and never persisted.
func New(cfg *config.Config, sink assets.Sink) *Manager {
	return &Manager{
		cfg:          cfg,
		assets:       sink,
		sessionID:    uuid.New().String(),
		lastActivity: time.Now(),
	}
}

// SetOnNavigate installs a callback invoked whenever the navigation monitor
// observes the page's URL change, including SPA-style same-document
// changes that never fire a CDP frame-navigated event.
func (m *Manager) SetOnNavigate(fn func(url string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNavigate = fn
}

// SetOnPageLoaded installs a callback invoked ~2 seconds after the
// navigation monitor's immediate onNavigate callback, giving a
// slower-to-settle page (late-loading images, deferred scripts) time to
// finish before the caller treats it as "loaded".
func (m *Manager) SetOnPageLoaded(fn func(url string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPageLoaded = fn
}

// Start connects to Chrome, launching it internally first if the config
// doesn't name an external connection target.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.IsExternal() {
		return m.ConnectToChromeOnly(ctx)
	}
	return m.ensureInternalBrowser(ctx)
}

// ConnectToChromeOnly attaches to an already-running Chrome without ever
// launching or, later, closing it. This is the external-connection
// contract's other half: Stop must never kill a browser this method
// merely observed.
func (m *Manager) ConnectToChromeOnly(ctx context.Context) error {
	host := m.cfg.ConnectHost
	if host == "" {
		host = "localhost"
	}

	wsURL := m.cfg.ConnectWS
	if wsURL == "" {
		if m.cfg.ConnectPort == nil {
			return &berr.ConfigError{Message: "external connection requires connect_port or connect_ws"}
		}

		port := *m.cfg.ConnectPort
		if port == 0 {
			candidates, err := procscan.Scan()
			if err != nil || len(candidates) == 0 {
				return &berr.CdpError{Message: "No Chrome instance found with debug port"}
			}
			port = candidates[0].Port
		}

		info, err := cdp.DiscoverBrowserInfo(host, fmt.Sprintf("%d", port))
		if err != nil {
			return &berr.CdpError{Message: "failed to discover external chrome: " + err.Error()}
		}
		wsURL = info.WebSocketDebuggerURL
	}

	return m.retryAttach(ctx, wsURL)
}

// retryAttach tries up to cfg.ConnectAttempts times to stand up a working
// chromedp connection to wsURL, each attempt's reachability probe bounded
// by cfg.ConnectAttemptTimeout, backing off 200ms between attempts. Only
// once an attempt's probe succeeds does it install the long-lived browser
// handle via attach — so a probe timeout tears down just that attempt's
// throwaway allocator, never a connection already in use.
func (m *Manager) retryAttach(ctx context.Context, wsURL string) error {
	attempts := m.cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := uint32(0); attempt < attempts; attempt++ {
		if err := m.probeConnect(ctx, wsURL); err != nil {
			lastErr = err
		} else if err := m.attach(ctx, wsURL); err != nil {
			lastErr = err
		} else {
			return nil
		}

		if attempt < attempts-1 {
			time.Sleep(connectRetryBackoff)
		}
	}

	return &berr.CdpError{Message: fmt.Sprintf("CDP WebSocket connect failed after all attempts: %v", lastErr)}
}

// probeConnect opens a throwaway chromedp connection to wsURL bounded by
// cfg.ConnectAttemptTimeout and tears it down immediately, to confirm the
// endpoint is actually reachable before attach installs it as the
// long-lived browser handle.
func (m *Manager) probeConnect(ctx context.Context, wsURL string) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectAttemptTimeout())
	defer cancel()

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(probeCtx, wsURL)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(browserCtx, target.SetDiscoverTargets(false))
	}()

	select {
	case err := <-errCh:
		return err
	case <-probeCtx.Done():
		return probeCtx.Err()
	}
}

func (m *Manager) attach(ctx context.Context, wsURL string) error {
	m.mu.Lock()
	m.allocatorCtx, m.allocatorCancel = chromedp.NewRemoteAllocator(ctx, wsURL)
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocatorCtx)
	m.mu.Unlock()

	if err := chromedp.Run(m.browserCtx, target.SetDiscoverTargets(true)); err != nil {
		return &berr.CdpError{Message: "failed to enable target discovery: " + err.Error()}
	}
	return nil
}

// ensureInternalBrowser launches Chrome via internal/cdp's process launcher
// and HTTP discovery, then attaches chromedp to the discovered websocket
// URL. Using the same launch+discover path as the teacher's cdp.Manager
// (rather than letting chromedp.NewExecAllocator launch Chrome itself)
// keeps a real *cdp.ChromeProcess around for Cleanup to own and kill.
func (m *Manager) ensureInternalBrowser(ctx context.Context) error {
	m.mu.RLock()
	alreadyUp := m.browserCtx != nil
	m.mu.RUnlock()
	if alreadyUp {
		return nil
	}

	port := "9222"
	userDataDir := m.cfg.UserDataDir
	proc, err := cdp.LaunchChrome(port, cdp.LaunchOptions{
		Headless:     m.cfg.Headless,
		WindowWidth:  int(m.cfg.Viewport.Width),
		WindowHeight: int(m.cfg.Viewport.Height),
		UserAgent:    m.cfg.UserAgent,
		UserDataDir:  userDataDir,
		Locale:       m.cfg.Locale,
		Timezone:     m.cfg.Timezone,
	})
	if err != nil {
		return &berr.CdpError{Message: "failed to launch chrome: " + err.Error()}
	}

	if err := cdp.WaitForChrome(port, m.cfg.ConnectAttemptTimeout()); err != nil {
		_ = proc.Stop()
		return &berr.CdpError{Message: "chrome did not become ready: " + err.Error()}
	}

	info, err := cdp.DiscoverBrowserInfo("localhost", port)
	if err != nil {
		_ = proc.Stop()
		return &berr.CdpError{Message: "failed to discover launched chrome: " + err.Error()}
	}

	m.mu.Lock()
	m.chromeProcess = proc
	m.allocatorCtx, m.allocatorCancel = chromedp.NewRemoteAllocator(ctx, info.WebSocketDebuggerURL)
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocatorCtx)
	m.mu.Unlock()

	if err := chromedp.Run(m.browserCtx, target.SetDiscoverTargets(true)); err != nil {
		return &berr.CdpError{Message: "failed to attach to launched chrome: " + err.Error()}
	}

	log.Printf("codebrowser: launched internal chrome pid=%d port=%s (session %s)", proc.PID(), port, m.sessionID)
	m.startIdleMonitor(ctx)
	return nil
}

// GetOrCreatePage returns the page the manager should drive: the current
// page whenever one exists, or a freshly selected/created one otherwise.
// The current page is returned as is; its responsiveness is not probed.
// External connections adopt an existing user tab (skipping
// browser-internal schemes, see selectExternalTab); internal launches open
// a new tab loaded with the bundled status page (cdp.StatusPageHTML), not
// about:blank.
func (m *Manager) GetOrCreatePage(ctx context.Context) (*page.Page, error) {
	if err := m.ensureBrowserStarted(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastActivity = time.Now()

	if m.currentPage != nil {
		return m.currentPage, nil
	}

	var pageCtx context.Context
	var pageCancel context.CancelFunc

	if m.cfg.IsExternal() {
		pageCtx, pageCancel = m.selectExternalTab(ctx)
	} else {
		pageCtx, pageCancel = chromedp.NewContext(m.browserCtx)
		statusURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(cdp.StatusPageHTML))
		if err := chromedp.Run(pageCtx, chromedp.Navigate(statusURL)); err != nil {
			pageCancel()
			return nil, &berr.CdpError{Message: "failed to open initial tab: " + err.Error()}
		}
	}

	p := page.New(pageCtx, pageCancel, m.cfg, m.cfg.Viewport)
	if m.cfg.IsExternal() {
		if err := p.InstallConsoleHookNow(pageCtx); err != nil {
			log.Printf("codebrowser: best-effort console hook install failed: %v", err)
		}
	}

	m.currentPage = p
	m.startNavigationMonitor(pageCtx, p)
	m.startViewportMonitor(pageCtx, p)

	// Disable auto-correction after the initial viewport is set: further
	// mismatches are reported but not auto-corrected unless the caller
	// explicitly re-enables it, to avoid an unexpected resize flash mid-use.
	m.autoViewportCorrection = false

	return p, nil
}

func (m *Manager) ensureBrowserStarted(ctx context.Context) error {
	m.mu.RLock()
	up := m.browserCtx != nil
	m.mu.RUnlock()
	if up {
		return nil
	}
	return m.Start(ctx)
}

// selectExternalTab enumerates the external browser's open pages and picks
// a candidate among the allowed (page-type, non-internal-scheme) tabs: the
// first one that already has a debugger attached, else the last allowed
// tab, else a fresh about:blank. Tab visibility and focus are not probed.
func (m *Manager) selectExternalTab(ctx context.Context) (context.Context, context.CancelFunc) {
	var targets []*target.Info
	for attempt := 0; attempt < 10; attempt++ {
		if err := chromedp.Run(m.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			infos, err := chromedp.Targets(ctx)
			targets = infos
			return err
		})); err == nil && len(targets) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	var allowed []*target.Info
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if isDeniedScheme(t.URL) {
			continue
		}
		allowed = append(allowed, t)
	}

	var chosen *target.Info
	for _, t := range allowed {
		if t.Attached {
			chosen = t
			break
		}
	}
	if chosen == nil && len(allowed) > 0 {
		chosen = allowed[len(allowed)-1]
	}

	if chosen != nil {
		return chromedp.NewContext(m.browserCtx, chromedp.WithTargetID(chosen.TargetID))
	}

	pageCtx, pageCancel := chromedp.NewContext(m.browserCtx)
	if err := chromedp.Run(pageCtx, chromedp.Navigate("about:blank")); err != nil {
		log.Printf("codebrowser: failed to open fallback tab: %v", err)
	}
	return pageCtx, pageCancel
}

func isDeniedScheme(rawURL string) bool {
	for _, scheme := range deniedSchemes {
		if strings.HasPrefix(rawURL, scheme) {
			return true
		}
	}
	return false
}

// Goto navigates the current page, retrying with a fresh internal browser
// launch up to twice if the failure looks transient. External connections
// never retry: a failed navigation on someone else's Chrome is reported as
// is, since relaunching their browser is out of bounds.
func (m *Manager) Goto(ctx context.Context, rawURL string) (GotoResult, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return GotoResult{}, &berr.ConfigError{Message: "invalid url: " + err.Error()}
	}

	recoveryAttempts := 0
	for {
		p, err := m.GetOrCreatePage(ctx)
		var result GotoResult
		if err == nil {
			result, err = p.Goto(ctx, rawURL, m.cfg.Wait)
		}
		if err == nil {
			m.touchActivity()

			m.mu.RLock()
			onNavigate := m.onNavigate
			m.mu.RUnlock()
			if onNavigate != nil {
				onNavigate(result.URL)
			}

			return result, nil
		}

		if m.cfg.IsExternal() || !berr.IsRecoverable(err) || recoveryAttempts >= 2 {
			return GotoResult{}, err
		}

		recoveryAttempts++
		log.Printf("codebrowser: navigation failed (%v), restarting internal browser (attempt %d)", err, recoveryAttempts)
		m.restartInternalBrowser(ctx)
	}
}

func (m *Manager) restartInternalBrowser(ctx context.Context) {
	m.mu.Lock()
	if m.currentPage != nil {
		m.currentPage.Close()
		m.currentPage = nil
	}
	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocatorCancel != nil {
		m.allocatorCancel()
	}
	if m.chromeProcess != nil {
		_ = m.chromeProcess.Stop()
		m.chromeProcess = nil
	}
	m.browserCtx, m.browserCancel = nil, nil
	m.allocatorCtx, m.allocatorCancel = nil, nil
	m.mu.Unlock()

	if err := m.ensureInternalBrowser(ctx); err != nil {
		log.Printf("codebrowser: browser restart failed: %v", err)
	}
}

func (m *Manager) touchActivity() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

// Cleanup tears down monitors, the current page, and — only for an
// internally launched browser — the browser process itself and its
// temporary profile directory. It never closes a browser the manager only
// attached to.
func (m *Manager) Cleanup() error {
	m.stopMonitors()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentPage != nil {
		m.currentPage.Close()
		m.currentPage = nil
	}

	if m.assets != nil {
		_ = m.assets.Close()
	}

	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocatorCancel != nil {
		m.allocatorCancel()
	}
	m.browserCtx, m.browserCancel = nil, nil
	m.allocatorCtx, m.allocatorCancel = nil, nil

	if m.chromeProcess != nil {
		if err := m.chromeProcess.Stop(); err != nil {
			return fmt.Errorf("failed to stop chrome: %w", err)
		}
		m.chromeProcess = nil
	}

	return nil
}

// Stop is an alias for Cleanup kept for callers that think in terms of a
// start/stop lifecycle rather than explicit resource cleanup.
func (m *Manager) Stop() error { return m.Cleanup() }

// GetStatus reports whether the manager currently has a live page.
func (m *Manager) GetStatus() (connected bool, currentURL string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.currentPage == nil {
		return false, ""
	}
	return true, m.currentPage.GetCurrentURL()
}

// GetCurrentURL returns the current page's cached URL, or "" if there is
// no current page.
func (m *Manager) GetCurrentURL() string {
	_, u := m.GetStatus()
	return u
}

// GetViewportSize returns the configured viewport dimensions.
func (m *Manager) GetViewportSize() (width, height uint32) {
	return m.cfg.Viewport.Width, m.cfg.Viewport.Height
}

// SetAutoViewportCorrection toggles whether the viewport monitor is
// allowed to call setViewport when it detects sustained drift. It is off
// by default after the first page is created.
func (m *Manager) SetAutoViewportCorrection(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoViewportCorrection = enabled
}
