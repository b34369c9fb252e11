// Package page wraps a single chromedp browser tab with the behaviors the
// browser core needs on top of raw CDP: a bootstrap script that tames
// window.open/history/console/fingerprinting, a virtual mouse cursor drawn
// in-page for recordings, a screenshot capture ladder that avoids flashing
// hidden tabs into the foreground, and focus-safe typing.
package page

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/codebrowser/codebrowser/internal/config"
)

// MouseButton mirrors the subset of CDP mouse buttons the cursor overlay
// and input dispatch care about.
type MouseButton string

const (
	ButtonNone  MouseButton = "none"
	ButtonLeft  MouseButton = "left"
	ButtonRight MouseButton = "right"
)

// CursorState is the core's model of where the virtual cursor currently is,
// kept independent of the in-page overlay so position queries never need a
// round trip to the renderer.
type CursorState struct {
	X          float64
	Y          float64
	Button     MouseButton
	IsMouseDown bool
}

// ConsoleLogEntry is one captured console/runtime message, page-injected JS
// console call, or page-level error.
type ConsoleLogEntry struct {
	TimestampMs int64  `json:"ts_unix_ms"`
	Level       string `json:"level"`
	Message     string `json:"message"`
	Source      string `json:"source"`
	URL         string `json:"url,omitempty"`
	Line        int64  `json:"line,omitempty"`
}

const maxConsoleLogs = 2000

// Page owns one chromedp tab context plus the bookkeeping the browser core
// layers on top of it. It is created already attached to an existing
// target; it never launches or closes a browser itself.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config

	mu         sync.RWMutex
	currentURL string

	cursorMu    sync.Mutex
	cursorState CursorState

	consoleMu   sync.Mutex
	consoleLogs []ConsoleLogEntry

	preflightMu     sync.Mutex
	preflightAt     time.Time
	preflightResult bool
	havePreflight   bool

	cursorVersionMu sync.Mutex
}

// New wraps ctx (a chromedp tab context created by the manager) into a
// Page, seeds the virtual cursor at the center-ish of the viewport, and
// kicks off best-effort background setup: bootstrap script injection and
// console/runtime event capture. Neither background step can fail page
// creation; failures are swallowed, matching the "best-effort, never block
// the caller on cosmetic setup" rule the spec sets for both.
func New(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, viewport config.Viewport) *Page {
	p := &Page{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		cursorState: CursorState{
			X:      float64(viewport.Width) / 2,
			Y:      float64(viewport.Height) / 4,
			Button: ButtonNone,
		},
	}

	go p.injectBootstrapScriptBestEffort()
	go p.listenConsoleAndRuntime()

	return p
}

// Close releases the underlying chromedp tab context.
func (p *Page) Close() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Page) injectBootstrapScriptBestEffort() {
	_ = chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := runtime.Evaluate(wrapAsIIFE(bootstrapScriptJS)).Do(ctx)
		return err
	}))
	// Also register it for every new document loaded in the tab.
	_ = chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := chromedp.AddScriptToEvaluateOnNewDocument(bootstrapScriptJS).Do(ctx)
		return err
	}))
}

// InstallConsoleHookNow re-injects just the console-capture half of the
// bootstrap script into an already-loaded page. It exists for external tabs
// the manager adopts mid-session: AddScriptToEvaluateOnNewDocument only
// fires on the *next* navigation, so a tab the user already has open needs
// the hook pushed in immediately or its console history is lost.
func (p *Page) InstallConsoleHookNow(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := runtime.Evaluate(wrapAsIIFE(consoleHookJS)).Do(ctx)
		return err
	}))
}

func (p *Page) listenConsoleAndRuntime() {
	_ = chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _ = runtime.Enable().Do(ctx)
		_, _ = log.Enable().Do(ctx)
		return nil
	}))

	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			p.appendConsoleLog(ConsoleLogEntry{
				TimestampMs: time.Now().UnixMilli(),
				Level:       string(e.Type),
				Message:     consoleArgsToString(e.Args),
				Source:      "cdp:runtime",
			})
		case *log.EventEntryAdded:
			if e.Entry == nil {
				return
			}
			p.appendConsoleLog(ConsoleLogEntry{
				TimestampMs: time.Now().UnixMilli(),
				Level:       string(e.Entry.Level),
				Message:     e.Entry.Text,
				Source:      "cdp:log",
				URL:         e.Entry.URL,
				Line:        int64(e.Entry.LineNumber),
			})
		}
	})
}

func (p *Page) appendConsoleLog(entry ConsoleLogEntry) {
	p.consoleMu.Lock()
	defer p.consoleMu.Unlock()

	p.consoleLogs = append(p.consoleLogs, entry)
	if len(p.consoleLogs) > maxConsoleLogs {
		p.consoleLogs = p.consoleLogs[len(p.consoleLogs)-maxConsoleLogs:]
	}
}

// GetConsoleLogs returns a snapshot of captured console/runtime entries.
func (p *Page) GetConsoleLogs() []ConsoleLogEntry {
	p.consoleMu.Lock()
	defer p.consoleMu.Unlock()

	out := make([]ConsoleLogEntry, len(p.consoleLogs))
	copy(out, p.consoleLogs)
	return out
}

// GetCursorPosition returns the core's last-known cursor coordinates.
func (p *Page) GetCursorPosition() (float64, float64) {
	p.cursorMu.Lock()
	defer p.cursorMu.Unlock()
	return p.cursorState.X, p.cursorState.Y
}

func (p *Page) setCursorState(x, y float64, button MouseButton, down bool) {
	p.cursorMu.Lock()
	defer p.cursorMu.Unlock()
	p.cursorState = CursorState{X: x, Y: y, Button: button, IsMouseDown: down}
}

// GetCurrentURL returns the cached URL from the last successful navigation.
func (p *Page) GetCurrentURL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentURL
}

func (p *Page) setCurrentURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentURL = url
}

func consoleArgsToString(args []*runtime.RemoteObject) string {
	var out string
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		if a.Value != nil {
			out += string(a.Value)
		} else if a.Description != "" {
			out += a.Description
		}
	}
	return out
}
