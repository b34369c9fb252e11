package page

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/codebrowser/codebrowser/internal/browser/berr"
)

// ExecuteResult is the structured outcome of ExecuteJavaScript: either a
// normalized return value plus anything the user code logged, or an error
// with its stack and whatever was logged before it threw.
type ExecuteResult struct {
	Success bool            `json:"success"`
	Value   json.RawMessage `json:"value,omitempty"`
	Error   string          `json:"error,omitempty"`
	Stack   string          `json:"stack,omitempty"`
	Logs    []string        `json:"logs"`
	Errors  []string        `json:"errors"`
}

// executeJSHarnessTemplate runs userCode inside an AsyncFunction so
// top-level await works, captures console output and uncaught
// errors/rejections raised during evaluation (restoring the originals in a
// finally block so the page's normal console behavior isn't permanently
// altered), and normalizes the return value so it's always JSON-safe and
// bounded in size.
const executeJSHarnessTemplate = `
(async () => {
  const logs = [];
  const errors = [];
  const origConsole = {};
  ['log', 'warn', 'error', 'info', 'debug'].forEach((level) => {
    origConsole[level] = console[level];
    console[level] = (...args) => {
      try { logs.push(args.map(a => { try { return typeof a === 'string' ? a : JSON.stringify(a); } catch (e) { return String(a); } }).join(' ')); } catch (e) {}
    };
  });
  const onError = (ev) => { errors.push(ev.message || String(ev)); };
  const onRejection = (ev) => { errors.push('Unhandled promise rejection: ' + (ev.reason && ev.reason.message || ev.reason)); };
  window.addEventListener('error', onError);
  window.addEventListener('unhandledrejection', onRejection);

  const MAX_DEPTH = 3;
  const MAX_STR = 4000;
  const normalize = (v, depth) => {
    if (depth > MAX_DEPTH) return '[max depth exceeded]';
    if (v === undefined) return null;
    if (v === null) return null;
    const t = typeof v;
    if (t === 'number' || t === 'boolean') return v;
    if (t === 'string') return v.length > MAX_STR ? v.slice(0, MAX_STR) + '...[truncated]' : v;
    if (t === 'bigint') return v.toString();
    if (t === 'symbol') return v.toString();
    if (t === 'function') return '[Function: ' + (v.name || 'anonymous') + ']';
    if (v instanceof Element) {
      return { __element: true, tagName: v.tagName, id: v.id || undefined, className: v.className || undefined };
    }
    if (Array.isArray(v)) {
      const out = v.slice(0, 50).map((x) => normalize(x, depth + 1));
      if (v.length > 50) out.push('[' + (v.length - 50) + ' more truncated]');
      return out;
    }
    if (t === 'object') {
      const keys = Object.keys(v).slice(0, 50);
      const out = {};
      for (const k of keys) { out[k] = normalize(v[k], depth + 1); }
      if (Object.keys(v).length > 50) out.__truncated = true;
      return out;
    }
    return String(v);
  };

  try {
    const AsyncFunction = Object.getPrototypeOf(async function () {}).constructor;
    const fn = new AsyncFunction('__code', '"use strict"; return eval(__code);');
    const result = await fn(%[1]q);
    return { success: true, value: normalize(result, 0), logs, errors };
  } catch (e) {
    return { success: false, error: String(e && e.message || e), stack: (e && e.stack) || '', logs, errors };
  } finally {
    ['log', 'warn', 'error', 'info', 'debug'].forEach((level) => { console[level] = origConsole[level]; });
    window.removeEventListener('error', onError);
    window.removeEventListener('unhandledrejection', onRejection);
  }
})();
//# sourceURL=browser_js_user_code.js
`

// ExecuteJavaScript evaluates userCode in the page and returns its
// normalized result. On external connections it waits 120ms after eval
// before returning (giving any DOM mutations time to settle before a
// caller immediately screenshots); on internally launched browsers it only
// waits 40ms, since there's no remote-hands risk of catching a half-applied
// change.
func (p *Page) ExecuteJavaScript(ctx context.Context, userCode string) (*ExecuteResult, error) {
	script := fmt.Sprintf(executeJSHarnessTemplate, userCode)

	var raw []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, _, err := runtime.Evaluate(script).WithAwaitPromise(true).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		raw = res.Value
		return nil
	}))
	if err != nil {
		return nil, &berr.CdpError{Message: "javascript evaluation failed: " + err.Error()}
	}

	var result ExecuteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &berr.CdpError{Message: "failed to decode javascript result: " + err.Error()}
	}

	settle := 40 * time.Millisecond
	if p.cfg.IsExternal() {
		settle = 120 * time.Millisecond
	}
	time.Sleep(settle)

	return &result, nil
}

// ScrollBy scrolls the page by (dx, dy) and returns the resulting scroll
// offset.
func (p *Page) ScrollBy(ctx context.Context, dx, dy float64) (x, y float64, err error) {
	script := fmt.Sprintf(`(() => { window.scrollBy(%f, %f); return {x: window.scrollX, y: window.scrollY}; })();`, dx, dy)

	var raw []byte
	runErr := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, _, err := runtime.Evaluate(script).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		raw = res.Value
		return nil
	}))
	if runErr != nil {
		return 0, 0, &berr.CdpError{Message: "scroll failed: " + runErr.Error()}
	}

	var offset struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(raw, &offset); err != nil {
		return 0, 0, &berr.CdpError{Message: "failed to decode scroll offset: " + err.Error()}
	}
	return offset.X, offset.Y, nil
}

// HistoryBack navigates back one entry in session history.
func (p *Page) HistoryBack(ctx context.Context) error {
	return p.runJSChecked(ctx, `(() => { history.back(); })();`)
}

// HistoryForward navigates forward one entry in session history.
func (p *Page) HistoryForward(ctx context.Context) error {
	return p.runJSChecked(ctx, `(() => { history.forward(); })();`)
}

// ExecuteCDPRaw sends an arbitrary CDP command, for callers who need a
// method the Page controller doesn't wrap directly. params may be nil, in
// which case an empty object is sent.
func (p *Page) ExecuteCDPRaw(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	var result json.RawMessage
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdp.Execute(ctx, method, &params, &result)
	}))
	if err != nil {
		return nil, &berr.CdpError{Message: fmt.Sprintf("raw cdp command %q failed: %s", method, err.Error())}
	}
	return result, nil
}
