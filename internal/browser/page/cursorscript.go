package page

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/codebrowser/codebrowser/internal/browser/berr"
)

// cursorVersion is bumped whenever virtualCursorScriptJS's contract
// changes. ensureVirtualCursor compares it against whatever version (if
// any) is already installed in the page and reinstalls on mismatch, so a
// page that survived a same-document navigation doesn't end up running a
// stale cursor implementation.
const cursorVersion = 11

// virtualCursorScriptTemplate defines window.__vcInstall(x, y), which
// creates window.__vc: a small DOM overlay plus update/snapTo/clickPulse/
// destroy controls the core drives from Go. Every public entry point is
// wrapped in try/catch so a failure here never blocks page creation or
// navigation.
const virtualCursorScriptTemplate = `
window.__vcInstall = function (x, y) {
  try {
    if (window.__vc && window.__vc.__version === %[1]d) {
      return 'ok';
    }
    if (window.__vc && window.__vc.destroy) {
      try { window.__vc.destroy(); } catch (e) {}
    }

    const el = document.createElement('div');
    el.style.cssText = [
      'position:fixed', 'z-index:2147483647', 'width:18px', 'height:18px',
      'border-radius:50%%', 'background:rgba(255,0,0,0.55)',
      'border:2px solid rgba(255,255,255,0.9)', 'pointer-events:none',
      'transform:translate(-50%%,-50%%)', 'transition:left 80ms linear, top 80ms linear',
    ].join(';');
    el.style.left = x + 'px';
    el.style.top = y + 'px';
    (document.body || document.documentElement).appendChild(el);

    window.__vc = {
      __version: %[1]d,
      el: el,
      update: function (nx, ny) {
        try {
          el.style.left = nx + 'px';
          el.style.top = ny + 'px';
          return 80;
        } catch (e) { return 0; }
      },
      snapTo: function (nx, ny) {
        try {
          const prev = el.style.transition;
          el.style.transition = 'none';
          el.style.left = nx + 'px';
          el.style.top = ny + 'px';
          void el.offsetWidth;
          el.style.transition = prev;
        } catch (e) {}
      },
      clickPulse: function () {
        try {
          el.style.transform = 'translate(-50%%,-50%%) scale(1.6)';
          setTimeout(() => { el.style.transform = 'translate(-50%%,-50%%) scale(1)'; }, 120);
          return 120;
        } catch (e) { return 0; }
      },
      destroy: function () {
        try { el.remove(); } catch (e) {}
        try { delete window.__vc; } catch (e) {}
      },
    };
    return 'reinstall';
  } catch (e) {
    return String(e && e.message || e);
  }
};
`

// cursorStatusTemplate reports 'missing' when no overlay is installed,
// destroys and reports 'reinstall' when a stale version is found, or
// reports 'ok' when the current overlay is already up to date.
const cursorStatusTemplate = `
(() => {
  try {
    if (!window.__vc) return 'missing';
    if (window.__vc.__version !== %[1]d) {
      try { window.__vc.destroy(); } catch (e) {}
      return 'reinstall';
    }
    return 'ok';
  } catch (e) {
    return 'missing';
  }
})();
`

func virtualCursorScriptJS() string {
	return fmt.Sprintf(virtualCursorScriptTemplate, cursorVersion)
}

func cursorStatusJS() string {
	return fmt.Sprintf(cursorStatusTemplate, cursorVersion)
}

// ensureVirtualCursor checks the in-page overlay's version and reinstalls
// it if missing or stale, then moves it to (x, y). Failures are reported
// but never fatal to the caller — a missing cursor overlay degrades the
// experience, it doesn't break automation.
func (p *Page) ensureVirtualCursor(ctx context.Context, x, y float64) error {
	p.cursorVersionMu.Lock()
	defer p.cursorVersionMu.Unlock()

	var status string
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res, _, err := runtime.Evaluate(cursorStatusJS()).Do(ctx)
		if err != nil {
			return err
		}
		return decodeJSONString(res.Value, &status)
	}))
	if err != nil {
		return &berr.CdpError{Message: "failed to probe virtual cursor: " + err.Error()}
	}

	if status != "ok" {
		installScript := virtualCursorScriptJS() + fmt.Sprintf(";(() => { try { return window.__vcInstall(%f, %f); } catch (e) { return String(e && e.message || e); } })();", x, y)

		var result string
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			res, _, err := runtime.Evaluate(installScript).Do(ctx)
			if err != nil {
				return err
			}
			return decodeJSONString(res.Value, &result)
		}))
		if err != nil {
			return &berr.CdpError{Message: "failed to install virtual cursor: " + err.Error()}
		}
		if result != "ok" && result != "reinstall" {
			return &berr.CdpError{Message: "virtual cursor install failed: " + result}
		}
		return nil
	}

	moveScript := fmt.Sprintf("(() => { try { window.__vc.snapTo(%f, %f); } catch (e) {} })();", x, y)
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := runtime.Evaluate(moveScript).Do(ctx)
		return err
	}))
}
