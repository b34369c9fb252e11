package page

import "fmt"

func wrapAsIIFE(body string) string {
	return fmt.Sprintf("(() => { try { %s } catch (e) {} })();", body)
}

// consoleHookJS installs window.__code_console_logs, a capped FIFO buffer of
// console.{log,warn,error,info,debug} calls plus window error and
// unhandledrejection events. It is idempotent: re-running it against a page
// that already has the hook installed is a no-op.
const consoleHookJS = `
if (!window.__code_console_logs) {
  window.__code_console_logs = [];
  const push = (level, args) => {
    try {
      window.__code_console_logs.push({
        ts_unix_ms: Date.now(),
        level: level,
        message: Array.from(args).map(a => {
          try { return typeof a === 'string' ? a : JSON.stringify(a); }
          catch (e) { return String(a); }
        }).join(' '),
        source: 'page:console',
      });
      if (window.__code_console_logs.length > 2000) {
        window.__code_console_logs.shift();
      }
    } catch (e) {}
  };
  ['log', 'warn', 'error', 'info', 'debug'].forEach((level) => {
    const orig = console[level] ? console[level].bind(console) : () => {};
    console[level] = function (...args) {
      push(level, args);
      return orig(...args);
    };
  });
  window.addEventListener('error', (ev) => {
    push('error', [ev.message || String(ev)]);
  });
  window.addEventListener('unhandledrejection', (ev) => {
    push('error', ['Unhandled promise rejection: ' + (ev.reason && ev.reason.message || ev.reason)]);
  });
}
`

// tabBlockingJS prevents window.open()/target=_blank/form-submit-to-new-tab
// from actually spawning a second browser target, so the core's single
// tracked page stays the only live tab. Clicks are allowed to proceed in
// the current tab; only the "open a new one" side effect is suppressed.
const tabBlockingJS = `
if (!window.__code_tab_block_installed) {
  window.__code_tab_block_installed = true;

  window.open = new Proxy(window.open, {
    apply(target, thisArg, args) {
      return null;
    },
  });

  const interceptNewTabIntent = (ev) => {
    try {
      if (ev.type === 'submit' && ev.target && ev.target.tagName === 'FORM' && ev.target.target === '_blank') {
        ev.target.removeAttribute('target');
        return;
      }
      let el = ev.target;
      while (el && el.tagName !== 'A') {
        el = el.parentElement || (el.getRootNode && el.getRootNode().host);
      }
      if (el && el.target === '_blank') {
        el.removeAttribute('target');
      }
    } catch (e) {}
  };

  ['pointerdown', 'click', 'auxclick', 'keydown', 'submit'].forEach((type) => {
    document.addEventListener(type, interceptNewTabIntent, true);
  });

  const observer = new MutationObserver((mutations) => {
    for (const m of mutations) {
      for (const node of m.addedNodes) {
        if (node.nodeType === 1 && node.shadowRoot) {
          try {
            ['pointerdown', 'click', 'auxclick', 'keydown', 'submit'].forEach((type) => {
              node.shadowRoot.addEventListener(type, interceptNewTabIntent, true);
            });
          } catch (e) {}
        }
      }
    }
  });
  observer.observe(document.documentElement || document, { childList: true, subtree: true });
}
`

// spaHooksJS wraps history.pushState/replaceState and listens for popstate
// so the navigation monitor can detect same-document route changes that
// never fire a CDP Page.frameNavigated event.
const spaHooksJS = `
if (!window.__code_spa_hooks_installed) {
  window.__code_spa_hooks_installed = true;
  window.__code_last_url = location.href;
  window.__code_nav_seq = 0;

  const fireLocationChange = () => {
    try {
      if (window.__code_last_url !== location.href) {
        window.__code_last_url = location.href;
        window.__code_nav_seq += 1;
        window.dispatchEvent(new CustomEvent('codex:locationchange', { detail: { url: location.href, seq: window.__code_nav_seq } }));
      }
    } catch (e) {}
  };

  const wrap = (name) => {
    const orig = history[name];
    history[name] = function (...args) {
      const ret = orig.apply(this, args);
      fireLocationChange();
      return ret;
    };
  };
  wrap('pushState');
  wrap('replaceState');
  window.addEventListener('popstate', fireLocationChange);
}
`

// stealthJS spoofs a handful of automation tells. Every step is independent
// and wrapped so one failing property definition (e.g. a property already
// defined by another extension) never prevents the rest from applying.
const stealthJS = `
(() => { try { Object.defineProperty(navigator, 'webdriver', { get: () => undefined }); } catch (e) {} })();
(() => { try { Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] }); } catch (e) {} })();
(() => { try { Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] }); } catch (e) {} })();
(() => { try { Object.defineProperty(navigator, 'mimeTypes', { get: () => [1, 2] }); } catch (e) {} })();
(() => { try { Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 8 }); } catch (e) {} })();
(() => { try { Object.defineProperty(navigator, 'deviceMemory', { get: () => 8 }); } catch (e) {} })();
(() => {
  try {
    const origQuery = window.navigator.permissions && window.navigator.permissions.query;
    if (origQuery) {
      window.navigator.permissions.query = (params) => (
        params && params.name === 'notifications'
          ? Promise.resolve({ state: Notification.permission })
          : origQuery(params)
      );
    }
  } catch (e) {}
})();
(() => {
  try {
    const getParameter = WebGLRenderingContext.prototype.getParameter;
    WebGLRenderingContext.prototype.getParameter = function (parameter) {
      if (parameter === 37445) return 'Intel Inc.';
      if (parameter === 37446) return 'Intel Iris OpenGL Engine';
      return getParameter.call(this, parameter);
    };
  } catch (e) {}
})();
(() => {
  try {
    if (!navigator.userAgentData) {
      Object.defineProperty(navigator, 'userAgentData', {
        get: () => ({
          brands: [{ brand: 'Chromium', version: '120' }, { brand: 'Not=A?Brand', version: '24' }],
          mobile: false,
          getHighEntropyValues: () => Promise.resolve({}),
        }),
      });
    }
  } catch (e) {}
})();
`

// bootstrapScriptJS is the full script installed via
// Page.addScriptToEvaluateOnNewDocument so every new document in the tab
// gets tab-blocking, SPA navigation hooks, console capture, and stealth
// patches before any page script runs.
var bootstrapScriptJS = tabBlockingJS + spaHooksJS + consoleHookJS + stealthJS
