package page

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/codebrowser/codebrowser/internal/browser/berr"
)

func toInputButton(b MouseButton) input.MouseButton {
	switch b {
	case ButtonLeft:
		return input.Left
	case ButtonRight:
		return input.Right
	default:
		return input.None
	}
}

// MoveMouse dispatches a mouseMoved CDP event to (x, y), updates the
// cursor's button/down state to match whatever it was before the move (a
// move never changes which button is held), and repositions the overlay.
func (p *Page) MoveMouse(ctx context.Context, x, y float64) error {
	p.cursorMu.Lock()
	button, down := p.cursorState.Button, p.cursorState.IsMouseDown
	p.cursorMu.Unlock()

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).
			WithButton(toInputButton(button)).
			Do(ctx)
	}))
	if err != nil {
		return &berr.CdpError{Message: "mouse move failed: " + err.Error()}
	}

	p.setCursorState(x, y, button, down)
	_ = p.ensureVirtualCursor(ctx, x, y)
	return nil
}

// MoveMouseRelative moves the cursor by (dx, dy) from its current position.
func (p *Page) MoveMouseRelative(ctx context.Context, dx, dy float64) error {
	x, y := p.GetCursorPosition()
	return p.MoveMouse(ctx, x+dx, y+dy)
}

// ClickAtCurrent dispatches a full mouseDown+mouseUp at the cursor's
// current position with the given button.
func (p *Page) ClickAtCurrent(ctx context.Context, button MouseButton) error {
	x, y := p.GetCursorPosition()
	return p.Click(ctx, x, y, button)
}

// Click moves to (x, y) and performs a full mouseDown+mouseUp click there.
func (p *Page) Click(ctx context.Context, x, y float64, button MouseButton) error {
	if err := p.MoveMouse(ctx, x, y); err != nil {
		return err
	}
	if err := p.MouseDownAtCurrent(ctx, button); err != nil {
		return err
	}
	if err := p.MouseUpAtCurrent(ctx, button); err != nil {
		return err
	}
	_ = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return nil
	}))
	p.pulseCursor(ctx)
	return nil
}

func (p *Page) pulseCursor(ctx context.Context) {
	_ = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.Evaluate(`(() => { try { window.__vc && window.__vc.clickPulse(); } catch (e) {} })();`, nil).Do(ctx)
	}))
}

// MouseDownAtCurrent presses button down at the cursor's current position
// without releasing it, for drag gestures built from separate down/move/up
// calls.
func (p *Page) MouseDownAtCurrent(ctx context.Context, button MouseButton) error {
	x, y := p.GetCursorPosition()
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(toInputButton(button)).
			WithClickCount(1).
			Do(ctx)
	}))
	if err != nil {
		return &berr.CdpError{Message: "mouse down failed: " + err.Error()}
	}
	p.setCursorState(x, y, button, true)
	return nil
}

// MouseUpAtCurrent releases button at the cursor's current position.
func (p *Page) MouseUpAtCurrent(ctx context.Context, button MouseButton) error {
	x, y := p.GetCursorPosition()
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(toInputButton(button)).
			WithClickCount(1).
			Do(ctx)
	}))
	if err != nil {
		return &berr.CdpError{Message: "mouse up failed: " + err.Error()}
	}
	p.setCursorState(x, y, ButtonNone, false)
	return nil
}

// ensureEditableFocusedJS walks into shadow roots and same-origin iframes to
// find whatever is deeply focused; if that isn't editable, it finds the
// element under (x, y) the same way, climbs to the nearest editable
// ancestor, and focuses it. It only ever focuses something it found by
// walking from the cursor position — it never guesses at an arbitrary
// candidate element.
const ensureEditableFocusedTemplate = `
(() => {
  const isEditableInputType = (t) => !/^(checkbox|radio|button|submit|reset|file|image|color|hidden|range)$/i.test(t || 'text');
  const isEditable = (el) => {
    if (!el) return false;
    const tag = (el.tagName || '').toUpperCase();
    if (tag === 'TEXTAREA') return true;
    if (tag === 'INPUT' && isEditableInputType(el.type)) return true;
    return !!el.isContentEditable;
  };
  const deepActiveElement = (doc) => {
    let el = doc.activeElement;
    while (el) {
      if (el.shadowRoot && el.shadowRoot.activeElement) {
        el = el.shadowRoot.activeElement;
        continue;
      }
      if (el.tagName === 'IFRAME') {
        try {
          const inner = el.contentWindow && el.contentWindow.document;
          if (inner) { el = inner.activeElement; continue; }
        } catch (e) {}
      }
      break;
    }
    return el;
  };
  const deepElementFromPoint = (x, y) => {
    let doc = document;
    let offsetX = x, offsetY = y;
    for (let i = 0; i < 8; i++) {
      const els = doc.elementsFromPoint(offsetX, offsetY);
      if (!els.length) return null;
      let el = els[0];
      if (el.shadowRoot) {
        doc = el.shadowRoot;
        continue;
      }
      if (el.tagName === 'IFRAME') {
        try {
          const rect = el.getBoundingClientRect();
          const inner = el.contentWindow && el.contentWindow.document;
          if (inner) {
            offsetX = offsetX - rect.left;
            offsetY = offsetY - rect.top;
            doc = inner;
            continue;
          }
        } catch (e) {}
      }
      return el;
    }
    return null;
  };

  const active = deepActiveElement(document);
  if (isEditable(active)) return true;

  let el = deepElementFromPoint(%[1]f, %[2]f);
  while (el && !isEditable(el)) {
    el = el.parentElement || (el.getRootNode && el.getRootNode().host);
  }
  if (!el) return false;

  el.focus();
  return isEditable(deepActiveElement(document));
})();
`

// focusGuardInstallJS installs window.__codeFG, which re-focuses the
// previously-focused element if the page steals focus mid-typing (e.g. a
// layout-shift-triggered autofocus), unless the last key pressed was Tab or
// Enter (an intentional focus change) or the element became detached or
// hidden.
const focusGuardInstallJS = `
(() => {
  if (window.__codeFG) return;
  const target = document.activeElement;
  const state = { lastKey: null };
  const onKeyDown = (ev) => { state.lastKey = ev.key; };
  const onFocusIn = (ev) => {
    if (state.lastKey === 'Tab' || state.lastKey === 'Enter') return;
    if (!target || !target.isConnected) return;
    const style = window.getComputedStyle(target);
    if (style.display === 'none' || style.visibility === 'hidden') return;
    if (document.activeElement !== target) {
      setTimeout(() => { try { target.focus(); } catch (e) {} }, 0);
    }
  };
  document.addEventListener('keydown', onKeyDown, true);
  document.addEventListener('focusin', onFocusIn, true);
  window.__codeFG = {
    uninstall: () => {
      document.removeEventListener('keydown', onKeyDown, true);
      document.removeEventListener('focusin', onFocusIn, true);
      delete window.__codeFG;
    },
  };
})();
`

const focusGuardUninstallJS = `(() => { try { window.__codeFG && window.__codeFG.uninstall(); } catch (e) {} })();`

// pasteStyleTypeTemplate inserts text in one shot via selection splicing
// (INPUT/TEXTAREA) or execCommand/Range insertion (contenteditable), for
// long strings where per-character dispatch would be needlessly slow.
const pasteStyleTypeTemplate = `
(() => {
  const el = document.activeElement;
  if (!el) return false;
  const text = %[1]q;
  const tag = (el.tagName || '').toUpperCase();
  if (tag === 'INPUT' || tag === 'TEXTAREA') {
    const start = el.selectionStart ?? el.value.length;
    const end = el.selectionEnd ?? el.value.length;
    el.value = el.value.slice(0, start) + text + el.value.slice(end);
    el.selectionStart = el.selectionEnd = start + text.length;
    el.dispatchEvent(new InputEvent('input', { inputType: 'insertText', data: text, bubbles: true }));
    return true;
  }
  if (el.isContentEditable) {
    if (document.execCommand) {
      try {
        if (document.execCommand('insertText', false, text)) return true;
      } catch (e) {}
    }
    const sel = window.getSelection();
    if (sel && sel.rangeCount) {
      const range = sel.getRangeAt(0);
      range.deleteContents();
      range.insertNode(document.createTextNode(text));
      range.collapse(false);
      return true;
    }
  }
  return false;
})();
`

// TypeText focuses the nearest editable element under the cursor (without
// stealing focus from something already legitimately focused), installs a
// focus guard for the duration of typing, and inserts text either via
// per-character key events (short strings, for realistic timing) or a
// single paste-style insertion (long strings).
func (p *Page) TypeText(ctx context.Context, text string) error {
	text = strings.ReplaceAll(text, "—", " - ")

	x, y := p.GetCursorPosition()
	focused, err := p.ensureEditableFocused(ctx, x, y)
	if err != nil {
		return err
	}
	if !focused {
		return nil // skip typing to avoid stealing focus
	}

	if err := p.runJS(ctx, focusGuardInstallJS); err != nil {
		return &berr.CdpError{Message: "failed to install focus guard: " + err.Error()}
	}
	defer func() {
		time.AfterFunc(500*time.Millisecond, func() {
			_ = p.runJS(ctx, focusGuardUninstallJS)
		})
	}()

	if len(text) >= 100 {
		script := fmt.Sprintf(pasteStyleTypeTemplate, text)
		return p.runJSChecked(ctx, script)
	}

	for _, r := range text {
		switch r {
		case '\n':
			if err := p.PressKey(ctx, "Enter"); err != nil {
				return err
			}
		case '\t':
			if err := p.PressKey(ctx, "Tab"); err != nil {
				return err
			}
		default:
			if err := p.dispatchChar(ctx, string(r)); err != nil {
				return err
			}
			time.Sleep(time.Duration(30+rand.Intn(31)) * time.Millisecond)
		}
	}
	return nil
}

func (p *Page) dispatchChar(ctx context.Context, text string) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchKeyEvent(input.KeyChar).WithText(text).Do(ctx)
	}))
}

func (p *Page) ensureEditableFocused(ctx context.Context, x, y float64) (bool, error) {
	script := fmt.Sprintf(ensureEditableFocusedTemplate, x, y)
	var ok bool
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.Evaluate(script, &ok).Do(ctx)
	}))
	if err != nil {
		return false, &berr.CdpError{Message: "ensure_editable_focused failed: " + err.Error()}
	}
	return ok, nil
}

func (p *Page) runJS(ctx context.Context, script string) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.Evaluate(script, nil).Do(ctx)
	}))
}

func (p *Page) runJSChecked(ctx context.Context, script string) error {
	if err := p.runJS(ctx, script); err != nil {
		return &berr.CdpError{Message: "javascript execution failed: " + err.Error()}
	}
	return nil
}

// keyMapping carries the CDP key identity for one named key.
type keyMapping struct {
	Code         string
	Text         string
	WindowsVK    int64
	NativeVK     int64
	HasVK        bool
}

var namedKeys = map[string]keyMapping{
	"Enter":      {Code: "Enter", Text: "\r", WindowsVK: 13, NativeVK: 13, HasVK: true},
	"Tab":        {Code: "Tab", Text: "\t", WindowsVK: 9, NativeVK: 9, HasVK: true},
	"Escape":     {Code: "Escape", WindowsVK: 27, NativeVK: 27, HasVK: true},
	"Backspace":  {Code: "Backspace", WindowsVK: 8, NativeVK: 8, HasVK: true},
	"Delete":     {Code: "Delete", WindowsVK: 46, NativeVK: 46, HasVK: true},
	"ArrowUp":    {Code: "ArrowUp", WindowsVK: 38, NativeVK: 38, HasVK: true},
	"ArrowDown":  {Code: "ArrowDown", WindowsVK: 40, NativeVK: 40, HasVK: true},
	"ArrowLeft":  {Code: "ArrowLeft", WindowsVK: 37, NativeVK: 37, HasVK: true},
	"ArrowRight": {Code: "ArrowRight", WindowsVK: 39, NativeVK: 39, HasVK: true},
	"Home":       {Code: "Home", WindowsVK: 36, NativeVK: 36, HasVK: true},
	"End":        {Code: "End", WindowsVK: 35, NativeVK: 35, HasVK: true},
	"PageUp":     {Code: "PageUp", WindowsVK: 33, NativeVK: 33, HasVK: true},
	"PageDown":   {Code: "PageDown", WindowsVK: 34, NativeVK: 34, HasVK: true},
	"Space":      {Code: "Space", Text: " ", WindowsVK: 32, NativeVK: 32, HasVK: true},
}

// PressKey dispatches keyDown, an optional char event (when the mapping
// carries printable text), then keyUp, for one named key. Keys outside the
// known table pass through using the key name itself as both code and key,
// with no virtual-key codes set.
func (p *Page) PressKey(ctx context.Context, key string) error {
	m, ok := namedKeys[key]
	if !ok {
		m = keyMapping{Code: key}
	}

	down := input.DispatchKeyEvent(input.KeyDown).WithKey(key).WithCode(m.Code)
	if m.HasVK {
		down = down.WithWindowsVirtualKeyCode(m.WindowsVK).WithNativeVirtualKeyCode(m.NativeVK)
	}

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return down.Do(ctx)
	}))
	if err != nil {
		return &berr.CdpError{Message: "key down failed: " + err.Error()}
	}

	if m.Text != "" {
		if err := p.dispatchChar(ctx, m.Text); err != nil {
			return &berr.CdpError{Message: "key char failed: " + err.Error()}
		}
	}

	up := input.DispatchKeyEvent(input.KeyUp).WithKey(key).WithCode(m.Code)
	if m.HasVK {
		up = up.WithWindowsVirtualKeyCode(m.WindowsVK).WithNativeVirtualKeyCode(m.NativeVK)
	}
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return up.Do(ctx)
	}))
	if err != nil {
		return &berr.CdpError{Message: "key up failed: " + err.Error()}
	}
	return nil
}
