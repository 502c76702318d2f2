package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// geometryJS resolves a selector to its viewport-relative bounding box.
// Visible means the element has area, is not display/visibility hidden, and
// intersects the viewport.
const geometryJS = `(() => {
	const el = document.querySelector(%q);
	if (!el) { return null; }
	const r = el.getBoundingClientRect();
	const cs = window.getComputedStyle(el);
	const onScreen = r.bottom > 0 && r.top < window.innerHeight &&
		r.right > 0 && r.left < window.innerWidth;
	return {
		x: r.x, y: r.y, width: r.width, height: r.height,
		tagName: el.tagName,
		visible: r.width > 0 && r.height > 0 && onScreen &&
			cs.display !== 'none' && cs.visibility !== 'hidden',
	};
})()`

// cdpExecutor drives the page through raw CDP input events so every mouse
// move and key stroke the simulation produces reaches the target unmodified.
type cdpExecutor struct {
	session *Session
}

func (e *cdpExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return e.session.Sleep(ctx, d)
}

func (e *cdpExecutor) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	runCtx, cancel := e.session.bounded(ctx, 10*time.Second)
	defer cancel()

	return chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
			WithButton(input.MouseButton(data.Button)).
			WithButtons(data.Buttons)
		if data.ClickCount > 0 {
			p = p.WithClickCount(int64(data.ClickCount))
		}
		if data.Type == schemas.MouseWheel {
			p = p.WithDeltaX(data.DeltaX).WithDeltaY(data.DeltaY)
		}
		return p.Do(ctx)
	}))
}

func (e *cdpExecutor) SendKeys(ctx context.Context, keys string) error {
	runCtx, cancel := e.session.bounded(ctx, 10*time.Second)
	defer cancel()

	// KeyEvent resolves control runes (\b, \r, \t) to their named keys.
	return chromedp.Run(runCtx, chromedp.KeyEvent(keys))
}

// namedKeyRunes maps DOM key names to the control runes the kb tables are
// keyed by.
var namedKeyRunes = map[string]rune{
	"Backspace": '\b',
	"Enter":     '\r',
	"Tab":       '\t',
	"Escape":    '',
}

func (e *cdpExecutor) DispatchStructuredKey(ctx context.Context, data schemas.KeyEventData) error {
	runCtx, cancel := e.session.bounded(ctx, 10*time.Second)
	defer cancel()

	mods := input.Modifier(data.Modifiers)
	downType := input.KeyDown
	code := ""
	var native, windows int64

	// Non-printing keys are inert without their key codes; the browser only
	// edits on a raw down carrying the virtual codes.
	if r, ok := namedKeyRunes[data.Key]; ok {
		if k, found := kb.Keys[r]; found {
			downType = input.KeyRawDown
			code = k.Code
			native = k.Native
			windows = k.Windows
		}
	}

	return chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		down := input.DispatchKeyEvent(downType).
			WithKey(data.Key).
			WithCode(code).
			WithNativeVirtualKeyCode(native).
			WithWindowsVirtualKeyCode(windows).
			WithModifiers(mods)
		if err := down.Do(ctx); err != nil {
			return err
		}
		up := input.DispatchKeyEvent(input.KeyUp).
			WithKey(data.Key).
			WithCode(code).
			WithNativeVirtualKeyCode(native).
			WithWindowsVirtualKeyCode(windows).
			WithModifiers(mods)
		return up.Do(ctx)
	}))
}

func (e *cdpExecutor) GetElementGeometry(ctx context.Context, selector string) (*schemas.ElementGeometry, error) {
	runCtx, cancel := e.session.bounded(ctx, 10*time.Second)
	defer cancel()

	var geo *schemas.ElementGeometry
	err := chromedp.Run(runCtx, chromedp.Evaluate(fmt.Sprintf(geometryJS, selector), &geo))
	if err != nil {
		return nil, fmt.Errorf("element geometry %q: %w", selector, err)
	}
	if geo == nil {
		return nil, fmt.Errorf("element not found: %q", selector)
	}
	return geo, nil
}
