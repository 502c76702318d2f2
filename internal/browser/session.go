package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/humanoid"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session is one live browser with a fixed identity. It exposes the page
// surface action handlers drive and the inspector surface challenge
// detection reads. All interaction goes through the humanoid layer; nothing
// here clicks programmatically.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	human       humanoid.Controller
	fingerprint schemas.Fingerprint
	profile     schemas.Profile
	navTimeout  time.Duration
	elemTimeout time.Duration
	logger      *zap.Logger
}

// Fingerprint returns the identity this session was launched with.
func (s *Session) Fingerprint() schemas.Fingerprint { return s.fingerprint }

// Navigate loads a URL and waits for the document to become interactive.
func (s *Session) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.bounded(ctx, defaultTimeout(s.navTimeout, 60*time.Second))
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	// A fresh document resets scroll state; restart the cursor somewhere
	// unremarkable.
	s.human.SetPosition(humanoid.Vector2D{
		X: float64(s.profile.Viewport.Width) * 0.5,
		Y: float64(s.profile.Viewport.Height) * 0.4,
	})
	return nil
}

// Click performs a humanized click on the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.human.Click(ctx, selector)
}

// ClickAt performs a humanized click at viewport coordinates.
func (s *Session) ClickAt(ctx context.Context, x, y float64) error {
	return s.human.ClickPoint(ctx, humanoid.Vector2D{X: x, Y: y})
}

// Type focuses the field and types with the session persona's rhythm.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	return s.human.Type(ctx, selector, text)
}

// ScrollBy scrolls the page by deltaY pixels.
func (s *Session) ScrollBy(ctx context.Context, deltaY float64) error {
	return s.human.ScrollBy(ctx, deltaY)
}

// ScrollToElement scrolls until the selector is in view.
func (s *Session) ScrollToElement(ctx context.Context, selector string) error {
	return s.human.ScrollToElement(ctx, selector)
}

// WaitVisible blocks until the selector renders, bounded by the element
// timeout.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	runCtx, cancel := s.bounded(ctx, defaultTimeout(s.elemTimeout, 15*time.Second))
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element not visible %q: %w", selector, err)
	}
	return nil
}

// Sleep waits with session-context awareness.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := s.bounded(ctx, 30*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// HasSelector reports whether the selector currently matches any element.
func (s *Session) HasSelector(ctx context.Context, selector string) (bool, error) {
	runCtx, cancel := s.bounded(ctx, 10*time.Second)
	defer cancel()

	var found bool
	err := chromedp.Run(runCtx, chromedp.Evaluate(
		fmt.Sprintf(`document.querySelector(%q) !== null`, selector), &found,
	))
	if err != nil {
		return false, fmt.Errorf("probe %q: %w", selector, err)
	}
	return found, nil
}

// CurrentURL reports the page the session is on.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	runCtx, cancel := s.bounded(ctx, 10*time.Second)
	defer cancel()

	var url string
	if err := chromedp.Run(runCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

// storageState is the persisted identity payload.
type storageState struct {
	Cookies []*network.Cookie `json:"cookies"`
}

// ExportStorageState serializes cookies for persistence at session end.
func (s *Session) ExportStorageState(ctx context.Context) ([]byte, error) {
	runCtx, cancel := s.bounded(ctx, 15*time.Second)
	defer cancel()

	var state storageState
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		state.Cookies = cookies
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("export cookies: %w", err)
	}
	return json.Marshal(state)
}

// restoreStorageState loads previously persisted cookies into the fresh
// context.
func (s *Session) restoreStorageState(ctx context.Context, raw []byte) error {
	var state storageState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("decode storage state: %w", err)
	}
	if len(state.Cookies) == 0 {
		return nil
	}

	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		params = append(params, &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		})
	}

	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(params).Do(ctx)
	}))
}

// Reload refreshes the current page.
func (s *Session) Reload(ctx context.Context) error {
	runCtx, cancel := s.bounded(ctx, defaultTimeout(s.navTimeout, 60*time.Second))
	defer cancel()

	return chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return page.Reload().Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Close tears down the browser process. Safe to call more than once.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// bounded derives a run context joining the caller's deadline, the session
// lifetime and a hard timeout.
func (s *Session) bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
