package actions

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// Page is the interaction surface a handler drives. The browser layer
// implements it with humanized input underneath; tests implement recorders.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	ClickAt(ctx context.Context, x, y float64) error
	Type(ctx context.Context, selector, text string) error
	ScrollBy(ctx context.Context, deltaY float64) error
	ScrollToElement(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string) error
	Sleep(ctx context.Context, d time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// VisionLocator finds an element by natural-language description when no
// selector is available.
type VisionLocator interface {
	Locate(ctx context.Context, screenshot []byte, description string) (schemas.VisionResult, error)
}

// Handler executes one canonical action kind against a page.
type Handler func(ctx context.Context, page Page, step schemas.ScenarioStep) error

// Registry owns the closed kind-to-handler table. Vision may be nil, in
// which case visual targets fail with a descriptive error instead of
// falling back.
type Registry struct {
	handlers map[Kind]Handler
	vision   VisionLocator
	logger   *zap.Logger
}

// NewRegistry builds the full dispatch table.
func NewRegistry(vision VisionLocator, logger *zap.Logger) *Registry {
	r := &Registry{vision: vision, logger: logger}
	r.handlers = map[Kind]Handler{
		KindOpen:    r.handleOpen,
		KindPlay:    r.handlePlay,
		KindScroll:  r.handleScroll,
		KindClick:   r.handleClick,
		KindLike:    r.handleLike,
		KindComment: r.handleComment,
		KindWait:    r.handleWait,
	}
	return r
}

// Execute parses the step's verb and runs its handler.
func (r *Registry) Execute(ctx context.Context, page Page, step schemas.ScenarioStep) error {
	kind, err := ParseKind(step.Action)
	if err != nil {
		return err
	}

	r.logger.Debug("executing action",
		zap.String("kind", string(kind)),
		zap.String("selector", step.Selector),
	)
	return r.handlers[kind](ctx, page, step)
}

func (r *Registry) handleOpen(ctx context.Context, page Page, step schemas.ScenarioStep) error {
	if step.Target == "" {
		return fmt.Errorf("open action requires a target url")
	}
	return page.Navigate(ctx, step.Target)
}

// handlePlay starts media playback. Without a selector it clicks the first
// video element, which toggles play on every major platform.
func (r *Registry) handlePlay(ctx context.Context, page Page, step schemas.ScenarioStep) error {
	selector := step.Selector
	if selector == "" {
		selector = "video"
	}
	if err := page.WaitVisible(ctx, selector); err != nil {
		return fmt.Errorf("play target %q: %w", selector, err)
	}
	if err := page.Click(ctx, selector); err != nil {
		return err
	}
	if step.DurationMs > 0 {
		return page.Sleep(ctx, time.Duration(step.DurationMs)*time.Millisecond)
	}
	return nil
}

func (r *Registry) handleScroll(ctx context.Context, page Page, step schemas.ScenarioStep) error {
	if step.Selector != "" {
		return page.ScrollToElement(ctx, step.Selector)
	}
	delta := float64(step.Y)
	if delta == 0 {
		delta = 600
	}
	return page.ScrollBy(ctx, delta)
}

func (r *Registry) handleClick(ctx context.Context, page Page, step schemas.ScenarioStep) error {
	return r.clickTarget(ctx, page, step)
}

// handleLike is a click with a sensible default selector for like buttons.
func (r *Registry) handleLike(ctx context.Context, page Page, step schemas.ScenarioStep) error {
	if step.Selector == "" && step.Visual == "" {
		step.Selector = `[aria-label*="like" i]`
	}
	return r.clickTarget(ctx, page, step)
}

func (r *Registry) handleComment(ctx context.Context, page Page, step schemas.ScenarioStep) error {
	if step.Selector == "" {
		return fmt.Errorf("comment action requires a selector")
	}
	if step.Text == "" {
		return fmt.Errorf("comment action requires text")
	}
	if err := page.ScrollToElement(ctx, step.Selector); err != nil {
		return err
	}
	return page.Type(ctx, step.Selector, step.Text)
}

func (r *Registry) handleWait(ctx context.Context, page Page, step schemas.ScenarioStep) error {
	ms := step.DurationMs
	if ms <= 0 {
		ms = 1000
	}
	return page.Sleep(ctx, time.Duration(ms)*time.Millisecond)
}

// clickTarget resolves the step's target in priority order: CSS selector,
// explicit coordinates, then vision lookup by description.
func (r *Registry) clickTarget(ctx context.Context, page Page, step schemas.ScenarioStep) error {
	switch {
	case step.Selector != "":
		if err := page.ScrollToElement(ctx, step.Selector); err != nil {
			return err
		}
		return page.Click(ctx, step.Selector)

	case step.X > 0 || step.Y > 0:
		return page.ClickAt(ctx, float64(step.X), float64(step.Y))

	case step.Visual != "":
		return r.clickVisual(ctx, page, step.Visual)

	default:
		return fmt.Errorf("click action requires a selector, coordinates, or a visual description")
	}
}

func (r *Registry) clickVisual(ctx context.Context, page Page, description string) error {
	if r.vision == nil {
		return fmt.Errorf("visual target %q requires a vision backend", description)
	}

	shot, err := page.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot for vision lookup: %w", err)
	}

	result, err := r.vision.Locate(ctx, shot, description)
	if err != nil {
		return fmt.Errorf("vision lookup %q: %w", description, err)
	}
	if !result.Found {
		return fmt.Errorf("element not found by vision: %q", description)
	}

	r.logger.Debug("vision located target",
		zap.String("description", description),
		zap.Float64("confidence", result.Confidence),
	)
	return page.ClickAt(ctx, result.X, result.Y)
}
