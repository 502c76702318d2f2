package humanoid

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// ScrollBy scrolls the page by deltaY pixels (positive scrolls down) as a
// burst of wheel events whose magnitudes ease out, the way a flicked wheel
// or trackpad decays.
func (h *Humanoid) ScrollBy(ctx context.Context, deltaY float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrollBy(ctx, deltaY)
}

// scrollBy is the non-locking core. Caller holds the lock.
func (h *Humanoid) scrollBy(ctx context.Context, deltaY float64) error {
	remaining := math.Abs(deltaY)
	dir := 1.0
	if deltaY < 0 {
		dir = -1.0
	}

	cfg := h.dynamicConfig
	total := remaining
	for remaining > 1.0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Step size shrinks as the scroll completes: full steps early, then
		// an ease-out tail.
		progress := 1.0 - remaining/total
		decay := 1.0 - 0.7*progress
		step := (cfg.ScrollStepMin + h.rng.Float64()*(cfg.ScrollStepMax-cfg.ScrollStepMin)) * decay
		if step > remaining {
			step = remaining
		}

		event := schemas.MouseEventData{
			Type:   schemas.MouseWheel,
			X:      h.currentPos.X,
			Y:      h.currentPos.Y,
			Button: schemas.ButtonNone,
			DeltaY: step * dir,
		}
		if err := h.executor.DispatchMouseEvent(ctx, event); err != nil {
			return err
		}
		remaining -= step

		pauseRange := cfg.ScrollPauseMaxMs - cfg.ScrollPauseMinMs
		pause := time.Duration(cfg.ScrollPauseMinMs+h.rng.Intn(pauseRange+1)) * time.Millisecond
		if err := h.executor.Sleep(ctx, pause); err != nil {
			return err
		}
	}
	return nil
}

// ScrollToElement scrolls in bounded increments until the element sits in a
// comfortable band of the viewport. It re-reads geometry each iteration
// because layouts shift under lazy loading.
func (h *Humanoid) ScrollToElement(ctx context.Context, selector string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := 0; i < h.dynamicConfig.ScrollMaxIterations; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		geo, err := h.executor.GetElementGeometry(ctx, selector)
		if err != nil {
			return fmt.Errorf("locate %q for scroll: %w", selector, err)
		}
		if geo.Visible {
			return nil
		}

		// Geometry Y is viewport-relative: negative means above, large
		// positive means below. Scroll most of the gap, not all of it, so
		// the final position looks settled rather than snapped.
		gap := geo.Y - 200.0
		if math.Abs(gap) < 50.0 {
			return nil
		}
		step := gap * (0.6 + h.rng.Float64()*0.3)

		if err := h.scrollBy(ctx, step); err != nil {
			return err
		}

		// Reading pause between scroll bursts.
		pause := time.Duration(150+h.rng.Intn(400)) * time.Millisecond
		h.recoverFatigue(pause)
		if err := h.executor.Sleep(ctx, pause); err != nil {
			return err
		}
	}

	h.logger.Warn("scroll target still not visible", zap.String("selector", selector))
	return fmt.Errorf("element not visible after %d scroll attempts: %q",
		h.dynamicConfig.ScrollMaxIterations, selector)
}
