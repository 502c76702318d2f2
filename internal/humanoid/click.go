package humanoid

import (
	"context"
	"math"
	"time"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// Click moves to the element and performs a left click with a randomized
// hold duration.
func (h *Humanoid) Click(ctx context.Context, selector string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.moveToSelector(ctx, selector); err != nil {
		return err
	}
	return h.pressAndRelease(ctx)
}

// ClickPoint moves near an absolute coordinate and clicks it. The landing
// point is drawn uniformly from a disc around the target so the same
// logical point never repeats pixel-exact. Vision-guided actions use this
// when only coordinates are known.
func (h *Humanoid) ClickPoint(ctx context.Context, target Vector2D) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r := h.dynamicConfig.ClickRadiusPx; r > 0 {
		angle := h.rng.Float64() * 2 * math.Pi
		dist := r * math.Sqrt(h.rng.Float64())
		target.X += dist * math.Cos(angle)
		target.Y += dist * math.Sin(angle)
	}

	if err := h.moveToPoint(ctx, target); err != nil {
		return err
	}
	return h.pressAndRelease(ctx)
}

// clickHesitation sometimes stalls between arriving on the target and
// pressing, the way a person re-checks a button before committing. Caller
// holds the lock.
func (h *Humanoid) clickHesitation(ctx context.Context) error {
	if h.rng.Float64() >= h.dynamicConfig.ClickHesitationProbability {
		return nil
	}
	stall := time.Duration(80+h.rng.Intn(h.dynamicConfig.ClickHesitationMaxMs)) * time.Millisecond
	h.recoverFatigue(stall)
	return h.executor.Sleep(ctx, stall)
}

// pressAndRelease dispatches the press, holds, and releases at the current
// cursor position. Caller holds the lock.
func (h *Humanoid) pressAndRelease(ctx context.Context) error {
	if err := h.clickHesitation(ctx); err != nil {
		return err
	}
	pos := h.currentPos

	press := schemas.MouseEventData{
		Type:       schemas.MousePress,
		X:          pos.X,
		Y:          pos.Y,
		Button:     schemas.ButtonLeft,
		Buttons:    1,
		ClickCount: 1,
	}
	if err := h.executor.DispatchMouseEvent(ctx, press); err != nil {
		return err
	}

	holdRange := h.dynamicConfig.ClickHoldMaxMs - h.dynamicConfig.ClickHoldMinMs
	hold := time.Duration(h.dynamicConfig.ClickHoldMinMs+h.rng.Intn(holdRange)) * time.Millisecond
	if err := h.executor.Sleep(ctx, hold); err != nil {
		return err
	}

	release := schemas.MouseEventData{
		Type:       schemas.MouseRelease,
		X:          pos.X,
		Y:          pos.Y,
		Button:     schemas.ButtonLeft,
		Buttons:    0,
		ClickCount: 1,
	}
	return h.executor.DispatchMouseEvent(ctx, release)
}
