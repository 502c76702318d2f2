package humanoid

import (
	"context"
	"time"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// Pause sleeps for a Gaussian-distributed duration scaled by fatigue. Longer
// pauses idle with small cursor wander instead of holding perfectly still.
func (h *Humanoid) Pause(ctx context.Context, meanMs, stdDevMs float64) error {
	h.mu.Lock()
	fatigueFactor := 1.0 + h.fatigueLevel
	duration := time.Duration(fatigueFactor*(meanMs+h.rng.NormFloat64()*stdDevMs)) * time.Millisecond
	h.recoverFatigue(duration)
	h.mu.Unlock()

	if duration <= 0 {
		return nil
	}
	if duration > 150*time.Millisecond {
		return h.idle(ctx, duration)
	}
	return h.executor.Sleep(ctx, duration)
}

// idle waits out a duration while drifting the cursor a few pixels at a
// time.
func (h *Humanoid) idle(ctx context.Context, duration time.Duration) error {
	start := time.Now()

	for time.Since(start) < duration {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		h.mu.Lock()
		target := h.currentPos.Add(Vector2D{
			X: (h.rng.Float64() - 0.5) * 5,
			Y: (h.rng.Float64() - 0.5) * 5,
		})
		wait := time.Duration(50+h.rng.Intn(100)) * time.Millisecond
		h.mu.Unlock()

		event := schemas.MouseEventData{
			Type:   schemas.MouseMove,
			X:      target.X,
			Y:      target.Y,
			Button: schemas.ButtonNone,
		}
		if err := h.executor.DispatchMouseEvent(ctx, event); err != nil {
			return err
		}

		h.mu.Lock()
		h.currentPos = target
		h.mu.Unlock()

		if remaining := duration - time.Since(start); wait > remaining {
			wait = remaining
		}
		if wait <= 0 {
			break
		}
		if err := h.executor.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}
