package humanoid

import (
	"context"
	"fmt"
	"math"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// MoveTo moves the cursor to a point inside the element matched by selector.
func (h *Humanoid) MoveTo(ctx context.Context, selector string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveToSelector(ctx, selector)
}

// MoveToPoint moves the cursor to an absolute coordinate.
func (h *Humanoid) MoveToPoint(ctx context.Context, target Vector2D) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.moveToPoint(ctx, target)
}

// moveToSelector resolves geometry and moves. Caller holds the lock.
func (h *Humanoid) moveToSelector(ctx context.Context, selector string) error {
	geo, err := h.executor.GetElementGeometry(ctx, selector)
	if err != nil {
		return fmt.Errorf("locate %q: %w", selector, err)
	}
	if geo.Width <= 0 || geo.Height <= 0 {
		return fmt.Errorf("element %q has zero-size geometry", selector)
	}
	return h.moveToPoint(ctx, h.targetPoint(geo))
}

// moveToPoint runs the trajectory and fatigue accounting. Caller holds the
// lock.
func (h *Humanoid) moveToPoint(ctx context.Context, target Vector2D) error {
	h.updateFatigue(h.currentPos.Dist(target) / 1000.0)
	return h.simulateTrajectory(ctx, target, 0)
}

// targetPoint picks a landing point inside the element: normally distributed
// around the center and clamped one pixel inside the bounds, so repeated
// clicks never land on the same pixel nor on the border. Caller holds the
// lock.
func (h *Humanoid) targetPoint(geo *schemas.ElementGeometry) Vector2D {
	center := elementCenter(geo)

	stdDevX := geo.Width * 0.9 / 6.0
	stdDevY := geo.Height * 0.9 / 6.0
	x := center.X + h.rng.NormFloat64()*stdDevX
	y := center.Y + h.rng.NormFloat64()*stdDevY

	minX, maxX := geo.X+1.0, geo.X+geo.Width-1.0
	minY, maxY := geo.Y+1.0, geo.Y+geo.Height-1.0
	if maxX < minX {
		maxX = minX
	}
	if maxY < minY {
		maxY = minY
	}

	return Vector2D{
		X: math.Max(minX, math.Min(maxX, x)),
		Y: math.Max(minY, math.Min(maxY, y)),
	}
}
