package humanoid

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// trajectoryShape selects the family of curve a movement follows.
type trajectoryShape int

const (
	shapeDirect trajectoryShape = iota
	shapeBezier
	shapeArc
	shapeOvershoot
	shapeSigmoid
	shapeErratic
)

// easeInOutCubic shapes the velocity profile: slow start, fast middle,
// decelerating arrival.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// pickShape chooses a curve family weighted by travel distance. Short hops
// are mostly straight; long travels bend, overshoot or wander.
// Caller holds the lock.
func (h *Humanoid) pickShape(distance float64) trajectoryShape {
	p := h.rng.Float64()
	switch {
	case distance < 80:
		if p < 0.7 {
			return shapeDirect
		}
		return shapeBezier
	case distance < 400:
		switch {
		case p < 0.45:
			return shapeBezier
		case p < 0.70:
			return shapeArc
		case p < 0.85:
			return shapeOvershoot
		default:
			return shapeSigmoid
		}
	default:
		switch {
		case p < 0.35:
			return shapeBezier
		case p < 0.55:
			return shapeSigmoid
		case p < 0.75:
			return shapeOvershoot
		case p < 0.90:
			return shapeArc
		default:
			return shapeErratic
		}
	}
}

// generatePath materializes numSteps points from start to end along the
// chosen shape. The first point is near start and the final point is exactly
// end. Caller holds the lock.
func (h *Humanoid) generatePath(start, end Vector2D, shape trajectoryShape, numSteps int) []Vector2D {
	if numSteps < 2 {
		numSteps = 2
	}
	delta := end.Sub(start)
	dist := delta.Mag()
	if dist < 1.0 {
		return []Vector2D{end}
	}
	perp := delta.Normalize().Perp()

	path := make([]Vector2D, numSteps)
	for i := 0; i < numSteps; i++ {
		t := float64(i) / float64(numSteps-1)
		base := start.Add(delta.Mul(t))

		var lateral float64
		switch shape {
		case shapeDirect:
			// Mild sinusoidal deviation peaking mid-path.
			lateral = math.Sin(t*math.Pi) * dist * 0.02 * h.pathBias()
		case shapeBezier:
			lateral = bezierOffset(t) * dist * 0.08 * h.pathBias()
		case shapeArc:
			lateral = math.Sin(t*math.Pi) * dist * 0.12 * h.pathBias()
		case shapeOvershoot:
			// Damped oscillation: overshoots the line near arrival then
			// settles back onto the target.
			lateral = math.Exp(-3*t) * math.Sin(t*math.Pi*2.5) * dist * 0.06 * h.pathBias()
		case shapeSigmoid:
			// S-curve: drift one way early, the other way late.
			lateral = math.Sin(t*math.Pi*2) * dist * 0.05 * h.pathBias()
		case shapeErratic:
			// Random wander under the same mid-path envelope as the other
			// shapes so the path still pins to its endpoints.
			lateral = (h.rng.Float64() - 0.5) * math.Sin(t*math.Pi) * dist * 0.05
		}

		path[i] = base.Add(perp.Mul(lateral))
	}
	path[numSteps-1] = end
	return path
}

// bezierOffset is the lateral profile of a cubic Bezier with symmetric
// control points offset from the chord.
func bezierOffset(t float64) float64 {
	omt := 1.0 - t
	return 3*omt*omt*t - 3*omt*t*t
}

// pathBias returns a signed unit factor so curves bend either way.
// Caller holds the lock.
func (h *Humanoid) pathBias() float64 {
	if h.rng.Intn(2) == 0 {
		return -1.0
	}
	return 1.0
}

// simulateTrajectory walks the cursor from its current position to end,
// dispatching mouse moves with eased timing, Perlin drift and Gaussian
// tremor. Caller holds the lock. buttons carries the CDP buttons bitfield
// for drags; zero for plain moves.
func (h *Humanoid) simulateTrajectory(ctx context.Context, end Vector2D, buttons int64) error {
	start := h.currentPos
	dist := start.Dist(end)
	duration := h.fittsDuration(dist)

	numSteps := int(duration.Seconds() * 100)
	if numSteps < 2 {
		numSteps = 2
	}

	shape := h.pickShape(dist)
	path := h.generatePath(start, end, shape, numSteps)

	startTime := time.Now()
	for i, point := range path {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		t := float64(i) / float64(len(path)-1)
		eased := easeInOutCubic(t)

		// Keep dispatch on schedule with the eased clock.
		target := startTime.Add(time.Duration(eased * float64(duration)))
		if wait := time.Until(target); wait > 0 {
			if err := h.executor.Sleep(ctx, wait); err != nil {
				return err
			}
		}

		elapsed := time.Since(startTime).Seconds()
		const driftFreq = 0.8
		drift := Vector2D{
			X: h.noiseX.Noise1D(elapsed*driftFreq) * h.dynamicConfig.DriftAmplitude,
			Y: h.noiseY.Noise1D(elapsed*driftFreq) * h.dynamicConfig.DriftAmplitude,
		}
		perturbed := h.applyTremor(point.Add(drift))

		// The final point lands exactly on target so click coordinates stay
		// inside the element.
		if i == len(path)-1 {
			perturbed = end
		}

		event := schemas.MouseEventData{
			Type:    schemas.MouseMove,
			X:       perturbed.X,
			Y:       perturbed.Y,
			Button:  schemas.ButtonNone,
			Buttons: buttons,
		}
		if err := h.executor.DispatchMouseEvent(ctx, event); err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("mouse move dispatch failed", zap.Error(err))
			}
			return err
		}
		h.currentPos = perturbed

		if err := h.executor.Sleep(ctx, time.Duration(2+h.rng.Intn(4))*time.Millisecond); err != nil {
			return err
		}
	}

	return nil
}
