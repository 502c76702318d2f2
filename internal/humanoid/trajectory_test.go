package humanoid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/marionette/api/schemas"
)

func TestGeneratePathEndsExactlyOnTarget(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 1)

	start := Vector2D{X: 10, Y: 10}
	end := Vector2D{X: 800, Y: 400}

	for shape := shapeDirect; shape <= shapeErratic; shape++ {
		h.mu.Lock()
		path := h.generatePath(start, end, shape, 50)
		h.mu.Unlock()

		require.NotEmpty(t, path)
		assert.Equal(t, end, path[len(path)-1], "shape %d must land on target", shape)
	}
}

func TestGeneratePathStartsAtCurrentPosition(t *testing.T) {
	start := Vector2D{X: 50, Y: 700}
	end := Vector2D{X: 920, Y: 120}

	for seed := int64(0); seed < 20; seed++ {
		h := NewTest(newMockExecutor(), seed)

		for shape := shapeDirect; shape <= shapeErratic; shape++ {
			h.mu.Lock()
			path := h.generatePath(start, end, shape, 80)
			h.mu.Unlock()

			require.NotEmpty(t, path)
			assert.LessOrEqual(t, path[0].Dist(start), 1.0,
				"shape %d seed %d must start at the cursor", shape, seed)
		}
	}
}

func TestGeneratePathStaysNearChord(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 2)

	start := Vector2D{X: 0, Y: 0}
	end := Vector2D{X: 1000, Y: 0}

	h.mu.Lock()
	path := h.generatePath(start, end, shapeArc, 100)
	h.mu.Unlock()

	// Arc deviation is capped at 12% of distance.
	for _, p := range path {
		assert.LessOrEqual(t, p.Y, 130.0)
		assert.GreaterOrEqual(t, p.Y, -130.0)
	}
}

func TestPickShapeShortDistancesMostlyDirect(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 3)

	direct := 0
	h.mu.Lock()
	for i := 0; i < 1000; i++ {
		if h.pickShape(40) == shapeDirect {
			direct++
		}
	}
	h.mu.Unlock()

	assert.Greater(t, direct, 600)
}

func TestSimulateTrajectoryDispatchesMovesAndFinishesOnTarget(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 4)

	end := Vector2D{X: 500, Y: 300}
	h.mu.Lock()
	err := h.simulateTrajectory(context.Background(), end, 0)
	h.mu.Unlock()
	require.NoError(t, err)

	events := exec.recordedMouse()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, schemas.MouseMove, ev.Type)
	}

	last := events[len(events)-1]
	assert.Equal(t, end.X, last.X)
	assert.Equal(t, end.Y, last.Y)
	assert.Equal(t, end, h.Position())
}

func TestSimulateTrajectoryHonorsCancellation(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.mu.Lock()
	err := h.simulateTrajectory(ctx, Vector2D{X: 900, Y: 900}, 0)
	h.mu.Unlock()

	assert.ErrorIs(t, err, context.Canceled)
}

func TestEaseInOutCubicBoundaries(t *testing.T) {
	assert.Equal(t, 0.0, easeInOutCubic(0))
	assert.Equal(t, 1.0, easeInOutCubic(1))
	assert.InDelta(t, 0.5, easeInOutCubic(0.5), 1e-9)
}

func TestFittsDurationGrowsWithDistance(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 6)

	h.mu.Lock()
	defer h.mu.Unlock()

	// Average over draws to smooth the +/-15% jitter.
	var shortSum, longSum float64
	for i := 0; i < 200; i++ {
		shortSum += h.fittsDuration(50).Seconds()
		longSum += h.fittsDuration(1500).Seconds()
	}
	assert.Greater(t, longSum, shortSum)
}
