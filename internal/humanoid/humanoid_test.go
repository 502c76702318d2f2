package humanoid

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/marionette/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func registerButton(exec *mockExecutor, selector string) {
	exec.geometry[selector] = &schemas.ElementGeometry{
		X: 400, Y: 250, Width: 120, Height: 36, TagName: "BUTTON", Visible: true,
	}
}

func TestClickDispatchesPressThenRelease(t *testing.T) {
	exec := newMockExecutor()
	registerButton(exec, "#go")
	h := NewTest(exec, 30)

	require.NoError(t, h.Click(context.Background(), "#go"))

	events := exec.recordedMouse()
	require.NotEmpty(t, events)

	var pressIdx, releaseIdx = -1, -1
	for i, ev := range events {
		switch ev.Type {
		case schemas.MousePress:
			pressIdx = i
		case schemas.MouseRelease:
			releaseIdx = i
		}
	}
	require.GreaterOrEqual(t, pressIdx, 0)
	require.Greater(t, releaseIdx, pressIdx)

	press, release := events[pressIdx], events[releaseIdx]
	assert.Equal(t, schemas.ButtonLeft, press.Button)
	assert.Equal(t, int64(1), press.Buttons)
	assert.Equal(t, int64(0), release.Buttons)
	assert.Equal(t, press.X, release.X)
	assert.Equal(t, press.Y, release.Y)
}

func TestClickLandsInsideElementBounds(t *testing.T) {
	exec := newMockExecutor()
	registerButton(exec, "#go")

	for seed := int64(0); seed < 20; seed++ {
		exec.mouseEvents = nil
		h := NewTest(exec, seed)
		require.NoError(t, h.Click(context.Background(), "#go"))

		for _, ev := range exec.recordedMouse() {
			if ev.Type != schemas.MousePress {
				continue
			}
			assert.GreaterOrEqual(t, ev.X, 400.0)
			assert.LessOrEqual(t, ev.X, 520.0)
			assert.GreaterOrEqual(t, ev.Y, 250.0)
			assert.LessOrEqual(t, ev.Y, 286.0)
		}
	}
}

func TestClickPointMovesToCoordinate(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 31)

	target := Vector2D{X: 640, Y: 360}
	require.NoError(t, h.ClickPoint(context.Background(), target))

	// The landing point is jittered inside the click disc, never exact.
	dist := h.Position().Sub(target).Mag()
	assert.LessOrEqual(t, dist, DefaultConfig().ClickRadiusPx)
}

func TestClickHesitationStallsWithinBounds(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 36)

	h.mu.Lock()
	h.dynamicConfig.ClickHesitationProbability = 1.0
	for i := 0; i < 50; i++ {
		require.NoError(t, h.clickHesitation(context.Background()))
	}
	maxStall := time.Duration(80+h.dynamicConfig.ClickHesitationMaxMs) * time.Millisecond
	h.mu.Unlock()

	require.Len(t, exec.sleeps, 50)
	for _, d := range exec.sleeps {
		assert.GreaterOrEqual(t, d, 80*time.Millisecond)
		assert.Less(t, d, maxStall)
	}
}

func TestClickHesitationSkippedAtZeroProbability(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 37)

	h.mu.Lock()
	h.dynamicConfig.ClickHesitationProbability = 0.0
	for i := 0; i < 50; i++ {
		require.NoError(t, h.clickHesitation(context.Background()))
	}
	h.mu.Unlock()

	assert.Empty(t, exec.sleeps)
}

func TestClickFailsOnZeroSizeElement(t *testing.T) {
	exec := newMockExecutor()
	exec.geometry["#hidden"] = &schemas.ElementGeometry{X: 10, Y: 10}
	h := NewTest(exec, 32)

	err := h.Click(context.Background(), "#hidden")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero-size")
}

func TestPauseZeroDurationIsNoop(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 33)

	require.NoError(t, h.Pause(context.Background(), -100, 0))
	assert.Empty(t, exec.recordedMouse())
}

func TestConcurrentUseSerializesSafely(t *testing.T) {
	exec := newMockExecutor()
	registerButton(exec, "#go")
	h := NewTest(exec, 34)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Click(context.Background(), "#go")
		}()
	}
	wg.Wait()
}

func TestFatigueRisesAndRecovers(t *testing.T) {
	exec := newMockExecutor()
	h := NewTest(exec, 35)

	h.mu.Lock()
	h.updateFatigue(50)
	after := h.fatigueLevel
	h.mu.Unlock()
	assert.Greater(t, after, 0.0)

	h.mu.Lock()
	h.recoverFatigue(1e6 * 1e9)
	recovered := h.fatigueLevel
	h.mu.Unlock()
	assert.Equal(t, 0.0, recovered)
}

func TestFinalizeSessionPersonaClampsSamples(t *testing.T) {
	for seed := int64(0); seed < 100; seed++ {
		cfg := DefaultConfig()
		h := NewTest(newMockExecutor(), seed)

		h.mu.Lock()
		got := h.baseConfig
		h.mu.Unlock()

		assert.GreaterOrEqual(t, got.FittsA, 40.0)
		assert.GreaterOrEqual(t, got.FittsB, 60.0)
		assert.GreaterOrEqual(t, got.TypoRate, 0.0)
		assert.LessOrEqual(t, got.TypoRate, 0.15)
		assert.GreaterOrEqual(t, got.KeyHoldMean, 20.0)
		assert.Greater(t, got.ClickHoldMaxMs, cfg.ClickHoldMinMs)
	}
}
