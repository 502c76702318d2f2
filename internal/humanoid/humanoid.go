// Package humanoid generates human-plausible input: mouse trajectories with
// noise and overshoot, burst typing with occasional corrected typos, and
// eased scrolling. All timing derives from Fitts's law plus per-session
// persona parameters so no two sessions share a motion signature.
package humanoid

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// Humanoid holds the simulation state for one browser session.
type Humanoid struct {
	// mu protects every mutable field. Public methods lock it for the whole
	// interaction so concurrent callers serialize into one plausible stream
	// of input events.
	mu            sync.Mutex
	baseConfig    Config
	dynamicConfig Config
	logger        *zap.Logger
	executor      Executor
	currentPos    Vector2D
	fatigueLevel  float64
	noiseTime     float64
	rng           *rand.Rand
	noiseX        *perlin.Perlin
	noiseY        *perlin.Perlin
}

// New builds a Humanoid for a session. If config.Rng is nil a clock-seeded
// source is used.
func New(config Config, logger *zap.Logger, executor Executor) *Humanoid {
	seed := time.Now().UnixNano()
	rng := config.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(seed))
	}

	config.FinalizeSessionPersona(rng)

	const alpha, beta, octaves = 2.0, 2.0, int32(3)

	return &Humanoid{
		baseConfig:    config,
		dynamicConfig: config,
		logger:        logger,
		executor:      executor,
		rng:           rng,
		noiseX:        perlin.NewPerlin(alpha, beta, octaves, seed),
		noiseY:        perlin.NewPerlin(alpha, beta, octaves, seed+1),
	}
}

// NewTest builds a fully deterministic Humanoid for tests.
func NewTest(executor Executor, seed int64) *Humanoid {
	cfg := DefaultConfig()
	cfg.Rng = rand.New(rand.NewSource(seed))
	h := New(cfg, zap.NewNop(), executor)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.noiseX = perlin.NewPerlin(2, 2, 3, seed)
	h.noiseY = perlin.NewPerlin(2, 2, 3, seed+1)
	return h
}

// Position reports the simulated cursor location.
func (h *Humanoid) Position() Vector2D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentPos
}

// SetPosition seeds the cursor, typically after a navigation resets the page.
func (h *Humanoid) SetPosition(pos Vector2D) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentPos = pos
}

// fittsDuration computes a movement time for the given distance with a
// target width assumption and +/-15% jitter. Caller holds the lock.
func (h *Humanoid) fittsDuration(distance float64) time.Duration {
	const targetWidth = 30.0
	id := math.Log2(1.0 + distance/targetWidth)
	mt := h.dynamicConfig.FittsA + h.dynamicConfig.FittsB*id
	mt += mt * (h.rng.Float64()*0.3 - 0.15)
	return time.Duration(mt) * time.Millisecond
}

// updateFatigue raises the fatigue level and re-derives the dynamic config.
// Caller holds the lock.
func (h *Humanoid) updateFatigue(intensity float64) {
	h.fatigueLevel = math.Min(1.0, h.fatigueLevel+h.baseConfig.FatigueIncreaseRate*intensity)
	h.applyFatigue()
}

// recoverFatigue lowers fatigue in proportion to rest time. Caller holds
// the lock.
func (h *Humanoid) recoverFatigue(rest time.Duration) {
	h.fatigueLevel = math.Max(0.0, h.fatigueLevel-h.baseConfig.FatigueRecoveryRate*rest.Seconds())
	h.applyFatigue()
}

func (h *Humanoid) applyFatigue() {
	factor := 1.0 + h.fatigueLevel
	h.dynamicConfig.TremorStrength = h.baseConfig.TremorStrength * factor
	h.dynamicConfig.DriftAmplitude = h.baseConfig.DriftAmplitude * factor
	h.dynamicConfig.FittsA = h.baseConfig.FittsA * factor
	h.dynamicConfig.TypoRate = math.Min(1.0, h.baseConfig.TypoRate*(1.0+h.fatigueLevel*2.0))
}

// applyTremor perturbs a path point with Gaussian jitter. Caller holds the
// lock.
func (h *Humanoid) applyTremor(point Vector2D) Vector2D {
	strength := h.dynamicConfig.TremorStrength * (0.5 + h.rng.Float64())
	return Vector2D{
		X: point.X + h.rng.NormFloat64()*strength,
		Y: point.Y + h.rng.NormFloat64()*strength,
	}
}

// elementCenter converts geometry to its center point.
func elementCenter(geo *schemas.ElementGeometry) Vector2D {
	return Vector2D{X: geo.X + geo.Width/2.0, Y: geo.Y + geo.Height/2.0}
}
