package humanoid

import (
	"math"
	"math/rand"
)

// Config holds the simulation parameters. The *Mean/*StdDev pairs define the
// population; FinalizeSessionPersona samples one persona per session from
// them and clamps the draws into plausible bounds so an extreme sample can
// never produce robotic or absurd motion.
type Config struct {
	Rng *rand.Rand

	// Fitts's law coefficients (movement time = A + B * log2(1 + D/W), ms).
	FittsAMean, FittsAStdDev float64
	FittsBMean, FittsBStdDev float64

	// Cursor noise.
	TremorStrengthMean, TremorStrengthStdDev float64
	DriftAmplitudeMean, DriftAmplitudeStdDev float64

	// Typing.
	TypoRateMean, TypoRateStdDev   float64
	KeyHoldMeanMs, KeyHoldStdDevMs float64
	KeyPauseMeanMs                 float64
	KeyPauseStdDevMs               float64
	KeyPauseMinMs                  float64
	KeyPauseNgramFactor            float64
	KeyPausePunctFactor            float64
	TypoCorrectionProbability      float64

	// Clicking.
	ClickHoldMinMs int
	ClickHoldMaxMs int
	// ClickRadiusPx bounds the random offset applied to coordinate clicks
	// so the same logical point never lands on the same pixel twice.
	ClickRadiusPx float64
	// Hesitation is a short stall between arriving on the target and
	// pressing the button, occurring with the given probability.
	ClickHesitationProbability float64
	ClickHesitationMaxMs       int

	// Scrolling.
	ScrollStepMin       float64
	ScrollStepMax       float64
	ScrollPauseMinMs    int
	ScrollPauseMaxMs    int
	ScrollMaxIterations int

	// Fatigue.
	FatigueIncreaseRate float64
	FatigueRecoveryRate float64

	// Sampled per-session persona values.
	FittsA, FittsB             float64
	TremorStrength             float64
	DriftAmplitude             float64
	TypoRate                   float64
	KeyHoldMean, KeyHoldStdDev float64
}

// DefaultConfig returns parameters representing an average user.
func DefaultConfig() Config {
	return Config{
		FittsAMean: 100.0, FittsAStdDev: 15.0,
		FittsBMean: 120.0, FittsBStdDev: 20.0,
		TremorStrengthMean: 0.5, TremorStrengthStdDev: 0.1,
		DriftAmplitudeMean: 2.5, DriftAmplitudeStdDev: 0.5,
		TypoRateMean: 0.03, TypoRateStdDev: 0.01,
		KeyHoldMeanMs: 55.0, KeyHoldStdDevMs: 15.0,
		KeyPauseMeanMs:             70.0,
		KeyPauseStdDevMs:           28.0,
		KeyPauseMinMs:              35.0,
		KeyPauseNgramFactor:        0.65,
		KeyPausePunctFactor:        1.8,
		TypoCorrectionProbability:  0.85,
		ClickHoldMinMs:             50,
		ClickHoldMaxMs:             120,
		ClickRadiusPx:              4.0,
		ClickHesitationProbability: 0.35,
		ClickHesitationMaxMs:       350,
		ScrollStepMin:              180,
		ScrollStepMax:              420,
		ScrollPauseMinMs:           30,
		ScrollPauseMaxMs:           90,
		ScrollMaxIterations:        15,
		FatigueIncreaseRate:        0.005,
		FatigueRecoveryRate:        0.01,
	}
}

// FinalizeSessionPersona samples the per-session instance parameters and
// bounds them. Two sessions with the same base config still behave like two
// different people.
func (c *Config) FinalizeSessionPersona(rng *rand.Rand) {
	c.Rng = rng
	c.FittsA = sampleGaussian(rng, c.FittsAMean, c.FittsAStdDev)
	c.FittsB = sampleGaussian(rng, c.FittsBMean, c.FittsBStdDev)
	c.TremorStrength = sampleGaussian(rng, c.TremorStrengthMean, c.TremorStrengthStdDev)
	c.DriftAmplitude = sampleGaussian(rng, c.DriftAmplitudeMean, c.DriftAmplitudeStdDev)
	c.TypoRate = sampleGaussian(rng, c.TypoRateMean, c.TypoRateStdDev)
	c.KeyHoldMean = sampleGaussian(rng, c.KeyHoldMeanMs, c.KeyHoldStdDevMs)
	c.KeyHoldStdDev = c.KeyHoldStdDevMs

	c.FittsA = math.Max(40.0, c.FittsA)
	c.FittsB = math.Max(60.0, c.FittsB)
	c.TremorStrength = math.Max(0.1, c.TremorStrength)
	c.DriftAmplitude = math.Max(0.5, c.DriftAmplitude)
	c.TypoRate = math.Max(0.0, math.Min(0.15, c.TypoRate))
	c.KeyHoldMean = math.Max(20.0, c.KeyHoldMean)

	if c.ClickHoldMaxMs <= c.ClickHoldMinMs {
		c.ClickHoldMaxMs = c.ClickHoldMinMs + 1
	}
	c.ClickHesitationProbability = math.Max(0.0, math.Min(1.0, c.ClickHesitationProbability))
	if c.ClickHesitationMaxMs <= 0 {
		c.ClickHesitationMaxMs = 350
	}
	if c.KeyPausePunctFactor < 1.0 {
		c.KeyPausePunctFactor = 1.0
	}
	if c.ScrollStepMax <= c.ScrollStepMin {
		c.ScrollStepMax = c.ScrollStepMin + 1
	}
	if c.ScrollMaxIterations <= 0 {
		c.ScrollMaxIterations = 15
	}
}

func sampleGaussian(rng *rand.Rand, mean, stdDev float64) float64 {
	if rng == nil {
		return mean
	}
	return mean + rng.NormFloat64()*stdDev
}
