package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// jitterFraction bounds the random spread applied around the deterministic
// delay: every computed delay lands within ±20% of the base value.
const jitterFraction = 0.20

// Backoff computes exponentially growing, capped, jittered retry delays.
// It owns its RNG so concurrent sessions sharing one policy do not race.
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Cap        time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff creates a Backoff policy. A nil-safe default RNG is seeded from
// the clock; tests can pass a fixed seed through NewBackoffWithRng.
func NewBackoff(base time.Duration, multiplier float64, cap time.Duration) *Backoff {
	return NewBackoffWithRng(base, multiplier, cap, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewBackoffWithRng creates a Backoff with an injected RNG.
func NewBackoffWithRng(base time.Duration, multiplier float64, cap time.Duration, rng *rand.Rand) *Backoff {
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	return &Backoff{Base: base, Multiplier: multiplier, Cap: cap, rng: rng}
}

// base returns the deterministic delay for an attempt:
// min(Base * Multiplier^attempt, Cap).
func (b *Backoff) base(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.Base) * math.Pow(b.Multiplier, float64(attempt))
	if capped := float64(b.Cap); b.Cap > 0 && d > capped {
		d = capped
	}
	return time.Duration(d)
}

// Delay returns the jittered delay for the given zero-based attempt count.
// The result always lies within ±20% of the deterministic base delay and is
// monotonically non-decreasing in expectation up to the cap.
func (b *Backoff) Delay(attempt int) time.Duration {
	base := b.base(attempt)

	b.mu.Lock()
	jitter := (b.rng.Float64()*2 - 1) * jitterFraction
	b.mu.Unlock()

	return time.Duration(float64(base) * (1 + jitter))
}
