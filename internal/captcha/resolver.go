package captcha

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// ErrUnresolved marks a challenge that no resolver in the chain could clear.
// The classifier treats it as recoverable, so the session can retry with a
// fresh identity rather than aborting.
var ErrUnresolved = errors.New("captcha: challenge unresolved")

// Resolver attempts to clear one detected challenge.
type Resolver interface {
	// Name identifies the resolver in logs and backend reports.
	Name() string
	// CanHandle reports whether this resolver knows the challenge family.
	CanHandle(t schemas.ChallengeType) bool
	// Resolve blocks until the challenge is cleared, ctx expires, or the
	// resolver gives up. A nil error means the page is clean again.
	Resolve(ctx context.Context, page Inspector, detection schemas.CaptchaDetection) error
}

// Chain runs resolvers in order until one succeeds. Construction is fixed at
// startup; Prepend exists so a deployment can put a specialized resolver in
// front of the default wait strategy.
type Chain struct {
	resolvers []Resolver
	logger    *zap.Logger
}

// NewChain builds a chain ending in the given resolvers.
func NewChain(logger *zap.Logger, resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers, logger: logger}
}

// Prepend returns a new Chain with r tried first.
func (c *Chain) Prepend(r Resolver) *Chain {
	return &Chain{
		resolvers: append([]Resolver{r}, c.resolvers...),
		logger:    c.logger,
	}
}

// Resolve runs the chain and reports the outcome. The returned resolution is
// always populated, also on failure, so the caller can publish the state
// transition either way.
func (c *Chain) Resolve(ctx context.Context, page Inspector, detection schemas.CaptchaDetection) (schemas.CaptchaResolution, error) {
	start := time.Now()

	for _, r := range c.resolvers {
		if !r.CanHandle(detection.Type) {
			continue
		}
		c.logger.Info("attempting challenge resolution",
			zap.String("resolver", r.Name()),
			zap.String("type", string(detection.Type)),
		)

		err := r.Resolve(ctx, page, detection)
		if err == nil {
			return schemas.CaptchaResolution{
				Success: true,
				Elapsed: time.Since(start),
				Method:  r.Name(),
			}, nil
		}
		if ctx.Err() != nil {
			return schemas.CaptchaResolution{
				Success: false,
				Elapsed: time.Since(start),
				Method:  r.Name(),
				Err:     err.Error(),
			}, err
		}
		c.logger.Warn("resolver failed",
			zap.String("resolver", r.Name()),
			zap.Error(err),
		)
	}

	res := schemas.CaptchaResolution{
		Success: false,
		Elapsed: time.Since(start),
		Err:     ErrUnresolved.Error(),
	}
	return res, fmt.Errorf("%w: type %s", ErrUnresolved, detection.Type)
}

// WaitResolver clears challenges that resolve themselves, like Cloudflare's
// JS interstitial, by polling until the detection signal disappears.
type WaitResolver struct {
	detector *Detector
	timeout  time.Duration
	interval time.Duration
}

// NewWaitResolver builds a WaitResolver with the given patience.
func NewWaitResolver(detector *Detector, timeout time.Duration) *WaitResolver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	interval := 2 * time.Second
	if interval > timeout/4 {
		interval = timeout / 4
	}
	return &WaitResolver{
		detector: detector,
		timeout:  timeout,
		interval: interval,
	}
}

func (w *WaitResolver) Name() string { return "wait" }

// CanHandle is always true: waiting out a challenge is family-agnostic.
func (w *WaitResolver) CanHandle(schemas.ChallengeType) bool { return true }

// Resolve polls the page until the challenge clears or the deadline passes.
func (w *WaitResolver) Resolve(ctx context.Context, page Inspector, detection schemas.CaptchaDetection) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		det, err := w.detector.Detect(ctx, page)
		if err == nil && !det.Detected {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: still present after %s", ErrUnresolved, w.timeout)
		case <-ticker.C:
		}
	}
}
