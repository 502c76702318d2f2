// Package captcha detects anti-bot challenges on the current page and runs a
// resolver chain against them. Detection is passive DOM and URL inspection;
// no challenge is ever submitted to a third-party solving service.
package captcha

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// Inspector is the minimal page surface detection needs. The browser layer
// implements it over CDP; tests implement it with fixtures.
type Inspector interface {
	HasSelector(ctx context.Context, selector string) (bool, error)
	CurrentURL(ctx context.Context) (string, error)
}

// signal is one detectable marker of a challenge.
type signal struct {
	challengeType schemas.ChallengeType
	selector      string
	urlFragment   string
	confidence    float64
}

// signals are checked in order; the first hit wins. Selector hits score high
// confidence because the widget is actually mounted; URL fragments score
// lower because redirects can carry stale paths.
var signals = []signal{
	{schemas.ChallengeRecaptcha, `iframe[src*="recaptcha"]`, "", 0.9},
	{schemas.ChallengeRecaptcha, `.g-recaptcha`, "", 0.9},
	{schemas.ChallengeRecaptcha, `#recaptcha`, "", 0.9},
	{schemas.ChallengeHCaptcha, `iframe[src*="hcaptcha"]`, "", 0.9},
	{schemas.ChallengeHCaptcha, `.h-captcha`, "", 0.9},
	{schemas.ChallengeCloudflare, `#challenge-form`, "", 0.9},
	{schemas.ChallengeCloudflare, `#cf-challenge-running`, "", 0.9},
	{schemas.ChallengeCloudflare, `iframe[src*="challenges.cloudflare.com"]`, "", 0.9},
	{schemas.ChallengeCloudflare, "", "/cdn-cgi/challenge-platform", 0.5},
	{schemas.ChallengeGeneric, `[class*="captcha"]`, "", 0.5},
	{schemas.ChallengeGeneric, `[id*="captcha"]`, "", 0.5},
	{schemas.ChallengeGeneric, "", "captcha", 0.5},
}

// Detector scans a page for challenge markers.
type Detector struct {
	logger *zap.Logger
}

func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{logger: logger}
}

// Detect checks every signal and reports the first hit. A clean page returns
// Detected=false with a nil error.
func (d *Detector) Detect(ctx context.Context, page Inspector) (schemas.CaptchaDetection, error) {
	url, err := page.CurrentURL(ctx)
	if err != nil {
		return schemas.CaptchaDetection{}, fmt.Errorf("read page url: %w", err)
	}

	for _, s := range signals {
		if s.selector != "" {
			found, err := page.HasSelector(ctx, s.selector)
			if err != nil {
				return schemas.CaptchaDetection{}, fmt.Errorf("probe selector %q: %w", s.selector, err)
			}
			if !found {
				continue
			}
			d.logger.Info("challenge detected",
				zap.String("type", string(s.challengeType)),
				zap.String("signal", s.selector),
			)
			return schemas.CaptchaDetection{
				Detected:   true,
				Type:       s.challengeType,
				Signal:     s.selector,
				Confidence: s.confidence,
			}, nil
		}

		if s.urlFragment != "" && strings.Contains(strings.ToLower(url), s.urlFragment) {
			d.logger.Info("challenge detected",
				zap.String("type", string(s.challengeType)),
				zap.String("signal", s.urlFragment),
			)
			return schemas.CaptchaDetection{
				Detected:   true,
				Type:       s.challengeType,
				Signal:     s.urlFragment,
				Confidence: s.confidence,
			}, nil
		}
	}

	return schemas.CaptchaDetection{}, nil
}
