package schemas

import "time"

// -- Captcha Schemas --

// ChallengeType is the closed enumeration of recognized challenge families.
type ChallengeType string

const (
	ChallengeRecaptcha  ChallengeType = "recaptcha"
	ChallengeHCaptcha   ChallengeType = "hcaptcha"
	ChallengeCloudflare ChallengeType = "cloudflare"
	ChallengeGeneric    ChallengeType = "generic"
)

// CaptchaDetection is the transient result of inspecting a page for
// challenge signals. It is never persisted beyond the current step.
type CaptchaDetection struct {
	Detected   bool          `json:"detected"`
	Type       ChallengeType `json:"type,omitempty"`
	Signal     string        `json:"signal,omitempty"`
	Confidence float64       `json:"confidence"`
}

// CaptchaState tracks the resolution lifecycle reported to the backend.
type CaptchaState string

const (
	CaptchaDetected CaptchaState = "detected"
	CaptchaSolving  CaptchaState = "solving"
	CaptchaSolved   CaptchaState = "solved"
	CaptchaFailed   CaptchaState = "failed"
)

// CaptchaResolution is reported upward after a resolver runs, whether or
// not it succeeded, so the executor can record the state transition.
type CaptchaResolution struct {
	Success bool          `json:"success"`
	Elapsed time.Duration `json:"elapsed"`
	Method  string        `json:"method"`
	Err     string        `json:"error,omitempty"`
}
