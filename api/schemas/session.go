package schemas

import "encoding/json"

// -- Session / Job Schemas --

// SessionMode selects how a session decides what to do next.
type SessionMode string

const (
	// ModeScripted executes a fixed, pre-authored scenario step list.
	ModeScripted SessionMode = "scripted"
	// ModeAutonomous delegates step planning to an external agent service.
	ModeAutonomous SessionMode = "autonomous"
)

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	StatusQueued  SessionStatus = "queued"
	StatusRunning SessionStatus = "running"
	StatusSuccess SessionStatus = "success"
	StatusError   SessionStatus = "error"
	StatusPaused  SessionStatus = "paused"
)

// Job is one unit of work claimed from the coordination service: a session
// plus a pre-start jitter delay. Jobs are consumed exactly once and never
// mutated by the executor.
type Job struct {
	ID           string  `json:"id"`
	Session      Session `json:"session"`
	StartDelayMs int     `json:"start_delay_ms"`
}

// Session is the execution record of one (profile, scenario) pair.
//
// Ownership is advisory: ClaimedBy marks the runner currently executing the
// session, and heartbeat-based disconnect recovery is performed by the
// coordination service, not by this process.
type Session struct {
	ID   string      `json:"id"`
	Mode SessionMode `json:"mode"`

	Profile  Profile        `json:"profile"`
	Scenario []ScenarioStep `json:"scenario,omitempty"`
	// Goal is the natural-language objective for autonomous sessions.
	Goal string `json:"goal,omitempty"`

	Status             SessionStatus     `json:"status"`
	LastSuccessfulStep int               `json:"last_successful_step"`
	IsResumable        bool              `json:"is_resumable"`
	RetryCount         int               `json:"retry_count"`
	Resume             map[int]StepState `json:"resume,omitempty"`
	ClaimedBy          string            `json:"claimed_by,omitempty"`
}

// Profile is a persisted browsing identity: storage state plus the network
// parameters the browser context is launched with. StorageState is the only
// field the executor mutates (read at session start, overwritten at end).
type Profile struct {
	ID           string          `json:"id"`
	Proxy        string          `json:"proxy,omitempty"`
	Locale       string          `json:"locale,omitempty"`
	Timezone     string          `json:"timezone,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	Viewport     Viewport        `json:"viewport"`
	StorageState json.RawMessage `json:"storage_state,omitempty"`
}

// Viewport is the requested page dimensions for a profile.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScenarioStep is one instruction in a scenario. Steps are immutable once a
// session starts.
type ScenarioStep struct {
	Action string `json:"action"`
	// Target is a URL for navigation actions.
	Target string `json:"target,omitempty"`
	// Selector is a CSS selector identifying the element to act on.
	Selector string `json:"selector,omitempty"`
	// Visual is a natural-language description resolved through the vision
	// service when no selector is given.
	Visual     string `json:"visual,omitempty"`
	Text       string `json:"text,omitempty"`
	DurationMs int    `json:"duration,omitempty"`
	X          int    `json:"x,omitempty"`
	Y          int    `json:"y,omitempty"`
	// Retryable overrides the default step retry policy when set.
	Retryable *bool `json:"retryable,omitempty"`
	// MaxRetries overrides the configured per-step retry limit when set.
	MaxRetries *int `json:"maxRetries,omitempty"`
}

// StepState is the per-step execution record accumulated into
// Session.Resume. It decides whether a previously failed step should be
// retried again when a session resumes.
type StepState struct {
	Completed  bool   `json:"completed"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}
