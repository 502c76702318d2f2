package schemas

// -- Coordination-Service Wire Schemas --

// LogLevel mirrors zap levels on the wire.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one structured log event mirrored to POST /logs. Entries are
// batched by the client before shipping.
type LogEntry struct {
	SessionID  string         `json:"session_id"`
	Level      LogLevel       `json:"level"`
	Message    string         `json:"message"`
	StepIndex  *int           `json:"step_index,omitempty"`
	Action     string         `json:"action,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	DurationMs *int64         `json:"duration_ms,omitempty"`
}

// SessionUpdate is the PATCH /sessions/{id} payload. Pointer fields are
// omitted when unset so partial updates do not clobber server state.
type SessionUpdate struct {
	Status             SessionStatus     `json:"status,omitempty"`
	LastSuccessfulStep *int              `json:"last_successful_step,omitempty"`
	IsResumable        *bool             `json:"is_resumable,omitempty"`
	RetryCount         *int              `json:"retry_count,omitempty"`
	Resume             map[int]StepState `json:"resume,omitempty"`
	Error              string            `json:"error,omitempty"`
}

// CaptchaUpdate is the PATCH /sessions/{id}/captcha payload.
type CaptchaUpdate struct {
	State     CaptchaState  `json:"state"`
	Type      ChallengeType `json:"type,omitempty"`
	StepIndex int           `json:"step_index"`
	Method    string        `json:"method,omitempty"`
	ElapsedMs int64         `json:"elapsed_ms,omitempty"`
}

// Heartbeat is the POST /health payload.
type Heartbeat struct {
	RunnerID       string `json:"runner_id"`
	ActiveSessions int    `json:"active_sessions"`
	TotalExecuted  int64  `json:"total_executed"`
	TotalFailures  int64  `json:"total_failures"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

// VisionRequest is the POST /vision/find-element payload.
type VisionRequest struct {
	ScreenshotBase64 string `json:"screenshot_base64"`
	Description      string `json:"description"`
}

// VisionResult is the vision service response: the located element's center
// point in viewport coordinates.
type VisionResult struct {
	Found       bool    `json:"found"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Confidence  float64 `json:"confidence"`
	ElementType string  `json:"element_type,omitempty"`
	Label       string  `json:"label,omitempty"`
}

// AgentRequest is the POST /agent/next-step payload for autonomous
// sessions. History carries the steps already executed this session.
type AgentRequest struct {
	SessionID        string         `json:"session_id"`
	Goal             string         `json:"goal"`
	ScreenshotBase64 string         `json:"screenshot_base64"`
	CurrentURL       string         `json:"current_url,omitempty"`
	StepIndex        int            `json:"step_index"`
	History          []ScenarioStep `json:"history,omitempty"`
}

// AgentDecision is the agent service response: either the next step to
// execute or a signal that the goal is met.
type AgentDecision struct {
	Done   bool         `json:"done"`
	Reason string       `json:"reason,omitempty"`
	Step   ScenarioStep `json:"step"`
}
