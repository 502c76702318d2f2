package schemas

// Fingerprint is a forged, internally consistent device identity exposed to
// page scripts. One fingerprint is generated per browser context and held
// for the context's lifetime; mutating it mid-session would itself be a
// detectable signal.
type Fingerprint struct {
	// Platform is the navigator.platform value (e.g. "Win32", "MacIntel").
	Platform  string `json:"platform"`
	UserAgent string `json:"user_agent"`
	// Vendor is the navigator.vendor value.
	Vendor string `json:"vendor"`

	HardwareConcurrency int `json:"hardware_concurrency"`
	// DeviceMemory is the navigator.deviceMemory value in GiB.
	DeviceMemory int `json:"device_memory"`

	Screen Screen `json:"screen"`

	// WebGLVendor and WebGLRenderer are always drawn as a matched pair from
	// the same GPU family.
	WebGLVendor   string `json:"webgl_vendor"`
	WebGLRenderer string `json:"webgl_renderer"`

	Fonts []string `json:"fonts"`

	// CanvasSeed and AudioSeed drive the deterministic low-amplitude noise
	// applied to the respective fingerprint surfaces. They are sampled
	// independently so no two sessions are bit-identical even under the
	// same preset.
	CanvasSeed uint32 `json:"canvas_seed"`
	AudioSeed  uint32 `json:"audio_seed"`

	// Client-hints metadata, kept consistent with UserAgent.
	CHPlatform        string `json:"ch_platform"`
	CHPlatformVersion string `json:"ch_platform_version"`
	Architecture      string `json:"architecture"`
	Bitness           string `json:"bitness"`
	BrowserVersion    string `json:"browser_version"`
}

// Screen is the forged screen geometry. Width and height always match the
// profile's requested viewport.
type Screen struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	ColorDepth int `json:"color_depth"`
}
