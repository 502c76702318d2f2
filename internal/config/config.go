package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config holds the entire runner configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Runner   RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Vision   VisionConfig   `mapstructure:"vision" yaml:"vision"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Humanoid HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// RunnerConfig identifies this process and bounds its job intake.
type RunnerConfig struct {
	ID                string        `mapstructure:"id" yaml:"id"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxConcurrency    int           `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	// ShutdownGrace bounds how long shutdown waits for in-flight sessions
	// before abandoning them.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
}

// BackendConfig points at the coordination service.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// MinRequestInterval serializes backend calls with a minimum spacing.
	MinRequestInterval time.Duration `mapstructure:"min_request_interval" yaml:"min_request_interval"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	LogBatchSize       int           `mapstructure:"log_batch_size" yaml:"log_batch_size"`
	LogFlushInterval   time.Duration `mapstructure:"log_flush_interval" yaml:"log_flush_interval"`
}

// VisionConfig points at the optional element-location service. An empty
// base URL disables visual targeting.
type VisionConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MinConfidence  float64       `mapstructure:"min_confidence" yaml:"min_confidence"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	NoSandbox         bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	Args              []string      `mapstructure:"args" yaml:"args"`
}

// RetryConfig tunes both step-level and session-level retry behavior.
type RetryConfig struct {
	StepMax           int           `mapstructure:"step_max" yaml:"step_max"`
	SessionMax        int           `mapstructure:"session_max" yaml:"session_max"`
	BackoffBase       time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
	BackoffCap        time.Duration `mapstructure:"backoff_cap" yaml:"backoff_cap"`
	// UnmatchedCategory is the classification for errors no rule matches.
	// "recoverable" (the default) retries optimistically; "fatal" fails
	// fast. Kept tunable because optimistic retry can stretch truly fatal
	// but unpatterned errors into long retry storms.
	UnmatchedCategory string `mapstructure:"unmatched_category" yaml:"unmatched_category"`
}

// ExecutorConfig bounds session execution.
type ExecutorConfig struct {
	StepTimeout        time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	MaxAutonomousSteps int           `mapstructure:"max_autonomous_steps" yaml:"max_autonomous_steps"`
}

// HumanoidConfig carries the coarse behavioral knobs exposed in the config
// file. The fine-grained envelopes live in the humanoid package defaults.
type HumanoidConfig struct {
	// TypingSpeed scales inter-key delays; 1.0 is an average typist,
	// higher is faster.
	TypingSpeed float64 `mapstructure:"typing_speed" yaml:"typing_speed"`
	// ClickRadius is the disc radius in pixels around the logical click
	// target inside which the actual click point is sampled.
	ClickRadius float64 `mapstructure:"click_radius" yaml:"click_radius"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "marionette")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Runner --
	v.SetDefault("runner.id", "")
	v.SetDefault("runner.poll_interval", "5s")
	v.SetDefault("runner.max_concurrency", 3)
	v.SetDefault("runner.heartbeat_interval", "30s")
	v.SetDefault("runner.shutdown_grace", "60s")

	// -- Backend --
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.min_request_interval", "100ms")
	v.SetDefault("backend.request_timeout", "15s")
	v.SetDefault("backend.log_batch_size", 20)
	v.SetDefault("backend.log_flush_interval", "3s")

	// -- Vision --
	v.SetDefault("vision.base_url", "")
	v.SetDefault("vision.request_timeout", "30s")
	v.SetDefault("vision.min_confidence", 0.5)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.element_timeout", "15s")

	// -- Retry --
	v.SetDefault("retry.step_max", 3)
	v.SetDefault("retry.session_max", 2)
	v.SetDefault("retry.backoff_base", "1s")
	v.SetDefault("retry.backoff_multiplier", 2.0)
	v.SetDefault("retry.backoff_cap", "30s")
	v.SetDefault("retry.unmatched_category", "recoverable")

	// -- Executor --
	v.SetDefault("executor.step_timeout", "2m")
	v.SetDefault("executor.max_autonomous_steps", 40)

	// -- Humanoid --
	v.SetDefault("humanoid.typing_speed", 1.0)
	v.SetDefault("humanoid.click_radius", 4.0)
}

// NewConfigFromViper creates a Config from a viper instance, filling in the
// runner identity when none is configured.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Runner.ID == "" {
		cfg.Runner.ID = "runner-" + uuid.NewString()[:8]
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a Config populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("failed to build default config: %v", err))
	}
	return cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Runner.MaxConcurrency <= 0 {
		return fmt.Errorf("runner.max_concurrency must be a positive integer")
	}
	if c.Runner.PollInterval <= 0 {
		return fmt.Errorf("runner.poll_interval must be a positive duration")
	}
	if c.Retry.StepMax < 0 || c.Retry.SessionMax < 0 {
		return fmt.Errorf("retry limits must not be negative")
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		return fmt.Errorf("retry.backoff_multiplier must be >= 1.0")
	}
	switch c.Retry.UnmatchedCategory {
	case "transient", "recoverable", "fatal":
	default:
		return fmt.Errorf("retry.unmatched_category must be one of transient, recoverable, fatal")
	}
	if c.Humanoid.TypingSpeed <= 0 {
		return fmt.Errorf("humanoid.typing_speed must be positive")
	}
	if c.Humanoid.ClickRadius <= 0 {
		return fmt.Errorf("humanoid.click_radius must be positive")
	}
	return nil
}
