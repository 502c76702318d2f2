// Package browser owns the chromedp lifecycle: allocator flags, per-session
// contexts armed with a fingerprint, and the adapter that turns humanoid
// input into CDP events. Each session gets its own browser process so
// identities can never bleed across sessions.
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
	"github.com/xkilldash9x/marionette/internal/fingerprint"
	"github.com/xkilldash9x/marionette/internal/humanoid"
	"github.com/xkilldash9x/marionette/internal/stealth"
)

// Launcher creates browser sessions.
type Launcher struct {
	cfg       config.BrowserConfig
	humanoid  config.HumanoidConfig
	fingergen *fingerprint.Generator
	logger    *zap.Logger
}

// NewLauncher builds a Launcher with a shared fingerprint generator.
func NewLauncher(cfg config.BrowserConfig, humanoidCfg config.HumanoidConfig, logger *zap.Logger) *Launcher {
	return &Launcher{
		cfg:       cfg,
		humanoid:  humanoidCfg,
		fingergen: fingerprint.New(),
		logger:    logger,
	}
}

// allocatorOptions returns exec-allocator flags tuned to avoid the obvious
// headless tells, plus profile proxy and window size.
func (l *Launcher) allocatorOptions(profile schemas.Profile) []chromedp.ExecAllocatorOption {
	headless := ""
	if l.cfg.Headless {
		// New headless mode shares the rendering path with headful Chrome.
		headless = "new"
	}

	width, height := profile.Viewport.Width, profile.Viewport.Height
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(width, height),

		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-sandbox", l.cfg.NoSandbox),
	}

	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	if profile.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(profile.Proxy))
	}
	for _, arg := range l.cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

// NewSession launches a fresh browser, generates a fingerprint for the
// profile's viewport and arms the stealth overrides before any navigation.
func (l *Launcher) NewSession(ctx context.Context, profile schemas.Profile) (*Session, error) {
	viewport := profile.Viewport
	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = schemas.Viewport{Width: 1920, Height: 1080}
	}
	fp := l.fingergen.Generate(viewport)
	if profile.UserAgent != "" {
		// A profile may pin its UA across sessions for identity continuity.
		fp.UserAgent = profile.UserAgent
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions(profile)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		fingerprint: fp,
		profile:     profile,
		navTimeout:  l.cfg.NavigationTimeout,
		elemTimeout: l.cfg.ElementTimeout,
		logger:      l.logger.With(zap.String("profile_id", profile.ID)),
	}

	// Starts the browser process and applies overrides on the fresh target.
	if err := chromedp.Run(browserCtx, stealth.Apply(fp, profile.Locale, profile.Timezone, l.logger)); err != nil {
		s.Close()
		return nil, fmt.Errorf("arm browser context: %w", err)
	}

	if len(profile.StorageState) > 0 {
		if err := s.restoreStorageState(browserCtx, profile.StorageState); err != nil {
			s.Close()
			return nil, fmt.Errorf("restore storage state: %w", err)
		}
	}

	hcfg := humanoid.DefaultConfig()
	if l.humanoid.TypingSpeed > 0 {
		hcfg.KeyPauseMeanMs /= l.humanoid.TypingSpeed
		hcfg.KeyPauseMinMs /= l.humanoid.TypingSpeed
	}
	if l.humanoid.ClickRadius > 0 {
		hcfg.ClickRadiusPx = l.humanoid.ClickRadius
	}
	s.human = humanoid.New(hcfg, l.logger, &cdpExecutor{session: s})
	s.human.SetPosition(humanoid.Vector2D{
		X: float64(viewport.Width) * (0.3 + 0.4*rand.Float64()),
		Y: float64(viewport.Height) * (0.3 + 0.4*rand.Float64()),
	})

	l.logger.Info("browser session launched",
		zap.String("platform", fp.Platform),
		zap.String("renderer", fp.WebGLRenderer),
		zap.Bool("proxied", profile.Proxy != ""),
	)
	return s, nil
}

// defaultTimeout guards CDP calls that would otherwise hang on a dead
// target.
func defaultTimeout(d time.Duration, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
