package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/actions"
	"github.com/xkilldash9x/marionette/internal/backend"
	"github.com/xkilldash9x/marionette/internal/browser"
	"github.com/xkilldash9x/marionette/internal/captcha"
	"github.com/xkilldash9x/marionette/internal/config"
	"github.com/xkilldash9x/marionette/internal/executor"
	"github.com/xkilldash9x/marionette/internal/observability"
	"github.com/xkilldash9x/marionette/internal/poller"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the coordination service and execute claimed sessions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger := observability.GetLogger()
		defer observability.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := buildRunner(cfg, logger)
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info("runner exited cleanly")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// buildRunner wires the full session pipeline: backend client, browser
// launcher, action registry, captcha chain, executor and poller.
func buildRunner(cfg *config.Config, logger *zap.Logger) *poller.Poller {
	client := backend.New(cfg.Backend, cfg.Runner.ID, logger)

	var locator actions.VisionLocator
	if vision := backend.NewVisionClient(cfg.Vision, logger); vision != nil {
		locator = vision
	}
	registry := actions.NewRegistry(locator, logger)

	detector := captcha.NewDetector(logger)
	chain := captcha.NewChain(logger, captcha.NewWaitResolver(detector, 45*time.Second))

	launcher := browser.NewLauncher(cfg.Browser, cfg.Humanoid, logger)
	launch := executor.LauncherFunc(func(ctx context.Context, profile schemas.Profile) (executor.Page, error) {
		return launcher.NewSession(ctx, profile)
	})

	exec := executor.New(cfg.Executor, cfg.Retry, launch, registry, chain, client, client, logger)

	mirrors := func(sessionID string) poller.Mirror {
		return backend.NewLogBuffer(client, sessionID, cfg.Backend.LogBatchSize, cfg.Backend.LogFlushInterval, logger)
	}
	return poller.New(cfg.Runner, client, sessionRunner{exec}, mirrors, logger)
}

// sessionRunner adapts the executor to the poller's narrower mirror type.
type sessionRunner struct {
	exec *executor.Executor
}

func (r sessionRunner) Execute(ctx context.Context, job *schemas.Job, mirror poller.Mirror) (bool, error) {
	var m executor.Mirror
	if mirror != nil {
		m = mirror
	}
	return r.exec.Execute(ctx, job, m)
}
