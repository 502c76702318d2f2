// Package executor runs one claimed job from queued to a terminal status.
// It owns the session state machine: browser launch, step dispatch, bounded
// retries, captcha handling, self-healing relaunches and resume metadata.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/actions"
	"github.com/xkilldash9x/marionette/internal/captcha"
	"github.com/xkilldash9x/marionette/internal/config"
	"github.com/xkilldash9x/marionette/internal/retry"
)

// ErrNoPlanner marks an autonomous job reaching a runner with no agent
// service wired. It is terminal: retrying cannot produce a planner.
var ErrNoPlanner = errors.New("no planner configured for autonomous mode")

// Page is the browser surface one session attempt runs against. The browser
// package's Session satisfies it; tests use fakes.
type Page interface {
	actions.Page
	captcha.Inspector
	ExportStorageState(ctx context.Context) ([]byte, error)
	Close()
}

// Launcher produces a fresh browser with a fresh fingerprint. Each call is
// one identity; self-healing works by calling it again.
type Launcher interface {
	NewSession(ctx context.Context, profile schemas.Profile) (Page, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, profile schemas.Profile) (Page, error)

func (f LauncherFunc) NewSession(ctx context.Context, profile schemas.Profile) (Page, error) {
	return f(ctx, profile)
}

// Reporter is the slice of the coordination client the executor writes
// through. Every call degrades gracefully; a dead backend never fails a
// session.
type Reporter interface {
	UpdateSession(ctx context.Context, sessionID string, update schemas.SessionUpdate) error
	ReportCaptcha(ctx context.Context, sessionID string, update schemas.CaptchaUpdate) error
	ReportURL(ctx context.Context, sessionID, url string) error
	SaveStorageState(ctx context.Context, profileID string, state []byte) error
}

// Mirror receives structured log entries destined for the backend.
type Mirror interface {
	Add(entry schemas.LogEntry)
}

// Planner decides the next step for autonomous sessions. The backend client
// satisfies it over the agent endpoint.
type Planner interface {
	NextStep(ctx context.Context, sessionID, goal, currentURL string, screenshot []byte, history []schemas.ScenarioStep) (schemas.AgentDecision, error)
}

// Executor drives sessions. Safe for concurrent use; all per-session state
// lives on the stack of Execute.
type Executor struct {
	cfg        config.ExecutorConfig
	retryCfg   config.RetryConfig
	launcher   Launcher
	registry   *actions.Registry
	detector   *captcha.Detector
	resolvers  *captcha.Chain
	classifier *retry.Classifier
	backoff    *retry.Backoff
	reporter   Reporter
	planner    Planner
	logger     *zap.Logger
}

// New wires an Executor. planner may be nil when no agent service is
// deployed; autonomous jobs then fail terminally.
func New(
	cfg config.ExecutorConfig,
	retryCfg config.RetryConfig,
	launcher Launcher,
	registry *actions.Registry,
	resolvers *captcha.Chain,
	reporter Reporter,
	planner Planner,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		cfg:        cfg,
		retryCfg:   retryCfg,
		launcher:   launcher,
		registry:   registry,
		detector:   captcha.NewDetector(logger),
		resolvers:  resolvers,
		classifier: retry.NewClassifier(retry.Category(retryCfg.UnmatchedCategory)),
		backoff:    retry.NewBackoff(retryCfg.BackoffBase, retryCfg.BackoffMultiplier, retryCfg.BackoffCap),
		reporter:   reporter,
		planner:    planner,
		logger:     logger,
	}
}

// Execute runs a job to a terminal status and reports whether it succeeded.
// The returned error describes the terminal failure; a successful run
// returns (true, nil).
func (e *Executor) Execute(ctx context.Context, job *schemas.Job, mirror Mirror) (bool, error) {
	sess := job.Session
	if sess.Resume == nil {
		sess.Resume = make(map[int]schemas.StepState)
	}
	log := e.logger.With(
		zap.String("session_id", sess.ID),
		zap.String("mode", string(sess.Mode)),
	)

	if job.StartDelayMs > 0 {
		if err := sleepCtx(ctx, time.Duration(job.StartDelayMs)*time.Millisecond); err != nil {
			return false, err
		}
	}

	e.patch(ctx, sess.ID, schemas.SessionUpdate{Status: schemas.StatusRunning})
	log.Info("session started", zap.Int("resume_from", sess.LastSuccessfulStep))

	for {
		err := e.runAttempt(ctx, &sess, mirror, log)
		if err == nil {
			e.patch(ctx, sess.ID, schemas.SessionUpdate{
				Status:             schemas.StatusSuccess,
				LastSuccessfulStep: &sess.LastSuccessfulStep,
				Resume:             sess.Resume,
			})
			e.mirror(mirror, sess.ID, schemas.LogInfo, "session completed", nil, "", nil)
			log.Info("session completed")
			return true, nil
		}

		if ctx.Err() != nil {
			// Shutdown, not failure. Park the session for another runner.
			resumable := sess.Mode == schemas.ModeScripted
			e.patchDetached(sess.ID, schemas.SessionUpdate{
				Status:             schemas.StatusPaused,
				LastSuccessfulStep: &sess.LastSuccessfulStep,
				IsResumable:        &resumable,
				RetryCount:         &sess.RetryCount,
				Resume:             sess.Resume,
			})
			log.Warn("session interrupted", zap.Error(err))
			return false, err
		}

		category := e.classifier.Classify(err)
		if errors.Is(err, ErrNoPlanner) {
			category = retry.Fatal
		}
		sess.RetryCount++

		if category == retry.Fatal || sess.RetryCount > e.retryCfg.SessionMax {
			resumable := category != retry.Fatal && sess.Mode == schemas.ModeScripted
			e.patch(ctx, sess.ID, schemas.SessionUpdate{
				Status:             schemas.StatusError,
				LastSuccessfulStep: &sess.LastSuccessfulStep,
				IsResumable:        &resumable,
				RetryCount:         &sess.RetryCount,
				Resume:             sess.Resume,
				Error:              err.Error(),
			})
			e.mirror(mirror, sess.ID, schemas.LogError, "session failed: "+err.Error(), nil, "", nil)
			log.Error("session failed",
				zap.Error(err),
				zap.String("category", string(category)),
				zap.Bool("resumable", resumable),
			)
			return false, err
		}

		// Self-heal: the next attempt launches a fresh browser with a fresh
		// fingerprint and rewinds to the last checkpoint.
		delay := e.backoff.Delay(sess.RetryCount - 1)
		log.Warn("session attempt failed, relaunching",
			zap.Error(err),
			zap.String("category", string(category)),
			zap.Int("retry", sess.RetryCount),
			zap.Duration("delay", delay),
		)
		e.patch(ctx, sess.ID, schemas.SessionUpdate{RetryCount: &sess.RetryCount})
		if err := sleepCtx(ctx, delay); err != nil {
			return false, err
		}
	}
}

// runAttempt performs one full browser lifecycle for the session.
func (e *Executor) runAttempt(ctx context.Context, sess *schemas.Session, mirror Mirror, log *zap.Logger) error {
	page, err := e.launcher.NewSession(ctx, sess.Profile)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer page.Close()

	switch sess.Mode {
	case schemas.ModeAutonomous:
		err = e.runAutonomous(ctx, sess, page, mirror, log)
	default:
		err = e.runScripted(ctx, sess, page, mirror, log)
	}
	if err != nil {
		return err
	}

	e.persistStorage(ctx, sess, page, log)
	return nil
}

// persistStorage exports cookies back to the profile. Best effort.
func (e *Executor) persistStorage(ctx context.Context, sess *schemas.Session, page Page, log *zap.Logger) {
	state, err := page.ExportStorageState(ctx)
	if err != nil {
		log.Warn("storage state export failed", zap.Error(err))
		return
	}
	if err := e.reporter.SaveStorageState(ctx, sess.Profile.ID, state); err != nil {
		log.Warn("storage state save failed", zap.Error(err))
	}
}

// checkCaptcha probes the page and runs the resolver chain when a challenge
// is present. Transitions are mirrored to the backend as they happen.
func (e *Executor) checkCaptcha(ctx context.Context, sess *schemas.Session, page Page, stepIndex int) error {
	detection, err := e.detector.Detect(ctx, page)
	if err != nil {
		return fmt.Errorf("captcha probe: %w", err)
	}
	if !detection.Detected {
		return nil
	}

	e.report(ctx, sess.ID, schemas.CaptchaUpdate{
		State:     schemas.CaptchaDetected,
		Type:      detection.Type,
		StepIndex: stepIndex,
	})
	e.report(ctx, sess.ID, schemas.CaptchaUpdate{
		State:     schemas.CaptchaSolving,
		Type:      detection.Type,
		StepIndex: stepIndex,
	})

	resolution, err := e.resolvers.Resolve(ctx, page, detection)
	update := schemas.CaptchaUpdate{
		Type:      detection.Type,
		StepIndex: stepIndex,
		Method:    resolution.Method,
		ElapsedMs: resolution.Elapsed.Milliseconds(),
	}
	if err != nil {
		update.State = schemas.CaptchaFailed
		e.report(ctx, sess.ID, update)
		return fmt.Errorf("captcha %s at step %d: %w", detection.Type, stepIndex, err)
	}
	update.State = schemas.CaptchaSolved
	e.report(ctx, sess.ID, update)
	return nil
}

// runStep executes one step with its bounded retry loop. It returns the
// attempt count and wall time alongside the terminal error, if any.
func (e *Executor) runStep(ctx context.Context, page Page, step schemas.ScenarioStep) (int, time.Duration, error) {
	maxRetries := e.retryCfg.StepMax
	if step.MaxRetries != nil {
		maxRetries = *step.MaxRetries
	}
	retryable := true
	if step.Retryable != nil {
		retryable = *step.Retryable
	}
	timeout := e.cfg.StepTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	start := time.Now()
	for attempt := 0; ; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		err := e.registry.Execute(stepCtx, page, step)
		cancel()
		if err == nil {
			return attempt + 1, time.Since(start), nil
		}
		if ctx.Err() != nil {
			return attempt + 1, time.Since(start), err
		}
		if !retryable || !e.classifier.ShouldRetry(err, attempt, maxRetries) {
			return attempt + 1, time.Since(start), err
		}

		delay := e.backoff.Delay(attempt)
		e.logger.Debug("step attempt failed",
			zap.String("action", step.Action),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if serr := sleepCtx(ctx, delay); serr != nil {
			return attempt + 1, time.Since(start), err
		}
	}
}

// patch sends a partial session update, logging failures instead of
// propagating them.
func (e *Executor) patch(ctx context.Context, sessionID string, update schemas.SessionUpdate) {
	if err := e.reporter.UpdateSession(ctx, sessionID, update); err != nil {
		e.logger.Warn("session update failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// patchDetached is patch with a short independent deadline, for use when
// the run context is already cancelled.
func (e *Executor) patchDetached(sessionID string, update schemas.SessionUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.patch(ctx, sessionID, update)
}

func (e *Executor) report(ctx context.Context, sessionID string, update schemas.CaptchaUpdate) {
	if err := e.reporter.ReportCaptcha(ctx, sessionID, update); err != nil {
		e.logger.Warn("captcha report failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// mirror ships a log entry to the backend buffer when one is attached.
func (e *Executor) mirror(m Mirror, sessionID string, level schemas.LogLevel, msg string, stepIndex *int, action string, durationMs *int64) {
	if m == nil {
		return
	}
	m.Add(schemas.LogEntry{
		SessionID:  sessionID,
		Level:      level,
		Message:    msg,
		StepIndex:  stepIndex,
		Action:     action,
		DurationMs: durationMs,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
