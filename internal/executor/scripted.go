package executor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/actions"
	"github.com/xkilldash9x/marionette/internal/retry"
)

// runScripted walks the scenario from the resume checkpoint. Steps before
// LastSuccessfulStep are never re-run; a step whose resume record carries a
// fatal error is never re-attempted.
func (e *Executor) runScripted(ctx context.Context, sess *schemas.Session, page Page, mirror Mirror, log *zap.Logger) error {
	for i := sess.LastSuccessfulStep; i < len(sess.Scenario); i++ {
		step := sess.Scenario[i]

		if prior, ok := sess.Resume[i]; ok {
			if prior.Completed {
				sess.LastSuccessfulStep = i + 1
				continue
			}
			if prior.LastError != "" && e.classifier.Classify(errors.New(prior.LastError)) == retry.Fatal {
				return fmt.Errorf("step %d (%s) previously failed terminally: %s", i, step.Action, prior.LastError)
			}
		}

		if err := e.checkCaptcha(ctx, sess, page, i); err != nil {
			return err
		}

		attempts, elapsed, err := e.runStep(ctx, page, step)
		idx, durMs := i, elapsed.Milliseconds()
		state := schemas.StepState{Attempts: attempts, DurationMs: durMs}

		if err != nil {
			state.LastError = err.Error()
			sess.Resume[i] = state
			e.mirror(mirror, sess.ID, schemas.LogError, "step failed: "+err.Error(), &idx, step.Action, &durMs)
			return fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}

		state.Completed = true
		sess.Resume[i] = state
		sess.LastSuccessfulStep = i + 1

		log.Info("step completed",
			zap.Int("step", i),
			zap.String("action", step.Action),
			zap.Int("attempts", attempts),
			zap.Int64("duration_ms", durMs),
		)
		e.mirror(mirror, sess.ID, schemas.LogInfo, "step completed", &idx, step.Action, &durMs)
		e.patch(ctx, sess.ID, schemas.SessionUpdate{
			LastSuccessfulStep: &sess.LastSuccessfulStep,
			Resume:             sess.Resume,
		})
		e.mirrorLocation(ctx, sess, page, step)
	}
	return nil
}

// mirrorLocation reports the current URL after navigation steps so the
// backend sees where the session actually landed.
func (e *Executor) mirrorLocation(ctx context.Context, sess *schemas.Session, page Page, step schemas.ScenarioStep) {
	kind, err := actions.ParseKind(step.Action)
	if err != nil || kind != actions.KindOpen {
		return
	}
	url, err := page.CurrentURL(ctx)
	if err != nil {
		e.logger.Debug("location read failed", zap.Error(err))
		return
	}
	if err := e.reporter.ReportURL(ctx, sess.ID, url); err != nil {
		e.logger.Warn("url report failed", zap.Error(err))
	}
}
