package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// runAutonomous loops screenshot, plan, act until the planner declares the
// goal met or the step ceiling is hit. The intelligence lives in the agent
// service; this loop only supplies observations and executes decisions.
func (e *Executor) runAutonomous(ctx context.Context, sess *schemas.Session, page Page, mirror Mirror, log *zap.Logger) error {
	if e.planner == nil {
		return ErrNoPlanner
	}

	maxSteps := e.cfg.MaxAutonomousSteps
	if maxSteps <= 0 {
		maxSteps = 40
	}

	history := make([]schemas.ScenarioStep, 0, maxSteps)
	for i := 0; i < maxSteps; i++ {
		if err := e.checkCaptcha(ctx, sess, page, i); err != nil {
			return err
		}

		screenshot, err := page.Screenshot(ctx)
		if err != nil {
			return fmt.Errorf("observe step %d: %w", i, err)
		}
		url, err := page.CurrentURL(ctx)
		if err != nil {
			log.Debug("location read failed", zap.Error(err))
		}

		decision, err := e.planner.NextStep(ctx, sess.ID, sess.Goal, url, screenshot, history)
		if err != nil {
			return fmt.Errorf("plan step %d: %w", i, err)
		}
		if decision.Done {
			log.Info("goal reached", zap.Int("steps", i), zap.String("reason", decision.Reason))
			e.mirror(mirror, sess.ID, schemas.LogInfo, "goal reached: "+decision.Reason, nil, "", nil)
			return nil
		}

		attempts, elapsed, err := e.runStep(ctx, page, decision.Step)
		idx, durMs := i, elapsed.Milliseconds()
		if err != nil {
			sess.Resume[i] = schemas.StepState{Attempts: attempts, DurationMs: durMs, LastError: err.Error()}
			e.mirror(mirror, sess.ID, schemas.LogError, "planned step failed: "+err.Error(), &idx, decision.Step.Action, &durMs)
			return fmt.Errorf("planned step %d (%s): %w", i, decision.Step.Action, err)
		}

		history = append(history, decision.Step)
		sess.Resume[i] = schemas.StepState{Completed: true, Attempts: attempts, DurationMs: durMs}
		log.Info("planned step completed",
			zap.Int("step", i),
			zap.String("action", decision.Step.Action),
		)
		e.mirror(mirror, sess.ID, schemas.LogInfo, "planned step completed", &idx, decision.Step.Action, &durMs)
	}

	return fmt.Errorf("goal not reached within %d steps", maxSteps)
}
