// Package poller claims jobs from the coordination service and runs them
// under a concurrency cap. It owns the runner-level loop: claim, launch,
// heartbeat, drain on shutdown.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/backend"
	"github.com/xkilldash9x/marionette/internal/config"
)

// JobSource is the claim-side slice of the coordination client.
type JobSource interface {
	ClaimJob(ctx context.Context) (*schemas.Job, error)
	SendHeartbeat(ctx context.Context, hb schemas.Heartbeat) error
}

// Runner executes one claimed job to a terminal status.
type Runner interface {
	Execute(ctx context.Context, job *schemas.Job, mirror Mirror) (bool, error)
}

// Mirror buffers backend-bound log entries for one session.
type Mirror interface {
	Add(entry schemas.LogEntry)
	Close()
}

// MirrorFactory builds a Mirror scoped to a session. nil factories disable
// log mirroring.
type MirrorFactory func(sessionID string) Mirror

// Poller is the runner's main loop.
type Poller struct {
	cfg     config.RunnerConfig
	source  JobSource
	runner  Runner
	mirrors MirrorFactory
	logger  *zap.Logger

	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	active   atomic.Int64
	executed atomic.Int64
	failures atomic.Int64
	started  time.Time
}

// New builds a Poller. MaxConcurrency below one is clamped to one.
func New(cfg config.RunnerConfig, source JobSource, runner Runner, mirrors MirrorFactory, logger *zap.Logger) *Poller {
	max := cfg.MaxConcurrency
	if max < 1 {
		max = 1
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		runner:  runner,
		mirrors: mirrors,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(max)),
	}
}

// Run claims and executes jobs until ctx is cancelled, then drains in-flight
// sessions for the configured grace period before abandoning them.
func (p *Poller) Run(ctx context.Context) error {
	p.started = time.Now()
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	// Sessions run on their own lifetime so a shutdown signal stops
	// claiming first and interrupts work only after the grace period.
	sessCtx, sessCancel := context.WithCancel(context.Background())
	defer sessCancel()

	hbStop := make(chan struct{})
	var hbWg sync.WaitGroup
	hbWg.Add(1)
	go p.heartbeatLoop(hbStop, &hbWg)

	p.logger.Info("poller started",
		zap.String("runner_id", p.cfg.ID),
		zap.Int("max_concurrency", p.cfg.MaxConcurrency),
		zap.Duration("poll_interval", interval),
	)

	for ctx.Err() == nil {
		if !p.sem.TryAcquire(1) {
			// All slots busy; no point claiming work we cannot start.
			sleepCtx(ctx, interval)
			continue
		}

		job, err := p.source.ClaimJob(ctx)
		if err != nil {
			p.sem.Release(1)
			if !errors.Is(err, backend.ErrNoWork) && ctx.Err() == nil {
				p.logger.Warn("job claim failed", zap.Error(err))
			}
			sleepCtx(ctx, interval)
			continue
		}

		p.wg.Add(1)
		go p.runJob(sessCtx, job)
	}

	p.logger.Info("poller stopping, draining sessions",
		zap.Int64("active", p.active.Load()),
		zap.Duration("grace", p.cfg.ShutdownGrace),
	)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownGrace):
		// Grace expired. Cancel the sessions so they park themselves, then
		// wait for the goroutines to unwind.
		sessCancel()
		<-done
	}

	close(hbStop)
	hbWg.Wait()
	p.logger.Info("poller stopped",
		zap.Int64("executed", p.executed.Load()),
		zap.Int64("failures", p.failures.Load()),
	)
	return ctx.Err()
}

func (p *Poller) runJob(ctx context.Context, job *schemas.Job) {
	defer p.wg.Done()
	defer p.sem.Release(1)

	p.active.Add(1)
	defer p.active.Add(-1)

	var mirror Mirror
	if p.mirrors != nil {
		mirror = p.mirrors(job.Session.ID)
		defer mirror.Close()
	}

	ok, err := p.runner.Execute(ctx, job, mirror)
	p.executed.Add(1)
	if !ok {
		p.failures.Add(1)
	}
	if err != nil && ctx.Err() == nil {
		p.logger.Warn("session ended with error",
			zap.String("session_id", job.Session.ID),
			zap.Error(err),
		)
	}
}

// heartbeatLoop posts runner liveness until stopped.
func (p *Poller) heartbeatLoop(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	interval := p.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.beat()
		}
	}
}

func (p *Poller) beat() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hb := schemas.Heartbeat{
		RunnerID:       p.cfg.ID,
		ActiveSessions: int(p.active.Load()),
		TotalExecuted:  p.executed.Load(),
		TotalFailures:  p.failures.Load(),
		UptimeSeconds:  int64(time.Since(p.started).Seconds()),
	}
	if err := p.source.SendHeartbeat(ctx, hb); err != nil {
		p.logger.Warn("heartbeat failed", zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
