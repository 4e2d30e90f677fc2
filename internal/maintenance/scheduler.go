// Package maintenance runs the periodic entitlement and generation sweeps.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/digkill/botforge/internal/service"
)

const defaultSweepTimeout = 2 * time.Minute

type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepReport, error)
}

type Scheduler struct {
	spec    string
	sweeper Sweeper
	log     *slog.Logger
	timeout time.Duration
}

// New validates spec (standard five-field cron or a descriptor such as
// "@every 10m").
func New(spec string, sweeper Sweeper, log *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", spec, err)
	}
	return &Scheduler{
		spec:    spec,
		sweeper: sweeper,
		log:     log,
		timeout: defaultSweepTimeout,
	}, nil
}

// Run blocks until ctx is done, then waits for a running sweep to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{log: s.log}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(s.spec, func() {
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	c.Start()
	s.log.Info("maintenance scheduler started", "schedule", s.spec)
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("maintenance scheduler stopped")
	return nil
}

func (s *Scheduler) RunOnce(ctx context.Context) (service.SweepReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	report, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.Error("maintenance sweep failed", "err", err)
		return report, err
	}
	s.log.Info("maintenance sweep finished",
		"premium_expired", report.PremiumExpired,
		"pending_failed", report.PendingFailed,
		"duration", time.Since(started),
	)
	return report, nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
