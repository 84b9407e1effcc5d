// Package scheduler drives the dispatcher's batch scans on fixed
// intervals. The dispatcher holds no timer of its own; overlapping ticks
// are safe because rows are claimed before dispatch.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/liyaqa/webhook-delivery/internal/config"
	"github.com/liyaqa/webhook-delivery/internal/dispatcher"
)

const tickTimeout = 5 * time.Minute

type Scheduler struct {
	cron       *cron.Cron
	dispatcher *dispatcher.Dispatcher
	cfg        *config.DispatcherConfig
	logger     *zap.Logger
}

func NewScheduler(d *dispatcher.Dispatcher, cfg *config.DispatcherConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		dispatcher: d,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start registers the pending scan, the retry scan and the stuck-delivery
// sweep, then starts the cron runner.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name     string
		interval time.Duration
		run      func(ctx context.Context) error
	}{
		{"pending_scan", s.cfg.PendingInterval, s.runPendingScan},
		{"retry_scan", s.cfg.RetryInterval, s.runRetryScan},
		{"stuck_sweep", s.cfg.StuckInterval, s.runStuckSweep},
	}

	for _, job := range jobs {
		job := job
		spec := fmt.Sprintf("@every %s", job.interval)
		_, err := s.cron.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
			defer cancel()
			if err := job.run(ctx); err != nil {
				s.logger.Error("Scheduled job failed",
					zap.String("job", job.name),
					zap.Error(err),
				)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.Duration("pending_interval", s.cfg.PendingInterval),
		zap.Duration("retry_interval", s.cfg.RetryInterval),
		zap.Duration("stuck_interval", s.cfg.StuckInterval),
	)
	return nil
}

// Stop halts the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runPendingScan(ctx context.Context) error {
	count, err := s.dispatcher.ProcessPendingDeliveries(ctx, s.cfg.PendingBatchSize)
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Debug("Pending scan complete", zap.Int("attempted", count))
	}
	return nil
}

func (s *Scheduler) runRetryScan(ctx context.Context) error {
	count, err := s.dispatcher.ProcessRetries(ctx, s.cfg.RetryBatchSize)
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Debug("Retry scan complete", zap.Int("attempted", count))
	}
	return nil
}

func (s *Scheduler) runStuckSweep(ctx context.Context) error {
	_, err := s.dispatcher.RecoverStuckDeliveries(ctx)
	return err
}
