// Package jobs runs the periodic maintenance tasks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"whatsdesk/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StatusSyncer polls providers for instances whose state may change without a webhook
type StatusSyncer interface {
	SyncStatuses(ctx context.Context) (int, error)
}

// WebhookPurger deletes webhook log rows older than a cutoff
type WebhookPurger interface {
	PurgeBefore(ctx context.Context, before time.Time) (int64, error)
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Scheduler struct {
	sched      *cron.Cron
	cfg        config.JobsConfig
	syncer     StatusSyncer
	purger     WebhookPurger
	logger     *zap.Logger
	jobTimeout time.Duration
}

func NewScheduler(cfg config.JobsConfig, syncer StatusSyncer, purger WebhookPurger, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sched:      cron.New(cron.WithParser(cronParser)),
		cfg:        cfg,
		syncer:     syncer,
		purger:     purger,
		logger:     logger.Named("jobs"),
		jobTimeout: 5 * time.Minute,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.sched.AddFunc(s.cfg.StatusSyncSpec, s.wrap("instance_status_sync", s.SyncStatuses)); err != nil {
		return fmt.Errorf("schedule status sync: %w", err)
	}
	if _, err := s.sched.AddFunc(s.cfg.WebhookPurgeSpec, s.wrap("webhook_purge", s.PurgeWebhooks)); err != nil {
		return fmt.Errorf("schedule webhook purge: %w", err)
	}

	s.sched.Start()
	s.logger.Info("scheduler started",
		zap.String("status_sync", s.cfg.StatusSyncSpec),
		zap.String("webhook_purge", s.cfg.WebhookPurgeSpec),
	)
	return nil
}

// Stop waits for running jobs up to ctx
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.sched.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) wrap(name string, job func(ctx context.Context) error) func() {
	return func() {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("job panic", zap.String("job", name), zap.Any("panic", err))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		if err := job(ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

func (s *Scheduler) SyncStatuses(ctx context.Context) error {
	n, err := s.syncer.SyncStatuses(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug("instance statuses synced", zap.Int("instances", n))
	return nil
}

func (s *Scheduler) PurgeWebhooks(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.WebhookRetention)
	n, err := s.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("webhook events purged", zap.Int64("rows", n), zap.Time("before", cutoff))
	}
	return nil
}
