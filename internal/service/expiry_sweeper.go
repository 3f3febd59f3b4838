package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
	"github.com/noah-isme/classroom-workflow-api/pkg/jobs"
)

// JobTypeExpireAttempt closes one attempt past its deadline.
const JobTypeExpireAttempt = "expire_attempt"

type expiredAttemptLister interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.ExamAttempt, error)
}

type attemptExpirer interface {
	ExpireExam(ctx context.Context, actor Actor, attemptID string, now *time.Time) (*models.ExamAttempt, error)
}

// ExpirySweeperConfig tunes the sweep loop.
type ExpirySweeperConfig struct {
	Interval time.Duration
	Batch    int
}

// ExpirySweeper periodically finds attempts still in progress past their
// deadline and expires them through the coordinator.
type ExpirySweeper struct {
	attempts expiredAttemptLister
	expirer  attemptExpirer
	queue    jobQueue
	clock    clock.Clock
	cfg      ExpirySweeperConfig
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewExpirySweeper constructs an ExpirySweeper. With a nil queue attempts are
// expired inline during the sweep.
func NewExpirySweeper(attempts expiredAttemptLister, expirer attemptExpirer, queue jobQueue, clk clock.Clock, cfg ExpirySweeperConfig, metrics *MetricsService, logger *zap.Logger) *ExpirySweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExpirySweeper{attempts: attempts, expirer: expirer, queue: queue, clock: clk, cfg: cfg, metrics: metrics, logger: logger}
	if queue != nil {
		queue.Handle(JobTypeExpireAttempt, s.handleJob)
	}
	return s
}

// Start runs the sweep loop until ctx is cancelled.
func (s *ExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Warn("expiry sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

// Sweep handles one batch and reports how many attempts were scheduled.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	attempts, err := s.attempts.ListExpired(ctx, now, s.cfg.Batch)
	if err != nil {
		return 0, fmt.Errorf("list expired attempts: %w", err)
	}
	scheduled := 0
	for _, attempt := range attempts {
		if s.queue != nil {
			err = s.queue.Enqueue(jobs.Job{ID: attempt.ID, Type: JobTypeExpireAttempt, Payload: attempt.ID})
		} else {
			err = s.expire(ctx, attempt.ID)
		}
		if err != nil {
			s.logger.Warn("failed to expire attempt", zap.String("attempt_id", attempt.ID), zap.Error(err))
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		s.logger.Debug("expiry sweep", zap.Int("scheduled", scheduled), zap.Time("now", now))
	}
	return scheduled, nil
}

func (s *ExpirySweeper) handleJob(ctx context.Context, job jobs.Job) error {
	attemptID, ok := job.Payload.(string)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type))
	}
	return s.expire(ctx, attemptID)
}

// expire treats losing the race to a submit as success.
func (s *ExpirySweeper) expire(ctx context.Context, attemptID string) error {
	_, err := s.expirer.ExpireExam(ctx, SystemActor, attemptID, nil)
	switch {
	case err == nil:
		s.metrics.RecordExpiration("sweeper")
		return nil
	case errors.Is(err, appErrors.ErrAttemptNotActive), errors.Is(err, appErrors.ErrNotYetExpired):
		return nil
	case errors.Is(err, appErrors.ErrNotFound):
		return jobs.Permanent(err)
	default:
		return err
	}
}
