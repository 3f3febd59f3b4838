package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	"github.com/noah-isme/classroom-workflow-api/pkg/jobs"
	"github.com/noah-isme/classroom-workflow-api/pkg/middleware/requestid"
)

// Job types handled by the effect queue.
const (
	JobTypeNotify = "notify"
	JobTypeAudit  = "audit"
)

// Notifier delivers a notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type notificationQueue interface {
	Push(ctx context.Context, n models.Notification) error
}

// RedisNotifier hands notifications to an external delivery worker.
type RedisNotifier struct {
	queue notificationQueue
}

// NewRedisNotifier constructs a RedisNotifier.
func NewRedisNotifier(queue notificationQueue) *RedisNotifier {
	return &RedisNotifier{queue: queue}
}

// Notify implements Notifier.
func (n *RedisNotifier) Notify(ctx context.Context, notification models.Notification) error {
	return n.queue.Push(ctx, notification)
}

// LogNotifier writes notifications to the log. Used when Redis is disabled.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, notification models.Notification) error {
	n.logger.Info("notification",
		zap.String("id", notification.ID),
		zap.String("type", notification.Type),
		zap.String("recipient_id", notification.RecipientID),
		zap.Any("payload", notification.Payload))
	return nil
}

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
	Handle(jobType string, handler jobs.Handler)
}

// effectJob is the payload of notify and audit jobs.
type effectJob struct {
	Effect    models.Effect
	RequestID string
}

// NotificationService executes committed workflow effects. Notify effects go
// to the Notifier, audit effects to the audit log. With a queue attached
// both run asynchronously with retries; without one they run inline.
// Failures are logged and never reach the command caller.
type NotificationService struct {
	notifier Notifier
	audits   auditWriter
	queue    jobQueue
	clock    clock.Clock
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService constructs NotificationService. queue may be nil.
func NewNotificationService(notifier Notifier, audits auditWriter, queue jobQueue, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if clk == nil {
		clk = clock.System{}
	}
	s := &NotificationService{notifier: notifier, audits: audits, queue: queue, clock: clk, metrics: metrics, logger: logger}
	if queue != nil {
		queue.Handle(JobTypeNotify, s.handleJob)
		queue.Handle(JobTypeAudit, s.handleJob)
	}
	return s
}

// Publish implements EffectPublisher.
func (s *NotificationService) Publish(ctx context.Context, effects []models.Effect) {
	reqID := requestid.FromContext(ctx)
	for _, effect := range effects {
		job := effectJob{Effect: effect, RequestID: reqID}
		if s.queue == nil {
			err := s.execute(ctx, job)
			s.record(effect, err)
			continue
		}
		err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobType(effect.Kind), Payload: job})
		if err != nil {
			s.logger.Warn("effect queue unavailable, executing inline", zap.String("type", effect.Type), zap.Error(err))
			err = s.execute(ctx, job)
			s.record(effect, err)
		}
	}
}

// OnJobDone reports the final outcome of a queued effect. Pass it as the
// queue's OnDone hook.
func (s *NotificationService) OnJobDone(job jobs.Job, err error) {
	payload, ok := job.Payload.(effectJob)
	if !ok {
		return
	}
	s.record(payload.Effect, err)
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(effectJob)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type))
	}
	return s.execute(ctx, payload)
}

func (s *NotificationService) execute(ctx context.Context, job effectJob) error {
	switch job.Effect.Kind {
	case models.EffectKindNotify:
		return s.notifier.Notify(ctx, models.Notification{
			ID:          uuid.NewString(),
			Type:        job.Effect.Type,
			RecipientID: job.Effect.RecipientID,
			Payload:     job.Effect.Payload,
			CreatedAt:   s.clock.Now(),
		})
	case models.EffectKindAudit:
		return s.writeAudit(ctx, job)
	default:
		return jobs.Permanent(fmt.Errorf("unknown effect kind %q", job.Effect.Kind))
	}
}

func (s *NotificationService) writeAudit(ctx context.Context, job effectJob) error {
	if s.audits == nil {
		return nil
	}
	effect := job.Effect
	entry := &models.AuditLog{
		Action:    effect.Type,
		Resource:  effect.Resource,
		RequestID: job.RequestID,
		CreatedAt: s.clock.Now(),
	}
	if effect.ActorID != "" {
		actor := effect.ActorID
		entry.UserID = &actor
	}
	if effect.ResourceID != "" {
		resourceID := effect.ResourceID
		entry.ResourceID = &resourceID
	}
	if len(effect.Payload) > 0 {
		raw, err := json.Marshal(effect.Payload)
		if err != nil {
			return jobs.Permanent(fmt.Errorf("marshal audit payload: %w", err))
		}
		entry.NewValues = models.JSONDocument(raw)
	}
	return s.audits.Create(ctx, entry)
}

func (s *NotificationService) record(effect models.Effect, err error) {
	s.metrics.RecordEffect(string(effect.Kind), effect.Type, err)
	if err != nil {
		s.logger.Error("effect delivery failed",
			zap.String("kind", string(effect.Kind)),
			zap.String("type", effect.Type),
			zap.String("resource_id", effect.ResourceID),
			zap.Error(err))
	}
}

func jobType(kind models.EffectKind) string {
	if kind == models.EffectKindAudit {
		return JobTypeAudit
	}
	return JobTypeNotify
}
