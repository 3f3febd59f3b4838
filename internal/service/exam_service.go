package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/repository"
	"github.com/noah-isme/classroom-workflow-api/internal/workflow"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

type attemptRepository interface {
	FindByID(ctx context.Context, id string) (*models.ExamAttempt, error)
	FindByExamAndStudent(ctx context.Context, examID, studentID string) (*models.ExamAttempt, error)
	Create(ctx context.Context, attempt *models.ExamAttempt) error
	Update(ctx context.Context, attempt *models.ExamAttempt) error
	List(ctx context.Context, filter models.AttemptFilter) ([]models.ExamAttempt, int, error)
}

func examCacheKey(id string) string {
	return "exam:" + id
}

// examCatalog reads exam definitions through the cache. Definitions are
// immutable once created so entries only expire by TTL.
type examCatalog struct {
	repo  examReader
	cache *CacheService
	ttl   time.Duration
}

func (c examCatalog) get(ctx context.Context, id string) (*models.Exam, error) {
	var cached models.Exam
	if c.cache.Get(ctx, examCacheKey(id), &cached) {
		return &cached, nil
	}
	exam, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "exam not found", "failed to load exam")
	}
	c.cache.Set(ctx, examCacheKey(id), exam, c.ttl)
	return exam, nil
}

// ExamService persists timed exam attempts.
type ExamService struct {
	exams    examCatalog
	attempts attemptRepository
	guard    accessGuard
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewExamService constructs ExamService. cache may be nil.
func NewExamService(exams examReader, attempts attemptRepository, classes classReader, enrollments approvalChecker, cache *CacheService, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{
		exams:    examCatalog{repo: exams, cache: cache, ttl: cacheTTL},
		attempts: attempts,
		guard:    accessGuard{classes: classes, enrollments: enrollments},
		metrics:  metrics,
		logger:   logger,
	}
}

// Start opens the student's attempt for an exam.
func (s *ExamService) Start(ctx context.Context, actor Actor, examID string, now time.Time) (*models.ExamAttempt, []models.Effect, error) {
	exam, err := s.exams.get(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.guard.requireApprovedStudent(ctx, actor, exam.ClassID); err != nil {
		return nil, nil, err
	}

	var (
		started models.ExamAttempt
		effects []models.Effect
	)
	err = withVersionRetry(s.metrics, "exam_attempt", func() error {
		existing, err := s.attempts.FindByExamAndStudent(ctx, examID, actor.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			existing = nil
		case err != nil:
			return appErrors.Internal(err, "failed to load exam attempt")
		}

		started, effects, err = workflow.StartAttempt(*exam, uuid.NewString(), actor.ID, existing, now)
		if err != nil {
			return err
		}
		if existing != nil {
			return saveError(s.attempts.Update(ctx, &started), "failed to start exam attempt")
		}
		if err := s.attempts.Create(ctx, &started); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrAttemptExists, "exam already attempted")
			}
			return appErrors.Internal(err, "failed to start exam attempt")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("exam attempt started",
		zap.String("attempt_id", started.ID), zap.String("exam_id", examID), zap.Time("deadline", started.Deadline))
	return &started, effects, nil
}

// Answer records one answer while the attempt is in progress.
func (s *ExamService) Answer(ctx context.Context, actor Actor, attemptID, questionID, value string, now time.Time) (*models.ExamAttempt, error) {
	var updated models.ExamAttempt
	err := withVersionRetry(s.metrics, "exam_attempt", func() error {
		current, exam, err := s.loadOwned(ctx, actor, attemptID)
		if err != nil {
			return err
		}
		updated, err = workflow.AnswerQuestion(*current, *exam, questionID, value, now)
		if err != nil {
			return err
		}
		return saveError(s.attempts.Update(ctx, &updated), "failed to save answer")
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Submit closes the attempt on the student's request.
func (s *ExamService) Submit(ctx context.Context, actor Actor, attemptID string, now time.Time) (*models.ExamAttempt, []models.Effect, error) {
	return s.close(ctx, attemptID, func() (*models.ExamAttempt, *models.Exam, error) {
		return s.loadOwned(ctx, actor, attemptID)
	}, func(attempt models.ExamAttempt, exam models.Exam) (models.ExamAttempt, []models.Effect, error) {
		return workflow.SubmitAttempt(attempt, exam, now)
	})
}

// Expire closes an attempt whose deadline has passed. The owning student, the
// class teacher, admins and the system may trigger it.
func (s *ExamService) Expire(ctx context.Context, actor Actor, attemptID string, now time.Time) (*models.ExamAttempt, []models.Effect, error) {
	closed, effects, err := s.close(ctx, attemptID, func() (*models.ExamAttempt, *models.Exam, error) {
		attempt, exam, err := s.load(ctx, attemptID)
		if err != nil {
			return nil, nil, err
		}
		class, err := s.guard.class(ctx, exam.ClassID)
		if err != nil {
			return nil, nil, err
		}
		if err := requireReader(actor, class, attempt.StudentID); err != nil {
			return nil, nil, err
		}
		return attempt, exam, nil
	}, func(attempt models.ExamAttempt, exam models.Exam) (models.ExamAttempt, []models.Effect, error) {
		return workflow.ExpireAttempt(attempt, exam, now)
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("exam attempt expired", zap.String("attempt_id", attemptID), zap.String("actor_id", actor.ID))
	return closed, effects, nil
}

func (s *ExamService) close(ctx context.Context, attemptID string,
	load func() (*models.ExamAttempt, *models.Exam, error),
	transition func(models.ExamAttempt, models.Exam) (models.ExamAttempt, []models.Effect, error),
) (*models.ExamAttempt, []models.Effect, error) {
	var (
		closed  models.ExamAttempt
		effects []models.Effect
	)
	err := withVersionRetry(s.metrics, "exam_attempt", func() error {
		current, exam, err := load()
		if err != nil {
			return err
		}
		closed, effects, err = transition(*current, *exam)
		if err != nil {
			return err
		}
		return saveError(s.attempts.Update(ctx, &closed), "failed to close exam attempt "+attemptID)
	})
	if err != nil {
		return nil, nil, err
	}
	return &closed, effects, nil
}

// GetAttempt returns an attempt visible to the actor as stored. Callers that
// need expiry applied go through the coordinator.
func (s *ExamService) GetAttempt(ctx context.Context, actor Actor, attemptID string) (*models.ExamAttempt, error) {
	attempt, exam, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	class, err := s.guard.class(ctx, exam.ClassID)
	if err != nil {
		return nil, err
	}
	if err := requireReader(actor, class, attempt.StudentID); err != nil {
		return nil, err
	}
	return attempt, nil
}

// GetExam returns the exam definition. Students only see it once admitted to
// the class and never see correct answers.
func (s *ExamService) GetExam(ctx context.Context, actor Actor, examID string) (*models.Exam, error) {
	exam, err := s.exams.get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent {
		if err := s.guard.requireApprovedStudent(ctx, actor, exam.ClassID); err != nil {
			return nil, err
		}
		view := exam.StudentView()
		return &view, nil
	}
	class, err := s.guard.class(ctx, exam.ClassID)
	if err != nil {
		return nil, err
	}
	if err := requireStaff(actor, class); err != nil {
		return nil, err
	}
	return exam, nil
}

// ListAttempts returns the attempts of an exam for staff.
func (s *ExamService) ListAttempts(ctx context.Context, actor Actor, filter models.AttemptFilter) ([]models.ExamAttempt, *models.Pagination, error) {
	exam, err := s.exams.get(ctx, filter.ExamID)
	if err != nil {
		return nil, nil, err
	}
	class, err := s.guard.class(ctx, exam.ClassID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireStaff(actor, class); err != nil {
		return nil, nil, err
	}
	attempts, total, err := s.attempts.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list exam attempts")
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return attempts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *ExamService) load(ctx context.Context, attemptID string) (*models.ExamAttempt, *models.Exam, error) {
	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, nil, lookupError(err, "exam attempt not found", "failed to load exam attempt")
	}
	exam, err := s.exams.get(ctx, attempt.ExamID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, exam, nil
}

// loadOwned loads an attempt for its owning student, who must still be
// admitted to the class.
func (s *ExamService) loadOwned(ctx context.Context, actor Actor, attemptID string) (*models.ExamAttempt, *models.Exam, error) {
	attempt, exam, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.StudentID != actor.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotAuthorized, "attempt belongs to another student")
	}
	if err := s.guard.requireApprovedStudent(ctx, actor, exam.ClassID); err != nil {
		return nil, nil, err
	}
	return attempt, exam, nil
}
