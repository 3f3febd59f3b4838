package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/repository"
	"github.com/noah-isme/classroom-workflow-api/internal/workflow"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListByPair(ctx context.Context, classID, studentID string) ([]models.Enrollment, error)
	IsApproved(ctx context.Context, classID, studentID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string, version int) error
}

// EnrollmentService persists enrollment state machine transitions.
type EnrollmentService struct {
	repo    enrollmentRepository
	guard   accessGuard
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, classes classReader, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:    repo,
		guard:   accessGuard{classes: classes, enrollments: repo},
		metrics: metrics,
		logger:  logger,
	}
}

// RequestJoin records a PENDING request when the student presents the class code.
func (s *EnrollmentService) RequestJoin(ctx context.Context, actor Actor, classID, code string, now time.Time) (*models.Enrollment, []models.Effect, error) {
	if actor.Role != models.RoleStudent {
		return nil, nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only students can join classes")
	}
	class, err := s.guard.class(ctx, classID)
	if err != nil {
		return nil, nil, err
	}
	existing, err := s.repo.ListByPair(ctx, classID, actor.ID)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to load enrollments")
	}

	enrollment, effects, err := workflow.RequestJoin(*class, actor.ID, code, existing, now, uuid.NewString())
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.Create(ctx, &enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "an active enrollment request already exists")
		}
		return nil, nil, appErrors.Internal(err, "failed to create enrollment")
	}
	s.logger.Info("enrollment requested", zap.String("enrollment_id", enrollment.ID), zap.String("class_id", classID))
	return &enrollment, effects, nil
}

// Decide approves or rejects a PENDING request on behalf of the class teacher.
func (s *EnrollmentService) Decide(ctx context.Context, actor Actor, enrollmentID string, decision models.EnrollmentStatus, now time.Time) (*models.Enrollment, []models.Effect, error) {
	var (
		updated models.Enrollment
		effects []models.Effect
	)
	err := withVersionRetry(s.metrics, "enrollment", func() error {
		current, err := s.load(ctx, enrollmentID)
		if err != nil {
			return err
		}
		class, err := s.guard.class(ctx, current.ClassID)
		if err != nil {
			return err
		}
		updated, effects, err = workflow.Decide(*current, *class, decision, actor.ID, now)
		if err != nil {
			return err
		}
		return saveError(s.repo.Update(ctx, &updated), "failed to update enrollment")
	})
	if err != nil {
		return nil, nil, err
	}
	return &updated, effects, nil
}

// Withdraw removes the student's own PENDING or APPROVED enrollment.
func (s *EnrollmentService) Withdraw(ctx context.Context, actor Actor, enrollmentID string) (*models.Enrollment, []models.Effect, error) {
	var (
		removed models.Enrollment
		effects []models.Effect
	)
	err := withVersionRetry(s.metrics, "enrollment", func() error {
		current, err := s.load(ctx, enrollmentID)
		if err != nil {
			return err
		}
		effects, err = workflow.Withdraw(*current, actor.ID)
		if err != nil {
			return err
		}
		removed = *current
		return saveError(s.repo.Delete(ctx, current.ID, current.Version), "failed to delete enrollment")
	})
	if err != nil {
		return nil, nil, err
	}
	return &removed, effects, nil
}

// Get returns one enrollment visible to the actor.
func (s *EnrollmentService) Get(ctx context.Context, actor Actor, id string) (*models.Enrollment, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	class, err := s.guard.class(ctx, enrollment.ClassID)
	if err != nil {
		return nil, err
	}
	if err := requireReader(actor, class, enrollment.StudentID); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// List returns enrollments with pagination metadata. Students only see their
// own requests and teachers must scope the query to a class they teach.
func (s *EnrollmentService) List(ctx context.Context, actor Actor, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		filter.StudentID = actor.ID
	default:
		if filter.ClassID == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
		}
		class, err := s.guard.class(ctx, filter.ClassID)
		if err != nil {
			return nil, nil, err
		}
		if err := requireStaff(actor, class); err != nil {
			return nil, nil, err
		}
	}

	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "enrollment not found", "failed to load enrollment")
	}
	return enrollment, nil
}
