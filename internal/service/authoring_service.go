package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/dto"
	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

const (
	classCodeLength   = 8
	classCodeAttempts = 5
)

type classRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
}

type assignmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByClass(ctx context.Context, classID string) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
}

type examWriter interface {
	Create(ctx context.Context, exam *models.Exam) error
}

// AuthoringService lets teachers create the classes, assignments and exams
// the workflows operate on.
type AuthoringService struct {
	classes     classRepository
	assignments assignmentRepository
	exams       examWriter
	guard       accessGuard
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAuthoringService constructs AuthoringService.
func NewAuthoringService(classes classRepository, assignments assignmentRepository, exams examWriter, enrollments approvalChecker, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AuthoringService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthoringService{
		classes:     classes,
		assignments: assignments,
		exams:       exams,
		guard:       accessGuard{classes: classes, enrollments: enrollments},
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// CreateClass creates a class owned by the calling teacher with a fresh join code.
func (s *AuthoringService) CreateClass(ctx context.Context, actor Actor, req dto.CreateClassRequest, now time.Time) (*models.Class, error) {
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only teachers can create classes")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	for i := 0; i < classCodeAttempts; i++ {
		code := newClassCode()
		exists, err := s.classes.CodeExists(ctx, code)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check class code")
		}
		if exists {
			continue
		}
		class := &models.Class{
			Name:      strings.TrimSpace(req.Name),
			Code:      code,
			TeacherID: actor.ID,
			CreatedAt: now,
		}
		if err := s.classes.Create(ctx, class); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return nil, appErrors.Internal(err, "failed to create class")
		}
		s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("teacher_id", actor.ID))
		return class, nil
	}
	return nil, appErrors.Clone(appErrors.ErrInternal, "could not allocate a unique class code")
}

// ListClasses returns the classes taught by the actor.
func (s *AuthoringService) ListClasses(ctx context.Context, actor Actor) ([]models.Class, error) {
	classes, err := s.classes.ListByTeacher(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list classes")
	}
	return classes, nil
}

// GetClass returns a class. Only staff see the join code.
func (s *AuthoringService) GetClass(ctx context.Context, actor Actor, classID string) (*models.Class, error) {
	class, err := s.guard.class(ctx, classID)
	if err != nil {
		return nil, err
	}
	if requireStaff(actor, class) == nil {
		return class, nil
	}
	view := class.PublicView()
	return &view, nil
}

// CreateAssignment adds an assignment to a class taught by the actor.
func (s *AuthoringService) CreateAssignment(ctx context.Context, actor Actor, classID string, req dto.CreateAssignmentRequest, now time.Time) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	class, err := s.guard.class(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := requireClassTeacher(actor, class); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		ClassID:     class.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		DueDate:     req.DueDate.UTC(),
		TotalMarks:  req.TotalMarks,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Internal(err, "failed to create assignment")
	}
	return assignment, nil
}

// ListAssignments returns the assignments of a class to its staff and admitted students.
func (s *AuthoringService) ListAssignments(ctx context.Context, actor Actor, classID string) ([]models.Assignment, error) {
	class, err := s.guard.class(ctx, classID)
	if err != nil {
		return nil, err
	}
	if requireStaff(actor, class) != nil {
		if err := s.guard.requireApprovedStudent(ctx, actor, classID); err != nil {
			return nil, err
		}
	}
	assignments, err := s.assignments.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list assignments")
	}
	return assignments, nil
}

// CreateExam validates and stores an exam with its questions.
func (s *AuthoringService) CreateExam(ctx context.Context, actor Actor, classID string, req dto.CreateExamRequest, now time.Time) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	if req.WindowEnd.Before(req.WindowStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window_end must not be before window_start")
	}
	questions, err := buildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}
	class, err := s.guard.class(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := requireClassTeacher(actor, class); err != nil {
		return nil, err
	}

	exam := &models.Exam{
		ClassID:          class.ID,
		Title:            strings.TrimSpace(req.Title),
		WindowStart:      req.WindowStart.UTC(),
		WindowEnd:        req.WindowEnd.UTC(),
		DurationSeconds:  req.DurationSeconds,
		ShuffleQuestions: req.ShuffleQuestions,
		CreatedBy:        actor.ID,
		CreatedAt:        now,
		Questions:        questions,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Internal(err, "failed to create exam")
	}
	s.cache.Invalidate(ctx, examCacheKey(exam.ID))
	s.logger.Info("exam created", zap.String("exam_id", exam.ID), zap.Int("questions", len(questions)))
	return exam, nil
}

func buildQuestions(reqs []dto.QuestionRequest) ([]models.Question, error) {
	questions := make([]models.Question, 0, len(reqs))
	for i, req := range reqs {
		q := models.Question{
			Type:          models.QuestionType(req.Type),
			Prompt:        strings.TrimSpace(req.Prompt),
			Options:       models.StringList(req.Options),
			CorrectAnswer: req.CorrectAnswer,
			Marks:         req.Marks,
			Position:      i + 1,
		}
		if !q.Type.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown question type "+req.Type)
		}
		if q.Type == models.QuestionTypeTrueFalse && len(q.Options) == 0 {
			q.Options = models.StringList{"true", "false"}
		}
		if q.Type.Objective() {
			if q.Type == models.QuestionTypeMCQ && len(q.Options) < 2 {
				return nil, appErrors.Clone(appErrors.ErrValidation, "multiple choice questions need at least two options")
			}
			if !contains(q.Options, q.CorrectAnswer) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "correct answer must be one of the options")
			}
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func newClassCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:classCodeLength])
}
