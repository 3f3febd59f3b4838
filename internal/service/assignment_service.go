package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/workflow"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

type assignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

type submissionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	Ensure(ctx context.Context, sub *models.Submission) (*models.Submission, error)
	Update(ctx context.Context, sub *models.Submission) error
	ListOverdue(ctx context.Context, assignmentID string, now time.Time) ([]models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error)
}

type rosterReader interface {
	approvalChecker
	ListApprovedStudents(ctx context.Context, classID string) ([]string, error)
}

// AssignmentService persists the submission lifecycle.
type AssignmentService struct {
	assignments assignmentReader
	submissions submissionRepository
	roster      rosterReader
	guard       accessGuard
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(assignments assignmentReader, submissions submissionRepository, classes classReader, roster rosterReader, metrics *MetricsService, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		submissions: submissions,
		roster:      roster,
		guard:       accessGuard{classes: classes, enrollments: roster},
		metrics:     metrics,
		logger:      logger,
	}
}

// Submit materialises the student's PENDING submission if needed and submits it.
func (s *AssignmentService) Submit(ctx context.Context, actor Actor, assignmentID, content string, now time.Time) (*models.SubmissionView, []models.Effect, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.guard.requireApprovedStudent(ctx, actor, assignment.ClassID); err != nil {
		return nil, nil, err
	}
	class, err := s.guard.class(ctx, assignment.ClassID)
	if err != nil {
		return nil, nil, err
	}

	var (
		updated models.Submission
		effects []models.Effect
	)
	err = withVersionRetry(s.metrics, "submission", func() error {
		current, err := s.submissions.Ensure(ctx, &models.Submission{
			AssignmentID: assignment.ID,
			StudentID:    actor.ID,
			DueDate:      assignment.DueDate,
			Status:       models.SubmissionStatusPending,
			TotalMarks:   assignment.TotalMarks,
		})
		if err != nil {
			return appErrors.Internal(err, "failed to load submission")
		}
		updated, effects, err = workflow.SubmitAssignment(*current, content, class.TeacherID, now)
		if err != nil {
			return err
		}
		return saveError(s.submissions.Update(ctx, &updated), "failed to save submission")
	})
	if err != nil {
		return nil, nil, err
	}
	view := workflow.View(updated, now)
	return &view, effects, nil
}

// Grade stores marks for a submitted submission on behalf of the class teacher.
func (s *AssignmentService) Grade(ctx context.Context, actor Actor, submissionID string, marks float64, feedback *string, now time.Time) (*models.SubmissionView, []models.Effect, error) {
	var (
		updated models.Submission
		effects []models.Effect
	)
	err := withVersionRetry(s.metrics, "submission", func() error {
		current, err := s.loadSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		assignment, err := s.loadAssignment(ctx, current.AssignmentID)
		if err != nil {
			return err
		}
		class, err := s.guard.class(ctx, assignment.ClassID)
		if err != nil {
			return err
		}
		if err := requireClassTeacher(actor, class); err != nil {
			return err
		}
		updated, effects, err = workflow.GradeSubmission(*current, marks, feedback, actor.ID, now)
		if err != nil {
			return err
		}
		return saveError(s.submissions.Update(ctx, &updated), "failed to save grade")
	})
	if err != nil {
		return nil, nil, err
	}
	view := workflow.View(updated, now)
	return &view, effects, nil
}

// GetSubmission returns a submission with its display status at now.
func (s *AssignmentService) GetSubmission(ctx context.Context, actor Actor, submissionID string, now time.Time) (*models.SubmissionView, error) {
	sub, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	assignment, err := s.loadAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return nil, err
	}
	class, err := s.guard.class(ctx, assignment.ClassID)
	if err != nil {
		return nil, err
	}
	if err := requireReader(actor, class, sub.StudentID); err != nil {
		return nil, err
	}
	view := workflow.View(*sub, now)
	return &view, nil
}

// MySubmission returns the student's own submission for an assignment. A
// student who never opened the assignment gets an unsaved PENDING view.
func (s *AssignmentService) MySubmission(ctx context.Context, actor Actor, assignmentID string, now time.Time) (*models.SubmissionView, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.requireApprovedStudent(ctx, actor, assignment.ClassID); err != nil {
		return nil, err
	}
	sub, err := s.submissions.FindByAssignmentAndStudent(ctx, assignmentID, actor.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		view := workflow.View(virtualSubmission(*assignment, actor.ID), now)
		return &view, nil
	case err != nil:
		return nil, appErrors.Internal(err, "failed to load submission")
	}
	view := workflow.View(*sub, now)
	return &view, nil
}

// ListSubmissions returns one view per approved student. Students without a
// stored row appear as unsaved PENDING submissions.
func (s *AssignmentService) ListSubmissions(ctx context.Context, actor Actor, assignmentID string, now time.Time) ([]models.SubmissionView, error) {
	assignment, students, err := s.staffRoster(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}
	stored, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list submissions")
	}
	subs := mergeRoster(*assignment, stored, students)
	views := make([]models.SubmissionView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, workflow.View(sub, now))
	}
	return views, nil
}

// ListOverdue returns the submissions whose derived status is OVERDUE at now:
// stored PENDING rows past due plus approved students who never opened the
// assignment.
func (s *AssignmentService) ListOverdue(ctx context.Context, actor Actor, assignmentID string, now time.Time) ([]models.SubmissionView, error) {
	assignment, students, err := s.staffRoster(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}
	views := make([]models.SubmissionView, 0)
	if !now.After(assignment.DueDate) {
		return views, nil
	}
	overdue, err := s.submissions.ListOverdue(ctx, assignmentID, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list overdue submissions")
	}
	stored, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list submissions")
	}
	materialised := make(map[string]bool, len(stored))
	for _, sub := range stored {
		materialised[sub.StudentID] = true
	}
	for _, studentID := range students {
		if !materialised[studentID] {
			overdue = append(overdue, virtualSubmission(*assignment, studentID))
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool { return overdue[i].StudentID < overdue[j].StudentID })
	for _, sub := range overdue {
		views = append(views, workflow.View(sub, now))
	}
	return views, nil
}

func (s *AssignmentService) staffRoster(ctx context.Context, actor Actor, assignmentID string) (*models.Assignment, []string, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	class, err := s.guard.class(ctx, assignment.ClassID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireStaff(actor, class); err != nil {
		return nil, nil, err
	}
	students, err := s.roster.ListApprovedStudents(ctx, class.ID)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to load class roster")
	}
	return assignment, students, nil
}

func (s *AssignmentService) loadAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "assignment not found", "failed to load assignment")
	}
	return assignment, nil
}

func (s *AssignmentService) loadSubmission(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := s.submissions.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "submission not found", "failed to load submission")
	}
	return sub, nil
}

func virtualSubmission(assignment models.Assignment, studentID string) models.Submission {
	return models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    studentID,
		DueDate:      assignment.DueDate,
		Status:       models.SubmissionStatusPending,
		TotalMarks:   assignment.TotalMarks,
	}
}

// mergeRoster combines stored rows with the approved roster. Stored rows of
// students who have since left the class are kept.
func mergeRoster(assignment models.Assignment, stored []models.Submission, students []string) []models.Submission {
	result := make([]models.Submission, 0, len(students)+len(stored))
	seen := make(map[string]bool, len(stored))
	for _, sub := range stored {
		seen[sub.StudentID] = true
		result = append(result, sub)
	}
	for _, studentID := range students {
		if !seen[studentID] {
			result = append(result, virtualSubmission(assignment, studentID))
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result
}
