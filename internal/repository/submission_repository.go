package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
)

const submissionColumns = `id, assignment_id, student_id, due_date, status, content, submitted_at, marks, total_marks,
       feedback, graded_at, graded_by, version`

// SubmissionRepository persists assignment submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindByID returns a submission by ID.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByAssignmentAndStudent returns the submission for a student on an assignment.
func (r *SubmissionRepository) FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE assignment_id = $1 AND student_id = $2`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, assignmentID, studentID); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Ensure materialises the PENDING submission for a student if it does not
// exist yet and returns the stored row either way.
func (r *SubmissionRepository) Ensure(ctx context.Context, sub *models.Submission) (*models.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = models.SubmissionStatusPending
	}
	sub.Version = 1
	const query = `INSERT INTO submissions (id, assignment_id, student_id, due_date, status, content, total_marks, version)
        VALUES (:id, :assignment_id, :student_id, :due_date, :status, :content, :total_marks, :version)
        ON CONFLICT (assignment_id, student_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return nil, fmt.Errorf("ensure submission: %w", err)
	}
	return r.FindByAssignmentAndStudent(ctx, sub.AssignmentID, sub.StudentID)
}

// Update saves a submission when its version still matches.
func (r *SubmissionRepository) Update(ctx context.Context, sub *models.Submission) error {
	const query = `UPDATE submissions SET status = $3, content = $4, submitted_at = $5, marks = $6, feedback = $7,
        graded_at = $8, graded_by = $9, version = version + 1
        WHERE id = $1 AND version = $2`
	result, err := r.db.ExecContext(ctx, query, sub.ID, sub.Version, sub.Status, sub.Content, sub.SubmittedAt,
		sub.Marks, sub.Feedback, sub.GradedAt, sub.GradedBy)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if err := expectOneRow(result, "submission"); err != nil {
		return err
	}
	sub.Version++
	return nil
}

// ListOverdue returns materialised submissions that are still PENDING after
// their due date. Students who never opened the assignment have no row and
// are resolved by the caller against the class roster.
func (r *SubmissionRepository) ListOverdue(ctx context.Context, assignmentID string, now time.Time) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
        WHERE assignment_id = $1 AND status = $2 AND due_date < $3 ORDER BY student_id`
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, assignmentID, models.SubmissionStatusPending, now); err != nil {
		return nil, fmt.Errorf("list overdue submissions: %w", err)
	}
	return subs, nil
}

// ListByAssignment returns every stored submission of an assignment.
func (r *SubmissionRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE assignment_id = $1 ORDER BY student_id`
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list assignment submissions: %w", err)
	}
	return subs, nil
}
