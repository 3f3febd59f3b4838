package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
)

const attemptColumns = `id, exam_id, student_id, status, started_at, deadline, question_order, answers, obtained_marks,
       max_objective_marks, pending_manual, submitted_at, version`

// AttemptRepository persists exam attempts.
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository constructs the repository.
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// FindByID returns an attempt by ID.
func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*models.ExamAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM exam_attempts WHERE id = $1`
	var attempt models.ExamAttempt
	if err := r.db.GetContext(ctx, &attempt, query, id); err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindByExamAndStudent returns the single attempt a student has for an exam.
func (r *AttemptRepository) FindByExamAndStudent(ctx context.Context, examID, studentID string) (*models.ExamAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM exam_attempts WHERE exam_id = $1 AND student_id = $2`
	var attempt models.ExamAttempt
	if err := r.db.GetContext(ctx, &attempt, query, examID, studentID); err != nil {
		return nil, err
	}
	return &attempt, nil
}

// Create inserts a started attempt. The (exam_id, student_id) unique index
// turns a concurrent second start into ErrDuplicate.
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	attempt.Version = 1
	const query = `INSERT INTO exam_attempts (id, exam_id, student_id, status, started_at, deadline, question_order, answers,
        obtained_marks, max_objective_marks, pending_manual, submitted_at, version)
        VALUES (:id, :exam_id, :student_id, :status, :started_at, :deadline, :question_order, :answers,
        :obtained_marks, :max_objective_marks, :pending_manual, :submitted_at, :version)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create exam attempt: %w", err)
	}
	return nil
}

// Update saves an attempt when its version still matches.
func (r *AttemptRepository) Update(ctx context.Context, attempt *models.ExamAttempt) error {
	const query = `UPDATE exam_attempts SET status = $3, started_at = $4, deadline = $5, question_order = $6, answers = $7,
        obtained_marks = $8, max_objective_marks = $9, pending_manual = $10, submitted_at = $11, version = version + 1
        WHERE id = $1 AND version = $2`
	result, err := r.db.ExecContext(ctx, query, attempt.ID, attempt.Version, attempt.Status, attempt.StartedAt,
		attempt.Deadline, attempt.QuestionOrder, attempt.Answers, attempt.ObtainedMarks, attempt.MaxObjectiveMarks,
		attempt.PendingManual, attempt.SubmittedAt)
	if err != nil {
		return fmt.Errorf("update exam attempt: %w", err)
	}
	if err := expectOneRow(result, "exam attempt"); err != nil {
		return err
	}
	attempt.Version++
	return nil
}

// ListExpired returns up to limit IN_PROGRESS attempts whose deadline is at
// or before now, oldest deadline first.
func (r *AttemptRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.ExamAttempt, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + attemptColumns + ` FROM exam_attempts
        WHERE status = $1 AND deadline <= $2 ORDER BY deadline, id LIMIT $3`
	var attempts []models.ExamAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, models.AttemptStatusInProgress, now, limit); err != nil {
		return nil, fmt.Errorf("list expired attempts: %w", err)
	}
	return attempts, nil
}

// List returns attempts matching the filter.
func (r *AttemptRepository) List(ctx context.Context, filter models.AttemptFilter) ([]models.ExamAttempt, int, error) {
	var conditions []string
	var args []interface{}
	if filter.ExamID != "" {
		args = append(args, filter.ExamID)
		conditions = append(conditions, fmt.Sprintf("exam_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM exam_attempts%s ORDER BY started_at DESC NULLS LAST, id LIMIT %d OFFSET %d`, attemptColumns, clause, size, offset)
	var attempts []models.ExamAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exam attempts: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM exam_attempts"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count exam attempts: %w", err)
	}
	return attempts, total, nil
}
