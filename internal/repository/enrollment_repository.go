package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
)

const enrollmentColumns = `id, class_id, student_id, status, requested_at, decided_at, decided_by, version`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM enrollments%s ORDER BY requested_at DESC, id LIMIT %d OFFSET %d`, enrollmentColumns, clause, size, offset)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByPair returns every enrollment recorded for a class and student.
func (r *EnrollmentRepository) ListByPair(ctx context.Context, classID, studentID string) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE class_id = $1 AND student_id = $2 ORDER BY requested_at, id`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, classID, studentID); err != nil {
		return nil, fmt.Errorf("list pair enrollments: %w", err)
	}
	return enrollments, nil
}

// IsApproved checks whether the student holds an APPROVED enrollment in the class.
func (r *EnrollmentRepository) IsApproved(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE class_id = $1 AND student_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classID, studentID, models.EnrollmentStatusApproved); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved enrollment: %w", err)
	}
	return true, nil
}

// ListApprovedStudents returns the IDs of approved students in a class.
func (r *EnrollmentRepository) ListApprovedStudents(ctx context.Context, classID string) ([]string, error) {
	const query = `SELECT student_id FROM enrollments WHERE class_id = $1 AND status = $2 ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, classID, models.EnrollmentStatusApproved); err != nil {
		return nil, fmt.Errorf("list approved students: %w", err)
	}
	return ids, nil
}

// Create persists a new enrollment record at version 1. A concurrent request
// for the same pair trips the partial unique index and is reported as a
// duplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	enrollment.Version = 1
	const query = `INSERT INTO enrollments (id, class_id, student_id, status, requested_at, decided_at, decided_by, version)
        VALUES (:id, :class_id, :student_id, :status, :requested_at, :decided_at, :decided_by, :version)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update saves a decided enrollment when its version still matches.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET status = $3, decided_at = $4, decided_by = $5, version = version + 1
        WHERE id = $1 AND version = $2`
	result, err := r.db.ExecContext(ctx, query, enrollment.ID, enrollment.Version, enrollment.Status, enrollment.DecidedAt, enrollment.DecidedBy)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if err := expectOneRow(result, "enrollment"); err != nil {
		return err
	}
	enrollment.Version++
	return nil
}

// Delete removes an enrollment when its version still matches.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string, version int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return expectOneRow(result, "enrollment")
}
