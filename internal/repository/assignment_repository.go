package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
)

// AssignmentRepository persists assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID returns an assignment by ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, class_id, title, description, due_date, total_marks, created_by, created_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByClass returns assignments of a class ordered by due date.
func (r *AssignmentRepository) ListByClass(ctx context.Context, classID string) ([]models.Assignment, error) {
	const query = `SELECT id, class_id, title, description, due_date, total_marks, created_by, created_at FROM assignments WHERE class_id = $1 ORDER BY due_date`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, classID); err != nil {
		return nil, fmt.Errorf("list class assignments: %w", err)
	}
	return assignments, nil
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignments (id, class_id, title, description, due_date, total_marks, created_by, created_at)
        VALUES (:id, :class_id, :title, :description, :due_date, :total_marks, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}
