package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
)

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, code, teacher_id, created_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByTeacher returns the classes owned by a teacher.
func (r *ClassRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	const query = `SELECT id, name, code, teacher_id, created_at FROM classes WHERE teacher_id = $1 ORDER BY created_at DESC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher classes: %w", err)
	}
	return classes, nil
}

// CodeExists reports whether a join code is already taken.
func (r *ClassRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM classes WHERE UPPER(code) = UPPER($1) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class code: %w", err)
	}
	return true, nil
}

// Create inserts a new class. A join code collision yields ErrDuplicate.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	if class.CreatedAt.IsZero() {
		class.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO classes (id, name, code, teacher_id, created_at) VALUES (:id, :name, :code, :teacher_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}
