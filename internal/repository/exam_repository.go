package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
)

// ExamRepository persists exams and their questions.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID returns an exam with its questions in position order.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const examQuery = `SELECT id, class_id, title, window_start, window_end, duration_seconds, shuffle_questions, created_by, created_at
        FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, examQuery, id); err != nil {
		return nil, err
	}

	const questionQuery = `SELECT id, exam_id, type, prompt, options, correct_answer, marks, position
        FROM exam_questions WHERE exam_id = $1 ORDER BY position`
	if err := r.db.SelectContext(ctx, &exam.Questions, questionQuery, id); err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	return &exam, nil
}

// Create inserts an exam and its questions in one transaction.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.createTx(ctx, tx, exam); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit exam: %w", err)
	}
	return nil
}

func (r *ExamRepository) createTx(ctx context.Context, tx *sqlx.Tx, exam *models.Exam) error {
	const insertExam = `INSERT INTO exams (id, class_id, title, window_start, window_end, duration_seconds, shuffle_questions, created_by, created_at)
        VALUES (:id, :class_id, :title, :window_start, :window_end, :duration_seconds, :shuffle_questions, :created_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertExam, exam); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	const insertQuestion = `INSERT INTO exam_questions (id, exam_id, type, prompt, options, correct_answer, marks, position)
        VALUES (:id, :exam_id, :type, :prompt, :options, :correct_answer, :marks, :position)`
	for i := range exam.Questions {
		q := &exam.Questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.ExamID = exam.ID
		if _, err := tx.NamedExecContext(ctx, insertQuestion, q); err != nil {
			return fmt.Errorf("insert exam question: %w", err)
		}
	}
	return nil
}
