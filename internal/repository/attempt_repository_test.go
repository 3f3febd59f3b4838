package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

var attemptCols = []string{"id", "exam_id", "student_id", "status", "started_at", "deadline", "question_order", "answers",
	"obtained_marks", "max_objective_marks", "pending_manual", "submitted_at", "version"}

func TestAttemptRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttemptRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exam_attempts")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.ExamAttempt{ExamID: "exam-1", StudentID: "stu-1"})
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestAttemptRepositoryFindDecodesJSON(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttemptRepository(db)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM exam_attempts WHERE id = $1")).
		WithArgs("att-1").
		WillReturnRows(sqlmock.NewRows(attemptCols).
			AddRow("att-1", "exam-1", "stu-1", "IN_PROGRESS", started, started.Add(30*time.Minute),
				[]byte(`["q2","q1"]`), []byte(`{"q1":"B"}`), nil, 0.0, nil, nil, 4))

	attempt, err := repo.FindByID(context.Background(), "att-1")
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"q2", "q1"}, attempt.QuestionOrder)
	assert.Equal(t, "B", attempt.Answers["q1"])
	assert.Nil(t, attempt.ObtainedMarks)
	assert.Equal(t, 4, attempt.Version)
}

func TestAttemptRepositoryUpdateConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttemptRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE exam_attempts SET status = $3")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	attempt := &models.ExamAttempt{ID: "att-1", Status: models.AttemptStatusSubmitted, Version: 2}
	err := repo.Update(context.Background(), attempt)
	assert.True(t, errors.Is(err, appErrors.ErrVersionConflict))
	assert.Equal(t, 2, attempt.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryListExpired(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttemptRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND deadline <= $2 ORDER BY deadline, id LIMIT $3")).
		WithArgs(models.AttemptStatusInProgress, now, 100).
		WillReturnRows(sqlmock.NewRows(attemptCols))

	attempts, err := repo.ListExpired(context.Background(), now, 0)
	require.NoError(t, err)
	assert.Empty(t, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryListOrdersByStartThenID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttemptRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM exam_attempts WHERE exam_id = $1 AND status = $2 ORDER BY started_at DESC NULLS LAST, id LIMIT 50 OFFSET 50")).
		WithArgs("exam-1", models.AttemptStatusInProgress).
		WillReturnRows(sqlmock.NewRows(attemptCols))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM exam_attempts WHERE exam_id = $1 AND status = $2")).
		WithArgs("exam-1", models.AttemptStatusInProgress).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(51))

	attempts, total, err := repo.List(context.Background(), models.AttemptFilter{
		ExamID: "exam-1", Status: models.AttemptStatusInProgress, Page: 2, PageSize: 50,
	})
	require.NoError(t, err)
	assert.Empty(t, attempts)
	assert.Equal(t, 51, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
