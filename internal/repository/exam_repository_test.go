package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
)

func TestExamRepositoryCreateWithQuestions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exams")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exam_questions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exam_questions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	exam := &models.Exam{
		ClassID:         "class-1",
		Title:           "Quiz",
		WindowStart:     time.Now(),
		WindowEnd:       time.Now().Add(time.Hour),
		DurationSeconds: 600,
		Questions: []models.Question{
			{Type: models.QuestionTypeMCQ, Prompt: "2+2", Options: models.StringList{"3", "4"}, CorrectAnswer: "4", Marks: 1, Position: 1},
			{Type: models.QuestionTypeShortAnswer, Prompt: "Explain", Marks: 5, Position: 2},
		},
	}
	require.NoError(t, repo.Create(context.Background(), exam))
	assert.NotEmpty(t, exam.ID)
	for _, q := range exam.Questions {
		assert.NotEmpty(t, q.ID)
		assert.Equal(t, exam.ID, q.ExamID)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exams")).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Exam{ClassID: "class-1"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryFindByIDLoadsQuestions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM exams WHERE id = $1")).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "title", "window_start", "window_end", "duration_seconds", "shuffle_questions", "created_by", "created_at"}).
			AddRow("exam-1", "class-1", "Quiz", now, now.Add(time.Hour), 600, true, "teacher-1", now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM exam_questions WHERE exam_id = $1 ORDER BY position")).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_id", "type", "prompt", "options", "correct_answer", "marks", "position"}).
			AddRow("q1", "exam-1", "TRUE_FALSE", "Sky is blue", []byte(`["true","false"]`), "true", 2.0, 1))

	exam, err := repo.FindByID(context.Background(), "exam-1")
	require.NoError(t, err)
	assert.True(t, exam.ShuffleQuestions)
	require.Len(t, exam.Questions, 1)
	assert.Equal(t, models.StringList{"true", "false"}, exam.Questions[0].Options)
	require.NoError(t, mock.ExpectationsWereMet())
}
