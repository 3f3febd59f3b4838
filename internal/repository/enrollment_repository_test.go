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

func TestEnrollmentRepositoryCreateSetsVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{ClassID: "class-1", StudentID: "stu-1", Status: models.EnrollmentStatusPending, RequestedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, 1, enrollment.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Enrollment{ClassID: "class-1", StudentID: "stu-1"})
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestEnrollmentRepositoryUpdateCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	decidedAt := time.Now()
	decidedBy := "teacher-1"
	enrollment := &models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusApproved, DecidedAt: &decidedAt, DecidedBy: &decidedBy, Version: 1}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $3")).
		WithArgs("enr-1", 1, models.EnrollmentStatusApproved, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), enrollment))
	assert.Equal(t, 2, enrollment.Version)

	stale := &models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusRejected, Version: 1}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $3")).
		WithArgs("enr-1", 1, models.EnrollmentStatusRejected, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), stale)
	assert.True(t, errors.Is(err, appErrors.ErrVersionConflict))
	assert.Equal(t, 1, stale.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryIsApproved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE class_id = $1 AND student_id = $2 AND status = $3")).
		WithArgs("class-1", "stu-1", models.EnrollmentStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	ok, err := repo.IsApproved(context.Background(), "class-1", "stu-1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByPair(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "class_id", "student_id", "status", "requested_at", "decided_at", "decided_by", "version"}).
		AddRow("enr-1", "class-1", "stu-1", "REJECTED", time.Now(), time.Now(), "teacher-1", 2)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE class_id = $1 AND student_id = $2")).
		WithArgs("class-1", "stu-1").
		WillReturnRows(rows)

	enrollments, err := repo.ListByPair(context.Background(), "class-1", "stu-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, models.EnrollmentStatusRejected, enrollments[0].Status)
	require.NotNil(t, enrollments[0].DecidedBy)
	assert.Equal(t, 2, enrollments[0].Version)
}

func TestEnrollmentRepositoryDeleteConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1 AND version = $2")).
		WithArgs("enr-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "enr-1", 3)
	assert.True(t, errors.Is(err, appErrors.ErrVersionConflict))
}

func TestEnrollmentRepositoryListPaginates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE class_id = $1 AND status = $2 ORDER BY requested_at DESC, id LIMIT 10 OFFSET 10")).
		WithArgs("class-1", models.EnrollmentStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "student_id", "status", "requested_at", "decided_at", "decided_by", "version"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND status = $2")).
		WithArgs("class-1", models.EnrollmentStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	_, total, err := repo.List(context.Background(), models.EnrollmentFilter{ClassID: "class-1", Status: models.EnrollmentStatusPending, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
