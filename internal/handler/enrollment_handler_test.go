package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/service"
)

type enrollmentWorkflowMock struct {
	lastFilter   models.EnrollmentFilter
	lastDecision models.EnrollmentStatus
	decideCalled bool
}

func (m *enrollmentWorkflowMock) ListEnrollments(_ context.Context, _ service.Actor, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Enrollment{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (m *enrollmentWorkflowMock) GetEnrollment(_ context.Context, _ service.Actor, id string) (*models.Enrollment, error) {
	return &models.Enrollment{ID: id}, nil
}

func (m *enrollmentWorkflowMock) DecideEnrollment(_ context.Context, _ service.Actor, id string, decision models.EnrollmentStatus, _ *time.Time) (*models.Enrollment, error) {
	m.decideCalled = true
	m.lastDecision = decision
	return &models.Enrollment{ID: id, Status: decision}, nil
}

func (m *enrollmentWorkflowMock) WithdrawEnrollment(_ context.Context, _ service.Actor, id string, _ *time.Time) (*models.Enrollment, error) {
	return &models.Enrollment{ID: id}, nil
}

func TestEnrollmentHandlerListFilter(t *testing.T) {
	mock := &enrollmentWorkflowMock{}
	h := NewEnrollmentHandler(mock)

	c, w := newTestContext(http.MethodGet, "/enrollments?classId=c1&status=pending&page=x", "", teacherClaims("t1"))
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EnrollmentFilter{ClassID: "c1", Status: models.EnrollmentStatusPending, Page: 1, PageSize: 20}, mock.lastFilter)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}

func TestEnrollmentHandlerDecide(t *testing.T) {
	mock := &enrollmentWorkflowMock{}
	h := NewEnrollmentHandler(mock)

	c, w := newTestContext(http.MethodPost, "/enrollments/e1/decision", `{"decision":"MAYBE"}`, teacherClaims("t1"))
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.Decide(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mock.decideCalled)

	c, w = newTestContext(http.MethodPost, "/enrollments/e1/decision", `{"decision":"APPROVED"}`, teacherClaims("t1"))
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.Decide(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EnrollmentStatusApproved, mock.lastDecision)
}
