package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-workflow-api/internal/dto"
	"github.com/noah-isme/classroom-workflow-api/internal/middleware"
	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/service"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

type classAuthoringMock struct {
	lastNow  time.Time
	lastName string
}

func (m *classAuthoringMock) CreateClass(_ context.Context, actor service.Actor, req dto.CreateClassRequest, now time.Time) (*models.Class, error) {
	m.lastNow, m.lastName = now, req.Name
	return &models.Class{ID: "c1", Name: req.Name, TeacherID: actor.ID, CreatedAt: now}, nil
}

func (m *classAuthoringMock) ListClasses(context.Context, service.Actor) ([]models.Class, error) {
	return []models.Class{}, nil
}

func (m *classAuthoringMock) GetClass(_ context.Context, _ service.Actor, id string) (*models.Class, error) {
	return &models.Class{ID: id}, nil
}

func (m *classAuthoringMock) CreateAssignment(_ context.Context, _ service.Actor, classID string, req dto.CreateAssignmentRequest, now time.Time) (*models.Assignment, error) {
	m.lastNow = now
	return &models.Assignment{ClassID: classID, Title: req.Title}, nil
}

func (m *classAuthoringMock) ListAssignments(context.Context, service.Actor, string) ([]models.Assignment, error) {
	return []models.Assignment{}, nil
}

func (m *classAuthoringMock) CreateExam(_ context.Context, _ service.Actor, classID string, req dto.CreateExamRequest, now time.Time) (*models.Exam, error) {
	m.lastNow = now
	return &models.Exam{ClassID: classID, Title: req.Title}, nil
}

type joinMock struct {
	code string
	err  error
}

func (m *joinMock) RequestJoin(_ context.Context, actor service.Actor, classID, code string, _ *time.Time) (*models.Enrollment, error) {
	m.code = code
	if m.err != nil {
		return nil, m.err
	}
	return &models.Enrollment{ID: "e1", ClassID: classID, StudentID: actor.ID, Status: models.EnrollmentStatusPending}, nil
}

func TestClassHandlerCreateUsesClock(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	authoring := &classAuthoringMock{}
	h := NewClassHandler(authoring, &joinMock{}, clock.Fixed(now))

	c, w := newTestContext(http.MethodPost, "/classes", `{"name":"Biology"}`, teacherClaims("t1"))
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Biology", authoring.lastName)
	assert.True(t, now.Equal(authoring.lastNow))
}

func TestClassHandlerCreateHonoursOverride(t *testing.T) {
	authoring := &classAuthoringMock{}
	h := NewClassHandler(authoring, &joinMock{}, clock.Fixed(time.Now()))
	pinned := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c, w := newTestContext(http.MethodPost, "/classes", `{"name":"Biology"}`, teacherClaims("t1"))
	c.Set(middleware.ContextNowKey, &pinned)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, pinned.Equal(authoring.lastNow))
}

func TestClassHandlerCreateRejectsMissingName(t *testing.T) {
	h := NewClassHandler(&classAuthoringMock{}, &joinMock{}, nil)
	c, w := newTestContext(http.MethodPost, "/classes", `{}`, teacherClaims("t1"))
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassHandlerJoin(t *testing.T) {
	joins := &joinMock{}
	h := NewClassHandler(&classAuthoringMock{}, joins, nil)

	c, w := newTestContext(http.MethodPost, "/classes/c1/join", `{"code":"phy12345"}`, studentClaims("s1"))
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	h.Join(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "phy12345", joins.code)

	joins.err = appErrors.Clone(appErrors.ErrInvalidCode, "join code does not match")
	c, w = newTestContext(http.MethodPost, "/classes/c1/join", `{"code":"nope"}`, studentClaims("s1"))
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	h.Join(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CODE")
}
