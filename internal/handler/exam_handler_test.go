package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-workflow-api/internal/middleware"
	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/service"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

type examWorkflowMock struct {
	attempt    *models.ExamAttempt
	err        error
	lastActor  service.Actor
	lastNow    *time.Time
	lastAnswer [3]string
	lastFilter models.AttemptFilter
}

func (m *examWorkflowMock) GetExam(_ context.Context, actor service.Actor, examID string) (*models.Exam, error) {
	m.lastActor = actor
	return &models.Exam{ID: examID}, m.err
}

func (m *examWorkflowMock) ListAttempts(_ context.Context, actor service.Actor, filter models.AttemptFilter, _ *time.Time) ([]models.ExamAttempt, *models.Pagination, error) {
	m.lastActor = actor
	m.lastFilter = filter
	return []models.ExamAttempt{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, m.err
}

func (m *examWorkflowMock) StartExam(_ context.Context, actor service.Actor, _ string, now *time.Time) (*models.ExamAttempt, error) {
	m.lastActor, m.lastNow = actor, now
	return m.attempt, m.err
}

func (m *examWorkflowMock) GetAttempt(_ context.Context, actor service.Actor, _ string, now *time.Time) (*models.ExamAttempt, error) {
	m.lastActor, m.lastNow = actor, now
	return m.attempt, m.err
}

func (m *examWorkflowMock) AnswerQuestion(_ context.Context, actor service.Actor, attemptID, questionID, value string, now *time.Time) (*models.ExamAttempt, error) {
	m.lastActor, m.lastNow = actor, now
	m.lastAnswer = [3]string{attemptID, questionID, value}
	return m.attempt, m.err
}

func (m *examWorkflowMock) SubmitExam(_ context.Context, actor service.Actor, _ string, now *time.Time) (*models.ExamAttempt, error) {
	m.lastActor, m.lastNow = actor, now
	return m.attempt, m.err
}

func (m *examWorkflowMock) ExpireExam(_ context.Context, actor service.Actor, _ string, now *time.Time) (*models.ExamAttempt, error) {
	m.lastActor, m.lastNow = actor, now
	return m.attempt, m.err
}

func TestExamHandlerStartPassesOverride(t *testing.T) {
	mock := &examWorkflowMock{attempt: &models.ExamAttempt{ID: "a1", Status: models.AttemptStatusInProgress}}
	h := NewExamHandler(mock)

	c, w := newTestContext(http.MethodPost, "/exams/e1/attempts", "", studentClaims("s1"))
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	pinned := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c.Set(middleware.ContextNowKey, &pinned)

	h.Start(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mock.lastNow)
	assert.True(t, pinned.Equal(*mock.lastNow))
	assert.Equal(t, service.Actor{ID: "s1", Role: models.RoleStudent}, mock.lastActor)

	var body struct {
		Data models.ExamAttempt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "a1", body.Data.ID)
}

func TestExamHandlerAnswer(t *testing.T) {
	mock := &examWorkflowMock{attempt: &models.ExamAttempt{ID: "a1"}}
	h := NewExamHandler(mock)

	c, w := newTestContext(http.MethodPut, "/attempts/a1/answers/q1", `{"value":"4"}`, studentClaims("s1"))
	c.Params = gin.Params{{Key: "id", Value: "a1"}, {Key: "questionId", Value: "q1"}}
	h.Answer(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [3]string{"a1", "q1", "4"}, mock.lastAnswer)
	assert.Nil(t, mock.lastNow)
}

func TestExamHandlerMapsWorkflowErrors(t *testing.T) {
	mock := &examWorkflowMock{err: appErrors.Clone(appErrors.ErrDeadlineExceeded, "attempt deadline has passed")}
	h := NewExamHandler(mock)

	c, w := newTestContext(http.MethodPut, "/attempts/a1/answers/q1", `{"value":"4"}`, studentClaims("s1"))
	c.Params = gin.Params{{Key: "id", Value: "a1"}, {Key: "questionId", Value: "q1"}}
	h.Answer(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "DEADLINE_EXCEEDED")
}

func TestExamHandlerRequiresClaims(t *testing.T) {
	h := NewExamHandler(&examWorkflowMock{})
	c, w := newTestContext(http.MethodPost, "/attempts/a1/submit", "", nil)
	h.Submit(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExamHandlerListAttemptsFilter(t *testing.T) {
	mock := &examWorkflowMock{}
	h := NewExamHandler(mock)

	c, w := newTestContext(http.MethodGet, "/exams/e1/attempts?status=submitted&page=2&limit=5", "", teacherClaims("t1"))
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	h.ListAttempts(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AttemptFilter{ExamID: "e1", Status: models.AttemptStatusSubmitted, Page: 2, PageSize: 5}, mock.lastFilter)
}
