package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-workflow-api/internal/dto"
	"github.com/noah-isme/classroom-workflow-api/internal/middleware"
	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/service"
	"github.com/noah-isme/classroom-workflow-api/pkg/response"
)

type examWorkflow interface {
	GetExam(ctx context.Context, actor service.Actor, examID string) (*models.Exam, error)
	ListAttempts(ctx context.Context, actor service.Actor, filter models.AttemptFilter, now *time.Time) ([]models.ExamAttempt, *models.Pagination, error)
	StartExam(ctx context.Context, actor service.Actor, examID string, now *time.Time) (*models.ExamAttempt, error)
	GetAttempt(ctx context.Context, actor service.Actor, attemptID string, now *time.Time) (*models.ExamAttempt, error)
	AnswerQuestion(ctx context.Context, actor service.Actor, attemptID, questionID, value string, now *time.Time) (*models.ExamAttempt, error)
	SubmitExam(ctx context.Context, actor service.Actor, attemptID string, now *time.Time) (*models.ExamAttempt, error)
	ExpireExam(ctx context.Context, actor service.Actor, attemptID string, now *time.Time) (*models.ExamAttempt, error)
}

// ExamHandler exposes exam definitions and attempts.
type ExamHandler struct {
	workflow examWorkflow
}

// NewExamHandler constructs ExamHandler.
func NewExamHandler(workflow examWorkflow) *ExamHandler {
	return &ExamHandler{workflow: workflow}
}

// Get godoc
// @Summary Get exam
// @Description Students receive the exam without correct answers.
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	exam, err := h.workflow.GetExam(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exam, nil)
}

// ListAttempts godoc
// @Summary List attempts for an exam
// @Tags Exams
// @Produce json
// @Security BearerAuth
// @Param id path string true "Exam ID"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/attempts [get]
func (h *ExamHandler) ListAttempts(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.AttemptFilter{
		ExamID:    c.Param("id"),
		StudentID: c.Query("studentId"),
		Status:    models.AttemptStatus(strings.ToUpper(c.Query("status"))),
	}
	filter.Page, filter.PageSize = pageParams(c)

	attempts, pagination, err := h.workflow.ListAttempts(c.Request.Context(), actor, filter, middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempts, pagination)
}

// Start godoc
// @Summary Start an exam attempt
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Exam ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams/{id}/attempts [post]
func (h *ExamHandler) Start(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	attempt, err := h.workflow.StartExam(c.Request.Context(), actor, c.Param("id"), middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attempt)
}

// GetAttempt godoc
// @Summary Get attempt
// @Description An attempt past its deadline is expired and scored before it is returned.
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Success 200 {object} response.Envelope
// @Router /attempts/{id} [get]
func (h *ExamHandler) GetAttempt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	attempt, err := h.workflow.GetAttempt(c.Request.Context(), actor, c.Param("id"), middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempt, nil)
}

// Answer godoc
// @Summary Record an answer
// @Tags Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Param questionId path string true "Question ID"
// @Param payload body dto.AnswerQuestionRequest true "Answer"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attempts/{id}/answers/{questionId} [put]
func (h *ExamHandler) Answer(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AnswerQuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	attempt, err := h.workflow.AnswerQuestion(c.Request.Context(), actor, c.Param("id"), c.Param("questionId"), req.Value, middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempt, nil)
}

// Submit godoc
// @Summary Submit an attempt for scoring
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attempts/{id}/submit [post]
func (h *ExamHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	attempt, err := h.workflow.SubmitExam(c.Request.Context(), actor, c.Param("id"), middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempt, nil)
}

// Expire godoc
// @Summary Expire an attempt past its deadline
// @Tags Attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attempts/{id}/expire [post]
func (h *ExamHandler) Expire(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	attempt, err := h.workflow.ExpireExam(c.Request.Context(), actor, c.Param("id"), middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempt, nil)
}
