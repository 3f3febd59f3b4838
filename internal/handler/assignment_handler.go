package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-workflow-api/internal/dto"
	"github.com/noah-isme/classroom-workflow-api/internal/middleware"
	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/service"
	"github.com/noah-isme/classroom-workflow-api/pkg/response"
)

type submissionWorkflow interface {
	SubmitAssignment(ctx context.Context, actor service.Actor, assignmentID, content string, now *time.Time) (*models.SubmissionView, error)
	GradeSubmission(ctx context.Context, actor service.Actor, submissionID string, marks float64, feedback *string, now *time.Time) (*models.SubmissionView, error)
	GetSubmission(ctx context.Context, actor service.Actor, id string, now *time.Time) (*models.SubmissionView, error)
	MySubmission(ctx context.Context, actor service.Actor, assignmentID string, now *time.Time) (*models.SubmissionView, error)
	ListSubmissions(ctx context.Context, actor service.Actor, assignmentID string, now *time.Time) ([]models.SubmissionView, error)
	ListOverdue(ctx context.Context, actor service.Actor, assignmentID string, now *time.Time) ([]models.SubmissionView, error)
}

// AssignmentHandler exposes the submission lifecycle.
type AssignmentHandler struct {
	workflow submissionWorkflow
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(workflow submissionWorkflow) *AssignmentHandler {
	return &AssignmentHandler{workflow: workflow}
}

// Submit godoc
// @Summary Submit work for an assignment
// @Description Submitting after the due date succeeds with status LATE.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param payload body dto.SubmitAssignmentRequest true "Submission"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/submission [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.workflow.SubmitAssignment(c.Request.Context(), actor, c.Param("id"), req.Content, middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Mine godoc
// @Summary Get the caller's submission for an assignment
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submission [get]
func (h *AssignmentHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.workflow.MySubmission(c.Request.Context(), actor, c.Param("id"), middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// List godoc
// @Summary List submissions for an assignment
// @Description Includes a PENDING or OVERDUE row for every admitted student who has not submitted.
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	views, err := h.workflow.ListSubmissions(c.Request.Context(), actor, c.Param("id"), middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Overdue godoc
// @Summary List overdue submissions
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/overdue [get]
func (h *AssignmentHandler) Overdue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	views, err := h.workflow.ListOverdue(c.Request.Context(), actor, c.Param("id"), middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Get godoc
// @Summary Get submission
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.workflow.GetSubmission(c.Request.Context(), actor, c.Param("id"), middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Grade godoc
// @Summary Grade or regrade a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param payload body dto.GradeSubmissionRequest true "Grade"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /submissions/{id}/grade [post]
func (h *AssignmentHandler) Grade(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.GradeSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.workflow.GradeSubmission(c.Request.Context(), actor, c.Param("id"), *req.Marks, req.Feedback, middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
