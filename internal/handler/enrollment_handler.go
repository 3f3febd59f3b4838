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

type enrollmentWorkflow interface {
	ListEnrollments(ctx context.Context, actor service.Actor, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error)
	GetEnrollment(ctx context.Context, actor service.Actor, id string) (*models.Enrollment, error)
	DecideEnrollment(ctx context.Context, actor service.Actor, enrollmentID string, decision models.EnrollmentStatus, now *time.Time) (*models.Enrollment, error)
	WithdrawEnrollment(ctx context.Context, actor service.Actor, enrollmentID string, now *time.Time) (*models.Enrollment, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	workflow enrollmentWorkflow
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(workflow enrollmentWorkflow) *EnrollmentHandler {
	return &EnrollmentHandler{workflow: workflow}
}

// List godoc
// @Summary List enrollments
// @Description Students see their own enrollments; teachers must filter by one of their classes.
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param classId query string false "Filter by class"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.EnrollmentFilter{
		ClassID:   c.Query("classId"),
		StudentID: c.Query("studentId"),
		Status:    models.EnrollmentStatus(strings.ToUpper(c.Query("status"))),
	}
	filter.Page, filter.PageSize = pageParams(c)

	enrollments, pagination, err := h.workflow.ListEnrollments(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.workflow.GetEnrollment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Decide godoc
// @Summary Approve or reject a pending enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param payload body dto.EnrollmentDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/decision [post]
func (h *EnrollmentHandler) Decide(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.EnrollmentDecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.workflow.DecideEnrollment(c.Request.Context(), actor, c.Param("id"), models.EnrollmentStatus(req.Decision), middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Withdraw godoc
// @Summary Withdraw from a class
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.workflow.WithdrawEnrollment(c.Request.Context(), actor, c.Param("id"), middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
