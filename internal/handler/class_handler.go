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
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	"github.com/noah-isme/classroom-workflow-api/pkg/response"
)

type classAuthoring interface {
	CreateClass(ctx context.Context, actor service.Actor, req dto.CreateClassRequest, now time.Time) (*models.Class, error)
	ListClasses(ctx context.Context, actor service.Actor) ([]models.Class, error)
	GetClass(ctx context.Context, actor service.Actor, classID string) (*models.Class, error)
	CreateAssignment(ctx context.Context, actor service.Actor, classID string, req dto.CreateAssignmentRequest, now time.Time) (*models.Assignment, error)
	ListAssignments(ctx context.Context, actor service.Actor, classID string) ([]models.Assignment, error)
	CreateExam(ctx context.Context, actor service.Actor, classID string, req dto.CreateExamRequest, now time.Time) (*models.Exam, error)
}

type joinRequester interface {
	RequestJoin(ctx context.Context, actor service.Actor, classID, code string, now *time.Time) (*models.Enrollment, error)
}

// ClassHandler exposes class authoring and the join request.
type ClassHandler struct {
	authoring classAuthoring
	joins     joinRequester
	clock     clock.Clock
}

// NewClassHandler constructs a class handler.
func NewClassHandler(authoring classAuthoring, joins joinRequester, clk clock.Clock) *ClassHandler {
	if clk == nil {
		clk = clock.System{}
	}
	return &ClassHandler{authoring: authoring, joins: joins, clock: clk}
}

// List godoc
// @Summary List classes taught by the caller
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	classes, err := h.authoring.ListClasses(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	class, err := h.authoring.GetClass(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.authoring.CreateClass(c.Request.Context(), actor, req, requestTime(c, h.clock))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Join godoc
// @Summary Request to join a class
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param payload body dto.JoinClassRequest true "Join code"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id}/join [post]
func (h *ClassHandler) Join(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.JoinClassRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.joins.RequestJoin(c.Request.Context(), actor, c.Param("id"), req.Code, middleware.NowOverride(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// ListAssignments godoc
// @Summary List class assignments
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/assignments [get]
func (h *ClassHandler) ListAssignments(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	assignments, err := h.authoring.ListAssignments(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// CreateAssignment godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param payload body dto.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{id}/assignments [post]
func (h *ClassHandler) CreateAssignment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	assignment, err := h.authoring.CreateAssignment(c.Request.Context(), actor, c.Param("id"), req, requestTime(c, h.clock))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// CreateExam godoc
// @Summary Create timed exam
// @Tags Exams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param payload body dto.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{id}/exams [post]
func (h *ClassHandler) CreateExam(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateExamRequest
	if !bindJSON(c, &req) {
		return
	}
	exam, err := h.authoring.CreateExam(c.Request.Context(), actor, c.Param("id"), req, requestTime(c, h.clock))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}
