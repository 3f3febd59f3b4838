package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
	"github.com/noah-isme/classroom-workflow-api/pkg/response"
)

type auditReader interface {
	ListByResource(ctx context.Context, resource, resourceID string) ([]models.AuditLog, error)
}

// AuditHandler exposes the audit trail recorded from workflow effects.
type AuditHandler struct {
	audits auditReader
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audits auditReader) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// List godoc
// @Summary Audit trail of one entity
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param resource query string true "Resource kind (enrollment, submission, exam_attempt)"
// @Param resourceId query string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	resource, resourceID := c.Query("resource"), c.Query("resourceId")
	if resource == "" || resourceID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "resource and resourceId are required"))
		return
	}
	logs, err := h.audits.ListByResource(c.Request.Context(), resource, resourceID)
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to list audit logs"))
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
