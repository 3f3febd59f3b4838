package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
	"github.com/noah-isme/classroom-workflow-api/pkg/response"
)

const (
	// HeaderWorkflowNow lets non-production callers pin the workflow clock.
	HeaderWorkflowNow = "X-Workflow-Now"
	// ContextNowKey stores the parsed override.
	ContextNowKey = "workflowNow"
)

// WorkflowNow parses the X-Workflow-Now header (RFC3339) when enabled.
// When disabled the header is ignored.
func WorkflowNow(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderWorkflowNow)
		if !enabled || raw == "" {
			c.Next()
			return
		}
		now, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, HeaderWorkflowNow+" must be RFC3339"))
			c.Abort()
			return
		}
		now = now.UTC()
		c.Set(ContextNowKey, &now)
		c.Next()
	}
}

// NowOverride returns the pinned time, or nil to use the server clock.
func NowOverride(c *gin.Context) *time.Time {
	value, exists := c.Get(ContextNowKey)
	if !exists {
		return nil
	}
	now, _ := value.(*time.Time)
	return now
}
