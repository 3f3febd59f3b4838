package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/classroom-workflow-api/internal/middleware"
	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/service"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
	"github.com/noah-isme/classroom-workflow-api/pkg/response"
)

var requestValidator = validator.New()

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext resolves the caller or writes a 401.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return service.Actor{}, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, true
}

// bindJSON decodes and validates the body, writing a 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	if err := requestValidator.Struct(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return false
	}
	return true
}

// requestTime is the X-Workflow-Now override when present, else the clock.
func requestTime(c *gin.Context, clk clock.Clock) time.Time {
	if now := middleware.NowOverride(c); now != nil {
		return *now
	}
	return clk.Now()
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		size = 20
	}
	return page, size
}
