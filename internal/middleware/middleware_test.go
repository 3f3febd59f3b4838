package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type observed struct {
	method, path string
	status       int
}

type stubObserver struct{ calls []observed }

func (s *stubObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	s.calls = append(s.calls, observed{method: method, path: path, status: status})
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/guarded", append(handlers, func(c *gin.Context) {
		claims, _ := Claims(c)
		c.JSON(http.StatusOK, gin.H{"user": claims.UserID})
	})...)
	return r
}

func serve(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRoles(t *testing.T) {
	tokens := stubTokens{
		"teacher-token": {UserID: "t1", Role: models.RoleTeacher},
		"student-token": {UserID: "s1", Role: models.RoleStudent},
	}
	r := newEngine(JWT(tokens), RequireRoles(models.RoleTeacher, models.RoleAdmin))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Token teacher-token").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer forged").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, "Bearer student-token").Code)

	w := serve(r, "bearer teacher-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"t1"`)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	r := newEngine(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &stubObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/attempts/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/attempts/a1", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, observer.calls, 2)
	assert.Equal(t, observed{method: http.MethodGet, path: "/attempts/:id", status: http.StatusNoContent}, observer.calls[0])
	assert.Equal(t, "unmatched", observer.calls[1].path)
	assert.Equal(t, http.StatusNotFound, observer.calls[1].status)
}

func TestWorkflowNowOverride(t *testing.T) {
	gin.SetMode(gin.TestMode)
	build := func(enabled bool) *gin.Engine {
		r := gin.New()
		r.Use(WorkflowNow(enabled))
		r.GET("/now", func(c *gin.Context) {
			if now := NowOverride(c); now != nil {
				c.String(http.StatusOK, now.Format(time.RFC3339))
				return
			}
			c.String(http.StatusOK, "server")
		})
		return r
	}
	call := func(r http.Handler, value string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/now", nil)
		req.Header.Set(HeaderWorkflowNow, value)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := call(build(true), "2026-03-01T10:00:00+02:00")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-03-01T08:00:00Z", w.Body.String())

	assert.Equal(t, http.StatusBadRequest, call(build(true), "yesterday").Code)
	assert.Equal(t, "server", call(build(false), "2026-03-01T10:00:00Z").Body.String())
}
