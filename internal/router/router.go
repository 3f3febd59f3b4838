package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-workflow-api/internal/handler"
	"github.com/noah-isme/classroom-workflow-api/internal/middleware"
	"github.com/noah-isme/classroom-workflow-api/internal/models"
	"github.com/noah-isme/classroom-workflow-api/internal/service"
	"github.com/noah-isme/classroom-workflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classroom-workflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classroom-workflow-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by New. Exports may be nil when
// exports are disabled.
type Handlers struct {
	Classes     *handler.ClassHandler
	Enrollments *handler.EnrollmentHandler
	Assignments *handler.AssignmentHandler
	Exams       *handler.ExamHandler
	Exports     *handler.ExportHandler
	Audit       *handler.AuditHandler
	Metrics     *handler.MetricsHandler
}

// Options tunes routing behaviour per environment.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	// AllowClockOverride honours the X-Workflow-Now header.
	AllowClockOverride bool
}

// New builds the gin engine with the full command surface.
func New(logr *zap.Logger, tokens *service.TokenService, metrics *service.MetricsService, h Handlers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(opts.APIPrefix, "/")
	api := r.Group(prefix)

	// Signed download links carry their own authorisation.
	if h.Exports != nil {
		api.GET("/exports/:token", h.Exports.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens), middleware.WorkflowNow(opts.AllowClockOverride))

	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)
	teacherOnly := middleware.RequireRoles(models.RoleTeacher)
	studentOnly := middleware.RequireRoles(models.RoleStudent)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	classes := secured.Group("/classes")
	classes.GET("", staff, h.Classes.List)
	classes.POST("", teacherOnly, h.Classes.Create)
	classes.GET("/:id", h.Classes.Get)
	classes.POST("/:id/join", studentOnly, h.Classes.Join)
	classes.GET("/:id/assignments", h.Classes.ListAssignments)
	classes.POST("/:id/assignments", teacherOnly, h.Classes.CreateAssignment)
	classes.POST("/:id/exams", teacherOnly, h.Classes.CreateExam)

	enrollments := secured.Group("/enrollments")
	enrollments.GET("", h.Enrollments.List)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.POST("/:id/decision", teacherOnly, h.Enrollments.Decide)
	enrollments.DELETE("/:id", studentOnly, h.Enrollments.Withdraw)

	assignments := secured.Group("/assignments")
	assignments.GET("/:id/submissions", staff, h.Assignments.List)
	assignments.GET("/:id/overdue", staff, h.Assignments.Overdue)
	assignments.GET("/:id/submission", studentOnly, h.Assignments.Mine)
	assignments.POST("/:id/submission", studentOnly, h.Assignments.Submit)

	submissions := secured.Group("/submissions")
	submissions.GET("/:id", h.Assignments.Get)
	submissions.POST("/:id/grade", teacherOnly, h.Assignments.Grade)

	exams := secured.Group("/exams")
	exams.GET("/:id", h.Exams.Get)
	exams.GET("/:id/attempts", staff, h.Exams.ListAttempts)
	exams.POST("/:id/attempts", studentOnly, h.Exams.Start)

	attempts := secured.Group("/attempts")
	attempts.GET("/:id", h.Exams.GetAttempt)
	attempts.PUT("/:id/answers/:questionId", studentOnly, h.Exams.Answer)
	attempts.POST("/:id/submit", studentOnly, h.Exams.Submit)
	attempts.POST("/:id/expire", h.Exams.Expire)

	if h.Exports != nil {
		secured.POST("/exports", staff, h.Exports.Create)
	}

	secured.GET("/audit-logs", adminOnly, h.Audit.List)
	secured.GET("/admin/metrics", adminOnly, h.Metrics.Snapshot)

	return r
}
