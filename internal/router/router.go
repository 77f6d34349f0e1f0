package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health  *handler.HealthHandler
	Session *handler.SessionHandler
	Exam    *handler.ExamHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background goroutines owned by middlewares.
func SetupRouter(
	ctx context.Context,
	authService middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Session state changes every second; nothing here may be cached.
	router.Use(middleware.NoStore())

	// Health check.
	router.GET("/health", handlers.Health.Health)

	studentLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)

	// ─── 1. Student Group (JWT + Rate Limit) ───────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		studentLimiter.Middleware(),
	)
	{
		studentAPI.POST("/exams/:exam_id/access", handlers.Session.RequestAccess)

		sessions := studentAPI.Group("/sessions/:session_id")
		sessions.GET("/sync", handlers.Session.Sync)
		sessions.POST("/heartbeat", handlers.Session.Heartbeat)
		sessions.GET("/questions", handlers.Session.GetQuestions)
		sessions.PUT("/answers/:question_id", handlers.Session.SaveAnswer)
		sessions.POST("/answers", handlers.Session.SaveAnswerBatch)
		sessions.GET("/answers", handlers.Session.GetAnswers)
		sessions.POST("/violations", handlers.Session.LogViolation)
		sessions.GET("/violations", handlers.Session.GetViolations)
		sessions.POST("/submit", handlers.Session.Submit)
		sessions.POST("/auto-submit", handlers.Session.AutoSubmit)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	// ─── 3. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		exams := adminAPI.Group("/exams/:exam_id")
		exams.Use(middleware.RequirePermission(service.PermissionExamManage))
		exams.POST("/ready", handlers.Exam.MarkReady)
		exams.POST("/publish", handlers.Exam.Publish)
		exams.POST("/activate", handlers.Exam.Activate)
		exams.POST("/refresh-cache", handlers.Exam.RefreshCache)

		adminAPI.GET("/sessions/:session_id/violations",
			middleware.RequireAnyPermission(service.PermissionViolationReview, service.PermissionExamManage),
			handlers.Session.GetViolations,
		)
	}

	return router
}
