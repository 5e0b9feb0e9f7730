package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/config"
	"github.com/stemsi/elearn-backend/internal/handler"
	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Course  *handler.CourseHandler
	Test    *handler.TestHandler
	Student *handler.StudentHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// Guards are the auth collaborators of the middleware chain.
type Guards struct {
	Tokens     middleware.TokenValidator
	Activation middleware.ActivationChecker
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by the router, such as the rate limiter sweep.
func SetupRouter(
	ctx context.Context,
	guards Guards,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware(log))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	authenticated := []gin.HandlerFunc{
		middleware.RequireAuth(guards.Tokens),
		middleware.RequireActive(guards.Activation, log),
	}
	withRole := func(role model.Role) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, authenticated...), middleware.RequireRole(role))
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	if cfg.AuthRatePerMinute > 0 {
		auth.Use(middleware.NewRateLimiter(ctx, cfg.AuthRatePerMinute, time.Minute).Middleware())
	}
	{
		auth.POST("/student/register", handlers.Auth.Register(model.RoleStudent))
		auth.POST("/teacher/register", handlers.Auth.Register(model.RoleTeacher))
		auth.POST("/student/login", handlers.Auth.Login(model.RoleStudent))
		auth.POST("/teacher/login", handlers.Auth.Login(model.RoleTeacher))
		auth.POST("/admin/login", handlers.Auth.Login(model.RoleAdmin))

		auth.GET("/me", append(authenticated, handlers.Auth.Me)...)
	}

	// ─── 2. Public Catalog ─────────────────────────────────────────────
	courses := router.Group("/api/v1/courses")
	{
		courses.GET("", handlers.Course.List)
		courses.GET("/:id", handlers.Course.Get)
	}

	// ─── 3. Teacher Group ──────────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(withRole(model.RoleTeacher)...)
	{
		teacherAPI.POST("/courses", handlers.Course.Create)
		teacherAPI.DELETE("/courses/:id", handlers.Course.Delete)
		teacherAPI.POST("/courses/:id/test", handlers.Test.Create)

		teacherAPI.GET("/tests/:id", handlers.Test.Get)
		teacherAPI.DELETE("/tests/:id", handlers.Test.Delete)
		teacherAPI.PUT("/tests/:id/questions", handlers.Test.ReplaceQuestions)
		teacherAPI.GET("/tests/:id/results", handlers.Test.Results)
	}

	// ─── 4. Student Group ──────────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(withRole(model.RoleStudent)...)
	{
		studentAPI.POST("/tests/submit", handlers.Student.Submit)
		studentAPI.GET("/tests/:test_id", handlers.Test.Paper)
		studentAPI.GET("/tests/:test_id/result", handlers.Student.Result)
		studentAPI.GET("/results", handlers.Student.Results)

		studentAPI.POST("/courses/start", handlers.Student.StartCourse)
		studentAPI.POST("/courses/complete", handlers.Student.CompleteCourse)
		studentAPI.PUT("/courses/progress", handlers.Student.UpdateProgress)
		studentAPI.GET("/courses/in-progress", handlers.Student.InProgress)
		studentAPI.GET("/courses/completed", handlers.Student.Completed)
		studentAPI.GET("/courses/:course_id/status", handlers.Student.CourseStatus)
	}

	// ─── 5. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(guards.Tokens),
		middleware.RequireActive(guards.Activation, log),
		middleware.RequireRole(model.RoleStudent),
	)
	{
		ws.GET("/student/tests/:test_id/stream", handlers.WS.TestStream)
	}

	// ─── 6. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(withRole(model.RoleAdmin)...)
	{
		adminAPI.PATCH("/accounts/:role/:id/activation", handlers.Auth.SetActivation)
		adminAPI.GET("/system/metrics", handlers.System.Metrics)
	}

	return router
}
