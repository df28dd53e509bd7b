package api

import (
	"alcyxob/course-marketplace/internal/domain"
	"alcyxob/course-marketplace/internal/logger"
	"alcyxob/course-marketplace/internal/metrics"
	"alcyxob/course-marketplace/internal/service"
	"alcyxob/course-marketplace/internal/tracing"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig holds the engine-level middleware settings.
type RouterConfig struct {
	AllowedOrigins []string
	TracingEnabled bool
	ServiceName    string
}

// NewRouter builds the engine with the global middleware chain. m may be nil.
func NewRouter(cfg RouterConfig, log *logger.Logger, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", RequestIDHeader},
			ExposeHeaders:    []string{RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.TracingEnabled {
		router.Use(tracing.Middleware(cfg.ServiceName))
	}
	if m != nil {
		router.Use(m.Middleware())
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	return router
}

// Services bundles what the handlers depend on.
type Services struct {
	Auth       service.AuthService
	Catalog    service.CatalogService
	Enrollment service.EnrollmentService
	Order      service.OrderService
}

func SetupRoutes(router *gin.Engine, jwtSecret string, log *logger.Logger, svc Services) {
	authHandler := NewAuthHandler(svc.Auth, log)
	catalogHandler := NewCatalogHandler(svc.Catalog, svc.Enrollment, log)
	enrollmentHandler := NewEnrollmentHandler(svc.Enrollment, svc.Catalog, log)
	orderHandler := NewOrderHandler(svc.Order, log)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", authHandler.Me)

		// --- Catalog ---
		protected.GET("/courses", catalogHandler.ListCourses)
		protected.GET("/courses/:courseId", catalogHandler.GetCourse)
		protected.GET("/courses/:courseId/lessons", catalogHandler.ListLessons)

		// --- Instructor ---
		instructorGroup := protected.Group("/instructor")
		instructorGroup.Use(RoleMiddleware(domain.RoleInstructor))
		{
			instructorGroup.POST("/courses", catalogHandler.CreateCourse)
			instructorGroup.POST("/courses/:courseId/lessons", catalogHandler.AddLesson)
			instructorGroup.POST("/courses/:courseId/publish", catalogHandler.PublishCourse)
			instructorGroup.POST("/courses/:courseId/enrollments", catalogHandler.GrantEnrollment)
			instructorGroup.POST("/lessons/:lessonId/video-upload-url", catalogHandler.RequestVideoUploadURL)
			instructorGroup.POST("/lessons/:lessonId/video", catalogHandler.ConfirmVideo)
		}

		// --- Orders ---
		orderGroup := protected.Group("/orders")
		orderGroup.Use(RoleMiddleware(domain.RoleStudent))
		{
			orderGroup.POST("", orderHandler.CreateOrder)
			orderGroup.GET("", orderHandler.ListOrders)
			orderGroup.GET("/:orderId", orderHandler.GetOrder)
			orderGroup.POST("/:orderId/pay", orderHandler.PayOrder)
		}

		// --- Learning ---
		enrollmentGroup := protected.Group("/enrollments")
		{
			enrollmentGroup.GET("", enrollmentHandler.ListMyEnrollments)
			enrollmentGroup.GET("/summary", enrollmentHandler.GetSummary)
			enrollmentGroup.GET("/:courseId/progress", enrollmentHandler.GetProgress)
			enrollmentGroup.POST("/:courseId/lessons/:lessonId/progress", enrollmentHandler.RecordLessonProgress)
			enrollmentGroup.GET("/:courseId/lessons/:lessonId/video-url", enrollmentHandler.GetLessonVideoURL)

			enrollmentGroup.GET("/:courseId/notes", enrollmentHandler.ListNotes)
			enrollmentGroup.POST("/:courseId/notes", enrollmentHandler.AddNote)
			enrollmentGroup.DELETE("/notes/:noteId", enrollmentHandler.DeleteNote)

			enrollmentGroup.GET("/:courseId/bookmarks", enrollmentHandler.ListBookmarks)
			enrollmentGroup.POST("/:courseId/bookmarks", enrollmentHandler.AddBookmark)
			enrollmentGroup.DELETE("/bookmarks/:bookmarkId", enrollmentHandler.DeleteBookmark)
		}

		// --- Admin ---
		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.PATCH("/enrollments/:enrollmentId/status", enrollmentHandler.SetStatus)
		}
	}
}
