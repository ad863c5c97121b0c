package router

import (
	"net/http"
	"time"

	"github.com/backtrackjee/portal-backend/internal/config"
	"github.com/backtrackjee/portal-backend/internal/handler"
	"github.com/backtrackjee/portal-backend/internal/middleware"
	"github.com/backtrackjee/portal-backend/internal/response"
	"github.com/backtrackjee/portal-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers bundles every HTTP handler the router wires up.
type Handlers struct {
	Auth    *handler.AuthHandler
	Exam    *handler.ExamHandler
	Attempt *handler.AttemptHandler
	Result  *handler.ResultHandler
	WS      *handler.WSHandler
}

// New builds the Gin engine with all routes and middleware.
func New(cfg *config.Config, auth *service.AuthService, h Handlers) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(response.RequestIDMiddleware())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true // dev default
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Question images are immutable once imported; cache them hard.
	images := r.Group("/images", middleware.CacheControl(24*time.Hour))
	images.Static("/", cfg.ImageDir)

	// Auth routes take a tighter rate limit than the rest of the API.
	authLimiter := middleware.NewRateLimiter(0.5, 10)
	authGroup := r.Group("/api/v1/auth", authLimiter.Middleware())
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
	}

	portal := r.Group("/api/v1/portal",
		middleware.RequireUserJWT(auth),
		middleware.CheckSession(auth),
	)
	{
		portal.GET("/me", h.Auth.Me)
		portal.PUT("/me", h.Auth.UpdateProfile)
		portal.POST("/logout", h.Auth.Logout)

		portal.GET("/exams", h.Exam.List)
		portal.GET("/exams/:year/:slot/paper", h.Exam.GetPaper)

		portal.POST("/attempts", h.Attempt.Start)
		portal.GET("/attempts/:attempt_id", h.Attempt.State)
		portal.PUT("/attempts/:attempt_id/answers/:question_id", h.Attempt.SetAnswer)
		portal.POST("/attempts/:attempt_id/marks/:question_id", h.Attempt.ToggleReview)
		portal.POST("/attempts/:attempt_id/submit", h.Attempt.Submit)
		portal.POST("/attempts/:attempt_id/timeout", h.Attempt.Timeout)

		portal.GET("/results/:year/:slot", h.Result.Get)
	}

	stream := r.Group("/ws/v1",
		middleware.RequireUserJWT(auth),
		middleware.CheckSession(auth),
	)
	{
		stream.GET("/attempts/:attempt_id", h.WS.AttemptStream)
	}

	return r
}
