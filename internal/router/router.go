package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizora/session-engine/internal/config"
	"github.com/quizora/session-engine/internal/handler"
	"github.com/quizora/session-engine/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
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
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── Session operations ────────────────────────────────────────────
	sessions := router.Group("/api/v1/sessions")
	{
		sessions.POST("", handlers.Session.CreateSession)
		sessions.POST("/:session_id/start", handlers.Session.StartSession)
		sessions.GET("/:session_id/state", handlers.Session.GetState)
		sessions.POST("/:session_id/answers", handlers.Session.SelectAnswer)
		sessions.POST("/:session_id/navigate", handlers.Session.Navigate)
		sessions.POST("/:session_id/review", handlers.Session.ToggleReview)
		sessions.POST("/:session_id/submit", handlers.Session.Submit)
		sessions.POST("/:session_id/recover", handlers.Session.Recover)
		sessions.POST("/:session_id/suspend", handlers.Session.Suspend)
		sessions.POST("/:session_id/resume", handlers.Session.Resume)
	}

	// ─── WebSocket alerts ──────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:session_id/alerts", handlers.WS.SessionAlerts)
	}

	return router
}
