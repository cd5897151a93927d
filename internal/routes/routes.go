package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/suzukibelltree/SampleToDoApp/internal/handlers"
	"github.com/suzukibelltree/SampleToDoApp/internal/middleware"
)

// SetupRoutes builds the router. When validator is nil the API is open;
// otherwise every /api route requires a device token.
func SetupRoutes(h *handlers.TaskHandler, validator middleware.TokenValidator) *gin.Engine {
	ginRouter := gin.New()
	ginRouter.Use(gin.Logger(), gin.Recovery())

	// CORS middleware (for frontend integration)
	ginRouter.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", "Cache-Control", "X-Requested-With"},
		AllowWebSockets:  true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "SampleToDoApp is running",
		})
	})

	api := ginRouter.Group("/api")
	if validator != nil {
		api.Use(middleware.JWTAuthMiddleware(validator))
	}
	{
		// Home screen
		api.GET("/home", h.GetHome)
		api.POST("/home/filter", h.FilterHome)
		api.POST("/home/delete", h.HomeDeleteTask)
		api.POST("/home/switch", h.HomeSwitchTask)
		// Daily screen
		api.GET("/daily", h.GetDaily)
		api.POST("/daily/delete", h.DailyDeleteTask)
		api.POST("/daily/switch", h.DailySwitchTask)
		// Add and edit forms
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions/:id", h.GetSession)
		api.PATCH("/sessions/:id", h.UpdateSession)
		api.POST("/sessions/:id/save", h.SaveSession)
		api.DELETE("/sessions/:id", h.DeleteSession)
		// Live state
		api.GET("/ws/:topic", h.WebSocket)
	}

	return ginRouter
}
