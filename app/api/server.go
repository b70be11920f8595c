package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Routes
	setupRoutes(r, handler)

	return r
}

// setupRoutes configures all the application routes
func setupRoutes(r *gin.Engine, handler *Handler) {
	// Feed session endpoints
	r.POST("/sessions", handler.CreateSession)
	r.GET("/sessions/:id/feed", handler.GetFeed)
	r.POST("/sessions/:id/refresh", handler.Refresh)
	r.POST("/sessions/:id/more", handler.LoadMore)
	r.DELETE("/sessions/:id", handler.DestroySession)
	r.GET("/sessions/:id/images/:itemId", handler.GetImage)

	// Health and status endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "VisiBoard Discover",
			"description": "Location-tagged note feed with image materialization and masonry curation",
			"endpoints": map[string]string{
				"create_session": "POST /sessions",
				"feed":           "GET /sessions/<id>/feed",
				"refresh":        "POST /sessions/<id>/refresh",
				"more":           "POST /sessions/<id>/more",
				"destroy":        "DELETE /sessions/<id>",
				"image":          "GET /sessions/<id>/images/<itemId>",
				"health":         "GET /health",
				"stats":          "GET /stats",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}
