package api

import (
	"time"

	"androidmirror/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Services bundles what the handlers depend on
type Services struct {
	Devices     *service.DeviceManager
	Launcher    *service.MirrorLauncher
	Settings    *service.SettingsStore
	Hub         *WebSocketHub
	ScanLimiter *rate.Limiter // nil disables rate limiting
}

func SetupRoutes(router *gin.Engine, s Services) {
	// Enable CORS
	router.Use(CORSMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		devices := api.Group("/devices")
		{
			devices.GET("", func(c *gin.Context) {
				GetDevices(c, s.Devices)
			})
			devices.POST("/scan", RateLimitMiddleware(s.ScanLimiter), func(c *gin.Context) {
				ScanDevices(c, s.Devices)
			})
			devices.GET("/:id", func(c *gin.Context) {
				GetDevice(c, s.Devices)
			})
			devices.GET("/:id/apps", func(c *gin.Context) {
				GetDeviceApps(c, s.Devices)
			})
			devices.POST("/:id/mirror", func(c *gin.Context) {
				MirrorDevice(c, s.Launcher)
			})
			devices.POST("/:id/apps/:pkg/mirror", func(c *gin.Context) {
				MirrorApp(c, s.Launcher)
			})
		}

		sessions := api.Group("/sessions")
		{
			sessions.GET("", func(c *gin.Context) {
				ListSessions(c, s.Launcher)
			})
			sessions.DELETE("/:sid", func(c *gin.Context) {
				StopSession(c, s.Launcher)
			})
		}

		api.GET("/settings", func(c *gin.Context) {
			GetSettings(c, s.Settings)
		})
		api.PUT("/settings", func(c *gin.Context) {
			UpdateSettings(c, s.Settings)
		})
	}

	// WebSocket route
	router.GET("/ws", func(c *gin.Context) {
		HandleWebSocket(s.Hub, c)
	})
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Debug()
		if c.Writer.Status() >= 500 {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}
