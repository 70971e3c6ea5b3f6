package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, chatH *ChatHandler) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging y recovery. El content-type se fija por
	// handler porque el envio de turnos responde text/event-stream.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.POST("/session", chatH.CreateSession)
	r.GET("/session/:id/history", chatH.GetHistory)
	r.POST("/session/:id/reset", chatH.ResetSession)
	r.POST("/session/:id/attachment", chatH.StageAttachment)
	r.DELETE("/session/:id/attachment", chatH.RemoveAttachment)
	r.POST("/session/:id/message", chatH.PostMessage)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
