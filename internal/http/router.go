package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medibot/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	chatH *ChatHandler,
	jwtSvc *service.JWTService,
	relayH gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	auth := r.Group("/api/auth")
	auth.POST("/check-username", authH.CheckUsername)
	auth.POST("/username-exists", authH.UsernameExists)
	auth.POST("/check-email", authH.CheckEmail)
	auth.POST("/register", authH.Register)
	auth.POST("/verify", authH.Verify)
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.RefreshToken)
	auth.POST("/logout", authH.Logout)
	auth.GET("/profile/:userId", authH.Profile)

	chat := r.Group("/api/chat")
	chat.Use(JWTAuthMiddleware(jwtSvc))
	chat.POST("/startSession", chatH.StartSession)
	chat.POST("/save", chatH.SaveMessage)
	chat.PUT("/session/:sessionId", chatH.RenameSession)
	chat.GET("/sessions/user/:userId", chatH.ListSessions)
	chat.GET("/messages/:sessionId", chatH.ListMessages)
	chat.DELETE("/session/:sessionId", chatH.DeleteSession)
	chat.GET("/history/:userId", chatH.History)

	if relayH != nil {
		r.GET("/ws", relayH)
	}

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
