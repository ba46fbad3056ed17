package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/types"
)

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"clientIP", c.ClientIP(),
			"requestID", c.GetString(RequestIDKey),
		)
	}
}

// Recovery turns a panic into a 500 {"detail": ...} response. Once a stream has
// committed its headers there is nothing left to send, so it only logs.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	log = log.With("component", "recovery")
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		log.Error("Panic while handling request", "path", c.Request.URL.Path, "panic", recovered)
		if c.Writer.Written() {
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, types.ErrorResponse{Detail: fmt.Sprint(recovered)})
	})
}
