package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewCorsHandler allows any origin to call the API, including preflighted
// POST /chat requests from browser clients.
func NewCorsHandler() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:   []string{"X-Request-ID", "Retry-After"},
		MaxAge:          12 * time.Hour,
	})
}
