package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/metrics"
	"github.com/tieubaoca/docchat-be/middleware"
)

type RouterConfig struct {
	Chat           *ChatHandler
	WebSocket      *WebSocketHandler
	Document       *DocumentHandler
	Metrics        *metrics.Metrics
	Logger         *logger.Logger
	TrustedProxies []string
}

func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	router := gin.New()

	var proxies []string
	if len(cfg.TrustedProxies) > 0 {
		proxies = cfg.TrustedProxies
	}
	if err := router.SetTrustedProxies(proxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(cfg.Logger),
		middleware.Recovery(cfg.Logger),
		NewCorsHandler(),
	)

	router.POST("/chat", cfg.Chat.HandleChat)
	router.GET("/ws", cfg.WebSocket.HandleChat)
	router.GET("/pdf-info", cfg.Document.HandlePDFInfo)
	router.GET("/health", cfg.Document.HandleHealth)
	router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	return router, nil
}
