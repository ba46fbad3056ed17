/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/tieubaoca/docchat-be/handler"
	"github.com/tieubaoca/docchat-be/metrics"
	"github.com/tieubaoca/docchat-be/service"
)

// startServerCmd represents the start command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the chat server",
	Long:  `Loads the PDF context and serves POST /chat, GET /ws, GET /pdf-info, GET /health and GET /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.logger.Sync()
		cfg := a.cfg

		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		provider, err := a.newProvider(ctx)
		if err != nil {
			return err
		}
		if closer, ok := provider.(io.Closer); ok {
			defer closer.Close()
		}

		// Initialize services
		relay := a.newRelay(provider)
		limiter := service.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		m := metrics.New()
		m.TrackRateLimitClients(limiter.Clients)

		// Initialize handlers
		chatHandler := handler.NewChatHandler(relay, limiter, a.store, m, a.logger, cfg.MaxMessageChars)
		router, err := handler.NewRouter(handler.RouterConfig{
			Chat:           chatHandler,
			WebSocket:      handler.NewWebSocketHandler(chatHandler, a.logger),
			Document:       handler.NewDocumentHandler(a.store),
			Metrics:        m,
			Logger:         a.logger,
			TrustedProxies: cfg.TrustedProxies,
		})
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("Starting server", "port", cfg.Port, "provider", provider.Name(), "contextLoaded", a.store.Loaded())
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Info("Shutting down server", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	gin.SetMode(gin.ReleaseMode)
	rootCmd.AddCommand(startServerCmd)
	startServerCmd.Flags().StringP("port", "p", "", "port to listen on (overrides port)")
}
