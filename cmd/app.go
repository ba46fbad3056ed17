package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/docchat-be/config"
	"github.com/tieubaoca/docchat-be/logger"
	"github.com/tieubaoca/docchat-be/service"
)

// app holds what every command needs: configuration, a logger and the loaded
// document.
type app struct {
	cfg    *config.Config
	logger *logger.Logger
	store  *service.ContextStore
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if pdfPath, _ := cmd.Flags().GetString("pdf"); pdfPath != "" {
		cfg.PDFPath = pdfPath
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	log.Info("Loading PDF context", "path", cfg.PDFPath)
	store := service.LoadContextStore(service.NewPDFService(log), cfg.PDFPath, log)
	return &app{cfg: cfg, logger: log, store: store}, nil
}

func (a *app) newProvider(ctx context.Context) (service.CompletionProvider, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	switch a.cfg.Provider {
	case config.ProviderGemini:
		return service.NewGeminiService(ctx, a.cfg.GeminiKeys(), a.cfg.GeminiModel)
	default:
		return service.NewOpenAIService(a.cfg.AIEndpoint, a.cfg.OpenAIAPIKey, a.cfg.Model), nil
	}
}

func (a *app) newRelay(provider service.CompletionProvider) *service.CompletionRelay {
	return service.NewCompletionRelay(provider, service.RelayConfig{
		Timeout:         a.cfg.StreamTimeout,
		BufferSize:      a.cfg.StreamBuffer,
		UpstreamQPS:     a.cfg.Upstream.QPS,
		UpstreamBurst:   a.cfg.Upstream.Burst,
		BreakerFailures: a.cfg.Upstream.BreakerFailures,
		BreakerTimeout:  a.cfg.Upstream.BreakerTimeout,
		CostPer1KTokens: a.cfg.CostPer1KTokens,
	}, a.logger)
}
