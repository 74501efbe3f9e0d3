package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vbonduro/boardgamer/internal/config"
	"github.com/vbonduro/boardgamer/internal/identify"
	"github.com/vbonduro/boardgamer/internal/llm"
	"github.com/vbonduro/boardgamer/internal/llm/claude"
	"github.com/vbonduro/boardgamer/internal/llm/ollama"
	"github.com/vbonduro/boardgamer/internal/logging"
	"github.com/vbonduro/boardgamer/internal/metrics"
	"github.com/vbonduro/boardgamer/internal/recommend"
	"github.com/vbonduro/boardgamer/internal/web"
)

type serveCommander struct {
	listenAddr string
}

func newServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the identification and recommendation server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&cmder.listenAddr, "listen", "", "Listen address (overrides LISTEN_ADDR)")
	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.listenAddr != "" {
		cfg.Server.ListenAddr = c.listenAddr
	}

	logger, cleanup, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to initialise logging: %w", err)
	}
	defer cleanup()

	provider, err := newProvider(cfg.Model)
	if err != nil {
		return err
	}
	logger.Info("model backend selected", "backend", provider.Name())

	m := metrics.New()
	pipeline := identify.NewPipeline(provider, provider, m, identify.DefaultBreakerSettings)
	svc := recommend.NewService(provider)

	srv := web.NewServer(pipeline, svc, m, logger, web.Options{
		MaxImageBytes:     cfg.Server.MaxImageBytes,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		CORSOrigins:       cfg.Server.CORSOrigins,
	})

	if err := srv.ListenAndServe(ctx, cfg.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		return err
	}
	return nil
}

func newProvider(cfg config.ModelConfig) (llm.Provider, error) {
	switch cfg.Backend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			return nil, errors.New("CLAUDE_API_KEY is required when MODEL_BACKEND=claude")
		}
		var opts []claude.Option
		if cfg.ClaudeBaseURL != "" {
			opts = append(opts, claude.WithBaseURL(cfg.ClaudeBaseURL))
		}
		return claude.New(cfg.ClaudeAPIKey, cfg.ClaudeVisionModel, cfg.ClaudeTextModel, opts...), nil
	case "ollama":
		slog.Debug("using ollama", "host", cfg.OllamaHost)
		return ollama.New(cfg.OllamaHost, cfg.OllamaVisionModel, cfg.OllamaTextModel), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
}
