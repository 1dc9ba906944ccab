package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lawyrs/internal/api"
	"lawyrs/internal/domain"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metricsPath := ""
			if cfg.Metrics.Enabled {
				metricsPath = cfg.Metrics.Path
			}
			router := api.NewRouter(api.Deps{
				Assistant:   a.orch,
				Sessions:    a.store,
				History:     a.store,
				Memory:      a.hybrid,
				Store:       a.store,
				Remote:      a.crew,
				LLM:         a.llm,
				Principal:   domain.Principal(cfg.Assistant.Principal),
				APIKey:      cfg.Server.APIKey,
				MetricsPath: metricsPath,
				Version:     version,
				Logger:      logger,
			})
			if cfg.Server.APIKey == "" {
				logger.Warn("server.apiKey is empty; the assistant API is unauthenticated")
			}

			return api.Serve(ctx, api.ServerConfig{
				Host:         cfg.Server.Host,
				Port:         cfg.Server.Port,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				Logger:       logger,
			}, router)
		},
	}
}
