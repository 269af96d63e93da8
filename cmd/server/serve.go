package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Abdurahmanit/property-service/internal/app"
	"github.com/Abdurahmanit/property-service/internal/config"
	"github.com/Abdurahmanit/property-service/internal/platform/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}

			log, err := logger.New(logger.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			log.Info("starting property-service",
				zap.String("version", version),
				zap.String("storage", cfg.Storage.Driver),
				zap.Int("port", cfg.HTTP.Port))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, log)
			if err != nil {
				log.Error("failed to initialize application", zap.Error(err))
				return err
			}
			return application.Run(ctx)
		},
	}
}

