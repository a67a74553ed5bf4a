package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vidtube/internal/cdn"
	"vidtube/internal/config"
	"vidtube/internal/events"
	"vidtube/internal/logging"
)

func main() {
	var cfgPath string

	cmd := &cobra.Command{
		Use:          "vidtube-worker",
		Short:        "Consume video lifecycle events and clean up remote assets",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "config file (default ./configs/config.yaml)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(parent context.Context, cfg *config.Config) error {
	if cfg.Events.QueueURL == "" {
		return errors.New("events.queue_url is required")
	}
	if cfg.Log.Service == "vidtube-web" {
		cfg.Log.Service = "vidtube-worker"
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger.Logger)
	log := logger.Logger

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(logging.WithContext(parent, log), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploader, err := cdn.New(ctx, cfg.CDN)
	if err != nil {
		return fmt.Errorf("failed to create %s uploader: %w", cfg.CDN.Driver, err)
	}
	if c, ok := uploader.(io.Closer); ok {
		defer c.Close()
	}

	consumer, err := events.NewSQSConsumer(ctx, cfg.Events.QueueURL, cfg.Events.Region, log)
	if err != nil {
		return err
	}

	log.Info("worker started", zap.String("queue_url", cfg.Events.QueueURL), zap.String("cdn", cfg.CDN.Driver))
	err = consumer.Run(ctx, events.AssetCleanup(uploader, log))
	log.Info("worker stopped")
	return err
}
