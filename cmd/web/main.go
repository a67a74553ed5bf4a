package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vidtube/internal/cdn"
	"vidtube/internal/config"
	"vidtube/internal/events"
	"vidtube/internal/logging"
	"vidtube/internal/media"
	"vidtube/internal/publish"
	"vidtube/internal/scratch"
	"vidtube/internal/video"
	"vidtube/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:          "vidtube-web",
		Short:        "Serve the video publishing API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ./configs/config.yaml)")
	cmd.Flags().StringVar(&host, "host", "localhost", "host address for the web server")
	cmd.Flags().IntVar(&port, "port", 8080, "port number for the web server")

	cmd.AddCommand(newTokenCmd(&cfgPath))
	return cmd
}

// newTokenCmd mints an access token for local testing; account management
// lives in another service.
func newTokenCmd(cfgPath *string) *cobra.Command {
	var (
		id  web.Identity
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			tok, err := web.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.CookieName).Issue(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.ID, "sub", "", "user id")
	cmd.Flags().StringVar(&id.Username, "username", "", "username")
	cmd.Flags().StringVar(&id.FullName, "full-name", "", "full name")
	cmd.Flags().StringVar(&id.Avatar, "avatar", "", "avatar URL")
	cmd.Flags().StringVar(&id.Role, "role", "", "role (admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("sub")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger.Logger)
	log := logger.Logger

	ctx, stop := signal.NotifyContext(logging.WithContext(parent, log), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir, err := scratch.New(cfg.Server.ScratchDir, log)
	if err != nil {
		return err
	}

	store, err := video.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	defer store.Close()

	uploader, err := cdn.New(ctx, cfg.CDN)
	if err != nil {
		return fmt.Errorf("failed to create %s uploader: %w", cfg.CDN.Driver, err)
	}
	if c, ok := uploader.(io.Closer); ok {
		defer c.Close()
	}

	pipeline := publish.New(media.NewFFmpeg(cfg.Media.FFmpegPath), uploader, store, dir, publish.Options{
		ThumbnailAt:     cfg.Media.ThumbnailAt,
		ThumbnailWidth:  cfg.Media.ThumbnailWidth,
		ThumbnailHeight: cfg.Media.ThumbnailHeight,
	})

	publisher := events.Nop
	if cfg.Events.QueueURL != "" {
		p, err := events.NewSQSPublisher(ctx, cfg.Events.QueueURL, cfg.Events.Region)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		publisher = p
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := web.RegisterMetrics(reg)
	if err != nil {
		return err
	}

	var mediaDir string
	if cfg.CDN.Driver == "fs" {
		mediaDir = cfg.CDN.BaseDir
	}

	srv := web.NewServer(web.Deps{
		Store:          store,
		Publisher:      pipeline,
		Uploader:       uploader,
		Events:         publisher,
		Scratch:        dir,
		Auth:           web.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.CookieName),
		Logger:         log,
		Metrics:        metrics,
		Gatherer:       reg,
		LogLevel:       logger.LevelHandler(),
		MediaDir:       mediaDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		CORSOrigins:    cfg.Server.CORSOrigins,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("web server listening",
			zap.String("addr", httpSrv.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("cdn", cfg.CDN.Driver),
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
