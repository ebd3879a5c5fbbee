package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formdesk"
	"github.com/goliatone/go-formdesk/internal/config"
	"github.com/goliatone/go-formdesk/internal/logging"
	"github.com/goliatone/go-formdesk/internal/metrics"
	"github.com/goliatone/go-formdesk/internal/server"
	"github.com/goliatone/go-formdesk/pkg/client"
	"github.com/goliatone/go-formdesk/pkg/definition"
	"github.com/goliatone/go-formdesk/pkg/table"
	"github.com/goliatone/go-formdesk/pkg/upload"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		configPath string
		defsDir    string
		address    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve editors and tables over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if defsDir != "" {
				cfg.Definitions.Dir = defsDir
			}
			if address != "" {
				cfg.HTTP.Address = address
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVarP(&defsDir, "definitions", "d", "", "Definitions directory (bundled samples when empty)")
	cmd.Flags().StringVar(&address, "addr", "", "Listen address")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Level, cfg.LogFormat())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, dict, err := formdesk.LoadDefinitions(definitionsFS(cfg.Definitions.Dir))
	if err != nil {
		return err
	}
	for _, issue := range definition.Lint(store, dict) {
		logger.Warn("definition issue", zap.String("issue", issue.String()))
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(metrics.New()),
		server.WithAllowedOrigins(cfg.HTTP.AllowedOrigins...),
	}
	if cfg.Backend.BaseURL != "" {
		backend, err := client.New(cfg.Backend.BaseURL,
			client.WithToken(cfg.Backend.Token),
			client.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
			client.WithLogger(logger.Named("client")),
		)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithRequester(backend), server.WithUploader(backend))
	} else {
		logger.Warn("no backend configured; saves and table loads will fail")
	}
	if cfg.Upload.Bucket != "" {
		uploader, err := upload.New(cfg.Upload, upload.WithLogger(logger.Named("upload")))
		if err != nil {
			return err
		}
		opts = append(opts, server.WithUploader(uploader))
	}
	columns, closeStore, err := visibilityStore(cfg.Tables)
	if err != nil {
		return err
	}
	defer closeStore()
	opts = append(opts, server.WithVisibilityStore(columns))

	srv, err := server.New(store, dict, opts...)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", httpServer.Addr),
			zap.Strings("forms", store.FormIDs()),
			zap.Strings("tables", store.TableIDs()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func visibilityStore(cfg config.Tables) (table.VisibilityStore, func(), error) {
	switch cfg.VisibilityStore {
	case config.StoreFile:
		return table.NewFileStore(cfg.FilePath), func() {}, nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return table.NewRedisStore(rdb, cfg.RedisPrefix), func() { _ = rdb.Close() }, nil
	case config.StoreMemory, "":
		return table.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown visibility store %q", cfg.VisibilityStore)
	}
}
