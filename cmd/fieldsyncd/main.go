package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
	"github.com/rugflowhq/rugflow/internal/fieldsync"
	"github.com/rugflowhq/rugflow/internal/storage"
)

// fieldsyncd runs on the pickup crew's laptop: it watches the photo
// spool, keeps the local queue, and drains it to the backend whenever
// the uplink allows.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfgPath := os.Getenv("RUGFLOW_AGENT_CONFIG")
	if cfgPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfgPath = filepath.Join(home, ".rugflow", "agent.yaml")
		}
	}
	cfg, err := fieldsync.LoadAgentConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load agent config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid agent config", "error", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirs(); err != nil {
		logger.Error("failed to create agent directories", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := fieldsync.OpenStore(cfg.StorePath())
	if err != nil {
		logger.Error("failed to open queue database", "path", cfg.StorePath(), "error", err)
		os.Exit(1)
	}
	defer store.Close()

	conn, err := grpc.NewClient(cfg.BackendAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Error("failed to set up backend connection", "addr", cfg.BackendAddr, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	blobs := storage.NewClient(storage.Config{
		BaseURL: cfg.Storage.BaseURL,
		Bucket:  cfg.Storage.Bucket,
		Token:   cfg.Storage.Token,
	}, logger)

	prober := fieldsync.NewProber(healthpb.NewHealthClient(conn),
		time.Duration(cfg.ProbeInterval), logger)
	go prober.Run(ctx)

	uploader := fieldsync.NewUploader(blobs,
		rugflowpb.NewSubmissionsServiceClient(conn),
		fieldsync.UploaderConfig{
			UserID:           cfg.UserID,
			UploadsPerSecond: cfg.UploadsPerSecond,
		}, logger)

	svc := fieldsync.NewService(store, uploader, prober, fieldsync.ServiceConfig{
		Interval: time.Duration(cfg.SyncInterval),
		MaxEdge:  cfg.PhotoMaxEdge,
		Quality:  cfg.PhotoQuality,
	}, logger)

	spool := fieldsync.NewSpool(store, cfg.SpoolDir, logger)
	go func() {
		if err := spool.Run(ctx); err != nil {
			logger.Error("spool watcher stopped", "error", err)
		}
	}()

	go func() {
		for n := range svc.SubscribePending() {
			logger.Info("queue depth", "pending", n)
		}
	}()

	logger.Info("field agent started",
		"backend", cfg.BackendAddr, "data_dir", cfg.DataDir, "spool_dir", cfg.SpoolDir)

	svc.Run(ctx, prober.Subscribe())
	logger.Info("field agent stopped")
}
