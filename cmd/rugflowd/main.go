package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
	"github.com/rugflowhq/rugflow/internal/analysis/openai"
	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/core/async"
	"github.com/rugflowhq/rugflow/internal/export"
	"github.com/rugflowhq/rugflow/internal/pipeline"
	repo "github.com/rugflowhq/rugflow/internal/repository"
	srv "github.com/rugflowhq/rugflow/internal/server"
	"github.com/rugflowhq/rugflow/internal/services/estimates"
	"github.com/rugflowhq/rugflow/internal/services/jobs"
	"github.com/rugflowhq/rugflow/internal/services/payments"
	"github.com/rugflowhq/rugflow/internal/services/rugs"
	"github.com/rugflowhq/rugflow/internal/storage"
)

func main() {
	// Setup structured logger that outputs messages with variables but no time/level
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

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.HasPrefix(addr, ":") && !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entc, pool, err := srv.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer srv.CloseDB(entc, pool, logger)

	// Ping DB to ensure connectivity
	if err := srv.PingDB(ctx, pool, logger, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// gRPC server
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(srv.UnaryAuthInterceptor(logger)))

	companyRepo := repo.NewCompanyRepository(entc, logger)
	jobRepo := repo.NewJobRepository(entc, logger)
	rugRepo := repo.NewRugRepository(entc, logger)
	photoRepo := repo.NewRugPhotoRepository(entc, logger)
	runRepo := repo.NewAnalysisJobRepository(entc, logger)
	estimateRepo := repo.NewEstimateRepository(entc, logger)
	paymentRepo := repo.NewPaymentRepository(entc, logger)

	// Photo blob store and the vision model client
	store := storage.NewClient(storage.Config{
		BaseURL: cfg.Storage.BaseURL,
		Bucket:  cfg.Storage.Bucket,
		Token:   cfg.Storage.Token,
		Timeout: cfg.Storage.Timeout,
	}, logger)

	analyzer := openai.NewClient(openai.Config{
		Model:       cfg.Analysis.Model,
		APIKey:      cfg.Analysis.APIKey,
		Temperature: cfg.Analysis.Temperature,
		Timeout:     cfg.Analysis.Timeout,
	}, logger)

	// Photo analysis pipeline
	visionStage := pipeline.NewVisionStage(logger, pipeline.VisionConfig{
		ModelName: cfg.Analysis.Model,
	}, jobRepo, rugRepo, photoRepo, runRepo, store, analyzer)
	applyStage := pipeline.NewApplyStage(logger, pipeline.ApplyConfig{}, rugRepo, runRepo)
	processor := pipeline.NewProcessor(logger, visionStage, applyStage)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Analysis.Workers),
		async.WithQueueSize(cfg.Analysis.QueueSize),
		async.WithProcessTimeout(3*time.Minute),
	)

	jobsSvc := jobs.NewService(jobRepo, rugRepo, estimateRepo, paymentRepo, companyRepo, logger)
	estimatesSvc := estimates.NewService(estimateRepo, jobRepo, rugRepo, companyRepo, jobsSvc, cfg.Portal.BaseURL, logger)
	rugsSvc := rugs.NewService(rugRepo, jobRepo, photoRepo, runRepo, queue, logger)
	paymentsSvc := payments.NewService(paymentRepo, jobRepo, jobsSvc, logger)
	exportSvc := export.NewService(jobRepo, rugRepo, estimateRepo, paymentRepo, logger)

	rugflowpb.RegisterCompaniesServiceServer(grpcServer, srv.NewCompanyServer(companyRepo, logger))
	rugflowpb.RegisterJobsServiceServer(grpcServer, srv.NewJobServer(jobsSvc, logger))
	rugflowpb.RegisterRugsServiceServer(grpcServer, srv.NewRugServer(rugsSvc, logger))
	rugflowpb.RegisterEstimatesServiceServer(grpcServer, srv.NewEstimateServer(estimatesSvc, logger))
	rugflowpb.RegisterPaymentsServiceServer(grpcServer, srv.NewPaymentServer(paymentsSvc, logger))
	rugflowpb.RegisterSubmissionsServiceServer(grpcServer, srv.NewSubmissionServer(rugsSvc, logger))
	rugflowpb.RegisterExportServiceServer(grpcServer, srv.NewExportServer(exportSvc, logger))

	// Register gRPC health service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	logger.Info("rugflowd listening", "addr", addr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	queue.Shutdown(context.Background())
	grpcServer.GracefulStop()
}
