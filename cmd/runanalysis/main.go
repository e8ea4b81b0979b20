package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/internal/analysis/openai"
	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/pipeline"
	repo "github.com/rugflowhq/rugflow/internal/repository"
	"github.com/rugflowhq/rugflow/internal/storage"
)

// runanalysis re-runs vision analysis for one rug, optionally several
// times in a row. Useful when tuning the model or checking how stable
// its findings are across runs.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: runanalysis <rug_id> [times]")
		os.Exit(2)
	}
	rugID, err := uuid.Parse(os.Args[1])
	if err != nil {
		logger.Error("invalid rug_id", "arg", os.Args[1], "error", err)
		os.Exit(2)
	}
	times := 1
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		logger.Error("DB_URL env var is required")
		os.Exit(2)
	}
	if cfg.Analysis.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	entc, pool, err := repo.Open(ctx, repo.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     3 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("opening database failed", "error", err)
		os.Exit(1)
	}
	defer repo.Close(entc, pool, logger)

	jobRepo := repo.NewJobRepository(entc, logger)
	rugRepo := repo.NewRugRepository(entc, logger)
	photoRepo := repo.NewRugPhotoRepository(entc, logger)
	runRepo := repo.NewAnalysisJobRepository(entc, logger)

	rug, err := rugRepo.GetByID(ctx, rugID)
	if err != nil {
		logger.Error("rug not found", "rug_id", rugID, "error", err)
		os.Exit(1)
	}

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

	vision := pipeline.NewVisionStage(logger, pipeline.VisionConfig{ModelName: cfg.Analysis.Model},
		jobRepo, rugRepo, photoRepo, runRepo, store, analyzer)
	apply := pipeline.NewApplyStage(logger, pipeline.ApplyConfig{}, rugRepo, runRepo)
	processor := pipeline.NewProcessor(logger, vision, apply)

	for i := 1; i <= times; i++ {
		run, err := runRepo.Start(ctx, rugID, rug.CompanyID, string(constants.AnalysisStatusQueued))
		if err != nil {
			logger.Error("failed to start analysis run", "attempt", i, "error", err)
			os.Exit(1)
		}
		start := time.Now()
		if err := processor.ProcessRug(ctx, run.ID, rugID); err != nil {
			logger.Error("analysis run failed", "attempt", i, "run_id", run.ID, "error", err)
			continue
		}

		updated, err := rugRepo.GetByID(ctx, rugID)
		if err != nil {
			logger.Error("failed to reload rug", "attempt", i, "error", err)
			continue
		}
		attrs := []any{
			"attempt", i,
			"run_id", run.ID,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"findings", string(updated.Analysis),
		}
		if updated.Material != nil {
			attrs = append(attrs, "material", *updated.Material)
		}
		if updated.ConditionGrade != nil {
			attrs = append(attrs, "condition_grade", *updated.ConditionGrade)
		}
		logger.Info("analysis run complete", attrs...)
	}
}
