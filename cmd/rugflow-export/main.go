package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/export"
	repo "github.com/rugflowhq/rugflow/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// rugflow-export writes a company's job ledger to an XLSX file without
// going through the gRPC server. Meant for month-end bookkeeping runs
// against a read replica.
func main() {
	var (
		companyStr = flag.String("company", "", "company UUID (required)")
		out        = flag.String("out", "jobs.xlsx", "output XLSX file path")
		fromStr    = flag.String("from", "", "from date YYYY-MM-DD")
		toStr      = flag.String("to", "", "to date YYYY-MM-DD")
	)
	flag.Parse()

	if *companyStr == "" {
		printError("Error: --company is required\n")
		os.Exit(1)
	}
	companyID, err := uuid.Parse(*companyStr)
	if err != nil {
		printError("Error: --company must be a UUID: %v\n", err)
		os.Exit(1)
	}

	var from, to *time.Time
	if *fromStr != "" {
		parsed, err := time.Parse("2006-01-02", *fromStr)
		if err != nil {
			printError("Error: invalid --from date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
		from = &parsed
	}
	if *toStr != "" {
		parsed, err := time.Parse("2006-01-02", *toStr)
		if err != nil {
			printError("Error: invalid --to date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(1)
		}
		to = &parsed
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		printError("Error: DB_URL env var is required\n")
		os.Exit(1)
	}

	ctx := context.Background()
	entc, pool, err := repo.Open(ctx, repo.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     3 * time.Second,
	}, logger)
	if err != nil {
		printError("Error: opening database: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close(entc, pool, logger)

	svc := export.NewService(
		repo.NewJobRepository(entc, logger),
		repo.NewRugRepository(entc, logger),
		repo.NewEstimateRepository(entc, logger),
		repo.NewPaymentRepository(entc, logger),
		logger,
	)

	data, err := svc.ExportJobsXLSX(ctx, companyID, from, to)
	if err != nil {
		printError("Error: export failed: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		printError("Error: writing %s: %v\n", *out, err)
		os.Exit(1)
	}
	logger.Info("export written", "path", *out, "bytes", len(data))
}
