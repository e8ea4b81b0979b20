package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/internal/analysis"
	"github.com/rugflowhq/rugflow/internal/repository"
)

// ApplyConfig holds thresholds for the apply stage.
type ApplyConfig struct {
	MinConfidence float32 // default 0.60
}

// ApplyStage writes validated findings onto the rug and settles the
// analysis job.
type ApplyStage struct {
	Log  *slog.Logger
	Cfg  ApplyConfig
	Rugs repository.RugRepository
	Runs repository.AnalysisJobRepository
}

func NewApplyStage(log *slog.Logger, cfg ApplyConfig, rugs repository.RugRepository, runs repository.AnalysisJobRepository) *ApplyStage {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.60
	}
	return &ApplyStage{Log: log, Cfg: cfg, Rugs: rugs, Runs: runs}
}

// Run stamps the rug with material, condition and the raw findings, then
// marks the analysis job OK. Low confidence or missing required findings
// flag the run for review without blocking the write.
func (s *ApplyStage) Run(ctx context.Context, analysisJobID, rugID uuid.UUID, findings analysis.RugFindings, raw []byte) error {
	needsReview := false
	if findings.Material == "" || findings.ConditionGrade == "" || len(findings.RecommendedServices) == 0 {
		needsReview = true
	}
	if findings.ModelConfidence > 0 && findings.ModelConfidence < s.Cfg.MinConfidence {
		needsReview = true
	}

	fields := &repository.AnalysisFields{
		Analysis:   raw,
		AnalyzedAt: time.Now().UTC(),
	}
	if findings.Material != "" {
		fields.Material = &findings.Material
	}
	if findings.ConditionGrade != "" {
		fields.ConditionGrade = &findings.ConditionGrade
	}

	if _, err := s.Rugs.SaveAnalysis(ctx, rugID, fields); err != nil {
		_ = s.Runs.FinishFailure(ctx, analysisJobID, fmt.Sprintf("save analysis: %v", err))
		return fmt.Errorf("save analysis: %w", err)
	}

	if err := s.Runs.FinishApplied(ctx, analysisJobID, findings.ModelConfidence, needsReview); err != nil {
		return err
	}

	s.Log.Info("apply.ok",
		"analysis_job_id", analysisJobID,
		"rug_id", rugID,
		"needs_review", needsReview,
		"confidence", findings.ModelConfidence,
	)
	return nil
}
