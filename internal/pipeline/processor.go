package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Processor coordinates the vision call and the write-back of its findings.
type Processor struct {
	Logger *slog.Logger
	Vision *VisionStage
	Apply  *ApplyStage
}

func NewProcessor(logger *slog.Logger, vision *VisionStage, apply *ApplyStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Vision: vision, Apply: apply}
}

// ProcessRug runs the vision stage for a queued analysis job, then applies
// the findings to the rug. The analysis job row tracks stage progress, so a
// failure in either stage leaves it FAILED with the reason.
func (p *Processor) ProcessRug(ctx context.Context, analysisJobID, rugID uuid.UUID) error {
	findings, raw, err := p.Vision.Run(ctx, analysisJobID, rugID)
	if err != nil {
		p.Logger.Error("processor.vision.failed", "analysis_job_id", analysisJobID, "rug_id", rugID, "err", err)
		return err
	}
	p.Logger.Info("processor.vision.ok",
		"analysis_job_id", analysisJobID,
		"rug_id", rugID,
		"material", findings.Material,
		"condition", findings.ConditionGrade,
		"services", len(findings.RecommendedServices),
	)

	if err := p.Apply.Run(ctx, analysisJobID, rugID, findings, raw); err != nil {
		p.Logger.Error("processor.apply.failed", "analysis_job_id", analysisJobID, "rug_id", rugID, "err", err)
		return err
	}
	p.Logger.Info("processor.apply.ok", "analysis_job_id", analysisJobID, "rug_id", rugID)
	return nil
}
