package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/internal/analysis"
	"github.com/rugflowhq/rugflow/internal/repository"
	"github.com/rugflowhq/rugflow/internal/storage"
)

// VisionConfig holds behavior knobs for the vision stage.
type VisionConfig struct {
	MaxPhotos int    // default constants.MaxAnalysisPhotos
	ModelName string // recorded on the analysis job
}

// VisionStage downloads a rug's photos and asks the vision model for
// findings. The raw model JSON is persisted on the analysis job before
// anything touches the rug itself.
type VisionStage struct {
	Log      *slog.Logger
	Cfg      VisionConfig
	Jobs     repository.JobRepository
	Rugs     repository.RugRepository
	Photos   repository.RugPhotoRepository
	Runs     repository.AnalysisJobRepository
	Store    *storage.Client
	Analyzer analysis.RugAnalyzer
}

func NewVisionStage(
	log *slog.Logger,
	cfg VisionConfig,
	jobs repository.JobRepository,
	rugs repository.RugRepository,
	photos repository.RugPhotoRepository,
	runs repository.AnalysisJobRepository,
	store *storage.Client,
	analyzer analysis.RugAnalyzer,
) *VisionStage {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = constants.MaxAnalysisPhotos
	}
	return &VisionStage{
		Log:      log,
		Cfg:      cfg,
		Jobs:     jobs,
		Rugs:     rugs,
		Photos:   photos,
		Runs:     runs,
		Store:    store,
		Analyzer: analyzer,
	}
}

// Run executes the vision stage for an already-queued analysis job.
// Effects: marks the run RUNNING, then either VISION_OK with the raw model
// output or FAILED with the reason.
func (s *VisionStage) Run(ctx context.Context, analysisJobID, rugID uuid.UUID) (analysis.RugFindings, []byte, error) {
	if err := s.Runs.MarkRunning(ctx, analysisJobID); err != nil {
		return analysis.RugFindings{}, nil, fmt.Errorf("mark running: %w", err)
	}

	rug, err := s.Rugs.GetByID(ctx, rugID)
	if err != nil {
		_ = s.Runs.FinishFailure(ctx, analysisJobID, fmt.Sprintf("load rug: %v", err))
		return analysis.RugFindings{}, nil, fmt.Errorf("load rug: %w", err)
	}
	job, err := s.Jobs.GetByID(ctx, rug.JobID)
	if err != nil {
		_ = s.Runs.FinishFailure(ctx, analysisJobID, fmt.Sprintf("load job: %v", err))
		return analysis.RugFindings{}, nil, fmt.Errorf("load job: %w", err)
	}

	photos, err := s.Photos.ListByRug(ctx, rugID)
	if err != nil {
		_ = s.Runs.FinishFailure(ctx, analysisJobID, fmt.Sprintf("list photos: %v", err))
		return analysis.RugFindings{}, nil, fmt.Errorf("list photos: %w", err)
	}
	if len(photos) == 0 {
		_ = s.Runs.FinishFailure(ctx, analysisJobID, "no photos uploaded for rug")
		return analysis.RugFindings{}, nil, fmt.Errorf("no photos uploaded for rug %s", rugID)
	}
	if len(photos) > s.Cfg.MaxPhotos {
		photos = photos[:s.Cfg.MaxPhotos]
	}

	urls := make([]string, 0, len(photos))
	for _, ph := range photos {
		data, ct, err := s.Store.Get(ctx, ph.StoragePath)
		if err != nil {
			s.Log.Warn("vision.photo_fetch_failed", "analysis_job_id", analysisJobID, "path", ph.StoragePath, "err", err)
			continue
		}
		if ct == "" {
			ct = ph.ContentType
		}
		if u, ok := analysis.ToDataURL(data, ct); ok {
			urls = append(urls, u)
		} else {
			s.Log.Warn("vision.photo_skipped", "analysis_job_id", analysisJobID, "path", ph.StoragePath, "content_type", ct, "bytes", len(data))
		}
	}
	if len(urls) == 0 {
		_ = s.Runs.FinishFailure(ctx, analysisJobID, "no usable photos for vision")
		return analysis.RugFindings{}, nil, fmt.Errorf("no usable photos for rug %s", rugID)
	}

	var notes string
	if rug.Notes != nil {
		notes = *rug.Notes
	}
	var jobNotes string
	if job.Notes != nil {
		jobNotes = *job.Notes
	}

	req := analysis.AnalyzeRequest{
		PhotoDataURLs:   urls,
		RugType:         rug.RugType,
		LengthFt:        rug.LengthFt,
		WidthFt:         rug.WidthFt,
		AllowedServices: constants.ServiceCodeStrings(),
		FieldNotes:      notes,
		Job: analysis.JobContext{
			ClientName: job.ClientName,
			Notes:      jobNotes,
		},
	}

	s.Log.Info("vision.start",
		"analysis_job_id", analysisJobID,
		"rug_id", rugID,
		"photos", len(urls),
		"rug_type", rug.RugType,
	)

	findings, raw, err := s.Analyzer.AnalyzeRug(ctx, req)
	if err != nil {
		_ = s.Runs.FinishFailure(ctx, analysisJobID, err.Error())
		return analysis.RugFindings{}, raw, fmt.Errorf("analyze rug: %w", err)
	}

	if err := s.Runs.FinishVisionSuccess(ctx, analysisJobID, raw, s.Cfg.ModelName, map[string]any{
		"photos": len(urls),
	}); err != nil {
		return analysis.RugFindings{}, raw, err
	}
	return findings, raw, nil
}
