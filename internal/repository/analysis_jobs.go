package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
)

type AnalysisJobRepository interface {
	Start(ctx context.Context, rugID, companyID uuid.UUID, status string) (*ent.AnalysisJob, error)
	MarkRunning(ctx context.Context, jobID uuid.UUID) error
	FinishVisionSuccess(ctx context.Context, jobID uuid.UUID, result json.RawMessage, modelName string, modelParams map[string]any) error
	FinishApplied(ctx context.Context, jobID uuid.UUID, confidence float32, needsReview bool) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
}

type analysisJobRepo struct {
	ent *ent.Client
	log *slog.Logger
}

func NewAnalysisJobRepository(entc *ent.Client, log *slog.Logger) AnalysisJobRepository {
	return &analysisJobRepo{ent: entc, log: log}
}

func (r *analysisJobRepo) Start(ctx context.Context, rugID, companyID uuid.UUID, status string) (*ent.AnalysisJob, error) {
	job, err := r.ent.AnalysisJob.
		Create().
		SetRugID(rugID).
		SetCompanyID(companyID).
		SetStatus(status).
		Save(ctx)
	if err != nil {
		r.log.Error("analysis_job start failed", "rug_id", rugID, "err", err)
		return nil, err
	}
	r.log.Info("analysis_job started", "job_id", job.ID, "rug_id", rugID)
	return job, nil
}

func (r *analysisJobRepo) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.ent.AnalysisJob.
		UpdateOneID(jobID).
		SetStatus(string(constants.AnalysisStatusRunning)).
		Save(ctx)
	if err != nil {
		r.log.Error("analysis_job mark running failed", "job_id", jobID, "err", err)
		return err
	}
	return nil
}

func (r *analysisJobRepo) FinishVisionSuccess(ctx context.Context, jobID uuid.UUID, result json.RawMessage, modelName string, modelParams map[string]any) error {
	var params []byte
	if modelParams != nil {
		if b, err := json.Marshal(modelParams); err == nil {
			params = b
		}
	}
	_, err := r.ent.AnalysisJob.
		UpdateOneID(jobID).
		SetResult(result).
		SetModelName(modelName).
		SetModelParams(params).
		SetStatus(string(constants.AnalysisStatusVisionOK)).
		Save(ctx)
	if err != nil {
		r.log.Error("analysis_job finish(VISION_OK) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("analysis_job finished (VISION_OK)", "job_id", jobID, "model", modelName)
	return nil
}

func (r *analysisJobRepo) FinishApplied(ctx context.Context, jobID uuid.UUID, confidence float32, needsReview bool) error {
	_, err := r.ent.AnalysisJob.
		UpdateOneID(jobID).
		SetConfidence(confidence).
		SetNeedsReview(needsReview).
		SetFinishedAt(time.Now()).
		SetStatus(string(constants.AnalysisStatusOK)).
		Save(ctx)
	if err != nil {
		r.log.Error("analysis_job finish(OK) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("analysis_job finished (OK)", "job_id", jobID, "confidence", confidence, "needs_review", needsReview)
	return nil
}

func (r *analysisJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	_, err := r.ent.AnalysisJob.
		UpdateOneID(jobID).
		SetFinishedAt(time.Now()).
		SetStatus(string(constants.AnalysisStatusFailed)).
		SetErrorMessage(message).
		Save(ctx)
	if err != nil {
		r.log.Error("analysis_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("analysis_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}
