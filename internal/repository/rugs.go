package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/gen/ent/rug"
)

// CreateRugParams wraps intake fields for a rug on a job.
type CreateRugParams struct {
	JobID        uuid.UUID
	CompanyID    uuid.UUID
	RugNo        int
	LengthFt     float64
	WidthFt      float64
	RugType      string
	Notes        *string
	SubmissionID *uuid.UUID
}

// UpdateRugParams carries partial rug updates; nil fields are left
// unchanged.
type UpdateRugParams struct {
	LengthFt *float64
	WidthFt  *float64
	RugType  *string
	Notes    *string
}

// AnalysisFields is what the photo analysis writes back onto a rug.
type AnalysisFields struct {
	Material       *string
	ConditionGrade *string
	Analysis       json.RawMessage
	AnalyzedAt     time.Time
}

type RugRepository interface {
	CreateRug(ctx context.Context, p *CreateRugParams) (*ent.Rug, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ent.Rug, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*ent.Rug, error)
	ListAnalyzedByJob(ctx context.Context, jobID uuid.UUID) ([]*ent.Rug, error)
	UpdateRug(ctx context.Context, id uuid.UUID, p *UpdateRugParams) (*ent.Rug, error)
	DeleteRug(ctx context.Context, id uuid.UUID) error
	NextRugNo(ctx context.Context, jobID uuid.UUID) (int, error)
	SaveAnalysis(ctx context.Context, id uuid.UUID, fields *AnalysisFields) (*ent.Rug, error)
	HasAnalyzed(ctx context.Context, jobID uuid.UUID) (bool, error)
	UpsertBySubmissionID(ctx context.Context, p *CreateRugParams) (*ent.Rug, bool, error)
}

type rugRepository struct {
	client *ent.Client
	logger *slog.Logger
}

func NewRugRepository(client *ent.Client, logger *slog.Logger) RugRepository {
	return &rugRepository{
		client: client,
		logger: logger,
	}
}

func (r *rugRepository) CreateRug(ctx context.Context, p *CreateRugParams) (*ent.Rug, error) {
	row, err := r.client.Rug.Create().
		SetJobID(p.JobID).
		SetCompanyID(p.CompanyID).
		SetRugNo(p.RugNo).
		SetLengthFt(p.LengthFt).
		SetWidthFt(p.WidthFt).
		SetRugType(p.RugType).
		SetNillableNotes(p.Notes).
		SetNillableSubmissionID(p.SubmissionID).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to create rug", "job_id", p.JobID, "rug_no", p.RugNo, "error", err)
		return nil, err
	}
	r.logger.Info("rug created", "rug_id", row.ID, "job_id", p.JobID, "rug_no", p.RugNo)
	return row, nil
}

func (r *rugRepository) GetByID(ctx context.Context, id uuid.UUID) (*ent.Rug, error) {
	return r.client.Rug.
		Query().
		Where(rug.ID(id)).
		Only(ctx)
}

func (r *rugRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*ent.Rug, error) {
	rows, err := r.client.Rug.Query().
		Where(rug.JobID(jobID)).
		Order(rug.ByRugNo()).
		All(ctx)
	if err != nil {
		r.logger.Error("failed to list rugs", "job_id", jobID, "error", err)
		return nil, err
	}
	return rows, nil
}

func (r *rugRepository) ListAnalyzedByJob(ctx context.Context, jobID uuid.UUID) ([]*ent.Rug, error) {
	rows, err := r.client.Rug.Query().
		Where(rug.JobID(jobID), rug.AnalyzedAtNotNil()).
		Order(rug.ByRugNo()).
		All(ctx)
	if err != nil {
		r.logger.Error("failed to list analyzed rugs", "job_id", jobID, "error", err)
		return nil, err
	}
	return rows, nil
}

func (r *rugRepository) UpdateRug(ctx context.Context, id uuid.UUID, p *UpdateRugParams) (*ent.Rug, error) {
	builder := r.client.Rug.UpdateOneID(id).
		SetNillableNotes(p.Notes)
	if p.LengthFt != nil {
		builder = builder.SetLengthFt(*p.LengthFt)
	}
	if p.WidthFt != nil {
		builder = builder.SetWidthFt(*p.WidthFt)
	}
	if p.RugType != nil {
		builder = builder.SetRugType(*p.RugType)
	}
	row, err := builder.Save(ctx)
	if err != nil {
		r.logger.Error("failed to update rug", "rug_id", id, "error", err)
		return nil, err
	}
	return row, nil
}

func (r *rugRepository) DeleteRug(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Rug.DeleteOneID(id).Exec(ctx); err != nil {
		r.logger.Error("failed to delete rug", "rug_id", id, "error", err)
		return err
	}
	r.logger.Info("rug deleted", "rug_id", id)
	return nil
}

// NextRugNo returns the next free sequential number on a job.
func (r *rugRepository) NextRugNo(ctx context.Context, jobID uuid.UUID) (int, error) {
	last, err := r.client.Rug.Query().
		Where(rug.JobID(jobID)).
		Order(ent.Desc(rug.FieldRugNo)).
		First(ctx)
	if ent.IsNotFound(err) {
		return 1, nil
	}
	if err != nil {
		r.logger.Error("failed to compute next rug number", "job_id", jobID, "error", err)
		return 0, err
	}
	return last.RugNo + 1, nil
}

func (r *rugRepository) SaveAnalysis(ctx context.Context, id uuid.UUID, fields *AnalysisFields) (*ent.Rug, error) {
	row, err := r.client.Rug.UpdateOneID(id).
		SetNillableMaterial(fields.Material).
		SetNillableConditionGrade(fields.ConditionGrade).
		SetAnalysis(fields.Analysis).
		SetAnalyzedAt(fields.AnalyzedAt).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to save rug analysis", "rug_id", id, "error", err)
		return nil, err
	}
	r.logger.Info("rug analysis saved", "rug_id", id)
	return row, nil
}

func (r *rugRepository) HasAnalyzed(ctx context.Context, jobID uuid.UUID) (bool, error) {
	exists, err := r.client.Rug.Query().
		Where(rug.JobID(jobID), rug.AnalyzedAtNotNil()).
		Exist(ctx)
	if err != nil {
		r.logger.Error("failed to check analyzed rugs", "job_id", jobID, "error", err)
		return false, err
	}
	return exists, nil
}

// UpsertBySubmissionID makes offline pushes idempotent: a rug already
// recorded under the same client-generated submission id is returned
// as-is instead of being duplicated.
func (r *rugRepository) UpsertBySubmissionID(ctx context.Context, p *CreateRugParams) (*ent.Rug, bool, error) {
	if p.SubmissionID == nil {
		row, err := r.CreateRug(ctx, p)
		return row, false, err
	}
	existing, err := r.client.Rug.Query().
		Where(rug.CompanyID(p.CompanyID), rug.SubmissionID(*p.SubmissionID)).
		Only(ctx)
	if err == nil {
		return existing, true, nil
	}
	if !ent.IsNotFound(err) {
		r.logger.Error("failed to look up rug by submission id", "submission_id", p.SubmissionID, "error", err)
		return nil, false, err
	}
	row, err := r.CreateRug(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return row, false, nil
}
