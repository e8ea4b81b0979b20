package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/gen/ent/job"
)

// CreateJobParams wraps intake fields for a new job.
type CreateJobParams struct {
	CompanyID         uuid.UUID
	ClientName        string
	ClientEmail       *string
	ClientPhone       *string
	PickupAddress     *string
	DeliveryAddress   *string
	ScheduledPickupAt *time.Time
	Notes             *string
}

// UpdateJobParams carries partial job detail updates; nil fields are
// left unchanged.
type UpdateJobParams struct {
	ClientName        *string
	ClientEmail       *string
	ClientPhone       *string
	PickupAddress     *string
	DeliveryAddress   *string
	ScheduledPickupAt *time.Time
	Notes             *string
}

type JobRepository interface {
	CreateJob(ctx context.Context, p *CreateJobParams) (*ent.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ent.Job, error)
	GetByPortalToken(ctx context.Context, token string) (*ent.Job, error)
	ListJobs(ctx context.Context, companyID uuid.UUID, status *constants.JobStatus, fromDate, toDate *time.Time) ([]*ent.Job, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, p *UpdateJobParams) (*ent.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.JobStatus) (*ent.Job, error)
	SetPortalToken(ctx context.Context, id uuid.UUID, token string) (*ent.Job, error)
	SetDeliveryWindow(ctx context.Context, id uuid.UUID, start, end time.Time) (*ent.Job, error)
	DeleteJob(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type jobRepository struct {
	client *ent.Client
	logger *slog.Logger
}

func NewJobRepository(client *ent.Client, logger *slog.Logger) JobRepository {
	return &jobRepository{
		client: client,
		logger: logger,
	}
}

func (r *jobRepository) CreateJob(ctx context.Context, p *CreateJobParams) (*ent.Job, error) {
	row, err := r.client.Job.Create().
		SetCompanyID(p.CompanyID).
		SetClientName(p.ClientName).
		SetNillableClientEmail(p.ClientEmail).
		SetNillableClientPhone(p.ClientPhone).
		SetNillablePickupAddress(p.PickupAddress).
		SetNillableDeliveryAddress(p.DeliveryAddress).
		SetNillableScheduledPickupAt(p.ScheduledPickupAt).
		SetNillableNotes(p.Notes).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to create job", "company_id", p.CompanyID, "client_name", p.ClientName, "error", err)
		return nil, err
	}
	r.logger.Info("job created", "job_id", row.ID, "company_id", p.CompanyID)
	return row, nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*ent.Job, error) {
	return r.client.Job.
		Query().
		Where(job.ID(id)).
		Only(ctx)
}

func (r *jobRepository) GetByPortalToken(ctx context.Context, token string) (*ent.Job, error) {
	return r.client.Job.
		Query().
		Where(job.PortalToken(token)).
		Only(ctx)
}

func (r *jobRepository) ListJobs(ctx context.Context, companyID uuid.UUID, status *constants.JobStatus, fromDate, toDate *time.Time) ([]*ent.Job, error) {
	q := r.client.Job.Query().Where(job.CompanyID(companyID))
	if status != nil {
		q = q.Where(job.Status(string(*status)))
	}
	if fromDate != nil {
		q = q.Where(job.CreatedAtGTE(*fromDate))
	}
	if toDate != nil {
		q = q.Where(job.CreatedAtLTE(*toDate))
	}
	rows, err := q.Order(job.ByCreatedAt()).All(ctx)
	if err != nil {
		r.logger.Error("failed to list jobs", "company_id", companyID, "error", err)
		return nil, err
	}
	return rows, nil
}

func (r *jobRepository) UpdateDetails(ctx context.Context, id uuid.UUID, p *UpdateJobParams) (*ent.Job, error) {
	builder := r.client.Job.UpdateOneID(id).
		SetNillableClientEmail(p.ClientEmail).
		SetNillableClientPhone(p.ClientPhone).
		SetNillablePickupAddress(p.PickupAddress).
		SetNillableDeliveryAddress(p.DeliveryAddress).
		SetNillableScheduledPickupAt(p.ScheduledPickupAt).
		SetNillableNotes(p.Notes)
	if p.ClientName != nil {
		builder = builder.SetClientName(*p.ClientName)
	}
	row, err := builder.Save(ctx)
	if err != nil {
		r.logger.Error("failed to update job", "job_id", id, "error", err)
		return nil, err
	}
	return row, nil
}

func (r *jobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.JobStatus) (*ent.Job, error) {
	row, err := r.client.Job.UpdateOneID(id).
		SetStatus(string(status)).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to update job status", "job_id", id, "status", status, "error", err)
		return nil, err
	}
	r.logger.Info("job status updated", "job_id", id, "status", status)
	return row, nil
}

func (r *jobRepository) SetPortalToken(ctx context.Context, id uuid.UUID, token string) (*ent.Job, error) {
	row, err := r.client.Job.UpdateOneID(id).
		SetPortalToken(token).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to set portal token", "job_id", id, "error", err)
		return nil, err
	}
	return row, nil
}

func (r *jobRepository) SetDeliveryWindow(ctx context.Context, id uuid.UUID, start, end time.Time) (*ent.Job, error) {
	row, err := r.client.Job.UpdateOneID(id).
		SetDeliveryWindowStart(start).
		SetDeliveryWindowEnd(end).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to set delivery window", "job_id", id, "error", err)
		return nil, err
	}
	return row, nil
}

func (r *jobRepository) DeleteJob(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Job.DeleteOneID(id).Exec(ctx); err != nil {
		r.logger.Error("failed to delete job", "job_id", id, "error", err)
		return err
	}
	r.logger.Info("job deleted", "job_id", id)
	return nil
}

func (r *jobRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	exists, err := r.client.Job.Query().Where(job.ID(id)).Exist(ctx)
	if err != nil {
		r.logger.Error("failed to check job existence", "job_id", id, "error", err)
		return false, err
	}
	return exists, nil
}
