package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/gen/ent/estimate"
	"github.com/rugflowhq/rugflow/gen/ent/estimateitem"
)

// CreateEstimateItemParams is one priced line in a new estimate.
type CreateEstimateItemParams struct {
	RugID       uuid.UUID
	ServiceCode string
	Description string
	AreaSqFt    float64
	UnitPrice   float64
	Amount      float64
}

// CreateEstimateParams wraps a new estimate with its lines.
type CreateEstimateParams struct {
	JobID        uuid.UUID
	CompanyID    uuid.UUID
	CurrencyCode string
	Subtotal     float64
	Tax          float64
	Total        float64
	Items        []CreateEstimateItemParams
}

// EstimateTotals carries recomputed money fields after client decisions.
type EstimateTotals struct {
	Subtotal float64
	Tax      float64
	Total    float64
}

type EstimateRepository interface {
	CreateWithItems(ctx context.Context, p *CreateEstimateParams) (*ent.Estimate, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ent.Estimate, error)
	GetActiveByJob(ctx context.Context, jobID uuid.UUID) (*ent.Estimate, error)
	DeleteDraftsByJob(ctx context.Context, jobID uuid.UUID) (int, error)
	Finalize(ctx context.Context, id uuid.UUID) (*ent.Estimate, error)
	MarkSent(ctx context.Context, id uuid.UUID) (*ent.Estimate, error)
	Decide(ctx context.Context, id uuid.UUID, status constants.EstimateStatus, totals *EstimateTotals) (*ent.Estimate, error)
	UpdateTotals(ctx context.Context, id uuid.UUID, totals *EstimateTotals) (*ent.Estimate, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*ent.EstimateItem, error)
	DeclineItem(ctx context.Context, itemID uuid.UUID) (*ent.EstimateItem, error)
	SetItemStatus(ctx context.Context, itemID uuid.UUID, status constants.ServiceItemStatus) (*ent.EstimateItem, error)
	UpdateItemPrice(ctx context.Context, itemID uuid.UUID, unitPrice, amount float64) (*ent.EstimateItem, error)
	HasFinalized(ctx context.Context, jobID uuid.UUID) (bool, error)
	AllServicesComplete(ctx context.Context, jobID uuid.UUID) (bool, error)
}

type estimateRepository struct {
	client *ent.Client
	logger *slog.Logger
}

func NewEstimateRepository(client *ent.Client, logger *slog.Logger) EstimateRepository {
	return &estimateRepository{
		client: client,
		logger: logger,
	}
}

func (r *estimateRepository) CreateWithItems(ctx context.Context, p *CreateEstimateParams) (*ent.Estimate, error) {
	tx, err := r.client.Tx(ctx)
	if err != nil {
		r.logger.Error("failed to open transaction", "job_id", p.JobID, "error", err)
		return nil, err
	}

	est, err := tx.Estimate.Create().
		SetJobID(p.JobID).
		SetCompanyID(p.CompanyID).
		SetCurrencyCode(p.CurrencyCode).
		SetSubtotal(p.Subtotal).
		SetTax(p.Tax).
		SetTotal(p.Total).
		Save(ctx)
	if err != nil {
		_ = tx.Rollback()
		r.logger.Error("failed to create estimate", "job_id", p.JobID, "error", err)
		return nil, err
	}

	builders := make([]*ent.EstimateItemCreate, len(p.Items))
	for i, item := range p.Items {
		builders[i] = tx.EstimateItem.Create().
			SetEstimateID(est.ID).
			SetRugID(item.RugID).
			SetServiceCode(item.ServiceCode).
			SetDescription(item.Description).
			SetAreaSqft(item.AreaSqFt).
			SetUnitPrice(item.UnitPrice).
			SetAmount(item.Amount)
	}
	if _, err := tx.EstimateItem.CreateBulk(builders...).Save(ctx); err != nil {
		_ = tx.Rollback()
		r.logger.Error("failed to create estimate items", "estimate_id", est.ID, "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("failed to commit estimate", "estimate_id", est.ID, "error", err)
		return nil, err
	}
	r.logger.Info("estimate created", "estimate_id", est.ID, "job_id", p.JobID, "items", len(p.Items), "total", p.Total)
	return r.GetByID(ctx, est.ID)
}

func (r *estimateRepository) GetByID(ctx context.Context, id uuid.UUID) (*ent.Estimate, error) {
	return r.client.Estimate.
		Query().
		Where(estimate.ID(id)).
		WithItems().
		Only(ctx)
}

// GetActiveByJob returns the most recent estimate for a job, items
// included.
func (r *estimateRepository) GetActiveByJob(ctx context.Context, jobID uuid.UUID) (*ent.Estimate, error) {
	return r.client.Estimate.
		Query().
		Where(estimate.JobID(jobID)).
		Order(ent.Desc(estimate.FieldCreatedAt)).
		WithItems().
		First(ctx)
}

func (r *estimateRepository) DeleteDraftsByJob(ctx context.Context, jobID uuid.UUID) (int, error) {
	n, err := r.client.Estimate.Delete().
		Where(estimate.JobID(jobID), estimate.Status(string(constants.EstimateDraft))).
		Exec(ctx)
	if err != nil {
		r.logger.Error("failed to delete draft estimates", "job_id", jobID, "error", err)
		return 0, err
	}
	return n, nil
}

func (r *estimateRepository) Finalize(ctx context.Context, id uuid.UUID) (*ent.Estimate, error) {
	row, err := r.client.Estimate.UpdateOneID(id).
		SetStatus(string(constants.EstimateFinalized)).
		SetFinalizedAt(time.Now()).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to finalize estimate", "estimate_id", id, "error", err)
		return nil, err
	}
	r.logger.Info("estimate finalized", "estimate_id", id)
	return row, nil
}

func (r *estimateRepository) MarkSent(ctx context.Context, id uuid.UUID) (*ent.Estimate, error) {
	row, err := r.client.Estimate.UpdateOneID(id).
		SetStatus(string(constants.EstimateSent)).
		SetSentAt(time.Now()).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to mark estimate sent", "estimate_id", id, "error", err)
		return nil, err
	}
	r.logger.Info("estimate sent", "estimate_id", id)
	return row, nil
}

func (r *estimateRepository) Decide(ctx context.Context, id uuid.UUID, status constants.EstimateStatus, totals *EstimateTotals) (*ent.Estimate, error) {
	builder := r.client.Estimate.UpdateOneID(id).
		SetStatus(string(status)).
		SetDecidedAt(time.Now())
	if totals != nil {
		builder = builder.
			SetSubtotal(totals.Subtotal).
			SetTax(totals.Tax).
			SetTotal(totals.Total)
	}
	row, err := builder.Save(ctx)
	if err != nil {
		r.logger.Error("failed to record estimate decision", "estimate_id", id, "status", status, "error", err)
		return nil, err
	}
	r.logger.Info("estimate decision recorded", "estimate_id", id, "status", status)
	return row, nil
}

// UpdateTotals rewrites the money fields after a line changes, without
// touching the estimate's status.
func (r *estimateRepository) UpdateTotals(ctx context.Context, id uuid.UUID, totals *EstimateTotals) (*ent.Estimate, error) {
	row, err := r.client.Estimate.UpdateOneID(id).
		SetSubtotal(totals.Subtotal).
		SetTax(totals.Tax).
		SetTotal(totals.Total).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to update estimate totals", "estimate_id", id, "error", err)
		return nil, err
	}
	return row, nil
}

func (r *estimateRepository) GetItem(ctx context.Context, itemID uuid.UUID) (*ent.EstimateItem, error) {
	return r.client.EstimateItem.Get(ctx, itemID)
}

func (r *estimateRepository) DeclineItem(ctx context.Context, itemID uuid.UUID) (*ent.EstimateItem, error) {
	row, err := r.client.EstimateItem.UpdateOneID(itemID).
		SetDeclined(true).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to decline estimate item", "item_id", itemID, "error", err)
		return nil, err
	}
	r.logger.Info("estimate item declined", "item_id", itemID)
	return row, nil
}

func (r *estimateRepository) SetItemStatus(ctx context.Context, itemID uuid.UUID, status constants.ServiceItemStatus) (*ent.EstimateItem, error) {
	builder := r.client.EstimateItem.UpdateOneID(itemID).
		SetServiceStatus(string(status))
	if status == constants.ServiceItemCompleted {
		builder = builder.SetCompletedAt(time.Now())
	}
	row, err := builder.Save(ctx)
	if err != nil {
		r.logger.Error("failed to set item status", "item_id", itemID, "status", status, "error", err)
		return nil, err
	}
	r.logger.Info("estimate item status updated", "item_id", itemID, "status", status)
	return row, nil
}

func (r *estimateRepository) UpdateItemPrice(ctx context.Context, itemID uuid.UUID, unitPrice, amount float64) (*ent.EstimateItem, error) {
	row, err := r.client.EstimateItem.UpdateOneID(itemID).
		SetUnitPrice(unitPrice).
		SetAmount(amount).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to update item price", "item_id", itemID, "error", err)
		return nil, err
	}
	r.logger.Info("estimate item price updated", "item_id", itemID, "unit_price", unitPrice, "amount", amount)
	return row, nil
}

// HasFinalized reports whether the job has an internally approved
// estimate (finalized or beyond). This is the prerequisite the
// estimate_sent transition checks.
func (r *estimateRepository) HasFinalized(ctx context.Context, jobID uuid.UUID) (bool, error) {
	exists, err := r.client.Estimate.Query().
		Where(
			estimate.JobID(jobID),
			estimate.StatusIn(
				string(constants.EstimateFinalized),
				string(constants.EstimateSent),
				string(constants.EstimateApproved),
			),
		).
		Exist(ctx)
	if err != nil {
		r.logger.Error("failed to check finalized estimates", "job_id", jobID, "error", err)
		return false, err
	}
	return exists, nil
}

// AllServicesComplete reports whether every accepted line on the job's
// current estimate has been completed. Declined lines do not count;
// a job with no accepted lines is not complete.
func (r *estimateRepository) AllServicesComplete(ctx context.Context, jobID uuid.UUID) (bool, error) {
	est, err := r.GetActiveByJob(ctx, jobID)
	if ent.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("failed to load active estimate", "job_id", jobID, "error", err)
		return false, err
	}

	accepted, err := r.client.EstimateItem.Query().
		Where(estimateitem.EstimateID(est.ID), estimateitem.Declined(false)).
		Count(ctx)
	if err != nil {
		r.logger.Error("failed to count accepted items", "estimate_id", est.ID, "error", err)
		return false, err
	}
	if accepted == 0 {
		return false, nil
	}

	pending, err := r.client.EstimateItem.Query().
		Where(
			estimateitem.EstimateID(est.ID),
			estimateitem.Declined(false),
			estimateitem.ServiceStatusNEQ(string(constants.ServiceItemCompleted)),
		).
		Exist(ctx)
	if err != nil {
		r.logger.Error("failed to check pending items", "estimate_id", est.ID, "error", err)
		return false, err
	}
	return !pending, nil
}
