package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/gen/ent/payment"
)

// CreatePaymentParams records one gateway-reported payment.
type CreatePaymentParams struct {
	JobID        uuid.UUID
	CompanyID    uuid.UUID
	Amount       float64
	CurrencyCode string
	Method       string
	GatewayRef   *string
	Status       constants.PaymentStatus
	ReceivedAt   time.Time
}

type PaymentRepository interface {
	Create(ctx context.Context, p *CreatePaymentParams) (*ent.Payment, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*ent.Payment, error)
	HasSucceeded(ctx context.Context, jobID uuid.UUID) (bool, error)
}

type paymentRepository struct {
	client *ent.Client
	logger *slog.Logger
}

func NewPaymentRepository(client *ent.Client, logger *slog.Logger) PaymentRepository {
	return &paymentRepository{
		client: client,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *CreatePaymentParams) (*ent.Payment, error) {
	row, err := r.client.Payment.Create().
		SetJobID(p.JobID).
		SetCompanyID(p.CompanyID).
		SetAmount(p.Amount).
		SetCurrencyCode(p.CurrencyCode).
		SetMethod(p.Method).
		SetNillableGatewayRef(p.GatewayRef).
		SetStatus(string(p.Status)).
		SetReceivedAt(p.ReceivedAt).
		Save(ctx)
	if err != nil {
		r.logger.Error("failed to record payment", "job_id", p.JobID, "amount", p.Amount, "error", err)
		return nil, err
	}
	r.logger.Info("payment recorded", "payment_id", row.ID, "job_id", p.JobID, "amount", p.Amount, "status", p.Status)
	return row, nil
}

func (r *paymentRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*ent.Payment, error) {
	rows, err := r.client.Payment.Query().
		Where(payment.JobID(jobID)).
		Order(payment.ByReceivedAt()).
		All(ctx)
	if err != nil {
		r.logger.Error("failed to list payments", "job_id", jobID, "error", err)
		return nil, err
	}
	return rows, nil
}

func (r *paymentRepository) HasSucceeded(ctx context.Context, jobID uuid.UUID) (bool, error) {
	exists, err := r.client.Payment.Query().
		Where(payment.JobID(jobID), payment.Status(string(constants.PaymentSucceeded))).
		Exist(ctx)
	if err != nil {
		r.logger.Error("failed to check payments", "job_id", jobID, "error", err)
		return false, err
	}
	return exists, nil
}
