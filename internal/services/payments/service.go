// Package payments records gateway-reported payments against jobs and
// moves paid work into the service queue.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/entity"
	"github.com/rugflowhq/rugflow/internal/permission"
	"github.com/rugflowhq/rugflow/internal/repository"
	"github.com/rugflowhq/rugflow/internal/services/jobs"
	"github.com/rugflowhq/rugflow/internal/utils"
)

// Service handles payment business logic.
type Service struct {
	paymentRepo repository.PaymentRepository
	jobRepo     repository.JobRepository
	jobs        *jobs.Service
	logger      *slog.Logger
}

// NewService creates a new payment service.
func NewService(
	paymentRepo repository.PaymentRepository,
	jobRepo repository.JobRepository,
	jobsSvc *jobs.Service,
	logger *slog.Logger,
) *Service {
	return &Service{
		paymentRepo: paymentRepo,
		jobRepo:     jobRepo,
		jobs:        jobsSvc,
		logger:      logger,
	}
}

func (s *Service) authorize(ctx context.Context, action constants.JobAction, status constants.JobStatus) error {
	d := permission.CanPerformAction(action, common.UserRoleFromContext(ctx), status)
	if !d.Allowed {
		return common.PermissionDeniedError(d.Error)
	}
	return nil
}

func (s *Service) getJob(ctx context.Context, id uuid.UUID) (*ent.Job, error) {
	j, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, common.NotFoundError(fmt.Sprintf("job %s not found", id))
		}
		return nil, common.InternalErrorf("get job: %v", err)
	}
	return j, nil
}

func parsePaymentStatus(raw string) (constants.PaymentStatus, error) {
	if raw == "" {
		return constants.PaymentSucceeded, nil
	}
	for _, v := range constants.PaymentStatusStrings() {
		if raw == v {
			return constants.PaymentStatus(raw), nil
		}
	}
	return "", common.InvalidArgumentError(fmt.Sprintf("unknown payment status %q", raw))
}

// RecordPaymentRequest is one payment event from the gateway.
type RecordPaymentRequest struct {
	JobID        uuid.UUID
	Amount       float64
	CurrencyCode string
	Method       string
	GatewayRef   *string
	Status       string
}

// RecordPayment stores a payment against a job. A succeeded payment on
// an approved job moves it to paid; pending or failed payments leave
// the job where it is.
func (s *Service) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*entity.Payment, *entity.Job, error) {
	j, err := s.getJob(ctx, req.JobID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorize(ctx, constants.ActionProcessPayment, constants.JobStatus(j.Status)); err != nil {
		return nil, nil, err
	}

	validator := common.NewValidator()
	validator.Field("amount", req.Amount, common.Positive)
	validator.Field("currency_code", req.CurrencyCode, common.Required, common.CurrencyCode)
	validator.Field("method", req.Method, common.Required, common.MaxLen(50))
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, nil, err
	}

	status, err := parsePaymentStatus(req.Status)
	if err != nil {
		return nil, nil, err
	}

	row, err := s.paymentRepo.Create(ctx, &repository.CreatePaymentParams{
		JobID:        req.JobID,
		CompanyID:    j.CompanyID,
		Amount:       req.Amount,
		CurrencyCode: req.CurrencyCode,
		Method:       req.Method,
		GatewayRef:   req.GatewayRef,
		Status:       status,
		ReceivedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, nil, common.InternalErrorf("record payment: %v", err)
	}

	job := utils.ToJob(j)
	if status == constants.PaymentSucceeded && constants.JobStatus(j.Status) == constants.JobStatusApprovedUnpaid {
		job, err = s.jobs.Advance(ctx, req.JobID, constants.JobStatusPaid)
		if err != nil {
			return nil, nil, err
		}
	}

	s.logger.Info("payment recorded successfully",
		"payment_id", row.ID,
		"job_id", req.JobID,
		"amount", req.Amount,
		"status", status,
	)
	return utils.ToPayment(row), job, nil
}

// ListPayments returns a job's payments, newest first.
func (s *Service) ListPayments(ctx context.Context, jobID uuid.UUID) ([]entity.Payment, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionViewJob, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	rows, err := s.paymentRepo.ListByJob(ctx, jobID)
	if err != nil {
		return nil, common.InternalErrorf("list payments: %v", err)
	}
	out := make([]entity.Payment, len(rows))
	for i, row := range rows {
		out[i] = *utils.ToPayment(row)
	}
	return out, nil
}
