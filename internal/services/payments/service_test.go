package payments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/repository"
	"github.com/rugflowhq/rugflow/internal/services/jobs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func clientCtx() context.Context {
	return common.WithUserRole(context.Background(), constants.RoleClient)
}

type fakeJobRepo struct {
	repository.JobRepository
	jobs map[uuid.UUID]*ent.Job
}

func (f *fakeJobRepo) GetByID(_ context.Context, id uuid.UUID) (*ent.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not seeded", id)
	}
	return j, nil
}

func (f *fakeJobRepo) UpdateStatus(_ context.Context, id uuid.UUID, s constants.JobStatus) (*ent.Job, error) {
	j := f.jobs[id]
	j.Status = string(s)
	return j, nil
}

// fakePaymentRepo reports HasSucceeded from what was recorded, so the
// transition guard sees the payment that was just captured.
type fakePaymentRepo struct {
	repository.PaymentRepository
	created []*repository.CreatePaymentParams
}

func (f *fakePaymentRepo) Create(_ context.Context, p *repository.CreatePaymentParams) (*ent.Payment, error) {
	f.created = append(f.created, p)
	return &ent.Payment{
		ID:           uuid.New(),
		JobID:        p.JobID,
		CompanyID:    p.CompanyID,
		Amount:       p.Amount,
		CurrencyCode: p.CurrencyCode,
		Method:       p.Method,
		GatewayRef:   p.GatewayRef,
		Status:       string(p.Status),
		ReceivedAt:   p.ReceivedAt,
	}, nil
}

func (f *fakePaymentRepo) HasSucceeded(_ context.Context, _ uuid.UUID) (bool, error) {
	for _, p := range f.created {
		if p.Status == constants.PaymentSucceeded {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePaymentRepo) ListByJob(_ context.Context, _ uuid.UUID) ([]*ent.Payment, error) {
	return nil, nil
}

type fakeRugRepo struct {
	repository.RugRepository
}

func (f *fakeRugRepo) HasAnalyzed(_ context.Context, _ uuid.UUID) (bool, error) {
	return true, nil
}

type fakeEstimateRepo struct {
	repository.EstimateRepository
}

func (f *fakeEstimateRepo) HasFinalized(_ context.Context, _ uuid.UUID) (bool, error) {
	return true, nil
}

func (f *fakeEstimateRepo) AllServicesComplete(_ context.Context, _ uuid.UUID) (bool, error) {
	return false, nil
}

func newService(t *testing.T, jobStatus constants.JobStatus) (*Service, *fakePaymentRepo, uuid.UUID) {
	t.Helper()

	jobID := uuid.New()
	jobRepo := &fakeJobRepo{jobs: map[uuid.UUID]*ent.Job{
		jobID: {ID: jobID, CompanyID: uuid.New(), ClientName: "Priya Raman", Status: string(jobStatus)},
	}}
	paymentRepo := &fakePaymentRepo{}

	// a real jobs service over the same fakes, so the paid transition
	// runs the actual guard
	jobsSvc := jobs.NewService(jobRepo, &fakeRugRepo{}, &fakeEstimateRepo{}, paymentRepo, nil, testLogger())
	return NewService(paymentRepo, jobRepo, jobsSvc, testLogger()), paymentRepo, jobID
}

func succeededPayment(jobID uuid.UUID) RecordPaymentRequest {
	return RecordPaymentRequest{
		JobID:        jobID,
		Amount:       928.80,
		CurrencyCode: "USD",
		Method:       "card",
		Status:       string(constants.PaymentSucceeded),
	}
}

func TestRecordPayment_SucceededMovesApprovedJobToPaid(t *testing.T) {
	svc, repo, jobID := newService(t, constants.JobStatusApprovedUnpaid)

	payment, job, err := svc.RecordPayment(clientCtx(), succeededPayment(jobID))
	require.NoError(t, err)

	assert.Equal(t, string(constants.PaymentSucceeded), payment.Status)
	assert.Equal(t, 928.80, payment.Amount)
	assert.Equal(t, string(constants.JobStatusPaid), job.Status)
	require.Len(t, repo.created, 1)
	assert.False(t, repo.created[0].ReceivedAt.IsZero())
}

func TestRecordPayment_PendingLeavesJobAlone(t *testing.T) {
	svc, repo, jobID := newService(t, constants.JobStatusApprovedUnpaid)

	req := succeededPayment(jobID)
	req.Status = string(constants.PaymentPending)

	payment, job, err := svc.RecordPayment(clientCtx(), req)
	require.NoError(t, err)
	assert.Equal(t, string(constants.PaymentPending), payment.Status)
	assert.Equal(t, string(constants.JobStatusApprovedUnpaid), job.Status)
	require.Len(t, repo.created, 1)
}

func TestRecordPayment_EmptyStatusDefaultsToSucceeded(t *testing.T) {
	svc, _, jobID := newService(t, constants.JobStatusApprovedUnpaid)

	req := succeededPayment(jobID)
	req.Status = ""

	payment, job, err := svc.RecordPayment(clientCtx(), req)
	require.NoError(t, err)
	assert.Equal(t, string(constants.PaymentSucceeded), payment.Status)
	assert.Equal(t, string(constants.JobStatusPaid), job.Status)
}

func TestRecordPayment_BeforeApprovalDenied(t *testing.T) {
	svc, repo, jobID := newService(t, constants.JobStatusEstimateSent)

	_, _, err := svc.RecordPayment(clientCtx(), succeededPayment(jobID))
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Empty(t, repo.created)
}

func TestRecordPayment_AlreadyPaidDenied(t *testing.T) {
	svc, _, jobID := newService(t, constants.JobStatusPaid)

	_, _, err := svc.RecordPayment(clientCtx(), succeededPayment(jobID))
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestRecordPayment_ValidatesInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RecordPaymentRequest)
	}{
		{"zero amount", func(r *RecordPaymentRequest) { r.Amount = 0 }},
		{"negative amount", func(r *RecordPaymentRequest) { r.Amount = -10 }},
		{"missing currency", func(r *RecordPaymentRequest) { r.CurrencyCode = "" }},
		{"bad currency", func(r *RecordPaymentRequest) { r.CurrencyCode = "DOLLARS" }},
		{"missing method", func(r *RecordPaymentRequest) { r.Method = "" }},
		{"unknown status", func(r *RecordPaymentRequest) { r.Status = "mailed_a_check" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, jobID := newService(t, constants.JobStatusApprovedUnpaid)
			req := succeededPayment(jobID)
			tt.mutate(&req)

			_, _, err := svc.RecordPayment(clientCtx(), req)
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.Empty(t, repo.created)
		})
	}
}

func TestParsePaymentStatus(t *testing.T) {
	s, err := parsePaymentStatus("")
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentSucceeded, s)

	s, err = parsePaymentStatus("refunded")
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentRefunded, s)

	_, err = parsePaymentStatus("wire")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
