package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func roleCtx(role constants.UserRole) context.Context {
	return common.WithUserRole(context.Background(), role)
}

type fakeJobRepo struct {
	repository.JobRepository

	jobs     map[uuid.UUID]*ent.Job
	byToken  map[string]*ent.Job
	created  *repository.CreateJobParams
	tokenSet int
}

func (f *fakeJobRepo) GetByID(_ context.Context, id uuid.UUID) (*ent.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not seeded", id)
	}
	return j, nil
}

func (f *fakeJobRepo) GetByPortalToken(_ context.Context, token string) (*ent.Job, error) {
	j, ok := f.byToken[token]
	if !ok {
		return nil, fmt.Errorf("no job for token %q", token)
	}
	return j, nil
}

func (f *fakeJobRepo) CreateJob(_ context.Context, p *repository.CreateJobParams) (*ent.Job, error) {
	f.created = p
	return &ent.Job{
		ID:         uuid.New(),
		CompanyID:  p.CompanyID,
		ClientName: p.ClientName,
		Status:     string(constants.JobStatusIntakeScheduled),
	}, nil
}

func (f *fakeJobRepo) UpdateStatus(_ context.Context, id uuid.UUID, s constants.JobStatus) (*ent.Job, error) {
	j := f.jobs[id]
	j.Status = string(s)
	return j, nil
}

func (f *fakeJobRepo) SetPortalToken(_ context.Context, id uuid.UUID, token string) (*ent.Job, error) {
	f.tokenSet++
	j := f.jobs[id]
	j.PortalToken = &token
	return j, nil
}

func (f *fakeJobRepo) SetDeliveryWindow(_ context.Context, id uuid.UUID, start, end time.Time) (*ent.Job, error) {
	j := f.jobs[id]
	j.DeliveryWindowStart = &start
	j.DeliveryWindowEnd = &end
	return j, nil
}

type fakeRugRepo struct {
	repository.RugRepository
	analyzed bool
}

func (f *fakeRugRepo) HasAnalyzed(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.analyzed, nil
}

func (f *fakeRugRepo) ListByJob(_ context.Context, _ uuid.UUID) ([]*ent.Rug, error) {
	return nil, nil
}

type fakeEstimateRepo struct {
	repository.EstimateRepository
	finalized bool
	complete  bool
	active    *ent.Estimate
}

func (f *fakeEstimateRepo) HasFinalized(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.finalized, nil
}

func (f *fakeEstimateRepo) AllServicesComplete(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.complete, nil
}

func (f *fakeEstimateRepo) GetActiveByJob(_ context.Context, _ uuid.UUID) (*ent.Estimate, error) {
	if f.active == nil {
		return nil, fmt.Errorf("no active estimate seeded")
	}
	return f.active, nil
}

type fakePaymentRepo struct {
	repository.PaymentRepository
	paid bool
}

func (f *fakePaymentRepo) HasSucceeded(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.paid, nil
}

func (f *fakePaymentRepo) ListByJob(_ context.Context, _ uuid.UUID) ([]*ent.Payment, error) {
	return nil, nil
}

type fakeCompanyRepo struct {
	repository.CompanyRepository
	exists bool
}

func (f *fakeCompanyRepo) Exists(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.exists, nil
}

// world bundles the fakes behind one job so each test can flip the
// facts the transition guard reads.
type world struct {
	svc       *Service
	jobRepo   *fakeJobRepo
	rugs      *fakeRugRepo
	estimates *fakeEstimateRepo
	payments  *fakePaymentRepo
	jobID     uuid.UUID
}

func newWorld(t *testing.T, status constants.JobStatus) *world {
	t.Helper()

	jobID := uuid.New()
	job := &ent.Job{
		ID:         jobID,
		CompanyID:  uuid.New(),
		ClientName: "Priya Raman",
		Status:     string(status),
	}
	w := &world{
		jobRepo:   &fakeJobRepo{jobs: map[uuid.UUID]*ent.Job{jobID: job}, byToken: map[string]*ent.Job{}},
		rugs:      &fakeRugRepo{},
		estimates: &fakeEstimateRepo{},
		payments:  &fakePaymentRepo{},
		jobID:     jobID,
	}
	w.svc = NewService(w.jobRepo, w.rugs, w.estimates, w.payments, &fakeCompanyRepo{exists: true}, testLogger())
	return w
}

func (w *world) job() *ent.Job { return w.jobRepo.jobs[w.jobID] }

func TestChangeStatus_ClientsNeverMoveJobs(t *testing.T) {
	w := newWorld(t, constants.JobStatusEstimateSent)

	_, err := w.svc.ChangeStatus(roleCtx(constants.RoleClient), w.jobID, constants.JobStatusApprovedUnpaid, false)
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Equal(t, string(constants.JobStatusEstimateSent), w.job().Status)
}

func TestChangeStatus_StaffForwardStep(t *testing.T) {
	w := newWorld(t, constants.JobStatusIntakeScheduled)

	job, err := w.svc.ChangeStatus(roleCtx(constants.RoleStaff), w.jobID, constants.JobStatusPickedUp, false)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusPickedUp), job.Status)
}

func TestChangeStatus_SkippingStagesDenied(t *testing.T) {
	w := newWorld(t, constants.JobStatusIntakeScheduled)
	w.rugs.analyzed = true

	_, err := w.svc.ChangeStatus(roleCtx(constants.RoleStaff), w.jobID, constants.JobStatusInspected, false)
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, string(constants.JobStatusIntakeScheduled), w.job().Status)
}

func TestChangeStatus_GuardBlocksUnmetFacts(t *testing.T) {
	w := newWorld(t, constants.JobStatusPickedUp)

	_, err := w.svc.ChangeStatus(roleCtx(constants.RoleStaff), w.jobID, constants.JobStatusInspected, false)
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	w.rugs.analyzed = true
	job, err := w.svc.ChangeStatus(roleCtx(constants.RoleStaff), w.jobID, constants.JobStatusInspected, false)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusInspected), job.Status)
}

func TestChangeStatus_OverrideIsAdminOnly(t *testing.T) {
	w := newWorld(t, constants.JobStatusEstimateSent)

	_, err := w.svc.ChangeStatus(roleCtx(constants.RoleStaff), w.jobID, constants.JobStatusInspected, true)
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	job, err := w.svc.ChangeStatus(roleCtx(constants.RoleAdmin), w.jobID, constants.JobStatusInspected, true)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusInspected), job.Status, "override walks the job backward")
}

func TestChangeStatus_BackwardWithoutOverrideDenied(t *testing.T) {
	w := newWorld(t, constants.JobStatusEstimateSent)

	_, err := w.svc.ChangeStatus(roleCtx(constants.RoleAdmin), w.jobID, constants.JobStatusInspected, false)
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestChangeStatus_SameStatusIsNoOp(t *testing.T) {
	w := newWorld(t, constants.JobStatusPickedUp)

	job, err := w.svc.ChangeStatus(roleCtx(constants.RoleStaff), w.jobID, constants.JobStatusPickedUp, false)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusPickedUp), job.Status)
}

func TestAdvance_SkipsRoleGateKeepsGuard(t *testing.T) {
	w := newWorld(t, constants.JobStatusPickedUp)
	w.rugs.analyzed = true

	// client context: payment capture and approvals run as the client
	job, err := w.svc.Advance(roleCtx(constants.RoleClient), w.jobID, constants.JobStatusInspected)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusInspected), job.Status)

	_, err = w.svc.Advance(roleCtx(constants.RoleClient), w.jobID, constants.JobStatusPaid)
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err), "skipping ahead stays blocked on the trusted path")
}

func TestAdvance_PaymentFactGatesPaid(t *testing.T) {
	w := newWorld(t, constants.JobStatusApprovedUnpaid)

	_, err := w.svc.Advance(roleCtx(constants.RoleClient), w.jobID, constants.JobStatusPaid)
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	w.payments.paid = true
	job, err := w.svc.Advance(roleCtx(constants.RoleClient), w.jobID, constants.JobStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusPaid), job.Status)
}

func TestChangeStatus_EstimateSentNeedsFinalizedEstimateAndPortal(t *testing.T) {
	w := newWorld(t, constants.JobStatusInspected)

	_, err := w.svc.ChangeStatus(roleCtx(constants.RoleStaff), w.jobID, constants.JobStatusEstimateSent, false)
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	w.estimates.finalized = true
	token := uuid.NewString()
	w.job().PortalToken = &token
	job, err := w.svc.ChangeStatus(roleCtx(constants.RoleStaff), w.jobID, constants.JobStatusEstimateSent, false)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusEstimateSent), job.Status)
}

func TestEnsurePortalToken_StableAcrossCalls(t *testing.T) {
	w := newWorld(t, constants.JobStatusInspected)

	first, err := w.svc.EnsurePortalToken(roleCtx(constants.RoleStaff), w.jobID)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := w.svc.EnsurePortalToken(roleCtx(constants.RoleStaff), w.jobID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, w.jobRepo.tokenSet, "token is minted once")
}

func TestEnsurePortalToken_BeforeInspectionDenied(t *testing.T) {
	w := newWorld(t, constants.JobStatusPickedUp)

	_, err := w.svc.EnsurePortalToken(roleCtx(constants.RoleStaff), w.jobID)
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestScheduleDelivery_WindowMustBeOrdered(t *testing.T) {
	w := newWorld(t, constants.JobStatusReady)
	start := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

	_, err := w.svc.ScheduleDelivery(roleCtx(constants.RoleStaff), w.jobID, start, start.Add(-time.Hour))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestScheduleDelivery_MovesJobWhenAddressKnown(t *testing.T) {
	w := newWorld(t, constants.JobStatusReady)
	addr := "117 Mill Road"
	w.job().DeliveryAddress = &addr
	w.estimates.complete = true
	start := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

	job, err := w.svc.ScheduleDelivery(roleCtx(constants.RoleStaff), w.jobID, start, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusDeliveryScheduled), job.Status)
	require.NotNil(t, job.DeliveryWindowStart)
	assert.True(t, job.DeliveryWindowStart.Equal(start))
}

func TestScheduleDelivery_NoAddressBlocks(t *testing.T) {
	w := newWorld(t, constants.JobStatusReady)
	w.estimates.complete = true
	start := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

	_, err := w.svc.ScheduleDelivery(roleCtx(constants.RoleStaff), w.jobID, start, start.Add(2*time.Hour))
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestCreateJob_RequiresClientName(t *testing.T) {
	w := newWorld(t, constants.JobStatusIntakeScheduled)

	_, err := w.svc.CreateJob(roleCtx(constants.RoleStaff), CreateJobRequest{CompanyID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Nil(t, w.jobRepo.created)
}

func TestCreateJob_TrimsAndBooksAtIntake(t *testing.T) {
	w := newWorld(t, constants.JobStatusIntakeScheduled)

	job, err := w.svc.CreateJob(roleCtx(constants.RoleStaff), CreateJobRequest{
		CompanyID:  uuid.New(),
		ClientName: "  Priya Raman  ",
		Notes:      "   ",
	})
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusIntakeScheduled), job.Status)

	require.NotNil(t, w.jobRepo.created)
	assert.Equal(t, "Priya Raman", w.jobRepo.created.ClientName)
	assert.Nil(t, w.jobRepo.created.Notes, "blank optionals stay unset")
}

func TestGetJob_ClientSeesNothingBeforeEstimate(t *testing.T) {
	w := newWorld(t, constants.JobStatusPickedUp)

	_, err := w.svc.GetJob(roleCtx(constants.RoleClient), w.jobID)
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	w.job().Status = string(constants.JobStatusEstimateSent)
	job, err := w.svc.GetJob(roleCtx(constants.RoleClient), w.jobID)
	require.NoError(t, err)
	assert.Equal(t, w.jobID, job.ID)
}

func TestGetJobByPortalToken_ResolvesAndAppliesVisibility(t *testing.T) {
	w := newWorld(t, constants.JobStatusEstimateSent)
	token := uuid.NewString()
	w.job().PortalToken = &token
	w.jobRepo.byToken[token] = w.job()

	job, err := w.svc.GetJobByPortalToken(roleCtx(constants.RoleClient), token)
	require.NoError(t, err)
	assert.Equal(t, w.jobID, job.ID)
}

func TestListJobs_ClientDenied(t *testing.T) {
	w := newWorld(t, constants.JobStatusEstimateSent)

	_, err := w.svc.ListJobs(roleCtx(constants.RoleClient), w.job().CompanyID, nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestGetJobReport_BundlesActiveEstimate(t *testing.T) {
	w := newWorld(t, constants.JobStatusEstimateSent)
	w.estimates.active = &ent.Estimate{
		ID:       uuid.New(),
		JobID:    w.jobID,
		Status:   string(constants.EstimateSent),
		Subtotal: 860,
		Total:    928.80,
	}

	report, err := w.svc.GetJobReport(roleCtx(constants.RoleStaff), w.jobID)
	require.NoError(t, err)
	require.NotNil(t, report.Estimate)
	assert.Equal(t, w.estimates.active.ID, report.Estimate.ID)
	assert.NotNil(t, report.Rugs)
	assert.NotNil(t, report.Payments)
}
