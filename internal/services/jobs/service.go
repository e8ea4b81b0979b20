// Package jobs owns the job lifecycle: intake, detail edits, guarded
// status transitions and the customer-facing report.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/entity"
	"github.com/rugflowhq/rugflow/internal/lifecycle"
	"github.com/rugflowhq/rugflow/internal/permission"
	"github.com/rugflowhq/rugflow/internal/repository"
	"github.com/rugflowhq/rugflow/internal/utils"
)

// Service handles job business logic.
type Service struct {
	jobRepo      repository.JobRepository
	rugRepo      repository.RugRepository
	estimateRepo repository.EstimateRepository
	paymentRepo  repository.PaymentRepository
	companyRepo  repository.CompanyRepository
	logger       *slog.Logger
}

// NewService creates a new job service.
func NewService(
	jobRepo repository.JobRepository,
	rugRepo repository.RugRepository,
	estimateRepo repository.EstimateRepository,
	paymentRepo repository.PaymentRepository,
	companyRepo repository.CompanyRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		jobRepo:      jobRepo,
		rugRepo:      rugRepo,
		estimateRepo: estimateRepo,
		paymentRepo:  paymentRepo,
		companyRepo:  companyRepo,
		logger:       logger,
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

func optStr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// CreateJobRequest represents intake parameters for a new job.
type CreateJobRequest struct {
	CompanyID         uuid.UUID
	ClientName        string
	ClientEmail       string
	ClientPhone       string
	PickupAddress     string
	DeliveryAddress   string
	ScheduledPickupAt *time.Time
	Notes             string
}

// CreateJob books a new job at intake_scheduled.
func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*entity.Job, error) {
	if err := s.authorize(ctx, constants.ActionEditJob, constants.JobStatusIntakeScheduled); err != nil {
		return nil, err
	}

	validator := common.NewValidator()
	validator.Field("client_name", req.ClientName, common.Required, common.MaxLen(200))
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, err
	}

	ok, err := s.companyRepo.Exists(ctx, req.CompanyID)
	if err != nil {
		return nil, common.InternalErrorf("check company: %v", err)
	}
	if !ok {
		return nil, common.NotFoundError(fmt.Sprintf("company %s not found", req.CompanyID))
	}

	row, err := s.jobRepo.CreateJob(ctx, &repository.CreateJobParams{
		CompanyID:         req.CompanyID,
		ClientName:        strings.TrimSpace(req.ClientName),
		ClientEmail:       optStr(req.ClientEmail),
		ClientPhone:       optStr(req.ClientPhone),
		PickupAddress:     optStr(req.PickupAddress),
		DeliveryAddress:   optStr(req.DeliveryAddress),
		ScheduledPickupAt: req.ScheduledPickupAt,
		Notes:             optStr(req.Notes),
	})
	if err != nil {
		return nil, common.InternalErrorf("create job: %v", err)
	}

	s.logger.Info("job created successfully", "job_id", row.ID, "company_id", req.CompanyID, "client", row.ClientName)
	return utils.ToJob(row), nil
}

// GetJob returns one job, applying the viewer's visibility rules.
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (*entity.Job, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionViewJob, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}
	return utils.ToJob(j), nil
}

// GetJobByPortalToken resolves a portal link to its job. The same
// visibility rules apply, so a client link goes live only once the
// estimate is out.
func (s *Service) GetJobByPortalToken(ctx context.Context, token string) (*entity.Job, error) {
	j, err := s.jobRepo.GetByPortalToken(ctx, token)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, common.NotFoundError("no job for this portal link")
		}
		return nil, common.InternalErrorf("get job by portal token: %v", err)
	}
	if err := s.authorize(ctx, constants.ActionViewJob, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}
	return utils.ToJob(j), nil
}

// ListJobs returns a company's jobs, optionally filtered by status and
// creation date range.
func (s *Service) ListJobs(ctx context.Context, companyID uuid.UUID, status *constants.JobStatus, fromDate, toDate *time.Time) ([]*entity.Job, error) {
	if common.UserRoleFromContext(ctx) == constants.RoleClient {
		return nil, common.PermissionDeniedError("This action is not available to clients.")
	}

	rows, err := s.jobRepo.ListJobs(ctx, companyID, status, fromDate, toDate)
	if err != nil {
		return nil, common.InternalErrorf("list jobs: %v", err)
	}

	out := make([]*entity.Job, 0, len(rows))
	for _, row := range rows {
		out = append(out, utils.ToJob(row))
	}
	return out, nil
}

// UpdateJobRequest carries job detail edits; empty fields are left
// unchanged.
type UpdateJobRequest struct {
	ClientName        string
	ClientEmail       string
	ClientPhone       string
	PickupAddress     string
	DeliveryAddress   string
	ScheduledPickupAt *time.Time
	Notes             string
}

// UpdateJob edits job details. Details stay editable through the whole
// service flow (a delivery address often arrives late), only closed jobs
// refuse edits.
func (s *Service) UpdateJob(ctx context.Context, jobID uuid.UUID, req UpdateJobRequest) (*entity.Job, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionEditJob, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	row, err := s.jobRepo.UpdateDetails(ctx, jobID, &repository.UpdateJobParams{
		ClientName:        optStr(req.ClientName),
		ClientEmail:       optStr(req.ClientEmail),
		ClientPhone:       optStr(req.ClientPhone),
		PickupAddress:     optStr(req.PickupAddress),
		DeliveryAddress:   optStr(req.DeliveryAddress),
		ScheduledPickupAt: req.ScheduledPickupAt,
		Notes:             optStr(req.Notes),
	})
	if err != nil {
		return nil, common.InternalErrorf("update job: %v", err)
	}

	s.logger.Info("job updated successfully", "job_id", jobID)
	return utils.ToJob(row), nil
}

// transitionContext assembles the facts the transition guard checks.
func (s *Service) transitionContext(ctx context.Context, j *ent.Job) (lifecycle.Context, error) {
	var tc lifecycle.Context

	hasAnalyzed, err := s.rugRepo.HasAnalyzed(ctx, j.ID)
	if err != nil {
		return tc, common.InternalErrorf("check analyzed rugs: %v", err)
	}
	hasFinalized, err := s.estimateRepo.HasFinalized(ctx, j.ID)
	if err != nil {
		return tc, common.InternalErrorf("check finalized estimates: %v", err)
	}
	hasPaid, err := s.paymentRepo.HasSucceeded(ctx, j.ID)
	if err != nil {
		return tc, common.InternalErrorf("check payments: %v", err)
	}
	complete, err := s.estimateRepo.AllServicesComplete(ctx, j.ID)
	if err != nil {
		return tc, common.InternalErrorf("check service completion: %v", err)
	}

	tc.HasAnalyzedRugs = hasAnalyzed
	tc.HasApprovedEstimates = hasFinalized
	tc.HasPortalLink = j.PortalToken != nil && *j.PortalToken != ""
	tc.HasPaidPayment = hasPaid
	tc.AllServicesComplete = complete
	tc.HasDeliveryAddress = j.DeliveryAddress != nil && strings.TrimSpace(*j.DeliveryAddress) != ""
	tc.HasDeliveryWindow = j.DeliveryWindowStart != nil && j.DeliveryWindowEnd != nil
	return tc, nil
}

// transition runs the guard and persists the new status. A same-status
// request is a no-op that succeeds without writing.
func (s *Service) transition(ctx context.Context, j *ent.Job, target constants.JobStatus, adminOverride bool) (*ent.Job, error) {
	current := constants.JobStatus(j.Status)

	tc, err := s.transitionContext(ctx, j)
	if err != nil {
		return nil, err
	}

	d := lifecycle.ValidateTransition(current, target, tc, adminOverride)
	if !d.Allowed {
		return nil, common.FailedPreconditionError(d.Error)
	}
	if target == current {
		return j, nil
	}

	row, err := s.jobRepo.UpdateStatus(ctx, j.ID, target)
	if err != nil {
		return nil, common.InternalErrorf("update job status: %v", err)
	}

	s.logger.Info("job status changed",
		"job_id", j.ID,
		"from", string(current),
		"to", string(target),
		"override", adminOverride,
	)
	return row, nil
}

// ChangeStatus is the request-facing transition path. Clients never move
// jobs directly; their approvals and payments advance the job through
// their own operations.
func (s *Service) ChangeStatus(ctx context.Context, jobID uuid.UUID, target constants.JobStatus, adminOverride bool) (*entity.Job, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if common.UserRoleFromContext(ctx) == constants.RoleClient {
		return nil, common.PermissionDeniedError("Status changes are not available to clients.")
	}
	if adminOverride {
		if err := s.authorize(ctx, constants.ActionOverrideStatus, constants.JobStatus(j.Status)); err != nil {
			return nil, err
		}
	}

	row, err := s.transition(ctx, j, target, adminOverride)
	if err != nil {
		return nil, err
	}
	return utils.ToJob(row), nil
}

// Advance is the trusted path for transitions triggered by other
// operations (client approval, payment capture, service completion). The
// guard still runs; only the role gate is skipped.
func (s *Service) Advance(ctx context.Context, jobID uuid.UUID, target constants.JobStatus) (*entity.Job, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	row, err := s.transition(ctx, j, target, false)
	if err != nil {
		return nil, err
	}
	return utils.ToJob(row), nil
}

// ScheduleDelivery records the delivery window and moves the job to
// delivery_scheduled.
func (s *Service) ScheduleDelivery(ctx context.Context, jobID uuid.UUID, start, end time.Time) (*entity.Job, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionScheduleDelivery, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}
	if start.IsZero() || end.IsZero() {
		return nil, common.InvalidArgumentError("delivery window start and end are required")
	}
	if !end.After(start) {
		return nil, common.InvalidArgumentError("delivery window end must be after start")
	}

	j, err = s.jobRepo.SetDeliveryWindow(ctx, jobID, start, end)
	if err != nil {
		return nil, common.InternalErrorf("set delivery window: %v", err)
	}

	row, err := s.transition(ctx, j, constants.JobStatusDeliveryScheduled, false)
	if err != nil {
		return nil, err
	}
	return utils.ToJob(row), nil
}

// DeleteJob removes a job and everything under it.
func (s *Service) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, constants.ActionDeleteJob, constants.JobStatus(j.Status)); err != nil {
		return err
	}
	if err := s.jobRepo.DeleteJob(ctx, jobID); err != nil {
		return common.InternalErrorf("delete job: %v", err)
	}
	s.logger.Info("job deleted successfully", "job_id", jobID, "status", j.Status)
	return nil
}

// EnsurePortalToken returns the job's portal token, minting one on first
// use. Tokens are stable: regenerating links for the same job always
// yields the same URL.
func (s *Service) EnsurePortalToken(ctx context.Context, jobID uuid.UUID) (string, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if err := s.authorize(ctx, constants.ActionGeneratePortalLink, constants.JobStatus(j.Status)); err != nil {
		return "", err
	}
	if j.PortalToken != nil && *j.PortalToken != "" {
		return *j.PortalToken, nil
	}

	token := uuid.NewString()
	if _, err := s.jobRepo.SetPortalToken(ctx, jobID, token); err != nil {
		return "", common.InternalErrorf("set portal token: %v", err)
	}
	s.logger.Info("portal token generated", "job_id", jobID)
	return token, nil
}

// Report bundles everything the job report shows.
type Report struct {
	Job      *entity.Job
	Rugs     []*entity.Rug
	Estimate *entity.Estimate
	Payments []*entity.Payment
}

// GetJobReport assembles the full job view: rugs, the active estimate
// with its lines, and payment history.
func (s *Service) GetJobReport(ctx context.Context, jobID uuid.UUID) (*Report, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionViewReport, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	rugs, err := s.rugRepo.ListByJob(ctx, jobID)
	if err != nil {
		return nil, common.InternalErrorf("list rugs: %v", err)
	}
	payments, err := s.paymentRepo.ListByJob(ctx, jobID)
	if err != nil {
		return nil, common.InternalErrorf("list payments: %v", err)
	}

	report := &Report{
		Job:      utils.ToJob(j),
		Rugs:     make([]*entity.Rug, 0, len(rugs)),
		Payments: make([]*entity.Payment, 0, len(payments)),
	}
	for _, r := range rugs {
		report.Rugs = append(report.Rugs, utils.ToRug(r))
	}
	for _, p := range payments {
		report.Payments = append(report.Payments, utils.ToPayment(p))
	}

	est, err := s.estimateRepo.GetActiveByJob(ctx, jobID)
	switch {
	case err == nil:
		report.Estimate = utils.ToEstimate(est)
	case ent.IsNotFound(err):
		// no estimate yet
	default:
		return nil, common.InternalErrorf("load estimate: %v", err)
	}

	return report, nil
}
