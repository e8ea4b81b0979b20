// Package estimates owns pricing: building estimates from analyzed rugs,
// the staff finalize/send flow, the client's approve/decline decisions
// and per-line service fulfillment.
package estimates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/internal/analysis"
	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/entity"
	"github.com/rugflowhq/rugflow/internal/permission"
	"github.com/rugflowhq/rugflow/internal/repository"
	"github.com/rugflowhq/rugflow/internal/services/jobs"
	"github.com/rugflowhq/rugflow/internal/utils"
)

// Service handles estimate business logic.
type Service struct {
	estimateRepo repository.EstimateRepository
	jobRepo      repository.JobRepository
	rugRepo      repository.RugRepository
	companyRepo  repository.CompanyRepository
	jobs         *jobs.Service
	portalBase   string
	logger       *slog.Logger
}

// NewService creates a new estimate service.
func NewService(
	estimateRepo repository.EstimateRepository,
	jobRepo repository.JobRepository,
	rugRepo repository.RugRepository,
	companyRepo repository.CompanyRepository,
	jobsSvc *jobs.Service,
	portalBase string,
	logger *slog.Logger,
) *Service {
	return &Service{
		estimateRepo: estimateRepo,
		jobRepo:      jobRepo,
		rugRepo:      rugRepo,
		companyRepo:  companyRepo,
		jobs:         jobsSvc,
		portalBase:   portalBase,
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

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// priceBookRates decodes a company's per-sqft rate overrides. Unknown or
// malformed books fall back to catalog defaults.
func priceBookRates(raw json.RawMessage) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	var rates map[string]float64
	if err := json.Unmarshal(raw, &rates); err != nil {
		return nil
	}
	return rates
}

func totalsFromItems(items []*ent.EstimateItem, taxRate float64) *repository.EstimateTotals {
	var sub float64
	for _, it := range items {
		if !it.Declined {
			sub += it.Amount
		}
	}
	sub = round2(sub)
	tax := round2(sub * taxRate)
	return &repository.EstimateTotals{
		Subtotal: sub,
		Tax:      tax,
		Total:    round2(sub + tax),
	}
}

// GenerateEstimate builds a fresh draft from the job's analyzed rugs.
// Each recommended service becomes one line priced from the company's
// price book, falling back to catalog defaults. Regenerating replaces
// any prior draft.
func (s *Service) GenerateEstimate(ctx context.Context, jobID uuid.UUID) (*entity.Estimate, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionEditPricing, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	rugs, err := s.rugRepo.ListAnalyzedByJob(ctx, jobID)
	if err != nil {
		return nil, common.InternalErrorf("list analyzed rugs: %v", err)
	}
	if len(rugs) == 0 {
		return nil, common.FailedPreconditionError("No analyzed rugs to estimate. Analyze at least one rug first.")
	}

	company, err := s.companyRepo.GetByID(ctx, j.CompanyID)
	if err != nil {
		return nil, common.InternalErrorf("load company: %v", err)
	}
	rates := priceBookRates(company.PriceBook)

	var items []repository.CreateEstimateItemParams
	for _, rug := range rugs {
		var findings analysis.RugFindings
		if err := json.Unmarshal(rug.Analysis, &findings); err != nil {
			s.logger.Warn("skipping rug with unreadable analysis", "rug_id", rug.ID, "error", err)
			continue
		}

		area := rug.LengthFt * rug.WidthFt
		seen := make(map[constants.ServiceCode]struct{})
		for _, rec := range findings.RecommendedServices {
			code, ok := constants.CanonicalizeService(rec)
			if !ok {
				s.logger.Warn("skipping unknown recommended service", "rug_id", rug.ID, "service", rec)
				continue
			}
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}

			rate, override := rates[string(code)]
			if !override {
				rate = constants.DefaultRate(code)
			}
			items = append(items, repository.CreateEstimateItemParams{
				RugID:       rug.ID,
				ServiceCode: string(code),
				Description: fmt.Sprintf("%s for rug #%d (%.0f sq ft)", constants.ServiceLabel(code), rug.RugNo, area),
				AreaSqFt:    area,
				UnitPrice:   rate,
				Amount:      round2(rate * area),
			})
		}
	}
	if len(items) == 0 {
		return nil, common.FailedPreconditionError("Analysis produced no priceable services for this job.")
	}

	var subtotal float64
	for _, it := range items {
		subtotal += it.Amount
	}
	subtotal = round2(subtotal)
	tax := round2(subtotal * company.TaxRate)

	if _, err := s.estimateRepo.DeleteDraftsByJob(ctx, jobID); err != nil {
		return nil, common.InternalErrorf("replace draft estimates: %v", err)
	}

	row, err := s.estimateRepo.CreateWithItems(ctx, &repository.CreateEstimateParams{
		JobID:        jobID,
		CompanyID:    j.CompanyID,
		CurrencyCode: company.DefaultCurrency,
		Subtotal:     subtotal,
		Tax:          tax,
		Total:        round2(subtotal + tax),
		Items:        items,
	})
	if err != nil {
		return nil, common.InternalErrorf("create estimate: %v", err)
	}

	s.logger.Info("estimate generated successfully",
		"estimate_id", row.ID,
		"job_id", jobID,
		"items", len(items),
		"total", row.Total,
	)
	return utils.ToEstimate(row), nil
}

// FinalizeEstimate marks a draft as internally approved. Finalizing an
// already finalized estimate is a no-op.
func (s *Service) FinalizeEstimate(ctx context.Context, estimateID uuid.UUID) (*entity.Estimate, error) {
	est, err := s.estimateRepo.GetByID(ctx, estimateID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, common.NotFoundError(fmt.Sprintf("estimate %s not found", estimateID))
		}
		return nil, common.InternalErrorf("get estimate: %v", err)
	}
	j, err := s.getJob(ctx, est.JobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionApproveEstimate, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	switch constants.EstimateStatus(est.Status) {
	case constants.EstimateDraft:
		if _, err := s.estimateRepo.Finalize(ctx, estimateID); err != nil {
			return nil, common.InternalErrorf("finalize estimate: %v", err)
		}
	case constants.EstimateFinalized:
		return utils.ToEstimate(est), nil
	default:
		return nil, common.FailedPreconditionError("Estimate can no longer be finalized.")
	}

	row, err := s.estimateRepo.GetByID(ctx, estimateID)
	if err != nil {
		return nil, common.InternalErrorf("reload estimate: %v", err)
	}
	return utils.ToEstimate(row), nil
}

// SendToClient publishes the finalized estimate: it mints the portal
// link if needed, moves the job to estimate_sent and stamps the
// estimate. Returns the job and the portal URL to hand to the client.
func (s *Service) SendToClient(ctx context.Context, jobID uuid.UUID) (*entity.Job, string, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, "", err
	}
	if err := s.authorize(ctx, constants.ActionSendToClient, constants.JobStatus(j.Status)); err != nil {
		return nil, "", err
	}

	est, err := s.estimateRepo.GetActiveByJob(ctx, jobID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, "", common.FailedPreconditionError("Generate and finalize an estimate before sending.")
		}
		return nil, "", common.InternalErrorf("load estimate: %v", err)
	}
	if constants.EstimateStatus(est.Status) == constants.EstimateDraft {
		return nil, "", common.FailedPreconditionError("The estimate must be finalized before it can be sent.")
	}

	token, err := s.jobs.EnsurePortalToken(ctx, jobID)
	if err != nil {
		return nil, "", err
	}

	job, err := s.jobs.Advance(ctx, jobID, constants.JobStatusEstimateSent)
	if err != nil {
		return nil, "", err
	}

	if _, err := s.estimateRepo.MarkSent(ctx, est.ID); err != nil {
		return nil, "", common.InternalErrorf("mark estimate sent: %v", err)
	}

	portalURL := strings.TrimRight(s.portalBase, "/") + "/portal/" + token
	s.logger.Info("estimate sent to client", "estimate_id", est.ID, "job_id", jobID)
	return job, portalURL, nil
}

// ClientApprove records the client's acceptance, recomputes totals over
// the lines they kept and advances the job to approved_unpaid.
func (s *Service) ClientApprove(ctx context.Context, jobID uuid.UUID) (*entity.Job, *entity.Estimate, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorize(ctx, constants.ActionClientApprove, constants.JobStatus(j.Status)); err != nil {
		return nil, nil, err
	}

	est, err := s.estimateRepo.GetActiveByJob(ctx, jobID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil, common.FailedPreconditionError("No estimate to approve.")
		}
		return nil, nil, common.InternalErrorf("load estimate: %v", err)
	}

	company, err := s.companyRepo.GetByID(ctx, j.CompanyID)
	if err != nil {
		return nil, nil, common.InternalErrorf("load company: %v", err)
	}

	totals := totalsFromItems(est.Edges.Items, company.TaxRate)
	if totals.Subtotal <= 0 {
		return nil, nil, common.FailedPreconditionError("All services were declined. There is nothing to approve.")
	}

	if _, err := s.estimateRepo.Decide(ctx, est.ID, constants.EstimateApproved, totals); err != nil {
		return nil, nil, common.InternalErrorf("record approval: %v", err)
	}

	job, err := s.jobs.Advance(ctx, jobID, constants.JobStatusApprovedUnpaid)
	if err != nil {
		return nil, nil, err
	}

	row, err := s.estimateRepo.GetByID(ctx, est.ID)
	if err != nil {
		return nil, nil, common.InternalErrorf("reload estimate: %v", err)
	}
	s.logger.Info("estimate approved by client", "estimate_id", est.ID, "job_id", jobID, "total", totals.Total)
	return job, utils.ToEstimate(row), nil
}

// DeclineService strikes one line off the estimate and recomputes its
// totals. Declining the same line twice is a no-op.
func (s *Service) DeclineService(ctx context.Context, itemID uuid.UUID) (*entity.EstimateItem, error) {
	item, err := s.estimateRepo.GetItem(ctx, itemID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, common.NotFoundError(fmt.Sprintf("estimate item %s not found", itemID))
		}
		return nil, common.InternalErrorf("get estimate item: %v", err)
	}
	est, err := s.estimateRepo.GetByID(ctx, item.EstimateID)
	if err != nil {
		return nil, common.InternalErrorf("load estimate: %v", err)
	}
	j, err := s.getJob(ctx, est.JobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionDeclineServices, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	if item.Declined {
		out := utils.ToEstimateItem(item)
		return &out, nil
	}

	row, err := s.estimateRepo.DeclineItem(ctx, itemID)
	if err != nil {
		return nil, common.InternalErrorf("decline item: %v", err)
	}

	if err := s.recomputeTotals(ctx, est.ID, j.CompanyID); err != nil {
		return nil, err
	}

	out := utils.ToEstimateItem(row)
	return &out, nil
}

// MarkServiceComplete finishes one accepted line. Completing the last
// open line while the job is in service moves it to ready.
func (s *Service) MarkServiceComplete(ctx context.Context, itemID uuid.UUID) (*entity.EstimateItem, *entity.Job, error) {
	item, err := s.estimateRepo.GetItem(ctx, itemID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil, common.NotFoundError(fmt.Sprintf("estimate item %s not found", itemID))
		}
		return nil, nil, common.InternalErrorf("get estimate item: %v", err)
	}
	est, err := s.estimateRepo.GetByID(ctx, item.EstimateID)
	if err != nil {
		return nil, nil, common.InternalErrorf("load estimate: %v", err)
	}
	j, err := s.getJob(ctx, est.JobID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorize(ctx, constants.ActionMarkServiceComplete, constants.JobStatus(j.Status)); err != nil {
		return nil, nil, err
	}
	if item.Declined {
		return nil, nil, common.FailedPreconditionError("Declined services cannot be completed.")
	}

	if constants.ServiceItemStatus(item.ServiceStatus) != constants.ServiceItemCompleted {
		item, err = s.estimateRepo.SetItemStatus(ctx, itemID, constants.ServiceItemCompleted)
		if err != nil {
			return nil, nil, common.InternalErrorf("complete item: %v", err)
		}
	}

	job := utils.ToJob(j)
	if constants.JobStatus(j.Status) == constants.JobStatusInService {
		complete, err := s.estimateRepo.AllServicesComplete(ctx, j.ID)
		if err != nil {
			return nil, nil, common.InternalErrorf("check service completion: %v", err)
		}
		if complete {
			job, err = s.jobs.Advance(ctx, j.ID, constants.JobStatusReady)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	out := utils.ToEstimateItem(item)
	return &out, job, nil
}

// UpdateItemPrice reprices one line and recomputes the estimate totals.
func (s *Service) UpdateItemPrice(ctx context.Context, itemID uuid.UUID, unitPrice float64) (*entity.EstimateItem, *entity.Estimate, error) {
	if unitPrice < 0 {
		return nil, nil, common.InvalidArgumentError("unit price cannot be negative")
	}

	item, err := s.estimateRepo.GetItem(ctx, itemID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil, common.NotFoundError(fmt.Sprintf("estimate item %s not found", itemID))
		}
		return nil, nil, common.InternalErrorf("get estimate item: %v", err)
	}
	est, err := s.estimateRepo.GetByID(ctx, item.EstimateID)
	if err != nil {
		return nil, nil, common.InternalErrorf("load estimate: %v", err)
	}
	j, err := s.getJob(ctx, est.JobID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorize(ctx, constants.ActionEditPricing, constants.JobStatus(j.Status)); err != nil {
		return nil, nil, err
	}

	row, err := s.estimateRepo.UpdateItemPrice(ctx, itemID, unitPrice, round2(unitPrice*item.AreaSqft))
	if err != nil {
		return nil, nil, common.InternalErrorf("update item price: %v", err)
	}

	if err := s.recomputeTotals(ctx, est.ID, j.CompanyID); err != nil {
		return nil, nil, err
	}

	reloaded, err := s.estimateRepo.GetByID(ctx, est.ID)
	if err != nil {
		return nil, nil, common.InternalErrorf("reload estimate: %v", err)
	}

	out := utils.ToEstimateItem(row)
	return &out, utils.ToEstimate(reloaded), nil
}

func (s *Service) recomputeTotals(ctx context.Context, estimateID, companyID uuid.UUID) error {
	est, err := s.estimateRepo.GetByID(ctx, estimateID)
	if err != nil {
		return common.InternalErrorf("reload estimate: %v", err)
	}
	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return common.InternalErrorf("load company: %v", err)
	}
	if _, err := s.estimateRepo.UpdateTotals(ctx, estimateID, totalsFromItems(est.Edges.Items, company.TaxRate)); err != nil {
		return common.InternalErrorf("update totals: %v", err)
	}
	return nil
}
