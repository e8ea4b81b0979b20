package utils

import (
	"fmt"
	"time"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
	"github.com/rugflowhq/rugflow/internal/entity"
)

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	// strip time to midnight UTC to match DATE semantics
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func ToCompany(e *ent.Company) *entity.Company {
	return &entity.Company{
		ID:              e.ID,
		Name:            e.Name,
		DefaultCurrency: e.DefaultCurrency,
		TaxRate:         e.TaxRate,
		PriceBook:       e.PriceBook,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func ToJob(e *ent.Job) *entity.Job {
	return &entity.Job{
		ID:                  e.ID,
		CompanyID:           e.CompanyID,
		ClientName:          e.ClientName,
		ClientEmail:         e.ClientEmail,
		ClientPhone:         e.ClientPhone,
		PickupAddress:       e.PickupAddress,
		DeliveryAddress:     e.DeliveryAddress,
		DeliveryWindowStart: e.DeliveryWindowStart,
		DeliveryWindowEnd:   e.DeliveryWindowEnd,
		Status:              e.Status,
		PortalToken:         e.PortalToken,
		ScheduledPickupAt:   e.ScheduledPickupAt,
		Notes:               e.Notes,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func ToRug(e *ent.Rug) *entity.Rug {
	return &entity.Rug{
		ID:             e.ID,
		JobID:          e.JobID,
		CompanyID:      e.CompanyID,
		RugNo:          e.RugNo,
		LengthFt:       e.LengthFt,
		WidthFt:        e.WidthFt,
		RugType:        e.RugType,
		Notes:          e.Notes,
		SubmissionID:   e.SubmissionID,
		Material:       e.Material,
		ConditionGrade: e.ConditionGrade,
		AnalyzedAt:     e.AnalyzedAt,
		Analysis:       e.Analysis,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func ToRugPhoto(e *ent.RugPhoto) *entity.RugPhoto {
	return &entity.RugPhoto{
		ID:          e.ID,
		RugID:       e.RugID,
		CompanyID:   e.CompanyID,
		StoragePath: e.StoragePath,
		ContentType: e.ContentType,
		ByteSize:    e.ByteSize,
		UploadedAt:  e.UploadedAt,
	}
}

func ToAnalysisJob(e *ent.AnalysisJob) *entity.AnalysisJob {
	return &entity.AnalysisJob{
		ID:           e.ID,
		RugID:        e.RugID,
		CompanyID:    e.CompanyID,
		StartedAt:    e.StartedAt,
		FinishedAt:   e.FinishedAt,
		Status:       e.Status,
		ErrorMessage: e.ErrorMessage,
		Confidence:   e.Confidence,
		NeedsReview:  e.NeedsReview,
		Result:       e.Result,
		ModelName:    e.ModelName,
		ModelParams:  e.ModelParams,
	}
}

func ToEstimateItem(e *ent.EstimateItem) entity.EstimateItem {
	return entity.EstimateItem{
		ID:            e.ID,
		EstimateID:    e.EstimateID,
		RugID:         e.RugID,
		ServiceCode:   e.ServiceCode,
		Description:   e.Description,
		AreaSqFt:      e.AreaSqft,
		UnitPrice:     e.UnitPrice,
		Amount:        e.Amount,
		Declined:      e.Declined,
		ServiceStatus: e.ServiceStatus,
		CompletedAt:   e.CompletedAt,
		CreatedAt:     e.CreatedAt,
	}
}

// ToEstimate maps items when the Items edge was loaded.
func ToEstimate(e *ent.Estimate) *entity.Estimate {
	out := &entity.Estimate{
		ID:           e.ID,
		JobID:        e.JobID,
		CompanyID:    e.CompanyID,
		Status:       e.Status,
		CurrencyCode: e.CurrencyCode,
		Subtotal:     e.Subtotal,
		Tax:          e.Tax,
		Total:        e.Total,
		FinalizedAt:  e.FinalizedAt,
		SentAt:       e.SentAt,
		DecidedAt:    e.DecidedAt,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	for _, it := range e.Edges.Items {
		out.Items = append(out.Items, ToEstimateItem(it))
	}
	return out
}

func ToPayment(e *ent.Payment) *entity.Payment {
	return &entity.Payment{
		ID:           e.ID,
		JobID:        e.JobID,
		CompanyID:    e.CompanyID,
		Amount:       e.Amount,
		CurrencyCode: e.CurrencyCode,
		Method:       e.Method,
		GatewayRef:   e.GatewayRef,
		Status:       e.Status,
		ReceivedAt:   e.ReceivedAt,
		CreatedAt:    e.CreatedAt,
	}
}

func ToPBCompany(c *entity.Company) *rugflowpb.Company {
	return &rugflowpb.Company{
		Id:              c.ID.String(),
		Name:            c.Name,
		DefaultCurrency: c.DefaultCurrency,
		TaxRate:         c.TaxRate,
		CreatedAt:       c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ToPBJob(j *entity.Job) *rugflowpb.Job {
	return &rugflowpb.Job{
		Id:                  j.ID.String(),
		CompanyId:           j.CompanyID.String(),
		ClientName:          j.ClientName,
		ClientEmail:         strOrEmpty(j.ClientEmail),
		ClientPhone:         strOrEmpty(j.ClientPhone),
		PickupAddress:       strOrEmpty(j.PickupAddress),
		DeliveryAddress:     strOrEmpty(j.DeliveryAddress),
		DeliveryWindowStart: timeOrEmpty(j.DeliveryWindowStart),
		DeliveryWindowEnd:   timeOrEmpty(j.DeliveryWindowEnd),
		Status:              j.Status,
		StatusLabel:         constants.StatusLabel(constants.JobStatus(j.Status)),
		PortalToken:         strOrEmpty(j.PortalToken),
		ScheduledPickupAt:   timeOrEmpty(j.ScheduledPickupAt),
		Notes:               strOrEmpty(j.Notes),
		CreatedAt:           j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           j.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ToPBRug(r *entity.Rug) *rugflowpb.Rug {
	return &rugflowpb.Rug{
		Id:             r.ID.String(),
		JobId:          r.JobID.String(),
		CompanyId:      r.CompanyID.String(),
		RugNo:          int32(r.RugNo),
		LengthFt:       r.LengthFt,
		WidthFt:        r.WidthFt,
		RugType:        r.RugType,
		Notes:          strOrEmpty(r.Notes),
		Material:       strOrEmpty(r.Material),
		ConditionGrade: strOrEmpty(r.ConditionGrade),
		AnalyzedAt:     timeOrEmpty(r.AnalyzedAt),
		CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ToPBRugPhoto(p *entity.RugPhoto) *rugflowpb.RugPhoto {
	return &rugflowpb.RugPhoto{
		Id:          p.ID.String(),
		RugId:       p.RugID.String(),
		StoragePath: p.StoragePath,
		ContentType: p.ContentType,
		ByteSize:    int32(p.ByteSize),
		UploadedAt:  p.UploadedAt.UTC().Format(time.RFC3339),
	}
}

func ToPBEstimateItem(it *entity.EstimateItem) *rugflowpb.EstimateItem {
	return &rugflowpb.EstimateItem{
		Id:            it.ID.String(),
		EstimateId:    it.EstimateID.String(),
		RugId:         it.RugID.String(),
		ServiceCode:   it.ServiceCode,
		Description:   it.Description,
		AreaSqft:      it.AreaSqFt,
		UnitPrice:     money(it.UnitPrice),
		Amount:        money(it.Amount),
		Declined:      it.Declined,
		ServiceStatus: it.ServiceStatus,
		CompletedAt:   timeOrEmpty(it.CompletedAt),
	}
}

func ToPBEstimate(e *entity.Estimate) *rugflowpb.Estimate {
	out := &rugflowpb.Estimate{
		Id:           e.ID.String(),
		JobId:        e.JobID.String(),
		Status:       e.Status,
		CurrencyCode: e.CurrencyCode,
		Subtotal:     money(e.Subtotal),
		Tax:          money(e.Tax),
		Total:        money(e.Total),
		FinalizedAt:  timeOrEmpty(e.FinalizedAt),
		SentAt:       timeOrEmpty(e.SentAt),
		DecidedAt:    timeOrEmpty(e.DecidedAt),
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for i := range e.Items {
		out.Items = append(out.Items, ToPBEstimateItem(&e.Items[i]))
	}
	return out
}

func ToPBPayment(p *entity.Payment) *rugflowpb.Payment {
	return &rugflowpb.Payment{
		Id:           p.ID.String(),
		JobId:        p.JobID.String(),
		Amount:       money(p.Amount),
		CurrencyCode: p.CurrencyCode,
		Method:       p.Method,
		GatewayRef:   strOrEmpty(p.GatewayRef),
		Status:       p.Status,
		ReceivedAt:   p.ReceivedAt.UTC().Format(time.RFC3339),
	}
}
