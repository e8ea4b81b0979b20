package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes
// for exports.
type Service struct {
	jobRepo      repository.JobRepository
	rugRepo      repository.RugRepository
	estimateRepo repository.EstimateRepository
	paymentRepo  repository.PaymentRepository
	logger       *slog.Logger
}

func NewService(
	jobRepo repository.JobRepository,
	rugRepo repository.RugRepository,
	estimateRepo repository.EstimateRepository,
	paymentRepo repository.PaymentRepository,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jobRepo:      jobRepo,
		rugRepo:      rugRepo,
		estimateRepo: estimateRepo,
		paymentRepo:  paymentRepo,
		logger:       logger,
	}
}

// ExportJobsXLSX returns an XLSX workbook (as bytes) for the given
// company and creation-date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all jobs for the company.
func (s *Service) ExportJobsXLSX(ctx context.Context, companyID uuid.UUID, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	// Normalize dates (date-only, UTC)
	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}

	jobs, err := s.jobRepo.ListJobs(ctx, companyID, nil, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Jobs"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Created",
		"Client",
		"Status",
		"Rugs",
		"Currency",
		"Estimate Total",
		"Paid",
		"Delivery Window",
		"Notes",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, j := range jobs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		rugs, err := s.rugRepo.ListByJob(ctx, j.ID)
		if err != nil {
			return nil, fmt.Errorf("query rugs for job %s: %w", j.ID, err)
		}

		currency := ""
		total := ""
		if est, err := s.estimateRepo.GetActiveByJob(ctx, j.ID); err == nil {
			currency = est.CurrencyCode
			total = fmt.Sprintf("%.2f", est.Total)
		} else if !ent.IsNotFound(err) {
			return nil, fmt.Errorf("query estimate for job %s: %w", j.ID, err)
		}

		pays, err := s.paymentRepo.ListByJob(ctx, j.ID)
		if err != nil {
			return nil, fmt.Errorf("query payments for job %s: %w", j.ID, err)
		}
		var paid float64
		for _, p := range pays {
			if constants.PaymentStatus(p.Status) == constants.PaymentSucceeded {
				paid += p.Amount
			}
		}

		window := ""
		if j.DeliveryWindowStart != nil && j.DeliveryWindowEnd != nil {
			window = j.DeliveryWindowStart.Format("2006-01-02 15:04") + " to " + j.DeliveryWindowEnd.Format("15:04")
		}

		write(1, j.CreatedAt.Format("2006-01-02"))
		write(2, j.ClientName)
		write(3, constants.StatusLabel(constants.JobStatus(j.Status)))
		write(4, len(rugs))
		write(5, currency)
		write(6, total)
		if paid > 0 {
			write(7, fmt.Sprintf("%.2f", paid))
		} else {
			write(7, "")
		}
		write(8, window)
		notes := ""
		if j.Notes != nil {
			notes = *j.Notes
		}
		write(9, truncate(notes, 140))

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 12) // date
	_ = f.SetColWidth(sheet, "B", "B", 28) // client
	_ = f.SetColWidth(sheet, "C", "C", 20) // status
	_ = f.SetColWidth(sheet, "E", "G", 14) // currency + amounts
	_ = f.SetColWidth(sheet, "H", "H", 26) // window
	_ = f.SetColWidth(sheet, "I", "I", 48) // notes

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"company_id", companyID.String(),
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
