package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/internal/services/jobs"
	"github.com/rugflowhq/rugflow/internal/utils"

	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
)

type JobServer struct {
	rugflowpb.UnimplementedJobsServiceServer
	svc    *jobs.Service
	logger *slog.Logger
}

func NewJobServer(svc *jobs.Service, logger *slog.Logger) *JobServer {
	return &JobServer{
		svc:    svc,
		logger: logger,
	}
}

func parseUUIDField(raw, field string) (uuid.UUID, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s is required", field)
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s must be a UUID", field)
	}
	return id, nil
}

func parseRFC3339Field(raw, field string) (*time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be RFC 3339: %v", field, err)
	}
	return &t, nil
}

func parseYMDField(raw, field string) (*time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	t, err := utils.ParseYMD(v)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s invalid (YYYY-MM-DD): %v", field, err)
	}
	return &t, nil
}

func (s *JobServer) CreateJob(ctx context.Context, req *rugflowpb.CreateJobRequest) (*rugflowpb.CreateJobResponse, error) {
	companyID, err := parseUUIDField(req.GetCompanyId(), "company_id")
	if err != nil {
		return nil, err
	}
	pickupAt, err := parseRFC3339Field(req.GetScheduledPickupAt(), "scheduled_pickup_at")
	if err != nil {
		return nil, err
	}

	job, err := s.svc.CreateJob(ctx, jobs.CreateJobRequest{
		CompanyID:         companyID,
		ClientName:        req.GetClientName(),
		ClientEmail:       req.GetClientEmail(),
		ClientPhone:       req.GetClientPhone(),
		PickupAddress:     req.GetPickupAddress(),
		DeliveryAddress:   req.GetDeliveryAddress(),
		ScheduledPickupAt: pickupAt,
		Notes:             req.GetNotes(),
	})
	if err != nil {
		return nil, err
	}
	return &rugflowpb.CreateJobResponse{Job: utils.ToPBJob(job)}, nil
}

func (s *JobServer) GetJob(ctx context.Context, req *rugflowpb.GetJobRequest) (*rugflowpb.GetJobResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	job, err := s.svc.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.GetJobResponse{Job: utils.ToPBJob(job)}, nil
}

func (s *JobServer) GetJobByPortalToken(ctx context.Context, req *rugflowpb.GetJobByPortalTokenRequest) (*rugflowpb.GetJobResponse, error) {
	token := strings.TrimSpace(req.GetPortalToken())
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "portal_token is required")
	}
	job, err := s.svc.GetJobByPortalToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.GetJobResponse{Job: utils.ToPBJob(job)}, nil
}

func (s *JobServer) ListJobs(ctx context.Context, req *rugflowpb.ListJobsRequest) (*rugflowpb.ListJobsResponse, error) {
	companyID, err := parseUUIDField(req.GetCompanyId(), "company_id")
	if err != nil {
		return nil, err
	}

	var statusFilter *constants.JobStatus
	if raw := strings.TrimSpace(req.GetStatus()); raw != "" {
		st, err := constants.ParseJobStatus(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "status: %v", err)
		}
		statusFilter = &st
	}
	fromDate, err := parseYMDField(req.GetFromDate(), "from_date")
	if err != nil {
		return nil, err
	}
	toDate, err := parseYMDField(req.GetToDate(), "to_date")
	if err != nil {
		return nil, err
	}

	rows, err := s.svc.ListJobs(ctx, companyID, statusFilter, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	out := make([]*rugflowpb.Job, 0, len(rows))
	for _, j := range rows {
		out = append(out, utils.ToPBJob(j))
	}
	return &rugflowpb.ListJobsResponse{Jobs: out}, nil
}

func (s *JobServer) UpdateJob(ctx context.Context, req *rugflowpb.UpdateJobRequest) (*rugflowpb.UpdateJobResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	pickupAt, err := parseRFC3339Field(req.GetScheduledPickupAt(), "scheduled_pickup_at")
	if err != nil {
		return nil, err
	}

	job, err := s.svc.UpdateJob(ctx, jobID, jobs.UpdateJobRequest{
		ClientName:        req.GetClientName(),
		ClientEmail:       req.GetClientEmail(),
		ClientPhone:       req.GetClientPhone(),
		PickupAddress:     req.GetPickupAddress(),
		DeliveryAddress:   req.GetDeliveryAddress(),
		ScheduledPickupAt: pickupAt,
		Notes:             req.GetNotes(),
	})
	if err != nil {
		return nil, err
	}
	return &rugflowpb.UpdateJobResponse{Job: utils.ToPBJob(job)}, nil
}

func (s *JobServer) UpdateJobStatus(ctx context.Context, req *rugflowpb.UpdateJobStatusRequest) (*rugflowpb.UpdateJobStatusResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	target, err := constants.ParseJobStatus(req.GetTargetStatus())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "target_status: %v", err)
	}

	job, err := s.svc.ChangeStatus(ctx, jobID, target, req.GetAdminOverride())
	if err != nil {
		return nil, err
	}
	return &rugflowpb.UpdateJobStatusResponse{Job: utils.ToPBJob(job)}, nil
}

func (s *JobServer) ScheduleDelivery(ctx context.Context, req *rugflowpb.ScheduleDeliveryRequest) (*rugflowpb.ScheduleDeliveryResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	start, err := parseRFC3339Field(req.GetWindowStart(), "window_start")
	if err != nil {
		return nil, err
	}
	end, err := parseRFC3339Field(req.GetWindowEnd(), "window_end")
	if err != nil {
		return nil, err
	}
	if start == nil || end == nil {
		return nil, status.Error(codes.InvalidArgument, "window_start and window_end are required")
	}

	job, err := s.svc.ScheduleDelivery(ctx, jobID, *start, *end)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.ScheduleDeliveryResponse{Job: utils.ToPBJob(job)}, nil
}

func (s *JobServer) DeleteJob(ctx context.Context, req *rugflowpb.DeleteJobRequest) (*rugflowpb.DeleteJobResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	if err := s.svc.DeleteJob(ctx, jobID); err != nil {
		return nil, err
	}
	return &rugflowpb.DeleteJobResponse{}, nil
}

func (s *JobServer) GetJobReport(ctx context.Context, req *rugflowpb.GetJobReportRequest) (*rugflowpb.GetJobReportResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	report, err := s.svc.GetJobReport(ctx, jobID)
	if err != nil {
		return nil, err
	}

	pb := &rugflowpb.JobReport{
		Job:      utils.ToPBJob(report.Job),
		Rugs:     make([]*rugflowpb.Rug, 0, len(report.Rugs)),
		Payments: make([]*rugflowpb.Payment, 0, len(report.Payments)),
	}
	for _, r := range report.Rugs {
		pb.Rugs = append(pb.Rugs, utils.ToPBRug(r))
	}
	if report.Estimate != nil {
		pb.Estimate = utils.ToPBEstimate(report.Estimate)
	}
	for _, p := range report.Payments {
		pb.Payments = append(pb.Payments, utils.ToPBPayment(p))
	}
	return &rugflowpb.GetJobReportResponse{Report: pb}, nil
}
