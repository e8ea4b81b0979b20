package server

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/internal/services/estimates"
	"github.com/rugflowhq/rugflow/internal/utils"

	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
)

type EstimateServer struct {
	rugflowpb.UnimplementedEstimatesServiceServer
	svc    *estimates.Service
	logger *slog.Logger
}

func NewEstimateServer(svc *estimates.Service, logger *slog.Logger) *EstimateServer {
	return &EstimateServer{
		svc:    svc,
		logger: logger,
	}
}

func (s *EstimateServer) GenerateEstimate(ctx context.Context, req *rugflowpb.GenerateEstimateRequest) (*rugflowpb.GenerateEstimateResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	est, err := s.svc.GenerateEstimate(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.GenerateEstimateResponse{Estimate: utils.ToPBEstimate(est)}, nil
}

func (s *EstimateServer) FinalizeEstimate(ctx context.Context, req *rugflowpb.FinalizeEstimateRequest) (*rugflowpb.FinalizeEstimateResponse, error) {
	estimateID, err := parseUUIDField(req.GetEstimateId(), "estimate_id")
	if err != nil {
		return nil, err
	}
	est, err := s.svc.FinalizeEstimate(ctx, estimateID)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.FinalizeEstimateResponse{Estimate: utils.ToPBEstimate(est)}, nil
}

func (s *EstimateServer) SendToClient(ctx context.Context, req *rugflowpb.SendToClientRequest) (*rugflowpb.SendToClientResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	job, portalURL, err := s.svc.SendToClient(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.SendToClientResponse{
		Job:       utils.ToPBJob(job),
		PortalUrl: portalURL,
	}, nil
}

func (s *EstimateServer) ClientApprove(ctx context.Context, req *rugflowpb.ClientApproveRequest) (*rugflowpb.ClientApproveResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	job, est, err := s.svc.ClientApprove(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.ClientApproveResponse{
		Job:      utils.ToPBJob(job),
		Estimate: utils.ToPBEstimate(est),
	}, nil
}

func (s *EstimateServer) DeclineService(ctx context.Context, req *rugflowpb.DeclineServiceRequest) (*rugflowpb.DeclineServiceResponse, error) {
	itemID, err := parseUUIDField(req.GetItemId(), "item_id")
	if err != nil {
		return nil, err
	}
	item, err := s.svc.DeclineService(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.DeclineServiceResponse{Item: utils.ToPBEstimateItem(item)}, nil
}

func (s *EstimateServer) MarkServiceComplete(ctx context.Context, req *rugflowpb.MarkServiceCompleteRequest) (*rugflowpb.MarkServiceCompleteResponse, error) {
	itemID, err := parseUUIDField(req.GetItemId(), "item_id")
	if err != nil {
		return nil, err
	}
	item, job, err := s.svc.MarkServiceComplete(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.MarkServiceCompleteResponse{
		Item: utils.ToPBEstimateItem(item),
		Job:  utils.ToPBJob(job),
	}, nil
}

func (s *EstimateServer) UpdateItemPrice(ctx context.Context, req *rugflowpb.UpdateItemPriceRequest) (*rugflowpb.UpdateItemPriceResponse, error) {
	itemID, err := parseUUIDField(req.GetItemId(), "item_id")
	if err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(req.GetUnitPrice())
	if raw == "" {
		return nil, status.Error(codes.InvalidArgument, "unit_price is required")
	}
	unitPrice, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "unit_price must be a decimal amount: %v", err)
	}

	item, est, err := s.svc.UpdateItemPrice(ctx, itemID, unitPrice)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.UpdateItemPriceResponse{
		Item:     utils.ToPBEstimateItem(item),
		Estimate: utils.ToPBEstimate(est),
	}, nil
}
