package server

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/internal/services/payments"
	"github.com/rugflowhq/rugflow/internal/utils"

	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
)

type PaymentServer struct {
	rugflowpb.UnimplementedPaymentsServiceServer
	svc    *payments.Service
	logger *slog.Logger
}

func NewPaymentServer(svc *payments.Service, logger *slog.Logger) *PaymentServer {
	return &PaymentServer{
		svc:    svc,
		logger: logger,
	}
}

func (s *PaymentServer) RecordPayment(ctx context.Context, req *rugflowpb.RecordPaymentRequest) (*rugflowpb.RecordPaymentResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	rawAmount := strings.TrimSpace(req.GetAmount())
	if rawAmount == "" {
		return nil, status.Error(codes.InvalidArgument, "amount is required")
	}
	amount, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "amount must be a decimal amount: %v", err)
	}

	payment, job, err := s.svc.RecordPayment(ctx, payments.RecordPaymentRequest{
		JobID:        jobID,
		Amount:       amount,
		CurrencyCode: strings.ToUpper(strings.TrimSpace(req.GetCurrencyCode())),
		Method:       strings.TrimSpace(req.GetMethod()),
		GatewayRef:   optPBString(req.GetGatewayRef()),
		Status:       strings.ToLower(strings.TrimSpace(req.GetStatus())),
	})
	if err != nil {
		return nil, err
	}
	return &rugflowpb.RecordPaymentResponse{
		Payment: utils.ToPBPayment(payment),
		Job:     utils.ToPBJob(job),
	}, nil
}

func (s *PaymentServer) ListPayments(ctx context.Context, req *rugflowpb.ListPaymentsRequest) (*rugflowpb.ListPaymentsResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	rows, err := s.svc.ListPayments(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make([]*rugflowpb.Payment, 0, len(rows))
	for i := range rows {
		out = append(out, utils.ToPBPayment(&rows[i]))
	}
	return &rugflowpb.ListPaymentsResponse{Payments: out}, nil
}
