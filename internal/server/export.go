package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/internal/export"

	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
)

type ExportServer struct {
	rugflowpb.UnimplementedExportServiceServer
	svc    *export.Service
	logger *slog.Logger
}

func NewExportServer(svc *export.Service, logger *slog.Logger) *ExportServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportServer{svc: svc, logger: logger}
}

func (s *ExportServer) ExportJobs(ctx context.Context, req *rugflowpb.ExportJobsRequest) (*rugflowpb.ExportJobsResponse, error) {
	if err := staffOnly(ctx); err != nil {
		return nil, err
	}
	companyID, err := parseUUIDField(req.GetCompanyId(), "company_id")
	if err != nil {
		return nil, err
	}
	fromPtr, err := parseYMDField(req.GetFromDate(), "from_date")
	if err != nil {
		return nil, err
	}
	toPtr, err := parseYMDField(req.GetToDate(), "to_date")
	if err != nil {
		return nil, err
	}

	xlsx, err := s.svc.ExportJobsXLSX(ctx, companyID, fromPtr, toPtr)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "company_id", companyID, "err", err)
		return nil, status.Errorf(codes.Internal, "export jobs: %v", err)
	}

	return &rugflowpb.ExportJobsResponse{Xlsx: xlsx}, nil
}
