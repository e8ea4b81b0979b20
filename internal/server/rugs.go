package server

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/internal/services/rugs"
	"github.com/rugflowhq/rugflow/internal/utils"

	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
)

type RugServer struct {
	rugflowpb.UnimplementedRugsServiceServer
	svc    *rugs.Service
	logger *slog.Logger
}

func NewRugServer(svc *rugs.Service, logger *slog.Logger) *RugServer {
	return &RugServer{
		svc:    svc,
		logger: logger,
	}
}

func optPBString(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	return &v
}

func (s *RugServer) AddRug(ctx context.Context, req *rugflowpb.AddRugRequest) (*rugflowpb.AddRugResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}

	rug, err := s.svc.AddRug(ctx, rugs.AddRugRequest{
		JobID:    jobID,
		LengthFt: req.GetLengthFt(),
		WidthFt:  req.GetWidthFt(),
		RugType:  req.GetRugType(),
		Notes:    optPBString(req.GetNotes()),
	})
	if err != nil {
		return nil, err
	}
	return &rugflowpb.AddRugResponse{Rug: utils.ToPBRug(rug)}, nil
}

func (s *RugServer) UpdateRug(ctx context.Context, req *rugflowpb.UpdateRugRequest) (*rugflowpb.UpdateRugResponse, error) {
	rugID, err := parseUUIDField(req.GetRugId(), "rug_id")
	if err != nil {
		return nil, err
	}

	// Zero-valued fields mean "leave unchanged".
	var u rugs.UpdateRugRequest
	if v := req.GetLengthFt(); v != 0 {
		u.LengthFt = &v
	}
	if v := req.GetWidthFt(); v != 0 {
		u.WidthFt = &v
	}
	if v := strings.TrimSpace(req.GetRugType()); v != "" {
		u.RugType = &v
	}
	u.Notes = optPBString(req.GetNotes())

	rug, err := s.svc.UpdateRug(ctx, rugID, u)
	if err != nil {
		return nil, err
	}
	return &rugflowpb.UpdateRugResponse{Rug: utils.ToPBRug(rug)}, nil
}

func (s *RugServer) DeleteRug(ctx context.Context, req *rugflowpb.DeleteRugRequest) (*rugflowpb.DeleteRugResponse, error) {
	rugID, err := parseUUIDField(req.GetRugId(), "rug_id")
	if err != nil {
		return nil, err
	}
	if err := s.svc.DeleteRug(ctx, rugID); err != nil {
		return nil, err
	}
	return &rugflowpb.DeleteRugResponse{}, nil
}

func (s *RugServer) ListRugs(ctx context.Context, req *rugflowpb.ListRugsRequest) (*rugflowpb.ListRugsResponse, error) {
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	rows, err := s.svc.ListRugs(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make([]*rugflowpb.Rug, 0, len(rows))
	for i := range rows {
		out = append(out, utils.ToPBRug(&rows[i]))
	}
	return &rugflowpb.ListRugsResponse{Rugs: out}, nil
}

func (s *RugServer) AttachRugPhoto(ctx context.Context, req *rugflowpb.AttachRugPhotoRequest) (*rugflowpb.AttachRugPhotoResponse, error) {
	rugID, err := parseUUIDField(req.GetRugId(), "rug_id")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.GetStoragePath()) == "" {
		return nil, status.Error(codes.InvalidArgument, "storage_path is required")
	}
	if req.GetByteSize() < 0 {
		return nil, status.Error(codes.InvalidArgument, "byte_size cannot be negative")
	}

	photo, err := s.svc.AttachPhoto(ctx, rugs.AttachPhotoRequest{
		RugID:       rugID,
		StoragePath: req.GetStoragePath(),
		ContentType: strings.TrimSpace(req.GetContentType()),
		ByteSize:    int(req.GetByteSize()),
	})
	if err != nil {
		return nil, err
	}
	return &rugflowpb.AttachRugPhotoResponse{Photo: utils.ToPBRugPhoto(photo)}, nil
}

func (s *RugServer) AnalyzeRug(ctx context.Context, req *rugflowpb.AnalyzeRugRequest) (*rugflowpb.AnalyzeRugResponse, error) {
	rugID, err := parseUUIDField(req.GetRugId(), "rug_id")
	if err != nil {
		return nil, err
	}
	run, err := s.svc.Analyze(ctx, rugID)
	if err != nil {
		return nil, err
	}
	st := ""
	if run.Status != nil {
		st = *run.Status
	}
	return &rugflowpb.AnalyzeRugResponse{
		AnalysisJobId: run.ID.String(),
		Status:        st,
	}, nil
}
