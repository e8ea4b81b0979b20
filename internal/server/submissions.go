package server

import (
	"context"
	"log/slog"

	"github.com/rugflowhq/rugflow/internal/services/rugs"
	"github.com/rugflowhq/rugflow/internal/utils"

	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
)

type SubmissionServer struct {
	rugflowpb.UnimplementedSubmissionsServiceServer
	svc    *rugs.Service
	logger *slog.Logger
}

func NewSubmissionServer(svc *rugs.Service, logger *slog.Logger) *SubmissionServer {
	return &SubmissionServer{
		svc:    svc,
		logger: logger,
	}
}

func (s *SubmissionServer) PushRugSubmission(ctx context.Context, req *rugflowpb.PushRugSubmissionRequest) (*rugflowpb.PushRugSubmissionResponse, error) {
	submissionID, err := parseUUIDField(req.GetSubmissionId(), "submission_id")
	if err != nil {
		return nil, err
	}
	jobID, err := parseUUIDField(req.GetJobId(), "job_id")
	if err != nil {
		return nil, err
	}
	companyID, err := parseUUIDField(req.GetCompanyId(), "company_id")
	if err != nil {
		return nil, err
	}

	photos := make([]rugs.SubmissionPhoto, 0, len(req.GetPhotos()))
	for _, p := range req.GetPhotos() {
		photos = append(photos, rugs.SubmissionPhoto{
			StoragePath: p.GetStoragePath(),
			ContentType: p.GetContentType(),
			ByteSize:    int(p.GetByteSize()),
		})
	}

	rug, duplicate, err := s.svc.PushSubmission(ctx, rugs.PushSubmissionRequest{
		SubmissionID: submissionID,
		JobID:        jobID,
		CompanyID:    companyID,
		LengthFt:     req.GetLengthFt(),
		WidthFt:      req.GetWidthFt(),
		RugType:      req.GetRugType(),
		Notes:        optPBString(req.GetNotes()),
		Photos:       photos,
	})
	if err != nil {
		return nil, err
	}

	// created_by is the field agent's operator ID. Rugs don't carry it,
	// so it lives in the audit log only.
	s.logger.Info("submission pushed",
		"submission_id", submissionID,
		"rug_id", rug.ID,
		"created_by", req.GetCreatedBy(),
		"duplicate", duplicate,
	)
	return &rugflowpb.PushRugSubmissionResponse{
		Rug:       utils.ToPBRug(rug),
		Duplicate: duplicate,
	}, nil
}
