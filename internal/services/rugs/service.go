// Package rugs manages the rugs on a job: intake details, photo
// attachments, queueing photo analysis and ingesting offline field
// submissions.
package rugs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/core/async"
	"github.com/rugflowhq/rugflow/internal/entity"
	"github.com/rugflowhq/rugflow/internal/permission"
	"github.com/rugflowhq/rugflow/internal/repository"
	"github.com/rugflowhq/rugflow/internal/utils"
)

// Service handles rug business logic.
type Service struct {
	rugRepo   repository.RugRepository
	jobRepo   repository.JobRepository
	photoRepo repository.RugPhotoRepository
	runRepo   repository.AnalysisJobRepository
	queue     async.Queue
	logger    *slog.Logger
}

// NewService creates a new rug service.
func NewService(
	rugRepo repository.RugRepository,
	jobRepo repository.JobRepository,
	photoRepo repository.RugPhotoRepository,
	runRepo repository.AnalysisJobRepository,
	queue async.Queue,
	logger *slog.Logger,
) *Service {
	return &Service{
		rugRepo:   rugRepo,
		jobRepo:   jobRepo,
		photoRepo: photoRepo,
		runRepo:   runRepo,
		queue:     queue,
		logger:    logger,
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

func (s *Service) getRug(ctx context.Context, id uuid.UUID) (*ent.Rug, error) {
	rug, err := s.rugRepo.GetByID(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, common.NotFoundError(fmt.Sprintf("rug %s not found", id))
		}
		return nil, common.InternalErrorf("get rug: %v", err)
	}
	return rug, nil
}

// AddRugRequest carries intake measurements for a new rug.
type AddRugRequest struct {
	JobID    uuid.UUID
	LengthFt float64
	WidthFt  float64
	RugType  string
	Notes    *string
}

// AddRug registers a rug on a job with the next sequential rug number.
func (s *Service) AddRug(ctx context.Context, req AddRugRequest) (*entity.Rug, error) {
	j, err := s.getJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionAddRug, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	validator := common.NewValidator()
	validator.Field("length_ft", req.LengthFt, common.Positive)
	validator.Field("width_ft", req.WidthFt, common.Positive)
	validator.Field("rug_type", req.RugType, common.Required, common.MaxLen(100))
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, err
	}

	rugNo, err := s.rugRepo.NextRugNo(ctx, req.JobID)
	if err != nil {
		return nil, common.InternalErrorf("next rug number: %v", err)
	}

	row, err := s.rugRepo.CreateRug(ctx, &repository.CreateRugParams{
		JobID:     req.JobID,
		CompanyID: j.CompanyID,
		RugNo:     rugNo,
		LengthFt:  req.LengthFt,
		WidthFt:   req.WidthFt,
		RugType:   req.RugType,
		Notes:     req.Notes,
	})
	if err != nil {
		return nil, common.InternalErrorf("create rug: %v", err)
	}

	s.logger.Info("rug added successfully", "rug_id", row.ID, "job_id", req.JobID, "rug_no", rugNo)
	return utils.ToRug(row), nil
}

// UpdateRugRequest carries partial edits; nil fields are unchanged.
type UpdateRugRequest struct {
	LengthFt *float64
	WidthFt  *float64
	RugType  *string
	Notes    *string
}

// UpdateRug edits rug intake details.
func (s *Service) UpdateRug(ctx context.Context, rugID uuid.UUID, req UpdateRugRequest) (*entity.Rug, error) {
	rug, err := s.getRug(ctx, rugID)
	if err != nil {
		return nil, err
	}
	j, err := s.getJob(ctx, rug.JobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionEditRug, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	validator := common.NewValidator()
	if req.LengthFt != nil {
		validator.Field("length_ft", *req.LengthFt, common.Positive)
	}
	if req.WidthFt != nil {
		validator.Field("width_ft", *req.WidthFt, common.Positive)
	}
	if req.RugType != nil {
		validator.Field("rug_type", *req.RugType, common.Required, common.MaxLen(100))
	}
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, err
	}

	row, err := s.rugRepo.UpdateRug(ctx, rugID, &repository.UpdateRugParams{
		LengthFt: req.LengthFt,
		WidthFt:  req.WidthFt,
		RugType:  req.RugType,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, common.InternalErrorf("update rug: %v", err)
	}
	return utils.ToRug(row), nil
}

// DeleteRug removes a rug and its photos.
func (s *Service) DeleteRug(ctx context.Context, rugID uuid.UUID) error {
	rug, err := s.getRug(ctx, rugID)
	if err != nil {
		return err
	}
	j, err := s.getJob(ctx, rug.JobID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, constants.ActionDeleteRug, constants.JobStatus(j.Status)); err != nil {
		return err
	}

	if err := s.rugRepo.DeleteRug(ctx, rugID); err != nil {
		return common.InternalErrorf("delete rug: %v", err)
	}
	s.logger.Info("rug deleted successfully", "rug_id", rugID, "job_id", rug.JobID)
	return nil
}

// ListRugs returns all rugs on a job in rug number order.
func (s *Service) ListRugs(ctx context.Context, jobID uuid.UUID) ([]entity.Rug, error) {
	j, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionViewJob, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	rows, err := s.rugRepo.ListByJob(ctx, jobID)
	if err != nil {
		return nil, common.InternalErrorf("list rugs: %v", err)
	}
	out := make([]entity.Rug, len(rows))
	for i, row := range rows {
		out[i] = *utils.ToRug(row)
	}
	return out, nil
}

// AttachPhotoRequest records an already uploaded blob against a rug.
type AttachPhotoRequest struct {
	RugID       uuid.UUID
	StoragePath string
	ContentType string
	ByteSize    int
}

// AttachPhoto links an uploaded photo to a rug. Attaching the same
// storage path twice updates the existing row, so agent retries are
// safe.
func (s *Service) AttachPhoto(ctx context.Context, req AttachPhotoRequest) (*entity.RugPhoto, error) {
	rug, err := s.getRug(ctx, req.RugID)
	if err != nil {
		return nil, err
	}
	j, err := s.getJob(ctx, rug.JobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionUploadPhotos, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	validator := common.NewValidator()
	validator.Field("storage_path", req.StoragePath, common.Required, common.MaxLen(500))
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, err
	}
	if !allowedContentType(req.ContentType) {
		return nil, common.InvalidArgumentError(fmt.Sprintf("unsupported photo content type %q", req.ContentType))
	}

	row, _, err := s.photoRepo.UpsertByPath(ctx, &repository.CreatePhotoParams{
		RugID:       req.RugID,
		CompanyID:   rug.CompanyID,
		StoragePath: req.StoragePath,
		ContentType: req.ContentType,
		ByteSize:    req.ByteSize,
	})
	if err != nil {
		return nil, common.InternalErrorf("attach photo: %v", err)
	}
	return utils.ToRugPhoto(row), nil
}

func allowedContentType(ct string) bool {
	for _, v := range constants.PhotoContentTypes {
		if ct == v {
			return true
		}
	}
	return false
}

// Analyze queues the rug's photos for AI analysis and returns the run
// row so callers can poll its status.
func (s *Service) Analyze(ctx context.Context, rugID uuid.UUID) (*entity.AnalysisJob, error) {
	rug, err := s.getRug(ctx, rugID)
	if err != nil {
		return nil, err
	}
	j, err := s.getJob(ctx, rug.JobID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, constants.ActionAnalyzeRug, constants.JobStatus(j.Status)); err != nil {
		return nil, err
	}

	count, err := s.photoRepo.CountByRug(ctx, rugID)
	if err != nil {
		return nil, common.InternalErrorf("count photos: %v", err)
	}
	if count == 0 {
		return nil, common.FailedPreconditionError("At least one photo must be uploaded before analysis.")
	}

	run, err := s.runRepo.Start(ctx, rugID, rug.CompanyID, string(constants.AnalysisStatusQueued))
	if err != nil {
		return nil, common.InternalErrorf("start analysis job: %v", err)
	}
	if err := s.queue.Enqueue(ctx, async.Job{AnalysisJobID: run.ID, RugID: rugID}); err != nil {
		return nil, common.InternalErrorf("enqueue analysis: %v", err)
	}

	s.logger.Info("rug analysis queued", "rug_id", rugID, "analysis_job_id", run.ID, "photos", count)
	return utils.ToAnalysisJob(run), nil
}

// SubmissionPhoto is one photo captured with an offline submission.
type SubmissionPhoto struct {
	StoragePath string
	ContentType string
	ByteSize    int
}

// PushSubmissionRequest is a rug captured offline by the field agent.
type PushSubmissionRequest struct {
	SubmissionID uuid.UUID
	JobID        uuid.UUID
	CompanyID    uuid.UUID
	LengthFt     float64
	WidthFt      float64
	RugType      string
	Notes        *string
	Photos       []SubmissionPhoto
}

// PushSubmission ingests a field submission. The submission ID makes
// the call idempotent: a replay returns the rug created the first time
// with duplicate set, and photo attachments upsert by storage path.
func (s *Service) PushSubmission(ctx context.Context, req PushSubmissionRequest) (*entity.Rug, bool, error) {
	j, err := s.getJob(ctx, req.JobID)
	if err != nil {
		return nil, false, err
	}
	if j.CompanyID != req.CompanyID {
		return nil, false, common.InvalidArgumentError("submission company does not match the job's company")
	}
	if err := s.authorize(ctx, constants.ActionAddRug, constants.JobStatus(j.Status)); err != nil {
		return nil, false, err
	}

	validator := common.NewValidator()
	validator.Field("submission_id", req.SubmissionID.String(), common.UUID)
	validator.Field("length_ft", req.LengthFt, common.Positive)
	validator.Field("width_ft", req.WidthFt, common.Positive)
	validator.Field("rug_type", req.RugType, common.Required, common.MaxLen(100))
	if err := common.ValidateAndReturnError(validator); err != nil {
		return nil, false, err
	}

	rugNo, err := s.rugRepo.NextRugNo(ctx, req.JobID)
	if err != nil {
		return nil, false, common.InternalErrorf("next rug number: %v", err)
	}

	subID := req.SubmissionID
	row, created, err := s.rugRepo.UpsertBySubmissionID(ctx, &repository.CreateRugParams{
		JobID:        req.JobID,
		CompanyID:    req.CompanyID,
		RugNo:        rugNo,
		LengthFt:     req.LengthFt,
		WidthFt:      req.WidthFt,
		RugType:      req.RugType,
		Notes:        req.Notes,
		SubmissionID: &subID,
	})
	if err != nil {
		return nil, false, common.InternalErrorf("upsert submission: %v", err)
	}

	// Photos attach even on replay; a retried push may carry photos the
	// first attempt never got to.
	for _, p := range req.Photos {
		if !allowedContentType(p.ContentType) {
			s.logger.Warn("skipping submission photo with unsupported content type",
				"rug_id", row.ID, "storage_path", p.StoragePath, "content_type", p.ContentType)
			continue
		}
		if _, _, err := s.photoRepo.UpsertByPath(ctx, &repository.CreatePhotoParams{
			RugID:       row.ID,
			CompanyID:   req.CompanyID,
			StoragePath: p.StoragePath,
			ContentType: p.ContentType,
			ByteSize:    p.ByteSize,
		}); err != nil {
			return nil, false, common.InternalErrorf("attach submission photo: %v", err)
		}
	}

	if created {
		s.logger.Info("field submission ingested", "rug_id", row.ID, "job_id", req.JobID, "submission_id", req.SubmissionID, "photos", len(req.Photos))
	} else {
		s.logger.Info("duplicate field submission ignored", "rug_id", row.ID, "submission_id", req.SubmissionID)
	}
	return utils.ToRug(row), !created, nil
}
