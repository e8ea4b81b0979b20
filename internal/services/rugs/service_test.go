package rugs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/constants"
	"github.com/rugflowhq/rugflow/gen/ent"
	"github.com/rugflowhq/rugflow/internal/common"
	"github.com/rugflowhq/rugflow/internal/core/async"
	"github.com/rugflowhq/rugflow/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staffCtx() context.Context {
	return common.WithUserRole(context.Background(), constants.RoleStaff)
}

type fakeJobRepo struct {
	repository.JobRepository
	jobs map[uuid.UUID]*ent.Job
}

func (f *fakeJobRepo) GetByID(_ context.Context, id uuid.UUID) (*ent.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not seeded", id)
	}
	return j, nil
}

type fakeRugRepo struct {
	repository.RugRepository

	rugs         map[uuid.UUID]*ent.Rug
	bySubmission map[uuid.UUID]*ent.Rug
	nextNo       int
	created      *repository.CreateRugParams
}

func (f *fakeRugRepo) GetByID(_ context.Context, id uuid.UUID) (*ent.Rug, error) {
	r, ok := f.rugs[id]
	if !ok {
		return nil, fmt.Errorf("rug %s not seeded", id)
	}
	return r, nil
}

func (f *fakeRugRepo) NextRugNo(_ context.Context, _ uuid.UUID) (int, error) {
	return f.nextNo, nil
}

func (f *fakeRugRepo) CreateRug(_ context.Context, p *repository.CreateRugParams) (*ent.Rug, error) {
	f.created = p
	r := &ent.Rug{
		ID:        uuid.New(),
		JobID:     p.JobID,
		CompanyID: p.CompanyID,
		RugNo:     p.RugNo,
		LengthFt:  p.LengthFt,
		WidthFt:   p.WidthFt,
		RugType:   p.RugType,
	}
	f.rugs[r.ID] = r
	return r, nil
}

func (f *fakeRugRepo) UpsertBySubmissionID(_ context.Context, p *repository.CreateRugParams) (*ent.Rug, bool, error) {
	if existing, ok := f.bySubmission[*p.SubmissionID]; ok {
		return existing, false, nil
	}
	r, _ := f.CreateRug(context.Background(), p)
	f.bySubmission[*p.SubmissionID] = r
	return r, true, nil
}

type fakePhotoRepo struct {
	repository.RugPhotoRepository

	count    int
	upserted []*repository.CreatePhotoParams
}

func (f *fakePhotoRepo) CountByRug(_ context.Context, _ uuid.UUID) (int, error) {
	return f.count, nil
}

func (f *fakePhotoRepo) UpsertByPath(_ context.Context, p *repository.CreatePhotoParams) (*ent.RugPhoto, bool, error) {
	f.upserted = append(f.upserted, p)
	return &ent.RugPhoto{
		ID:          uuid.New(),
		RugID:       p.RugID,
		CompanyID:   p.CompanyID,
		StoragePath: p.StoragePath,
		ContentType: p.ContentType,
		ByteSize:    p.ByteSize,
	}, true, nil
}

type fakeRunRepo struct {
	repository.AnalysisJobRepository
	started []uuid.UUID
}

func (f *fakeRunRepo) Start(_ context.Context, rugID, companyID uuid.UUID, s string) (*ent.AnalysisJob, error) {
	run := &ent.AnalysisJob{ID: uuid.New(), RugID: rugID, CompanyID: companyID, Status: s}
	f.started = append(f.started, run.ID)
	return run, nil
}

type fakeQueue struct {
	enqueued []async.Job
	err      error
}

func (f *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeQueue) Shutdown(_ context.Context) {}

type rig struct {
	svc    *Service
	rugs   *fakeRugRepo
	photos *fakePhotoRepo
	runs   *fakeRunRepo
	queue  *fakeQueue
	jobID  uuid.UUID
	rugID  uuid.UUID
}

func newRig(t *testing.T, jobStatus constants.JobStatus) *rig {
	t.Helper()

	jobID := uuid.New()
	companyID := uuid.New()
	rugID := uuid.New()

	jobRepo := &fakeJobRepo{jobs: map[uuid.UUID]*ent.Job{
		jobID: {ID: jobID, CompanyID: companyID, ClientName: "Dana Whitfield", Status: string(jobStatus)},
	}}
	rugRepo := &fakeRugRepo{
		rugs: map[uuid.UUID]*ent.Rug{
			rugID: {ID: rugID, JobID: jobID, CompanyID: companyID, RugNo: 1, LengthFt: 8, WidthFt: 10, RugType: "persian"},
		},
		bySubmission: map[uuid.UUID]*ent.Rug{},
		nextNo:       2,
	}
	photos := &fakePhotoRepo{}
	runs := &fakeRunRepo{}
	queue := &fakeQueue{}

	return &rig{
		svc:    NewService(rugRepo, jobRepo, photos, runs, queue, testLogger()),
		rugs:   rugRepo,
		photos: photos,
		runs:   runs,
		queue:  queue,
		jobID:  jobID,
		rugID:  rugID,
	}
}

func (r *rig) companyID() uuid.UUID { return r.rugs.rugs[r.rugID].CompanyID }

func TestAddRug_AssignsSequentialNumber(t *testing.T) {
	r := newRig(t, constants.JobStatusPickedUp)

	rug, err := r.svc.AddRug(staffCtx(), AddRugRequest{
		JobID:    r.jobID,
		LengthFt: 6,
		WidthFt:  9,
		RugType:  "kilim",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rug.RugNo)
	assert.Equal(t, r.companyID(), r.rugs.created.CompanyID, "company comes from the job, not the caller")
}

func TestAddRug_ValidatesDimensions(t *testing.T) {
	r := newRig(t, constants.JobStatusPickedUp)

	_, err := r.svc.AddRug(staffCtx(), AddRugRequest{JobID: r.jobID, LengthFt: 0, WidthFt: 9, RugType: "kilim"})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Nil(t, r.rugs.created)
}

func TestAddRug_FrozenOnceEstimateSent(t *testing.T) {
	r := newRig(t, constants.JobStatusEstimateSent)

	_, err := r.svc.AddRug(staffCtx(), AddRugRequest{JobID: r.jobID, LengthFt: 6, WidthFt: 9, RugType: "kilim"})
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestAttachPhoto_UpsertsWithRugCompany(t *testing.T) {
	r := newRig(t, constants.JobStatusPickedUp)

	photo, err := r.svc.AttachPhoto(staffCtx(), AttachPhotoRequest{
		RugID:       r.rugID,
		StoragePath: "jobs/rug-1/front.jpg",
		ContentType: "image/jpeg",
		ByteSize:    204800,
	})
	require.NoError(t, err)
	assert.Equal(t, "jobs/rug-1/front.jpg", photo.StoragePath)
	require.Len(t, r.photos.upserted, 1)
	assert.Equal(t, r.companyID(), r.photos.upserted[0].CompanyID)
}

func TestAttachPhoto_RejectsUnknownContentType(t *testing.T) {
	r := newRig(t, constants.JobStatusPickedUp)

	_, err := r.svc.AttachPhoto(staffCtx(), AttachPhotoRequest{
		RugID:       r.rugID,
		StoragePath: "jobs/rug-1/scan.pdf",
		ContentType: "application/pdf",
	})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Empty(t, r.photos.upserted)
}

func TestAnalyze_QueuesRunForRugWithPhotos(t *testing.T) {
	r := newRig(t, constants.JobStatusPickedUp)
	r.photos.count = 3

	run, err := r.svc.Analyze(staffCtx(), r.rugID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.AnalysisStatusQueued), run.Status)

	require.Len(t, r.queue.enqueued, 1)
	assert.Equal(t, run.ID, r.queue.enqueued[0].AnalysisJobID)
	assert.Equal(t, r.rugID, r.queue.enqueued[0].RugID)
}

func TestAnalyze_RequiresPhotos(t *testing.T) {
	r := newRig(t, constants.JobStatusPickedUp)

	_, err := r.svc.Analyze(staffCtx(), r.rugID)
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Empty(t, r.runs.started, "no run row before the photo check")
	assert.Empty(t, r.queue.enqueued)
}

func TestPushSubmission_IdempotentBySubmissionID(t *testing.T) {
	r := newRig(t, constants.JobStatusPickedUp)
	req := PushSubmissionRequest{
		SubmissionID: uuid.New(),
		JobID:        r.jobID,
		CompanyID:    r.companyID(),
		LengthFt:     5,
		WidthFt:      7,
		RugType:      "wool",
		Photos: []SubmissionPhoto{
			{StoragePath: "sub/a1b2c3d4.jpg", ContentType: "image/jpeg", ByteSize: 1024},
		},
	}

	first, dup, err := r.svc.PushSubmission(staffCtx(), req)
	require.NoError(t, err)
	assert.False(t, dup)

	second, dup, err := r.svc.PushSubmission(staffCtx(), req)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first.ID, second.ID, "replay returns the original rug")

	// photo attachments upsert on both passes; a retry may carry
	// photos the first attempt never delivered
	assert.Len(t, r.photos.upserted, 2)
}

func TestPushSubmission_CompanyMismatch(t *testing.T) {
	r := newRig(t, constants.JobStatusPickedUp)

	_, _, err := r.svc.PushSubmission(staffCtx(), PushSubmissionRequest{
		SubmissionID: uuid.New(),
		JobID:        r.jobID,
		CompanyID:    uuid.New(),
		LengthFt:     5,
		WidthFt:      7,
		RugType:      "wool",
	})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPushSubmission_SkipsUnsupportedPhotos(t *testing.T) {
	r := newRig(t, constants.JobStatusPickedUp)

	_, _, err := r.svc.PushSubmission(staffCtx(), PushSubmissionRequest{
		SubmissionID: uuid.New(),
		JobID:        r.jobID,
		CompanyID:    r.companyID(),
		LengthFt:     5,
		WidthFt:      7,
		RugType:      "wool",
		Photos: []SubmissionPhoto{
			{StoragePath: "sub/notes.txt", ContentType: "text/plain"},
			{StoragePath: "sub/front.heic", ContentType: "image/heic", ByteSize: 2048},
		},
	})
	require.NoError(t, err)
	require.Len(t, r.photos.upserted, 1)
	assert.Equal(t, "sub/front.heic", r.photos.upserted[0].StoragePath)
}

func TestAnalyze_QueueFailureSurfaces(t *testing.T) {
	r := newRig(t, constants.JobStatusPickedUp)
	r.photos.count = 1
	r.queue.err = fmt.Errorf("queue full")

	_, err := r.svc.Analyze(staffCtx(), r.rugID)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}
