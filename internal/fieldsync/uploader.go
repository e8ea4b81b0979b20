package fieldsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rugflowhq/rugflow/constants"
	rugflowpb "github.com/rugflowhq/rugflow/gen/proto/rugflow/v1"
	"github.com/rugflowhq/rugflow/internal/storage"
)

// ErrOffline is returned when the backend cannot be reached, either
// because the call itself failed with a connectivity error or because
// the circuit breaker is open. The sync cycle stops on it instead of
// burning retries across the whole queue.
var ErrOffline = errors.New("backend unreachable")

// RemotePhoto is the metadata the backend records for an uploaded
// photo. The blob itself goes to object storage, not over gRPC.
type RemotePhoto struct {
	StoragePath string
	ContentType string
	ByteSize    int
}

// UploaderConfig tunes the breaker and the photo upload rate.
type UploaderConfig struct {
	// UserID identifies the field operator on pushed submissions.
	UserID string

	// MaxFailures is the number of consecutive failures before the
	// breaker opens. Default: 3.
	MaxFailures uint32

	// BreakerTimeout is how long the breaker stays open before
	// letting a probe request through. Default: 30 seconds.
	BreakerTimeout time.Duration

	// UploadsPerSecond caps photo PUTs so a big backlog does not
	// saturate a marginal uplink. Default: 4.
	UploadsPerSecond float64
}

// Uploader pushes photos to object storage and submissions to the
// backend. One breaker covers both: photo PUTs and gRPC pushes ride
// the same uplink, so failures of either mean the same thing.
type Uploader struct {
	store   *storage.Client
	client  rugflowpb.SubmissionsServiceClient
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	userID  string
	logger  *slog.Logger
}

func NewUploader(store *storage.Client, client rugflowpb.SubmissionsServiceClient, cfg UploaderConfig, logger *slog.Logger) *Uploader {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.UploadsPerSecond <= 0 {
		cfg.UploadsPerSecond = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	u := &Uploader{
		store:   store,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.UploadsPerSecond), 1),
		userID:  cfg.UserID,
		logger:  logger,
	}
	u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    0, // don't clear counts periodically
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	return u
}

// UploadPhoto PUTs one blob under the given object storage key.
func (u *Uploader) UploadPhoto(ctx context.Context, key, contentType string, data []byte) error {
	if err := u.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := u.breaker.Execute(func() (interface{}, error) {
		return nil, u.store.Put(ctx, key, contentType, data)
	})
	return u.classify(err)
}

// PushSubmission sends one submission to the backend. Returns whether
// the backend had already seen this submission ID.
func (u *Uploader) PushSubmission(ctx context.Context, sub *Submission, photos []RemotePhoto) (bool, error) {
	req := &rugflowpb.PushRugSubmissionRequest{
		SubmissionId: sub.ID.String(),
		JobId:        sub.JobID.String(),
		CompanyId:    sub.CompanyID.String(),
		CreatedBy:    sub.CreatedBy,
		LengthFt:     sub.LengthFt,
		WidthFt:      sub.WidthFt,
		RugType:      sub.RugType,
		Notes:        sub.Notes,
	}
	for _, p := range photos {
		req.Photos = append(req.Photos, &rugflowpb.SubmissionPhoto{
			StoragePath: p.StoragePath,
			ContentType: p.ContentType,
			ByteSize:    int32(p.ByteSize),
		})
	}

	callCtx := metadata.AppendToOutgoingContext(ctx,
		constants.MetadataRoleKey, string(constants.RoleStaff),
		constants.MetadataUserIDKey, u.userID,
		constants.MetadataCompanyKey, sub.CompanyID.String(),
	)

	resp, err := u.breaker.Execute(func() (interface{}, error) {
		return u.client.PushRugSubmission(callCtx, req)
	})
	if err != nil {
		return false, u.classify(err)
	}
	return resp.(*rugflowpb.PushRugSubmissionResponse).GetDuplicate(), nil
}

// classify folds connectivity-shaped failures into ErrOffline so the
// caller can tell "the link is down" apart from "this item is bad".
func (u *Uploader) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOffline
	}
	if status.Code(err) == codes.Unavailable {
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	return err
}
