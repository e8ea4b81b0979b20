package fieldsync

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rugflowhq/rugflow/constants"
)

// Remote is what a sync cycle needs from the backend side.
type Remote interface {
	UploadPhoto(ctx context.Context, key, contentType string, data []byte) error
	PushSubmission(ctx context.Context, sub *Submission, photos []RemotePhoto) (duplicate bool, err error)
}

// Probe reports whether the backend currently looks reachable.
type Probe interface {
	Online() bool
}

type ServiceConfig struct {
	// Interval between periodic sync attempts. Default: 30 seconds.
	Interval time.Duration

	// MaxEdge and Quality tune photo compression before upload.
	MaxEdge int
	Quality int
}

// Service drains the local submission queue to the backend. At most
// one sync cycle runs at a time; a trigger that arrives while one is
// in flight is dropped, not queued, because the running cycle already
// covers everything eligible.
type Service struct {
	store  *Store
	remote Remote
	probe  Probe
	cfg    ServiceConfig
	logger *slog.Logger

	inFlight atomic.Bool

	mu   sync.Mutex
	subs []chan int
}

func NewService(store *Store, remote Remote, probe Probe, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		remote: remote,
		probe:  probe,
		cfg:    cfg,
		logger: logger,
	}
}

// Enqueue adds a captured submission to the local queue.
func (s *Service) Enqueue(ctx context.Context, sub *Submission) error {
	if err := s.store.Enqueue(ctx, sub); err != nil {
		return err
	}
	s.logger.Info("submission queued", "submission_id", sub.ID, "job_id", sub.JobID)
	s.publishPending(ctx)
	return nil
}

// SubscribePending returns a channel that receives the count of
// not-yet-uploaded submissions after every queue change. The channel
// holds only the latest value.
func (s *Service) SubscribePending() <-chan int {
	ch := make(chan int, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// TrySync starts a sync cycle unless one is already running. Reports
// whether this call ran the cycle.
func (s *Service) TrySync(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer s.inFlight.Store(false)
	s.cycle(ctx)
	return true
}

// Run owns the periodic sync loop. The online channel, if non-nil,
// triggers an immediate cycle on connectivity regain.
func (s *Service) Run(ctx context.Context, online <-chan struct{}) {
	if n, err := s.store.RecoverStuck(ctx); err != nil {
		s.logger.Error("failed to recover stuck submissions", "error", err)
	} else if n > 0 {
		s.logger.Info("recovered stuck submissions", "count", n)
	}

	s.TrySync(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.TrySync(ctx)
		case <-online:
			s.TrySync(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	if s.probe != nil && !s.probe.Online() {
		s.publishPending(ctx)
		return
	}

	eligible, err := s.store.ListEligible(ctx)
	if err != nil {
		s.logger.Error("failed to list queued submissions", "error", err)
		return
	}

	uploaded := 0
	for _, sub := range eligible {
		if ctx.Err() != nil {
			break
		}
		if s.probe != nil && !s.probe.Online() {
			s.logger.Info("connectivity lost mid-cycle, stopping")
			break
		}
		if sub.RetryCount >= constants.MaxSubmissionRetries {
			s.logger.Warn("submission exhausted retries, skipping",
				"submission_id", sub.ID, "last_error", sub.LastError)
			continue
		}

		err := s.uploadOne(ctx, sub)
		if errors.Is(err, ErrOffline) {
			// Not the item's fault. Put it back and stop the cycle;
			// everything behind it would fail the same way.
			if rqErr := s.store.Requeue(ctx, sub.ID); rqErr != nil {
				s.logger.Error("failed to requeue submission", "submission_id", sub.ID, "error", rqErr)
			}
			s.logger.Info("backend offline, stopping cycle", "submission_id", sub.ID)
			break
		}
		if err != nil {
			s.logger.Warn("submission upload failed",
				"submission_id", sub.ID, "retry_count", sub.RetryCount+1, "error", err)
			if mfErr := s.store.MarkFailed(ctx, sub.ID, err.Error()); mfErr != nil {
				s.logger.Error("failed to record upload failure", "submission_id", sub.ID, "error", mfErr)
			}
			continue
		}
		uploaded++
	}

	swept, err := s.store.SweepUploaded(ctx)
	if err != nil {
		s.logger.Error("failed to sweep uploaded submissions", "error", err)
	}
	if uploaded > 0 || swept > 0 {
		s.logger.Info("sync cycle complete", "uploaded", uploaded, "swept", swept)
	}
	s.publishPending(ctx)
}

func (s *Service) uploadOne(ctx context.Context, sub *Submission) error {
	if err := s.store.MarkUploading(ctx, sub.ID); err != nil {
		return err
	}

	photos := make([]RemotePhoto, 0, len(sub.PhotoKeys))
	for _, key := range sub.PhotoKeys {
		data, contentType, err := s.store.GetPhoto(ctx, key)
		if err != nil {
			return err
		}

		out, outType, err := CompressPhoto(data, contentType, s.cfg.MaxEdge, s.cfg.Quality)
		if err != nil {
			// A photo that won't re-encode still goes up as shot.
			s.logger.Warn("photo compression failed, uploading original", "key", key, "error", err)
			out, outType = data, contentType
		}

		remoteKey := remotePhotoKey(sub, outType)
		if err := s.remote.UploadPhoto(ctx, remoteKey, outType, out); err != nil {
			return err
		}
		photos = append(photos, RemotePhoto{
			StoragePath: remoteKey,
			ContentType: outType,
			ByteSize:    len(out),
		})
	}

	duplicate, err := s.remote.PushSubmission(ctx, sub, photos)
	if err != nil {
		return err
	}
	if err := s.store.MarkUploaded(ctx, sub.ID); err != nil {
		return err
	}

	s.logger.Info("submission uploaded",
		"submission_id", sub.ID, "photos", len(photos), "duplicate", duplicate)
	return nil
}

// remotePhotoKey names the uploaded object under the operator's
// namespace with a millisecond timestamp and a random suffix.
func remotePhotoKey(sub *Submission, contentType string) string {
	ns := sub.CreatedBy
	if ns == "" {
		ns = sub.CompanyID.String()
	}
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("%s/%d_%s.%s", ns, time.Now().UnixMilli(),
		hex.EncodeToString(suffix[:]), constants.ExtensionForContentType(contentType))
}

// publishPending pushes the current backlog depth to subscribers.
// Latest value wins; a slow subscriber never blocks a sync cycle.
func (s *Service) publishPending(ctx context.Context) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to count queued submissions", "error", err)
		return
	}
	n := counts[constants.SubmissionPending] +
		counts[constants.SubmissionUploading] +
		counts[constants.SubmissionFailed]

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- n:
		default:
		}
	}
}
