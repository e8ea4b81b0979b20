package fieldsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugflowhq/rugflow/constants"
)

type fakeRemote struct {
	mu       sync.Mutex
	uploads  []string
	attempts []uuid.UUID
	pushed   []uuid.UUID
	pushErr  map[uuid.UUID]error

	started chan struct{} // signals entry into PushSubmission
	release chan struct{} // if non-nil, PushSubmission waits on it
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{pushErr: map[uuid.UUID]error{}}
}

func (f *fakeRemote) UploadPhoto(ctx context.Context, key, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, key)
	return nil
}

func (f *fakeRemote) PushSubmission(ctx context.Context, sub *Submission, photos []RemotePhoto) (bool, error) {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, sub.ID)
	if err := f.pushErr[sub.ID]; err != nil {
		return false, err
	}
	f.pushed = append(f.pushed, sub.ID)
	return false, nil
}

type fakeProbe struct {
	mu        sync.Mutex
	calls     int
	offline   bool
	dropAfter int // connectivity vanishes after this many checks
}

func (f *fakeProbe) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.offline {
		return false
	}
	if f.dropAfter > 0 && f.calls > f.dropAfter {
		return false
	}
	return true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func enqueueWithPhoto(t *testing.T, s *Store, n int) *Submission {
	t.Helper()
	sub := testSubmission(n)
	key := fmt.Sprintf("%s/%08d.heic", sub.ID, n)
	sub.PhotoKeys = []string{key}
	require.NoError(t, s.Enqueue(context.Background(), sub))
	require.NoError(t, s.PutPhoto(context.Background(), key, "image/heic",
		fmt.Sprintf("%08d", n), []byte("camera-bytes")))
	return sub
}

func TestService_TrySync_DrainsQueueInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	remote := newFakeRemote()
	svc := NewService(s, remote, &fakeProbe{}, ServiceConfig{}, testLogger())

	first := enqueueWithPhoto(t, s, 1)
	second := enqueueWithPhoto(t, s, 2)
	third := enqueueWithPhoto(t, s, 3)

	assert.True(t, svc.TrySync(ctx))

	require.Len(t, remote.pushed, 3)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID}, remote.pushed)
	require.Len(t, remote.uploads, 3)
	for _, key := range remote.uploads {
		assert.True(t, strings.HasPrefix(key, "op-7/"), "remote key %q not namespaced by operator", key)
		assert.True(t, strings.HasSuffix(key, ".heic"), "remote key %q lost its extension", key)
	}

	// Everything uploaded gets swept, blobs included.
	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
	_, _, err = s.GetPhoto(ctx, first.PhotoKeys[0])
	assert.Error(t, err)
}

func TestService_TrySync_StopsWhenConnectivityDrops(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	remote := newFakeRemote()
	// One check at cycle start, one before the first item; the drop
	// lands before the second item.
	probe := &fakeProbe{dropAfter: 2}
	svc := NewService(s, remote, probe, ServiceConfig{}, testLogger())

	first := enqueueWithPhoto(t, s, 1)
	second := enqueueWithPhoto(t, s, 2)
	third := enqueueWithPhoto(t, s, 3)

	assert.True(t, svc.TrySync(ctx))

	require.Len(t, remote.pushed, 1)
	assert.Equal(t, first.ID, remote.pushed[0])

	// The stranded items keep their place and burn no retries.
	for _, sub := range []*Submission{second, third} {
		got, err := s.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, constants.SubmissionPending, got.Status)
		assert.Zero(t, got.RetryCount)
	}
}

func TestService_TrySync_OfflineErrorRequeuesAndStops(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	remote := newFakeRemote()
	svc := NewService(s, remote, &fakeProbe{}, ServiceConfig{}, testLogger())

	first := enqueueWithPhoto(t, s, 1)
	second := enqueueWithPhoto(t, s, 2)
	third := enqueueWithPhoto(t, s, 3)
	remote.pushErr[second.ID] = fmt.Errorf("%w: connection refused", ErrOffline)

	assert.True(t, svc.TrySync(ctx))

	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, remote.attempts)
	assert.Equal(t, []uuid.UUID{first.ID}, remote.pushed)

	got, err := s.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SubmissionPending, got.Status)
	assert.Zero(t, got.RetryCount, "losing the link is not the item's fault")

	got, err = s.Get(ctx, third.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SubmissionPending, got.Status)
}

func TestService_TrySync_ItemFailureBurnsRetryAndContinues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	remote := newFakeRemote()
	svc := NewService(s, remote, &fakeProbe{}, ServiceConfig{}, testLogger())

	first := enqueueWithPhoto(t, s, 1)
	second := enqueueWithPhoto(t, s, 2)
	third := enqueueWithPhoto(t, s, 3)
	remote.pushErr[second.ID] = errors.New("rug_type is required")

	assert.True(t, svc.TrySync(ctx))

	assert.Len(t, remote.attempts, 3)
	assert.Equal(t, []uuid.UUID{first.ID, third.ID}, remote.pushed)

	got, err := s.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SubmissionFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Contains(t, got.LastError, "rug_type is required")
}

func TestService_TrySync_SkipsExhaustedRetries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	remote := newFakeRemote()
	svc := NewService(s, remote, &fakeProbe{}, ServiceConfig{}, testLogger())

	sub := enqueueWithPhoto(t, s, 1)
	for i := 0; i < constants.MaxSubmissionRetries; i++ {
		require.NoError(t, s.MarkFailed(ctx, sub.ID, "still broken"))
	}

	assert.True(t, svc.TrySync(ctx))

	assert.Empty(t, remote.attempts)
	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SubmissionFailed, got.Status)
	assert.Equal(t, constants.MaxSubmissionRetries, got.RetryCount)
}

func TestService_TrySync_SecondCallDropsWhileRunning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	remote := newFakeRemote()
	remote.started = make(chan struct{}, 1)
	remote.release = make(chan struct{})
	svc := NewService(s, remote, &fakeProbe{}, ServiceConfig{}, testLogger())

	enqueueWithPhoto(t, s, 1)

	firstDone := make(chan bool, 1)
	go func() { firstDone <- svc.TrySync(ctx) }()
	<-remote.started

	// The running cycle already covers everything eligible.
	assert.False(t, svc.TrySync(ctx))

	close(remote.release)
	assert.True(t, <-firstDone)
}

func TestService_TrySync_SkipsCycleWhenOffline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	remote := newFakeRemote()
	svc := NewService(s, remote, &fakeProbe{offline: true}, ServiceConfig{}, testLogger())

	enqueueWithPhoto(t, s, 1)

	assert.True(t, svc.TrySync(ctx))
	assert.Empty(t, remote.attempts)
}

func TestService_PublishesPendingCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	remote := newFakeRemote()
	svc := NewService(s, remote, &fakeProbe{}, ServiceConfig{}, testLogger())

	ch := svc.SubscribePending()

	sub := testSubmission(1)
	require.NoError(t, svc.Enqueue(ctx, sub))
	assert.Equal(t, 1, <-ch)

	svc.TrySync(ctx)
	assert.Equal(t, 0, <-ch)
}
