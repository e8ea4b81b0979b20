package fieldsync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugflowhq/rugflow/constants"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSubmission(n int) *Submission {
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	return &Submission{
		ID:        uuid.New(),
		JobID:     uuid.New(),
		CompanyID: uuid.New(),
		CreatedBy: "op-7",
		RugNo:     n,
		LengthFt:  8,
		WidthFt:   10,
		RugType:   "persian wool",
		Notes:     "fringe damage on one corner",
		CreatedAt: base.Add(time.Duration(n) * time.Minute),
	}
}

func TestStore_EnqueueAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sub := testSubmission(1)
	sub.PhotoKeys = []string{sub.ID.String() + "/aabbccdd.jpg"}
	require.NoError(t, s.Enqueue(ctx, sub))

	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.JobID, got.JobID)
	assert.Equal(t, sub.CompanyID, got.CompanyID)
	assert.Equal(t, "persian wool", got.RugType)
	assert.Equal(t, 8.0, got.LengthFt)
	assert.Equal(t, sub.PhotoKeys, got.PhotoKeys)
	assert.Equal(t, constants.SubmissionPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
}

func TestStore_ListEligible_FIFOAndStatusFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testSubmission(1)
	second := testSubmission(2)
	third := testSubmission(3)
	fourth := testSubmission(4)
	for _, sub := range []*Submission{first, second, third, fourth} {
		require.NoError(t, s.Enqueue(ctx, sub))
	}

	// A prior failure keeps its place in line; in-flight and done
	// items drop out.
	require.NoError(t, s.MarkFailed(ctx, second.ID, "boom"))
	require.NoError(t, s.MarkUploading(ctx, third.ID))
	require.NoError(t, s.MarkUploaded(ctx, fourth.ID))

	eligible, err := s.ListEligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	assert.Equal(t, first.ID, eligible[0].ID)
	assert.Equal(t, second.ID, eligible[1].ID)
}

func TestStore_RetryBookkeeping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sub := testSubmission(1)
	require.NoError(t, s.Enqueue(ctx, sub))

	require.NoError(t, s.MarkFailed(ctx, sub.ID, "storage put: status 500"))
	require.NoError(t, s.MarkFailed(ctx, sub.ID, "push: deadline exceeded"))

	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SubmissionFailed, got.Status)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "push: deadline exceeded", got.LastError)

	// Requeue preserves the retry count; a reset wipes it.
	require.NoError(t, s.Requeue(ctx, sub.ID))
	got, err = s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SubmissionPending, got.Status)
	assert.Equal(t, 2, got.RetryCount)

	require.NoError(t, s.ResetForRetry(ctx, sub.ID))
	got, err = s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SubmissionPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Empty(t, got.LastError)
}

func TestStore_SweepUploaded_TwoPhase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done := testSubmission(1)
	waiting := testSubmission(2)
	doneKey := done.ID.String() + "/11111111.jpg"
	waitingKey := waiting.ID.String() + "/22222222.jpg"
	done.PhotoKeys = []string{doneKey}
	waiting.PhotoKeys = []string{waitingKey}

	require.NoError(t, s.Enqueue(ctx, done))
	require.NoError(t, s.Enqueue(ctx, waiting))
	require.NoError(t, s.PutPhoto(ctx, doneKey, "image/jpeg", "1111", []byte("done-bytes")))
	require.NoError(t, s.PutPhoto(ctx, waitingKey, "image/jpeg", "2222", []byte("waiting-bytes")))
	require.NoError(t, s.MarkUploaded(ctx, done.ID))

	swept, err := s.SweepUploaded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	_, err = s.Get(ctx, done.ID)
	assert.Error(t, err)
	_, _, err = s.GetPhoto(ctx, doneKey)
	assert.Error(t, err)

	// The pending submission and its blob survive.
	_, err = s.Get(ctx, waiting.ID)
	assert.NoError(t, err)
	data, contentType, err := s.GetPhoto(ctx, waitingKey)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, []byte("waiting-bytes"), data)

	// A second sweep finds nothing.
	swept, err = s.SweepUploaded(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestStore_RecoverStuck(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stuck := testSubmission(1)
	fine := testSubmission(2)
	require.NoError(t, s.Enqueue(ctx, stuck))
	require.NoError(t, s.Enqueue(ctx, fine))
	require.NoError(t, s.MarkUploading(ctx, stuck.ID))

	n, err := s.RecoverStuck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SubmissionPending, got.Status)
}

func TestStore_FindPhotoByHash_ScopedToSubmission(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	subA := uuid.New()
	subB := uuid.New()
	keyA := subA.String() + "/deadbeef.jpg"
	require.NoError(t, s.PutPhoto(ctx, keyA, "image/jpeg", "deadbeef", []byte("same-bytes")))

	key, found, err := s.FindPhotoByHash(ctx, "deadbeef", subA.String()+"/")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, keyA, key)

	// Same content under another submission is not a duplicate; its
	// sweep must not take this blob with it.
	_, found, err = s.FindPhotoByHash(ctx, "deadbeef", subB.String()+"/")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_AttachPhotoKey_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sub := testSubmission(1)
	require.NoError(t, s.Enqueue(ctx, sub))

	key := sub.ID.String() + "/cafe0123.jpg"
	require.NoError(t, s.AttachPhotoKey(ctx, sub.ID, key))
	require.NoError(t, s.AttachPhotoKey(ctx, sub.ID, key))

	got, err := s.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, got.PhotoKeys)
}

func TestStore_Discard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sub := testSubmission(1)
	key := sub.ID.String() + "/0badf00d.jpg"
	sub.PhotoKeys = []string{key}
	require.NoError(t, s.Enqueue(ctx, sub))
	require.NoError(t, s.PutPhoto(ctx, key, "image/jpeg", "0badf00d", []byte("x")))

	require.NoError(t, s.Discard(ctx, sub.ID))

	_, err := s.Get(ctx, sub.ID)
	assert.Error(t, err)
	_, _, err = s.GetPhoto(ctx, key)
	assert.Error(t, err)
}

func TestStore_CountByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, b, c := testSubmission(1), testSubmission(2), testSubmission(3)
	for _, sub := range []*Submission{a, b, c} {
		require.NoError(t, s.Enqueue(ctx, sub))
	}
	require.NoError(t, s.MarkFailed(ctx, b.ID, "no route to host"))
	require.NoError(t, s.MarkUploaded(ctx, c.ID))

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[constants.SubmissionPending])
	assert.Equal(t, 1, counts[constants.SubmissionFailed])
	assert.Equal(t, 1, counts[constants.SubmissionUploaded])
}
