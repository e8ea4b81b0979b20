package fieldsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/rugflowhq/rugflow/constants"
)

// schema is created on open. photo blobs live in their own table so a
// submission row stays small enough to list cheaply.
const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id          TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL,
	company_id  TEXT NOT NULL,
	created_by  TEXT NOT NULL DEFAULT '',
	rug_no      INTEGER NOT NULL DEFAULT 0,
	length_ft   REAL NOT NULL,
	width_ft    REAL NOT NULL,
	rug_type    TEXT NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	photo_keys  TEXT NOT NULL DEFAULT '[]',
	status      TEXT NOT NULL DEFAULT 'pending',
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_status_created
	ON submissions(status, created_at);

CREATE TABLE IF NOT EXISTS photos (
	key          TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	sha256_hex   TEXT NOT NULL,
	data         BLOB NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_photos_sha ON photos(sha256_hex);
`

// Store is the agent's local queue, backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the queue database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open
	// connection serialises writes and avoids SQLITE_BUSY under
	// concurrent load; WAL lets readers proceed alongside the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Enqueue inserts a new pending submission.
func (s *Store) Enqueue(ctx context.Context, sub *Submission) error {
	if sub.ID == uuid.Nil {
		return fmt.Errorf("submission ID is required")
	}
	keys, err := json.Marshal(sub.PhotoKeys)
	if err != nil {
		return fmt.Errorf("marshal photo keys: %w", err)
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if sub.Status == "" {
		sub.Status = constants.SubmissionPending
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions
			(id, job_id, company_id, created_by, rug_no, length_ft, width_ft,
			 rug_type, notes, photo_keys, status, retry_count, last_error,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?)`,
		sub.ID.String(), sub.JobID.String(), sub.CompanyID.String(),
		sub.CreatedBy, sub.RugNo, sub.LengthFt, sub.WidthFt,
		sub.RugType, sub.Notes, string(keys), string(sub.Status),
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue submission: %w", err)
	}
	return nil
}

// Get returns one submission by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, company_id, created_by, rug_no, length_ft,
		       width_ft, rug_type, notes, photo_keys, status, retry_count,
		       last_error, created_at, updated_at
		FROM submissions WHERE id = ?`, id.String())
	return scanSubmission(row)
}

// ListEligible returns submissions the sync loop should attempt,
// oldest first so the queue drains in capture order.
func (s *Store) ListEligible(ctx context.Context) ([]*Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, company_id, created_by, rug_no, length_ft,
		       width_ft, rug_type, notes, photo_keys, status, retry_count,
		       last_error, created_at, updated_at
		FROM submissions
		WHERE status IN (?, ?)
		ORDER BY created_at ASC`,
		string(constants.SubmissionPending), string(constants.SubmissionFailed))
	if err != nil {
		return nil, fmt.Errorf("list eligible: %w", err)
	}
	defer rows.Close()

	var out []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ListAll returns every queued submission, oldest first.
func (s *Store) ListAll(ctx context.Context) ([]*Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, company_id, created_by, rug_no, length_ft,
		       width_ft, rug_type, notes, photo_keys, status, retry_count,
		       last_error, created_at, updated_at
		FROM submissions
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(r rowScanner) (*Submission, error) {
	var (
		sub               Submission
		id, jobID, compID string
		keysJSON, status  string
	)
	err := r.Scan(&id, &jobID, &compID, &sub.CreatedBy, &sub.RugNo,
		&sub.LengthFt, &sub.WidthFt, &sub.RugType, &sub.Notes,
		&keysJSON, &status, &sub.RetryCount, &sub.LastError,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sub.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("corrupt submission id %q: %w", id, err)
	}
	if sub.JobID, err = uuid.Parse(jobID); err != nil {
		return nil, fmt.Errorf("corrupt job id %q: %w", jobID, err)
	}
	if sub.CompanyID, err = uuid.Parse(compID); err != nil {
		return nil, fmt.Errorf("corrupt company id %q: %w", compID, err)
	}
	if err := json.Unmarshal([]byte(keysJSON), &sub.PhotoKeys); err != nil {
		return nil, fmt.Errorf("corrupt photo keys: %w", err)
	}
	sub.Status = constants.SubmissionStatus(status)
	return &sub, nil
}

func (s *Store) setStatus(ctx context.Context, id uuid.UUID, status constants.SubmissionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("mark %s: %w", status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) MarkUploading(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, constants.SubmissionUploading)
}

func (s *Store) MarkUploaded(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, constants.SubmissionUploaded)
}

// MarkFailed records the error and burns one retry.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = ?, last_error = ?, retry_count = retry_count + 1,
		    updated_at = ?
		WHERE id = ?`,
		string(constants.SubmissionFailed), message, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// Requeue returns an in-flight submission to pending without burning a
// retry. Used when an upload dies of lost connectivity rather than a
// fault of its own.
func (s *Store) Requeue(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, constants.SubmissionPending)
}

// ResetForRetry puts a submission back in the queue with a clean slate.
func (s *Store) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = ?, last_error = '', retry_count = 0, updated_at = ?
		WHERE id = ?`,
		string(constants.SubmissionPending), time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("reset for retry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecoverStuck returns submissions abandoned mid-upload to the queue.
// Run it once at startup: a crash between MarkUploading and the final
// status write leaves rows in uploading, which no sync cycle picks up.
func (s *Store) RecoverStuck(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, updated_at = ? WHERE status = ?`,
		string(constants.SubmissionPending), time.Now().UTC(),
		string(constants.SubmissionUploading))
	if err != nil {
		return 0, fmt.Errorf("recover stuck submissions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CountByStatus returns queue depth per status.
func (s *Store) CountByStatus(ctx context.Context) (map[constants.SubmissionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[constants.SubmissionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[constants.SubmissionStatus(status)] = n
	}
	return out, rows.Err()
}

// PutPhoto stores a photo blob under key.
func (s *Store) PutPhoto(ctx context.Context, key, contentType, shaHex string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO photos (key, content_type, sha256_hex, data, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content_type = excluded.content_type,
			sha256_hex = excluded.sha256_hex,
			data = excluded.data`,
		key, contentType, shaHex, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put photo: %w", err)
	}
	return nil
}

// GetPhoto returns the blob and content type for key.
func (s *Store) GetPhoto(ctx context.Context, key string) ([]byte, string, error) {
	var data []byte
	var contentType string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, content_type FROM photos WHERE key = ?`, key).
		Scan(&data, &contentType)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func (s *Store) DeletePhoto(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE key = ?`, key)
	return err
}

// FindPhotoByHash reports whether a blob with this content hash is
// already stored under keyPrefix, so the spool watcher can skip
// re-ingesting a file it has seen before. The prefix scopes dedupe to
// one submission; blobs are never shared across submissions because
// the sweep deletes them per submission.
func (s *Store) FindPhotoByHash(ctx context.Context, shaHex, keyPrefix string) (string, bool, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT key FROM photos WHERE sha256_hex = ? AND key LIKE ? LIMIT 1`,
		shaHex, keyPrefix+"%").Scan(&key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return key, true, nil
}

// AttachPhotoKey appends a photo key to a submission. Attaching the
// same key twice is a no-op.
func (s *Store) AttachPhotoKey(ctx context.Context, id uuid.UUID, key string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, k := range sub.PhotoKeys {
		if k == key {
			return nil
		}
	}
	keys, err := json.Marshal(append(sub.PhotoKeys, key))
	if err != nil {
		return fmt.Errorf("marshal photo keys: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE submissions SET photo_keys = ?, updated_at = ? WHERE id = ?`,
		string(keys), time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("attach photo key: %w", err)
	}
	return nil
}

// SweepUploaded removes uploaded submissions and their photo blobs.
// Blobs go first so a crash mid-sweep leaves a photo-less uploaded row
// that the next sweep finishes off; it never resurrects the submission.
func (s *Store) SweepUploaded(ctx context.Context) (int, error) {
	subs, err := s.listByStatus(ctx, constants.SubmissionUploaded)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, sub := range subs {
		for _, key := range sub.PhotoKeys {
			if err := s.DeletePhoto(ctx, key); err != nil {
				return swept, fmt.Errorf("sweep photo %s: %w", key, err)
			}
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM submissions WHERE id = ?`, sub.ID.String()); err != nil {
			return swept, fmt.Errorf("sweep submission %s: %w", sub.ID, err)
		}
		swept++
	}
	return swept, nil
}

// Discard drops a submission and its photos without uploading.
func (s *Store) Discard(ctx context.Context, id uuid.UUID) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, key := range sub.PhotoKeys {
		if err := s.DeletePhoto(ctx, key); err != nil {
			return fmt.Errorf("discard photo %s: %w", key, err)
		}
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id.String())
	return err
}

func (s *Store) listByStatus(ctx context.Context, status constants.SubmissionStatus) ([]*Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, company_id, created_by, rug_no, length_ft,
		       width_ft, rug_type, notes, photo_keys, status, retry_count,
		       last_error, created_at, updated_at
		FROM submissions
		WHERE status = ?
		ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	defer rows.Close()

	var out []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
