package fieldsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/rugflowhq/rugflow/constants"
)

// The spool directory is how photos reach a submission: the capture
// app (or the operator, by hand) drops files under
// <spool>/<submission-id>/, and the watcher folds them into the queue.
type SpoolWatchConfig struct {
	Root        string
	InitialScan bool          // walk the root and emit existing files
	Debounce    time.Duration // coalesce rapid write bursts per file
}

// StartSpoolWatcher watches the spool tree and emits paths of photo
// files as they appear or change.
func StartSpoolWatcher(ctx context.Context, cfg SpoolWatchConfig) (<-chan string, <-chan error, error) {
	if cfg.Root == "" {
		return nil, nil, errors.New("spool root is required")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	err = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && spoolFileAllowed(path) {
			select {
			case evCh <- path:
			default:
			}
		}
		return nil
	})
	if err != nil {
		_ = w.Close()
		return nil, nil, err
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer w.Close()

		var timer *time.Timer
		pending := map[string]struct{}{}

		sendPending := func() {
			for p := range pending {
				select {
				case evCh <- p:
				default:
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-w.Events:
				if e.Op&fsnotify.Create == fsnotify.Create {
					// New submission directories appear at runtime.
					tryAddDir(w, e.Name)
				}
				if spoolFileAllowed(e.Name) && (e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename)) != 0 {
					pending[e.Name] = struct{}{}
					if cfg.Debounce > 0 {
						if timer != nil {
							timer.Stop()
						}
						timer = time.AfterFunc(cfg.Debounce, sendPending)
					} else {
						sendPending()
					}
				}
			case err := <-w.Errors:
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func spoolFileAllowed(path string) bool {
	ext := constants.NormalizeExt(filepath.Ext(path))
	_, ok := constants.AllowedPhotoExtensions[ext]
	return ok
}

func tryAddDir(w *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.Add(path); err != nil {
		slog.Warn("failed to watch new spool directory", "path", path, "error", err)
	}
}

// SpoolResult describes one ingested spool file.
type SpoolResult struct {
	SubmissionID uuid.UUID
	Key          string
	HashHex      string
	Deduplicated bool
}

// Spool ingests photo files from the spool tree into the local queue.
type Spool struct {
	store  *Store
	root   string
	logger *slog.Logger
}

func NewSpool(store *Store, root string, logger *slog.Logger) *Spool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spool{store: store, root: root, logger: logger}
}

// IngestPath attaches one spooled photo to the submission named by its
// parent directory.
func (sp *Spool) IngestPath(ctx context.Context, path string) (SpoolResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return SpoolResult{}, err
	}

	parent := filepath.Base(filepath.Dir(abs))
	subID, err := uuid.Parse(parent)
	if err != nil {
		return SpoolResult{}, fmt.Errorf("spool file %s is not inside a submission directory", abs)
	}
	return sp.AttachFile(ctx, subID, abs)
}

// AttachFile folds one photo file into a queued submission. Files
// already ingested (same content hash) are skipped. The source file
// stays in place; the queue keeps its own copy of the bytes.
func (sp *Spool) AttachFile(ctx context.Context, subID uuid.UUID, path string) (SpoolResult, error) {
	out := SpoolResult{SubmissionID: subID}

	ext := constants.NormalizeExt(filepath.Ext(path))
	contentType, ok := constants.PhotoContentTypes[ext]
	if !ok {
		return out, fmt.Errorf("unsupported photo extension %q", ext)
	}

	sub, err := sp.store.Get(ctx, subID)
	if err != nil {
		return out, fmt.Errorf("no queued submission %s for photo %s", subID, path)
	}
	if sub.Status == constants.SubmissionUploaded {
		return out, fmt.Errorf("submission %s already uploaded, photo not attached", subID)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	prefix := subID.String() + "/"
	if key, found, err := sp.store.FindPhotoByHash(ctx, out.HashHex, prefix); err != nil {
		return out, err
	} else if found {
		out.Key = key
		out.Deduplicated = true
		return out, sp.store.AttachPhotoKey(ctx, subID, key)
	}

	key := fmt.Sprintf("%s%s.%s", prefix, out.HashHex[:8], ext)
	if err := sp.store.PutPhoto(ctx, key, contentType, out.HashHex, data); err != nil {
		return out, err
	}
	if err := sp.store.AttachPhotoKey(ctx, subID, key); err != nil {
		return out, err
	}
	out.Key = key
	return out, nil
}

// Run watches the spool tree until ctx is cancelled, ingesting photos
// as they land.
func (sp *Spool) Run(ctx context.Context) error {
	events, errs, err := StartSpoolWatcher(ctx, SpoolWatchConfig{
		Root:        sp.root,
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-events:
			if !ok {
				return nil
			}
			res, err := sp.IngestPath(ctx, path)
			if err != nil {
				sp.logger.Warn("spool ingest failed", "path", path, "error", err)
				continue
			}
			if res.Deduplicated {
				sp.logger.Debug("spooled photo already ingested", "path", path, "key", res.Key)
				continue
			}
			sp.logger.Info("spooled photo ingested",
				"submission_id", res.SubmissionID, "key", res.Key)
		case werr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			sp.logger.Error("spool watcher error", "error", werr)
		}
	}
}
