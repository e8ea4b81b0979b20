package async

import "context"

// Queue decouples producers from the analysis worker pool. The rug
// service enqueues; the pool drains.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
