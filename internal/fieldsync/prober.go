package fieldsync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Prober polls the backend's gRPC health service and tracks whether it
// is reachable. Subscribers get a nudge on the offline-to-online edge
// so a queued backlog drains as soon as connectivity returns instead
// of waiting for the next sync tick.
type Prober struct {
	health   healthpb.HealthClient
	interval time.Duration
	logger   *slog.Logger

	online atomic.Bool

	mu   sync.Mutex
	subs []chan struct{}
}

func NewProber(health healthpb.HealthClient, interval time.Duration, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{health: health, interval: interval, logger: logger}
}

// Online reports the result of the most recent probe.
func (p *Prober) Online() bool {
	return p.online.Load()
}

// Subscribe returns a channel that receives a value each time the
// backend transitions from unreachable to reachable.
func (p *Prober) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Run probes until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	p.probe(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp, err := p.health.Check(checkCtx, &healthpb.HealthCheckRequest{})
	up := err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING

	was := p.online.Swap(up)
	if was == up {
		return
	}
	if up {
		p.logger.Info("backend reachable")
		p.notify()
	} else {
		p.logger.Warn("backend unreachable", "error", err)
	}
}

func (p *Prober) notify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
