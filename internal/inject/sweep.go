package inject

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"webdock/internal/workerutil"
)

const (
	// sweepInterval is how often the sweeper scans for abandoned requests.
	sweepInterval = time.Minute
	// maxPendingAge is how long an unmatched request may linger. A surface
	// that has not signalled ready after five minutes never will; matching
	// correctness never depends on the sweep, only memory hygiene does.
	maxPendingAge = 5 * time.Minute
)

// StartSweeper launches the background eviction worker under panic-recovery
// supervision. It stops when ctx is cancelled.
func (p *Protocol) StartSweeper(ctx context.Context, wg *sync.WaitGroup) {
	workerutil.Supervise(ctx, "inject-sweeper", wg, p.sweepLoop, workerutil.Policy{
		ShuttingDown: func() bool { return ctx.Err() != nil },
	})
}

func (p *Protocol) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.evictStale(timeNow())
		}
	}
}

// evictStale removes pending requests older than maxPendingAge and returns
// how many were evicted.
func (p *Protocol) evictStale(now time.Time) int {
	cutoff := now.Add(-maxPendingAge)

	p.mu.Lock()
	evicted := 0
	for requestID, req := range p.pending {
		if req.CreatedAt.After(cutoff) {
			continue
		}
		delete(p.pending, requestID)
		if p.latest[req.SurfaceID] == requestID {
			delete(p.latest, req.SurfaceID)
		}
		evicted++
	}
	p.mu.Unlock()

	if evicted > 0 {
		slog.Debug("[INJECT] evicted abandoned pending requests", "count", evicted)
	}
	return evicted
}
