// Package workerutil supervises the shell's long-running background workers:
// the settings file watcher and the injection sweeper. A panicking worker is
// restarted with a doubling delay; a worker that keeps panicking is given up
// on rather than allowed to spin.
package workerutil

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	// restartDelayFloor is the delay before the first restart. Short enough
	// that a watcher hiccup goes unnoticed by the user.
	restartDelayFloor = 100 * time.Millisecond

	// restartDelayCeil caps the doubling restart delay.
	restartDelayCeil = 5 * time.Second

	// maxRestartsDefault bounds the total runs of one worker. With doubling
	// delays this spans roughly half a minute before giving up.
	maxRestartsDefault = 10
)

// Policy tunes supervision for one worker. The zero value is usable: delays
// and the restart bound fall back to the package defaults, nil callbacks are
// skipped.
type Policy struct {
	// InitialDelay is the delay before the first restart. Zero or negative
	// selects restartDelayFloor.
	InitialDelay time.Duration

	// MaxDelay caps the doubling delay. Zero or negative selects
	// restartDelayCeil.
	MaxDelay time.Duration

	// MaxRuns bounds how many times the worker runs in total. Zero or
	// negative selects maxRestartsDefault; 1 means run once, never restart.
	MaxRuns int

	// OnRestart runs after each recovered panic, before the delay. attempt
	// counts from 1.
	OnRestart func(worker string, attempt int)

	// OnGiveUp runs when MaxRuns is exhausted and the worker stays down.
	OnGiveUp func(worker string, runs int)

	// ShuttingDown reports whether the application is tearing down. A panic
	// during teardown is logged but never restarted: the state the worker
	// needs may already be gone.
	ShuttingDown func() bool
}

func (p Policy) normalized() Policy {
	if p.InitialDelay <= 0 {
		p.InitialDelay = restartDelayFloor
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = restartDelayCeil
	}
	if p.MaxRuns <= 0 {
		p.MaxRuns = maxRestartsDefault
	}
	if p.MaxDelay < p.InitialDelay {
		// A ceiling below the floor is a misconfiguration; keep the sequence
		// non-decreasing.
		slog.Warn("[WORKER] MaxDelay below InitialDelay, raising it",
			"initialDelay", p.InitialDelay, "maxDelay", p.MaxDelay)
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// Supervise runs fn on a new goroutine tracked by wg, restarting it after
// panics per pol. fn must watch ctx.Done; a clean return or a cancelled
// context ends supervision.
func Supervise(ctx context.Context, name string, wg *sync.WaitGroup, fn func(ctx context.Context), pol Policy) {
	pol = pol.normalized()
	wg.Add(1)
	go func() {
		defer wg.Done()
		superviseLoop(ctx, name, fn, pol)
	}()
}

func superviseLoop(ctx context.Context, name string, fn func(ctx context.Context), pol Policy) {
	delay := pol.InitialDelay

	for run := 1; run <= pol.MaxRuns; run++ {
		if runWorker(ctx, name, fn) {
			// Clean return.
			return
		}
		if ctx.Err() != nil {
			return
		}
		if pol.ShuttingDown != nil && pol.ShuttingDown() {
			// No OnRestart here: teardown callbacks tend to touch state that
			// is already gone.
			slog.Info("[WORKER] not restarting during shutdown", "worker", name)
			return
		}

		slog.Warn("[WORKER] restarting after panic",
			"worker", name, "delay", delay, "run", run)
		if pol.OnRestart != nil {
			pol.OnRestart(name, run)
		}

		if run == pol.MaxRuns {
			// The last run already happened; sleeping would only delay OnGiveUp.
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = nextDelay(delay, pol.MaxDelay)
	}

	slog.Error("[WORKER] giving up after repeated panics",
		"worker", name, "runs", pol.MaxRuns)
	if pol.OnGiveUp != nil {
		pol.OnGiveUp(name, pol.MaxRuns)
	}
}

// runWorker executes one run of fn, reporting true when it returned without
// panicking.
func runWorker(ctx context.Context, name string, fn func(ctx context.Context)) (clean bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[WORKER] worker panicked",
				"worker", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn(ctx)
	return true
}

// nextDelay doubles delay up to ceil, guarding the int64 overflow a doubled
// duration can hit.
func nextDelay(delay, ceil time.Duration) time.Duration {
	if delay <= 0 {
		return restartDelayFloor
	}
	doubled := delay * 2
	if doubled < delay || doubled > ceil {
		return ceil
	}
	return doubled
}
