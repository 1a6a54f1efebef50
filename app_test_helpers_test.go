package main

import (
	"context"
	"sync"
	"testing"

	"webdock/internal/windowmgr"
)

// runtimeCalls records Wails runtime seam invocations for one test.
type runtimeCalls struct {
	mu          sync.Mutex
	events      []string
	payloads    map[string][]any
	shows       int
	hides       int
	unminimises int
	aot         []bool
	quits       int
	minimised   bool
}

func (rc *runtimeCalls) eventCount(name string) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	count := 0
	for _, event := range rc.events {
		if event == name {
			count++
		}
	}
	return count
}

func (rc *runtimeCalls) lastPayload(name string) any {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	payloads := rc.payloads[name]
	if len(payloads) == 0 {
		return nil
	}
	return payloads[len(payloads)-1]
}

// stubRuntimeSeams replaces the Wails runtime seams with recorders and
// restores the originals in t.Cleanup.
func stubRuntimeSeams(t *testing.T) *runtimeCalls {
	t.Helper()
	rc := &runtimeCalls{payloads: map[string][]any{}}

	origEmit := runtimeEventsEmitFn
	origShow := runtimeWindowShowFn
	origHide := runtimeWindowHideFn
	origUnmin := runtimeWindowUnminimiseFn
	origIsMin := runtimeWindowIsMinimisedFn
	origAOT := runtimeWindowSetAlwaysOnTopFn
	origQuit := runtimeQuitFn
	t.Cleanup(func() {
		runtimeEventsEmitFn = origEmit
		runtimeWindowShowFn = origShow
		runtimeWindowHideFn = origHide
		runtimeWindowUnminimiseFn = origUnmin
		runtimeWindowIsMinimisedFn = origIsMin
		runtimeWindowSetAlwaysOnTopFn = origAOT
		runtimeQuitFn = origQuit
	})

	runtimeEventsEmitFn = func(_ context.Context, name string, data ...any) {
		rc.mu.Lock()
		rc.events = append(rc.events, name)
		if len(data) > 0 {
			rc.payloads[name] = append(rc.payloads[name], data[0])
		} else {
			rc.payloads[name] = append(rc.payloads[name], nil)
		}
		rc.mu.Unlock()
	}
	runtimeWindowShowFn = func(context.Context) {
		rc.mu.Lock()
		rc.shows++
		rc.mu.Unlock()
	}
	runtimeWindowHideFn = func(context.Context) {
		rc.mu.Lock()
		rc.hides++
		rc.mu.Unlock()
	}
	runtimeWindowUnminimiseFn = func(context.Context) {
		rc.mu.Lock()
		rc.unminimises++
		rc.mu.Unlock()
	}
	runtimeWindowIsMinimisedFn = func(context.Context) bool {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		return rc.minimised
	}
	runtimeWindowSetAlwaysOnTopFn = func(_ context.Context, on bool) {
		rc.mu.Lock()
		rc.aot = append(rc.aot, on)
		rc.mu.Unlock()
	}
	runtimeQuitFn = func(context.Context) {
		rc.mu.Lock()
		rc.quits++
		rc.mu.Unlock()
	}
	return rc
}

// newTestApp builds an App with a live runtime context and a window
// coordinator backed by the production adapters.
func newTestApp(t *testing.T, policy windowmgr.Policy) *App {
	t.Helper()
	a := NewApp()
	a.setRuntimeContext(context.Background())
	a.windows = windowmgr.NewCoordinator(a.createWindow, policy, appNotifier{a})
	return a
}
