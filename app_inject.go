package main

import (
	"errors"
	"log/slog"
	"strings"

	"webdock/internal/bridge"
	"webdock/internal/inject"
	"webdock/internal/windowmgr"
)

// appInjectHost gives the injection protocol its window-side collaborators.
type appInjectHost struct {
	a *App
}

func (h appInjectHost) HideQuickInput() {
	h.a.HideQuickInput()
}

func (h appInjectHost) FocusMain() bool {
	if h.a.windows == nil {
		return false
	}
	main := h.a.windows.Get(windowmgr.RoleMain)
	if main == nil {
		return false
	}
	main.Show()
	main.Focus()
	return true
}

func (h appInjectHost) SendNavigate(sig inject.NavigateSignal) {
	if h.a.hub == nil {
		slog.Warn("[INJECT] navigate signal dropped, bridge unavailable", "requestId", sig.RequestID)
		return
	}
	if err := h.a.hub.Send(bridge.TypeContentNavigate, sig); err != nil {
		slog.Warn("[INJECT] navigate signal not delivered", "requestId", sig.RequestID, "error", err)
	}
}

// appInjectExecutor executes injection instructions against a surface frame
// in the hosted page, over the bridge.
type appInjectExecutor struct {
	a *App
}

type contentExecuteSignal struct {
	RequestID  string `json:"requestId"`
	Frame      string `json:"frame"`
	Text       string `json:"text"`
	AutoSubmit bool   `json:"autoSubmit"`
}

// execOutcome is the page script's answer to one content:execute signal.
// Exactly one of result/thrown is meaningful.
type execOutcome struct {
	result inject.ExecResult
	thrown error
}

func (e appInjectExecutor) HasFrame(frameName string) bool {
	id := strings.TrimPrefix(frameName, inject.SurfaceFrameName(""))
	if id == frameName {
		return false
	}
	return e.a.hasSurface(id)
}

// Execute sends one injection instruction to the page script and blocks until
// the matching content:execute-result frame arrives, or until shutdown fails
// the waiter. It runs on the protocol's execution goroutine, never on the
// bridge read pump.
func (e appInjectExecutor) Execute(frameName string, requestID string, text string, autoSubmit bool) (inject.ExecResult, error) {
	if e.a.hub == nil {
		return inject.ExecResult{}, errors.New("bridge unavailable")
	}
	waiter := e.a.addExecWaiter(requestID)
	if e.a.shuttingDown.Load() {
		// Shutdown may already have failed the outstanding waiters; a waiter
		// registered after that pass would block forever.
		e.a.removeExecWaiter(requestID)
		return inject.ExecResult{}, errors.New("shutting down")
	}
	err := e.a.hub.Send(bridge.TypeContentExecute, contentExecuteSignal{
		RequestID:  requestID,
		Frame:      frameName,
		Text:       text,
		AutoSubmit: autoSubmit,
	})
	if err != nil {
		// The page side never saw the instruction: a structural failure, not
		// a thrown execution error.
		e.a.removeExecWaiter(requestID)
		return inject.ExecResult{Success: false, Error: err.Error()}, nil
	}

	outcome := <-waiter
	if outcome.thrown != nil {
		return inject.ExecResult{}, outcome.thrown
	}
	return outcome.result, nil
}

// addExecWaiter registers a buffered channel the result frame handler will
// resolve. A duplicate requestId replaces the previous waiter, which is then
// never resolved; requestIds are UUIDs, so this is a page-script bug path.
func (a *App) addExecWaiter(requestID string) chan execOutcome {
	ch := make(chan execOutcome, 1)
	a.execMu.Lock()
	if a.execWaiters == nil {
		a.execWaiters = map[string]chan execOutcome{}
	}
	a.execWaiters[requestID] = ch
	a.execMu.Unlock()
	return ch
}

func (a *App) removeExecWaiter(requestID string) {
	a.execMu.Lock()
	delete(a.execWaiters, requestID)
	a.execMu.Unlock()
}

// resolveExecWaiter delivers the page script's outcome to the blocked
// Execute, reporting false when no execution waits for requestID.
func (a *App) resolveExecWaiter(requestID string, outcome execOutcome) bool {
	a.execMu.Lock()
	ch, ok := a.execWaiters[requestID]
	if ok {
		delete(a.execWaiters, requestID)
	}
	a.execMu.Unlock()
	if !ok {
		return false
	}
	ch <- outcome
	return true
}

// failExecWaiters resolves every outstanding waiter with a thrown error.
// Shutdown calls this before draining the injection protocol so no execution
// blocks forever on a result frame that will never come.
func (a *App) failExecWaiters(err error) {
	a.execMu.Lock()
	waiters := a.execWaiters
	a.execWaiters = nil
	a.execMu.Unlock()
	for requestID, ch := range waiters {
		slog.Warn("[INJECT] abandoning execution awaiting its result", "requestId", requestID, "reason", err)
		ch <- execOutcome{thrown: err}
	}
}
