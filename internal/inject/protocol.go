package inject

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Function variables for testability.
var (
	timeNow      = time.Now
	newRequestID = uuid.NewString
)

// SurfaceFrameName returns the deterministic frame name hosting a surface.
func SurfaceFrameName(surfaceID string) string {
	return "content-tab-" + surfaceID
}

// PendingRequest is one submitted injection awaiting its ready signal.
type PendingRequest struct {
	RequestID string
	SurfaceID string
	Text      string
	CreatedAt time.Time
}

// NavigateSignal is the payload sent to the main window after a submit.
type NavigateSignal struct {
	RequestID string `json:"requestId"`
	SurfaceID string `json:"targetSurfaceId"`
	Text      string `json:"text"`
}

// Host is what the protocol needs from the window layer. Implemented by the
// app root; tests use a fake.
type Host interface {
	HideQuickInput()
	// FocusMain focuses the main window, reporting false when none exists.
	FocusMain() bool
	SendNavigate(signal NavigateSignal)
}

// ExecResult is the structural outcome an injection script reports back.
type ExecResult struct {
	Success bool
	Error   string
}

// Executor runs injection instructions against a surface frame.
type Executor interface {
	HasFrame(frameName string) bool
	// Execute runs one injection, identified by requestID so the page side
	// can report back. It returns the script's structural result, or an
	// error when the execution itself threw.
	Execute(frameName string, requestID string, text string, autoSubmit bool) (ExecResult, error)
}

// Protocol correlates quick-input submissions with the ready signals that
// arrive after the target surface finished loading. Matching requires the
// requestId to be known, its stored surface to equal the signalled one, and
// the requestId to still be the latest for that surface; anything else is a
// stale signal and is dropped.
type Protocol struct {
	host Host
	exec Executor
	// autoSubmit makes the injected text submit itself. Disabled by tests
	// that only verify insertion.
	autoSubmit bool

	mu      sync.Mutex
	pending map[string]*PendingRequest
	// latest indexes surfaceID → most recent requestID. A newer submit for
	// the same surface supersedes older ones at match time; the stale
	// entries themselves stay until matched or swept.
	latest map[string]string

	// execWG tracks in-flight executions so Close can drain them.
	execWG sync.WaitGroup
}

// NewProtocol creates the injection protocol with auto-submit enabled.
func NewProtocol(host Host, exec Executor) *Protocol {
	return &Protocol{
		host:       host,
		exec:       exec,
		autoSubmit: true,
		pending:    map[string]*PendingRequest{},
		latest:     map[string]string{},
	}
}

// SetAutoSubmit toggles automatic submission of injected text.
func (p *Protocol) SetAutoSubmit(on bool) {
	p.mu.Lock()
	p.autoSubmit = on
	p.mu.Unlock()
}

// Submit registers a pending injection for the caller's active surface,
// hides the quick-input overlay, and asks the main window to navigate.
// Returns the requestId, or "" when no main window exists to deliver to.
func (p *Protocol) Submit(surfaceID string, text string) string {
	surfaceID = strings.TrimSpace(surfaceID)
	if surfaceID == "" {
		slog.Warn("[INJECT] submit without an active surface, ignoring")
		return ""
	}
	if strings.TrimSpace(text) == "" {
		slog.Debug("[INJECT] submit with empty text, ignoring")
		return ""
	}

	requestID := newRequestID()
	p.mu.Lock()
	p.pending[requestID] = &PendingRequest{
		RequestID: requestID,
		SurfaceID: surfaceID,
		Text:      text,
		CreatedAt: timeNow(),
	}
	p.latest[surfaceID] = requestID
	p.mu.Unlock()

	p.host.HideQuickInput()
	if !p.host.FocusMain() {
		slog.Warn("[INJECT] no main window to deliver to, aborting submit",
			"requestId", requestID, "surfaceId", surfaceID)
		p.drop(requestID)
		return ""
	}

	p.host.SendNavigate(NavigateSignal{
		RequestID: requestID,
		SurfaceID: surfaceID,
		Text:      text,
	})
	slog.Info("[INJECT] submit dispatched", "requestId", requestID, "surfaceId", surfaceID)
	return requestID
}

// OnReady handles a surface's ready signal. A pending request is consumed at
// most once; every mismatch is dropped with a warning and never retried.
func (p *Protocol) OnReady(requestID string, surfaceID string) {
	p.mu.Lock()
	req, ok := p.pending[requestID]
	if !ok {
		p.mu.Unlock()
		slog.Warn("[INJECT] ready signal is stale, unknown requestId",
			"requestId", requestID, "surfaceId", surfaceID)
		return
	}
	if req.SurfaceID != surfaceID {
		p.mu.Unlock()
		slog.Warn("[INJECT] ready signal surface does not match pending request",
			"requestId", requestID, "got", surfaceID, "want", req.SurfaceID)
		return
	}
	if p.latest[surfaceID] != requestID {
		// Superseded by a newer submit for the same surface. It can never
		// match again, so remove it now.
		delete(p.pending, requestID)
		p.mu.Unlock()
		slog.Warn("[INJECT] ready signal superseded by a newer submit, dropping",
			"requestId", requestID, "surfaceId", surfaceID)
		return
	}

	// Consume.
	delete(p.pending, requestID)
	delete(p.latest, surfaceID)
	autoSubmit := p.autoSubmit
	p.mu.Unlock()

	frameName := SurfaceFrameName(surfaceID)
	if !p.exec.HasFrame(frameName) {
		slog.Error("[INJECT] target surface frame not found, aborting",
			"requestId", requestID, "frame", frameName)
		return
	}

	p.execWG.Add(1)
	go p.execute(frameName, req, autoSubmit)
}

// execute runs one injection against a surface frame. A structural failure
// reported by the script and a thrown execution error are logged distinctly;
// neither crashes the host and neither is retried.
func (p *Protocol) execute(frameName string, req *PendingRequest, autoSubmit bool) {
	defer p.execWG.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[INJECT] injection execution panicked",
				"requestId", req.RequestID, "panic", r)
		}
	}()

	result, err := p.exec.Execute(frameName, req.RequestID, req.Text, autoSubmit)
	if err != nil {
		slog.Error("[INJECT] injection execution threw",
			"requestId", req.RequestID, "frame", frameName, "error", err)
		return
	}
	if !result.Success {
		slog.Warn("[INJECT] injection reported structural failure",
			"requestId", req.RequestID, "frame", frameName, "scriptError", result.Error)
		return
	}
	slog.Debug("[INJECT] injection completed", "requestId", req.RequestID, "frame", frameName)
}

// drop removes one pending request and its latest index entry.
func (p *Protocol) drop(requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.pending[requestID]
	if !ok {
		return
	}
	delete(p.pending, requestID)
	if p.latest[req.SurfaceID] == requestID {
		delete(p.latest, req.SurfaceID)
	}
}

// PendingCount returns the number of unmatched requests.
func (p *Protocol) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Drain waits for all in-flight executions to finish. Shutdown helper.
func (p *Protocol) Drain() {
	p.execWG.Wait()
}
