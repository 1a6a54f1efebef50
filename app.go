package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"webdock/internal/bridge"
	"webdock/internal/history"
	"webdock/internal/hotkeys"
	"webdock/internal/inject"
	"webdock/internal/platform"
	"webdock/internal/settings"
	"webdock/internal/tray"
	"webdock/internal/windowmgr"
)

// App is the Wails-bound application service.
type App struct {
	// Runtime context lifecycle.
	ctx   context.Context
	ctxMu sync.RWMutex

	// Lock ordering (outer -> inner):
	//   surfaceMu is leaf-level: never acquire another App lock while holding it.
	//   windowMu is leaf-level: OS window operations happen outside it.
	//
	// Independent locks: do not assume ordering across these.
	//   ctxMu, windowMu, surfaceMu, startupWarnMu, execMu,
	//   windowmgr.Coordinator.mu, hotkeys.Coordinator.mu, settings.Store.mu
	strategy platform.Strategy
	settings *settings.Store

	// Backend services. Assigned once during startup, never reassigned;
	// nil-guarded on every access because startup degrades per component.
	hotkeys  *hotkeys.Coordinator
	windows  *windowmgr.Coordinator
	injector *inject.Protocol
	hub      *bridge.Hub
	history  *history.Store
	server   ipcServer
	trayIcon *tray.Tray

	// Content surfaces announced by the hosted page over the bridge.
	surfaceMu     sync.Mutex
	surfaceIDs    []string
	activeSurface string

	// Injection executions awaiting their result frame from the page script,
	// keyed by requestId. execMu is leaf-level.
	execMu      sync.Mutex
	execWaiters map[string]chan execOutcome

	// Window visibility state.
	windowMu          sync.Mutex
	mainVisible       bool
	quickInputVisible bool
	windowToggling    atomic.Bool // CAS guard to prevent concurrent toggleMainWindow
	shuttingDown      atomic.Bool // set at the start of shutdown(); checked by worker recovery

	startupWarnMu   sync.Mutex
	startupWarnings []string

	// Background worker cancellation/waits.
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// NewApp creates the app service. All collaborators are wired in startup,
// once the Wails runtime context exists.
func NewApp() *App {
	return &App{}
}

func (a *App) setRuntimeContext(ctx context.Context) {
	a.ctxMu.Lock()
	a.ctx = ctx
	a.ctxMu.Unlock()
}

func (a *App) runtimeContext() context.Context {
	a.ctxMu.RLock()
	ctx := a.ctx
	a.ctxMu.RUnlock()
	return ctx
}

// HostedAppURL returns the web application URL the main window should load.
func (a *App) HostedAppURL() string {
	if a.settings == nil {
		return ""
	}
	return a.settings.AppURL()
}

// GetBridgeURL returns the WebSocket endpoint the hosted page script connects
// to for the host<->page signal channel. Empty when the bridge failed to start.
func (a *App) GetBridgeURL() string {
	if a.hub == nil {
		slog.Debug("[BRIDGE] hub is nil, bridge URL unavailable")
		return ""
	}
	return a.hub.URL()
}

// HotkeyPlan exposes the selected hotkey registration plan for diagnostics.
func (a *App) HotkeyPlan() platform.Plan {
	if a.hotkeys == nil {
		return platform.Plan{Mode: platform.ModeDisabled}
	}
	return a.hotkeys.Plan()
}
