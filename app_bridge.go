package main

import (
	"encoding/json"
	"errors"
	"log/slog"

	"webdock/internal/bridge"
	"webdock/internal/inject"
)

type contentReadySignal struct {
	RequestID       string `json:"requestId"`
	TargetSurfaceID string `json:"targetSurfaceId"`
}

type surfaceSyncSignal struct {
	Surfaces        []string `json:"surfaces"`
	ActiveSurfaceID string   `json:"activeSurfaceId"`
}

type quickInputSubmitSignal struct {
	SurfaceID string `json:"surfaceId"`
	Text      string `json:"text"`
}

type authNavigatedSignal struct {
	URL string `json:"url"`
}

// contentExecuteResultSignal is the page script's answer to content:execute.
// Thrown carries a script-level exception; Success/Error carry the structural
// result the injection script reported.
type contentExecuteResultSignal struct {
	RequestID string `json:"requestId"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Thrown    string `json:"thrown,omitempty"`
}

// registerBridgeHandlers wires the hosted page's inbound signals. Must run
// before the hub starts.
func (a *App) registerBridgeHandlers(hub *bridge.Hub) {
	hub.Handle(bridge.TypeContentReady, func(payload json.RawMessage) {
		var sig contentReadySignal
		if err := json.Unmarshal(payload, &sig); err != nil {
			slog.Warn("[BRIDGE] malformed content:ready payload", "error", err)
			return
		}
		if a.injector == nil {
			slog.Warn("[BRIDGE] content:ready before injection protocol is up", "requestId", sig.RequestID)
			return
		}
		a.injector.OnReady(sig.RequestID, sig.TargetSurfaceID)
	})

	hub.Handle(bridge.TypeContentExecuteResult, func(payload json.RawMessage) {
		var sig contentExecuteResultSignal
		if err := json.Unmarshal(payload, &sig); err != nil {
			slog.Warn("[BRIDGE] malformed content:execute-result payload", "error", err)
			return
		}
		outcome := execOutcome{result: inject.ExecResult{Success: sig.Success, Error: sig.Error}}
		if sig.Thrown != "" {
			outcome = execOutcome{thrown: errors.New(sig.Thrown)}
		}
		if !a.resolveExecWaiter(sig.RequestID, outcome) {
			slog.Warn("[BRIDGE] execute result without a waiting execution", "requestId", sig.RequestID)
		}
	})

	hub.Handle(bridge.TypeSurfaceSync, func(payload json.RawMessage) {
		var sig surfaceSyncSignal
		if err := json.Unmarshal(payload, &sig); err != nil {
			slog.Warn("[BRIDGE] malformed surface:sync payload", "error", err)
			return
		}
		a.setSurfaces(sig.Surfaces, sig.ActiveSurfaceID)
	})

	hub.Handle(bridge.TypeQuickInputSubmit, func(payload json.RawMessage) {
		var sig quickInputSubmitSignal
		if err := json.Unmarshal(payload, &sig); err != nil {
			slog.Warn("[BRIDGE] malformed quick-input:submit payload", "error", err)
			return
		}
		a.submitQuickInput(sig.SurfaceID, sig.Text)
	})

	hub.Handle(bridge.TypeQuickInputHide, func(json.RawMessage) {
		a.HideQuickInput()
	})

	hub.Handle(bridge.TypeQuickInputCancel, func(json.RawMessage) {
		a.CancelQuickInput()
	})

	hub.Handle(bridge.TypeAuthNavigated, func(payload json.RawMessage) {
		var sig authNavigatedSignal
		if err := json.Unmarshal(payload, &sig); err != nil {
			slog.Warn("[BRIDGE] malformed auth:navigated payload", "error", err)
			return
		}
		if a.windows != nil {
			a.windows.NoteAuthNavigation(sig.URL)
		}
	})
}
