package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"webdock/internal/history"
	"webdock/internal/windowmgr"
)

// OpenQuickInput shows the quick-input overlay, creating it on first use.
func (a *App) OpenQuickInput() {
	if a.windows == nil {
		return
	}
	if _, err := a.windows.Create(windowmgr.RoleQuickInput, windowmgr.CreateOptions{}); err != nil {
		slog.Warn("[WINDOW] quick input create failed", "error", err)
		return
	}
	a.windowMu.Lock()
	a.quickInputVisible = true
	a.windowMu.Unlock()
}

// HideQuickInput hides the overlay without touching its pending submission.
func (a *App) HideQuickInput() {
	a.windowMu.Lock()
	wasVisible := a.quickInputVisible
	a.quickInputVisible = false
	a.windowMu.Unlock()
	if !wasVisible || a.windows == nil {
		return
	}
	if w := a.windows.Get(windowmgr.RoleQuickInput); w != nil {
		w.Hide()
	}
}

// ToggleQuickInput is the quickInput hotkey effect.
func (a *App) ToggleQuickInput() {
	a.windowMu.Lock()
	visible := a.quickInputVisible
	a.windowMu.Unlock()
	if visible {
		a.HideQuickInput()
		return
	}
	a.OpenQuickInput()
}

// CancelQuickInput dismisses the overlay, discarding whatever was typed.
func (a *App) CancelQuickInput() {
	slog.Debug("[INJECT] quick input cancelled")
	a.HideQuickInput()
}

// SubmitQuickInput submits overlay text against a surface. An empty surfaceID
// targets the active surface. Returns the request id, or "" when the
// submission was dropped.
func (a *App) SubmitQuickInput(surfaceID string, text string) string {
	return a.submitQuickInput(surfaceID, text)
}

func (a *App) submitQuickInput(surfaceID string, text string) string {
	if a.injector == nil {
		slog.Warn("[INJECT] submit dropped, injection protocol unavailable")
		return ""
	}
	if surfaceID == "" {
		surfaceID = a.ActiveSurfaceID()
	}
	if surfaceID == "" {
		slog.Warn("[INJECT] submit dropped, no active surface")
		return ""
	}

	requestID := a.injector.Submit(surfaceID, text)
	if requestID == "" {
		return ""
	}
	if a.history != nil {
		if err := a.history.Append(context.Background(), surfaceID, strings.TrimSpace(text)); err != nil {
			slog.Warn("[HISTORY] append failed", "error", err)
		}
	}
	return requestID
}

// RecentQuickInputs returns the newest history entries, newest first.
func (a *App) RecentQuickInputs(limit int) ([]history.Entry, error) {
	if a.history == nil {
		return nil, errors.New("quick-input history is unavailable")
	}
	return a.history.Recent(context.Background(), limit)
}
