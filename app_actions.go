package main

import (
	"log/slog"

	"webdock/internal/hotkeys"
	"webdock/internal/settings"
)

// dispatchHotkeyAction routes a triggered hotkey to its effect. Called from
// backend listener goroutines; every branch is safe off the main goroutine.
func (a *App) dispatchHotkeyAction(id hotkeys.ActionID) {
	if a.shuttingDown.Load() {
		return
	}
	slog.Debug("[HOTKEY] action triggered", "action", id)

	switch id {
	case hotkeys.ActionQuickInput:
		a.ToggleQuickInput()
	case hotkeys.ActionToggleMain:
		a.toggleMainWindow()
	case hotkeys.ActionAlwaysOnTop:
		a.ToggleAlwaysOnTop()
	case hotkeys.ActionNextSurface:
		a.CycleNextSurface()
	case hotkeys.ActionOpenSettings:
		a.OpenSettingsWindow("")
	default:
		slog.Warn("[HOTKEY] unknown action triggered", "action", id)
	}
}

// applySettingsChange reacts to settings mutations and external file edits.
// Everything flows through the same coordinators as interactive changes, so
// an edited file behaves exactly like clicking through the settings window.
func (a *App) applySettingsChange(s settings.Settings) {
	if a.shuttingDown.Load() {
		return
	}
	if a.windows != nil {
		a.windows.SetZoomLevel(float64(s.ZoomLevel))
		a.windows.SetAlwaysOnTop(s.AlwaysOnTop)
	}
	a.resyncHotkeys(s)
}

// resyncHotkeys converges the registered hotkeys onto the settings snapshot
// through the coordinator's normal rebind path. Only divergent actions are
// touched, which also terminates the notify->apply cycle.
func (a *App) resyncHotkeys(s settings.Settings) {
	if a.hotkeys == nil {
		return
	}
	for _, action := range a.hotkeys.Actions() {
		wantEnabled := true
		wantAccel := action.DefaultAccelerator
		if hk, ok := s.Hotkeys[string(action.ID)]; ok {
			if hk.Enabled != nil {
				wantEnabled = *hk.Enabled
			}
			if hk.Accelerator != "" {
				wantAccel = hk.Accelerator
			}
		}

		if action.Enabled != wantEnabled {
			if err := a.hotkeys.SetEnabled(action.ID, wantEnabled); err != nil {
				slog.Warn("[HOTKEY] resync enable failed", "action", action.ID, "error", err)
			}
		}
		if action.Accelerator != wantAccel {
			if err := a.hotkeys.SetAccelerator(action.ID, wantAccel); err != nil {
				slog.Warn("[HOTKEY] resync accelerator rejected", "action", action.ID,
					"accelerator", wantAccel, "error", err)
			}
		}
	}
}
