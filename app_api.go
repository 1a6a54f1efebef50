package main

import (
	"errors"
	"log/slog"
	"strings"

	"webdock/internal/hotkeys"
	"webdock/internal/windowmgr"
)

// Wails-bound window and hotkey methods. Every method tolerates a degraded
// startup: missing collaborators answer with zero values or an error, never
// a panic.

// OpenSettingsWindow opens (or refocuses) the settings window. A non-empty
// section renavigates to that settings section.
func (a *App) OpenSettingsWindow(section string) {
	if a.windows == nil {
		return
	}
	if _, err := a.windows.Create(windowmgr.RoleSettings, windowmgr.CreateOptions{URL: section}); err != nil {
		slog.Warn("[WINDOW] settings create failed", "error", err)
	}
}

// OpenAuthPopup opens a fresh auth popup on url. Any previous popup is closed
// first.
func (a *App) OpenAuthPopup(url string) error {
	if a.windows == nil {
		return errors.New("window coordinator is unavailable")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("auth popup requires a url")
	}
	_, err := a.windows.Create(windowmgr.RoleAuthPopup, windowmgr.CreateOptions{URL: url})
	return err
}

// GetAlwaysOnTop reports the main window's always-on-top state.
func (a *App) GetAlwaysOnTop() bool {
	return a.windows != nil && a.windows.AlwaysOnTop()
}

// SetAlwaysOnTop applies the always-on-top state.
func (a *App) SetAlwaysOnTop(on bool) {
	if a.windows == nil {
		return
	}
	a.windows.SetAlwaysOnTop(on)
}

// ToggleAlwaysOnTop flips always-on-top and returns the new state.
func (a *App) ToggleAlwaysOnTop() bool {
	if a.windows == nil {
		return false
	}
	next := !a.windows.AlwaysOnTop()
	a.windows.SetAlwaysOnTop(next)
	return next
}

// GetZoomLevel returns the hosted page zoom percentage.
func (a *App) GetZoomLevel() int {
	if a.windows == nil {
		return 0
	}
	return a.windows.ZoomLevel()
}

// SetZoomLevel applies a zoom percentage and returns the sanitized value the
// coordinator settled on.
func (a *App) SetZoomLevel(pct float64) int {
	if a.windows == nil {
		return 0
	}
	return a.windows.SetZoomLevel(pct)
}

// SetTrayBadge shows or hides the tray attention badge. On platforms without
// badge support the state is tracked but the icon never changes.
func (a *App) SetTrayBadge(visible bool) {
	if a.trayIcon == nil {
		return
	}
	a.trayIcon.SetBadgeVisible(visible)
}

// SetTrayTooltip updates the tray hover text.
func (a *App) SetTrayTooltip(text string) {
	if a.trayIcon == nil {
		return
	}
	a.trayIcon.SetTooltip(text)
}

// ListHotkeyActions returns every hotkey action with its live state.
func (a *App) ListHotkeyActions() []hotkeys.Action {
	if a.hotkeys == nil {
		return nil
	}
	return a.hotkeys.Actions()
}

// SetHotkeyEnabled enables or disables one hotkey action.
func (a *App) SetHotkeyEnabled(id string, enabled bool) error {
	if a.hotkeys == nil {
		return errors.New("hotkey coordinator is unavailable")
	}
	return a.hotkeys.SetEnabled(hotkeys.ActionID(id), enabled)
}

// SetHotkeyAccelerator rebinds one hotkey action to a new accelerator.
func (a *App) SetHotkeyAccelerator(id string, accelerator string) error {
	if a.hotkeys == nil {
		return errors.New("hotkey coordinator is unavailable")
	}
	return a.hotkeys.SetAccelerator(hotkeys.ActionID(id), accelerator)
}
