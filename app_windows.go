package main

import (
	"context"
	"log/slog"

	"webdock/internal/windowmgr"
)

// The shell runs a single native webview window. The Main role wraps it
// directly; Settings, QuickInput and AuthPopup are overlay panels rendered by
// the shell frontend, driven over runtime events. The coordinator neither
// knows nor cares: every role satisfies the same Window interface.

// mainWindow adapts the native window to the coordinator's Window interface.
type mainWindow struct {
	a        *App
	onClosed func()
}

func (w *mainWindow) Show() {
	ctx := w.a.runtimeContext()
	if ctx == nil {
		return
	}
	runtimeWindowShowFn(ctx)
	w.a.setMainVisible(true)
}

func (w *mainWindow) Hide() {
	ctx := w.a.runtimeContext()
	if ctx == nil {
		return
	}
	runtimeWindowHideFn(ctx)
	w.a.setMainVisible(false)
}

func (w *mainWindow) Focus() {
	ctx := w.a.runtimeContext()
	if ctx == nil {
		return
	}
	w.a.raiseNativeWindow(ctx)
}

// Close releases the coordinator handle. The native window itself is torn
// down by the runtime's own close path, not from here.
func (w *mainWindow) Close() {
	if w.onClosed != nil {
		w.onClosed()
		w.onClosed = nil
	}
}

func (w *mainWindow) Navigate(target string) {
	w.a.emitRuntimeEvent("window:navigate", target)
}

func (w *mainWindow) SetAlwaysOnTop(on bool) {
	ctx := w.a.runtimeContext()
	if ctx == nil {
		return
	}
	runtimeWindowSetAlwaysOnTopFn(ctx, on)
}

// panelWindow is a frontend-rendered overlay panel for a secondary role.
type panelWindow struct {
	a        *App
	role     windowmgr.Role
	onClosed func()
}

type panelSignal struct {
	Role   string `json:"role"`
	Target string `json:"target,omitempty"`
}

func (w *panelWindow) emit(name string, target string) {
	w.a.emitRuntimeEvent(name, panelSignal{Role: string(w.role), Target: target})
}

func (w *panelWindow) Show() {
	// An overlay is only visible when the native window is; the quick-input
	// panel in particular must surface even when hidden to the tray.
	if ctx := w.a.runtimeContext(); ctx != nil && w.role == windowmgr.RoleQuickInput {
		w.a.raiseNativeWindow(ctx)
		w.a.setMainVisible(true)
	}
	w.emit("panel:show", "")
}

func (w *panelWindow) Hide() {
	w.emit("panel:hide", "")
}

func (w *panelWindow) Focus() {
	w.emit("panel:focus", "")
}

func (w *panelWindow) Close() {
	w.emit("panel:close", "")
	if w.onClosed != nil {
		w.onClosed()
		w.onClosed = nil
	}
}

func (w *panelWindow) Navigate(target string) {
	w.emit("panel:navigate", target)
}

func (w *panelWindow) SetAlwaysOnTop(bool) {}

// createWindow is the windowmgr.Factory for the shell.
func (a *App) createWindow(role windowmgr.Role, opts windowmgr.CreateOptions, onClosed func()) (windowmgr.Window, error) {
	if role == windowmgr.RoleMain {
		w := &mainWindow{a: a, onClosed: onClosed}
		if opts.URL != "" {
			w.Navigate(opts.URL)
		}
		return w, nil
	}

	w := &panelWindow{a: a, role: role, onClosed: onClosed}
	w.Show()
	if opts.URL != "" {
		w.Navigate(opts.URL)
	}
	return w, nil
}

// appNotifier forwards coordinator state changes to settings and the frontend.
type appNotifier struct {
	a *App
}

func (n appNotifier) AlwaysOnTopChanged(on bool) {
	if n.a.settings != nil {
		if err := n.a.settings.SetAlwaysOnTop(on); err != nil {
			slog.Warn("[WINDOW] persisting always-on-top failed", "error", err)
		}
	}
	n.a.emitRuntimeEvent("window:always-on-top-changed", on)
}

func (n appNotifier) ZoomLevelChanged(pct int) {
	if n.a.settings != nil {
		if err := n.a.settings.SetZoomLevel(pct); err != nil {
			slog.Warn("[WINDOW] persisting zoom level failed", "error", err)
		}
	}
	n.a.emitRuntimeEvent("window:zoom-level-changed", pct)
}

func (a *App) setMainVisible(visible bool) {
	a.windowMu.Lock()
	a.mainVisible = visible
	a.windowMu.Unlock()
}

// raiseNativeWindow shows and raises the native window. The always-on-top
// pulse forces focus on platforms where a plain Show does not steal it; the
// real always-on-top state is restored afterwards.
func (a *App) raiseNativeWindow(ctx context.Context) {
	runtimeWindowShowFn(ctx)
	runtimeWindowUnminimiseFn(ctx)
	onTop := a.windows != nil && a.windows.AlwaysOnTop()
	runtimeWindowSetAlwaysOnTopFn(ctx, true)
	runtimeWindowSetAlwaysOnTopFn(ctx, onTop)
}

// bringMainToFront shows and raises the main window. Used by the tray, the
// activation endpoint and the toggleMain hotkey.
func (a *App) bringMainToFront() {
	if a.windows == nil {
		return
	}
	if a.windows.HiddenToTray() {
		a.windows.RestoreFromTray()
		a.setMainVisible(true)
		return
	}
	ctx := a.runtimeContext()
	if ctx == nil {
		slog.Warn("[WINDOW] bringMainToFront dropped because runtime context is nil")
		return
	}
	a.raiseNativeWindow(ctx)
	a.setMainVisible(true)
}

// toggleMainWindow shows or hides the main window.
func (a *App) toggleMainWindow() {
	// CAS guard prevents double-toggle when a second hotkey fires while OS
	// window operations are in progress.
	if !a.windowToggling.CompareAndSwap(false, true) {
		slog.Debug("[HOTKEY] main toggle already in progress, skipping")
		return
	}
	defer a.windowToggling.Store(false)

	ctx := a.runtimeContext()
	if ctx == nil {
		return
	}

	// Read OS window state outside the lock: no runtime API inside a mutex.
	isMinimised := runtimeWindowIsMinimisedFn(ctx)

	a.windowMu.Lock()
	currentlyVisible := a.mainVisible && !isMinimised
	a.windowMu.Unlock()

	if currentlyVisible {
		if a.windows != nil {
			a.windows.HideToTray()
		} else {
			runtimeWindowHideFn(ctx)
		}
		a.setMainVisible(false)
		return
	}
	a.bringMainToFront()
}
