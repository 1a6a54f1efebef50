package main

import (
	"log/slog"

	"webdock/internal/bridge"
)

// The hosted page announces its content surfaces (tabs) over the bridge.
// The shell only tracks ids and the active one; surface content is entirely
// the page's business.

// setSurfaces replaces the known surface set. An empty active id keeps the
// previous selection when it is still present, otherwise the first surface
// becomes active.
func (a *App) setSurfaces(ids []string, active string) {
	a.surfaceMu.Lock()
	defer a.surfaceMu.Unlock()

	a.surfaceIDs = append(a.surfaceIDs[:0], ids...)
	if active == "" {
		active = a.activeSurface
	}
	if !containsSurface(a.surfaceIDs, active) {
		active = ""
		if len(a.surfaceIDs) > 0 {
			active = a.surfaceIDs[0]
		}
	}
	a.activeSurface = active
	slog.Debug("[SURFACE] surface set updated", "count", len(a.surfaceIDs), "active", a.activeSurface)
}

func containsSurface(ids []string, id string) bool {
	if id == "" {
		return false
	}
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// ActiveSurfaceID returns the surface quick-input submissions target.
func (a *App) ActiveSurfaceID() string {
	a.surfaceMu.Lock()
	defer a.surfaceMu.Unlock()
	return a.activeSurface
}

// ListSurfaces returns the announced surface ids in page order.
func (a *App) ListSurfaces() []string {
	a.surfaceMu.Lock()
	defer a.surfaceMu.Unlock()
	return append([]string(nil), a.surfaceIDs...)
}

func (a *App) hasSurface(id string) bool {
	a.surfaceMu.Lock()
	defer a.surfaceMu.Unlock()
	return containsSurface(a.surfaceIDs, id)
}

// CycleNextSurface advances the active surface and asks the hosted page to
// switch to it. With zero or one surface this is a no-op.
func (a *App) CycleNextSurface() string {
	a.surfaceMu.Lock()
	if len(a.surfaceIDs) < 2 {
		a.surfaceMu.Unlock()
		slog.Debug("[SURFACE] cycle skipped, not enough surfaces")
		return a.ActiveSurfaceID()
	}
	next := a.surfaceIDs[0]
	for i, id := range a.surfaceIDs {
		if id == a.activeSurface && i+1 < len(a.surfaceIDs) {
			next = a.surfaceIDs[i+1]
			break
		}
	}
	a.activeSurface = next
	a.surfaceMu.Unlock()

	if a.hub != nil {
		if err := a.hub.Send(bridge.TypeSurfaceActivate, surfaceActivateSignal{SurfaceID: next}); err != nil {
			slog.Warn("[SURFACE] surface activation not delivered", "surface", next, "error", err)
		}
	}
	return next
}

type surfaceActivateSignal struct {
	SurfaceID string `json:"surfaceId"`
}
