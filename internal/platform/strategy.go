// Package platform answers per-OS policy questions for the shell.
//
// A Strategy is selected once at startup and treated as immutable afterwards.
// All queries are pure reads over OS / desktop-environment identity; tests
// substitute a fake Strategy (or a fake environment) instead of mutating
// process globals.
package platform

import (
	"os"
	"runtime"
	"strings"
)

// HotkeyMode selects the global-shortcut registration mechanism.
type HotkeyMode string

const (
	// ModeNative registers accelerators directly with the OS global-shortcut
	// facility.
	ModeNative HotkeyMode = "native"
	// ModeBusFallback registers shortcuts through the desktop portal bus.
	// Used on Wayland-like Linux sessions, which lack a stable direct API.
	ModeBusFallback HotkeyMode = "bus-fallback"
	// ModeDisabled means no global-shortcut mechanism is available. This is a
	// legitimate terminal state, not an error.
	ModeDisabled HotkeyMode = "disabled"
)

// BusStatus describes the desktop-bus probe result that led to a plan.
// Recomputed on every HotkeyPlan call, never persisted.
type BusStatus struct {
	IsWaylandLike      bool   `json:"isWaylandLike"`
	DesktopEnvironment string `json:"desktopEnvironment"`
	CompositorVersion  string `json:"compositorVersion"`
	BusAvailable       bool   `json:"busAvailable"`
	BusMethod          string `json:"busMethod"`
}

// Plan is the hotkey registration plan for the current session.
type Plan struct {
	Mode HotkeyMode `json:"mode"`
	Bus  BusStatus  `json:"bus"`
}

// PortalStatus is the result of probing the desktop portal bus for a
// global-shortcuts interface.
type PortalStatus struct {
	Available bool
	Method    string
	Version   uint32
}

// PortalProber checks whether a desktop-bus global-shortcuts portal is
// reachable. The production implementation talks to the session bus; tests
// substitute a canned result.
type PortalProber interface {
	ProbePortal() PortalStatus
}

// Environ looks up an environment variable. Abstracted so tests can force
// desktop-environment identity without mutating the process environment.
type Environ func(key string) string

// Strategy answers per-OS policy questions consumed by the window, hotkey and
// tray layers. One concrete implementation exists per OS family.
type Strategy interface {
	// OS returns the GOOS-style identity this strategy was built for.
	OS() string
	// HotkeyPlan returns the global-shortcut registration plan.
	HotkeyPlan() Plan
	// QuitOnLastWindowClosed reports whether closing the last window should
	// terminate the process.
	QuitOnLastWindowClosed() bool
	// SupportsBadge reports whether the tray/dock supports an attention badge.
	SupportsBadge() bool
	// HideMainWindowOnClose reports whether the main window close button hides
	// to tray instead of destroying the window.
	HideMainWindowOnClose() bool
	// SettingsMenuLabel returns the platform-conventional settings menu label.
	SettingsMenuLabel() string
	// TrayIconName returns the tray icon asset file name.
	TrayIconName() string
	// BadgeIconName returns the badged tray icon asset file name.
	BadgeIconName() string
}

// forcePlatformEnv overrides the detected OS identity. Development-only; used
// by cross-platform tests, never set in production builds.
const forcePlatformEnv = "WEBDOCK_FORCE_PLATFORM"

// Select returns the strategy for the current OS. The prober is only consulted
// on Linux; pass nil elsewhere.
func Select(prober PortalProber) Strategy {
	return selectFor(detectOS(os.Getenv), os.Getenv, prober)
}

func detectOS(getenv Environ) string {
	if forced := strings.TrimSpace(getenv(forcePlatformEnv)); forced != "" {
		return forced
	}
	return runtime.GOOS
}

func selectFor(goos string, getenv Environ, prober PortalProber) Strategy {
	switch goos {
	case "darwin":
		return darwinStrategy{}
	case "linux":
		return linuxStrategy{getenv: getenv, prober: prober}
	default:
		return windowsStrategy{os: goos}
	}
}

type windowsStrategy struct {
	os string
}

func (s windowsStrategy) OS() string {
	if s.os == "" {
		return "windows"
	}
	return s.os
}

func (windowsStrategy) HotkeyPlan() Plan             { return Plan{Mode: ModeNative} }
func (windowsStrategy) QuitOnLastWindowClosed() bool { return true }
func (windowsStrategy) SupportsBadge() bool          { return true }
func (windowsStrategy) HideMainWindowOnClose() bool  { return true }
func (windowsStrategy) SettingsMenuLabel() string    { return "Settings" }
func (windowsStrategy) TrayIconName() string         { return "tray.ico" }
func (windowsStrategy) BadgeIconName() string        { return "tray-badge.ico" }

type darwinStrategy struct{}

func (darwinStrategy) OS() string                   { return "darwin" }
func (darwinStrategy) HotkeyPlan() Plan             { return Plan{Mode: ModeNative} }
func (darwinStrategy) QuitOnLastWindowClosed() bool { return false }
func (darwinStrategy) SupportsBadge() bool          { return true }
func (darwinStrategy) HideMainWindowOnClose() bool  { return true }
func (darwinStrategy) SettingsMenuLabel() string    { return "Preferences…" }
func (darwinStrategy) TrayIconName() string         { return "trayTemplate.png" }
func (darwinStrategy) BadgeIconName() string        { return "trayTemplate-badge.png" }

type linuxStrategy struct {
	getenv Environ
	prober PortalProber
}

func (linuxStrategy) OS() string { return "linux" }

// HotkeyPlan implements the Linux decision table:
// X11 session -> native; Wayland-like with a reachable global-shortcuts
// portal -> bus fallback; Wayland-like without one -> disabled.
func (s linuxStrategy) HotkeyPlan() Plan {
	bus := BusStatus{
		IsWaylandLike:      s.isWaylandLike(),
		DesktopEnvironment: s.desktopEnvironment(),
		CompositorVersion:  strings.TrimSpace(s.getenv("KDE_SESSION_VERSION")),
	}
	if !bus.IsWaylandLike {
		return Plan{Mode: ModeNative, Bus: bus}
	}
	if s.prober != nil {
		status := s.prober.ProbePortal()
		bus.BusAvailable = status.Available
		bus.BusMethod = status.Method
	}
	if !bus.BusAvailable {
		return Plan{Mode: ModeDisabled, Bus: bus}
	}
	return Plan{Mode: ModeBusFallback, Bus: bus}
}

func (s linuxStrategy) isWaylandLike() bool {
	if strings.TrimSpace(s.getenv("WAYLAND_DISPLAY")) != "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(s.getenv("XDG_SESSION_TYPE")), "wayland")
}

func (s linuxStrategy) desktopEnvironment() string {
	return strings.ToLower(strings.TrimSpace(s.getenv("XDG_CURRENT_DESKTOP")))
}

// Linux tray implementations vary; quitting on last close keeps lifecycle
// predictable on desktops without a status-notifier host.
func (linuxStrategy) QuitOnLastWindowClosed() bool { return true }
func (linuxStrategy) SupportsBadge() bool          { return false }
func (linuxStrategy) HideMainWindowOnClose() bool  { return false }
func (linuxStrategy) SettingsMenuLabel() string    { return "Settings" }
func (linuxStrategy) TrayIconName() string         { return "tray.png" }
func (linuxStrategy) BadgeIconName() string        { return "tray-badge.png" }
