package platform

import (
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	portalBusName         = "org.freedesktop.portal.Desktop"
	portalObjectPath      = "/org/freedesktop/portal/desktop"
	globalShortcutsIface  = "org.freedesktop.portal.GlobalShortcuts"
	portalVersionProperty = globalShortcutsIface + ".version"
)

// sessionBusFn is a test seam for the session-bus connection.
var sessionBusFn = dbus.SessionBus

// DBusPortalProber probes the session bus for the GlobalShortcuts portal.
// The zero value is ready to use.
type DBusPortalProber struct{}

// ProbePortal reports whether the GlobalShortcuts portal interface is
// resolvable on the session bus. Failures are expected on minimal desktops
// and are logged at Debug only; the caller treats them as "not available".
func (DBusPortalProber) ProbePortal() PortalStatus {
	conn, err := sessionBusFn()
	if err != nil {
		slog.Debug("[PLATFORM] session bus unavailable", "error", err)
		return PortalStatus{}
	}

	obj := conn.Object(portalBusName, dbus.ObjectPath(portalObjectPath))
	variant, err := obj.GetProperty(portalVersionProperty)
	if err != nil {
		slog.Debug("[PLATFORM] global-shortcuts portal not resolvable", "error", err)
		return PortalStatus{}
	}

	version, ok := variant.Value().(uint32)
	if !ok {
		slog.Warn("[PLATFORM] portal version property has unexpected type",
			"value", variant.Value())
		return PortalStatus{}
	}

	return PortalStatus{
		Available: true,
		Method:    globalShortcutsIface,
		Version:   version,
	}
}
