package platform

import "testing"

type cannedProber struct {
	status PortalStatus
	calls  int
}

func (p *cannedProber) ProbePortal() PortalStatus {
	p.calls++
	return p.status
}

func environFromMap(env map[string]string) Environ {
	return func(key string) string { return env[key] }
}

func TestHotkeyPlanNativeOnNonLinux(t *testing.T) {
	for _, goos := range []string{"windows", "darwin"} {
		t.Run(goos, func(t *testing.T) {
			s := selectFor(goos, environFromMap(nil), nil)
			plan := s.HotkeyPlan()
			if plan.Mode != ModeNative {
				t.Fatalf("HotkeyPlan().Mode = %q, want %q", plan.Mode, ModeNative)
			}
		})
	}
}

func TestHotkeyPlanNativeOnLinuxX11(t *testing.T) {
	prober := &cannedProber{status: PortalStatus{Available: true, Method: globalShortcutsIface}}
	s := selectFor("linux", environFromMap(map[string]string{
		"XDG_SESSION_TYPE":    "x11",
		"XDG_CURRENT_DESKTOP": "XFCE",
	}), prober)

	plan := s.HotkeyPlan()
	if plan.Mode != ModeNative {
		t.Fatalf("HotkeyPlan().Mode = %q, want %q", plan.Mode, ModeNative)
	}
	if plan.Bus.IsWaylandLike {
		t.Fatal("Bus.IsWaylandLike = true, want false for x11 session")
	}
	if prober.calls != 0 {
		t.Fatalf("prober calls = %d, want 0 (portal must not be probed on x11)", prober.calls)
	}
}

func TestHotkeyPlanBusFallbackOnWaylandWithPortal(t *testing.T) {
	prober := &cannedProber{status: PortalStatus{Available: true, Method: globalShortcutsIface, Version: 2}}
	s := selectFor("linux", environFromMap(map[string]string{
		"WAYLAND_DISPLAY":     "wayland-0",
		"XDG_CURRENT_DESKTOP": "KDE",
		"KDE_SESSION_VERSION": "6",
	}), prober)

	plan := s.HotkeyPlan()
	if plan.Mode != ModeBusFallback {
		t.Fatalf("HotkeyPlan().Mode = %q, want %q", plan.Mode, ModeBusFallback)
	}
	if !plan.Bus.BusAvailable {
		t.Fatal("Bus.BusAvailable = false, want true")
	}
	if plan.Bus.BusMethod != globalShortcutsIface {
		t.Fatalf("Bus.BusMethod = %q, want %q", plan.Bus.BusMethod, globalShortcutsIface)
	}
	if plan.Bus.DesktopEnvironment != "kde" {
		t.Fatalf("Bus.DesktopEnvironment = %q, want %q", plan.Bus.DesktopEnvironment, "kde")
	}
	if plan.Bus.CompositorVersion != "6" {
		t.Fatalf("Bus.CompositorVersion = %q, want %q", plan.Bus.CompositorVersion, "6")
	}
}

func TestHotkeyPlanDisabledOnWaylandWithoutPortal(t *testing.T) {
	t.Run("portal probe negative", func(t *testing.T) {
		prober := &cannedProber{}
		s := selectFor("linux", environFromMap(map[string]string{
			"XDG_SESSION_TYPE": "wayland",
		}), prober)

		plan := s.HotkeyPlan()
		if plan.Mode != ModeDisabled {
			t.Fatalf("HotkeyPlan().Mode = %q, want %q", plan.Mode, ModeDisabled)
		}
		if plan.Mode == ModeNative {
			t.Fatal("wayland session must never produce a native plan")
		}
	})

	t.Run("nil prober", func(t *testing.T) {
		s := selectFor("linux", environFromMap(map[string]string{
			"WAYLAND_DISPLAY": "wayland-1",
		}), nil)

		if plan := s.HotkeyPlan(); plan.Mode != ModeDisabled {
			t.Fatalf("HotkeyPlan().Mode = %q, want %q", plan.Mode, ModeDisabled)
		}
	})
}

func TestHotkeyPlanIsRecomputedPerQuery(t *testing.T) {
	prober := &cannedProber{status: PortalStatus{Available: true, Method: globalShortcutsIface}}
	s := selectFor("linux", environFromMap(map[string]string{
		"WAYLAND_DISPLAY": "wayland-0",
	}), prober)

	first := s.HotkeyPlan()
	prober.status = PortalStatus{}
	second := s.HotkeyPlan()

	if first.Mode != ModeBusFallback {
		t.Fatalf("first plan mode = %q, want %q", first.Mode, ModeBusFallback)
	}
	if second.Mode != ModeDisabled {
		t.Fatalf("second plan mode = %q, want %q (plan must not be cached)", second.Mode, ModeDisabled)
	}
}

func TestPerOSPolicies(t *testing.T) {
	win := selectFor("windows", environFromMap(nil), nil)
	mac := selectFor("darwin", environFromMap(nil), nil)
	lin := selectFor("linux", environFromMap(nil), nil)

	if !win.HideMainWindowOnClose() {
		t.Fatal("windows should hide main window on close")
	}
	if mac.QuitOnLastWindowClosed() {
		t.Fatal("darwin should not quit on last window closed")
	}
	if mac.SettingsMenuLabel() != "Preferences…" {
		t.Fatalf("darwin settings label = %q", mac.SettingsMenuLabel())
	}
	if lin.SupportsBadge() {
		t.Fatal("linux tray badge should be unsupported")
	}
	if lin.HideMainWindowOnClose() {
		t.Fatal("linux should close rather than hide by default")
	}
}

func TestDetectOSHonorsDevOverride(t *testing.T) {
	env := map[string]string{forcePlatformEnv: "linux"}
	if got := detectOS(environFromMap(env)); got != "linux" {
		t.Fatalf("detectOS() = %q, want forced %q", got, "linux")
	}
}
