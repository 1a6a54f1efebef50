package settings

import (
	"os"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := useTempSettingsDir(t)
	st, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return st
}

func TestStoreDefaults(t *testing.T) {
	st := newTestStore(t)

	if got := st.ZoomLevel(); got != 100 {
		t.Fatalf("ZoomLevel() = %d, want 100", got)
	}
	if !st.HotkeyEnabled("quickInput") {
		t.Fatal("hotkeys default to enabled")
	}
	if got := st.Accelerator("quickInput"); got != "" {
		t.Fatalf("Accelerator() = %q, want empty (use default)", got)
	}
}

func TestStoreSetZoomLevelPersists(t *testing.T) {
	st := newTestStore(t)

	if err := st.SetZoomLevel(150); err != nil {
		t.Fatalf("SetZoomLevel() error = %v", err)
	}

	reopened, err := NewStore(st.Path())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if got := reopened.ZoomLevel(); got != 150 {
		t.Fatalf("reopened ZoomLevel() = %d, want 150", got)
	}
}

func TestStoreSetZoomLevelClamps(t *testing.T) {
	st := newTestStore(t)

	if err := st.SetZoomLevel(999); err != nil {
		t.Fatalf("SetZoomLevel() error = %v", err)
	}
	if got := st.ZoomLevel(); got != 200 {
		t.Fatalf("ZoomLevel() = %d, want clamped 200", got)
	}
}

func TestStoreHotkeyStatePersists(t *testing.T) {
	st := newTestStore(t)

	if err := st.SetHotkeyEnabled("toggleMain", false); err != nil {
		t.Fatalf("SetHotkeyEnabled() error = %v", err)
	}
	if err := st.SetAccelerator("toggleMain", "  Ctrl+Alt+M  "); err != nil {
		t.Fatalf("SetAccelerator() error = %v", err)
	}

	reopened, err := NewStore(st.Path())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if reopened.HotkeyEnabled("toggleMain") {
		t.Fatal("enabled flag did not persist")
	}
	if got := reopened.Accelerator("toggleMain"); got != "Ctrl+Alt+M" {
		t.Fatalf("Accelerator() = %q, want trimmed %q", got, "Ctrl+Alt+M")
	}
}

func TestStoreIgnoresUnknownActions(t *testing.T) {
	st := newTestStore(t)

	if err := st.SetHotkeyEnabled("launchMissiles", true); err != nil {
		t.Fatalf("SetHotkeyEnabled() error = %v", err)
	}
	if _, ok := st.Snapshot().Hotkeys["launchMissiles"]; ok {
		t.Fatal("unknown action must not be persisted")
	}
}

func TestStoreNotifiesListeners(t *testing.T) {
	st := newTestStore(t)

	var snapshots []Settings
	st.Subscribe(func(s Settings) { snapshots = append(snapshots, s) })

	if err := st.SetZoomLevel(75); err != nil {
		t.Fatalf("SetZoomLevel() error = %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].ZoomLevel != 75 {
		t.Fatalf("snapshots = %+v, want one with zoom 75", snapshots)
	}
}

func TestStoreReloadPicksUpExternalEdit(t *testing.T) {
	st := newTestStore(t)

	var reloaded []Settings
	st.Subscribe(func(s Settings) { reloaded = append(reloaded, s) })

	if err := os.WriteFile(st.Path(), []byte("zoom_level: 80\nalways_on_top: true\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := st.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if got := st.ZoomLevel(); got != 80 {
		t.Fatalf("ZoomLevel() = %d, want 80", got)
	}
	if !st.AlwaysOnTop() {
		t.Fatal("AlwaysOnTop() should reflect the external edit")
	}
	if len(reloaded) != 1 {
		t.Fatalf("listeners called %d times, want 1", len(reloaded))
	}

	// A reload with no changes must not notify again.
	if err := st.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(reloaded) != 1 {
		t.Fatal("unchanged reload must not notify listeners")
	}
}
