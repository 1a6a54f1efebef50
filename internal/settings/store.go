package settings

import (
	"log/slog"
	"strings"
	"sync"
)

// ChangeListener receives the new settings snapshot after any mutation or
// external reload. Called with no store lock held.
type ChangeListener func(s Settings)

// Store holds the live settings and persists every mutation. It implements
// the hotkey layer's persistence interface. All access goes through the
// store's mutex; snapshots returned to callers are deep copies.
type Store struct {
	path string

	mu        sync.Mutex
	current   Settings
	listeners []ChangeListener
}

// NewStore loads (creating if missing) the settings file at path. The store
// is usable even when err is non-nil: load or persist failures leave it on
// sanitized defaults so startup never fails on a bad settings file.
func NewStore(path string) (*Store, error) {
	s, err := EnsureFile(path)
	return &Store{path: path, current: s}, err
}

// Subscribe registers a change listener. Must be called during startup,
// before concurrent mutations.
func (st *Store) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	st.mu.Lock()
	st.listeners = append(st.listeners, fn)
	st.mu.Unlock()
}

// Path returns the backing file path.
func (st *Store) Path() string { return st.path }

// Snapshot returns a deep copy of the current settings.
func (st *Store) Snapshot() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return Clone(st.current)
}

// AppURL returns the hosted application URL.
func (st *Store) AppURL() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current.AppURL
}

// FirstPartyHosts returns the hosts the auth popup treats as first-party.
func (st *Store) FirstPartyHosts() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]string(nil), st.current.FirstPartyHosts...)
}

// ZoomLevel returns the persisted zoom percentage.
func (st *Store) ZoomLevel() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current.ZoomLevel
}

// SetZoomLevel persists a new zoom percentage.
func (st *Store) SetZoomLevel(level int) error {
	return st.mutate(func(s *Settings) {
		s.ZoomLevel = clampZoomLevel(level)
	})
}

// AlwaysOnTop returns the persisted always-on-top flag.
func (st *Store) AlwaysOnTop() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current.AlwaysOnTop
}

// SetAlwaysOnTop persists the always-on-top flag.
func (st *Store) SetAlwaysOnTop(on bool) error {
	return st.mutate(func(s *Settings) {
		s.AlwaysOnTop = on
	})
}

// HotkeyEnabled reports whether the action's hotkey is enabled. Absent
// entries default to enabled.
func (st *Store) HotkeyEnabled(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	hk, ok := st.current.Hotkeys[id]
	if !ok || hk.Enabled == nil {
		return true
	}
	return *hk.Enabled
}

// Accelerator returns the persisted accelerator for the action, or "" when
// the action uses its default.
func (st *Store) Accelerator(id string) string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current.Hotkeys[id].Accelerator
}

// SetHotkeyEnabled persists the enabled flag for one action.
func (st *Store) SetHotkeyEnabled(id string, enabled bool) error {
	if _, known := knownActionIDs[id]; !known {
		slog.Warn("[WARN-SETTINGS] refusing to persist unknown hotkey action", "action", id)
		return nil
	}
	return st.mutate(func(s *Settings) {
		hk := s.Hotkeys[id]
		hk.Enabled = &enabled
		s.Hotkeys[id] = hk
	})
}

// SetAccelerator persists the accelerator for one action. An empty string
// reverts the action to its default.
func (st *Store) SetAccelerator(id string, accelerator string) error {
	if _, known := knownActionIDs[id]; !known {
		slog.Warn("[WARN-SETTINGS] refusing to persist unknown hotkey action", "action", id)
		return nil
	}
	return st.mutate(func(s *Settings) {
		hk := s.Hotkeys[id]
		hk.Accelerator = strings.TrimSpace(accelerator)
		s.Hotkeys[id] = hk
	})
}

// Reload re-reads the backing file after an external edit and notifies
// listeners when anything changed.
func (st *Store) Reload() error {
	loaded, err := Load(st.path)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if settingsEqual(st.current, loaded) {
		st.mu.Unlock()
		return nil
	}
	st.current = loaded
	snapshot := Clone(loaded)
	listeners := st.listenersLocked()
	st.mu.Unlock()

	slog.Info("[SETTINGS] settings reloaded from external edit", "path", st.path)
	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}

// mutate applies fn under the lock, persists, and notifies listeners.
// A failed write keeps the in-memory mutation: the next successful save
// flushes it, and losing a live change to a transient disk error would be
// worse than a delayed persist.
func (st *Store) mutate(fn func(*Settings)) error {
	st.mu.Lock()
	fn(&st.current)
	saved, err := Save(st.path, Clone(st.current))
	if err == nil {
		st.current = saved
	}
	snapshot := Clone(st.current)
	listeners := st.listenersLocked()
	st.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
	if err != nil {
		slog.Warn("[WARN-SETTINGS] failed to persist settings", "path", st.path, "error", err)
	}
	return err
}

func (st *Store) listenersLocked() []ChangeListener {
	out := make([]ChangeListener, len(st.listeners))
	copy(out, st.listeners)
	return out
}

func settingsEqual(a, b Settings) bool {
	if a.ZoomLevel != b.ZoomLevel || a.AlwaysOnTop != b.AlwaysOnTop || a.AppURL != b.AppURL {
		return false
	}
	if len(a.FirstPartyHosts) != len(b.FirstPartyHosts) {
		return false
	}
	for i, host := range a.FirstPartyHosts {
		if b.FirstPartyHosts[i] != host {
			return false
		}
	}
	if len(a.Hotkeys) != len(b.Hotkeys) {
		return false
	}
	for id, ha := range a.Hotkeys {
		hb, ok := b.Hotkeys[id]
		if !ok || ha.Accelerator != hb.Accelerator {
			return false
		}
		switch {
		case ha.Enabled == nil && hb.Enabled == nil:
		case ha.Enabled != nil && hb.Enabled != nil && *ha.Enabled == *hb.Enabled:
		default:
			return false
		}
	}
	return true
}
