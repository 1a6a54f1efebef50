package settings

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	maxSettingsFileBytes int64 = 1 << 20 // 1MB
	maxRenameRetry             = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond

	minZoomLevel     = 50
	maxZoomLevel     = 200
	defaultZoomLevel = 100
)

// defaultSettingsDirFn is a test seam; tests override it to simulate
// directory-resolution failures in validateSettingsPath.
var defaultSettingsDirFn = defaultSettingsDir
var userHomeDirFn = os.UserHomeDir

// HotkeySetting is the persisted state for one hotkey action.
type HotkeySetting struct {
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	// Accelerator is stored raw; the hotkey layer validates it and falls
	// back to the action default when it does not parse.
	Accelerator string `yaml:"accelerator,omitempty" json:"accelerator,omitempty"`
}

// Settings is the persisted application state.
type Settings struct {
	// AppURL is the hosted web application the main window navigates to.
	AppURL string `yaml:"app_url" json:"appUrl"`
	// FirstPartyHosts lists hosts the auth popup treats as first-party:
	// navigating to one of them (or a subdomain) closes the popup.
	FirstPartyHosts []string `yaml:"first_party_hosts,omitempty" json:"firstPartyHosts,omitempty"`
	// ZoomLevel is the hosted page zoom percentage, 50-200.
	ZoomLevel int `yaml:"zoom_level" json:"zoomLevel"`
	// AlwaysOnTop keeps the main window above others.
	AlwaysOnTop bool `yaml:"always_on_top" json:"alwaysOnTop"`
	// Hotkeys maps action id to its persisted state. Unknown actions are
	// dropped on load; absent actions use their defaults.
	Hotkeys map[string]HotkeySetting `yaml:"hotkeys,omitempty" json:"hotkeys,omitempty"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		ZoomLevel: defaultZoomLevel,
		Hotkeys:   map[string]HotkeySetting{},
	}
}

// DefaultPath resolves the settings file path, preferring LOCALAPPDATA over
// APPDATA, falling back to ~/.config when both are unset, and then to
// os.TempDir() if the home directory cannot be resolved.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
	if base == "" {
		base = strings.TrimSpace(os.Getenv("APPDATA"))
	}
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			// Keep the path resolvable even in restricted environments.
			slog.Warn("[WARN-SETTINGS] using temp dir as settings path fallback", "error", err)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, "webdock", "settings.yaml")
}

// knownActionIDs is the set of hotkey action ids the settings file may
// reference. Kept here as plain strings so this package stays free of the
// hotkey layer.
var knownActionIDs = map[string]struct{}{
	"quickInput":   {},
	"toggleMain":   {},
	"alwaysOnTop":  {},
	"nextSurface":  {},
	"openSettings": {},
}

// Load reads the settings file. A missing file returns defaults; a file that
// fails to parse is logged and replaced by defaults so startup never fails
// on a corrupt settings file.
func Load(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, errors.New("settings path required")
	}

	raw, err := readLimitedFile(path, maxSettingsFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		slog.Warn("[WARN-SETTINGS] failed to parse settings, using defaults", "path", path, "error", err)
		return DefaultSettings(), err
	}

	sanitize(&s)
	return s, nil
}

// EnsureFile writes defaults if the file is missing and returns the loaded
// settings.
func EnsureFile(path string) (Settings, error) {
	s, err := Load(path)
	if err != nil {
		return s, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, s); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Save sanitizes s and atomically writes it to path. Returns the normalized
// settings that were actually written.
func Save(path string, s Settings) (Settings, error) {
	normalizedPath, err := validateSettingsPath(path)
	if err != nil {
		return s, err
	}
	sanitize(&s)

	raw, err := yaml.Marshal(s)
	if err != nil {
		return s, fmt.Errorf("save settings: marshal: %w", err)
	}
	if err := atomicWrite(normalizedPath, raw); err != nil {
		return s, err
	}
	slog.Debug("[DEBUG-SETTINGS] settings saved", "path", path)
	return s, nil
}

// Clone returns a deep copy of s for sharing across goroutines.
func Clone(src Settings) Settings {
	dst := src
	if src.FirstPartyHosts != nil {
		dst.FirstPartyHosts = append([]string(nil), src.FirstPartyHosts...)
	}
	if src.Hotkeys != nil {
		dst.Hotkeys = make(map[string]HotkeySetting, len(src.Hotkeys))
		for id, hk := range src.Hotkeys {
			if hk.Enabled != nil {
				enabled := *hk.Enabled
				hk.Enabled = &enabled
			}
			dst.Hotkeys[id] = hk
		}
	}
	return dst
}

// sanitize fills defaults and drops invalid values in place. Values arrive
// from an externally editable file, so everything is clamped or dropped
// rather than rejected.
func sanitize(s *Settings) {
	s.AppURL = strings.TrimSpace(s.AppURL)
	s.ZoomLevel = clampZoomLevel(s.ZoomLevel)

	if len(s.FirstPartyHosts) > 0 {
		hosts := s.FirstPartyHosts[:0]
		for _, host := range s.FirstPartyHosts {
			host = strings.ToLower(strings.TrimSpace(host))
			if host != "" {
				hosts = append(hosts, host)
			}
		}
		s.FirstPartyHosts = hosts
	}

	if s.Hotkeys == nil {
		s.Hotkeys = map[string]HotkeySetting{}
		return
	}
	for id, hk := range s.Hotkeys {
		if _, known := knownActionIDs[id]; !known {
			slog.Warn("[WARN-SETTINGS] unknown hotkey action in settings, dropping", "action", id)
			delete(s.Hotkeys, id)
			continue
		}
		hk.Accelerator = strings.TrimSpace(hk.Accelerator)
		s.Hotkeys[id] = hk
	}
}

// clampZoomLevel maps arbitrary persisted input to the valid zoom range.
// Zero means "never set" and becomes the default.
func clampZoomLevel(level int) int {
	if level == 0 {
		return defaultZoomLevel
	}
	if level < minZoomLevel {
		slog.Warn("[WARN-SETTINGS] zoom_level below minimum, clamping",
			"configured", level, "min", minZoomLevel)
		return minZoomLevel
	}
	if level > maxZoomLevel {
		slog.Warn("[WARN-SETTINGS] zoom_level above maximum, clamping",
			"configured", level, "max", maxZoomLevel)
		return maxZoomLevel
	}
	return level
}

// atomicWrite writes settings data using temp-file + rename to avoid partial
// writes and retries rename on Windows to tolerate transient file locks.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save settings: mkdir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".settings.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save settings: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-SETTINGS] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-SETTINGS] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save settings: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save settings: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save settings: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save settings: close: %w", err)
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("save settings: rename: %w", err)
	}
	return nil
}

// validateSettingsPath normalizes path and enforces that settings writes stay
// inside the default settings directory when that directory is resolvable.
func validateSettingsPath(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return "", errors.New("settings path required")
	}
	absolutePath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return "", fmt.Errorf("save settings: resolve path: %w", err)
	}

	expectedDir, err := defaultSettingsDirFn()
	if err != nil {
		return "", fmt.Errorf("save settings: resolve settings dir: %w", err)
	}
	absoluteExpectedDir, err := filepath.Abs(expectedDir)
	if err != nil {
		return "", fmt.Errorf("save settings: resolve settings dir: %w", err)
	}
	if !pathWithinDir(absolutePath, absoluteExpectedDir) {
		return "", fmt.Errorf("save settings: path outside settings directory: %q", absolutePath)
	}

	return absolutePath, nil
}

func defaultSettingsDir() (string, error) {
	return filepath.Dir(DefaultPath()), nil
}

// pathWithinDir blocks directory traversal by ensuring path is under dir.
// It also rejects Windows cross-drive escapes because filepath.Rel returns
// an absolute path when roots differ.
func pathWithinDir(path string, dir string) bool {
	relativePath, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if relativePath == "." {
		return true
	}
	if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(relativePath)
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("settings file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
