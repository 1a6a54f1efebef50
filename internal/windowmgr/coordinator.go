package windowmgr

import (
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"sync"
)

const (
	minZoomLevel     = 50
	maxZoomLevel     = 200
	defaultZoomLevel = 100
)

// Window is the narrow handle the coordinator manages per role.
// Production handles wrap webview runtime operations; closing the native
// window must invoke the onClosed callback the factory was given.
type Window interface {
	Show()
	Hide()
	Focus()
	Close()
	Navigate(target string)
	SetAlwaysOnTop(on bool)
}

// CreateOptions carries per-role creation parameters.
type CreateOptions struct {
	// URL is the initial navigation target. For a second Settings create it
	// is the section to renavigate the existing window to.
	URL string
}

// Factory creates a window handle for a role. onClosed must be called
// exactly once when the native window is destroyed, from any goroutine.
type Factory func(role Role, opts CreateOptions, onClosed func()) (Window, error)

// Notifier receives window state change notifications. Callbacks run with
// no coordinator lock held.
type Notifier interface {
	AlwaysOnTopChanged(on bool)
	ZoomLevelChanged(pct int)
}

// Policy captures the per-platform window behavior decided at startup.
type Policy struct {
	// HideMainOnClose prevents the main window's close and hides it to the
	// tray instead, unless the app is quitting.
	HideMainOnClose bool
	// FirstPartyHosts are the hosts whose navigation closes the auth popup.
	FirstPartyHosts []string
}

// Coordinator owns at most one window handle per role. It is the single
// writer of the role→handle map; everyone else reads through Get. All state
// is guarded by mu; handle operations and notifier callbacks run unlocked.
type Coordinator struct {
	factory  Factory
	policy   Policy
	notifier Notifier

	mu           sync.Mutex
	windows      map[Role]Window
	quitting     bool
	hiddenToTray bool
	alwaysOnTop  bool
	zoomLevel    int
}

// NewCoordinator creates a window coordinator with the given factory.
func NewCoordinator(factory Factory, policy Policy, notifier Notifier) *Coordinator {
	return &Coordinator{
		factory:   factory,
		policy:    policy,
		notifier:  notifier,
		windows:   map[Role]Window{},
		zoomLevel: defaultZoomLevel,
	}
}

// Create returns the window for role, creating it when absent.
//
// Per-role second-create behavior:
//   - Main, QuickInput: the existing handle is shown and focused, then reused.
//   - Settings: the existing handle is focused and renavigated to opts.URL.
//   - AuthPopup: the previous instance is closed first, then a fresh one is
//     created. Auth flows must never land in a stale popup.
func (c *Coordinator) Create(role Role, opts CreateOptions) (Window, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("unknown window role %q", role)
	}

	c.mu.Lock()
	existing := c.windows[role]
	if existing != nil {
		switch role {
		case RoleAuthPopup:
			delete(c.windows, role)
			c.mu.Unlock()
			slog.Info("[WINDOW] recreating auth popup, closing previous instance")
			existing.Close()
			c.mu.Lock()
			// Close runs unlocked, so another Create may have filled the
			// slot already. Reuse that handle instead of orphaning it.
			if raced := c.windows[role]; raced != nil {
				c.mu.Unlock()
				return raced, nil
			}
		case RoleSettings:
			c.mu.Unlock()
			existing.Focus()
			if opts.URL != "" {
				existing.Navigate(opts.URL)
			}
			return existing, nil
		default:
			c.mu.Unlock()
			existing.Show()
			existing.Focus()
			return existing, nil
		}
	}

	window, err := c.factory(role, opts, func() { c.handleClosed(role) })
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("create %s window: %w", role, err)
	}
	c.windows[role] = window
	alwaysOnTop := c.alwaysOnTop
	c.mu.Unlock()

	slog.Info("[WINDOW] created", "role", role)
	if role == RoleMain && alwaysOnTop {
		window.SetAlwaysOnTop(true)
	}
	return window, nil
}

// Get returns the live handle for role, or nil when none exists. Callers
// must nil-check: handles are cleared the moment the native window closes.
func (c *Coordinator) Get(role Role) Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windows[role]
}

// handleClosed clears the handle for role after the native window closed.
func (c *Coordinator) handleClosed(role Role) {
	c.mu.Lock()
	_, had := c.windows[role]
	delete(c.windows, role)
	c.mu.Unlock()
	if had {
		slog.Debug("[WINDOW] native window closed, handle cleared", "role", role)
	}
}

// SetQuitting marks the app as shutting down, which lets the main window's
// close proceed instead of hiding to the tray.
func (c *Coordinator) SetQuitting(quitting bool) {
	c.mu.Lock()
	c.quitting = quitting
	c.mu.Unlock()
}

// Quitting reports whether shutdown is in progress.
func (c *Coordinator) Quitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quitting
}

// HandleMainClose decides the main window's close. It returns true when the
// close should proceed and false when it was converted into hide-to-tray.
// Either way Settings and AuthPopup are force-closed: they are meaningless
// without a visible main window.
func (c *Coordinator) HandleMainClose() bool {
	c.mu.Lock()
	quitting := c.quitting
	main := c.windows[RoleMain]
	c.mu.Unlock()

	c.closeSecondary()

	if quitting || !c.policy.HideMainOnClose {
		return true
	}
	if main != nil {
		main.Hide()
	}
	c.mu.Lock()
	c.hiddenToTray = true
	c.mu.Unlock()
	slog.Info("[WINDOW] main close intercepted, hidden to tray")
	return false
}

// closeSecondary force-closes the Settings and AuthPopup windows.
func (c *Coordinator) closeSecondary() {
	c.mu.Lock()
	settings := c.windows[RoleSettings]
	auth := c.windows[RoleAuthPopup]
	delete(c.windows, RoleSettings)
	delete(c.windows, RoleAuthPopup)
	c.mu.Unlock()

	if settings != nil {
		settings.Close()
	}
	if auth != nil {
		auth.Close()
	}
}

// HideToTray hides every window without destroying the main handle.
func (c *Coordinator) HideToTray() {
	c.closeSecondary()

	c.mu.Lock()
	main := c.windows[RoleMain]
	quickInput := c.windows[RoleQuickInput]
	c.hiddenToTray = true
	c.mu.Unlock()

	if main != nil {
		main.Hide()
	}
	if quickInput != nil {
		quickInput.Hide()
	}
	slog.Info("[WINDOW] hidden to tray")
}

// RestoreFromTray shows and focuses the main window.
func (c *Coordinator) RestoreFromTray() {
	c.mu.Lock()
	main := c.windows[RoleMain]
	c.hiddenToTray = false
	c.mu.Unlock()

	if main == nil {
		slog.Warn("[WINDOW] restore requested but no main window exists")
		return
	}
	main.Show()
	main.Focus()
	slog.Info("[WINDOW] restored from tray")
}

// HiddenToTray reports whether the app is currently hidden to the tray.
func (c *Coordinator) HiddenToTray() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hiddenToTray
}

// NoteAuthNavigation inspects an auth popup navigation. Landing on a
// first-party host means the external auth flow completed, so the popup
// closes itself.
func (c *Coordinator) NoteAuthNavigation(rawURL string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		slog.Debug("[WINDOW] unparseable auth navigation", "url", rawURL, "error", err)
		return
	}
	if !c.isFirstPartyHost(parsed.Hostname()) {
		return
	}

	c.mu.Lock()
	auth := c.windows[RoleAuthPopup]
	delete(c.windows, RoleAuthPopup)
	c.mu.Unlock()

	if auth == nil {
		return
	}
	slog.Info("[WINDOW] auth flow returned to first-party host, closing popup",
		"host", parsed.Hostname())
	auth.Close()
}

func (c *Coordinator) isFirstPartyHost(host string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}
	for _, candidate := range c.policy.FirstPartyHosts {
		candidate = strings.ToLower(candidate)
		if host == candidate || strings.HasSuffix(host, "."+candidate) {
			return true
		}
	}
	return false
}

// SetAlwaysOnTop applies the always-on-top flag to the main window and
// notifies on change.
func (c *Coordinator) SetAlwaysOnTop(on bool) {
	c.mu.Lock()
	changed := c.alwaysOnTop != on
	c.alwaysOnTop = on
	main := c.windows[RoleMain]
	c.mu.Unlock()

	if main != nil {
		main.SetAlwaysOnTop(on)
	}
	if changed && c.notifier != nil {
		c.notifier.AlwaysOnTopChanged(on)
	}
}

// AlwaysOnTop reports the current always-on-top state.
func (c *Coordinator) AlwaysOnTop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alwaysOnTop
}

// SetZoomLevel applies a zoom percentage and returns the sanitized value.
// Input arrives from external sources (settings file, window scripts), so
// NaN and out-of-range values are sanitized rather than rejected.
func (c *Coordinator) SetZoomLevel(pct float64) int {
	level := SanitizeZoomLevel(pct)

	c.mu.Lock()
	changed := c.zoomLevel != level
	c.zoomLevel = level
	c.mu.Unlock()

	if changed && c.notifier != nil {
		c.notifier.ZoomLevelChanged(level)
	}
	return level
}

// ZoomLevel returns the current zoom percentage.
func (c *Coordinator) ZoomLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoomLevel
}

// SanitizeZoomLevel maps arbitrary numeric input to a valid zoom percentage:
// NaN falls back to the default, out-of-range values clamp to the nearest
// bound.
func SanitizeZoomLevel(pct float64) int {
	if math.IsNaN(pct) {
		return defaultZoomLevel
	}
	if math.IsInf(pct, 1) {
		return maxZoomLevel
	}
	if math.IsInf(pct, -1) {
		return minZoomLevel
	}
	level := int(math.Round(pct))
	if level < minZoomLevel {
		return minZoomLevel
	}
	if level > maxZoomLevel {
		return maxZoomLevel
	}
	return level
}

// CloseAll closes every window. Used during shutdown after SetQuitting(true).
func (c *Coordinator) CloseAll() {
	c.mu.Lock()
	handles := make([]Window, 0, len(c.windows))
	for _, w := range c.windows {
		handles = append(handles, w)
	}
	c.windows = map[Role]Window{}
	c.mu.Unlock()

	for _, w := range handles {
		w.Close()
	}
}
