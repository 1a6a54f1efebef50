package tray

import (
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
)

// Function variables for testability; systray's API is package-global.
var (
	setIconFn    = systray.SetIcon
	setTitleFn   = systray.SetTitle
	setTooltipFn = systray.SetTooltip
	quitFn       = systray.Quit
)

// Callbacks holds the menu item handlers. Nil handlers are safe no-ops.
type Callbacks struct {
	OnRestore    func()
	OnSettings   func()
	OnQuickInput func()
	OnQuit       func()
}

// Options configures the tray facade.
type Options struct {
	Title   string
	Tooltip string
	// Icon is the base tray icon; BadgeIcon is shown while the badge is
	// visible. Both are platform-appropriate image bytes.
	Icon      []byte
	BadgeIcon []byte
	// SupportsBadge comes from the platform policy. When false,
	// SetBadgeVisible still tracks state but never swaps the icon.
	SupportsBadge bool
	// SettingsLabel is the platform-worded settings menu entry
	// ("Settings…" vs "Preferences…").
	SettingsLabel string
}

// Tray is a thin facade over the system tray: tooltip, attention badge, and
// the restore / quick-input / settings / quit menu. Collaborators talk to
// this facade, never to the tray library directly.
type Tray struct {
	opts      Options
	callbacks Callbacks

	mu           sync.Mutex
	badgeVisible bool
	tooltip      string

	restoreBtn    *systray.MenuItem
	quickInputBtn *systray.MenuItem
	settingsBtn   *systray.MenuItem
	quitBtn       *systray.MenuItem

	done chan struct{}
}

// New creates the tray facade. Run must be called on the main goroutine.
func New(opts Options, callbacks Callbacks) *Tray {
	if opts.SettingsLabel == "" {
		opts.SettingsLabel = "Settings…"
	}
	return &Tray{
		opts:      opts,
		callbacks: callbacks,
		tooltip:   opts.Tooltip,
		done:      make(chan struct{}),
	}
}

// Run starts the tray event loop. Blocking; onReady fires once the tray is
// set up.
func (t *Tray) Run(onReady func()) {
	systray.Run(func() {
		t.onReady()
		if onReady != nil {
			onReady()
		}
	}, t.onExit)
}

func (t *Tray) onReady() {
	if len(t.opts.Icon) > 0 {
		setIconFn(t.opts.Icon)
	}
	setTitleFn(t.opts.Title)
	setTooltipFn(t.opts.Tooltip)

	t.restoreBtn = systray.AddMenuItem("Show Window", "Restore the main window")
	t.quickInputBtn = systray.AddMenuItem("Quick Input", "Open the quick input overlay")
	systray.AddSeparator()
	t.settingsBtn = systray.AddMenuItem(t.opts.SettingsLabel, "Open settings")
	systray.AddSeparator()
	t.quitBtn = systray.AddMenuItem("Quit", "Quit the application")

	go t.handleMenuEvents()
	slog.Info("[TRAY] ready", "supportsBadge", t.opts.SupportsBadge)
}

func (t *Tray) handleMenuEvents() {
	for {
		select {
		case <-t.done:
			return
		case <-t.restoreBtn.ClickedCh:
			invoke(t.callbacks.OnRestore)
		case <-t.quickInputBtn.ClickedCh:
			invoke(t.callbacks.OnQuickInput)
		case <-t.settingsBtn.ClickedCh:
			invoke(t.callbacks.OnSettings)
		case <-t.quitBtn.ClickedCh:
			invoke(t.callbacks.OnQuit)
			quitFn()
			return
		}
	}
}

func invoke(fn func()) {
	if fn != nil {
		fn()
	}
}

// SetTooltip updates the hover text.
func (t *Tray) SetTooltip(text string) {
	t.mu.Lock()
	t.tooltip = text
	t.mu.Unlock()
	setTooltipFn(text)
}

// Tooltip returns the current hover text.
func (t *Tray) Tooltip() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tooltip
}

// SetBadgeVisible shows or hides the attention badge. On platforms without
// badge support the state is tracked but the icon never changes, so callers
// need no platform checks of their own.
func (t *Tray) SetBadgeVisible(visible bool) {
	t.mu.Lock()
	changed := t.badgeVisible != visible
	t.badgeVisible = visible
	t.mu.Unlock()
	if !changed {
		return
	}

	if !t.opts.SupportsBadge {
		slog.Debug("[TRAY] badge state tracked without icon swap", "visible", visible)
		return
	}
	icon := t.opts.Icon
	if visible && len(t.opts.BadgeIcon) > 0 {
		icon = t.opts.BadgeIcon
	}
	if len(icon) > 0 {
		setIconFn(icon)
	}
	slog.Debug("[TRAY] badge visibility changed", "visible", visible)
}

// BadgeVisible reports whether the attention badge is currently requested.
func (t *Tray) BadgeVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.badgeVisible
}

// Quit tears the tray down.
func (t *Tray) Quit() {
	quitFn()
}

func (t *Tray) onExit() {
	close(t.done)
	slog.Info("[TRAY] exited")
}
