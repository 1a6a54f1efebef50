// Package hotkeys owns the shell's global hotkey actions and their OS
// registration lifecycle. The registration mechanism is chosen by the
// platform strategy: a native OS facility, a desktop-bus portal fallback,
// or nothing at all on sessions that support neither.
package hotkeys

// ActionID identifies one of the fixed logical hotkey actions.
type ActionID string

const (
	// ActionQuickInput toggles the floating quick-input overlay.
	ActionQuickInput ActionID = "quickInput"
	// ActionToggleMain shows or hides the main window.
	ActionToggleMain ActionID = "toggleMain"
	// ActionAlwaysOnTop toggles the main window always-on-top state.
	ActionAlwaysOnTop ActionID = "alwaysOnTop"
	// ActionNextSurface cycles the active content surface in the main window.
	ActionNextSurface ActionID = "nextSurface"
	// ActionOpenSettings opens the settings window.
	ActionOpenSettings ActionID = "openSettings"
)

// ActionIDs lists all actions in stable display order.
// INVARIANT: immutable after init.
var ActionIDs = []ActionID{
	ActionQuickInput,
	ActionToggleMain,
	ActionAlwaysOnTop,
	ActionNextSurface,
	ActionOpenSettings,
}

// defaultAccelerators maps each action to its factory accelerator.
// INVARIANT: immutable after init; every ActionID has an entry.
var defaultAccelerators = map[ActionID]string{
	ActionQuickInput:   "Ctrl+Shift+Space",
	ActionToggleMain:   "Ctrl+Shift+M",
	ActionAlwaysOnTop:  "Ctrl+Shift+T",
	ActionNextSurface:  "Ctrl+Shift+Right",
	ActionOpenSettings: "Ctrl+Shift+S",
}

// Action is the externally visible state of one hotkey action.
type Action struct {
	ID                 ActionID `json:"id"`
	Enabled            bool     `json:"enabled"`
	Accelerator        string   `json:"accelerator"`
	DefaultAccelerator string   `json:"defaultAccelerator"`
}

// DefaultAccelerator returns the factory accelerator for id, or "" for an
// unknown action.
func DefaultAccelerator(id ActionID) string {
	return defaultAccelerators[id]
}

// ValidActionID reports whether id names one of the fixed actions.
func ValidActionID(id ActionID) bool {
	_, ok := defaultAccelerators[id]
	return ok
}
