package hotkeys

import (
	"fmt"
	"strings"
)

// Accelerator is a parsed, platform-neutral key combination.
// Construct only via ParseAccelerator to guarantee invariant consistency.
type Accelerator struct {
	ctrl  bool
	shift bool
	alt   bool
	super bool
	// key is the normalized key token, e.g. "SPACE", "M", "F12".
	key        string
	normalized string
}

// Ctrl reports whether the Control modifier is part of the combination.
func (a Accelerator) Ctrl() bool { return a.ctrl }

// Shift reports whether the Shift modifier is part of the combination.
func (a Accelerator) Shift() bool { return a.shift }

// Alt reports whether the Alt/Option modifier is part of the combination.
func (a Accelerator) Alt() bool { return a.alt }

// Super reports whether the Super/Win/Cmd modifier is part of the combination.
func (a Accelerator) Super() bool { return a.super }

// Key returns the normalized key token.
func (a Accelerator) Key() string { return a.key }

// Normalized returns the canonical human-readable accelerator string.
func (a Accelerator) Normalized() string { return a.normalized }

// IsZero reports whether a is the zero accelerator.
func (a Accelerator) IsZero() bool { return a.key == "" }

var namedKeys = map[string]string{
	"SPACE":  "SPACE",
	"TAB":    "TAB",
	"ENTER":  "ENTER",
	"RETURN": "ENTER",
	"ESC":    "ESC",
	"ESCAPE": "ESC",
	"DELETE": "DELETE",
	"LEFT":   "LEFT",
	"RIGHT":  "RIGHT",
	"UP":     "UP",
	"DOWN":   "DOWN",
}

// isFunctionKeyToken accepts F1 through F12, the range every backend can
// register. Accepting a token here that a backend lacks a key code for would
// persist an accelerator that never fires.
func isFunctionKeyToken(token string) bool {
	if len(token) < 2 || token[0] != 'F' {
		return false
	}
	switch token {
	case "F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10",
		"F11", "F12":
		return true
	}
	return false
}

// ParseAccelerator parses an accelerator like "Ctrl+Shift+Space".
// At least one modifier is required: an unmodified key would shadow normal
// typing in every application on the system.
func ParseAccelerator(spec string) (Accelerator, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Accelerator{}, fmt.Errorf("accelerator is empty")
	}

	parts := strings.Split(raw, "+")
	if len(parts) < 2 {
		return Accelerator{}, fmt.Errorf("accelerator must include modifiers and key: %q", raw)
	}

	var accel Accelerator
	var normalizedMods []string
	appendMod := func(set *bool, name string) {
		if !*set {
			*set = true
			normalizedMods = append(normalizedMods, name)
		}
	}

	for _, token := range parts[:len(parts)-1] {
		switch strings.ToUpper(strings.TrimSpace(token)) {
		case "CTRL", "CONTROL":
			appendMod(&accel.ctrl, "Ctrl")
		case "SHIFT":
			appendMod(&accel.shift, "Shift")
		case "ALT", "OPTION":
			appendMod(&accel.alt, "Alt")
		case "SUPER", "WIN", "CMD", "META":
			appendMod(&accel.super, "Super")
		default:
			return Accelerator{}, fmt.Errorf("unknown modifier %q in accelerator %q", token, raw)
		}
	}
	if len(normalizedMods) == 0 {
		return Accelerator{}, fmt.Errorf("at least one modifier is required: %q", raw)
	}

	keyToken, err := parseKeyToken(parts[len(parts)-1])
	if err != nil {
		return Accelerator{}, fmt.Errorf("accelerator %q: %w", raw, err)
	}
	accel.key = keyToken
	accel.normalized = strings.Join(append(normalizedMods, displayKey(keyToken)), "+")
	return accel, nil
}

func parseKeyToken(raw string) (string, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if token == "" {
		return "", fmt.Errorf("missing key token")
	}
	if isFunctionKeyToken(token) {
		return token, nil
	}
	if named, ok := namedKeys[token]; ok {
		return named, nil
	}
	if len(token) == 1 {
		ch := token[0]
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			return token, nil
		}
	}
	return "", fmt.Errorf("unknown key %q", raw)
}

func displayKey(token string) string {
	switch token {
	case "SPACE":
		return "Space"
	case "ENTER":
		return "Enter"
	case "ESC":
		return "Esc"
	case "DELETE":
		return "Delete"
	case "LEFT":
		return "Left"
	case "RIGHT":
		return "Right"
	case "UP":
		return "Up"
	case "DOWN":
		return "Down"
	case "TAB":
		return "Tab"
	default:
		return token
	}
}
