// Package userutil normalizes OS usernames for embedding in per-user
// resource names: the activation pipe path and the single-instance mutex.
package userutil

import "strings"

// SanitizeUsername reduces a username-like value to [A-Za-z0-9._-]. A run of
// other characters (the backslash in DOMAIN\user, an @ in an email-shaped
// login) collapses to one underscore; an empty value becomes "unknown" so
// callers always get a usable name component.
func SanitizeUsername(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(value))
	pendingGap := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			if pendingGap {
				b.WriteByte('_')
				pendingGap = false
			}
			b.WriteRune(r)
		default:
			pendingGap = true
		}
	}
	if pendingGap {
		b.WriteByte('_')
	}
	return b.String()
}
