//go:build windows

package hotkeys

import "golang.design/x/hotkey"

func nativeModifiers(a Accelerator) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if a.Ctrl() {
		mods = append(mods, hotkey.ModCtrl)
	}
	if a.Shift() {
		mods = append(mods, hotkey.ModShift)
	}
	if a.Alt() {
		mods = append(mods, hotkey.ModAlt)
	}
	if a.Super() {
		mods = append(mods, hotkey.ModWin)
	}
	return mods
}
