//go:build darwin

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
		mods = append(mods, hotkey.ModOption)
	}
	if a.Super() {
		mods = append(mods, hotkey.ModCmd)
	}
	return mods
}
