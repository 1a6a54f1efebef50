//go:build windows

package main

import "syscall"

// utf8CodePage is the Windows identifier for CP_UTF8.
const utf8CodePage = 65001

// setConsoleUTF8 switches an attached console to UTF-8 so log output with
// non-ASCII text renders instead of mojibake. Failures are ignored: a GUI
// launch has no console to configure.
func setConsoleUTF8() {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	for _, proc := range []string{"SetConsoleOutputCP", "SetConsoleCP"} {
		kernel32.NewProc(proc).Call(utf8CodePage)
	}
}
