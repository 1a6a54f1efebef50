package main

import (
	"embed"
	"errors"
	"log/slog"

	"webdock/internal/ipc"
	"webdock/internal/singleinstance"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

//go:embed assets
var trayAssets embed.FS

func main() {
	// Single-instance check BEFORE any Wails/WebView initialization.
	// Two simultaneous instances would race on the settings file and the
	// activation endpoint.
	instanceLock, err := singleinstance.TryLock(singleinstance.DefaultLockName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		slog.Info("[SINGLE] another instance is already running, signaling activation")
		if _, sendErr := ipc.Send("", ipc.Request{Command: ipc.CommandActivate}); sendErr != nil {
			slog.Warn("[SINGLE] failed to signal existing instance", "error", sendErr)
		}
		return
	}
	if err != nil {
		// Lock acquisition failed for an unexpected reason. Continue startup
		// rather than refusing to launch at all.
		slog.Warn("[SINGLE] instance lock failed, proceeding without single-instance guard", "error", err)
	}
	if instanceLock != nil {
		defer func() {
			if releaseErr := instanceLock.Release(); releaseErr != nil {
				slog.Warn("[SINGLE] instance lock release failed", "error", releaseErr)
			}
		}()
	}

	app := NewApp()

	err = wails.Run(&options.App{
		Title:     "webdock",
		Width:     1280,
		Height:    860,
		MinWidth:  860,
		MinHeight: 540,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 10, G: 16, B: 22, A: 1},
		OnStartup:        app.startup,
		OnBeforeClose:    app.beforeClose,
		OnShutdown:       app.shutdown,
		Bind: []any{
			app,
		},
	})

	if err != nil {
		slog.Error("[SINGLE] wails run failed", "error", err)
	}
}
