package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"webdock/internal/bridge"
	"webdock/internal/history"
	"webdock/internal/hotkeys"
	"webdock/internal/inject"
	"webdock/internal/ipc"
	"webdock/internal/platform"
	"webdock/internal/settings"
	"webdock/internal/tray"
	"webdock/internal/windowmgr"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Function seams over Wails runtime and component constructors. Tests swap
// these and restore via t.Cleanup.
var (
	runtimeEventsEmitFn           = runtime.EventsEmit
	runtimeWindowShowFn           = runtime.WindowShow
	runtimeWindowHideFn           = runtime.WindowHide
	runtimeWindowUnminimiseFn     = runtime.WindowUnminimise
	runtimeWindowIsMinimisedFn    = runtime.WindowIsMinimised
	runtimeWindowSetAlwaysOnTopFn = runtime.WindowSetAlwaysOnTop
	runtimeQuitFn                 = runtime.Quit

	platformSelectFn   = platform.Select
	newSettingsStoreFn = settings.NewStore
	openHistoryFn      = history.Open
	newIPCServerFn     = func(endpoint string, handler ipc.Handler) ipcServer {
		return ipc.NewServer(endpoint, handler)
	}
	newNativeBackendFn = func() hotkeys.Backend { return hotkeys.NewNativeBackend() }
	newPortalBackendFn = func() (hotkeys.Backend, error) { return hotkeys.NewPortalBackend() }
)

// ipcServer is the slice of *ipc.Server the lifecycle needs; tests substitute
// a fake.
type ipcServer interface {
	Start() error
	Stop() error
	Endpoint() string
}

const shutdownWaitTimeout = 10 * time.Second

func (a *App) addStartupWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	a.startupWarnMu.Lock()
	a.startupWarnings = append(a.startupWarnings, trimmed)
	a.startupWarnMu.Unlock()
}

func (a *App) consumeStartupWarnings() string {
	a.startupWarnMu.Lock()
	defer a.startupWarnMu.Unlock()
	if len(a.startupWarnings) == 0 {
		return ""
	}
	message := strings.Join(a.startupWarnings, "\n")
	a.startupWarnings = nil
	return message
}

func (a *App) flushStartupWarnings() {
	if message := a.consumeStartupWarnings(); message != "" {
		a.emitRuntimeEvent("app:startup-warning", message)
	}
}

func (a *App) startup(ctx context.Context) {
	setConsoleUTF8()

	a.setRuntimeContext(ctx)
	a.setMainVisible(true)

	a.strategy = platformSelectFn(platform.DBusPortalProber{})
	plan := a.strategy.HotkeyPlan()
	slog.Info("[PLATFORM] strategy selected",
		"os", a.strategy.OS(),
		"hotkeyMode", plan.Mode,
		"badge", a.strategy.SupportsBadge(),
	)

	store, err := newSettingsStoreFn(settings.DefaultPath())
	if err != nil {
		// Settings load/persist failures are non-fatal; the store runs on
		// sanitized defaults and surfaces a warning to the user.
		a.addStartupWarning("Failed to load settings at startup. Running with defaults. Error: " + err.Error())
		slog.Warn("[WARN-SETTINGS] settings store degraded at startup", "error", err)
	}
	a.settings = store

	historyPath := filepath.Join(filepath.Dir(store.Path()), "history.db")
	if hist, histErr := openHistoryFn(historyPath, 0); histErr != nil {
		a.addStartupWarning("Quick-input history unavailable. Error: " + histErr.Error())
		slog.Warn("[HISTORY] open failed, continuing without history", "path", historyPath, "error", histErr)
	} else {
		a.history = hist
	}

	a.windows = windowmgr.NewCoordinator(a.createWindow, windowmgr.Policy{
		HideMainOnClose: a.strategy.HideMainWindowOnClose(),
		FirstPartyHosts: store.FirstPartyHosts(),
	}, appNotifier{a})
	if _, winErr := a.windows.Create(windowmgr.RoleMain, windowmgr.CreateOptions{URL: store.AppURL()}); winErr != nil {
		slog.Error("[WINDOW] main window create failed", "error", winErr)
	}
	a.windows.SetAlwaysOnTop(store.AlwaysOnTop())
	a.windows.SetZoomLevel(float64(store.ZoomLevel()))

	hub := bridge.NewHub(bridge.HubOptions{})
	a.registerBridgeHandlers(hub)
	if hubErr := hub.Start(ctx); hubErr != nil {
		a.addStartupWarning("Failed to start the page bridge. Quick input and surface cycling are unavailable. Error: " + hubErr.Error())
		slog.Error("[BRIDGE] start failed", "error", hubErr)
	} else {
		a.hub = hub
		slog.Info("[BRIDGE] listening", "url", hub.URL())
	}

	a.injector = inject.NewProtocol(appInjectHost{a}, appInjectExecutor{a})

	a.configureGlobalHotkeys(plan)

	server := newIPCServerFn("", ipc.HandlerFunc(a.handleActivation))
	if srvErr := server.Start(); srvErr != nil {
		a.addStartupWarning("Failed to start the activation endpoint. A second launch cannot reach this instance. Error: " + srvErr.Error())
		slog.Warn("[ipc] activation server failed to start", "error", srvErr)
	} else {
		a.server = server
		slog.Info("[ipc] activation server listening", "endpoint", server.Endpoint())
	}

	a.startTray()

	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel
	a.injector.StartSweeper(bgCtx, &a.bgWG)
	store.Subscribe(a.applySettingsChange)
	if watchErr := store.Watch(bgCtx, &a.bgWG); watchErr != nil {
		slog.Warn("[WARN-SETTINGS] settings watcher unavailable, external edits need a restart", "error", watchErr)
	}

	a.flushStartupWarnings()
}

// configureGlobalHotkeys picks the backend the platform plan calls for and
// starts the coordinator. Disabled is a legitimate terminal state: the
// coordinator still exists so the settings UI can show the diagnostic plan.
func (a *App) configureGlobalHotkeys(plan platform.Plan) {
	var backend hotkeys.Backend
	switch plan.Mode {
	case platform.ModeNative:
		backend = newNativeBackendFn()
	case platform.ModeBusFallback:
		portal, err := newPortalBackendFn()
		if err != nil {
			slog.Warn("[HOTKEY] portal backend unavailable, hotkeys disabled", "error", err)
			plan.Mode = platform.ModeDisabled
		} else {
			backend = portal
		}
	case platform.ModeDisabled:
		slog.Info("[HOTKEY] no global shortcut mechanism on this session",
			"desktop", plan.Bus.DesktopEnvironment)
	}

	a.hotkeys = hotkeys.NewCoordinator(plan, backend, a.settings, a.dispatchHotkeyAction)
	a.hotkeys.Start()
}

func (a *App) startTray() {
	icon := loadTrayAsset(a.strategy.TrayIconName())
	if icon == nil {
		slog.Warn("[TRAY] tray icon asset missing, running without tray", "name", a.strategy.TrayIconName())
		return
	}
	t := tray.New(tray.Options{
		Title:         "webdock",
		Tooltip:       "webdock",
		Icon:          icon,
		BadgeIcon:     loadTrayAsset(a.strategy.BadgeIconName()),
		SupportsBadge: a.strategy.SupportsBadge(),
		SettingsLabel: a.strategy.SettingsMenuLabel(),
	}, tray.Callbacks{
		OnRestore:    a.bringMainToFront,
		OnSettings:   func() { a.OpenSettingsWindow("") },
		OnQuickInput: func() { a.OpenQuickInput() },
		OnQuit:       a.requestQuit,
	})
	a.trayIcon = t
	go t.Run(nil)
}

func loadTrayAsset(name string) []byte {
	if name == "" {
		return nil
	}
	data, err := trayAssets.ReadFile("assets/" + name)
	if err != nil {
		slog.Debug("[TRAY] asset not embedded", "name", name, "error", err)
		return nil
	}
	return data
}

// handleActivation serves the per-user activation endpoint: a second launch
// or an external script asking this instance to come forward.
func (a *App) handleActivation(req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandActivate:
		a.bringMainToFront()
		return ipc.Response{OK: true}
	case ipc.CommandQuickInput:
		a.bringMainToFront()
		a.OpenQuickInput()
		return ipc.Response{OK: true}
	default:
		return ipc.Response{OK: false, Error: "unknown command: " + req.Command}
	}
}

// requestQuit is the tray Quit path: mark quitting so the main close is not
// converted to hide-to-tray, then ask the runtime to close.
func (a *App) requestQuit() {
	if a.windows != nil {
		a.windows.SetQuitting(true)
	}
	ctx := a.runtimeContext()
	if ctx == nil {
		return
	}
	runtimeQuitFn(ctx)
}

// beforeClose intercepts the main window close button. Returning true keeps
// the window alive (hidden to tray); returning false lets the close proceed.
func (a *App) beforeClose(_ context.Context) bool {
	if a.windows == nil {
		return false
	}
	if !a.windows.HandleMainClose() {
		a.setMainVisible(false)
		return true
	}
	// Platforms like darwin keep the process alive when the last window
	// closes; the tray remains the way back in.
	if !a.windows.Quitting() && a.strategy != nil && !a.strategy.QuitOnLastWindowClosed() {
		if main := a.windows.Get(windowmgr.RoleMain); main != nil {
			main.Hide()
		}
		a.setMainVisible(false)
		return true
	}
	return false
}

func (a *App) shutdown(_ context.Context) {
	a.shuttingDown.Store(true)
	if a.windows != nil {
		a.windows.SetQuitting(true)
	}

	if a.bgCancel != nil {
		a.bgCancel()
		a.bgCancel = nil
	}
	if !waitWithTimeout(a.bgWG.Wait, shutdownWaitTimeout) {
		slog.Warn("[WINDOW] timed out waiting for background workers during shutdown")
	}
	// Executions blocked on a result frame must be failed before draining,
	// or Drain waits on frames the page script will never send.
	a.failExecWaiters(errors.New("shutting down"))
	if a.injector != nil {
		a.injector.Drain()
	}

	if a.hotkeys != nil {
		a.hotkeys.Stop()
	}
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			slog.Warn("[ipc] activation server stop failed", "error", err)
		}
	}
	if a.hub != nil {
		if err := a.hub.Stop(); err != nil {
			slog.Warn("[BRIDGE] stop failed", "error", err)
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Warn("[HISTORY] close failed", "error", err)
		}
	}
	if a.trayIcon != nil {
		a.trayIcon.Quit()
	}
	if a.windows != nil {
		a.windows.CloseAll()
	}
}

func waitWithTimeout(waitFn func(), timeout time.Duration) bool {
	// Best effort timeout guard for shutdown paths. The waiting goroutine may
	// outlive timeout when waitFn blocks indefinitely, but this function is only
	// used during process shutdown where eventual completion is expected.
	done := make(chan struct{})
	go func() {
		waitFn()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
