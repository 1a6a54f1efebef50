package hotkeys

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	portalBusName        = "org.freedesktop.portal.Desktop"
	portalObjectPath     = "/org/freedesktop/portal/desktop"
	globalShortcutsIface = "org.freedesktop.portal.GlobalShortcuts"
	portalRequestIface   = "org.freedesktop.portal.Request"
	portalSessionIface   = "org.freedesktop.portal.Session"

	// portalCallTimeout bounds the wait for a portal request/response round
	// trip. Portal backends answer bind requests promptly; a stuck desktop
	// portal should degrade to an inert binding, not hang startup.
	portalCallTimeout = 15 * time.Second

	// portalResponseSuccess is the Response signal code for a granted request.
	portalResponseSuccess = uint32(0)
)

// portalResponse is one org.freedesktop.portal.Request.Response delivery.
type portalResponse struct {
	code    uint32
	results map[string]dbus.Variant
}

// PortalBackend registers shortcuts through the desktop-bus GlobalShortcuts
// portal. Each Rebind closes the previous portal session and issues one
// session-scoped bind request for the whole set; activations arrive as bus
// signals and are dispatched by shortcut id.
type PortalBackend struct {
	conn *dbus.Conn

	mu       sync.Mutex
	session  dbus.ObjectPath
	handlers map[string]func()
	pending  map[dbus.ObjectPath]chan portalResponse

	signals   chan *dbus.Signal
	done      chan struct{}
	closeOnce sync.Once
	tokenSeq  atomic.Uint64
}

// NewPortalBackend connects to the session bus and starts the signal
// dispatch loop. Returns an error when the bus itself is unreachable;
// the caller treats that as a Disabled plan.
func NewPortalBackend() (*PortalBackend, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("portal backend: session bus: %w", err)
	}

	b := &PortalBackend{
		conn:     conn,
		handlers: map[string]func(){},
		pending:  map[dbus.ObjectPath]chan portalResponse{},
		signals:  make(chan *dbus.Signal, 16),
		done:     make(chan struct{}),
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(globalShortcutsIface),
		dbus.WithMatchMember("Activated"),
	); err != nil {
		return nil, fmt.Errorf("portal backend: subscribe activations: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(portalRequestIface),
		dbus.WithMatchMember("Response"),
	); err != nil {
		return nil, fmt.Errorf("portal backend: subscribe responses: %w", err)
	}

	conn.Signal(b.signals)
	go b.dispatchLoop()
	return b, nil
}

// Rebind replaces the bound shortcut set with one bind request on a fresh
// portal session. On failure the previous session (and its bindings) is kept.
func (b *PortalBackend) Rebind(bindings []Binding) error {
	session, err := b.createSession()
	if err != nil {
		return err
	}

	if len(bindings) > 0 {
		if err := b.bindShortcuts(session, bindings); err != nil {
			b.closeSession(session)
			return err
		}
	}

	handlers := make(map[string]func(), len(bindings))
	for _, binding := range bindings {
		handlers[string(binding.Action)] = binding.OnTrigger
	}

	b.mu.Lock()
	previous := b.session
	b.session = session
	b.handlers = handlers
	b.mu.Unlock()

	if previous != "" {
		b.closeSession(previous)
	}
	return nil
}

// Close tears down the portal session and stops signal dispatch.
func (b *PortalBackend) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		session := b.session
		b.session = ""
		b.handlers = map[string]func(){}
		b.mu.Unlock()
		if session != "" {
			b.closeSession(session)
		}
		b.conn.RemoveSignal(b.signals)
	})
	return nil
}

func (b *PortalBackend) dispatchLoop() {
	for {
		select {
		case <-b.done:
			return
		case sig, ok := <-b.signals:
			if !ok {
				return
			}
			switch sig.Name {
			case portalRequestIface + ".Response":
				b.deliverResponse(sig)
			case globalShortcutsIface + ".Activated":
				b.dispatchActivation(sig)
			}
		}
	}
}

func (b *PortalBackend) deliverResponse(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		slog.Debug("[HOTKEY] portal response with short body", "path", sig.Path)
		return
	}
	code, _ := sig.Body[0].(uint32)
	results, _ := sig.Body[1].(map[string]dbus.Variant)

	b.mu.Lock()
	waiter := b.pending[sig.Path]
	delete(b.pending, sig.Path)
	b.mu.Unlock()

	if waiter == nil {
		slog.Debug("[HOTKEY] portal response with no waiter", "path", sig.Path)
		return
	}
	waiter <- portalResponse{code: code, results: results}
}

// dispatchActivation routes an Activated signal to the handler registered for
// its shortcut id. Signals for a superseded session are dropped.
func (b *PortalBackend) dispatchActivation(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	sessionHandle, _ := sig.Body[0].(dbus.ObjectPath)
	shortcutID, _ := sig.Body[1].(string)

	b.mu.Lock()
	current := b.session
	handler := b.handlers[shortcutID]
	b.mu.Unlock()

	if sessionHandle != current {
		slog.Debug("[HOTKEY] activation for stale portal session dropped",
			"shortcut", shortcutID)
		return
	}
	if handler == nil {
		slog.Debug("[HOTKEY] activation for unknown shortcut dropped",
			"shortcut", shortcutID)
		return
	}
	handler()
}

// createSession performs the CreateSession request/response round trip and
// returns the new session handle.
func (b *PortalBackend) createSession() (dbus.ObjectPath, error) {
	token := b.nextToken()
	requestPath := b.expectedRequestPath(token)
	waiter := b.registerWaiter(requestPath)

	obj := b.conn.Object(portalBusName, dbus.ObjectPath(portalObjectPath))
	call := obj.Call(globalShortcutsIface+".CreateSession", 0, map[string]dbus.Variant{
		"handle_token":         dbus.MakeVariant(token),
		"session_handle_token": dbus.MakeVariant(token),
	})
	if call.Err != nil {
		b.unregisterWaiter(requestPath)
		return "", fmt.Errorf("portal backend: CreateSession: %w", call.Err)
	}

	// The portal may return a request path differing from the token-derived
	// guess (older portal versions); re-key the waiter in that case.
	var actualPath dbus.ObjectPath
	if err := call.Store(&actualPath); err == nil && actualPath != requestPath {
		b.rekeyWaiter(requestPath, actualPath)
		requestPath = actualPath
	}

	resp, err := b.awaitResponse(requestPath, waiter)
	if err != nil {
		return "", fmt.Errorf("portal backend: CreateSession: %w", err)
	}
	handleVariant, ok := resp.results["session_handle"]
	if !ok {
		return "", fmt.Errorf("portal backend: CreateSession response missing session_handle")
	}
	switch v := handleVariant.Value().(type) {
	case dbus.ObjectPath:
		return v, nil
	case string:
		return dbus.ObjectPath(v), nil
	default:
		return "", fmt.Errorf("portal backend: unexpected session_handle type %T", v)
	}
}

// bindShortcuts issues the single session-scoped bind request.
func (b *PortalBackend) bindShortcuts(session dbus.ObjectPath, bindings []Binding) error {
	type portalShortcut struct {
		ID   string
		Meta map[string]dbus.Variant
	}
	shortcuts := make([]portalShortcut, 0, len(bindings))
	for _, binding := range bindings {
		shortcuts = append(shortcuts, portalShortcut{
			ID: string(binding.Action),
			Meta: map[string]dbus.Variant{
				"description":       dbus.MakeVariant(string(binding.Action)),
				"preferred_trigger": dbus.MakeVariant(portalTrigger(binding.Accel)),
			},
		})
	}

	token := b.nextToken()
	requestPath := b.expectedRequestPath(token)
	waiter := b.registerWaiter(requestPath)

	obj := b.conn.Object(portalBusName, dbus.ObjectPath(portalObjectPath))
	call := obj.Call(globalShortcutsIface+".BindShortcuts", 0,
		session,
		shortcuts,
		"", // parent_window: no native parent for a background bind
		map[string]dbus.Variant{"handle_token": dbus.MakeVariant(token)},
	)
	if call.Err != nil {
		b.unregisterWaiter(requestPath)
		return fmt.Errorf("portal backend: BindShortcuts: %w", call.Err)
	}

	var actualPath dbus.ObjectPath
	if err := call.Store(&actualPath); err == nil && actualPath != requestPath {
		b.rekeyWaiter(requestPath, actualPath)
		requestPath = actualPath
	}

	if _, err := b.awaitResponse(requestPath, waiter); err != nil {
		return fmt.Errorf("portal backend: BindShortcuts: %w", err)
	}
	return nil
}

func (b *PortalBackend) closeSession(session dbus.ObjectPath) {
	call := b.conn.Object(portalBusName, session).Call(portalSessionIface+".Close", 0)
	if call.Err != nil {
		slog.Debug("[HOTKEY] portal session close failed", "session", session, "error", call.Err)
	}
}

func (b *PortalBackend) registerWaiter(path dbus.ObjectPath) chan portalResponse {
	waiter := make(chan portalResponse, 1)
	b.mu.Lock()
	b.pending[path] = waiter
	b.mu.Unlock()
	return waiter
}

func (b *PortalBackend) unregisterWaiter(path dbus.ObjectPath) {
	b.mu.Lock()
	delete(b.pending, path)
	b.mu.Unlock()
}

func (b *PortalBackend) rekeyWaiter(from, to dbus.ObjectPath) {
	b.mu.Lock()
	if waiter, ok := b.pending[from]; ok {
		delete(b.pending, from)
		b.pending[to] = waiter
	}
	b.mu.Unlock()
}

func (b *PortalBackend) awaitResponse(path dbus.ObjectPath, waiter chan portalResponse) (portalResponse, error) {
	timer := time.NewTimer(portalCallTimeout)
	defer timer.Stop()

	select {
	case resp := <-waiter:
		if resp.code != portalResponseSuccess {
			return resp, fmt.Errorf("portal request denied (code=%d)", resp.code)
		}
		return resp, nil
	case <-timer.C:
		b.unregisterWaiter(path)
		return portalResponse{}, fmt.Errorf("portal request timed out after %s", portalCallTimeout)
	case <-b.done:
		b.unregisterWaiter(path)
		return portalResponse{}, fmt.Errorf("portal backend closed")
	}
}

// expectedRequestPath derives the request object path the portal will use for
// a given handle token, per the portal request conventions.
func (b *PortalBackend) expectedRequestPath(token string) dbus.ObjectPath {
	sender := strings.TrimPrefix(b.conn.Names()[0], ":")
	sender = strings.ReplaceAll(sender, ".", "_")
	return dbus.ObjectPath("/org/freedesktop/portal/desktop/request/" + sender + "/" + token)
}

func (b *PortalBackend) nextToken() string {
	return fmt.Sprintf("webdock_%d", b.tokenSeq.Add(1))
}

// portalTrigger renders an accelerator in the shortcut syntax the portal
// expects, e.g. "CTRL+SHIFT+t".
func portalTrigger(a Accelerator) string {
	var parts []string
	if a.Ctrl() {
		parts = append(parts, "CTRL")
	}
	if a.Shift() {
		parts = append(parts, "SHIFT")
	}
	if a.Alt() {
		parts = append(parts, "ALT")
	}
	if a.Super() {
		parts = append(parts, "LOGO")
	}
	parts = append(parts, strings.ToLower(a.Key()))
	return strings.Join(parts, "+")
}
