package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeDeadline is the maximum time allowed for a single WebSocket write to
// complete. 5 seconds is generous for localhost single-client writes; if the
// hosted page freezes longer than this, the connection is considered dead.
const writeDeadline = 5 * time.Second

// readDeadline is the maximum time the server waits for any read activity
// (including pong responses) before considering the connection dead.
// 90 seconds allows for ~3 missed pings (pingInterval=30s) before timeout.
const readDeadline = 90 * time.Second

// pingInterval is the interval between server-initiated WebSocket pings.
const pingInterval = 30 * time.Second

// maxReadMessageSize limits incoming message size. Bridge payloads are small
// JSON signals; 32 KiB leaves ample headroom for long quick-input text while
// preventing OOM from malformed payloads.
const maxReadMessageSize = 32 * 1024

var wsUpgrader = websocket.Upgrader{
	// CheckOrigin allows all origins because the server binds to 127.0.0.1
	// only. The hosted page's origin is an external site, so an origin
	// check would reject the one client the bridge exists for.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

// Handler processes one inbound frame's payload. Called from the read pump
// goroutine; implementations must not block for long.
type Handler func(payload json.RawMessage)

// HubOptions configures the bridge server.
type HubOptions struct {
	// Addr is the listen address. Use "127.0.0.1:0" for an OS-assigned port.
	// Localhost-only binding is the access control: the page script on this
	// machine is the only intended client.
	Addr string
}

// Hub manages a single WebSocket connection carrying JSON signal frames
// between the host and the script injected into the hosted page.
//
// Single-connection model: the shell hosts exactly one page at a time, and a
// page reload reconnects. New connections replace existing ones.
//
// Lock ordering (never acquire in reverse):
//
//	writeMu -> mu
//
// mu protects the connection handle. writeMu serializes WriteMessage calls
// (gorilla/websocket is not write-concurrency-safe).
//
// Write failure policy: any write failure disconnects the client; the page
// script reconnects on its own.
type Hub struct {
	opts HubOptions

	mu   sync.RWMutex
	conn *websocket.Conn

	writeMu sync.Mutex

	// handlers maps frame type to handler. Registered before Start; read-only
	// afterwards, so the read pump accesses it without locking.
	handlers map[string]Handler

	listener net.Listener
	server   *http.Server
	url      string // "ws://127.0.0.1:<port>/bridge", set after Start

	closeOnce sync.Once
}

// errorMsg is the payload of an error frame sent back to the page script.
type errorMsg struct {
	Message string `json:"message"`
}

// NewHub creates a Hub with the given options. Not started until Start.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{
		opts:     opts,
		handlers: map[string]Handler{},
	}
}

// Handle registers a handler for one frame type. Must be called before Start.
func (h *Hub) Handle(frameType string, fn Handler) {
	if frameType == "" || fn == nil {
		return
	}
	h.handlers[frameType] = fn
}

// Start begins listening on the configured address. The context is used for
// the server's BaseContext; the server itself must be stopped via Stop.
// Must be called exactly once during startup, before concurrent access.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return fmt.Errorf("bridge: already started")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("bridge: listen: %w", err)
	}
	h.listener = ln

	port := ln.Addr().(*net.TCPAddr).Port
	h.url = fmt.Sprintf("ws://127.0.0.1:%d/bridge", port)

	mux := http.NewServeMux()
	mux.HandleFunc("/bridge", h.handleWS)

	h.server = &http.Server{
		Handler: mux,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("[BRIDGE] server error", "error", serveErr)
		}
	}()

	slog.Info("[BRIDGE] server started", "url", h.url)
	return nil
}

// Stop shuts down the server and closes any active connection. Idempotent.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conn := h.conn
		h.conn = nil
		h.mu.Unlock()

		if conn != nil {
			if err := conn.Close(); err != nil {
				slog.Debug("[BRIDGE] connection close during stop", "error", err)
			}
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("bridge: shutdown: %w", err)
			}
		}

		slog.Info("[BRIDGE] server stopped")
	})
	return stopErr
}

// URL returns the WebSocket URL the page script connects to, or "" before
// Start.
func (h *Hub) URL() string {
	return h.url
}

// HasActiveConnection reports whether the page script is currently connected.
func (h *Hub) HasActiveConnection() bool {
	h.mu.RLock()
	active := h.conn != nil
	h.mu.RUnlock()
	return active
}

// Send delivers one typed frame to the connected page script. Returns an
// error when no client is connected or the frame cannot be encoded; write
// failures disconnect the client and are returned.
func (h *Hub) Send(frameType string, payload any) error {
	data, err := EncodeFrame(frameType, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conn := h.conn
	h.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("bridge: no client connected")
	}

	h.writeMu.Lock()
	if !h.setWriteDeadlineOrClose(conn, writeDeadline) {
		h.writeMu.Unlock()
		return fmt.Errorf("bridge: connection unusable")
	}
	writeErr := conn.WriteMessage(websocket.TextMessage, data)
	h.clearWriteDeadline(conn)
	h.writeMu.Unlock()

	if writeErr != nil {
		slog.Warn("[BRIDGE] write failed, closing connection",
			"frameType", frameType, "error", writeErr)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "write error in Send")
		return fmt.Errorf("bridge: send %s: %w", frameType, writeErr)
	}
	return nil
}

// clearIfCurrent clears the hub's connection only if conn is still current.
// Caller must NOT hold h.mu.
func (h *Hub) clearIfCurrent(conn *websocket.Conn) bool {
	h.mu.Lock()
	isCurrent := h.conn == conn
	if isCurrent {
		h.conn = nil
	}
	h.mu.Unlock()
	return isCurrent
}

// closeConn closes a connection. Double-close is expected when several
// goroutines race to tear the same connection down, and logged at Debug.
func (h *Hub) closeConn(conn *websocket.Conn, reason string) {
	if closeErr := conn.Close(); closeErr != nil {
		slog.Debug("[BRIDGE] connection close", "reason", reason, "error", closeErr)
	}
}

// setWriteDeadlineOrClose sets a write deadline. A failure leaves the
// connection in an indeterminate state, so it is closed to prevent
// indefinite blocking.
func (h *Hub) setWriteDeadlineOrClose(conn *websocket.Conn, d time.Duration) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(d)); err != nil {
		slog.Warn("[BRIDGE] SetWriteDeadline failed, closing connection", "error", err)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "SetWriteDeadline failure")
		return false
	}
	return true
}

// clearWriteDeadline resets the deadline after a successful write. Failure
// is non-fatal: the next write sets a fresh deadline.
func (h *Hub) clearWriteDeadline(conn *websocket.Conn) {
	if err := conn.SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("[BRIDGE] clearWriteDeadline failed (non-fatal)", "error", err)
	}
}

// handleWS upgrades HTTP to WebSocket and runs the read pump. Only one
// connection is active at a time; new connections replace old ones so page
// reloads recover cleanly.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[BRIDGE] upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(maxReadMessageSize)

	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		slog.Warn("[BRIDGE] SetReadDeadline failed on new connection", "error", err)
		h.closeConn(conn, "initial SetReadDeadline failure")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	h.mu.Lock()
	oldConn := h.conn
	h.conn = conn
	h.mu.Unlock()

	if oldConn != nil {
		h.closeConn(oldConn, "replaced by new connection")
	}

	slog.Info("[BRIDGE] page script connected", "remoteAddr", conn.RemoteAddr())

	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[BRIDGE] handleWS recovered from panic",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}

		close(pingDone)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "read pump exit")
		slog.Info("[BRIDGE] page script disconnected")
	}()

	for {
		msgType, msg, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsUnexpectedCloseError(readErr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("[BRIDGE] read error", "error", readErr)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		frame, decErr := DecodeFrame(msg)
		if decErr != nil {
			slog.Debug("[BRIDGE] invalid frame from page script", "error", decErr)
			h.sendError(conn, decErr.Error())
			continue
		}
		h.dispatch(conn, frame)
	}
}

// pingLoop sends periodic pings to detect dead connections. One goroutine
// per connection; exits when done closes or a ping fails.
func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[BRIDGE] pingLoop recovered from panic",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			h.clearIfCurrent(conn)
			h.closeConn(conn, "pingLoop panic recovery")
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			h.writeMu.Lock()
			if !h.setWriteDeadlineOrClose(conn, writeDeadline) {
				h.writeMu.Unlock()
				return
			}
			pingErr := conn.WriteMessage(websocket.PingMessage, nil)
			h.clearWriteDeadline(conn)
			h.writeMu.Unlock()

			if pingErr != nil {
				slog.Debug("[BRIDGE] ping failed, connection likely dead", "error", pingErr)
				h.clearIfCurrent(conn)
				h.closeConn(conn, "ping failure")
				return
			}
		}
	}
}

// dispatch routes one inbound frame to its registered handler. Frames from a
// connection that has already been replaced are discarded.
func (h *Hub) dispatch(conn *websocket.Conn, frame Frame) {
	h.mu.RLock()
	current := h.conn == conn
	h.mu.RUnlock()
	if !current {
		slog.Debug("[BRIDGE] frame from stale connection, skipping", "frameType", frame.Type)
		return
	}

	handler := h.handlers[frame.Type]
	if handler == nil {
		slog.Debug("[BRIDGE] no handler for frame type", "frameType", frame.Type)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[BRIDGE] frame handler recovered from panic",
				"frameType", frame.Type,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()
	handler(frame.Payload)
}

// sendError sends an error frame to the page script. Write failures follow
// the usual disconnect policy.
func (h *Hub) sendError(conn *websocket.Conn, message string) {
	data, err := EncodeFrame(TypeError, errorMsg{Message: message})
	if err != nil {
		slog.Debug("[BRIDGE] failed to encode error frame", "error", err)
		return
	}

	h.writeMu.Lock()
	if !h.setWriteDeadlineOrClose(conn, writeDeadline) {
		h.writeMu.Unlock()
		return
	}
	writeErr := conn.WriteMessage(websocket.TextMessage, data)
	h.clearWriteDeadline(conn)
	h.writeMu.Unlock()

	if writeErr != nil {
		slog.Debug("[BRIDGE] failed to send error to page script", "error", writeErr)
		h.clearIfCurrent(conn)
		h.closeConn(conn, "write error in sendError")
	}
}
