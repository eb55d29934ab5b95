package sensorenv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/tunnel.report/internal/monitoring"
	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/sensor"
)

var (
	// ErrNoDevice is returned when no handheld is connected.
	ErrNoDevice = errors.New("no sensor device connected")
	// ErrDeviceDisconnected is returned to permission requests that were
	// outstanding when the device went away.
	ErrDeviceDisconnected = errors.New("sensor device disconnected")
)

type permissionReply struct {
	perm recording.Permission
	err  error
}

type deviceConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *deviceConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// WebSocket is a SensorEnvironment fed by a handheld browser connected to its
// HTTP handler. Only one device is served at a time; a new connection
// replaces the previous one.
type WebSocket struct {
	d        *dispatcher
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conn    *deviceConn
	pending map[string]chan permissionReply
}

// NewWebSocket returns a WebSocket environment with no device attached.
// Browsers may connect from the listed origins; with none listed only
// same-origin pages are accepted, and "*" accepts any origin.
func NewWebSocket(allowedOrigins ...string) *WebSocket {
	return &WebSocket{
		d:        newDispatcher(),
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		pending:  make(map[string]chan permissionReply),
	}
}

// originChecker returns nil, which selects the upgrader's same-origin check,
// when no origins are configured.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
				return true
			}
		}
		monitoring.Logf("[sensorenv] rejecting device connection from origin %q", origin)
		return false
	}
}

// Connected reports whether a device is attached.
func (h *WebSocket) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

// ServeHTTP upgrades the request and reads device messages until the
// connection closes.
func (h *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("[sensorenv] websocket upgrade error: %v", err)
		return
	}
	conn := &deviceConn{ws: ws}

	h.mu.Lock()
	prev := h.conn
	h.conn = conn
	if prev != nil {
		// Requests were sent to the old device; it will never answer them.
		h.failPendingLocked(ErrDeviceDisconnected)
	}
	h.mu.Unlock()
	if prev != nil {
		monitoring.Logf("[sensorenv] replacing connected device")
		prev.ws.Close()
	}
	monitoring.Logf("[sensorenv] device connected from %s", r.RemoteAddr)

	h.readLoop(conn)

	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
		h.failPendingLocked(ErrDeviceDisconnected)
	}
	h.mu.Unlock()
	ws.Close()
}

func (h *WebSocket) readLoop(conn *deviceConn) {
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				monitoring.Logf("[sensorenv] device read error: %v", err)
			}
			return
		}
		msg, err := sensor.DecodeMessage(data)
		if err != nil {
			monitoring.Debugf("[sensorenv] ignoring device message: %v", err)
			continue
		}
		switch msg.Type {
		case sensor.MessagePermission:
			h.resolvePermission(recording.ParsePermission(msg.Result))
		case sensor.MessageMotion, sensor.MessageOrientation:
			h.d.dispatch(msg.Event)
		}
	}
}

// RequestMotionPermission asks the connected device for sensor access and
// waits for its answer.
func (h *WebSocket) RequestMotionPermission(ctx context.Context) (recording.Permission, error) {
	h.mu.Lock()
	conn := h.conn
	if conn == nil {
		h.mu.Unlock()
		return recording.PermissionDenied, ErrNoDevice
	}
	id := randomID()
	reply := make(chan permissionReply, 1)
	h.pending[id] = reply
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	if err := conn.writeJSON(map[string]string{"type": string(sensor.MessagePermissionRequest)}); err != nil {
		return recording.PermissionDenied, fmt.Errorf("sending permission request: %w", err)
	}

	select {
	case r := <-reply:
		return r.perm, r.err
	case <-ctx.Done():
		return recording.PermissionDenied, ctx.Err()
	}
}

// resolvePermission answers every outstanding request; the device shows one
// prompt regardless of how many were asked for.
func (h *WebSocket) resolvePermission(p recording.Permission) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.pending {
		ch <- permissionReply{perm: p}
		delete(h.pending, id)
	}
}

func (h *WebSocket) failPendingLocked(err error) {
	for id, ch := range h.pending {
		ch <- permissionReply{perm: recording.PermissionDenied, err: err}
		delete(h.pending, id)
	}
}

func (h *WebSocket) SubscribeMotion(fn func(*sensor.MotionEvent)) (recording.Subscription, error) {
	return h.d.subscribeMotion(fn), nil
}

func (h *WebSocket) SubscribeOrientation(fn func(*sensor.OrientationEvent)) (recording.Subscription, error) {
	return h.d.subscribeOrientation(fn), nil
}

// Subscriptions returns the number of attached handlers.
func (h *WebSocket) Subscriptions() int { return h.d.count() }

// Close disconnects the current device.
func (h *WebSocket) Close() error {
	h.mu.Lock()
	conn := h.conn
	h.conn = nil
	h.failPendingLocked(ErrDeviceDisconnected)
	h.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.ws.Close()
}
