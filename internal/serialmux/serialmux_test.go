package serialmux

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"
)

// pipePort is a SerialPorter whose read side is fed by the test.
type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
	closed   bool
}

func newPipePort() *pipePort {
	r, w := io.Pipe()
	return &pipePort{r: r, w: w}
}

func (p *pipePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *pipePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.w.Close()
	return p.r.Close()
}

func (p *pipePort) feed(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if _, err := io.WriteString(p.w, l+"\n"); err != nil {
			t.Fatalf("feed: %v", err)
		}
	}
}

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return line
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for line")
	}
	return ""
}

func TestSerialMux_SubscribeUnique(t *testing.T) {
	mux := NewSerialMux(newPipePort())
	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()

	if id1 == "" || id2 == "" {
		t.Fatal("Subscribe returned empty ID")
	}
	if id1 == id2 {
		t.Error("Subscription IDs should be unique")
	}
	if ch1 == nil || ch2 == nil {
		t.Error("Subscribe returned nil channel")
	}

	mux.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Error("Unsubscribe should close the channel")
	}
	mux.Unsubscribe(id1) // second call is a no-op
}

func TestSerialMux_MonitorFansOutLines(t *testing.T) {
	port := newPipePort()
	mux := NewSerialMux(port)
	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.feed(t, `{"type":"motion"}`, `{"type":"orientation"}`)
	for _, ch := range []chan string{a, b} {
		if got := recv(t, ch); got != `{"type":"motion"}` {
			t.Errorf("first line = %q", got)
		}
		if got := recv(t, ch); got != `{"type":"orientation"}` {
			t.Errorf("second line = %q", got)
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Monitor() = %v, want context.Canceled", err)
	}
}

func TestSerialMux_MonitorEndsAtEOF(t *testing.T) {
	port := newPipePort()
	mux := NewSerialMux(port)
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	port.feed(t, "one")
	port.w.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Monitor() = %v, want nil at EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Monitor did not return at EOF")
	}
}

func TestSerialMux_SendCommand(t *testing.T) {
	port := newPipePort()
	mux := NewSerialMux(port)

	if err := mux.SendCommand("rate 50"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if err := mux.SendCommand("stream on\n"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if got, want := port.written.String(), "rate 50\nstream on\n"; got != want {
		t.Errorf("written = %q, want %q", got, want)
	}

	port.writeErr = errors.New("unplugged")
	if err := mux.SendCommand("x"); err == nil {
		t.Error("expected write error")
	}
}

func TestSerialMux_CloseClosesSubscribers(t *testing.T) {
	port := newPipePort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("Close should close subscriber channels")
	}
	if !port.closed {
		t.Error("Close should close the port")
	}
}

func TestAttachAdminRoutes_Command(t *testing.T) {
	port := newPipePort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"ok", http.MethodPost, "command=ping", http.StatusOK},
		{"missing", http.MethodPost, "command=", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/debug/serial-command", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.RemoteAddr = "127.0.0.1:1234"
			rec := httptest.NewRecorder()
			httpMux.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
	if !strings.Contains(port.written.String(), "ping\n") {
		t.Errorf("command not written, got %q", port.written.String())
	}
}

func TestServeSSE(t *testing.T) {
	c := make(chan string, 2)
	c <- "a"
	c <- "b"
	close(c)

	rec := httptest.NewRecorder()
	ServeSSE(rec, httptest.NewRequest(http.MethodGet, "/", nil), c)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got, want := rec.Body.String(), ": ping\n\ndata: a\n\ndata: b\n\n"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestPortOptions_Normalize(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}

	got, err = PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.Parity != "E" || got.StopBits != 2 || got.DataBits != 7 {
		t.Errorf("Normalize() = %+v", got)
	}

	for _, bad := range []PortOptions{{DataBits: 9}, {StopBits: 3}, {Parity: "mark"}} {
		if _, err := bad.Normalize(); err == nil {
			t.Errorf("Normalize(%+v) expected error", bad)
		}
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{StopBits: 2, Parity: "O"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.BaudRate != DefaultBaudRate || mode.StopBits != serial.TwoStopBits || mode.Parity != serial.OddParity {
		t.Errorf("SerialMode() = %+v", mode)
	}

	mode, err = PortOptions{}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.StopBits != serial.OneStopBit || mode.Parity != serial.NoParity {
		t.Errorf("SerialMode() defaults = %+v", mode)
	}

	if _, err := (PortOptions{DataBits: 4}).SerialMode(); err == nil {
		t.Error("expected error for invalid data bits")
	}
}

func TestNewRealSerialMux_InvalidPath(t *testing.T) {
	if _, err := NewRealSerialMux("/dev/does-not-exist-tunnel", PortOptions{}); err == nil {
		t.Error("expected error opening a missing device")
	}
	if _, err := NewRealSerialMux("/dev/null", PortOptions{Parity: "?"}); err == nil {
		t.Error("expected error for invalid options")
	}
}
