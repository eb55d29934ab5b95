package api

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/timeutil"
	"github.com/banshee-data/tunnel.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the recorder over HTTP.
type Server struct {
	recorder *recording.Recorder
	device   http.Handler
	clock    timeutil.Clock
	units    string
	started  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithDeviceHandler mounts h at /ws/device, where handheld devices connect to
// stream sensor events.
func WithDeviceHandler(h http.Handler) Option {
	return func(s *Server) { s.device = h }
}

// WithUnits sets the default acceleration units for session views.
func WithUnits(u string) Option {
	return func(s *Server) { s.units = u }
}

// WithClock sets the clock used for download filenames and uptime.
func WithClock(c timeutil.Clock) Option {
	return func(s *Server) { s.clock = c }
}

func NewServer(rec *recording.Recorder, opts ...Option) *Server {
	s := &Server{
		recorder: rec,
		clock:    timeutil.RealClock{},
		units:    units.MPS2,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.clock.Now()
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack passes through to the underlying writer so device WebSocket upgrades
// work behind the middleware.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/start-recording", s.handleStartRecording)
	mux.HandleFunc("/api/stop-recording", s.handleStopRecording)
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/api/session/start", s.handleSessionStart)
	mux.HandleFunc("/api/session/stop", s.handleSessionStop)
	mux.HandleFunc("/api/session/sample", s.handleSessionSample)
	mux.HandleFunc("/api/session/export", s.handleSessionExport)
	mux.HandleFunc("/api/health", s.handleHealth)
	if s.device != nil {
		mux.Handle("/ws/device", s.device)
	}
	return mux
}
