package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/tunnel.report/internal/classify"
	"github.com/banshee-data/tunnel.report/internal/export"
	"github.com/banshee-data/tunnel.report/internal/httputil"
	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/sensor"
	"github.com/banshee-data/tunnel.report/internal/units"
	"github.com/banshee-data/tunnel.report/internal/version"
)

// maxBodyBytes caps request bodies; sensor messages are a few hundred bytes.
const maxBodyBytes = 64 << 10

type startRecordingRequest struct {
	StartTime json.RawMessage `json:"startTime"`
}

type startRecordingResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	StartTime json.RawMessage `json:"startTime,omitempty"`
	SessionID string          `json:"sessionId"`
}

type stopRecordingRequest struct {
	EndTime   json.RawMessage `json:"endTime"`
	DataCount json.RawMessage `json:"dataCount"`
}

type stopRecordingResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	EndTime   json.RawMessage `json:"endTime,omitempty"`
	DataCount json.RawMessage `json:"dataCount,omitempty"`
}

type echoError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// handleStartRecording acknowledges a client-side recording start. Nothing is
// stored; the values are echoed back with a fresh session token.
func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req startRecordingRequest
	if err := decodeBody(r, &req); err != nil {
		log.Printf("[API] start-recording: invalid body: %v", err)
		httputil.WriteJSON(w, http.StatusInternalServerError, echoError{Error: "Error starting recording"})
		return
	}
	log.Printf("[API] Recording started at %s", req.StartTime)
	httputil.WriteJSONOK(w, startRecordingResponse{
		Success:   true,
		Message:   "Sensor data recording started",
		StartTime: req.StartTime,
		SessionID: uuid.New().String(),
	})
}

// handleStopRecording acknowledges a client-side recording stop.
func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req stopRecordingRequest
	if err := decodeBody(r, &req); err != nil {
		log.Printf("[API] stop-recording: invalid body: %v", err)
		httputil.WriteJSON(w, http.StatusInternalServerError, echoError{Error: "Error stopping recording"})
		return
	}
	log.Printf("[API] Recording stopped at %s with %s records", req.EndTime, req.DataCount)
	httputil.WriteJSONOK(w, stopRecordingResponse{
		Success:   true,
		Message:   "Sensor data recording stopped",
		EndTime:   req.EndTime,
		DataCount: req.DataCount,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// SessionView is the GET /api/session payload. Assessment figures are in
// Units; preview samples are always m/s².
type SessionView struct {
	Session    recording.Info      `json:"session"`
	Assessment classify.Assessment `json:"assessment"`
	Units      string              `json:"units"`
	Preview    []sensor.Sample     `json:"preview"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	u := s.units
	if q := r.URL.Query().Get("units"); q != "" {
		if !units.IsValid(q) {
			httputil.BadRequest(w, "invalid 'units' parameter, expected "+units.GetValidUnitsString())
			return
		}
		u = q
	}
	httputil.WriteJSONOK(w, SessionView{
		Session:    s.recorder.Info(),
		Assessment: units.ConvertAssessment(s.recorder.Assessment(), u),
		Units:      u,
		Preview:    s.recorder.Recent(recording.DefaultPreviewSize),
	})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	info, err := s.recorder.Start(r.Context())
	if err != nil {
		writeRecordingError(w, err)
		return
	}
	httputil.WriteJSONOK(w, info)
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	info, err := s.recorder.Stop()
	if errors.Is(err, recording.ErrInvalidTransition) {
		writeRecordingError(w, err)
		return
	}
	if err != nil {
		// The session is stopped regardless; report the release failure in
		// the log only.
		log.Printf("[API] session stop: %v", err)
	}
	httputil.WriteJSONOK(w, info)
}

// handleSessionSample ingests one device message posted over HTTP, for clients
// that cannot hold a WebSocket open.
func (s *Server) handleSessionSample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.BadRequest(w, "failed to read body")
		return
	}
	ev, err := sensor.DecodeEvent(body)
	if err != nil {
		log.Printf("[API] session sample: %v", err)
		httputil.BadRequest(w, recording.Message(sensor.ErrEmptyEvent))
		return
	}
	if err := s.recorder.OnSample(ev); err != nil {
		writeRecordingError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]int{"sample_count": s.recorder.SampleCount()})
}

func (s *Server) handleSessionExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	doc, err := s.recorder.Export()
	if err != nil {
		writeRecordingError(w, err)
		return
	}

	filename := export.Filename(s.clock.Now())
	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "json":
		httputil.SetAttachment(w, "application/json; charset=utf-8", filename)
		if err := doc.Encode(w); err != nil {
			log.Printf("[API] export: %v", err)
		}
	case "csv":
		httputil.SetAttachment(w, "text/csv; charset=utf-8", strings.TrimSuffix(filename, ".json")+".csv")
		if err := export.WriteCSV(w, doc); err != nil {
			log.Printf("[API] export csv: %v", err)
		}
	default:
		httputil.BadRequest(w, "unsupported format "+format)
	}
}

// Health is the GET /api/health payload.
type Health struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	GitSHA    string          `json:"git_sha"`
	State     recording.State `json:"state"`
	UptimeSec float64         `json:"uptime_sec"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, Health{
		Status:    "ok",
		Version:   version.Version,
		GitSHA:    version.GitSHA,
		State:     s.recorder.State(),
		UptimeSec: s.clock.Since(s.started).Seconds(),
	})
}

// errorStatus maps recorder errors onto HTTP status codes. Anything not
// recognised came from the sensor environment.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, recording.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, recording.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, recording.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, sensor.ErrEmptyEvent), errors.Is(err, sensor.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeRecordingError(w http.ResponseWriter, err error) {
	httputil.WriteJSONError(w, errorStatus(err), recording.Message(err))
}
