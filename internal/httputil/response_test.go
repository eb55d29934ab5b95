package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSONError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "test error")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %s, want application/json", ct)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "test error" {
		t.Errorf("error = %s, want 'test error'", resp["error"])
	}
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(http.ResponseWriter)
		code  int
	}{
		{"method not allowed", MethodNotAllowed, http.StatusMethodNotAllowed},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad") }, http.StatusBadRequest},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "oops") }, http.StatusInternalServerError},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone") }, http.StatusNotFound},
		{"ok", func(w http.ResponseWriter) { WriteJSONOK(w, map[string]int{"n": 1}) }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
		})
	}
}

func TestSetAttachment(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	SetAttachment(rec, "application/json", "sensor-data-2025-03-14T09-30-00.json")

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="sensor-data-2025-03-14T09-30-00.json"` {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			NotFound(w, "no data to download")
			return
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	body, err := Fetch(context.Background(), srv.Client(), srv.URL+"/export")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != `{"ok":true}` {
		t.Errorf("body = %q", data)
	}

	_, err = Fetch(context.Background(), srv.Client(), srv.URL+"/missing")
	if err == nil || !strings.Contains(err.Error(), "no data to download") {
		t.Errorf("Fetch() error = %v, want 404 message", err)
	}

	failing := ClientFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	if _, err := Fetch(context.Background(), failing, "http://example.invalid/"); err == nil {
		t.Error("expected transport error")
	}
}
