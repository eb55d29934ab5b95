// Package testutil provides shared test helpers and sensor fixtures.
package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/tunnel.report/internal/sensor"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// DecodeJSON decodes the recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// Float returns a pointer to v, for building raw device events.
func Float(v float64) *float64 { return &v }

// Motion returns a motion event with the given linear acceleration and every
// other field absent.
func Motion(x, y, z float64) sensor.Event {
	return sensor.MotionEventOf(&sensor.MotionEvent{
		Acceleration: &sensor.RawVector3{X: Float(x), Y: Float(y), Z: Float(z)},
	})
}

// Orientation returns an orientation event with the given angles.
func Orientation(alpha, beta, gamma float64) sensor.Event {
	return sensor.OrientationEventOf(&sensor.OrientationEvent{
		Alpha: Float(alpha), Beta: Float(beta), Gamma: Float(gamma),
	})
}

// StillEvents returns n near-zero motion events.
func StillEvents(n int) []sensor.Event {
	out := make([]sensor.Event, n)
	for i := range out {
		out[i] = Motion(0.01, 0, -0.01)
	}
	return out
}

// TunnelEvents returns n events alternating strong motion with orientation
// changes in the proportion that classifies as in-tunnel.
func TunnelEvents(n int) []sensor.Event {
	out := make([]sensor.Event, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = Orientation(float64(i), 1, 2)
		} else {
			out[i] = Motion(1.5, -1.2, 0.9)
		}
	}
	return out
}
