package sensor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the millisecond-precision UTC form used for sample
// timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts an RFC 3339 timestamp (fractional seconds optional)
// or an integer count of milliseconds since the Unix epoch.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// Normalize converts a validated event into a Sample stamped with at. Missing
// and non-finite values become 0, a missing absolute flag becomes false.
// Callers must run Event.Validate first; an empty event yields a zero sample
// of the event's kind.
func Normalize(ev Event, at time.Time) Sample {
	ts := FormatTimestamp(at)
	if ev.Kind == KindOrientation {
		return NewOrientation(normalizeOrientation(ev.Orientation, ts))
	}
	return NewMotion(normalizeMotion(ev.Motion, ts))
}

func normalizeMotion(ev *MotionEvent, ts string) MotionSample {
	m := MotionSample{Timestamp: ts}
	if ev == nil {
		return m
	}
	m.Acceleration = vector(ev.Acceleration)
	m.AccelerationIncludingGravity = vector(ev.AccelerationIncludingGravity)
	if r := ev.RotationRate; r != nil {
		m.RotationRate = Rotation{Alpha: finite(r.Alpha), Beta: finite(r.Beta), Gamma: finite(r.Gamma)}
	}
	m.Interval = finite(ev.Interval)
	return m
}

func normalizeOrientation(ev *OrientationEvent, ts string) OrientationSample {
	o := OrientationSample{Timestamp: ts}
	if ev == nil {
		return o
	}
	o.Alpha = finite(ev.Alpha)
	o.Beta = finite(ev.Beta)
	o.Gamma = finite(ev.Gamma)
	if ev.Absolute != nil {
		o.Absolute = *ev.Absolute
	}
	return o
}

func vector(v *RawVector3) Vector3 {
	if v == nil {
		return Vector3{}
	}
	return Vector3{X: finite(v.X), Y: finite(v.Y), Z: finite(v.Z)}
}

func finite(p *float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0
	}
	return *p
}
