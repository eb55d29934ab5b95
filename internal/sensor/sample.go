// Package sensor defines the device event and normalized sample types shared by
// the recorder, classifier and exporter.
package sensor

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the two sample variants.
type Kind string

const (
	KindMotion      Kind = "motion"
	KindOrientation Kind = "orientation"
)

// Vector3 is a linear acceleration in m/s².
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation holds the three device rotation axes in degrees (or deg/s for rates).
type Rotation struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// MotionSample is a normalized accelerometer/gyroscope reading.
type MotionSample struct {
	Timestamp                    string   `json:"timestamp"`
	Acceleration                 Vector3  `json:"acceleration"`
	AccelerationIncludingGravity Vector3  `json:"accelerationIncludingGravity"`
	RotationRate                 Rotation `json:"rotationRate"`
	Interval                     float64  `json:"interval"`
}

// OrientationSample is a normalized device orientation reading.
type OrientationSample struct {
	Timestamp string  `json:"timestamp"`
	Alpha     float64 `json:"alpha"`
	Beta      float64 `json:"beta"`
	Gamma     float64 `json:"gamma"`
	Absolute  bool    `json:"absolute"`
}

// Sample is either a motion or an orientation reading. Exactly one of Motion or
// Orientation is set, matching Kind.
type Sample struct {
	Kind        Kind
	Motion      *MotionSample
	Orientation *OrientationSample
}

// NewMotion wraps m as a Sample.
func NewMotion(m MotionSample) Sample {
	return Sample{Kind: KindMotion, Motion: &m}
}

// NewOrientation wraps o as a Sample.
func NewOrientation(o OrientationSample) Sample {
	return Sample{Kind: KindOrientation, Orientation: &o}
}

// Timestamp returns the sample's timestamp string.
func (s Sample) Timestamp() string {
	switch {
	case s.Motion != nil:
		return s.Motion.Timestamp
	case s.Orientation != nil:
		return s.Orientation.Timestamp
	}
	return ""
}

// IsMotion reports whether the sample carries motion data.
func (s Sample) IsMotion() bool { return s.Kind == KindMotion && s.Motion != nil }

// IsOrientation reports whether the sample carries orientation data.
func (s Sample) IsOrientation() bool { return s.Kind == KindOrientation && s.Orientation != nil }

// The JSON form is flat, with "type" carrying the kind:
//
//	{"timestamp":"...","type":"motion","acceleration":{...},...}
type motionJSON struct {
	Type Kind `json:"type"`
	MotionSample
}

type orientationJSON struct {
	Type Kind `json:"type"`
	OrientationSample
}

// MarshalJSON implements json.Marshaler.
func (s Sample) MarshalJSON() ([]byte, error) {
	switch {
	case s.IsMotion():
		return json.Marshal(motionJSON{Type: KindMotion, MotionSample: *s.Motion})
	case s.IsOrientation():
		return json.Marshal(orientationJSON{Type: KindOrientation, OrientationSample: *s.Orientation})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Type {
	case KindMotion:
		var m motionJSON
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*s = NewMotion(m.MotionSample)
	case KindOrientation:
		var o orientationJSON
		if err := json.Unmarshal(data, &o); err != nil {
			return err
		}
		*s = NewOrientation(o.OrientationSample)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, head.Type)
	}
	return nil
}
