package sensor

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }
func b(v bool) *bool       { return &v }

var stamp = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func TestNormalize_MotionMissingFields(t *testing.T) {
	ev := MotionEventOf(&MotionEvent{
		Acceleration: &RawVector3{X: f(0.5), Y: nil, Z: f(math.NaN())},
		RotationRate: &RawRotation{Alpha: f(math.Inf(1)), Beta: f(2)},
	})

	got := Normalize(ev, stamp)
	want := NewMotion(MotionSample{
		Timestamp:    "2025-03-14T09:26:53.589Z",
		Acceleration: Vector3{X: 0.5},
		RotationRate: Rotation{Beta: 2},
	})
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Normalize() mismatch (-got +want):\n%s", diff)
	}
}

func TestNormalize_Orientation(t *testing.T) {
	tests := []struct {
		name string
		ev   *OrientationEvent
		want OrientationSample
	}{
		{
			name: "complete",
			ev:   &OrientationEvent{Alpha: f(10), Beta: f(-20), Gamma: f(30), Absolute: b(true)},
			want: OrientationSample{Alpha: 10, Beta: -20, Gamma: 30, Absolute: true},
		},
		{
			name: "absolute missing",
			ev:   &OrientationEvent{Alpha: f(1)},
			want: OrientationSample{Alpha: 1},
		},
		{
			name: "all missing",
			ev:   &OrientationEvent{},
			want: OrientationSample{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(OrientationEventOf(tt.ev), stamp)
			require.True(t, got.IsOrientation())
			tt.want.Timestamp = FormatTimestamp(stamp)
			assert.Equal(t, tt.want, *got.Orientation)
		})
	}
}

func TestEvent_Validate(t *testing.T) {
	assert.NoError(t, MotionEventOf(&MotionEvent{}).Validate())
	assert.NoError(t, OrientationEventOf(&OrientationEvent{}).Validate())
	assert.ErrorIs(t, MotionEventOf(nil).Validate(), ErrEmptyEvent)
	assert.ErrorIs(t, OrientationEventOf(nil).Validate(), ErrEmptyEvent)
	assert.ErrorIs(t, Event{Kind: "gps"}.Validate(), ErrUnknownKind)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"1000", time.UnixMilli(1000).UTC()},
		{"2025-03-14T09:26:53.589Z", stamp},
		{"2025-03-14T09:26:53Z", stamp.Truncate(time.Second)},
		{"2025-03-14T10:26:53.589+01:00", stamp},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(tt.want), "ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestSample_JSONRoundTrip(t *testing.T) {
	samples := []Sample{
		NewMotion(MotionSample{
			Timestamp:                    "2025-03-14T09:26:53.589Z",
			Acceleration:                 Vector3{X: 0.1234567890123, Y: -1e-9, Z: 9.81},
			AccelerationIncludingGravity: Vector3{Z: 9.80665},
			RotationRate:                 Rotation{Alpha: 1, Beta: 2, Gamma: 3},
			Interval:                     16,
		}),
		NewOrientation(OrientationSample{Timestamp: "1000", Alpha: 359.9, Beta: -90, Gamma: 45, Absolute: true}),
	}

	data, err := json.Marshal(samples)
	require.NoError(t, err)

	var got []Sample
	require.NoError(t, json.Unmarshal(data, &got))
	if diff := cmp.Diff(got, samples); diff != "" {
		t.Errorf("round trip mismatch (-got +want):\n%s", diff)
	}
}

func TestSample_JSONShape(t *testing.T) {
	data, err := json.Marshal(NewOrientation(OrientationSample{Timestamp: "t", Alpha: 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"orientation","timestamp":"t","alpha":1,"beta":0,"gamma":0,"absolute":false}`, string(data))

	var s Sample
	err = json.Unmarshal([]byte(`{"type":"light"}`), &s)
	assert.True(t, errors.Is(err, ErrUnknownKind))

	_, err = json.Marshal(Sample{Kind: KindMotion})
	assert.Error(t, err)
}

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type":"motion","acceleration":{"x":1,"y":null},"interval":16}`))
	require.NoError(t, err)
	require.Equal(t, MessageMotion, msg.Type)
	require.NoError(t, msg.Event.Validate())
	assert.Equal(t, 1.0, *msg.Event.Motion.Acceleration.X)
	assert.Nil(t, msg.Event.Motion.Acceleration.Y)
	assert.Nil(t, msg.Event.Motion.RotationRate)

	msg, err = DecodeMessage([]byte(`{"type":"permission","result":"denied"}`))
	require.NoError(t, err)
	assert.Equal(t, "denied", msg.Result)

	_, err = DecodeMessage([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`{"type":"permission","result":"granted"}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	ev, err := DecodeEvent([]byte(`{"type":"orientation","alpha":12.5}`))
	require.NoError(t, err)
	assert.Equal(t, KindOrientation, ev.Kind)
}
