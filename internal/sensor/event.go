package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyEvent is returned for an event whose payload is entirely absent.
	ErrEmptyEvent = errors.New("sensor event has no payload")
	// ErrUnknownKind is returned for events or samples of an unrecognised type.
	ErrUnknownKind = errors.New("unknown sensor event type")
)

// RawVector3 is an acceleration as reported by the device. Any axis may be
// missing.
type RawVector3 struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// RawRotation is a rotation rate as reported by the device.
type RawRotation struct {
	Alpha *float64 `json:"alpha"`
	Beta  *float64 `json:"beta"`
	Gamma *float64 `json:"gamma"`
}

// MotionEvent is a device motion callback payload.
type MotionEvent struct {
	Acceleration                 *RawVector3  `json:"acceleration"`
	AccelerationIncludingGravity *RawVector3  `json:"accelerationIncludingGravity"`
	RotationRate                 *RawRotation `json:"rotationRate"`
	Interval                     *float64     `json:"interval"`
}

// OrientationEvent is a device orientation callback payload.
type OrientationEvent struct {
	Alpha    *float64 `json:"alpha"`
	Beta     *float64 `json:"beta"`
	Gamma    *float64 `json:"gamma"`
	Absolute *bool    `json:"absolute"`
}

// Event is one inbound reading before normalization.
type Event struct {
	Kind        Kind
	Motion      *MotionEvent
	Orientation *OrientationEvent
}

// MotionEventOf wraps ev as an Event.
func MotionEventOf(ev *MotionEvent) Event {
	return Event{Kind: KindMotion, Motion: ev}
}

// OrientationEventOf wraps ev as an Event.
func OrientationEventOf(ev *OrientationEvent) Event {
	return Event{Kind: KindOrientation, Orientation: ev}
}

// Validate rejects events that cannot be normalized. Partially populated
// payloads are valid; only a missing payload is not.
func (e Event) Validate() error {
	switch e.Kind {
	case KindMotion:
		if e.Motion == nil {
			return fmt.Errorf("%w: motion", ErrEmptyEvent)
		}
	case KindOrientation:
		if e.Orientation == nil {
			return fmt.Errorf("%w: orientation", ErrEmptyEvent)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	return nil
}

// MessageType identifies a device wire message.
type MessageType string

const (
	MessageMotion            MessageType = "motion"
	MessageOrientation       MessageType = "orientation"
	MessagePermission        MessageType = "permission"
	MessagePermissionRequest MessageType = "permission_request"
)

// Message is a decoded device wire message. Event is set for motion and
// orientation messages; Result for permission replies.
type Message struct {
	Type   MessageType
	Event  Event
	Result string
}

// DecodeMessage decodes one newline-free JSON message from a device.
func DecodeMessage(data []byte) (Message, error) {
	var head struct {
		Type   MessageType `json:"type"`
		Result string      `json:"result"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Message{}, fmt.Errorf("decoding device message: %w", err)
	}
	msg := Message{Type: head.Type}
	switch head.Type {
	case MessageMotion:
		ev := new(MotionEvent)
		if err := json.Unmarshal(data, ev); err != nil {
			return Message{}, fmt.Errorf("decoding motion event: %w", err)
		}
		msg.Event = MotionEventOf(ev)
	case MessageOrientation:
		ev := new(OrientationEvent)
		if err := json.Unmarshal(data, ev); err != nil {
			return Message{}, fmt.Errorf("decoding orientation event: %w", err)
		}
		msg.Event = OrientationEventOf(ev)
	case MessagePermission:
		msg.Result = head.Result
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, head.Type)
	}
	return msg, nil
}

// DecodeEvent decodes a motion or orientation wire message.
func DecodeEvent(data []byte) (Event, error) {
	msg, err := DecodeMessage(data)
	if err != nil {
		return Event{}, err
	}
	if msg.Type != MessageMotion && msg.Type != MessageOrientation {
		return Event{}, fmt.Errorf("%w: %q is not a sensor reading", ErrUnknownKind, msg.Type)
	}
	return msg.Event, nil
}
