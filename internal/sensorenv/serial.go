package sensorenv

import (
	"context"
	"strings"

	"github.com/banshee-data/tunnel.report/internal/monitoring"
	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/sensor"
)

// LineSource is a stream of newline-delimited device messages, satisfied by
// serialmux.SerialMux.
type LineSource interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// Serial is a SensorEnvironment for a device streaming JSON lines over a
// serial link. Such devices have no permission gate.
type Serial struct {
	src LineSource
	d   *dispatcher
}

// NewSerial returns a Serial environment reading from src. Call Run to start
// forwarding lines.
func NewSerial(src LineSource) *Serial {
	return &Serial{src: src, d: newDispatcher()}
}

// Run forwards decoded lines to subscribers until ctx is done or the source
// closes the line channel.
func (s *Serial) Run(ctx context.Context) error {
	id, lines := s.src.Subscribe()
	defer s.src.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			ev, err := sensor.DecodeEvent([]byte(line))
			if err != nil {
				monitoring.Debugf("[sensorenv] ignoring serial line %q: %v", line, err)
				continue
			}
			s.d.dispatch(ev)
		}
	}
}

func (s *Serial) RequestMotionPermission(ctx context.Context) (recording.Permission, error) {
	if err := ctx.Err(); err != nil {
		return recording.PermissionDenied, err
	}
	return recording.PermissionNotRequired, nil
}

func (s *Serial) SubscribeMotion(h func(*sensor.MotionEvent)) (recording.Subscription, error) {
	return s.d.subscribeMotion(h), nil
}

func (s *Serial) SubscribeOrientation(h func(*sensor.OrientationEvent)) (recording.Subscription, error) {
	return s.d.subscribeOrientation(h), nil
}

// Subscriptions returns the number of attached handlers.
func (s *Serial) Subscriptions() int { return s.d.count() }
