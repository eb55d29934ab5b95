// Package sensorenv provides the device transports the recorder can drive:
// an in-process synthetic source, a browser connected over WebSocket and a
// serial-attached device.
package sensorenv

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/sensor"
)

// randomID generates a random subscription ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// dispatcher fans decoded events out to the handlers currently subscribed.
type dispatcher struct {
	mu          sync.Mutex
	motion      map[string]func(*sensor.MotionEvent)
	orientation map[string]func(*sensor.OrientationEvent)
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		motion:      make(map[string]func(*sensor.MotionEvent)),
		orientation: make(map[string]func(*sensor.OrientationEvent)),
	}
}

func (d *dispatcher) subscribeMotion(h func(*sensor.MotionEvent)) recording.Subscription {
	id := randomID()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.motion[id] = h
	return &subscription{d: d, id: id}
}

func (d *dispatcher) subscribeOrientation(h func(*sensor.OrientationEvent)) recording.Subscription {
	id := randomID()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orientation[id] = h
	return &subscription{d: d, id: id}
}

// dispatch delivers ev to every handler of its kind. Handlers are called
// outside the lock so they may unsubscribe.
func (d *dispatcher) dispatch(ev sensor.Event) {
	d.mu.Lock()
	switch ev.Kind {
	case sensor.KindMotion:
		hs := make([]func(*sensor.MotionEvent), 0, len(d.motion))
		for _, h := range d.motion {
			hs = append(hs, h)
		}
		d.mu.Unlock()
		for _, h := range hs {
			h(ev.Motion)
		}
	case sensor.KindOrientation:
		hs := make([]func(*sensor.OrientationEvent), 0, len(d.orientation))
		for _, h := range d.orientation {
			hs = append(hs, h)
		}
		d.mu.Unlock()
		for _, h := range hs {
			h(ev.Orientation)
		}
	default:
		d.mu.Unlock()
	}
}

func (d *dispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.motion) + len(d.orientation)
}

type subscription struct {
	d    *dispatcher
	id   string
	once sync.Once
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.d.mu.Lock()
		defer s.d.mu.Unlock()
		delete(s.d.motion, s.id)
		delete(s.d.orientation, s.id)
	})
	return nil
}
