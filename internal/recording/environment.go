package recording

import (
	"context"

	"github.com/banshee-data/tunnel.report/internal/sensor"
)

// Permission is the outcome of a motion permission request.
type Permission int

const (
	PermissionGranted Permission = iota
	PermissionDenied
	// PermissionNotRequired is reported by platforms without a permission
	// gate; it is treated as granted.
	PermissionNotRequired
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	case PermissionNotRequired:
		return "not_required"
	}
	return "unknown"
}

// ParsePermission maps a device permission reply onto a Permission. Unknown
// replies are treated as denied.
func ParsePermission(s string) Permission {
	switch s {
	case "granted":
		return PermissionGranted
	case "not_required":
		return PermissionNotRequired
	}
	return PermissionDenied
}

// Subscription is a live handle on an event stream. Close detaches it and is
// safe to call more than once.
type Subscription interface {
	Close() error
}

// SensorEnvironment is the device capability the recorder drives. Handlers
// may be invoked from any goroutine.
type SensorEnvironment interface {
	// RequestMotionPermission asks the user or platform for sensor access. It
	// may block until the user answers.
	RequestMotionPermission(ctx context.Context) (Permission, error)
	SubscribeMotion(h func(*sensor.MotionEvent)) (Subscription, error)
	SubscribeOrientation(h func(*sensor.OrientationEvent)) (Subscription, error)
}
