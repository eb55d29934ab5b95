package recording

import (
	"errors"

	"github.com/banshee-data/tunnel.report/internal/export"
	"github.com/banshee-data/tunnel.report/internal/sensor"
)

var (
	// ErrPermissionDenied is returned by Start when sensor access is refused.
	ErrPermissionDenied = errors.New("motion sensor permission denied")
	// ErrInvalidTransition is returned for operations not allowed in the
	// current session state.
	ErrInvalidTransition = errors.New("invalid recording state transition")
	// ErrNoData is returned by Export when nothing has been recorded.
	ErrNoData = export.ErrNoData
)

// Message maps an error from this package to the short text shown to users.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Permission to access motion sensors was denied"
	case errors.Is(err, ErrInvalidTransition):
		return "That action is not available right now"
	case errors.Is(err, ErrNoData):
		return "No data to download"
	case errors.Is(err, sensor.ErrEmptyEvent), errors.Is(err, sensor.ErrUnknownKind):
		return "Ignored an unreadable sensor event"
	case errors.Is(err, errPermissionRequest):
		return "Error requesting motion permission"
	}
	return "Something went wrong with the recording"
}

var errPermissionRequest = errors.New("requesting motion permission")
