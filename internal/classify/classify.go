// Package classify derives a coarse environment label from a sliding window of
// recent sensor samples.
package classify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/tunnel.report/internal/sensor"
)

// Status is the environment label.
type Status string

const (
	StatusInsufficientData    Status = "insufficient_data"
	StatusInTunnel            Status = "in_tunnel"
	StatusStationary          Status = "stationary"
	StatusMovingOutsideTunnel Status = "moving_outside_tunnel"
)

// Message returns the short label shown to users.
func (s Status) Message() string {
	switch s {
	case StatusInTunnel:
		return "Likely in tunnel"
	case StatusStationary:
		return "Stationary or still"
	case StatusMovingOutsideTunnel:
		return "Moving, outside tunnel"
	default:
		return "Not enough data yet"
	}
}

// Default heuristic parameters.
const (
	DefaultMinSamples               = 5
	DefaultWindowSize               = 20
	DefaultTunnelAcceleration       = 0.3
	DefaultStillAcceleration        = 0.1
	DefaultTunnelOrientationChanges = 5
	DefaultStillOrientationChanges  = 3
)

// Thresholds parameterises the heuristic.
type Thresholds struct {
	MinSamples int
	WindowSize int
	// InTunnel requires avg acceleration and orientation count strictly above
	// these.
	TunnelAcceleration       float64
	TunnelOrientationChanges int
	// StationaryOrStill requires both strictly below these.
	StillAcceleration       float64
	StillOrientationChanges int
}

// DefaultThresholds returns the stock heuristic parameters.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSamples:               DefaultMinSamples,
		WindowSize:               DefaultWindowSize,
		TunnelAcceleration:       DefaultTunnelAcceleration,
		TunnelOrientationChanges: DefaultTunnelOrientationChanges,
		StillAcceleration:        DefaultStillAcceleration,
		StillOrientationChanges:  DefaultStillOrientationChanges,
	}
}

// Validate checks that the window can ever satisfy the sample minimum.
func (t Thresholds) Validate() error {
	if t.MinSamples < 1 {
		return fmt.Errorf("min samples must be at least 1, got %d", t.MinSamples)
	}
	if t.WindowSize < t.MinSamples {
		return fmt.Errorf("window size %d is smaller than min samples %d", t.WindowSize, t.MinSamples)
	}
	if t.StillAcceleration < 0 || t.TunnelAcceleration < 0 {
		return fmt.Errorf("acceleration thresholds must be non-negative")
	}
	return nil
}

// Assessment is a classification together with the values that produced it.
type Assessment struct {
	Status             Status  `json:"status"`
	Message            string  `json:"message"`
	WindowLength       int     `json:"window_length"`
	MotionSamples      int     `json:"motion_samples"`
	AvgAcceleration    float64 `json:"avg_acceleration"`
	OrientationChanges int     `json:"orientation_changes"`
	// Magnitude statistics over motion samples only; informational.
	MagnitudeMean   float64 `json:"magnitude_mean"`
	MagnitudeStdDev float64 `json:"magnitude_stddev"`
}

// Classifier applies Thresholds to sample windows.
type Classifier struct {
	th Thresholds
}

// New returns a Classifier. Invalid thresholds are rejected.
func New(th Thresholds) (*Classifier, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{th: th}, nil
}

// Default returns a Classifier using DefaultThresholds.
func Default() *Classifier {
	return &Classifier{th: DefaultThresholds()}
}

// Thresholds returns the parameters in use.
func (c *Classifier) Thresholds() Thresholds { return c.th }

// WindowSize is the number of trailing samples considered.
func (c *Classifier) WindowSize() int { return c.th.WindowSize }

// Classify returns the label for samples, oldest first.
func (c *Classifier) Classify(samples []sensor.Sample) Status {
	return c.Assess(samples).Status
}

// Magnitude is the mean absolute acceleration over the three axes.
func Magnitude(a sensor.Vector3) float64 {
	return (math.Abs(a.X) + math.Abs(a.Y) + math.Abs(a.Z)) / 3
}

// Assess classifies samples and reports the window figures.
func (c *Classifier) Assess(samples []sensor.Sample) Assessment {
	if len(samples) < c.th.MinSamples {
		return Assessment{
			Status:       StatusInsufficientData,
			Message:      StatusInsufficientData.Message(),
			WindowLength: len(samples),
		}
	}

	window := samples
	if len(window) > c.th.WindowSize {
		window = window[len(window)-c.th.WindowSize:]
	}

	magnitudes := make([]float64, 0, len(window))
	changes := 0
	for _, s := range window {
		switch {
		case s.IsMotion():
			magnitudes = append(magnitudes, Magnitude(s.Motion.Acceleration))
		case s.IsOrientation():
			changes++
		}
	}

	// The sum covers motion samples only but is divided by the whole window,
	// orientation samples included. This dilutes the average on mixed
	// streams and the thresholds are tuned against exactly that figure.
	avg := floats.Sum(magnitudes) / float64(len(window))

	a := Assessment{
		WindowLength:       len(window),
		MotionSamples:      len(magnitudes),
		AvgAcceleration:    avg,
		OrientationChanges: changes,
	}
	if len(magnitudes) > 0 {
		a.MagnitudeMean = stat.Mean(magnitudes, nil)
	}
	if len(magnitudes) > 1 {
		a.MagnitudeStdDev = stat.StdDev(magnitudes, nil)
	}

	switch {
	case avg > c.th.TunnelAcceleration && changes > c.th.TunnelOrientationChanges:
		a.Status = StatusInTunnel
	case avg < c.th.StillAcceleration && changes < c.th.StillOrientationChanges:
		a.Status = StatusStationary
	default:
		a.Status = StatusMovingOutsideTunnel
	}
	a.Message = a.Status.Message()
	return a
}
