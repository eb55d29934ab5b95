// Package units provides shared constants and validation for acceleration units
package units

import "github.com/banshee-data/tunnel.report/internal/classify"

// Unit constants
const (
	MPS2 = "mps2"
	G    = "g"
)

// StandardGravity is one g in m/s².
const StandardGravity = 9.80665

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS2, G}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps2, g"
}

// ConvertAcceleration converts an acceleration from m/s² to the target units.
// Samples are always recorded in m/s².
func ConvertAcceleration(mps2 float64, targetUnits string) float64 {
	switch targetUnits {
	case G:
		return mps2 / StandardGravity
	default:
		return mps2
	}
}

// ConvertAssessment returns a copy of a with its acceleration figures in the
// target units. Classification itself always runs in m/s².
func ConvertAssessment(a classify.Assessment, targetUnits string) classify.Assessment {
	a.AvgAcceleration = ConvertAcceleration(a.AvgAcceleration, targetUnits)
	a.MagnitudeMean = ConvertAcceleration(a.MagnitudeMean, targetUnits)
	a.MagnitudeStdDev = ConvertAcceleration(a.MagnitudeStdDev, targetUnits)
	return a
}

// Symbol returns the display symbol for unit.
func Symbol(unit string) string {
	if unit == G {
		return "g"
	}
	return "m/s²"
}
