package units

import (
	"math"
	"testing"

	"github.com/banshee-data/tunnel.report/internal/classify"
)

func TestConvertAcceleration(t *testing.T) {
	tests := []struct {
		name     string
		mps2     float64
		units    string
		expected float64
	}{
		{"1 g", 9.80665, G, 1.0},
		{"tunnel threshold in g", 0.3, G, 0.0306},
		{"m/s² unchanged", 0.3, MPS2, 0.3},
		{"unknown units default to m/s²", 2.5, "unknown", 2.5},
		{"zero", 0, G, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertAcceleration(tt.mps2, tt.units)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ConvertAcceleration(%f, %s) = %f, want %f", tt.mps2, tt.units, result, tt.expected)
			}
		})
	}
}

func TestConvertAssessment(t *testing.T) {
	a := classify.Assessment{
		Status:          classify.StatusInTunnel,
		AvgAcceleration: 2 * StandardGravity,
		MagnitudeMean:   StandardGravity,
		MagnitudeStdDev: StandardGravity / 2,
		WindowLength:    20,
	}
	got := ConvertAssessment(a, G)
	if got.AvgAcceleration != 2 || got.MagnitudeMean != 1 || got.MagnitudeStdDev != 0.5 {
		t.Errorf("ConvertAssessment() = %+v", got)
	}
	if got.Status != a.Status || got.WindowLength != 20 {
		t.Errorf("non-acceleration fields changed: %+v", got)
	}
	if a.AvgAcceleration != 2*StandardGravity {
		t.Error("input was modified")
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps2", MPS2, true},
		{"valid g", G, true},
		{"invalid unit", "mph", false},
		{"empty string", "", false},
		{"case sensitive", "G", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "mps2, g" {
		t.Errorf("GetValidUnitsString() = %q", got)
	}
	if Symbol(G) != "g" || Symbol(MPS2) != "m/s²" {
		t.Errorf("Symbol() = %q %q", Symbol(G), Symbol(MPS2))
	}
}
