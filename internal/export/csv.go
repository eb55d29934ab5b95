package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/tunnel.report/internal/sensor"
)

var csvHeader = []string{
	"timestamp", "type",
	"accel_x", "accel_y", "accel_z",
	"accel_g_x", "accel_g_y", "accel_g_z",
	"rotation_alpha", "rotation_beta", "rotation_gamma",
	"interval_ms",
	"alpha", "beta", "gamma", "absolute",
}

// WriteCSV writes one row per sample. Columns that do not apply to a sample's
// kind are left empty.
func WriteCSV(w io.Writer, d *Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for i, s := range d.SensorData {
		if err := cw.Write(csvRow(s)); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(s sensor.Sample) []string {
	row := make([]string, len(csvHeader))
	row[0] = s.Timestamp()
	row[1] = string(s.Kind)
	switch {
	case s.IsMotion():
		m := s.Motion
		for i, v := range []float64{
			m.Acceleration.X, m.Acceleration.Y, m.Acceleration.Z,
			m.AccelerationIncludingGravity.X, m.AccelerationIncludingGravity.Y, m.AccelerationIncludingGravity.Z,
			m.RotationRate.Alpha, m.RotationRate.Beta, m.RotationRate.Gamma,
			m.Interval,
		} {
			row[2+i] = formatFloat(v)
		}
	case s.IsOrientation():
		o := s.Orientation
		row[12] = formatFloat(o.Alpha)
		row[13] = formatFloat(o.Beta)
		row[14] = formatFloat(o.Gamma)
		row[15] = strconv.FormatBool(o.Absolute)
	}
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
