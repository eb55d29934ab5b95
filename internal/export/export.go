// Package export builds, encodes and parses the downloadable recording
// document.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/tunnel.report/internal/sensor"
)

// ErrNoData is returned when there are no samples to export.
var ErrNoData = errors.New("no sensor data to export")

// Metadata summarises an exported recording.
type Metadata struct {
	ExportTime          string `json:"exportTime"`
	TotalRecords        int    `json:"totalRecords"`
	RecordingDurationMs int64  `json:"recordingDurationMs"`
}

// Document is the export artifact.
type Document struct {
	Metadata   Metadata        `json:"metadata"`
	SensorData []sensor.Sample `json:"sensorData"`
}

// Serialize builds a Document from samples, which are copied.
func Serialize(samples []sensor.Sample, exportTime time.Time) (*Document, error) {
	if len(samples) == 0 {
		return nil, ErrNoData
	}
	data := make([]sensor.Sample, len(samples))
	copy(data, samples)
	return &Document{
		Metadata: Metadata{
			ExportTime:          sensor.FormatTimestamp(exportTime),
			TotalRecords:        len(data),
			RecordingDurationMs: DurationMs(data),
		},
		SensorData: data,
	}, nil
}

// DurationMs is the span between the first and last sample timestamps in
// milliseconds. It is 0 for fewer than two samples or when either timestamp
// cannot be parsed.
func DurationMs(samples []sensor.Sample) int64 {
	if len(samples) < 2 {
		return 0
	}
	first, err := sensor.ParseTimestamp(samples[0].Timestamp())
	if err != nil {
		return 0
	}
	last, err := sensor.ParseTimestamp(samples[len(samples)-1].Timestamp())
	if err != nil {
		return 0
	}
	return last.Sub(first).Milliseconds()
}

// Encode writes d as two-space indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding export document: %w", err)
	}
	return nil
}

// Marshal returns the encoded form of d.
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Parse decodes a document previously produced by Encode.
func Parse(r io.Reader) (*Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("parsing export document: %w", err)
	}
	if d.SensorData == nil {
		d.SensorData = []sensor.Sample{}
	}
	return &d, nil
}

// Filename is the suggested download name for an export taken at t, e.g.
// sensor-data-2025-03-14T09-26-53.json.
func Filename(t time.Time) string {
	return "sensor-data-" + t.UTC().Format("2006-01-02T15-04-05") + ".json"
}
