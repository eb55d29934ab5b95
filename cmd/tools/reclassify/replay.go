package main

import (
	"github.com/banshee-data/tunnel.report/internal/buffer"
	"github.com/banshee-data/tunnel.report/internal/classify"
	"github.com/banshee-data/tunnel.report/internal/export"
	"github.com/banshee-data/tunnel.report/internal/sensor"
)

// Transition records a change of classification during replay.
type Transition struct {
	Index     int
	Timestamp string
	From      classify.Status
	To        classify.Status
	Avg       float64
	Changes   int
}

// Point is the window figure after one replayed sample.
type Point struct {
	Index   int
	Avg     float64
	Changes int
	Status  classify.Status
}

// Result is the outcome of replaying an export document.
type Result struct {
	Samples     int
	Transitions []Transition
	Points      []Point
	Final       classify.Assessment
	// Time spent in each status, in samples.
	Counts map[classify.Status]int
}

// Replay feeds the recorded samples through a display buffer and classifier
// in order, as the live recorder would have seen them.
func Replay(doc *export.Document, c *classify.Classifier, displayCapacity int) Result {
	if displayCapacity < c.WindowSize() {
		displayCapacity = c.WindowSize()
	}
	display := buffer.New[sensor.Sample](displayCapacity)

	res := Result{
		Points: make([]Point, 0, len(doc.SensorData)),
		Counts: make(map[classify.Status]int),
		Final:  c.Assess(nil),
	}
	for i, s := range doc.SensorData {
		display.Append(s)
		a := c.Assess(display.Tail(c.WindowSize()))
		if a.Status != res.Final.Status {
			res.Transitions = append(res.Transitions, Transition{
				Index:     i,
				Timestamp: s.Timestamp(),
				From:      res.Final.Status,
				To:        a.Status,
				Avg:       a.AvgAcceleration,
				Changes:   a.OrientationChanges,
			})
		}
		res.Points = append(res.Points, Point{Index: i, Avg: a.AvgAcceleration, Changes: a.OrientationChanges, Status: a.Status})
		res.Counts[a.Status]++
		res.Final = a
	}
	res.Samples = len(doc.SensorData)
	return res
}
