package tracker

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Metric tracks the evaluation metric over a training run and saves
// the tracked points to disk with gob. The saved data can be read
// back with LoadPoints.
type Metric struct {
	points   []Point
	filename string
}

// NewMetric creates and returns a new *Metric tracker that saves to
// the given file.
func NewMetric(filename string) *Metric {
	return &Metric{filename: filename}
}

// Track records the evaluation metric for a training episode.
func (m *Metric) Track(episode int, metric float64) {
	m.points = append(m.points, Point{Episode: episode, Metric: metric})
}

// Points returns a copy of the tracked points.
func (m *Metric) Points() []Point {
	points := make([]Point, len(m.points))
	copy(points, m.points)
	return points
}

// Save saves the tracked points to disk.
func (m *Metric) Save() error {
	file, err := os.Create(m.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(m.points); err != nil {
		return fmt.Errorf("save: could not encode data: %v", err)
	}
	return nil
}
