// Package tracker implements trackers, which record evaluation
// metrics during a training run and save them after the run has
// finished.
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Point is a single tracked observation: the value of the evaluation
// metric after a given training episode.
type Point struct {
	Episode int
	Metric  float64
}

// Tracker records evaluation metrics during training and saves the
// recorded data once training ends.
type Tracker interface {
	Track(episode int, metric float64)
	Save() error
}

// LoadPoints loads and returns the data saved by a Metric tracker.
func LoadPoints(filename string) ([]Point, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadPoints: could not open data file: %v",
			err)
	}
	defer file.Close()

	var points []Point
	if err := gob.NewDecoder(file).Decode(&points); err != nil {
		return nil, fmt.Errorf("loadPoints: could not decode data: %v", err)
	}
	return points, nil
}
