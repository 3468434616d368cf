package tracker

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Curve tracks the evaluation metric over a training run and saves a
// learning curve plot as a PNG.
type Curve struct {
	points     []Point
	metricName string
	filename   string
}

// NewCurve creates and returns a new *Curve tracker that plots the
// named metric to the given file.
func NewCurve(metricName, filename string) *Curve {
	return &Curve{metricName: metricName, filename: filename}
}

// Track records the evaluation metric for a training episode.
func (c *Curve) Track(episode int, metric float64) {
	c.points = append(c.points, Point{Episode: episode, Metric: metric})
}

// Save plots the tracked points and saves the plot to disk.
func (c *Curve) Save() error {
	p := plot.New()
	p.Title.Text = "Learning curve"
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = c.metricName

	xys := make(plotter.XYs, len(c.points))
	for i, point := range c.points {
		xys[i] = plotter.XY{
			X: float64(point.Episode),
			Y: point.Metric,
		}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("save: could not plot metric %v: %v",
			c.metricName, err)
	}
	line.Color = plotutil.Color(0)
	p.Add(line)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, c.filename); err != nil {
		return fmt.Errorf("save: could not save plot: %v", err)
	}
	return nil
}
