package tracker

import (
	"path/filepath"
	"testing"
)

func TestMetricSaveLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "metric.bin")

	m := NewMetric(filename)
	m.Track(2, 1.5)
	m.Track(4, 2.5)
	m.Track(5, 2.0)

	if err := m.Save(); err != nil {
		t.Fatalf("could not save tracked data: %v", err)
	}

	points, err := LoadPoints(filename)
	if err != nil {
		t.Fatalf("could not load tracked data: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("unexpected point count \n\twant(3) \n\thave(%v)",
			len(points))
	}
	if points[1].Episode != 4 || points[1].Metric != 2.5 {
		t.Errorf("unexpected point \n\twant({4 2.5}) \n\thave(%v)",
			points[1])
	}
}

func TestLoadPointsMissingFile(t *testing.T) {
	if _, err := LoadPoints(filepath.Join(t.TempDir(),
		"missing.bin")); err == nil {
		t.Error("expected error for missing data file")
	}
}

func TestCurveSave(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "curve.png")

	c := NewCurve("total_reward", filename)
	c.Track(1, 0.5)
	c.Track(2, 1.0)
	c.Track(3, 1.5)

	if err := c.Save(); err != nil {
		t.Fatalf("could not save learning curve: %v", err)
	}
}
