package learner

import (
	"fmt"
	"sort"
)

// Schedule determines on which training episodes evaluation runs. A
// schedule is a non-decreasing sequence of episode indices with an
// internal cursor: evaluation happens when the episode just finished
// equals the episode under the cursor, and the cursor advances past
// it. Duplicate entries are kept as given, so a duplicated episode
// consumes an extra cursor position.
type Schedule struct {
	points []int
	cursor int
}

// NewFinalSchedule returns a schedule that evaluates once, after the
// last training episode.
func NewFinalSchedule(numEpisodes int) (*Schedule, error) {
	if numEpisodes < 0 {
		return nil, fmt.Errorf("newFinalSchedule: episodes must be "+
			"non-negative \n\thave(%v)", numEpisodes)
	}
	return &Schedule{points: []int{numEpisodes}}, nil
}

// NewIntervalSchedule returns a schedule that evaluates every `every`
// episodes, with a final evaluation after the last episode appended
// when the interval does not land on it.
func NewIntervalSchedule(numEpisodes, every int) (*Schedule, error) {
	if numEpisodes < 0 {
		return nil, fmt.Errorf("newIntervalSchedule: episodes must be "+
			"non-negative \n\thave(%v)", numEpisodes)
	}
	if every <= 0 {
		return nil, fmt.Errorf("newIntervalSchedule: interval must be "+
			"positive \n\thave(%v)", every)
	}

	points := make([]int, 0, numEpisodes/every+1)
	for ep := every; ep <= numEpisodes; ep += every {
		points = append(points, ep)
	}
	if len(points) == 0 || points[len(points)-1] != numEpisodes {
		points = append(points, numEpisodes)
	}
	return &Schedule{points: points}, nil
}

// NewExplicitSchedule returns a schedule over the given episode
// indices. The points are sorted, and a final evaluation after the
// last episode is appended when not already last. Points beyond
// numEpisodes are rejected. Duplicates are preserved.
func NewExplicitSchedule(numEpisodes int, points []int) (*Schedule, error) {
	if numEpisodes < 0 {
		return nil, fmt.Errorf("newExplicitSchedule: episodes must be "+
			"non-negative \n\thave(%v)", numEpisodes)
	}

	sorted := make([]int, len(points))
	copy(sorted, points)
	sort.Ints(sorted)

	for _, point := range sorted {
		if point < 1 {
			return nil, fmt.Errorf("newExplicitSchedule: episode indices "+
				"must be positive \n\thave(%v)", point)
		}
		if point > numEpisodes {
			return nil, fmt.Errorf("newExplicitSchedule: episode index "+
				"beyond training horizon \n\twant(<= %v) \n\thave(%v)",
				numEpisodes, point)
		}
	}

	if len(sorted) == 0 || sorted[len(sorted)-1] != numEpisodes {
		sorted = append(sorted, numEpisodes)
	}
	return &Schedule{points: sorted}, nil
}

// Points returns a copy of the schedule's episode indices.
func (s *Schedule) Points() []int {
	points := make([]int, len(s.points))
	copy(points, s.points)
	return points
}

// Len returns the number of evaluation points in the schedule.
func (s *Schedule) Len() int { return len(s.points) }

// Due returns whether evaluation is due after the given episode.
func (s *Schedule) Due(episode int) bool {
	return s.cursor < len(s.points) && s.points[s.cursor] == episode
}

// Advance moves the cursor past the current evaluation point.
func (s *Schedule) Advance() {
	if s.cursor < len(s.points) {
		s.cursor++
	}
}
