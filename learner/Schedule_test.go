package learner

import "testing"

func schedulesEqual(got, want []int) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestFinalSchedule(t *testing.T) {
	s, err := NewFinalSchedule(10)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}
	if !schedulesEqual(s.Points(), []int{10}) {
		t.Errorf("unexpected points \n\twant([10]) \n\thave(%v)", s.Points())
	}

	// A zero-episode run degenerates to a single point at episode 0,
	// which the training loop never reaches.
	s, err = NewFinalSchedule(0)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}
	if !schedulesEqual(s.Points(), []int{0}) {
		t.Errorf("unexpected points \n\twant([0]) \n\thave(%v)", s.Points())
	}

	if _, err := NewFinalSchedule(-1); err == nil {
		t.Error("expected error for negative episodes")
	}
}

func TestIntervalSchedule(t *testing.T) {
	s, err := NewIntervalSchedule(5, 2)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}
	if !schedulesEqual(s.Points(), []int{2, 4, 5}) {
		t.Errorf("unexpected points \n\twant([2 4 5]) \n\thave(%v)",
			s.Points())
	}

	// Interval landing exactly on the last episode must not append a
	// second final evaluation.
	s, err = NewIntervalSchedule(6, 2)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}
	if !schedulesEqual(s.Points(), []int{2, 4, 6}) {
		t.Errorf("unexpected points \n\twant([2 4 6]) \n\thave(%v)",
			s.Points())
	}

	s, err = NewIntervalSchedule(0, 2)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}
	if !schedulesEqual(s.Points(), []int{0}) {
		t.Errorf("unexpected points \n\twant([0]) \n\thave(%v)", s.Points())
	}

	if _, err := NewIntervalSchedule(5, 0); err == nil {
		t.Error("expected error for non-positive interval")
	}
}

func TestExplicitSchedule(t *testing.T) {
	s, err := NewExplicitSchedule(5, []int{4, 2})
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}
	if !schedulesEqual(s.Points(), []int{2, 4, 5}) {
		t.Errorf("unexpected points \n\twant([2 4 5]) \n\thave(%v)",
			s.Points())
	}

	// A final point equal to the horizon is kept as-is.
	s, err = NewExplicitSchedule(5, []int{2, 5})
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}
	if !schedulesEqual(s.Points(), []int{2, 5}) {
		t.Errorf("unexpected points \n\twant([2 5]) \n\thave(%v)",
			s.Points())
	}

	// Duplicates are preserved.
	s, err = NewExplicitSchedule(5, []int{3, 3})
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}
	if !schedulesEqual(s.Points(), []int{3, 3, 5}) {
		t.Errorf("unexpected points \n\twant([3 3 5]) \n\thave(%v)",
			s.Points())
	}

	if _, err := NewExplicitSchedule(5, []int{6}); err == nil {
		t.Error("expected error for point beyond training horizon")
	}
	if _, err := NewExplicitSchedule(5, []int{0}); err == nil {
		t.Error("expected error for non-positive point")
	}
}

func TestScheduleCursor(t *testing.T) {
	s, err := NewExplicitSchedule(5, []int{2, 4})
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}

	due := make([]int, 0, s.Len())
	for ep := 1; ep <= 5; ep++ {
		if s.Due(ep) {
			s.Advance()
			due = append(due, ep)
		}
	}
	if !schedulesEqual(due, []int{2, 4, 5}) {
		t.Errorf("unexpected evaluation episodes \n\twant([2 4 5]) "+
			"\n\thave(%v)", due)
	}
}

func TestScheduleDuplicateStalls(t *testing.T) {
	// A duplicated point consumes a cursor position, so later points
	// are only reached if their episode recurs, which it cannot. The
	// duplicate therefore suppresses the final evaluation.
	s, err := NewExplicitSchedule(5, []int{3, 3})
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}

	due := 0
	for ep := 1; ep <= 5; ep++ {
		if s.Due(ep) {
			s.Advance()
			due++
		}
	}
	if due != 1 {
		t.Errorf("unexpected evaluation count \n\twant(1) \n\thave(%v)",
			due)
	}
}
