package chain

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func newTestChain(t *testing.T) *Chain {
	t.Helper()
	c, err := New(Config{
		Agents:   []string{"walker0", "walker1"},
		Length:   4,
		MaxSteps: 20,
		Seed:     13,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func right() mat.Vector {
	return mat.NewVecDense(1, []float64{float64(Right)})
}

func TestChainEpisodeEndsWhenAllAgentsFinish(t *testing.T) {
	c := newTestChain(t)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	// Length 4 means 3 Right moves reach the goal
	for i := 0; i < 3; i++ {
		state := c.State()
		if len(state) != 2 {
			t.Fatalf("incorrect number of active agents \n\twant(2) "+
				"\n\thave(%v)", len(state))
		}
		actions := make(map[string]mat.Vector)
		for agent := range state {
			actions[agent] = right()
		}
		if err := c.Step(actions); err != nil {
			t.Fatal(err)
		}
	}

	if len(c.State()) != 0 {
		t.Error("episode should be over once all agents reach the goal")
	}
	if c.StepIndex() != 3 {
		t.Errorf("incorrect step index \n\twant(3) \n\thave(%v)",
			c.StepIndex())
	}

	summary := c.Summary()
	if summary["total_reward"] != 2 {
		t.Errorf("incorrect total reward \n\twant(2) \n\thave(%v)",
			summary["total_reward"])
	}
}

func TestChainExperiencesHarvestedAndCleared(t *testing.T) {
	c := newTestChain(t)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	actions := map[string]mat.Vector{"walker0": right(), "walker1": right()}
	if err := c.Step(actions); err != nil {
		t.Fatal(err)
	}
	if err := c.Step(actions); err != nil {
		t.Fatal(err)
	}

	harvest := c.Experiences()
	if len(harvest) != 2 {
		t.Fatalf("incorrect number of agents with experience \n\twant(2) "+
			"\n\thave(%v)", len(harvest))
	}
	for agent, batch := range harvest {
		if batch.Size() != 2 {
			t.Errorf("agent %v has incorrect batch size \n\twant(2) "+
				"\n\thave(%v)", agent, batch.Size())
		}
	}

	// The cache must be empty after harvesting
	if len(c.Experiences()) != 0 {
		t.Error("experiences should be cleared after harvesting")
	}
}

func TestChainRandomStart(t *testing.T) {
	config := Config{
		Agents:      []string{"walker0", "walker1"},
		Length:      10,
		MaxSteps:    20,
		RandomStart: true,
		Seed:        13,
	}
	c, err := New(config)
	if err != nil {
		t.Fatal(err)
	}

	// Start cells are drawn from the non-goal cells
	for agent, position := range c.positions {
		if position < 0 || position >= config.Length-1 {
			t.Errorf("agent %v starts outside the chain \n\twant([0, %v)) "+
				"\n\thave(%v)", agent, config.Length-1, position)
		}
	}

	// The same seed draws the same start cells
	other, err := New(config)
	if err != nil {
		t.Fatal(err)
	}
	for agent, position := range c.positions {
		if other.positions[agent] != position {
			t.Errorf("agent %v has irreproducible start cell \n\twant(%v) "+
				"\n\thave(%v)", agent, position, other.positions[agent])
		}
	}

	// Without RandomStart every agent starts at the left end
	fixed := newTestChain(t)
	for agent, position := range fixed.positions {
		if position != 0 {
			t.Errorf("agent %v does not start at the left end \n\twant(0) "+
				"\n\thave(%v)", agent, position)
		}
	}
}

func TestChainStepLimitEndsEpisode(t *testing.T) {
	c, err := New(Config{
		Agents:   []string{"walker0"},
		Length:   50,
		MaxSteps: 5,
		Seed:     13,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if len(c.State()) == 0 {
			t.Fatal("episode ended before the step limit")
		}
		if err := c.Step(map[string]mat.Vector{"walker0": right()}); err != nil {
			t.Fatal(err)
		}
	}

	if len(c.State()) != 0 {
		t.Error("episode should end at the step limit")
	}
}
