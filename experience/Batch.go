// Package experience implements storage and sampling of transitions
// generated by agent-environment interaction.
package experience

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition packages together a single environmental transition for
// one agent.
type Transition struct {
	State     mat.Vector
	Action    mat.Vector
	Reward    float64
	NextState mat.Vector
}

// Batch holds a batch of transitions as parallel slices. All slices
// always have equal length. Batches are the unit of experience that
// environments produce and policies consume.
type Batch struct {
	States     []mat.Vector
	Actions    []mat.Vector
	Rewards    []float64
	NextStates []mat.Vector
}

// NewBatch returns a new, empty Batch with capacity for n transitions.
func NewBatch(n int) *Batch {
	return &Batch{
		States:     make([]mat.Vector, 0, n),
		Actions:    make([]mat.Vector, 0, n),
		Rewards:    make([]float64, 0, n),
		NextStates: make([]mat.Vector, 0, n),
	}
}

// Size returns the number of transitions in the Batch.
func (b *Batch) Size() int {
	return len(b.States)
}

// Add appends a single transition to the Batch.
func (b *Batch) Add(t Transition) {
	b.States = append(b.States, t.State)
	b.Actions = append(b.Actions, t.Action)
	b.Rewards = append(b.Rewards, t.Reward)
	b.NextStates = append(b.NextStates, t.NextState)
}

// At returns the transition at index i.
func (b *Batch) At(i int) Transition {
	return Transition{
		State:     b.States[i],
		Action:    b.Actions[i],
		Reward:    b.Rewards[i],
		NextState: b.NextStates[i],
	}
}

// Extend appends all transitions of other to the Batch.
func (b *Batch) Extend(other *Batch) error {
	if other == nil {
		return nil
	}
	if len(other.States) != len(other.Actions) ||
		len(other.States) != len(other.Rewards) ||
		len(other.States) != len(other.NextStates) {
		return fmt.Errorf("extend: ragged batch \n\twant(%v) "+
			"\n\thave(%v, %v, %v)", len(other.States), len(other.Actions),
			len(other.Rewards), len(other.NextStates))
	}
	b.States = append(b.States, other.States...)
	b.Actions = append(b.Actions, other.Actions...)
	b.Rewards = append(b.Rewards, other.Rewards...)
	b.NextStates = append(b.NextStates, other.NextStates...)
	return nil
}

// Merge combines per-agent batches into per-policy batches using the
// argument mapping from agent name to policy name. Agents without a
// mapping cause an error, since experience would otherwise be silently
// dropped.
func Merge(byAgent map[string]*Batch,
	agentToPolicy map[string]string) (map[string]*Batch, error) {
	byPolicy := make(map[string]*Batch)
	for agent, batch := range byAgent {
		policyName, ok := agentToPolicy[agent]
		if !ok {
			return nil, fmt.Errorf("merge: no policy for agent %v", agent)
		}
		merged, ok := byPolicy[policyName]
		if !ok {
			merged = NewBatch(batch.Size())
			byPolicy[policyName] = merged
		}
		if err := merged.Extend(batch); err != nil {
			return nil, fmt.Errorf("merge: %v", err)
		}
	}
	return byPolicy, nil
}
