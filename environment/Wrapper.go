// Package environment outlines the interface that simulated
// environments expose to the learning harness
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gorl/experience"
)

// Wrapper presents a running simulation to the learner as a set of
// named agents with per-agent observations. A Wrapper owns the
// simulation mechanics and the bookkeeping of raw transitions; the
// learner only drives it forward and harvests experience.
//
// The episode lifecycle is Reset, Start, then repeated Step calls.
// State returns the observations of all agents requiring a decision
// and returns an empty map once the episode is over. Experiences
// returns the transitions accumulated since the last harvest, keyed by
// agent, and clears the internal cache.
type Wrapper interface {
	// Reset clears any state left over from the previous episode
	Reset()

	// Start advances the simulation to the first decision point
	Start() error

	// Step applies one action per agent and advances the simulation
	// to the next decision point
	Step(actions map[string]mat.Vector) error

	// State returns the current per-agent observations. An empty map
	// means the episode has ended.
	State() map[string]mat.Vector

	// StepIndex returns the number of Step calls made this episode
	StepIndex() int

	// Summary returns diagnostic metrics describing the current
	// episode
	Summary() map[string]float64

	// Experiences harvests the transitions cached since the last call
	Experiences() map[string]*experience.Batch
}
