// Package policy defines the interface between the learning harness
// and the decision-making algorithms it trains.
package policy

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gorl/experience"
)

// Policy chooses actions from observations and learns from
// experience. Policies are identified by a unique name, which the
// learner uses to route per-agent experience.
//
// A Policy is either in training or evaluation mode. In evaluation
// mode action selection must be deterministic and OnExperiences must
// not be called.
type Policy interface {
	// Name returns the unique name of the Policy
	Name() string

	// ChooseAction selects an action for the given observation
	ChooseAction(obs mat.Vector) (mat.Vector, error)

	// OnExperiences performs a learning update with a batch of
	// transitions
	OnExperiences(batch *experience.Batch) error

	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Stater is a Policy whose weights can be snapshotted and restored.
// Policy managers use this to ship consistent policy state to rollout
// workers.
type Stater interface {
	Policy

	// State returns a flat copy of the Policy's weights
	State() []float64

	// SetState overwrites the Policy's weights with a snapshot
	// previously returned by State
	SetState(state []float64) error
}
