// Package exploration implements exploration schemes: transforms
// applied to policy actions during training to encourage exploration.
// Schemes anneal their parameters once per completed training episode.
package exploration

import "gonum.org/v1/gonum/mat"

// Scheme transforms policy actions and anneals over episodes. Apply
// may return the action unchanged. Step must be called exactly once
// per completed training episode and never during evaluation.
type Scheme interface {
	// Apply transforms a policy's chosen action
	Apply(action mat.Vector) mat.Vector

	// Step anneals the scheme's internal parameters
	Step()

	// Parameters returns the scheme's current parameters for
	// diagnostics
	Parameters() map[string]float64
}
