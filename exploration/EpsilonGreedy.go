package exploration

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// EpsilonGreedyConfig describes an epsilon greedy exploration scheme
// over a discrete action set. Epsilon anneals linearly from Start to
// Final over AnnealEpisodes episodes.
type EpsilonGreedyConfig struct {
	Start          float64
	Final          float64
	AnnealEpisodes int
	NumActions     int
	Seed           uint64
}

// Validate returns an error describing why the configuration is
// invalid, or nil if it is valid.
func (c EpsilonGreedyConfig) Validate() error {
	if c.Start < 0 || c.Start > 1 {
		return fmt.Errorf("validate: start epsilon not in [0, 1] "+
			"\n\thave(%v)", c.Start)
	}
	if c.Final < 0 || c.Final > c.Start {
		return fmt.Errorf("validate: final epsilon not in [0, start] "+
			"\n\thave(%v)", c.Final)
	}
	if c.AnnealEpisodes < 1 {
		return fmt.Errorf("validate: anneal episodes must be positive "+
			"\n\thave(%v)", c.AnnealEpisodes)
	}
	if c.NumActions < 1 {
		return fmt.Errorf("validate: num actions must be positive "+
			"\n\thave(%v)", c.NumActions)
	}
	return nil
}

// EpsilonGreedy replaces a policy's chosen action with a uniformly
// random action with probability epsilon. Actions are 1-dimensional
// vectors holding a discrete action index.
type EpsilonGreedy struct {
	epsilon    float64
	final      float64
	delta      float64
	numActions int
	rng        *rand.Rand
}

var _ Scheme = (*EpsilonGreedy)(nil)

// NewEpsilonGreedy creates and returns a new EpsilonGreedy scheme.
func NewEpsilonGreedy(config EpsilonGreedyConfig) (*EpsilonGreedy, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("newEpsilonGreedy: %v", err)
	}
	return &EpsilonGreedy{
		epsilon:    config.Start,
		final:      config.Final,
		delta:      (config.Start - config.Final) / float64(config.AnnealEpisodes),
		numActions: config.NumActions,
		rng:        rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// Apply returns the argument action with probability 1 - epsilon and
// a uniformly random action otherwise.
func (e *EpsilonGreedy) Apply(action mat.Vector) mat.Vector {
	if e.rng.Float64() >= e.epsilon {
		return action
	}
	random := float64(e.rng.Intn(e.numActions))
	return mat.NewVecDense(1, []float64{random})
}

// Step anneals epsilon linearly towards its final value.
func (e *EpsilonGreedy) Step() {
	e.epsilon -= e.delta
	if e.epsilon < e.final {
		e.epsilon = e.final
	}
}

// Parameters returns the current epsilon for diagnostics.
func (e *EpsilonGreedy) Parameters() map[string]float64 {
	return map[string]float64{"epsilon": e.epsilon}
}
