// Package chain implements a small multi-agent corridor environment.
// Each agent walks a discrete chain of cells and is rewarded for
// reaching the right end. The environment is deliberately simple: it
// exists to exercise the learning harness, not to pose a hard control
// problem.
package chain

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gorl/environment"
	"github.com/samuelfneumann/gorl/experience"
)

// Actions available to each agent
const (
	Left int = iota
	Right
)

// NumActions is the size of the action set of every agent.
const NumActions = 2

// Config describes a chain environment.
type Config struct {
	Agents   []string // names of the participating agents
	Length   int      // number of cells in the chain
	MaxSteps int      // episode step limit

	// RandomStart places each agent in a random non-goal cell at the
	// start of every episode instead of the left end
	RandomStart bool
	Seed        uint64
}

// Validate returns an error describing why the configuration is
// invalid, or nil if it is valid.
func (c Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("validate: at least one agent required")
	}
	if c.Length < 2 {
		return fmt.Errorf("validate: chain length must be > 1 "+
			"\n\thave(%v)", c.Length)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("validate: max steps must be positive "+
			"\n\thave(%v)", c.MaxSteps)
	}
	return nil
}

// Chain implements environment.Wrapper over the corridor simulation.
type Chain struct {
	config    Config
	positions map[string]int
	done      map[string]bool
	stepIndex int
	started   bool
	rng       *rand.Rand

	// transitions cached since the last harvest, keyed by agent
	cache map[string]*experience.Batch

	totalReward float64
}

var _ environment.Wrapper = (*Chain)(nil)

// New creates and returns a new Chain environment.
func New(config Config) (*Chain, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	c := &Chain{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
	c.Reset()
	return c, nil
}

// Reset clears all episode state.
func (c *Chain) Reset() {
	c.positions = make(map[string]int, len(c.config.Agents))
	c.done = make(map[string]bool, len(c.config.Agents))
	c.cache = make(map[string]*experience.Batch, len(c.config.Agents))
	for _, agent := range c.config.Agents {
		start := 0
		if c.config.RandomStart {
			start = c.rng.Intn(c.config.Length - 1)
		}
		c.positions[agent] = start
		c.done[agent] = false
	}
	c.stepIndex = 0
	c.totalReward = 0
	c.started = false
}

// Start advances the environment to the first decision point.
func (c *Chain) Start() error {
	if c.started {
		return fmt.Errorf("start: episode already started")
	}
	c.started = true
	return nil
}

// observation returns the one-hot observation of an agent's position.
func (c *Chain) observation(agent string) mat.Vector {
	obs := mat.NewVecDense(c.config.Length, nil)
	obs.SetVec(c.positions[agent], 1.0)
	return obs
}

// State returns the observations of all agents still walking the
// chain. The map is empty once every agent has finished or the step
// limit was reached.
func (c *Chain) State() map[string]mat.Vector {
	if !c.started || c.stepIndex >= c.config.MaxSteps {
		return map[string]mat.Vector{}
	}
	state := make(map[string]mat.Vector)
	for _, agent := range c.config.Agents {
		if !c.done[agent] {
			state[agent] = c.observation(agent)
		}
	}
	return state
}

// Step applies one action per active agent.
func (c *Chain) Step(actions map[string]mat.Vector) error {
	if !c.started {
		return fmt.Errorf("step: episode not started")
	}

	for agent, action := range actions {
		if c.done[agent] {
			continue
		}

		prevObs := c.observation(agent)
		move := int(action.AtVec(0))

		switch move {
		case Left:
			if c.positions[agent] > 0 {
				c.positions[agent]--
			}
		case Right:
			c.positions[agent]++
		default:
			return fmt.Errorf("step: agent %v chose unknown action %v",
				agent, move)
		}

		reward := 0.0
		if c.positions[agent] == c.config.Length-1 {
			reward = 1.0
			c.done[agent] = true
		}
		c.totalReward += reward

		batch, ok := c.cache[agent]
		if !ok {
			batch = experience.NewBatch(c.config.MaxSteps)
			c.cache[agent] = batch
		}
		batch.Add(experience.Transition{
			State:     prevObs,
			Action:    action,
			Reward:    reward,
			NextState: c.observation(agent),
		})
	}

	c.stepIndex++
	return nil
}

// StepIndex returns the number of Step calls made this episode.
func (c *Chain) StepIndex() int {
	return c.stepIndex
}

// Summary returns diagnostic metrics for the current episode.
func (c *Chain) Summary() map[string]float64 {
	finished := 0
	for _, done := range c.done {
		if done {
			finished++
		}
	}
	return map[string]float64{
		"total_reward": c.totalReward,
		"steps":        float64(c.stepIndex),
		"finished":     float64(finished),
	}
}

// Experiences harvests the cached transitions and clears the cache.
func (c *Chain) Experiences() map[string]*experience.Batch {
	harvest := c.cache
	c.cache = make(map[string]*experience.Batch, len(c.config.Agents))
	return harvest
}
