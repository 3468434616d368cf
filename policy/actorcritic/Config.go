// Package actorcritic implements a discrete-action actor-critic
// policy. The actor and critic networks, their optimizers, and the
// experience store backing updates are all declared through typed
// configurations; Gorgonia owns the numeric computation.
package actorcritic

import (
	"fmt"

	"github.com/samuelfneumann/gorl/experience"
	"github.com/samuelfneumann/gorl/network"
	"github.com/samuelfneumann/gorl/solver"
)

// CriticLossType enumerates the supported critic losses
type CriticLossType string

const (
	// MSE is the mean squared error between predicted values and
	// discounted returns
	MSE CriticLossType = "mse"
)

// Config describes an actor-critic policy.
type Config struct {
	// Network shapes. The actor must end in a softmax head over the
	// discrete action set; the critic must have a single output.
	Actor  network.Config
	Critic network.Config

	// Optimizers
	ActorSolver  *solver.Solver
	CriticSolver *solver.Solver

	// Algorithm hyperparameters
	RewardDiscount       float64
	TrainEpochs          int
	GradientIters        int
	CriticLoss           CriticLossType
	ActorLossCoefficient float64

	// Experience store backing updates
	Store   experience.StoreConfig
	Sampler experience.SamplerConfig

	Seed uint64
}

// Validate returns an error describing why the configuration is
// invalid, or nil if it is valid.
func (c Config) Validate() error {
	if err := c.Actor.Validate(); err != nil {
		return fmt.Errorf("validate: actor: %v", err)
	}
	if err := c.Critic.Validate(); err != nil {
		return fmt.Errorf("validate: critic: %v", err)
	}
	if !c.Actor.Softmax {
		return fmt.Errorf("validate: actor must have a softmax head")
	}
	if c.Critic.OutputDim != 1 {
		return fmt.Errorf("validate: critic must have a single output "+
			"\n\thave(%v)", c.Critic.OutputDim)
	}
	if c.Actor.InputDim != c.Critic.InputDim {
		return fmt.Errorf("validate: actor and critic observe the same "+
			"features \n\twant(%v) \n\thave(%v)", c.Actor.InputDim,
			c.Critic.InputDim)
	}

	if c.ActorSolver == nil || c.CriticSolver == nil {
		return fmt.Errorf("validate: nil solver")
	}

	if c.RewardDiscount < 0 || c.RewardDiscount > 1 {
		return fmt.Errorf("validate: reward discount not in [0, 1] "+
			"\n\thave(%v)", c.RewardDiscount)
	}
	if c.TrainEpochs < 1 {
		return fmt.Errorf("validate: train epochs must be positive "+
			"\n\thave(%v)", c.TrainEpochs)
	}
	if c.GradientIters < 1 {
		return fmt.Errorf("validate: gradient iters must be positive "+
			"\n\thave(%v)", c.GradientIters)
	}
	switch c.CriticLoss {
	case MSE:
	default:
		return fmt.Errorf("validate: unknown critic loss %v", c.CriticLoss)
	}
	if c.ActorLossCoefficient <= 0 {
		return fmt.Errorf("validate: actor loss coefficient must be "+
			"positive \n\thave(%v)", c.ActorLossCoefficient)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("validate: store: %v", err)
	}
	if err := c.Sampler.Validate(); err != nil {
		return fmt.Errorf("validate: sampler: %v", err)
	}

	// Update graphs have a fixed batch dimension, so the sampler
	// cannot return whole-store batches of varying size
	if c.Sampler.BatchSize < 1 {
		return fmt.Errorf("validate: update batch size must be a fixed "+
			"positive size \n\thave(%v)", c.Sampler.BatchSize)
	}
	if c.Sampler.BatchSize > c.Store.Capacity {
		return fmt.Errorf("validate: batch size exceeds store capacity "+
			"\n\twant(<=%v) \n\thave(%v)", c.Store.Capacity,
			c.Sampler.BatchSize)
	}

	return nil
}

// BatchSize returns the update batch size of policies constructed
// from this Config.
func (c Config) BatchSize() int {
	return c.Sampler.BatchSize
}
