package actorcritic

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/sampleuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/gorl/experience"
	"github.com/samuelfneumann/gorl/network"
	"github.com/samuelfneumann/gorl/policy"
)

// ActorCritic is a discrete-action actor-critic policy. Action
// selection samples from the actor's softmax head during training and
// is greedy during evaluation. Learning updates fit the critic to
// discounted returns and step the actor along the advantage-weighted
// policy gradient.
type ActorCritic struct {
	name   string
	config Config

	// Action selection network (batch size 1)
	selection   *network.Block
	selectionVM G.VM

	// Critic update graph
	trainCritic   *network.Block
	trainCriticVM G.VM
	criticReturns *G.Node
	criticSolver  G.Solver

	// Actor update graph
	trainActor      *network.Block
	trainActorVM    G.VM
	selectedActions *G.Node
	advantages      *G.Node
	actorSolver     G.Solver

	store   *experience.Store
	sampler *experience.UniformSampler

	numActions    int
	numFeatures   int
	batchSize     int
	actorStateLen int

	eval bool
	rng  *rand.Rand
}

var _ policy.Stater = (*ActorCritic)(nil)

// New creates and returns a new ActorCritic policy with the given
// unique name.
func New(name string, config Config) (*ActorCritic, error) {
	if name == "" {
		return nil, fmt.Errorf("new: policy name must not be empty")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	batchSize := config.BatchSize()
	numActions := config.Actor.OutputDim
	numFeatures := config.Actor.InputDim

	// Action selection network
	gSelect := G.NewGraph()
	selection, err := network.NewBlock(config.Actor, gSelect, 1, "actor")
	if err != nil {
		return nil, fmt.Errorf("new: could not create selection "+
			"network: %v", err)
	}
	selectionVM := G.NewTapeMachine(gSelect)

	// Critic update graph: fit state values to discounted returns
	gCritic := G.NewGraph()
	trainCritic, err := network.NewBlock(config.Critic, gCritic, batchSize,
		"critic")
	if err != nil {
		return nil, fmt.Errorf("new: could not create critic: %v", err)
	}
	criticReturns := G.NewVector(gCritic, tensor.Float64,
		G.WithShape(batchSize), G.WithName("returns"))

	values := G.Must(G.Reshape(trainCritic.Prediction(),
		tensor.Shape{batchSize}))
	criticLoss := G.Must(G.Sub(values, criticReturns))
	criticLoss = G.Must(G.Square(criticLoss))
	criticLoss = G.Must(G.Mean(criticLoss))

	if _, err := G.Grad(criticLoss, trainCritic.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute critic "+
			"gradient: %v", err)
	}
	trainCriticVM := G.NewTapeMachine(gCritic,
		G.BindDualValues(trainCritic.Learnables()...))

	// Actor update graph: advantage-weighted log likelihood of the
	// selected actions
	gActor := G.NewGraph()
	trainActor, err := network.NewBlock(config.Actor, gActor, batchSize,
		"actor")
	if err != nil {
		return nil, fmt.Errorf("new: could not create actor: %v", err)
	}
	selectedActions := G.NewMatrix(gActor, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("selectedActions"))
	advantages := G.NewVector(gActor, tensor.Float64,
		G.WithShape(batchSize), G.WithName("advantages"))

	logProb := G.Must(G.HadamardProd(trainActor.Prediction(),
		selectedActions))
	logProb = G.Must(G.Sum(logProb, 1))
	logProb = G.Must(G.Add(logProb, G.NewConstant(1e-8)))
	logProb = G.Must(G.Log(logProb))

	actorLoss := G.Must(G.HadamardProd(logProb, advantages))
	actorLoss = G.Must(G.Mean(actorLoss))
	actorLoss = G.Must(G.Neg(actorLoss))
	actorLoss = G.Must(G.Mul(actorLoss,
		G.NewConstant(config.ActorLossCoefficient)))

	if _, err := G.Grad(actorLoss, trainActor.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute actor "+
			"gradient: %v", err)
	}
	trainActorVM := G.NewTapeMachine(gActor,
		G.BindDualValues(trainActor.Learnables()...))

	// Experience store backing updates
	store, err := experience.NewStore(config.Store, config.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create experience "+
			"store: %v", err)
	}
	sampler, err := experience.NewUniformSampler(store, config.Sampler,
		config.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create sampler: %v", err)
	}

	ac := &ActorCritic{
		name:   name,
		config: config,

		selection:   selection,
		selectionVM: selectionVM,

		trainCritic:   trainCritic,
		trainCriticVM: trainCriticVM,
		criticReturns: criticReturns,
		criticSolver:  config.CriticSolver.Solver,

		trainActor:      trainActor,
		trainActorVM:    trainActorVM,
		selectedActions: selectedActions,
		advantages:      advantages,
		actorSolver:     config.ActorSolver.Solver,

		store:   store,
		sampler: sampler,

		numActions:    numActions,
		numFeatures:   numFeatures,
		batchSize:     batchSize,
		actorStateLen: len(trainActor.State()),

		rng: rand.New(rand.NewSource(config.Seed)),
	}

	// The selection network starts from the same weights as the
	// training actor
	if err := ac.selection.SetState(ac.trainActor.State()); err != nil {
		return nil, fmt.Errorf("new: could not initialize selection "+
			"network: %v", err)
	}

	return ac, nil
}

// Name returns the unique name of the policy.
func (a *ActorCritic) Name() string {
	return a.name
}

// Eval sets the policy to evaluation mode
func (a *ActorCritic) Eval() { a.eval = true }

// Train sets the policy to training mode
func (a *ActorCritic) Train() { a.eval = false }

// IsEval indicates if the policy is in evaluation mode
func (a *ActorCritic) IsEval() bool { return a.eval }

// ChooseAction selects an action for the given observation. In
// training mode the action is sampled from the actor's softmax head;
// in evaluation mode the most probable action is chosen.
func (a *ActorCritic) ChooseAction(obs mat.Vector) (mat.Vector, error) {
	if obs.Len() != a.numFeatures {
		return nil, fmt.Errorf("chooseAction: invalid observation size "+
			"\n\twant(%v) \n\thave(%v)", a.numFeatures, obs.Len())
	}

	input := make([]float64, obs.Len())
	for i := 0; i < obs.Len(); i++ {
		input[i] = obs.AtVec(i)
	}
	if err := a.selection.SetInput(input); err != nil {
		return nil, fmt.Errorf("chooseAction: %v", err)
	}
	if err := a.selectionVM.RunAll(); err != nil {
		return nil, fmt.Errorf("chooseAction: could not run selection "+
			"network: %v", err)
	}
	probs := append([]float64(nil),
		a.selection.Output().Data().([]float64)...)
	a.selectionVM.Reset()

	var action int
	if a.eval {
		for i := range probs {
			if probs[i] > probs[action] {
				action = i
			}
		}
	} else {
		sampled, ok := sampleuv.NewWeighted(probs, a.rng).Take()
		if !ok {
			return nil, fmt.Errorf("chooseAction: could not sample from "+
				"action distribution %v", probs)
		}
		action = sampled
	}

	return mat.NewVecDense(1, []float64{float64(action)}), nil
}

// OnExperiences stores a batch of transitions and performs the
// configured number of learning updates. Rewards in the batch are
// interpreted as raw per-step rewards and converted to discounted
// returns before storage.
func (a *ActorCritic) OnExperiences(batch *experience.Batch) error {
	if a.eval {
		return fmt.Errorf("onExperiences: policy %v is in evaluation "+
			"mode", a.name)
	}
	if batch == nil || batch.Size() == 0 {
		return nil
	}

	returns := discountedReturns(batch.Rewards, a.config.RewardDiscount)
	stored := experience.NewBatch(batch.Size())
	for i := 0; i < batch.Size(); i++ {
		t := batch.At(i)
		t.Reward = returns[i]
		stored.Add(t)
	}
	if err := a.store.Put(stored); err != nil {
		return fmt.Errorf("onExperiences: %v", err)
	}

	// Warm up until a full batch can be sampled
	if a.store.Size() < a.batchSize {
		return nil
	}

	for epoch := 0; epoch < a.config.TrainEpochs; epoch++ {
		sample, err := a.sampler.Sample()
		if err != nil {
			return fmt.Errorf("onExperiences: %v", err)
		}
		for iter := 0; iter < a.config.GradientIters; iter++ {
			if err := a.update(sample); err != nil {
				return fmt.Errorf("onExperiences: %v", err)
			}
		}
	}

	// Selection follows the updated training actor
	if err := a.selection.SetState(a.trainActor.State()); err != nil {
		return fmt.Errorf("onExperiences: could not refresh selection "+
			"network: %v", err)
	}
	return nil
}

// update performs one gradient step on the critic and the actor with
// the argument batch.
func (a *ActorCritic) update(batch *experience.Batch) error {
	states := make([]float64, 0, a.batchSize*a.numFeatures)
	returns := make([]float64, a.batchSize)
	selected := make([]float64, a.batchSize*a.numActions)
	for i := 0; i < a.batchSize; i++ {
		t := batch.At(i)
		for j := 0; j < t.State.Len(); j++ {
			states = append(states, t.State.AtVec(j))
		}
		returns[i] = t.Reward
		selected[i*a.numActions+int(t.Action.AtVec(0))] = 1.0
	}

	// Critic step. The values read out are pre-update and provide the
	// baseline for the actor's advantages.
	if err := a.trainCritic.SetInput(states); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	returnsTensor := tensor.New(tensor.WithBacking(returns),
		tensor.WithShape(a.batchSize))
	if err := G.Let(a.criticReturns, returnsTensor); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	if err := a.trainCriticVM.RunAll(); err != nil {
		return fmt.Errorf("update: could not run critic: %v", err)
	}
	values := append([]float64(nil),
		a.trainCritic.Output().Data().([]float64)...)
	if err := a.criticSolver.Step(a.trainCritic.Model()); err != nil {
		return fmt.Errorf("update: could not step critic solver: %v", err)
	}
	a.trainCriticVM.Reset()

	advantages := make([]float64, a.batchSize)
	for i := range advantages {
		advantages[i] = returns[i] - values[i]
	}

	// Actor step
	if err := a.trainActor.SetInput(append([]float64(nil),
		states...)); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	selectedTensor := tensor.New(tensor.WithBacking(selected),
		tensor.WithShape(a.batchSize, a.numActions))
	if err := G.Let(a.selectedActions, selectedTensor); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	advantagesTensor := tensor.New(tensor.WithBacking(advantages),
		tensor.WithShape(a.batchSize))
	if err := G.Let(a.advantages, advantagesTensor); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	if err := a.trainActorVM.RunAll(); err != nil {
		return fmt.Errorf("update: could not run actor: %v", err)
	}
	if err := a.actorSolver.Step(a.trainActor.Model()); err != nil {
		return fmt.Errorf("update: could not step actor solver: %v", err)
	}
	a.trainActorVM.Reset()

	return nil
}

// State returns a flat copy of the actor and critic weights.
func (a *ActorCritic) State() []float64 {
	return append(a.trainActor.State(), a.trainCritic.State()...)
}

// SetState overwrites the actor and critic weights with a snapshot
// previously returned by State.
func (a *ActorCritic) SetState(state []float64) error {
	if len(state) < a.actorStateLen {
		return fmt.Errorf("setState: invalid state size \n\twant(>=%v) "+
			"\n\thave(%v)", a.actorStateLen, len(state))
	}
	if err := a.trainActor.SetState(state[:a.actorStateLen]); err != nil {
		return fmt.Errorf("setState: actor: %v", err)
	}
	if err := a.trainCritic.SetState(state[a.actorStateLen:]); err != nil {
		return fmt.Errorf("setState: critic: %v", err)
	}
	return a.selection.SetState(state[:a.actorStateLen])
}

// discountedReturns computes the discounted cumulative rewards of a
// reward sequence in episode order.
func discountedReturns(rewards []float64, discount float64) []float64 {
	returns := make([]float64, len(rewards))
	acc := 0.0
	for i := len(rewards) - 1; i >= 0; i-- {
		acc = rewards[i] + discount*acc
		returns[i] = acc
	}
	return returns
}
