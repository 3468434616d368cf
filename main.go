package main

import (
	"fmt"
	"log"

	"github.com/samuelfneumann/gorl/environment/chain"
	"github.com/samuelfneumann/gorl/experience"
	"github.com/samuelfneumann/gorl/exploration"
	"github.com/samuelfneumann/gorl/learner"
	"github.com/samuelfneumann/gorl/network"
	"github.com/samuelfneumann/gorl/policy"
	"github.com/samuelfneumann/gorl/policy/actorcritic"
	"github.com/samuelfneumann/gorl/solver"
	"github.com/samuelfneumann/gorl/tracker"
)

func main() {
	var seed uint64 = 192382
	agents := []string{"walker0", "walker1"}
	chainLength := 8
	numEpisodes := 100

	// Create the environments
	env, err := chain.New(chain.Config{
		Agents:   agents,
		Length:   chainLength,
		MaxSteps: 50,
		Seed:     seed,
	})
	if err != nil {
		log.Fatalf("could not create environment: %v", err)
	}
	evalEnv, err := chain.New(chain.Config{
		Agents:   agents,
		Length:   chainLength,
		MaxSteps: 50,
		Seed:     seed + 1,
	})
	if err != nil {
		log.Fatalf("could not create evaluation environment: %v", err)
	}

	// Create the learning algorithm
	batchSize := 32
	actorSolver, err := solver.NewDefaultAdam(0.001, batchSize)
	if err != nil {
		log.Fatalf("could not create actor solver: %v", err)
	}
	criticSolver, err := solver.NewDefaultAdam(0.001, batchSize)
	if err != nil {
		log.Fatalf("could not create critic solver: %v", err)
	}

	config := actorcritic.Config{
		Actor: network.Config{
			InputDim:   chainLength,
			OutputDim:  chain.NumActions,
			HiddenDims: []int{64, 32},
			Activation: network.LeakyReLU(),
			Softmax:    true,
			Init:       network.InitConfig{Type: network.GlorotU},
		},
		Critic: network.Config{
			InputDim:   chainLength,
			OutputDim:  1,
			HiddenDims: []int{64, 32},
			Activation: network.LeakyReLU(),
			Init:       network.InitConfig{Type: network.GlorotU},
		},
		ActorSolver:          actorSolver,
		CriticSolver:         criticSolver,
		RewardDiscount:       0.9,
		TrainEpochs:          3,
		GradientIters:        1,
		CriticLoss:           actorcritic.MSE,
		ActorLossCoefficient: 0.1,
		Store: experience.StoreConfig{
			Capacity:  1024,
			Overwrite: experience.Rolling,
		},
		Sampler: experience.SamplerConfig{
			BatchSize: batchSize,
			Replace:   true,
		},
		Seed: seed,
	}
	ac, err := actorcritic.New("ac", config)
	if err != nil {
		log.Fatalf("could not create policy: %v", err)
	}

	// Epsilon-greedy exploration, annealed over the first half of
	// training
	eps, err := exploration.NewEpsilonGreedy(exploration.EpsilonGreedyConfig{
		Start:          1.0,
		Final:          0.05,
		AnnealEpisodes: numEpisodes / 2,
		NumActions:     chain.NumActions,
		Seed:           seed,
	})
	if err != nil {
		log.Fatalf("could not create exploration scheme: %v", err)
	}

	// Route every agent to the shared policy and scheme
	agentToPolicy := make(map[string]string, len(agents))
	agentToScheme := make(map[string]string, len(agents))
	for _, agent := range agents {
		agentToPolicy[agent] = ac.Name()
		agentToScheme[agent] = "eps"
	}
	routing, err := learner.NewRouting([]policy.Policy{ac}, agentToPolicy,
		map[string]exploration.Scheme{"eps": eps}, agentToScheme)
	if err != nil {
		log.Fatalf("could not create routing: %v", err)
	}

	// Evaluate every 10 episodes, stopping once the evaluation reward
	// stalls
	schedule, err := learner.NewIntervalSchedule(numEpisodes, 10)
	if err != nil {
		log.Fatalf("could not create evaluation schedule: %v", err)
	}
	stopper, err := learner.NewNoImprovement(5)
	if err != nil {
		log.Fatalf("could not create early stopper: %v", err)
	}

	local, err := learner.NewLocal(env, routing, numEpisodes, -1, schedule,
		"total_reward")
	if err != nil {
		log.Fatalf("could not create learner: %v", err)
	}
	local.SetEvalEnv(evalEnv)
	local.SetEarlyStopper(stopper)

	metrics := tracker.NewMetric("./data.bin")
	curve := tracker.NewCurve("total_reward", "./curve.png")
	local.Register(metrics)
	local.Register(curve)

	if err := local.Run(); err != nil {
		log.Fatalf("run failed: %v", err)
	}
	if err := metrics.Save(); err != nil {
		log.Fatalf("could not save tracked data: %v", err)
	}
	if err := curve.Save(); err != nil {
		log.Fatalf("could not save learning curve: %v", err)
	}

	points, err := tracker.LoadPoints("./data.bin")
	if err != nil {
		log.Fatalf("could not load tracked data: %v", err)
	}
	fmt.Println(points)
}
