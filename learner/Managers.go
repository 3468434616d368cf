package learner

import (
	"fmt"

	"github.com/samuelfneumann/gorl/environment"
	"github.com/samuelfneumann/gorl/experience"
	"github.com/samuelfneumann/gorl/policy"
	"gonum.org/v1/gonum/mat"
)

// LocalPolicyManager is the in-process PolicyManager. It holds the
// trainable policies directly and tracks which of them changed since
// the last state shipment, so rollout workers only receive states
// that differ from what they already hold.
type LocalPolicyManager struct {
	policies map[string]policy.Stater
	updated  map[string]bool
	version  int
}

// NewLocalPolicyManager creates and returns a new LocalPolicyManager
// over the given policies. All policies are initially marked updated
// so that the first state shipment is complete.
func NewLocalPolicyManager(policies []policy.Stater) (*LocalPolicyManager,
	error) {
	if len(policies) == 0 {
		return nil, fmt.Errorf("newLocalPolicyManager: at least one " +
			"policy required")
	}

	byName := make(map[string]policy.Stater, len(policies))
	updated := make(map[string]bool, len(policies))
	for _, p := range policies {
		if _, ok := byName[p.Name()]; ok {
			return nil, fmt.Errorf("newLocalPolicyManager: duplicate "+
				"policy name %v", p.Name())
		}
		byName[p.Name()] = p
		updated[p.Name()] = true
	}

	return &LocalPolicyManager{policies: byName, updated: updated}, nil
}

// GetState returns the learnable state of every policy updated since
// the last ResetUpdateStatus call.
func (m *LocalPolicyManager) GetState() map[string][]float64 {
	state := make(map[string][]float64, len(m.updated))
	for name := range m.updated {
		state[name] = m.policies[name].State()
	}
	return state
}

// ResetUpdateStatus marks all policies as unchanged.
func (m *LocalPolicyManager) ResetUpdateStatus() {
	m.updated = make(map[string]bool, len(m.policies))
}

// Version returns the current policy version.
func (m *LocalPolicyManager) Version() int { return m.version }

// OnExperiences updates the policies from experience keyed by policy
// name. A successful update increments the policy version.
func (m *LocalPolicyManager) OnExperiences(
	byPolicy map[string]*experience.Batch) error {
	for name, batch := range byPolicy {
		p, ok := m.policies[name]
		if !ok {
			return fmt.Errorf("onExperiences: no policy registered with "+
				"name %v", name)
		}
		if err := p.OnExperiences(batch); err != nil {
			return fmt.Errorf("onExperiences: policy %v could not "+
				"learn: %v", name, err)
		}
		m.updated[name] = true
	}
	if len(byPolicy) > 0 {
		m.version++
	}
	return nil
}

// Close releases resources held by the policies.
func (m *LocalPolicyManager) Close() error {
	var firstErr error
	for _, p := range m.policies {
		if closer, ok := p.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// LocalRolloutManager is the in-process RolloutManager. It steps an
// environment with its own inference copies of the policies,
// applying the state snapshots shipped by the policy side before
// each segment. The manager groups collected experience by policy,
// so its output can feed a PolicyManager directly.
type LocalRolloutManager struct {
	name    string
	env     environment.Wrapper
	evalEnv environment.Wrapper
	routing *Routing

	numSteps    int // steps per collection segment, -1 for unbounded
	metricKey   string
	lastVersion int
}

// NewLocalRolloutManager creates and returns a new
// LocalRolloutManager. The routing's policies are the manager's
// inference copies: any policy that receives state snapshots must
// implement policy.Stater. numSteps bounds each collection segment
// (-1 collects whole episodes in one segment). Evaluation results
// are keyed by name and carry the metricKey entry of the
// environment's episode summary.
func NewLocalRolloutManager(name string, env environment.Wrapper,
	routing *Routing, numSteps int,
	metricKey string) (*LocalRolloutManager, error) {
	if name == "" {
		return nil, fmt.Errorf("newLocalRolloutManager: no environment " +
			"name given")
	}
	if env == nil {
		return nil, fmt.Errorf("newLocalRolloutManager: no environment " +
			"given")
	}
	if routing == nil {
		return nil, fmt.Errorf("newLocalRolloutManager: no routing given")
	}
	if numSteps == 0 || numSteps < -1 {
		return nil, fmt.Errorf("newLocalRolloutManager: steps per segment "+
			"must be positive or -1 \n\thave(%v)", numSteps)
	}
	if metricKey == "" {
		return nil, fmt.Errorf("newLocalRolloutManager: no summary metric " +
			"key given")
	}

	return &LocalRolloutManager{
		name:      name,
		env:       env,
		routing:   routing,
		numSteps:  numSteps,
		metricKey: metricKey,
	}, nil
}

// SetEvalEnv sets a separate environment for evaluation episodes.
// When unset, evaluation reuses the rollout environment.
func (m *LocalRolloutManager) SetEvalEnv(env environment.Wrapper) {
	m.evalEnv = env
}

// Reset prepares the environment for a new training episode.
func (m *LocalRolloutManager) Reset() error {
	m.env.Reset()
	if err := m.env.Start(); err != nil {
		return fmt.Errorf("reset: could not start episode: %v", err)
	}
	return nil
}

// EpisodeComplete returns whether the current training episode has
// ended.
func (m *LocalRolloutManager) EpisodeComplete() bool {
	return len(m.env.State()) == 0
}

// Collect gathers one segment of experience with exploration
// applied, returning it grouped by the policy that learns from it.
// When the segment finishes the episode, every exploration scheme
// steps once.
func (m *LocalRolloutManager) Collect(ep, segment int,
	policyState map[string][]float64,
	version int) (map[string]*experience.Batch, error) {
	if err := m.applyState(policyState); err != nil {
		return nil, fmt.Errorf("collect: %v", err)
	}
	m.lastVersion = version

	stepsToGo := m.numSteps
	for len(m.env.State()) != 0 && stepsToGo != 0 {
		actions, err := m.act(m.env, true)
		if err != nil {
			return nil, fmt.Errorf("collect: %v", err)
		}
		if err := m.env.Step(actions); err != nil {
			return nil, fmt.Errorf("collect: could not step "+
				"environment: %v", err)
		}
		if stepsToGo > 0 {
			stepsToGo--
		}
	}

	if len(m.env.State()) == 0 {
		for _, scheme := range m.routing.Schemes() {
			scheme.Step()
		}
	}

	byPolicy, err := experience.Merge(m.env.Experiences(),
		m.routing.AgentToPolicy())
	if err != nil {
		return nil, fmt.Errorf("collect: could not merge experience: %v",
			err)
	}
	return byPolicy, nil
}

// Evaluate runs one greedy episode with the given policy state and
// returns the evaluation metric keyed by the manager's environment
// name. Experience gathered during evaluation is discarded.
func (m *LocalRolloutManager) Evaluate(ep int,
	policyState map[string][]float64) (map[string]float64, error) {
	if err := m.applyState(policyState); err != nil {
		return nil, fmt.Errorf("evaluate: %v", err)
	}

	env := m.evalEnv
	if env == nil {
		env = m.env
	}

	for _, p := range m.routing.Policies() {
		p.Eval()
	}
	defer func() {
		for _, p := range m.routing.Policies() {
			p.Train()
		}
	}()

	env.Reset()
	if err := env.Start(); err != nil {
		return nil, fmt.Errorf("evaluate: could not start episode: %v", err)
	}
	for len(env.State()) != 0 {
		actions, err := m.act(env, false)
		if err != nil {
			return nil, fmt.Errorf("evaluate: %v", err)
		}
		if err := env.Step(actions); err != nil {
			return nil, fmt.Errorf("evaluate: could not step "+
				"environment: %v", err)
		}
	}
	env.Experiences()

	summary := env.Summary()
	metric, ok := summary[m.metricKey]
	if !ok {
		return nil, fmt.Errorf("evaluate: summary has no metric %v",
			m.metricKey)
	}
	return map[string]float64{m.name: metric}, nil
}

// applyState loads the shipped state snapshots into the manager's
// inference policies.
func (m *LocalRolloutManager) applyState(
	policyState map[string][]float64) error {
	for name, state := range policyState {
		p, err := m.routing.PolicyNamed(name)
		if err != nil {
			return err
		}
		stater, ok := p.(policy.Stater)
		if !ok {
			return fmt.Errorf("applyState: policy %v cannot load state",
				name)
		}
		if err := stater.SetState(state); err != nil {
			return fmt.Errorf("applyState: policy %v could not load "+
				"state: %v", name, err)
		}
	}
	return nil
}

// act chooses an action for every agent with a pending observation.
func (m *LocalRolloutManager) act(env environment.Wrapper,
	explore bool) (map[string]mat.Vector, error) {
	states := env.State()
	actions := make(map[string]mat.Vector, len(states))
	for agent, obs := range states {
		p, err := m.routing.Policy(agent)
		if err != nil {
			return nil, err
		}
		action, err := p.ChooseAction(obs)
		if err != nil {
			return nil, fmt.Errorf("act: policy %v could not choose "+
				"action: %v", p.Name(), err)
		}
		if explore {
			if scheme, ok := m.routing.Scheme(agent); ok {
				action = scheme.Apply(action)
			}
		}
		actions[agent] = action
	}
	return actions, nil
}

// Close releases resources held by the environments and policies.
func (m *LocalRolloutManager) Close() error {
	var firstErr error

	closeIt := func(v interface{}) {
		if closer, ok := v.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	closeIt(m.env)
	if m.evalEnv != nil && m.evalEnv != m.env {
		closeIt(m.evalEnv)
	}
	for _, p := range m.routing.Policies() {
		closeIt(p)
	}
	return firstErr
}
