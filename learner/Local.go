package learner

import (
	"fmt"
	"time"

	"github.com/samuelfneumann/gorl/environment"
	"github.com/samuelfneumann/gorl/experience"
	"github.com/samuelfneumann/progressbar"
	"gonum.org/v1/gonum/mat"
)

// Closer is the optional teardown capability. Environments, policies,
// and managers that hold external resources implement Closer to
// release them when training ends.
type Closer interface {
	Close() error
}

// Tracker records an evaluation metric for a training episode.
// Implementations are registered on a learner before Run.
type Tracker interface {
	Track(episode int, metric float64)
}

// Local runs training and evaluation in a single process. Each
// training episode is collected from the environment in segments,
// with the harvested experience routed to the policies that own it.
// Evaluation runs on the episodes the schedule names, feeding the
// chosen summary metric to the registered trackers and, when set,
// the early stopper.
type Local struct {
	env     environment.Wrapper
	evalEnv environment.Wrapper
	routing *Routing

	numEpisodes int
	numSteps    int // steps per collection segment, -1 for unbounded

	schedule  *Schedule
	stopper   EarlyStopper
	trackers  []Tracker
	metricKey string
}

// NewLocal creates and returns a new Local learner. The learner runs
// numEpisodes training episodes on env, collecting numSteps
// environment steps per segment (-1 collects whole episodes in one
// segment). Evaluation follows schedule and reads metricKey from the
// environment's episode summary.
func NewLocal(env environment.Wrapper, routing *Routing, numEpisodes,
	numSteps int, schedule *Schedule, metricKey string) (*Local, error) {
	if env == nil {
		return nil, fmt.Errorf("newLocal: no environment given")
	}
	if routing == nil {
		return nil, fmt.Errorf("newLocal: no routing given")
	}
	if numEpisodes < 0 {
		return nil, fmt.Errorf("newLocal: episodes must be non-negative "+
			"\n\thave(%v)", numEpisodes)
	}
	if numSteps == 0 || numSteps < -1 {
		return nil, fmt.Errorf("newLocal: steps per segment must be "+
			"positive or -1 \n\thave(%v)", numSteps)
	}
	if schedule == nil {
		return nil, fmt.Errorf("newLocal: no evaluation schedule given")
	}
	if metricKey == "" {
		return nil, fmt.Errorf("newLocal: no summary metric key given")
	}

	return &Local{
		env:         env,
		routing:     routing,
		numEpisodes: numEpisodes,
		numSteps:    numSteps,
		schedule:    schedule,
		metricKey:   metricKey,
	}, nil
}

// SetEvalEnv sets a separate environment for evaluation episodes.
// When unset, evaluation reuses the training environment.
func (l *Local) SetEvalEnv(env environment.Wrapper) { l.evalEnv = env }

// SetEarlyStopper sets the early stopper consulted after each
// evaluation.
func (l *Local) SetEarlyStopper(stopper EarlyStopper) { l.stopper = stopper }

// Register registers a tracker to receive evaluation metrics.
func (l *Local) Register(t Tracker) { l.trackers = append(l.trackers, t) }

// Run runs the full training loop. Training halts after all episodes
// complete or once the early stopper trips, whichever comes first.
// Resources held by the environments and policies are released when
// Run returns.
func (l *Local) Run() (err error) {
	defer func() {
		if cerr := l.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	bar := progressbar.New(25, l.numEpisodes, time.Second, true)
	bar.Display()
	defer bar.Close()

	for ep := 1; ep <= l.numEpisodes; ep++ {
		if err := l.train(ep); err != nil {
			return fmt.Errorf("run: could not train episode %v: %v", ep, err)
		}
		bar.Increment()

		if !l.schedule.Due(ep) {
			continue
		}
		l.schedule.Advance()

		summary, err := l.evaluate()
		if err != nil {
			return fmt.Errorf("run: could not evaluate at episode %v: %v",
				ep, err)
		}
		metric, ok := summary[l.metricKey]
		if !ok {
			return fmt.Errorf("run: summary has no metric %v",
				l.metricKey)
		}
		for _, t := range l.trackers {
			t.Track(ep, metric)
		}

		if l.stopper != nil {
			l.stopper.Push(metric)
			if l.stopper.Stop() {
				return nil
			}
		}
	}
	return nil
}

// train runs a single training episode, collecting experience in
// segments and dispatching each segment's experience to the policies
// that own it. Exploration schemes step once per training episode.
func (l *Local) train(ep int) error {
	l.env.Reset()
	if err := l.env.Start(); err != nil {
		return fmt.Errorf("train: could not start episode: %v", err)
	}

	for len(l.env.State()) != 0 {
		byAgent, err := l.collect()
		if err != nil {
			return fmt.Errorf("train: could not collect: %v", err)
		}

		byPolicy, err := experience.Merge(byAgent, l.routing.AgentToPolicy())
		if err != nil {
			return fmt.Errorf("train: could not merge experience: %v", err)
		}
		for name, batch := range byPolicy {
			p, err := l.routing.PolicyNamed(name)
			if err != nil {
				return fmt.Errorf("train: %v", err)
			}
			if err := p.OnExperiences(batch); err != nil {
				return fmt.Errorf("train: policy %v could not learn: %v",
					name, err)
			}
		}
	}

	for _, scheme := range l.routing.Schemes() {
		scheme.Step()
	}
	return nil
}

// collect steps the environment until the segment's step budget is
// spent or the episode ends, then harvests the experience gathered
// so far, keyed by agent.
func (l *Local) collect() (map[string]*experience.Batch, error) {
	stepsToGo := l.numSteps
	for len(l.env.State()) != 0 && stepsToGo != 0 {
		actions, err := l.act(l.env.State(), true)
		if err != nil {
			return nil, err
		}
		if err := l.env.Step(actions); err != nil {
			return nil, fmt.Errorf("collect: could not step "+
				"environment: %v", err)
		}
		if stepsToGo > 0 {
			stepsToGo--
		}
	}
	return l.env.Experiences(), nil
}

// act chooses an action for every agent with a pending observation.
// When explore is true, agents routed to an exploration scheme have
// the scheme applied to the policy's action.
func (l *Local) act(states map[string]mat.Vector,
	explore bool) (map[string]mat.Vector, error) {
	actions := make(map[string]mat.Vector, len(states))
	for agent, obs := range states {
		p, err := l.routing.Policy(agent)
		if err != nil {
			return nil, fmt.Errorf("act: %v", err)
		}
		action, err := p.ChooseAction(obs)
		if err != nil {
			return nil, fmt.Errorf("act: policy %v could not choose "+
				"action: %v", p.Name(), err)
		}
		if explore {
			if scheme, ok := l.routing.Scheme(agent); ok {
				action = scheme.Apply(action)
			}
		}
		actions[agent] = action
	}
	return actions, nil
}

// evaluate runs one greedy episode and returns the environment's
// episode summary. Policies are placed in evaluation mode for the
// episode and restored afterwards. Experience gathered during
// evaluation is discarded.
func (l *Local) evaluate() (map[string]float64, error) {
	env := l.evalEnv
	if env == nil {
		env = l.env
	}

	for _, p := range l.routing.Policies() {
		p.Eval()
	}
	defer func() {
		for _, p := range l.routing.Policies() {
			p.Train()
		}
	}()

	env.Reset()
	if err := env.Start(); err != nil {
		return nil, fmt.Errorf("evaluate: could not start episode: %v", err)
	}
	for len(env.State()) != 0 {
		actions, err := l.act(env.State(), false)
		if err != nil {
			return nil, fmt.Errorf("evaluate: %v", err)
		}
		if err := env.Step(actions); err != nil {
			return nil, fmt.Errorf("evaluate: could not step "+
				"environment: %v", err)
		}
	}
	env.Experiences()

	return env.Summary(), nil
}

// close releases resources held by the environments and policies.
func (l *Local) close() error {
	var firstErr error

	closeIt := func(v interface{}) {
		if closer, ok := v.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	closeIt(l.env)
	if l.evalEnv != nil && l.evalEnv != l.env {
		closeIt(l.evalEnv)
	}
	for _, p := range l.routing.Policies() {
		closeIt(p)
	}
	return firstErr
}
