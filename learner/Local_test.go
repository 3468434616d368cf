package learner

import (
	"fmt"
	"testing"

	"github.com/samuelfneumann/gorl/environment"
	"github.com/samuelfneumann/gorl/experience"
	"github.com/samuelfneumann/gorl/exploration"
	"github.com/samuelfneumann/gorl/policy"
	"gonum.org/v1/gonum/mat"
)

// fakeEnv is a scripted environment whose episodes last a fixed
// number of steps. It records how the learner drives it.
type fakeEnv struct {
	agents       []string
	episodeSteps int

	step         int
	started      bool
	sinceHarvest int

	resets   int
	segments []int // steps harvested per Experiences call
	metrics  []float64
	metric   float64
	closed   bool
}

var _ environment.Wrapper = (*fakeEnv)(nil)

func newFakeEnv(agents []string, episodeSteps int) *fakeEnv {
	return &fakeEnv{agents: agents, episodeSteps: episodeSteps}
}

func (f *fakeEnv) Reset() {
	f.step = 0
	f.sinceHarvest = 0
	f.started = false
	f.resets++
}

func (f *fakeEnv) Start() error {
	f.started = true
	return nil
}

func (f *fakeEnv) State() map[string]mat.Vector {
	states := make(map[string]mat.Vector)
	if !f.started || f.step >= f.episodeSteps {
		return states
	}
	for _, agent := range f.agents {
		states[agent] = mat.NewVecDense(1, []float64{float64(f.step)})
	}
	return states
}

func (f *fakeEnv) Step(actions map[string]mat.Vector) error {
	if len(actions) != len(f.agents) {
		return fmt.Errorf("step: unexpected action count \n\twant(%v) "+
			"\n\thave(%v)", len(f.agents), len(actions))
	}
	f.step++
	f.sinceHarvest++
	return nil
}

func (f *fakeEnv) StepIndex() int { return f.step }

func (f *fakeEnv) Summary() map[string]float64 {
	metric := f.metric
	if len(f.metrics) > 0 {
		metric = f.metrics[0]
		f.metrics = f.metrics[1:]
	}
	return map[string]float64{"total_reward": metric}
}

func (f *fakeEnv) Experiences() map[string]*experience.Batch {
	f.segments = append(f.segments, f.sinceHarvest)
	byAgent := make(map[string]*experience.Batch, len(f.agents))
	for _, agent := range f.agents {
		batch := experience.NewBatch(f.sinceHarvest)
		for i := 0; i < f.sinceHarvest; i++ {
			v := mat.NewVecDense(1, []float64{float64(i)})
			batch.Add(experience.Transition{
				State:     v,
				Action:    v,
				Reward:    1,
				NextState: v,
			})
		}
		byAgent[agent] = batch
	}
	f.sinceHarvest = 0
	return byAgent
}

func (f *fakeEnv) Close() error {
	f.closed = true
	return nil
}

// fakePolicy records learning calls and refuses to learn in
// evaluation mode.
type fakePolicy struct {
	name       string
	eval       bool
	learnCalls int
	learned    []int // batch sizes seen
}

func (f *fakePolicy) Name() string { return f.name }

func (f *fakePolicy) ChooseAction(obs mat.Vector) (mat.Vector, error) {
	return mat.NewVecDense(1, []float64{0}), nil
}

func (f *fakePolicy) OnExperiences(batch *experience.Batch) error {
	if f.eval {
		return fmt.Errorf("onExperiences: policy in evaluation mode")
	}
	f.learnCalls++
	f.learned = append(f.learned, batch.Size())
	return nil
}

func (f *fakePolicy) Eval()        { f.eval = true }
func (f *fakePolicy) Train()       { f.eval = false }
func (f *fakePolicy) IsEval() bool { return f.eval }

// fakeScheme counts anneal steps and applications.
type fakeScheme struct {
	steps   int
	applies int
}

func (f *fakeScheme) Apply(action mat.Vector) mat.Vector {
	f.applies++
	return action
}

func (f *fakeScheme) Step() { f.steps++ }

func (f *fakeScheme) Parameters() map[string]float64 {
	return map[string]float64{"steps": float64(f.steps)}
}

// recordingTracker records tracked metrics in order.
type recordingTracker struct {
	episodes []int
	metrics  []float64
}

func (r *recordingTracker) Track(episode int, metric float64) {
	r.episodes = append(r.episodes, episode)
	r.metrics = append(r.metrics, metric)
}

func testRouting(t *testing.T, p *fakePolicy,
	scheme exploration.Scheme) *Routing {
	t.Helper()

	schemes := map[string]exploration.Scheme{}
	agentToScheme := map[string]string{}
	if scheme != nil {
		schemes["eps"] = scheme
		agentToScheme["agent0"] = "eps"
	}

	routing, err := NewRouting([]policy.Policy{p},
		map[string]string{"agent0": p.Name()}, schemes, agentToScheme)
	if err != nil {
		t.Fatalf("could not create routing: %v", err)
	}
	return routing
}

func TestLocalEvaluatesOnSchedule(t *testing.T) {
	env := newFakeEnv([]string{"agent0"}, 4)
	evalEnv := newFakeEnv([]string{"agent0"}, 4)
	p := &fakePolicy{name: "ac"}
	routing := testRouting(t, p, nil)

	schedule, err := NewExplicitSchedule(5, []int{2, 4})
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}

	local, err := NewLocal(env, routing, 5, -1, schedule, "total_reward")
	if err != nil {
		t.Fatalf("could not create learner: %v", err)
	}
	local.SetEvalEnv(evalEnv)

	tracker := &recordingTracker{}
	local.Register(tracker)

	if err := local.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if env.resets != 5 {
		t.Errorf("unexpected training episodes \n\twant(5) \n\thave(%v)",
			env.resets)
	}
	if evalEnv.resets != schedule.Len() {
		t.Errorf("unexpected evaluations \n\twant(%v) \n\thave(%v)",
			schedule.Len(), evalEnv.resets)
	}
	if !schedulesEqual(tracker.episodes, []int{2, 4, 5}) {
		t.Errorf("unexpected tracked episodes \n\twant([2 4 5]) "+
			"\n\thave(%v)", tracker.episodes)
	}
	if !env.closed || !evalEnv.closed {
		t.Error("environments were not closed after the run")
	}
}

func TestLocalSegmentBudget(t *testing.T) {
	env := newFakeEnv([]string{"agent0"}, 10)
	p := &fakePolicy{name: "ac"}
	routing := testRouting(t, p, nil)

	schedule, err := NewFinalSchedule(1)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}

	local, err := NewLocal(env, routing, 1, 3, schedule, "total_reward")
	if err != nil {
		t.Fatalf("could not create learner: %v", err)
	}
	local.SetEvalEnv(newFakeEnv([]string{"agent0"}, 1))

	if err := local.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !schedulesEqual(env.segments, []int{3, 3, 3, 1}) {
		t.Errorf("unexpected segment sizes \n\twant([3 3 3 1]) "+
			"\n\thave(%v)", env.segments)
	}
	if !schedulesEqual(p.learned, []int{3, 3, 3, 1}) {
		t.Errorf("unexpected learned batch sizes \n\twant([3 3 3 1]) "+
			"\n\thave(%v)", p.learned)
	}
}

func TestLocalUnboundedSegment(t *testing.T) {
	env := newFakeEnv([]string{"agent0"}, 10)
	p := &fakePolicy{name: "ac"}
	routing := testRouting(t, p, nil)

	schedule, err := NewFinalSchedule(1)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}

	local, err := NewLocal(env, routing, 1, -1, schedule, "total_reward")
	if err != nil {
		t.Fatalf("could not create learner: %v", err)
	}
	local.SetEvalEnv(newFakeEnv([]string{"agent0"}, 1))

	if err := local.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !schedulesEqual(env.segments, []int{10}) {
		t.Errorf("unexpected segment sizes \n\twant([10]) \n\thave(%v)",
			env.segments)
	}
}

func TestLocalExplorationSteps(t *testing.T) {
	env := newFakeEnv([]string{"agent0"}, 4)
	evalEnv := newFakeEnv([]string{"agent0"}, 4)
	p := &fakePolicy{name: "ac"}
	scheme := &fakeScheme{}
	routing := testRouting(t, p, scheme)

	schedule, err := NewIntervalSchedule(3, 1)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}

	local, err := NewLocal(env, routing, 3, -1, schedule, "total_reward")
	if err != nil {
		t.Fatalf("could not create learner: %v", err)
	}
	local.SetEvalEnv(evalEnv)

	if err := local.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// The scheme anneals once per training episode. Evaluation never
	// steps nor applies it.
	if scheme.steps != 3 {
		t.Errorf("unexpected exploration steps \n\twant(3) \n\thave(%v)",
			scheme.steps)
	}
	if scheme.applies != 3*4 {
		t.Errorf("unexpected exploration applications \n\twant(12) "+
			"\n\thave(%v)", scheme.applies)
	}
}

func TestLocalEarlyStop(t *testing.T) {
	env := newFakeEnv([]string{"agent0"}, 2)
	evalEnv := newFakeEnv([]string{"agent0"}, 2)
	evalEnv.metrics = []float64{5, 4, 3, 2}
	p := &fakePolicy{name: "ac"}
	routing := testRouting(t, p, nil)

	schedule, err := NewIntervalSchedule(10, 1)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}
	stopper, err := NewNoImprovement(1)
	if err != nil {
		t.Fatalf("could not create early stopper: %v", err)
	}

	local, err := NewLocal(env, routing, 10, -1, schedule, "total_reward")
	if err != nil {
		t.Fatalf("could not create learner: %v", err)
	}
	local.SetEvalEnv(evalEnv)
	local.SetEarlyStopper(stopper)

	if err := local.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// The metric drops on the second evaluation, so training stops
	// after two episodes instead of ten.
	if env.resets != 2 {
		t.Errorf("unexpected training episodes \n\twant(2) \n\thave(%v)",
			env.resets)
	}
	if evalEnv.resets != 2 {
		t.Errorf("unexpected evaluations \n\twant(2) \n\thave(%v)",
			evalEnv.resets)
	}
}

func TestLocalZeroEpisodes(t *testing.T) {
	env := newFakeEnv([]string{"agent0"}, 2)
	evalEnv := newFakeEnv([]string{"agent0"}, 2)
	p := &fakePolicy{name: "ac"}
	routing := testRouting(t, p, nil)

	schedule, err := NewFinalSchedule(0)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}

	local, err := NewLocal(env, routing, 0, -1, schedule, "total_reward")
	if err != nil {
		t.Fatalf("could not create learner: %v", err)
	}
	local.SetEvalEnv(evalEnv)

	tracker := &recordingTracker{}
	local.Register(tracker)

	if err := local.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if env.resets != 0 {
		t.Errorf("unexpected training episodes \n\twant(0) \n\thave(%v)",
			env.resets)
	}
	if evalEnv.resets != 0 {
		t.Errorf("unexpected evaluations \n\twant(0) \n\thave(%v)",
			evalEnv.resets)
	}
	if len(tracker.episodes) != 0 {
		t.Errorf("unexpected tracked episodes \n\twant([]) \n\thave(%v)",
			tracker.episodes)
	}
}

func TestLocalMissingMetric(t *testing.T) {
	env := newFakeEnv([]string{"agent0"}, 2)
	p := &fakePolicy{name: "ac"}
	routing := testRouting(t, p, nil)

	schedule, err := NewFinalSchedule(1)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}

	local, err := NewLocal(env, routing, 1, -1, schedule, "no_such_metric")
	if err != nil {
		t.Fatalf("could not create learner: %v", err)
	}

	if err := local.Run(); err == nil {
		t.Error("expected error for metric absent from summary")
	}
}

func TestNewLocalConfig(t *testing.T) {
	env := newFakeEnv([]string{"agent0"}, 2)
	p := &fakePolicy{name: "ac"}
	routing := testRouting(t, p, nil)
	schedule, err := NewFinalSchedule(1)
	if err != nil {
		t.Fatalf("could not create schedule: %v", err)
	}

	if _, err := NewLocal(env, routing, 1, 0, schedule,
		"total_reward"); err == nil {
		t.Error("expected error for zero steps per segment")
	}
	if _, err := NewLocal(env, routing, 1, -2, schedule,
		"total_reward"); err == nil {
		t.Error("expected error for invalid steps per segment")
	}
	if _, err := NewLocal(env, routing, -1, -1, schedule,
		"total_reward"); err == nil {
		t.Error("expected error for negative episodes")
	}
	if _, err := NewLocal(env, routing, 1, -1, schedule, ""); err == nil {
		t.Error("expected error for empty metric key")
	}
	if _, err := NewLocal(nil, routing, 1, -1, schedule,
		"total_reward"); err == nil {
		t.Error("expected error for missing environment")
	}
}

func TestRoutingValidation(t *testing.T) {
	p := &fakePolicy{name: "ac"}

	if _, err := NewRouting([]policy.Policy{p},
		map[string]string{"agent0": "missing"}, nil, nil); err == nil {
		t.Error("expected error for agent routed to unregistered policy")
	}

	if _, err := NewRouting([]policy.Policy{p, &fakePolicy{name: "ac"}},
		map[string]string{"agent0": "ac"}, nil, nil); err == nil {
		t.Error("expected error for duplicate policy names")
	}

	schemes := map[string]exploration.Scheme{"eps": &fakeScheme{}}
	if _, err := NewRouting([]policy.Policy{p},
		map[string]string{"agent0": "ac"}, schemes,
		map[string]string{"agent1": "eps"}); err == nil {
		t.Error("expected error for scheme-routed agent without a policy")
	}
	if _, err := NewRouting([]policy.Policy{p},
		map[string]string{"agent0": "ac"}, schemes,
		map[string]string{"agent0": "soft"}); err == nil {
		t.Error("expected error for agent routed to unregistered scheme")
	}

	routing, err := NewRouting([]policy.Policy{p},
		map[string]string{"agent0": "ac"}, schemes,
		map[string]string{"agent0": "eps"})
	if err != nil {
		t.Fatalf("could not create routing: %v", err)
	}
	if _, err := routing.Policy("agent1"); err == nil {
		t.Error("expected error for unrouted agent")
	}
}
