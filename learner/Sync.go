package learner

import (
	"fmt"
	"sort"
	"time"

	"github.com/samuelfneumann/gorl/experience"
	"github.com/samuelfneumann/progressbar"
)

// PolicyManager owns the trainable policies for a synchronous
// learner. It hands out policy state snapshots for rollout workers
// and consumes the experience they gather.
type PolicyManager interface {
	// GetState returns a snapshot of every policy's learnable state,
	// keyed by policy name. Only policies updated since the last
	// ResetUpdateStatus call are included, so unchanged policies
	// need not be re-shipped.
	GetState() map[string][]float64

	// ResetUpdateStatus marks all policies as unchanged.
	ResetUpdateStatus()

	// Version returns the current policy version. The version
	// increments whenever a policy learns from experience.
	Version() int

	// OnExperiences updates the policies from experience keyed by
	// policy name.
	OnExperiences(byPolicy map[string]*experience.Batch) error
}

// RolloutManager gathers experience and evaluation results on behalf
// of a synchronous learner. A local implementation steps an
// environment in-process; a distributed one would fan segments out
// to remote workers. The rollout side owns the agent-to-policy
// grouping, so the experience it hands back can feed a PolicyManager
// directly.
type RolloutManager interface {
	// Reset prepares the manager for a new training episode.
	Reset() error

	// EpisodeComplete returns whether the current training episode
	// has ended.
	EpisodeComplete() bool

	// Collect gathers one segment of experience for the given
	// episode using the given policy state snapshot, returning the
	// experience keyed by policy name.
	Collect(ep, segment int, policyState map[string][]float64,
		version int) (map[string]*experience.Batch, error)

	// Evaluate runs one greedy episode with the given policy state
	// and returns the evaluation metric keyed by environment name.
	Evaluate(ep int, policyState map[string][]float64) (map[string]float64,
		error)
}

// Learner drives training through a PolicyManager and a
// RolloutManager instead of stepping an environment directly. Each
// segment ships the latest policy state to the rollout side, gathers
// the experience it produces, and feeds it back to the policy side.
// Scheduling, tracking, and early stopping behave exactly as in
// Local.
type Learner struct {
	policyManager  PolicyManager
	rolloutManager RolloutManager

	numEpisodes int

	schedule *Schedule
	stopper  EarlyStopper
	trackers []Tracker
}

// NewLearner creates and returns a new synchronous Learner.
func NewLearner(policyManager PolicyManager, rolloutManager RolloutManager,
	numEpisodes int, schedule *Schedule) (*Learner, error) {
	if policyManager == nil {
		return nil, fmt.Errorf("newLearner: no policy manager given")
	}
	if rolloutManager == nil {
		return nil, fmt.Errorf("newLearner: no rollout manager given")
	}
	if numEpisodes < 0 {
		return nil, fmt.Errorf("newLearner: episodes must be non-negative "+
			"\n\thave(%v)", numEpisodes)
	}
	if schedule == nil {
		return nil, fmt.Errorf("newLearner: no evaluation schedule given")
	}

	return &Learner{
		policyManager:  policyManager,
		rolloutManager: rolloutManager,
		numEpisodes:    numEpisodes,
		schedule:       schedule,
	}, nil
}

// SetEarlyStopper sets the early stopper consulted after each
// evaluation.
func (l *Learner) SetEarlyStopper(stopper EarlyStopper) { l.stopper = stopper }

// Register registers a tracker to receive evaluation metrics.
func (l *Learner) Register(t Tracker) { l.trackers = append(l.trackers, t) }

// Run runs the full training loop, halting after all episodes or on
// early stop. Managers that implement Closer are closed when Run
// returns.
func (l *Learner) Run() (err error) {
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

		metrics, err := l.rolloutManager.Evaluate(ep,
			l.policyManager.GetState())
		if err != nil {
			return fmt.Errorf("run: could not evaluate at episode %v: %v",
				ep, err)
		}

		names := make([]string, 0, len(metrics))
		for name := range metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			metric := metrics[name]
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
	}
	return nil
}

// train runs a single training episode segment by segment: ship the
// latest policy state, collect a segment of experience, then learn
// from it.
func (l *Learner) train(ep int) error {
	if err := l.rolloutManager.Reset(); err != nil {
		return fmt.Errorf("train: could not reset rollout: %v", err)
	}

	for segment := 0; !l.rolloutManager.EpisodeComplete(); segment++ {
		state := l.policyManager.GetState()
		version := l.policyManager.Version()
		l.policyManager.ResetUpdateStatus()

		byPolicy, err := l.rolloutManager.Collect(ep, segment, state,
			version)
		if err != nil {
			return fmt.Errorf("train: could not collect segment %v: %v",
				segment, err)
		}
		if err := l.policyManager.OnExperiences(byPolicy); err != nil {
			return fmt.Errorf("train: policies could not learn: %v", err)
		}
	}
	return nil
}

// close releases resources held by the managers.
func (l *Learner) close() error {
	var firstErr error
	for _, v := range []interface{}{l.policyManager, l.rolloutManager} {
		if closer, ok := v.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
