package learner

import "fmt"

// EarlyStopper decides when training should halt based on the stream
// of evaluation metrics. Push records a new metric, Stop reports
// whether training should end.
type EarlyStopper interface {
	Push(metric float64)
	Stop() bool
}

// NoImprovement stops training when the evaluation metric has not
// improved over its best observed value for a fixed number of
// consecutive evaluations.
type NoImprovement struct {
	patience  int
	best      float64
	sinceBest int
	observed  bool
}

// NewNoImprovement returns a new NoImprovement early stopper with the
// given patience. Patience is the number of consecutive
// non-improving evaluations tolerated before stopping.
func NewNoImprovement(patience int) (*NoImprovement, error) {
	if patience < 1 {
		return nil, fmt.Errorf("newNoImprovement: patience must be "+
			"positive \n\thave(%v)", patience)
	}
	return &NoImprovement{patience: patience}, nil
}

// Push records an evaluation metric.
func (n *NoImprovement) Push(metric float64) {
	if !n.observed || metric > n.best {
		n.best = metric
		n.sinceBest = 0
		n.observed = true
		return
	}
	n.sinceBest++
}

// Stop returns whether training should halt.
func (n *NoImprovement) Stop() bool {
	return n.observed && n.sinceBest >= n.patience
}
