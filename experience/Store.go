package experience

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// OverwriteType determines which transitions are evicted when a full
// Store receives new data.
type OverwriteType string

const (
	// Rolling evicts the oldest transitions first
	Rolling OverwriteType = "rolling"

	// Random evicts uniformly randomly chosen transitions
	Random OverwriteType = "random"
)

// StoreConfig describes the capacity and overwrite behaviour of a
// Store.
type StoreConfig struct {
	Capacity  int
	Overwrite OverwriteType
}

// Validate returns an error describing why the configuration is
// invalid, or nil if it is valid.
func (c StoreConfig) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("validate: capacity must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.Capacity)
	}
	switch c.Overwrite {
	case Rolling, Random:
	default:
		return fmt.Errorf("validate: unknown overwrite type %v", c.Overwrite)
	}
	return nil
}

// Store is a bounded buffer of transitions. Once the capacity is
// reached, new transitions overwrite old ones according to the
// configured OverwriteType.
type Store struct {
	transitions []Transition
	capacity    int
	overwrite   OverwriteType
	next        int // next rolling overwrite position
	rng         *rand.Rand
}

// NewStore creates and returns a new Store described by config.
func NewStore(config StoreConfig, seed uint64) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("newStore: %v", err)
	}
	return &Store{
		transitions: make([]Transition, 0, config.Capacity),
		capacity:    config.Capacity,
		overwrite:   config.Overwrite,
		rng:         rand.New(rand.NewSource(seed)),
	}, nil
}

// Size returns the number of transitions currently held.
func (s *Store) Size() int {
	return len(s.transitions)
}

// Capacity returns the maximum number of transitions the Store holds.
func (s *Store) Capacity() int {
	return s.capacity
}

// Put adds all transitions in the Batch to the Store, overwriting old
// transitions if the Store is full.
func (s *Store) Put(b *Batch) error {
	if b == nil {
		return nil
	}
	for i := 0; i < b.Size(); i++ {
		s.add(b.At(i))
	}
	return nil
}

func (s *Store) add(t Transition) {
	if len(s.transitions) < s.capacity {
		s.transitions = append(s.transitions, t)
		return
	}

	switch s.overwrite {
	case Rolling:
		s.transitions[s.next] = t
		s.next = (s.next + 1) % s.capacity
	case Random:
		s.transitions[s.rng.Intn(s.capacity)] = t
	}
}

// SamplerConfig describes how batches are drawn from a Store. A
// BatchSize of -1 means the whole Store is returned on each call.
type SamplerConfig struct {
	BatchSize int
	Replace   bool
}

// Validate returns an error describing why the configuration is
// invalid, or nil if it is valid.
func (c SamplerConfig) Validate() error {
	if c.BatchSize == 0 || c.BatchSize < -1 {
		return fmt.Errorf("validate: batch size must be positive or -1 "+
			"\n\thave(%v)", c.BatchSize)
	}
	return nil
}

// UniformSampler draws uniformly random batches from a Store.
type UniformSampler struct {
	store     *Store
	batchSize int
	replace   bool
	rng       *rand.Rand
}

// NewUniformSampler creates and returns a new UniformSampler over the
// given Store.
func NewUniformSampler(store *Store, config SamplerConfig,
	seed uint64) (*UniformSampler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("newUniformSampler: %v", err)
	}
	return &UniformSampler{
		store:     store,
		batchSize: config.BatchSize,
		replace:   config.Replace,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// BatchSize returns the number of transitions returned by Sample. A
// return of -1 means the full Store contents are returned.
func (u *UniformSampler) BatchSize() int {
	return u.batchSize
}

// Sample draws one batch from the underlying Store. Sampling from an
// empty Store is an error.
func (u *UniformSampler) Sample() (*Batch, error) {
	n := u.store.Size()
	if n == 0 {
		return nil, fmt.Errorf("sample: store is empty")
	}

	if u.batchSize == -1 {
		batch := NewBatch(n)
		for i := 0; i < n; i++ {
			batch.Add(u.store.transitions[i])
		}
		return batch, nil
	}

	if !u.replace && u.batchSize > n {
		return nil, fmt.Errorf("sample: cannot sample %v transitions "+
			"without replacement from store of size %v", u.batchSize, n)
	}

	batch := NewBatch(u.batchSize)
	if u.replace {
		for i := 0; i < u.batchSize; i++ {
			batch.Add(u.store.transitions[u.rng.Intn(n)])
		}
	} else {
		for _, i := range u.rng.Perm(n)[:u.batchSize] {
			batch.Add(u.store.transitions[i])
		}
	}
	return batch, nil
}
