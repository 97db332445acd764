package sequence

import "sync/atomic"

// Sequencer hands out the strictly increasing sequence stamped on
// every durable record. Fresh start begins at zero; after log replay
// it is Reset to the last replayed sequence so numbering continues
// without gaps.
type Sequencer struct {
	last atomic.Uint64
}

func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence, zero if none.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Reset rewinds or fast-forwards the sequencer. Only replay may call
// this; resetting a live sequencer breaks monotonicity.
func (s *Sequencer) Reset(v uint64) {
	s.last.Store(v)
}
