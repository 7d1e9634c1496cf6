package catalog

import "sync"

// Sequencer hands out monotonically increasing request sequence numbers per
// logical query slot, so rapid filter changes resolve last-write-wins: a
// response is applied only if its sequence is still the latest issued for
// the slot.
type Sequencer struct {
	mu   sync.Mutex
	seqs map[string]uint64
}

func NewSequencer() *Sequencer {
	return &Sequencer{seqs: make(map[string]uint64)}
}

// Begin issues the next sequence number for a slot.
func (s *Sequencer) Begin(slot string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[slot]++
	return s.seqs[slot]
}

// Latest reports whether seq is still the most recently issued sequence for
// the slot. Stale resolutions must be discarded by the caller.
func (s *Sequencer) Latest(slot string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqs[slot] == seq
}
