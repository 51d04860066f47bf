package tasks

import "github.com/zeebo/blake3"

// Snapshot remembers the fingerprint of the last view sent on one connection.
//
// It is owned by a single loop and is not safe for concurrent use.
type Snapshot struct {
	sum [32]byte
	set bool
}

// Update records rendered and reports whether it differs from the previous view.
// The first call always reports a change.
func (s *Snapshot) Update(rendered []byte) bool {
	sum := blake3.Sum256(rendered)
	if s.set && sum == s.sum {
		return false
	}
	s.sum, s.set = sum, true
	return true
}

// Reset forgets the last view so the next one is sent in full.
func (s *Snapshot) Reset() {
	s.sum, s.set = [32]byte{}, false
}
