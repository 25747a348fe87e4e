// Package epochs implements the epoch state module of spec.md §4.9/§13:
// per-epoch fee totals, block-production counts per pool, and the epoch's
// VRF nonce, plus the clock that drives every other module's epoch
// boundary.
//
// Grounded on spec §4.9's "schedule reward calculation... using Mark for
// performance (blocks produced)" — this module is the one that counts
// blocks produced per pool within an epoch, which Mark then captures at
// the boundary.
package epochs

import (
	"sync"

	"github.com/input-output-hk/acropolis/internal/common"
)

// Counters accumulates one epoch's per-block-applied totals.
type Counters struct {
	Epoch           uint64
	Fees            int64
	BlocksProduced  map[common.PoolId]uint64
	Nonce           common.Hash32
}

// State tracks the epoch currently being accumulated.
type State struct {
	mu      sync.Mutex
	current Counters
}

// New constructs epoch state starting at epoch 0.
func New() *State {
	return &State{current: freshCounters(0)}
}

func freshCounters(epoch uint64) Counters {
	return Counters{Epoch: epoch, BlocksProduced: make(map[common.PoolId]uint64)}
}

// ApplyBlock folds one block's fee total and producing pool into the
// epoch currently being accumulated.
func (s *State) ApplyBlock(fee int64, producer common.PoolId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Fees += fee
	s.current.BlocksProduced[producer]++
}

// EnterEpoch closes out the epoch being accumulated, returning its final
// counters, and starts a fresh one for the next epoch.
func (s *State) EnterEpoch(nextEpoch uint64, nonce common.Hash32) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	closed := s.current
	s.current = freshCounters(nextEpoch)
	s.current.Nonce = nonce
	return closed
}

// Current returns a snapshot of the in-progress epoch's counters.
func (s *State) Current() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.current
	out.BlocksProduced = make(map[common.PoolId]uint64, len(s.current.BlocksProduced))
	for k, v := range s.current.BlocksProduced {
		out.BlocksProduced[k] = v
	}
	return out
}
