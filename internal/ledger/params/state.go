// Package params implements the protocol parameters state module of
// spec.md §4.8: current and previous parameter sets, updated by enacted
// parameter-change governance actions at each epoch boundary.
//
// Grounded on spec §4.8 directly; the module shape (current/previous pair,
// a single ApplyUpdate entry point) follows the same small-state,
// method-per-operation idiom as internal/ledger/spo.
package params

import "sync"

// Protocol holds the subset of Cardano protocol parameters the ledger core
// needs directly (deposit amounts feed accounts; the rest are opaque to
// the core and passed through to Phase 2/REST as a blob).
type Protocol struct {
	KeyDeposit      int64
	PoolDeposit     int64
	DRepDeposit     int64
	ProposalDeposit int64
	OptimalPoolCount uint64  // n_opt
	PoolPledgeInfluence float64 // a0
	MonetaryExpansion   float64 // rho
	TreasuryCut         float64 // tau
	DecentralisationParam float64 // d, 0 in Conway
	Opaque          map[string]any // every other parameter, carried but not interpreted here
}

// State holds the current parameter set plus the previous one, for
// components (e.g. query handlers) that need to know what changed across
// the last boundary.
type State struct {
	mu       sync.RWMutex
	current  Protocol
	previous Protocol
}

// New constructs parameter state seeded with the genesis protocol
// parameters.
func New(genesis Protocol) *State {
	return &State{current: genesis, previous: genesis}
}

// Current returns the active parameter set.
func (s *State) Current() Protocol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ApplyUpdate installs next as the parameter set effective from the next
// epoch boundary, as derived by governance state from an enacted
// parameter-change action.
func (s *State) ApplyUpdate(next Protocol) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = s.current
	s.current = next
}
