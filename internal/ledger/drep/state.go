// Package drep implements the delegated representative state module of
// spec.md §4.7: registration/retirement bookkeeping and the per-epoch
// active DRep set.
//
// Grounded on the same storage.Storage method-per-operation shape as
// internal/ledger/spo; DReps have no scheduled-retirement delay (a DRep
// deregistration certificate takes effect immediately, unlike a pool
// retirement), so State has no retiring table.
package drep

import (
	"sync"

	"github.com/input-output-hk/acropolis/internal/common"
)

// Entry is a registered DRep's current state.
type Entry struct {
	Anchor *common.DRepAnchor
}

// State owns the registered DRep table.
type State struct {
	mu         sync.RWMutex
	registered map[common.StakeCredential]Entry
}

// New constructs an empty DRep state.
func New() *State {
	return &State{registered: make(map[common.StakeCredential]Entry)}
}

// NewlyRegistered reports whether drep is not already registered, for the
// accounts module's deposit-recharge decision.
func (s *State) NewlyRegistered(drep common.StakeCredential) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registered[drep]
	return !ok
}

// ApplyCertificate applies a DRep registration, update, or deregistration
// certificate in tx order.
func (s *State) ApplyCertificate(cert common.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cert.Kind {
	case common.CertDRepRegistration, common.CertDRepUpdate:
		s.registered[cert.DRep] = Entry{Anchor: cert.DRepAnchor}
	case common.CertDRepDeregistration:
		delete(s.registered, cert.DRep)
	}
}

// ActiveSet returns a snapshot of every currently registered DRep, for
// drep.state.
func (s *State) ActiveSet() map[common.StakeCredential]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[common.StakeCredential]Entry, len(s.registered))
	for k, v := range s.registered {
		out[k] = v
	}
	return out
}
