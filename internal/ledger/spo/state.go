// Package spo implements the stake pool operator state module of
// spec.md §4.7: registration/retirement bookkeeping and the per-epoch
// active pool set.
//
// Grounded on the teacher's (blinklabs-io/shai) storage.Storage
// method-per-operation shape, generalised from a single Badger-backed map
// to the registered/retiring pair spec.md §4.7 names.
package spo

import (
	"sync"

	"github.com/input-output-hk/acropolis/internal/common"
)

// RetiredPool is what State reports at the epoch boundary for each pool
// whose scheduled retirement has arrived, so the accounts module can
// refund the deposit to the right place.
type RetiredPool struct {
	Pool          common.PoolId
	RewardAccount common.StakeAddress
}

// State owns the registered/retiring pool tables.
type State struct {
	mu       sync.RWMutex
	registered map[common.PoolId]common.PoolParams
	retiring   map[common.PoolId]uint64 // pool -> epoch at which retirement takes effect
}

// New constructs an empty SPO state.
func New() *State {
	return &State{
		registered: make(map[common.PoolId]common.PoolParams),
		retiring:   make(map[common.PoolId]uint64),
	}
}

// NewlyRegistered reports whether pool is not currently registered. Pools
// that retired in the past are not tracked here, so a retired pool reports
// true again.
func (s *State) NewlyRegistered(pool common.PoolId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, already := s.registered[pool]
	return !already
}

// ApplyCertificate applies a pool registration or retirement certificate
// in tx order. A registration after a prior registration updates
// parameters without affecting deposit accounting (internal/ledger/accounts
// decides that from its own registered and just-retired pool sets); it
// also cancels any pending retirement. Certificates of other kinds are ignored.
func (s *State) ApplyCertificate(cert common.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cert.Kind {
	case common.CertPoolRegistration:
		s.registered[cert.Pool] = cert.PoolParams
		delete(s.retiring, cert.Pool)
	case common.CertPoolRetirement:
		if _, ok := s.registered[cert.Pool]; ok {
			s.retiring[cert.Pool] = cert.RetiringEpoch
		}
	}
}

// EnterEpoch finalises every pool whose scheduled retirement is epoch,
// removing it from the registered set and returning its reward account
// for the deposit refund. Finalised pools are not added to any
// just-retired set here; that bookkeeping (needed for deposit-recharge
// suppression on re-registration before retirement, per spec.md §4.9) is
// owned by the accounts module, which receives this same event.
func (s *State) EnterEpoch(epoch uint64) []RetiredPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var retired []RetiredPool
	for pool, at := range s.retiring {
		if at != epoch {
			continue
		}
		params := s.registered[pool]
		delete(s.registered, pool)
		delete(s.retiring, pool)
		retired = append(retired, RetiredPool{Pool: pool, RewardAccount: params.RewardAccount})
	}
	return retired
}

// ActiveSet returns a snapshot of every currently registered pool's
// parameters, for spo.state.
func (s *State) ActiveSet() map[common.PoolId]common.PoolParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[common.PoolId]common.PoolParams, len(s.registered))
	for k, v := range s.registered {
		out[k] = v
	}
	return out
}
