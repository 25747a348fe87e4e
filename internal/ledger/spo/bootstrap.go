package spo

import "github.com/input-output-hk/acropolis/internal/common"

// Bootstrap installs a pool registration directly, for snapshot and
// genesis replay rather than certificate application: no deposit
// accounting or retirement bookkeeping is touched, matching
// internal/ledger/utxo.State.Bootstrap's contract.
func (s *State) Bootstrap(pool common.PoolId, params common.PoolParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[pool] = params
}
