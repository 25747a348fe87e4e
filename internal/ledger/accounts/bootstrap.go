package accounts

import "github.com/input-output-hk/acropolis/internal/common"

// BootstrapData is everything a snapshot or genesis replay needs to
// install directly into accounts state, bypassing certificate application
// and epoch-transition bookkeeping entirely.
type BootstrapData struct {
	Pots            Pots
	Accounts        map[common.StakeCredential]StakeAccount
	RegisteredPools map[common.PoolId]bool
	RegisteredDReps map[common.StakeCredential]bool
	Mark            EpochSnapshot
	Set             EpochSnapshot
	Go              EpochSnapshot
	PendingRUpd     *RewardUpdate
}

// Bootstrap replaces every piece of accounts state BootstrapData carries.
// It is only valid against freshly-constructed state (via New), before any
// certificate or block has been applied, matching
// internal/ledger/utxo.State.Bootstrap's contract.
func (s *State) Bootstrap(data BootstrapData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pots = data.Pots

	s.accounts = make(map[common.StakeCredential]StakeAccount, len(data.Accounts))
	for cred, a := range data.Accounts {
		s.accounts[cred] = a
	}

	s.registeredPools = make(map[common.PoolId]bool, len(data.RegisteredPools))
	for pool, v := range data.RegisteredPools {
		s.registeredPools[pool] = v
	}

	s.registeredDReps = make(map[common.StakeCredential]bool, len(data.RegisteredDReps))
	for cred, v := range data.RegisteredDReps {
		s.registeredDReps[cred] = v
	}

	s.mark = data.Mark
	s.set = data.Set
	s.goS = data.Go
	s.pendingRUpd = data.PendingRUpd
}
