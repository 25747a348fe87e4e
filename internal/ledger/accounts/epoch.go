package accounts

import "github.com/input-output-hk/acropolis/internal/common"

// PoolRetirement is what the caller (the module wiring, fed from
// internal/ledger/spo's TopicPoolRetired) reports for each pool whose
// scheduled retirement takes effect this boundary.
type PoolRetirement struct {
	Pool          common.PoolId
	RewardAccount common.StakeAddress
}

// ActivePoolInfo is the subset of a pool's current parameters the stake
// distribution aggregation and the Mark snapshot need, supplied by
// internal/ledger/spo's active set at each boundary.
type ActivePoolInfo struct {
	Params         common.PoolParams
	BlocksProduced uint64
}

// EnterEpoch runs the full per-epoch boundary sequence of spec.md §4.9, in
// order: apply the pending reward update, finalise scheduled pool
// retirements, rotate Mark/Set/Go, recompute the deposits pot, and return
// the freshly aggregated stake distributions for SPDD/DRDD.
func (s *State) EnterEpoch(
	nextEpoch uint64,
	rUpd *RewardUpdate,
	retired []PoolRetirement,
	activePools map[common.PoolId]ActivePoolInfo,
	blocksTotal uint64,
	activeProposals int,
) (spdd map[common.PoolId]uint64, drdd map[common.StakeCredential]uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rUpd != nil {
		s.applyRUpdLocked(rUpd)
	}
	for _, r := range retired {
		s.handlePoolRetiredLocked(r.Pool, r.RewardAccount)
	}

	mark := s.buildSnapshotLocked(nextEpoch, activePools, blocksTotal)
	s.goS = s.set
	s.set = s.mark
	s.mark = mark

	s.recomputeDepositsLocked(activeProposals)

	spdd, drdd = s.distributionsLocked(activePools)
	return spdd, drdd
}

func (s *State) applyRUpdLocked(rupd *RewardUpdate) {
	s.pots.Treasury += rupd.DeltaTreasury
	s.pots.Reserves += rupd.DeltaReserves
	s.pots.Fees += rupd.DeltaFees
	for cred, amount := range rupd.Rewards {
		a, ok := s.accounts[cred]
		if !ok || !a.Registered {
			s.pots.Treasury += amount
			continue
		}
		a.Rewards += amount
		s.accounts[cred] = a
	}
}

// recomputeDepositsLocked rebuilds the deposits pot from what was
// actually charged, not from registeredPools/registeredDReps membership:
// a pool or DRep re-registering inside its grace window (see
// CertPoolRegistration) is counted as registered without having paid
// again, so a count*constant recompute would conjure a deposit nobody
// put up.
func (s *State) recomputeDepositsLocked(activeProposals int) {
	var total int64
	for _, a := range s.accounts {
		if a.Registered {
			total += a.StakeDeposit
		}
	}
	for _, amount := range s.poolDeposit {
		total += amount
	}
	for _, amount := range s.drepDeposit {
		total += amount
	}
	total += int64(activeProposals) * s.params.ProposalDeposit
	s.pots.Deposits = total
}

// buildSnapshotLocked aggregates utxo_value+rewards per credential into
// per-pool totals, restricted to accounts that are registered and
// delegated to a pool present in activePools — the stakeDistr
// aggregation spec.md §4.9 names.
func (s *State) buildSnapshotLocked(epoch uint64, activePools map[common.PoolId]ActivePoolInfo, blocksTotal uint64) EpochSnapshot {
	pools := make(map[common.PoolId]PoolSnap, len(activePools))
	for pool, info := range activePools {
		pools[pool] = PoolSnap{
			Delegators:     make(map[common.StakeCredential]int64),
			Pledge:         info.Params.Pledge,
			FixedCost:      info.Params.FixedCost,
			Margin:         info.Params.Margin,
			BlocksProduced: info.BlocksProduced,
			RewardAccount:  info.Params.RewardAccount,
			Owners:         info.Params.Owners,
		}
	}
	for cred, a := range s.accounts {
		if !a.Registered || a.DelegatedSPO == nil {
			continue
		}
		snap, ok := pools[*a.DelegatedSPO]
		if !ok {
			continue
		}
		amount := a.UtxoValue + a.Rewards
		snap.Delegators[cred] = amount
		snap.TotalStake += amount
		pools[*a.DelegatedSPO] = snap
	}
	return EpochSnapshot{Epoch: epoch, Pools: pools, BlocksTotal: blocksTotal, Pots: s.pots}
}

// distributionsLocked builds SPDD (stake per pool) and DRDD (stake per
// DRep) from the current account set, satisfying spec.md §8 property 8:
// the sum across SPDD equals the sum of utxo+rewards over accounts
// registered and delegated to an active pool.
func (s *State) distributionsLocked(activePools map[common.PoolId]ActivePoolInfo) (spdd map[common.PoolId]uint64, drdd map[common.StakeCredential]uint64) {
	spdd = make(map[common.PoolId]uint64)
	drdd = make(map[common.StakeCredential]uint64)
	for _, a := range s.accounts {
		if !a.Registered {
			continue
		}
		amount := a.UtxoValue + a.Rewards
		if amount <= 0 {
			continue
		}
		if a.DelegatedSPO != nil {
			if _, active := activePools[*a.DelegatedSPO]; active {
				spdd[*a.DelegatedSPO] += uint64(amount)
			}
		}
		if a.DelegatedDRep != nil && !a.DelegatedDRep.IsPredefined() && a.DelegatedDRep.Credential != nil {
			drdd[*a.DelegatedDRep.Credential] += uint64(amount)
		}
	}
	return spdd, drdd
}

// Mark, Set, Go return the current snapshot chain, for query handlers and
// the rotation-invariant property test.
func (s *State) Mark() EpochSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mark
}

func (s *State) Set() EpochSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

func (s *State) Go() EpochSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goS
}
