// Package accounts implements the accounts state and reward engine of
// spec.md §4.9, the largest single subcomponent: stake-address balances,
// pots, Mark/Set/Go snapshot rotation, and the Shelley/Conway reward
// calculation (createRUpd/applyRUpd).
//
// Grounded on spec §4.9's pseudocode directly; no teacher file covers
// anything like this, so the package shape (one State struct, one method
// per per-block duty, EnterEpoch driving the boundary sequence) follows
// the same method-per-operation idiom the smaller ledger packages use.
package accounts

import "github.com/input-output-hk/acropolis/internal/common"

// StakeAccount is the per-credential state spec.md §3 names.
type StakeAccount struct {
	UtxoValue     int64
	Rewards       int64
	Registered    bool
	DelegatedSPO  *common.PoolId
	DelegatedDRep *common.DRepChoice
	StakeDeposit  int64
}

// Pots are the four system-wide lovelace accumulators. Their sum plus the
// sum of UTXO values and rewards is invariant (spec.md §8 property 1).
type Pots struct {
	Reserves int64
	Treasury int64
	Deposits int64
	Fees     int64
}

// PoolSnap is one pool's state as captured into an epoch snapshot.
type PoolSnap struct {
	Delegators                   map[common.StakeCredential]int64 // utxo_value + rewards at capture time
	TotalStake                   int64
	Pledge                       int64
	FixedCost                    int64
	Margin                       float64
	BlocksProduced                uint64
	RewardAccount                common.StakeAddress
	Owners                        []common.StakeCredential
	RewardAccountRegisteredTwoBack bool
}

// EpochSnapshot is one of Mark, Set, or Go.
type EpochSnapshot struct {
	Epoch               uint64
	Pools               map[common.PoolId]PoolSnap
	BlocksTotal         uint64
	Pots                Pots
	RegistrationChanges int
}

// RewardUpdate is the pending Δ computed by createRUpd during epoch e, to
// be applied by applyRUpd semantics at the e -> e+1 boundary.
type RewardUpdate struct {
	DeltaTreasury int64
	DeltaReserves int64
	DeltaFees     int64
	Rewards       map[common.StakeCredential]int64
}
