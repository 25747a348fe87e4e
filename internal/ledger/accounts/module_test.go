package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
)

func TestPoolStakeFromGoSplitsOwnersFromMembers(t *testing.T) {
	owner := cred(1)
	member := cred(2)
	snap := PoolSnap{
		Delegators: map[common.StakeCredential]int64{owner: 300, member: 700},
		Owners:     []common.StakeCredential{owner},
	}
	ownerStake, members := poolStakeFromGo(snap)
	assert.Equal(t, int64(300), ownerStake)
	assert.Equal(t, map[common.StakeCredential]int64{member: 700}, members)
}

// TestComputeNextRewardUpdateUsesGoSnapshotStake pins the fix for the
// reward engine silently zeroing every pool's stake: with a populated Go
// snapshot behind it, computeNextRewardUpdate must feed CreateRUpd the
// pool's real stake, not hardcoded zeros.
func TestComputeNextRewardUpdateUsesGoSnapshotStake(t *testing.T) {
	s := New(1_000_000_000_000, deposits())
	owner := cred(1)
	member := cred(2)
	rewardAcct := common.StakeAddress{Credential: cred(9)}
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: rewardAcct.Credential, Deposit: 2_000_000})
	s.goS = EpochSnapshot{
		Pools: map[common.PoolId]PoolSnap{
			pool(1): {
				TotalStake: 1_000_000_000,
				Delegators: map[common.StakeCredential]int64{owner: 400_000_000, member: 600_000_000},
				Owners:     []common.StakeCredential{owner},
			},
		},
	}

	m := &Module{
		State: s,
		rewardParams: RewardParams{
			D: 0, Rho: 0.003, Tau: 0.2, A0: 0.3, NOpt: 100,
			SlotsPerEpoch: 432000, ActiveSlotCoeff: 0.05,
		},
	}
	activePools := map[common.PoolId]ActivePoolInfo{
		pool(1): {
			Params: common.PoolParams{
				Pledge: 100_000_000, FixedCost: 340_000, Margin: 0.01, RewardAccount: rewardAcct,
			},
			BlocksProduced: 10,
		},
	}
	eb := epochs.EpochBoundary{
		Epoch:  3,
		Closed: epochs.Counters{Fees: 5_000_000, BlocksProduced: map[common.PoolId]uint64{pool(1): 10}},
	}

	rupd := m.computeNextRewardUpdate(eb, activePools)
	require.NotEmpty(t, rupd.Rewards, "real Go-snapshot stake should produce a nonzero reward split")
	require.Contains(t, rupd.Rewards, rewardAcct.Credential)
}

// TestComputeNextRewardUpdateUsesRealRegisteredCheck pins the fix that
// replaced the stubbed "always registered" callback: a reward owed to a
// credential that has since deregistered must not survive CreateRUpd's
// filter.
func TestComputeNextRewardUpdateUsesRealRegisteredCheck(t *testing.T) {
	s := New(1_000_000_000_000, deposits())
	owner := cred(1)
	rewardAcct := common.StakeAddress{Credential: cred(9)}
	// rewardAcct is never registered, so its leader share must be
	// dropped rather than paid.
	s.goS = EpochSnapshot{
		Pools: map[common.PoolId]PoolSnap{
			pool(1): {
				TotalStake: 1_000_000_000,
				Delegators: map[common.StakeCredential]int64{owner: 1_000_000_000},
				Owners:     []common.StakeCredential{owner},
			},
		},
	}

	m := &Module{
		State: s,
		rewardParams: RewardParams{
			D: 0, Rho: 0.003, Tau: 0.2, A0: 0.3, NOpt: 100,
			SlotsPerEpoch: 432000, ActiveSlotCoeff: 0.05,
		},
	}
	activePools := map[common.PoolId]ActivePoolInfo{
		pool(1): {
			Params: common.PoolParams{
				Pledge: 100_000_000, FixedCost: 340_000, Margin: 0.01, RewardAccount: rewardAcct,
			},
			BlocksProduced: 10,
		},
	}
	eb := epochs.EpochBoundary{
		Epoch:  3,
		Closed: epochs.Counters{Fees: 5_000_000, BlocksProduced: map[common.PoolId]uint64{pool(1): 10}},
	}

	rupd := m.computeNextRewardUpdate(eb, activePools)
	assert.NotContains(t, rupd.Rewards, rewardAcct.Credential)
}
