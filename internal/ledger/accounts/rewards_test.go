package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/common"
)

func defaultRewardParams() RewardParams {
	return RewardParams{
		D:               0.5,
		Rho:             0.003,
		Tau:             0.2,
		A0:              0.3,
		NOpt:            100,
		SlotsPerEpoch:   432_000,
		ActiveSlotCoeff: 0.05,
	}
}

func TestCreateRUpdSplitsLeaderAndMemberRewards(t *testing.T) {
	p := defaultRewardParams()
	acct := common.StakeAddress{Credential: cred(1)}
	pools := []PoolRewardInput{
		{
			Pool:                    pool(1),
			Pledge:                  1_000_000,
			FixedCost:               340,
			Margin:                  0.1,
			RewardAccount:           acct,
			RewardAccountRegistered: true,
			BlocksProduced:          10,
			PledgeMet:               true,
			Stake:                   10_000_000,
			OwnerStake:              1_000_000,
			Members: map[common.StakeCredential]int64{
				cred(2): 9_000_000,
			},
		},
	}
	registered := func(common.StakeCredential) bool { return true }

	rupd := CreateRUpd(p, 1_000_000_000_000, 0, 10_000_000, 10, pools, registered)

	require.Contains(t, rupd.Rewards, cred(1))
	require.Contains(t, rupd.Rewards, cred(2))
	assert.Greater(t, rupd.Rewards[cred(1)], int64(0), "leader reward")
	assert.Greater(t, rupd.Rewards[cred(2)], int64(0), "member reward")
	assert.Greater(t, rupd.DeltaTreasury, int64(0))
	assert.Less(t, rupd.DeltaReserves, int64(0), "reserves are drawn down by deltaR1 net of the unallocated remainder")
}

// TestCreateRUpdLeaderRewardGatedOnRegistration covers scenario S3: a pool's
// reward account is deregistered at reward-calculation time, so its leader
// reward is withheld (neither paid to the account nor moved to treasury
// here — it folds back into the reserves delta via the remainder).
func TestCreateRUpdLeaderRewardGatedOnRegistration(t *testing.T) {
	p := defaultRewardParams()
	acct := common.StakeAddress{Credential: cred(1)}
	base := PoolRewardInput{
		Pool: pool(1), FixedCost: 340_000_000, Margin: 0.1, RewardAccount: acct,
		RewardAccountRegistered: true, BlocksProduced: 10, PledgeMet: true,
		Stake: 10_000_000, OwnerStake: 10_000_000,
	}
	poolsRegistered := []PoolRewardInput{base}
	unregistered := base
	unregistered.RewardAccountRegistered = false
	poolsUnregistered := []PoolRewardInput{unregistered}

	registered := func(common.StakeCredential) bool { return true }
	withAcct := CreateRUpd(p, 1_000_000_000_000, 1_000_000, 10_000_000, 10, poolsRegistered, registered)
	withoutAcct := CreateRUpd(p, 1_000_000_000_000, 1_000_000, 10_000_000, 10, poolsUnregistered, registered)

	assert.NotContains(t, withoutAcct.Rewards, cred(1))
	assert.Contains(t, withAcct.Rewards, cred(1))
	assert.Greater(t, withoutAcct.DeltaReserves, withAcct.DeltaReserves,
		"the withheld leader reward stays in reserves rather than moving to treasury")
}

// TestCreateRUpdAggregatingUnion covers the property that a credential
// acting as both a pool's reward account and a member delegator in the same
// epoch has both amounts summed, not overwritten.
func TestCreateRUpdAggregatingUnion(t *testing.T) {
	p := defaultRewardParams()
	shared := cred(1)
	acct := common.StakeAddress{Credential: shared}
	pools := []PoolRewardInput{{
		Pool: pool(1), FixedCost: 340, Margin: 0.1, RewardAccount: acct,
		RewardAccountRegistered: true, BlocksProduced: 10, PledgeMet: true,
		Stake: 10_000_000, OwnerStake: 1_000_000,
		Members: map[common.StakeCredential]int64{shared: 9_000_000},
	}}
	registered := func(common.StakeCredential) bool { return true }
	rupd := CreateRUpd(p, 1_000_000_000_000, 1_000_000, 10_000_000, 10, pools, registered)

	leaderOnly := CreateRUpd(p, 1_000_000_000_000, 1_000_000, 10_000_000, 10, []PoolRewardInput{{
		Pool: pool(1), FixedCost: 340, Margin: 0.1, RewardAccount: acct,
		RewardAccountRegistered: true, BlocksProduced: 10, PledgeMet: true,
		Stake: 10_000_000, OwnerStake: 1_000_000,
	}}, registered)

	assert.Greater(t, rupd.Rewards[shared], leaderOnly.Rewards[shared],
		"the combined leader+member reward exceeds the leader-only reward for the same credential")
}

func TestApplyRUpdRedirectsDeregisteredRewardToTreasury(t *testing.T) {
	s := New(0, deposits())
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred(1), Deposit: 2_000_000})

	rupd := &RewardUpdate{
		DeltaTreasury: 0,
		DeltaReserves: -1000,
		DeltaFees:     0,
		Rewards: map[common.StakeCredential]int64{
			cred(1): 600, // registered: credited directly
			cred(2): 400, // not registered: redirected to treasury
		},
	}
	s.ApplyRUpd(rupd)

	a, _ := s.Account(cred(1))
	assert.Equal(t, int64(600), a.Rewards)
	assert.Equal(t, int64(400), s.Pots().Treasury)
	assert.Equal(t, int64(-1000), s.Pots().Reserves)
}
