package spo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/spo"
)

func TestRegistrationThenRetirementThenEnterEpoch(t *testing.T) {
	s := spo.New()
	var pool common.PoolId
	pool[0] = 1
	rewardAcct := common.StakeAddress{Network: common.NetworkMainnet, Credential: common.NewKeyCredential(common.Hash28{2})}

	require.True(t, s.NewlyRegistered(pool))
	s.ApplyCertificate(common.Certificate{
		Kind:       common.CertPoolRegistration,
		Pool:       pool,
		PoolParams: common.PoolParams{RewardAccount: rewardAcct},
	})
	require.False(t, s.NewlyRegistered(pool))
	require.Len(t, s.ActiveSet(), 1)

	s.ApplyCertificate(common.Certificate{
		Kind:          common.CertPoolRetirement,
		Pool:          pool,
		RetiringEpoch: 10,
	})
	require.Len(t, s.ActiveSet(), 1, "pool stays active until its scheduled epoch")

	retired := s.EnterEpoch(9)
	require.Empty(t, retired)
	require.Len(t, s.ActiveSet(), 1)

	retired = s.EnterEpoch(10)
	require.Len(t, retired, 1)
	require.Equal(t, rewardAcct, retired[0].RewardAccount)
	require.Empty(t, s.ActiveSet())
}

func TestReregistrationCancelsPendingRetirement(t *testing.T) {
	s := spo.New()
	var pool common.PoolId
	pool[0] = 3

	s.ApplyCertificate(common.Certificate{Kind: common.CertPoolRegistration, Pool: pool})
	s.ApplyCertificate(common.Certificate{Kind: common.CertPoolRetirement, Pool: pool, RetiringEpoch: 5})
	s.ApplyCertificate(common.Certificate{Kind: common.CertPoolRegistration, Pool: pool})

	retired := s.EnterEpoch(5)
	require.Empty(t, retired, "re-registration before the scheduled epoch cancels retirement")
	require.Len(t, s.ActiveSet(), 1)
}
