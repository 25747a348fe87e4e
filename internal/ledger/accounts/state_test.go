package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/common"
)

func cred(b byte) common.StakeCredential {
	var h common.Hash28
	h[0] = b
	return common.NewKeyCredential(h)
}

func pool(b byte) common.PoolId {
	var h common.PoolId
	h[0] = b
	return h
}

func deposits() DepositParams {
	return DepositParams{KeyDeposit: 2_000_000, PoolDeposit: 500_000_000, DRepDeposit: 500_000_000, ProposalDeposit: 100_000_000}
}

func TestApplyCertificateStakeRegistrationChargesKeyDeposit(t *testing.T) {
	s := New(0, deposits())
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred(1), Deposit: 2_000_000})

	a, ok := s.Account(cred(1))
	require.True(t, ok)
	assert.True(t, a.Registered)
	assert.Equal(t, int64(2_000_000), a.StakeDeposit)
	assert.Equal(t, int64(2_000_000), s.Pots().Deposits)
}

func TestApplyCertificateStakeDeregistrationRefundsDeposit(t *testing.T) {
	s := New(0, deposits())
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred(1), Deposit: 2_000_000})
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeDeregistration, StakeCredential: cred(1)})

	_, ok := s.Account(cred(1))
	assert.False(t, ok)
	assert.Equal(t, int64(0), s.Pots().Deposits)
}

// TestRetireThenReRegisterPoolDepositNotRecharged covers scenario S1: a pool
// retires, its deposit is refunded, and a re-registration in the same epoch
// before the refund settles does not charge a second deposit.
func TestRetireThenReRegisterPoolDepositNotRecharged(t *testing.T) {
	s := New(0, deposits())
	rewardAcct := common.StakeAddress{Credential: cred(9)}
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred(9), Deposit: 2_000_000})
	s.ApplyCertificate(common.Certificate{Kind: common.CertPoolRegistration, Pool: pool(1), PoolParams: common.PoolParams{RewardAccount: rewardAcct}})
	require.Equal(t, int64(2_000_000+500_000_000), s.Pots().Deposits)

	s.HandlePoolRetired(pool(1), rewardAcct)
	a, ok := s.Account(cred(9))
	require.True(t, ok)
	assert.Equal(t, int64(500_000_000), a.Rewards, "deposit refunded to reward account")
	assert.Equal(t, int64(2_000_000), s.Pots().Deposits, "pool deposit obligation removed")

	s.ApplyCertificate(common.Certificate{Kind: common.CertPoolRegistration, Pool: pool(1), PoolParams: common.PoolParams{RewardAccount: rewardAcct}})
	assert.Equal(t, int64(2_000_000), s.Pots().Deposits, "re-registration after retirement in the same epoch does not recharge")
}

// TestRetireAfterFreeReRegistrationRefundsNothing covers a second retire on
// the pool re-registered free of charge above: it must not hand out a
// deposit refund nobody paid for.
func TestRetireAfterFreeReRegistrationRefundsNothing(t *testing.T) {
	s := New(0, deposits())
	rewardAcct := common.StakeAddress{Credential: cred(9)}
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred(9), Deposit: 2_000_000})
	s.ApplyCertificate(common.Certificate{Kind: common.CertPoolRegistration, Pool: pool(1), PoolParams: common.PoolParams{RewardAccount: rewardAcct}})
	s.HandlePoolRetired(pool(1), rewardAcct)
	s.ApplyCertificate(common.Certificate{Kind: common.CertPoolRegistration, Pool: pool(1), PoolParams: common.PoolParams{RewardAccount: rewardAcct}})

	s.HandlePoolRetired(pool(1), rewardAcct)
	a, _ := s.Account(cred(9))
	assert.Equal(t, int64(500_000_000), a.Rewards, "only the original deposit was ever paid, so only one refund is owed")
	assert.Equal(t, int64(2_000_000), s.Pots().Deposits)
}

// TestReRegisterAfterFullRetirementCycleRecharges covers the later cycle
// the grace window must not extend to: once the pool has registered again
// past its grace window, a further retire-then-register pays the deposit
// again.
func TestReRegisterAfterFullRetirementCycleRecharges(t *testing.T) {
	s := New(0, deposits())
	rewardAcct := common.StakeAddress{Credential: cred(9)}
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred(9), Deposit: 2_000_000})
	s.ApplyCertificate(common.Certificate{Kind: common.CertPoolRegistration, Pool: pool(1), PoolParams: common.PoolParams{RewardAccount: rewardAcct}})
	s.HandlePoolRetired(pool(1), rewardAcct)
	s.ApplyCertificate(common.Certificate{Kind: common.CertPoolRegistration, Pool: pool(1), PoolParams: common.PoolParams{RewardAccount: rewardAcct}})
	s.HandlePoolRetired(pool(1), rewardAcct)

	s.ApplyCertificate(common.Certificate{Kind: common.CertPoolRegistration, Pool: pool(1), PoolParams: common.PoolParams{RewardAccount: rewardAcct}})
	assert.Equal(t, int64(2_000_000+500_000_000), s.Pots().Deposits, "grace window is consumed, this registration pays again")
}

// TestApplyWithdrawalRequiresExactBalance covers scenario S2.
func TestApplyWithdrawalRequiresExactBalance(t *testing.T) {
	s := New(0, deposits())
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred(1), Deposit: 2_000_000})
	s.ApplyCertificate(common.Certificate{Kind: common.CertMIR, MIRPot: "reserves", MIRMoves: map[common.StakeCredential]int64{cred(1): 1000}})

	addr := common.StakeAddress{Credential: cred(1)}
	assert.False(t, s.ApplyWithdrawal(addr, 999))
	assert.True(t, s.ApplyWithdrawal(addr, 1000))
	a, _ := s.Account(cred(1))
	assert.Equal(t, int64(0), a.Rewards)
}

func TestApplyTreasuryWithdrawalCreditsRegisteredAccounts(t *testing.T) {
	s := New(0, deposits())
	s.pots.Treasury = 10_000_000
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred(1), Deposit: 2_000_000})

	addr := common.StakeAddress{Credential: cred(1)}
	credited := s.ApplyTreasuryWithdrawal(map[common.StakeAddress]int64{addr: 5_000_000})
	require.Len(t, credited, 1)
	assert.Equal(t, cred(1), credited[0])

	a, _ := s.Account(cred(1))
	assert.Equal(t, int64(5_000_000), a.Rewards)
	assert.Equal(t, int64(5_000_000), s.Pots().Treasury)
}

func TestApplyCertificateDRepDeregistrationRefundsToAccountOrTreasury(t *testing.T) {
	s := New(0, deposits())
	s.ApplyCertificate(common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred(1), Deposit: 2_000_000})
	s.ApplyCertificate(common.Certificate{Kind: common.CertDRepRegistration, DRep: cred(1)})
	require.Equal(t, int64(2_000_000+500_000_000), s.Pots().Deposits)

	s.ApplyCertificate(common.Certificate{Kind: common.CertDRepDeregistration, DRep: cred(1)})
	a, _ := s.Account(cred(1))
	assert.Equal(t, int64(500_000_000), a.Rewards)
	assert.Equal(t, int64(2_000_000), s.Pots().Deposits)

	s.ApplyCertificate(common.Certificate{Kind: common.CertDRepRegistration, DRep: cred(2)})
	s.ApplyCertificate(common.Certificate{Kind: common.CertDRepDeregistration, DRep: cred(2)})
	assert.Equal(t, int64(500_000_000), s.Pots().Treasury, "deregistration of a DRep with no stake account refunds to treasury")
}
