package accounts

import (
	"sync"

	"github.com/input-output-hk/acropolis/internal/common"
)

// State owns every stake account, the four pots, the pending reward
// update, and the Mark/Set/Go snapshot chain.
type State struct {
	mu sync.Mutex

	accounts map[common.StakeCredential]StakeAccount
	pots     Pots

	registeredPools map[common.PoolId]bool
	registeredDReps map[common.StakeCredential]bool
	justRetiredPool map[common.PoolId]bool

	// poolDeposit and drepDeposit track the amount actually charged and
	// currently outstanding per entity, so the deposits pot can be
	// recomputed from what was really paid rather than from
	// registeredPools/registeredDReps membership, which a grace
	// re-registration (see justRetiredPool) can leave out of step with
	// the deposit constant.
	poolDeposit map[common.PoolId]int64
	drepDeposit map[common.StakeCredential]int64

	mark EpochSnapshot
	set  EpochSnapshot
	goS  EpochSnapshot

	pendingRUpd *RewardUpdate

	params DepositParams
}

// DepositParams are the deposit amounts this epoch's protocol parameters
// specify; accounts reads these from internal/ledger/params at
// construction and whenever an enacted parameter update changes them.
type DepositParams struct {
	KeyDeposit      int64
	PoolDeposit     int64
	DRepDeposit     int64
	ProposalDeposit int64
}

// New constructs empty accounts state seeded with the genesis reserves
// (the only non-zero pot at genesis; treasury/deposits/fees start at 0).
func New(genesisReserves int64, params DepositParams) *State {
	return &State{
		accounts:        make(map[common.StakeCredential]StakeAccount),
		pots:            Pots{Reserves: genesisReserves},
		registeredPools: make(map[common.PoolId]bool),
		registeredDReps: make(map[common.StakeCredential]bool),
		justRetiredPool: make(map[common.PoolId]bool),
		poolDeposit:     make(map[common.PoolId]int64),
		drepDeposit:     make(map[common.StakeCredential]int64),
		params:          params,
	}
}

// SetDepositParams installs new deposit amounts, effective immediately,
// following an enacted parameter-change governance action.
func (s *State) SetDepositParams(p DepositParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
}

// Pots returns a snapshot of the four pots.
func (s *State) Pots() Pots {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pots
}

// Account returns a snapshot of cred's account, if any.
func (s *State) Account(cred common.StakeCredential) (StakeAccount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[cred]
	return a, ok
}

// ApplyStakeDelta folds a stake-delta filter output into the target
// credential's utxo_value. A delta for a credential with no account yet
// (an unregistered stake part) is silently dropped: only registered
// credentials are tracked, per spec.md §3.
func (s *State) ApplyStakeDelta(cred common.StakeCredential, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[cred]
	if !ok {
		return
	}
	a.UtxoValue += delta
	s.accounts[cred] = a
}

// ApplyCertificate applies one certificate's effect on accounts state,
// updating the pots in place.
func (s *State) ApplyCertificate(cert common.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cert.Kind {
	case common.CertStakeRegistration:
		s.accounts[cert.StakeCredential] = StakeAccount{Registered: true, StakeDeposit: cert.Deposit}
		s.pots.Deposits += cert.Deposit

	case common.CertStakeDeregistration:
		a, ok := s.accounts[cert.StakeCredential]
		if !ok {
			return
		}
		s.pots.Deposits -= a.StakeDeposit
		// The refund destination (the account itself, per spec.md §4.9) is
		// the account being removed, so the refund and removal net out; we
		// simply drop the account and let the deposits pot absorb the
		// decrease, matching preservation of value (the stake_deposit was
		// never part of UtxoValue or Rewards).
		delete(s.accounts, cert.StakeCredential)

	case common.CertStakeDelegation:
		a, ok := s.accounts[cert.StakeCredential]
		if !ok {
			return
		}
		a.DelegatedSPO = cert.DelegatedPool
		s.accounts[cert.StakeCredential] = a

	case common.CertVoteDelegation:
		a, ok := s.accounts[cert.StakeCredential]
		if !ok {
			return
		}
		a.DelegatedDRep = cert.DelegatedDRep
		s.accounts[cert.StakeCredential] = a

	case common.CertPoolRegistration:
		if !s.registeredPools[cert.Pool] && !s.justRetiredPool[cert.Pool] {
			s.pots.Deposits += s.params.PoolDeposit
			s.poolDeposit[cert.Pool] = s.params.PoolDeposit
		}
		// The grace window against recharging a pool that retired and
		// then re-registered only ever applies once: a later
		// retire/re-register cycle for the same pool must pay again.
		delete(s.justRetiredPool, cert.Pool)
		s.registeredPools[cert.Pool] = true

	case common.CertPoolRetirement:
		// Deposit refund happens at the scheduled epoch (HandlePoolRetired),
		// not here; this certificate only schedules it, which
		// internal/ledger/spo already tracks.

	case common.CertDRepRegistration:
		if !s.registeredDReps[cert.DRep] {
			s.pots.Deposits += s.params.DRepDeposit
			s.drepDeposit[cert.DRep] = s.params.DRepDeposit
		}
		s.registeredDReps[cert.DRep] = true

	case common.CertDRepDeregistration:
		if s.registeredDReps[cert.DRep] {
			amount := s.drepDeposit[cert.DRep]
			s.pots.Deposits -= amount
			delete(s.registeredDReps, cert.DRep)
			delete(s.drepDeposit, cert.DRep)
			a, ok := s.accounts[cert.DRep]
			if ok {
				a.Rewards += amount
				s.accounts[cert.DRep] = a
			} else {
				s.pots.Treasury += amount
			}
		}

	case common.CertMIR:
		for cred, amount := range cert.MIRMoves {
			a, ok := s.accounts[cred]
			if !ok {
				continue
			}
			a.Rewards += amount
			s.accounts[cred] = a
			if cert.MIRPot == "treasury" {
				s.pots.Treasury -= amount
			} else {
				s.pots.Reserves -= amount
			}
		}
	}
}

// ApplyWithdrawal applies a reward withdrawal; it succeeds only if the
// account is registered and the amount exactly equals its current
// rewards (spec.md §4.9 "Cardano requires exact balance"), per scenario
// S2. Returns false if the withdrawal is invalid.
func (s *State) ApplyWithdrawal(addr common.StakeAddress, amount int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[addr.Credential]
	if !ok || !a.Registered || a.Rewards != amount {
		return false
	}
	a.Rewards = 0
	s.accounts[addr.Credential] = a
	return true
}

// HandlePoolRetired applies a finalised pool retirement: refund the
// deposit to the reward account (or to treasury if that account is
// unregistered), and, if that registration had paid a deposit, remember
// the pool so its next re-registration does not recharge the deposit.
func (s *State) HandlePoolRetired(pool common.PoolId, rewardAccount common.StakeAddress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlePoolRetiredLocked(pool, rewardAccount)
}

func (s *State) handlePoolRetiredLocked(pool common.PoolId, rewardAccount common.StakeAddress) {
	delete(s.registeredPools, pool)

	// Refund exactly what this pool's current registration actually
	// paid, not the deposit constant: a pool that re-registered inside
	// its own grace window (see CertPoolRegistration) never paid again,
	// so it has nothing left to refund, and its grace window is not
	// opened a second time.
	amount, paid := s.poolDeposit[pool]
	delete(s.poolDeposit, pool)
	if paid {
		s.justRetiredPool[pool] = true
	}

	a, ok := s.accounts[rewardAccount.Credential]
	if ok && a.Registered {
		a.Rewards += amount
		s.accounts[rewardAccount.Credential] = a
	} else {
		s.pots.Treasury += amount
	}
	s.pots.Deposits -= amount
}

// ApplyTreasuryWithdrawal applies a ratified Conway TreasuryWithdrawal
// action: debits the treasury and credits each target account, excluding
// those accounts from this epoch's pulsing-reward credit (tracked by the
// caller via the returned credited-credential list, per scenario S6).
func (s *State) ApplyTreasuryWithdrawal(amounts map[common.StakeAddress]int64) []common.StakeCredential {
	s.mu.Lock()
	defer s.mu.Unlock()
	var credited []common.StakeCredential
	for addr, amount := range amounts {
		a, ok := s.accounts[addr.Credential]
		if !ok {
			continue
		}
		a.Rewards += amount
		s.accounts[addr.Credential] = a
		s.pots.Treasury -= amount
		credited = append(credited, addr.Credential)
	}
	return credited
}
