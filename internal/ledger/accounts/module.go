package accounts

import (
	"sync"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
	"github.com/input-output-hk/acropolis/internal/ledger/governance"
	"github.com/input-output-hk/acropolis/internal/ledger/spo"
	"github.com/input-output-hk/acropolis/internal/ledger/stakefilter"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// TopicSPDD and TopicDRDD mirror the constants internal/ledger/governance
// subscribes to; defined here (the producing side) and duplicated there
// to avoid an import cycle between the two ledger packages.
const (
	TopicSPDD = "accounts.spdd"
	TopicDRDD = "accounts.drdd"
)

// TopicWithdrawal mirrors the tx unpacker's withdrawal topic; duplicated
// as a constant so this package has no dependency on
// internal/pipeline/txunpacker.
const TopicWithdrawal = "txunpacker.withdrawal"

// ProposalCounter reports the number of governance proposals currently
// pending ratification, for the deposits-pot recomputation. Satisfied by
// *governance.State.
type ProposalCounter interface {
	ActiveCount() int
}

// Module wires State to the message fabric, joining the SPO active-pool
// set and the epochs module's per-pool block counts into the inputs
// EnterEpoch needs.
type Module struct {
	State *State

	bus            *bus.Bus
	deltasIn       <-chan any
	certsIn        <-chan any
	enactedIn      <-chan any
	retiredIn      <-chan any
	activeSetIn    <-chan any
	epochsIn       <-chan any
	withdrawalsIn  <-chan any

	proposals ProposalCounter
	rewardParams RewardParams

	mu           sync.Mutex
	activePools  map[common.PoolId]common.PoolParams
	retirements  []PoolRetirement
	pendingRUpd  *RewardUpdate
}

// NewModule constructs the accounts module, subscribing it to every
// input topic immediately.
func NewModule(b *bus.Bus, genesisReserves int64, deposits DepositParams, rewardParams RewardParams, proposals ProposalCounter) *Module {
	deltasIn, _ := b.Subscribe(stakefilter.TopicStakeDelta)
	certsIn, _ := b.Subscribe(stakefilter.TopicCertificateObserved)
	enactedIn, _ := b.Subscribe(governance.TopicEnacted)
	retiredIn, _ := b.Subscribe(spo.TopicPoolRetired)
	activeSetIn, _ := b.Subscribe(spo.TopicActiveSet)
	epochsIn, _ := b.Subscribe(epochs.TopicEpochBoundary)
	withdrawalsIn, _ := b.Subscribe(TopicWithdrawal)
	return &Module{
		State:         New(genesisReserves, deposits),
		bus:           b,
		deltasIn:      deltasIn,
		certsIn:       certsIn,
		enactedIn:     enactedIn,
		retiredIn:     retiredIn,
		activeSetIn:   activeSetIn,
		epochsIn:      epochsIn,
		withdrawalsIn: withdrawalsIn,
		proposals:     proposals,
		rewardParams:  rewardParams,
		activePools:   make(map[common.PoolId]common.PoolParams),
	}
}

// RunWithdrawals applies reward-account withdrawals in arrival order.
func (m *Module) RunWithdrawals() {
	logger := logging.Component("accounts")
	for msg := range m.withdrawalsIn {
		w, ok := msg.(common.Withdrawal)
		if !ok {
			continue
		}
		if !m.State.ApplyWithdrawal(w.Account, w.Amount) {
			logger.Warn("withdrawal rejected", "account", w.Account.String(), "amount", w.Amount)
		}
	}
}

// RunStakeDeltas applies resolved stake-credential deltas in arrival order.
func (m *Module) RunStakeDeltas() {
	for msg := range m.deltasIn {
		d, ok := msg.(stakefilter.StakeDelta)
		if !ok {
			continue
		}
		m.State.ApplyStakeDelta(d.Credential, d.Delta.Coin)
	}
}

// RunCertificates applies every certificate this module cares about
// (stake/pool/DRep registration and delegation) in arrival order.
func (m *Module) RunCertificates() {
	for msg := range m.certsIn {
		cert, ok := msg.(common.Certificate)
		if !ok {
			continue
		}
		m.State.ApplyCertificate(cert)
	}
}

// RunEnacted applies ratified governance actions: parameter changes
// update deposit amounts, treasury withdrawals credit target accounts.
func (m *Module) RunEnacted() {
	logger := logging.Component("accounts")
	for msg := range m.enactedIn {
		e, ok := msg.(governance.Enacted)
		if !ok {
			continue
		}
		switch e.Proposal.Kind {
		case common.ProposalTreasuryWithdrawal:
			credited := m.State.ApplyTreasuryWithdrawal(e.Proposal.TreasuryWithdrawals)
			logger.Info("enacted treasury withdrawal", "accounts_credited", len(credited))
		case common.ProposalParameterChange:
			m.State.mu.Lock()
			for key, field := range map[string]*int64{
				"key_deposit":      &m.State.params.KeyDeposit,
				"pool_deposit":     &m.State.params.PoolDeposit,
				"drep_deposit":     &m.State.params.DRepDeposit,
				"proposal_deposit": &m.State.params.ProposalDeposit,
			} {
				if v, ok := e.Proposal.ParameterChange[key].(int64); ok {
					*field = v
				}
			}
			m.State.mu.Unlock()
			logger.Info("enacted parameter change", "action", e.Proposal.Id)
		}
	}
}

// RunRetirements buffers finalised pool retirements until the next epoch
// boundary, when EnterEpoch applies them atomically alongside the
// snapshot rotation.
func (m *Module) RunRetirements() {
	for msg := range m.retiredIn {
		r, ok := msg.(spo.RetiredPool)
		if !ok {
			continue
		}
		m.mu.Lock()
		m.retirements = append(m.retirements, PoolRetirement{Pool: r.Pool, RewardAccount: r.RewardAccount})
		m.mu.Unlock()
	}
}

// RunActiveSet caches the most recently published SPO active set, for the
// Mark snapshot's per-pool parameters.
func (m *Module) RunActiveSet() {
	for msg := range m.activeSetIn {
		a, ok := msg.(spo.ActiveSet)
		if !ok {
			continue
		}
		m.mu.Lock()
		m.activePools = a.Pools
		m.mu.Unlock()
	}
}

// RunEpochBoundary drives the full boundary sequence: apply the reward
// update computed at the previous boundary, finalise buffered
// retirements, rotate Mark/Set/Go, recompute deposits, publish SPDD/DRDD,
// and compute (but not yet apply) the next reward update.
func (m *Module) RunEpochBoundary() {
	logger := logging.Component("accounts")
	for msg := range m.epochsIn {
		eb, ok := msg.(epochs.EpochBoundary)
		if !ok {
			continue
		}

		m.mu.Lock()
		activePoolParams := m.activePools
		retirements := m.retirements
		m.retirements = nil
		rUpd := m.pendingRUpd
		m.mu.Unlock()

		activePools := make(map[common.PoolId]ActivePoolInfo, len(activePoolParams))
		for pool, params := range activePoolParams {
			activePools[pool] = ActivePoolInfo{
				Params:         params,
				BlocksProduced: eb.Closed.BlocksProduced[pool],
			}
		}

		var blocksTotal uint64
		for _, n := range eb.Closed.BlocksProduced {
			blocksTotal += n
		}
		spdd, drdd := m.State.EnterEpoch(eb.Epoch, rUpd, retirements, activePools, blocksTotal, m.proposals.ActiveCount())
		m.bus.Publish(TopicSPDD, governance.Delegation(toUint64Map(spdd)))
		m.bus.Publish(TopicDRDD, governance.Delegation(drdd))

		next := m.computeNextRewardUpdate(eb, activePools)
		m.mu.Lock()
		m.pendingRUpd = next
		m.mu.Unlock()

		logger.Info("epoch boundary", "epoch", eb.Epoch, "pools", len(activePools))
	}
}

func toUint64Map(in map[common.PoolId]uint64) map[common.StakeCredential]uint64 {
	out := make(map[common.StakeCredential]uint64, len(in))
	for k, v := range in {
		out[common.NewKeyCredential(k)] = v
	}
	return out
}

// poolStakeFromGo splits a pool's Go-snapshot delegator set into the
// owners' combined stake (for pledge-met gating) and the remaining
// member stakes CreateRUpd pays out pro rata.
func poolStakeFromGo(snap PoolSnap) (ownerStake int64, members map[common.StakeCredential]int64) {
	owners := make(map[common.StakeCredential]bool, len(snap.Owners))
	for _, o := range snap.Owners {
		owners[o] = true
	}
	members = make(map[common.StakeCredential]int64, len(snap.Delegators))
	for cred, stake := range snap.Delegators {
		if owners[cred] {
			ownerStake += stake
			continue
		}
		members[cred] = stake
	}
	return ownerStake, members
}

func (m *Module) computeNextRewardUpdate(eb epochs.EpochBoundary, activePools map[common.PoolId]ActivePoolInfo) *RewardUpdate {
	pots := m.State.Pots()
	goSnap := m.State.Go()
	var totalActiveStake int64
	for _, snap := range goSnap.Pools {
		totalActiveStake += snap.TotalStake
	}
	var inputs []PoolRewardInput
	for pool, info := range activePools {
		registeredAcct, ok := m.State.Account(info.Params.RewardAccount.Credential)

		goPool := goSnap.Pools[pool]
		ownerStake, members := poolStakeFromGo(goPool)

		inputs = append(inputs, PoolRewardInput{
			Pool:                    pool,
			Pledge:                  info.Params.Pledge,
			FixedCost:               info.Params.FixedCost,
			Margin:                  info.Params.Margin,
			RewardAccount:           info.Params.RewardAccount,
			RewardAccountRegistered: ok && registeredAcct.Registered,
			BlocksProduced:          info.BlocksProduced,
			PledgeMet:               ownerStake >= info.Params.Pledge,
			Stake:                   goPool.TotalStake,
			OwnerStake:              ownerStake,
			Members:                 members,
		})
	}
	registered := func(cred common.StakeCredential) bool {
		a, ok := m.State.Account(cred)
		return ok && a.Registered
	}
	var blocksTotal uint64
	for _, n := range eb.Closed.BlocksProduced {
		blocksTotal += n
	}
	return CreateRUpd(m.rewardParams, pots.Reserves, eb.Closed.Fees, totalActiveStake, blocksTotal, inputs, registered)
}
