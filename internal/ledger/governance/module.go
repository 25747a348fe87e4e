package governance

import (
	"sync"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// Topics this module consumes. Duplicated as constants (rather than
// imported) to avoid import cycles with internal/ledger/accounts and
// internal/pipeline/txunpacker, per the same idiom used throughout the
// ledger packages.
const (
	TopicProposalSubmitted = "txunpacker.gov_proposal"
	TopicVoteCast          = "txunpacker.gov_vote"
	TopicSPDD              = "accounts.spdd"
	TopicDRDD              = "accounts.drdd"
)

// TopicEnacted and TopicExpired are published by this module at each
// epoch boundary.
const (
	TopicEnacted = "governance.enacted"
	TopicExpired = "governance.expired"
)

// VoteCast is what the tx unpacker publishes per vote procedure.
type VoteCast struct {
	Action common.GovActionId
	Voter  common.Voter
	Choice common.VoteChoice
}

// Module wires State to the message fabric.
type Module struct {
	State *State

	bus          *bus.Bus
	proposalsIn  <-chan any
	votesIn      <-chan any
	spddIn       <-chan any
	drddIn       <-chan any
	epochsIn     <-chan any

	mu    sync.Mutex
	spdd  Delegation
	drdd  Delegation
}

// NewModule constructs the governance module and subscribes it to every
// input topic immediately.
func NewModule(b *bus.Bus) *Module {
	proposalsIn, _ := b.Subscribe(TopicProposalSubmitted)
	votesIn, _ := b.Subscribe(TopicVoteCast)
	spddIn, _ := b.Subscribe(TopicSPDD)
	drddIn, _ := b.Subscribe(TopicDRDD)
	epochsIn, _ := b.Subscribe(epochs.TopicEpochBoundary)
	return &Module{
		State:       New(),
		bus:         b,
		proposalsIn: proposalsIn,
		votesIn:     votesIn,
		spddIn:      spddIn,
		drddIn:      drddIn,
		epochsIn:    epochsIn,
		spdd:        Delegation{},
		drdd:        Delegation{},
	}
}

// RunProposals applies submitted proposals in arrival order.
func (m *Module) RunProposals() {
	for msg := range m.proposalsIn {
		p, ok := msg.(Proposal)
		if !ok {
			continue
		}
		m.State.Submit(p)
	}
}

// RunVotes applies cast votes in arrival order.
func (m *Module) RunVotes() {
	for msg := range m.votesIn {
		v, ok := msg.(VoteCast)
		if !ok {
			continue
		}
		m.State.Vote(v.Action, v.Voter, v.Choice)
	}
}

// RunDistributions caches the latest SPDD/DRDD accounts publishes each
// epoch boundary, for use by the next RunEpochBoundary pass.
func (m *Module) RunDistributions() {
	for msg := range m.spddIn {
		d, ok := msg.(Delegation)
		if !ok {
			continue
		}
		m.mu.Lock()
		m.spdd = d
		m.mu.Unlock()
	}
}

// RunDRDD mirrors RunDistributions for the DRep delegation distribution;
// kept as a separate goroutine entry point because the two topics have
// independent subscriber channels.
func (m *Module) RunDRDD() {
	for msg := range m.drddIn {
		d, ok := msg.(Delegation)
		if !ok {
			continue
		}
		m.mu.Lock()
		m.drdd = d
		m.mu.Unlock()
	}
}

// RunEpochBoundary ratifies or expires pending proposals at each epoch
// boundary using the most recently cached SPDD/DRDD.
func (m *Module) RunEpochBoundary() {
	logger := logging.Component("governance")
	for msg := range m.epochsIn {
		eb, ok := msg.(epochs.EpochBoundary)
		if !ok {
			continue
		}
		m.mu.Lock()
		spdd, drdd := m.spdd, m.drdd
		m.mu.Unlock()

		enacted, expired := m.State.EnterEpoch(eb.Epoch, drdd, spdd)
		logger.Info("epoch boundary", "epoch", eb.Epoch, "enacted", len(enacted), "expired", len(expired))
		for _, e := range enacted {
			m.bus.Publish(TopicEnacted, e)
		}
		for _, e := range expired {
			m.bus.Publish(TopicExpired, e)
		}
	}
}
