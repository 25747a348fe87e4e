package params

import (
	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/governance"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// TopicUpdated is published with the new Protocol whenever an enacted
// parameter-change action changes it. No package in this repository
// subscribes to it; internal/ledger/accounts reads new deposit amounts
// from governance.TopicEnacted directly.
const TopicUpdated = "params.updated"

// Module wires State to the message fabric: it watches enacted governance
// actions and folds ProposalParameterChange payloads into the current
// parameter set.
type Module struct {
	State *State

	bus       *bus.Bus
	enactedIn <-chan any
}

// NewModule constructs the params module seeded with genesis and
// subscribes it to governance.TopicEnacted immediately.
func NewModule(b *bus.Bus, genesis Protocol) *Module {
	enactedIn, _ := b.Subscribe(governance.TopicEnacted)
	return &Module{State: New(genesis), bus: b, enactedIn: enactedIn}
}

// Run applies every enacted ParameterChange action's payload onto the
// current parameter set and publishes the result.
func (m *Module) Run() {
	logger := logging.Component("params")
	for msg := range m.enactedIn {
		e, ok := msg.(governance.Enacted)
		if !ok || e.Proposal.Kind != common.ProposalParameterChange {
			continue
		}
		next := mergeUpdate(m.State.Current(), e.Proposal.ParameterChange)
		m.State.ApplyUpdate(next)
		logger.Info("parameter change enacted", "action", e.Proposal.Id)
		m.bus.Publish(TopicUpdated, next)
	}
}

// mergeUpdate applies the named fields present in a ParameterChange
// action's payload onto current, leaving every absent field unchanged.
// Only the fields internal/ledger/accounts and the reward engine read
// directly are interpreted here; everything else passes through Opaque
// untouched (spec.md §4.8 — the ledger core does not interpret most
// protocol parameters, only the handful that feed its own computations).
func mergeUpdate(current Protocol, change map[string]any) Protocol {
	next := current
	if v, ok := change["key_deposit"].(int64); ok {
		next.KeyDeposit = v
	}
	if v, ok := change["pool_deposit"].(int64); ok {
		next.PoolDeposit = v
	}
	if v, ok := change["drep_deposit"].(int64); ok {
		next.DRepDeposit = v
	}
	if v, ok := change["proposal_deposit"].(int64); ok {
		next.ProposalDeposit = v
	}
	if v, ok := change["n_opt"].(uint64); ok {
		next.OptimalPoolCount = v
	}
	if v, ok := change["a0"].(float64); ok {
		next.PoolPledgeInfluence = v
	}
	if v, ok := change["rho"].(float64); ok {
		next.MonetaryExpansion = v
	}
	if v, ok := change["tau"].(float64); ok {
		next.TreasuryCut = v
	}
	if v, ok := change["d"].(float64); ok {
		next.DecentralisationParam = v
	}
	if len(change) > 0 {
		opaque := make(map[string]any, len(current.Opaque)+len(change))
		for k, v := range current.Opaque {
			opaque[k] = v
		}
		for k, v := range change {
			opaque[k] = v
		}
		next.Opaque = opaque
	}
	return next
}
