package utxo

import (
	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/logging"
	"github.com/input-output-hk/acropolis/internal/validation"
)

// TopicTxDelta is published by the tx unpacker, one message per
// transaction, in block order (spec.md §4.4).
const TopicTxDelta = "txunpacker.utxo_delta"

// TopicVote is the UTXO domain's Phase 1 vote topic (spec.md §4.3).
const TopicVote = "validation.utxo"

// Module wires State to the message fabric: it subscribes to per-tx UTXO
// deltas, applies them, publishes per-output address deltas, and casts the
// UTXO domain's Phase 1 vote.
type Module struct {
	State *State
	bus   *bus.Bus
	in    <-chan any
}

// NewModule constructs the UTXO state module and subscribes it to
// TopicTxDelta immediately, so no message published after construction can
// race Run's first receive.
func NewModule(b *bus.Bus) *Module {
	ch, _ := b.Subscribe(TopicTxDelta)
	return &Module{State: New(), bus: b, in: ch}
}

// Run processes tx deltas until the subscription channel closes (bus
// shutdown). It is meant to run in its own goroutine for the lifetime of
// the process.
func (m *Module) Run() {
	logger := logging.Component("utxo")
	for msg := range m.in {
		delta, ok := msg.(TxDelta)
		if !ok {
			continue
		}
		m.applyAndVote(delta, logger)
	}
}

func (m *Module) applyAndVote(delta TxDelta, logger interface {
	Warn(msg string, args ...any)
}) {
	addressDeltas, err := m.State.ApplyDelta(delta)
	if err != nil {
		logger.Warn("utxo delta rejected", "tx", delta.Tx.String(), "error", err)
		var reason *common.NoGoReason
		if rv, ok := err.(*common.RuleViolation); ok {
			reason = &common.NoGoReason{Code: rv.Reason, Fields: rv.Fields}
		} else {
			reason = &common.NoGoReason{Code: "internal", Fields: common.Fields{"error": err.Error()}}
		}
		m.bus.Publish(TopicVote, validation.Vote{Block: delta.Block, Domain: "utxo", Go: false, Reason: reason})
		return
	}
	for _, ad := range addressDeltas {
		m.bus.Publish(TopicAddressDelta, ad)
	}
	m.bus.Publish(TopicVote, validation.Vote{Block: delta.Block, Domain: "utxo", Go: true})
}
