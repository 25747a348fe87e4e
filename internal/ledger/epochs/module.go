package epochs

import (
	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// TopicBlockSummary mirrors the tx unpacker's per-block summary topic.
// Duplicated as a constant so this package has no dependency on
// internal/pipeline/txunpacker.
const TopicBlockSummary = "txunpacker.block_summary"

// TopicEpochBoundary is the canonical epoch-boundary event; every other
// ledger module that needs it duplicates this string rather than
// importing this package, to avoid a star-shaped import graph.
const TopicEpochBoundary = "epochs.boundary"

// BlockSummary is what the tx unpacker publishes once per block: the
// epoch the block's slot falls in (computed upstream from the network's
// epoch length), its total fees, its producing pool, and a nonce
// contribution. Because block order is already the unpacker's
// per-publisher FIFO guarantee, the first summary bearing a new Epoch
// value is what triggers the boundary.
type BlockSummary struct {
	Epoch    uint64
	Slot     uint64
	Fee      int64
	Producer common.PoolId
	Nonce    common.Hash32 // this block's contribution to the running eta/nonce
}

// EpochBoundary is published on TopicEpochBoundary.
type EpochBoundary struct {
	Epoch    uint64 // the epoch being entered
	Closed   Counters
}

// Module wires State to the message fabric and owns the epoch clock: it
// is the single source of TopicEpochBoundary events that every other
// ledger module's epoch-boundary logic is keyed off.
type Module struct {
	State *State

	bus *bus.Bus
	in  <-chan any

	epoch uint64
	nonce common.Hash32
}

// NewModule constructs the epochs module and subscribes it to
// TopicBlockSummary immediately.
func NewModule(b *bus.Bus) *Module {
	in, _ := b.Subscribe(TopicBlockSummary)
	return &Module{State: New(), bus: b, in: in}
}

// Run applies block summaries in order, rolling the epoch clock forward
// and publishing TopicEpochBoundary exactly once per epoch transition.
func (m *Module) Run() {
	logger := logging.Component("epochs")
	for msg := range m.in {
		bsum, ok := msg.(BlockSummary)
		if !ok {
			continue
		}
		if bsum.Epoch != m.epoch {
			closed := m.State.EnterEpoch(bsum.Epoch, mixNonce(m.nonce, bsum.Nonce))
			logger.Info("epoch boundary", "from", m.epoch, "to", bsum.Epoch, "fees", closed.Fees)
			m.epoch = bsum.Epoch
			m.bus.Publish(TopicEpochBoundary, EpochBoundary{Epoch: bsum.Epoch, Closed: closed})
		}
		m.nonce = mixNonce(m.nonce, bsum.Nonce)
		m.State.ApplyBlock(bsum.Fee, bsum.Producer)
	}
}

// mixNonce folds a block's nonce contribution into the running epoch
// nonce via byte-wise XOR, a placeholder for the VRF-output hash chain
// the real eta-nonce calculation uses; the core's concern here is only
// that the nonce threads through the boundary message, not the exact VRF
// construction (external collaborator per spec.md §1).
func mixNonce(running, contribution common.Hash32) common.Hash32 {
	var out common.Hash32
	for i := range out {
		out[i] = running[i] ^ contribution[i]
	}
	return out
}
