// Package blockunpacker implements the block-unpacker half of spec.md
// §4.4: an external chain-sync feed that drives internal/consensus's fork
// tree, plus a decode stage that turns a proposed block's raw CBOR body
// into a single batched per-block message carrying its ordered
// transactions.
//
// Grounded on the teacher's (blinklabs-io/shai) internal/indexer.Indexer,
// which wires an adder pipeline (chainsync input, embedded output) and
// reacts to input_chainsync.BlockEvent/RollbackEvent; this package keeps
// that wiring but feeds events into a consensus.Tree instead of directly
// mutating a storage layer.
package blockunpacker

import (
	"encoding/hex"
	"fmt"

	"github.com/blinklabs-io/adder/event"
	input_chainsync "github.com/blinklabs-io/adder/input/chainsync"
	output_embedded "github.com/blinklabs-io/adder/output/embedded"
	"github.com/blinklabs-io/adder/pipeline"
	ocommon "github.com/blinklabs-io/gouroboros/protocol/common"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/consensus"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// Feed wires an adder chain-sync pipeline to a consensus.Tree: every
// offered block becomes a CheckBlockWanted call, every delivered block
// body an AddBlock call, and every rollback a RemoveBlock call.
type Feed struct {
	tree    *consensus.Tree
	decoder BlockDecoder

	pipeline *pipeline.Pipeline
}

// NewFeed constructs a feed over an already-seeded tree, using the
// package's gouroboros-backed decoder to read each offered block's hash
// and parent hash from its CBOR; the block number and slot come from the
// chain-sync event's block context.
func NewFeed(tree *consensus.Tree) *Feed {
	return NewFeedWithDecoder(tree, GouroborosDecoder{})
}

// NewFeedWithDecoder is NewFeed with an injectable decoder, for tests
// that can't link gouroboros's CBOR decoder against hand-built block
// bytes.
func NewFeedWithDecoder(tree *consensus.Tree, decoder BlockDecoder) *Feed {
	return &Feed{tree: tree, decoder: decoder}
}

// Start configures and runs the adder chain-sync pipeline against the
// given node address and network, resuming from the given intersect
// point. It returns once the pipeline has started; delivery happens on
// the pipeline's own goroutines via handleEvent.
func (f *Feed) Start(network, address string, intersect []ocommon.Point) error {
	logger := logging.Component("blockunpacker")
	p := pipeline.New()
	inputOpts := []input_chainsync.ChainSyncOptionFunc{
		input_chainsync.WithBulkMode(true),
		input_chainsync.WithAutoReconnect(true),
		input_chainsync.WithLogger(logging.GetLogger()),
		input_chainsync.WithNetwork(network),
		input_chainsync.WithIncludeCbor(true),
	}
	if address != "" {
		inputOpts = append(inputOpts, input_chainsync.WithAddress(address))
	}
	if len(intersect) > 0 {
		inputOpts = append(inputOpts, input_chainsync.WithIntersectPoints(intersect))
	}
	p.AddInput(input_chainsync.New(inputOpts...))
	p.AddOutput(output_embedded.New(
		output_embedded.WithCallbackFunc(f.handleEvent),
	))
	if err := p.Start(); err != nil {
		return fmt.Errorf("blockunpacker: failed to start pipeline: %w", err)
	}
	f.pipeline = p
	go func() {
		if err, ok := <-p.ErrorChan(); ok {
			logger.Error("chain-sync pipeline failed", "error", err)
		}
	}()
	return nil
}

// handleEvent is the adder pipeline's output callback (spec.md §4.4's
// external-feed half), matching the teacher's chainsyncClientHandleEvent
// switch shape.
func (f *Feed) handleEvent(evt event.Event) error {
	logger := logging.Component("blockunpacker")
	switch e := evt.Payload.(type) {
	case input_chainsync.RollbackEvent:
		hash, err := hashFromHex(e.BlockHash)
		if err != nil {
			return fmt.Errorf("blockunpacker: rollback with unparseable hash: %w", err)
		}
		f.tree.RemoveBlock(hash)
	case input_chainsync.BlockEvent:
		blockCtx, ok := evt.Context.(input_chainsync.BlockContext)
		if !ok {
			return fmt.Errorf("blockunpacker: block event with unexpected context type")
		}
		decoded, err := f.decoder.Decode(e.BlockCbor)
		if err != nil {
			logger.Warn("could not decode offered block", "hash", e.BlockHash, "error", err)
			return nil
		}
		wanted, err := f.tree.CheckBlockWanted(decoded.Hash, decoded.PrevHash, blockCtx.BlockNumber, blockCtx.SlotNumber)
		if err != nil {
			logger.Warn("block not wanted", "hash", e.BlockHash, "error", err)
			return nil
		}
		for _, w := range wanted {
			if w == decoded.Hash {
				if err := f.tree.AddBlock(decoded.Hash, e.BlockCbor); err != nil {
					logger.Warn("add_block failed", "hash", e.BlockHash, "error", err)
				}
			}
		}
	}
	return nil
}

func hashFromHex(s string) (common.BlockHash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return common.BlockHash{}, fmt.Errorf("blockunpacker: invalid hex hash %q: %w", s, err)
	}
	return common.NewHash32(b)
}
