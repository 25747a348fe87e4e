package blockunpacker

import (
	"fmt"

	"github.com/blinklabs-io/gouroboros/ledger"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"golang.org/x/crypto/blake2b"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/consensus"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// TopicBlockProposed re-exports internal/consensus's topic under this
// package's name; consensus is imported directly (for the topic and the
// event/tree types), so this is a naming convenience, not a
// cycle-avoidance trick.
const TopicBlockProposed = consensus.TopicBlockProposed

// TopicBlock is published once per block the consensus tree proposes,
// before any validation verdict on it, carrying its ordered
// transactions as a single batched message per spec.md §4.4.
const TopicBlock = "blockunpacker.block"

// Block is published on TopicBlock.
type Block struct {
	Hash         common.BlockHash
	PrevHash     common.BlockHash
	Number       uint64
	Slot         uint64
	Era          uint
	Issuer       common.PoolId
	Transactions []lcommon.Transaction
}

// DecodedBlock is the minimal header information the chain-sync feed needs
// before a block's body has been fully unpacked.
type DecodedBlock struct {
	Hash     common.BlockHash
	PrevHash common.BlockHash
	Number   uint64
	Slot     uint64
}

// BlockDecoder turns a raw block body into its header fields, or into the
// full decoded block. Isolated behind an interface so feed.go and
// decode.go share one gouroboros call site and so tests can substitute a
// fake without linking gouroboros's CBOR decoder.
type BlockDecoder interface {
	Decode(cbor []byte) (DecodedBlock, error)
	DecodeFull(cbor []byte) (ledger.Block, error)
}

// GouroborosDecoder implements BlockDecoder against
// github.com/blinklabs-io/gouroboros/ledger.
type GouroborosDecoder struct{}

func (GouroborosDecoder) Decode(cbor []byte) (DecodedBlock, error) {
	blk, err := GouroborosDecoder{}.DecodeFull(cbor)
	if err != nil {
		return DecodedBlock{}, err
	}
	hash, err := common.NewHash32(blk.Hash().Bytes())
	if err != nil {
		return DecodedBlock{}, fmt.Errorf("blockunpacker: block hash: %w", err)
	}
	prevHash, err := common.NewHash32(blk.PrevHash().Bytes())
	if err != nil {
		return DecodedBlock{}, fmt.Errorf("blockunpacker: prev hash: %w", err)
	}
	return DecodedBlock{
		Hash:     hash,
		PrevHash: prevHash,
		Number:   blk.BlockNumber(),
		Slot:     blk.SlotNumber(),
	}, nil
}

func (GouroborosDecoder) DecodeFull(cbor []byte) (ledger.Block, error) {
	blockType, err := ledger.DetermineBlockType(cbor)
	if err != nil {
		return nil, fmt.Errorf("blockunpacker: determine block type: %w", err)
	}
	blk, err := ledger.NewBlockFromCbor(blockType, cbor)
	if err != nil {
		return nil, fmt.Errorf("blockunpacker: decode block: %w", err)
	}
	return blk, nil
}

// Unpacker subscribes to every block the consensus tree proposes as part
// of the favoured chain and publishes one batched Block message per
// block, in proposal order.
type Unpacker struct {
	bus     *bus.Bus
	in      <-chan any
	decoder BlockDecoder
}

// NewUnpacker constructs the decode stage and subscribes it immediately.
func NewUnpacker(b *bus.Bus) *Unpacker {
	return NewUnpackerWithDecoder(b, GouroborosDecoder{})
}

// NewUnpackerWithDecoder is NewUnpacker with an injectable decoder, for
// tests that can't link gouroboros's CBOR decoder against hand-built
// block bytes.
func NewUnpackerWithDecoder(b *bus.Bus, decoder BlockDecoder) *Unpacker {
	in, _ := b.Subscribe(TopicBlockProposed)
	return &Unpacker{bus: b, in: in, decoder: decoder}
}

// Run decodes each proposed block's body and republishes it as a single
// batched message carrying its ordered transactions.
func (u *Unpacker) Run() {
	logger := logging.Component("blockunpacker")
	for msg := range u.in {
		ev, ok := msg.(consensus.BlockProposedEvent)
		if !ok {
			continue
		}
		blk, err := u.decoder.DecodeFull(ev.Body)
		if err != nil {
			logger.Warn("could not decode block body", "hash", ev.Hash.String(), "error", err)
			continue
		}
		prevHash, err := common.NewHash32(blk.PrevHash().Bytes())
		if err != nil {
			logger.Warn("could not parse prev hash", "hash", ev.Hash.String(), "error", err)
			continue
		}
		issuer, err := poolIdFromIssuerVkey(blk.IssuerVkey().Bytes())
		if err != nil {
			logger.Warn("could not derive issuer pool id", "hash", ev.Hash.String(), "error", err)
			continue
		}
		u.bus.Publish(TopicBlock, Block{
			Hash:         ev.Hash,
			PrevHash:     prevHash,
			Number:       blk.BlockNumber(),
			Slot:         blk.SlotNumber(),
			Era:          uint(blk.Type()),
			Issuer:       issuer,
			Transactions: blk.Transactions(),
		})
	}
}

// poolIdFromIssuerVkey derives a pool's identifying hash from its cold
// verification key the same way every other key hash in the ledger is
// computed: a blake2b-224 digest of the raw key bytes.
func poolIdFromIssuerVkey(vkey []byte) (common.PoolId, error) {
	h, err := blake2b.New(28, nil)
	if err != nil {
		return common.PoolId{}, err
	}
	if _, err := h.Write(vkey); err != nil {
		return common.PoolId{}, err
	}
	return common.NewHash28(h.Sum(nil))
}
