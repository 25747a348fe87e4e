package blockunpacker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/blinklabs-io/gouroboros/ledger"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/consensus"
	"github.com/input-output-hk/acropolis/internal/pipeline/blockunpacker"
)

// fakeBlock embeds the real ledger.Block interface with a nil underlying
// value and overrides only the methods blockunpacker's decode stage
// reads, since building a full conforming mock would mean restating the
// whole interface.
type fakeBlock struct {
	ledger.Block
	hash     lcommon.Blake2b256
	prevHash lcommon.Blake2b256
	number   uint64
	slot     uint64
	txs      []lcommon.Transaction
}

func (b fakeBlock) Hash() lcommon.Blake2b256     { return b.hash }
func (b fakeBlock) PrevHash() lcommon.Blake2b256 { return b.prevHash }
func (b fakeBlock) BlockNumber() uint64          { return b.number }
func (b fakeBlock) SlotNumber() uint64           { return b.slot }
func (b fakeBlock) Type() int                    { return 6 }
func (b fakeBlock) IssuerVkey() lcommon.IssuerVkey {
	return lcommon.IssuerVkey{}
}
func (b fakeBlock) Transactions() []lcommon.Transaction { return b.txs }

type fakeDecoder struct {
	decoded blockunpacker.DecodedBlock
	full    ledger.Block
	err     error
}

func (d fakeDecoder) Decode(cbor []byte) (blockunpacker.DecodedBlock, error) {
	return d.decoded, d.err
}

func (d fakeDecoder) DecodeFull(cbor []byte) (ledger.Block, error) {
	return d.full, d.err
}

func TestUnpackerPublishesBatchedBlock(t *testing.T) {
	b := bus.New(nil)
	out, _ := b.Subscribe(blockunpacker.TopicBlock)

	var hash common.BlockHash
	hash[0] = 5
	u := blockunpacker.NewUnpackerWithDecoder(b, fakeDecoder{
		full: fakeBlock{number: 10, slot: 100},
	})
	go u.Run()

	b.Publish(consensus.TopicBlockProposed, consensus.BlockProposedEvent{
		Hash: hash,
		Body: []byte{0x01},
	})

	select {
	case msg := <-out:
		blk := msg.(blockunpacker.Block)
		require.Equal(t, hash, blk.Hash)
		require.Equal(t, uint64(10), blk.Number)
		require.Equal(t, uint64(100), blk.Slot)
	case <-time.After(time.Second):
		t.Fatal("no block published")
	}
}

func TestUnpackerSkipsUndecodableBlock(t *testing.T) {
	b := bus.New(nil)
	out, _ := b.Subscribe(blockunpacker.TopicBlock)

	u := blockunpacker.NewUnpackerWithDecoder(b, fakeDecoder{
		err: errors.New("bad cbor"),
	})
	go u.Run()

	var hash common.BlockHash
	hash[0] = 6
	b.Publish(consensus.TopicBlockProposed, consensus.BlockProposedEvent{
		Hash: hash,
		Body: []byte{0xff},
	})

	select {
	case <-out:
		t.Fatal("expected no block published for an undecodable body")
	case <-time.After(100 * time.Millisecond):
	}
}
