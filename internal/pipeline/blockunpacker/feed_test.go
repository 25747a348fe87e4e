package blockunpacker

import (
	"encoding/hex"
	"testing"

	"github.com/blinklabs-io/adder/event"
	input_chainsync "github.com/blinklabs-io/adder/input/chainsync"
	"github.com/blinklabs-io/gouroboros/ledger"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/consensus"
)

func TestHandleEventAddsWantedBlockToTree(t *testing.T) {
	b := bus.New(nil)
	var root common.BlockHash
	tree := consensus.New(b, 5, root, 0)

	proposed, _ := b.Subscribe(consensus.TopicBlockProposed)

	var childHash common.BlockHash
	childHash[0] = 1
	f := NewFeedWithDecoder(tree, fakeHeaderDecoder{
		decoded: DecodedBlock{Hash: childHash, PrevHash: root, Number: 1, Slot: 10},
	})

	err := f.handleEvent(event.Event{
		Payload: input_chainsync.BlockEvent{
			BlockHash: "deadbeef",
			BlockCbor: []byte{0x01},
		},
		Context: input_chainsync.BlockContext{BlockNumber: 1, SlotNumber: 10},
	})
	require.NoError(t, err)

	select {
	case msg := <-proposed:
		ev := msg.(consensus.BlockProposedEvent)
		require.Equal(t, childHash, ev.Hash)
	default:
		t.Fatal("expected tree to propose the newly added block")
	}

	blk, ok := tree.Block(childHash)
	require.True(t, ok)
	require.Equal(t, consensus.Fetched, blk.Status)
}

func TestHandleEventRollbackRemovesBlock(t *testing.T) {
	b := bus.New(nil)
	var root common.BlockHash
	tree := consensus.New(b, 5, root, 0)

	var childHash common.BlockHash
	childHash[0] = 2
	_, err := tree.CheckBlockWanted(childHash, root, 1, 10)
	require.NoError(t, err)
	require.NoError(t, tree.AddBlock(childHash, []byte{0x02}))

	f := NewFeedWithDecoder(tree, fakeHeaderDecoder{})

	err = f.handleEvent(event.Event{
		Payload: input_chainsync.RollbackEvent{BlockHash: hex.EncodeToString(childHash[:])},
	})
	require.NoError(t, err)

	_, ok := tree.Block(childHash)
	require.False(t, ok)
}

type fakeHeaderDecoder struct {
	decoded DecodedBlock
}

func (d fakeHeaderDecoder) Decode(cbor []byte) (DecodedBlock, error) {
	return d.decoded, nil
}

func (d fakeHeaderDecoder) DecodeFull(cbor []byte) (ledger.Block, error) {
	return nil, nil
}
