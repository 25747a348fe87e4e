package txunpacker

import (
	"math/big"
	"testing"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
	"github.com/input-output-hk/acropolis/internal/ledger/utxo"
	"github.com/input-output-hk/acropolis/internal/pipeline/blockunpacker"
)

// fakeTx embeds the real interface with a nil underlying value and
// overrides only the methods the unpacker reads, since building a full
// conforming mock would mean restating the whole transaction interface.
type fakeTx struct {
	lcommon.Transaction
	hash     lcommon.Blake2b256
	fee      int64
	valid    bool
	consumed []lcommon.TransactionInput
	produced []lcommon.Utxo
	certs    []lcommon.Certificate
}

func (f fakeTx) Hash() lcommon.Blake2b256                        { return f.hash }
func (f fakeTx) Fee() *big.Int                                    { return big.NewInt(f.fee) }
func (f fakeTx) IsValid() bool                                    { return f.valid }
func (f fakeTx) Consumed() []lcommon.TransactionInput             { return f.consumed }
func (f fakeTx) Produced() []lcommon.Utxo                         { return f.produced }
func (f fakeTx) Certificates() []lcommon.Certificate              { return f.certs }
func (f fakeTx) Withdrawals() map[*lcommon.Address]*big.Int       { return nil }
func (f fakeTx) ProposalProcedures() []lcommon.ProposalProcedure  { return nil }
func (f fakeTx) VotingProcedures() lcommon.VotingProcedures       { return nil }

func TestModulePublishesUtxoDeltaAndBlockSummary(t *testing.T) {
	b := bus.New(nil)
	deltaOut, _ := b.Subscribe(utxo.TopicTxDelta)
	summaryOut, _ := b.Subscribe(epochs.TopicBlockSummary)

	m := NewModule(b, common.NetworkTestnet, 432000)
	go m.Run()

	txHash := lcommon.NewBlake2b256(bytes32(1))
	input := fakeTxIn{id: lcommon.NewBlake2b256(bytes32(2)), index: 0}
	tx := fakeTx{
		hash:     txHash,
		fee:      170000,
		valid:    true,
		consumed: []lcommon.TransactionInput{input},
	}

	var blockHash common.BlockHash
	blockHash[0] = 0xaa
	b.Publish(blockunpacker.TopicBlock, blockunpacker.Block{
		Hash:         blockHash,
		Slot:         864000,
		Transactions: []lcommon.Transaction{tx},
	})

	select {
	case msg := <-deltaOut:
		delta := msg.(utxo.TxDelta)
		require.Equal(t, blockHash, delta.Block)
		require.Len(t, delta.Inputs, 1)
		require.Equal(t, uint16(0), delta.Inputs[0].Index)
	case <-time.After(time.Second):
		t.Fatal("no utxo delta published")
	}

	select {
	case msg := <-summaryOut:
		sum := msg.(epochs.BlockSummary)
		require.Equal(t, uint64(2), sum.Epoch)
		require.Equal(t, int64(170000), sum.Fee)
	case <-time.After(time.Second):
		t.Fatal("no block summary published")
	}
}

func TestBlockEpochZeroLength(t *testing.T) {
	require.Equal(t, uint64(0), blockEpoch(1000, 0))
}
