package utxo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/utxo"
	"github.com/input-output-hk/acropolis/internal/validation"
)

func addr(b byte) common.Address {
	cred := common.NewKeyCredential(common.Hash28{b})
	return common.Address{Payment: &cred}
}

func TestModuleAppliesDeltaAndVotesGo(t *testing.T) {
	b := bus.New(nil)
	votes, _ := b.Subscribe(utxo.TopicVote)
	addrDeltas, _ := b.Subscribe(utxo.TopicAddressDelta)

	m := utxo.NewModule(b)
	go m.Run()

	var block common.BlockHash
	block[0] = 1
	var tx common.TxHash
	tx[0] = 1

	b.Publish(utxo.TopicTxDelta, utxo.TxDelta{
		Block: block,
		Tx:    tx,
		Outputs: []common.TxOut{
			{Address: addr(1), Value: common.NewValue(100)},
		},
	})

	select {
	case v := <-votes:
		vote := v.(validation.Vote)
		require.True(t, vote.Go)
		require.Equal(t, block, vote.Block)
		require.Equal(t, "utxo", vote.Domain)
	case <-time.After(time.Second):
		t.Fatal("no vote published")
	}

	select {
	case d := <-addrDeltas:
		ad := d.(common.AddressDelta)
		require.Equal(t, tx, ad.Tx)
	case <-time.After(time.Second):
		t.Fatal("no address delta published")
	}

	require.Equal(t, 1, m.State.Len())
}

func TestModuleVotesNoGoOnRejectedDelta(t *testing.T) {
	b := bus.New(nil)
	votes, _ := b.Subscribe(utxo.TopicVote)

	m := utxo.NewModule(b)
	go m.Run()

	var block common.BlockHash
	block[0] = 2
	var tx common.TxHash
	tx[0] = 2

	b.Publish(utxo.TopicTxDelta, utxo.TxDelta{
		Block:  block,
		Tx:     tx,
		Inputs: []common.TxIn{{Hash: tx, Index: 0}}, // never created, so absent
	})

	select {
	case v := <-votes:
		vote := v.(validation.Vote)
		require.False(t, vote.Go)
		require.NotNil(t, vote.Reason)
		require.Equal(t, "spent-or-absent-utxo", vote.Reason.Code)
	case <-time.After(time.Second):
		t.Fatal("no vote published")
	}
}
