package validation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/validation"
)

func TestAllGoYieldsGoVerdict(t *testing.T) {
	b := bus.New(nil)
	verdicts, _ := b.Subscribe(validation.TopicVerdict)
	c := validation.New(b, []string{"utxo", "accounts"}, time.Second)

	var blockHash common.BlockHash
	blockHash[0] = 1
	c.Propose(context.Background(), blockHash)
	c.Vote(validation.Vote{Block: blockHash, Domain: "utxo", Go: true})
	c.Vote(validation.Vote{Block: blockHash, Domain: "accounts", Go: true})

	select {
	case v := <-verdicts:
		verdict := v.(validation.Verdict)
		require.True(t, verdict.Go)
	case <-time.After(time.Second):
		t.Fatal("no verdict published")
	}
}

func TestAnyNoGoYieldsNoGoVerdict(t *testing.T) {
	b := bus.New(nil)
	verdicts, _ := b.Subscribe(validation.TopicVerdict)
	c := validation.New(b, []string{"utxo", "script"}, time.Second)

	var blockHash common.BlockHash
	blockHash[0] = 2
	c.Propose(context.Background(), blockHash)
	c.Vote(validation.Vote{Block: blockHash, Domain: "utxo", Go: true})
	c.Vote(validation.Vote{
		Block:  blockHash,
		Domain: "script",
		Go:     false,
		Reason: &common.NoGoReason{Code: "script_failed"},
	})

	select {
	case v := <-verdicts:
		verdict := v.(validation.Verdict)
		require.False(t, verdict.Go)
		require.Len(t, verdict.NoGos, 1)
		require.Equal(t, "script", verdict.NoGos[0].Domain)
	case <-time.After(time.Second):
		t.Fatal("no verdict published")
	}
}

func TestMissingVoteBecomesTimeoutNoGo(t *testing.T) {
	b := bus.New(nil)
	verdicts, _ := b.Subscribe(validation.TopicVerdict)
	c := validation.New(b, []string{"utxo", "accounts"}, 20*time.Millisecond)

	var blockHash common.BlockHash
	blockHash[0] = 3
	c.Propose(context.Background(), blockHash)
	c.Vote(validation.Vote{Block: blockHash, Domain: "utxo", Go: true})
	// accounts never votes.

	select {
	case v := <-verdicts:
		verdict := v.(validation.Verdict)
		require.False(t, verdict.Go)
		require.Len(t, verdict.NoGos, 1)
		require.Equal(t, "timeout", verdict.NoGos[0].Reason.Code)
	case <-time.After(time.Second):
		t.Fatal("no verdict published")
	}
}
