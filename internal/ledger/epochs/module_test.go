package epochs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
)

func TestEpochBoundaryFiresOnEpochChange(t *testing.T) {
	b := bus.New(nil)
	boundaries, _ := b.Subscribe(epochs.TopicEpochBoundary)

	m := epochs.NewModule(b)
	go m.Run()

	var pool common.PoolId
	pool[0] = 1
	b.Publish(epochs.TopicBlockSummary, epochs.BlockSummary{Epoch: 0, Fee: 100, Producer: pool})
	b.Publish(epochs.TopicBlockSummary, epochs.BlockSummary{Epoch: 0, Fee: 200, Producer: pool})
	b.Publish(epochs.TopicBlockSummary, epochs.BlockSummary{Epoch: 1, Fee: 50, Producer: pool})

	select {
	case v := <-boundaries:
		eb := v.(epochs.EpochBoundary)
		require.Equal(t, uint64(1), eb.Epoch)
		require.Equal(t, int64(300), eb.Closed.Fees)
		require.Equal(t, uint64(2), eb.Closed.BlocksProduced[pool])
	case <-time.After(time.Second):
		t.Fatal("no epoch boundary published")
	}
}
