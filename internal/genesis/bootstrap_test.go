package genesis_test

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/ledger/accounts"
	"github.com/input-output-hk/acropolis/internal/ledger/params"
	"github.com/input-output-hk/acropolis/internal/ledger/utxo"

	"github.com/input-output-hk/acropolis/internal/genesis"
)

func newRat(num, denom int64) *lcommon.GenesisRat {
	return &lcommon.GenesisRat{Rat: big.NewRat(num, denom)}
}

// enterpriseAddr builds a minimal mainnet enterprise address (header byte
// 0x61: type 6, network 1) over a 28-byte payment key hash.
func enterpriseAddr(b byte) string {
	raw := make([]byte, 29)
	raw[0] = 0x61
	raw[1] = b
	return hex.EncodeToString(raw)
}

func testGenesis() shelley.ShelleyGenesis {
	return shelley.ShelleyGenesis{
		MaxLovelaceSupply: 45_000_000_000_000_000,
		InitialFunds: map[string]uint64{
			enterpriseAddr(1): 1_000_000_000,
			enterpriseAddr(2): 2_000_000_000,
		},
		ProtocolParameters: shelley.ShelleyGenesisProtocolParams{
			KeyDeposit:  2_000_000,
			PoolDeposit: 500_000_000,
			NOpt:        150,
			A0:          newRat(3, 10),
			Rho:         newRat(3, 1000),
			Tau:         newRat(2, 10),
		},
	}
}

func TestRunInstallsInitialFundsAndReserves(t *testing.T) {
	b := bus.New(nil)
	utxoState := utxo.New()
	accountsState := accounts.New(0, accounts.DepositParams{})
	paramsState := params.New(params.Protocol{})

	complete, unsubscribe := b.Subscribe(genesis.TopicComplete)
	defer unsubscribe()

	bs := genesis.New(b, utxoState, accountsState, paramsState)

	raw, err := json.Marshal(testGenesis())
	require.NoError(t, err)
	require.NoError(t, bs.Run(bytes.NewReader(raw)))

	require.Equal(t, 2, utxoState.Len())

	pots := accountsState.Pots()
	require.Equal(t, int64(45_000_000_000_000_000-3_000_000_000), pots.Reserves)

	protocol := paramsState.Current()
	require.Equal(t, int64(2_000_000), protocol.KeyDeposit)
	require.Equal(t, int64(500_000_000), protocol.PoolDeposit)
	require.Equal(t, uint64(150), protocol.OptimalPoolCount)
	require.InDelta(t, 0.3, protocol.PoolPledgeInfluence, 1e-9)

	select {
	case msg := <-complete:
		_, ok := msg.(genesis.Tip)
		require.True(t, ok)
	default:
		t.Fatal("expected genesis.TopicComplete to have been published")
	}
}
