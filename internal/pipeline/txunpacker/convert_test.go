package txunpacker

import (
	"math/big"
	"testing"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/common"
)

func TestConvertValueAddsAssets(t *testing.T) {
	policy := lcommon.NewBlake2b224(bytes28(1))
	assetName := cbor.NewByteString([]byte("token"))
	assets := lcommon.NewMultiAsset(map[lcommon.Blake2b224]map[cbor.ByteString]lcommon.MultiAssetTypeOutput{
		policy: {assetName: lcommon.MultiAssetTypeOutput(big.NewInt(42))},
	})

	v := convertValue(big.NewInt(1_000_000), &assets)
	require.Equal(t, int64(1_000_000), v.Coin)
	require.Len(t, v.Assets, 1)
}

func TestConvertValueNilAssets(t *testing.T) {
	v := convertValue(big.NewInt(5), nil)
	require.Equal(t, int64(5), v.Coin)
	require.Empty(t, v.Assets)
}

func TestConvertCertificateStakeRegistration(t *testing.T) {
	cert := &lcommon.StakeRegistrationCertificate{
		StakeCredential: lcommon.Credential{
			CredType:   lcommon.CredentialTypeAddrKeyHash,
			Credential: lcommon.NewBlake2b224(bytes28(7)),
		},
	}
	ptr := common.ChainPointer{Slot: 100, TxIndex: 1, CertIndex: 0}
	out, ok := convertCertificate(common.NetworkTestnet, cert, &ptr)
	require.True(t, ok)
	require.Equal(t, common.CertStakeRegistration, out.Kind)
	require.Equal(t, common.CredentialKeyHash, out.StakeCredential.Kind)
	require.Equal(t, &ptr, out.Pointer)
}

func TestConvertCertificatePoolRegistration(t *testing.T) {
	cert := &lcommon.PoolRegistrationCertificate{
		Operator:      lcommon.NewBlake2b224(bytes28(1)),
		VrfKeyHash:    lcommon.NewBlake2b256(bytes32(2)),
		Pledge:        1_000_000,
		Cost:          340_000,
		Margin:        cbor.Rat{Rat: big.NewRat(1, 20)},
		RewardAccount: lcommon.NewBlake2b224(bytes28(3)),
		PoolOwners:    []lcommon.AddrKeyHash{lcommon.NewBlake2b224(bytes28(4))},
	}
	out, ok := convertCertificate(common.NetworkMainnet, cert, nil)
	require.True(t, ok)
	require.Equal(t, common.CertPoolRegistration, out.Kind)
	require.Equal(t, int64(1_000_000), out.PoolParams.Pledge)
	require.Equal(t, int64(340_000), out.PoolParams.FixedCost)
	require.InDelta(t, 0.05, out.PoolParams.Margin, 0.0001)
	require.Len(t, out.PoolParams.Owners, 1)
}

func TestConvertCertificateUnknownKindSkipped(t *testing.T) {
	cert := &lcommon.ResignCommitteeColdCertificate{
		ColdCredential: lcommon.Credential{
			CredType:   lcommon.CredentialTypeAddrKeyHash,
			Credential: lcommon.NewBlake2b224(bytes28(1)),
		},
	}
	_, ok := convertCertificate(common.NetworkTestnet, cert, nil)
	require.False(t, ok)
}

// fakeTxIn embeds the real interface with a nil underlying value and
// overrides only the methods convertTxIn reads.
type fakeTxIn struct {
	lcommon.TransactionInput
	id    lcommon.Blake2b256
	index uint32
}

func (f fakeTxIn) Id() lcommon.Blake2b256 { return f.id }
func (f fakeTxIn) Index() uint32          { return f.index }

func TestConvertTxIn(t *testing.T) {
	in := fakeTxIn{id: lcommon.NewBlake2b256(bytes32(9)), index: 3}
	out, err := convertTxIn(in)
	require.NoError(t, err)
	require.Equal(t, uint16(3), out.Index)
}

func bytes28(seed byte) []byte {
	b := make([]byte, 28)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func bytes32(seed byte) []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}
