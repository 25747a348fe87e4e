package phase2

import (
	"testing"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/common"
)

func TestScriptHashDeterministic(t *testing.T) {
	h1, err := scriptHash(scriptTagV2, []byte("a script"))
	require.NoError(t, err)
	h2, err := scriptHash(scriptTagV2, []byte("a script"))
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	h3, err := scriptHash(scriptTagV1, []byte("a script"))
	require.NoError(t, err)
	require.NotEqual(t, h1, h3, "differing language tag must change the hash")
}

// fakeWitnessSet implements lcommon.TransactionWitnessSet returning no
// scripts of any kind, the common case for a key-only transaction.
type fakeWitnessSet struct {
	lcommon.TransactionWitnessSet
}

func (fakeWitnessSet) PlutusV1Scripts() []lcommon.PlutusV1Script { return nil }
func (fakeWitnessSet) PlutusV2Scripts() []lcommon.PlutusV2Script { return nil }
func (fakeWitnessSet) PlutusV3Scripts() []lcommon.PlutusV3Script { return nil }
func (fakeWitnessSet) Redeemers() lcommon.TransactionWitnessRedeemers { return nil }

type fakeScriptTx struct {
	lcommon.Transaction
	witnesses lcommon.TransactionWitnessSet
}

func (f fakeScriptTx) Witnesses() lcommon.TransactionWitnessSet { return f.witnesses }

func TestBuildScriptIndexNilWitnessesIsEmpty(t *testing.T) {
	idx := buildScriptIndex(fakeScriptTx{witnesses: nil})
	require.Empty(t, idx)
}

func TestBuildScriptIndexNoScriptsIsEmpty(t *testing.T) {
	idx := buildScriptIndex(fakeScriptTx{witnesses: fakeWitnessSet{}})
	require.Empty(t, idx)
}

func TestResolveScriptSpendingPrefersReferenceScript(t *testing.T) {
	in := common.TxIn{Hash: common.TxHash{1}, Index: 0}
	out := common.TxOut{ScriptRef: []byte("ref-script")}
	resolve := func(want common.TxIn) (common.TxOut, bool) {
		require.Equal(t, in, want)
		return out, true
	}

	entry, ok := resolveScript(map[common.Hash28]scriptEntry{}, resolve, common.NetworkTestnet, Purpose{Kind: PurposeSpending, Ref: in})
	require.True(t, ok)
	require.Equal(t, []byte("ref-script"), entry.Bytes)
	require.Equal(t, PlutusV2, entry.Language)
}

func TestResolveScriptSpendingUnresolvedInputFails(t *testing.T) {
	resolve := func(common.TxIn) (common.TxOut, bool) { return common.TxOut{}, false }
	_, ok := resolveScript(map[common.Hash28]scriptEntry{}, resolve, common.NetworkTestnet, Purpose{Kind: PurposeSpending, Ref: common.TxIn{}})
	require.False(t, ok)
}

func TestResolveScriptMintingLooksUpPolicyHash(t *testing.T) {
	var policy [28]byte
	policy[0] = 9
	h, err := common.NewHash28(policy[:])
	require.NoError(t, err)
	idx := map[common.Hash28]scriptEntry{h: {Bytes: []byte("mint-script"), Language: PlutusV1}}

	resolve := func(common.TxIn) (common.TxOut, bool) { return common.TxOut{}, false }
	entry, ok := resolveScript(idx, resolve, common.NetworkTestnet, Purpose{Kind: PurposeMinting, Ref: policy})
	require.True(t, ok)
	require.Equal(t, []byte("mint-script"), entry.Bytes)
}

func TestResolveScriptVotingNotYetSupported(t *testing.T) {
	resolve := func(common.TxIn) (common.TxOut, bool) { return common.TxOut{}, false }
	_, ok := resolveScript(map[common.Hash28]scriptEntry{}, resolve, common.NetworkTestnet, Purpose{Kind: PurposeVoting})
	require.False(t, ok)
}
