package phase2

import (
	"encoding/hex"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/pipeline/txunpacker"
)

// BuildTxInfo converts a decoded transaction into the purpose-independent
// view every ScriptContext is built from, per spec.md §4.10. network
// scopes certificate reward accounts the same way txunpacker scopes them
// for its own domain messages.
//
// Reuses txunpacker's exported ConvertTxIn/ConvertTxOut/ConvertCertificate
// rather than re-deriving the gouroboros-to-ledger-core mapping a second
// time, since both packages need the identical conversion.
func BuildTxInfo(network common.NetworkId, tx lcommon.Transaction) (TxInfo, error) {
	txHash, err := common.NewHash32(tx.Hash().Bytes())
	if err != nil {
		return TxInfo{}, err
	}

	inputs, err := convertTxIns(tx.Inputs())
	if err != nil {
		return TxInfo{}, err
	}

	refInputs, err := convertTxIns(tx.ReferenceInputs())
	if err != nil {
		return TxInfo{}, err
	}

	rawOutputs := tx.Outputs()
	outputs := make([]common.TxOut, 0, len(rawOutputs))
	for _, o := range rawOutputs {
		co, err := txunpacker.ConvertTxOut(o)
		if err != nil {
			return TxInfo{}, err
		}
		outputs = append(outputs, co)
	}

	certs := make([]common.Certificate, 0, len(tx.Certificates()))
	for _, c := range tx.Certificates() {
		cc, ok := txunpacker.ConvertCertificate(network, c)
		if !ok {
			continue
		}
		certs = append(certs, cc)
	}

	mint := common.NewValue(0)
	if m := tx.AssetMint(); m != nil {
		for policy, names := range m.Enumerate() {
			policyHex := hex.EncodeToString(policy.Bytes())
			for name, qty := range names {
				mint.AddAsset(policyHex, hex.EncodeToString(name.Bytes()), qty.Int64())
			}
		}
	}

	return TxInfo{
		Hash:            txHash,
		Inputs:          inputs,
		ReferenceInputs: refInputs,
		Outputs:         outputs,
		Fee:             tx.Fee().Int64(),
		Certificates:    certs,
		Mint:            mint,
		ValidRange:      validityInterval(tx),
	}, nil
}

// convertTxIns converts a slice of gouroboros inputs, stopping at the
// first conversion error.
func convertTxIns(ins []lcommon.TransactionInput) ([]common.TxIn, error) {
	out := make([]common.TxIn, 0, len(ins))
	for _, in := range ins {
		ci, err := txunpacker.ConvertTxIn(in)
		if err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, nil
}

// validityInterval reads a transaction's [start, ttl) slot bounds. Neither
// bound is mandatory on-chain; an absent lower bound is treated as slot 0
// and an absent upper bound as the max uint64, the same "open on that
// side" convention spec.md's interval types use elsewhere (e.g. epoch
// pulsing windows).
func validityInterval(tx lcommon.Transaction) ValidityInterval {
	vi := ValidityInterval{Start: 0, End: ^uint64(0)}
	if ttl := tx.TTL(); ttl > 0 {
		vi.End = ttl
	}
	if vs := tx.ValidityIntervalStart(); vs > 0 {
		vi.Start = vs
	}
	return vi
}

// BuildScriptContext pairs a transaction's TxInfo with one resolved
// purpose, the exact (ScriptContext) argument spec.md §4.10 describes
// being marshalled to Plutus Data alongside a script's datum/redeemer.
func BuildScriptContext(info TxInfo, purpose Purpose) ScriptContext {
	return ScriptContext{TxInfo: info, Purpose: purpose}
}
