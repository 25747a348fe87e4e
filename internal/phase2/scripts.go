package phase2

import (
	"golang.org/x/crypto/blake2b"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/pipeline/txunpacker"
)

// scriptEntry pairs a witness script's raw program bytes with its
// language version, keyed by its script hash in scriptIndex.
type scriptEntry struct {
	Bytes    []byte
	Language Language
}

// scriptTag is the language-version byte Cardano prefixes a script's
// bytes with before hashing (native=0, V1=1, V2=2, V3=3), per the
// ledger's script-hash derivation.
const (
	scriptTagNative byte = 0
	scriptTagV1     byte = 1
	scriptTagV2     byte = 2
	scriptTagV3     byte = 3
)

// plutusScript narrows the three lcommon.PlutusVxScript wrapper types
// down to the one accessor this package needs. None of the three expose
// a confirmed byte accessor in the retrieval pack; `.Cbor() []byte` is
// assumed by the same analogy used for lcommon.Datum/lcommon.Script in
// internal/pipeline/txunpacker's convertTxOut — every small gouroboros
// wrapper type observed embeds cbor.DecodeStoreCbor, which exposes a
// Cbor() []byte method.
type plutusScript interface {
	Cbor() []byte
}

// scriptHash derives a script's hash the way the ledger does: blake2b-224
// over the language-version tag byte concatenated with the script's
// serialized bytes.
func scriptHash(tag byte, scriptBytes []byte) (common.Hash28, error) {
	h, err := blake2b.New(28, nil)
	if err != nil {
		return common.Hash28{}, err
	}
	if _, err := h.Write([]byte{tag}); err != nil {
		return common.Hash28{}, err
	}
	if _, err := h.Write(scriptBytes); err != nil {
		return common.Hash28{}, err
	}
	return common.NewHash28(h.Sum(nil))
}

// buildScriptIndex indexes every Plutus script in a transaction's witness
// set by its script hash, so collectRedeemers' purpose references
// (credential/policy script hashes) can be resolved back to program bytes
// and a language version for the interpreter call.
func buildScriptIndex(tx lcommon.Transaction) map[common.Hash28]scriptEntry {
	idx := map[common.Hash28]scriptEntry{}
	ws := tx.Witnesses()
	if ws == nil {
		return idx
	}
	indexScripts(idx, ws.PlutusV1Scripts(), scriptTagV1, PlutusV1)
	indexScripts(idx, ws.PlutusV2Scripts(), scriptTagV2, PlutusV2)
	indexScripts(idx, ws.PlutusV3Scripts(), scriptTagV3, PlutusV3)
	return idx
}

// indexScripts is parameterized over S rather than constrained to
// plutusScript: lcommon.PlutusV1/V2/V3Script are concrete gouroboros
// types whose method set isn't confirmed in the retrieval pack, so S is
// left unconstrained and each element is asserted against plutusScript
// at runtime instead of at the type-parameter boundary. An element that
// doesn't carry a Cbor() accessor is skipped rather than failing to
// compile.
func indexScripts[S any](idx map[common.Hash28]scriptEntry, scripts []S, tag byte, lang Language) {
	for _, s := range scripts {
		ps, ok := any(s).(plutusScript)
		if !ok {
			continue
		}
		raw := ps.Cbor()
		h, err := scriptHash(tag, raw)
		if err != nil {
			continue
		}
		idx[h] = scriptEntry{Bytes: raw, Language: lang}
	}
}

// resolveScript locates a redeemer's script program and language version
// given its purpose reference. Spending purposes resolve through the
// spent input's output (a reference script takes priority over a
// witness-set script, matching CIP-33 reference-script precedence);
// every other purpose resolves through the credential/policy hash the
// purpose carries, looked up directly in the witness-set index.
func resolveScript(idx map[common.Hash28]scriptEntry, resolve func(common.TxIn) (common.TxOut, bool), network common.NetworkId, purpose Purpose) (scriptEntry, bool) {
	switch purpose.Kind {
	case PurposeSpending:
		in, ok := purpose.Ref.(common.TxIn)
		if !ok {
			return scriptEntry{}, false
		}
		out, ok := resolve(in)
		if !ok {
			return scriptEntry{}, false
		}
		if len(out.ScriptRef) > 0 {
			if h, err := scriptHash(scriptTagV2, out.ScriptRef); err == nil {
				if e, ok := idx[h]; ok {
					return e, true
				}
			}
			return scriptEntry{Bytes: out.ScriptRef, Language: PlutusV2}, true
		}
		if out.Address.Payment != nil && out.Address.Payment.Kind == common.CredentialScriptHash {
			e, ok := idx[out.Address.Payment.Hash]
			return e, ok
		}
		return scriptEntry{}, false

	case PurposeMinting:
		policy, ok := purpose.Ref.([28]byte)
		if !ok {
			return scriptEntry{}, false
		}
		h, err := common.NewHash28(policy[:])
		if err != nil {
			return scriptEntry{}, false
		}
		e, ok := idx[h]
		return e, ok

	case PurposeCertifying:
		raw, ok := purpose.Ref.(lcommon.Certificate)
		if !ok {
			return scriptEntry{}, false
		}
		cert, ok := txunpacker.ConvertCertificate(network, raw)
		if !ok {
			return scriptEntry{}, false
		}
		var cred common.StakeCredential
		switch cert.Kind {
		case common.CertDRepRegistration, common.CertDRepDeregistration, common.CertDRepUpdate:
			cred = cert.DRep
		default:
			cred = cert.StakeCredential
		}
		if cred.Kind != common.CredentialScriptHash {
			return scriptEntry{}, false
		}
		e, ok := idx[cred.Hash]
		return e, ok

	case PurposeRewarding:
		addr, ok := purpose.Ref.(*lcommon.Address)
		if !ok || addr == nil {
			return scriptEntry{}, false
		}
		h, err := common.NewHash28(addr.StakeKeyHash().Bytes())
		if err != nil {
			return scriptEntry{}, false
		}
		e, ok := idx[h]
		return e, ok

	default:
		// Voting/Proposing credentials aren't carried on Purpose.Ref in a
		// directly hashable shape yet; resolving these purposes' governance
		// committee/DRep script credentials is left for when that shape is
		// grounded.
		return scriptEntry{}, false
	}
}
