package snapshot

import (
	"bufio"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/gouroboros/ledger"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/pipeline/txunpacker"
)

// utxoMapEntries streams exactly count key/value pairs out of r, invoking
// emit once per decoded entry. It never buffers more than one entry's
// bytes at a time regardless of how many entries the map holds, which is
// what makes walking a ~10^7-entry UTXO map tractable in bounded memory.
func utxoMapEntries(r *bufio.Reader, count uint64, emit func(common.TxIn, common.TxOut) error) error {
	for i := uint64(0); i < count; i++ {
		keyRaw, err := scanValue(r)
		if err != nil {
			return err
		}
		valRaw, err := scanValue(r)
		if err != nil {
			return err
		}
		in, out, err := decodeUtxoEntryKV(keyRaw, valRaw)
		if err != nil {
			return err
		}
		if err := emit(in, out); err != nil {
			return err
		}
	}
	return nil
}

// decodeUtxoEntryKV decodes one UTXO map entry from its already-scanned
// key and value bytes, the same per-field decode the teacher's
// Utxo.UnmarshalCBOR does over a raw-message pair (key into a
// ledger.ShelleyTransactionInput, value via
// ledger.NewTransactionOutputFromCbor), applied here to bytes scanValue
// isolated directly from the map's key/value stream rather than from a
// pre-materialised two-element array.
func decodeUtxoEntryKV(keyRaw, valRaw []byte) (common.TxIn, common.TxOut, error) {
	var ref ledger.ShelleyTransactionInput
	if _, err := cbor.Decode(keyRaw, &ref); err != nil {
		return common.TxIn{}, common.TxOut{}, err
	}
	in, err := txunpacker.ConvertTxIn(&ref)
	if err != nil {
		return common.TxIn{}, common.TxOut{}, err
	}

	txOutput, err := ledger.NewTransactionOutputFromCbor(valRaw)
	if err != nil {
		return common.TxIn{}, common.TxOut{}, err
	}
	out, err := txunpacker.ConvertTxOut(txOutput)
	if err != nil {
		return common.TxIn{}, common.TxOut{}, err
	}

	return in, out, nil
}
