package common

import "fmt"

// TxIn identifies a UTXO by the hash of the transaction that created it and
// the output index within that transaction.
type TxIn struct {
	Hash  TxHash
	Index uint16
}

// String renders "hash#index", the idiomatic Cardano UTXO reference format.
func (i TxIn) String() string {
	return fmt.Sprintf("%s#%d", i.Hash.String(), i.Index)
}

// TxOut is a transaction output: a destination address, the value it
// carries, an optional inline/hash datum, and an optional reference script.
type TxOut struct {
	Address    Address
	Value      Value
	DatumHash  *Hash32
	InlineDatum []byte
	ScriptRef  []byte
}

// AddressDelta is the per-output event the UTXO state module emits for the
// stake-delta filter to consume: a signed coin/asset change attributed to
// whatever staking part (if any) the output's address carries.
type AddressDelta struct {
	Tx          TxHash
	Output      *TxIn // nil for a delta arising from a spent input
	Address     Address
	Delta       Value
}
