package common

import (
	"encoding/hex"
	"fmt"
)

// Hash28 is a 28-byte blake2b-224 digest: key hashes, script hashes, pool
// IDs, DRep key/script hashes.
type Hash28 [28]byte

// Hash32 is a 32-byte blake2b-256 digest: block hashes, transaction hashes.
type Hash32 [32]byte

// NewHash28 builds a Hash28 from a byte slice, erroring on wrong length.
func NewHash28(b []byte) (Hash28, error) {
	var h Hash28
	if len(b) != len(h) {
		return h, fmt.Errorf("hash28: expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// NewHash32 builds a Hash32 from a byte slice, erroring on wrong length.
func NewHash32(b []byte) (Hash32, error) {
	var h Hash32
	if len(b) != len(h) {
		return h, fmt.Errorf("hash32: expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Bytes returns the hash as a byte slice.
func (h Hash28) Bytes() []byte { return h[:] }

// Bytes returns the hash as a byte slice.
func (h Hash32) Bytes() []byte { return h[:] }

// String returns the lower-case hex encoding of the hash.
func (h Hash28) String() string { return hex.EncodeToString(h[:]) }

// String returns the lower-case hex encoding of the hash.
func (h Hash32) String() string { return hex.EncodeToString(h[:]) }

// BlockHash identifies a block by its header hash.
type BlockHash = Hash32

// TxHash identifies a transaction by its body hash.
type TxHash = Hash32

// ScriptHash identifies a Plutus or native script.
type ScriptHash = Hash28

// PoolId identifies a stake pool by its operator key hash.
type PoolId = Hash28
