// Package utxo implements the UTXO state module of spec.md §4.5: the full
// UTXO map, its delta application, and lookups for Phase 2 and the
// stake-delta filter.
//
// Grounded on the teacher's (blinklabs-io/shai) internal/storage
// AddUtxo/RemoveUtxo method shape, generalised from per-address string
// keys into the typed TxIn/TxOut model of internal/common.
package utxo

import (
	"fmt"
	"sync"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// TxDelta is what the tx unpacker publishes per transaction: the inputs it
// spends and the outputs it creates, in that transaction's declared order.
type TxDelta struct {
	Block   common.BlockHash // enclosing block, for Phase 1 vote correlation (spec.md §4.3)
	Tx      common.TxHash
	Inputs  []common.TxIn
	Outputs []common.TxOut // Outputs[i] corresponds to TxIn{Tx, uint16(i)}
}

// Topics.
const (
	TopicAddressDelta = "utxo.address_delta"
)

// State owns the full UTXO map. A version counter lets readers (SPDD
// aggregation) detect whether the map changed under them without needing a
// full persistent-map implementation; spec.md §9 calls for
// structural-sharing persistent maps as the production design, but a
// single RWMutex over a plain map is the correct starting point for a
// from-scratch Go port and keeps the same external contract.
type State struct {
	mu      sync.RWMutex
	utxos   map[common.TxIn]common.TxOut
	version uint64
}

// New constructs an empty UTXO state.
func New() *State {
	return &State{utxos: make(map[common.TxIn]common.TxOut)}
}

// Resolve looks up a UTXO by its reference, for Phase 2 script evaluation
// and the UTXO query handler.
func (s *State) Resolve(in common.TxIn) (common.TxOut, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.utxos[in]
	return out, ok
}

// Version returns the current map version, for SPDD-style consistent-read
// bookkeeping.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the number of live UTXOs.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.utxos)
}

// ApplyDelta removes delta's spent inputs and adds its new outputs,
// verifying every input exists at spend time and that no output collides
// with an existing key, per spec.md §4.5. On success it returns one
// AddressDelta per input removed and per output added, for the
// stake-delta filter.
func (s *State) ApplyDelta(delta TxDelta) ([]common.AddressDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Verify all inputs exist before mutating anything, so a failing
	// transaction leaves the UTXO set untouched.
	for _, in := range delta.Inputs {
		if _, ok := s.utxos[in]; !ok {
			return nil, &common.RuleViolation{
				Reason: "spent-or-absent-utxo",
				Fields: common.Fields{"tx": delta.Tx.String(), "input": in.String()},
			}
		}
	}
	for i := range delta.Outputs {
		in := common.TxIn{Hash: delta.Tx, Index: uint16(i)}
		if _, ok := s.utxos[in]; ok {
			return nil, &common.RuleViolation{
				Reason: "duplicate-utxo-key",
				Fields: common.Fields{"tx": delta.Tx.String(), "output": in.String()},
			}
		}
	}

	var deltas []common.AddressDelta
	for _, in := range delta.Inputs {
		out := s.utxos[in]
		delete(s.utxos, in)
		deltas = append(deltas, common.AddressDelta{
			Tx:      delta.Tx,
			Address: out.Address,
			Delta:   out.Value.Negate(),
		})
	}
	for i, out := range delta.Outputs {
		in := common.TxIn{Hash: delta.Tx, Index: uint16(i)}
		s.utxos[in] = out
		inCopy := in
		deltas = append(deltas, common.AddressDelta{
			Tx:      delta.Tx,
			Output:  &inCopy,
			Address: out.Address,
			Delta:   out.Value,
		})
	}
	s.version++

	logging.Component("utxo").Debug(
		"applied tx delta",
		"tx", delta.Tx.String(),
		"inputs", len(delta.Inputs),
		"outputs", len(delta.Outputs),
		"utxo_count", len(s.utxos),
	)
	return deltas, nil
}

// Bootstrap installs a UTXO entry directly, for the snapshot/genesis
// bootstrapper; it does not emit address deltas (bootstrap messages carry
// their own entity events).
func (s *State) Bootstrap(in common.TxIn, out common.TxOut) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.utxos[in]; ok {
		return fmt.Errorf("utxo: duplicate key during bootstrap: %s", in)
	}
	s.utxos[in] = out
	return nil
}
