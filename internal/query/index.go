// Package query implements the REST query surface's core-side half of
// spec.md §6: a typed request/response handler registered per bus topic
// (query.utxos, query.pools, ...), answering NotFound/Invalid/Internal
// against the domain state modules directly.
//
// Grounded on internal/bus's RegisterHandler/Request layer for the
// handler mechanism, and on internal/kv's KV[K,V] contract (the teacher's
// storage.Storage shape generalised elsewhere in this tree) for the
// block/transaction index query.blocks and query.transactions need but no
// existing domain module keeps.
package query

import (
	"context"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/kv"
	"github.com/input-output-hk/acropolis/internal/pipeline/blockunpacker"
)

// BlockRecord is what the index keeps per block: enough to answer
// query.blocks without holding the full decoded transaction bodies.
type BlockRecord struct {
	Hash     common.BlockHash
	PrevHash common.BlockHash
	Number   uint64
	Slot     uint64
	Era      uint
	Issuer   common.PoolId
	TxHashes []common.TxHash
}

// Index is the block/transaction lookup table query.blocks and
// query.transactions answer from. It is fed by blockunpacker.TopicBlock,
// so it only ever reflects blocks the favoured chain has actually
// unpacked; it is not itself part of consensus.
type Index struct {
	blocks kv.KV[common.BlockHash, BlockRecord]
	txs    kv.KV[common.TxHash, common.BlockHash]
}

// NewIndex constructs an empty, in-memory block/transaction index.
func NewIndex() *Index {
	return &Index{
		blocks: kv.NewMemoryKV[common.BlockHash, BlockRecord](),
		txs:    kv.NewMemoryKV[common.TxHash, common.BlockHash](),
	}
}

// Run consumes blockunpacker.Block messages and records each one, keyed
// by block hash, plus a transaction-hash-to-block-hash entry per
// transaction the block carries.
func (ix *Index) Run(in <-chan any) {
	for msg := range in {
		blk, ok := msg.(blockunpacker.Block)
		if !ok {
			continue
		}
		ix.record(blk)
	}
}

func (ix *Index) record(blk blockunpacker.Block) {
	txHashes := make([]common.TxHash, 0, len(blk.Transactions))
	for _, tx := range blk.Transactions {
		txHashes = append(txHashes, hashOf(tx))
	}
	_ = ix.blocks.Put(context.Background(), blk.Hash, BlockRecord{
		Hash:     blk.Hash,
		PrevHash: blk.PrevHash,
		Number:   blk.Number,
		Slot:     blk.Slot,
		Era:      blk.Era,
		Issuer:   blk.Issuer,
		TxHashes: txHashes,
	})
	for _, h := range txHashes {
		_ = ix.txs.Put(context.Background(), h, blk.Hash)
	}
}

func hashOf(tx lcommon.Transaction) common.TxHash {
	h, err := common.NewHash32(tx.Hash().Bytes())
	if err != nil {
		return common.TxHash{}
	}
	return h
}

// Block looks up a recorded block by hash.
func (ix *Index) Block(hash common.BlockHash) (BlockRecord, bool) {
	rec, ok, err := ix.blocks.Get(context.Background(), hash)
	if err != nil {
		return BlockRecord{}, false
	}
	return rec, ok
}

// Transaction looks up the block a transaction was recorded in.
func (ix *Index) Transaction(hash common.TxHash) (BlockRecord, bool) {
	blockHash, ok, err := ix.txs.Get(context.Background(), hash)
	if err != nil || !ok {
		return BlockRecord{}, false
	}
	return ix.Block(blockHash)
}
