package txunpacker

import (
	"golang.org/x/crypto/blake2b"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/accounts"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
	"github.com/input-output-hk/acropolis/internal/ledger/governance"
	"github.com/input-output-hk/acropolis/internal/ledger/stakefilter"
	"github.com/input-output-hk/acropolis/internal/ledger/utxo"
	"github.com/input-output-hk/acropolis/internal/logging"
	"github.com/input-output-hk/acropolis/internal/pipeline/blockunpacker"
)

// Module fans a batched block message out to every domain-specific
// message the ledger modules subscribe to, in transaction order within
// the block, per spec.md §4.4.
type Module struct {
	bus         *bus.Bus
	in          <-chan any
	network     common.NetworkId
	epochLength uint64
}

// NewModule constructs the tx unpacker and subscribes it to
// blockunpacker.TopicBlock immediately, so no block published after
// construction can race Run's first receive. epochLength is the fixed
// number of slots per epoch, used to derive each block's epoch from its
// slot number the same way the mainnet protocol does post-Shelley.
func NewModule(b *bus.Bus, network common.NetworkId, epochLength uint64) *Module {
	in, _ := b.Subscribe(blockunpacker.TopicBlock)
	return &Module{bus: b, in: in, network: network, epochLength: epochLength}
}

// Run decodes each block's transactions in order and publishes the
// per-domain messages every downstream ledger module consumes.
func (m *Module) Run() {
	logger := logging.Component("txunpacker")
	for msg := range m.in {
		blk, ok := msg.(blockunpacker.Block)
		if !ok {
			continue
		}
		var fees int64
		for txIdx, tx := range blk.Transactions {
			fees += tx.Fee().Int64()
			m.publishTx(blk.Hash, blk.Slot, txIdx, tx, logger)
		}
		nonce, err := nonceContribution(blk.Hash)
		if err != nil {
			logger.Warn("could not derive nonce contribution", "hash", blk.Hash.String(), "error", err)
			continue
		}
		m.bus.Publish(epochs.TopicBlockSummary, epochs.BlockSummary{
			Epoch:    blockEpoch(blk.Slot, m.epochLength),
			Slot:     blk.Slot,
			Fee:      fees,
			Producer: blk.Issuer,
			Nonce:    nonce,
		})
	}
}

// publishTx converts and publishes every message a single transaction
// contributes: its UTXO delta, any certificates, withdrawals, governance
// proposals, and votes, in that order. slot and txIdx locate the
// transaction within the block, so each certificate can carry its chain
// pointer (slot, tx index, cert index) for Shelley pointer-address
// resolution.
func (m *Module) publishTx(blockHash common.BlockHash, slot uint64, txIdx int, tx lcommon.Transaction, logger interface {
	Warn(msg string, args ...any)
}) {
	txHash, err := common.NewHash32(tx.Hash().Bytes())
	if err != nil {
		logger.Warn("could not parse tx hash", "error", err)
		return
	}

	m.publishTxDelta(blockHash, txHash, tx, logger)

	for certIdx, cert := range tx.Certificates() {
		ptr := common.ChainPointer{Slot: slot, TxIndex: uint32(txIdx), CertIndex: uint32(certIdx)}
		converted, ok := convertCertificate(m.network, cert, &ptr)
		if !ok {
			continue
		}
		m.bus.Publish(stakefilter.TopicCertificate, converted)
	}

	if tx.IsValid() {
		for _, w := range convertWithdrawals(m.network, tx.Withdrawals()) {
			m.bus.Publish(accounts.TopicWithdrawal, w)
		}
	}

	for idx, proposal := range tx.ProposalProcedures() {
		p, ok := convertProposal(m.network, txHash, idx, proposal)
		if !ok {
			continue
		}
		m.bus.Publish(governance.TopicProposalSubmitted, p)
	}

	for _, v := range convertVotes(tx.VotingProcedures()) {
		m.bus.Publish(governance.TopicVoteCast, v)
	}
}

// publishTxDelta converts a transaction's actual consumed/produced UTXO
// effect (not its raw input/output lists, which phase-2 script failure
// can override with collateral instead) into the UTXO domain's delta
// message.
func (m *Module) publishTxDelta(blockHash common.BlockHash, txHash common.TxHash, tx lcommon.Transaction, logger interface {
	Warn(msg string, args ...any)
}) {
	consumed := tx.Consumed()
	inputs := make([]common.TxIn, 0, len(consumed))
	for _, in := range consumed {
		ci, err := convertTxIn(in)
		if err != nil {
			logger.Warn("could not convert consumed input", "tx", txHash.String(), "error", err)
			continue
		}
		inputs = append(inputs, ci)
	}

	produced := tx.Produced()
	outputs := make([]common.TxOut, len(produced))
	for i, u := range produced {
		co, err := convertTxOut(u.Output)
		if err != nil {
			logger.Warn("could not convert produced output", "tx", txHash.String(), "index", i, "error", err)
			continue
		}
		outputs[i] = co
	}

	m.bus.Publish(utxo.TopicTxDelta, utxo.TxDelta{
		Block:   blockHash,
		Tx:      txHash,
		Inputs:  inputs,
		Outputs: outputs,
	})
}

// blockEpoch derives a block's epoch number from its slot under a fixed
// epoch length, the post-Shelley mainnet scheme.
func blockEpoch(slot, epochLength uint64) uint64 {
	if epochLength == 0 {
		return 0
	}
	return slot / epochLength
}

// nonceContribution derives a block's eta/nonce contribution from its
// hash. The header's VRF output would be the exact on-chain nonce
// contribution, but ledger.Block's confirmed interface exposes no VRF
// accessor, so a blake2b-256 digest of the block hash stands in as a
// deterministic, order-sensitive substitute.
func nonceContribution(blockHash common.BlockHash) (common.Hash32, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return common.Hash32{}, err
	}
	if _, err := h.Write(blockHash[:]); err != nil {
		return common.Hash32{}, err
	}
	return common.NewHash32(h.Sum(nil))
}
