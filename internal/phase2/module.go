package phase2

import (
	"context"
	"sync"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/utxo"
	"github.com/input-output-hk/acropolis/internal/logging"
	"github.com/input-output-hk/acropolis/internal/pipeline/blockunpacker"
	"github.com/input-output-hk/acropolis/internal/validation"
)

// TopicVote is the script domain's Phase 1 vote topic (spec.md §4.3).
const TopicVote = "validation.script"

// Module resolves and evaluates every Plutus redeemer in a block's
// transactions, per spec.md §4.10, and casts the script domain's Phase 1
// vote. Disabled (config.Phase2Enabled == false) it votes Go
// unconditionally without decoding or evaluating anything.
type Module struct {
	bus         *bus.Bus
	in          <-chan any
	network     common.NetworkId
	utxoState   *utxo.State
	interpreter Interpreter
	costModels  map[Language]CostModel
	budget      Budget
	cpu         *common.CPUPool
	enabled     bool
}

// NewModule constructs the Plutus validator and subscribes it to
// blockunpacker.TopicBlock immediately, so no block published after
// construction can race Run's first receive. utxoState resolves a
// redeemer's spent input down to its output (script ref/inline datum);
// cpu bounds how many script evaluations run concurrently, per spec.md
// §5's CPU-pool policy.
func NewModule(
	b *bus.Bus,
	network common.NetworkId,
	utxoState *utxo.State,
	interpreter Interpreter,
	costModels map[Language]CostModel,
	budget Budget,
	cpu *common.CPUPool,
	enabled bool,
) *Module {
	in, _ := b.Subscribe(blockunpacker.TopicBlock)
	return &Module{
		bus:         b,
		in:          in,
		network:     network,
		utxoState:   utxoState,
		interpreter: interpreter,
		costModels:  costModels,
		budget:      budget,
		cpu:         cpu,
		enabled:     enabled,
	}
}

// Run evaluates every transaction's redeemers in block order and casts
// one script-domain vote per transaction, tagged with the enclosing
// block's hash.
func (m *Module) Run() {
	logger := logging.Component("phase2")
	for msg := range m.in {
		blk, ok := msg.(blockunpacker.Block)
		if !ok {
			continue
		}
		for _, tx := range blk.Transactions {
			m.evaluateTx(blk.Hash, tx, logger)
		}
	}
}

// evaluateTx resolves and runs every redeemer a transaction carries,
// scheduling each on the CPU pool so scripts run in parallel within the
// transaction, then casts a single vote summarising the worst outcome.
func (m *Module) evaluateTx(blockHash common.BlockHash, tx lcommon.Transaction, logger interface {
	Warn(msg string, args ...any)
}) {
	if !m.enabled {
		m.bus.Publish(TopicVote, validation.Vote{Block: blockHash, Domain: "script", Go: true})
		return
	}

	// lcommon.TransactionWitnessRedeemers' confirmed surface is narrower
	// than redeemerWitnesses (Value is this package's own, unconfirmed
	// narrowing — see redeemers.go). The type assertion degrades to "no
	// redeemers found" rather than failing to compile if the concrete
	// gouroboros type doesn't carry a Value accessor.
	var ws redeemerWitnesses
	if wset := tx.Witnesses(); wset != nil {
		if redeemers := wset.Redeemers(); redeemers != nil {
			ws, _ = redeemers.(redeemerWitnesses)
		}
	}
	entries := collectRedeemers(tx, ws)
	if len(entries) == 0 {
		m.bus.Publish(TopicVote, validation.Vote{Block: blockHash, Domain: "script", Go: true})
		return
	}

	info, err := BuildTxInfo(m.network, tx)
	if err != nil {
		logger.Warn("could not build script context", "error", err)
		m.bus.Publish(TopicVote, validation.Vote{
			Block:  blockHash,
			Domain: "script",
			Go:     false,
			Reason: &common.NoGoReason{Code: "script_context", Fields: common.Fields{"error": err.Error()}},
		})
		return
	}

	idx := buildScriptIndex(tx)

	var mu sync.Mutex
	var failure *common.NoGoReason
	for _, entry := range entries {
		entry := entry
		m.cpu.Submit(func() {
			_, scriptErr := m.evaluate(idx, info, entry)
			if scriptErr == nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if failure == nil {
				failure = &common.NoGoReason{
					Code: "script_failed",
					Fields: common.Fields{
						"purpose": entry.Purpose.Kind.String(),
						"kind":    string(scriptErr.Kind),
					},
				}
			}
		})
	}
	m.cpu.Wait()

	if failure != nil {
		m.bus.Publish(TopicVote, validation.Vote{Block: blockHash, Domain: "script", Go: false, Reason: failure})
		return
	}
	m.bus.Publish(TopicVote, validation.Vote{Block: blockHash, Domain: "script", Go: true})
}

// evaluate resolves one redeemer's script and invokes the interpreter
// under its declared budget. A script-hash lookup miss is classified as
// a decode failure, per spec.md §4.10's Failure::Decode.
func (m *Module) evaluate(idx map[common.Hash28]scriptEntry, info TxInfo, entry redeemerEntry) (Outcome, *common.ScriptError) {
	script, ok := resolveScript(idx, m.utxoState.Resolve, m.network, entry.Purpose)
	if !ok {
		return Outcome{}, &common.ScriptError{
			Kind:    common.ScriptFailureDecode,
			Purpose: entry.Purpose.Kind.String(),
			Fields:  common.Fields{"reason": "script not found"},
		}
	}

	args := Args{
		Redeemer: entry.Data,
		Context:  BuildScriptContext(info, entry.Purpose),
	}
	if in, ok := entry.Purpose.Ref.(common.TxIn); ok && entry.Purpose.Kind == PurposeSpending {
		if out, found := m.utxoState.Resolve(in); found {
			args.Datum = out.InlineDatum
		}
	}

	outcome, err := m.interpreter.Run(context.Background(), script.Bytes, args, m.costModels[script.Language], entry.Budget)
	if err != nil {
		return Outcome{}, &common.ScriptError{
			Kind:    common.ScriptFailureDecode,
			Purpose: entry.Purpose.Kind.String(),
			Fields:  common.Fields{"error": err.Error()},
		}
	}
	if !outcome.Success {
		kind := outcome.Kind
		if kind == "" {
			kind = common.ScriptFailureExplicitError
		}
		return outcome, &common.ScriptError{Kind: kind, Purpose: entry.Purpose.Kind.String()}
	}
	if m.budget.Exceeds(outcome.Consumed) {
		return outcome, &common.ScriptError{Kind: common.ScriptFailureBudgetExceeded, Purpose: entry.Purpose.Kind.String()}
	}
	return outcome, nil
}
