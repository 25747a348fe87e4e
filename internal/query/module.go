package query

import (
	"sync"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/ledger/accounts"
	"github.com/input-output-hk/acropolis/internal/ledger/drep"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
	"github.com/input-output-hk/acropolis/internal/ledger/governance"
	"github.com/input-output-hk/acropolis/internal/ledger/params"
	"github.com/input-output-hk/acropolis/internal/ledger/spo"
	"github.com/input-output-hk/acropolis/internal/ledger/utxo"
	"github.com/input-output-hk/acropolis/internal/pipeline/blockunpacker"
)

// Module owns the query surface: it registers one handler per query.*
// topic against the bus's request/response layer, and runs the small
// block/transaction and distribution caches those handlers read from.
type Module struct {
	bus *bus.Bus

	utxoState       *utxo.State
	spoState        *spo.State
	drepState       *drep.State
	accountsState   *accounts.State
	governanceState *governance.State
	epochsState     *epochs.State
	paramsState     *params.State

	index *Index

	// spdd and drdd cache the most recently published stake/DRep
	// delegation distributions. Both arrive over the bus wrapped as
	// governance.Delegation (map[common.StakeCredential]uint64) — SPDD's
	// pool ids travel wrapped as key-hash stake credentials, the same
	// shape internal/ledger/governance itself consumes them in, since
	// that is the only wire shape the accounts module publishes.
	distMu sync.Mutex
	spdd   governance.Delegation
	drdd   governance.Delegation

	blocksIn <-chan any
	spddIn   <-chan any
	drddIn   <-chan any
}

// Deps bundles every domain state module the query surface reads from.
type Deps struct {
	Utxo       *utxo.State
	Spo        *spo.State
	Drep       *drep.State
	Accounts   *accounts.State
	Governance *governance.State
	Epochs     *epochs.State
	Params     *params.State
}

// NewModule constructs the query surface, subscribing to the topics its
// caches need and registering every query.* handler. It does not start
// consuming messages until Run is called.
func NewModule(b *bus.Bus, deps Deps) *Module {
	blocksIn, _ := b.Subscribe(blockunpacker.TopicBlock)
	spddIn, _ := b.Subscribe(accounts.TopicSPDD)
	drddIn, _ := b.Subscribe(accounts.TopicDRDD)

	m := &Module{
		bus:             b,
		utxoState:       deps.Utxo,
		spoState:        deps.Spo,
		drepState:       deps.Drep,
		accountsState:   deps.Accounts,
		governanceState: deps.Governance,
		epochsState:     deps.Epochs,
		paramsState:     deps.Params,
		index:           NewIndex(),
		spdd:            governance.Delegation{},
		drdd:            governance.Delegation{},
		blocksIn:        blocksIn,
		spddIn:          spddIn,
		drddIn:          drddIn,
	}
	m.registerHandlers()
	return m
}

// Run starts the block index and the SPDD/DRDD caches, each on its own
// goroutine, and returns at once; each keeps consuming until the bus
// shuts its topic's channel down.
func (m *Module) Run() {
	go m.index.Run(m.blocksIn)
	go m.runSPDD()
	go m.runDRDD()
}

func (m *Module) runSPDD() {
	for msg := range m.spddIn {
		d, ok := msg.(governance.Delegation)
		if !ok {
			continue
		}
		m.distMu.Lock()
		m.spdd = d
		m.distMu.Unlock()
	}
}

func (m *Module) runDRDD() {
	for msg := range m.drddIn {
		d, ok := msg.(governance.Delegation)
		if !ok {
			continue
		}
		m.distMu.Lock()
		m.drdd = d
		m.distMu.Unlock()
	}
}

func (m *Module) snapshotDistributions() (spdd, drdd governance.Delegation) {
	m.distMu.Lock()
	defer m.distMu.Unlock()
	spdd = make(governance.Delegation, len(m.spdd))
	for k, v := range m.spdd {
		spdd[k] = v
	}
	drdd = make(governance.Delegation, len(m.drdd))
	for k, v := range m.drdd {
		drdd[k] = v
	}
	return spdd, drdd
}
