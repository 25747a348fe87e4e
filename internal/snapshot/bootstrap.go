package snapshot

import (
	"bufio"
	"fmt"
	"io"

	fxcbor "github.com/fxamacker/cbor/v2"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/accounts"
	"github.com/input-output-hk/acropolis/internal/ledger/drep"
	"github.com/input-output-hk/acropolis/internal/ledger/governance"
	"github.com/input-output-hk/acropolis/internal/ledger/spo"
	"github.com/input-output-hk/acropolis/internal/ledger/utxo"
)

// TopicComplete is published once the bootstrapper has finished streaming
// the snapshot, handing off to the live peer feed.
const TopicComplete = "snapshot.complete"

// Tip is published on TopicComplete. Bootstrapper.Run fills in only
// Epoch, read from the snapshot; Hash and Slot are left zero.
type Tip struct {
	Hash  common.BlockHash
	Slot  uint64
	Epoch uint64
}

// firstConwayEpoch bounds the epoch sanity check spec.md §4.11 requires:
// a snapshot whose epoch element predates Conway's mainnet activation is
// not a shape this bootstrapper was built to understand.
const firstConwayEpoch = 394

// Bootstrapper streams a single EpochState CBOR blob and installs its
// contents directly into every ledger state module, bypassing ordinary
// certificate/block application.
type Bootstrapper struct {
	bus *bus.Bus

	utxoState       *utxo.State
	spoState        *spo.State
	drepState       *drep.State
	accountsState   *accounts.State
	governanceState *governance.State
}

// New constructs a Bootstrapper wired to every ledger state module it
// installs entries into.
func New(b *bus.Bus, utxoState *utxo.State, spoState *spo.State, drepState *drep.State, accountsState *accounts.State, governanceState *governance.State) *Bootstrapper {
	return &Bootstrapper{
		bus:             b,
		utxoState:       utxoState,
		spoState:        spoState,
		drepState:       drepState,
		accountsState:   accountsState,
		governanceState: governanceState,
	}
}

// Run walks the 7-element EpochState array read from r, installing its
// contents as it streams, and publishes TopicComplete once done. It
// aborts with an explicit error citing the path on any shape mismatch,
// per spec.md §4.11.
func (bs *Bootstrapper) Run(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1<<20)
	var data accounts.BootstrapData

	top, err := peekArrayHeader(br)
	if err != nil {
		return fmt.Errorf("snapshot: reading top-level array header: %w", err)
	}
	if !top.Definite || top.Count != 7 {
		return &common.StructuralError{
			Path: "[]",
			Fields: common.Fields{"definite": top.Definite, "count": top.Count, "want_count": 7},
			Err:  fmt.Errorf("expected a 7-element top-level array"),
		}
	}

	epochRaw, err := scanValue(br)
	if err != nil {
		return fmt.Errorf("snapshot: [0] epoch: %w", err)
	}
	var epoch uint64
	if err := fxcbor.Unmarshal(epochRaw, &epoch); err != nil {
		return fmt.Errorf("snapshot: [0] epoch: %w", err)
	}
	if epoch < firstConwayEpoch {
		return &common.StructuralError{
			Path:   "[0]",
			Fields: common.Fields{"epoch": epoch, "first_conway_epoch": firstConwayEpoch},
			Err:    fmt.Errorf("epoch predates Conway, refusing to bootstrap"),
		}
	}

	for i := 1; i <= 2; i++ {
		if _, err := scanValue(br); err != nil {
			return fmt.Errorf("snapshot: [%d]: %w", i, err)
		}
	}

	ledgerState, err := peekArrayHeader(br)
	if err != nil {
		return fmt.Errorf("snapshot: [3] ledger state header: %w", err)
	}
	if !ledgerState.Definite || ledgerState.Count != 3 {
		return &common.StructuralError{
			Path:   "[3]",
			Fields: common.Fields{"definite": ledgerState.Definite, "count": ledgerState.Count, "want_count": 3},
			Err:    fmt.Errorf("expected a 3-element array"),
		}
	}

	var treasury, reserves int64
	if err := bs.runAccountState(br, &data, &treasury, &reserves); err != nil {
		return fmt.Errorf("snapshot: [3][0]: %w", err)
	}

	// [3][1] is itself a 2-element (cert_state, utxo_state) pair, not the
	// utxo-ledger-state array directly: cert_state sits at [3][1][0], and
	// utxo_state ([3][1][1]) is the further-nested 4-element array holding
	// the utxo map, deposited and fees pots, and governance state.
	certUtxoPair, err := peekArrayHeader(br)
	if err != nil {
		return fmt.Errorf("snapshot: [3][1] header: %w", err)
	}
	if !certUtxoPair.Definite || certUtxoPair.Count != 2 {
		return &common.StructuralError{
			Path:   "[3][1]",
			Fields: common.Fields{"definite": certUtxoPair.Definite, "count": certUtxoPair.Count, "want_count": 2},
			Err:    fmt.Errorf("expected a 2-element array"),
		}
	}

	if err := bs.runCertState(br, &data); err != nil {
		return fmt.Errorf("snapshot: [3][1][0]: %w", err)
	}

	utxoState, err := peekArrayHeader(br)
	if err != nil {
		return fmt.Errorf("snapshot: [3][1][1] utxo-state header: %w", err)
	}
	if !utxoState.Definite || utxoState.Count != 4 {
		return &common.StructuralError{
			Path:   "[3][1][1]",
			Fields: common.Fields{"definite": utxoState.Definite, "count": utxoState.Count, "want_count": 4},
			Err:    fmt.Errorf("expected a 4-element array"),
		}
	}

	if err := bs.runUtxoState(br); err != nil {
		return fmt.Errorf("snapshot: [3][1][1][0]: %w", err)
	}
	deposited, err := scanInt64(br)
	if err != nil {
		return fmt.Errorf("snapshot: [3][1][1][1] deposited pot: %w", err)
	}
	fees, err := scanInt64(br)
	if err != nil {
		return fmt.Errorf("snapshot: [3][1][1][2] fees pot: %w", err)
	}
	if err := bs.runGovernanceState(br); err != nil {
		return fmt.Errorf("snapshot: [3][1][1][3]: %w", err)
	}

	data.Pots = accounts.Pots{Treasury: treasury, Reserves: reserves, Deposits: deposited, Fees: fees}

	if err := bs.runSnapshots(br, &data); err != nil {
		return fmt.Errorf("snapshot: [3][2]: %w", err)
	}

	if err := bs.runPendingRewardUpdate(br, &data); err != nil {
		return fmt.Errorf("snapshot: [4]: %w", err)
	}
	for i := 5; i <= 6; i++ {
		if _, err := scanValue(br); err != nil {
			return fmt.Errorf("snapshot: [%d]: %w", i, err)
		}
	}

	bs.accountsState.Bootstrap(data)
	bs.bus.Publish(TopicComplete, Tip{Epoch: epoch})
	return nil
}

func (bs *Bootstrapper) runAccountState(br *bufio.Reader, data *accounts.BootstrapData, treasury, reserves *int64) error {
	raw, err := scanValue(br)
	if err != nil {
		return err
	}
	var w accountStateWire
	if err := fxcbor.Unmarshal(raw, &w); err != nil {
		return err
	}

	*treasury = w.Treasury
	*reserves = w.Reserves
	data.Accounts = make(map[common.StakeCredential]accounts.StakeAccount, len(w.Accounts))
	for _, aw := range w.Accounts {
		cred, a, err := convertStakeAccount(aw)
		if err != nil {
			return err
		}
		data.Accounts[cred] = a
	}
	return nil
}

func (bs *Bootstrapper) runCertState(br *bufio.Reader, data *accounts.BootstrapData) error {
	raw, err := scanValue(br)
	if err != nil {
		return err
	}
	var w certStateWire
	if err := fxcbor.Unmarshal(raw, &w); err != nil {
		return err
	}

	data.RegisteredPools = make(map[common.PoolId]bool, len(w.Pools))
	for _, pw := range w.Pools {
		pool, pp, err := convertPool(pw)
		if err != nil {
			return err
		}
		bs.spoState.Bootstrap(pool, pp)
		data.RegisteredPools[pool] = true
	}

	data.RegisteredDReps = make(map[common.StakeCredential]bool, len(w.DReps))
	for _, dw := range w.DReps {
		cred, entry, err := convertDRep(dw)
		if err != nil {
			return err
		}
		bs.drepState.Bootstrap(cred, entry)
		data.RegisteredDReps[cred] = true
	}
	return nil
}

// runUtxoState decodes the UTXO map at EpochState[3][1][1][0]. It reads
// only the map itself, not the surrounding array: [3][1][1]'s other three
// indices are each read by their own dedicated step in Run.
func (bs *Bootstrapper) runUtxoState(br *bufio.Reader) error {
	utxoMap, err := peekMapHeader(br)
	if err != nil {
		return err
	}
	if !utxoMap.Definite {
		return &common.StructuralError{
			Path: "[3][1][1][0]",
			Err:  fmt.Errorf("indefinite-length utxo map is not a validated format, refusing to guess"),
		}
	}
	return utxoMapEntries(br, utxoMap.Count, func(in common.TxIn, out common.TxOut) error {
		return bs.utxoState.Bootstrap(in, out)
	})
}

// scanInt64 decodes a single plain integer value, used for the deposited
// and fees pots at EpochState[3][1][1][1] and [3][1][1][2], which
// cardano-ledger's UTxOState carries as bare integers rather than a
// struct.
func scanInt64(br *bufio.Reader) (int64, error) {
	raw, err := scanValue(br)
	if err != nil {
		return 0, err
	}
	var v int64
	if err := fxcbor.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (bs *Bootstrapper) runGovernanceState(br *bufio.Reader) error {
	raw, err := scanValue(br)
	if err != nil {
		return err
	}
	var w governanceStateWire
	if err := fxcbor.Unmarshal(raw, &w); err != nil {
		return err
	}
	for _, pw := range w.Proposals {
		p, err := convertProposal(pw)
		if err != nil {
			return err
		}
		bs.governanceState.Submit(p)
	}
	return nil
}

// runSnapshots decodes the Mark/Set/Go triple at EpochState[3][2]. Go's
// block-count is whatever the source CBOR carries for it verbatim
// (possibly zero); per spec.md §9 this must never be silently defaulted
// to a different value, so it is passed through as decoded rather than
// inferred from Mark or Set.
func (bs *Bootstrapper) runSnapshots(br *bufio.Reader, data *accounts.BootstrapData) error {
	header, err := peekArrayHeader(br)
	if err != nil {
		return err
	}
	if !header.Definite || header.Count != 3 {
		return &common.StructuralError{
			Path:   "[3][2]",
			Fields: common.Fields{"definite": header.Definite, "count": header.Count, "want_count": 3},
			Err:    fmt.Errorf("expected a 3-element [mark, set, go] array"),
		}
	}

	snaps := make([]accounts.EpochSnapshot, 0, 3)
	for i := 0; i < 3; i++ {
		raw, err := scanValue(br)
		if err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
		var w epochSnapshotWire
		if err := fxcbor.Unmarshal(raw, &w); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
		snap, err := convertEpochSnapshot(w)
		if err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
		snaps = append(snaps, snap)
	}

	data.Mark, data.Set, data.Go = snaps[0], snaps[1], snaps[2]
	return nil
}

// runPendingRewardUpdate decodes the optional reward update at
// EpochState[4]. A CBOR null means no reward update is pending, the
// common case outside the last third of an epoch.
func (bs *Bootstrapper) runPendingRewardUpdate(br *bufio.Reader, data *accounts.BootstrapData) error {
	raw, err := scanValue(br)
	if err != nil {
		return err
	}
	if len(raw) == 1 && raw[0] == 0xf6 { // CBOR null
		return nil
	}
	var w rewardUpdateWire
	if err := fxcbor.Unmarshal(raw, &w); err != nil {
		return err
	}
	rUpd, err := convertRewardUpdate(w)
	if err != nil {
		return err
	}
	data.PendingRUpd = &rUpd
	return nil
}
