// Package stakefilter implements spec.md §4.6: it converts per-output
// address deltas from the UTXO state module into stake-credential deltas,
// resolving Shelley pointer addresses against an auxiliary registration
// table built from certificates it observes passing through.
//
// Grounded on the teacher's (blinklabs-io/shai) storage layer's small
// auxiliary-map idiom (a plain map guarded by a mutex, no persistence
// abstraction needed for a table this size).
package stakefilter

import (
	"sync"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/utxo"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// TopicCertificate mirrors the tx unpacker's certificate topic. Duplicated
// as a constant (rather than imported) so this package has no dependency
// on internal/pipeline/txunpacker.
const TopicCertificate = "txunpacker.certificate"

// TopicStakeDelta is where the filter publishes resolved stake deltas.
const TopicStakeDelta = "stakefilter.stake_delta"

// TopicCertificateObserved re-publishes every certificate the filter sees,
// in arrival order, so SPO/DRep/accounts share one consistent feed instead
// of each re-subscribing to the raw tx-unpacker topic independently.
const TopicCertificateObserved = "stakefilter.certificate"

// StakeDelta is the filter's output message: a signed coin/asset change
// attributed to a stake credential.
type StakeDelta struct {
	Tx         common.TxHash
	Credential common.StakeCredential
	Delta      common.Value
}

// Filter owns the pointer-address resolution table: chain pointer (slot,
// tx index, cert index) to the stake credential registered at that point.
type Filter struct {
	mu       sync.RWMutex
	pointers map[common.ChainPointer]common.StakeCredential

	bus      *bus.Bus
	deltasIn <-chan any
	certsIn  <-chan any
}

// New constructs an empty filter and subscribes it to both input topics
// immediately, so no message published after construction can race
// RunAddressDeltas/RunCertificates' first receive.
func New(b *bus.Bus) *Filter {
	deltasIn, _ := b.Subscribe(utxo.TopicAddressDelta)
	certsIn, _ := b.Subscribe(TopicCertificate)
	return &Filter{
		pointers: make(map[common.ChainPointer]common.StakeCredential),
		bus:      b,
		deltasIn: deltasIn,
		certsIn:  certsIn,
	}
}

// RunAddressDeltas consumes address.delta messages and publishes the
// resolved stake.delta for any output carrying a staking part (direct or
// pointer), ignoring outputs with none.
func (f *Filter) RunAddressDeltas() {
	logger := logging.Component("stakefilter")
	for msg := range f.deltasIn {
		ad, ok := msg.(common.AddressDelta)
		if !ok {
			continue
		}
		cred, ok := f.resolve(ad.Address)
		if !ok {
			continue
		}
		logger.Debug("resolved stake delta", "tx", ad.Tx.String(), "credential", cred.String())
		f.bus.Publish(TopicStakeDelta, StakeDelta{Tx: ad.Tx, Credential: cred, Delta: ad.Delta})
	}
}

// RunCertificates consumes certificates, records stake-registration
// pointer targets, and re-publishes every certificate on
// TopicCertificateObserved for downstream domain modules.
func (f *Filter) RunCertificates() {
	for msg := range f.certsIn {
		cert, ok := msg.(common.Certificate)
		if !ok {
			continue
		}
		if cert.Kind == common.CertStakeRegistration && cert.Pointer != nil {
			f.ObservePointer(*cert.Pointer, cert.StakeCredential)
		}
		f.bus.Publish(TopicCertificateObserved, cert)
	}
}

// ObservePointer records the stake credential registered at chain pointer
// p, so a later pointer-address output resolves to it. RunCertificates
// calls it for every stake-registration certificate whose Pointer the tx
// unpacker filled in from the certificate's chain position (slot, tx
// index, cert index); it is also callable directly.
func (f *Filter) ObservePointer(p common.ChainPointer, cred common.StakeCredential) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pointers[p] = cred
}

// resolve returns the stake credential an address contributes to, if any:
// the direct staking part, or — for a pointer address — whatever
// credential was registered at the pointed-to certificate.
func (f *Filter) resolve(addr common.Address) (common.StakeCredential, bool) {
	if addr.Staking != nil {
		return *addr.Staking, true
	}
	if addr.Pointer == nil {
		return common.StakeCredential{}, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	cred, ok := f.pointers[*addr.Pointer]
	return cred, ok
}
