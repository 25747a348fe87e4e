package spo

import (
	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
	"github.com/input-output-hk/acropolis/internal/ledger/stakefilter"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// TopicPoolRetired is published once per pool whose scheduled retirement
// takes effect at an epoch boundary, for the accounts module's deposit
// refund.
const TopicPoolRetired = "spo.pool_retired"

// TopicActiveSet is published at every epoch boundary with the full set
// of currently registered pools, per spec.md §4.7.
const TopicActiveSet = "spo.state"

// ActiveSet is published on TopicActiveSet.
type ActiveSet struct {
	Epoch uint64
	Pools map[common.PoolId]common.PoolParams
}

// Module wires State to the message fabric.
type Module struct {
	State *State

	bus      *bus.Bus
	certsIn  <-chan any
	epochsIn <-chan any
}

// NewModule constructs the SPO module and subscribes it to its input
// topics immediately.
func NewModule(b *bus.Bus) *Module {
	certsIn, _ := b.Subscribe(stakefilter.TopicCertificateObserved)
	epochsIn, _ := b.Subscribe(epochs.TopicEpochBoundary)
	return &Module{State: New(), bus: b, certsIn: certsIn, epochsIn: epochsIn}
}

// RunCertificates applies pool certificates in arrival order (which
// equals tx order within a block, per spec.md §4.4).
func (m *Module) RunCertificates() {
	for msg := range m.certsIn {
		cert, ok := msg.(common.Certificate)
		if !ok {
			continue
		}
		if cert.Kind != common.CertPoolRegistration && cert.Kind != common.CertPoolRetirement {
			continue
		}
		m.State.ApplyCertificate(cert)
	}
}

// RunEpochBoundary finalises scheduled retirements and publishes the
// active pool set at each epoch boundary.
func (m *Module) RunEpochBoundary() {
	logger := logging.Component("spo")
	for msg := range m.epochsIn {
		eb, ok := msg.(epochs.EpochBoundary)
		if !ok {
			continue
		}
		retired := m.State.EnterEpoch(eb.Epoch)
		for _, r := range retired {
			m.bus.Publish(TopicPoolRetired, r)
		}
		activeSet := m.State.ActiveSet()
		logger.Info("epoch boundary", "epoch", eb.Epoch, "retired", len(retired), "active", len(activeSet))
		m.bus.Publish(TopicActiveSet, ActiveSet{Epoch: eb.Epoch, Pools: activeSet})
	}
}
