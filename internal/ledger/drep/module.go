package drep

import (
	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
	"github.com/input-output-hk/acropolis/internal/ledger/stakefilter"
	"github.com/input-output-hk/acropolis/internal/logging"
)

// TopicActiveSet is published at every epoch boundary with the full set
// of currently registered DReps, per spec.md §4.7.
const TopicActiveSet = "drep.state"

// ActiveSet is published on TopicActiveSet.
type ActiveSet struct {
	Epoch  uint64
	DReps  map[common.StakeCredential]Entry
}

// Module wires State to the message fabric.
type Module struct {
	State *State

	bus      *bus.Bus
	certsIn  <-chan any
	epochsIn <-chan any
}

// NewModule constructs the DRep module and subscribes it to its input
// topics immediately.
func NewModule(b *bus.Bus) *Module {
	certsIn, _ := b.Subscribe(stakefilter.TopicCertificateObserved)
	epochsIn, _ := b.Subscribe(epochs.TopicEpochBoundary)
	return &Module{State: New(), bus: b, certsIn: certsIn, epochsIn: epochsIn}
}

// RunCertificates applies DRep certificates in arrival order.
func (m *Module) RunCertificates() {
	for msg := range m.certsIn {
		cert, ok := msg.(common.Certificate)
		if !ok {
			continue
		}
		switch cert.Kind {
		case common.CertDRepRegistration, common.CertDRepUpdate, common.CertDRepDeregistration:
			m.State.ApplyCertificate(cert)
		}
	}
}

// RunEpochBoundary publishes the active DRep set at each epoch boundary.
func (m *Module) RunEpochBoundary() {
	logger := logging.Component("drep")
	for msg := range m.epochsIn {
		eb, ok := msg.(epochs.EpochBoundary)
		if !ok {
			continue
		}
		active := m.State.ActiveSet()
		logger.Info("epoch boundary", "epoch", eb.Epoch, "active", len(active))
		m.bus.Publish(TopicActiveSet, ActiveSet{Epoch: eb.Epoch, DReps: active})
	}
}
