package stakefilter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/bus"
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/stakefilter"
	"github.com/input-output-hk/acropolis/internal/ledger/utxo"
)

func TestDirectStakingPartResolvesImmediately(t *testing.T) {
	b := bus.New(nil)
	f := stakefilter.New(b)
	deltas, _ := b.Subscribe(stakefilter.TopicStakeDelta)
	go f.RunAddressDeltas()

	cred := common.NewKeyCredential(common.Hash28{7})
	addr := common.Address{Staking: &cred}

	var tx common.TxHash
	tx[0] = 1
	b.Publish(utxo.TopicAddressDelta, common.AddressDelta{
		Tx:      tx,
		Address: addr,
		Delta:   common.NewValue(500),
	})

	select {
	case d := <-deltas:
		sd := d.(stakefilter.StakeDelta)
		require.Equal(t, cred, sd.Credential)
		require.Equal(t, int64(500), sd.Delta.Coin)
	case <-time.After(time.Second):
		t.Fatal("no stake delta published")
	}
}

func TestAddressWithNoStakingPartIsIgnored(t *testing.T) {
	b := bus.New(nil)
	f := stakefilter.New(b)
	deltas, _ := b.Subscribe(stakefilter.TopicStakeDelta)
	go f.RunAddressDeltas()

	var tx common.TxHash
	tx[0] = 2
	b.Publish(utxo.TopicAddressDelta, common.AddressDelta{
		Tx:      tx,
		Address: common.Address{},
		Delta:   common.NewValue(10),
	})

	select {
	case <-deltas:
		t.Fatal("did not expect a stake delta for an address with no staking part")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPointerAddressResolvesAfterObservation(t *testing.T) {
	b := bus.New(nil)
	f := stakefilter.New(b)
	deltas, _ := b.Subscribe(stakefilter.TopicStakeDelta)
	go f.RunAddressDeltas()

	ptr := common.ChainPointer{Slot: 100, TxIndex: 1, CertIndex: 0}
	cred := common.NewKeyCredential(common.Hash28{9})
	f.ObservePointer(ptr, cred)

	var tx common.TxHash
	tx[0] = 3
	b.Publish(utxo.TopicAddressDelta, common.AddressDelta{
		Tx:      tx,
		Address: common.Address{Pointer: &ptr},
		Delta:   common.NewValue(250),
	})

	select {
	case d := <-deltas:
		sd := d.(stakefilter.StakeDelta)
		require.Equal(t, cred, sd.Credential)
	case <-time.After(time.Second):
		t.Fatal("no stake delta published")
	}
}

func TestCertificatesAreRepublishedObserved(t *testing.T) {
	b := bus.New(nil)
	f := stakefilter.New(b)
	observed, _ := b.Subscribe(stakefilter.TopicCertificateObserved)
	go f.RunCertificates()

	cert := common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: common.NewKeyCredential(common.Hash28{1})}
	b.Publish(stakefilter.TopicCertificate, cert)

	select {
	case c := <-observed:
		require.Equal(t, cert, c.(common.Certificate))
	case <-time.After(time.Second):
		t.Fatal("certificate was not re-published")
	}
}
