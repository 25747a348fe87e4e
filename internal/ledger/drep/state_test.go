package drep_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/drep"
)

func TestRegistrationUpdateAndDeregistration(t *testing.T) {
	s := drep.New()
	cred := common.NewKeyCredential(common.Hash28{4})

	require.True(t, s.NewlyRegistered(cred))
	s.ApplyCertificate(common.Certificate{Kind: common.CertDRepRegistration, DRep: cred})
	require.False(t, s.NewlyRegistered(cred))
	require.Len(t, s.ActiveSet(), 1)

	anchor := &common.DRepAnchor{URL: "https://example.test/drep.json"}
	s.ApplyCertificate(common.Certificate{Kind: common.CertDRepUpdate, DRep: cred, DRepAnchor: anchor})
	require.Equal(t, anchor, s.ActiveSet()[cred].Anchor)

	s.ApplyCertificate(common.Certificate{Kind: common.CertDRepDeregistration, DRep: cred})
	require.Empty(t, s.ActiveSet())
	require.True(t, s.NewlyRegistered(cred))
}
