package governance_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/governance"
)

func TestProposalRatifiesWhenDRepThresholdMet(t *testing.T) {
	s := governance.New()
	action := common.GovActionId{Index: 1}
	s.Submit(governance.Proposal{Id: action, Kind: common.ProposalParameterChange, ExpiryEpoch: 100})

	drep1 := common.NewKeyCredential(common.Hash28{1})
	drep2 := common.NewKeyCredential(common.Hash28{2})
	s.Vote(action, common.Voter{Role: common.VoterDRep, Credential: drep1}, common.VoteYes)
	s.Vote(action, common.Voter{Role: common.VoterDRep, Credential: drep2}, common.VoteNo)
	committee := common.NewKeyCredential(common.Hash28{5})
	s.Vote(action, common.Voter{Role: common.VoterConstitutionalCommittee, Credential: committee}, common.VoteYes)

	dreps := governance.Delegation{drep1: 700, drep2: 300}
	enacted, expired := s.EnterEpoch(1, dreps, nil)
	require.Len(t, enacted, 1)
	require.Empty(t, expired)
	require.Equal(t, action, enacted[0].Proposal.Id)
}

func TestProposalWithoutCommitteeApprovalDoesNotRatify(t *testing.T) {
	s := governance.New()
	action := common.GovActionId{Index: 5}
	s.Submit(governance.Proposal{Id: action, Kind: common.ProposalParameterChange, ExpiryEpoch: 100})

	drep := common.NewKeyCredential(common.Hash28{1})
	s.Vote(action, common.Voter{Role: common.VoterDRep, Credential: drep}, common.VoteYes)
	dreps := governance.Delegation{drep: 1000}

	enacted, _ := s.EnterEpoch(1, dreps, nil)
	require.Empty(t, enacted, "DRep threshold met but no committee vote cast")
}

func TestNoConfidenceRatifiesWithoutCommitteeApproval(t *testing.T) {
	s := governance.New()
	action := common.GovActionId{Index: 6}
	s.Submit(governance.Proposal{Id: action, Kind: common.ProposalNoConfidence, ExpiryEpoch: 100})

	drep := common.NewKeyCredential(common.Hash28{1})
	pool := common.NewKeyCredential(common.Hash28{2})
	s.Vote(action, common.Voter{Role: common.VoterDRep, Credential: drep}, common.VoteYes)
	s.Vote(action, common.Voter{Role: common.VoterSPO, Credential: pool}, common.VoteYes)
	dreps := governance.Delegation{drep: 1000}
	spos := governance.Delegation{pool: 1000}

	enacted, _ := s.EnterEpoch(1, dreps, spos)
	require.Len(t, enacted, 1, "the committee cannot block its own no-confidence vote")
}

func TestProposalExpiresWithoutRatification(t *testing.T) {
	s := governance.New()
	action := common.GovActionId{Index: 2}
	s.Submit(governance.Proposal{Id: action, Kind: common.ProposalParameterChange, ExpiryEpoch: 1})

	enacted, expired := s.EnterEpoch(1, governance.Delegation{}, nil)
	require.Empty(t, enacted)
	require.Len(t, expired, 1)
	require.Equal(t, action, expired[0].Proposal.Id)
}

func TestHardForkNeedsBothDRepAndSPOThresholds(t *testing.T) {
	s := governance.New()
	action := common.GovActionId{Index: 3}
	s.Submit(governance.Proposal{Id: action, Kind: common.ProposalHardForkInitiation, ExpiryEpoch: 100})

	drep := common.NewKeyCredential(common.Hash28{3})
	s.Vote(action, common.Voter{Role: common.VoterDRep, Credential: drep}, common.VoteYes)
	committee := common.NewKeyCredential(common.Hash28{5})
	s.Vote(action, common.Voter{Role: common.VoterConstitutionalCommittee, Credential: committee}, common.VoteYes)
	dreps := governance.Delegation{drep: 1000}

	enacted, _ := s.EnterEpoch(1, dreps, governance.Delegation{})
	require.Empty(t, enacted, "no SPO votes cast, so the SPO threshold is unmet")

	pool := common.NewKeyCredential(common.Hash28{4})
	s.Vote(action, common.Voter{Role: common.VoterSPO, Credential: pool}, common.VoteYes)
	spos := governance.Delegation{pool: 1000}
	enacted, _ = s.EnterEpoch(1, dreps, spos)
	require.Len(t, enacted, 1)
}
