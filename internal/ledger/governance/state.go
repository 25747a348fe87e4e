// Package governance implements the governance state module of
// spec.md §4.8: proposal bookkeeping, vote tallying against SPO/DRep
// delegation distributions, Conway ratification thresholds, and
// enactment at epoch boundaries.
//
// Grounded on spec §4.8 and the CIP-1694 ratification rules it cites; the
// module shape (a proposals map plus a per-action vote tally map) follows
// the same small-state idiom as internal/ledger/spo and drep.
package governance

import (
	"sync"

	"github.com/input-output-hk/acropolis/internal/common"
)

// Proposal is a submitted governance action awaiting ratification.
type Proposal struct {
	Id             common.GovActionId
	Kind           common.ProposalKind
	SubmittedEpoch uint64
	ExpiryEpoch    uint64
	Deposit        int64
	ReturnAddr     common.StakeAddress

	// ParameterChange payload.
	ParameterChange map[string]any
	// TreasuryWithdrawal payload.
	TreasuryWithdrawals map[common.StakeAddress]int64
}

// Thresholds are the Conway ratification fractions (of non-abstaining
// stake/votes) a proposal kind needs from DReps and SPOs respectively.
// Committee approval is a simple majority of non-abstaining committee
// votes and is not configurable here.
type Thresholds struct {
	DRep float64
	SPO  float64
}

// DefaultThresholds returns the threshold table spec.md's CIP-1694
// reference implies: most action kinds need supermajority DRep approval;
// hard-fork, no-confidence and committee-update actions additionally need
// SPO approval.
func DefaultThresholds() map[common.ProposalKind]Thresholds {
	return map[common.ProposalKind]Thresholds{
		common.ProposalParameterChange:     {DRep: 0.67, SPO: 0},
		common.ProposalTreasuryWithdrawal:  {DRep: 0.67, SPO: 0},
		common.ProposalHardForkInitiation:  {DRep: 0.6, SPO: 0.6},
		common.ProposalNoConfidence:        {DRep: 0.67, SPO: 0.51},
		common.ProposalUpdateCommittee:     {DRep: 0.67, SPO: 0.51},
		common.ProposalNewConstitution:     {DRep: 0.75, SPO: 0},
		common.ProposalInfoAction:          {DRep: 1.01, SPO: 1.01}, // never ratifies on its own
	}
}

// Enacted is what EnterEpoch returns for a proposal that reached
// ratification this boundary.
type Enacted struct {
	Proposal Proposal
}

// Expired is what EnterEpoch returns for a proposal whose expiry epoch
// arrived without ratification. The module publishes it on TopicExpired;
// no package credits the proposal's deposit to ReturnAddr, on expiry or
// on enactment.
type Expired struct {
	Proposal Proposal
}

// Delegation is the aggregated active stake behind one voter, used to
// weigh votes by the distribution spec.md §4.9 computes (SPDD for SPOs,
// DRDD for DReps).
type Delegation map[common.StakeCredential]uint64

// State owns proposals and their accumulated votes.
type State struct {
	mu         sync.Mutex
	proposals  map[common.GovActionId]Proposal
	votes      map[common.GovActionId]map[common.Voter]common.VoteChoice
	thresholds map[common.ProposalKind]Thresholds
}

// New constructs an empty governance state using the default Conway
// ratification thresholds.
func New() *State {
	return &State{
		proposals:  make(map[common.GovActionId]Proposal),
		votes:      make(map[common.GovActionId]map[common.Voter]common.VoteChoice),
		thresholds: DefaultThresholds(),
	}
}

// Submit records a new proposal. Submission itself does not touch the
// deposits pot: internal/ledger/accounts counts pending proposals
// (ActiveCount) times the proposal deposit only when it recomputes the
// pot at each epoch boundary.
func (s *State) Submit(p Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.Id] = p
}

// Vote records a single voter's choice on an action.
func (s *State) Vote(action common.GovActionId, voter common.Voter, choice common.VoteChoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proposals[action]; !ok {
		return
	}
	if s.votes[action] == nil {
		s.votes[action] = make(map[common.Voter]common.VoteChoice)
	}
	s.votes[action][voter] = choice
}

// EnterEpoch evaluates every pending proposal against the DRep and SPO
// delegation distributions for the epoch ending, ratifying those that
// clear their threshold and expiring those whose expiry epoch has arrived
// without ratification. epoch is the epoch boundary being entered (e+1 in
// spec.md's enter_epoch(e -> e+1) notation applied at the end of e).
func (s *State) EnterEpoch(epoch uint64, dreps, spos Delegation) (enacted []Enacted, expired []Expired) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.proposals {
		if s.ratified(id, p, dreps, spos) {
			enacted = append(enacted, Enacted{Proposal: p})
			delete(s.proposals, id)
			delete(s.votes, id)
			continue
		}
		if epoch >= p.ExpiryEpoch {
			expired = append(expired, Expired{Proposal: p})
			delete(s.proposals, id)
			delete(s.votes, id)
		}
	}
	return enacted, expired
}

// ActiveCount returns the number of proposals currently pending
// ratification, for the deposits-pot obligation calculation (spec.md §8
// property 2).
func (s *State) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.proposals)
}

// Get returns one pending proposal by its action id, for query handlers.
func (s *State) Get(id common.GovActionId) (Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	return p, ok
}

// Active returns every proposal currently pending ratification, for
// query handlers that list the full governance surface.
func (s *State) Active() []Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p)
	}
	return out
}

func (s *State) ratified(id common.GovActionId, p Proposal, dreps, spos Delegation) bool {
	thresh, ok := s.thresholds[p.Kind]
	if !ok {
		return false
	}
	votes := s.votes[id]
	if drepYes, drepTotal := tally(votes, common.VoterDRep, dreps); drepTotal > 0 {
		if float64(drepYes)/float64(drepTotal) < thresh.DRep {
			return false
		}
	} else if thresh.DRep <= 1.0 {
		return false
	}
	if thresh.SPO > 0 {
		spoYes, spoTotal := tally(votes, common.VoterSPO, spos)
		if spoTotal == 0 || float64(spoYes)/float64(spoTotal) < thresh.SPO {
			return false
		}
	}
	if committeeRequired(p.Kind) {
		committeeYes, committeeTotal := tallyCommittee(votes)
		if committeeTotal == 0 || float64(committeeYes)/float64(committeeTotal) <= 0.5 {
			return false
		}
	}
	return true
}

// committeeRequired reports whether a proposal kind needs Constitutional
// Committee approval as a third, independent ratification gate.
// NoConfidence and UpdateCommittee are exempt per CIP-1694, so a sitting
// committee can never block its own no-confidence vote or replacement.
func committeeRequired(kind common.ProposalKind) bool {
	switch kind {
	case common.ProposalNoConfidence, common.ProposalUpdateCommittee:
		return false
	default:
		return true
	}
}

// tallyCommittee counts non-abstaining committee votes by member, not by
// delegated stake: committee approval is one member, one vote, with no
// distribution to weigh it against.
func tallyCommittee(votes map[common.Voter]common.VoteChoice) (yes, total uint64) {
	for voter, choice := range votes {
		if voter.Role != common.VoterConstitutionalCommittee || choice == common.VoteAbstain {
			continue
		}
		total++
		if choice == common.VoteYes {
			yes++
		}
	}
	return yes, total
}

// tally sums the delegated stake behind Yes votes and the total
// non-abstaining delegated stake for role, used as the ratification
// fraction's numerator and denominator.
func tally(votes map[common.Voter]common.VoteChoice, role common.VoterRole, dist Delegation) (yes uint64, total uint64) {
	for voter, choice := range votes {
		if voter.Role != role || choice == common.VoteAbstain {
			continue
		}
		weight := dist[voter.Credential]
		total += weight
		if choice == common.VoteYes {
			yes += weight
		}
	}
	return yes, total
}
