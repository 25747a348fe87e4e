// Package txunpacker implements the transaction-unpacker half of spec.md
// §4.4: it consumes the batched per-block message blockunpacker publishes
// and fans each transaction out to the domain-specific messages the
// ledger modules subscribe to, preserving tx order within a block.
//
// Grounded on gouroboros/ledger's transaction/certificate/output types
// (the same types blinklabs-io-ouroboros-mock's conformance harness
// walks in processCertificate/AddTransaction) for the decode shape, and
// on internal/common for the target domain types.
package txunpacker

import (
	"encoding/hex"
	"fmt"
	"math/big"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/conway"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/governance"
)

// convertAddress decodes a gouroboros address's raw CIP-19 bytes into the
// ledger core's Address model. gouroboros's lcommon.Address does not
// expose the payment/staking credential parts directly (only .Bytes()
// and .StakeKeyHash()), so common.DecodeAddressBytes decodes the header
// byte by hand the same way every Cardano wallet/indexer does.
func convertAddress(addr lcommon.Address) (common.Address, error) {
	raw, err := addr.Bytes()
	if err != nil {
		return common.Address{}, err
	}
	return common.DecodeAddressBytes(raw)
}

// convertValue turns a coin amount plus an optional multi-asset bundle
// into the ledger core's Value, per spec.md §3. assetMap exposes the
// same policy/name/quantity shape NewMultiAsset is built from.
func convertValue(coin *big.Int, assets *lcommon.MultiAsset[lcommon.MultiAssetTypeOutput]) common.Value {
	v := common.NewValue(coin.Int64())
	if assets == nil {
		return v
	}
	for policy, names := range assets.Enumerate() {
		policyHex := hex.EncodeToString(policy.Bytes())
		for name, qty := range names {
			v.AddAsset(policyHex, hex.EncodeToString(name.Bytes()), qty.Int64())
		}
	}
	return v
}

// convertTxIn converts a gouroboros transaction input reference.
func convertTxIn(in lcommon.TransactionInput) (common.TxIn, error) {
	hash, err := common.NewHash32(in.Id().Bytes())
	if err != nil {
		return common.TxIn{}, err
	}
	return common.TxIn{Hash: hash, Index: uint16(in.Index())}, nil
}

// convertTxOut converts a gouroboros transaction output, address included.
// An inline datum or reference script is carried through as its raw CBOR
// bytes, since the ledger core has no use for the decoded Plutus data or
// script program, only for hashing and phase-2 lookup.
func convertTxOut(out lcommon.TransactionOutput) (common.TxOut, error) {
	addr, err := convertAddress(out.Address())
	if err != nil {
		return common.TxOut{}, err
	}
	value := convertValue(out.Amount(), out.Assets())
	var datumHash *common.Hash32
	if h := out.DatumHash(); h != nil {
		hv, err := common.NewHash32(h.Bytes())
		if err == nil {
			datumHash = &hv
		}
	}
	var inlineDatum []byte
	if d := out.Datum(); d != nil {
		inlineDatum = d.Cbor()
	}
	var scriptRef []byte
	if s := out.ScriptRef(); s != nil {
		scriptRef = s.Cbor()
	}
	return common.TxOut{
		Address:     addr,
		Value:       value,
		DatumHash:   datumHash,
		InlineDatum: inlineDatum,
		ScriptRef:   scriptRef,
	}, nil
}

// ConvertTxOut exports convertTxOut for internal/phase2, which needs the
// same gouroboros-output-to-ledger-core conversion to populate a Plutus
// ScriptContext's transaction outputs.
func ConvertTxOut(out lcommon.TransactionOutput) (common.TxOut, error) {
	return convertTxOut(out)
}

// ConvertTxIn exports convertTxIn for internal/phase2, same rationale as
// ConvertTxOut.
func ConvertTxIn(in lcommon.TransactionInput) (common.TxIn, error) {
	return convertTxIn(in)
}

// convertStakeCredential converts a gouroboros credential (key hash or
// script hash, tagged by CredType) into the ledger core's StakeCredential.
func convertStakeCredential(cred lcommon.Credential) (common.StakeCredential, error) {
	h, err := common.NewHash28(cred.Credential.Bytes())
	if err != nil {
		return common.StakeCredential{}, err
	}
	if cred.CredType == lcommon.CredentialTypeScriptHash {
		return common.NewScriptCredential(h), nil
	}
	return common.NewKeyCredential(h), nil
}

// convertStakeAddress scopes a raw key-hash reward account (as stored on a
// pool registration certificate, which carries no network tag of its own)
// under the network the unpacker was configured for.
func convertStakeAddress(network common.NetworkId, keyHash lcommon.AddrKeyHash) (common.StakeAddress, error) {
	h, err := common.NewHash28(keyHash.Bytes())
	if err != nil {
		return common.StakeAddress{}, err
	}
	return common.StakeAddress{Network: network, Credential: common.NewKeyCredential(h)}, nil
}

// convertCertificate dispatches on a certificate's concrete gouroboros type
// and converts it into the ledger core's tagged Certificate union. The
// bool result is false for every certificate type the switch below does
// not list, which the caller drops rather than publishes: committee
// hot-key authorization/resignation, and also certificates that delegate
// stake or votes and DRep update certificates, whose common kinds the
// accounts and drep modules apply but which this function does not
// convert. ptr is the certificate's chain position
// (for a stake-registration certificate, the pointer-address resolution
// table's key); nil when the caller has no position to report, as when
// phase-2 scripting re-converts a certificate purely to read its
// credential.
//
// Grounded on blinklabs-io-ouroboros-mock's conformance harness, whose
// MockStateManager.processCertificate switches on the same concrete types.
func convertCertificate(network common.NetworkId, cert lcommon.Certificate, ptr *common.ChainPointer) (common.Certificate, bool) {
	switch c := cert.(type) {
	case *lcommon.StakeRegistrationCertificate:
		cred, err := convertStakeCredential(c.StakeCredential)
		if err != nil {
			return common.Certificate{}, false
		}
		return common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred, Pointer: ptr}, true

	case *lcommon.RegistrationCertificate:
		cred, err := convertStakeCredential(c.StakeCredential)
		if err != nil {
			return common.Certificate{}, false
		}
		return common.Certificate{Kind: common.CertStakeRegistration, StakeCredential: cred, Deposit: int64(c.Amount), Pointer: ptr}, true

	case *lcommon.StakeDeregistrationCertificate:
		cred, err := convertStakeCredential(c.StakeCredential)
		if err != nil {
			return common.Certificate{}, false
		}
		return common.Certificate{Kind: common.CertStakeDeregistration, StakeCredential: cred}, true

	case *lcommon.DeregistrationCertificate:
		cred, err := convertStakeCredential(c.StakeCredential)
		if err != nil {
			return common.Certificate{}, false
		}
		return common.Certificate{Kind: common.CertStakeDeregistration, StakeCredential: cred, Deposit: int64(c.Amount)}, true

	case *lcommon.PoolRegistrationCertificate:
		poolId, err := common.NewHash28(c.Operator.Bytes())
		if err != nil {
			return common.Certificate{}, false
		}
		rewardAccount, err := convertStakeAddress(network, c.RewardAccount)
		if err != nil {
			return common.Certificate{}, false
		}
		owners := make([]common.StakeCredential, 0, len(c.PoolOwners))
		for _, o := range c.PoolOwners {
			h, err := common.NewHash28(o.Bytes())
			if err != nil {
				continue
			}
			owners = append(owners, common.NewKeyCredential(h))
		}
		margin := 0.0
		if c.Margin.Rat != nil {
			margin, _ = c.Margin.Rat.Float64()
		}
		return common.Certificate{
			Kind: common.CertPoolRegistration,
			Pool: poolId,
			PoolParams: common.PoolParams{
				Pledge:        int64(c.Pledge),
				FixedCost:     int64(c.Cost),
				Margin:        margin,
				RewardAccount: rewardAccount,
				Owners:        owners,
			},
		}, true

	case *lcommon.PoolRetirementCertificate:
		poolId, err := common.NewHash28(c.PoolKeyHash.Bytes())
		if err != nil {
			return common.Certificate{}, false
		}
		return common.Certificate{Kind: common.CertPoolRetirement, Pool: poolId, RetiringEpoch: c.Epoch}, true

	case *lcommon.RegistrationDrepCertificate:
		cred, err := convertStakeCredential(c.DrepCredential)
		if err != nil {
			return common.Certificate{}, false
		}
		return common.Certificate{Kind: common.CertDRepRegistration, DRep: cred}, true

	case *lcommon.DeregistrationDrepCertificate:
		cred, err := convertStakeCredential(c.DrepCredential)
		if err != nil {
			return common.Certificate{}, false
		}
		return common.Certificate{Kind: common.CertDRepDeregistration, DRep: cred}, true

	default:
		return common.Certificate{}, false
	}
}

// ConvertCertificate exports convertCertificate for internal/phase2's
// TxInfo construction, same rationale as ConvertTxOut. Phase-2 only reads
// the converted certificate's credential, never its chain position, so
// no pointer is reported.
func ConvertCertificate(network common.NetworkId, cert lcommon.Certificate) (common.Certificate, bool) {
	return convertCertificate(network, cert, nil)
}

// convertGovActionId maps gouroboros's governance-action identifier onto
// the ledger core's. gouroboros indexes actions within a transaction with
// a uint16-range index in practice (CIP-1694 bounds it well below 65536),
// so the narrowing cast is safe.
func convertGovActionId(id *lcommon.GovActionId) (common.GovActionId, error) {
	if id == nil {
		return common.GovActionId{}, nil
	}
	hash, err := common.NewHash32(id.TransactionId[:])
	if err != nil {
		return common.GovActionId{}, err
	}
	return common.GovActionId{Tx: hash, Index: uint16(id.GovActionIdx)}, nil
}

// convertWithdrawals converts a transaction's reward-account withdrawal
// set, per spec.md §4.9. Phase-2 invalid transactions have no effect on
// reward accounts, so the caller must skip withdrawal conversion entirely
// when !tx.IsValid(). Zero-amount entries are skipped, matching the
// convention of certifying an account's current balance without moving
// funds.
func convertWithdrawals(network common.NetworkId, withdrawals map[*lcommon.Address]*big.Int) []common.Withdrawal {
	out := make([]common.Withdrawal, 0, len(withdrawals))
	for addr, amount := range withdrawals {
		if amount == nil || addr == nil {
			continue
		}
		amt := amount.Uint64()
		if amt == 0 {
			continue
		}
		h, err := common.NewHash28(addr.StakeKeyHash().Bytes())
		if err != nil {
			continue
		}
		out = append(out, common.Withdrawal{
			Account: common.StakeAddress{Network: network, Credential: common.NewKeyCredential(h)},
			Amount:  int64(amt),
		})
	}
	return out
}

// rewardAddress resolves a gouroboros reward address down to the ledger
// core's network-scoped StakeAddress, the shape every governance deposit
// return address needs.
func rewardAddress(network common.NetworkId, addr lcommon.Address) (common.StakeAddress, error) {
	decoded, err := convertAddress(addr)
	if err != nil {
		return common.StakeAddress{}, err
	}
	if decoded.Staking == nil {
		return common.StakeAddress{}, fmt.Errorf("txunpacker: reward address has no staking part")
	}
	return common.StakeAddress{Network: network, Credential: *decoded.Staking}, nil
}

// convertProposal converts one of a transaction's governance proposals,
// assigning it the (tx hash, index-within-tx) identifier every other gov
// action reference in the block uses to name it — the same scheme
// blinklabs-io-ouroboros-mock's conformance harness builds its
// "<txhash>#<idx>" governance-action keys from.
func convertProposal(network common.NetworkId, txHash common.TxHash, idx int, proposal lcommon.ProposalProcedure) (governance.Proposal, bool) {
	returnAddr, err := rewardAddress(network, proposal.RewardAccount())
	if err != nil {
		return governance.Proposal{}, false
	}
	p := governance.Proposal{
		Id:         common.GovActionId{Tx: txHash, Index: uint16(idx)},
		Deposit:    int64(proposal.Deposit()),
		ReturnAddr: returnAddr,
	}
	switch ga := proposal.GovAction().(type) {
	case *conway.ConwayParameterChangeGovAction:
		p.Kind = common.ProposalParameterChange
	case *lcommon.TreasuryWithdrawalGovAction:
		p.Kind = common.ProposalTreasuryWithdrawal
		p.TreasuryWithdrawals = map[common.StakeAddress]int64{}
		for addr, amount := range ga.Withdrawals {
			if addr == nil {
				continue
			}
			acct, err := rewardAddress(network, *addr)
			if err != nil {
				continue
			}
			p.TreasuryWithdrawals[acct] = int64(amount)
		}
	case *lcommon.HardForkInitiationGovAction:
		p.Kind = common.ProposalHardForkInitiation
	case *lcommon.NoConfidenceGovAction:
		p.Kind = common.ProposalNoConfidence
	case *lcommon.UpdateCommitteeGovAction:
		p.Kind = common.ProposalUpdateCommittee
	case *lcommon.NewConstitutionGovAction:
		p.Kind = common.ProposalNewConstitution
	case *lcommon.InfoGovAction:
		p.Kind = common.ProposalInfoAction
	default:
		return governance.Proposal{}, false
	}
	return p, true
}

// voterRole maps gouroboros's voter-type tag onto the ledger core's
// VoterRole, per CIP-1694's three voter classes.
func voterRole(t lcommon.VoterType) common.VoterRole {
	switch t {
	case lcommon.VoterTypeConstitutionalCommitteeHotKeyHash, lcommon.VoterTypeConstitutionalCommitteeHotScriptHash:
		return common.VoterConstitutionalCommittee
	case lcommon.VoterTypeDRepKeyHash, lcommon.VoterTypeDRepScriptHash:
		return common.VoterDRep
	default:
		return common.VoterSPO
	}
}

// voteChoice maps gouroboros's raw vote byte (0=no, 1=yes, 2=abstain, the
// same encoding lcommon.VotingProcedure.Vote stores) onto the ledger
// core's VoteChoice.
func voteChoice(v uint8) common.VoteChoice {
	switch v {
	case 1:
		return common.VoteYes
	case 2:
		return common.VoteAbstain
	default:
		return common.VoteNo
	}
}

// convertVotes flattens a transaction's nested voter/action voting map
// into one VoteCast per (voter, action) pair, in the same traversal order
// blinklabs-io-ouroboros-mock's conformance harness uses.
func convertVotes(votes lcommon.VotingProcedures) []governance.VoteCast {
	out := make([]governance.VoteCast, 0, len(votes))
	for voter, voteMap := range votes {
		if voter == nil {
			continue
		}
		cred, err := common.NewHash28(voter.Hash[:])
		if err != nil {
			continue
		}
		v := common.Voter{Role: voterRole(voter.Type), Credential: common.NewKeyCredential(cred)}
		for actionId, proc := range voteMap {
			gaid, err := convertGovActionId(actionId)
			if err != nil {
				continue
			}
			out = append(out, governance.VoteCast{Action: gaid, Voter: v, Choice: voteChoice(proc.Vote)})
		}
	}
	return out
}
