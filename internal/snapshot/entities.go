package snapshot

import (
	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/accounts"
	"github.com/input-output-hk/acropolis/internal/ledger/drep"
	"github.com/input-output-hk/acropolis/internal/ledger/governance"
)

// The wire structs below are this package's own minimal layout for the
// sub-sections spec.md §4.11 names (account state at [3][0], cert state
// at [3][1][0], governance at [3][1][1][3]): no copy of the real Conway
// LedgerState CDDL beyond the 7-element top-level array shape was
// available in the retrieval pack, so these are field-order contracts
// this package defines and decodes against, not a byte-exact replica of
// cardano-ledger's internal encoding. Each is decoded via fxamacker/cbor/v2's
// `,toarray` struct tag, the idiomatic way that library encodes a Go struct
// as a CBOR array instead of a map, applied here once scanValue (reader.go)
// has isolated a sub-section's bytes from the surrounding stream.

// potsWire is the four-pot tuple at the head of account state.
type potsWire struct {
	_        struct{} `cbor:",toarray"`
	Reserves int64
	Treasury int64
	Deposits int64
	Fees     int64
}

// stakeAccountWire is one registered stake credential's bootstrap record.
type stakeAccountWire struct {
	_              struct{} `cbor:",toarray"`
	CredentialHash []byte
	IsScript       bool
	UtxoValue      int64
	Rewards        int64
	StakeDeposit   int64
	HasPoolDeleg   bool
	DelegatedPool  []byte
	HasDRepDeleg   bool
	DRepAbstain    bool
	DRepNoConf     bool
	DRepHash       []byte
	DRepIsScript   bool
}

// accountStateWire is the full decode target for EpochState[3][0],
// mirroring real Conway AccountState's (treasury, reserves) pair; the
// deposits and fees pots live in utxo state instead (EpochState[3][1][1]),
// per cardano-ledger's UTxOState shape.
type accountStateWire struct {
	_        struct{} `cbor:",toarray"`
	Treasury int64
	Reserves int64
	Accounts []stakeAccountWire
}

// poolWire is one registered stake pool's bootstrap record, decoded from
// the cert state section.
type poolWire struct {
	_                 struct{} `cbor:",toarray"`
	PoolIdHash        []byte
	Pledge            int64
	FixedCost         int64
	Margin            float64
	RewardAccountNet  uint8
	RewardAccountHash []byte
	RewardAcctScript  bool
	OwnerHashes       [][]byte
}

// drepWire is one registered DRep's bootstrap record.
type drepWire struct {
	_           struct{} `cbor:",toarray"`
	CredHash    []byte
	IsScript    bool
	AnchorURL   string
	HasAnchor   bool
	AnchorHash  []byte
}

// certStateWire is the decode target for EpochState[3][1][0].
type certStateWire struct {
	_     struct{} `cbor:",toarray"`
	Pools []poolWire
	DReps []drepWire
}

// proposalWire is one pending governance proposal's bootstrap record.
type proposalWire struct {
	_               struct{} `cbor:",toarray"`
	ActionTxHash    []byte
	ActionIndex     uint16
	Kind            uint8
	SubmittedEpoch  uint64
	ExpiryEpoch     uint64
	Deposit         int64
	ReturnAddrNet   uint8
	ReturnAddrHash  []byte
	ReturnAddrIsScr bool
}

// governanceStateWire is the decode target for EpochState[3][1][1][3].
type governanceStateWire struct {
	_         struct{} `cbor:",toarray"`
	Proposals []proposalWire
}

// poolSnapWire is one pool's per-snapshot record inside Mark/Set/Go.
type poolSnapWire struct {
	_              struct{} `cbor:",toarray"`
	PoolIdHash     []byte
	TotalStake     int64
	Pledge         int64
	FixedCost      int64
	Margin         float64
	BlocksProduced uint64
}

// epochSnapshotWire is the decode target for one of the three elements at
// EpochState[3][2] (Mark, Set, Go, in that order).
type epochSnapshotWire struct {
	_           struct{} `cbor:",toarray"`
	Epoch       uint64
	Pools       []poolSnapWire
	BlocksTotal uint64
	Pots        potsWire
}

// rewardCreditWire is one credited stake credential inside a pending
// reward update, keyed by hash rather than a common.StakeCredential
// struct directly since that type has no CBOR map-key encoding of its
// own.
type rewardCreditWire struct {
	_        struct{} `cbor:",toarray"`
	CredHash []byte
	IsScript bool
	Amount   int64
}

// rewardUpdateWire is the decode target for the optional reward update
// at EpochState[4].
type rewardUpdateWire struct {
	_             struct{} `cbor:",toarray"`
	DeltaTreasury int64
	DeltaReserves int64
	DeltaFees     int64
	Rewards       []rewardCreditWire
}

func convertRewardUpdate(w rewardUpdateWire) (accounts.RewardUpdate, error) {
	rewards := make(map[common.StakeCredential]int64, len(w.Rewards))
	for _, rc := range w.Rewards {
		hash, err := common.NewHash28(rc.CredHash)
		if err != nil {
			return accounts.RewardUpdate{}, err
		}
		cred := common.NewKeyCredential(hash)
		if rc.IsScript {
			cred = common.NewScriptCredential(hash)
		}
		rewards[cred] = rc.Amount
	}
	return accounts.RewardUpdate{
		DeltaTreasury: w.DeltaTreasury,
		DeltaReserves: w.DeltaReserves,
		DeltaFees:     w.DeltaFees,
		Rewards:       rewards,
	}, nil
}

// convertPots converts a potsWire into accounts.Pots, for the pots each
// Mark/Set/Go snapshot carries.
func convertPots(w potsWire) accounts.Pots {
	return accounts.Pots{Reserves: w.Reserves, Treasury: w.Treasury, Deposits: w.Deposits, Fees: w.Fees}
}

func convertStakeAccount(w stakeAccountWire) (common.StakeCredential, accounts.StakeAccount, error) {
	hash, err := common.NewHash28(w.CredentialHash)
	if err != nil {
		return common.StakeCredential{}, accounts.StakeAccount{}, err
	}
	cred := common.NewKeyCredential(hash)
	if w.IsScript {
		cred = common.NewScriptCredential(hash)
	}
	a := accounts.StakeAccount{
		UtxoValue:    w.UtxoValue,
		Rewards:      w.Rewards,
		Registered:   true,
		StakeDeposit: w.StakeDeposit,
	}
	if w.HasPoolDeleg {
		poolHash, err := common.NewHash28(w.DelegatedPool)
		if err != nil {
			return common.StakeCredential{}, accounts.StakeAccount{}, err
		}
		pid := common.PoolId(poolHash)
		a.DelegatedSPO = &pid
	}
	if w.HasDRepDeleg {
		choice := &common.DRepChoice{AlwaysAbstain: w.DRepAbstain, AlwaysNoConfidence: w.DRepNoConf}
		if !w.DRepAbstain && !w.DRepNoConf {
			drepHash, err := common.NewHash28(w.DRepHash)
			if err != nil {
				return common.StakeCredential{}, accounts.StakeAccount{}, err
			}
			drepCred := common.NewKeyCredential(drepHash)
			if w.DRepIsScript {
				drepCred = common.NewScriptCredential(drepHash)
			}
			choice.Credential = &drepCred
		}
		a.DelegatedDRep = choice
	}
	return cred, a, nil
}

func convertPool(w poolWire) (common.PoolId, common.PoolParams, error) {
	poolHash, err := common.NewHash28(w.PoolIdHash)
	if err != nil {
		return common.PoolId{}, common.PoolParams{}, err
	}
	rewardHash, err := common.NewHash28(w.RewardAccountHash)
	if err != nil {
		return common.PoolId{}, common.PoolParams{}, err
	}
	rewardCred := common.NewKeyCredential(rewardHash)
	if w.RewardAcctScript {
		rewardCred = common.NewScriptCredential(rewardHash)
	}
	owners := make([]common.StakeCredential, 0, len(w.OwnerHashes))
	for _, oh := range w.OwnerHashes {
		h, err := common.NewHash28(oh)
		if err != nil {
			return common.PoolId{}, common.PoolParams{}, err
		}
		owners = append(owners, common.NewKeyCredential(h))
	}
	return common.PoolId(poolHash), common.PoolParams{
		Pledge:    w.Pledge,
		FixedCost: w.FixedCost,
		Margin:    w.Margin,
		RewardAccount: common.StakeAddress{
			Network:    common.NetworkId(w.RewardAccountNet),
			Credential: rewardCred,
		},
		Owners: owners,
	}, nil
}

func convertDRep(w drepWire) (common.StakeCredential, drep.Entry, error) {
	hash, err := common.NewHash28(w.CredHash)
	if err != nil {
		return common.StakeCredential{}, drep.Entry{}, err
	}
	cred := common.NewKeyCredential(hash)
	if w.IsScript {
		cred = common.NewScriptCredential(hash)
	}
	var anchor *common.DRepAnchor
	if w.HasAnchor {
		dataHash, err := common.NewHash32(w.AnchorHash)
		if err != nil {
			return common.StakeCredential{}, drep.Entry{}, err
		}
		anchor = &common.DRepAnchor{URL: w.AnchorURL, DataHash: dataHash}
	}
	return cred, drep.Entry{Anchor: anchor}, nil
}

func convertProposal(w proposalWire) (governance.Proposal, error) {
	txHash, err := common.NewHash32(w.ActionTxHash)
	if err != nil {
		return governance.Proposal{}, err
	}
	returnHash, err := common.NewHash28(w.ReturnAddrHash)
	if err != nil {
		return governance.Proposal{}, err
	}
	returnCred := common.NewKeyCredential(returnHash)
	if w.ReturnAddrIsScr {
		returnCred = common.NewScriptCredential(returnHash)
	}
	return governance.Proposal{
		Id:             common.GovActionId{Tx: txHash, Index: w.ActionIndex},
		Kind:           common.ProposalKind(w.Kind),
		SubmittedEpoch: w.SubmittedEpoch,
		ExpiryEpoch:    w.ExpiryEpoch,
		Deposit:        w.Deposit,
		ReturnAddr: common.StakeAddress{
			Network:    common.NetworkId(w.ReturnAddrNet),
			Credential: returnCred,
		},
	}, nil
}

func convertEpochSnapshot(w epochSnapshotWire) (accounts.EpochSnapshot, error) {
	pools := make(map[common.PoolId]accounts.PoolSnap, len(w.Pools))
	for _, ps := range w.Pools {
		h, err := common.NewHash28(ps.PoolIdHash)
		if err != nil {
			return accounts.EpochSnapshot{}, err
		}
		pools[common.PoolId(h)] = accounts.PoolSnap{
			TotalStake:     ps.TotalStake,
			Pledge:         ps.Pledge,
			FixedCost:      ps.FixedCost,
			Margin:         ps.Margin,
			BlocksProduced: ps.BlocksProduced,
		}
	}
	return accounts.EpochSnapshot{
		Epoch:       w.Epoch,
		Pools:       pools,
		BlocksTotal: w.BlocksTotal,
		Pots:        convertPots(w.Pots),
	}, nil
}
