package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/input-output-hk/acropolis/internal/common"
	"github.com/input-output-hk/acropolis/internal/ledger/accounts"
	"github.com/input-output-hk/acropolis/internal/ledger/drep"
	"github.com/input-output-hk/acropolis/internal/ledger/epochs"
	"github.com/input-output-hk/acropolis/internal/ledger/governance"
	"github.com/input-output-hk/acropolis/internal/ledger/params"
)

// Topic names, one per spec.md §6's enumerated query surface.
const (
	TopicUtxos        = "query.utxos"
	TopicPools        = "query.pools"
	TopicDReps        = "query.dreps"
	TopicAccounts     = "query.accounts"
	TopicEpochs       = "query.epochs"
	TopicParameters   = "query.parameters"
	TopicGovernance   = "query.governance"
	TopicBlocks       = "query.blocks"
	TopicTransactions = "query.transactions"
	TopicSPDD         = "query.spdd"
	TopicDRDD         = "query.drdd"
)

func invalid(msg string, fields common.Fields) error {
	return &common.QueryError{Kind: common.QueryInvalid, Fields: fields, Err: errors.New(msg)}
}

func notFound(msg string, fields common.Fields) error {
	return &common.QueryError{Kind: common.QueryNotFound, Fields: fields, Err: errors.New(msg)}
}

// registerHandlers wires every query.* topic to its handler. Called once
// from NewModule; it panics if a topic already has a handler registered
// (programmer error — two Modules sharing one bus).
func (m *Module) registerHandlers() {
	register := func(topic string, h func(ctx context.Context, payload any) (any, error)) {
		if err := m.bus.RegisterHandler(topic, h); err != nil {
			panic(fmt.Sprintf("query: %v", err))
		}
	}
	register(TopicUtxos, m.handleUtxos)
	register(TopicPools, m.handlePools)
	register(TopicDReps, m.handleDReps)
	register(TopicAccounts, m.handleAccounts)
	register(TopicEpochs, m.handleEpochs)
	register(TopicParameters, m.handleParameters)
	register(TopicGovernance, m.handleGovernance)
	register(TopicBlocks, m.handleBlocks)
	register(TopicTransactions, m.handleTransactions)
	register(TopicSPDD, m.handleSPDD)
	register(TopicDRDD, m.handleDRDD)
}

// UtxosRequest asks for the output backing a single UTXO reference.
type UtxosRequest struct {
	TxIn common.TxIn
}

// UtxosResponse answers UtxosRequest.
type UtxosResponse struct {
	Out common.TxOut
}

func (m *Module) handleUtxos(_ context.Context, payload any) (any, error) {
	req, ok := payload.(UtxosRequest)
	if !ok {
		return nil, invalid("expected UtxosRequest", nil)
	}
	out, ok := m.utxoState.Resolve(req.TxIn)
	if !ok {
		return nil, notFound("utxo not found", common.Fields{"txin": req.TxIn.String()})
	}
	return UtxosResponse{Out: out}, nil
}

// PoolsRequest asks for one pool's parameters, or every active pool when
// Pool is nil.
type PoolsRequest struct {
	Pool *common.PoolId
}

// PoolsResponse answers PoolsRequest.
type PoolsResponse struct {
	Pools map[common.PoolId]common.PoolParams
}

func (m *Module) handlePools(_ context.Context, payload any) (any, error) {
	req, ok := payload.(PoolsRequest)
	if !ok {
		return nil, invalid("expected PoolsRequest", nil)
	}
	active := m.spoState.ActiveSet()
	if req.Pool == nil {
		return PoolsResponse{Pools: active}, nil
	}
	params, ok := active[*req.Pool]
	if !ok {
		return nil, notFound("pool not found", common.Fields{"pool": req.Pool.String()})
	}
	return PoolsResponse{Pools: map[common.PoolId]common.PoolParams{*req.Pool: params}}, nil
}

// DRepsRequest asks for one DRep's entry, or every registered DRep when
// Credential is nil.
type DRepsRequest struct {
	Credential *common.StakeCredential
}

// DRepsResponse answers DRepsRequest.
type DRepsResponse struct {
	DReps map[common.StakeCredential]drep.Entry
}

func (m *Module) handleDReps(_ context.Context, payload any) (any, error) {
	req, ok := payload.(DRepsRequest)
	if !ok {
		return nil, invalid("expected DRepsRequest", nil)
	}
	active := m.drepState.ActiveSet()
	if req.Credential == nil {
		return DRepsResponse{DReps: active}, nil
	}
	entry, ok := active[*req.Credential]
	if !ok {
		return nil, notFound("drep not found", common.Fields{"credential": req.Credential.String()})
	}
	return DRepsResponse{DReps: map[common.StakeCredential]drep.Entry{*req.Credential: entry}}, nil
}

// AccountsRequest asks for a single stake account's state.
type AccountsRequest struct {
	Credential common.StakeCredential
}

// AccountsResponse answers AccountsRequest.
type AccountsResponse struct {
	Account accounts.StakeAccount
}

func (m *Module) handleAccounts(_ context.Context, payload any) (any, error) {
	req, ok := payload.(AccountsRequest)
	if !ok {
		return nil, invalid("expected AccountsRequest", nil)
	}
	account, ok := m.accountsState.Account(req.Credential)
	if !ok {
		return nil, notFound("account not found", common.Fields{"credential": req.Credential.String()})
	}
	return AccountsResponse{Account: account}, nil
}

// EpochsRequest asks for the epoch currently being accumulated.
type EpochsRequest struct{}

// EpochsResponse answers EpochsRequest.
type EpochsResponse struct {
	Current epochs.Counters
}

func (m *Module) handleEpochs(_ context.Context, _ any) (any, error) {
	return EpochsResponse{Current: m.epochsState.Current()}, nil
}

// ParametersRequest asks for the active protocol parameter set.
type ParametersRequest struct{}

// ParametersResponse answers ParametersRequest.
type ParametersResponse struct {
	Current params.Protocol
}

func (m *Module) handleParameters(_ context.Context, _ any) (any, error) {
	return ParametersResponse{Current: m.paramsState.Current()}, nil
}

// GovernanceRequest asks for one pending proposal, or every pending
// proposal when Action is nil.
type GovernanceRequest struct {
	Action *common.GovActionId
}

// GovernanceResponse answers GovernanceRequest.
type GovernanceResponse struct {
	Proposals []governance.Proposal
}

func (m *Module) handleGovernance(_ context.Context, payload any) (any, error) {
	req, ok := payload.(GovernanceRequest)
	if !ok {
		return nil, invalid("expected GovernanceRequest", nil)
	}
	if req.Action == nil {
		return GovernanceResponse{Proposals: m.governanceState.Active()}, nil
	}
	p, ok := m.governanceState.Get(*req.Action)
	if !ok {
		return nil, notFound("proposal not found", common.Fields{"action": req.Action})
	}
	return GovernanceResponse{Proposals: []governance.Proposal{p}}, nil
}

// BlocksRequest asks for one block's index record by hash.
type BlocksRequest struct {
	Hash common.BlockHash
}

// BlocksResponse answers BlocksRequest.
type BlocksResponse struct {
	Block BlockRecord
}

func (m *Module) handleBlocks(_ context.Context, payload any) (any, error) {
	req, ok := payload.(BlocksRequest)
	if !ok {
		return nil, invalid("expected BlocksRequest", nil)
	}
	rec, ok := m.index.Block(req.Hash)
	if !ok {
		return nil, notFound("block not found", common.Fields{"hash": req.Hash.String()})
	}
	return BlocksResponse{Block: rec}, nil
}

// TransactionsRequest asks which block a transaction was recorded in.
type TransactionsRequest struct {
	Hash common.TxHash
}

// TransactionsResponse answers TransactionsRequest.
type TransactionsResponse struct {
	Block BlockRecord
}

func (m *Module) handleTransactions(_ context.Context, payload any) (any, error) {
	req, ok := payload.(TransactionsRequest)
	if !ok {
		return nil, invalid("expected TransactionsRequest", nil)
	}
	rec, ok := m.index.Transaction(req.Hash)
	if !ok {
		return nil, notFound("transaction not found", common.Fields{"hash": req.Hash.String()})
	}
	return TransactionsResponse{Block: rec}, nil
}

// SPDDRequest asks for the most recently computed stake-pool delegation
// distribution.
type SPDDRequest struct{}

// SPDDResponse answers SPDDRequest. Stake is keyed by pool id, unwrapped
// from the key-hash stake credential the underlying Delegation map wraps
// it in for transport.
type SPDDResponse struct {
	Stake map[common.PoolId]uint64
}

func (m *Module) handleSPDD(_ context.Context, _ any) (any, error) {
	spdd, _ := m.snapshotDistributions()
	out := make(map[common.PoolId]uint64, len(spdd))
	for cred, amount := range spdd {
		out[common.PoolId(cred.Hash)] = amount
	}
	return SPDDResponse{Stake: out}, nil
}

// DRDDRequest asks for the most recently computed DRep delegation
// distribution.
type DRDDRequest struct{}

// DRDDResponse answers DRDDRequest.
type DRDDResponse struct {
	Stake map[common.StakeCredential]uint64
}

func (m *Module) handleDRDD(_ context.Context, _ any) (any, error) {
	_, drdd := m.snapshotDistributions()
	return DRDDResponse{Stake: map[common.StakeCredential]uint64(drdd)}, nil
}
