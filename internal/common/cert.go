package common

// CertKind enumerates the certificate types the tx unpacker fans out,
// spanning Shelley through Conway (spec.md §4.4, §4.6-§4.9).
type CertKind uint8

const (
	CertStakeRegistration CertKind = iota
	CertStakeDeregistration
	CertStakeDelegation
	CertPoolRegistration
	CertPoolRetirement
	CertVoteDelegation
	CertDRepRegistration
	CertDRepDeregistration
	CertDRepUpdate
	CertMIR // deprecated Shelley move-instantaneous-rewards, kept for pre-Conway replay
)

// PoolParams are a stake pool's registered parameters, per spec.md §4.
type PoolParams struct {
	Pledge        int64
	FixedCost     int64
	Margin        float64 // numerator/denominator collapsed to a ratio
	RewardAccount StakeAddress
	Owners        []StakeCredential
}

// DRepAnchor is the optional off-chain metadata anchor a DRep registration
// or update certificate may carry; nil when absent.
type DRepAnchor struct {
	URL      string
	DataHash Hash32
}

// Certificate is a tagged union over every certificate kind the ledger
// core needs to apply. Exactly one of the kind-specific fields is
// populated, matching Kind.
type Certificate struct {
	Kind CertKind

	// CertStakeRegistration / CertStakeDeregistration / CertStakeDelegation
	StakeCredential StakeCredential
	Deposit         int64        // registration/deregistration deposit amount, 0 pre-Conway
	DelegatedPool   *PoolId      // CertStakeDelegation target
	Pointer         *ChainPointer // CertStakeRegistration's chain position, for pointer-address resolution; nil when the caller has no position to report

	// CertPoolRegistration / CertPoolRetirement
	Pool          PoolId
	PoolParams    PoolParams
	RetiringEpoch uint64

	// CertVoteDelegation
	DelegatedDRep *DRepChoice

	// CertDRepRegistration / CertDRepDeregistration / CertDRepUpdate
	DRep       StakeCredential
	DRepAnchor *DRepAnchor

	// CertMIR
	MIRPot   string // "reserves" or "treasury"
	MIRMoves map[StakeCredential]int64
}

// Withdrawal is a reward-account withdrawal from a transaction's withdrawal
// set, per spec.md §4.9.
type Withdrawal struct {
	Account StakeAddress
	Amount  int64
}
