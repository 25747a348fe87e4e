package common

import "fmt"

// CredentialKind distinguishes the two kinds of stake/payment credential.
type CredentialKind uint8

const (
	CredentialKeyHash CredentialKind = iota
	CredentialScriptHash
)

// StakeCredential is a tagged union over a 28-byte key hash or script hash,
// per spec.md §3.
type StakeCredential struct {
	Kind CredentialKind
	Hash Hash28
}

// NewKeyCredential builds a key-hash stake credential.
func NewKeyCredential(h Hash28) StakeCredential {
	return StakeCredential{Kind: CredentialKeyHash, Hash: h}
}

// NewScriptCredential builds a script-hash stake credential.
func NewScriptCredential(h Hash28) StakeCredential {
	return StakeCredential{Kind: CredentialScriptHash, Hash: h}
}

// String renders the credential as "key:<hex>" or "script:<hex>", which
// doubles as a stable map key representation.
func (c StakeCredential) String() string {
	prefix := "key"
	if c.Kind == CredentialScriptHash {
		prefix = "script"
	}
	return fmt.Sprintf("%s:%s", prefix, c.Hash.String())
}

// NetworkId distinguishes Cardano networks for address/credential scoping.
type NetworkId uint8

const (
	NetworkTestnet NetworkId = 0
	NetworkMainnet NetworkId = 1
)

// StakeAddress is a network-scoped stake credential, per spec.md §3.
type StakeAddress struct {
	Network    NetworkId
	Credential StakeCredential
}

// String renders a stable, human-diagnosable identifier; it is not the
// bech32 wire form (that belongs to the external address-encoding layer).
func (s StakeAddress) String() string {
	return fmt.Sprintf("stake(net=%d,%s)", s.Network, s.Credential.String())
}

// DRepChoice is the target of a vote delegation: a specific DRep, or one of
// the two predefined Conway choices.
type DRepChoice struct {
	AlwaysAbstain    bool
	AlwaysNoConfidence bool
	Credential       *StakeCredential
}

// IsPredefined reports whether this choice is one of the always-abstain /
// always-no-confidence predefined DReps rather than a registered DRep.
func (d DRepChoice) IsPredefined() bool {
	return d.AlwaysAbstain || d.AlwaysNoConfidence
}

// Address is the decoded form of a Cardano binary address: Byron, or
// Shelley base/pointer/enterprise/stake. Only the parts the ledger core
// needs (payment + optional staking part) are retained; full bech32/Byron
// CRC encoding is left to the external wire layer.
type Address struct {
	Network     NetworkId
	Payment     *StakeCredential
	Staking     *StakeCredential
	Pointer     *ChainPointer
	IsByron     bool
	ByronBytes  []byte
}

// ChainPointer is a Shelley pointer address: the location of the stake-key
// registration certificate it refers to.
type ChainPointer struct {
	Slot       uint64
	TxIndex    uint32
	CertIndex  uint32
}

// StakePart returns the staking credential an address contributes to, if
// any — nil for enterprise/Byron addresses and pointer addresses that have
// not yet been resolved by the stake-delta filter.
func (a Address) StakePart() *StakeCredential {
	return a.Staking
}
