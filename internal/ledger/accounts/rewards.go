package accounts

import (
	"math"

	"github.com/input-output-hk/acropolis/internal/common"
)

// RewardParams are the protocol parameters createRUpd needs, read from
// the parameters state active during the epoch being rewarded
// ("prevPp" in spec.md §4.9).
type RewardParams struct {
	D               float64 // decentralisation parameter
	Rho             float64 // monetary expansion
	Tau             float64 // treasury cut
	A0              float64 // pool pledge influence
	NOpt            uint64  // optimal pool count
	SlotsPerEpoch   uint64
	ActiveSlotCoeff float64
}

// PoolRewardInput is one pool's contribution to a reward calculation:
// Mark for performance, Go for stake distribution, per spec.md §4.9.
type PoolRewardInput struct {
	Pool                    common.PoolId
	Pledge                  int64
	FixedCost               int64
	Margin                  float64
	RewardAccount           common.StakeAddress
	RewardAccountRegistered bool // Figure 48: gates the leader reward

	BlocksProduced uint64 // from Mark
	PledgeMet      bool   // pledge still satisfied at calculation time

	Stake      int64                              // pool's total active stake, from Go
	OwnerStake int64                              // owners' contribution to Stake, from Go
	Members    map[common.StakeCredential]int64 // non-owner delegator stakes, from Go
}

// CreateRUpd computes the reward update for one epoch following
// spec.md §4.9's pseudocode: η/Δr1/rewardPot/Δt1/R, then per-pool
// maxPool/appPerf/poolR/leader/member splits, aggregated with the
// aggregating-union rule and filtered to currently-registered credentials.
// registered reports whether a credential is registered at calculation
// time (not necessarily the same as at application time — see ApplyRUpd
// for the deregistered-redirection handling spec.md §8 property 7 needs).
func CreateRUpd(
	p RewardParams,
	reserves int64,
	feeSS int64,
	totalActiveStake int64,
	totalBlocksProduced uint64,
	pools []PoolRewardInput,
	registered func(common.StakeCredential) bool,
) *RewardUpdate {
	eta := 1.0
	if p.D < 0.8 {
		denom := math.Floor((1 - p.D) * float64(p.SlotsPerEpoch) * p.ActiveSlotCoeff)
		if denom > 0 {
			eta = float64(totalBlocksProduced) / denom
		}
	}
	if eta > 1 {
		eta = 1
	}
	deltaR1 := int64(math.Floor(eta * p.Rho * float64(reserves)))
	rewardPot := feeSS + deltaR1
	deltaT1 := int64(math.Floor(p.Tau * float64(rewardPot)))
	r := rewardPot - deltaT1

	rewards := make(map[common.StakeCredential]int64)
	if totalActiveStake > 0 && len(pools) > 0 {
		z0 := 1.0 / float64(p.NOpt)
		for _, pool := range pools {
			sigma := float64(pool.Stake) / float64(totalActiveStake)
			pledgeFrac := float64(pool.Pledge) / float64(totalActiveStake)
			sigmaPrime := math.Min(sigma, z0)
			pPrime := math.Min(pledgeFrac, z0)

			var maxPool float64
			if pool.PledgeMet && sigma > 0 {
				maxPool = float64(r) / (1 + p.A0) * (sigmaPrime +
					pPrime*p.A0*((sigmaPrime-pPrime*(z0-sigmaPrime)/z0)/z0))
			}

			appPerf := 1.0
			if p.D < 0.8 && sigma > 0 {
				n := float64(pool.BlocksProduced)
				nTotal := math.Max(1, float64(totalBlocksProduced))
				appPerf = (n / nTotal) / sigma
			}
			poolR := int64(math.Floor(appPerf * maxPool))
			if poolR <= 0 {
				continue
			}

			c := pool.FixedCost
			m := pool.Margin
			if poolR <= c {
				if pool.RewardAccountRegistered {
					rewards[pool.RewardAccount.Credential] += poolR
				}
				continue
			}

			remainder := poolR - c
			if pool.Stake > 0 {
				s := float64(pool.OwnerStake) / float64(totalActiveStake)
				leaderShare := m + (1-m)*s/sigma
				leader := c + int64(math.Floor(float64(remainder)*leaderShare))
				if pool.RewardAccountRegistered {
					rewards[pool.RewardAccount.Credential] += leader
				}
				for cred, stake := range pool.Members {
					member := int64(math.Floor(float64(remainder) * (1 - m) * float64(stake) / float64(pool.Stake)))
					rewards[cred] += member
				}
			}
		}
	}

	filtered := make(map[common.StakeCredential]int64, len(rewards))
	var allocated int64
	for cred, amount := range rewards {
		if !registered(cred) || amount == 0 {
			continue
		}
		filtered[cred] = amount
		allocated += amount
	}
	deltaR2 := r - allocated

	return &RewardUpdate{
		DeltaTreasury: deltaT1,
		DeltaReserves: -deltaR1 + deltaR2,
		DeltaFees:     -feeSS,
		Rewards:       filtered,
	}
}

// ApplyRUpd applies a pending reward update at an epoch boundary per
// spec.md §4.9's applyRUpd semantics: rewards for credentials that have
// since deregistered are redirected to treasury rather than lost
// (spec.md §8 property 7); only currently-registered credentials receive
// their reward directly.
func (s *State) ApplyRUpd(rupd *RewardUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyRUpdLocked(rupd)
}
