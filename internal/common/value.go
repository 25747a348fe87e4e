package common

// PolicyId identifies the minting script that controls a native asset.
type PolicyId = Hash28

// Value is a Cardano multi-asset value: lovelace plus a map of native
// assets keyed by policy and asset name, per spec.md §3.
type Value struct {
	Coin   int64
	Assets map[string]map[string]int64 // policyIdHex -> assetNameHex -> qty
}

// NewValue returns a lovelace-only value.
func NewValue(coin int64) Value {
	return Value{Coin: coin}
}

// Add returns the sum of two values; asset quantities that net to zero are
// pruned so empty-but-present map entries never leak into comparisons.
func (v Value) Add(other Value) Value {
	out := Value{
		Coin:   v.Coin + other.Coin,
		Assets: cloneAssets(v.Assets),
	}
	for policy, names := range other.Assets {
		for name, qty := range names {
			out.addAsset(policy, name, qty)
		}
	}
	out.prune()
	return out
}

// Negate returns the value with every component sign-flipped, so Add can
// double as subtraction.
func (v Value) Negate() Value {
	out := Value{Coin: -v.Coin, Assets: map[string]map[string]int64{}}
	for policy, names := range v.Assets {
		out.Assets[policy] = map[string]int64{}
		for name, qty := range names {
			out.Assets[policy][name] = -qty
		}
	}
	return out
}

// IsZero reports whether the value has no lovelace and no non-zero assets.
func (v Value) IsZero() bool {
	if v.Coin != 0 {
		return false
	}
	for _, names := range v.Assets {
		for _, qty := range names {
			if qty != 0 {
				return false
			}
		}
	}
	return true
}

// AddAsset adds qty of a native asset (by policy and asset name, both
// hex-encoded) to the value in place.
func (v *Value) AddAsset(policy, name string, qty int64) {
	v.addAsset(policy, name, qty)
}

func (v *Value) addAsset(policy, name string, qty int64) {
	if v.Assets == nil {
		v.Assets = map[string]map[string]int64{}
	}
	if v.Assets[policy] == nil {
		v.Assets[policy] = map[string]int64{}
	}
	v.Assets[policy][name] += qty
}

func (v *Value) prune() {
	for policy, names := range v.Assets {
		for name, qty := range names {
			if qty == 0 {
				delete(names, name)
			}
		}
		if len(names) == 0 {
			delete(v.Assets, policy)
		}
	}
}

func cloneAssets(in map[string]map[string]int64) map[string]map[string]int64 {
	out := map[string]map[string]int64{}
	for policy, names := range in {
		out[policy] = map[string]int64{}
		for name, qty := range names {
			out[policy][name] = qty
		}
	}
	return out
}
