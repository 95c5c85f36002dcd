package models

// TierName identifies a coin-balance derived VIP tier.
type TierName string

const (
	TierRegular     TierName = "Regular"
	TierVIP         TierName = "VIP"
	TierEliteMaster TierName = "Elite Master"
	TierGrandMaster TierName = "Grand Master"
)

// Tier describes the benefits a coin balance grants. MaxCoins is exclusive,
// -1 marks the open-ended top tier.
type Tier struct {
	Name       TierName `json:"name"`
	Multiplier int64    `json:"multiplier"`
	SpinLimit  int64    `json:"spin_limit"`
	Unlimited  bool     `json:"unlimited"`
	MinCoins   int64    `json:"min_coins"`
	MaxCoins   int64    `json:"max_coins"`
}

// tierLadder is ordered from the highest threshold down.
var tierLadder = []Tier{
	{Name: TierGrandMaster, Multiplier: 10, SpinLimit: 0, Unlimited: true, MinCoins: 3000, MaxCoins: -1},
	{Name: TierEliteMaster, Multiplier: 5, SpinLimit: 50, MinCoins: 2000, MaxCoins: 3000},
	{Name: TierVIP, Multiplier: 2, SpinLimit: 20, MinCoins: 1000, MaxCoins: 2000},
	{Name: TierRegular, Multiplier: 1, SpinLimit: 5, MinCoins: 0, MaxCoins: 1000},
}

// ResolveTier maps a coin balance to its tier. Negative balances resolve to
// Regular, so the function is total.
func ResolveTier(coins int64) Tier {
	for _, t := range tierLadder {
		if coins >= t.MinCoins {
			return t
		}
	}
	regular := tierLadder[len(tierLadder)-1]
	regular.MinCoins = coins
	return regular
}

// Tiers returns the ladder from lowest to highest.
func Tiers() []Tier {
	out := make([]Tier, 0, len(tierLadder))
	for i := len(tierLadder) - 1; i >= 0; i-- {
		out = append(out, tierLadder[i])
	}
	return out
}

// Apply multiplies a base reward by the tier multiplier.
func (t Tier) Apply(base int64) int64 {
	return base * t.Multiplier
}
