package models

import "time"

// WheelSegment is one slice of the reward wheel. Weight controls how often
// the slice is selected relative to the others.
type WheelSegment struct {
	Label  string `json:"label" yaml:"label"`
	Reward int64  `json:"reward" yaml:"reward"`
	Weight int64  `json:"weight" yaml:"weight"`
}

type Spin struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RequestID    string    `json:"request_id"`
	Segment      int       `json:"segment"`
	Label        string    `json:"label"`
	BaseReward   int64     `json:"base_reward"`
	Multiplier   int64     `json:"multiplier"`
	Reward       int64     `json:"reward"`
	Tier         TierName  `json:"tier"`
	ClientSeed   string    `json:"client_seed"`
	ServerHash   string    `json:"server_hash"`
	Nonce        int64     `json:"nonce"`
	BalanceAfter int64     `json:"balance_after"`
	SpinsToday   int64     `json:"spins_today"`
	CreatedAt    time.Time `json:"created_at"`
}

type SpinRequest struct {
	// RequestID makes the call idempotent: a retry with the same id returns
	// the original result.
	RequestID string `json:"request_id" binding:"required,max=64"`
}

type SpinStatus struct {
	Tier       Tier           `json:"tier"`
	SpinsToday int64          `json:"spins_today"`
	SpinLimit  int64          `json:"spin_limit"`
	SpinsLeft  int64          `json:"spins_left"`
	Unlimited  bool           `json:"unlimited"`
	Wheel      []WheelSegment `json:"wheel"`
	ServerHash string         `json:"server_hash"`
}
