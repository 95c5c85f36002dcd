package models

import "fmt"

type GameType string

const (
	GameTypeDice     GameType = "dice"
	GameTypeCoinFlip GameType = "coinflip"
	// GameTypeSpin namespaces wheel rounds in the shared nonce sequence.
	GameTypeSpin GameType = "spin"
)

const (
	MinBet int64 = 10
	MaxBet int64 = 10000
)

// GameSession is the settled record of one mini-game round.
type GameSession struct {
	ID         string   `json:"id"`
	UserID     string   `json:"user_id"`
	GameType   GameType `json:"game_type"`
	BetAmount  int64    `json:"bet_amount"`
	Multiplier float64  `json:"multiplier"`
	Payout     int64    `json:"payout"`
	Win        bool     `json:"win"`

	ClientSeed string `json:"client_seed"`
	ServerHash string `json:"server_hash"`
	Nonce      int64  `json:"nonce"`
	Hash       string `json:"hash"`

	Outcome   map[string]interface{} `json:"outcome"`
	Balance   int64                  `json:"balance"`
	CreatedAt int64                  `json:"created_at"`
}

type DicePlayRequest struct {
	Amount int64 `json:"amount" binding:"required"`
	Target int   `json:"target" binding:"required,min=2,max=98"`
	Over   bool  `json:"over"` // true = over target, false = under target
}

type CoinFlipRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Side   string `json:"side" binding:"required,oneof=heads tails"`
}

type VerificationData struct {
	ClientSeed         string `json:"client_seed"`
	ServerHash         string `json:"server_hash"`
	CurrentNonce       int64  `json:"current_nonce"`
	PreviousServerSeed string `json:"previous_server_seed,omitempty"`
}

type VerifyRequest struct {
	ClientSeed string   `json:"client_seed" binding:"required"`
	ServerSeed string   `json:"server_seed" binding:"required"`
	Nonce      int64    `json:"nonce"`
	GameType   GameType `json:"game_type" binding:"required,oneof=dice coinflip spin"`
}

type ClientSeedRequest struct {
	ClientSeed string `json:"client_seed" binding:"required,min=4,max=64"`
}

func ValidateBet(amount int64) error {
	if amount < MinBet {
		return fmt.Errorf("bet amount must be at least %d coins", MinBet)
	}
	if amount > MaxBet {
		return fmt.Errorf("maximum bet amount is %d coins", MaxBet)
	}
	return nil
}
