package models

type Currency string

const (
	CurrencyCoins    Currency = "coins"
	CurrencyDiamonds Currency = "diamonds"
)

// CoinsPerDiamond is the fixed conversion rate for convert_diamonds_to_coins.
const CoinsPerDiamond = 1000

type BalanceResponse struct {
	Coins    int64 `json:"coins"`
	Diamonds int64 `json:"diamonds"`
	Tier     Tier  `json:"tier"`
}

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	ID          string           `json:"id" redis:"id"`
	UserID      string           `json:"user_id" redis:"user_id"`
	Amount      int64            `json:"amount" redis:"amount"`
	Method      string           `json:"method" redis:"method"`
	Account     string           `json:"account" redis:"account"`
	Status      WithdrawalStatus `json:"status" redis:"status"`
	AdminNotes  string           `json:"admin_notes,omitempty" redis:"admin_notes"`
	CreatedAt   int64            `json:"created_at" redis:"created_at"`
	ProcessedAt int64            `json:"processed_at,omitempty" redis:"processed_at"`
}

type WithdrawalRequest struct {
	Amount  int64  `json:"amount" binding:"required,gt=0"`
	Method  string `json:"method" binding:"required,oneof=paypal bank crypto mobile"`
	Account string `json:"account" binding:"required,max=128"`
}

type ConvertDiamondsRequest struct {
	Diamonds int64 `json:"diamonds" binding:"required,gt=0"`
}

type ConvertResult struct {
	DiamondsSpent int64 `json:"diamonds_spent"`
	CoinsCredited int64 `json:"coins_credited"`
	Coins         int64 `json:"coins"`
	Diamonds      int64 `json:"diamonds"`
}
