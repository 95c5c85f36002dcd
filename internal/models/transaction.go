package models

import "time"

type TransactionType string

const (
	TransactionTypeSpin       TransactionType = "spin"
	TransactionTypeTask       TransactionType = "task"
	TransactionTypeReferral   TransactionType = "referral"
	TransactionTypeBet        TransactionType = "bet"
	TransactionTypeWin        TransactionType = "win"
	TransactionTypeWithdraw   TransactionType = "withdraw"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeConversion TransactionType = "conversion"
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeLottery    TransactionType = "lottery"
	TransactionTypeBonus      TransactionType = "bonus"
)

type Transaction struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Type         TransactionType `json:"type"`
	Currency     Currency        `json:"currency"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	Reference    string          `json:"reference,omitempty"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
}
