package models

import "github.com/shopspring/decimal"

type DiamondPackage struct {
	ID       string          `json:"id" yaml:"id"`
	Name     string          `json:"name" yaml:"name"`
	Diamonds int64           `json:"diamonds" yaml:"diamonds"`
	Bonus    int64           `json:"bonus" yaml:"bonus"`
	Price    decimal.Decimal `json:"price" yaml:"price"`
	Currency string          `json:"currency" yaml:"currency"`
}

// Total is the number of diamonds credited when the purchase succeeds.
func (p DiamondPackage) Total() int64 {
	return p.Diamonds + p.Bonus
}

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
)

type DiamondPurchase struct {
	ID          string         `json:"id" redis:"id"`
	UserID      string         `json:"user_id" redis:"user_id"`
	PackageID   string         `json:"package_id" redis:"package_id"`
	Diamonds    int64          `json:"diamonds" redis:"diamonds"`
	Amount      string         `json:"amount" redis:"amount"`
	Currency    string         `json:"currency" redis:"currency"`
	Status      PurchaseStatus `json:"status" redis:"status"`
	CreatedAt   int64          `json:"created_at" redis:"created_at"`
	CompletedAt int64          `json:"completed_at,omitempty" redis:"completed_at"`
}

type CheckoutRequest struct {
	PackageID string `json:"package_id" binding:"required"`
}

type CheckoutResponse struct {
	Purchase    *DiamondPurchase `json:"purchase"`
	RedirectURL string           `json:"redirect_url"`
}
