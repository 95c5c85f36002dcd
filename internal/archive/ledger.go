package archive

import (
	"context"
	"fmt"
	"time"

	"spin-earn-backend/internal/models"
)

// RecordTransaction copies a ledger entry. Replays of the same id are
// ignored.
func (s *Store) RecordTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id,
			user_id,
			type,
			currency,
			amount,
			balance_after,
			reference,
			description,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, tx.ID, tx.UserID, string(tx.Type), string(tx.Currency), tx.Amount, tx.BalanceAfter, tx.Reference, tx.Description, tx.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (s *Store) RecordSignup(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, username, referred_by, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		ON CONFLICT (id) DO NOTHING
	`, user.ID, user.Email, user.Username, user.ReferredBy, time.Unix(user.CreatedAt, 0).UTC())
	if err != nil {
		return fmt.Errorf("insert user %s: %w", user.ID, err)
	}
	return nil
}

type TransactionRow struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Type         string    `db:"type" json:"type"`
	Currency     string    `db:"currency" json:"currency"`
	Amount       int64     `db:"amount" json:"amount"`
	BalanceAfter int64     `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UserTransactions returns archived entries newest first, reaching past the
// Redis history window.
func (s *Store) UserTransactions(ctx context.Context, userID string, before time.Time, limit int) ([]TransactionRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows := []TransactionRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, currency, amount, balance_after, created_at
		FROM transactions
		WHERE user_id = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, before.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return rows, nil
}
