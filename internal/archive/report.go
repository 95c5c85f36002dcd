package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNoReport = errors.New("no report for day")

type DailyReport struct {
	Day            time.Time `db:"day" json:"day"`
	Signups        int64     `db:"signups" json:"signups"`
	ActiveUsers    int64     `db:"active_users" json:"active_users"`
	Spins          int64     `db:"spins" json:"spins"`
	CoinsCredited  int64     `db:"coins_credited" json:"coins_credited"`
	CoinsDebited   int64     `db:"coins_debited" json:"coins_debited"`
	Withdrawals    int64     `db:"withdrawals" json:"withdrawals"`
	WithdrawnCoins int64     `db:"withdrawn_coins" json:"withdrawn_coins"`
	DiamondsSold   int64     `db:"diamonds_sold" json:"diamonds_sold"`
}

// dayBounds returns the UTC midnight window containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// BuildDailyReport aggregates the ledger for the UTC day containing day and
// stores the result, replacing an earlier run for the same day.
func (s *Store) BuildDailyReport(ctx context.Context, day time.Time) (*DailyReport, error) {
	start, end := dayBounds(day)
	report := &DailyReport{Day: start}

	if err := s.db.GetContext(ctx, &report.Signups, `
		SELECT COUNT(*) FROM users WHERE created_at >= $1 AND created_at < $2
	`, start, end); err != nil {
		return nil, fmt.Errorf("count signups: %w", err)
	}

	err := s.db.QueryRowxContext(ctx, `
		SELECT
			COUNT(DISTINCT user_id) AS active_users,
			COUNT(*) FILTER (WHERE type = 'spin') AS spins,
			COALESCE(SUM(amount) FILTER (WHERE currency = 'coins' AND amount > 0), 0) AS coins_credited,
			COALESCE(-SUM(amount) FILTER (WHERE currency = 'coins' AND amount < 0), 0) AS coins_debited,
			COUNT(*) FILTER (WHERE type = 'withdraw') AS withdrawals,
			COALESCE(-SUM(amount) FILTER (WHERE type = 'withdraw'), 0) AS withdrawn_coins,
			COALESCE(SUM(amount) FILTER (WHERE type = 'deposit' AND currency = 'diamonds'), 0) AS diamonds_sold
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2
	`, start, end).StructScan(report)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger: %w", err)
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO daily_reports (
			day, signups, active_users, spins, coins_credited, coins_debited,
			withdrawals, withdrawn_coins, diamonds_sold
		)
		VALUES (
			:day, :signups, :active_users, :spins, :coins_credited, :coins_debited,
			:withdrawals, :withdrawn_coins, :diamonds_sold
		)
		ON CONFLICT (day) DO UPDATE SET
			signups = EXCLUDED.signups,
			active_users = EXCLUDED.active_users,
			spins = EXCLUDED.spins,
			coins_credited = EXCLUDED.coins_credited,
			coins_debited = EXCLUDED.coins_debited,
			withdrawals = EXCLUDED.withdrawals,
			withdrawn_coins = EXCLUDED.withdrawn_coins,
			diamonds_sold = EXCLUDED.diamonds_sold,
			generated_at = NOW()
	`, report)
	if err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}

	s.log.WithField("day", start.Format("2006-01-02")).Info("daily report built")
	return report, nil
}

func (s *Store) Report(ctx context.Context, day time.Time) (*DailyReport, error) {
	start, _ := dayBounds(day)
	var report DailyReport
	err := s.db.GetContext(ctx, &report, `
		SELECT day, signups, active_users, spins, coins_credited, coins_debited,
			withdrawals, withdrawn_coins, diamonds_sold
		FROM daily_reports
		WHERE day = $1
	`, start)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	return &report, nil
}

// Text renders the report as a plain-text mail body. coinRate is the fiat
// value of one coin, used to show the withdrawn total in money.
func (r *DailyReport) Text(coinRate decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily report for %s\n\n", r.Day.Format("2006-01-02"))
	fmt.Fprintf(&b, "Signups:          %d\n", r.Signups)
	fmt.Fprintf(&b, "Active users:     %d\n", r.ActiveUsers)
	fmt.Fprintf(&b, "Spins:            %d\n", r.Spins)
	fmt.Fprintf(&b, "Coins credited:   %d\n", r.CoinsCredited)
	fmt.Fprintf(&b, "Coins debited:    %d\n", r.CoinsDebited)
	fmt.Fprintf(&b, "Withdrawals:      %d (%d coins", r.Withdrawals, r.WithdrawnCoins)
	if !coinRate.IsZero() {
		fmt.Fprintf(&b, ", %s", decimal.NewFromInt(r.WithdrawnCoins).Mul(coinRate).StringFixed(2))
	}
	b.WriteString(")\n")
	fmt.Fprintf(&b, "Diamonds sold:    %d\n", r.DiamondsSold)
	return b.String()
}
