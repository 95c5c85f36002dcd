package archive

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-earn-backend/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestRecordTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := &models.Transaction{
		ID:           "tx-1",
		UserID:       "u1",
		Type:         models.TransactionTypeSpin,
		Currency:     models.CurrencyCoins,
		Amount:       25,
		BalanceAfter: 125,
		Reference:    "spin-1",
		Description:  "Wheel spin",
		CreatedAt:    created,
	}

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs("tx-1", "u1", "spin", "coins", int64(25), int64(125), "spin-1", "Wheel spin", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.RecordTransaction(context.Background(), tx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransactionError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO transactions").WillReturnError(errors.New("connection reset"))

	err := store.RecordTransaction(context.Background(), &models.Transaction{ID: "tx-2"})
	assert.ErrorContains(t, err, "tx-2")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSignup(t *testing.T) {
	store, mock := newMockStore(t)
	user := &models.User{ID: "u1", Email: "a@example.com", Username: "alice", CreatedAt: 1700000000}

	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "a@example.com", "alice", "", time.Unix(1700000000, 0).UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.RecordSignup(context.Background(), user))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildDailyReport(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery("FROM transactions").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{
			"active_users", "spins", "coins_credited", "coins_debited",
			"withdrawals", "withdrawn_coins", "diamonds_sold",
		}).AddRow(7, 20, 900, 1300, 1, 1000, 12))
	mock.ExpectExec("INSERT INTO daily_reports").
		WithArgs(start, int64(4), int64(7), int64(20), int64(900), int64(1300), int64(1), int64(1000), int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	report, err := store.BuildDailyReport(context.Background(), start.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, start, report.Day)
	assert.Equal(t, int64(4), report.Signups)
	assert.Equal(t, int64(20), report.Spins)
	assert.Equal(t, int64(1000), report.WithdrawnCoins)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM daily_reports").
		WillReturnRows(sqlmock.NewRows([]string{"day", "signups"}))

	_, err := store.Report(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrNoReport)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportText(t *testing.T) {
	r := &DailyReport{
		Day:            time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Signups:        4,
		Spins:          20,
		Withdrawals:    1,
		WithdrawnCoins: 1500,
	}
	text := r.Text(decimal.RequireFromString("0.001"))
	assert.Contains(t, text, "Daily report for 2026-03-01")
	assert.Contains(t, text, "Withdrawals:      1 (1500 coins, 1.50)")

	assert.Contains(t, r.Text(decimal.Zero), "(1500 coins)")
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	start, end := dayBounds(time.Date(2026, 3, 2, 1, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	up.Close()
	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	down.Close()
}

func TestMigrateAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	store, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Migrate())
	// A second run finds nothing to do.
	require.NoError(t, store.Migrate())
}
