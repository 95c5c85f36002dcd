package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-earn-backend/internal/archive"
	"spin-earn-backend/internal/catalog"
	"spin-earn-backend/internal/config"
	"spin-earn-backend/internal/jobs"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

func quietLog() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

type maintenanceEnv struct {
	mr      *miniredis.Miniredis
	users   *services.UserService
	spins   *services.SpinService
	notes   *services.NotificationService
	lottery *services.LotteryService
	job     *jobs.Maintenance
}

func newMaintenanceEnv(t *testing.T, now time.Time) *maintenanceEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, MinWithdrawal: 1000}
	store := services.NewRedisServiceFromClient(client)
	notes := services.NewNotificationService(store)
	users := services.NewUserService(store, notes, cfg)
	fair := services.NewFairService(store)
	spins := services.NewSpinService(store, fair, []models.WheelSegment{{Label: "10 coins", Reward: 10, Weight: 1}})
	lottery := services.NewLotteryService(store, notes, catalog.LotteryDefaults{
		Title:       "Daily draw",
		NumberCount: 3,
		MaxNumber:   20,
		TicketPrice: 100,
		DrawEvery:   24 * time.Hour,
	})

	return &maintenanceEnv{
		mr:      mr,
		users:   users,
		spins:   spins,
		notes:   notes,
		lottery: lottery,
		job: &jobs.Maintenance{
			Store:     store,
			Users:     users,
			Spins:     spins,
			Notes:     notes,
			Lottery:   lottery,
			Retention: 24 * time.Hour,
			Now:       func() time.Time { return now },
			Log:       quietLog(),
		},
	}
}

func TestMaintenanceSweep(t *testing.T) {
	ctx := context.Background()
	env := newMaintenanceEnv(t, time.Now().Add(72*time.Hour))

	user, err := env.users.Signup(ctx, &models.SignupRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "password123",
	})
	require.NoError(t, err)

	_, err = env.spins.Spin(ctx, user.ID, "r1")
	require.NoError(t, err)
	env.mr.HSet(fmt.Sprintf(services.KeyUser, user.ID), "daily_spin_limit", "99")

	game, err := env.lottery.Create(ctx, &models.CreateLotteryRequest{
		Title: "Flash", NumberCount: 3, MaxNumber: 20, TicketPrice: 100, DrawInHours: 1,
	})
	require.NoError(t, err)

	stats, err := env.job.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 1, stats.LimitsFixed)
	assert.Equal(t, int64(1), stats.SpinsPruned)
	assert.Equal(t, 1, stats.Draws)

	refreshed, err := env.users.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), refreshed.User.DailySpinLimit)

	history, err := env.spins.History(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	drawn, err := env.lottery.Get(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LotteryDrawn, drawn.Status)

	open, err := env.lottery.Open(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.NotEqual(t, game.ID, open[0].ID)
}

func TestMaintenanceSweepKeepsRecentHistory(t *testing.T) {
	ctx := context.Background()
	env := newMaintenanceEnv(t, time.Now())

	user, err := env.users.Signup(ctx, &models.SignupRequest{
		Email:    "bob@example.com",
		Username: "bob",
		Password: "password123",
	})
	require.NoError(t, err)
	_, err = env.spins.Spin(ctx, user.ID, "r1")
	require.NoError(t, err)

	stats, err := env.job.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.SpinsPruned)
	assert.Zero(t, stats.LimitsFixed)
}

func TestMaintenanceHealthCheckFails(t *testing.T) {
	env := newMaintenanceEnv(t, time.Now())
	env.mr.SetError("LOADING")
	defer env.mr.SetError("")

	err := env.job.Run(context.Background())
	assert.Error(t, err)
}

type fakeMailer struct {
	to, subject, body string
	err               error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

func newMockArchive(t *testing.T) (*archive.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return archive.New(sqlx.NewDb(db, "postgres")), mock
}

func expectReport(mock sqlmock.Sqlmock, day time.Time) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WithArgs(day, day.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("FROM transactions").
		WillReturnRows(sqlmock.NewRows([]string{
			"active_users", "spins", "coins_credited", "coins_debited",
			"withdrawals", "withdrawn_coins", "diamonds_sold",
		}).AddRow(5, 12, 400, 1000, 1, 1000, 0))
	mock.ExpectExec("INSERT INTO daily_reports").WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestReporterMailsYesterday(t *testing.T) {
	store, mock := newMockArchive(t)
	expectReport(mock, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	mailer := &fakeMailer{}
	r := &jobs.Reporter{
		Archive:   store,
		Mailer:    mailer,
		Recipient: "ops@example.com",
		CoinRate:  decimal.RequireFromString("0.001"),
		Now:       func() time.Time { return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) },
		Log:       quietLog(),
	}
	require.NoError(t, r.Run(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "ops@example.com", mailer.to)
	assert.Equal(t, "Daily report 2026-03-01", mailer.subject)
	assert.Contains(t, mailer.body, "Signups:          3")
	assert.Contains(t, mailer.body, "(1000 coins, 1.00)")
}

func TestReporterMailFailure(t *testing.T) {
	store, mock := newMockArchive(t)
	expectReport(mock, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	r := &jobs.Reporter{
		Archive:   store,
		Mailer:    &fakeMailer{err: errors.New("connection refused")},
		Recipient: "ops@example.com",
		Now:       func() time.Time { return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) },
		Log:       quietLog(),
	}
	err := r.Run(context.Background())
	assert.ErrorContains(t, err, "mail report")
}

func TestSMTPMailerDisabled(t *testing.T) {
	assert.Nil(t, jobs.NewSMTPMailer(&config.Config{}))

	var m *jobs.SMTPMailer
	assert.ErrorIs(t, m.Send(context.Background(), "a@example.com", "s", "b"), jobs.ErrMailNotConfigured)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := jobs.NewScheduler(quietLog())
	err := s.Add(jobs.Job{Name: "broken", Schedule: "not a cron line", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestSchedulerRunNowAppliesTimeout(t *testing.T) {
	s := jobs.NewScheduler(quietLog())
	s.Start(context.Background())
	defer s.Stop()

	err := s.RunNow(jobs.Job{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSchedulerStopCancelsJobs(t *testing.T) {
	s := jobs.NewScheduler(quietLog())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	done := make(chan error, 1)
	go func() {
		done <- s.RunNow(jobs.Job{
			Name:    "blocked",
			Timeout: time.Minute,
			Run: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not observe cancellation")
	}
	s.Stop()
}
