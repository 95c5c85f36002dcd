package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

func TestBroadcastReachesEveryUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.signupAdmin(t, "admin")
	users := []*models.User{env.signup(t, "alice"), env.signup(t, "bob")}

	msg, err := env.admin.Broadcast(ctx, admin.ID, &models.BroadcastRequest{Title: "Maintenance", Body: "Back soon"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), msg.Recipients)

	for _, u := range users {
		notes, err := env.notes.List(ctx, u.ID, 10)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, models.NotificationAdmin, notes[0].Kind)
		assert.Equal(t, "Maintenance", notes[0].Title)
		assert.False(t, notes[0].Read)
	}

	history, err := env.admin.Messages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	env.setCoins(t, alice.ID, 1500)
	require.NoError(t, env.users.SetBanned(ctx, bob.ID, true))

	_, err := env.wallet.RequestWithdrawal(ctx, alice.ID, withdrawal(1200))
	require.NoError(t, err)
	_, err = env.spins.Spin(ctx, alice.ID, "r1")
	require.NoError(t, err)
	_, err = env.notes.FileReport(ctx, alice.ID, &models.ReportRequest{TargetID: bob.ID, Reason: "spam"})
	require.NoError(t, err)
	openLottery(t, env)

	stats, err := env.admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(1), stats.BannedUsers)
	assert.Equal(t, int64(1), stats.PendingWithdrawals)
	assert.Equal(t, int64(1200), stats.PendingAmount)
	assert.Equal(t, int64(1), stats.OpenReports)
	assert.Equal(t, int64(1), stats.OpenLotteries)
	assert.Equal(t, int64(1), stats.SpinsToday)
}

func TestReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")

	_, err := env.notes.FileReport(ctx, alice.ID, &models.ReportRequest{TargetID: alice.ID, Reason: "me"})
	assert.ErrorIs(t, err, services.ErrSelfAction)
	_, err = env.notes.FileReport(ctx, alice.ID, &models.ReportRequest{TargetID: "missing", Reason: "x"})
	assert.ErrorIs(t, err, services.ErrNotFound)

	report, err := env.notes.FileReport(ctx, alice.ID, &models.ReportRequest{TargetID: bob.ID, Reason: "spam"})
	require.NoError(t, err)

	open, err := env.notes.OpenReports(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	resolved, err := env.notes.ResolveReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, resolved.Status)

	_, err = env.notes.ResolveReport(ctx, report.ID)
	assert.ErrorIs(t, err, services.ErrInvalidState)
}

func TestNotificationsReadAndPrune(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.signup(t, "alice")

	first, err := env.notes.Notify(ctx, user.ID, models.NotificationAdmin, "one", "")
	require.NoError(t, err)
	_, err = env.notes.Notify(ctx, user.ID, models.NotificationAdmin, "two", "")
	require.NoError(t, err)

	marked, err := env.notes.MarkRead(ctx, user.ID, []string{first.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	unread, err := env.notes.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	removed, err := env.notes.PruneRead(ctx, user.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	notes, err := env.notes.List(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "two", notes[0].Title)

	_, err = env.notes.MarkRead(ctx, user.ID, nil)
	require.NoError(t, err)
	unread, err = env.notes.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.signup(t, "alice")
	bob := env.signup(t, "bob")
	carol := env.signup(t, "carol")

	env.setCoins(t, bob.ID, 1500)
	_, err := env.tasks.Complete(ctx, bob.ID, "join-channel")
	require.NoError(t, err)
	_, err = env.spins.Spin(ctx, alice.ID, "r1")
	require.NoError(t, err)

	top, err := env.board.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, bob.ID, top[0].UserID)
	assert.Equal(t, "bob", top[0].Username)
	assert.Equal(t, int64(1540), top[0].Coins)
	assert.Equal(t, models.TierVIP, top[0].Tier)
	assert.Equal(t, int64(1), top[0].Rank)
	assert.Equal(t, alice.ID, top[1].UserID)

	rank, err := env.board.Rank(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rank)

	rank, err = env.board.Rank(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, rank)
}
