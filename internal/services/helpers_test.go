package services_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"spin-earn-backend/internal/catalog"
	"spin-earn-backend/internal/config"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/realtime"
	"spin-earn-backend/internal/services"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) tables(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.UserID == userID {
			out = append(out, e.Table)
		}
	}
	return out
}

// tenCoinWheel always lands on its only segment.
var tenCoinWheel = []models.WheelSegment{{Label: "10 coins", Reward: 10, Weight: 1}}

var testTasks = []models.Task{
	{ID: "daily-checkin", Title: "Daily check-in", Kind: models.TaskDailyCheckin, BaseReward: 10, Daily: true},
	{ID: "spins-3", Title: "Spin 3 times", Kind: models.TaskSpinMilestone, Target: 3, BaseReward: 10},
	{ID: "join-channel", Title: "Join our channel", Kind: models.TaskSocial, BaseReward: 20},
}

var testPackages = []models.DiamondPackage{
	{ID: "pack-small", Name: "Handful", Diamonds: 10, Bonus: 2, Price: decimal.RequireFromString("0.99"), Currency: "USD"},
}

type testEnv struct {
	mr     *miniredis.Miniredis
	store  *services.RedisService
	events *recordingPublisher
	cfg    *config.Config

	notes   *services.NotificationService
	users   *services.UserService
	fair    *services.FairService
	spins   *services.SpinService
	tasks   *services.TaskService
	games   *services.GameEngine
	wallet  *services.WalletService
	shop    *services.ShopService
	lottery *services.LotteryService
	chat    *services.ChatService
	admin   *services.AdminService
	board   *services.LeaderboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{
		JWTSecret:         "test-secret",
		JWTExpiry:         time.Hour,
		MinWithdrawal:     1000,
		PublicBaseURL:     "http://api.test",
		PaymentGatewayURL: "https://pay.test/checkout",
		PaymentSecret:     "payment-secret",
	}

	store := services.NewRedisServiceFromClient(client)
	events := &recordingPublisher{}
	store.SetPublisher(events)

	env := &testEnv{mr: mr, store: store, events: events, cfg: cfg}
	env.notes = services.NewNotificationService(store)
	env.users = services.NewUserService(store, env.notes, cfg)
	env.users.SetBcryptCost(bcrypt.MinCost)
	env.fair = services.NewFairService(store)
	env.spins = services.NewSpinService(store, env.fair, tenCoinWheel)
	env.tasks = services.NewTaskService(store, testTasks)
	env.games = services.NewGameEngine(store, env.fair)
	env.wallet = services.NewWalletService(store, env.notes, cfg, testPackages)
	env.shop = services.NewShopService(store)
	env.lottery = services.NewLotteryService(store, env.notes, catalog.LotteryDefaults{
		Title:       "Daily draw",
		NumberCount: 3,
		MaxNumber:   20,
		TicketPrice: 100,
		DrawEvery:   24 * time.Hour,
	})
	env.chat = services.NewChatService(store, env.notes)
	env.admin = services.NewAdminService(store, env.users, env.notes)
	env.board = services.NewLeaderboardService(store)
	return env
}

func (e *testEnv) signup(t *testing.T, name string) *models.User {
	t.Helper()
	user, err := e.users.Signup(context.Background(), &models.SignupRequest{
		Email:    name + "@example.com",
		Username: name,
		Password: "password123",
	})
	require.NoError(t, err)
	return user
}

// signupAdmin registers name and promotes the new account.
func (e *testEnv) signupAdmin(t *testing.T, name string) *models.User {
	t.Helper()
	user := e.signup(t, name)
	e.cfg.AdminUserIDs = append(e.cfg.AdminUserIDs, user.ID)
	_, err := e.users.PromoteAdmins(context.Background())
	require.NoError(t, err)
	promoted, err := e.store.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	return promoted
}

// setCoins writes a balance directly, bypassing the ledger.
func (e *testEnv) setCoins(t *testing.T, userID string, coins int64) {
	t.Helper()
	e.mr.HSet(fmt.Sprintf(services.KeyUser, userID), "coins", strconv.FormatInt(coins, 10))
}

func (e *testEnv) setDiamonds(t *testing.T, userID string, diamonds int64) {
	t.Helper()
	e.mr.HSet(fmt.Sprintf(services.KeyUser, userID), "diamonds", strconv.FormatInt(diamonds, 10))
}

func (e *testEnv) coins(t *testing.T, userID string) int64 {
	t.Helper()
	user, err := e.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return user.Coins
}
