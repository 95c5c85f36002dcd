package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-earn-backend/internal/catalog"
	"spin-earn-backend/internal/config"
	"spin-earn-backend/internal/handlers"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/realtime"
	"spin-earn-backend/internal/services"
)

type apiEnv struct {
	mr     *miniredis.Miniredis
	router *gin.Engine
	cfg    *config.Config
	users  *services.UserService
	wallet *services.WalletService
	hub    *realtime.Hub
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
		PublicRateLimit:   100,
		PublicRateBurst:   100,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	log := logrus.NewEntry(logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := realtime.NewHub(log)
	go hub.Run(ctx)

	store := services.NewRedisServiceFromClient(client)
	notes := services.NewNotificationService(store)
	users := services.NewUserService(store, notes, cfg)
	fair := services.NewFairService(store)
	spins := services.NewSpinService(store, fair, []models.WheelSegment{{Label: "10 coins", Reward: 10, Weight: 1}})
	wallet := services.NewWalletService(store, notes, cfg, []models.DiamondPackage{
		{ID: "pack-small", Name: "Handful", Diamonds: 10, Bonus: 2, Price: decimal.RequireFromString("0.99"), Currency: "USD"},
	})

	router := handlers.NewRouter(handlers.Deps{
		Config:  cfg,
		Store:   store,
		JWT:     services.NewJWTService(cfg),
		Hub:     hub,
		Users:   users,
		Spins:   spins,
		Tasks:   services.NewTaskService(store, nil),
		Wallet:  wallet,
		Shop:    services.NewShopService(store),
		Lottery: services.NewLotteryService(store, notes, catalog.LotteryDefaults{Title: "Daily draw", NumberCount: 3, MaxNumber: 20, TicketPrice: 100, DrawEvery: 24 * time.Hour}),
		Games:   services.NewGameEngine(store, fair),
		Fair:    fair,
		Chat:    services.NewChatService(store, notes),
		Notes:   notes,
		Admin:   services.NewAdminService(store, users, notes),
		Board:   services.NewLeaderboardService(store),
		Log:     log,
	})
	return &apiEnv{mr: mr, router: router, cfg: cfg, users: users, wallet: wallet, hub: hub}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// signup registers name@example.com and returns the token and user id.
func (e *apiEnv) signup(t *testing.T, name string) (string, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    name + "@example.com",
		"username": name,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp models.AuthResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User.ID
}

// signupAdmin registers name, promotes it and logs in again so the token
// carries the admin claim.
func (e *apiEnv) signupAdmin(t *testing.T, name string) (string, string) {
	t.Helper()
	_, id := e.signup(t, name)
	e.cfg.AdminUserIDs = append(e.cfg.AdminUserIDs, id)
	_, err := e.users.PromoteAdmins(context.Background())
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    name + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.AuthResponse
	decode(t, rec, &resp)
	return resp.Token, id
}

func (e *apiEnv) setCoins(userID string, coins int64) {
	e.mr.HSet(fmt.Sprintf(services.KeyUser, userID), "coins", fmt.Sprint(coins))
}

func TestSignupLoginAndProfile(t *testing.T) {
	env := newAPIEnv(t)
	token, id := env.signup(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email": "ALICE@example.com", "username": "alice2", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "details")

	rec = env.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile models.Profile
	decode(t, rec, &profile)
	assert.Equal(t, id, profile.User.ID)
	assert.Equal(t, int64(5), profile.SpinsLeft)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/me", "", nil).Code)
}

func TestSpinEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	token, _ := env.signup(t, "alice")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/spins", token, gin.H{}).Code)

	var first, repeat struct {
		Spin models.Spin `json:"spin"`
	}
	rec := env.do(t, http.MethodPost, "/api/spins", token, gin.H{"request_id": "r1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &first)
	assert.Equal(t, int64(10), first.Spin.Reward)

	rec = env.do(t, http.MethodPost, "/api/spins", token, gin.H{"request_id": "r1"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &repeat)
	assert.Equal(t, first.Spin.ID, repeat.Spin.ID)

	for i := 2; i <= 5; i++ {
		rec = env.do(t, http.MethodPost, "/api/spins", token, gin.H{"request_id": fmt.Sprintf("r%d", i)})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/spins", token, gin.H{"request_id": "r6"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), services.ErrSpinLimitReached.Error())

	var balance models.BalanceResponse
	decode(t, env.do(t, http.MethodGet, "/api/balance", token, nil), &balance)
	assert.Equal(t, int64(50), balance.Coins)
}

func TestWheelListsTiers(t *testing.T) {
	env := newAPIEnv(t)
	token, _ := env.signup(t, "alice")

	var body struct {
		Segments []models.WheelSegment `json:"segments"`
		Tiers    []models.Tier         `json:"tiers"`
	}
	rec := env.do(t, http.MethodGet, "/api/wheel", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.NotEmpty(t, body.Segments)
	require.Len(t, body.Tiers, 4)
	assert.Equal(t, models.TierRegular, body.Tiers[0].Name)
	assert.Equal(t, models.TierGrandMaster, body.Tiers[3].Name)
	assert.True(t, body.Tiers[3].Unlimited)
}

func TestWithdrawalFlowThroughAdmin(t *testing.T) {
	env := newAPIEnv(t)
	adminToken, _ := env.signupAdmin(t, "admin")
	userToken, userID := env.signup(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/withdrawals", userToken, gin.H{"amount": 500, "method": "paypal", "account": "bob@pay"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), services.ErrBelowMinimum.Error())

	env.setCoins(userID, 1500)
	rec = env.do(t, http.MethodPost, "/api/withdrawals", userToken, gin.H{"amount": 1200, "method": "paypal", "account": "bob@pay"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Withdrawal models.Withdrawal `json:"withdrawal"`
	}
	decode(t, rec, &created)
	assert.Equal(t, models.WithdrawalPending, created.Withdrawal.Status)

	path := "/api/admin/withdrawals/" + created.Withdrawal.ID + "/reject"
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, path, userToken, nil).Code)

	rec = env.do(t, http.MethodPost, path, adminToken, gin.H{"notes": "account mismatch"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// A decided withdrawal cannot be decided again.
	rec = env.do(t, http.MethodPost, "/api/admin/withdrawals/"+created.Withdrawal.ID+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var balance models.BalanceResponse
	decode(t, env.do(t, http.MethodGet, "/api/balance", userToken, nil), &balance)
	assert.Equal(t, int64(1500), balance.Coins)
}

func TestAdminRoutesNeedPromotion(t *testing.T) {
	env := newAPIEnv(t)
	token, _ := env.signup(t, "admin")
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/admin/dashboard", token, nil).Code)

	adminToken, _ := env.signupAdmin(t, "ops")
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/dashboard", adminToken, nil).Code)
}

func TestAdminBanBlocksSpins(t *testing.T) {
	env := newAPIEnv(t)
	adminToken, adminID := env.signupAdmin(t, "admin")
	userToken, userID := env.signup(t, "mallory")

	rec := env.do(t, http.MethodPost, "/api/admin/users/"+adminID+"/ban", adminToken, gin.H{"ban": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/users/"+userID+"/ban", adminToken, gin.H{"ban": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/spins", userToken, gin.H{"request_id": "r1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/users/missing/spin-limit", adminToken, gin.H{"limit": 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentReturn(t *testing.T) {
	env := newAPIEnv(t)
	token, _ := env.signup(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/diamonds/checkout", token, gin.H{"package_id": "pack-small"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var checkout models.CheckoutResponse
	decode(t, rec, &checkout)
	require.True(t, strings.HasPrefix(checkout.RedirectURL, "https://pay.test/checkout?"))
	assert.NotContains(t, rec.Body.String(), "signature")

	id := checkout.Purchase.ID
	forged := "/payments/success?purchase_id=" + id + "&signature=deadbeef"
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, forged, "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/payments/success", "", nil).Code)

	redirect, err := url.Parse(checkout.RedirectURL)
	require.NoError(t, err)
	success, err := url.Parse(redirect.Query().Get("success_url"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, success.RequestURI(), "", nil).Code)

	var unpaid models.BalanceResponse
	decode(t, env.do(t, http.MethodGet, "/api/balance", token, nil), &unpaid)
	assert.Zero(t, unpaid.Diamonds)

	q := url.Values{}
	q.Set("purchase_id", id)
	q.Set("signature", env.wallet.Sign(id, models.PurchaseCompleted, "0.99", "USD"))
	rec = env.do(t, http.MethodGet, "/payments/success?"+q.Encode(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var balance models.BalanceResponse
	decode(t, env.do(t, http.MethodGet, "/api/balance", token, nil), &balance)
	assert.Equal(t, int64(12), balance.Diamonds)
}

func TestLotteryEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	adminToken, _ := env.signupAdmin(t, "admin")
	userToken, userID := env.signup(t, "carol")
	env.setCoins(userID, 500)

	rec := env.do(t, http.MethodPost, "/api/admin/lottery", adminToken, gin.H{
		"title": "Flash", "number_count": 3, "max_number": 20, "ticket_price": 100, "draw_in_hours": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Lottery models.LotteryGame `json:"lottery"`
	}
	decode(t, rec, &created)
	id := created.Lottery.ID

	rec = env.do(t, http.MethodPost, "/api/lottery/"+id+"/tickets", userToken, gin.H{"numbers": []int{1, 1, 2}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/lottery/"+id+"/tickets", userToken, gin.H{"numbers": []int{9, 2, 5}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/admin/lottery/"+id+"/draw", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/lottery/"+id+"/tickets", userToken, gin.H{"numbers": []int{1, 2, 3}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/lottery/"+id, userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"winners"`)
}

func TestHealthz(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"redis":"ok"}`, rec.Body.String())

	env.mr.SetError("LOADING")
	rec = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	env.mr.SetError("")
}

func TestArchiveDisabled(t *testing.T) {
	env := newAPIEnv(t)
	token, _ := env.signup(t, "alice")
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/transactions/archive", token, nil).Code)
}

func TestWebSocketSnapshotAndPing(t *testing.T) {
	env := newAPIEnv(t)
	token, id := env.signup(t, "alice")

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snapshot struct {
		Type string         `json:"type"`
		Data models.Profile `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "SNAPSHOT", snapshot.Type)
	assert.Equal(t, id, snapshot.Data.User.ID)

	require.NoError(t, conn.WriteJSON(realtime.Message{Type: "PING"}))
	var pong realtime.Message
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "PONG", pong.Type)

	require.Eventually(t, func() bool { return env.hub.Connections(id) == 1 }, time.Second, 10*time.Millisecond)
}
