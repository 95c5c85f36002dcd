package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/config"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/realtime"
)

type WalletService struct {
	store    *RedisService
	notes    *NotificationService
	cfg      *config.Config
	packages []models.DiamondPackage
}

func NewWalletService(store *RedisService, notes *NotificationService, cfg *config.Config, packages []models.DiamondPackage) *WalletService {
	return &WalletService{store: store, notes: notes, cfg: cfg, packages: packages}
}

// RequestWithdrawal is request_withdrawal. The minimum and balance checks,
// the deduction and the pending row happen in one script.
func (w *WalletService) RequestWithdrawal(ctx context.Context, userID string, req *models.WithdrawalRequest) (*models.Withdrawal, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	id := models.NewID()
	now := time.Now().Unix()
	auto := "0"
	if w.cfg.AutoApproveWithdrawals {
		auto = "1"
	}

	vals, err := scriptStrings(requestWithdrawalScript.Run(ctx, w.store.client,
		[]string{
			fmt.Sprintf(KeyUser, userID),
			fmt.Sprintf(KeyWithdrawal, id),
			KeyPendingWds,
			fmt.Sprintf(KeyUserWds, userID),
			KeyLeaderboard,
		},
		id, userID, req.Amount, w.cfg.MinWithdrawal, req.Method, req.Account, now, auto,
	))
	if err != nil {
		return nil, err
	}
	balance, _ := strconv.ParseInt(vals[1], 10, 64)

	wd := &models.Withdrawal{
		ID:        id,
		UserID:    userID,
		Amount:    req.Amount,
		Method:    req.Method,
		Account:   req.Account,
		Status:    models.WithdrawalStatus(vals[0]),
		CreatedAt: now,
	}
	if wd.Status == models.WithdrawalCompleted {
		wd.ProcessedAt = now
	}

	w.store.record(ctx, userID, models.TransactionTypeWithdraw, models.CurrencyCoins, -req.Amount, balance, id,
		fmt.Sprintf("Withdrawal via %s", req.Method))
	w.store.publish(ctx, realtime.NewEvent(realtime.TableWithdrawals, realtime.ChangeInsert, id, userID, wd))
	w.store.publishUser(ctx, userID)

	w.store.log.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  req.Amount,
		"status":  wd.Status,
	}).Info("withdrawal requested")

	return wd, nil
}

func (w *WalletService) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	var wd models.Withdrawal
	if err := w.store.loadHash(ctx, fmt.Sprintf(KeyWithdrawal, id), &wd); err != nil {
		return nil, err
	}
	return &wd, nil
}

func (w *WalletService) loadWithdrawals(ctx context.Context, ids []string) []*models.Withdrawal {
	out := make([]*models.Withdrawal, 0, len(ids))
	for _, id := range ids {
		wd, err := w.GetWithdrawal(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, wd)
	}
	return out
}

func (w *WalletService) UserWithdrawals(ctx context.Context, userID string) ([]*models.Withdrawal, error) {
	ids, err := w.store.client.ZRevRange(ctx, fmt.Sprintf(KeyUserWds, userID), 0, HistoryLimit-1).Result()
	if err != nil {
		return nil, err
	}
	return w.loadWithdrawals(ctx, ids), nil
}

// PendingWithdrawals lists the admin queue, oldest first.
func (w *WalletService) PendingWithdrawals(ctx context.Context) ([]*models.Withdrawal, error) {
	ids, err := w.store.client.ZRange(ctx, KeyPendingWds, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return w.loadWithdrawals(ctx, ids), nil
}

// ApproveWithdrawal is approve_withdrawal_with_notification.
func (w *WalletService) ApproveWithdrawal(ctx context.Context, id, notes string) (*models.Withdrawal, error) {
	wd, _, err := w.decide(ctx, id, models.WithdrawalCompleted, notes)
	if err != nil {
		return nil, err
	}
	w.notes.notify(ctx, wd.UserID, models.NotificationWithdrawal, "Withdrawal approved",
		fmt.Sprintf("Your withdrawal of %d coins via %s has been processed.", wd.Amount, wd.Method))
	return wd, nil
}

// RejectWithdrawal refunds the withdrawn coins in the same step as the
// status change.
func (w *WalletService) RejectWithdrawal(ctx context.Context, id, notes string) (*models.Withdrawal, error) {
	wd, balance, err := w.decide(ctx, id, models.WithdrawalRejected, notes)
	if err != nil {
		return nil, err
	}
	w.store.record(ctx, wd.UserID, models.TransactionTypeRefund, models.CurrencyCoins, wd.Amount, balance, wd.ID, "Withdrawal rejected, coins refunded")
	w.store.publishUser(ctx, wd.UserID)

	body := fmt.Sprintf("Your withdrawal of %d coins was rejected and refunded.", wd.Amount)
	if notes != "" {
		body += " " + notes
	}
	w.notes.notify(ctx, wd.UserID, models.NotificationWithdrawal, "Withdrawal rejected", body)
	return wd, nil
}

func (w *WalletService) decide(ctx context.Context, id string, status models.WithdrawalStatus, notes string) (*models.Withdrawal, int64, error) {
	wd, err := w.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if wd.Status != models.WithdrawalPending {
		return nil, 0, ErrInvalidState
	}

	now := time.Now().Unix()
	res, err := decideWithdrawalScript.Run(ctx, w.store.client,
		[]string{
			fmt.Sprintf(KeyWithdrawal, id),
			KeyPendingWds,
			KeyLeaderboard,
			fmt.Sprintf(KeyUser, wd.UserID),
		},
		string(status), notes, now, id, wd.UserID,
	).Text()
	if err != nil {
		return nil, 0, scriptError(err)
	}
	balance, _ := strconv.ParseInt(res, 10, 64)

	wd.Status = status
	wd.AdminNotes = notes
	wd.ProcessedAt = now
	w.store.publish(ctx, realtime.NewEvent(realtime.TableWithdrawals, realtime.ChangeUpdate, id, wd.UserID, wd))

	w.store.log.WithFields(logrus.Fields{
		"withdrawal_id": id,
		"user_id":       wd.UserID,
		"status":        status,
	}).Info("withdrawal decided")

	return wd, balance, nil
}

// ConvertDiamonds is convert_diamonds_to_coins: n diamonds become exactly
// n * CoinsPerDiamond coins.
func (w *WalletService) ConvertDiamonds(ctx context.Context, userID string, diamonds int64) (*models.ConvertResult, error) {
	if diamonds <= 0 {
		return nil, ErrInvalidAmount
	}

	vals, err := scriptStrings(convertDiamondsScript.Run(ctx, w.store.client,
		[]string{fmt.Sprintf(KeyUser, userID), KeyLeaderboard},
		diamonds, models.CoinsPerDiamond, userID,
	))
	if err != nil {
		return nil, err
	}
	balances, err := parseInts(vals)
	if err != nil {
		return nil, err
	}

	result := &models.ConvertResult{
		DiamondsSpent: diamonds,
		CoinsCredited: diamonds * models.CoinsPerDiamond,
		Coins:         balances[0],
		Diamonds:      balances[1],
	}

	w.store.record(ctx, userID, models.TransactionTypeConversion, models.CurrencyDiamonds, -diamonds, result.Diamonds, "", "Diamonds converted")
	w.store.record(ctx, userID, models.TransactionTypeConversion, models.CurrencyCoins, result.CoinsCredited, result.Coins, "",
		fmt.Sprintf("Converted %d diamonds", diamonds))
	w.store.publishUser(ctx, userID)

	return result, nil
}

func (w *WalletService) Packages() []models.DiamondPackage {
	return w.packages
}

func (w *WalletService) findPackage(id string) (models.DiamondPackage, bool) {
	for _, p := range w.packages {
		if p.ID == id {
			return p, true
		}
	}
	return models.DiamondPackage{}, false
}

// Checkout opens a pending diamond purchase and builds the gateway redirect.
// The return URLs carry only the purchase id; the gateway appends the
// signature once it has taken the payment.
func (w *WalletService) Checkout(ctx context.Context, userID, packageID string) (*models.CheckoutResponse, error) {
	pkg, ok := w.findPackage(packageID)
	if !ok {
		return nil, ErrNotFound
	}
	if _, err := w.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	purchase := &models.DiamondPurchase{
		ID:        models.NewID(),
		UserID:    userID,
		PackageID: pkg.ID,
		Diamonds:  pkg.Total(),
		Amount:    pkg.Price.StringFixed(2),
		Currency:  pkg.Currency,
		Status:    models.PurchasePending,
		CreatedAt: time.Now().Unix(),
	}

	pipe := w.store.client.TxPipeline()
	pipe.HSet(ctx, fmt.Sprintf(KeyPurchase, purchase.ID),
		"id", purchase.ID,
		"user_id", purchase.UserID,
		"package_id", purchase.PackageID,
		"diamonds", purchase.Diamonds,
		"amount", purchase.Amount,
		"currency", purchase.Currency,
		"status", string(purchase.Status),
		"created_at", purchase.CreatedAt,
		"completed_at", 0,
	)
	pipe.ZAdd(ctx, fmt.Sprintf(KeyUserPurchase, userID), redis.Z{Score: float64(purchase.CreatedAt), Member: purchase.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	w.store.publish(ctx, realtime.NewEvent(realtime.TablePurchases, realtime.ChangeInsert, purchase.ID, userID, purchase))

	return &models.CheckoutResponse{
		Purchase:    purchase,
		RedirectURL: w.redirectURL(purchase),
	}, nil
}

func (w *WalletService) returnURL(purchaseID string, status models.PurchaseStatus) string {
	path := "/payments/success"
	if status == models.PurchaseFailed {
		path = "/payments/failure"
	}
	q := url.Values{}
	q.Set("purchase_id", purchaseID)
	return w.cfg.PublicBaseURL + path + "?" + q.Encode()
}

func (w *WalletService) redirectURL(p *models.DiamondPurchase) string {
	q := url.Values{}
	q.Set("reference", p.ID)
	q.Set("amount", p.Amount)
	q.Set("currency", p.Currency)
	q.Set("success_url", w.returnURL(p.ID, models.PurchaseCompleted))
	q.Set("failure_url", w.returnURL(p.ID, models.PurchaseFailed))
	return w.cfg.PaymentGatewayURL + "?" + q.Encode()
}

// Sign is the gateway's return signature: HMAC-SHA256 of
// "purchaseID:status:amount:currency" under the secret shared with the
// gateway. The server never hands it to clients.
func (w *WalletService) Sign(purchaseID string, status models.PurchaseStatus, amount, currency string) string {
	mac := hmac.New(sha256.New, []byte(w.cfg.PaymentSecret))
	mac.Write([]byte(purchaseID + ":" + string(status) + ":" + amount + ":" + currency))
	return hex.EncodeToString(mac.Sum(nil))
}

// SettlePurchase handles the gateway return. The signature must cover the
// stored amount and currency. A repeated success return for an already
// completed purchase is answered with the stored purchase and credits
// nothing.
func (w *WalletService) SettlePurchase(ctx context.Context, purchaseID, signature string, status models.PurchaseStatus) (*models.DiamondPurchase, error) {
	purchase, err := w.GetPurchase(ctx, purchaseID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidSignature
	}
	if err != nil {
		return nil, err
	}
	expected := w.Sign(purchase.ID, status, purchase.Amount, purchase.Currency)
	if signature == "" || !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidSignature
	}

	now := time.Now().Unix()
	res, err := settlePurchaseScript.Run(ctx, w.store.client,
		[]string{fmt.Sprintf(KeyPurchase, purchaseID), fmt.Sprintf(KeyUser, purchase.UserID)},
		string(status), now,
	).Text()
	if err != nil {
		err = scriptError(err)
		if errors.Is(err, ErrInvalidState) && purchase.Status == status {
			return purchase, nil
		}
		return nil, err
	}

	purchase.Status = status
	purchase.CompletedAt = now
	w.store.publish(ctx, realtime.NewEvent(realtime.TablePurchases, realtime.ChangeUpdate, purchase.ID, purchase.UserID, purchase))

	if status == models.PurchaseCompleted {
		diamonds, _ := strconv.ParseInt(res, 10, 64)
		w.store.record(ctx, purchase.UserID, models.TransactionTypeDeposit, models.CurrencyDiamonds, purchase.Diamonds, diamonds, purchase.ID,
			fmt.Sprintf("Purchased %s (%s %s)", purchase.PackageID, purchase.Amount, purchase.Currency))
		w.store.publishUser(ctx, purchase.UserID)
		w.notes.notify(ctx, purchase.UserID, models.NotificationPurchase, "Diamonds added",
			fmt.Sprintf("%d diamonds were added to your wallet.", purchase.Diamonds))
	}

	w.store.log.WithFields(logrus.Fields{
		"purchase_id": purchaseID,
		"status":      status,
	}).Info("diamond purchase settled")

	return purchase, nil
}

func (w *WalletService) GetPurchase(ctx context.Context, id string) (*models.DiamondPurchase, error) {
	var p models.DiamondPurchase
	if err := w.store.loadHash(ctx, fmt.Sprintf(KeyPurchase, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (w *WalletService) UserPurchases(ctx context.Context, userID string) ([]*models.DiamondPurchase, error) {
	ids, err := w.store.client.ZRevRange(ctx, fmt.Sprintf(KeyUserPurchase, userID), 0, HistoryLimit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.DiamondPurchase, 0, len(ids))
	for _, id := range ids {
		p, err := w.GetPurchase(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
