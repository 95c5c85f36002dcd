package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"spin-earn-backend/internal/config"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/realtime"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Ledger receives a durable copy of every transaction and signup written to
// Redis.
type Ledger interface {
	RecordTransaction(ctx context.Context, tx *models.Transaction) error
	RecordSignup(ctx context.Context, user *models.User) error
}

type nopLedger struct{}

func (nopLedger) RecordTransaction(context.Context, *models.Transaction) error { return nil }
func (nopLedger) RecordSignup(context.Context, *models.User) error             { return nil }

type RedisService struct {
	client    *redis.Client
	publisher realtime.Publisher
	ledger    Ledger
	log       *logrus.Entry
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisServiceFromClient(client), nil
}

func NewRedisServiceFromClient(client *redis.Client) *RedisService {
	return &RedisService{
		client:    client,
		publisher: realtime.NopPublisher{},
		ledger:    nopLedger{},
		log:       logrus.WithField("component", "store"),
	}
}

func (s *RedisService) SetPublisher(p realtime.Publisher) { s.publisher = p }
func (s *RedisService) SetLedger(l Ledger)                { s.ledger = l }

func (s *RedisService) Client() *redis.Client { return s.client }

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) saveJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *RedisService) loadJSON(ctx context.Context, key string, v interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return json.Unmarshal(data, v)
}

// loadHash scans a hash into dst. A missing key is ErrNotFound.
func (s *RedisService) loadHash(ctx context.Context, key string, dst interface{}) error {
	cmd := s.client.HGetAll(ctx, key)
	vals, err := cmd.Result()
	if err != nil {
		return fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(vals) == 0 {
		return ErrNotFound
	}
	return cmd.Scan(dst)
}

func (s *RedisService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.loadHash(ctx, fmt.Sprintf(KeyUser, userID), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUsers loads several users in one pipeline, skipping missing ones.
func (s *RedisService) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, fmt.Sprintf(KeyUser, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	users := make([]*models.User, 0, len(ids))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		var u models.User
		if err := cmd.Scan(&u); err != nil {
			continue
		}
		users = append(users, &u)
	}
	return users, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := s.saveJSON(ctx, fmt.Sprintf(KeyTransaction, tx.ID), tx, TTLTransaction); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	userTxKey := fmt.Sprintf(KeyUserTxs, tx.UserID)
	if err := s.client.ZAdd(ctx, userTxKey, redis.Z{
		Score:  float64(tx.CreatedAt.Unix()),
		Member: tx.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to user transactions: %w", err)
	}
	s.client.ZRemRangeByRank(ctx, userTxKey, 0, -HistoryLimit-1)

	if err := s.ledger.RecordTransaction(ctx, tx); err != nil {
		s.log.WithError(err).WithField("tx_id", tx.ID).Error("archive transaction")
	}
	s.publish(ctx, realtime.NewEvent(realtime.TableTransactions, realtime.ChangeInsert, tx.ID, tx.UserID, tx))

	return nil
}

func (s *RedisService) GetUserTransactions(ctx context.Context, userID string, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = 50
	}

	txIDs, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyUserTxs, userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %w", err)
	}

	transactions := make([]*models.Transaction, 0, len(txIDs))
	for _, txID := range txIDs {
		var tx models.Transaction
		if err := s.loadJSON(ctx, fmt.Sprintf(KeyTransaction, txID), &tx); err != nil {
			continue
		}
		transactions = append(transactions, &tx)
	}

	return transactions, nil
}

// record writes a ledger entry for a balance change that already happened.
// The balance change is authoritative, so a failed write is only logged.
func (s *RedisService) record(ctx context.Context, userID string, typ models.TransactionType, currency models.Currency, amount, balanceAfter int64, ref, desc string) {
	tx := &models.Transaction{
		ID:           models.GenerateTransactionID(),
		UserID:       userID,
		Type:         typ,
		Currency:     currency,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Reference:    ref,
		Description:  desc,
		CreatedAt:    time.Now(),
	}
	if err := s.SaveTransaction(ctx, tx); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"type":    typ,
		}).Error("record transaction")
	}
}

func (s *RedisService) publish(ctx context.Context, event realtime.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("table", event.Table).Warn("publish change")
	}
}

// publishUser pushes the current user row after a balance or flag change.
func (s *RedisService) publishUser(ctx context.Context, userID string) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return
	}
	s.publish(ctx, realtime.NewEvent(realtime.TableUsers, realtime.ChangeUpdate, userID, userID, user))
}

func (s *RedisService) setUserField(ctx context.Context, userID, field string, value interface{}) error {
	err := setUserFieldScript.Run(ctx, s.client, []string{fmt.Sprintf(KeyUser, userID)}, field, value).Err()
	if err != nil {
		return scriptError(err)
	}
	s.publishUser(ctx, userID)
	return nil
}

// adjustBalance debits then credits one balance field atomically. An
// expectedNonce >= 0 also consumes the provably fair nonce.
func (s *RedisService) adjustBalance(ctx context.Context, userID string, currency models.Currency, debit, credit, expectedNonce int64) (int64, error) {
	nonce := ""
	if expectedNonce >= 0 {
		nonce = strconv.FormatInt(expectedNonce, 10)
	}
	res, err := adjustBalanceScript.Run(ctx, s.client,
		[]string{fmt.Sprintf(KeyUser, userID), KeyLeaderboard},
		string(currency), debit, credit, userID, nonce,
	).Text()
	if err != nil {
		return 0, scriptError(err)
	}
	return strconv.ParseInt(res, 10, 64)
}

func parseInts(vals []string) ([]int64, error) {
	out := make([]int64, len(vals))
	for i, v := range vals {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse script result %q: %w", v, err)
		}
		out[i] = n
	}
	return out, nil
}

// scriptStrings reads a multi-bulk script reply.
func scriptStrings(cmd *redis.Cmd) ([]string, error) {
	vals, err := cmd.StringSlice()
	if err != nil {
		return nil, scriptError(err)
	}
	return vals, nil
}
