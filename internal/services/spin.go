package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/realtime"
)

// maxStaleRetries bounds how often an operation re-reads the user when its
// tier or nonce moved between the read and the script.
const maxStaleRetries = 3

type SpinService struct {
	store *RedisService
	fair  *FairService
	wheel []models.WheelSegment
}

func NewSpinService(store *RedisService, fair *FairService, wheel []models.WheelSegment) *SpinService {
	return &SpinService{store: store, fair: fair, wheel: wheel}
}

func (s *SpinService) Wheel() []models.WheelSegment {
	return s.wheel
}

// Spin is record_spin. The outcome is drawn server side and the same
// requestID always returns the first result without crediting again.
func (s *SpinService) Spin(ctx context.Context, userID, requestID string) (*models.Spin, error) {
	for attempt := 0; attempt < maxStaleRetries; attempt++ {
		spin, err := s.trySpin(ctx, userID, requestID)
		if errors.Is(err, errStale) {
			continue
		}
		return spin, err
	}
	return nil, fmt.Errorf("spin: %w", ErrInvalidState)
}

func (s *SpinService) trySpin(ctx context.Context, userID, requestID string) (*models.Spin, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seed, err := s.fair.ServerSeed(ctx)
	if err != nil {
		return nil, err
	}

	tier := user.Tier()
	hash := roundHash(seed, models.GameTypeSpin, user.ClientSeed, user.Nonce)
	index := selectSegment(hash, s.wheel)
	segment := s.wheel[index]
	now := time.Now()

	spin := &models.Spin{
		ID:         models.NewID(),
		UserID:     userID,
		RequestID:  requestID,
		Segment:    index,
		Label:      segment.Label,
		BaseReward: segment.Reward,
		Multiplier: tier.Multiplier,
		Reward:     tier.Apply(segment.Reward),
		Tier:       tier.Name,
		ClientSeed: user.ClientSeed,
		ServerHash: hashSeed(seed),
		Nonce:      user.Nonce,
		CreatedAt:  now,
	}
	data, err := json.Marshal(spin)
	if err != nil {
		return nil, err
	}

	unlimited := "0"
	if tier.Unlimited {
		unlimited = "1"
	}
	day := models.DayKey(now)

	vals, err := scriptStrings(recordSpinScript.Run(ctx, s.store.client,
		[]string{
			fmt.Sprintf(KeyUser, userID),
			fmt.Sprintf(KeySpinDay, userID, day),
			fmt.Sprintf(KeySpinRequest, userID, requestID),
			fmt.Sprintf(KeySpin, spin.ID),
			fmt.Sprintf(KeyUserSpins, userID),
			KeyLeaderboard,
			fmt.Sprintf(KeySpinsDayAll, day),
		},
		tier.MinCoins, tier.MaxCoins, unlimited, spin.Reward, data, user.Nonce, now.Unix(),
		spin.ID, int64(TTLSpinDay.Seconds()), int64(TTLSpinRequest.Seconds()), int64(TTLSpin.Seconds()), userID,
	))
	if err != nil {
		return nil, err
	}

	balance, _ := strconv.ParseInt(vals[2], 10, 64)
	today, _ := strconv.ParseInt(vals[3], 10, 64)

	if vals[0] == "DUPLICATE" {
		var original models.Spin
		if err := s.store.loadJSON(ctx, fmt.Sprintf(KeySpin, vals[1]), &original); err != nil {
			return nil, err
		}
		original.BalanceAfter = balance
		original.SpinsToday = today
		return &original, nil
	}

	spin.BalanceAfter = balance
	spin.SpinsToday = today

	if spin.Reward > 0 {
		s.store.record(ctx, userID, models.TransactionTypeSpin, models.CurrencyCoins, spin.Reward, balance, spin.ID,
			fmt.Sprintf("Wheel spin: %s (x%d)", segment.Label, tier.Multiplier))
	}
	s.store.publish(ctx, realtime.NewEvent(realtime.TableSpins, realtime.ChangeInsert, spin.ID, userID, spin))
	s.store.publishUser(ctx, userID)

	s.store.log.WithFields(logrus.Fields{
		"user_id": userID,
		"segment": index,
		"reward":  spin.Reward,
	}).Debug("spin recorded")

	return spin, nil
}

func (s *SpinService) Status(ctx context.Context, userID string) (*models.SpinStatus, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	today, err := s.store.client.Get(ctx, fmt.Sprintf(KeySpinDay, userID, models.DayKey(time.Now()))).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	hash, err := s.fair.ServerHash(ctx)
	if err != nil {
		return nil, err
	}

	tier := user.Tier()
	return &models.SpinStatus{
		Tier:       tier,
		SpinsToday: today,
		SpinLimit:  user.DailySpinLimit,
		SpinsLeft:  spinsLeft(tier, user.DailySpinLimit, today),
		Unlimited:  tier.Unlimited,
		Wheel:      s.wheel,
		ServerHash: hash,
	}, nil
}

func (s *SpinService) History(ctx context.Context, userID string, limit int64) ([]*models.Spin, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = 50
	}
	ids, err := s.store.client.ZRevRange(ctx, fmt.Sprintf(KeyUserSpins, userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get spin IDs: %w", err)
	}

	spins := make([]*models.Spin, 0, len(ids))
	for _, id := range ids {
		var spin models.Spin
		if err := s.store.loadJSON(ctx, fmt.Sprintf(KeySpin, id), &spin); err != nil {
			continue
		}
		spins = append(spins, &spin)
	}
	return spins, nil
}

// PruneHistory drops spins recorded before cutoff.
func (s *SpinService) PruneHistory(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	key := fmt.Sprintf(KeyUserSpins, userID)
	max := fmt.Sprintf("(%d", cutoff.Unix())
	ids, err := s.store.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.store.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, fmt.Sprintf(KeySpin, id))
	}
	removed := pipe.ZRemRangeByScore(ctx, key, "-inf", max)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return removed.Val(), nil
}
