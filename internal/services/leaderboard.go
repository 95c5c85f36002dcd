package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"spin-earn-backend/internal/models"
)

type LeaderboardService struct {
	store *RedisService
}

func NewLeaderboardService(store *RedisService) *LeaderboardService {
	return &LeaderboardService{store: store}
}

func (l *LeaderboardService) Top(ctx context.Context, n int64) ([]models.LeaderboardEntry, error) {
	if n <= 0 || n > HistoryLimit {
		n = 10
	}
	entries, err := l.store.client.ZRevRangeWithScores(ctx, KeyLeaderboard, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i], _ = e.Member.(string)
	}
	users, err := l.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	out := make([]models.LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		coins := int64(e.Score)
		out = append(out, models.LeaderboardEntry{
			Rank:     int64(i + 1),
			UserID:   ids[i],
			Username: names[ids[i]],
			Coins:    coins,
			Tier:     models.ResolveTier(coins).Name,
		})
	}
	return out, nil
}

// Rank is the 1-based position of a user, or 0 when unranked.
func (l *LeaderboardService) Rank(ctx context.Context, userID string) (int64, error) {
	rank, err := l.store.client.ZRevRank(ctx, KeyLeaderboard, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rank + 1, nil
}
