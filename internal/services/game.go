package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/realtime"
)

const (
	// diceReturn is the percentage of the fair payout returned to players.
	diceReturn         = 99
	coinFlipMultiplier = 1.98
)

// GameEngine runs the instant coin mini-games. Each round settles in a
// single balance script: the bet is debited, the payout credited and the
// fairness nonce consumed together.
type GameEngine struct {
	store *RedisService
	fair  *FairService
}

func NewGameEngine(store *RedisService, fair *FairService) *GameEngine {
	return &GameEngine{store: store, fair: fair}
}

// diceMultiplier pays the inverse of the win chance less the house edge.
func diceMultiplier(target int, over bool) float64 {
	chance := float64(target)
	if over {
		chance = 100 - float64(target)
	}
	return math.Floor(diceReturn*10000/chance) / 10000
}

func (ge *GameEngine) PlayDice(ctx context.Context, userID string, req *models.DicePlayRequest) (*models.GameSession, error) {
	return ge.play(ctx, userID, models.GameTypeDice, req.Amount, func(hash string) (bool, float64, map[string]interface{}) {
		roll := diceRoll(hash)
		win := roll < float64(req.Target)
		if req.Over {
			win = roll > float64(req.Target)
		}
		return win, diceMultiplier(req.Target, req.Over), map[string]interface{}{
			"roll":   roll,
			"target": req.Target,
			"over":   req.Over,
		}
	})
}

func (ge *GameEngine) FlipCoin(ctx context.Context, userID string, req *models.CoinFlipRequest) (*models.GameSession, error) {
	return ge.play(ctx, userID, models.GameTypeCoinFlip, req.Amount, func(hash string) (bool, float64, map[string]interface{}) {
		side := coinSide(hash)
		return side == req.Side, coinFlipMultiplier, map[string]interface{}{
			"result": side,
			"pick":   req.Side,
		}
	})
}

type outcomeFunc func(hash string) (win bool, multiplier float64, outcome map[string]interface{})

func (ge *GameEngine) play(ctx context.Context, userID string, game models.GameType, amount int64, decide outcomeFunc) (*models.GameSession, error) {
	if err := models.ValidateBet(amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	allowed, err := ge.store.CheckRateLimit(ctx, userID, "bet", DefaultRateLimitBets, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	for attempt := 0; attempt < maxStaleRetries; attempt++ {
		session, err := ge.settle(ctx, userID, game, amount, decide)
		if errors.Is(err, errStale) {
			continue
		}
		return session, err
	}
	return nil, fmt.Errorf("play %s: %w", game, ErrInvalidState)
}

func (ge *GameEngine) settle(ctx context.Context, userID string, game models.GameType, amount int64, decide outcomeFunc) (*models.GameSession, error) {
	user, err := ge.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Banned {
		return nil, ErrUserBanned
	}
	if user.Coins < amount {
		return nil, ErrInsufficientBalance
	}
	seed, err := ge.fair.ServerSeed(ctx)
	if err != nil {
		return nil, err
	}

	hash := roundHash(seed, game, user.ClientSeed, user.Nonce)
	win, multiplier, outcome := decide(hash)
	var payout int64
	if win {
		payout = models.CalculatePayout(amount, multiplier)
	}

	balance, err := ge.store.adjustBalance(ctx, userID, models.CurrencyCoins, amount, payout, user.Nonce)
	if err != nil {
		return nil, err
	}

	session := &models.GameSession{
		ID:         models.NewID(),
		UserID:     userID,
		GameType:   game,
		BetAmount:  amount,
		Multiplier: multiplier,
		Payout:     payout,
		Win:        win,
		ClientSeed: user.ClientSeed,
		ServerHash: hashSeed(seed),
		Nonce:      user.Nonce,
		Hash:       hash,
		Outcome:    outcome,
		Balance:    balance,
		CreatedAt:  time.Now().Unix(),
	}

	if err := ge.saveSession(ctx, session); err != nil {
		ge.store.log.WithError(err).WithField("game_id", session.ID).Error("save game session")
	}
	ge.recordTransactions(ctx, session)
	ge.store.publish(ctx, realtime.NewEvent(realtime.TableGames, realtime.ChangeInsert, session.ID, userID, session))
	ge.store.publishUser(ctx, userID)

	ge.store.log.WithFields(logrus.Fields{
		"user_id": userID,
		"game":    game,
		"bet":     amount,
		"payout":  payout,
	}).Debug("round settled")

	return session, nil
}

func (ge *GameEngine) saveSession(ctx context.Context, session *models.GameSession) error {
	if err := ge.store.saveJSON(ctx, fmt.Sprintf(KeyGameSession, session.ID), session, TTLGameSession); err != nil {
		return fmt.Errorf("failed to save game session: %w", err)
	}

	key := fmt.Sprintf(KeyUserGames, session.UserID)
	if err := ge.store.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(session.CreatedAt),
		Member: session.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to game history: %w", err)
	}
	ge.store.client.ZRemRangeByRank(ctx, key, 0, -HistoryLimit-1)
	ge.store.client.Expire(ctx, key, TTLGameSession)
	return nil
}

func (ge *GameEngine) recordTransactions(ctx context.Context, session *models.GameSession) {
	before := session.Balance - session.Payout
	ge.store.record(ctx, session.UserID, models.TransactionTypeBet, models.CurrencyCoins, -session.BetAmount, before, session.ID,
		fmt.Sprintf("Placed bet on %s", session.GameType))
	if session.Win {
		ge.store.record(ctx, session.UserID, models.TransactionTypeWin, models.CurrencyCoins, session.Payout, session.Balance, session.ID,
			fmt.Sprintf("Won %d on %s (%.2fx)", session.Payout, session.GameType, session.Multiplier))
	}
}

func (ge *GameEngine) GetGameSession(ctx context.Context, gameID string) (*models.GameSession, error) {
	var session models.GameSession
	if err := ge.store.loadJSON(ctx, fmt.Sprintf(KeyGameSession, gameID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (ge *GameEngine) GetGameHistory(ctx context.Context, userID string, limit int64) ([]*models.GameSession, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = 50
	}

	ids, err := ge.store.client.ZRevRange(ctx, fmt.Sprintf(KeyUserGames, userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get game IDs: %w", err)
	}

	games := make([]*models.GameSession, 0, len(ids))
	for _, id := range ids {
		game, err := ge.GetGameSession(ctx, id)
		if err != nil {
			continue
		}
		games = append(games, game)
	}
	return games, nil
}
