package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/catalog"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/realtime"
)

// NumberPicker draws count distinct numbers from 1..max.
type NumberPicker func(count, max int) ([]int, error)

// CryptoPicker draws with crypto/rand.
func CryptoPicker(count, max int) ([]int, error) {
	if count > max {
		return nil, fmt.Errorf("cannot pick %d numbers from 1-%d", count, max)
	}
	seen := make(map[int]bool, count)
	out := make([]int, 0, count)
	for len(out) < count {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
		if err != nil {
			return nil, err
		}
		v := int(n.Int64()) + 1
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

type LotteryService struct {
	store    *RedisService
	notes    *NotificationService
	defaults catalog.LotteryDefaults
	pick     NumberPicker
}

func NewLotteryService(store *RedisService, notes *NotificationService, defaults catalog.LotteryDefaults) *LotteryService {
	return &LotteryService{store: store, notes: notes, defaults: defaults, pick: CryptoPicker}
}

func (l *LotteryService) SetPicker(p NumberPicker) { l.pick = p }

// Create opens a game. Any pool rolled over from a drawn game without
// winners seeds the new prize pool.
func (l *LotteryService) Create(ctx context.Context, req *models.CreateLotteryRequest) (*models.LotteryGame, error) {
	if req.NumberCount <= 0 || req.MaxNumber < req.NumberCount || req.TicketPrice <= 0 {
		return nil, ErrInvalidNumbers
	}

	id := models.NewID()
	now := time.Now()
	drawAt := now.Add(time.Duration(req.DrawInHours) * time.Hour).Unix()

	if _, err := createLotteryScript.Run(ctx, l.store.client,
		[]string{fmt.Sprintf(KeyLottery, id), KeyLotteryCarry, KeyLotteries, KeyLotteryOpen},
		id, req.Title, req.NumberCount, req.MaxNumber, req.TicketPrice, drawAt, now.Unix(),
	).Result(); err != nil {
		return nil, scriptError(err)
	}

	game, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	l.store.publish(ctx, realtime.NewEvent(realtime.TableLotteries, realtime.ChangeInsert, id, "", game))
	l.store.log.WithFields(logrus.Fields{
		"lottery_id": id,
		"pool":       game.PrizePool,
	}).Info("lottery opened")
	return game, nil
}

// EnsureOpen creates a game from the catalog defaults when none is open.
func (l *LotteryService) EnsureOpen(ctx context.Context) (*models.LotteryGame, error) {
	open, err := l.store.client.ZCard(ctx, KeyLotteryOpen).Result()
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, nil
	}
	hours := int(l.defaults.DrawEvery / time.Hour)
	if hours < 1 {
		hours = 1
	}
	return l.Create(ctx, &models.CreateLotteryRequest{
		Title:       l.defaults.Title,
		NumberCount: l.defaults.NumberCount,
		MaxNumber:   l.defaults.MaxNumber,
		TicketPrice: l.defaults.TicketPrice,
		DrawInHours: hours,
	})
}

func (l *LotteryService) Get(ctx context.Context, id string) (*models.LotteryGame, error) {
	var game models.LotteryGame
	if err := l.store.loadHash(ctx, fmt.Sprintf(KeyLottery, id), &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (l *LotteryService) loadGames(ctx context.Context, ids []string) []*models.LotteryGame {
	out := make([]*models.LotteryGame, 0, len(ids))
	for _, id := range ids {
		game, err := l.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, game)
	}
	return out
}

func (l *LotteryService) Open(ctx context.Context) ([]*models.LotteryGame, error) {
	ids, err := l.store.client.ZRange(ctx, KeyLotteryOpen, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return l.loadGames(ctx, ids), nil
}

func (l *LotteryService) Recent(ctx context.Context, limit int64) ([]*models.LotteryGame, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = 20
	}
	ids, err := l.store.client.ZRevRange(ctx, KeyLotteries, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	return l.loadGames(ctx, ids), nil
}

// BuyTicket is buy_lottery_ticket.
func (l *LotteryService) BuyTicket(ctx context.Context, userID, lotteryID string, numbers []int) (*models.LotteryTicket, error) {
	game, err := l.Get(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	if game.Status != models.LotteryOpen {
		return nil, ErrLotteryClosed
	}
	picked, err := game.ValidateNumbers(numbers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNumbers, err)
	}

	ticket := &models.LotteryTicket{
		ID:          models.NewID(),
		LotteryID:   lotteryID,
		UserID:      userID,
		Numbers:     models.JoinNumbers(picked),
		PurchasedAt: time.Now().Unix(),
	}

	vals, err := scriptStrings(buyTicketScript.Run(ctx, l.store.client,
		[]string{
			fmt.Sprintf(KeyUser, userID),
			fmt.Sprintf(KeyLottery, lotteryID),
			fmt.Sprintf(KeyLotteryTickets, lotteryID),
			fmt.Sprintf(KeyTicket, ticket.ID),
			fmt.Sprintf(KeyUserTickets, userID),
			KeyLeaderboard,
		},
		userID, ticket.ID, ticket.Numbers, ticket.PurchasedAt, lotteryID,
	))
	if err != nil {
		return nil, err
	}
	nums, err := parseInts(vals)
	if err != nil {
		return nil, err
	}

	l.store.record(ctx, userID, models.TransactionTypeLottery, models.CurrencyCoins, -game.TicketPrice, nums[0], ticket.ID,
		fmt.Sprintf("Lottery ticket %s", ticket.Numbers))
	l.store.publish(ctx, realtime.NewEvent(realtime.TableTickets, realtime.ChangeInsert, ticket.ID, userID, ticket))
	game.PrizePool = nums[1]
	game.TicketCount++
	l.store.publish(ctx, realtime.NewEvent(realtime.TableLotteries, realtime.ChangeUpdate, lotteryID, "", game))
	l.store.publishUser(ctx, userID)

	return ticket, nil
}

func (l *LotteryService) getTicket(ctx context.Context, id string) (*models.LotteryTicket, error) {
	var t models.LotteryTicket
	if err := l.store.loadHash(ctx, fmt.Sprintf(KeyTicket, id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (l *LotteryService) UserTickets(ctx context.Context, userID string) ([]*models.LotteryTicket, error) {
	ids, err := l.store.client.ZRevRange(ctx, fmt.Sprintf(KeyUserTickets, userID), 0, HistoryLimit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.LotteryTicket, 0, len(ids))
	for _, id := range ids {
		t, err := l.getTicket(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Draw is conduct_lottery_draw. The game is locked first so no ticket can
// be bought while winners are computed; the settle script then credits the
// winners and closes the game. A game left in drawing by an interrupted draw is
// resumed. force allows drawing before draw_at.
func (l *LotteryService) Draw(ctx context.Context, lotteryID string, force bool) (*models.DrawResult, error) {
	return l.draw(ctx, lotteryID, force, time.Now())
}

func (l *LotteryService) draw(ctx context.Context, lotteryID string, force bool, now time.Time) (*models.DrawResult, error) {
	forceArg := "0"
	if force {
		forceArg = "1"
	}
	err := beginDrawScript.Run(ctx, l.store.client,
		[]string{fmt.Sprintf(KeyLottery, lotteryID), KeyLotteryOpen, KeyLotteryDrawing},
		now.Unix(), forceArg, lotteryID,
	).Err()
	if err != nil {
		err = scriptError(err)
		if !errors.Is(err, ErrInvalidState) {
			return nil, err
		}
		game, gerr := l.Get(ctx, lotteryID)
		if gerr != nil || game.Status != models.LotteryDrawing {
			return nil, err
		}
	}

	game, err := l.Get(ctx, lotteryID)
	if err != nil {
		return nil, err
	}

	winning, err := l.pick(game.NumberCount, game.MaxNumber)
	if err != nil {
		return nil, err
	}
	winningStr := models.JoinNumbers(winning)

	ticketIDs, err := l.store.client.LRange(ctx, fmt.Sprintf(KeyLotteryTickets, lotteryID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var winners []*models.LotteryTicket
	for _, id := range ticketIDs {
		t, err := l.getTicket(ctx, id)
		if err != nil {
			continue
		}
		if t.Numbers == winningStr {
			winners = append(winners, t)
		}
	}

	result := &models.DrawResult{
		LotteryID:      lotteryID,
		WinningNumbers: winning,
		Winners:        []models.LotteryWinner{},
	}
	if len(winners) > 0 {
		result.PrizePerWinner = game.PrizePool / int64(len(winners))
		result.RolledOver = game.PrizePool - result.PrizePerWinner*int64(len(winners))
	} else {
		result.RolledOver = game.PrizePool
	}

	keys := []string{
		fmt.Sprintf(KeyLottery, lotteryID),
		KeyLeaderboard,
		KeyLotteryCarry,
		fmt.Sprintf(KeyLotteryWinners, lotteryID),
		KeyLotteryDrawing,
	}
	args := []interface{}{winningStr, result.PrizePerWinner, time.Now().Unix(), result.RolledOver, len(winners), lotteryID}
	for _, t := range winners {
		keys = append(keys, fmt.Sprintf(KeyUser, t.UserID))
		args = append(args, t.UserID, t.ID)
	}

	vals, err := scriptStrings(settleDrawScript.Run(ctx, l.store.client, keys, args...))
	if err != nil {
		return nil, err
	}

	for i, t := range winners {
		result.Winners = append(result.Winners, models.LotteryWinner{
			LotteryID: lotteryID,
			TicketID:  t.ID,
			UserID:    t.UserID,
			Prize:     result.PrizePerWinner,
		})
		balance, _ := strconv.ParseInt(vals[i], 10, 64)
		l.store.record(ctx, t.UserID, models.TransactionTypeLottery, models.CurrencyCoins, result.PrizePerWinner, balance, lotteryID,
			fmt.Sprintf("Lottery win %s", winningStr))
		l.store.publishUser(ctx, t.UserID)
		l.notes.notify(ctx, t.UserID, models.NotificationLottery, "You won the lottery!",
			fmt.Sprintf("Your ticket %s matched. %d coins were added to your balance.", winningStr, result.PrizePerWinner))
	}

	if drawn, err := l.Get(ctx, lotteryID); err == nil {
		l.store.publish(ctx, realtime.NewEvent(realtime.TableLotteries, realtime.ChangeUpdate, lotteryID, "", drawn))
	}

	l.store.log.WithFields(logrus.Fields{
		"lottery_id": lotteryID,
		"winners":    len(winners),
		"rollover":   result.RolledOver,
	}).Info("lottery drawn")

	return result, nil
}

func (l *LotteryService) Winners(ctx context.Context, lotteryID string) ([]models.LotteryWinner, error) {
	game, err := l.Get(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	byTicket, err := l.store.client.HGetAll(ctx, fmt.Sprintf(KeyLotteryWinners, lotteryID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.LotteryWinner, 0, len(byTicket))
	for ticketID, userID := range byTicket {
		out = append(out, models.LotteryWinner{
			LotteryID: lotteryID,
			TicketID:  ticketID,
			UserID:    userID,
			Prize:     game.PrizePerWinner,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out, nil
}

// DrawDue draws every open game whose draw time has passed and finishes any
// game an interrupted draw left in drawing.
func (l *LotteryService) DrawDue(ctx context.Context, now time.Time) ([]*models.DrawResult, error) {
	ids, err := l.store.client.SMembers(ctx, KeyLotteryDrawing).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	due, err := l.store.client.ZRangeByScore(ctx, KeyLotteryOpen, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	ids = append(ids, due...)

	var results []*models.DrawResult
	for _, id := range ids {
		res, err := l.draw(ctx, id, false, now)
		if err != nil {
			l.store.log.WithError(err).WithField("lottery_id", id).Error("scheduled draw")
			continue
		}
		results = append(results, res)
	}
	return results, nil
}
