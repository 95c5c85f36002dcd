package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/models"
)

type AdminService struct {
	store *RedisService
	users *UserService
	notes *NotificationService
}

func NewAdminService(store *RedisService, users *UserService, notes *NotificationService) *AdminService {
	return &AdminService{store: store, users: users, notes: notes}
}

// Broadcast is send_message_to_all_users: one notification per user plus an
// admin message record.
func (a *AdminService) Broadcast(ctx context.Context, adminID string, req *models.BroadcastRequest) (*models.AdminMessage, error) {
	msg := &models.AdminMessage{
		ID:        models.NewID(),
		AdminID:   adminID,
		Title:     req.Title,
		Body:      req.Body,
		CreatedAt: time.Now().Unix(),
	}

	err := a.users.EachUser(ctx, func(u *models.User) error {
		if _, err := a.notes.Notify(ctx, u.ID, models.NotificationAdmin, req.Title, req.Body); err != nil {
			return err
		}
		msg.Recipients++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("broadcast after %d recipients: %w", msg.Recipients, err)
	}

	if err := a.store.saveJSON(ctx, fmt.Sprintf(KeyAdminMessage, msg.ID), msg, 0); err != nil {
		return nil, err
	}
	if err := a.store.client.ZAdd(ctx, KeyAdminMessages, redis.Z{Score: float64(msg.CreatedAt), Member: msg.ID}).Err(); err != nil {
		return nil, err
	}

	a.store.log.WithFields(logrus.Fields{
		"admin_id":   adminID,
		"recipients": msg.Recipients,
	}).Info("admin broadcast sent")
	return msg, nil
}

func (a *AdminService) Messages(ctx context.Context, limit int64) ([]*models.AdminMessage, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = 20
	}
	ids, err := a.store.client.ZRevRange(ctx, KeyAdminMessages, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.AdminMessage, 0, len(ids))
	for _, id := range ids {
		var m models.AdminMessage
		if err := a.store.loadJSON(ctx, fmt.Sprintf(KeyAdminMessage, id), &m); err != nil {
			continue
		}
		out = append(out, &m)
	}
	return out, nil
}

func (a *AdminService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	day := models.DayKey(time.Now())
	pipe := a.store.client.Pipeline()
	users := pipe.SCard(ctx, KeyUsers)
	pending := pipe.ZRange(ctx, KeyPendingWds, 0, -1)
	reports := pipe.ZCard(ctx, KeyReportsOpen)
	lotteries := pipe.ZCard(ctx, KeyLotteryOpen)
	spins := pipe.Get(ctx, fmt.Sprintf(KeySpinsDayAll, day))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}

	stats := &models.DashboardStats{
		Users:              users.Val(),
		PendingWithdrawals: int64(len(pending.Val())),
		OpenReports:        reports.Val(),
		OpenLotteries:      lotteries.Val(),
	}
	stats.SpinsToday, _ = spins.Int64()

	for _, id := range pending.Val() {
		amount, err := a.store.client.HGet(ctx, fmt.Sprintf(KeyWithdrawal, id), "amount").Int64()
		if err == nil {
			stats.PendingAmount += amount
		}
	}

	err := a.users.EachUser(ctx, func(u *models.User) error {
		if u.Banned {
			stats.BannedUsers++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
