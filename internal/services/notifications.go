package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/realtime"
)

type NotificationService struct {
	store *RedisService
}

func NewNotificationService(store *RedisService) *NotificationService {
	return &NotificationService{store: store}
}

func (n *NotificationService) Notify(ctx context.Context, userID string, kind models.NotificationKind, title, body string) (*models.Notification, error) {
	note := &models.Notification{
		ID:        models.NewID(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().Unix(),
	}

	if err := n.store.saveJSON(ctx, fmt.Sprintf(KeyNotification, note.ID), note, 0); err != nil {
		return nil, err
	}

	pipe := n.store.client.TxPipeline()
	pipe.ZAdd(ctx, fmt.Sprintf(KeyUserNotifications, userID), redis.Z{Score: float64(note.CreatedAt), Member: note.ID})
	pipe.SAdd(ctx, fmt.Sprintf(KeyUserUnread, userID), note.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("index notification: %w", err)
	}

	n.store.publish(ctx, realtime.NewEvent(realtime.TableNotifications, realtime.ChangeInsert, note.ID, userID, note))
	return note, nil
}

// notify is Notify for callers whose main operation already succeeded.
func (n *NotificationService) notify(ctx context.Context, userID string, kind models.NotificationKind, title, body string) {
	if _, err := n.Notify(ctx, userID, kind, title, body); err != nil {
		n.store.log.WithError(err).WithField("user_id", userID).Warn("send notification")
	}
}

func (n *NotificationService) List(ctx context.Context, userID string, limit int64) ([]*models.Notification, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = 50
	}

	ids, err := n.store.client.ZRevRange(ctx, fmt.Sprintf(KeyUserNotifications, userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := n.store.client.SMembers(ctx, fmt.Sprintf(KeyUserUnread, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	isUnread := make(map[string]bool, len(unread))
	for _, id := range unread {
		isUnread[id] = true
	}

	out := make([]*models.Notification, 0, len(ids))
	for _, id := range ids {
		var note models.Notification
		if err := n.store.loadJSON(ctx, fmt.Sprintf(KeyNotification, id), &note); err != nil {
			continue
		}
		note.Read = !isUnread[id]
		out = append(out, &note)
	}
	return out, nil
}

func (n *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return n.store.client.SCard(ctx, fmt.Sprintf(KeyUserUnread, userID)).Result()
}

// MarkRead clears the given notifications, or all of them when ids is empty.
func (n *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	key := fmt.Sprintf(KeyUserUnread, userID)
	if len(ids) == 0 {
		count, err := n.store.client.SCard(ctx, key).Result()
		if err != nil {
			return 0, err
		}
		return count, n.store.client.Del(ctx, key).Err()
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return n.store.client.SRem(ctx, key, members...).Result()
}

// PruneRead deletes read notifications created before cutoff and returns how
// many were removed.
func (n *NotificationService) PruneRead(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	key := fmt.Sprintf(KeyUserNotifications, userID)
	ids, err := n.store.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", cutoff.Unix()),
	}).Result()
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, id := range ids {
		unread, err := n.store.client.SIsMember(ctx, fmt.Sprintf(KeyUserUnread, userID), id).Result()
		if err != nil {
			return removed, err
		}
		if unread {
			continue
		}
		pipe := n.store.client.TxPipeline()
		pipe.Del(ctx, fmt.Sprintf(KeyNotification, id))
		pipe.ZRem(ctx, key, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (n *NotificationService) FileReport(ctx context.Context, reporterID string, req *models.ReportRequest) (*models.Report, error) {
	if req.TargetID == reporterID {
		return nil, ErrSelfAction
	}
	exists, err := n.store.client.Exists(ctx, fmt.Sprintf(KeyUser, req.TargetID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	report := &models.Report{
		ID:         models.NewID(),
		ReporterID: reporterID,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
		Status:     models.ReportOpen,
		CreatedAt:  time.Now().Unix(),
	}
	if err := n.store.saveJSON(ctx, fmt.Sprintf(KeyReport, report.ID), report, 0); err != nil {
		return nil, err
	}
	if err := n.store.client.ZAdd(ctx, KeyReportsOpen, redis.Z{Score: float64(report.CreatedAt), Member: report.ID}).Err(); err != nil {
		return nil, fmt.Errorf("index report: %w", err)
	}
	return report, nil
}

func (n *NotificationService) OpenReports(ctx context.Context) ([]*models.Report, error) {
	ids, err := n.store.client.ZRange(ctx, KeyReportsOpen, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.Report, 0, len(ids))
	for _, id := range ids {
		var r models.Report
		if err := n.store.loadJSON(ctx, fmt.Sprintf(KeyReport, id), &r); err != nil {
			continue
		}
		out = append(out, &r)
	}
	return out, nil
}

func (n *NotificationService) ResolveReport(ctx context.Context, reportID string) (*models.Report, error) {
	var r models.Report
	if err := n.store.loadJSON(ctx, fmt.Sprintf(KeyReport, reportID), &r); err != nil {
		return nil, err
	}

	// ZREM is the guard: only one resolver sees the report leave the set.
	removed, err := n.store.client.ZRem(ctx, KeyReportsOpen, reportID).Result()
	if err != nil {
		return nil, err
	}
	if removed == 0 {
		return nil, ErrInvalidState
	}

	r.Status = models.ReportResolved
	r.ResolvedAt = time.Now().Unix()
	if err := n.store.saveJSON(ctx, fmt.Sprintf(KeyReport, reportID), &r, 0); err != nil {
		return nil, err
	}
	return &r, nil
}
