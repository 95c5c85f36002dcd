package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/archive"
	"spin-earn-backend/internal/metrics"
	"spin-earn-backend/internal/models"
	"spin-earn-backend/internal/services"
)

type MaintenanceStats struct {
	Users       int
	LimitsFixed int
	SpinsPruned int64
	NotesPruned int64
	Draws       int
}

// Maintenance is the nightly sweep: history retention, spin limit sync,
// overdue lottery draws and a health check of the stores.
type Maintenance struct {
	Store     *services.RedisService
	Archive   *archive.Store
	Users     *services.UserService
	Spins     *services.SpinService
	Notes     *services.NotificationService
	Lottery   *services.LotteryService
	Retention time.Duration
	Now       func() time.Time
	Log       *logrus.Entry
}

func (m *Maintenance) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Maintenance) Run(ctx context.Context) error {
	_, err := m.Sweep(ctx)
	return err
}

// Sweep does one pass. Per-user failures are logged and skipped; a failed
// health check or user scan fails the run.
func (m *Maintenance) Sweep(ctx context.Context) (*MaintenanceStats, error) {
	now := m.now()
	cutoff := now.Add(-m.Retention)
	stats := &MaintenanceStats{}

	err := m.Users.EachUser(ctx, func(user *models.User) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Users++
		log := m.Log.WithField("user_id", user.ID)

		changed, err := m.Users.SyncSpinLimit(ctx, user)
		if err != nil {
			log.WithError(err).Warn("sync spin limit")
		} else if changed {
			stats.LimitsFixed++
		}

		if m.Retention > 0 {
			n, err := m.Spins.PruneHistory(ctx, user.ID, cutoff)
			if err != nil {
				log.WithError(err).Warn("prune spin history")
			}
			stats.SpinsPruned += n

			n, err = m.Notes.PruneRead(ctx, user.ID, cutoff)
			if err != nil {
				log.WithError(err).Warn("prune notifications")
			}
			stats.NotesPruned += n
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("scan users: %w", err)
	}

	results, err := m.Lottery.DrawDue(ctx, now)
	if err != nil {
		m.Log.WithError(err).Error("draw due lotteries")
	}
	stats.Draws = len(results)
	for _, res := range results {
		for _, w := range res.Winners {
			metrics.RecordCoins("lottery", w.Prize)
		}
	}
	if _, err := m.Lottery.EnsureOpen(ctx); err != nil {
		m.Log.WithError(err).Error("open next lottery")
	}

	m.Log.WithFields(logrus.Fields{
		"users":        stats.Users,
		"limits_fixed": stats.LimitsFixed,
		"spins_pruned": stats.SpinsPruned,
		"notes_pruned": stats.NotesPruned,
		"draws":        stats.Draws,
	}).Info("maintenance sweep done")

	return stats, m.healthCheck(ctx)
}

func (m *Maintenance) healthCheck(ctx context.Context) error {
	var errs []error
	if err := m.Store.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}
	if m.Archive != nil {
		if err := m.Archive.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}
