package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"spin-earn-backend/internal/models"
)

type TaskService struct {
	store *RedisService
	tasks []models.Task
}

func NewTaskService(store *RedisService, tasks []models.Task) *TaskService {
	return &TaskService{store: store, tasks: tasks}
}

func (t *TaskService) find(id string) (models.Task, bool) {
	for _, task := range t.tasks {
		if task.ID == id {
			return task, true
		}
	}
	return models.Task{}, false
}

func guardKey(userID string, task models.Task, now time.Time) (string, time.Duration) {
	if task.Daily {
		return fmt.Sprintf(KeyTaskDoneDay, userID, task.ID, models.DayKey(now)), TTLTaskDay
	}
	return fmt.Sprintf(KeyTaskDone, userID, task.ID), 0
}

// requirement returns the user field and threshold a task is gated on.
func requirement(task models.Task) (string, int64) {
	if task.Kind == models.TaskSpinMilestone {
		return "total_spins", task.Target
	}
	return "", 0
}

func (t *TaskService) List(ctx context.Context, userID string) ([]models.TaskView, error) {
	user, err := t.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tier := user.Tier()
	now := time.Now()

	pipe := t.store.client.Pipeline()
	done := make([]*redis.IntCmd, len(t.tasks))
	for i, task := range t.tasks {
		key, _ := guardKey(userID, task, now)
		done[i] = pipe.Exists(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load task state: %w", err)
	}

	views := make([]models.TaskView, len(t.tasks))
	for i, task := range t.tasks {
		view := models.TaskView{
			Task:      task,
			Completed: done[i].Val() > 0,
			Reward:    tier.Apply(task.BaseReward),
		}
		if task.Kind == models.TaskSpinMilestone {
			view.Progress = user.TotalSpins
			if view.Progress > task.Target {
				view.Progress = task.Target
			}
		}
		views[i] = view
	}
	return views, nil
}

// Complete is complete_task: it checks the requirement and credits
// base reward times the tier multiplier, once (or once per UTC day).
func (t *TaskService) Complete(ctx context.Context, userID, taskID string) (*models.TaskCompletion, error) {
	task, ok := t.find(taskID)
	if !ok {
		return nil, ErrNotFound
	}

	for attempt := 0; attempt < maxStaleRetries; attempt++ {
		user, err := t.store.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		tier := user.Tier()
		reward := tier.Apply(task.BaseReward)
		key, ttl := guardKey(userID, task, time.Now())
		field, min := requirement(task)

		res, err := claimRewardScript.Run(ctx, t.store.client,
			[]string{fmt.Sprintf(KeyUser, userID), key, KeyLeaderboard},
			reward, int64(ttl.Seconds()), userID, tier.MinCoins, tier.MaxCoins, field, min,
		).Text()
		if err != nil {
			err = scriptError(err)
			if errors.Is(err, errStale) {
				continue
			}
			return nil, err
		}
		balance, err := strconv.ParseInt(res, 10, 64)
		if err != nil {
			return nil, err
		}

		t.store.record(ctx, userID, models.TransactionTypeTask, models.CurrencyCoins, reward, balance, task.ID,
			fmt.Sprintf("Task completed: %s", task.Title))
		t.store.publishUser(ctx, userID)

		return &models.TaskCompletion{
			TaskID:       task.ID,
			UserID:       userID,
			BaseReward:   task.BaseReward,
			Multiplier:   tier.Multiplier,
			Reward:       reward,
			BalanceAfter: balance,
		}, nil
	}
	return nil, fmt.Errorf("complete task: %w", ErrInvalidState)
}
