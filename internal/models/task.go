package models

type TaskKind string

const (
	TaskSpinMilestone TaskKind = "spin_milestone"
	TaskVideo         TaskKind = "video"
	TaskDailyCheckin  TaskKind = "daily_checkin"
	TaskSocial        TaskKind = "social"
)

type Task struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Kind        TaskKind `json:"kind" yaml:"kind"`
	// Target is the requirement threshold, e.g. total spins for a milestone.
	Target     int64 `json:"target" yaml:"target"`
	BaseReward int64 `json:"base_reward" yaml:"base_reward"`
	// Daily tasks can be completed once per UTC day, the rest once ever.
	Daily bool `json:"daily" yaml:"daily"`
}

type TaskView struct {
	Task
	Completed bool  `json:"completed"`
	Progress  int64 `json:"progress"`
	Reward    int64 `json:"reward"`
}

type TaskCompletion struct {
	TaskID       string `json:"task_id"`
	UserID       string `json:"user_id"`
	BaseReward   int64  `json:"base_reward"`
	Multiplier   int64  `json:"multiplier"`
	Reward       int64  `json:"reward"`
	BalanceAfter int64  `json:"balance_after"`
}
