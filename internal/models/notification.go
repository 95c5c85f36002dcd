package models

type NotificationKind string

const (
	NotificationWithdrawal NotificationKind = "withdrawal"
	NotificationLottery    NotificationKind = "lottery"
	NotificationAdmin      NotificationKind = "admin"
	NotificationReferral   NotificationKind = "referral"
	NotificationFriend     NotificationKind = "friend"
	NotificationPurchase   NotificationKind = "purchase"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Read      bool             `json:"read"`
	CreatedAt int64            `json:"created_at"`
}

type ReportStatus string

const (
	ReportOpen     ReportStatus = "open"
	ReportResolved ReportStatus = "resolved"
)

type Report struct {
	ID         string       `json:"id"`
	ReporterID string       `json:"reporter_id"`
	TargetID   string       `json:"target_id"`
	Reason     string       `json:"reason"`
	Status     ReportStatus `json:"status"`
	CreatedAt  int64        `json:"created_at"`
	ResolvedAt int64        `json:"resolved_at,omitempty"`
}

type ReportRequest struct {
	TargetID string `json:"target_id" binding:"required"`
	Reason   string `json:"reason" binding:"required,max=500"`
}

type AdminMessage struct {
	ID         string `json:"id"`
	AdminID    string `json:"admin_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Recipients int64  `json:"recipients"`
	CreatedAt  int64  `json:"created_at"`
}

type BroadcastRequest struct {
	Title string `json:"title" binding:"required,max=120"`
	Body  string `json:"body" binding:"required,max=2000"`
}

type BanRequest struct {
	Ban bool `json:"ban"`
}

type SpinLimitRequest struct {
	Limit int64 `json:"limit" binding:"min=0,max=1000"`
}

type DecisionRequest struct {
	Notes string `json:"notes" binding:"max=500"`
}

type DashboardStats struct {
	Users              int64 `json:"users"`
	BannedUsers        int64 `json:"banned_users"`
	PendingWithdrawals int64 `json:"pending_withdrawals"`
	PendingAmount      int64 `json:"pending_amount"`
	OpenReports        int64 `json:"open_reports"`
	OpenLotteries      int64 `json:"open_lotteries"`
	SpinsToday         int64 `json:"spins_today"`
}

type LeaderboardEntry struct {
	Rank     int64    `json:"rank"`
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Coins    int64    `json:"coins"`
	Tier     TierName `json:"tier"`
}
