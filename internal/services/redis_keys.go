package services

import "time"

const (
	KeyUser          = "user:%s"
	KeyUserByEmail   = "user:email:%s"
	KeyUserByCode    = "user:referral:%s"
	KeyUsers         = "users"
	KeyUserReferrals = "user:%s:referrals"
	KeyReferralGuard = "referral:credited:%s"

	KeySpinDay      = "spins:%s:%s"
	KeySpinRequest  = "spin:request:%s:%s"
	KeySpin         = "spin:%s"
	KeyUserSpins    = "user:%s:spins"
	KeySpinsDayAll  = "spins:all:%s"
	KeyServerSeed   = "fair:server_seed"
	KeyPrevSeed     = "fair:server_seed:previous"
	KeyTaskDone     = "task:done:%s:%s"
	KeyTaskDoneDay  = "task:done:%s:%s:%s"
	KeyGameSession  = "game:session:%s"
	KeyUserGames    = "user:%s:games"
	KeyLeaderboard  = "leaderboard:coins"
	KeyRateLimit    = "ratelimit:%s:%s"
	KeyTransaction  = "transaction:%s"
	KeyUserTxs      = "user:%s:transactions"
	KeyWithdrawal   = "withdrawal:%s"
	KeyPendingWds   = "withdrawals:pending"
	KeyUserWds      = "user:%s:withdrawals"
	KeyShopItem     = "shop:item:%s"
	KeyShopItems    = "shop:items"
	KeyInventory    = "user:%s:inventory"
	KeyEquipped     = "user:%s:equipped"
	KeyPurchase     = "purchase:%s"
	KeyUserPurchase = "user:%s:purchases"

	KeyLottery        = "lottery:%s"
	KeyLotteries      = "lotteries"
	KeyLotteryOpen    = "lotteries:open"
	KeyLotteryDrawing = "lotteries:drawing"
	KeyLotteryTickets = "lottery:%s:tickets"
	KeyLotteryWinners = "lottery:%s:winners"
	KeyTicket         = "ticket:%s"
	KeyUserTickets    = "user:%s:tickets"
	KeyLotteryCarry   = "lottery:rollover"

	KeyConversation      = "conversation:%s"
	KeyConvMessages      = "conversation:%s:messages"
	KeyConvUnread        = "conversation:%s:unread"
	KeyConvReadAt        = "conversation:%s:read_at"
	KeyUserConversations = "user:%s:conversations"
	KeyFriends           = "user:%s:friends"
	KeyFriendRequests    = "user:%s:friend_requests"

	KeyNotification      = "notification:%s"
	KeyUserNotifications = "user:%s:notifications"
	KeyUserUnread        = "user:%s:notifications:unread"
	KeyReport            = "report:%s"
	KeyReportsOpen       = "reports:open"
	KeyAdminMessage      = "admin_message:%s"
	KeyAdminMessages     = "admin_messages"

	TTLSpinDay     = 48 * time.Hour
	TTLSpinRequest = 24 * time.Hour
	TTLSpin        = 30 * 24 * time.Hour
	TTLTaskDay     = 48 * time.Hour
	TTLGameSession = 7 * 24 * time.Hour
	TTLTransaction = 30 * 24 * time.Hour

	HistoryLimit = 100

	DefaultRateLimitSpins = 30 // per minute
	DefaultRateLimitBets  = 30
)
