package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/archive"
	"spin-earn-backend/internal/config"
	"spin-earn-backend/internal/metrics"
	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/realtime"
	"spin-earn-backend/internal/services"
)

// Deps is everything the HTTP layer needs. Archive may be nil, and a nil
// PublicLimit gets one built from the config.
type Deps struct {
	Config      *config.Config
	Store       *services.RedisService
	Archive     *archive.Store
	JWT         *services.JWTService
	Hub         *realtime.Hub
	PublicLimit *middleware.IPRateLimiter

	Users   *services.UserService
	Spins   *services.SpinService
	Tasks   *services.TaskService
	Wallet  *services.WalletService
	Shop    *services.ShopService
	Lottery *services.LotteryService
	Games   *services.GameEngine
	Fair    *services.FairService
	Chat    *services.ChatService
	Notes   *services.NotificationService
	Admin   *services.AdminService
	Board   *services.LeaderboardService

	Log *logrus.Entry
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(d.Log), metrics.Middleware(), middleware.CORS())

	publicLimit := d.PublicLimit
	if publicLimit == nil {
		publicLimit = middleware.NewIPRateLimiter(float64(d.Config.PublicRateLimit), d.Config.PublicRateBurst)
	}

	authHandler := NewAuthHandler(d.Users, d.JWT)
	userHandler := NewUserHandler(d.Users, d.Store, d.Board, d.Archive)
	spinHandler := NewSpinHandler(d.Spins)
	gameHandler := NewGameHandler(d.Games, d.Fair, d.Spins)
	taskHandler := NewTaskHandler(d.Tasks)
	walletHandler := NewWalletHandler(d.Wallet)
	shopHandler := NewShopHandler(d.Shop)
	lotteryHandler := NewLotteryHandler(d.Lottery)
	chatHandler := NewChatHandler(d.Chat)
	noteHandler := NewNotificationHandler(d.Notes)
	wsHandler := NewWebSocketHandler(d.Hub, d.Users)
	adminHandler := NewAdminHandler(AdminDeps{
		Admin:   d.Admin,
		Users:   d.Users,
		Wallet:  d.Wallet,
		Lottery: d.Lottery,
		Shop:    d.Shop,
		Notes:   d.Notes,
		Fair:    d.Fair,
	})

	router.GET("/healthz", healthz(d.Store, d.Archive))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	payments := router.Group("/payments", publicLimit.Handler())
	{
		payments.GET("/success", walletHandler.PaymentSuccess)
		payments.GET("/failure", walletHandler.PaymentFailure)
	}

	auth := router.Group("/api/auth", publicLimit.Handler())
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(d.JWT))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.GET("/balance", userHandler.GetBalance)
		protected.GET("/transactions", userHandler.GetTransactions)
		protected.GET("/transactions/archive", userHandler.GetArchivedTransactions)
		protected.GET("/users/search", userHandler.SearchUsers)
		protected.POST("/referrals/redeem", userHandler.RedeemReferral)
		protected.GET("/leaderboard", userHandler.GetLeaderboard)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		protected.GET("/wheel", spinHandler.GetWheel)
		spins := protected.Group("/spins")
		{
			spins.POST("", middleware.RateLimitMiddleware(d.Store, middleware.ActionLimit{
				Action: "spin",
				Limit:  services.DefaultRateLimitSpins,
				Window: time.Minute,
			}), spinHandler.Spin)
			spins.GET("/status", spinHandler.GetStatus)
			spins.GET("/history", spinHandler.GetHistory)
		}

		protected.GET("/tasks", taskHandler.ListTasks)
		protected.POST("/tasks/:id/complete", taskHandler.CompleteTask)

		protected.POST("/withdrawals", walletHandler.RequestWithdrawal)
		protected.GET("/withdrawals", walletHandler.GetWithdrawals)

		diamonds := protected.Group("/diamonds")
		{
			diamonds.POST("/convert", walletHandler.ConvertDiamonds)
			diamonds.GET("/packages", walletHandler.GetPackages)
			diamonds.POST("/checkout", walletHandler.Checkout)
			diamonds.GET("/purchases", walletHandler.GetPurchases)
		}

		shop := protected.Group("/shop")
		{
			shop.GET("/items", shopHandler.ListItems)
			shop.POST("/purchase", shopHandler.Purchase)
			shop.POST("/equip", shopHandler.Equip)
			shop.GET("/inventory", shopHandler.GetInventory)
		}

		lottery := protected.Group("/lottery")
		{
			lottery.GET("", lotteryHandler.ListOpen)
			lottery.GET("/recent", lotteryHandler.ListRecent)
			lottery.GET("/tickets", lotteryHandler.GetMyTickets)
			lottery.GET("/:id", lotteryHandler.GetLottery)
			lottery.POST("/:id/tickets", lotteryHandler.BuyTicket)
		}

		games := protected.Group("/games")
		{
			games.POST("/dice", gameHandler.PlayDice)
			games.POST("/coinflip", gameHandler.FlipCoin)
			games.GET("/history", gameHandler.GetGameHistory)
			games.GET("/verification", gameHandler.GetVerificationData)
			games.POST("/client-seed", gameHandler.SetClientSeed)
			games.POST("/verify", gameHandler.VerifyGame)
			games.GET("/:id", gameHandler.GetGame)
		}

		friends := protected.Group("/friends")
		{
			friends.GET("", chatHandler.GetFriends)
			friends.GET("/requests", chatHandler.GetFriendRequests)
			friends.POST("/requests", chatHandler.SendFriendRequest)
			friends.POST("/:id/accept", chatHandler.AcceptFriend)
			friends.POST("/:id/decline", chatHandler.DeclineFriend)
			friends.DELETE("/:id", chatHandler.RemoveFriend)
		}

		protected.POST("/messages", middleware.RateLimitMiddleware(d.Store, middleware.ActionLimit{
			Action: "message",
			Limit:  30,
			Window: time.Minute,
		}), chatHandler.SendMessage)
		protected.POST("/messages/read", chatHandler.MarkRead)
		protected.GET("/conversations", chatHandler.GetConversations)
		protected.GET("/conversations/:id/messages", chatHandler.GetMessages)

		protected.GET("/notifications", noteHandler.List)
		protected.POST("/notifications/read", noteHandler.MarkRead)
		protected.POST("/reports", noteHandler.FileReport)

		admin := protected.Group("/admin", middleware.AdminOnly())
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.POST("/users/:id/ban", adminHandler.BanUser)
			admin.POST("/users/:id/spin-limit", adminHandler.SetSpinLimit)
			admin.GET("/withdrawals", adminHandler.PendingWithdrawals)
			admin.POST("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
			admin.POST("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)
			admin.POST("/broadcast", adminHandler.Broadcast)
			admin.GET("/messages", adminHandler.Messages)
			admin.POST("/lottery", adminHandler.CreateLottery)
			admin.POST("/lottery/:id/draw", adminHandler.DrawLottery)
			admin.PUT("/shop/items", adminHandler.SaveShopItem)
			admin.GET("/reports", adminHandler.Reports)
			admin.POST("/reports/:id/resolve", adminHandler.ResolveReport)
			admin.POST("/fairness/rotate", adminHandler.RotateSeed)
		}
	}

	return router
}

func healthz(store *services.RedisService, arch *archive.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"redis": "ok"}
		status := http.StatusOK
		if err := store.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if arch != nil {
			checks["postgres"] = "ok"
			if err := arch.Ping(ctx); err != nil {
				checks["postgres"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, checks)
	}
}
