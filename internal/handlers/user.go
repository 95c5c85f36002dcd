package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spin-earn-backend/internal/archive"
	"spin-earn-backend/internal/middleware"
	"spin-earn-backend/internal/services"
)

type UserHandler struct {
	users   *services.UserService
	store   *services.RedisService
	board   *services.LeaderboardService
	archive *archive.Store
}

// NewUserHandler takes a nil archive when Postgres is not configured.
func NewUserHandler(users *services.UserService, store *services.RedisService, board *services.LeaderboardService, arch *archive.Store) *UserHandler {
	return &UserHandler{
		users:   users,
		store:   store,
		board:   board,
		archive: arch,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	profile, err := h.users.Profile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to load profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) GetBalance(c *gin.Context) {
	balance, err := h.users.Balance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get balance", err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (h *UserHandler) GetTransactions(c *gin.Context) {
	txs, err := h.store.GetUserTransactions(c.Request.Context(), middleware.UserID(c), queryLimit(c, 50, 200))
	if err != nil {
		respondError(c, "Failed to get transactions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// GetArchivedTransactions pages through the Postgres ledger with
// ?before=<RFC3339>.
func (h *UserHandler) GetArchivedTransactions(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction archive is disabled"})
		return
	}

	before := time.Now()
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request",
				"details": "before must be an RFC3339 timestamp",
			})
			return
		}
		before = t
	}

	rows, err := h.archive.UserTransactions(c.Request.Context(), middleware.UserID(c), before, int(queryLimit(c, 100, 500)))
	if err != nil {
		respondError(c, "Failed to get transactions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": rows})
}

func (h *UserHandler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if len(query) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": "query must be at least 2 characters",
		})
		return
	}

	users, err := h.users.Search(c.Request.Context(), query, int(queryLimit(c, 20, 50)))
	if err != nil {
		respondError(c, "Search failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UserHandler) RedeemReferral(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := h.users.RedeemReferral(c.Request.Context(), middleware.UserID(c), req.Code); err != nil {
		respondError(c, "Failed to redeem referral", err)
		return
	}

	balance, err := h.users.Balance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to get balance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bonus":   services.RefereeBonus,
		"balance": balance,
	})
}

func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	top, err := h.board.Top(ctx, queryLimit(c, 10, 100))
	if err != nil {
		respondError(c, "Failed to load leaderboard", err)
		return
	}
	rank, err := h.board.Rank(ctx, middleware.UserID(c))
	if err != nil {
		respondError(c, "Failed to load leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"leaders": top,
		"rank":    rank,
	})
}
