package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/services"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrUserBanned, http.StatusForbidden},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrNotFriends, http.StatusForbidden},
	{services.ErrInvalidSignature, http.StatusForbidden},
	{services.ErrInvalidCredentials, http.StatusUnauthorized},
	{services.ErrSpinLimitReached, http.StatusTooManyRequests},
	{services.ErrRateLimited, http.StatusTooManyRequests},
	{services.ErrAlreadyClaimed, http.StatusConflict},
	{services.ErrEmailTaken, http.StatusConflict},
	{services.ErrInvalidState, http.StatusConflict},
	{services.ErrLotteryClosed, http.StatusConflict},
	{services.ErrOutOfStock, http.StatusConflict},
	{services.ErrInsufficientBalance, http.StatusBadRequest},
	{services.ErrBelowMinimum, http.StatusBadRequest},
	{services.ErrInvalidAmount, http.StatusBadRequest},
	{services.ErrRequirementNotMet, http.StatusBadRequest},
	{services.ErrItemUnavailable, http.StatusBadRequest},
	{services.ErrNotOwned, http.StatusBadRequest},
	{services.ErrInvalidNumbers, http.StatusBadRequest},
	{services.ErrInvalidReferral, http.StatusBadRequest},
	{services.ErrReferralCycle, http.StatusBadRequest},
	{services.ErrSelfAction, http.StatusBadRequest},
}

// respondError maps service sentinels onto statuses. Anything unknown is
// logged and answered with a bare 500.
func respondError(c *gin.Context, message string, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{
				"error":   message,
				"details": err.Error(),
			})
			return
		}
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"path":    c.FullPath(),
		"user_id": c.GetString("user_id"),
	}).Error(message)
	c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// queryLimit reads ?limit= with a fallback and an upper bound.
func queryLimit(c *gin.Context, fallback, max int64) int64 {
	limit, err := strconv.ParseInt(c.Query("limit"), 10, 64)
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
