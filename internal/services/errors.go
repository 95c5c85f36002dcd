package services

import (
	"errors"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUserBanned          = errors.New("user is banned")
	ErrSpinLimitReached    = errors.New("daily spin limit reached")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBelowMinimum        = errors.New("amount below minimum")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAlreadyClaimed      = errors.New("already claimed")
	ErrRequirementNotMet   = errors.New("task requirement not met")
	ErrOutOfStock          = errors.New("item out of stock")
	ErrItemUnavailable     = errors.New("item unavailable")
	ErrNotOwned            = errors.New("item not owned")
	ErrLotteryClosed       = errors.New("lottery is closed")
	ErrInvalidNumbers      = errors.New("invalid lottery numbers")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidReferral     = errors.New("invalid referral code")
	ErrReferralCycle       = errors.New("referral would form a cycle")
	ErrNotFriends          = errors.New("users are not friends")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrForbidden           = errors.New("forbidden")
	ErrSelfAction          = errors.New("cannot target yourself")

	// errStale is returned by scripts whose optimistic preconditions (tier
	// band, nonce) no longer hold; callers re-read and retry.
	errStale = errors.New("stale read")
)

var scriptErrors = map[string]error{
	"NOT_FOUND":    ErrNotFound,
	"BANNED":       ErrUserBanned,
	"SPIN_LIMIT":   ErrSpinLimitReached,
	"INSUFFICIENT": ErrInsufficientBalance,
	"BELOW_MIN":    ErrBelowMinimum,
	"CLAIMED":      ErrAlreadyClaimed,
	"CYCLE":        ErrReferralCycle,
	"OUT_OF_STOCK": ErrOutOfStock,
	"UNAVAILABLE":  ErrItemUnavailable,
	"NOT_OWNED":    ErrNotOwned,
	"CLOSED":       ErrLotteryClosed,
	"STATE":        ErrInvalidState,
	"STALE":        errStale,
	"REQUIREMENT":  ErrRequirementNotMet,
}

// scriptError maps error replies from the Lua scripts onto sentinels.
func scriptError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimPrefix(err.Error(), "ERR ")
	for code, sentinel := range scriptErrors {
		if msg == code || strings.HasPrefix(msg, code+" ") || strings.HasSuffix(msg, " "+code) {
			return sentinel
		}
	}
	return err
}
