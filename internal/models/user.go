package models

import "time"

type User struct {
	ID           string `json:"id" redis:"id"`
	Email        string `json:"email" redis:"email"`
	Username     string `json:"username" redis:"username"`
	PasswordHash string `json:"-" redis:"password_hash"`

	Coins          int64 `json:"coins" redis:"coins"`
	Diamonds       int64 `json:"diamonds" redis:"diamonds"`
	DailySpinLimit int64 `json:"daily_spin_limit" redis:"daily_spin_limit"`
	TotalSpins     int64 `json:"total_spins" redis:"total_spins"`

	Banned  bool `json:"banned" redis:"banned"`
	IsAdmin bool `json:"is_admin" redis:"is_admin"`

	ReferralCode string `json:"referral_code" redis:"referral_code"`
	ReferredBy   string `json:"referred_by,omitempty" redis:"referred_by"`

	// Provably fair state shared by the wheel and the mini-games.
	ClientSeed string `json:"client_seed" redis:"client_seed"`
	Nonce      int64  `json:"nonce" redis:"nonce"`

	CreatedAt int64 `json:"created_at" redis:"created_at"`
}

func (u *User) Tier() Tier {
	return ResolveTier(u.Coins)
}

// HashFields is the representation written with HSET when a user is created.
func (u *User) HashFields() map[string]interface{} {
	return map[string]interface{}{
		"id":               u.ID,
		"email":            u.Email,
		"username":         u.Username,
		"password_hash":    u.PasswordHash,
		"coins":            u.Coins,
		"diamonds":         u.Diamonds,
		"daily_spin_limit": u.DailySpinLimit,
		"total_spins":      u.TotalSpins,
		"banned":           boolField(u.Banned),
		"is_admin":         boolField(u.IsAdmin),
		"referral_code":    u.ReferralCode,
		"referred_by":      u.ReferredBy,
		"client_seed":      u.ClientSeed,
		"nonce":            u.Nonce,
		"created_at":       u.CreatedAt,
	}
}

// Profile is what the client renders on the profile and wallet screens.
type Profile struct {
	User          *User             `json:"user"`
	Tier          Tier              `json:"tier"`
	SpinsToday    int64             `json:"spins_today"`
	SpinsLeft     int64             `json:"spins_left"`
	Equipped      map[string]string `json:"equipped"`
	UnreadCount   int64             `json:"unread_notifications"`
	ReferralCount int64             `json:"referral_count"`
}

type SignupRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Username     string `json:"username" binding:"required,min=3,max=32"`
	Password     string `json:"password" binding:"required,min=8,max=72"`
	ReferralCode string `json:"referral_code"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
