package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"spin-earn-backend/internal/config"
	"spin-earn-backend/internal/models"
)

const (
	RefereeBonus  int64 = 50
	ReferrerBonus int64 = 100

	// maxReferralDepth bounds the upline walk done before a referral is paid.
	maxReferralDepth = 32
)

type UserService struct {
	store   *RedisService
	notes   *NotificationService
	cfg     *config.Config
	bcrypt  int
	newCode func() string
}

func NewUserService(store *RedisService, notes *NotificationService, cfg *config.Config) *UserService {
	return &UserService{
		store:   store,
		notes:   notes,
		cfg:     cfg,
		bcrypt:  bcrypt.DefaultCost,
		newCode: models.GenerateReferralCode,
	}
}

// Signup creates the account and, with a valid referral code, pays both
// referral bonuses. An unknown code fails the signup before anything is
// written.
func (u *UserService) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var referrerID string
	if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
		id, err := u.store.client.Get(ctx, fmt.Sprintf(KeyUserByCode, code)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidReferral
		}
		if err != nil {
			return nil, fmt.Errorf("lookup referral code: %w", err)
		}
		referrerID = id
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), u.bcrypt)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	seed, err := models.GenerateClientSeed()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:             models.NewID(),
		Email:          email,
		Username:       strings.TrimSpace(req.Username),
		PasswordHash:   string(hash),
		DailySpinLimit: models.ResolveTier(0).SpinLimit,
		ClientSeed:     seed,
		CreatedAt:      time.Now().Unix(),
	}

	emailKey := fmt.Sprintf(KeyUserByEmail, email)
	claimed, err := u.store.client.SetNX(ctx, emailKey, user.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("claim email: %w", err)
	}
	if !claimed {
		return nil, ErrEmailTaken
	}
	// Any failure from here on gives the email (and code, once held) back.
	reserved := []string{emailKey}
	release := func() {
		if err := u.store.client.Del(context.WithoutCancel(ctx), reserved...).Err(); err != nil {
			u.store.log.WithError(err).WithField("email", email).Error("release signup reservation")
		}
	}

	for attempt := 0; ; attempt++ {
		code := u.newCode()
		ok, err := u.store.client.SetNX(ctx, fmt.Sprintf(KeyUserByCode, code), user.ID, 0).Result()
		if err != nil {
			release()
			return nil, fmt.Errorf("claim referral code: %w", err)
		}
		if ok {
			user.ReferralCode = code
			reserved = append(reserved, fmt.Sprintf(KeyUserByCode, code))
			break
		}
		if attempt == 4 {
			release()
			return nil, errors.New("could not allocate referral code")
		}
	}

	pipe := u.store.client.TxPipeline()
	pipe.HSet(ctx, fmt.Sprintf(KeyUser, user.ID), user.HashFields())
	pipe.SAdd(ctx, KeyUsers, user.ID)
	pipe.ZAdd(ctx, KeyLeaderboard, redis.Z{Score: 0, Member: user.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		// MULTI does not roll back, so drop whatever part of the user landed.
		reserved = append(reserved, fmt.Sprintf(KeyUser, user.ID))
		release()
		cleanup := context.WithoutCancel(ctx)
		u.store.client.SRem(cleanup, KeyUsers, user.ID)
		u.store.client.ZRem(cleanup, KeyLeaderboard, user.ID)
		return nil, fmt.Errorf("create user: %w", err)
	}

	log := u.store.log.WithField("user_id", user.ID)
	log.Info("user signed up")

	if referrerID != "" {
		if err := u.ApplyReferral(ctx, user.ID, referrerID); err != nil {
			log.WithError(err).Warn("apply referral")
		} else {
			user.Coins += RefereeBonus
			user.ReferredBy = referrerID
		}
	}

	if err := u.store.ledger.RecordSignup(ctx, user); err != nil {
		log.WithError(err).Error("archive signup")
	}

	return user, nil
}

// ApplyReferral credits the referee and referrer bonuses. It succeeds at most
// once per referee, and never when the referee is already upline of the
// referrer.
func (u *UserService) ApplyReferral(ctx context.Context, refereeID, referrerID string) error {
	if refereeID == referrerID {
		return ErrSelfAction
	}
	if err := u.checkUpline(ctx, refereeID, referrerID); err != nil {
		return err
	}

	vals, err := scriptStrings(referralScript.Run(ctx, u.store.client,
		[]string{
			fmt.Sprintf(KeyUser, refereeID),
			fmt.Sprintf(KeyUser, referrerID),
			fmt.Sprintf(KeyReferralGuard, refereeID),
			KeyLeaderboard,
			fmt.Sprintf(KeyUserReferrals, referrerID),
		},
		RefereeBonus, ReferrerBonus, refereeID, referrerID,
	))
	if err != nil {
		return err
	}
	balances, err := parseInts(vals)
	if err != nil {
		return err
	}

	u.store.record(ctx, refereeID, models.TransactionTypeReferral, models.CurrencyCoins, RefereeBonus, balances[0], referrerID, "Referral signup bonus")
	u.store.record(ctx, referrerID, models.TransactionTypeReferral, models.CurrencyCoins, ReferrerBonus, balances[1], refereeID, "Referral reward")
	u.notes.notify(ctx, referrerID, models.NotificationReferral, "New referral", fmt.Sprintf("A friend joined with your code. You earned %d coins.", ReferrerBonus))
	u.store.publishUser(ctx, refereeID)
	u.store.publishUser(ctx, referrerID)

	u.store.log.WithFields(logrus.Fields{
		"referee":  refereeID,
		"referrer": referrerID,
	}).Info("referral credited")
	return nil
}

// checkUpline follows referred_by from the referrer and fails with
// ErrReferralCycle if it reaches the referee. The direct back-link is checked
// again inside the script.
func (u *UserService) checkUpline(ctx context.Context, refereeID, referrerID string) error {
	id := referrerID
	for depth := 0; depth < maxReferralDepth; depth++ {
		next, err := u.store.client.HGet(ctx, fmt.Sprintf(KeyUser, id), "referred_by").Result()
		if errors.Is(err, redis.Nil) || next == "" {
			return nil
		}
		if err != nil {
			return fmt.Errorf("walk referral chain: %w", err)
		}
		if next == refereeID {
			return ErrReferralCycle
		}
		id = next
	}
	return nil
}

// PromoteAdmins sets is_admin on the existing accounts listed in
// ADMIN_USER_IDS. Unknown ids are logged and skipped.
func (u *UserService) PromoteAdmins(ctx context.Context) (int, error) {
	promoted := 0
	for _, id := range u.cfg.AdminUserIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		key := fmt.Sprintf(KeyUser, id)
		n, err := u.store.client.Exists(ctx, key).Result()
		if err != nil {
			return promoted, fmt.Errorf("promote %s: %w", id, err)
		}
		if n == 0 {
			u.store.log.WithField("user_id", id).Warn("admin account does not exist")
			continue
		}
		if err := u.store.client.HSet(ctx, key, "is_admin", "1").Err(); err != nil {
			return promoted, fmt.Errorf("promote %s: %w", id, err)
		}
		promoted++
	}
	return promoted, nil
}

// RedeemReferral applies a code for an existing account that signed up
// without one.
func (u *UserService) RedeemReferral(ctx context.Context, userID, code string) error {
	referrerID, err := u.store.client.Get(ctx, fmt.Sprintf(KeyUserByCode, strings.ToUpper(strings.TrimSpace(code)))).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidReferral
	}
	if err != nil {
		return err
	}
	return u.ApplyReferral(ctx, userID, referrerID)
}

func (u *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	id, err := u.store.client.Get(ctx, fmt.Sprintf(KeyUserByEmail, email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	user, err := u.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Banned {
		return nil, ErrUserBanned
	}
	return user, nil
}

func (u *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return u.store.GetUser(ctx, userID)
}

func (u *UserService) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := u.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	day := models.DayKey(time.Now())
	pipe := u.store.client.Pipeline()
	spins := pipe.Get(ctx, fmt.Sprintf(KeySpinDay, userID, day))
	equipped := pipe.HGetAll(ctx, fmt.Sprintf(KeyEquipped, userID))
	unread := pipe.SCard(ctx, fmt.Sprintf(KeyUserUnread, userID))
	referrals := pipe.SCard(ctx, fmt.Sprintf(KeyUserReferrals, userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	today, _ := spins.Int64()
	tier := user.Tier()
	return &models.Profile{
		User:          user,
		Tier:          tier,
		SpinsToday:    today,
		SpinsLeft:     spinsLeft(tier, user.DailySpinLimit, today),
		Equipped:      equipped.Val(),
		UnreadCount:   unread.Val(),
		ReferralCount: referrals.Val(),
	}, nil
}

func (u *UserService) Balance(ctx context.Context, userID string) (*models.BalanceResponse, error) {
	user, err := u.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.BalanceResponse{Coins: user.Coins, Diamonds: user.Diamonds, Tier: user.Tier()}, nil
}

func (u *UserService) Search(ctx context.Context, query string, limit int) ([]*models.Friend, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	var (
		out    []*models.Friend
		cursor uint64
	)
	for {
		ids, next, err := u.store.client.SScan(ctx, KeyUsers, cursor, "", 200).Result()
		if err != nil {
			return nil, err
		}
		users, err := u.store.GetUsers(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			if strings.Contains(strings.ToLower(user.Username), query) {
				out = append(out, friendView(user))
				if len(out) >= limit {
					return out, nil
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// SetBanned is admin_ban_user.
func (u *UserService) SetBanned(ctx context.Context, userID string, banned bool) error {
	flag := "0"
	if banned {
		flag = "1"
	}
	if err := u.store.setUserField(ctx, userID, "banned", flag); err != nil {
		return err
	}
	u.store.log.WithFields(logrus.Fields{"user_id": userID, "banned": banned}).Info("ban flag changed")
	return nil
}

// SetSpinLimit is admin_update_spin_limit.
func (u *UserService) SetSpinLimit(ctx context.Context, userID string, limit int64) error {
	if limit < 0 {
		return ErrInvalidAmount
	}
	return u.store.setUserField(ctx, userID, "daily_spin_limit", limit)
}

// SyncSpinLimit rewrites daily_spin_limit from the tier ladder. It reports
// whether the stored value changed.
func (u *UserService) SyncSpinLimit(ctx context.Context, user *models.User) (bool, error) {
	tier := user.Tier()
	if tier.Unlimited || user.DailySpinLimit == tier.SpinLimit {
		return false, nil
	}
	if err := u.store.setUserField(ctx, user.ID, "daily_spin_limit", tier.SpinLimit); err != nil {
		return false, err
	}
	return true, nil
}

// EachUser walks every user in batches.
func (u *UserService) EachUser(ctx context.Context, fn func(*models.User) error) error {
	var cursor uint64
	for {
		ids, next, err := u.store.client.SScan(ctx, KeyUsers, cursor, "", 200).Result()
		if err != nil {
			return err
		}
		users, err := u.store.GetUsers(ctx, ids)
		if err != nil {
			return err
		}
		for _, user := range users {
			if err := fn(user); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func friendView(user *models.User) *models.Friend {
	return &models.Friend{
		ID:       user.ID,
		Username: user.Username,
		Coins:    user.Coins,
		Tier:     user.Tier().Name,
	}
}

// spinsLeft is -1 for unlimited tiers.
func spinsLeft(tier models.Tier, limit, used int64) int64 {
	if tier.Unlimited {
		return -1
	}
	if left := limit - used; left > 0 {
		return left
	}
	return 0
}
