package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/redis/go-redis/v9"

	"spin-earn-backend/internal/models"
)

// FairService owns the provably fair server seed. Players see only its
// SHA-256 hash until the seed is rotated, after which the old seed is
// revealed so past rounds can be checked.
type FairService struct {
	store *RedisService
}

func NewFairService(store *RedisService) *FairService {
	return &FairService{store: store}
}

func generateServerSeed() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate server seed: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// ServerSeed returns the active seed, creating one on first use.
func (f *FairService) ServerSeed(ctx context.Context) (string, error) {
	seed, err := f.store.client.Get(ctx, KeyServerSeed).Result()
	if err == nil {
		return seed, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("load server seed: %w", err)
	}

	fresh, err := generateServerSeed()
	if err != nil {
		return "", err
	}
	if err := f.store.client.SetNX(ctx, KeyServerSeed, fresh, 0).Err(); err != nil {
		return "", err
	}
	return f.store.client.Get(ctx, KeyServerSeed).Result()
}

func (f *FairService) ServerHash(ctx context.Context) (string, error) {
	seed, err := f.ServerSeed(ctx)
	if err != nil {
		return "", err
	}
	return hashSeed(seed), nil
}

// Rotate installs a new server seed and returns the one it replaced.
func (f *FairService) Rotate(ctx context.Context) (string, error) {
	fresh, err := generateServerSeed()
	if err != nil {
		return "", err
	}
	previous, err := f.store.client.SetArgs(ctx, KeyServerSeed, fresh, redis.SetArgs{Get: true}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("rotate server seed: %w", err)
	}
	if previous != "" {
		if err := f.store.client.Set(ctx, KeyPrevSeed, previous, 0).Err(); err != nil {
			return "", err
		}
	}
	f.store.log.WithField("server_hash", hashSeed(fresh)).Info("server seed rotated")
	return previous, nil
}

func (f *FairService) PreviousSeed(ctx context.Context) (string, error) {
	seed, err := f.store.client.Get(ctx, KeyPrevSeed).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return seed, err
}

func (f *FairService) VerificationData(ctx context.Context, userID string) (*models.VerificationData, error) {
	user, err := f.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	hash, err := f.ServerHash(ctx)
	if err != nil {
		return nil, err
	}
	prev, err := f.PreviousSeed(ctx)
	if err != nil {
		return nil, err
	}
	return &models.VerificationData{
		ClientSeed:         user.ClientSeed,
		ServerHash:         hash,
		CurrentNonce:       user.Nonce,
		PreviousServerSeed: prev,
	}, nil
}

func (f *FairService) SetClientSeed(ctx context.Context, userID, seed string) error {
	return f.store.setUserField(ctx, userID, "client_seed", seed)
}

func hashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// roundHash is HMAC-SHA256(serverSeed, "game:clientSeed:nonce") in hex.
func roundHash(serverSeed string, game models.GameType, clientSeed string, nonce int64) string {
	message := fmt.Sprintf("%s:%s:%d", game, clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// unitFloat maps the first 52 bits of a round hash onto [0, 1).
func unitFloat(hash string) float64 {
	n := new(big.Int)
	n.SetString(hash[:13], 16)
	return float64(n.Int64()) / math.Pow(2, 52)
}

// selectSegment picks a wheel slice with probability proportional to its
// weight.
func selectSegment(hash string, wheel []models.WheelSegment) int {
	var total uint64
	for _, s := range wheel {
		total += uint64(s.Weight)
	}
	raw, _ := hex.DecodeString(hash[:16])
	pick := binary.BigEndian.Uint64(raw) % total

	for i, s := range wheel {
		if pick < uint64(s.Weight) {
			return i
		}
		pick -= uint64(s.Weight)
	}
	return len(wheel) - 1
}

// diceRoll is a roll in [0.00, 99.99].
func diceRoll(hash string) float64 {
	return math.Floor(unitFloat(hash)*10000) / 100
}

func coinSide(hash string) string {
	b, _ := hex.DecodeString(hash[:2])
	if b[0]%2 == 0 {
		return "heads"
	}
	return "tails"
}

// VerifyResult recomputes a past round from revealed seeds.
type VerifyResult struct {
	Hash    string  `json:"hash"`
	Roll    float64 `json:"roll,omitempty"`
	Side    string  `json:"side,omitempty"`
	Segment *int    `json:"segment,omitempty"`
}

func (f *FairService) Verify(req *models.VerifyRequest, wheel []models.WheelSegment) *VerifyResult {
	game := req.GameType
	hash := roundHash(req.ServerSeed, game, req.ClientSeed, req.Nonce)
	res := &VerifyResult{Hash: hash}
	switch game {
	case models.GameTypeDice:
		res.Roll = diceRoll(hash)
	case models.GameTypeCoinFlip:
		res.Side = coinSide(hash)
	case models.GameTypeSpin:
		seg := selectSegment(hash, wheel)
		res.Segment = &seg
	}
	return res
}
