package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

func NewID() string {
	return uuid.New().String()
}

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%d",
		time.Now().UTC().Format("20060102"),
		uuid.New().ID())
}

func GenerateClientSeed() (string, error) {
	bytes := make([]byte, 16) // 128 bits of entropy
	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate client seed: %v", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateReferralCode derives a short shareable code from a fresh uuid.
func GenerateReferralCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:8])
}

// DayKey is the UTC calendar day used for daily allowances.
func DayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// CalculatePayout floors bet*multiplier; the epsilon absorbs float error on
// multipliers such as 1.98.
func CalculatePayout(betAmount int64, multiplier float64) int64 {
	return int64(math.Floor(float64(betAmount)*multiplier + 1e-9))
}
