package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"spin-earn-backend/internal/models"
)

func TestRoundHashIsDeterministic(t *testing.T) {
	a := roundHash("server", models.GameTypeDice, "client", 7)
	b := roundHash("server", models.GameTypeDice, "client", 7)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, roundHash("server", models.GameTypeDice, "client", 8))
	assert.NotEqual(t, a, roundHash("server", models.GameTypeCoinFlip, "client", 7))
	assert.NotEqual(t, a, roundHash("other", models.GameTypeDice, "client", 7))
}

func TestSelectSegmentFollowsWeights(t *testing.T) {
	wheel := []models.WheelSegment{
		{Label: "common", Reward: 1, Weight: 90},
		{Label: "rare", Reward: 100, Weight: 10},
	}

	counts := make([]int, len(wheel))
	for i := 0; i < 5000; i++ {
		counts[selectSegment(roundHash("seed", models.GameTypeSpin, "client", int64(i)), wheel)]++
	}
	// 10% expected, wide bounds keep this stable.
	assert.InDelta(t, 500, counts[1], 150)
	assert.Equal(t, 5000, counts[0]+counts[1])
}

func TestDiceRollRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		roll := diceRoll(roundHash("seed", models.GameTypeDice, "c", int64(i)))
		assert.GreaterOrEqual(t, roll, 0.0)
		assert.Less(t, roll, 100.0)
		assert.Equal(t, roll, float64(int64(roll*100+0.5))/100, fmt.Sprintf("roll %v has more than two decimals", roll))
	}
}

func TestCoinSide(t *testing.T) {
	assert.Equal(t, "heads", coinSide("00ff"))
	assert.Equal(t, "tails", coinSide("01ff"))
}

func TestDiceMultiplier(t *testing.T) {
	assert.Equal(t, 1.98, diceMultiplier(50, false))
	assert.Equal(t, 1.98, diceMultiplier(50, true))
	assert.Equal(t, 9.9, diceMultiplier(10, false))
	assert.Equal(t, 49.5, diceMultiplier(98, true))
}

func TestSpinsLeft(t *testing.T) {
	regular := models.ResolveTier(0)
	assert.Equal(t, int64(3), spinsLeft(regular, 5, 2))
	assert.Equal(t, int64(0), spinsLeft(regular, 5, 9))
	assert.Equal(t, int64(-1), spinsLeft(models.ResolveTier(5000), 5, 9))
}

func TestScriptErrorMapping(t *testing.T) {
	assert.ErrorIs(t, scriptError(fmt.Errorf("SPIN_LIMIT")), ErrSpinLimitReached)
	assert.ErrorIs(t, scriptError(fmt.Errorf("ERR INSUFFICIENT")), ErrInsufficientBalance)
	assert.ErrorIs(t, scriptError(fmt.Errorf("STALE")), errStale)
	assert.Nil(t, scriptError(nil))

	other := fmt.Errorf("connection refused")
	assert.Equal(t, other, scriptError(other))
}
