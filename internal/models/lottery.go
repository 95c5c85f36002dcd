package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type LotteryStatus string

const (
	LotteryOpen    LotteryStatus = "open"
	LotteryDrawing LotteryStatus = "drawing"
	LotteryDrawn   LotteryStatus = "drawn"
)

type LotteryGame struct {
	ID             string        `json:"id" redis:"id"`
	Title          string        `json:"title" redis:"title"`
	NumberCount    int           `json:"number_count" redis:"number_count"`
	MaxNumber      int           `json:"max_number" redis:"max_number"`
	TicketPrice    int64         `json:"ticket_price" redis:"ticket_price"`
	PrizePool      int64         `json:"prize_pool" redis:"prize_pool"`
	TicketCount    int64         `json:"ticket_count" redis:"ticket_count"`
	Status         LotteryStatus `json:"status" redis:"status"`
	WinningNumbers string        `json:"winning_numbers,omitempty" redis:"winning_numbers"`
	WinnerCount    int64         `json:"winner_count" redis:"winner_count"`
	PrizePerWinner int64         `json:"prize_per_winner" redis:"prize_per_winner"`
	DrawAt         int64         `json:"draw_at" redis:"draw_at"`
	DrawnAt        int64         `json:"drawn_at,omitempty" redis:"drawn_at"`
	CreatedAt      int64         `json:"created_at" redis:"created_at"`
}

// ValidateNumbers checks a ticket pick against the game's shape and returns
// the numbers sorted ascending.
func (g *LotteryGame) ValidateNumbers(numbers []int) ([]int, error) {
	if len(numbers) != g.NumberCount {
		return nil, fmt.Errorf("pick exactly %d numbers", g.NumberCount)
	}
	seen := make(map[int]bool, len(numbers))
	out := make([]int, 0, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > g.MaxNumber {
			return nil, fmt.Errorf("number %d out of range 1-%d", n, g.MaxNumber)
		}
		if seen[n] {
			return nil, fmt.Errorf("number %d picked twice", n)
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

type LotteryTicket struct {
	ID          string `json:"id" redis:"id"`
	LotteryID   string `json:"lottery_id" redis:"lottery_id"`
	UserID      string `json:"user_id" redis:"user_id"`
	Numbers     string `json:"numbers" redis:"numbers"`
	PurchasedAt int64  `json:"purchased_at" redis:"purchased_at"`
}

type LotteryWinner struct {
	LotteryID string `json:"lottery_id"`
	TicketID  string `json:"ticket_id"`
	UserID    string `json:"user_id"`
	Prize     int64  `json:"prize"`
}

type DrawResult struct {
	LotteryID      string          `json:"lottery_id"`
	WinningNumbers []int           `json:"winning_numbers"`
	Winners        []LotteryWinner `json:"winners"`
	PrizePerWinner int64           `json:"prize_per_winner"`
	RolledOver     int64           `json:"rolled_over"`
}

type BuyTicketRequest struct {
	Numbers []int `json:"numbers" binding:"required,min=1,max=10"`
}

type CreateLotteryRequest struct {
	Title       string `json:"title" binding:"required,max=80"`
	NumberCount int    `json:"number_count" binding:"required,min=1,max=10"`
	MaxNumber   int    `json:"max_number" binding:"required,min=2,max=99"`
	TicketPrice int64  `json:"ticket_price" binding:"required,gt=0"`
	DrawInHours int    `json:"draw_in_hours" binding:"required,min=1,max=720"`
}

// JoinNumbers encodes a sorted pick the way tickets and draws store it.
func JoinNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
