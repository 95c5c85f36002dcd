// Package catalog loads the static game content: wheel segments, tasks, shop
// items, diamond packages and the default lottery shape.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"spin-earn-backend/internal/models"
)

//go:embed default.yaml
var defaultCatalog []byte

type LotteryDefaults struct {
	Title       string        `yaml:"title"`
	NumberCount int           `yaml:"number_count"`
	MaxNumber   int           `yaml:"max_number"`
	TicketPrice int64         `yaml:"ticket_price"`
	DrawEvery   time.Duration `yaml:"draw_every"`
}

type Catalog struct {
	Wheel           []models.WheelSegment   `yaml:"wheel"`
	Tasks           []models.Task           `yaml:"tasks"`
	Shop            []models.ShopItem       `yaml:"shop"`
	DiamondPackages []models.DiamondPackage `yaml:"diamond_packages"`
	Lottery         LotteryDefaults         `yaml:"lottery"`
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = raw
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	if len(c.Wheel) == 0 {
		return fmt.Errorf("catalog: wheel has no segments")
	}
	for i, s := range c.Wheel {
		if s.Weight <= 0 {
			return fmt.Errorf("catalog: wheel segment %d has non-positive weight", i)
		}
		if s.Reward < 0 {
			return fmt.Errorf("catalog: wheel segment %d has negative reward", i)
		}
	}

	seen := make(map[string]bool)
	for _, t := range c.Tasks {
		if t.ID == "" || seen[t.ID] {
			return fmt.Errorf("catalog: task id %q missing or duplicated", t.ID)
		}
		seen[t.ID] = true
		switch t.Kind {
		case models.TaskSpinMilestone, models.TaskVideo, models.TaskDailyCheckin, models.TaskSocial:
		default:
			return fmt.Errorf("catalog: task %s has unknown kind %q", t.ID, t.Kind)
		}
	}

	for _, item := range c.Shop {
		if item.Currency != models.CurrencyCoins && item.Currency != models.CurrencyDiamonds {
			return fmt.Errorf("catalog: shop item %s has unknown currency %q", item.ID, item.Currency)
		}
		if item.Price <= 0 {
			return fmt.Errorf("catalog: shop item %s has non-positive price", item.ID)
		}
	}

	for _, p := range c.DiamondPackages {
		if !p.Price.IsPositive() {
			return fmt.Errorf("catalog: diamond package %s has non-positive price", p.ID)
		}
	}

	l := c.Lottery
	if l.NumberCount <= 0 || l.MaxNumber < l.NumberCount || l.TicketPrice <= 0 {
		return fmt.Errorf("catalog: invalid lottery defaults")
	}
	if l.DrawEvery <= 0 {
		c.Lottery.DrawEvery = 24 * time.Hour
	}
	return nil
}
