package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env  string `env:"APP_ENV,default=development"`
	Port string `env:"PORT,default=8080"`

	RedisURL  string `env:"REDIS_URL,default=localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB,default=0"`

	// DatabaseURL enables the Postgres ledger archive when set.
	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY,default=24h"`

	CatalogPath string `env:"CATALOG_PATH"`

	MinWithdrawal          int64 `env:"MIN_WITHDRAWAL,default=1000"`
	AutoApproveWithdrawals bool  `env:"AUTO_APPROVE_WITHDRAWALS,default=false"`
	// CoinValue is the fiat value of one coin, shown in reports.
	CoinValue string `env:"COIN_VALUE,default=0.001"`

	PublicBaseURL     string `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	PaymentGatewayURL string `env:"PAYMENT_GATEWAY_URL,default=https://pay.example.com/checkout"`
	PaymentSecret     string `env:"PAYMENT_SECRET"`

	SMTPHost        string `env:"SMTP_HOST"`
	SMTPPort        int    `env:"SMTP_PORT,default=587"`
	SMTPUser        string `env:"SMTP_USER"`
	SMTPPass        string `env:"SMTP_PASS"`
	SMTPFrom        string `env:"SMTP_FROM"`
	ReportRecipient string `env:"REPORT_RECIPIENT"`

	MaintenanceSchedule string        `env:"MAINTENANCE_SCHEDULE,default=0 3 * * *"`
	ReportSchedule      string        `env:"REPORT_SCHEDULE,default=0 6 * * *"`
	Retention           time.Duration `env:"RETENTION,default=720h"`

	// AdminUserIDs are promoted to admin at startup. Semicolon separated.
	AdminUserIDs []string `env:"ADMIN_USER_IDS"`

	PublicRateLimit int `env:"PUBLIC_RATE_LIMIT,default=10"`
	PublicRateBurst int `env:"PUBLIC_RATE_BURST,default=20"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "development-secret"
	}
	if cfg.PaymentSecret == "" {
		cfg.PaymentSecret = cfg.JWTSecret
	}
	if cfg.MinWithdrawal <= 0 {
		return nil, fmt.Errorf("MIN_WITHDRAWAL must be positive, got %d", cfg.MinWithdrawal)
	}

	if _, err := cfg.CoinRate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) CoinRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.CoinValue)
	if err != nil || rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("COIN_VALUE must be a non-negative decimal, got %q", c.CoinValue)
	}
	return rate, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MailEnabled reports whether the daily report can be sent.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != "" && c.ReportRecipient != ""
}
