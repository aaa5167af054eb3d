// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"balance-ledger/pkg/db"
	"balance-ledger/pkg/lock"
)

// Storage and lock drivers.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	LockLocal       = "local"
	LockRedis       = "redis"
)

// MinRedisLockTTL is the shortest lease accepted for the redis lock driver.
// Leases are not renewed, so they must outlive the 30s HTTP handler timeout.
const MinRedisLockTTL = 30 * time.Second

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	LogLevel   string

	Storage StorageConfig
	DB      db.Config
	Lock    LockConfig

	// AdminKeyHash is the bcrypt hash of the X-Admin-Key header value.
	// Admin routes reject every request while it is empty.
	AdminKeyHash string

	Currency        string
	BonusAmount     decimal.Decimal
	CashoutAmounts  []decimal.Decimal
	WithdrawAmounts []decimal.Decimal

	// SweepSchedule is a cron spec for the orphaned upload sweeper. Empty disables it.
	SweepSchedule string
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver         string
	DataDir        string
	UploadDir      string
	UploadMaxBytes int64
}

// LockConfig selects and configures the per-key lock.
type LockConfig struct {
	Driver string
	TTL    time.Duration
	Redis  lock.RedisConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("STORAGE_DRIVER", StorageFile)
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 5*1024*1024)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "ledgerdb")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("LOCK_DRIVER", LockLocal)
	v.SetDefault("LOCK_TTL", "45s")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ADMIN_KEY_HASH", "")
	v.SetDefault("CURRENCY", "GHS")
	v.SetDefault("BONUS_AMOUNT", "10.00")
	v.SetDefault("CASHOUT_AMOUNTS", "100,300,500")
	v.SetDefault("WITHDRAW_AMOUNTS", "")
	v.SetDefault("SWEEP_SCHEDULE", "@every 1h")
}

// LoadConfig loads configuration from the environment, after preloading a
// .env file from the working directory when one exists.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		ServerPort: strings.TrimSpace(v.GetString("SERVER_PORT")),
		LogLevel:   strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		Storage: StorageConfig{
			Driver:         strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
			DataDir:        v.GetString("DATA_DIR"),
			UploadDir:      v.GetString("UPLOAD_DIR"),
			UploadMaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		DB: db.Config{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Lock: LockConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("LOCK_DRIVER"))),
			TTL:    v.GetDuration("LOCK_TTL"),
			Redis: lock.RedisConfig{
				Addr:     v.GetString("REDIS_ADDR"),
				Password: v.GetString("REDIS_PASSWORD"),
				DB:       v.GetInt("REDIS_DB"),
			},
		},
		AdminKeyHash:  strings.TrimSpace(v.GetString("ADMIN_KEY_HASH")),
		Currency:      strings.ToUpper(strings.TrimSpace(v.GetString("CURRENCY"))),
		SweepSchedule: strings.TrimSpace(v.GetString("SWEEP_SCHEDULE")),
	}

	var err error
	if cfg.BonusAmount, err = decimal.NewFromString(strings.TrimSpace(v.GetString("BONUS_AMOUNT"))); err != nil {
		return nil, fmt.Errorf("invalid BONUS_AMOUNT: %w", err)
	}
	if cfg.CashoutAmounts, err = parseAmounts(v.GetString("CASHOUT_AMOUNTS")); err != nil {
		return nil, fmt.Errorf("invalid CASHOUT_AMOUNTS: %w", err)
	}
	if cfg.WithdrawAmounts, err = parseAmounts(v.GetString("WITHDRAW_AMOUNTS")); err != nil {
		return nil, fmt.Errorf("invalid WITHDRAW_AMOUNTS: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseAmounts reads a comma separated list of positive amounts.
func parseAmounts(raw string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := decimal.NewFromString(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		if !d.IsPositive() {
			return nil, fmt.Errorf("%q must be positive", part)
		}
		out = append(out, d)
	}
	return out, nil
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("invalid SERVER_PORT %q", c.ServerPort)
	}
	switch c.Storage.Driver {
	case StorageFile:
		if c.Storage.DataDir == "" {
			return errors.New("DATA_DIR is required for the file storage driver")
		}
	case StoragePostgres:
		if c.DB.Host == "" || c.DB.DBName == "" {
			return errors.New("DB_HOST and DB_NAME are required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Storage.UploadDir == "" {
		return errors.New("UPLOAD_DIR is required")
	}
	if c.Storage.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	switch c.Lock.Driver {
	case LockLocal:
	case LockRedis:
		if c.Lock.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required for the redis lock driver")
		}
		if c.Lock.TTL <= MinRedisLockTTL {
			return fmt.Errorf("LOCK_TTL must exceed %s for the redis lock driver", MinRedisLockTTL)
		}
	default:
		return fmt.Errorf("unknown LOCK_DRIVER %q", c.Lock.Driver)
	}
	if c.Currency == "" {
		return errors.New("CURRENCY is required")
	}
	if c.BonusAmount.IsNegative() {
		return errors.New("BONUS_AMOUNT must not be negative")
	}
	return nil
}
