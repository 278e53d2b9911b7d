package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"points-ledger/internal/models"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Points   PointsConfig
	Limits   LimitsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret      string
	ServiceAPIKey  string
	Production     bool
	BackupDir      string
	BackupInterval int // hours, 0 disables the backup job
}

// PointsConfig holds the point amounts granted or charged per action
type PointsConfig struct {
	JoinBonus     decimal.Decimal
	ReferralBonus decimal.Decimal
	AdView        decimal.Decimal
	DailyMin      decimal.Decimal
	DailyMax      decimal.Decimal
	AiFee         decimal.Decimal
	MinWithdraw   decimal.Decimal
	WithdrawFee   decimal.Decimal
	Floor         decimal.Decimal
}

// LimitsConfig holds cooldowns and earning caps per category
type LimitsConfig struct {
	CooldownSeconds map[string]int
	DailyCap        map[string]int
	AiDailyFree     int
	DailyEarnCap    decimal.Decimal
	WeeklyEarnCap   decimal.Decimal
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "points_ledger"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		App: AppConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			ServiceAPIKey:  getEnv("SERVICE_API_KEY", ""),
			Production:     getEnv("APP_ENV", "development") == "production",
			BackupDir:      getEnv("BACKUP_DIR", "backups"),
			BackupInterval: getEnvInt("BACKUP_INTERVAL_HOURS", 0),
		},
		Points: PointsConfig{
			JoinBonus:     getEnvDecimal("JOIN_BONUS", "5.00"),
			ReferralBonus: getEnvDecimal("REFERRAL_BONUS", "10.00"),
			AdView:        getEnvDecimal("AD_VIEW_REWARD", "3.00"),
			DailyMin:      getEnvDecimal("DAILY_REWARD_MIN", "5.00"),
			DailyMax:      getEnvDecimal("DAILY_REWARD_MAX", "20.00"),
			AiFee:         getEnvDecimal("AI_FEE", "0.50"),
			MinWithdraw:   getEnvDecimal("MIN_WITHDRAW", "100.00"),
			WithdrawFee:   getEnvDecimal("WITHDRAW_FEE", "1.00"),
			Floor:         getEnvDecimal("BALANCE_FLOOR", "0.00"),
		},
		Limits: LimitsConfig{
			CooldownSeconds: map[string]int{
				models.CategoryAdView: getEnvInt("AD_COOLDOWN_SECONDS", 300),
				models.CategoryDaily:  getEnvInt("DAILY_COOLDOWN_SECONDS", 86400),
				models.CategoryGame:   getEnvInt("GAME_COOLDOWN_SECONDS", 60),
			},
			DailyCap: map[string]int{
				models.CategoryAdView: getEnvInt("AD_DAILY_CAP", 20),
				models.CategoryGame:   getEnvInt("GAME_DAILY_CAP", 30),
			},
			AiDailyFree:   getEnvInt("AI_DAILY_FREE", 10),
			DailyEarnCap:  getEnvDecimal("DAILY_EARN_CAP", "100.00"),
			WeeklyEarnCap: getEnvDecimal("WEEKLY_EARN_CAP", "500.00"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.App.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Points.JoinBonus.IsNegative() || c.Points.ReferralBonus.IsNegative() {
		return fmt.Errorf("bonus amounts must not be negative")
	}
	if c.Points.DailyMax.LessThan(c.Points.DailyMin) {
		return fmt.Errorf("DAILY_REWARD_MAX must be >= DAILY_REWARD_MIN")
	}
	if c.Points.AiFee.IsNegative() || c.Points.WithdrawFee.IsNegative() {
		return fmt.Errorf("fees must not be negative")
	}
	if c.Points.MinWithdraw.LessThanOrEqual(c.Points.WithdrawFee) {
		return fmt.Errorf("MIN_WITHDRAW must exceed WITHDRAW_FEE")
	}
	for category, seconds := range c.Limits.CooldownSeconds {
		if seconds < 0 {
			return fmt.Errorf("cooldown for %s must not be negative", category)
		}
	}
	for category, limit := range c.Limits.DailyCap {
		if limit < 0 {
			return fmt.Errorf("daily cap for %s must not be negative", category)
		}
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		d, _ = decimal.NewFromString(defaultValue)
	}
	return d
}
