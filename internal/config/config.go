package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gridmarket/gridmarket/internal/domain"
)

// Config holds all runtime configuration for the market service.
type Config struct {
	Port     int
	LogLevel string

	ClearingInterval    time.Duration
	ExpirySweepInterval time.Duration
	CommitTimeout       time.Duration
	CommitRetries       int
	FeeBps              int64
	ClearingEnabled     bool
	FeeAccount          string

	JWTSecret     string
	TokenTTL      time.Duration
	AdminName     string
	AdminPassword string

	DatabaseURL   string // empty → in-memory ledger
	GovernanceURL string // empty → never paused

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	clearingInterval, err := getDuration("CLEARING_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid CLEARING_INTERVAL: %w", err)
	}

	expirySweepInterval, err := getDuration("EXPIRY_SWEEP_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid EXPIRY_SWEEP_INTERVAL: %w", err)
	}

	commitTimeout, err := getDuration("COMMIT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid COMMIT_TIMEOUT: %w", err)
	}

	commitRetries, err := getInt("COMMIT_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid COMMIT_RETRIES: %w", err)
	}
	if commitRetries < 0 {
		return nil, fmt.Errorf("invalid COMMIT_RETRIES: must be >= 0")
	}

	feeBps, err := getInt("FEE_BPS", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid FEE_BPS: %w", err)
	}
	if feeBps < 0 || feeBps > domain.MaxFeeBps {
		return nil, fmt.Errorf("invalid FEE_BPS: must be in [0, %d]", domain.MaxFeeBps)
	}

	clearingEnabled, err := getBool("CLEARING_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("invalid CLEARING_ENABLED: %w", err)
	}

	tokenTTL, err := getDuration("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	jwtSecret := getStr("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:                port,
		LogLevel:            logLevel,
		ClearingInterval:    clearingInterval,
		ExpirySweepInterval: expirySweepInterval,
		CommitTimeout:       commitTimeout,
		CommitRetries:       commitRetries,
		FeeBps:              int64(feeBps),
		ClearingEnabled:     clearingEnabled,
		FeeAccount:          getStr("FEE_ACCOUNT", "market_fees"),
		JWTSecret:           jwtSecret,
		TokenTTL:            tokenTTL,
		AdminName:           getStr("ADMIN_NAME", "admin"),
		AdminPassword:       getStr("ADMIN_PASSWORD", ""),
		DatabaseURL:         getStr("DATABASE_URL", ""),
		GovernanceURL:       getStr("GOVERNANCE_URL", ""),
		ReadTimeout:         readTimeout,
		WriteTimeout:        writeTimeout,
		IdleTimeout:         idleTimeout,
		ShutdownTimeout:     shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
