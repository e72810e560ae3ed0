package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Database settings
	DatabasePath string
	BackupPath   string

	// Logging settings
	LogLevel  string
	LogFormat string
	LogFile   string

	// Cache settings
	CacheSize int
	CacheTTL  time.Duration

	// Portal settings
	PortalURL string
	LoginURL  string

	// Browser settings
	HeadlessMode bool
	UserAgent    string
	BrowserPath  string

	// Interaction settings
	ElementTimeout time.Duration
	ShortTimeout   time.Duration
	PollInterval   time.Duration
	ClickAttempts  int
	ClickBackoff   time.Duration
	PartyInterval  time.Duration

	// LoginTimeout bounds the wait for the manual e-signature login.
	LoginTimeout time.Duration
	// RunTimeout bounds one query or extraction run started over HTTP.
	RunTimeout time.Duration

	MetricsEnabled bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:         getEnv("HOST", "0.0.0.0"),
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./data/icra_takip.db"),
		BackupPath:   getEnv("BACKUP_PATH", "./data/sorgu_sonuclari.json"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
		LogFile:      getEnv("LOG_FILE", ""),
		PortalURL:    getEnv("UYAP_PORTAL_URL", "https://avukatbeta.uyap.gov.tr"),
		LoginURL:     getEnv("UYAP_LOGIN_URL", "https://avukatbeta.uyap.gov.tr/giris"),
		UserAgent:    getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		BrowserPath:  getEnv("ROD_BROWSER_PATH", ""),
	}

	var err error
	cfg.CacheSize, err = strconv.Atoi(getEnv("CACHE_SIZE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIZE: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("CACHE_TTL", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = time.Duration(cacheTTL) * time.Minute

	// UYAP needs a visible browser for the e-signature login.
	cfg.HeadlessMode = getEnv("HEADLESS_MODE", "false") == "true"
	cfg.MetricsEnabled = getEnv("METRICS_ENABLED", "true") == "true"

	elementTimeout, err := strconv.Atoi(getEnv("ELEMENT_TIMEOUT", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid ELEMENT_TIMEOUT: %w", err)
	}
	cfg.ElementTimeout = time.Duration(elementTimeout) * time.Second

	shortTimeout, err := strconv.Atoi(getEnv("SHORT_TIMEOUT", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHORT_TIMEOUT: %w", err)
	}
	cfg.ShortTimeout = time.Duration(shortTimeout) * time.Second

	pollInterval, err := strconv.Atoi(getEnv("POLL_INTERVAL_MS", "250"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL_MS: %w", err)
	}
	cfg.PollInterval = time.Duration(pollInterval) * time.Millisecond

	cfg.ClickAttempts, err = strconv.Atoi(getEnv("CLICK_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLICK_ATTEMPTS: %w", err)
	}
	if cfg.ClickAttempts < 1 {
		return nil, fmt.Errorf("invalid CLICK_ATTEMPTS: must be at least 1, got %d", cfg.ClickAttempts)
	}

	clickBackoff, err := strconv.Atoi(getEnv("CLICK_BACKOFF_MS", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLICK_BACKOFF_MS: %w", err)
	}
	cfg.ClickBackoff = time.Duration(clickBackoff) * time.Millisecond

	partyInterval, err := strconv.Atoi(getEnv("PARTY_INTERVAL_MS", "2000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PARTY_INTERVAL_MS: %w", err)
	}
	cfg.PartyInterval = time.Duration(partyInterval) * time.Millisecond

	loginTimeout, err := strconv.Atoi(getEnv("LOGIN_TIMEOUT", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_TIMEOUT: %w", err)
	}
	cfg.LoginTimeout = time.Duration(loginTimeout) * time.Second

	runTimeout, err := strconv.Atoi(getEnv("RUN_TIMEOUT", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_TIMEOUT: %w", err)
	}
	cfg.RunTimeout = time.Duration(runTimeout) * time.Minute

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
