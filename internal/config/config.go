package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port    int
	Host    string
	SiteURL string

	// Database
	DatabaseURL string

	// JWT
	JWTSecret          string
	AccessTokenExpiry  int // seconds
	RefreshTokenExpiry int // seconds

	// Uploads
	UploadMaxSizeMB int

	// Storage settings secret (encrypts S3 credentials at rest).
	// Falls back to JWTSecret when empty.
	StorageSecret string

	// Rate limiting. TrustProxy controls whether X-Forwarded-For and
	// X-Real-IP identify the client for bucketing.
	TrustProxy        bool
	AuthRatePerSecond int
	AuthRateBurst     int
	APIRatePerSecond  int
	APIRateBurst      int

	// Maintenance scheduler
	SchedulerIntervalSeconds  int
	NotificationRetentionDays int
	AuditRetentionDays        int

	// Bootstrap admin
	AdminEmail    string
	AdminPassword string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                      getEnvInt("PORT", 8080),
		Host:                      getEnv("HOST", "0.0.0.0"),
		SiteURL:                   getEnv("SITE_URL", "http://localhost:3000"),
		DatabaseURL:               mustGetEnv("DATABASE_URL"),
		JWTSecret:                 mustGetEnv("JWT_SECRET"),
		AccessTokenExpiry:         getEnvInt("ACCESS_TOKEN_EXPIRY", 900),
		RefreshTokenExpiry:        getEnvInt("REFRESH_TOKEN_EXPIRY", 2592000),
		UploadMaxSizeMB:           getEnvInt("UPLOAD_MAX_SIZE_MB", 25),
		StorageSecret:             getEnv("STORAGE_SECRET", ""),
		TrustProxy:                getEnv("TRUST_PROXY", "") == "true",
		AuthRatePerSecond:         getEnvInt("AUTH_RATE_LIMIT", 5),
		AuthRateBurst:             getEnvInt("AUTH_RATE_BURST", 10),
		APIRatePerSecond:          getEnvInt("API_RATE_LIMIT", 30),
		APIRateBurst:              getEnvInt("API_RATE_BURST", 60),
		SchedulerIntervalSeconds:  getEnvInt("SCHEDULER_INTERVAL_SECONDS", 60),
		NotificationRetentionDays: getEnvInt("NOTIFICATION_RETENTION_DAYS", 90),
		AuditRetentionDays:        getEnvInt("AUDIT_RETENTION_DAYS", 365),
		AdminEmail:                getEnv("ADMIN_EMAIL", ""),
		AdminPassword:             getEnv("ADMIN_PASSWORD", ""),
	}

	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.AccessTokenExpiry <= 0 || cfg.RefreshTokenExpiry <= 0 {
		return nil, fmt.Errorf("token expiry values must be positive")
	}
	if cfg.RefreshTokenExpiry <= cfg.AccessTokenExpiry {
		return nil, fmt.Errorf("REFRESH_TOKEN_EXPIRY must be greater than ACCESS_TOKEN_EXPIRY")
	}
	if cfg.AuthRatePerSecond <= 0 || cfg.AuthRateBurst <= 0 || cfg.APIRatePerSecond <= 0 || cfg.APIRateBurst <= 0 {
		return nil, fmt.Errorf("rate limit values must be positive")
	}

	// Validate admin config: both or neither
	if (cfg.AdminEmail != "" && cfg.AdminPassword == "") || (cfg.AdminEmail == "" && cfg.AdminPassword != "") {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must both be set or both be empty")
	}
	if cfg.AdminPassword != "" && len(cfg.AdminPassword) < 8 {
		return nil, fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustGetEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
