package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port      string
	Env       string
	StaticDir string

	// Canvas
	Width    int
	Height   int
	Cooldown time.Duration

	// CORS
	CORSOrigin string

	// TrustProxy takes actor identity from Fly-Client-IP, X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxy bool

	// Storage
	DatabaseURL string // Postgres; SQLite is used when empty
	SQLitePath  string
	RedisURL    string // Shared rate-limit state; in-memory when empty

	// Request volume limit on POST /api/place
	PlaceRateLimit  int
	PlaceRateWindow time.Duration

	// Warnings collects problems found while parsing, for logging once the
	// logger exists.
	Warnings []string
}

// Load reads configuration from environment variables.
// It loads a .env file first if one is present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		Env:         getEnv("ENV", "development"),
		StaticDir:   getEnv("STATIC_DIR", "public"),
		CORSOrigin:  getEnv("CORS_ORIGIN", "*"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/pixels.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	cfg.Width = cfg.getInt("CANVAS_WIDTH", 300)
	cfg.Height = cfg.getInt("CANVAS_HEIGHT", 150)
	cfg.Cooldown = time.Duration(cfg.getInt("COOLDOWN_MS", 5000)) * time.Millisecond
	cfg.TrustProxy = cfg.getBool("TRUST_PROXY_HEADERS", false)
	cfg.PlaceRateLimit = cfg.getInt("PLACE_RATE_LIMIT", 60)
	cfg.PlaceRateWindow = time.Duration(cfg.getInt("PLACE_RATE_WINDOW_MS", 60000)) * time.Millisecond

	return cfg
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("canvas size must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must not be negative, got %s", c.Cooldown))
	}
	if c.PlaceRateLimit <= 0 || c.PlaceRateWindow <= 0 {
		errs = append(errs, errors.New("place rate limit and window must be positive"))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// CORSOrigins splits CORS_ORIGIN on commas.
func (c *Config) CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func (c *Config) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not an integer, using %d", key, value, defaultValue))
		return defaultValue
	}
	return n
}

func (c *Config) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%s=%q is not a boolean, using %t", key, value, defaultValue))
		return defaultValue
	}
	return b
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
