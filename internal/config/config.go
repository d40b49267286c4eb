// internal/config/config.go
//
// Environment-driven configuration for the bot process.
// main loads a .env file (godotenv) before calling Load, so both sources work.
//
// Notes:
//   - Load never fails; malformed numbers or lists are collected and reported
//     by Validate together with range checks.
//   - Game parameters default to the production values (7 hints, queue of 5,
//     30 minute cooldown, 60 minute reveal interval).

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robalobadob/itemguess/internal/game"
	"github.com/robalobadob/itemguess/internal/rewards"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds application configuration
type Config struct {
	Port     string
	LogLevel string

	// Chat platform
	DiscordToken      string
	TargetCategoryID  string
	WinsChannelID     string
	WinnerChannelID   string
	HintChannelID     string
	AdminRoleIDs      []string
	HintPingRoleIDs   []string
	GameEndPingRoleID string
	WinnerRoles       rewards.Table

	// Game
	RequiredHints      int
	MaxQueueSize       int
	GuessCooldown      time.Duration
	DefaultHintMinutes int
	MaxHintMinutes     int
	TickInterval       time.Duration
	AutoChain          bool

	// Persistence
	StoreDriver   string
	DataFile      string
	GameStateFile string
	DBPath        string
	DatabaseURL   string

	// Admin API
	JWTSecret         string
	AdminPasswordHash string

	errs []error
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	c := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DiscordToken:      os.Getenv("DISCORD_TOKEN"),
		TargetCategoryID:  os.Getenv("TARGET_CATEGORY_ID"),
		WinsChannelID:     os.Getenv("WINS_CHANNEL_ID"),
		WinnerChannelID:   os.Getenv("WINNER_ANNOUNCEMENT_CHANNEL_ID"),
		HintChannelID:     os.Getenv("HINT_CHANNEL_ID"),
		AdminRoleIDs:      getList("ADMIN_ROLE_IDS"),
		HintPingRoleIDs:   getList("HINT_PING_ROLE_IDS"),
		GameEndPingRoleID: os.Getenv("GAME_END_PING_ROLE_ID"),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverFile)),
		DataFile:      getEnv("DATA_FILE", "user_wins.json"),
		GameStateFile: getEnv("GAME_STATE_FILE", "game_state_queue.json"),
		DBPath:        getEnv("DB_PATH", "./data/bot.db"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		JWTSecret:         getEnv("JWT_SECRET", "dev_secret_change_me"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}

	c.RequiredHints = c.getInt("REQUIRED_HINTS", 7)
	c.MaxQueueSize = c.getInt("MAX_QUEUE_SIZE", 5)
	c.GuessCooldown = time.Duration(c.getInt("GUESS_COOLDOWN_MINUTES", 30)) * time.Minute
	c.DefaultHintMinutes = c.getInt("DEFAULT_HINT_MINUTES", 60)
	c.MaxHintMinutes = c.getInt("MAX_HINT_MINUTES", 60)
	c.TickInterval = time.Duration(c.getInt("TICK_SECONDS", 60)) * time.Second
	c.AutoChain = c.getBool("AUTO_CHAIN", true)

	tbl, err := rewards.ParseTable(os.Getenv("WINNER_ROLES"))
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("WINNER_ROLES: %w", err))
	}
	c.WinnerRoles = tbl
	return c
}

// Validate reports every malformed or out-of-range setting.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.errs...)
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.RequiredHints >= 1, "REQUIRED_HINTS must be at least 1, got %d", c.RequiredHints)
	check(c.MaxQueueSize >= 1, "MAX_QUEUE_SIZE must be at least 1, got %d", c.MaxQueueSize)
	check(c.GuessCooldown >= 0, "GUESS_COOLDOWN_MINUTES must not be negative")
	check(c.MaxHintMinutes >= 1, "MAX_HINT_MINUTES must be at least 1, got %d", c.MaxHintMinutes)
	check(c.DefaultHintMinutes >= 1 && c.DefaultHintMinutes <= c.MaxHintMinutes,
		"DEFAULT_HINT_MINUTES must be within [1, %d], got %d", c.MaxHintMinutes, c.DefaultHintMinutes)
	check(c.TickInterval > 0, "TICK_SECONDS must be positive")

	switch c.StoreDriver {
	case DriverMemory, DriverFile, DriverSQLite:
	case DriverPostgres, DriverMySQL:
		check(c.DatabaseURL != "", "DATABASE_URL is required for STORE_DRIVER=%s", c.StoreDriver)
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver))
	}
	return errors.Join(errs...)
}

// GameOptions returns the engine parameters.
func (c *Config) GameOptions() game.Options {
	return game.Options{
		RequiredHints:   c.RequiredHints,
		MaxQueueSize:    c.MaxQueueSize,
		Cooldown:        c.GuessCooldown,
		DefaultInterval: c.DefaultHintMinutes,
		MaxInterval:     c.MaxHintMinutes,
		AutoChain:       c.AutoChain,
		Rewards:         c.WinnerRoles,
	}
}

// Headless reports whether the chat connection is disabled.
func (c *Config) Headless() bool { return c.DiscordToken == "" }

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getList splits a comma separated variable, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (c *Config) getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}
