package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"roomchat/pkg/logger"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Chat     ChatConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string
	Env             string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	URL      string
	RedisURL string
}

type JWTConfig struct {
	Secret    []byte
	ExpiresIn time.Duration
}

type ChatConfig struct {
	HistoryCap       int
	TypingTimeout    time.Duration
	VerifyTimeout    time.Duration
	MaxMessageLength int
	ArchiveQueue     int
	SeedRooms        []SeedRoom
}

// SeedRoom is a room created at startup when it does not exist yet.
type SeedRoom struct {
	Name        string
	Description string
}

type LogConfig struct {
	Level string
}

const defaultSeedRooms = "General|General discussion for everyone;" +
	"Tech Talk|Discuss the latest technology trends;" +
	"Random|Random topics and casual chat"

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found or error loading .env file: %v", err)
	}

	cfg, err := load(os.LookupEnv)
	if err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}
	return cfg
}

func load(lookupEnv func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookupEnv}

	cfg := &Config{
		Server: ServerConfig{
			Port:            e.stringOr("PORT", ":8080"),
			Env:             e.stringOr("ENV", "development"),
			ReadTimeout:     e.durationOr("READ_TIMEOUT", "15s"),
			WriteTimeout:    e.durationOr("WRITE_TIMEOUT", "15s"),
			ShutdownTimeout: e.durationOr("SHUTDOWN_TIMEOUT", "30s"),
			AllowedOrigins:  splitList(e.stringOr("ALLOWED_ORIGINS", "*"), ","),
		},
		Database: DatabaseConfig{
			URL:      e.getenv("DATABASE_URL"),
			RedisURL: e.getenv("REDIS_URL"),
		},
		JWT: JWTConfig{
			Secret:    []byte(e.required("JWT_SECRET")),
			ExpiresIn: e.durationOr("JWT_EXPIRES_IN", "24h"),
		},
		Chat: ChatConfig{
			HistoryCap:       e.intOr("HISTORY_CAP", 100),
			TypingTimeout:    e.durationOr("TYPING_TIMEOUT", "3s"),
			VerifyTimeout:    e.durationOr("VERIFY_TIMEOUT", "5s"),
			MaxMessageLength: e.intOr("MAX_MESSAGE_LENGTH", 2000),
			ArchiveQueue:     e.intOr("ARCHIVE_QUEUE", 1024),
		},
		Log: LogConfig{
			Level: e.stringOr("LOG_LEVEL", "info"),
		},
	}

	if !strings.Contains(cfg.Server.Port, ":") {
		cfg.Server.Port = ":" + cfg.Server.Port
	}

	rawSeeds, ok := e.lookup("SEED_ROOMS")
	if !ok {
		rawSeeds = defaultSeedRooms
	}
	seeds, err := parseSeedRooms(rawSeeds)
	if err != nil {
		e.fail(err)
	}
	cfg.Chat.SeedRooms = seeds

	if cfg.Chat.HistoryCap <= 0 {
		e.fail(fmt.Errorf("HISTORY_CAP must be positive, got %d", cfg.Chat.HistoryCap))
	}
	if cfg.Chat.TypingTimeout <= 0 {
		e.fail(fmt.Errorf("TYPING_TIMEOUT must be positive"))
	}

	if e.err != nil {
		return nil, e.err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// parseSeedRooms reads "Name|Description;Name|Description". SEED_ROOMS set
// to an empty string disables seeding; unset falls back to the defaults.
func parseSeedRooms(raw string) ([]SeedRoom, error) {
	var rooms []SeedRoom
	for _, entry := range splitList(raw, ";") {
		name, desc, _ := strings.Cut(entry, "|")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid SEED_ROOMS entry %q", entry)
		}
		rooms = append(rooms, SeedRoom{Name: name, Description: strings.TrimSpace(desc)})
	}
	return rooms, nil
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// env collects the first lookup error so every getter can stay a one-liner.
type env struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *env) getenv(key string) string {
	value, _ := e.lookup(key)
	return value
}

func (e *env) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *env) stringOr(key, defaultValue string) string {
	if value := e.getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (e *env) required(key string) string {
	value := e.getenv(key)
	if value == "" {
		e.fail(fmt.Errorf("%s environment variable is required", key))
	}
	return value
}

func (e *env) durationOr(key, defaultValue string) time.Duration {
	value := e.stringOr(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		e.fail(fmt.Errorf("invalid duration for %s: %w", key, err))
	}
	return duration
}

func (e *env) intOr(key string, defaultValue int) int {
	value := e.getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		e.fail(fmt.Errorf("invalid integer for %s: %w", key, err))
	}
	return intValue
}
