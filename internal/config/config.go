package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything both binaries read from the environment.
// Server-only and relay-only fields are simply unused by the other process.
type Config struct {
	// Telegram MTProto credentials (server).
	APIID       int32
	APIHash     string
	BotToken    string
	PhoneNumber string // interactive login fallback when BotToken is empty
	SessionFile string

	// HTTP server.
	Port         int
	UploadDir    string
	MaxFileBytes int64
	FetchTimeout time.Duration

	// Rate limiting (fixed window, Redis-backed). RateMax <= 0 disables it.
	RateWindow time.Duration
	RateMax    int
	RedisAddr  string

	// Relay.
	ServerURL string
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func mustDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

// Load reads the configuration from the environment. Call godotenv.Load first.
func Load() Config {
	maxMB := mustInt("MAX_FILE_SIZE_MB", 2048)
	return Config{
		APIID:       int32(mustInt("API_ID", 0)),
		APIHash:     os.Getenv("API_HASH"),
		BotToken:    os.Getenv("BOT_TOKEN"),
		PhoneNumber: os.Getenv("PHONE_NUMBER"),
		SessionFile: getenv("SESSION_FILE", "session.dat"),

		Port:         mustInt("PORT", 8080),
		UploadDir:    getenv("UPLOAD_DIR", "upload"),
		MaxFileBytes: int64(maxMB) * 1024 * 1024,
		FetchTimeout: mustDuration("REQUEST_TIMEOUT", 5*time.Minute),

		RateWindow: mustDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateMax:    mustInt("RATE_LIMIT_MAX", 0),
		RedisAddr:  getenv("REDIS_ADDR", "localhost:6379"),

		ServerURL: strings.TrimRight(getenv("SERVER_URL", "http://localhost:8080"), "/"),
	}
}

// ValidateServer checks the fields the server cannot run without.
func (c Config) ValidateServer() error {
	if c.APIID == 0 || c.APIHash == "" {
		return errors.New("API_ID and API_HASH are required")
	}
	if c.BotToken == "" && c.PhoneNumber == "" {
		return errors.New("BOT_TOKEN or PHONE_NUMBER is required")
	}
	return nil
}

// ValidateRelay checks the fields the relay cannot run without.
func (c Config) ValidateRelay() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	return nil
}
