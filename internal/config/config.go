package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the broker and supporting services.
type Config struct {
	BotToken string
	MySQLDSN string

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAITemperature float32
	OpenAIMaxTokens   int
	RequestTimeout    time.Duration

	FreeGenerations            int
	PremiumGenerationsPerMonth int
	PremiumPrice               int
	PremiumDefaultDays         int

	GeneratedBotsDir string

	AdminListenAddr string
	AdminUsername   string
	AdminPassword   string
	AdminUserIDs    []int64

	LockBackend  string
	RedisURL     string
	LockTTL      time.Duration
	PendingSweep time.Duration

	MaintenanceSchedule string

	LogFormat string
	LogLevel  string

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Load reads configuration from an optional env file and environment variables,
// applying defaults. Required variables are checked by Validate.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultOpenAIBaseURL = "https://api.openai.com/v1"

	cfg := Config{
		BotToken:                   os.Getenv("TELEGRAM_BOT_TOKEN"),
		MySQLDSN:                   os.Getenv("MYSQL_DSN"),
		OpenAIAPIKey:               os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:              normalizeBaseURL(getEnv("OPENAI_BASE_URL", defaultOpenAIBaseURL), defaultOpenAIBaseURL),
		OpenAIModel:                getEnv("OPENAI_MODEL", "gpt-4"),
		OpenAITemperature:          getFloat32("OPENAI_TEMPERATURE", 0.7),
		OpenAIMaxTokens:            getInt("OPENAI_MAX_TOKENS", 4000),
		RequestTimeout:             time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 120)),
		FreeGenerations:            getInt("FREE_GENERATIONS", 2),
		PremiumGenerationsPerMonth: getInt("PREMIUM_GENERATIONS_PER_MONTH", 50),
		PremiumPrice:               getInt("PREMIUM_PRICE", 299),
		PremiumDefaultDays:         getInt("PREMIUM_DEFAULT_DAYS", 30),
		GeneratedBotsDir:           getEnv("GENERATED_BOTS_DIR", "generated_bots"),
		AdminListenAddr:            getEnv("ADMIN_LISTEN_ADDR", ":8080"),
		AdminUsername:              getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:              getEnv("ADMIN_PASSWORD", "change-me"),
		AdminUserIDs:               getInt64List("ADMIN_USER_IDS"),
		LockBackend:                strings.ToLower(getEnv("LOCK_BACKEND", LockBackendLocal)),
		RedisURL:                   getEnv("REDIS_URL", "redis://localhost:6379/0"),
		LockTTL:                    time.Second * time.Duration(getInt("LOCK_TTL_SECONDS", 600)),
		PendingSweep:               time.Minute * time.Duration(getInt("PENDING_SWEEP_MINUTES", 30)),
		MaintenanceSchedule:        getEnv("MAINTENANCE_SCHEDULE", "@every 10m"),
		LogFormat:                  strings.ToLower(getEnv("LOG_FORMAT", "json")),
		LogLevel:                   strings.ToLower(getEnv("LOG_LEVEL", "info")),
		S3Endpoint:                 os.Getenv("S3_ENDPOINT"),
		S3Region:                   os.Getenv("S3_REGION"),
		S3AccessKey:                os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:                os.Getenv("S3_SECRET_KEY"),
		S3Bucket:                   os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:            os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:             getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:                   getEnv("S3_PREFIX", "bundles"),
	}

	return cfg, nil
}

// Validate reports every missing required variable at once. The front-end
// credentials are only required when the bot itself is served.
func (c Config) Validate(requireFrontend bool) error {
	var missing []string
	if c.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if requireFrontend {
		if c.BotToken == "" {
			missing = append(missing, "TELEGRAM_BOT_TOKEN")
		}
		if c.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	}
	if c.S3Enabled() {
		if c.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if c.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if c.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if c.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	switch c.LockBackend {
	case LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("unsupported LOCK_BACKEND: %s", c.LockBackend)
	}
	if c.FreeGenerations < 0 || c.PremiumGenerationsPerMonth < 0 {
		return fmt.Errorf("generation limits must be non-negative")
	}
	return nil
}

// S3Enabled reports whether bundle archives should be uploaded to object storage.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// normalizeBaseURL adds a scheme to bare hosts and strips the trailing slash.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed, err = url.Parse("https://" + raw)
		if err != nil {
			return fallback
		}
	}

	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
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

func getFloat32(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getInt64List parses a comma separated id list, skipping malformed entries.
func getInt64List(key string) []int64 {
	var ids []int64
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// Plain environment variables are enough in containers.
	return nil
}
