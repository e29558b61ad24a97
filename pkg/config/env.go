package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// AppConfig holds the process settings read from the environment.
type AppConfig struct {
	TelegramToken string
	HTTPAddr      string

	FormServiceURL    string
	FormServiceAPIKey string
	FormLinkBase      string

	CatalogPath string

	StoreDriver string
	StoreDSN    string
	RedisURI    string

	DefaultLanguage     survey.Language
	ProbeTimeout        time.Duration
	CatalogTimeout      time.Duration
	MaxConcurrentProbes int
	RefreshDelay        time.Duration
	BackfillRemote      bool

	AdminToken    string
	WebhookSecret string
}

// Load reads AppConfig from the environment. Malformed numeric or duration
// values fall back to their defaults with a warning.
func Load() *AppConfig {
	return &AppConfig{
		TelegramToken:       getEnv("TELEGRAM_BOT_TOKEN", ""),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		FormServiceURL:      getEnv("FORM_SERVICE_URL", ""),
		FormServiceAPIKey:   getEnv("FORM_SERVICE_API_KEY", ""),
		FormLinkBase:        strings.TrimRight(getEnv("FORM_LINK_BASE", ""), "/"),
		CatalogPath:         getEnv("CATALOG_PATH", "catalog.yaml"),
		StoreDriver:         strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", StoreMemory))),
		StoreDSN:            getEnv("STORE_DSN", ""),
		RedisURI:            getEnv("REDIS_URI", "redis://localhost:6379/0"),
		DefaultLanguage:     survey.NormalizeLanguage(getEnv("DEFAULT_LANGUAGE", ""), survey.DefaultLanguage),
		ProbeTimeout:        getDuration("PROBE_TIMEOUT", 5*time.Second),
		CatalogTimeout:      getDuration("CATALOG_TIMEOUT", 10*time.Second),
		MaxConcurrentProbes: getInt("MAX_CONCURRENT_PROBES", 4),
		RefreshDelay:        getDuration("REFRESH_DELAY", 100*time.Millisecond),
		BackfillRemote:      getBool("BACKFILL_REMOTE_COMPLETIONS", true),
		AdminToken:          getEnv("ADMIN_TOKEN", ""),
		WebhookSecret:       getEnv("WEBHOOK_SECRET", ""),
	}
}

// Validate checks the settings the service cannot start without.
func (c *AppConfig) Validate() error {
	if c.FormServiceURL == "" {
		return fmt.Errorf("FORM_SERVICE_URL environment variable not set")
	}
	switch c.StoreDriver {
	case StoreMemory, StoreRedis:
	case StoreSQLite, StorePostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("STORE_DSN must be set for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if !survey.IsSupported(c.DefaultLanguage) {
		return fmt.Errorf("unsupported DEFAULT_LANGUAGE %q", c.DefaultLanguage)
	}
	if c.MaxConcurrentProbes < 1 {
		return fmt.Errorf("MAX_CONCURRENT_PROBES must be positive, got %d", c.MaxConcurrentProbes)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s %q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %t", key, raw, defaultValue)
		return defaultValue
	}
	return b
}
