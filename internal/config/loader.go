package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKTRACKER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKTRACKER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Gamma.BaseURL, "MARKTRACKER_GAMMA_BASE_URL")

	setStr(&cfg.Database.DSN, "MARKTRACKER_DATABASE_DSN")
	setStr(&cfg.Database.Host, "MARKTRACKER_DATABASE_HOST")
	setInt(&cfg.Database.Port, "MARKTRACKER_DATABASE_PORT")
	setStr(&cfg.Database.Database, "MARKTRACKER_DATABASE_NAME")
	setStr(&cfg.Database.User, "MARKTRACKER_DATABASE_USER")
	setStr(&cfg.Database.Password, "MARKTRACKER_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "MARKTRACKER_DATABASE_SSL_MODE")
	setBool(&cfg.Database.RunMigrations, "MARKTRACKER_DATABASE_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "MARKTRACKER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MARKTRACKER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKTRACKER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKTRACKER_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "MARKTRACKER_REDIS_TLS_ENABLED")

	setDuration(&cfg.Tracker.Interval, "MARKTRACKER_TRACKER_INTERVAL")
	setInt(&cfg.Tracker.FetchConcurrency, "MARKTRACKER_TRACKER_FETCH_CONCURRENCY")
	setBool(&cfg.Tracker.Autostart, "MARKTRACKER_TRACKER_AUTOSTART")

	setInt(&cfg.Server.Port, "MARKTRACKER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MARKTRACKER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MARKTRACKER_SERVER_API_KEY")

	setStr(&cfg.Notify.TelegramToken, "MARKTRACKER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARKTRACKER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MARKTRACKER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MARKTRACKER_NOTIFY_EVENTS")

	setStr(&cfg.LogLevel, "MARKTRACKER_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
