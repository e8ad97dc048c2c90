// Package config loads the settings recognized by the core (§6),
// grouped by the component that owns them.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BrokerConfig configures the broker subscription (§4.1, §6).
type BrokerConfig struct {
	Enabled        bool
	Host           string
	Port           int
	TopicFilter    string
	BaseTopic      string
	ClientIDPrefix string
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	URL string
}

// RedisConfig configures the Redis connection used by the worker pool
// and the rule→device association index.
type RedisConfig struct {
	Addr string
}

// WebhooksConfig holds the main and test webhook endpoints read from
// WEBHOOK_MAIN/WEBHOOK_TEST. A Webhook action does not fall back to
// them: it calls its own WebhookURL and fails when that is unset.
type WebhooksConfig struct {
	Main string
	Test string
}

// StateSyncConfig configures the state-sync worker (§4.4).
type StateSyncConfig struct {
	PollIntervalSeconds int
}

// AutomationConfig configures the automation engine's own cadence and
// the astronomy helper it uses for sun-position triggers.
type AutomationConfig struct {
	TickInterval        string // parsed with time.ParseDuration, default "30s"
	Latitude            float64
	Longitude           float64
	LookbackHours       int // default 24; the engine's cache warm-up uses a fixed 24h window and does not read it
}

// LoggingConfig configures the zap logger (internal/logging).
type LoggingConfig struct {
	Level       string // debug|info|warn|error
	Environment string // "local"|"production"
}

// Config is the full set of options the core recognizes.
type Config struct {
	Broker     BrokerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Webhooks   WebhooksConfig
	StateSync  StateSyncConfig
	Automation AutomationConfig
	Logging    LoggingConfig
}

// Load reads configuration from an optional config.yaml and the
// environment; environment variables take precedence over config.yaml.
// A .env file, if present, is loaded into the environment first and
// does not replace variables that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Missing .env is normal outside local development.
		_ = err
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("BROKER_ENABLED", true)
	v.SetDefault("BROKER_HOST", "localhost")
	v.SetDefault("BROKER_PORT", 1883)
	v.SetDefault("BROKER_TOPIC_FILTER", "sdhome/#")
	v.SetDefault("BROKER_BASE_TOPIC", "sdhome")
	v.SetDefault("BROKER_CLIENT_ID_PREFIX", "sdhome-core")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("STATE_SYNC_POLL_INTERVAL_SECONDS", 300)
	v.SetDefault("AUTOMATION_TICK_INTERVAL", "30s")
	v.SetDefault("AUTOMATION_LOOKBACK_HOURS", 24)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENVIRONMENT", "local")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config.yaml: %w", err)
		}
	}

	cfg := &Config{
		Broker: BrokerConfig{
			Enabled:        v.GetBool("BROKER_ENABLED"),
			Host:           v.GetString("BROKER_HOST"),
			Port:           v.GetInt("BROKER_PORT"),
			TopicFilter:    v.GetString("BROKER_TOPIC_FILTER"),
			BaseTopic:      v.GetString("BROKER_BASE_TOPIC"),
			ClientIDPrefix: v.GetString("BROKER_CLIENT_ID_PREFIX"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("DB_URL"),
		},
		Redis: RedisConfig{
			Addr: v.GetString("REDIS_ADDR"),
		},
		Webhooks: WebhooksConfig{
			Main: v.GetString("WEBHOOK_MAIN"),
			Test: v.GetString("WEBHOOK_TEST"),
		},
		StateSync: StateSyncConfig{
			PollIntervalSeconds: v.GetInt("STATE_SYNC_POLL_INTERVAL_SECONDS"),
		},
		Automation: AutomationConfig{
			TickInterval:  v.GetString("AUTOMATION_TICK_INTERVAL"),
			Latitude:      v.GetFloat64("AUTOMATION_LATITUDE"),
			Longitude:     v.GetFloat64("AUTOMATION_LONGITUDE"),
			LookbackHours: v.GetInt("AUTOMATION_LOOKBACK_HOURS"),
		},
		Logging: LoggingConfig{
			Level:       v.GetString("LOG_LEVEL"),
			Environment: v.GetString("LOG_ENVIRONMENT"),
		},
	}
	return cfg, nil
}
