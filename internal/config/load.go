package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variables, e.g.
// ANALYSIS_SERVER_PORT or ANALYSIS_DATABASE_URL.
const envPrefix = "ANALYSIS"

// Load configuration from environment variables and optionally a config
// file (config.yaml in the working directory). Environment variables take
// precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file; absence is not an error.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only visits keys viper already knows about, and
	// AutomaticEnv does not register any. Keys with a default are covered;
	// the rest (the secrets) must be bound explicitly or env-only
	// deployments would fail validation.
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// configKeys lists every configuration key so each one resolves from the
// environment even without a default or config file entry.
var configKeys = []string{
	"server.port",
	"server.log_level",
	"database.url",
	"auth.jwt_secret",
	"auth.token_lifetime_minutes",
	"auth.admin_password_hash",
	"inference.gemini_api_key",
	"inference.model_name",
	"inference.models_endpoint",
	"inference.probe_timeout_seconds",
	"inference.health_cache_ttl_minutes",
	"inference.requests_per_minute",
	"video.endpoint",
	"video.timeout_seconds",
	"worker.poll_interval_seconds",
	"worker.max_concurrent",
	"worker.stuck_task_age_minutes",
}

// setDefaults registers defaults for everything that has a sensible one.
// Secrets (database URL, API key, JWT secret, admin hash) have no default
// and must come from the environment or config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("inference.model_name", "gemini-2.0-flash")
	v.SetDefault(
		"inference.models_endpoint",
		"https://generativelanguage.googleapis.com/v1beta/models",
	)
	v.SetDefault("inference.probe_timeout_seconds", 5)
	v.SetDefault("inference.health_cache_ttl_minutes", 5)
	v.SetDefault("inference.requests_per_minute", 30)

	v.SetDefault("video.timeout_seconds", 120)

	v.SetDefault("worker.poll_interval_seconds", 60)
	v.SetDefault("worker.max_concurrent", 3)
	v.SetDefault("worker.stuck_task_age_minutes", 30)
}
