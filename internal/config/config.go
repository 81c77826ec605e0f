package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Inference InferenceConfig `mapstructure:"inference" validate:"required"`
	Video     VideoConfig     `mapstructure:"video"     validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker"    validate:"required"`
}

// ServerConfig contains all HTTP-server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains the admin authentication settings. The service only
// exposes administrative operations (force dispatch), so there is a single
// admin credential exchanged for a short-lived JWT.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	// AdminPasswordHash is the bcrypt hash of the admin credential.
	AdminPasswordHash string `mapstructure:"admin_password_hash" validate:"required"`
}

// InferenceConfig contains the settings for the external inference service
// used by the text analysis lane, and for the health probe that gates it.
type InferenceConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`

	// ModelsEndpoint is the availability endpoint probed by the health
	// monitor; the response is parsed for available model identifiers.
	ModelsEndpoint string `mapstructure:"models_endpoint" validate:"required,url"`

	// ProbeTimeoutSeconds bounds a single health probe.
	ProbeTimeoutSeconds int `mapstructure:"probe_timeout_seconds" validate:"required,gt=0"`

	// HealthCacheTTLMinutes is how long a health verdict is trusted before
	// the next access re-probes.
	HealthCacheTTLMinutes int `mapstructure:"health_cache_ttl_minutes" validate:"required,gt=0"`

	// RequestsPerMinute caps outbound inference calls; the external
	// service is rate limited.
	RequestsPerMinute int `mapstructure:"requests_per_minute" validate:"required,gt=0"`
}

// VideoConfig contains the settings for the video analysis pipeline, which
// does not depend on the gated inference service.
type VideoConfig struct {
	Endpoint       string `mapstructure:"endpoint"        validate:"required,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// WorkerConfig contains the dispatch scheduler settings.
type WorkerConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`
	MaxConcurrent       int `mapstructure:"max_concurrent"        validate:"required,gt=0"`

	// StuckTaskAgeMinutes defines how long a task can sit in processing
	// before the reclaim sweep resets it to pending.
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"required,gt=0"`
}
