package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server Server `mapstructure:"server" validate:"required"`
	Store  Store  `mapstructure:"store"  validate:"required"`
	Auth   Auth   `mapstructure:"auth"   validate:"required"`
	Task   Task   `mapstructure:"task"   validate:"required"`
	LLM    LLM    `mapstructure:"llm"`
}

// Server contains all server-related configuration settings.
type Server struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// Store selects and configures the persistence backend.
// Backend "memory" keeps all state in-process; "sql" persists task and
// flashcard-set records through database/sql.
type Store struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory sql"`

	// Driver is the database/sql driver when Backend is "sql":
	// "pgx" for Postgres or "sqlite" for a local file database.
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=pgx sqlite"`

	// DSN is the driver-specific connection string.
	DSN string `mapstructure:"dsn"`
}

// Auth contains all authentication and authorization settings.
type Auth struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gte=0"`
}

// Task contains worker pool and task lifecycle settings.
type Task struct {
	WorkerCount          int `mapstructure:"worker_count"           validate:"required,gt=0"`
	QueueSize            int `mapstructure:"queue_size"             validate:"required,gt=0"`
	StageTimeoutSeconds  int `mapstructure:"stage_timeout_seconds"  validate:"gte=0"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" validate:"gte=0"`
	RetentionHours       int `mapstructure:"retention_hours"        validate:"gte=0"`
}

// LLM contains all language-model integration settings. The Gemini API
// key is required at startup: the generation stage has no fallback.
type LLM struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}
