package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	NATS       NATSConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Compliance ComplianceConfig
	Escalation EscalationConfig
	Notify     NotificationConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NATSConfig points at the broker used to hand alerts to the notification collaborator.
// An empty URL disables publishing and alerts are only logged.
type NATSConfig struct {
	URL     string
	Subject string
	Name    string
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ComplianceConfig tunes scanner windows and dashboard thresholds.
type ComplianceConfig struct {
	ExpiryWindowDays      int
	ReminderWindowDays    int
	TrafficLightThreshold int
	SnapshotPeriod        time.Duration
	BreachResponseDays    int
}

// EscalationConfig governs the periodic alert escalation sweep.
type EscalationConfig struct {
	Enabled   bool
	AgeLimit  time.Duration
	Interval  time.Duration
	LockTTL   time.Duration
	BatchSize int
}

// NotificationConfig configures the notification dispatch worker pool.
type NotificationConfig struct {
	DefaultChannel    string
	DefaultRecipient  string
	WorkerConcurrency int
	WorkerRetries     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.NATS = NATSConfig{
		URL:     v.GetString("NATS_URL"),
		Subject: v.GetString("NATS_ALERT_SUBJECT"),
		Name:    v.GetString("NATS_CLIENT_NAME"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		TokenTTL: parseDuration(v.GetString("JWT_TOKEN_TTL"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Compliance = ComplianceConfig{
		ExpiryWindowDays:      positiveOr(v.GetInt("COMPLIANCE_EXPIRY_WINDOW_DAYS"), 30),
		ReminderWindowDays:    positiveOr(v.GetInt("COMPLIANCE_REMINDER_WINDOW_DAYS"), 7),
		TrafficLightThreshold: positiveOr(v.GetInt("COMPLIANCE_TRAFFIC_LIGHT_THRESHOLD"), 5),
		SnapshotPeriod:        parseDuration(v.GetString("COMPLIANCE_SNAPSHOT_PERIOD"), 7*24*time.Hour),
		BreachResponseDays:    positiveOr(v.GetInt("COMPLIANCE_BREACH_RESPONSE_DAYS"), 7),
	}

	cfg.Escalation = EscalationConfig{
		Enabled:   v.GetBool("ENABLE_ESCALATION_SWEEP"),
		AgeLimit:  parseDuration(v.GetString("ESCALATION_AGE_LIMIT"), 14*24*time.Hour),
		Interval:  parseDuration(v.GetString("ESCALATION_INTERVAL"), time.Hour),
		LockTTL:   parseDuration(v.GetString("ESCALATION_LOCK_TTL"), 5*time.Minute),
		BatchSize: positiveOr(v.GetInt("ESCALATION_BATCH_SIZE"), 500),
	}

	cfg.Notify = NotificationConfig{
		DefaultChannel:    v.GetString("NOTIFY_DEFAULT_CHANNEL"),
		DefaultRecipient:  v.GetString("NOTIFY_DEFAULT_RECIPIENT"),
		WorkerConcurrency: v.GetInt("NOTIFY_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("NOTIFY_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rto_compliance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_ALERT_SUBJECT", "compliance.alerts.notify")
	v.SetDefault("NATS_CLIENT_NAME", "rto-compliance-api")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "rto-compliance-api")
	v.SetDefault("JWT_TOKEN_TTL", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("COMPLIANCE_EXPIRY_WINDOW_DAYS", 30)
	v.SetDefault("COMPLIANCE_REMINDER_WINDOW_DAYS", 7)
	v.SetDefault("COMPLIANCE_TRAFFIC_LIGHT_THRESHOLD", 5)
	v.SetDefault("COMPLIANCE_SNAPSHOT_PERIOD", "168h")
	v.SetDefault("COMPLIANCE_BREACH_RESPONSE_DAYS", 7)

	v.SetDefault("ENABLE_ESCALATION_SWEEP", true)
	v.SetDefault("ESCALATION_AGE_LIMIT", "336h")
	v.SetDefault("ESCALATION_INTERVAL", "1h")
	v.SetDefault("ESCALATION_LOCK_TTL", "5m")
	v.SetDefault("ESCALATION_BATCH_SIZE", 500)

	v.SetDefault("NOTIFY_DEFAULT_CHANNEL", "email")
	v.SetDefault("NOTIFY_DEFAULT_RECIPIENT", "compliance-team")
	v.SetDefault("NOTIFY_WORKER_CONCURRENCY", 2)
	v.SetDefault("NOTIFY_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
