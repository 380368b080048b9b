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
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Calls      CallsConfig
	Leads      LeadsConfig
	Phone      PhoneConfig
	Stats      StatsConfig
	Exports    ExportsConfig
	MinIO      MinIOConfig
	SMTP       SMTPConfig
	RateLimit  RateLimitConfig
	ChangeFeed ChangeFeedConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CallsConfig holds the institution-wide call engagement gate.
type CallsConfig struct {
	MinValidDuration time.Duration
}

// LeadsConfig tunes lead intake.
type LeadsConfig struct {
	DefaultDepartment string
	ImportNamespace   string
}

// PhoneConfig drives dial link formatting.
type PhoneConfig struct {
	DefaultRegion string
	Length        int
}

// StatsConfig governs dashboard counter caching.
type StatsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExportsConfig controls forwarded queue exports.
type ExportsConfig struct {
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// MinIOConfig points at the evidence bucket.
type MinIOConfig struct {
	Enabled     bool
	Endpoint    string
	AccessKey   string
	SecretKey   string
	UseSSL      bool
	Bucket      string
	MaxFileSize int64
	URLTTL      time.Duration
}

// SMTPConfig configures outgoing notification mail.
type SMTPConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// RateLimitConfig throttles the public auth endpoints.
type RateLimitConfig struct {
	LoginPerMinute float64
	LoginBurst     int
}

// ChangeFeedConfig names the pub/sub channel carrying collection change notices.
type ChangeFeedConfig struct {
	Channel string
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calls = CallsConfig{
		MinValidDuration: parseDuration(v.GetString("CALL_MIN_VALID_DURATION"), 20*time.Second),
	}

	cfg.Leads = LeadsConfig{
		DefaultDepartment: v.GetString("LEADS_DEFAULT_DEPARTMENT"),
		ImportNamespace:   v.GetString("LEADS_IMPORT_NAMESPACE"),
	}

	cfg.Phone = PhoneConfig{
		DefaultRegion: v.GetString("PHONE_DEFAULT_REGION"),
		Length:        v.GetInt("PHONE_LENGTH"),
	}

	cfg.Stats = StatsConfig{
		CacheEnabled: v.GetBool("ENABLE_STATS_CACHE"),
		CacheTTL:     parseDuration(v.GetString("STATS_CACHE_TTL"), time.Minute),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	maxEvidence := v.GetInt64("MINIO_MAX_FILE_SIZE")
	if maxEvidence <= 0 {
		maxEvidence = 5 * 1024 * 1024
	}
	cfg.MinIO = MinIOConfig{
		Enabled:     v.GetBool("ENABLE_MINIO"),
		Endpoint:    v.GetString("MINIO_ENDPOINT"),
		AccessKey:   v.GetString("MINIO_ACCESS_KEY"),
		SecretKey:   v.GetString("MINIO_SECRET_KEY"),
		UseSSL:      v.GetBool("MINIO_USE_SSL"),
		Bucket:      v.GetString("MINIO_EVIDENCE_BUCKET"),
		MaxFileSize: maxEvidence,
		URLTTL:      parseDuration(v.GetString("MINIO_URL_TTL"), 15*time.Minute),
	}

	cfg.SMTP = SMTPConfig{
		Enabled:   v.GetBool("ENABLE_SMTP"),
		Host:      v.GetString("SMTP_HOST"),
		Port:      v.GetInt("SMTP_PORT"),
		Username:  v.GetString("SMTP_USERNAME"),
		Password:  v.GetString("SMTP_PASSWORD"),
		FromEmail: v.GetString("SMTP_FROM_EMAIL"),
		FromName:  v.GetString("SMTP_FROM_NAME"),
	}

	cfg.RateLimit = RateLimitConfig{
		LoginPerMinute: v.GetFloat64("RATE_LIMIT_LOGIN_PER_MINUTE"),
		LoginBurst:     v.GetInt("RATE_LIMIT_LOGIN_BURST"),
	}

	cfg.ChangeFeed = ChangeFeedConfig{Channel: v.GetString("CHANGEFEED_CHANNEL")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "admission_leads")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "admission-leads-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALL_MIN_VALID_DURATION", "20s")

	v.SetDefault("LEADS_DEFAULT_DEPARTMENT", "Computer Technology")
	v.SetDefault("LEADS_IMPORT_NAMESPACE", "6ba7b811-9dad-11d1-80b4-00c04fd430c8")

	v.SetDefault("PHONE_DEFAULT_REGION", "IN")
	v.SetDefault("PHONE_LENGTH", 10)

	v.SetDefault("ENABLE_STATS_CACHE", true)
	v.SetDefault("STATS_CACHE_TTL", "1m")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_MINIO", false)
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_EVIDENCE_BUCKET", "call-evidence")
	v.SetDefault("MINIO_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("MINIO_URL_TTL", "15m")

	v.SetDefault("ENABLE_SMTP", false)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM_EMAIL", "admissions@example.edu")
	v.SetDefault("SMTP_FROM_NAME", "Admissions Desk")

	v.SetDefault("RATE_LIMIT_LOGIN_PER_MINUTE", 10)
	v.SetDefault("RATE_LIMIT_LOGIN_BURST", 5)

	v.SetDefault("CHANGEFEED_CHANNEL", "leaddesk:changes")
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
