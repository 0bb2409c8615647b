package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Driver          string // postgres, mysql, sqlite
	DSN             string // overrides the per-field settings when set
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	TimeZone        string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the connection string for the configured driver
func (c *DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case "sqlite":
		return c.DBName + ".db?_foreign_keys=on"
	default:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode, c.TimeZone)
	}
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port          string
	Env           string
	AllowOrigins  string
	BodyLimitMB   int
	ShutdownGrace time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// LedgerConfig controls the stock_history audit table
type LedgerConfig struct {
	Enabled bool
}

// RedisConfig holds the report cache connection
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// KafkaConfig holds the domain event publisher settings
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	Retries int
	Acks    string
}

// ReportConfig holds reporting settings
type ReportConfig struct {
	CacheTTL time.Duration
}

// Config holds all configuration
type Config struct {
	ServiceName string
	Timezone    string
	DB          DBConfig
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Ledger      LedgerConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Report      ReportConfig
}

// Load loads configuration from environment variables (and .env when present)
func Load(serviceName string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	tz := getEnv("APP_TIMEZONE", "Asia/Jakarta")

	config := &Config{
		ServiceName: serviceName,
		Timezone:    tz,
		DB: DBConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "bookstore"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			TimeZone:        tz,
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port:          getEnv("PORT", "3000"),
			Env:           getEnv("APP_ENV", "development"),
			AllowOrigins:  getEnv("CORS_ALLOW_ORIGINS", "*"),
			BodyLimitMB:   getEnvAsInt("BODY_LIMIT_MB", 10),
			ShutdownGrace: getEnvAsDuration("SHUTDOWN_GRACE", 10*time.Second),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "bookstore"),
		},
		Ledger: LedgerConfig{
			Enabled: getEnvAsBool("LEDGER_ENABLED", true),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "bookstore.stock"),
			Retries: getEnvAsInt("KAFKA_RETRIES", 3),
			Acks:    getEnv("KAFKA_ACKS", "all"),
		},
		Report: ReportConfig{
			CacheTTL: getEnvAsDuration("REPORT_CACHE_TTL", 5*time.Minute),
		},
	}

	if config.Server.Env == "production" && config.JWT.SigningKey == "your-super-secret-key-change-in-production" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return config, nil
}

// Location resolves the configured timezone, falling back to WIB
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}

// LogFields returns the non-secret configuration as zap fields
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_driver", c.DB.Driver),
		zap.String("db_host", c.DB.Host),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.Bool("ledger_enabled", c.Ledger.Enabled),
		zap.Bool("redis_enabled", c.Redis.Enabled),
		zap.Bool("kafka_enabled", c.Kafka.Enabled),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	switch getEnv(key, "") {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
