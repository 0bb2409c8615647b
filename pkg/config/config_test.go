package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load("bookstore-test")
	require.NoError(t, err)

	assert.Equal(t, "bookstore-test", cfg.ServiceName)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.True(t, cfg.Ledger.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 24, cfg.JWT.ExpirationHours)
	assert.Equal(t, 5*time.Minute, cfg.Report.CacheTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("LEDGER_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REPORT_CACHE_TTL", "30s")

	cfg, err := Load("bookstore-test")
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, logger.Silent, cfg.DB.LogLevel)
	assert.False(t, cfg.Ledger.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Report.CacheTTL)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "your-super-secret-key-change-in-production")

	_, err := Load("bookstore-test")
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	pg := DBConfig{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", DBName: "books", SSLMode: "disable", TimeZone: "Asia/Jakarta"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=books sslmode=disable TimeZone=Asia/Jakarta", pg.GetDSN())

	my := DBConfig{Driver: "mysql", Host: "db", Port: "3306", User: "u", Password: "p", DBName: "books"}
	assert.Equal(t, "u:p@tcp(db:3306)/books?charset=utf8mb4&parseTime=True&loc=Local", my.GetDSN())

	override := DBConfig{Driver: "postgres", DSN: "postgres://x"}
	assert.Equal(t, "postgres://x", override.GetDSN())
}
