package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/cicilan")
	t.Setenv("AUTH0_DOMAIN", "cicilan.auth0.test")
	t.Setenv("AUTH0_AUDIENCE", "https://api.cicilan.test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, "@every 1h", cfg.OverdueSweepSchedule)
	assert.True(t, cfg.OverdueSweepRunOnStart)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 24*time.Hour, cfg.SummaryTTL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.S3.Bucket)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RETRY_ATTEMPTS", "5")
	t.Setenv("RETRY_BACKOFF", "200ms")
	t.Setenv("OVERDUE_SWEEP_SCHEDULE", "5 0 * * *")
	t.Setenv("OVERDUE_SWEEP_RUN_ON_START", "false")
	t.Setenv("CORS_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, "5 0 * * *", cfg.OverdueSweepSchedule)
	assert.False(t, cfg.OverdueSweepRunOnStart)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_SQLiteDoesNotNeedDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/ledger.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ledger.db", cfg.SQLitePath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"missing database url", "DATABASE_URL", ""},
		{"missing auth0 domain", "AUTH0_DOMAIN", ""},
		{"unknown store driver", "STORE_DRIVER", "mysql"},
		{"non-numeric retry attempts", "RETRY_ATTEMPTS", "three"},
		{"zero retry attempts", "RETRY_ATTEMPTS", "0"},
		{"bad backoff", "RETRY_BACKOFF", "soon"},
		{"bad run on start", "OVERDUE_SWEEP_RUN_ON_START", "maybe"},
		{"zero rate limit", "RATE_LIMIT_PER_MINUTE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
