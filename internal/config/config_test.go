package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(TransactionService)
	require.NoError(t, err)

	assert.Equal(t, TransactionService, cfg.ServiceName)
	assert.Equal(t, "5002", cfg.Server.Port)
	assert.Equal(t, ":5002", cfg.Server.Addr())
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "transactions.db", cfg.Database.Path)
	assert.Equal(t, "http://localhost:5001", cfg.Services.UserServiceURL)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Validation)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Probe)
	assert.Equal(t, uint32(5), cfg.Breaker.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Breaker.CoolDown)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 100, cfg.Redis.WarmUp)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "6000")
	t.Setenv("USER_SERVICE_URL", "http://users.internal:8080/")
	t.Setenv("VALIDATION_TIMEOUT", "750ms")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load(Gateway)
	require.NoError(t, err)

	assert.Equal(t, "6000", cfg.Server.Port)
	assert.Equal(t, "http://users.internal:8080", cfg.Services.UserServiceURL)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeouts.Validation)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load(UserService)
	assert.ErrorContains(t, err, "DB_DRIVER")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", pg.DSN())

	lite := DatabaseConfig{Driver: "sqlite3", Path: "users.db"}
	assert.Contains(t, lite.DSN(), "users.db?")
}
