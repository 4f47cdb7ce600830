package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"BANKBRIDGE_APP_NAME":                os.Getenv("BANKBRIDGE_APP_NAME"),
		"BANKBRIDGE_APP_ENV":                 os.Getenv("BANKBRIDGE_APP_ENV"),
		"BANKBRIDGE_APP_PORT":                os.Getenv("BANKBRIDGE_APP_PORT"),
		"BANKBRIDGE_DATABASE_HOST":           os.Getenv("BANKBRIDGE_DATABASE_HOST"),
		"BANKBRIDGE_DATABASE_PORT":           os.Getenv("BANKBRIDGE_DATABASE_PORT"),
		"BANKBRIDGE_DATABASE_USER":           os.Getenv("BANKBRIDGE_DATABASE_USER"),
		"BANKBRIDGE_DATABASE_PASSWORD":       os.Getenv("BANKBRIDGE_DATABASE_PASSWORD"),
		"BANKBRIDGE_DATABASE_DBNAME":         os.Getenv("BANKBRIDGE_DATABASE_DBNAME"),
		"BANKBRIDGE_DATABASE_SSLMODE":        os.Getenv("BANKBRIDGE_DATABASE_SSLMODE"),
		"BANKBRIDGE_DATABASE_MAX_OPEN_CONNS": os.Getenv("BANKBRIDGE_DATABASE_MAX_OPEN_CONNS"),
		"BANKBRIDGE_DATABASE_MAX_IDLE_CONNS": os.Getenv("BANKBRIDGE_DATABASE_MAX_IDLE_CONNS"),
		"BANKBRIDGE_BANK_OAUTH_REDIRECT_URI": os.Getenv("BANKBRIDGE_BANK_OAUTH_REDIRECT_URI"),
		"BANKBRIDGE_STORAGE_ENABLED":         os.Getenv("BANKBRIDGE_STORAGE_ENABLED"),
		"BANKBRIDGE_STORAGE_BUCKET":          os.Getenv("BANKBRIDGE_STORAGE_BUCKET"),
		"BANKBRIDGE_JWT_SECRET":              os.Getenv("BANKBRIDGE_JWT_SECRET"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "bankbridge-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "bankbridge", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, 30*time.Second, cfg.Bank.RequestTimeout)
		assert.Equal(t, 15*time.Minute, cfg.Bank.CallbackTTL)
		assert.Equal(t, 5*time.Minute, cfg.Scheduler.PaymentStatusInterval)
		assert.Equal(t, 10*time.Minute, cfg.Scheduler.CategorizeInterval)
	})

	t.Run("loads values from environment variables with BANKBRIDGE prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("BANKBRIDGE_APP_NAME", "test-app")
		os.Setenv("BANKBRIDGE_APP_ENV", "testing")
		os.Setenv("BANKBRIDGE_APP_PORT", "9000")
		os.Setenv("BANKBRIDGE_DATABASE_HOST", "testdb.local")
		os.Setenv("BANKBRIDGE_DATABASE_PORT", "5433")
		os.Setenv("BANKBRIDGE_DATABASE_USER", "testuser")
		os.Setenv("BANKBRIDGE_DATABASE_PASSWORD", "testpass")
		os.Setenv("BANKBRIDGE_DATABASE_DBNAME", "testdb")
		os.Setenv("BANKBRIDGE_DATABASE_SSLMODE", "require")
		os.Setenv("BANKBRIDGE_BANK_OAUTH_REDIRECT_URI", "https://app.example.com/api/v1/bank/oauth/callback")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, "https://app.example.com/api/v1/bank/oauth/callback", cfg.Bank.OAuthRedirectURI)
	})

	t.Run("rejects idle conns above open conns", func(t *testing.T) {
		clearEnv()
		os.Setenv("BANKBRIDGE_DATABASE_MAX_OPEN_CONNS", "5")
		os.Setenv("BANKBRIDGE_DATABASE_MAX_IDLE_CONNS", "10")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects enabled storage without bucket", func(t *testing.T) {
		clearEnv()
		os.Setenv("BANKBRIDGE_STORAGE_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")
	})

	t.Run("production requires secrets", func(t *testing.T) {
		clearEnv()
		os.Setenv("BANKBRIDGE_APP_ENV", "production")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "bank",
		Password: "p@ss/word",
		DBName:   "bankbridge",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// Special characters in the password must be escaped
	assert.NotContains(t, dsn, "p@ss/word")
}
