package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env
	unsetenv(t, "DATABASE_URL", "ENRICH_WORKERS", "REDACT_ATTRIBUTES", "REDIS_ADDR", "HASH_ALGORITHM")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite://adru-export.db", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.EnrichWorkers)
	assert.Equal(t, "N°", cfg.EnrichKeyColumn)
	assert.Equal(t, "md5", cfg.HashAlgorithm)
	assert.Equal(t, 2*time.Second, cfg.ProgressInterval)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.RedactAttributes)
}

// unsetenv removes keys for the duration of the test. An empty but set
// variable does not fall back to its default.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "") // registers the restore
		os.Unsetenv(key)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/adru")
	t.Setenv("ENRICH_WORKERS", "3")
	t.Setenv("REDACT_ATTRIBUTES", "NID_DRIVER,NID_OPERATIONAL")
	t.Setenv("PROGRESS_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/adru", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.EnrichWorkers)
	assert.Equal(t, []string{"NID_DRIVER", "NID_OPERATIONAL"}, cfg.RedactAttributes)
	assert.Equal(t, 500*time.Millisecond, cfg.ProgressInterval)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("ENRICH_WORKERS", "0")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ENRICH_WORKERS", "many")
	_, err = Load()
	assert.Error(t, err)
}
