package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"FARUM_PORT", "PORT", "FARUM_SESSION_BACKEND", "FARUM_STORAGE_BACKEND",
		"FARUM_SESSION_IDLE_TIMEOUT", "FARUM_LEXICON_WATCH", "OTEL_ENABLED", "OTEL_SAMPLE_RATIO",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, SessionMemory, cfg.SessionBackend)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, time.Minute, cfg.JanitorInterval)
	assert.False(t, cfg.OTelEnabled)
	assert.Equal(t, 1.0, cfg.OTelSampleRatio)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FARUM_PORT", "9090")
	t.Setenv("FARUM_SESSION_BACKEND", "redis")
	t.Setenv("FARUM_REDIS_DB", "3")
	t.Setenv("FARUM_STORAGE_BACKEND", "sqlite")
	t.Setenv("FARUM_SQLITE_PATH", "/tmp/farum.db")
	t.Setenv("FARUM_SESSION_IDLE_TIMEOUT", "45m")
	t.Setenv("FARUM_LEXICON_PATH", "/etc/farum/lexicon.yaml")
	t.Setenv("FARUM_LEXICON_WATCH", "true")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, SessionRedis, cfg.SessionBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, StorageSQLite, cfg.StorageBackend)
	assert.Equal(t, 45*time.Minute, cfg.SessionIdleTimeout)
	assert.True(t, cfg.LexiconWatch)
	assert.Equal(t, 0.25, cfg.OTelSampleRatio)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("FARUM_SESSION_IDLE_TIMEOUT", "soon")
	t.Setenv("FARUM_REDIS_DB", "zero")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FARUM_SESSION_IDLE_TIMEOUT")
	assert.Contains(t, err.Error(), "FARUM_REDIS_DB")
}

func TestValidate(t *testing.T) {
	base := Config{
		SessionBackend:     SessionMemory,
		StorageBackend:     StorageMemory,
		SessionIdleTimeout: time.Minute,
		JanitorInterval:    time.Minute,
		OTelSampleRatio:    1,
	}
	require.NoError(t, base.Validate())

	firestore := base
	firestore.StorageBackend = StorageFirestore
	assert.ErrorContains(t, firestore.Validate(), "FARUM_GCP_PROJECT")

	unknown := base
	unknown.SessionBackend = "memcached"
	assert.ErrorContains(t, unknown.Validate(), "FARUM_SESSION_BACKEND")

	watch := base
	watch.LexiconWatch = true
	assert.ErrorContains(t, watch.Validate(), "FARUM_LEXICON_PATH")
}
