package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 6, cfg.Sync.Workers)
	assert.Equal(t, "last-wins", cfg.Sync.ConflictPolicy)
	assert.Equal(t, 4, cfg.Sync.RetryAttempts)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "https://query1.finance.yahoo.com", cfg.Provider.BaseURL)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SYNC_WORKERS", "3")
	t.Setenv("SYNC_CALL_DELAY", "1s")
	t.Setenv("SYNC_LISTING_FILES", "nyse.txt, nasdaq.txt,,")
	t.Setenv("SYNC_REQUIRE_COMPANY", "true")
	t.Setenv("KAFKA_ENABLED", "1")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Sync.Workers)
	assert.Equal(t, time.Second, cfg.Sync.CallDelay)
	assert.Equal(t, []string{"nyse.txt", "nasdaq.txt"}, cfg.Sync.ListingFiles)
	assert.True(t, cfg.Sync.RequireCompany)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "sync.env")
	require.NoError(t, os.WriteFile(path, []byte("SYNC_BATCH_SIZE=25\nSYNC_CONFLICT_POLICY=exchange-priority\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("SYNC_BATCH_SIZE")
		os.Unsetenv("SYNC_CONFLICT_POLICY")
	})

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Sync.BatchSize)
	assert.Equal(t, "exchange-priority", cfg.Sync.ConflictPolicy)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero workers", "SYNC_WORKERS", "0"},
		{"negative batch", "SYNC_BATCH_SIZE", "-1"},
		{"jitter above one", "SYNC_RETRY_JITTER", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("BAD_INT", "abc")
	t.Setenv("BAD_DURATION", "ten")
	t.Setenv("BAD_BOOL", "maybe")

	assert.Equal(t, 7, getEnvInt("BAD_INT", 7))
	assert.Equal(t, time.Minute, getEnvDuration("BAD_DURATION", time.Minute))
	assert.True(t, getEnvBool("BAD_BOOL", true))
	assert.Equal(t, []string{"x"}, getEnvList("UNSET_LIST_KEY", []string{"x"}))
}
