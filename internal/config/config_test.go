package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EVENTS_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("EVENTS_MEMORY_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.App.Port)
	require.Equal(t, "post-service", cfg.App.Source)
	require.Equal(t, "kafka", cfg.Events.Driver)
	require.Equal(t, []string{"kafka:9092"}, cfg.Events.KafkaBrokers)
	require.Equal(t, 1000, cfg.Events.MemoryLimit)
	require.Equal(t, 5*time.Second, cfg.DB.TxTimeout)
}

func TestLoadMemoryNeedsLimit(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EVENTS_DRIVER", "memory")
	t.Setenv("EVENTS_MEMORY_LIMIT", "-1")

	_, err := Load()
	require.ErrorContains(t, err, "EVENTS_MEMORY_LIMIT")
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: "9000"
  source: feed-service
db:
  tx_timeout: 2s
events:
  driver: kafka
  kafka_brokers: ["k1:9092", "k2:9092"]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("EVENTS_DRIVER", "")
	t.Setenv("OTEL_ENABLED", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9100", cfg.App.Port)
	require.Equal(t, "feed-service", cfg.App.Source)
	require.Equal(t, 2*time.Second, cfg.DB.TxTimeout)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	require.True(t, cfg.Tracing.Enabled)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EVENTS_DRIVER", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRedisNeedsAddr(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EVENTS_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "")

	_, err := Load()
	require.ErrorContains(t, err, "REDIS_ADDR")
}

func TestEnvBool(t *testing.T) {
	t.Setenv("FLAG_A", "on")
	t.Setenv("FLAG_B", "off")
	t.Setenv("FLAG_C", "maybe")
	require.True(t, envBool("FLAG_A", false))
	require.False(t, envBool("FLAG_B", true))
	require.True(t, envBool("FLAG_C", true))
}
