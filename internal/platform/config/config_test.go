package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("MOVETRACK_CONFIG", "")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "movetrack.external-actions", cfg.Kafka.ActionsTopic)
	assert.Equal(t, 10, cfg.Delivery.MaxAttempts)
	assert.Empty(t, cfg.Database.Driver)
	assert.Equal(t, 20.0, cfg.Server.IntakeRatePerSecond)
	assert.Equal(t, 40, cfg.Server.IntakeBurst)
}

func TestIntakeRateFromEnv(t *testing.T) {
	t.Setenv("MOVETRACK_CONFIG", "")
	t.Setenv("INTAKE_RATE_PER_SECOND", "0")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Zero(t, cfg.Server.IntakeRatePerSecond)

	t.Setenv("INTAKE_RATE_PER_SECOND", "fast")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "INTAKE_RATE_PER_SECOND")
}

func TestFileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movetrack.yaml")
	file := `
server:
  addr: ":9090"
database:
  driver: sqlite
  dsn: "file:movetrack.db"
delivery:
  max_attempts: 3
  poll_interval: 5s
kafka:
  brokers: ["a:9092"]
`
	require.NoError(t, os.WriteFile(path, []byte(file), 0o600))
	t.Setenv("MOVETRACK_CONFIG", path)
	t.Setenv("KAFKA_BROKERS", "b:9092, c:9092")
	t.Setenv("DELIVERY_MAX_ATTEMPTS", "4")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Delivery.PollInterval)
	assert.Equal(t, 4, cfg.Delivery.MaxAttempts)
	assert.Equal(t, []string{"b:9092", "c:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 20.0, cfg.Delivery.RatePerSecond, "unset keys keep defaults")
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	cfg.Database.Driver = "postgres"
	assert.Error(t, cfg.Validate(), "driver without DSN")

	cfg.Database.Driver = "mysql"
	cfg.Database.DSN = "x"
	assert.Error(t, cfg.Validate())

	t.Setenv("MOVETRACK_CONFIG", "")
	t.Setenv("DELIVERY_MAX_ATTEMPTS", "many")
	_, err := FromEnv()
	assert.Error(t, err)
}
