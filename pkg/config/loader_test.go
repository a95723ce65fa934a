package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/domain"
)

const sampleYAML = `
app:
  name: lifecycle-test
database:
  url: postgres://ev:ev@localhost:5432/ev?sslmode=disable
collaborators:
  payment:
    url: http://payment:8080
  station:
    url: http://station:8080
  user:
    url: http://user:8080
lifecycle:
  base_price_per_kwh: 4000
  check_in_grace_period: 10m
scheduler:
  no_show_interval: 30s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "lifecycle-test", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "ledger", cfg.Collaborators.Payment.Provider)
	assert.Equal(t, "queue", cfg.Collaborators.Notification.Transport)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.NoShowInterval)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ReminderInterval)

	policy := cfg.Lifecycle.Policy()
	defaults := domain.DefaultLifecyclePolicy()
	assert.Equal(t, 4000.0, policy.BasePricePerKWh)
	assert.Equal(t, 10*time.Minute, policy.CheckInGracePeriod)
	assert.Equal(t, defaults.DepositAmount, policy.DepositAmount)
	assert.Equal(t, defaults.ChargingRateKWhPerMinute, policy.ChargingRateKWhPerMinute)
	assert.Equal(t, defaults.StaleSessionAfter, policy.StaleSessionAfter)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://override")
	t.Setenv("APP_HTTP_PORT", "9090")
	t.Setenv("APP_LIFECYCLE_DEPOSIT_AMOUNT", "20000")

	cfg, err := LoadFile(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "postgres://override", cfg.Database.URL)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 20000.0, cfg.Lifecycle.DepositAmount)
}

func TestLoadFile_Invalid(t *testing.T) {
	body := `
collaborators:
  payment:
    provider: stripe
  notification:
    transport: http
`
	_, err := LoadFile(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url is required")
	assert.Contains(t, err.Error(), "stripe.secret_key is required")
	assert.Contains(t, err.Error(), "station.url is required")
	assert.Contains(t, err.Error(), "notification.url is required")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCollaboratorsTimeoutFor(t *testing.T) {
	c := CollaboratorsConfig{Timeout: 5 * time.Second}
	assert.Equal(t, 5*time.Second, c.TimeoutFor(0))
	assert.Equal(t, 2*time.Second, c.TimeoutFor(2*time.Second))
}
