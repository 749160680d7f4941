package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

telephony:
  provider: "twilio"
  account_sid: "AC-test"
  max_concurrent_calls: 25
  call_timeout_seconds: 45

scheduler:
  interval_seconds: 120
  lock_key: "test-lock"

email:
  max_retries: 5
  poll_interval_seconds: 30
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "twilio", cfg.Telephony.Provider)
	assert.Equal(t, "AC-test", cfg.Telephony.AccountSID)
	assert.Equal(t, 25, cfg.Telephony.MaxConcurrentCalls)
	assert.Equal(t, 45, cfg.Telephony.CallTimeoutSeconds)

	assert.Equal(t, 120, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, "test-lock", cfg.Scheduler.LockKey)

	assert.Equal(t, 5, cfg.Email.MaxRetries)
	assert.Equal(t, 30, cfg.Email.PollIntervalSecs)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  url: "postgres://localhost/test"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 10, cfg.Telephony.MaxConcurrentCalls)
	assert.Equal(t, 60, cfg.Telephony.CallTimeoutSeconds)
	assert.Equal(t, 60, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, "survey-call-scheduler", cfg.Scheduler.LockKey)
	assert.Equal(t, 3, cfg.Email.MaxRetriesOrDefault())
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  url: "postgres://file/db"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	os.Setenv("DATABASE_URL", "postgres://env/db")
	os.Setenv("TELEPHONY_ACCOUNT_SID", "AC-env")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("TELEPHONY_ACCOUNT_SID")
	}()

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "AC-env", cfg.Telephony.AccountSID)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestCallTimeout(t *testing.T) {
	cfg := TelephonyConfig{CallTimeoutSeconds: 45}
	assert.Equal(t, 45*1000000000, int(cfg.CallTimeout().Nanoseconds()))
}

func TestSchedulerInterval(t *testing.T) {
	cfg := SchedulerConfig{IntervalSeconds: 120}
	assert.Equal(t, 120*1000000000, int(cfg.Interval().Nanoseconds()))

	clamped := SchedulerConfig{IntervalSeconds: 1}
	assert.Equal(t, 5*1000000000, int(clamped.Interval().Nanoseconds()))
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate("scheduler"))

	cfg.Database.URL = "postgres://x/y"
	assert.Error(t, cfg.Validate("scheduler"))

	cfg.Telephony.AccountSID = "AC1"
	cfg.Telephony.AuthToken = "tok"
	assert.Error(t, cfg.Validate("scheduler"))

	cfg.EventBus.URL = "https://sqs.example/queue.fifo"
	assert.NoError(t, cfg.Validate("scheduler"))
}
