package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batchmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	m := Default().Monitoring
	require.True(t, m.Enabled)
	require.Equal(t, "batch-application", m.ApplicationName)
	require.False(t, m.Pushgateway.Enabled)
	require.Equal(t, "http://localhost:9091", m.Pushgateway.URL)
	require.Equal(t, "spring-batch", m.Pushgateway.Job)
	require.Equal(t, "batch.jobs.completed", m.NATS.Subject)
	require.NoError(t, Validate(Default()))
}

func TestLoad_KeepsDefaultsForMissingFields(t *testing.T) {
	path := writeConfig(t, `
monitoring:
  application_name: billing
  pushgateway:
    enabled: true
    flush_interval: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	m := cfg.Monitoring
	require.True(t, m.Enabled)
	require.Equal(t, "billing", m.ApplicationName)
	require.True(t, m.Pushgateway.Enabled)
	require.Equal(t, "http://localhost:9091", m.Pushgateway.URL)
	require.Equal(t, "spring-batch", m.Pushgateway.Job)
	require.Equal(t, 10*time.Second, m.Pushgateway.Timeout)
	require.Equal(t, 30*time.Second, m.Pushgateway.FlushInterval)
}

func TestLoad_DisabledMonitoring(t *testing.T) {
	cfg, err := Load(writeConfig(t, "monitoring:\n  enabled: false\n"))
	require.NoError(t, err)
	require.False(t, cfg.Monitoring.Enabled)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("BATCHMON_TEST_GATEWAY", "http://gateway.internal:9091")
	cfg, err := Load(writeConfig(t, `
monitoring:
  pushgateway:
    enabled: true
    url: ${BATCHMON_TEST_GATEWAY}
`))
	require.NoError(t, err)
	require.Equal(t, "http://gateway.internal:9091", cfg.Monitoring.Pushgateway.URL)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.True(t, merrors.IsCategory(err, merrors.CategoryConfig))
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "monitoring:\n  enabeld: true\n"))
	require.Error(t, err)
	require.True(t, merrors.IsCategory(err, merrors.CategoryConfig))
}

func TestLoadOrDefault(t *testing.T) {
	cfg, found, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, Default(), cfg)

	cfg, found, err = LoadOrDefault(writeConfig(t, "monitoring:\n  application_name: etl\n"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "etl", cfg.Monitoring.ApplicationName)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*MonitoringConfig)
		category merrors.ErrorCategory
	}{
		{"empty application name", func(m *MonitoringConfig) { m.ApplicationName = "" }, merrors.CategoryConfig},
		{"push without url", func(m *MonitoringConfig) { m.Pushgateway.Enabled = true; m.Pushgateway.URL = "" }, merrors.CategoryConfig},
		{"push with relative url", func(m *MonitoringConfig) { m.Pushgateway.Enabled = true; m.Pushgateway.URL = "localhost:9091" }, merrors.CategoryValidation},
		{"push without job", func(m *MonitoringConfig) { m.Pushgateway.Enabled = true; m.Pushgateway.Job = "" }, merrors.CategoryConfig},
		{"push without timeout", func(m *MonitoringConfig) { m.Pushgateway.Enabled = true; m.Pushgateway.Timeout = 0 }, merrors.CategoryValidation},
		{"negative flush interval", func(m *MonitoringConfig) { m.Pushgateway.FlushInterval = -time.Second }, merrors.CategoryValidation},
		{"nats without subject", func(m *MonitoringConfig) { m.NATS.Enabled = true; m.NATS.Subject = "" }, merrors.CategoryConfig},
		{"journal without path", func(m *MonitoringConfig) { m.Journal.Enabled = true; m.Journal.Path = "" }, merrors.CategoryConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg.Monitoring)
			err := Validate(cfg)
			require.Error(t, err)
			require.True(t, merrors.IsCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestValidate_DisabledSectionsAreNotChecked(t *testing.T) {
	cfg := Default()
	cfg.Monitoring.Pushgateway.URL = ""
	cfg.Monitoring.NATS.URL = ""
	cfg.Monitoring.Journal.Path = ""
	require.NoError(t, Validate(cfg))
}

func TestNormalizeLogging(t *testing.T) {
	cfg := Default()
	cfg.Monitoring.Logging = LoggingConfig{Level: " DEBUG ", Format: "JSON"}
	require.Empty(t, normalize(cfg))
	require.Equal(t, LogLevelDebug, cfg.Monitoring.Logging.Level)
	require.Equal(t, LogFormatJSON, cfg.Monitoring.Logging.Format)

	cfg.Monitoring.Logging = LoggingConfig{Level: "verbose", Format: "xml"}
	require.Len(t, normalize(cfg), 2)
	require.Equal(t, LogLevelInfo, cfg.Monitoring.Logging.Level)
	require.Equal(t, LogFormatText, cfg.Monitoring.Logging.Format)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batchmon.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Monitoring.Journal.Enabled)
	require.Equal(t, "spring-batch", cfg.Monitoring.Pushgateway.Job)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BATCHMON_TEST_APP=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("BATCHMON_TEST_APP") })

	cfg, err := Load(writeConfig(t, "monitoring:\n  application_name: ${BATCHMON_TEST_APP}\n"))
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.Monitoring.ApplicationName)
}

func TestSlogLevel(t *testing.T) {
	require.Equal(t, "DEBUG", LogLevelDebug.SlogLevel().String())
	require.Equal(t, "WARN", LogLevel("warning").SlogLevel().String())
	require.Equal(t, "INFO", LogLevel("").SlogLevel().String())
}
