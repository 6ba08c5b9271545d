// Package config loads the monitoring configuration.
//
// The file is YAML with a single `monitoring:` root. Environment variables in
// the form ${VAR} are expanded before decoding, .env files are honoured, and
// anything the file leaves out keeps the value from Default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
)

// Config is the root of the configuration file.
type Config struct {
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// MonitoringConfig is the flat monitoring settings object.
type MonitoringConfig struct {
	// Enabled=false attaches no listener at all.
	Enabled bool `yaml:"enabled"`
	// ApplicationName is the instance grouping label of pushed snapshots.
	ApplicationName string            `yaml:"application_name"`
	Pushgateway     PushgatewayConfig `yaml:"pushgateway"`
	NATS            NATSConfig        `yaml:"nats"`
	Journal         JournalConfig     `yaml:"journal"`
	Logging         LoggingConfig     `yaml:"logging"`
}

// PushgatewayConfig configures the Prometheus Pushgateway export.
type PushgatewayConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	// Job is the Pushgateway job name snapshots are grouped under.
	Job     string        `yaml:"job"`
	Timeout time.Duration `yaml:"timeout"`
	// FlushInterval > 0 also pushes running jobs periodically.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// NATSConfig configures the job summary publisher.
type NATSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`
	Subject   string `yaml:"subject"`
	JetStream bool   `yaml:"jetstream"`
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Default returns the configuration used for anything a file does not set.
func Default() *Config {
	return &Config{
		Monitoring: MonitoringConfig{
			Enabled:         true,
			ApplicationName: "batch-application",
			Pushgateway: PushgatewayConfig{
				Enabled: false,
				URL:     "http://localhost:9091",
				Job:     "spring-batch",
				Timeout: 10 * time.Second,
			},
			NATS: NATSConfig{
				URL:     "nats://127.0.0.1:4222",
				Subject: "batch.jobs.completed",
			},
			Journal: JournalConfig{
				Path: "batchmon.db",
			},
			Logging: LoggingConfig{
				Level:  LogLevelInfo,
				Format: LogFormatText,
			},
		},
	}
}

// Load reads, normalises and validates the configuration at configPath.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file could not be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, merrors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, merrors.Wrap(err, merrors.CategoryConfig, merrors.SeverityFatal, "failed to read config file").
			WithContext("path", configPath)
	}

	return Parse(data)
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist. found reports whether a file was read.
func LoadOrDefault(configPath string) (cfg *Config, found bool, err error) {
	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		return Default(), false, nil
	}
	cfg, err = Load(configPath)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// Parse decodes YAML on top of Default, then normalises and validates it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, merrors.Wrap(err, merrors.CategoryConfig, merrors.SeverityFatal, "failed to parse config")
	}

	for _, w := range normalize(cfg) {
		fmt.Fprintf(os.Stderr, "config normalization: %s\n", w)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
