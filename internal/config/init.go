package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# batchmon configuration
monitoring:
  enabled: true
  application_name: batch-application

  # Push a snapshot of all batch metrics when a job finishes.
  pushgateway:
    enabled: false
    url: http://localhost:9091
    job: spring-batch
    timeout: 10s
    # Also push running jobs on this interval; 0 disables.
    flush_interval: 0s

  # Publish a JSON summary of every finished job.
  nats:
    enabled: false
    url: nats://127.0.0.1:4222
    subject: batch.jobs.completed
    jetstream: false

  # Keep a local history of finished jobs.
  journal:
    enabled: true
    path: batchmon.db

  logging:
    level: info
    format: text
`

// Init writes an example configuration file. An existing file is only
// replaced when force is set.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
