package config

import (
	"net/url"

	merrors "git.home.luguber.info/inful/batchmon/internal/errors"
)

// Validate checks the configuration and returns the first problem found.
// Sections that are disabled are not checked.
func Validate(cfg *Config) error {
	m := cfg.Monitoring
	if m.ApplicationName == "" {
		return merrors.ConfigRequired("monitoring.application_name")
	}

	if pg := m.Pushgateway; pg.Enabled {
		if pg.URL == "" {
			return merrors.ConfigRequired("monitoring.pushgateway.url")
		}
		u, err := url.Parse(pg.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return merrors.ValidationFailed("monitoring.pushgateway.url", "must be an absolute http(s) URL")
		}
		if pg.Job == "" {
			return merrors.ConfigRequired("monitoring.pushgateway.job")
		}
		if pg.Timeout <= 0 {
			return merrors.ValidationFailed("monitoring.pushgateway.timeout", "must be positive")
		}
	}
	if m.Pushgateway.FlushInterval < 0 {
		return merrors.ValidationFailed("monitoring.pushgateway.flush_interval", "must not be negative")
	}

	if n := m.NATS; n.Enabled {
		if n.URL == "" {
			return merrors.ConfigRequired("monitoring.nats.url")
		}
		if n.Subject == "" {
			return merrors.ConfigRequired("monitoring.nats.subject")
		}
	}

	if j := m.Journal; j.Enabled && j.Path == "" {
		return merrors.ConfigRequired("monitoring.journal.path")
	}
	return nil
}
