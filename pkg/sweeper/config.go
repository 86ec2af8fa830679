package sweeper

import (
	"os"
	"strconv"
	"time"
)

// Config controls the background sweeper behavior.
type Config struct {
	Interval           time.Duration // How often the SLA sweep runs. Default 1m.
	RetentionInterval  time.Duration // How often the audit retention pass runs. Default 1h.
	AuditRetentionDays int           // How long to keep audit events. 0 disables pruning.
	Enabled            bool          // Whether the sweeper runs at all. Default true.
}

// DefaultConfig returns the default sweeper configuration. Audit pruning is
// off by default; audit events are evidence and deleting them is opt-in.
func DefaultConfig() *Config {
	return &Config{
		Interval:           time.Minute,
		RetentionInterval:  time.Hour,
		AuditRetentionDays: 0,
		Enabled:            true,
	}
}

// ConfigFromEnv loads config from environment variables.
// GOVERNANCE_SWEEP_INTERVAL_SECONDS, GOVERNANCE_AUDIT_RETENTION_DAYS,
// GOVERNANCE_SWEEP_ENABLED
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("GOVERNANCE_SWEEP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Interval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("GOVERNANCE_AUDIT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AuditRetentionDays = n
		}
	}

	if v := os.Getenv("GOVERNANCE_SWEEP_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}

	return cfg
}
