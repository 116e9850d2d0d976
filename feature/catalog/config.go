package catalog

import "time"

// Config holds the sync engine and scheduler settings.
type Config struct {
	// SidecarName is the reserved file carrying a directory's uid.
	SidecarName string `mapstructure:"sidecar_name" default:".catalog-sync.json"`
	// LeaseTTLSeconds is how long a database lease stays valid without release.
	LeaseTTLSeconds int `mapstructure:"lease_ttl_seconds" default:"3600"`
	// ScheduleIntervalSeconds is the auto-sync period. Zero disables the scheduler.
	ScheduleIntervalSeconds int `mapstructure:"schedule_interval_seconds" default:"0"`
	// TimeoutSeconds bounds a single sync run. Zero means no limit.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"1800"`
}

// LeaseTTL returns the lease lifetime, defaulting to one hour.
func (c Config) LeaseTTL() time.Duration {
	if c.LeaseTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

// ScheduleInterval returns the auto-sync period.
func (c Config) ScheduleInterval() time.Duration {
	return time.Duration(c.ScheduleIntervalSeconds) * time.Second
}

// Timeout returns the per-run limit.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
