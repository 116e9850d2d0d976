package registry

import "time"

// Config holds the DHIS2 connection settings.
type Config struct {
	// BaseURL is the API root, e.g. https://play.dhis2.org/40/api.
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// TimeoutSeconds bounds a single metadata request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"60"`
}

// Enabled reports whether a registry is configured.
func (c Config) Enabled() bool {
	return c.BaseURL != ""
}

// Timeout returns the request limit, defaulting to one minute.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
