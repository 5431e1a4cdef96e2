package giav

import "time"

// =====================================================
// GIAV CONFIGURATION
// =====================================================

type Config struct {
	Endpoint string // SOAP endpoint URL
	Agency   string // Agency code issued by GIAV
	Username string
	Password string
	Timeout  time.Duration
}

func (c *Config) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 20 * time.Second
	}
	return c.Timeout
}

// IsConfigured reports whether the integration has enough settings to be
// worth instantiating at all.
func (c *Config) IsConfigured() bool {
	return c.Endpoint != "" && c.Username != ""
}
