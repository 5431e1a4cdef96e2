package stripe

import "time"

// Config holds the Stripe integration settings.
type Config struct {
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	BaseURL       string        `mapstructure:"base_url"`
	Country       string        `mapstructure:"country"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func (c Config) GetBaseURL() string {
	if c.BaseURL == "" {
		return "https://api.stripe.com"
	}
	return c.BaseURL
}

func (c Config) GetCountry() string {
	if c.Country == "" {
		return "ES"
	}
	return c.Country
}

func (c Config) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 20 * time.Second
	}
	return c.Timeout
}

// IsConfigured reports whether API calls can be made.
func (c Config) IsConfigured() bool {
	return c.SecretKey != ""
}
