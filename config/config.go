package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Server struct {
		Port    string `env:"PORT" envDefault:"5000"`
		GinMode string `env:"GIN_MODE" envDefault:"release"`

		// Origins allowed by CORS; "*" allows any.
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

		// Proxies whose X-Forwarded-For is believed. Empty means the peer
		// address is the client address.
		TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	}

	Database struct {
		Path string `env:"DATABASE_PATH" envDefault:"database/fipe_data.db"`
	}

	Auth struct {
		// Accepted API keys. An empty list disables the check.
		APIKeys []string `env:"API_KEYS" envSeparator:","`
		Header  string   `env:"API_KEY_HEADER" envDefault:"X-API-Key"`
	}

	RateLimit struct {
		// Requests per second allowed per client
		RPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
		Burst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
	}

	Defaults struct {
		Brand string `env:"DEFAULT_BRAND" envDefault:"Volkswagen"`
		Model string `env:"DEFAULT_MODEL" envDefault:"Gol"`
	}

	Options struct {
		// Only offer vehicles priced in the most recent reference month
		LatestMonthOnly bool `env:"LATEST_MONTH_ONLY" envDefault:"true"`
	}

	Compare struct {
		Workers      int           `env:"COMPARE_WORKERS" envDefault:"5"`
		FetchTimeout time.Duration `env:"COMPARE_FETCH_TIMEOUT" envDefault:"5s"`
	}

	Inflation struct {
		Enabled bool          `env:"INFLATION_ENABLED" envDefault:"true"`
		BaseURL string        `env:"INFLATION_BASE_URL" envDefault:"https://api.bcb.gov.br/dados/serie"`
		Series  string        `env:"INFLATION_SERIES" envDefault:"433"`
		Timeout time.Duration `env:"INFLATION_TIMEOUT" envDefault:"10s"`
	}

	Session struct {
		TTL           time.Duration `env:"SESSION_TTL" envDefault:"2h"`
		SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
	}

	Logging struct {
		Level string `env:"LOG_LEVEL" envDefault:"info"`
	}

	Tracing struct {
		ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"fipe-api"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
