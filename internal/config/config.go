// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
)

// defaultOrigins are used when ALLOWED_ORIGINS is not set.
var defaultOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"https://shaalkal.web.app",
}

// Config is the process configuration, loaded from the environment (main
// autoloads .env first).
type Config struct {
	Port           string   `env:"PORT" envDefault:"4000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	// RedisAddr enables the Redis-backed plan session store when set.
	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// OpenAIAPIKey enables the model-backed question generator when set.
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	// Tolerate spaces around the commas in ALLOWED_ORIGINS.
	origins := cfg.AllowedOrigins[:0]
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = defaultOrigins
	}
	return &cfg, nil
}

// OriginHosts converts the allowed origin URLs into host[:port] patterns.
// The websocket accept check matches the Origin header's host, not the full
// URL, so "http://localhost:5173" must be handed over as "localhost:5173".
func (c *Config) OriginHosts() []string {
	hosts := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}
