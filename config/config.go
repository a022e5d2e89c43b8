// Package config loads the admin users service configuration from a YAML
// file with ADMIN_USERS_* environment overrides.
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ADMIN_USERS_"

// Config is the root configuration
type Config struct {
	Debug       bool        `yaml:"debug" json:"debug"`
	Server      Server      `yaml:"server" json:"server"`
	Auth        Auth        `yaml:"auth" json:"auth"`
	Persistence Persistence `yaml:"persistence" json:"persistence"`
	Analytics   Analytics   `yaml:"analytics" json:"analytics"`
	Metrics     Metrics     `yaml:"metrics" json:"metrics"`
}

// Server holds the listener options
type Server struct {
	Addr     string `yaml:"addr" json:"addr"`
	ViewsDir string `yaml:"views_dir" json:"views_dir"`
}

// Auth holds the session options
type Auth struct {
	SigningKey           string   `yaml:"signing_key" json:"signing_key"`
	ContextKey           string   `yaml:"context_key" json:"context_key"`
	TokenExpiration      int      `yaml:"token_expiration" json:"token_expiration"`
	Issuer               string   `yaml:"issuer" json:"issuer"`
	Audience             []string `yaml:"audience" json:"audience"`
	RejectedRouteKey     string   `yaml:"rejected_route_key" json:"rejected_route_key"`
	RejectedRouteDefault string   `yaml:"rejected_route_default" json:"rejected_route_default"`
}

// Persistence holds the database options
type Persistence struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// Analytics holds the activity stream options
type Analytics struct {
	RedisURL string `yaml:"redis_url" json:"redis_url"`
	Stream   string `yaml:"stream" json:"stream"`
	MaxLen   int64  `yaml:"max_len" json:"max_len"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// Metrics holds the prometheus options
type Metrics struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// Defaults returns a config usable for local development
func Defaults() *Config {
	return &Config{
		Server: Server{
			Addr: ":8978",
		},
		Auth: Auth{
			ContextKey:           "user",
			TokenExpiration:      24,
			Issuer:               "go-admin-users",
			Audience:             []string{"admin-users"},
			RejectedRouteKey:     "rejected_route",
			RejectedRouteDefault: "/",
		},
		Persistence: Persistence{
			DSN: "file:admin_users.db?cache=shared",
		},
		Analytics: Analytics{
			Stream:  "admin_users:activity",
			MaxLen:  10000,
			Timeout: "2s",
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "read config").
				WithMetadata(map[string]any{"path": path})
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid config")
	}

	return cfg, nil
}

// Parse decodes YAML into cfg, keeping values the document does not set
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "parse config")
	}
	return nil
}

// ApplyEnv overrides fields from ADMIN_USERS_* variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return envError(key, v, err)
			}
			*dst = b
		}
		return nil
	}

	str("SERVER_ADDR", &c.Server.Addr)
	str("SERVER_VIEWS_DIR", &c.Server.ViewsDir)
	str("AUTH_SIGNING_KEY", &c.Auth.SigningKey)
	str("AUTH_ISSUER", &c.Auth.Issuer)
	str("PERSISTENCE_DSN", &c.Persistence.DSN)
	str("ANALYTICS_REDIS_URL", &c.Analytics.RedisURL)
	str("ANALYTICS_STREAM", &c.Analytics.Stream)
	str("ANALYTICS_TIMEOUT", &c.Analytics.Timeout)

	if v, ok := lookup(EnvPrefix + "AUTH_AUDIENCE"); ok {
		c.Auth.Audience = splitList(v)
	}

	if v, ok := lookup(EnvPrefix + "AUTH_TOKEN_EXPIRATION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("AUTH_TOKEN_EXPIRATION", v, err)
		}
		c.Auth.TokenExpiration = n
	}

	if err := boolean("DEBUG", &c.Debug); err != nil {
		return err
	}
	return boolean("METRICS_ENABLED", &c.Metrics.Enabled)
}

// Validate will run validation rules
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Auth),
		validation.Field(&c.Persistence),
		validation.Field(&c.Analytics),
	)
}

// Validate will run validation rules
func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
	)
}

// Validate will run validation rules
func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&a.TokenExpiration, validation.Min(1)),
		validation.Field(&a.RejectedRouteDefault, validation.Required),
	)
}

// Validate will run validation rules
func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DSN, validation.Required),
	)
}

// Validate will run validation rules
func (a Analytics) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.RedisURL, validation.By(isRedisURL)),
		validation.Field(&a.Timeout, validation.By(isDuration)),
	)
}

// GetSigningKey returns the HMAC key for session cookies
func (c *Config) GetSigningKey() string { return c.Auth.SigningKey }

// GetContextKey returns the context key
func (c *Config) GetContextKey() string { return c.Auth.ContextKey }

// GetTokenExpiration returns the session lifetime in hours
func (c *Config) GetTokenExpiration() int { return c.Auth.TokenExpiration }

// GetIssuer returns the session issuer
func (c *Config) GetIssuer() string { return c.Auth.Issuer }

// GetAudience returns the session audience
func (c *Config) GetAudience() []string { return c.Auth.Audience }

// GetRejectedRouteKey returns the cookie holding the pre-login path
func (c *Config) GetRejectedRouteKey() string { return c.Auth.RejectedRouteKey }

// GetRejectedRouteDefault returns where to go after login by default
func (c *Config) GetRejectedRouteDefault() string { return c.Auth.RejectedRouteDefault }

// RecordTimeout parses the analytics timeout, falling back to 2s
func (a Analytics) RecordTimeout() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Redacted returns a copy safe to print, with secrets masked
func (c Config) Redacted() Config {
	out := c
	if out.Auth.SigningKey != "" {
		out.Auth.SigningKey = redactedValue
	}
	if out.Persistence.DSN != "" {
		out.Persistence.DSN = redactedValue
	}
	out.Analytics.RedisURL = redactURL(out.Analytics.RedisURL)
	return out
}

const redactedValue = "xxxxx"

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redactedValue
	}
	return u.Redacted()
}

func isRedisURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := redis.ParseURL(s); err != nil {
		return errors.New("must be a redis URL such as redis://localhost:6379/0", errors.CategoryValidation)
	}
	return nil
}

func isDuration(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return errors.New("must be a duration such as 2s", errors.CategoryValidation)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envError(key, value string, err error) error {
	return errors.Wrap(err, errors.CategoryBadInput, "invalid environment override").
		WithMetadata(map[string]any{"key": EnvPrefix + key, "value": value})
}
