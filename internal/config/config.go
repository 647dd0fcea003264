// Package config loads service settings from defaults, an optional YAML file
// and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Identity modes.
const (
	IdentityRemote = "remote"
	IdentityJWT    = "jwt"
	IdentityOIDC   = "oidc"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Identity IdentityConfig `yaml:"identity"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	NATS     NATSConfig     `yaml:"nats"`
	Dev      DevConfig      `yaml:"dev"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ReadyInterval   time.Duration `yaml:"ready_interval"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type IdentityConfig struct {
	Mode        string        `yaml:"mode"`
	ProviderURL string        `yaml:"provider_url"`
	ServiceKey  string        `yaml:"service_key"`
	JWTSecret   string        `yaml:"jwt_secret"`
	Issuer      string        `yaml:"issuer"`
	Audience    string        `yaml:"audience"`
	Timeout     time.Duration `yaml:"timeout"`
}

type HTTPConfig struct {
	CookieName     string   `yaml:"cookie_name"`
	CORSOrigins    []string `yaml:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	// StreamLifetime caps one sale event stream; clients reconnect and the
	// session is resolved again.
	StreamLifetime time.Duration `yaml:"stream_lifetime"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type NATSConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// DevConfig only applies when no database is configured.
type DevConfig struct {
	Subject string `yaml:"subject"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			GRPCAddr:        ":9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			ReadyInterval:   5 * time.Second,
		},
		Identity: IdentityConfig{
			Mode:    IdentityRemote,
			Timeout: 5 * time.Second,
		},
		HTTP: HTTPConfig{
			CookieName:     "session",
			RateLimitRPS:   20,
			RateLimitBurst: 40,
			MaxBodyBytes:   1 << 20,
			StreamLifetime: 15 * time.Minute,
		},
		Log:  LogConfig{Level: "info", Format: "json"},
		NATS: NATSConfig{Prefix: "ventas"},
	}
}

// Load reads filename when it is non-empty, then applies environment
// overrides and normalizes the result.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.Database.URL = NormalizeDatabaseURL(cfg.Database.URL)
	cfg.Identity.Mode = strings.ToLower(strings.TrimSpace(cfg.Identity.Mode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	str(&c.Database.URL, "DATABASE_URL")
	str(&c.Identity.ProviderURL, "SUPABASE_URL")
	str(&c.Identity.ServiceKey, "SUPABASE_SERVICE_ROLE_KEY")
	str(&c.Identity.JWTSecret, "JWT_SECRET", "SUPABASE_JWT_SECRET")
	str(&c.HTTP.CookieName, "COOKIE_NAME")

	str(&c.Server.Addr, "VENTAS_HTTP_ADDR")
	str(&c.Server.GRPCAddr, "VENTAS_GRPC_ADDR")
	str(&c.Log.Level, "VENTAS_LOG_LEVEL")
	str(&c.Log.Format, "VENTAS_LOG_FORMAT")
	str(&c.Identity.Mode, "VENTAS_IDENTITY_MODE")
	str(&c.Identity.Issuer, "VENTAS_OIDC_ISSUER")
	str(&c.Identity.Audience, "VENTAS_TOKEN_AUDIENCE")
	str(&c.NATS.URL, "VENTAS_NATS_URL")
	str(&c.NATS.Prefix, "VENTAS_NATS_PREFIX")
	str(&c.Dev.Subject, "VENTAS_DEV_SUBJECT")

	if v := os.Getenv("VENTAS_GRPC_ADDR"); v == "off" {
		c.Server.GRPCAddr = ""
	}
	if v := strings.TrimSpace(os.Getenv("VENTAS_CORS_ORIGINS")); v != "" {
		c.HTTP.CORSOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("VENTAS_RATE_LIMIT_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VENTAS_RATE_LIMIT_RPS: %w", err)
		}
		c.HTTP.RateLimitRPS = f
	}
	if v := strings.TrimSpace(os.Getenv("VENTAS_RATE_LIMIT_BURST")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VENTAS_RATE_LIMIT_BURST: %w", err)
		}
		c.HTTP.RateLimitBurst = n
	}
	if v := strings.TrimSpace(os.Getenv("VENTAS_STREAM_LIFETIME")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VENTAS_STREAM_LIFETIME: %w", err)
		}
		c.HTTP.StreamLifetime = d
	}
	if v := strings.TrimSpace(os.Getenv("VENTAS_IDENTITY_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VENTAS_IDENTITY_TIMEOUT: %w", err)
		}
		c.Identity.Timeout = d
	}
	return nil
}

// Validate checks that the selected identity mode has what it needs.
func (c *Config) Validate() error {
	var errs []error
	switch c.Identity.Mode {
	case IdentityRemote:
		if c.Identity.ProviderURL == "" {
			errs = append(errs, errors.New("identity: SUPABASE_URL is required in remote mode"))
		}
		if c.Identity.ServiceKey == "" {
			errs = append(errs, errors.New("identity: SUPABASE_SERVICE_ROLE_KEY is required in remote mode"))
		}
	case IdentityJWT:
		if c.Identity.JWTSecret == "" {
			errs = append(errs, errors.New("identity: JWT_SECRET is required in jwt mode"))
		}
	case IdentityOIDC:
		if c.Identity.Issuer == "" {
			errs = append(errs, errors.New("identity: VENTAS_OIDC_ISSUER is required in oidc mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("identity: unknown mode %q", c.Identity.Mode))
	}
	if strings.TrimSpace(c.HTTP.CookieName) == "" {
		errs = append(errs, errors.New("http: cookie name must not be empty"))
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		errs = append(errs, errors.New("http: rate limit must not be negative"))
	}
	if strings.Contains(c.Database.URL, "://") {
		if u, err := url.Parse(c.Database.URL); err != nil || u.Host == "" {
			errs = append(errs, errors.New("database: DATABASE_URL has no host"))
		}
	}
	return errors.Join(errs...)
}

// NormalizeDatabaseURL strips SQLAlchemy driver suffixes such as
// postgresql+psycopg:// so the URL is accepted by pgx.
func NormalizeDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	if base, _, found := strings.Cut(scheme, "+"); found && strings.HasPrefix(base, "postgres") {
		return "postgres://" + rest
	}
	if scheme == "postgresql" {
		return "postgres://" + rest
	}
	return raw
}

// RedactedDatabaseURL hides the password for logging.
func (c *Config) RedactedDatabaseURL() string {
	u, err := url.Parse(c.Database.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Redacted()
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
