package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment variable read by LoadConfig,
// e.g. METERINGEST_SERVER.PORT.
const EnvPrefix = "METERINGEST_"

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Pipeline      PipelineConfig       `koanf:"pipeline"`
	Storage       *StorageConfig       `koanf:"storage"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=development staging production"`
}

type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
	BodyLimit          string   `koanf:"body_limit"`
}

type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"required"`
	// SkipMigrations disables tern migrations on startup.
	SkipMigrations bool `koanf:"skip_migrations"`
}

// DSN returns a postgres connection URL for the database section.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	if d.Password == "" {
		u.User = url.User(d.User)
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

type PipelineConfig struct {
	// Parallel processes the sections of one report concurrently.
	Parallel bool `koanf:"parallel"`
	// TimestampPrecision is "second" (default) or "millisecond".
	TimestampPrecision string `koanf:"timestamp_precision" validate:"omitempty,oneof=second millisecond s ms"`
	// ErrorCodes extends the error catalog, as "176=Sensor fault,180=Valve stuck".
	ErrorCodes string `koanf:"error_codes"`
}

// ExtraErrorCodes parses ErrorCodes.
func (p PipelineConfig) ExtraErrorCodes() (map[int64]string, error) {
	out := make(map[int64]string)
	if strings.TrimSpace(p.ErrorCodes) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(p.ErrorCodes, ",") {
		code, desc, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("error code entry %q: expected code=description", pair)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(code), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("error code entry %q: %w", pair, err)
		}
		desc = strings.TrimSpace(desc)
		if desc == "" {
			return nil, fmt.Errorf("error code entry %q: empty description", pair)
		}
		out[n] = desc
	}
	return out, nil
}

type StorageConfig struct {
	O3 *O3Config `koanf:"o3"`
}

// O3Config points at an S3-compatible Akave O3 bucket used to archive raw reports.
type O3Config struct {
	Endpoint  string `koanf:"endpoint" validate:"required_with=Bucket"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket" validate:"required_with=Endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Prefix    string `koanf:"prefix"`
}

// LoadConfig reads the configuration from the environment, after loading a
// .env file from the working directory when one exists.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadApp is LoadConfig for main: any error is fatal.
func LoadApp() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("could not load config")
	}
	return cfg
}

// finish applies defaults and validates a freshly unmarshalled config.
func (c *Config) finish() error {
	c.Server.CORSAllowedOrigins = splitList(c.Server.CORSAllowedOrigins)

	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if _, err := c.Pipeline.ExtraErrorCodes(); err != nil {
		return fmt.Errorf("pipeline.error_codes: %w", err)
	}

	// Observability is a pointer so an absent section can be told apart.
	if c.Observability == nil {
		c.Observability = DefaultObservabilityConfig()
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = DefaultServiceName
	}
	c.Observability.Environment = c.Primary.Env
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}
	return nil
}

// splitList expands comma separated entries, as env values arrive as one string.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
