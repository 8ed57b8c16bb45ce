package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
)

// placeholderSecret is the value shipped in example configs. Refusing it at
// startup beats signing production tokens with it.
const placeholderSecret = "your-secret-key-here"

// Blacklist driver names accepted in configuration.
const (
	DriverMongoAPI = "mongoapi"
	DriverDocAPI   = "docapi"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Config is the root service configuration. Sources, in order of
// precedence:
//  1. explicit path via the --config flag;
//  2. path in the CONFIG_PATH environment variable;
//  3. ./config.yaml in the working directory;
//  4. environment variables only (cleanenv).
//
// Environment variables always overlay values read from a file.
type Config struct {
	Env       string `yaml:"env" env:"ENV" env-default:"dev"`
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`

	Port                 int           `yaml:"port" env:"PORT" env-default:"8080"`
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period" env:"SHUTDOWN_GRACE_PERIOD" env-default:"10s"`
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval" env:"HOUSEKEEPING_INTERVAL" env-default:"1h"`

	// IssuerKey is the shared secret backend services present on the token
	// issuance endpoint.
	IssuerKey string `yaml:"issuer_key" env:"ISSUER_KEY"`

	JWT       JWTConfig       `yaml:"jwt"`
	Blacklist BlacklistConfig `yaml:"blacklist"`
}

// JWTConfig holds token signing parameters.
type JWTConfig struct {
	Algorithm string `yaml:"algorithm" env:"JWT_ALGORITHM" env-default:"HS256"`

	// Secret is the HMAC key for HS* algorithms.
	Secret string `yaml:"secret" env:"JWT_SECRET"`

	// PrivateKeyFile is the path to a PEM RSA private key for RS*
	// algorithms.
	PrivateKeyFile string `yaml:"private_key_file" env:"JWT_PRIVATE_KEY_FILE"`

	AccessTTL  time.Duration `yaml:"access_ttl" env:"JWT_ACCESS_TTL" env-default:"30m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"JWT_REFRESH_TTL" env-default:"24h"`
}

// BlacklistConfig selects and configures the revocation store driver.
type BlacklistConfig struct {
	// Driver is one of mongoapi, docapi, redis, sqlite, none. With none the
	// verifier skips revocation checks entirely.
	Driver string `yaml:"driver" env:"BLACKLIST_DRIVER" env-default:"sqlite"`

	// Endpoint is the base URL of the document service (mongoapi, docapi).
	Endpoint string `yaml:"endpoint" env:"BLACKLIST_ENDPOINT"`

	// Collection the document drivers write to.
	Collection string `yaml:"collection" env:"BLACKLIST_COLLECTION" env-default:"revoked_tokens"`

	// RedisAddr is the host:port of the redis instance (redis driver).
	RedisAddr string `yaml:"redis_addr" env:"BLACKLIST_REDIS_ADDR"`

	// DatabaseFile is the sqlite file path (sqlite driver).
	DatabaseFile string `yaml:"database_file" env:"BLACKLIST_DATABASE_FILE" env-default:"blacklist.db"`

	// Timeout bounds each call to a remote store.
	Timeout time.Duration `yaml:"timeout" env:"BLACKLIST_TIMEOUT" env-default:"5s"`

	// FailMode decides what a guarded endpoint does when the store is
	// unreachable: closed rejects, open admits.
	FailMode string `yaml:"fail_mode" env:"BLACKLIST_FAIL_MODE" env-default:"closed"`
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration with the documented precedence and validates it.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		// ReadConfig parses the file and overlays env vars itself.
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	switch {
	case path != "":
		if err := tryRead(path); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := tryRead(os.Getenv("CONFIG_PATH")); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat("config.yaml"); err == nil {
			if err := tryRead("config.yaml"); err != nil {
				return nil, err
			}
			break
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, config.yaml or env vars: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot safely run with.
func (c *Config) Validate() error {
	if !jwtx.SupportedAlgorithm(c.JWT.Algorithm) {
		return fmt.Errorf("config: unsupported jwt algorithm %q", c.JWT.Algorithm)
	}

	if strings.HasPrefix(c.JWT.Algorithm, "HS") {
		switch c.JWT.Secret {
		case "":
			return fmt.Errorf("config: jwt secret is required for %s", c.JWT.Algorithm)
		case placeholderSecret:
			return fmt.Errorf("config: jwt secret is still the placeholder value")
		}
	} else if c.JWT.PrivateKeyFile == "" {
		return fmt.Errorf("config: private key file is required for %s", c.JWT.Algorithm)
	}

	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("config: token ttls must be positive")
	}

	if c.IssuerKey == "" {
		return fmt.Errorf("config: issuer key is required")
	}

	switch c.Blacklist.Driver {
	case DriverMongoAPI, DriverDocAPI:
		if c.Blacklist.Endpoint == "" {
			return fmt.Errorf("config: blacklist endpoint is required for driver %q", c.Blacklist.Driver)
		}
	case DriverRedis:
		if c.Blacklist.RedisAddr == "" {
			return fmt.Errorf("config: redis address is required for driver %q", c.Blacklist.Driver)
		}
	case DriverSQLite:
		if c.Blacklist.DatabaseFile == "" {
			return fmt.Errorf("config: database file is required for driver %q", c.Blacklist.Driver)
		}
	case DriverNone:
	default:
		return fmt.Errorf("config: unknown blacklist driver %q", c.Blacklist.Driver)
	}

	switch c.Blacklist.FailMode {
	case "closed", "open":
	default:
		return fmt.Errorf("config: blacklist fail_mode must be closed or open, got %q", c.Blacklist.FailMode)
	}

	return nil
}

// FailMode maps the configured string onto the verifier's enum.
func (c *Config) FailMode() jwtx.FailMode {
	if c.Blacklist.FailMode == "open" {
		return jwtx.FailOpen
	}
	return jwtx.FailClosed
}
