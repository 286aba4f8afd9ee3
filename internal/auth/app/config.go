package app

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/nimbusvault/authcore/pkg/cryptox"
	"github.com/nimbusvault/authcore/pkg/jwtx"
)

// Key modes. The choice is explicit; there is no fallback between them.
const (
	KeyModeAsymmetric = "asymmetric"
	KeyModeSymmetric  = "symmetric"
	KeyModeEphemeral  = "ephemeral"
)

// Backend names for AUTH_RATELIMIT_STORE and AUTH_REVOCATION_STORE.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	Issuer string `envconfig:"AUTH_ISSUER" default:"authcore"`

	KeyMode        string `envconfig:"AUTH_KEY_MODE" default:"asymmetric"`
	Algorithm      string `envconfig:"AUTH_ALGORITHM" default:"EdDSA"`
	PrivateKeyFile string `envconfig:"AUTH_PRIVATE_KEY_FILE"`
	MasterKeyFile  string `envconfig:"AUTH_MASTER_KEY_FILE"` // optional: private key file is sealed
	HMACSecretFile string `envconfig:"AUTH_HMAC_SECRET_FILE"`

	AccessTTL     time.Duration `envconfig:"AUTH_ACCESS_TTL" default:"30m"`
	RefreshTTL    time.Duration `envconfig:"AUTH_REFRESH_TTL" default:"168h"`
	ClockLeeway   time.Duration `envconfig:"AUTH_CLOCK_LEEWAY" default:"0s"`
	RotateRefresh bool          `envconfig:"AUTH_ROTATE_REFRESH" default:"false"`

	LoginRateLimit  int           `envconfig:"AUTH_LOGIN_RATE_LIMIT" default:"5"`
	LoginRateWindow time.Duration `envconfig:"AUTH_LOGIN_RATE_WINDOW" default:"1m"`

	RateLimitStore  string        `envconfig:"AUTH_RATELIMIT_STORE" default:"memory"`
	RevocationStore string        `envconfig:"AUTH_REVOCATION_STORE" default:"sqlite"`
	RedisAddr       string        `envconfig:"AUTH_REDIS_ADDR"`
	DatabaseFile    string        `envconfig:"AUTH_DATABASE_FILE" default:"auth.db"`
	LookupTimeout   time.Duration `envconfig:"AUTH_LOOKUP_TIMEOUT" default:"2s"`

	PasswordHash string `envconfig:"AUTH_PASSWORD_HASH" default:"bcrypt"`
	Pepper       string `envconfig:"AUTH_PEPPER"`

	CookieSecure bool   `envconfig:"AUTH_COOKIE_SECURE" default:"false"`
	CookieDomain string `envconfig:"AUTH_COOKIE_DOMAIN"`
	TrustProxy   bool   `envconfig:"AUTH_TRUST_PROXY" default:"false"`

	Env                  string        `envconfig:"ENV" default:"dev"`
	LogLevel             string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat            string        `envconfig:"LOG_FORMAT" default:"json"`
	Port                 int           `envconfig:"PORT" default:"8080"`
	ShutdownGracePeriod  time.Duration `envconfig:"SHUTDOWN_GRACE_PERIOD" default:"10s"`
	HousekeepingInterval time.Duration `envconfig:"HOUSEKEEPING_INTERVAL" default:"1h"`
}

// LoadConfig reads an optional .env file (ENV_FILE overrides the path), then
// the process environment, and validates the result. Variables already set
// in the environment win over the file.
func LoadConfig() (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast on settings the service cannot start with. All
// problems are reported at once.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.KeyMode {
	case KeyModeAsymmetric:
		if c.PrivateKeyFile == "" {
			fail("AUTH_PRIVATE_KEY_FILE is required in %s key mode", c.KeyMode)
		} else if err := readable(c.PrivateKeyFile); err != nil {
			fail("AUTH_PRIVATE_KEY_FILE: %w", err)
		}
		if c.MasterKeyFile != "" {
			if err := readable(c.MasterKeyFile); err != nil {
				fail("AUTH_MASTER_KEY_FILE: %w", err)
			}
		}
		if !slices.Contains(jwtx.AsymmetricAlgorithms, c.Algorithm) {
			fail("AUTH_ALGORITHM %q is not one of %v", c.Algorithm, jwtx.AsymmetricAlgorithms)
		}
	case KeyModeSymmetric:
		if c.HMACSecretFile == "" {
			fail("AUTH_HMAC_SECRET_FILE is required in %s key mode", c.KeyMode)
		} else if err := readable(c.HMACSecretFile); err != nil {
			fail("AUTH_HMAC_SECRET_FILE: %w", err)
		}
	case KeyModeEphemeral:
		if !slices.Contains(jwtx.AsymmetricAlgorithms, c.Algorithm) {
			fail("AUTH_ALGORITHM %q is not one of %v", c.Algorithm, jwtx.AsymmetricAlgorithms)
		}
	default:
		fail("AUTH_KEY_MODE %q must be %s, %s or %s", c.KeyMode, KeyModeAsymmetric, KeyModeSymmetric, KeyModeEphemeral)
	}

	if c.AccessTTL < jwtx.MinTokenTTL {
		fail("AUTH_ACCESS_TTL must be at least %s", jwtx.MinTokenTTL)
	}
	if c.RefreshTTL < jwtx.MinTokenTTL {
		fail("AUTH_REFRESH_TTL must be at least %s", jwtx.MinTokenTTL)
	}
	if c.ClockLeeway < 0 {
		fail("AUTH_CLOCK_LEEWAY must not be negative")
	}
	if c.LoginRateLimit <= 0 {
		fail("AUTH_LOGIN_RATE_LIMIT must be positive")
	}
	if c.LoginRateWindow <= 0 {
		fail("AUTH_LOGIN_RATE_WINDOW must be positive")
	}
	if c.LookupTimeout <= 0 {
		fail("AUTH_LOOKUP_TIMEOUT must be positive")
	}

	if c.RateLimitStore != BackendMemory && c.RateLimitStore != BackendRedis {
		fail("AUTH_RATELIMIT_STORE %q must be %s or %s", c.RateLimitStore, BackendMemory, BackendRedis)
	}
	if c.RevocationStore != BackendSQLite && c.RevocationStore != BackendRedis {
		fail("AUTH_REVOCATION_STORE %q must be %s or %s", c.RevocationStore, BackendSQLite, BackendRedis)
	}
	if c.usesRedis() && c.RedisAddr == "" {
		fail("AUTH_REDIS_ADDR is required when a redis backend is selected")
	}
	if c.DatabaseFile == "" {
		fail("AUTH_DATABASE_FILE must not be empty")
	}

	if _, err := cryptox.NewHasher(c.PasswordHash, c.Pepper); err != nil {
		fail("AUTH_PASSWORD_HASH: %w", err)
	}
	if c.Port < 0 || c.Port > 65535 {
		fail("PORT %d out of range", c.Port)
	}

	return errors.Join(errs...)
}

func (c Config) usesRedis() bool {
	return c.RateLimitStore == BackendRedis || c.RevocationStore == BackendRedis
}

func readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
