package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Environment string `env:"NODE_ENV" envDefault:"development"`
	ServerPort  string `env:"PORT"     envDefault:"3333"`

	DatabaseType string `env:"DB_TYPE"      envDefault:"sqlite"`
	DatabasePath string `env:"DB_PATH"      envDefault:"./academy.db"`
	DatabaseURL  string `env:"DATABASE_URL"`

	JWTSecret        string        `env:"JWT_SECRET"`
	JWTIssuer        string        `env:"JWT_ISSUER"              envDefault:"academy"`
	AccessTokenTTL   time.Duration `env:"JWT_EXPIRES_IN"          envDefault:"2h"`
	RefreshTokenDays int           `env:"REFRESH_TOKEN_EXPIRY_IN" envDefault:"7"`
	ResetTokenTTL    time.Duration `env:"RESET_TOKEN_TTL"         envDefault:"15m"`
	BcryptCost       int           `env:"BCRYPT_COST"             envDefault:"10"`

	SESFromEmail string `env:"SES_FROM_EMAIL"`
	SESFromName  string `env:"SES_FROM_NAME" envDefault:"Academy"`
	AWSRegion    string `env:"AWS_REGION"    envDefault:"eu-west-1"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"DEBUG"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"10"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW"   envDefault:"1m"`

	// TrustProxy takes the client address from forwarding headers. Only set
	// it when every request arrives through a proxy that overwrites them.
	TrustProxy bool `env:"TRUST_PROXY"`
}

// Load reads .env.{NODE_ENV} and .env when present, then parses the process
// environment. Variables already set in the environment win over file values.
func Load() (*Config, error) {
	files := []string{".env"}
	if name := os.Getenv("NODE_ENV"); name != "" {
		files = append([]string{".env." + name}, files...)
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return parse(env.Options{})
}

// LoadFromMap parses configuration from the given variables instead of the
// process environment.
func LoadFromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "":
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for DB_TYPE %q", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE: %s", c.DatabaseType)
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	if c.RefreshTokenDays <= 0 {
		return errors.New("REFRESH_TOKEN_EXPIRY_IN must be positive")
	}
	if c.ResetTokenTTL <= 0 {
		return errors.New("RESET_TOKEN_TTL must be positive")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("rate limit requests and window must be positive")
	}
	return nil
}

// IsProduction reports whether NODE_ENV is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// RefreshTokenTTL is the refresh token lifetime
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

// EmailEnabled reports whether outbound mail is configured
func (c *Config) EmailEnabled() bool {
	return c.SESFromEmail != ""
}
