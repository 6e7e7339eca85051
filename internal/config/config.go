package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"accounts/internal/constants"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Email     EmailConfig     `yaml:"email"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Name           string   `yaml:"name"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	CORSOrigins    []string `yaml:"cors_origins"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	Path           string        `yaml:"path"`
	URI            string        `yaml:"uri"`
	Name           string        `yaml:"name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	ResetTokenTTL time.Duration `yaml:"reset_token_ttl"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
	// ResetURL is the prefix the plaintext reset token is appended to.
	ResetURL string `yaml:"reset_url"`
}

type EmailConfig struct {
	SMTP SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type StorageConfig struct {
	Driver         string   `yaml:"driver"`
	Root           string   `yaml:"root"`
	UploadMaxBytes int64    `yaml:"upload_max_bytes"`
	S3             S3Config `yaml:"s3"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type RateLimitConfig struct {
	AuthRequestsPerMinute int `yaml:"auth_requests_per_minute"`
}

// envOverrides are the settings that may come from the environment. Secrets
// belong here rather than in the file.
type envOverrides struct {
	JWTSecret      string `env:"ACCOUNTS_JWT_SECRET"`
	TokenTTL       string `env:"ACCOUNTS_TOKEN_TTL"`
	DatabaseDriver string `env:"ACCOUNTS_DATABASE_DRIVER"`
	DatabaseURI    string `env:"ACCOUNTS_DATABASE_URI"`
	SMTPPassword   string `env:"ACCOUNTS_SMTP_PASSWORD"`
	S3SecretKey    string `env:"ACCOUNTS_S3_SECRET_KEY"`
	Port           string `env:"PORT"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a Config from YAML, applying environment overrides,
// validation and defaults in that order.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(context.Background()); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides(ctx context.Context) error {
	var env envOverrides
	if err := envconfig.Process(ctx, &env); err != nil {
		return fmt.Errorf("parsing env vars: %w", err)
	}

	if env.JWTSecret != "" {
		c.Auth.JWTSecret = env.JWTSecret
	}
	if env.TokenTTL != "" {
		ttl, err := time.ParseDuration(env.TokenTTL)
		if err != nil {
			return fmt.Errorf("ACCOUNTS_TOKEN_TTL: %w", err)
		}
		c.Auth.TokenTTL = ttl
	}
	if env.DatabaseDriver != "" {
		c.Database.Driver = env.DatabaseDriver
	}
	if env.DatabaseURI != "" {
		c.Database.URI = env.DatabaseURI
	}
	if env.SMTPPassword != "" {
		c.Email.SMTP.Password = env.SMTPPassword
	}
	if env.S3SecretKey != "" {
		c.Storage.S3.SecretKey = env.S3SecretKey
	}
	if env.Port != "" {
		port, err := strconv.Atoi(env.Port)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}

	return nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Auth.TokenTTL < 0 || c.Auth.ResetTokenTTL < 0 {
		return fmt.Errorf("auth token lifetimes must be positive")
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 14) {
		return fmt.Errorf("auth.bcrypt_cost must be between 10 and 14")
	}

	switch c.Database.Driver {
	case "", DriverSQLite:
	case DriverMongo:
		if c.Database.URI == "" {
			return fmt.Errorf("database.uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q", DriverSQLite, DriverMongo)
	}

	if c.Email.SMTP.Host == "" {
		return fmt.Errorf("email.smtp.host is required")
	}
	if c.Email.SMTP.Port == 0 {
		return fmt.Errorf("email.smtp.port is required")
	}
	if c.Email.SMTP.From == "" {
		return fmt.Errorf("email.smtp.from is required")
	}

	switch c.Storage.Driver {
	case "", StorageLocal:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q", StorageLocal, StorageS3)
	}
	if c.Storage.UploadMaxBytes < 0 {
		return fmt.Errorf("storage.upload_max_bytes must be positive")
	}

	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 4040
	}
	if c.Server.Name == "" {
		c.Server.Name = "Accounts Service"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/accounts.db"
	}
	if c.Database.Name == "" {
		c.Database.Name = "accounts"
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 10 * time.Second
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = constants.DefaultTokenTTL
	}
	if c.Auth.ResetTokenTTL == 0 {
		c.Auth.ResetTokenTTL = constants.DefaultResetTokenTTL
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = constants.DefaultBcryptCost
	}
	if c.Auth.ResetURL == "" {
		c.Auth.ResetURL = c.Server.BaseURL + "/api/auth/reset-password/"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageLocal
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "./data/uploads"
	}
	if c.Storage.UploadMaxBytes == 0 {
		c.Storage.UploadMaxBytes = constants.DefaultUploadMaxBytes
	}
	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = "us-east-1"
	}

	if c.RateLimit.AuthRequestsPerMinute == 0 {
		c.RateLimit.AuthRequestsPerMinute = 10
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
