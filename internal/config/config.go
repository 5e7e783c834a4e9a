// Package config manages environment variables.
//
// It reads variables from the process environment (and a `.env` file when
// present), loads them into structured Go types, and validates that required
// values are present so they can be reused across the application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config.
//   - Validate required values so the app fails fast on bad/missing config.
//   - Provide defaults for optional blocks (observability, token lifetimes, timezone).
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
	// Zone data is compiled in so Primary.Timezone resolves on hosts
	// without /usr/share/zoneinfo.
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists it is loaded into the
	// process env before anything below reads it.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

/*
	Env vars are read using the AUTOPRINTX_ prefix. The prefix is stripped,
	the rest is lowercased, and "." separates nested blocks:

	  AUTOPRINTX_SERVER.PORT          -> server.port          -> Config.Server.Port
	  AUTOPRINTX_STORAGE.IMAGEKIT.PRIVATE_KEY -> Config.Storage.ImageKit.PrivateKey
*/

// EnvPrefix is the prefix every AutoPrintX environment variable carries.
const EnvPrefix = "AUTOPRINTX_"

// Service name reported to logs and New Relic.
const ServiceName = "autoprintx"

// Config is the root configuration object for the application.
//
// Observability is a pointer because it is optional. If not provided,
// defaults are injected at load time.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis" validate:"required"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	Integration   IntegrationConfig    `koanf:"integration"`
	Storage       StorageConfig        `koanf:"storage"`
	Payment       PaymentConfig        `koanf:"payment"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`

	// Timezone is the IANA zone used for "today"/"yesterday" boundaries in
	// dashboard statistics and for the dates shown on formatted orders.
	Timezone string `koanf:"timezone"`
}

// ServerConfig groups settings for the HTTP server runtime.
// Timeouts are seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password" validate:"required"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"required"`
}

// DSN builds the postgres:// connection string for this database block.
func (d DatabaseConfig) DSN() string {
	// JoinHostPort brackets IPv6 hosts; the password is escaped so characters
	// like ':' or '@' do not break the URL.
	hostPort := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))

	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		d.User,
		url.QueryEscape(d.Password),
		hostPort,
		d.Name,
		d.SSLMode,
	)
}

// RedisConfig contains Redis connection details.
// Address is "host:port".
type RedisConfig struct {
	Address  string `koanf:"address" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// AuthConfig stores the JWT signing secret and cookie settings.
//
// Access and refresh lifetimes default to 1 day and 28 days.
type AuthConfig struct {
	SecretKey       string        `koanf:"secret_key" validate:"required"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl"`

	// CookieInsecure drops the Secure flag and switches SameSite to Lax,
	// which is what plain-HTTP local development needs.
	CookieInsecure bool   `koanf:"cookie_insecure"`
	CookieDomain   string `koanf:"cookie_domain"`
}

// IntegrationConfig holds outbound email settings.
//
// EmailProvider picks the transport: "resend" (default) or "smtp".
type IntegrationConfig struct {
	EmailProvider string     `koanf:"email_provider" validate:"omitempty,oneof=resend smtp"`
	ResendAPIKey  string     `koanf:"resend_api_key"`
	EmailFrom     string     `koanf:"email_from"`
	SMTP          SMTPConfig `koanf:"smtp"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// StorageConfig selects where customer uploads and shop images go.
type StorageConfig struct {
	Provider string         `koanf:"provider" validate:"omitempty,oneof=imagekit s3"`
	ImageKit ImageKitConfig `koanf:"imagekit"`
	S3       S3Config       `koanf:"s3"`
}

type ImageKitConfig struct {
	PublicKey   string `koanf:"public_key"`
	PrivateKey  string `koanf:"private_key"`
	URLEndpoint string `koanf:"url_endpoint"`

	// APIBaseURL overrides the upload/management host, mostly for tests.
	APIBaseURL string `koanf:"api_base_url"`
	Folder     string `koanf:"folder"`
}

type S3Config struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Endpoint  string `koanf:"endpoint"`
	CDNDomain string `koanf:"cdn_domain"`
	BasePath  string `koanf:"base_path"`
}

// PaymentConfig holds Razorpay credentials.
type PaymentConfig struct {
	RazorpayKeyID     string `koanf:"razorpay_key_id"`
	RazorpayKeySecret string `koanf:"razorpay_key_secret"`
	BaseURL           string `koanf:"base_url"`
}

// Location resolves Primary.Timezone, falling back to UTC when it is unknown.
// LoadConfig rejects unknown zones, so only hand-built configs fall back.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Primary.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

var listKeys = map[string]bool{
	"server.cors_allowed_origins":        true,
	"observability.health_checks.checks": true,
}

// LoadConfig loads configuration from environment variables, unmarshals it into
// Config, validates it, applies defaults, and returns the result.
//
// Behavior summary:
//   - Loads env vars with prefix AUTOPRINTX_
//   - Unmarshals into Config and validates struct tags
//   - Sets default observability, token lifetimes, timezone, providers
//   - Validates the observability block with its own rules
//   - Rejects a timezone the embedded zone database does not know
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

		// List values arrive comma separated.
		if listKeys[key] {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return key, parts
		}

		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load initial env variables: %w", err)
	}

	mainConfig := &Config{}

	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	mainConfig.applyDefaults()

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	if _, err := time.LoadLocation(mainConfig.Primary.Timezone); err != nil {
		return nil, fmt.Errorf("invalid primary.timezone %q: %w", mainConfig.Primary.Timezone, err)
	}

	return mainConfig, nil
}

func (c *Config) applyDefaults() {
	if c.Observability == nil {
		c.Observability = DefaultObservabilityConfig()
	}

	// Service name is fixed; environment always follows primary.env so logs and
	// traces agree with the rest of the app.
	c.Observability.ServiceName = ServiceName
	c.Observability.Environment = c.Primary.Env

	if c.Primary.Timezone == "" {
		c.Primary.Timezone = "Asia/Kolkata"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 28 * 24 * time.Hour
	}
	if c.Integration.EmailProvider == "" {
		c.Integration.EmailProvider = "resend"
	}
	if c.Integration.EmailFrom == "" {
		c.Integration.EmailFrom = "AutoPrintX <onboarding@resend.dev>"
	}
	if c.Storage.Provider == "" {
		c.Storage.Provider = "imagekit"
	}
	if c.Payment.BaseURL == "" {
		c.Payment.BaseURL = "https://api.razorpay.com"
	}
}
