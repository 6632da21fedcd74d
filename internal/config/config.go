package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const minProductionSecretLen = 32

// Config holds all environment-based configuration for the server.
type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	AppName string `env:"APP_NAME" envDefault:"Go OAuth Server"`
	Env     string `env:"ENV" envDefault:"DEV"`

	// BaseURL is the externally reachable root of the server, used to build
	// the links sent in account emails (e.g. "https://auth.example.com")
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Token signing. SigningSecret signs new tokens under SigningKeyID.
	// PreviousSigningKeys keeps rotated secrets verifying until their tokens
	// expire, formatted "kid1:secret1,kid2:secret2".
	SigningSecret       string `env:"OAUTH_SIGNING_SECRET"`
	SigningKeyID        string `env:"OAUTH_SIGNING_KEY_ID" envDefault:"primary"`
	PreviousSigningKeys string `env:"OAUTH_PREVIOUS_SIGNING_KEYS"`
	Issuer              string `env:"OAUTH_ISSUER"`

	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"60m"`
	CodeTTL              time.Duration `env:"CODE_TTL" envDefault:"10m"`
	ResetPasswordTTL     time.Duration `env:"RESET_PASSWORD_TTL" envDefault:"60m"`
	EmailVerificationTTL time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"60m"`

	// SMTP delivery. Without a host, emails are written to the log.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPAccount  string `env:"SMTP_ACCOUNT"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	// SMTPFrom is the sender address, defaulting to SMTPAccount
	SMTPFrom string `env:"SMTP_FROM"`

	// AllowedOrigins enables CORS for browser clients. "*" allows any origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// StorePath is the bbolt database holding clients and users.
	// Empty keeps them in memory for the life of the process.
	StorePath string `env:"STORE_PATH"`

	// SeedDemo registers the demo client and user at startup
	SeedDemo bool `env:"SEED_DEMO" envDefault:"true"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// SigningKey is a rotated secret kept for verification
type SigningKey struct {
	KeyID  string
	Secret string
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SigningSecret == "" {
		return fmt.Errorf("OAUTH_SIGNING_SECRET is required")
	}
	if c.IsProduction() && len(c.SigningSecret) < minProductionSecretLen {
		return fmt.Errorf("OAUTH_SIGNING_SECRET must be at least %d characters in production", minProductionSecretLen)
	}
	if c.SigningKeyID == "" {
		return fmt.Errorf("OAUTH_SIGNING_KEY_ID must not be empty")
	}

	for name, ttl := range map[string]time.Duration{
		"ACCESS_TOKEN_TTL":       c.AccessTokenTTL,
		"CODE_TTL":               c.CodeTTL,
		"RESET_PASSWORD_TTL":     c.ResetPasswordTTL,
		"EMAIL_VERIFICATION_TTL": c.EmailVerificationTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, ttl)
		}
	}

	if c.UseSMTP() && c.SMTPSender() == "" {
		return fmt.Errorf("SMTP_FROM or SMTP_ACCOUNT is required when SMTP_HOST is set")
	}

	if _, err := c.ParsePreviousSigningKeys(); err != nil {
		return err
	}
	return nil
}

// IsProduction returns true when ENV names a production environment
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// GetPort returns the listen address, e.g. ":8080"
func (c *Config) GetPort() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// UseSMTP reports whether emails should be delivered through an SMTP relay
func (c *Config) UseSMTP() bool {
	return c.SMTPHost != ""
}

// SMTPSender returns the address emails are sent from
func (c *Config) SMTPSender() string {
	if c.SMTPFrom != "" {
		return c.SMTPFrom
	}
	return c.SMTPAccount
}

// ParsePreviousSigningKeys parses OAUTH_PREVIOUS_SIGNING_KEYS.
// Format: "kid1:secret1,kid2:secret2"
func (c *Config) ParsePreviousSigningKeys() ([]SigningKey, error) {
	if c.PreviousSigningKeys == "" {
		return nil, nil
	}

	seen := map[string]struct{}{c.SigningKeyID: {}}

	var keys []SigningKey
	for _, pair := range strings.Split(c.PreviousSigningKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		idx := strings.Index(pair, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid signing key entry (missing ':')")
		}

		keyID := pair[:idx]
		secret := pair[idx+1:]
		if keyID == "" || secret == "" {
			return nil, fmt.Errorf("empty key id or secret in entry %d", len(keys)+1)
		}
		if _, dup := seen[keyID]; dup {
			return nil, fmt.Errorf("duplicate key id %q in OAUTH_PREVIOUS_SIGNING_KEYS", keyID)
		}

		seen[keyID] = struct{}{}
		keys = append(keys, SigningKey{KeyID: keyID, Secret: secret})
	}
	return keys, nil
}
