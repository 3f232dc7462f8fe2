package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// IdentityServiceConfig holds the environment-sourced configuration of the
// identity service. The values mirroring runtime-tunable keys act as defaults
// for the configs collection.
type IdentityServiceConfig struct {
	BaseURL           string `env:"APP_BASE_URL"`
	DefaultGroupID    string `env:"DEFAULT_GROUP_ID"`
	DefaultLanguageID int64  `env:"DEFAULT_LANGUAGE_ID" envDefault:"1"`
	DefaultTimeZoneID string `env:"DEFAULT_TIMEZONE_ID" envDefault:"Europe/Berlin"`
	MinLoginLength    int64  `env:"MIN_LOGIN_LENGTH"    envDefault:"4"`

	Token TokenConfig
}

// TokenConfig holds the settings for signed activation links.
type TokenConfig struct {
	ActivationTokenSecret    string        `env:"ACTIVATION_TOKEN_SECRET"`
	ActivationTokenExpiresIn time.Duration `env:"ACTIVATION_TOKEN_EXPIRES_IN" envDefault:"72h"`
	Issuer                   string        `env:"TOKEN_ISSUER"                envDefault:"identity-service"`
}

// NewIdentityServiceConfig creates an IdentityServiceConfig instance from
// environment variables.
func NewIdentityServiceConfig(logger *zerolog.Logger) *IdentityServiceConfig {
	cfg, err := env.ParseAs[IdentityServiceConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate identity service configuration")
	}

	return &cfg
}

// validate checks if the identity service configuration is valid.
func (c *IdentityServiceConfig) validate() error {
	if c.DefaultGroupID == "" {
		return fmt.Errorf("missing DEFAULT_GROUP_ID environment variable")
	}
	if c.Token.ActivationTokenSecret == "" {
		return fmt.Errorf("missing ACTIVATION_TOKEN_SECRET environment variable")
	}
	if c.MinLoginLength <= 0 {
		return fmt.Errorf("MIN_LOGIN_LENGTH must be positive")
	}

	return nil
}
