package app

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is loaded from INKWELL_* environment variables.
type Config struct {
	Issuer   string `envconfig:"ISSUER" default:"inkwell-api"`
	Audience string `envconfig:"AUDIENCE" default:"inkwell-clients"`

	AccessTokenValidity  time.Duration `envconfig:"ACCESS_TOKEN_VALIDITY" default:"15m"`
	RefreshTokenValidity time.Duration `envconfig:"REFRESH_TOKEN_VALIDITY" default:"168h"`

	// PEM key paths. When both are empty an ephemeral keypair is generated
	// at startup, which invalidates all outstanding tokens on restart.
	PrivateKeyPath string `envconfig:"PRIVATE_KEY_PATH" default:""`
	PublicKeyPath  string `envconfig:"PUBLIC_KEY_PATH" default:""`

	DatabaseFile string `envconfig:"DATABASE_FILE" default:"inkwell.db"`

	// BootstrapAPIKey is inserted with the GENERAL permission on startup
	// when the api_keys table is empty. Without it a fresh deployment has
	// no way through the gate.
	BootstrapAPIKey string `envconfig:"BOOTSTRAP_API_KEY" default:""`

	Env       string `envconfig:"ENV" default:"dev"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	Port                int           `envconfig:"PORT" default:"8080"`
	ShutdownGracePeriod time.Duration `envconfig:"SHUTDOWN_GRACE_PERIOD" default:"10s"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("INKWELL", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
