package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BAZARLY"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv       = "BAZARLY_APP_ENV"
	EnvPort         = "BAZARLY_APP_PORT"
	EnvSnapshotPath = "BAZARLY_SNAPSHOT_PATH"
)

type Config struct {
	App      AppConfig
	Snapshot SnapshotConfig
	Courier  CourierConfig
	Pixel    PixelConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAZARLY_APP_ENV" required:"true"`
	Port         string `envconfig:"BAZARLY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAZARLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAZARLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// SnapshotConfig locates the persisted record-store document.
type SnapshotConfig struct {
	Path string `envconfig:"BAZARLY_SNAPSHOT_PATH" default:"data/store.json"`
}

// CourierConfig holds transport-level settings shared by the courier
// adapters. Credentials themselves are operator-managed and live in the
// record store, not in the environment.
type CourierConfig struct {
	Timeout          time.Duration `envconfig:"BAZARLY_COURIER_TIMEOUT" default:"15s"`
	PathaoBaseURL    string        `envconfig:"BAZARLY_PATHAO_BASE_URL"`
	SteadfastBaseURL string        `envconfig:"BAZARLY_STEADFAST_BASE_URL"`
}

type PixelConfig struct {
	Timeout   time.Duration `envconfig:"BAZARLY_PIXEL_TIMEOUT" default:"8s"`
	GraphHost string        `envconfig:"BAZARLY_PIXEL_GRAPH_HOST" default:"https://graph.facebook.com/v18.0"`
}
