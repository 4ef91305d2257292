package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	BackendConfig
	ReconcileConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetBaseURL() string
	IsDev() bool
}

type mainConfig struct {
	EnvVars
	Backend
	Reconcile
	Storage
}

// New reads an optional .env file and then parses the process environment.
func New(envFiles ...string) (Config, error) {
	// The .env file is optional
	_ = godotenv.Load(envFiles...)

	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config New] failed to parse environment: %w", err)
	}
	return c, nil
}
