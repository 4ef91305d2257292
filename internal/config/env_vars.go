package config

import (
	"strings"
)

const devEnv = "DEV"

type EnvVars struct {
	Port     string `env:"PORT" envDefault:"8080"`
	AppName  string `env:"APP_NAME" envDefault:"Test Album Auth"`
	Env      string `env:"ENV" envDefault:"DEV"`
	LogLevel string `env:"LOG_LEVEL"`

	// BaseURL is the public URL of the portal (e.g., "https://auth.testalbum.app")
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port != "" && port[0] != ':' {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return devEnv
	}
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.BaseURL, "/")
}

func (e EnvVars) IsDev() bool {
	return e.GetEnv() == devEnv
}
