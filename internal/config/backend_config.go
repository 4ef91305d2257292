package config

import "strings"

type BackendConfig interface {
	GetSupabaseURL() string
	GetSupabaseAnonKey() string
	GetSupabaseJWKSURL() string
	GetAppScheme() string
	GetExpoDevHost() string
}

// Backend holds the hosted auth platform settings.
type Backend struct {
	SupabaseURL     string `env:"SUPABASE_URL" envDefault:"http://localhost:54321"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`
	// Optional. When set, access tokens handed to SetSession are signature-checked.
	SupabaseJWKSURL string `env:"SUPABASE_JWKS_URL"`

	AppScheme   string `env:"APP_SCHEME" envDefault:"testalbum"`
	ExpoDevHost string `env:"EXPO_DEV_HOST"`
}

var _ BackendConfig = Backend{}

func (b Backend) GetSupabaseURL() string {
	return strings.TrimSuffix(b.SupabaseURL, "/")
}

func (b Backend) GetSupabaseAnonKey() string {
	return b.SupabaseAnonKey
}

func (b Backend) GetSupabaseJWKSURL() string {
	return b.SupabaseJWKSURL
}

func (b Backend) GetAppScheme() string {
	return strings.TrimSuffix(b.AppScheme, "://")
}

func (b Backend) GetExpoDevHost() string {
	return b.ExpoDevHost
}
