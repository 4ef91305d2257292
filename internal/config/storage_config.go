package config

type StorageConfig interface {
	GetRedisURL() string
	GetSecureStoreSecret() string
	GetRememberMeDefault() bool
}

type Storage struct {
	// Empty means the general key-value store is kept in memory.
	RedisURL string `env:"REDIS_URL"`
	// Empty disables the encrypted store; tokens go straight to the general store.
	SecureStoreSecret string `env:"SECURE_STORE_SECRET"`
	RememberMeDefault bool   `env:"REMEMBER_ME_DEFAULT" envDefault:"true"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetRedisURL() string {
	return s.RedisURL
}

func (s Storage) GetSecureStoreSecret() string {
	return s.SecureStoreSecret
}

func (s Storage) GetRememberMeDefault() bool {
	return s.RememberMeDefault
}
