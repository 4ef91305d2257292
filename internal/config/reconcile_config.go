package config

import "time"

type ReconcileConfig interface {
	GetSetSessionTimeout() time.Duration
	GetExchangeCodeTimeout() time.Duration
	GetGetSessionTimeout() time.Duration
	GetFallbackPollAttempts() int
	GetFallbackPollInterval() time.Duration
	GetWebExchangeWait() time.Duration
	GetWebPollAttempts() int
	GetWebPollInterval() time.Duration
	GetWatchdogTimeout() time.Duration
}

// Reconcile holds the bounds used while establishing a session from a callback.
type Reconcile struct {
	SetSessionTimeout    time.Duration `env:"RECONCILE_SET_SESSION_TIMEOUT" envDefault:"30s"`
	ExchangeCodeTimeout  time.Duration `env:"RECONCILE_EXCHANGE_CODE_TIMEOUT" envDefault:"30s"`
	GetSessionTimeout    time.Duration `env:"RECONCILE_GET_SESSION_TIMEOUT" envDefault:"10s"`
	FallbackPollAttempts int           `env:"RECONCILE_FALLBACK_POLL_ATTEMPTS" envDefault:"10"`
	FallbackPollInterval time.Duration `env:"RECONCILE_FALLBACK_POLL_INTERVAL" envDefault:"500ms"`
	WebExchangeWait      time.Duration `env:"RECONCILE_WEB_EXCHANGE_WAIT" envDefault:"20s"`
	WebPollAttempts      int           `env:"RECONCILE_WEB_POLL_ATTEMPTS" envDefault:"30"`
	WebPollInterval      time.Duration `env:"RECONCILE_WEB_POLL_INTERVAL" envDefault:"1s"`
	WatchdogTimeout      time.Duration `env:"RECONCILE_WATCHDOG_TIMEOUT" envDefault:"45s"`
}

var _ ReconcileConfig = Reconcile{}

func (r Reconcile) GetSetSessionTimeout() time.Duration   { return r.SetSessionTimeout }
func (r Reconcile) GetExchangeCodeTimeout() time.Duration { return r.ExchangeCodeTimeout }
func (r Reconcile) GetGetSessionTimeout() time.Duration   { return r.GetSessionTimeout }
func (r Reconcile) GetFallbackPollAttempts() int          { return r.FallbackPollAttempts }
func (r Reconcile) GetFallbackPollInterval() time.Duration {
	return r.FallbackPollInterval
}
func (r Reconcile) GetWebExchangeWait() time.Duration { return r.WebExchangeWait }
func (r Reconcile) GetWebPollAttempts() int           { return r.WebPollAttempts }
func (r Reconcile) GetWebPollInterval() time.Duration { return r.WebPollInterval }
func (r Reconcile) GetWatchdogTimeout() time.Duration { return r.WatchdogTimeout }
