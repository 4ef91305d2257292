package reconcile

import (
	"time"

	"github.com/desert5047-spec/test-keper-sub000/internal/config"
)

// Deadlines bounds every wait in a reconciliation. No call is retried more
// often than the attempt counts below, and retries are evenly spaced.
type Deadlines struct {
	SetSession   time.Duration
	ExchangeCode time.Duration
	GetSession   time.Duration

	// Polling after a failed or timed out establishment call
	FallbackPollAttempts int
	FallbackPollInterval time.Duration

	// Web code path: wait for the automatic exchange, then poll
	WebExchangeWait time.Duration
	WebPollAttempts int
	WebPollInterval time.Duration

	// Watchdog bounds a whole invocation
	Watchdog time.Duration
}

func DefaultDeadlines() Deadlines {
	return Deadlines{
		SetSession:           30 * time.Second,
		ExchangeCode:         30 * time.Second,
		GetSession:           10 * time.Second,
		FallbackPollAttempts: 10,
		FallbackPollInterval: 500 * time.Millisecond,
		WebExchangeWait:      20 * time.Second,
		WebPollAttempts:      30,
		WebPollInterval:      time.Second,
		Watchdog:             45 * time.Second,
	}
}

// DeadlinesFromConfig reads the configured bounds. Zero or negative values
// keep the default.
func DeadlinesFromConfig(cfg config.ReconcileConfig) Deadlines {
	d := DefaultDeadlines()
	setDuration(&d.SetSession, cfg.GetSetSessionTimeout())
	setDuration(&d.ExchangeCode, cfg.GetExchangeCodeTimeout())
	setDuration(&d.GetSession, cfg.GetGetSessionTimeout())
	setDuration(&d.FallbackPollInterval, cfg.GetFallbackPollInterval())
	setDuration(&d.WebExchangeWait, cfg.GetWebExchangeWait())
	setDuration(&d.WebPollInterval, cfg.GetWebPollInterval())
	setDuration(&d.Watchdog, cfg.GetWatchdogTimeout())
	if n := cfg.GetFallbackPollAttempts(); n > 0 {
		d.FallbackPollAttempts = n
	}
	if n := cfg.GetWebPollAttempts(); n > 0 {
		d.WebPollAttempts = n
	}
	return d
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
