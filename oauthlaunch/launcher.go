// Package oauthlaunch runs federated sign-in on native builds: it opens the
// provider's authorize page in a browser session and hands the returned
// callback URL to the shared reconciliation flow.
package oauthlaunch

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/desert5047-spec/test-keper-sub000/internal/errors"
	"github.com/desert5047-spec/test-keper-sub000/lastprovider"
	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/rs/zerolog/log"
)

const (
	ProviderGoogle = "google"

	callbackPath = "auth-callback"
)

type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultCancel  ResultType = "cancel"
	ResultDismiss ResultType = "dismiss"
)

// BrowserResult is how a browser session ended. URL is set on success.
type BrowserResult struct {
	Type ResultType
	URL  string
}

// Browser opens authURL and returns once the session is redirected to
// returnURL or closed by the user.
type Browser interface {
	OpenAuthSession(ctx context.Context, authURL, returnURL string) (BrowserResult, error)
}

// AuthURLProvider builds the provider authorize URL, typically *supabase.Client.
type AuthURLProvider interface {
	OAuthSignInURL(ctx context.Context, provider, redirectTo string, scopes ...string) (string, error)
}

// CallbackHandler is the reconciliation entry point, typically *reconcile.Coordinator.
type CallbackHandler interface {
	HandleAndWait(ctx context.Context, rawURL string) (reconcile.Decision, error)
}

// ProviderRecorder remembers the last successful sign-in method.
type ProviderRecorder interface {
	Record(ctx context.Context, p lastprovider.Provider) error
}

type Launcher struct {
	urls      AuthURLProvider
	browser   Browser
	callbacks CallbackHandler
	recorder  ProviderRecorder
	platform  reconcile.Platform
	returnURL string
	scopes    []string
}

type Option func(*Launcher)

// WithReturnURL overrides the URL the browser session redirects to.
func WithReturnURL(u string) Option {
	return func(l *Launcher) {
		l.returnURL = u
	}
}

func WithScopes(scopes ...string) Option {
	return func(l *Launcher) {
		l.scopes = scopes
	}
}

// WithRecorder records successful federated sign-ins.
func WithRecorder(r ProviderRecorder) Option {
	return func(l *Launcher) {
		l.recorder = r
	}
}

func New(urls AuthURLProvider, browser Browser, callbacks CallbackHandler, platform reconcile.Platform, opts ...Option) *Launcher {
	l := &Launcher{
		urls:      urls,
		browser:   browser,
		callbacks: callbacks,
		platform:  platform,
		returnURL: ReturnURL(platform, "testalbum", ""),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ReturnURL is the callback address for platform: the custom scheme on
// native builds and the exp:// address of expoHost on a development client.
func ReturnURL(platform reconcile.Platform, scheme, expoHost string) string {
	if platform == reconcile.PlatformExpoDevClient && expoHost != "" {
		return "exp://" + strings.TrimSuffix(expoHost, "/") + "/--/" + callbackPath
	}
	return strings.TrimSuffix(scheme, "://") + "://" + callbackPath
}

// ReturnTo is the URL the browser session redirects to.
func (l *Launcher) ReturnTo() string {
	return l.returnURL
}

// SignIn runs the browser session for provider and returns the decision of
// the reconciliation it triggered. Cancellation and unsupported platforms
// return a login decision together with the matching error.
func (l *Launcher) SignIn(ctx context.Context, provider string) (reconcile.Decision, error) {
	if l.platform == reconcile.PlatformWeb {
		return reconcile.ToLogin(reconcile.MessageUnsupportedPlatform, apperrors.ErrUnsupportedPlatform), apperrors.ErrUnsupportedPlatform
	}

	authURL, err := l.urls.OAuthSignInURL(ctx, provider, l.returnURL, l.scopes...)
	if err != nil {
		log.Debug().Err(err).Str("provider", provider).Msg("failed to build authorize URL")
		return reconcile.ToLogin(reconcile.MessageAuthFailed, err), fmt.Errorf("[Launcher SignIn] %w", err)
	}

	res, err := l.browser.OpenAuthSession(ctx, authURL, l.returnURL)
	if err != nil {
		log.Debug().Err(err).Msg("browser session failed")
		return reconcile.ToLogin(reconcile.MessageAuthFailed, err), fmt.Errorf("[Launcher SignIn] %w", err)
	}

	switch res.Type {
	case ResultSuccess:
	case ResultCancel, ResultDismiss:
		log.Info().Str("result", string(res.Type)).Msg("sign-in cancelled")
		return reconcile.ToLogin(reconcile.MessageCancelled, apperrors.ErrCancelled), apperrors.ErrCancelled
	default:
		err := fmt.Errorf("unknown browser result %q", res.Type)
		return reconcile.ToLogin(reconcile.MessageUnexpected, err), err
	}

	d, err := l.callbacks.HandleAndWait(ctx, res.URL)
	if err != nil {
		return reconcile.ToLogin(reconcile.MessageTimeout, err), fmt.Errorf("[Launcher SignIn] %w", err)
	}

	if d.Target == reconcile.TargetMainApp && l.recorder != nil && provider == ProviderGoogle {
		if err := l.recorder.Record(ctx, lastprovider.ProviderGoogle); err != nil {
			log.Debug().Err(err).Msg("failed to record last provider")
		}
	}
	return d, nil
}
