package oauthlaunch_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/credstore"
	"github.com/desert5047-spec/test-keper-sub000/deeplink"
	apperrors "github.com/desert5047-spec/test-keper-sub000/internal/errors"
	"github.com/desert5047-spec/test-keper-sub000/lastprovider"
	"github.com/desert5047-spec/test-keper-sub000/oauthlaunch"
	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/desert5047-spec/test-keper-sub000/supabase/supabasefake"
	"github.com/stretchr/testify/require"
)

// fakeBrowser ends every session with result, building the success URL
// from the return URL the launcher asked for.
type fakeBrowser struct {
	result   oauthlaunch.ResultType
	query    map[string]string
	fragment map[string]string
	err      error

	authURL   string
	returnURL string
}

func (b *fakeBrowser) OpenAuthSession(_ context.Context, authURL, returnURL string) (oauthlaunch.BrowserResult, error) {
	b.authURL, b.returnURL = authURL, returnURL
	if b.err != nil {
		return oauthlaunch.BrowserResult{}, b.err
	}
	if b.result != oauthlaunch.ResultSuccess {
		return oauthlaunch.BrowserResult{Type: b.result}, nil
	}
	return oauthlaunch.BrowserResult{Type: b.result, URL: deeplink.Build(returnURL, b.query, b.fragment)}, nil
}

type fixture struct {
	backend  *supabasefake.Backend
	browser  *fakeBrowser
	tracker  *lastprovider.Tracker
	launcher *oauthlaunch.Launcher
}

func setupTestFixture(t *testing.T, platform reconcile.Platform, browser *fakeBrowser, opts ...oauthlaunch.Option) *fixture {
	t.Helper()
	backend := supabasefake.New()
	t.Cleanup(backend.Release)

	d := reconcile.DefaultDeadlines()
	d.FallbackPollAttempts = 2
	d.FallbackPollInterval = time.Millisecond
	coordinator := reconcile.NewCoordinator(reconcile.NewReconciler(backend, platform, reconcile.WithDeadlines(d)), backend, nil)
	tracker := lastprovider.New(credstore.NewMemoryStore())

	opts = append([]oauthlaunch.Option{oauthlaunch.WithRecorder(tracker)}, opts...)
	return &fixture{
		backend:  backend,
		browser:  browser,
		tracker:  tracker,
		launcher: oauthlaunch.New(backend, browser, coordinator, platform, opts...),
	}
}

func TestSignIn_CodeRoundTrip(t *testing.T) {
	f := setupTestFixture(t, reconcile.PlatformNative, &fakeBrowser{
		result: oauthlaunch.ResultSuccess,
		query:  map[string]string{"code": "abc123"},
	})
	ctx := context.Background()

	d, err := f.launcher.SignIn(ctx, oauthlaunch.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, reconcile.TargetMainApp, d.Target)
	require.Equal(t, "testalbum://auth-callback", f.browser.returnURL)
	require.Contains(t, f.browser.authURL, "provider=google")
	require.Equal(t, 1, f.backend.Calls(supabasefake.MethodExchangeCode))

	last, err := f.tracker.Last(ctx)
	require.NoError(t, err)
	require.Equal(t, lastprovider.ProviderGoogle, last)
}

func TestSignIn_TokenRoundTrip(t *testing.T) {
	f := setupTestFixture(t, reconcile.PlatformNative, &fakeBrowser{
		result:   oauthlaunch.ResultSuccess,
		fragment: map[string]string{"access_token": "a.b+c", "refresh_token": "r/1"},
	})

	d, err := f.launcher.SignIn(context.Background(), oauthlaunch.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, reconcile.TargetMainApp, d.Target)
	require.Equal(t, 1, f.backend.Calls(supabasefake.MethodSetSession))
	require.Equal(t, "a.b+c", f.backend.Current().AccessToken)
	require.Equal(t, "r/1", f.backend.Current().RefreshToken)
}

func TestSignIn_ExpoDevClientReturnURL(t *testing.T) {
	returnURL := oauthlaunch.ReturnURL(reconcile.PlatformExpoDevClient, "testalbum", "192.168.0.3:8081")
	require.Equal(t, "exp://192.168.0.3:8081/--/auth-callback", returnURL)

	f := setupTestFixture(t, reconcile.PlatformExpoDevClient, &fakeBrowser{
		result: oauthlaunch.ResultSuccess,
		query:  map[string]string{"code": "abc123"},
	}, oauthlaunch.WithReturnURL(returnURL))

	d, err := f.launcher.SignIn(context.Background(), oauthlaunch.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, reconcile.TargetMainApp, d.Target)
	require.True(t, strings.HasPrefix(f.browser.authURL, "https://"))
	require.Equal(t, returnURL, f.launcher.ReturnTo())
}

func TestSignIn_Cancelled(t *testing.T) {
	for _, result := range []oauthlaunch.ResultType{oauthlaunch.ResultCancel, oauthlaunch.ResultDismiss} {
		t.Run(string(result), func(t *testing.T) {
			f := setupTestFixture(t, reconcile.PlatformNative, &fakeBrowser{result: result})

			d, err := f.launcher.SignIn(context.Background(), oauthlaunch.ProviderGoogle)
			require.ErrorIs(t, err, apperrors.ErrCancelled)
			require.Equal(t, reconcile.MessageCancelled, d.Message)
			require.Equal(t, "認証がキャンセルされました。", d.Message.Text())
			require.Equal(t, 0, f.backend.Calls(supabasefake.MethodGetSession))

			last, err := f.tracker.Last(context.Background())
			require.NoError(t, err)
			require.Equal(t, lastprovider.ProviderNone, last)
		})
	}
}

func TestSignIn_WebUnsupported(t *testing.T) {
	f := setupTestFixture(t, reconcile.PlatformWeb, &fakeBrowser{result: oauthlaunch.ResultSuccess})

	d, err := f.launcher.SignIn(context.Background(), oauthlaunch.ProviderGoogle)
	require.ErrorIs(t, err, apperrors.ErrUnsupportedPlatform)
	require.Equal(t, reconcile.MessageUnsupportedPlatform, d.Message)
	require.Equal(t, 0, f.backend.Calls(supabasefake.MethodOAuthURL))
	require.Empty(t, f.browser.authURL)
}

func TestSignIn_BrowserError(t *testing.T) {
	f := setupTestFixture(t, reconcile.PlatformNative, &fakeBrowser{err: errors.New("no browser available")})

	d, err := f.launcher.SignIn(context.Background(), oauthlaunch.ProviderGoogle)
	require.Error(t, err)
	require.Equal(t, reconcile.TargetLogin, d.Target)
}

func TestSignIn_FailedReconcileNotRecorded(t *testing.T) {
	f := setupTestFixture(t, reconcile.PlatformNative, &fakeBrowser{
		result:   oauthlaunch.ResultSuccess,
		fragment: map[string]string{"error": "access_denied", "error_description": "denied"},
	})

	d, err := f.launcher.SignIn(context.Background(), oauthlaunch.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, reconcile.TargetLogin, d.Target)

	last, err := f.tracker.Last(context.Background())
	require.NoError(t, err)
	require.Equal(t, lastprovider.ProviderNone, last)
}

func TestPromptBrowser(t *testing.T) {
	ctx := context.Background()

	t.Run("callback url", func(t *testing.T) {
		var out strings.Builder
		b := oauthlaunch.NewPromptBrowser(strings.NewReader("testalbum://auth-callback?code=abc\n"), &out)
		res, err := b.OpenAuthSession(ctx, "https://auth.example.com/authorize", "testalbum://auth-callback")
		require.NoError(t, err)
		require.Equal(t, oauthlaunch.ResultSuccess, res.Type)
		require.Equal(t, "testalbum://auth-callback?code=abc", res.URL)
		require.Contains(t, out.String(), "https://auth.example.com/authorize")
	})

	t.Run("cancel", func(t *testing.T) {
		b := oauthlaunch.NewPromptBrowser(strings.NewReader("cancel\n"), &strings.Builder{})
		res, err := b.OpenAuthSession(ctx, "u", "r")
		require.NoError(t, err)
		require.Equal(t, oauthlaunch.ResultCancel, res.Type)
	})

	t.Run("empty input dismisses", func(t *testing.T) {
		b := oauthlaunch.NewPromptBrowser(strings.NewReader(""), &strings.Builder{})
		res, err := b.OpenAuthSession(ctx, "u", "r")
		require.NoError(t, err)
		require.Equal(t, oauthlaunch.ResultDismiss, res.Type)
	})

	t.Run("last line without newline", func(t *testing.T) {
		b := oauthlaunch.NewPromptBrowser(strings.NewReader("testalbum://auth-callback#access_token=a&refresh_token=b"), &strings.Builder{})
		res, err := b.OpenAuthSession(ctx, "u", "r")
		require.NoError(t, err)
		require.Equal(t, oauthlaunch.ResultSuccess, res.Type)
	})
}
