package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/internal/config"
	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/desert5047-spec/test-keper-sub000/supabase/supabasefake"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func testDeadlines() reconcile.Deadlines {
	return reconcile.Deadlines{
		SetSession:           50 * time.Millisecond,
		ExchangeCode:         50 * time.Millisecond,
		GetSession:           50 * time.Millisecond,
		FallbackPollAttempts: 3,
		FallbackPollInterval: 5 * time.Millisecond,
		WebExchangeWait:      50 * time.Millisecond,
		WebPollAttempts:      3,
		WebPollInterval:      5 * time.Millisecond,
		Watchdog:             5 * time.Second,
	}
}

func setupTestFixture(t *testing.T, platform reconcile.Platform, opts ...reconcile.Option) (*reconcile.Reconciler, *supabasefake.Backend) {
	t.Helper()
	backend := supabasefake.New()
	t.Cleanup(backend.Release)
	opts = append([]reconcile.Option{reconcile.WithDeadlines(testDeadlines())}, opts...)
	return reconcile.NewReconciler(backend, platform, opts...), backend
}

func TestReconcile_NativeCodeExchange(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformNative)

	out := r.Reconcile(context.Background(), "testalbum://auth-callback?code=abc123")

	require.Equal(t, reconcile.TargetMainApp, out.Decision.Target)
	require.Equal(t, 1, backend.Calls(supabasefake.MethodExchangeCode))
	require.Equal(t, 0, backend.Calls(supabasefake.MethodSetSession))
	require.Equal(t, []reconcile.State{
		reconcile.StateIdle,
		reconcile.StateParsing,
		reconcile.StateDeciding,
		reconcile.StateExchangingCode,
		reconcile.StateVerifying,
		reconcile.StateSuccess,
	}, out.Trace)
	require.NotEmpty(t, out.ID)
}

func TestReconcile_ExpoDevClientExchangesCode(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformExpoDevClient)

	out := r.Reconcile(context.Background(), "exp://192.168.0.3:8081/--/auth-callback?code=abc123")

	require.Equal(t, reconcile.TargetMainApp, out.Decision.Target)
	require.Equal(t, 1, backend.Calls(supabasefake.MethodExchangeCode))
}

func TestReconcile_RecoveryTokensGoToPasswordReset(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformWeb)
	// A session could be established, but recovery links never go to the main app
	backend.Install(supabasefake.NewSession("user-1"))

	out := r.Reconcile(context.Background(), "https://app.example.com/callback#access_token=tok&refresh_token=ref&type=recovery")

	require.Equal(t, reconcile.TargetPasswordReset, out.Decision.Target)
	require.Equal(t, "tok", out.Decision.AccessToken)
	require.Equal(t, "ref", out.Decision.RefreshToken)
	require.Equal(t, 0, backend.Calls(supabasefake.MethodSetSession))
	require.Equal(t, 0, backend.Calls(supabasefake.MethodGetSession))
	require.Equal(t, reconcile.StateSuccess, out.Final())
}

func TestReconcile_RecoveryCodeGoesToPasswordReset(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformNative)

	out := r.Reconcile(context.Background(), "testalbum://auth-callback?code=c1&type=recovery")

	require.Equal(t, reconcile.TargetPasswordReset, out.Decision.Target)
	require.Equal(t, "access-user-1", out.Decision.AccessToken)
	require.Equal(t, 1, backend.Calls(supabasefake.MethodExchangeCode))
}

func TestReconcile_NoParametersNoSession(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformNative)

	out := r.Reconcile(context.Background(), "testalbum://callback")

	require.Equal(t, reconcile.TargetLogin, out.Decision.Target)
	require.Equal(t, reconcile.MessageAuthFailed, out.Decision.Message)
	require.Equal(t, "認証に失敗しました。もう一度お試しください。", out.Decision.Message.Text())
	require.Equal(t, 1, backend.Calls(supabasefake.MethodGetSession))
	require.Equal(t, []reconcile.State{
		reconcile.StateIdle,
		reconcile.StateParsing,
		reconcile.StateDeciding,
		reconcile.StateCheckingExistingSession,
		reconcile.StateFailed,
	}, out.Trace)
}

func TestReconcile_NoParametersExistingSession(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformNative)
	backend.Install(supabasefake.NewSession("user-1"))

	out := r.Reconcile(context.Background(), "testalbum://callback")

	require.Equal(t, reconcile.TargetMainApp, out.Decision.Target)
	require.Equal(t, 1, backend.Calls(supabasefake.MethodGetSession))
}

func TestReconcile_SetSession(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformNative)

	out := r.Reconcile(context.Background(), "testalbum://auth-callback#access_token=tok&refresh_token=ref")

	require.Equal(t, reconcile.TargetMainApp, out.Decision.Target)
	require.Equal(t, 1, backend.Calls(supabasefake.MethodSetSession))
	require.Equal(t, "tok", backend.Current().AccessToken)
	require.Contains(t, out.Trace, reconcile.StateSettingSession)
	require.Contains(t, out.Trace, reconcile.StateVerifying)
}

func TestReconcile_SetSessionNeverResolves(t *testing.T) {
	t.Run("session appears while polling", func(t *testing.T) {
		r, backend := setupTestFixture(t, reconcile.PlatformNative)
		backend.SetSessionFunc = func(_ context.Context, accessToken, refreshToken string) (*supabase.Session, error) {
			// The session is stored but the call never returns
			backend.Install(supabasefake.NewSession("user-1"))
			backend.Hang()
			return nil, nil
		}

		out := r.Reconcile(context.Background(), "testalbum://auth-callback#access_token=tok&refresh_token=ref")

		require.Equal(t, reconcile.TargetMainApp, out.Decision.Target)
		require.GreaterOrEqual(t, backend.Calls(supabasefake.MethodGetSession), 1)
	})

	t.Run("no session after polling", func(t *testing.T) {
		r, backend := setupTestFixture(t, reconcile.PlatformNative)
		backend.SetSessionFunc = func(context.Context, string, string) (*supabase.Session, error) {
			backend.Hang()
			return nil, nil
		}

		out := r.Reconcile(context.Background(), "testalbum://auth-callback#access_token=tok&refresh_token=ref")

		require.Equal(t, reconcile.TargetLogin, out.Decision.Target)
		require.Equal(t, reconcile.MessageTimeout, out.Decision.Message)
		require.Equal(t, 3, backend.Calls(supabasefake.MethodGetSession))
	})
}

func TestReconcile_EstablishmentErrorFallsBackToPolling(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformNative)
	backend.ExchangeCodeFunc = func(context.Context, string) (*supabase.Session, error) {
		return nil, errors.New("flow state not found")
	}

	out := r.Reconcile(context.Background(), "testalbum://auth-callback?code=stale")

	require.Equal(t, reconcile.TargetLogin, out.Decision.Target)
	require.Equal(t, reconcile.MessageAuthFailed, out.Decision.Message)
	require.ErrorContains(t, out.Decision.Err, "flow state not found")
	require.Equal(t, 3, backend.Calls(supabasefake.MethodGetSession))
}

func TestReconcile_SuccessWithoutQueryableSessionFails(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformNative)
	backend.SetSessionFunc = func(context.Context, string, string) (*supabase.Session, error) {
		return supabasefake.NewSession("user-1"), nil
	}

	out := r.Reconcile(context.Background(), "testalbum://auth-callback#access_token=tok&refresh_token=ref")

	require.Equal(t, reconcile.TargetLogin, out.Decision.Target)
	require.Equal(t, reconcile.MessageAuthFailed, out.Decision.Message)
}

func TestReconcile_LinkErrors(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformWeb)

	out := r.Reconcile(context.Background(), "https://app.example.com/auth/callback#error=access_denied&error_code=otp_expired&error_description=expired")
	require.Equal(t, reconcile.MessageLinkExpired, out.Decision.Message)

	out = r.Reconcile(context.Background(), "testalbum://auth-callback?error=server_error&error_description=boom")
	require.Equal(t, reconcile.TargetLogin, out.Decision.Target)
	require.Equal(t, reconcile.MessageAuthFailed, out.Decision.Message)

	require.Equal(t, 0, backend.Calls(supabasefake.MethodGetSession))
}

func TestReconcile_WebWaitsForAutomaticExchange(t *testing.T) {
	d := testDeadlines()
	d.WebExchangeWait = 5 * time.Second
	r, backend := setupTestFixture(t, reconcile.PlatformWeb, reconcile.WithDeadlines(d))
	backend.SuppressInitialSession = true
	backend.SignInAfter(20*time.Millisecond, supabasefake.NewSession("user-1"))

	start := time.Now()
	out := r.Reconcile(context.Background(), "https://app.example.com/auth/callback?code=abc123")

	require.Equal(t, reconcile.TargetMainApp, out.Decision.Target)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, 0, backend.Calls(supabasefake.MethodExchangeCode))
	require.Equal(t, 0, backend.Listeners())
}

func TestReconcile_CancelledWithCause(t *testing.T) {
	d := testDeadlines()
	d.WebExchangeWait = 5 * time.Second

	t.Run("exchange failure is an auth failure", func(t *testing.T) {
		r, _ := setupTestFixture(t, reconcile.PlatformWeb, reconcile.WithDeadlines(d))
		ctx, cancel := context.WithCancelCause(context.Background())
		cancel(errors.New("invalid flow state"))

		start := time.Now()
		out := r.Reconcile(ctx, "https://app.example.com/auth/callback?code=abc123")
		require.Less(t, time.Since(start), 2*time.Second)
		require.Equal(t, reconcile.TargetLogin, out.Decision.Target)
		require.Equal(t, reconcile.MessageAuthFailed, out.Decision.Message)
	})

	t.Run("plain cancellation stays a timeout", func(t *testing.T) {
		r, _ := setupTestFixture(t, reconcile.PlatformWeb, reconcile.WithDeadlines(d))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		out := r.Reconcile(ctx, "https://app.example.com/auth/callback?code=abc123")
		require.Equal(t, reconcile.TargetLogin, out.Decision.Target)
		require.Equal(t, reconcile.MessageTimeout, out.Decision.Message)
	})
}

func TestReconcile_WebExchangeNeverCompletes(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformWeb)

	out := r.Reconcile(context.Background(), "https://app.example.com/auth/callback?code=abc123")

	require.Equal(t, reconcile.TargetLogin, out.Decision.Target)
	require.Equal(t, 3, backend.Calls(supabasefake.MethodGetSession))
	require.Equal(t, 0, backend.Calls(supabasefake.MethodExchangeCode))
}

func TestReconcile_PanicBecomesUnexpected(t *testing.T) {
	r, backend := setupTestFixture(t, reconcile.PlatformNative)
	backend.GetSessionFunc = func(context.Context) (*supabase.Session, error) {
		panic("malformed response")
	}

	var out reconcile.Outcome
	require.NotPanics(t, func() {
		out = r.Reconcile(context.Background(), "testalbum://callback")
	})
	require.Equal(t, reconcile.TargetLogin, out.Decision.Target)
	require.Equal(t, reconcile.MessageUnexpected, out.Decision.Message)
	require.Equal(t, reconcile.StateFailed, out.Final())
}

func TestReconcile_PollSpacing(t *testing.T) {
	var mu sync.Mutex
	var waits []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return nil
	}
	r, backend := setupTestFixture(t, reconcile.PlatformNative, reconcile.WithSleep(sleep))
	backend.SetSessionFunc = func(context.Context, string, string) (*supabase.Session, error) {
		return nil, errors.New("network down")
	}

	r.Reconcile(context.Background(), "testalbum://auth-callback#access_token=tok&refresh_token=ref")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, waits)
}

func TestMessages(t *testing.T) {
	require.Equal(t, "認証がタイムアウトしました。もう一度お試しください。", reconcile.MessageTimeout.Text())
	require.Equal(t, "Authentication timed out. Please try again.", reconcile.MessageTimeout.Text(language.English))
	require.Equal(t, "Authentication failed. Please try again.",
		reconcile.MessageAuthFailed.Text(reconcile.ParseAcceptLanguage("en-US,en;q=0.9")...))
	require.Equal(t, "認証がキャンセルされました。", reconcile.MessageCancelled.Text(reconcile.ParseAcceptLanguage("ja-JP")...))
	require.Equal(t, language.Japanese, reconcile.MatchLanguage(reconcile.ParseAcceptLanguage("fr-FR")...))
	require.Equal(t, language.Japanese, reconcile.MatchLanguage(reconcile.ParseAcceptLanguage(";;;")...))
	require.Empty(t, reconcile.MessageNone.Text())

	for id := reconcile.MessageAuthFailed; id <= reconcile.MessageUnsupportedPlatform; id++ {
		require.Equal(t, id, reconcile.ParseMessageID(id.String()))
		require.NotEmpty(t, id.Text())
		require.NotEmpty(t, id.Text(language.English))
	}
	require.Equal(t, reconcile.MessageNone, reconcile.ParseMessageID("bogus"))
}

func TestDeadlinesFromConfig(t *testing.T) {
	d := reconcile.DeadlinesFromConfig(config.Reconcile{
		SetSessionTimeout: 5 * time.Second,
		WebPollAttempts:   7,
	})

	want := reconcile.DefaultDeadlines()
	want.SetSession = 5 * time.Second
	want.WebPollAttempts = 7
	require.Equal(t, want, d)
	require.Equal(t, 45*time.Second, d.Watchdog)
	require.Equal(t, 500*time.Millisecond, d.FallbackPollInterval)
}

func TestParsePlatform(t *testing.T) {
	for _, p := range []reconcile.Platform{reconcile.PlatformNative, reconcile.PlatformExpoDevClient, reconcile.PlatformWeb} {
		got, err := reconcile.ParsePlatform(p.String())
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	_, err := reconcile.ParsePlatform("desktop")
	require.Error(t, err)
}
