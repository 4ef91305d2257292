package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/auth"
	"github.com/desert5047-spec/test-keper-sub000/credstore"
	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/desert5047-spec/test-keper-sub000/supabase/supabasefake"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *supabasefake.Backend
	flags   *credstore.MemoryStore
	authCtx *auth.Context

	mu      sync.Mutex
	routes  []auth.Route
	pending bool
}

func (f *testFixture) navigate(r auth.Route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, r)
}

func (f *testFixture) isPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *testFixture) setPending(p bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = p
}

func (f *testFixture) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.routes))
	for _, r := range f.routes {
		out = append(out, r.Path)
	}
	return out
}

func setupTestFixture(t *testing.T, opts ...auth.Option) *testFixture {
	t.Helper()
	f := &testFixture{
		backend: supabasefake.New(),
		flags:   credstore.NewMemoryStore(),
	}
	f.authCtx = auth.New(f.backend, f.backend, f.flags, f.navigate, f.isPending, opts...)
	return f
}

func (f *testFixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.authCtx.Start(context.Background()))
	t.Cleanup(f.authCtx.Stop)
	require.Eventually(t, f.authCtx.Ready, time.Second, 5*time.Millisecond)
}

func TestStart_NoSessionRoutesToLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.start(t)

	require.Eventually(t, func() bool { return len(f.paths()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{auth.RouteLogin}, f.paths())
	require.Nil(t, f.authCtx.Session())
	require.ErrorIs(t, f.authCtx.Start(context.Background()), auth.ErrAlreadyStarted)
}

func TestStart_ExistingSessionRoutesAfterLogin(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.authCtx.CompleteOnboarding(context.Background()))
	f.backend.Install(supabasefake.NewSession("user-1"))
	f.start(t)

	require.Eventually(t, func() bool { return len(f.paths()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{auth.RouteMainTabs}, f.paths())
	require.Equal(t, "user-1", f.authCtx.User().ID)
}

func TestStart_PendingCallbackSkipsBootRouting(t *testing.T) {
	f := setupTestFixture(t)
	f.setPending(true)
	f.backend.Install(supabasefake.NewSession("user-1"))
	f.start(t)

	f.backend.SignIn(supabasefake.NewSession("user-1"))
	require.Empty(t, f.paths())
	require.NotNil(t, f.authCtx.Session())
}

func TestPostLoginRoute(t *testing.T) {
	ctx := context.Background()
	user := &supabase.User{ID: "user-1"}

	t.Run("onboarding first", func(t *testing.T) {
		f := setupTestFixture(t)
		require.Equal(t, auth.RouteOnboarding, f.authCtx.PostLoginRoute(ctx, user).Path)
	})

	t.Run("then child registration", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.authCtx.CompleteOnboarding(ctx))
		f.backend.HasChildrenFunc = func(context.Context, string) (bool, error) { return false, nil }
		require.Equal(t, auth.RouteRegisterChild, f.authCtx.PostLoginRoute(ctx, user).Path)
	})

	t.Run("then main tabs", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.authCtx.CompleteOnboarding(ctx))
		require.Equal(t, auth.RouteMainTabs, f.authCtx.PostLoginRoute(ctx, user).Path)
	})

	t.Run("lookup failure falls through", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.authCtx.CompleteOnboarding(ctx))
		f.backend.HasChildrenFunc = func(context.Context, string) (bool, error) { return false, errors.New("offline") }
		require.Equal(t, auth.RouteMainTabs, f.authCtx.PostLoginRoute(ctx, user).Path)
	})
}

func TestApplyDecision(t *testing.T) {
	ctx := context.Background()

	t.Run("password reset carries tokens", func(t *testing.T) {
		f := setupTestFixture(t)
		r := f.authCtx.ApplyDecision(ctx, reconcile.ToPasswordReset("tok", "ref"))
		require.Equal(t, auth.RouteResetPassword, r.Path)
		require.Equal(t, "tok", r.AccessToken)
		require.Equal(t, []string{auth.RouteResetPassword}, f.paths())
	})

	t.Run("main app uses post login route", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.authCtx.CompleteOnboarding(ctx))
		f.backend.Install(supabasefake.NewSession("user-1"))
		r := f.authCtx.ApplyDecision(ctx, reconcile.ToMainApp())
		require.Equal(t, auth.RouteMainTabs, r.Path)
		require.Equal(t, "user-1", f.authCtx.User().ID)
	})

	t.Run("main app without session goes to login", func(t *testing.T) {
		f := setupTestFixture(t)
		r := f.authCtx.ApplyDecision(ctx, reconcile.ToMainApp())
		require.Equal(t, auth.RouteLogin, r.Path)
		require.Equal(t, reconcile.MessageAuthFailed, r.Message)
	})

	t.Run("login carries message", func(t *testing.T) {
		f := setupTestFixture(t)
		r := f.authCtx.ApplyDecision(ctx, reconcile.ToLogin(reconcile.MessageLinkExpired, nil))
		require.Equal(t, auth.RouteLogin, r.Path)
		require.Equal(t, reconcile.MessageLinkExpired, r.Message)
		require.Equal(t, "/(auth)/login?error=link-expired", r.String())
	})
}

func TestSignOut(t *testing.T) {
	cleared := false
	f := setupTestFixture(t, auth.WithLastProvider(func(context.Context) error {
		cleared = true
		return nil
	}))
	require.NoError(t, f.authCtx.CompleteOnboarding(context.Background()))
	f.backend.Install(supabasefake.NewSession("user-1"))
	f.start(t)
	require.Eventually(t, func() bool { return len(f.paths()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.authCtx.SignOut(context.Background()))
	require.True(t, cleared)
	require.Nil(t, f.authCtx.Session())
	require.Equal(t, []string{auth.RouteMainTabs, auth.RouteLogin}, f.paths())
	require.Equal(t, 1, f.backend.Calls(supabasefake.MethodSignOut))
}

func TestTokenRefreshDoesNotNavigate(t *testing.T) {
	f := setupTestFixture(t)
	f.start(t)
	require.Eventually(t, func() bool { return len(f.paths()) == 1 }, time.Second, 5*time.Millisecond)

	s := supabasefake.NewSession("user-1")
	f.backend.Emit(supabase.AuthStateChange{Event: supabase.EventTokenRefreshed, Session: s})
	require.Same(t, s, f.authCtx.Session())
	require.Len(t, f.paths(), 1)
}
