package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/desert5047-spec/test-keper-sub000/credstore"
	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/rs/zerolog/log"
)

// OnboardingKey marks the onboarding screens as done on this device.
const OnboardingKey = "onboarding_completed"

// Backend is the auth client surface the context observes.
type Backend interface {
	GetSession(ctx context.Context) (*supabase.Session, error)
	OnAuthStateChange(fn func(supabase.AuthStateChange)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// ChildLookup reports whether a user has registered a child yet.
type ChildLookup interface {
	HasChildren(ctx context.Context, userID string) (bool, error)
}

type Option func(*Context)

// WithLastProvider clears the recorded provider on sign-out.
func WithLastProvider(clear func(ctx context.Context) error) Option {
	return func(c *Context) {
		c.clearProvider = clear
	}
}

// Context holds the current session for the app and routes after sign-in.
// While a callback is pending it leaves routing to the callback decision.
type Context struct {
	backend       Backend
	children      ChildLookup
	flags         credstore.Store
	navigate      func(Route)
	pending       func() bool
	clearProvider func(ctx context.Context) error

	mu          sync.RWMutex
	baseCtx     context.Context
	session     *supabase.Session
	ready       bool
	unsubscribe func()
}

// New builds a Context. flags holds the onboarding flag; pending reports
// whether a callback is in flight and may be nil.
func New(backend Backend, children ChildLookup, flags credstore.Store, navigate func(Route), pending func() bool, opts ...Option) *Context {
	if pending == nil {
		pending = func() bool { return false }
	}
	if navigate == nil {
		navigate = func(Route) {}
	}
	c := &Context{
		backend:  backend,
		children: children,
		flags:    flags,
		navigate: navigate,
		pending:  pending,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to auth changes. The first event is INITIAL_SESSION.
func (c *Context) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.baseCtx = context.WithoutCancel(ctx)
	c.unsubscribe = func() {}
	c.mu.Unlock()

	unsubscribe := c.backend.OnAuthStateChange(c.handle)

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	return nil
}

// Stop unsubscribes from auth changes.
func (c *Context) Stop() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (c *Context) handle(change supabase.AuthStateChange) {
	ctx := c.context()
	logger := log.With().Str("event", string(change.Event)).Logger()

	switch change.Event {
	case supabase.EventInitialSession:
		c.setSession(change.Session)
		if c.pending() {
			logger.Debug().Msg("callback pending, skipping boot routing")
			return
		}
		if change.Session.HasUser() {
			c.navigate(c.PostLoginRoute(ctx, change.Session.User))
			return
		}
		c.navigate(Route{Path: RouteLogin})

	case supabase.EventSignedIn:
		c.setSession(change.Session)
		if c.pending() {
			logger.Debug().Msg("callback pending, routing left to callback decision")
			return
		}
		if change.Session.HasUser() {
			c.navigate(c.PostLoginRoute(ctx, change.Session.User))
		}

	case supabase.EventTokenRefreshed, supabase.EventUserUpdated:
		c.setSession(change.Session)

	case supabase.EventPasswordRecovery:
		c.setSession(change.Session)
		if !c.pending() && change.Session != nil {
			c.navigate(Route{Path: RouteResetPassword, AccessToken: change.Session.AccessToken, RefreshToken: change.Session.RefreshToken})
		}

	case supabase.EventSignedOut:
		c.setSession(nil)
		c.navigate(Route{Path: RouteLogin})
	}
}

// PostLoginRoute picks the first screen for a signed-in user: onboarding,
// then child registration, then the main tabs. Lookup failures fall through
// to the main tabs.
func (c *Context) PostLoginRoute(ctx context.Context, user *supabase.User) Route {
	done, err := c.OnboardingCompleted(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("failed to read onboarding flag")
	}
	if err == nil && !done {
		return Route{Path: RouteOnboarding}
	}

	if c.children != nil && user != nil {
		has, err := c.children.HasChildren(ctx, user.ID)
		if err != nil {
			log.Debug().Err(err).Msg("failed to check children")
		} else if !has {
			return Route{Path: RouteRegisterChild}
		}
	}
	return Route{Path: RouteMainTabs}
}

// ApplyDecision turns a callback decision into navigation and returns the route taken.
func (c *Context) ApplyDecision(ctx context.Context, d reconcile.Decision) Route {
	var r Route
	switch d.Target {
	case reconcile.TargetPasswordReset:
		r = Route{Path: RouteResetPassword, AccessToken: d.AccessToken, RefreshToken: d.RefreshToken}
	case reconcile.TargetMainApp:
		s, err := c.backend.GetSession(ctx)
		if err != nil || !s.HasUser() {
			log.Debug().Err(err).Msg("session missing after callback success")
			r = Route{Path: RouteLogin, Message: reconcile.MessageAuthFailed}
			break
		}
		c.setSession(s)
		r = c.PostLoginRoute(ctx, s.User)
	default:
		msg := d.Message
		if msg == reconcile.MessageNone {
			msg = reconcile.MessageAuthFailed
		}
		r = Route{Path: RouteLogin, Message: msg}
	}
	c.navigate(r)
	return r
}

func (c *Context) Session() *supabase.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Context) User() *supabase.User {
	if s := c.Session(); s != nil {
		return s.User
	}
	return nil
}

// Ready reports whether the initial session has been seen.
func (c *Context) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// SignOut signs out and forgets the last provider. Navigation follows from
// the SIGNED_OUT event.
func (c *Context) SignOut(ctx context.Context) error {
	if err := c.backend.SignOut(ctx); err != nil {
		return err
	}
	if c.clearProvider != nil {
		if err := c.clearProvider(ctx); err != nil {
			log.Debug().Err(err).Msg("failed to clear last provider")
		}
	}
	return nil
}

func (c *Context) CompleteOnboarding(ctx context.Context) error {
	return c.flags.SetItem(ctx, OnboardingKey, "true")
}

func (c *Context) OnboardingCompleted(ctx context.Context) (bool, error) {
	v, err := c.flags.GetItem(ctx, OnboardingKey)
	if errors.Is(err, credstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (c *Context) setSession(s *supabase.Session) {
	c.mu.Lock()
	c.session = s
	c.ready = true
	c.mu.Unlock()
}

func (c *Context) context() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseCtx == nil {
		return context.Background()
	}
	return c.baseCtx
}
