package supabasefake

import (
	"context"
	"sync"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/deeplink"
	apperrors "github.com/desert5047-spec/test-keper-sub000/internal/errors"
	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/google/uuid"
)

const (
	MethodGetSession   = "GetSession"
	MethodSetSession   = "SetSession"
	MethodExchangeCode = "ExchangeCodeForSession"
	MethodSignOut      = "SignOut"
	MethodHasChildren  = "HasChildren"
	MethodOAuthURL     = "OAuthSignInURL"
	MethodPassword     = "SignInWithPassword"
	MethodUpdatePass   = "UpdatePassword"
	MethodDetect       = "DetectSessionInURL"
)

// Backend is an in-memory auth backend. By default every establishment call
// succeeds for user "user-1"; the hook fields replace individual methods.
type Backend struct {
	// Hooks run instead of the default behaviour when set.
	SetSessionFunc   func(ctx context.Context, accessToken, refreshToken string) (*supabase.Session, error)
	ExchangeCodeFunc func(ctx context.Context, code string) (*supabase.Session, error)
	GetSessionFunc   func(ctx context.Context) (*supabase.Session, error)
	HasChildrenFunc  func(ctx context.Context, userID string) (bool, error)
	PasswordFunc     func(ctx context.Context, email, password string) (*supabase.Session, error)

	// SuppressInitialSession skips the INITIAL_SESSION sent to new subscribers.
	SuppressInitialSession bool

	lock      sync.RWMutex
	session   *supabase.Session
	listeners map[string]func(supabase.AuthStateChange)
	calls     map[string]int
	hang      chan struct{}
	hangOnce  sync.Once
	verifier  string
	password  string
}

func New() *Backend {
	return &Backend{
		listeners: make(map[string]func(supabase.AuthStateChange)),
		calls:     make(map[string]int),
		hang:      make(chan struct{}),
	}
}

// NewSession returns a session for userID with placeholder tokens.
func NewSession(userID string) *supabase.Session {
	return &supabase.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		TokenType:    "bearer",
		ExpiresIn:    3600,
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         &supabase.User{ID: userID, Email: userID + "@example.com"},
	}
}

// Calls returns how often method was invoked.
func (b *Backend) Calls(method string) int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.calls[method]
}

// Current returns the stored session without counting a call.
func (b *Backend) Current() *supabase.Session {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.session
}

// Install stores s without emitting an event.
func (b *Backend) Install(s *supabase.Session) {
	b.lock.Lock()
	b.session = s
	b.lock.Unlock()
}

// SignIn stores s and emits SIGNED_IN.
func (b *Backend) SignIn(s *supabase.Session) {
	b.Install(s)
	b.Emit(supabase.AuthStateChange{Event: supabase.EventSignedIn, Session: s})
}

// SignInAfter signs s in from another goroutine after d, the way a browser
// runtime finishes its automatic exchange.
func (b *Backend) SignInAfter(d time.Duration, s *supabase.Session) {
	time.AfterFunc(d, func() { b.SignIn(s) })
}

// Hang blocks until Release is called, whatever ctx says. Use it as a hook
// body to model a backend call that never resolves.
func (b *Backend) Hang() {
	<-b.hang
}

// Release unblocks every Hang call.
func (b *Backend) Release() {
	b.hangOnce.Do(func() { close(b.hang) })
}

func (b *Backend) count(method string) {
	b.lock.Lock()
	b.calls[method]++
	b.lock.Unlock()
}

func (b *Backend) GetSession(ctx context.Context) (*supabase.Session, error) {
	b.count(MethodGetSession)
	if b.GetSessionFunc != nil {
		return b.GetSessionFunc(ctx)
	}
	return b.Current(), nil
}

func (b *Backend) SetSession(ctx context.Context, accessToken, refreshToken string) (*supabase.Session, error) {
	b.count(MethodSetSession)
	if b.SetSessionFunc != nil {
		return b.SetSessionFunc(ctx, accessToken, refreshToken)
	}
	if accessToken == "" || refreshToken == "" {
		return nil, apperrors.ErrInvalidToken
	}
	s := NewSession("user-1")
	s.AccessToken, s.RefreshToken = accessToken, refreshToken
	b.SignIn(s)
	return s, nil
}

func (b *Backend) ExchangeCodeForSession(ctx context.Context, code string) (*supabase.Session, error) {
	b.count(MethodExchangeCode)
	if b.ExchangeCodeFunc != nil {
		return b.ExchangeCodeFunc(ctx, code)
	}
	s := NewSession("user-1")
	b.SignIn(s)
	return s, nil
}

func (b *Backend) SignOut(_ context.Context) error {
	b.count(MethodSignOut)
	b.Install(nil)
	b.Emit(supabase.AuthStateChange{Event: supabase.EventSignedOut})
	return nil
}

func (b *Backend) HasChildren(ctx context.Context, userID string) (bool, error) {
	b.count(MethodHasChildren)
	if b.HasChildrenFunc != nil {
		return b.HasChildrenFunc(ctx, userID)
	}
	return true, nil
}

// OAuthSignInURL returns a fake authorize URL that carries the redirect target.
func (b *Backend) OAuthSignInURL(_ context.Context, provider, redirectTo string, _ ...string) (string, error) {
	b.count(MethodOAuthURL)
	b.lock.Lock()
	b.verifier = "verifier-" + uuid.NewString()
	b.lock.Unlock()
	return "https://fake.supabase.co/auth/v1/authorize?provider=" + provider + "&redirect_to=" + redirectTo, nil
}

func (b *Backend) OnAuthStateChange(fn func(supabase.AuthStateChange)) func() {
	id := uuid.NewString()
	b.lock.Lock()
	b.listeners[id] = fn
	b.lock.Unlock()

	if !b.SuppressInitialSession {
		go fn(supabase.AuthStateChange{Event: supabase.EventInitialSession, Session: b.Current()})
	}
	return func() {
		b.lock.Lock()
		delete(b.listeners, id)
		b.lock.Unlock()
	}
}

// Listeners returns the number of active subscribers.
func (b *Backend) Listeners() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.listeners)
}

// Emit delivers change to every subscriber.
func (b *Backend) Emit(change supabase.AuthStateChange) {
	b.lock.RLock()
	fns := make([]func(supabase.AuthStateChange), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.lock.RUnlock()
	for _, fn := range fns {
		fn(change)
	}
}

func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error) {
	b.count(MethodPassword)
	if b.PasswordFunc != nil {
		return b.PasswordFunc(ctx, email, password)
	}
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidToken
	}
	s := NewSession("user-1")
	s.User.Email = email
	b.SignIn(s)
	return s, nil
}

func (b *Backend) UpdatePassword(_ context.Context, newPassword string) error {
	b.count(MethodUpdatePass)
	s := b.Current()
	if s == nil {
		return apperrors.ErrNoSession
	}
	b.lock.Lock()
	b.password = newPassword
	b.lock.Unlock()
	b.Emit(supabase.AuthStateChange{Event: supabase.EventUserUpdated, Session: s})
	return nil
}

// Password returns the last password set through UpdatePassword.
func (b *Backend) Password() string {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.password
}

func (b *Backend) CodeVerifier(_ context.Context) (string, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.verifier == "" {
		return "", apperrors.ErrNotFound
	}
	return b.verifier, nil
}

func (b *Backend) SetCodeVerifier(_ context.Context, verifier string) error {
	b.lock.Lock()
	b.verifier = verifier
	b.lock.Unlock()
	return nil
}

// DetectSessionInURL does what a browser runtime does with a callback URL.
func (b *Backend) DetectSessionInURL(ctx context.Context, rawURL string) error {
	b.count(MethodDetect)
	p := deeplink.Extract(rawURL)
	switch {
	case p.HasError():
		return apperrors.ErrLinkRejected
	case p.HasCode():
		_, err := b.ExchangeCodeForSession(ctx, p.Code)
		return err
	case p.HasTokens():
		_, err := b.SetSession(ctx, p.AccessToken, p.RefreshToken)
		return err
	}
	return nil
}
