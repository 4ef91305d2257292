package reconcile

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/deeplink"
	apperrors "github.com/desert5047-spec/test-keper-sub000/internal/errors"
	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend is the part of the auth client a reconciliation drives.
type Backend interface {
	GetSession(ctx context.Context) (*supabase.Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*supabase.Session, error)
	ExchangeCodeForSession(ctx context.Context, code string) (*supabase.Session, error)
	OnAuthStateChange(fn func(supabase.AuthStateChange)) (unsubscribe func())
}

// Platform selects how an authorization code is handled.
type Platform int

const (
	// PlatformNative is a production build opened through the custom scheme
	PlatformNative Platform = iota
	// PlatformExpoDevClient is a development client opened through exp://
	PlatformExpoDevClient
	// PlatformWeb is a browser, where the auth client exchanges codes itself
	PlatformWeb
)

func (p Platform) String() string {
	switch p {
	case PlatformExpoDevClient:
		return "expo-dev-client"
	case PlatformWeb:
		return "web"
	}
	return "native"
}

// ParsePlatform accepts the names produced by Platform.String.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return PlatformNative, nil
	case "expo-dev-client", "expo":
		return PlatformExpoDevClient, nil
	case "web":
		return PlatformWeb, nil
	}
	return PlatformNative, fmt.Errorf("unknown platform %q: %w", s, apperrors.ErrUnsupportedPlatform)
}

// Outcome is the result of one reconciliation.
type Outcome struct {
	ID       string
	Decision Decision
	Trace    []State
}

// Final returns the last state reached.
func (o Outcome) Final() State {
	if len(o.Trace) == 0 {
		return StateIdle
	}
	return o.Trace[len(o.Trace)-1]
}

type Option func(*Reconciler)

func WithDeadlines(d Deadlines) Option {
	return func(r *Reconciler) {
		r.deadlines = d
	}
}

// WithSleep replaces the wait between poll attempts (primarily for testing)
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Reconciler) {
		r.sleep = sleep
	}
}

// Reconciler turns a callback URL into a session and a redirect decision.
// It holds no per-invocation state; the Coordinator serializes invocations.
type Reconciler struct {
	backend   Backend
	platform  Platform
	deadlines Deadlines
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewReconciler(backend Backend, platform Platform, opts ...Option) *Reconciler {
	r := &Reconciler{
		backend:   backend,
		platform:  platform,
		deadlines: DefaultDeadlines(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) Deadlines() Deadlines {
	return r.deadlines
}

func (r *Reconciler) Platform() Platform {
	return r.platform
}

// invocation records the trace of a single Reconcile call.
type invocation struct {
	id     string
	trace  []State
	logger zerolog.Logger
}

func (inv *invocation) to(s State) {
	inv.trace = append(inv.trace, s)
	inv.logger.Debug().Str("state", s.String()).Msg("reconcile transition")
}

func (inv *invocation) outcome(d Decision) Outcome {
	if d.Target == TargetLogin {
		inv.to(StateFailed)
		inv.logger.Debug().Err(d.Err).Msg("reconcile failure cause")
	} else {
		inv.to(StateSuccess)
	}
	inv.logger.Info().Str("decision", d.String()).Msg("callback reconciled")
	return Outcome{ID: inv.id, Decision: d, Trace: inv.trace}
}

// Reconcile runs one callback URL to a decision. It never panics and never
// returns without a decision.
func (r *Reconciler) Reconcile(ctx context.Context, rawURL string) (out Outcome) {
	inv := &invocation{id: uuid.NewString(), trace: []State{StateIdle}}
	inv.logger = log.With().Str("reconcile_id", inv.id).Str("platform", r.platform.String()).Logger()

	defer func() {
		if p := recover(); p != nil {
			inv.logger.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("reconcile panicked")
			out = inv.outcome(ToLogin(MessageUnexpected, fmt.Errorf("panic: %v", p)))
		}
	}()

	inv.to(StateParsing)
	params := deeplink.Extract(rawURL)
	inv.logger.Debug().Str("shape", deeplink.ShapeOf(rawURL).String()).Stringer("params", params).Msg("callback parsed")

	inv.to(StateDeciding)
	switch {
	case params.HasError():
		msg := MessageAuthFailed
		if params.ErrorCode == deeplink.ErrorCodeOTPExpired {
			msg = MessageLinkExpired
		}
		cause := fmt.Errorf("%s %s: %w", params.Error, params.ErrorCode, apperrors.ErrLinkRejected)
		return inv.outcome(ToLogin(msg, cause))

	case params.IsRecovery() && params.AccessToken != "":
		return inv.outcome(ToPasswordReset(params.AccessToken, params.RefreshToken))

	case params.HasCode():
		inv.to(StateExchangingCode)
		if r.platform == PlatformWeb {
			r.waitForSignIn(ctx, inv)
			return r.verify(ctx, inv, params, nil, r.deadlines.WebPollAttempts, r.deadlines.WebPollInterval)
		}
		_, err := callWithDeadline(ctx, r.deadlines.ExchangeCode, func(ctx context.Context) (*supabase.Session, error) {
			return r.backend.ExchangeCodeForSession(ctx, params.Code)
		})
		return r.verify(ctx, inv, params, err, r.deadlines.FallbackPollAttempts, r.deadlines.FallbackPollInterval)

	case params.HasTokens():
		inv.to(StateSettingSession)
		_, err := callWithDeadline(ctx, r.deadlines.SetSession, func(ctx context.Context) (*supabase.Session, error) {
			return r.backend.SetSession(ctx, params.AccessToken, params.RefreshToken)
		})
		return r.verify(ctx, inv, params, err, r.deadlines.FallbackPollAttempts, r.deadlines.FallbackPollInterval)
	}

	inv.to(StateCheckingExistingSession)
	s, err := r.getSession(ctx)
	if err != nil {
		return inv.outcome(ToLogin(failureMessage(ctx, err), err))
	}
	if !s.HasUser() {
		return inv.outcome(ToLogin(MessageAuthFailed, apperrors.ErrNoParameters))
	}
	return r.success(inv, params, s)
}

// verify confirms through GetSession that a user is present. The
// establishment result is only logged: a failed or timed out call may still
// have produced a session, and a successful one may not have.
func (r *Reconciler) verify(ctx context.Context, inv *invocation, params deeplink.AuthParameters, establishErr error, attempts int, interval time.Duration) Outcome {
	if establishErr != nil {
		inv.logger.Debug().Err(establishErr).Msg("session establishment failed, polling")
	}
	inv.to(StateVerifying)

	s, err := r.poll(ctx, inv, attempts, interval)
	if err != nil {
		cause := err
		if establishErr != nil {
			cause = fmt.Errorf("%w (establishment: %v)", err, establishErr)
		}
		return inv.outcome(ToLogin(failureMessage(ctx, establishErr), cause))
	}
	return r.success(inv, params, s)
}

func (r *Reconciler) success(inv *invocation, params deeplink.AuthParameters, s *supabase.Session) Outcome {
	if params.IsRecovery() {
		return inv.outcome(ToPasswordReset(s.AccessToken, s.RefreshToken))
	}
	return inv.outcome(ToMainApp())
}

// poll calls GetSession until it returns a user or attempts run out.
func (r *Reconciler) poll(ctx context.Context, inv *invocation, attempts int, interval time.Duration) (*supabase.Session, error) {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := r.sleep(ctx, interval); err != nil {
				return nil, err
			}
		}
		s, err := r.getSession(ctx)
		if err != nil {
			inv.logger.Debug().Err(err).Int("attempt", i+1).Msg("get session failed")
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if s.HasUser() {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no session after %d attempts: %w", attempts, apperrors.ErrNoSession)
}

// waitForSignIn blocks until the auth client reports a session or the web
// exchange wait elapses. Either way the caller polls afterwards.
func (r *Reconciler) waitForSignIn(ctx context.Context, inv *invocation) {
	signedIn := make(chan struct{}, 1)
	unsubscribe := r.backend.OnAuthStateChange(func(change supabase.AuthStateChange) {
		switch change.Event {
		case supabase.EventSignedIn, supabase.EventPasswordRecovery:
		case supabase.EventInitialSession:
			if !change.Session.HasUser() {
				return
			}
		default:
			return
		}
		select {
		case signedIn <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	timer := time.NewTimer(r.deadlines.WebExchangeWait)
	defer timer.Stop()

	select {
	case <-signedIn:
		inv.logger.Debug().Msg("automatic code exchange completed")
	case <-timer.C:
		inv.logger.Debug().Dur("waited", r.deadlines.WebExchangeWait).Msg("no sign-in event, polling")
	case <-ctx.Done():
	}
}

func (r *Reconciler) getSession(ctx context.Context) (*supabase.Session, error) {
	return callWithDeadline(ctx, r.deadlines.GetSession, r.backend.GetSession)
}

// callWithDeadline runs call with a context that expires after d. The call
// runs on its own goroutine so a backend that ignores ctx cannot hold the
// flow; its late result is dropped. A panic in call is re-raised here.
func callWithDeadline(ctx context.Context, d time.Duration, call func(context.Context) (*supabase.Session, error)) (*supabase.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		session  *supabase.Session
		err      error
		panicked any
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{panicked: p}
			}
		}()
		s, err := call(ctx)
		done <- result{session: s, err: err}
	}()

	select {
	case res := <-done:
		if res.panicked != nil {
			panic(res.panicked)
		}
		return res.session, res.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("after %s: %w", d, apperrors.ErrTimeout)
		}
		return nil, ctx.Err()
	}
}

// failureMessage picks what the user is told. A context cancelled with a
// cause of its own, such as a failed code exchange, is an auth failure.
func failureMessage(ctx context.Context, err error) MessageID {
	if apperrors.Is(err, apperrors.ErrTimeout) {
		return MessageTimeout
	}
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != ctx.Err() {
			return MessageAuthFailed
		}
		return MessageTimeout
	}
	return MessageAuthFailed
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
