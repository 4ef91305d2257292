package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/desert5047-spec/test-keper-sub000/auth"
	"github.com/desert5047-spec/test-keper-sub000/credstore"
	"github.com/desert5047-spec/test-keper-sub000/lastprovider"
	"github.com/desert5047-spec/test-keper-sub000/oauthlaunch"
	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/rs/zerolog/log"
)

// authClient is what the app needs from *supabase.Client.
type authClient interface {
	reconcile.Backend
	auth.ChildLookup
	oauthlaunch.AuthURLProvider
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	UpdatePassword(ctx context.Context, newPassword string) error
	SignOut(ctx context.Context) error
}

type appOptions struct {
	platform  reconcile.Platform
	deadlines reconcile.Deadlines
	scheme    string
	expoHost  string
	flags     credstore.Store
	remember  *credstore.RememberMeStore
}

// app plays the role of the mobile runtime: deep links typed on stdin are
// delivered to the coordinator and navigation is printed.
type app struct {
	client      authClient
	coordinator *reconcile.Coordinator
	authCtx     *auth.Context
	launcher    *oauthlaunch.Launcher
	tracker     *lastprovider.Tracker
	remember    *credstore.RememberMeStore

	in  *bufio.Reader
	out io.Writer

	mu        sync.Mutex
	lastRoute auth.Route
}

func newApp(ctx context.Context, client authClient, opts appOptions, in io.Reader, out io.Writer) *app {
	a := &app{
		client:   client,
		tracker:  lastprovider.New(opts.flags),
		remember: opts.remember,
		in:       bufio.NewReader(in),
		out:      &lockedWriter{w: out},
	}

	reconciler := reconcile.NewReconciler(client, opts.platform, reconcile.WithDeadlines(opts.deadlines))
	a.coordinator = reconcile.NewCoordinator(reconciler, client, func(d reconcile.Decision) {
		a.authCtx.ApplyDecision(ctx, d)
	})
	a.authCtx = auth.New(client, client, opts.flags, a.navigate, a.coordinator.Pending,
		auth.WithLastProvider(a.tracker.Clear))
	a.launcher = oauthlaunch.New(client, oauthlaunch.NewPromptBrowser(a.in, a.out), a.coordinator, opts.platform,
		oauthlaunch.WithReturnURL(oauthlaunch.ReturnURL(opts.platform, opts.scheme, opts.expoHost)),
		oauthlaunch.WithRecorder(a.tracker))
	return a
}

func (a *app) navigate(r auth.Route) {
	a.mu.Lock()
	a.lastRoute = r
	a.mu.Unlock()
	fmt.Fprintf(a.out, "navigate: %s\n", r)
}

func (a *app) route() auth.Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRoute
}

const usage = `commands:
  <callback url>           deliver a deep link
  login-google             sign in with Google through the browser prompt
  login <email> <password> sign in with a password
  new-password <password>  set a password from the reset screen
  remember on|off          keep the session across restarts
  onboarding-done          mark onboarding as completed
  status                   show the current session
  logout
  quit`

// run reads commands until quit, EOF or ctx is done.
func (a *app) run(ctx context.Context) error {
	if err := a.authCtx.Start(ctx); err != nil {
		return err
	}
	defer a.authCtx.Stop()

	for {
		line, err := a.in.ReadString('\n')
		if cmdErr := a.exec(ctx, strings.TrimSpace(line)); cmdErr != nil {
			if errors.Is(cmdErr, errQuit) {
				return a.coordinator.Wait(ctx)
			}
			fmt.Fprintf(a.out, "error: %v\n", cmdErr)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return a.coordinator.Wait(ctx)
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

var errQuit = errors.New("quit")

func (a *app) exec(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if strings.Contains(line, "://") {
		a.coordinator.Handle(ctx, line)
		return a.coordinator.Wait(ctx)
	}

	fields := strings.Fields(line)
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "quit", "exit":
		return errQuit

	case "help":
		fmt.Fprintln(a.out, usage)

	case "login-google":
		d, err := a.launcher.SignIn(ctx, oauthlaunch.ProviderGoogle)
		if err != nil {
			// The launcher decided without a callback; show it like one
			a.authCtx.ApplyDecision(ctx, d)
			log.Debug().Err(err).Msg("google sign-in ended")
		}

	case "login":
		if len(args) != 2 {
			return errors.New("usage: login <email> <password>")
		}
		if _, err := a.client.SignInWithPassword(ctx, args[0], args[1]); err != nil {
			log.Debug().Err(err).Msg("password sign-in failed")
			a.navigate(auth.Route{Path: auth.RouteLogin, Message: reconcile.MessageAuthFailed})
			return nil
		}
		if err := a.tracker.Record(ctx, lastprovider.ProviderPassword); err != nil {
			log.Debug().Err(err).Msg("failed to record last provider")
		}

	case "new-password":
		if len(args) != 1 {
			return errors.New("usage: new-password <password>")
		}
		return a.resetPassword(ctx, args[0])

	case "remember":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return errors.New("usage: remember on|off")
		}
		if a.remember == nil {
			return errors.New("remember me is not available")
		}
		return a.remember.SetRememberMe(ctx, args[0] == "on")

	case "onboarding-done":
		if err := a.authCtx.CompleteOnboarding(ctx); err != nil {
			return err
		}
		if user := a.authCtx.User(); user != nil {
			a.navigate(a.authCtx.PostLoginRoute(ctx, user))
		}

	case "status":
		a.status(ctx)

	case "logout":
		return a.authCtx.SignOut(ctx)

	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (a *app) resetPassword(ctx context.Context, password string) error {
	r := a.route()
	if r.Path != auth.RouteResetPassword {
		return errors.New("not on the reset password screen")
	}
	if r.AccessToken != "" {
		if _, err := a.client.SetSession(ctx, r.AccessToken, r.RefreshToken); err != nil {
			a.navigate(auth.Route{Path: auth.RouteLogin, Message: reconcile.MessageLinkExpired})
			return nil
		}
	}
	if err := a.client.UpdatePassword(ctx, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "password updated")
	if user := a.authCtx.User(); user != nil {
		a.navigate(a.authCtx.PostLoginRoute(ctx, user))
	}
	return nil
}

func (a *app) status(ctx context.Context) {
	last, err := a.tracker.Last(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("failed to read last provider")
	}
	user := a.authCtx.User()
	switch {
	case user == nil:
		fmt.Fprintf(a.out, "signed out (last provider: %q)\n", last)
	default:
		fmt.Fprintf(a.out, "signed in as %s (last provider: %q)\n", user.Email, last)
	}
}

// lockedWriter serialises writes from event callbacks and the command loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
