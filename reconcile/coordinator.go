package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/supabase"
	"github.com/rs/zerolog/log"
)

// SessionChecker is what the watchdog needs from the auth client.
type SessionChecker interface {
	GetSession(ctx context.Context) (*supabase.Session, error)
}

// Coordinator runs at most one reconciliation at a time. A URL arriving
// while one is in flight waits in a single pending slot; a later URL
// replaces it. Every invocation acts on exactly one decision.
//
// A URL equal to the one in flight is not queued and replayed. It joins
// the running invocation instead, so HandleAndWait returns that
// invocation's decision and the tokens are established only once.
type Coordinator struct {
	reconciler *Reconciler
	sessions   SessionChecker
	redirect   func(Decision)

	mu      sync.Mutex
	current *run
	pending *request
	idle    chan struct{}
}

// request is a URL waiting to be served, with everyone waiting on it.
type request struct {
	ctx     context.Context
	url     string
	waiters []chan Decision
}

// run is one in-flight invocation.
type run struct {
	request
	decided  bool
	decision Decision
	cancel   context.CancelFunc
	watchdog *time.Timer
}

// NewCoordinator wires a reconciler to redirect, which receives each
// invocation's single decision.
func NewCoordinator(reconciler *Reconciler, sessions SessionChecker, redirect func(Decision)) *Coordinator {
	if redirect == nil {
		redirect = func(Decision) {}
	}
	return &Coordinator{
		reconciler: reconciler,
		sessions:   sessions,
		redirect:   redirect,
	}
}

// Handle submits a callback URL without waiting for its decision.
func (c *Coordinator) Handle(ctx context.Context, rawURL string) {
	c.submit(ctx, rawURL, nil)
}

// HandleAndWait submits a callback URL and waits for the decision of the
// invocation that ends up serving it. If the URL is replaced in the pending
// slot, that is the decision of the URL that replaced it.
func (c *Coordinator) HandleAndWait(ctx context.Context, rawURL string) (Decision, error) {
	ch := make(chan Decision, 1)
	c.submit(ctx, rawURL, ch)
	select {
	case d := <-ch:
		return d, nil
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// Pending reports whether a callback is being processed. Boot-time routing
// stays out of the way while it is true.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Wait blocks until no callback is in flight or pending.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) submit(ctx context.Context, rawURL string, waiter chan Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var waiters []chan Decision
	if waiter != nil {
		waiters = append(waiters, waiter)
	}

	switch {
	case c.current == nil:
		c.start(&request{ctx: ctx, url: rawURL, waiters: waiters})
	case c.current.url == rawURL:
		log.Debug().Msg("callback already in flight, ignoring duplicate")
		if c.current.decided {
			for _, w := range waiters {
				w <- c.current.decision
			}
			return
		}
		c.current.waiters = append(c.current.waiters, waiters...)
	default:
		if c.pending != nil {
			log.Debug().Msg("replacing pending callback")
			waiters = append(c.pending.waiters, waiters...)
		}
		c.pending = &request{ctx: ctx, url: rawURL, waiters: waiters}
	}
}

// start launches req. c.mu must be held.
func (c *Coordinator) start(req *request) {
	if c.idle == nil {
		c.idle = make(chan struct{})
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(req.ctx))
	r := &run{request: *req, cancel: cancel}
	r.ctx = runCtx
	r.watchdog = time.AfterFunc(c.reconciler.Deadlines().Watchdog, func() { c.fireWatchdog(r) })
	c.current = r

	go c.serve(r)
}

func (c *Coordinator) serve(r *run) {
	defer c.finish(r)
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("callback redirect panicked")
			c.decide(r, ToLogin(MessageUnexpected, fmt.Errorf("panic: %v", p)), "recover")
		}
	}()

	out := c.reconciler.Reconcile(r.ctx, r.url)
	c.decide(r, out.Decision, "reconcile")
}

// fireWatchdog forces a decision for an invocation that has run too long,
// then cancels it so its backend calls stop.
func (c *Coordinator) fireWatchdog(r *run) {
	defer r.cancel()
	// Nothing else recovers on the timer goroutine
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("callback watchdog panicked")
			c.decide(r, ToLogin(MessageTimeout, fmt.Errorf("watchdog panic: %v", p)), "watchdog")
		}
	}()

	c.mu.Lock()
	decided := r.decided
	c.mu.Unlock()
	if decided {
		return
	}

	log.Warn().Dur("after", c.reconciler.Deadlines().Watchdog).Msg("callback watchdog fired")
	d := ToLogin(MessageTimeout, fmt.Errorf("watchdog expired"))
	if c.sessions != nil {
		s, err := callWithDeadline(context.WithoutCancel(r.ctx), c.reconciler.Deadlines().GetSession, c.sessions.GetSession)
		if err != nil {
			log.Debug().Err(err).Msg("watchdog session check failed")
		} else if s.HasUser() {
			d = ToMainApp()
		}
	}
	c.decide(r, d, "watchdog")
}

// decide acts on d unless r already has a decision.
func (c *Coordinator) decide(r *run, d Decision, source string) {
	c.mu.Lock()
	if r.decided {
		c.mu.Unlock()
		log.Debug().Str("source", source).Str("decision", d.String()).Msg("late callback decision discarded")
		return
	}
	r.decided = true
	r.decision = d
	waiters := r.waiters
	c.mu.Unlock()

	log.Debug().Str("source", source).Str("decision", d.String()).Msg("acting on callback decision")
	// Waiters hear the decision even if redirect panics
	defer func() {
		for _, w := range waiters {
			w <- d
		}
	}()
	c.redirect(d)
}

// finish clears the in-flight invocation and replays the pending URL.
func (c *Coordinator) finish(r *run) {
	r.watchdog.Stop()
	r.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	if next := c.pending; next != nil {
		c.pending = nil
		c.start(next)
		return
	}
	if c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}
