package supabase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OnAuthStateChange registers fn for auth notifications. fn receives an
// INITIAL_SESSION right after registering, from its own goroutine, and every
// later change from the goroutine that caused it. The returned func
// unregisters fn.
func (c *Client) OnAuthStateChange(fn func(AuthStateChange)) (unsubscribe func()) {
	id := uuid.NewString()

	c.mu.Lock()
	c.listeners[id] = fn
	c.mu.Unlock()

	go func() {
		s, err := c.currentSession(context.Background())
		if err != nil {
			log.Debug().Err(err).Msg("initial session unavailable")
		}
		c.mu.RLock()
		_, active := c.listeners[id]
		c.mu.RUnlock()
		if active {
			fn(AuthStateChange{Event: EventInitialSession, Session: s})
		}
	}()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// emit calls every listener outside the lock.
func (c *Client) emit(change AuthStateChange) {
	c.mu.RLock()
	fns := make([]func(AuthStateChange), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	log.Debug().Str("event", string(change.Event)).Int("listeners", len(fns)).Msg("auth state change")
	for _, fn := range fns {
		fn(change)
	}
}
