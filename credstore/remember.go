package credstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// RememberMeKey is the flag key kept in the general key-value store.
const RememberMeKey = "remember_me"

// RememberMeStore routes writes either to persistent storage or to memory,
// depending on the user's "remember me" choice. With the flag off, tokens
// never outlive the process.
type RememberMeStore struct {
	persistent Store
	flags      Store
	memory     *MemoryStore
	fallback   bool

	mu   sync.Mutex
	keys map[string]struct{}
}

var _ Store = (*RememberMeStore)(nil)

// NewRememberMeStore keeps the flag in flags. defaultRemember applies until
// the flag has been written once. keys names the entries that toggling the
// flag must always migrate, such as the session and code verifier keys,
// including ones written by an earlier process.
func NewRememberMeStore(persistent, flags Store, defaultRemember bool, keys ...string) *RememberMeStore {
	r := &RememberMeStore{
		persistent: persistent,
		flags:      flags,
		memory:     NewMemoryStore(),
		fallback:   defaultRemember,
		keys:       make(map[string]struct{}, len(keys)),
	}
	for _, k := range keys {
		r.keys[k] = struct{}{}
	}
	return r
}

// RememberMe reports the current flag value.
func (r *RememberMeStore) RememberMe(ctx context.Context) (bool, error) {
	v, err := r.flags.GetItem(ctx, RememberMeKey)
	if errors.Is(err, ErrNotFound) {
		return r.fallback, nil
	}
	if err != nil {
		return r.fallback, fmt.Errorf("[RememberMeStore RememberMe] %w", err)
	}
	remember, err := strconv.ParseBool(v)
	if err != nil {
		return r.fallback, nil
	}
	return remember, nil
}

// SetRememberMe stores the flag and moves every known key to the matching
// side. Turning the flag off purges those keys from persistent storage.
func (r *RememberMeStore) SetRememberMe(ctx context.Context, remember bool) error {
	if err := r.flags.SetItem(ctx, RememberMeKey, strconv.FormatBool(remember)); err != nil {
		return fmt.Errorf("[RememberMeStore SetRememberMe] %w", err)
	}

	r.mu.Lock()
	keys := make([]string, 0, len(r.keys))
	for k := range r.keys {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	from, to := Store(r.memory), r.persistent
	if !remember {
		from, to = r.persistent, Store(r.memory)
	}
	var errs []error
	for _, k := range keys {
		v, err := from.GetItem(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := to.SetItem(ctx, k, v); err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, from.RemoveItem(ctx, k))
	}
	return errors.Join(errs...)
}

func (r *RememberMeStore) track(key string) {
	r.mu.Lock()
	r.keys[key] = struct{}{}
	r.mu.Unlock()
}

// GetItem reads from the side the flag selects. With the flag off, a value
// still in persistent storage from an earlier process is moved into memory.
func (r *RememberMeStore) GetItem(ctx context.Context, key string) (string, error) {
	remember, _ := r.RememberMe(ctx)
	if remember {
		return r.persistent.GetItem(ctx, key)
	}

	v, err := r.memory.GetItem(ctx, key)
	if !errors.Is(err, ErrNotFound) {
		return v, err
	}
	v, err = r.persistent.GetItem(ctx, key)
	if err != nil {
		return "", err
	}
	r.track(key)
	if err := r.memory.SetItem(ctx, key, v); err != nil {
		return "", err
	}
	if err := r.persistent.RemoveItem(ctx, key); err != nil {
		return "", fmt.Errorf("[RememberMeStore GetItem] %w", err)
	}
	return v, nil
}

func (r *RememberMeStore) SetItem(ctx context.Context, key, value string) error {
	r.track(key)

	remember, _ := r.RememberMe(ctx)
	if remember {
		return r.persistent.SetItem(ctx, key, value)
	}
	if err := r.memory.SetItem(ctx, key, value); err != nil {
		return err
	}
	return r.persistent.RemoveItem(ctx, key)
}

// RemoveItem clears key from both sides. The key stays known so a later
// toggle still purges whatever another process writes under it.
func (r *RememberMeStore) RemoveItem(ctx context.Context, key string) error {
	return errors.Join(r.memory.RemoveItem(ctx, key), r.persistent.RemoveItem(ctx, key))
}
