// Package lastprovider remembers how the user last signed in, so the login
// screen can highlight that option. It is a hint only and never gates auth.
package lastprovider

import (
	"context"
	"errors"
	"fmt"

	"github.com/desert5047-spec/test-keper-sub000/credstore"
)

// StorageKey is where the provider name is kept in the general store.
const StorageKey = "last_auth_provider"

type Provider string

const (
	ProviderNone     Provider = ""
	ProviderPassword Provider = "password"
	ProviderGoogle   Provider = "google"
)

func (p Provider) Valid() bool {
	return p == ProviderPassword || p == ProviderGoogle
}

type Tracker struct {
	store credstore.Store
}

func New(store credstore.Store) *Tracker {
	return &Tracker{store: store}
}

// Record stores p as the most recent successful sign-in method.
func (t *Tracker) Record(ctx context.Context, p Provider) error {
	if !p.Valid() {
		return fmt.Errorf("[Tracker Record] unknown provider %q", p)
	}
	if err := t.store.SetItem(ctx, StorageKey, string(p)); err != nil {
		return fmt.Errorf("[Tracker Record] %w", err)
	}
	return nil
}

// Last returns ProviderNone when nothing valid has been recorded.
func (t *Tracker) Last(ctx context.Context) (Provider, error) {
	v, err := t.store.GetItem(ctx, StorageKey)
	if errors.Is(err, credstore.ErrNotFound) {
		return ProviderNone, nil
	}
	if err != nil {
		return ProviderNone, fmt.Errorf("[Tracker Last] %w", err)
	}
	if p := Provider(v); p.Valid() {
		return p, nil
	}
	return ProviderNone, nil
}

func (t *Tracker) Clear(ctx context.Context) error {
	return t.store.RemoveItem(ctx, StorageKey)
}
