package credstore

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// FallbackStore prefers the secure store and falls back to the general
// key-value store when the secure store refuses or fails.
type FallbackStore struct {
	secure  Store
	general Store
}

var _ Store = (*FallbackStore)(nil)

// NewFallbackStore returns general alone when secure is nil.
func NewFallbackStore(secure, general Store) Store {
	if secure == nil {
		return general
	}
	return &FallbackStore{secure: secure, general: general}
}

func (f *FallbackStore) GetItem(ctx context.Context, key string) (string, error) {
	v, err := f.secure.GetItem(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		log.Debug().Err(err).Str("key", key).Msg("secure store read failed, trying general store")
	}
	return f.general.GetItem(ctx, key)
}

func (f *FallbackStore) SetItem(ctx context.Context, key, value string) error {
	err := f.secure.SetItem(ctx, key, value)
	if err == nil {
		// Drop any older copy left behind by a previous fallback write.
		if rmErr := f.general.RemoveItem(ctx, key); rmErr != nil {
			log.Debug().Err(rmErr).Str("key", key).Msg("failed to clear general store copy")
		}
		return nil
	}

	log.Warn().Str("key", key).Msg("secure store write failed, using general store")
	log.Debug().Err(err).Str("key", key).Msg("secure store write error")
	if rmErr := f.secure.RemoveItem(ctx, key); rmErr != nil {
		log.Debug().Err(rmErr).Str("key", key).Msg("failed to clear secure store copy")
	}
	return f.general.SetItem(ctx, key, value)
}

func (f *FallbackStore) RemoveItem(ctx context.Context, key string) error {
	return errors.Join(f.secure.RemoveItem(ctx, key), f.general.RemoveItem(ctx, key))
}
