package credstore

import (
	"context"

	apperrors "github.com/desert5047-spec/test-keper-sub000/internal/errors"
)

// ErrNotFound is returned by GetItem when the key holds no value.
var ErrNotFound = apperrors.ErrNotFound

// ErrValueTooLarge is returned when a value exceeds a store's size limit.
var ErrValueTooLarge = apperrors.ErrValueTooLarge

// Store is the key-value surface the backend client persists sessions through.
type Store interface {
	// GetItem returns the value for key, or ErrNotFound
	GetItem(ctx context.Context, key string) (string, error)

	// SetItem stores value under key, replacing any previous value
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error
	RemoveItem(ctx context.Context, key string) error
}
