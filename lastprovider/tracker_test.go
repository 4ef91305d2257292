package lastprovider_test

import (
	"context"
	"testing"

	"github.com/desert5047-spec/test-keper-sub000/credstore"
	"github.com/desert5047-spec/test-keper-sub000/lastprovider"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemoryStore()
	tracker := lastprovider.New(store)

	p, err := tracker.Last(ctx)
	require.NoError(t, err)
	require.Equal(t, lastprovider.ProviderNone, p)

	require.NoError(t, tracker.Record(ctx, lastprovider.ProviderGoogle))
	p, err = tracker.Last(ctx)
	require.NoError(t, err)
	require.Equal(t, lastprovider.ProviderGoogle, p)

	require.NoError(t, tracker.Record(ctx, lastprovider.ProviderPassword))
	p, err = tracker.Last(ctx)
	require.NoError(t, err)
	require.Equal(t, lastprovider.ProviderPassword, p)

	require.Error(t, tracker.Record(ctx, "apple"))

	require.NoError(t, store.SetItem(ctx, lastprovider.StorageKey, "garbage"))
	p, err = tracker.Last(ctx)
	require.NoError(t, err)
	require.Equal(t, lastprovider.ProviderNone, p)

	require.NoError(t, tracker.Clear(ctx))
	_, err = store.GetItem(ctx, lastprovider.StorageKey)
	require.ErrorIs(t, err, credstore.ErrNotFound)
}
