package loginsession_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/desert5047-spec/test-keper-sub000/credstore"
	"github.com/desert5047-spec/test-keper-sub000/server/loginsession"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestStoreRepo(t *testing.T) {
	repo := loginsession.NewInMemoryRepo()

	_, err := repo.Get("missing")
	require.ErrorIs(t, err, loginsession.ErrSessionNotFound)
	require.Error(t, repo.Upsert("", loginsession.Session{}))

	session := loginsession.Session{
		UserID:       "user-1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		Purpose:      loginsession.PurposeSignedIn,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Upsert("sid", session))

	got, err := repo.Get("sid")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
	require.Equal(t, loginsession.PurposeSignedIn, got.Purpose)
	require.False(t, got.CreatedAt.IsZero())

	require.NoError(t, repo.Delete("sid"))
	_, err = repo.Get("sid")
	require.ErrorIs(t, err, loginsession.ErrSessionNotFound)
}

func TestStoreRepo_ExpiredSessionIsRemoved(t *testing.T) {
	store := credstore.NewMemoryStore()
	repo := loginsession.NewStoreRepo(store)

	require.NoError(t, repo.Upsert("sid", loginsession.Session{UserID: "user-1", ExpiresAt: time.Now().Add(-time.Second)}))
	_, err := repo.Get("sid")
	require.ErrorIs(t, err, loginsession.ErrSessionNotFound)
	require.Equal(t, 0, store.Len())
}

func TestStoreRepo_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := loginsession.NewStoreRepo(credstore.NewRedisStore(client, "portal"))
	require.NoError(t, repo.Upsert("sid", loginsession.Session{UserID: "user-1", Purpose: loginsession.PurposeRecovery}))
	require.True(t, mr.Exists("portal:portal-session:sid"))

	// A second repo over the same server sees the session
	otherClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = otherClient.Close() })
	other := loginsession.NewStoreRepo(credstore.NewRedisStore(otherClient, "portal"))
	got, err := other.Get("sid")
	require.NoError(t, err)
	require.Equal(t, loginsession.PurposeRecovery, got.Purpose)
}
