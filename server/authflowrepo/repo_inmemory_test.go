package authflowrepo_test

import (
	"testing"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/server/authflowrepo"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := authflowrepo.NewInMemoryRepo(
		authflowrepo.WithTTL(time.Minute),
		authflowrepo.WithNowTime(func() time.Time { return now }),
	)

	require.Error(t, repo.Upsert("", &authflowrepo.AuthFlowState{}))
	require.Error(t, repo.Upsert("flow", nil))

	require.NoError(t, repo.Upsert("flow", &authflowrepo.AuthFlowState{CodeVerifier: "v", Provider: "google"}))
	got, err := repo.Get("flow")
	require.NoError(t, err)
	require.Equal(t, "v", got.CodeVerifier)
	require.Equal(t, now, got.CreatedAt)

	// Callers get a copy
	got.CodeVerifier = "changed"
	again, err := repo.Get("flow")
	require.NoError(t, err)
	require.Equal(t, "v", again.CodeVerifier)

	now = now.Add(2 * time.Minute)
	_, err = repo.Get("flow")
	require.ErrorIs(t, err, authflowrepo.ErrFlowNotFound)

	require.NoError(t, repo.Upsert("other", &authflowrepo.AuthFlowState{CodeVerifier: "w"}))
	require.NoError(t, repo.Delete("other"))
	_, err = repo.Get("other")
	require.ErrorIs(t, err, authflowrepo.ErrFlowNotFound)
}
