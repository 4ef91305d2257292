package loginsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desert5047-spec/test-keper-sub000/credstore"
)

var ErrSessionNotFound = errors.New("login session not found")

const keyPrefix = "portal-session:"

// StoreRepo keeps login sessions as JSON in a credential store, so the
// portal can share them through Redis or keep them in memory.
type StoreRepo struct {
	store   credstore.Store
	timeout time.Duration
	nowTime func() time.Time
}

func NewStoreRepo(store credstore.Store) *StoreRepo {
	return &StoreRepo{
		store:   store,
		timeout: 5 * time.Second,
		nowTime: time.Now,
	}
}

// NewInMemoryRepo is a StoreRepo over a memory store.
func NewInMemoryRepo() *StoreRepo {
	return NewStoreRepo(credstore.NewMemoryStore())
}

func (r *StoreRepo) Upsert(sessionID string, session Session) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.nowTime()
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("[loginsession Upsert] %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.SetItem(ctx, keyPrefix+sessionID, string(raw)); err != nil {
		return fmt.Errorf("[loginsession Upsert] %w", err)
	}
	return nil
}

// Get returns ErrSessionNotFound for unknown and expired sessions.
func (r *StoreRepo) Get(sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	raw, err := r.store.GetItem(ctx, keyPrefix+sessionID)
	if errors.Is(err, credstore.ErrNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("[loginsession Get] %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, fmt.Errorf("[loginsession Get] %w", err)
	}
	if s.Expired(r.nowTime()) {
		_ = r.Delete(sessionID)
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (r *StoreRepo) Delete(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.store.RemoveItem(ctx, keyPrefix+sessionID)
}
