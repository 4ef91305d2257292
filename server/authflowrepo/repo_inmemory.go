package authflowrepo

import (
	"errors"
	"sync"
	"time"
)

// DefaultTTL bounds how long a started sign-in can wait for its callback.
const DefaultTTL = 10 * time.Minute

var ErrFlowNotFound = errors.New("auth flow not found")

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// Expired flows are treated as missing and removed on access.
type InMemoryRepo struct {
	mu      sync.RWMutex
	flows   map[string]*AuthFlowState
	ttl     time.Duration
	nowTime func() time.Time
}

type Option func(*InMemoryRepo)

func WithTTL(ttl time.Duration) Option {
	return func(r *InMemoryRepo) {
		r.ttl = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *InMemoryRepo) {
		r.nowTime = nowFunc
	}
}

func NewInMemoryRepo(opts ...Option) *InMemoryRepo {
	r := &InMemoryRepo{
		flows:   make(map[string]*AuthFlowState),
		ttl:     DefaultTTL,
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Upsert(flowID string, flow *AuthFlowState) error {
	if flowID == "" {
		return errors.New("flowID cannot be empty")
	}
	if flow == nil {
		return errors.New("flow cannot be nil")
	}

	stored := *flow
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.nowTime()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[flowID] = &stored
	r.prune()
	return nil
}

func (r *InMemoryRepo) Get(flowID string) (*AuthFlowState, error) {
	if flowID == "" {
		return nil, ErrFlowNotFound
	}

	r.mu.RLock()
	flow, exists := r.flows[flowID]
	r.mu.RUnlock()
	if !exists {
		return nil, ErrFlowNotFound
	}
	if r.expired(flow) {
		_ = r.Delete(flowID)
		return nil, ErrFlowNotFound
	}

	copied := *flow
	return &copied, nil
}

func (r *InMemoryRepo) Delete(flowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows, flowID)
	return nil
}

func (r *InMemoryRepo) expired(flow *AuthFlowState) bool {
	return r.ttl > 0 && r.nowTime().Sub(flow.CreatedAt) > r.ttl
}

// prune drops expired flows. r.mu must be held.
func (r *InMemoryRepo) prune() {
	for id, flow := range r.flows {
		if r.expired(flow) {
			delete(r.flows, id)
		}
	}
}
