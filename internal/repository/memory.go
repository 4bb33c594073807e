package repository

import (
	"context"
	"sync"
	"time"

	"reservo/internal/models"
)

type MemoryFlowRepository struct {
	mu         sync.Mutex
	flows      map[string]flowEntry
	rateLimits map[string]*rateLimitEntry
	nextSweep  time.Time
	ttl        time.Duration
	now        func() time.Time
}

// rateLimitSweepEvery bounds how often expired rate limit windows are dropped.
const rateLimitSweepEvery = time.Minute

type flowEntry struct {
	state     models.FlowState
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryFlowRepository(ttl time.Duration) *MemoryFlowRepository {
	return &MemoryFlowRepository{
		flows:      make(map[string]flowEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryFlowRepository) GetFlow(_ context.Context, sessionID string) (*models.FlowState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.flows[sessionID]
	if !ok {
		return nil, nil
	}
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		delete(r.flows, sessionID)
		return nil, nil
	}
	state := entry.state
	state.Data = cloneData(entry.state.Data)
	return &state, nil
}

func (r *MemoryFlowRepository) SaveFlow(_ context.Context, state *models.FlowState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *state
	stored.Data = cloneData(state.Data)
	r.flows[state.SessionID] = flowEntry{state: stored, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *MemoryFlowRepository) ClearFlow(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows, sessionID)
	return nil
}

func (r *MemoryFlowRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !now.Before(r.nextSweep) {
		r.sweepRateLimits(now)
	}

	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 0, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}

func (r *MemoryFlowRepository) sweepRateLimits(now time.Time) {
	for key, entry := range r.rateLimits {
		if now.After(entry.expiresAt) {
			delete(r.rateLimits, key)
		}
	}
	r.nextSweep = now.Add(rateLimitSweepEvery)
}

// Stored values are copied so callers cannot mutate them behind the repository's back.
func cloneData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
