package repository

import (
	"context"
	"sync/atomic"
	"time"

	"reservo/internal/domain"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverFlowRepository serves from primary (Redis) and switches to fallback (memory) after the first error.
// The primary is retried once per recoveryInterval.
type FailoverFlowRepository struct {
	primary   domain.FlowRepository
	fallback  domain.FlowRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverFlowRepository(primary, fallback domain.FlowRepository, logger *zerolog.Logger) *FailoverFlowRepository {
	return &FailoverFlowRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the call should go to the primary repository.
func (r *FailoverFlowRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	return r.now().Sub(last) > recoveryInterval
}

func (r *FailoverFlowRepository) observe(err error) bool {
	if err == nil {
		if r.isDown.Swap(false) {
			r.logger.Info().Msg("Primary flow repository recovered")
		}
		return true
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary flow repository failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
	return false
}

func (r *FailoverFlowRepository) GetFlow(ctx context.Context, sessionID string) (*models.FlowState, error) {
	if r.usePrimary() {
		state, err := r.primary.GetFlow(ctx, sessionID)
		if r.observe(err) {
			return state, nil
		}
	}
	return r.fallback.GetFlow(ctx, sessionID)
}

func (r *FailoverFlowRepository) SaveFlow(ctx context.Context, state *models.FlowState) error {
	if r.usePrimary() && r.observe(r.primary.SaveFlow(ctx, state)) {
		return nil
	}
	return r.fallback.SaveFlow(ctx, state)
}

func (r *FailoverFlowRepository) ClearFlow(ctx context.Context, sessionID string) error {
	if r.usePrimary() && r.observe(r.primary.ClearFlow(ctx, sessionID)) {
		return nil
	}
	return r.fallback.ClearFlow(ctx, sessionID)
}

func (r *FailoverFlowRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if r.observe(err) {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
