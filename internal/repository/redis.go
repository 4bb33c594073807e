package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reservo/internal/config"
	"reservo/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisFlowRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisFlowRepository(client *redis.Client, ttl time.Duration) *RedisFlowRepository {
	return &RedisFlowRepository{
		client: client,
		ttl:    ttl,
	}
}

func flowKey(sessionID string) string {
	return "flow_state:" + sessionID
}

// GetFlow returns nil without error when the session is unknown or expired.
func (r *RedisFlowRepository) GetFlow(ctx context.Context, sessionID string) (*models.FlowState, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, flowKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow from redis: %w", err)
	}

	var state models.FlowState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow: %w", err)
	}
	return &state, nil
}

func (r *RedisFlowRepository) SaveFlow(ctx context.Context, state *models.FlowState) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}
	if err := r.client.Set(ctx, flowKey(state.SessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set flow in redis: %w", err)
	}
	return nil
}

func (r *RedisFlowRepository) ClearFlow(ctx context.Context, sessionID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, flowKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete flow from redis: %w", err)
	}
	return nil
}

// rateLimitScript increments the window counter and sets its expiry in one step.
// A counter left without a TTL is given one again.
var rateLimitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// CheckRateLimit is a fixed-window counter shared by all API instances.
func (r *RedisFlowRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	count, err := rateLimitScript.Run(ctx, r.client, []string{"rate_limit:" + key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
