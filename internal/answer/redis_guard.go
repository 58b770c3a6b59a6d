package answer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const acceptedKeyPrefix = "answer:accepted:"

// Accepted slots outlive any plausible game but not the keyspace.
const acceptedTTL = 48 * time.Hour

// RedisGuardConfig holds configuration for the Redis acceptance guard.
type RedisGuardConfig struct {
	RedisClient *redis.Client
}

// redisGuard implements AcceptanceGuard with a SETNX per slot, which gives
// single-writer semantics per (game, player, question) across replicas.
type redisGuard struct {
	client *redis.Client
}

// NewRedisGuard creates a Redis-backed acceptance guard.
func NewRedisGuard(cfg *RedisGuardConfig) (*redisGuard, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := cfg.RedisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &redisGuard{client: cfg.RedisClient}, nil
}

func slotKey(gameID, playerID, questionID uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s:%s", acceptedKeyPrefix, gameID, playerID, questionID)
}

// TryAccept claims the slot. Exactly one concurrent caller wins.
func (g *redisGuard) TryAccept(ctx context.Context, gameID, playerID, questionID uuid.UUID) (bool, error) {
	ok, err := g.client.SetNX(ctx, slotKey(gameID, playerID, questionID), 1, acceptedTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim answer slot: %w", err)
	}
	return ok, nil
}

// Release frees a slot claimed by a submission that failed to persist.
func (g *redisGuard) Release(ctx context.Context, gameID, playerID, questionID uuid.UUID) error {
	if err := g.client.Del(ctx, slotKey(gameID, playerID, questionID)).Err(); err != nil {
		return fmt.Errorf("failed to release answer slot: %w", err)
	}
	return nil
}
