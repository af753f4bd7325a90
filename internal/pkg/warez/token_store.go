package warez

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const tokenCachePrefix = "warez:token:"

// TokenStore caches provider bearer tokens per tenant. A store failure is
// never fatal: a miss just costs one extra auth round trip.
type TokenStore interface {
	Get(ctx context.Context, tenantID uuid.UUID) (string, bool)
	Set(ctx context.Context, tenantID uuid.UUID, token string)
	Delete(ctx context.Context, tenantID uuid.UUID)
}

// RedisTokenStore backs the token cache with Redis and a fixed TTL.
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTokenStore creates a token store with the given TTL.
func NewRedisTokenStore(client *redis.Client, ttl time.Duration) *RedisTokenStore {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &RedisTokenStore{client: client, ttl: ttl}
}

func (s *RedisTokenStore) key(tenantID uuid.UUID) string {
	return tokenCachePrefix + tenantID.String()
}

func (s *RedisTokenStore) Get(ctx context.Context, tenantID uuid.UUID) (string, bool) {
	token, err := s.client.Get(ctx, s.key(tenantID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("Token cache read failed")
		}
		return "", false
	}
	return token, true
}

func (s *RedisTokenStore) Set(ctx context.Context, tenantID uuid.UUID, token string) {
	if err := s.client.Set(ctx, s.key(tenantID), token, s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("Token cache write failed")
	}
}

func (s *RedisTokenStore) Delete(ctx context.Context, tenantID uuid.UUID) {
	if err := s.client.Del(ctx, s.key(tenantID)).Err(); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("Token cache invalidation failed")
	}
}
