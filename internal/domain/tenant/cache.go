package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	cachePrefix = "tenant:slug:"
	// DefaultCacheTTL bounds how long routing may observe a stale tenant
	// snapshot after an admin reconfigures it. Secret-bearing reads bypass
	// the cache entirely (see Repository.WebhookSecretByID).
	DefaultCacheTTL = 5 * time.Minute
)

// Store is the cache backend for the tenant directory. A store failure
// degrades to a direct database read, never to a request failure.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// RedisStore backs the directory cache with Redis.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("Tenant cache read failed")
		}
		return nil, false
	}
	return data, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Tenant cache write failed")
	}
}

// Loader is the persistence side of the read-through cache.
type Loader interface {
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
}

// Directory resolves tenants by slug through a TTL cache.
type Directory struct {
	loader Loader
	store  Store
	ttl    time.Duration
}

// NewDirectory creates a read-through tenant directory.
func NewDirectory(loader Loader, store Store, ttl time.Duration) *Directory {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &Directory{loader: loader, store: store, ttl: ttl}
}

// Resolve returns the tenant for a slug, loading and caching on a miss.
// Not-found is not cached: onboarding a slug must take effect immediately.
func (d *Directory) Resolve(ctx context.Context, slug string) (*Tenant, error) {
	key := cachePrefix + slug

	if data, ok := d.store.Get(ctx, key); ok {
		var entry cacheEntry
		if err := json.Unmarshal(data, &entry); err == nil {
			return entry.tenant(), nil
		}
		log.Warn().Str("slug", slug).Msg("Corrupt tenant cache entry, reloading")
	}

	t, err := d.loader.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(newCacheEntry(t)); err == nil {
		d.store.Set(ctx, key, data, d.ttl)
	}
	return t, nil
}

// cacheEntry is the cache wire form of a Tenant. The entity's credential
// blobs are excluded from API JSON with `json:"-"`, but the cache must keep
// them (they are vault-encrypted) so a cache hit is a full snapshot.
type cacheEntry struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	Slug                 string    `json:"slug"`
	BrandColor           string    `json:"brand_color"`
	WarezUsername        *string   `json:"warez_username"`
	WarezPassword        *string   `json:"warez_password"`
	MonnifyToken         *string   `json:"monnify_token"`
	MonnifyWebhookSecret *string   `json:"monnify_webhook_secret"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func newCacheEntry(t *Tenant) cacheEntry {
	return cacheEntry{
		ID:                   t.ID,
		Name:                 t.Name,
		Slug:                 t.Slug,
		BrandColor:           t.BrandColor,
		WarezUsername:        nullToPtr(t.WarezUsername),
		WarezPassword:        nullToPtr(t.WarezPassword),
		MonnifyToken:         nullToPtr(t.MonnifyToken),
		MonnifyWebhookSecret: nullToPtr(t.MonnifyWebhookSecret),
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

func (e *cacheEntry) tenant() *Tenant {
	return &Tenant{
		ID:                   e.ID,
		Name:                 e.Name,
		Slug:                 e.Slug,
		BrandColor:           e.BrandColor,
		WarezUsername:        ptrToNull(e.WarezUsername),
		WarezPassword:        ptrToNull(e.WarezPassword),
		MonnifyToken:         ptrToNull(e.MonnifyToken),
		MonnifyWebhookSecret: ptrToNull(e.MonnifyWebhookSecret),
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
}

func nullToPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func ptrToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
