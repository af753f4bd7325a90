package tenant_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/credithub/credithub-api/internal/domain/tenant"
)

// memoryStore is a TTL cache with an injectable clock.
type memoryStore struct {
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{now: now, entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	entry, ok := s.entries[key]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
}

type countingLoader struct {
	tenants map[string]*tenant.Tenant
	loads   int
}

func (l *countingLoader) GetBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	l.loads++
	t, ok := l.tenants[slug]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	// Return a copy so mutation between calls is observable.
	copied := *t
	return &copied, nil
}

func testTenant(slug string) *tenant.Tenant {
	return &tenant.Tenant{
		ID:                   uuid.New(),
		Name:                 "Storefront",
		Slug:                 slug,
		MonnifyToken:         sql.NullString{String: "encrypted-blob", Valid: true},
		MonnifyWebhookSecret: sql.NullString{String: "secret-1", Valid: true},
		CreatedAt:            time.Now().UTC().Truncate(time.Second),
		UpdatedAt:            time.Now().UTC().Truncate(time.Second),
	}
}

func TestDirectory_CachesWithinTTL(t *testing.T) {
	now := time.Now()
	store := newMemoryStore(func() time.Time { return now })
	loader := &countingLoader{tenants: map[string]*tenant.Tenant{"shop": testTenant("shop")}}
	dir := tenant.NewDirectory(loader, store, 300*time.Second)

	first, err := dir.Resolve(context.Background(), "shop")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := dir.Resolve(context.Background(), "shop")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if loader.loads != 1 {
		t.Fatalf("expected 1 load, got %d", loader.loads)
	}
	if first.ID != second.ID || second.Slug != "shop" {
		t.Fatal("cache hit returned a different tenant")
	}
	// Credential blobs must survive the cache round trip.
	if !second.HasMonnifyToken() {
		t.Fatal("cached tenant lost its encrypted monnify token")
	}
}

func TestDirectory_ReloadsAfterTTL(t *testing.T) {
	now := time.Now()
	store := newMemoryStore(func() time.Time { return now })
	loader := &countingLoader{tenants: map[string]*tenant.Tenant{"shop": testTenant("shop")}}
	dir := tenant.NewDirectory(loader, store, 300*time.Second)

	if _, err := dir.Resolve(context.Background(), "shop"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Secret rotation during the TTL window: cached snapshot still served.
	loader.tenants["shop"].MonnifyWebhookSecret = sql.NullString{String: "secret-2", Valid: true}
	stale, err := dir.Resolve(context.Background(), "shop")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if stale.MonnifyWebhookSecret.String != "secret-1" {
		t.Fatal("expected the stale snapshot inside the TTL window")
	}

	now = now.Add(301 * time.Second)
	fresh, err := dir.Resolve(context.Background(), "shop")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fresh.MonnifyWebhookSecret.String != "secret-2" {
		t.Fatal("expected a reload after the TTL expired")
	}
	if loader.loads != 2 {
		t.Fatalf("expected 2 loads, got %d", loader.loads)
	}
}

func TestDirectory_NotFoundNotCached(t *testing.T) {
	now := time.Now()
	store := newMemoryStore(func() time.Time { return now })
	loader := &countingLoader{tenants: map[string]*tenant.Tenant{}}
	dir := tenant.NewDirectory(loader, store, 300*time.Second)

	if _, err := dir.Resolve(context.Background(), "ghost"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	loader.tenants["ghost"] = testTenant("ghost")
	if _, err := dir.Resolve(context.Background(), "ghost"); err != nil {
		t.Fatalf("expected onboarded tenant to resolve immediately, got %v", err)
	}
}
