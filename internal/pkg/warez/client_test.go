package warez_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/credithub/credithub-api/internal/pkg/warez"
)

type memoryTokenStore struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]string
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{tokens: make(map[uuid.UUID]string)}
}

func (s *memoryTokenStore) Get(_ context.Context, tenantID uuid.UUID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[tenantID]
	return token, ok
}

func (s *memoryTokenStore) Set(_ context.Context, tenantID uuid.UUID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tenantID] = token
}

func (s *memoryTokenStore) Delete(_ context.Context, tenantID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, tenantID)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []warez.AuditEntry
}

func (s *recordingSink) Record(_ context.Context, entry warez.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type fakeProvider struct {
	mu            sync.Mutex
	validToken    string
	authCalls     int
	rechargeCalls int
	rechargeCode  int
}

func (p *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/static-token", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.authCalls++
		token := p.validToken
		p.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("/reseller/recharge-reseller", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.rechargeCalls++
		if r.Header.Get("Authorization") != "Bearer "+p.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if p.rechargeCode != 0 {
			w.WriteHeader(p.rechargeCode)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestClient(t *testing.T, provider *fakeProvider, tokens warez.TokenStore, sink warez.AuditSink) *warez.Client {
	t.Helper()
	srv := httptest.NewServer(provider.handler())
	t.Cleanup(srv.Close)
	return warez.NewClient(warez.Config{BaseURL: srv.URL}, tokens, sink)
}

func rechargeInput(tenantID uuid.UUID) warez.RechargeInput {
	return warez.RechargeInput{
		Credentials: warez.Credentials{TenantID: tenantID, Username: "reseller", Password: "pw"},
		TargetUser:  "customer-77",
		Amount:      40,
	}
}

func TestRecharge_AuthenticatesOnCacheMiss(t *testing.T) {
	provider := &fakeProvider{validToken: "tok-1"}
	tokens := newMemoryTokenStore()
	sink := &recordingSink{}
	client := newTestClient(t, provider, tokens, sink)
	tenantID := uuid.New()

	if err := client.Recharge(context.Background(), rechargeInput(tenantID)); err != nil {
		t.Fatalf("recharge: %v", err)
	}
	if provider.authCalls != 1 {
		t.Fatalf("expected 1 auth call, got %d", provider.authCalls)
	}
	if cached, ok := tokens.Get(context.Background(), tenantID); !ok || cached != "tok-1" {
		t.Fatalf("expected token cached, got %q ok=%v", cached, ok)
	}
	// One audit entry for auth, one for the recharge.
	if sink.count() != 2 {
		t.Fatalf("expected 2 audit entries, got %d", sink.count())
	}
}

func TestRecharge_ReusesCachedToken(t *testing.T) {
	provider := &fakeProvider{validToken: "tok-1"}
	tokens := newMemoryTokenStore()
	client := newTestClient(t, provider, tokens, nil)
	tenantID := uuid.New()
	tokens.Set(context.Background(), tenantID, "tok-1")

	if err := client.Recharge(context.Background(), rechargeInput(tenantID)); err != nil {
		t.Fatalf("recharge: %v", err)
	}
	if provider.authCalls != 0 {
		t.Fatalf("expected no auth calls, got %d", provider.authCalls)
	}
}

func TestRecharge_StaleCachedTokenRetriedOnce(t *testing.T) {
	provider := &fakeProvider{validToken: "tok-2"}
	tokens := newMemoryTokenStore()
	client := newTestClient(t, provider, tokens, nil)
	tenantID := uuid.New()
	tokens.Set(context.Background(), tenantID, "tok-expired")

	if err := client.Recharge(context.Background(), rechargeInput(tenantID)); err != nil {
		t.Fatalf("recharge after refresh: %v", err)
	}
	if provider.authCalls != 1 {
		t.Fatalf("expected 1 re-auth, got %d", provider.authCalls)
	}
	if provider.rechargeCalls != 2 {
		t.Fatalf("expected 2 recharge attempts (stale + fresh), got %d", provider.rechargeCalls)
	}
	if cached, _ := tokens.Get(context.Background(), tenantID); cached != "tok-2" {
		t.Fatalf("expected refreshed token cached, got %q", cached)
	}
}

func TestRecharge_ProviderErrorSurfaces(t *testing.T) {
	provider := &fakeProvider{validToken: "tok-1", rechargeCode: http.StatusBadGateway}
	tokens := newMemoryTokenStore()
	sink := &recordingSink{}
	client := newTestClient(t, provider, tokens, sink)

	err := client.Recharge(context.Background(), rechargeInput(uuid.New()))
	if !errors.Is(err, warez.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	// The failed exchange is still audited.
	if sink.count() != 2 {
		t.Fatalf("expected 2 audit entries, got %d", sink.count())
	}
}

func TestRecharge_TransportErrorIsProviderFailure(t *testing.T) {
	tokens := newMemoryTokenStore()
	client := warez.NewClient(warez.Config{BaseURL: "http://127.0.0.1:1"}, tokens, nil)

	err := client.Recharge(context.Background(), rechargeInput(uuid.New()))
	if !errors.Is(err, warez.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}
