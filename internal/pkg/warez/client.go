package warez

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	authPath     = "/auth/static-token"
	rechargePath = "/reseller/recharge-reseller"
)

var (
	// ErrAuthRejected means the provider refused the bearer token or the
	// tenant credentials. A rejected cached token is invalidated and the
	// call retried once with a fresh token.
	ErrAuthRejected = errors.New("warez: authentication rejected")
	// ErrProviderFailure covers network errors, timeouts and non-2xx
	// responses. The caller compensates and lets the queue retry the job.
	ErrProviderFailure = errors.New("warez: provider request failed")
)

// Config holds warez API configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Credentials are a tenant's decrypted reseller credentials.
type Credentials struct {
	TenantID uuid.UUID
	Username string
	Password string
}

// RechargeInput describes one recharge of an external reseller account.
type RechargeInput struct {
	Credentials
	TargetUser string
	Amount     int64
}

// Client calls the external warez recharge API. Tokens are cached per tenant
// in the TokenStore; every outbound exchange is recorded through the
// AuditSink regardless of outcome.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenStore
	audit      AuditSink
}

// NewClient creates a warez API client.
func NewClient(cfg Config, tokens TokenStore, audit AuditSink) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if audit == nil {
		audit = NopSink{}
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     tokens,
		audit:      audit,
	}
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

type rechargeRequest struct {
	TargetUsername string `json:"target_username"`
	Amount         int64  `json:"amount"`
}

// Recharge credits the target reseller account on the provider side. This is
// the single non-idempotent external side effect of the platform; callers
// guard against re-invocation, not the provider.
func (c *Client) Recharge(ctx context.Context, in RechargeInput) error {
	token, cached, err := c.token(ctx, in.Credentials)
	if err != nil {
		return err
	}

	err = c.recharge(ctx, in, token)
	if errors.Is(err, ErrAuthRejected) && cached {
		// Cached token expired provider-side before the TTL ran out.
		c.tokens.Delete(ctx, in.TenantID)
		token, _, err = c.token(ctx, in.Credentials)
		if err != nil {
			return err
		}
		err = c.recharge(ctx, in, token)
	}
	return err
}

// token returns a bearer token from the cache, authenticating on a miss.
// The second result reports whether the token came from the cache.
func (c *Client) token(ctx context.Context, creds Credentials) (string, bool, error) {
	if token, ok := c.tokens.Get(ctx, creds.TenantID); ok {
		return token, true, nil
	}

	status, body, err := c.request(ctx, http.MethodPost, authPath, creds.TenantID,
		authRequest{Username: creds.Username, Password: creds.Password},
		map[string]interface{}{"username": creds.Username})
	if err != nil {
		return "", false, fmt.Errorf("%w: auth: %v", ErrProviderFailure, err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return "", false, ErrAuthRejected
	}
	if status < 200 || status >= 300 {
		return "", false, fmt.Errorf("%w: auth returned status %d", ErrProviderFailure, status)
	}

	var out authResponse
	if err := json.Unmarshal(body, &out); err != nil || out.Token == "" {
		return "", false, fmt.Errorf("%w: auth response missing token", ErrProviderFailure)
	}

	c.tokens.Set(ctx, creds.TenantID, out.Token)
	return out.Token, false, nil
}

func (c *Client) recharge(ctx context.Context, in RechargeInput, token string) error {
	payload := rechargeRequest{TargetUsername: in.TargetUser, Amount: in.Amount}

	status, _, err := c.request(ctx, http.MethodPatch, rechargePath, in.TenantID, payload,
		map[string]interface{}{"target_username": in.TargetUser, "amount": in.Amount},
		withBearer(token))
	if err != nil {
		return fmt.Errorf("%w: recharge: %v", ErrProviderFailure, err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return ErrAuthRejected
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: recharge returned status %d", ErrProviderFailure, status)
	}
	return nil
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// request performs one HTTP exchange and records it in the audit trail. The
// audit payload carries the loggable form of the request, never credentials.
func (c *Client) request(ctx context.Context, method, path string, tenantID uuid.UUID, body interface{}, auditPayload map[string]interface{}, opts ...requestOption) (int, []byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.audit.Record(ctx, AuditEntry{
			TenantID:       tenantID,
			Endpoint:       path,
			RequestPayload: auditPayload,
			ResponseData:   json.RawMessage(fmt.Sprintf("%q", err.Error())),
		})
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	c.audit.Record(ctx, AuditEntry{
		TenantID:       tenantID,
		Endpoint:       path,
		RequestPayload: auditPayload,
		ResponseData:   sanitizeJSON(respBody),
		StatusCode:     resp.StatusCode,
	})

	return resp.StatusCode, respBody, nil
}

// sanitizeJSON makes an arbitrary response body storable in a jsonb column.
func sanitizeJSON(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return json.RawMessage(`null`)
	}
	return json.RawMessage(quoted)
}
