package monnify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.monnify.com/api/v1"

// Client calls the Monnify merchant API with a tenant-scoped token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewClient creates a Monnify client for one tenant's decrypted token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChargeInput creates an immediate charge. Metadata is echoed back in the
// webhook and must carry tenant_id, order_id, user_id and credits_amount.
type ChargeInput struct {
	Amount   int64             `json:"amount"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata"`
}

// WebhookConfig registers the webhook endpoint and its HMAC secret.
type WebhookConfig struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
	Status string   `json:"status"`
}

// CreateCharge creates a charge and returns the provider's raw charge object
// for the storefront to render.
func (c *Client) CreateCharge(ctx context.Context, input ChargeInput) (json.RawMessage, error) {
	if input.Type == "" {
		input.Type = "immediate"
	}
	return c.do(ctx, http.MethodPost, "/tenant/charges", input)
}

// SetupWebhook registers or updates the tenant's webhook configuration.
func (c *Client) SetupWebhook(ctx context.Context, cfg WebhookConfig) error {
	_, err := c.do(ctx, http.MethodPut, "/tenant/integrations/webhook", cfg)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("monnify: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("monnify: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monnify: api call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("monnify: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("monnify: api returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
