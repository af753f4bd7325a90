package mercadopago

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

const defaultBaseURL = "https://api.mercadopago.com"

// PaymentStatusApproved is the provider status that confirms a PIX payment.
const PaymentStatusApproved = "approved"

// Client calls the Mercado Pago payments API with the platform access token.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewClient creates a Mercado Pago client.
func NewClient(accessToken string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     defaultBaseURL,
		accessToken: accessToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Payer identifies the paying customer.
type Payer struct {
	Email    string `json:"email"`
	Name     string `json:"first_name,omitempty"`
	Document string `json:"-"`
}

// CreatePaymentInput creates a PIX payment.
type CreatePaymentInput struct {
	Amount      int64
	Description string
	Payer       Payer
	Metadata    map[string]string
}

// PaymentResponse is the subset of the created payment the checkout needs.
type PaymentResponse struct {
	PaymentID    string
	Status       string
	QRCode       string
	QRCodeBase64 string
}

// Payment is a payment fetched by id during webhook processing.
type Payment struct {
	ID       int64             `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

type createPaymentRequest struct {
	TransactionAmount int64                  `json:"transaction_amount"`
	Description       string                 `json:"description"`
	PaymentMethodID   string                 `json:"payment_method_id"`
	Payer             map[string]interface{} `json:"payer"`
	Metadata          map[string]string      `json:"metadata,omitempty"`
}

type createPaymentResponse struct {
	ID                 int64 `json:"id"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// CreatePayment creates a PIX payment and returns the QR code pair.
func (c *Client) CreatePayment(ctx context.Context, input CreatePaymentInput) (*PaymentResponse, error) {
	payer := map[string]interface{}{"email": input.Payer.Email}
	if input.Payer.Name != "" {
		payer["first_name"] = input.Payer.Name
	}
	if input.Payer.Document != "" {
		payer["identification"] = map[string]string{"type": "CPF", "number": input.Payer.Document}
	}

	body, err := c.do(ctx, http.MethodPost, "/v1/payments", createPaymentRequest{
		TransactionAmount: input.Amount,
		Description:       input.Description,
		PaymentMethodID:   "pix",
		Payer:             payer,
		Metadata:          input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	var out createPaymentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("mercadopago: parse response: %w", err)
	}

	return &PaymentResponse{
		PaymentID:    fmt.Sprintf("%d", out.ID),
		Status:       "PENDING",
		QRCode:       out.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64: out.PointOfInteraction.TransactionData.QRCodeBase64,
	}, nil
}

// GetPayment fetches a payment by provider id. Webhook notifications carry
// only the id; the authoritative status and metadata come from this lookup.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}

	var out Payment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("mercadopago: parse payment: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("mercadopago: encode request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: api call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mercadopago: api returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
