package order_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/credithub/credithub-api/internal/domain/order"
	"github.com/credithub/credithub-api/internal/pkg/mercadopago"
	"github.com/credithub/credithub-api/internal/pkg/queue"
	"github.com/credithub/credithub-api/internal/pkg/webhook"
)

type fakeSecrets struct {
	secret string
}

func (f *fakeSecrets) WebhookSecretByID(context.Context, uuid.UUID) (string, error) {
	return f.secret, nil
}

type fulfillCall struct {
	tenantID  uuid.UUID
	orderID   uuid.UUID
	paymentID string
	credits   int64
}

type fakeFulfiller struct {
	calls []fulfillCall
	err   error
}

func (f *fakeFulfiller) Fulfill(_ context.Context, tenantID, orderID uuid.UUID, paymentID string, credits int64) error {
	f.calls = append(f.calls, fulfillCall{tenantID, orderID, paymentID, credits})
	return f.err
}

type fakePayments struct {
	payment *mercadopago.Payment
	err     error
}

func (f *fakePayments) GetPayment(context.Context, string) (*mercadopago.Payment, error) {
	return f.payment, f.err
}

type fakeJobs struct {
	payloads []queue.PaymentConfirmPayload
}

func (f *fakeJobs) EnqueuePaymentConfirmation(_ context.Context, p queue.PaymentConfirmPayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

const testSecret = "whsec_test"
const platformSecret = "mp_platform_secret"

func newWebhookServer(fulfiller *fakeFulfiller, payments *fakePayments, jobs *fakeJobs) *httptest.Server {
	h := order.NewWebhookHandler(&fakeSecrets{secret: testSecret}, fulfiller, payments, jobs, platformSecret)
	r := chi.NewRouter()
	r.Mount("/webhooks", h.WebhookRoutes())
	return httptest.NewServer(r)
}

func postSigned(t *testing.T, url, header, signature string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(header, signature)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	return resp
}

func monnifyBody(t *testing.T, event string, orderID uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event_type": event,
		"data": map[string]interface{}{
			"payment_id": "pay_abc",
			"metadata": map[string]string{
				"order_id":       orderID.String(),
				"credits_amount": "500",
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal body failed: %v", err)
	}
	return body
}

func TestMonnifyWebhookFulfills(t *testing.T) {
	fulfiller := &fakeFulfiller{}
	srv := newWebhookServer(fulfiller, &fakePayments{}, &fakeJobs{})
	defer srv.Close()

	tenantID := uuid.New()
	orderID := uuid.New()
	body := monnifyBody(t, "transaction.successful", orderID)

	resp := postSigned(t, srv.URL+"/webhooks/monnify/"+tenantID.String(),
		"monnify-signature", webhook.Sign(body, testSecret), body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if len(fulfiller.calls) != 1 {
		t.Fatalf("expected 1 fulfillment, got %d", len(fulfiller.calls))
	}
	call := fulfiller.calls[0]
	if call.tenantID != tenantID || call.orderID != orderID || call.paymentID != "pay_abc" || call.credits != 500 {
		t.Fatalf("unexpected fulfillment call: %+v", call)
	}
}

func TestMonnifyWebhookRejectsBadSignature(t *testing.T) {
	fulfiller := &fakeFulfiller{}
	srv := newWebhookServer(fulfiller, &fakePayments{}, &fakeJobs{})
	defer srv.Close()

	orderID := uuid.New()
	body := monnifyBody(t, "transaction.successful", orderID)
	signature := webhook.Sign(body, testSecret)

	// Any mutation of the delivered bytes must invalidate the signature.
	tampered := bytes.Replace(body, []byte("500"), []byte("900"), 1)

	resp := postSigned(t, srv.URL+"/webhooks/monnify/"+uuid.New().String(),
		"monnify-signature", signature, tampered)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if len(fulfiller.calls) != 0 {
		t.Fatalf("fulfillment must not run on invalid signature, got %d calls", len(fulfiller.calls))
	}

	resp = postSigned(t, srv.URL+"/webhooks/monnify/"+uuid.New().String(),
		"monnify-signature", "", body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", resp.StatusCode)
	}
}

func TestMonnifyWebhookIgnoresOtherEvents(t *testing.T) {
	fulfiller := &fakeFulfiller{}
	srv := newWebhookServer(fulfiller, &fakePayments{}, &fakeJobs{})
	defer srv.Close()

	body := monnifyBody(t, "transaction.failed", uuid.New())
	resp := postSigned(t, srv.URL+"/webhooks/monnify/"+uuid.New().String(),
		"monnify-signature", webhook.Sign(body, testSecret), body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for ignored event, got %d", resp.StatusCode)
	}
	if len(fulfiller.calls) != 0 {
		t.Fatalf("expected no fulfillment for ignored event, got %d", len(fulfiller.calls))
	}
}

func TestMonnifyWebhookUnknownOrder(t *testing.T) {
	fulfiller := &fakeFulfiller{err: order.ErrNotFound}
	srv := newWebhookServer(fulfiller, &fakePayments{}, &fakeJobs{})
	defer srv.Close()

	body := monnifyBody(t, "transaction.successful", uuid.New())
	resp := postSigned(t, srv.URL+"/webhooks/monnify/"+uuid.New().String(),
		"monnify-signature", webhook.Sign(body, testSecret), body)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMercadoPagoWebhookEnqueuesConfirmation(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()
	payments := &fakePayments{payment: &mercadopago.Payment{
		ID:     123456,
		Status: mercadopago.PaymentStatusApproved,
		Metadata: map[string]string{
			"tenant_id":      tenantID.String(),
			"order_id":       orderID.String(),
			"credits_amount": "250",
		},
	}}
	jobs := &fakeJobs{}
	srv := newWebhookServer(&fakeFulfiller{}, payments, jobs)
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"type": "payment",
		"data": map[string]string{"id": "123456"},
	})
	resp := postSigned(t, srv.URL+"/webhooks/mercadopago",
		"x-signature", webhook.Sign(body, platformSecret), body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if len(jobs.payloads) != 1 {
		t.Fatalf("expected 1 queued confirmation, got %d", len(jobs.payloads))
	}
	p := jobs.payloads[0]
	if p.TenantID != tenantID || p.OrderID != orderID || p.PaymentID != "123456" || p.CreditsAmount != 250 {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.Version != queue.PayloadVersion {
		t.Fatalf("expected payload version %d, got %d", queue.PayloadVersion, p.Version)
	}
}

func TestMercadoPagoWebhookIgnoresUnapproved(t *testing.T) {
	payments := &fakePayments{payment: &mercadopago.Payment{ID: 1, Status: "pending"}}
	jobs := &fakeJobs{}
	srv := newWebhookServer(&fakeFulfiller{}, payments, jobs)
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"type": "payment",
		"data": map[string]string{"id": "1"},
	})
	resp := postSigned(t, srv.URL+"/webhooks/mercadopago",
		"x-signature", webhook.Sign(body, platformSecret), body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(jobs.payloads) != 0 {
		t.Fatalf("expected no queued confirmation, got %d", len(jobs.payloads))
	}
}

func TestMercadoPagoWebhookRejectsBadSignature(t *testing.T) {
	jobs := &fakeJobs{}
	srv := newWebhookServer(&fakeFulfiller{}, &fakePayments{err: errors.New("must not be called")}, jobs)
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"type": "payment",
		"data": map[string]string{"id": "1"},
	})
	resp := postSigned(t, srv.URL+"/webhooks/mercadopago",
		"x-signature", webhook.Sign(body, "wrong_secret"), body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if len(jobs.payloads) != 0 {
		t.Fatalf("expected no queued confirmation, got %d", len(jobs.payloads))
	}
}
