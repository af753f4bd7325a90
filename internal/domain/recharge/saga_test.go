package recharge_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/credithub/credithub-api/internal/domain/ledger"
	"github.com/credithub/credithub-api/internal/domain/recharge"
	"github.com/credithub/credithub-api/internal/domain/tenant"
	"github.com/credithub/credithub-api/internal/pkg/queue"
	"github.com/credithub/credithub-api/internal/pkg/vault"
	"github.com/credithub/credithub-api/internal/pkg/warez"
)

type fakeLedger struct {
	transactions map[uuid.UUID]*ledger.Transaction
	compensated  []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{transactions: map[uuid.UUID]*ledger.Transaction{}}
}

func (f *fakeLedger) GetTransaction(_ context.Context, tenantID, transactionID uuid.UUID) (*ledger.Transaction, error) {
	txn, ok := f.transactions[transactionID]
	if !ok || txn.TenantID != tenantID {
		return nil, ledger.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

func (f *fakeLedger) Commit(_ context.Context, transactionID uuid.UUID) error {
	txn, ok := f.transactions[transactionID]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	if txn.Status == ledger.StatusPending {
		txn.Status = ledger.StatusCompleted
	}
	return nil
}

func (f *fakeLedger) Compensate(_ context.Context, transactionID uuid.UUID, reason string) error {
	txn, ok := f.transactions[transactionID]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	if txn.Status != ledger.StatusPending {
		return nil
	}
	txn.Status = ledger.StatusFailed
	f.compensated = append(f.compensated, reason)
	return nil
}

type fakeTenants struct {
	tenant *tenant.Tenant
}

func (f *fakeTenants) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	if f.tenant == nil || f.tenant.ID != id {
		return nil, tenant.ErrNotFound
	}
	return f.tenant, nil
}

type fakeProvider struct {
	calls int
	err   error
	last  warez.RechargeInput
}

func (f *fakeProvider) Recharge(_ context.Context, in warez.RechargeInput) error {
	f.calls++
	f.last = in
	return f.err
}

func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	v, err := vault.New(key)
	if err != nil {
		t.Fatalf("vault setup failed: %v", err)
	}
	return v
}

type sagaFixture struct {
	processor *recharge.Processor
	ledger    *fakeLedger
	provider  *fakeProvider
	tenantID  uuid.UUID
	userID    uuid.UUID
	spendID   uuid.UUID
}

func newSagaFixture(t *testing.T) *sagaFixture {
	t.Helper()

	v := testVault(t)
	encUser, err := v.Encrypt("panel-reseller")
	if err != nil {
		t.Fatalf("encrypt username failed: %v", err)
	}
	encPass, err := v.Encrypt("panel-secret")
	if err != nil {
		t.Fatalf("encrypt password failed: %v", err)
	}

	f := &sagaFixture{
		ledger:   newFakeLedger(),
		provider: &fakeProvider{},
		tenantID: uuid.New(),
		userID:   uuid.New(),
		spendID:  uuid.New(),
	}
	f.ledger.transactions[f.spendID] = &ledger.Transaction{
		ID:       f.spendID,
		TenantID: f.tenantID,
		UserID:   f.userID,
		Type:     ledger.TypeSpend,
		Amount:   40,
		Status:   ledger.StatusPending,
	}

	tenants := &fakeTenants{tenant: &tenant.Tenant{
		ID:            f.tenantID,
		Name:          "Saga Test",
		Slug:          "saga-test",
		WarezUsername: sql.NullString{String: encUser, Valid: true},
		WarezPassword: sql.NullString{String: encPass, Valid: true},
	}}

	f.processor = recharge.NewProcessor(f.ledger, tenants, v, f.provider)
	return f
}

func (f *sagaFixture) task(t *testing.T) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(queue.RechargeExecutePayload{
		Version:       queue.PayloadVersion,
		TenantID:      f.tenantID,
		UserID:        f.userID,
		TargetUser:    "customer-7",
		Amount:        40,
		TransactionID: f.spendID,
	})
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	return asynq.NewTask(queue.TypeRechargeExecute, data)
}

func TestProcessTaskCompletesPendingTransaction(t *testing.T) {
	f := newSagaFixture(t)

	if err := f.processor.ProcessTask(context.Background(), f.task(t)); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if f.provider.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", f.provider.calls)
	}
	if f.provider.last.Username != "panel-reseller" || f.provider.last.Password != "panel-secret" {
		t.Fatalf("provider got wrong credentials: %+v", f.provider.last.Credentials)
	}
	if f.provider.last.TargetUser != "customer-7" || f.provider.last.Amount != 40 {
		t.Fatalf("provider got wrong recharge input: %+v", f.provider.last)
	}
	if got := f.ledger.transactions[f.spendID].Status; got != ledger.StatusCompleted {
		t.Fatalf("expected COMPLETED transaction, got %s", got)
	}
}

func TestProcessTaskSkipsTerminalTransaction(t *testing.T) {
	for _, status := range []ledger.TransactionStatus{ledger.StatusCompleted, ledger.StatusFailed} {
		f := newSagaFixture(t)
		f.ledger.transactions[f.spendID].Status = status

		if err := f.processor.ProcessTask(context.Background(), f.task(t)); err != nil {
			t.Fatalf("redelivery for %s status should be a no-op, got %v", status, err)
		}
		if f.provider.calls != 0 {
			t.Fatalf("provider must not be called for %s transaction, got %d calls", status, f.provider.calls)
		}
	}
}

func TestProcessTaskProviderFailureCompensates(t *testing.T) {
	f := newSagaFixture(t)
	f.provider.err = warez.ErrProviderFailure

	err := f.processor.ProcessTask(context.Background(), f.task(t))
	if err == nil {
		t.Fatal("expected error after provider failure")
	}
	if got := f.ledger.transactions[f.spendID].Status; got != ledger.StatusFailed {
		t.Fatalf("expected FAILED transaction, got %s", got)
	}
	if len(f.ledger.compensated) != 1 {
		t.Fatalf("expected 1 compensation, got %d", len(f.ledger.compensated))
	}

	// Redelivery after compensation stops at the guard.
	if err := f.processor.ProcessTask(context.Background(), f.task(t)); err != nil {
		t.Fatalf("redelivery after compensation should succeed, got %v", err)
	}
	if f.provider.calls != 1 {
		t.Fatalf("expected no further provider calls, got %d", f.provider.calls)
	}
	if len(f.ledger.compensated) != 1 {
		t.Fatalf("expected no further compensations, got %d", len(f.ledger.compensated))
	}
}

func TestProcessTaskMissingCredentialsCompensates(t *testing.T) {
	f := newSagaFixture(t)
	v := testVault(t)
	f.processor = recharge.NewProcessor(f.ledger, &fakeTenants{tenant: &tenant.Tenant{
		ID:   f.tenantID,
		Slug: "saga-test",
	}}, v, f.provider)

	if err := f.processor.ProcessTask(context.Background(), f.task(t)); err == nil {
		t.Fatal("expected error when tenant has no credentials")
	}
	if f.provider.calls != 0 {
		t.Fatalf("provider must not be called without credentials, got %d calls", f.provider.calls)
	}
	if got := f.ledger.transactions[f.spendID].Status; got != ledger.StatusFailed {
		t.Fatalf("expected FAILED transaction, got %s", got)
	}
}

func TestProcessTaskMalformedPayloadDeadLetters(t *testing.T) {
	f := newSagaFixture(t)

	err := f.processor.ProcessTask(context.Background(), asynq.NewTask(queue.TypeRechargeExecute, []byte("{not json")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for malformed payload, got %v", err)
	}

	data, _ := json.Marshal(queue.RechargeExecutePayload{Version: 99, TransactionID: f.spendID})
	err = f.processor.ProcessTask(context.Background(), asynq.NewTask(queue.TypeRechargeExecute, data))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for unsupported version, got %v", err)
	}
	if f.provider.calls != 0 {
		t.Fatalf("provider must not be called for rejected payloads, got %d", f.provider.calls)
	}
}

func TestProcessTaskUnknownTransactionDeadLetters(t *testing.T) {
	f := newSagaFixture(t)
	delete(f.ledger.transactions, f.spendID)

	err := f.processor.ProcessTask(context.Background(), f.task(t))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for unknown transaction, got %v", err)
	}
}
