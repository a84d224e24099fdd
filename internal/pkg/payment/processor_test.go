package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citydesk/citydesk/app/models"
)

// fakeRepo is an in-memory Repository sufficient to drive the processor's
// dedup and dispatch logic without a database.
type fakeRepo struct {
	deliveries map[string]*models.WebhookDelivery
	nextID     uint
	lastCtx    context.Context

	applySuccessCalls int
	applyFailureCalls int
	successResult     *ApplyResult
	failureResult     *ApplyResult
	applyErr          error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{deliveries: map[string]*models.WebhookDelivery{}}
}

func (f *fakeRepo) CreateDeliveryIfNotExists(ctx context.Context, delivery *models.WebhookDelivery) (bool, *models.WebhookDelivery, error) {
	f.lastCtx = ctx
	if stored, ok := f.deliveries[delivery.ProviderDeliveryID]; ok {
		return false, stored, nil
	}
	f.nextID++
	delivery.ID = f.nextID
	f.deliveries[delivery.ProviderDeliveryID] = delivery
	return true, delivery, nil
}

func (f *fakeRepo) MarkDeliveryProcessed(ctx context.Context, deliveryID uint, note string) error {
	for _, d := range f.deliveries {
		if d.ID == deliveryID {
			now := time.Now()
			d.Processed = true
			d.ProcessedAt = &now
			d.ProcessingNote = note
			return nil
		}
	}
	return fmt.Errorf("delivery %d not found", deliveryID)
}

func (f *fakeRepo) ApplySuccess(ctx context.Context, in SuccessInput) (*ApplyResult, error) {
	f.lastCtx = ctx
	f.applySuccessCalls++
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	if err := f.MarkDeliveryProcessed(ctx, in.DeliveryID, f.successResult.Note); err != nil {
		return nil, err
	}
	return f.successResult, nil
}

func (f *fakeRepo) ApplyFailure(ctx context.Context, in FailureInput) (*ApplyResult, error) {
	f.lastCtx = ctx
	f.applyFailureCalls++
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	if err := f.MarkDeliveryProcessed(ctx, in.DeliveryID, f.failureResult.Note); err != nil {
		return nil, err
	}
	return f.failureResult, nil
}

func (f *fakeRepo) InitiateTransaction(ctx context.Context, requestID uint, amount decimal.Decimal, currency string) (*models.PaymentTransaction, error) {
	return nil, errors.New("not used in processor tests")
}

func (f *fakeRepo) GenerateReceipt(ctx context.Context, transactionID uint) (*models.Receipt, error) {
	return nil, errors.New("not used in processor tests")
}

type recordedOutcome struct {
	requestID uint
	outcome   string
	amount    decimal.Decimal
}

type fakeNotifier struct {
	outcomes []recordedOutcome
}

func (n *fakeNotifier) PaymentOutcome(requestID uint, outcome string, amount decimal.Decimal) {
	n.outcomes = append(n.outcomes, recordedOutcome{requestID: requestID, outcome: outcome, amount: amount})
}

func successPayload(deliveryID string, requestID uint) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "payment.succeeded",
		"data": {
			"reference": "CIVREQ-%d",
			"transaction_id": "ptx_1",
			"amount": "12.50",
			"currency": "EUR",
			"completed_at": "2025-03-01T12:00:00Z"
		}
	}`, deliveryID, requestID))
}

func appliedSuccess() *ApplyResult {
	return &ApplyResult{
		Transaction: &models.PaymentTransaction{
			ID:     1,
			Amount: decimal.RequireFromString("12.50"),
		},
		Request: &models.DocumentRequest{ID: 17, Status: models.StatusProcessing, PaymentStatus: models.PaymentStatusPaid},
		Receipt: &models.Receipt{ID: 1, ReceiptNumber: "RCPT-202503-00000001"},
	}
}

func TestHandleDeliverySuccess(t *testing.T) {
	repo := newFakeRepo()
	repo.successResult = appliedSuccess()
	notifier := &fakeNotifier{}
	p := NewProcessor(repo, "", notifier)

	res := p.HandleDelivery(context.Background(), successPayload("evt_1", 17), "")
	assert.True(t, res.Success)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, repo.applySuccessCalls)

	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, uint(17), notifier.outcomes[0].requestID)
	assert.Equal(t, "succeeded", notifier.outcomes[0].outcome)
	assert.True(t, notifier.outcomes[0].amount.Equal(decimal.RequireFromString("12.50")))
}

func TestHandleDeliveryRedeliveryAppliesOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.successResult = appliedSuccess()
	notifier := &fakeNotifier{}
	p := NewProcessor(repo, "", notifier)

	payload := successPayload("evt_1", 17)
	first := p.HandleDelivery(context.Background(), payload, "")
	second := p.HandleDelivery(context.Background(), payload, "")

	assert.True(t, first.Success)
	assert.False(t, first.Duplicate)
	assert.True(t, second.Success)
	assert.True(t, second.Duplicate)

	// The redelivery is absorbed before any apply step runs.
	assert.Equal(t, 1, repo.applySuccessCalls)
	assert.Len(t, notifier.outcomes, 1)
}

func TestHandleDeliveryRetakesUnprocessedDelivery(t *testing.T) {
	repo := newFakeRepo()
	repo.successResult = appliedSuccess()
	p := NewProcessor(repo, "", nil)

	// A prior attempt persisted the delivery but crashed before committing
	// its effects.
	repo.nextID++
	repo.deliveries["evt_1"] = &models.WebhookDelivery{
		ID:                 repo.nextID,
		ProviderDeliveryID: "evt_1",
		Processed:          false,
	}

	res := p.HandleDelivery(context.Background(), successPayload("evt_1", 17), "")
	assert.True(t, res.Success)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, repo.applySuccessCalls)
	assert.True(t, repo.deliveries["evt_1"].Processed)
}

func TestHandleDeliveryApplyErrorLeavesDeliveryRetryable(t *testing.T) {
	repo := newFakeRepo()
	repo.applyErr = errors.New("deadlock")
	notifier := &fakeNotifier{}
	p := NewProcessor(repo, "", notifier)

	res := p.HandleDelivery(context.Background(), successPayload("evt_1", 17), "")
	assert.False(t, res.Success)
	assert.False(t, repo.deliveries["evt_1"].Processed)
	assert.Empty(t, notifier.outcomes)

	// Once the fault clears, the provider retry goes through.
	repo.applyErr = nil
	repo.successResult = appliedSuccess()
	res = p.HandleDelivery(context.Background(), successPayload("evt_1", 17), "")
	assert.True(t, res.Success)
	assert.True(t, repo.deliveries["evt_1"].Processed)
	assert.Len(t, notifier.outcomes, 1)
}

func TestHandleDeliveryFailureOutcome(t *testing.T) {
	repo := newFakeRepo()
	repo.failureResult = &ApplyResult{
		Transaction: &models.PaymentTransaction{ID: 2, Amount: decimal.RequireFromString("25.00")},
		Request:     &models.DocumentRequest{ID: 8, Status: models.StatusApproved, PaymentStatus: models.PaymentStatusFailed},
	}
	notifier := &fakeNotifier{}
	p := NewProcessor(repo, "", notifier)

	raw := []byte(`{"id":"evt_f1","type":"payment.failed","data":{"reference":"CIVREQ-8"}}`)
	res := p.HandleDelivery(context.Background(), raw, "")
	assert.True(t, res.Success)
	assert.Equal(t, 1, repo.applyFailureCalls)

	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, "failed", notifier.outcomes[0].outcome)
}

func TestHandleDeliveryAlreadyAppliedOutcome(t *testing.T) {
	repo := newFakeRepo()
	repo.successResult = &ApplyResult{
		Transaction:    &models.PaymentTransaction{ID: 1, Amount: decimal.RequireFromString("12.50")},
		AlreadyApplied: true,
	}
	notifier := &fakeNotifier{}
	p := NewProcessor(repo, "", notifier)

	// Same outcome under two distinct delivery ids: the second apply detects
	// the settled ledger row instead of double-paying.
	res := p.HandleDelivery(context.Background(), successPayload("evt_a", 17), "")
	assert.True(t, res.Success)
	assert.True(t, res.Duplicate)
	assert.Empty(t, notifier.outcomes)
}

func TestHandleDeliveryUnresolvedReference(t *testing.T) {
	repo := newFakeRepo()
	p := NewProcessor(repo, "", nil)

	raw := []byte(`{"id":"evt_x","type":"payment.succeeded","data":{"reference":"ORDER-99"}}`)
	res := p.HandleDelivery(context.Background(), raw, "")
	assert.True(t, res.Success)
	assert.Equal(t, 0, repo.applySuccessCalls)

	stored := repo.deliveries["evt_x"]
	require.NotNil(t, stored)
	assert.True(t, stored.Processed)
	assert.Contains(t, stored.ProcessingNote, "unresolved reference")
}

func TestHandleDeliveryRefundRecordedNotSettled(t *testing.T) {
	repo := newFakeRepo()
	p := NewProcessor(repo, "", nil)

	raw := []byte(`{"id":"evt_r","type":"payment.refunded","data":{"reference":"CIVREQ-5"}}`)
	res := p.HandleDelivery(context.Background(), raw, "")
	assert.True(t, res.Success)
	assert.Equal(t, 0, repo.applySuccessCalls)
	assert.Equal(t, 0, repo.applyFailureCalls)
	assert.True(t, repo.deliveries["evt_r"].Processed)
	assert.Contains(t, repo.deliveries["evt_r"].ProcessingNote, "refund")
}

func TestHandleDeliveryUnknownEventType(t *testing.T) {
	repo := newFakeRepo()
	p := NewProcessor(repo, "", nil)

	raw := []byte(`{"id":"evt_u","type":"payment.disputed","data":{"reference":"CIVREQ-5"}}`)
	res := p.HandleDelivery(context.Background(), raw, "")
	assert.True(t, res.Success)
	assert.True(t, repo.deliveries["evt_u"].Processed)
	assert.Contains(t, repo.deliveries["evt_u"].ProcessingNote, "payment.disputed")
}

func TestHandleDeliverySignatureEnforcement(t *testing.T) {
	repo := newFakeRepo()
	repo.successResult = appliedSuccess()
	p := NewProcessor(repo, "webhook-secret", nil)

	payload := successPayload("evt_s", 17)

	res := p.HandleDelivery(context.Background(), payload, "sha256=deadbeef")
	assert.False(t, res.Success)
	assert.Empty(t, repo.deliveries, "rejected delivery must not be persisted")

	res = p.HandleDelivery(context.Background(), payload, Sign(payload, "webhook-secret"))
	assert.True(t, res.Success)
	assert.Equal(t, 1, repo.applySuccessCalls)
}

func TestHandleDeliveryPropagatesContext(t *testing.T) {
	repo := newFakeRepo()
	repo.successResult = appliedSuccess()
	p := NewProcessor(repo, "", nil)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "deadline-bound")
	p.HandleDelivery(ctx, successPayload("evt_ctx", 17), "")

	require.NotNil(t, repo.lastCtx)
	assert.Equal(t, "deadline-bound", repo.lastCtx.Value(ctxKey{}))
}

func TestHandleDeliveryUnparsablePayload(t *testing.T) {
	repo := newFakeRepo()
	p := NewProcessor(repo, "", nil)

	res := p.HandleDelivery(context.Background(), []byte(`{"id":`), "")
	assert.False(t, res.Success)
	assert.Empty(t, repo.deliveries)

	res = p.HandleDelivery(context.Background(), []byte(`{"type":"payment.succeeded"}`), "")
	assert.False(t, res.Success)
	assert.Empty(t, repo.deliveries)
}
