package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/citydesk/citydesk/app/models"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

// Notifier fans a payment outcome out to administrators. Implementations are
// best-effort and must not block: the processor calls it after the commit,
// outside any transaction.
type Notifier interface {
	PaymentOutcome(requestID uint, outcome string, amount decimal.Decimal)
}

// AckResult is the webhook endpoint's uniform reply. The HTTP layer always
// answers 200 with this body regardless of internal outcome.
type AckResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Duplicate bool   `json:"-"`
}

// Processor converts at-least-once provider deliveries into effectively-once
// state changes. Safe under concurrent invocation: dedup rests on the
// delivery id unique constraint and all side effects commit in one
// transaction with the processed marker.
type Processor struct {
	repo     Repository
	secret   string
	notifier Notifier
}

// NewProcessor creates a webhook processor. An empty secret disables
// signature verification (configuration is optional but recommended).
func NewProcessor(repo Repository, secret string, notifier Notifier) *Processor {
	return &Processor{repo: repo, secret: secret, notifier: notifier}
}

// HandleDelivery authenticates, deduplicates and applies one provider
// notification. Every outcome is acknowledged; failures that should be
// retried by the provider leave the stored delivery unprocessed.
func (p *Processor) HandleDelivery(ctx context.Context, raw []byte, signatureHeader string) AckResult {
	if p.secret != "" && !VerifySignature(raw, signatureHeader, p.secret) {
		log.Warnf("[Webhook] rejected delivery with invalid signature (%d bytes)", len(raw))
		return AckResult{Success: false, Message: "signature verification failed"}
	}

	event, err := ParseEvent(raw)
	if err != nil {
		log.Warnf("[Webhook] unparsable delivery: %v", err)
		return AckResult{Success: false, Message: "unparsable payload"}
	}

	delivery := &models.WebhookDelivery{
		ProviderDeliveryID: event.DeliveryID,
		EventType:          event.RawType,
		RequestID:          event.RequestID,
		Payload:            string(event.Raw),
	}
	created, stored, err := p.repo.CreateDeliveryIfNotExists(ctx, delivery)
	if err != nil {
		log.Errorf("[Webhook] delivery persistence failed: %v", err)
		return AckResult{Success: false, Message: "delivery could not be recorded"}
	}
	if !created && stored.Processed {
		return AckResult{Success: true, Message: "duplicate delivery", Duplicate: true}
	}
	// A stored-but-unprocessed row means an earlier attempt crashed before
	// its effects committed; this attempt takes over.

	switch event.Kind {
	case EventPaymentSucceeded:
		return p.applySuccess(ctx, stored.ID, event)
	case EventPaymentFailed:
		return p.applyFailure(ctx, stored.ID, event)
	case EventPaymentRefunded:
		// Refund settlement is handled out of band; the delivery is kept for
		// audit and marked so it is never retried.
		return p.markUnhandled(ctx, stored.ID, fmt.Sprintf("refund event recorded, not settled (%s)", event.Reference))
	default:
		return p.markUnhandled(ctx, stored.ID, fmt.Sprintf("unhandled event type %q", event.RawType))
	}
}

func (p *Processor) applySuccess(ctx context.Context, deliveryID uint, event *Event) AckResult {
	if event.RequestID == 0 {
		return p.markUnhandled(ctx, deliveryID, fmt.Sprintf("unresolved reference %q", event.Reference))
	}

	completedAt := time.Now()
	if event.CompletedAt != nil {
		completedAt = *event.CompletedAt
	}

	result, err := p.repo.ApplySuccess(ctx, SuccessInput{
		DeliveryID:   deliveryID,
		RequestID:    event.RequestID,
		ProviderTxID: event.ProviderTxID,
		CompletedAt:  completedAt,
		Raw:          event.Raw,
	})
	if err != nil {
		// The transaction rolled back; the delivery stays unprocessed so a
		// provider retry can re-attempt.
		log.Errorf("[Webhook] success apply failed for request %d: %v", event.RequestID, err)
		return AckResult{Success: false, Message: "outcome could not be applied"}
	}

	switch {
	case result.AlreadyApplied:
		return AckResult{Success: true, Message: "outcome already applied", Duplicate: true}
	case result.Unapplied:
		log.Warnf("[Webhook] request %d: %s", event.RequestID, result.Note)
		return AckResult{Success: true, Message: "recorded without request update"}
	}

	log.Infof("[Webhook] payment confirmed for request %d, receipt %s", event.RequestID, result.Receipt.ReceiptNumber)
	if p.notifier != nil {
		p.notifier.PaymentOutcome(event.RequestID, "succeeded", result.Transaction.Amount)
	}
	return AckResult{Success: true, Message: "payment confirmed"}
}

func (p *Processor) applyFailure(ctx context.Context, deliveryID uint, event *Event) AckResult {
	if event.RequestID == 0 {
		return p.markUnhandled(ctx, deliveryID, fmt.Sprintf("unresolved reference %q", event.Reference))
	}

	result, err := p.repo.ApplyFailure(ctx, FailureInput{
		DeliveryID: deliveryID,
		RequestID:  event.RequestID,
		Raw:        event.Raw,
	})
	if err != nil {
		log.Errorf("[Webhook] failure apply failed for request %d: %v", event.RequestID, err)
		return AckResult{Success: false, Message: "outcome could not be applied"}
	}

	if result.AlreadyApplied {
		return AckResult{Success: true, Message: "outcome already applied", Duplicate: true}
	}

	log.Infof("[Webhook] payment failed for request %d, request stays retryable", event.RequestID)
	if p.notifier != nil && result.Transaction != nil {
		p.notifier.PaymentOutcome(event.RequestID, "failed", result.Transaction.Amount)
	}
	return AckResult{Success: true, Message: "payment failure recorded"}
}

func (p *Processor) markUnhandled(ctx context.Context, deliveryID uint, note string) AckResult {
	if err := p.repo.MarkDeliveryProcessed(ctx, deliveryID, note); err != nil {
		log.Errorf("[Webhook] could not mark delivery %d processed: %v", deliveryID, err)
		return AckResult{Success: false, Message: "delivery could not be recorded"}
	}
	log.Warnf("[Webhook] delivery %d recorded as unhandled: %s", deliveryID, note)
	return AckResult{Success: true, Message: "event recorded"}
}
