// Package payment implements the webhook reconciliation core: provider event
// parsing, signature verification, the effectively-once delivery processor
// and the idempotent receipt generator.
package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind is the closed set of provider event types the processor
// understands. Parsing at the boundary maps raw type strings into this set so
// the reconciliation logic switches over compiler-checked variants.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventPaymentSucceeded
	EventPaymentFailed
	EventPaymentRefunded
)

// Provider event type strings.
const (
	eventTypeSucceeded = "payment.succeeded"
	eventTypeFailed    = "payment.failed"
	eventTypeRefunded  = "payment.refunded"
)

// ReferencePrefix is prepended to the request id in the application-chosen
// reference string handed to the provider at payment initiation.
const ReferencePrefix = "CIVREQ-"

var (
	// ErrMissingDeliveryID marks a payload without the provider delivery id;
	// such a payload cannot be deduplicated.
	ErrMissingDeliveryID = errors.New("provider delivery id missing")
	// ErrBadReference marks an application reference that does not resolve
	// to a request id.
	ErrBadReference = errors.New("unresolvable payment reference")
)

// Event is the normalized provider notification.
type Event struct {
	Kind         EventKind
	DeliveryID   string
	RawType      string
	Reference    string
	RequestID    uint
	ProviderTxID string
	Amount       decimal.Decimal
	CompletedAt  *time.Time
	Raw          []byte
}

type providerEnvelope struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	CreatedAt *time.Time        `json:"created_at"`
	Data      providerEventData `json:"data"`
}

type providerEventData struct {
	Reference     string          `json:"reference"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CompletedAt   *time.Time      `json:"completed_at"`
}

// ParseEvent normalizes a raw provider payload. A malformed or missing
// reference is not an error here: the event comes back with RequestID zero
// and the processor records it as unhandled instead of crashing the endpoint.
func ParseEvent(raw []byte) (*Event, error) {
	var env providerEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed provider payload: %w", err)
	}
	if strings.TrimSpace(env.ID) == "" {
		return nil, ErrMissingDeliveryID
	}

	ev := &Event{
		Kind:         kindForType(env.Type),
		DeliveryID:   strings.TrimSpace(env.ID),
		RawType:      strings.TrimSpace(env.Type),
		Reference:    strings.TrimSpace(env.Data.Reference),
		ProviderTxID: strings.TrimSpace(env.Data.TransactionID),
		Amount:       env.Data.Amount,
		CompletedAt:  env.Data.CompletedAt,
		Raw:          raw,
	}
	if ev.CompletedAt == nil {
		ev.CompletedAt = env.CreatedAt
	}
	if id, err := ParseReference(ev.Reference); err == nil {
		ev.RequestID = id
	}
	return ev, nil
}

func kindForType(rawType string) EventKind {
	switch strings.ToLower(strings.TrimSpace(rawType)) {
	case eventTypeSucceeded:
		return EventPaymentSucceeded
	case eventTypeFailed:
		return EventPaymentFailed
	case eventTypeRefunded:
		return EventPaymentRefunded
	default:
		return EventUnhandled
	}
}

// FormatReference builds the reference string embedded in provider payloads
// at payment initiation.
func FormatReference(requestID uint) string {
	return fmt.Sprintf("%s%d", ReferencePrefix, requestID)
}

// ParseReference resolves a provider-echoed reference back to a request id.
func ParseReference(reference string) (uint, error) {
	ref := strings.TrimSpace(reference)
	if !strings.HasPrefix(ref, ReferencePrefix) {
		return 0, fmt.Errorf("%w: %q", ErrBadReference, reference)
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(ref, ReferencePrefix), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadReference, reference)
	}
	return uint(id), nil
}
