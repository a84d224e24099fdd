// Package lifecycle owns the document request status machine: the
// allowed-edges table, the atomic transition function and the narrow payment
// outcome entry point used by the webhook processor.
package lifecycle

import (
	"errors"

	"github.com/citydesk/citydesk/app/models"
)

var (
	// ErrInvalidTransition marks a status change not present in the
	// allowed-edges table. It is never silently coerced.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound marks a transition attempt on an unknown request.
	ErrNotFound = errors.New("document request not found")
	// ErrInvalidPaymentOutcome marks a payment status change outside
	// unpaid -> pending -> {paid | failed} (failed may cycle back to pending).
	ErrInvalidPaymentOutcome = errors.New("invalid payment outcome")
)

// allowedTransitions is the closed edge table of the status machine.
// Cancellation and rejection are only reachable before processing starts;
// once a request is paid and processing it can only move forward.
var allowedTransitions = map[string][]string{
	models.StatusPending:        {models.StatusUnderReview, models.StatusCancelled, models.StatusRejected},
	models.StatusUnderReview:    {models.StatusAdditionalInfo, models.StatusApproved, models.StatusCancelled, models.StatusRejected},
	models.StatusAdditionalInfo: {models.StatusUnderReview, models.StatusCancelled, models.StatusRejected},
	models.StatusApproved:       {models.StatusProcessing, models.StatusCancelled, models.StatusRejected},
	models.StatusProcessing:     {models.StatusReadyForPickup},
	models.StatusReadyForPickup: {models.StatusCompleted},
	models.StatusCompleted:      {},
	models.StatusCancelled:      {},
	models.StatusRejected:       {},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing edges.
func IsTerminal(status string) bool {
	edges, ok := allowedTransitions[status]
	return ok && len(edges) == 0
}

// KnownStatus reports whether the status exists in the edge table.
func KnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// SubmitterCancellable reports whether the submitter may still cancel a
// request in the given status. Cancellation is shut off once processing
// starts.
func SubmitterCancellable(status string) bool {
	switch status {
	case models.StatusPending, models.StatusUnderReview, models.StatusAdditionalInfo, models.StatusApproved:
		return true
	default:
		return false
	}
}

// validStatePairs is the documented table of valid (status, payment status)
// combinations. Every persisted request must map to one cell of this table.
var validStatePairs = map[string][]string{
	models.StatusPending:        {models.PaymentStatusUnpaid},
	models.StatusUnderReview:    {models.PaymentStatusUnpaid},
	models.StatusAdditionalInfo: {models.PaymentStatusUnpaid},
	models.StatusApproved:       {models.PaymentStatusUnpaid, models.PaymentStatusPending, models.PaymentStatusFailed},
	models.StatusProcessing:     {models.PaymentStatusPaid},
	models.StatusReadyForPickup: {models.PaymentStatusPaid},
	models.StatusCompleted:      {models.PaymentStatusPaid},
	models.StatusCancelled:      {models.PaymentStatusUnpaid, models.PaymentStatusPending, models.PaymentStatusFailed},
	models.StatusRejected:       {models.PaymentStatusUnpaid, models.PaymentStatusPending, models.PaymentStatusFailed},
}

// ValidStatePair reports whether the (status, payment status) combination is
// a member of the documented valid-combination table.
func ValidStatePair(status, paymentStatus string) bool {
	for _, p := range validStatePairs[status] {
		if p == paymentStatus {
			return true
		}
	}
	return false
}
