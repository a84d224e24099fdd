package lifecycle

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/citydesk/citydesk/app/models"
)

func TestCanTransitionAllowedEdges(t *testing.T) {
	tests := []struct {
		from string
		to   string
	}{
		{from: models.StatusPending, to: models.StatusUnderReview},
		{from: models.StatusPending, to: models.StatusCancelled},
		{from: models.StatusPending, to: models.StatusRejected},
		{from: models.StatusUnderReview, to: models.StatusAdditionalInfo},
		{from: models.StatusUnderReview, to: models.StatusApproved},
		{from: models.StatusAdditionalInfo, to: models.StatusUnderReview},
		{from: models.StatusApproved, to: models.StatusProcessing},
		{from: models.StatusApproved, to: models.StatusCancelled},
		{from: models.StatusProcessing, to: models.StatusReadyForPickup},
		{from: models.StatusReadyForPickup, to: models.StatusCompleted},
	}

	for _, tt := range tests {
		if !CanTransition(tt.from, tt.to) {
			t.Fatalf("expected %s -> %s to be allowed", tt.from, tt.to)
		}
	}
}

func TestCanTransitionForbiddenEdges(t *testing.T) {
	tests := []struct {
		from string
		to   string
	}{
		{from: models.StatusPending, to: models.StatusApproved},
		{from: models.StatusPending, to: models.StatusCompleted},
		{from: models.StatusAdditionalInfo, to: models.StatusApproved},
		{from: models.StatusProcessing, to: models.StatusCancelled},
		{from: models.StatusProcessing, to: models.StatusRejected},
		{from: models.StatusReadyForPickup, to: models.StatusCancelled},
		{from: models.StatusCompleted, to: models.StatusPending},
		{from: models.StatusCancelled, to: models.StatusPending},
		{from: models.StatusRejected, to: models.StatusUnderReview},
		{from: models.StatusApproved, to: models.StatusReadyForPickup},
		{from: "made_up", to: models.StatusPending},
	}

	for _, tt := range tests {
		if CanTransition(tt.from, tt.to) {
			t.Fatalf("expected %s -> %s to be forbidden", tt.from, tt.to)
		}
	}
}

func TestNoEdgeLeavesTerminalStatus(t *testing.T) {
	all := []string{
		models.StatusPending, models.StatusUnderReview, models.StatusAdditionalInfo,
		models.StatusApproved, models.StatusProcessing, models.StatusReadyForPickup,
		models.StatusCompleted, models.StatusCancelled, models.StatusRejected,
	}
	for _, from := range []string{models.StatusCompleted, models.StatusCancelled, models.StatusRejected} {
		assert.True(t, IsTerminal(from))
		for _, to := range all {
			assert.False(t, CanTransition(from, to), "%s -> %s must be forbidden", from, to)
		}
	}
}

func TestCancellationUnreachableOnceProcessing(t *testing.T) {
	for _, from := range []string{models.StatusProcessing, models.StatusReadyForPickup, models.StatusCompleted} {
		assert.False(t, CanTransition(from, models.StatusCancelled), "from %s", from)
		assert.False(t, CanTransition(from, models.StatusRejected), "from %s", from)
	}
}

func TestSubmitterCancellable(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{status: models.StatusPending, want: true},
		{status: models.StatusUnderReview, want: true},
		{status: models.StatusAdditionalInfo, want: true},
		{status: models.StatusApproved, want: true},
		{status: models.StatusProcessing, want: false},
		{status: models.StatusReadyForPickup, want: false},
		{status: models.StatusCompleted, want: false},
		{status: models.StatusCancelled, want: false},
		{status: models.StatusRejected, want: false},
	}

	for _, tt := range tests {
		if got := SubmitterCancellable(tt.status); got != tt.want {
			t.Fatalf("SubmitterCancellable(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestKnownStatus(t *testing.T) {
	assert.True(t, KnownStatus(models.StatusPending))
	assert.True(t, KnownStatus(models.StatusCompleted))
	assert.False(t, KnownStatus("archived"))
	assert.False(t, KnownStatus(""))
}

func TestValidStatePair(t *testing.T) {
	tests := []struct {
		status        string
		paymentStatus string
		want          bool
	}{
		{models.StatusPending, models.PaymentStatusUnpaid, true},
		{models.StatusPending, models.PaymentStatusPaid, false},
		{models.StatusUnderReview, models.PaymentStatusPending, false},
		{models.StatusApproved, models.PaymentStatusUnpaid, true},
		{models.StatusApproved, models.PaymentStatusPending, true},
		{models.StatusApproved, models.PaymentStatusFailed, true},
		{models.StatusApproved, models.PaymentStatusPaid, false},
		{models.StatusProcessing, models.PaymentStatusPaid, true},
		{models.StatusProcessing, models.PaymentStatusPending, false},
		{models.StatusReadyForPickup, models.PaymentStatusPaid, true},
		{models.StatusCompleted, models.PaymentStatusPaid, true},
		{models.StatusCompleted, models.PaymentStatusUnpaid, false},
		{models.StatusCancelled, models.PaymentStatusUnpaid, true},
		{models.StatusCancelled, models.PaymentStatusPending, true},
		{models.StatusCancelled, models.PaymentStatusFailed, true},
		{models.StatusCancelled, models.PaymentStatusPaid, false},
		{models.StatusRejected, models.PaymentStatusFailed, true},
		{"archived", models.PaymentStatusUnpaid, false},
	}

	for _, tt := range tests {
		if got := ValidStatePair(tt.status, tt.paymentStatus); got != tt.want {
			t.Fatalf("ValidStatePair(%q, %q) = %v, want %v", tt.status, tt.paymentStatus, got, tt.want)
		}
	}
}

// Every status reachable by walking allowed edges from pending has at least
// one valid payment status, so the machine can never strand a request in a
// status with an empty row of the pair table.
func TestReachableStatusesHaveValidPairs(t *testing.T) {
	payments := []string{
		models.PaymentStatusUnpaid, models.PaymentStatusPending,
		models.PaymentStatusPaid, models.PaymentStatusFailed,
	}

	rng := rand.New(rand.NewSource(42))
	for walk := 0; walk < 200; walk++ {
		status := models.StatusPending
		for step := 0; step < 10; step++ {
			anyValid := false
			for _, p := range payments {
				if ValidStatePair(status, p) {
					anyValid = true
					break
				}
			}
			if !anyValid {
				t.Fatalf("status %q reachable from pending has no valid payment status", status)
			}

			edges := allowedTransitions[status]
			if len(edges) == 0 {
				break
			}
			status = edges[rng.Intn(len(edges))]
		}
	}
}
