package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/citydesk/citydesk/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the only writer of DocumentRequest status fields and
// StatusHistoryEntry rows. Every transition happens inside a row-locked
// transaction and appends exactly one history entry.
type Store struct {
	db *gorm.DB
}

// NewStore creates a lifecycle store backed by GORM.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// TransitionStatus validates and applies a status change atomically.
func (s *Store) TransitionStatus(requestID uint, newStatus, actor, reason string) (*models.DocumentRequest, error) {
	var req *models.DocumentRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		req, txErr = s.TransitionStatusTx(tx, requestID, newStatus, actor, reason)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// TransitionStatusTx applies a status change inside an existing transaction.
// The caller must commit or roll back; the webhook processor uses this to
// bundle the transition with ledger and receipt writes.
func (s *Store) TransitionStatusTx(tx *gorm.DB, requestID uint, newStatus, actor, reason string) (*models.DocumentRequest, error) {
	req, err := lockRequest(tx, requestID)
	if err != nil {
		return nil, err
	}

	if !KnownStatus(newStatus) || !CanTransition(req.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s (request %d)", ErrInvalidTransition, req.Status, newStatus, requestID)
	}
	if !ValidStatePair(newStatus, req.PaymentStatus) {
		return nil, fmt.Errorf("%w: %s with payment status %s (request %d)", ErrInvalidTransition, newStatus, req.PaymentStatus, requestID)
	}

	oldStatus := req.Status
	req.Status = newStatus
	if err := tx.Model(req).Update("status", newStatus).Error; err != nil {
		return nil, err
	}
	if err := appendHistory(tx, req.ID, oldStatus, newStatus, actor, reason); err != nil {
		return nil, err
	}
	return req, nil
}

// MarkPaymentOutcome is the narrow entry point used by the webhook processor
// and the payment initiation flow. It changes the payment status field and,
// only for a confirmed payment on an approved request, drives the single
// designated main-status transition into processing.
func (s *Store) MarkPaymentOutcome(requestID uint, paymentStatus string, paidAt *time.Time) (*models.DocumentRequest, error) {
	var req *models.DocumentRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		req, txErr = s.MarkPaymentOutcomeTx(tx, requestID, paymentStatus, paidAt)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// MarkPaymentOutcomeTx applies a payment outcome inside an existing transaction.
func (s *Store) MarkPaymentOutcomeTx(tx *gorm.DB, requestID uint, paymentStatus string, paidAt *time.Time) (*models.DocumentRequest, error) {
	req, err := lockRequest(tx, requestID)
	if err != nil {
		return nil, err
	}

	switch paymentStatus {
	case models.PaymentStatusPending:
		// A new payment attempt: fresh requests come from unpaid, retries
		// cycle a failed payment back to pending.
		if req.PaymentStatus != models.PaymentStatusUnpaid && req.PaymentStatus != models.PaymentStatusFailed {
			return nil, fmt.Errorf("%w: %s -> pending (request %d)", ErrInvalidPaymentOutcome, req.PaymentStatus, requestID)
		}
		req.PaymentStatus = models.PaymentStatusPending
		if err := tx.Model(req).Update("payment_status", req.PaymentStatus).Error; err != nil {
			return nil, err
		}

	case models.PaymentStatusPaid:
		if req.PaymentStatus != models.PaymentStatusPending {
			return nil, fmt.Errorf("%w: %s -> paid (request %d)", ErrInvalidPaymentOutcome, req.PaymentStatus, requestID)
		}
		if req.Status != models.StatusApproved {
			return nil, fmt.Errorf("%w: paid in status %s (request %d)", ErrInvalidPaymentOutcome, req.Status, requestID)
		}
		if paidAt == nil {
			now := time.Now()
			paidAt = &now
		}
		oldStatus := req.Status
		req.PaymentStatus = models.PaymentStatusPaid
		req.PaidAt = paidAt
		req.Status = models.StatusProcessing
		// One update for all three fields so no intermediate row ever
		// violates the (status, payment status) table.
		updates := map[string]interface{}{
			"payment_status": req.PaymentStatus,
			"paid_at":        req.PaidAt,
			"status":         req.Status,
		}
		if err := tx.Model(req).Updates(updates).Error; err != nil {
			return nil, err
		}
		if err := appendHistory(tx, req.ID, oldStatus, req.Status, models.ActorSystem, "payment confirmed"); err != nil {
			return nil, err
		}

	case models.PaymentStatusFailed:
		if req.PaymentStatus != models.PaymentStatusPending {
			return nil, fmt.Errorf("%w: %s -> failed (request %d)", ErrInvalidPaymentOutcome, req.PaymentStatus, requestID)
		}
		req.PaymentStatus = models.PaymentStatusFailed
		if err := tx.Model(req).Update("payment_status", req.PaymentStatus).Error; err != nil {
			return nil, err
		}
		// The main status stays put, the request remains retryable. The
		// failure still leaves an audit trail.
		if err := appendHistory(tx, req.ID, req.Status, req.Status, models.ActorSystem, "payment failed"); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidPaymentOutcome, paymentStatus)
	}

	return req, nil
}

func lockRequest(tx *gorm.DB, requestID uint) (*models.DocumentRequest, error) {
	var req models.DocumentRequest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, requestID)
		}
		return nil, err
	}
	return &req, nil
}

func appendHistory(tx *gorm.DB, requestID uint, oldStatus, newStatus, actor, reason string) error {
	entry := models.StatusHistoryEntry{
		RequestID: requestID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Actor:     actor,
		Reason:    reason,
	}
	return tx.Create(&entry).Error
}
