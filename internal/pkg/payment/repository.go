package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/citydesk/citydesk/app/models"
	"github.com/citydesk/citydesk/internal/pkg/lifecycle"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNoTransaction marks a webhook outcome for a request without any
	// payment transaction on the ledger.
	ErrNoTransaction = errors.New("no payment transaction for request")
	// ErrNotSucceeded marks a receipt generation attempt for a transaction
	// that never reached succeeded.
	ErrNotSucceeded = errors.New("transaction has not succeeded")
	// ErrNotPayable marks a payment initiation on a request that is not in
	// the approved status.
	ErrNotPayable = errors.New("request is not approved for payment")
)

// SuccessInput carries a verified, parsed success outcome into the atomic
// apply step.
type SuccessInput struct {
	DeliveryID   uint
	RequestID    uint
	ProviderTxID string
	CompletedAt  time.Time
	Raw          []byte
}

// FailureInput carries a verified, parsed failure outcome.
type FailureInput struct {
	DeliveryID uint
	RequestID  uint
	Raw        []byte
}

// ApplyResult reports what an apply step actually did.
type ApplyResult struct {
	Transaction    *models.PaymentTransaction
	Request        *models.DocumentRequest
	Receipt        *models.Receipt
	AlreadyApplied bool
	Unapplied      bool
	Note           string
}

// Repository provides the transactional persistence operations of the
// reconciliation core. Each Apply* call either commits every side effect
// together with marking the delivery processed, or commits nothing. The
// context bounds the underlying SQL statements.
type Repository interface {
	CreateDeliveryIfNotExists(ctx context.Context, delivery *models.WebhookDelivery) (bool, *models.WebhookDelivery, error)
	MarkDeliveryProcessed(ctx context.Context, deliveryID uint, note string) error
	ApplySuccess(ctx context.Context, in SuccessInput) (*ApplyResult, error)
	ApplyFailure(ctx context.Context, in FailureInput) (*ApplyResult, error)
	InitiateTransaction(ctx context.Context, requestID uint, amount decimal.Decimal, currency string) (*models.PaymentTransaction, error)
	GenerateReceipt(ctx context.Context, transactionID uint) (*models.Receipt, error)
}

type gormRepository struct {
	db    *gorm.DB
	store *lifecycle.Store
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db, store: lifecycle.NewStore(db)}
}

// CreateDeliveryIfNotExists persists a delivery row unless one with the same
// provider delivery id exists. The unique index absorbs concurrent inserts;
// the surviving row is re-read either way.
func (r *gormRepository) CreateDeliveryIfNotExists(ctx context.Context, delivery *models.WebhookDelivery) (bool, *models.WebhookDelivery, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_delivery_id"}},
		DoNothing: true,
	}).Create(delivery)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookDelivery
	if err := db.Where("provider_delivery_id = ?", delivery.ProviderDeliveryID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkDeliveryProcessed(ctx context.Context, deliveryID uint, note string) error {
	return markDeliveryProcessedTx(r.db.WithContext(ctx), deliveryID, note)
}

func markDeliveryProcessedTx(tx *gorm.DB, deliveryID uint, note string) error {
	now := time.Now()
	return tx.Model(&models.WebhookDelivery{}).
		Where("id = ?", deliveryID).
		Updates(map[string]interface{}{
			"processed":       true,
			"processed_at":    &now,
			"processing_note": note,
		}).Error
}

// ApplySuccess commits the success outcome atomically: the ledger row turns
// succeeded, the request is marked paid and moved into processing, a receipt
// is generated and the delivery is marked processed. Lock order is request
// row first, then its latest transaction.
func (r *gormRepository) ApplySuccess(ctx context.Context, in SuccessInput) (*ApplyResult, error) {
	result := &ApplyResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.DocumentRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, in.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", lifecycle.ErrNotFound, in.RequestID)
			}
			return err
		}

		txn, err := lockLatestTransaction(tx, in.RequestID)
		if err != nil {
			return err
		}

		if txn.Status == models.TransactionSucceeded {
			// Another delivery already settled this request.
			result.AlreadyApplied = true
			result.Transaction = txn
			result.Request = &req
			return markDeliveryProcessedTx(tx, in.DeliveryID, "outcome already applied")
		}

		if req.Status != models.StatusApproved || req.PaymentStatus != models.PaymentStatusPending {
			// Money moved but the request is no longer payable (e.g. it was
			// cancelled while the payment was in flight). Record the ledger
			// outcome, flag the delivery for manual investigation, leave the
			// request untouched.
			if err := settleTransactionTx(tx, txn, models.TransactionSucceeded, in.ProviderTxID, in.CompletedAt, in.Raw); err != nil {
				return err
			}
			result.Unapplied = true
			result.Transaction = txn
			result.Request = &req
			result.Note = fmt.Sprintf("payment succeeded but request is %s/%s", req.Status, req.PaymentStatus)
			return markDeliveryProcessedTx(tx, in.DeliveryID, result.Note)
		}

		if err := settleTransactionTx(tx, txn, models.TransactionSucceeded, in.ProviderTxID, in.CompletedAt, in.Raw); err != nil {
			return err
		}

		completedAt := in.CompletedAt
		updated, err := r.store.MarkPaymentOutcomeTx(tx, in.RequestID, models.PaymentStatusPaid, &completedAt)
		if err != nil {
			return err
		}

		receipt, err := generateReceiptTx(tx, txn, updated, beneficiaryNameTx(tx, updated), completedAt)
		if err != nil {
			return err
		}

		result.Transaction = txn
		result.Request = updated
		result.Receipt = receipt
		return markDeliveryProcessedTx(tx, in.DeliveryID, "")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyFailure commits the failure outcome atomically: the ledger row turns
// failed and the request's payment status follows, leaving the main status
// untouched so the request stays retryable.
func (r *gormRepository) ApplyFailure(ctx context.Context, in FailureInput) (*ApplyResult, error) {
	result := &ApplyResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.DocumentRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, in.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", lifecycle.ErrNotFound, in.RequestID)
			}
			return err
		}

		txn, err := lockLatestTransaction(tx, in.RequestID)
		if err != nil {
			return err
		}

		if txn.IsTerminal() {
			result.AlreadyApplied = true
			result.Transaction = txn
			result.Request = &req
			return markDeliveryProcessedTx(tx, in.DeliveryID, "outcome already applied")
		}

		now := time.Now()
		if err := settleTransactionTx(tx, txn, models.TransactionFailed, "", now, in.Raw); err != nil {
			return err
		}

		if req.PaymentStatus == models.PaymentStatusPending {
			updated, err := r.store.MarkPaymentOutcomeTx(tx, in.RequestID, models.PaymentStatusFailed, nil)
			if err != nil {
				return err
			}
			result.Request = updated
		} else {
			result.Unapplied = true
			result.Request = &req
			result.Note = fmt.Sprintf("payment failed but request payment status is %s", req.PaymentStatus)
		}

		result.Transaction = txn
		return markDeliveryProcessedTx(tx, in.DeliveryID, result.Note)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// InitiateTransaction creates a pending ledger row for an approved request
// and cycles the request's payment status to pending.
func (r *gormRepository) InitiateTransaction(ctx context.Context, requestID uint, amount decimal.Decimal, currency string) (*models.PaymentTransaction, error) {
	var txn *models.PaymentTransaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := r.store.MarkPaymentOutcomeTx(tx, requestID, models.PaymentStatusPending, nil)
		if err != nil {
			return err
		}
		if req.Status != models.StatusApproved {
			return fmt.Errorf("%w: status %s (request %d)", ErrNotPayable, req.Status, requestID)
		}

		txn = &models.PaymentTransaction{
			RequestID: requestID,
			Amount:    amount,
			Currency:  currency,
			Status:    models.TransactionPending,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// GenerateReceipt creates (or returns) the receipt for a succeeded
// transaction. Safe to call concurrently with webhook processing; both
// callers observe the same single row.
func (r *gormRepository) GenerateReceipt(ctx context.Context, transactionID uint) (*models.Receipt, error) {
	var receipt *models.Receipt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txn models.PaymentTransaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&txn, transactionID).Error; err != nil {
			return err
		}
		if txn.Status != models.TransactionSucceeded {
			return fmt.Errorf("%w: transaction %d is %s", ErrNotSucceeded, transactionID, txn.Status)
		}

		var req models.DocumentRequest
		if err := tx.First(&req, txn.RequestID).Error; err != nil {
			return err
		}

		issuedAt := time.Now()
		if txn.CompletedAt != nil {
			issuedAt = *txn.CompletedAt
		}
		generated, err := generateReceiptTx(tx, &txn, &req, beneficiaryNameTx(tx, &req), issuedAt)
		if err != nil {
			return err
		}
		receipt = generated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func lockLatestTransaction(tx *gorm.DB, requestID uint) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("request_id = ?", requestID).
		Order("created_at DESC, id DESC").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: request %d", ErrNoTransaction, requestID)
		}
		return nil, err
	}
	return &txn, nil
}

func settleTransactionTx(tx *gorm.DB, txn *models.PaymentTransaction, status, providerTxID string, completedAt time.Time, raw []byte) error {
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": &completedAt,
		"raw_payload":  string(raw),
	}
	if providerTxID != "" {
		updates["external_tx_id"] = providerTxID
	}
	if err := tx.Model(txn).Updates(updates).Error; err != nil {
		return err
	}
	txn.Status = status
	txn.CompletedAt = &completedAt
	txn.RawPayload = string(raw)
	if providerTxID != "" {
		txn.ExternalTxID = &providerTxID
	}
	return nil
}

func beneficiaryNameTx(tx *gorm.DB, req *models.DocumentRequest) string {
	if req.IdentityMode == models.IdentityThirdParty {
		return req.BeneficiaryFirstName + " " + req.BeneficiaryLastName
	}
	var account models.Account
	if err := tx.First(&account, req.AccountID).Error; err == nil {
		return account.FullName()
	}
	return fmt.Sprintf("account %d", req.AccountID)
}
