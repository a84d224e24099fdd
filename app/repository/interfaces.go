package repository

import (
	"time"

	"github.com/citydesk/citydesk/app/models"
)

// AccountRepository defines the interface for account-related database operations
type AccountRepository interface {
	Create(account *models.Account) error
	GetByID(id uint) (*models.Account, error)
	GetByEmail(email string) (*models.Account, error)
	GetByAPIKeyHash(hash string) (*models.Account, error)
	Update(account *models.Account) error
	TouchAPIKeyUsage(id uint, usedAt time.Time) error
}

// RequestRepository defines the interface for document request operations.
// CreateWithHistory inserts the request and its initial history entry in one
// atomic unit; all later status changes go through the lifecycle store.
type RequestRepository interface {
	CreateWithHistory(req *models.DocumentRequest, entry *models.StatusHistoryEntry) error
	GetByID(id uint) (*models.DocumentRequest, error)
	ListByAccount(accountID uint, offset, limit int) ([]models.DocumentRequest, error)
	ListByStatus(status string, offset, limit int) ([]models.DocumentRequest, error)
	FindLatestCounting(identity models.RequestIdentity, documentType string, since time.Time) (*models.DocumentRequest, error)
	HistoryByRequest(requestID uint) ([]models.StatusHistoryEntry, error)
	HistoryByTimeRange(from, to time.Time) ([]models.StatusHistoryEntry, error)
}

// PaymentRepository defines the interface for ledger queries used outside the
// webhook processor (which owns its own transactional repository).
type PaymentRepository interface {
	GetByID(id uint) (*models.PaymentTransaction, error)
	LatestByRequest(requestID uint) (*models.PaymentTransaction, error)
	ListByRequest(requestID uint) ([]models.PaymentTransaction, error)
	DeliveriesByRequest(requestID uint) ([]models.WebhookDelivery, error)
	DeliveriesByTimeRange(from, to time.Time) ([]models.WebhookDelivery, error)
}

// ReceiptRepository defines read access to generated receipts.
type ReceiptRepository interface {
	GetByTransactionID(transactionID uint) (*models.Receipt, error)
	GetByNumber(number string) (*models.Receipt, error)
	ListByRequest(requestID uint) ([]models.Receipt, error)
}
