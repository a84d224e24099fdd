package repository

import (
	"github.com/citydesk/citydesk/app/models"
	"gorm.io/gorm"
)

// receiptRepository implements the ReceiptRepository interface
type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a new receipt repository instance
func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) GetByTransactionID(transactionID uint) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.db.Where("transaction_id = ?", transactionID).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *receiptRepository) GetByNumber(number string) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.db.Where("receipt_number = ?", number).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *receiptRepository) ListByRequest(requestID uint) ([]models.Receipt, error) {
	var receipts []models.Receipt
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&receipts).Error
	return receipts, err
}
