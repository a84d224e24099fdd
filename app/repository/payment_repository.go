package repository

import (
	"time"

	"github.com/citydesk/citydesk/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByID(id uint) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := r.db.First(&txn, id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *paymentRepository) LatestByRequest(requestID uint) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at DESC, id DESC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *paymentRepository) ListByRequest(requestID uint) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&txns).Error
	return txns, err
}

func (r *paymentRepository) DeliveriesByRequest(requestID uint) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&deliveries).Error
	return deliveries, err
}

func (r *paymentRepository) DeliveriesByTimeRange(from, to time.Time) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := r.db.Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC, id ASC").
		Find(&deliveries).Error
	return deliveries, err
}
