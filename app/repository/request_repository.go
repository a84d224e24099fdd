package repository

import (
	"strings"
	"time"

	"github.com/citydesk/citydesk/app/models"
	"gorm.io/gorm"
)

// requestRepository implements the RequestRepository interface
type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new document request repository instance
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

// CreateWithHistory inserts the request and its initial history entry atomically.
func (r *requestRepository) CreateWithHistory(req *models.DocumentRequest, entry *models.StatusHistoryEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		entry.RequestID = req.ID
		return tx.Create(entry).Error
	})
}

func (r *requestRepository) GetByID(id uint) (*models.DocumentRequest, error) {
	var req models.DocumentRequest
	if err := r.db.First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) ListByAccount(accountID uint, offset, limit int) ([]models.DocumentRequest, error) {
	var reqs []models.DocumentRequest
	err := r.db.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&reqs).Error
	return reqs, err
}

func (r *requestRepository) ListByStatus(status string, offset, limit int) ([]models.DocumentRequest, error) {
	var reqs []models.DocumentRequest
	err := r.db.Where("status = ?", status).
		Order("created_at ASC").
		Offset(offset).Limit(limit).
		Find(&reqs).Error
	return reqs, err
}

// FindLatestCounting returns the most recent request for the given identity
// and document type created strictly after since whose status occupies the
// re-request window. The strict comparison makes a request created exactly
// one window ago non-blocking. Third-party identities match on the
// beneficiary tuple across all accounts; names compare case-insensitively.
func (r *requestRepository) FindLatestCounting(identity models.RequestIdentity, documentType string, since time.Time) (*models.DocumentRequest, error) {
	q := r.db.Where("document_type = ?", documentType).
		Where("created_at > ?", since).
		Where("status IN ?", models.CountingStatuses())

	if identity.IsThirdParty() {
		q = q.Where("identity_mode = ?", models.IdentityThirdParty).
			Where("LOWER(beneficiary_first_name) = ?", strings.ToLower(identity.FirstName)).
			Where("LOWER(beneficiary_last_name) = ?", strings.ToLower(identity.LastName)).
			Where("beneficiary_birth_date = ?", identity.BirthDate.Format("2006-01-02"))
	} else {
		q = q.Where("identity_mode = ?", models.IdentitySelf).
			Where("account_id = ?", identity.AccountID)
	}

	var req models.DocumentRequest
	if err := q.Order("created_at DESC").First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) HistoryByRequest(requestID uint) ([]models.StatusHistoryEntry, error) {
	var entries []models.StatusHistoryEntry
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *requestRepository) HistoryByTimeRange(from, to time.Time) ([]models.StatusHistoryEntry, error) {
	var entries []models.StatusHistoryEntry
	err := r.db.Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
