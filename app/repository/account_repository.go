package repository

import (
	"strings"
	"time"

	"github.com/citydesk/citydesk/app/models"
	"gorm.io/gorm"
)

// accountRepository implements the AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *models.Account) error {
	return r.db.Create(account).Error
}

func (r *accountRepository) GetByID(id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByEmail(email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.Where("email = ?", strings.TrimSpace(email)).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByAPIKeyHash resolves an API key hash to its account.
func (r *accountRepository) GetByAPIKeyHash(hash string) (*models.Account, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var account models.Account
	if err := r.db.Where("api_key_hash = ?", trimmed).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Update(account *models.Account) error {
	return r.db.Save(account).Error
}

// TouchAPIKeyUsage refreshes the last-used timestamp best-effort.
func (r *accountRepository) TouchAPIKeyUsage(id uint, usedAt time.Time) error {
	return r.db.Model(&models.Account{}).
		Where("id = ?", id).
		Update("api_key_last_used_at", usedAt).Error
}
