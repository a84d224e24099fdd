package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Repositories bundles all repository implementations.
type Repositories struct {
	Account AccountRepository
	Request RequestRepository
	Payment PaymentRepository
	Receipt ReceiptRepository
}

// NewRepositories creates all repositories backed by the given DB handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account: NewAccountRepository(db),
		Request: NewRequestRepository(db),
		Payment: NewPaymentRepository(db),
		Receipt: NewReceiptRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetAccountRepository returns the account repository instance
func (f *Factory) GetAccountRepository() AccountRepository {
	return f.GetRepositories().Account
}

// GetRequestRepository returns the document request repository instance
func (f *Factory) GetRequestRepository() RequestRepository {
	return f.GetRepositories().Request
}

// GetPaymentRepository returns the payment repository instance
func (f *Factory) GetPaymentRepository() PaymentRepository {
	return f.GetRepositories().Payment
}

// GetReceiptRepository returns the receipt repository instance
func (f *Factory) GetReceiptRepository() ReceiptRepository {
	return f.GetRepositories().Receipt
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory
func GetGlobalFactory() *Factory {
	return globalFactory
}
