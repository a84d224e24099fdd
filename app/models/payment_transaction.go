package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment transaction (ledger) statuses.
const (
	TransactionPending   = "pending"
	TransactionSucceeded = "succeeded"
	TransactionFailed    = "failed"
)

// PaymentTransaction is one attempt to pay for a document request. A request
// may accumulate several failed attempts; the webhook processor guarantees at
// most one of them ever reaches succeeded.
type PaymentTransaction struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	RequestID    uint            `gorm:"not null;index" json:"request_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency     string          `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	ExternalTxID *string         `gorm:"type:varchar(191);default:null;index" json:"external_tx_id,omitempty"`
	Status       string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CompletedAt  *time.Time      `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	RawPayload   string          `gorm:"type:longtext" json:"-"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the transaction reached a final state.
func (t *PaymentTransaction) IsTerminal() bool {
	return t.Status == TransactionSucceeded || t.Status == TransactionFailed
}
