package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is an immutable snapshot generated exactly once per successful
// payment transaction. Monetary and descriptive fields are copied at
// generation time and never re-derived, so historical receipts stay stable
// even if upstream records change.
type Receipt struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	TransactionID   uint            `gorm:"not null;uniqueIndex:ux_receipts_transaction" json:"transaction_id"`
	RequestID       uint            `gorm:"not null;index" json:"request_id"`
	ReceiptNumber   string          `gorm:"type:varchar(50);not null;uniqueIndex:ux_receipts_number" json:"receipt_number"`
	DocumentType    string          `gorm:"type:varchar(100);not null" json:"document_type"`
	BeneficiaryName string          `gorm:"type:varchar(300);not null" json:"beneficiary_name"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	IssuedAt        time.Time       `gorm:"type:timestamp;not null" json:"issued_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
