package payment

import (
	"fmt"
	"time"

	"github.com/citydesk/citydesk/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReceiptNumber derives a human-readable receipt number from the transaction
// id and a coarse time component. Determinism plus transaction-id uniqueness
// guarantees number uniqueness without a sequence service.
func ReceiptNumber(transactionID uint, at time.Time) string {
	return fmt.Sprintf("RCPT-%s-%08d", at.UTC().Format("200601"), transactionID)
}

// buildReceipt copies the monetary and descriptive fields at generation time.
func buildReceipt(txn *models.PaymentTransaction, req *models.DocumentRequest, beneficiaryName string, issuedAt time.Time) *models.Receipt {
	return &models.Receipt{
		TransactionID:   txn.ID,
		RequestID:       req.ID,
		ReceiptNumber:   ReceiptNumber(txn.ID, issuedAt),
		DocumentType:    req.DocumentType,
		BeneficiaryName: beneficiaryName,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		IssuedAt:        issuedAt,
	}
}

// generateReceiptTx creates the receipt for a successful transaction inside
// the caller's transaction, idempotently: if one already exists it is
// returned unchanged. The unique constraint on transaction_id backstops the
// race between a webhook redelivery and a concurrent manual reconciliation;
// a conflicting insert is absorbed and the surviving row re-read.
func generateReceiptTx(tx *gorm.DB, txn *models.PaymentTransaction, req *models.DocumentRequest, beneficiaryName string, issuedAt time.Time) (*models.Receipt, error) {
	receipt := buildReceipt(txn, req, beneficiaryName, issuedAt)

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(receipt)
	if res.Error != nil {
		return nil, res.Error
	}

	var stored models.Receipt
	if err := tx.Where("transaction_id = ?", txn.ID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}
