package payment

import (
	"github.com/citydesk/citydesk/app/models"
	"github.com/shopspring/decimal"
)

// FeeSchedule maps document types to the fee charged at payment initiation.
// Like the eligibility windows it is passed in explicitly, not read from
// ambient state.
type FeeSchedule struct {
	Fees       map[string]decimal.Decimal
	DefaultFee decimal.Decimal
}

// DefaultFeeSchedule returns the production fee schedule.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Fees: map[string]decimal.Decimal{
			models.DocumentTypeResidencyCertificate: decimal.RequireFromString("12.50"),
			models.DocumentTypeTaxCertificate:       decimal.RequireFromString("25.00"),
			models.DocumentTypeFamilyStatus:         decimal.RequireFromString("15.00"),
		},
		DefaultFee: decimal.RequireFromString("10.00"),
	}
}

// FeeFor returns the fee for a document type.
func (f FeeSchedule) FeeFor(documentType string) decimal.Decimal {
	if fee, ok := f.Fees[documentType]; ok {
		return fee
	}
	return f.DefaultFee
}
