package models

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidIdentity marks a structurally invalid request identity.
var ErrInvalidIdentity = errors.New("invalid request identity")

// Document request statuses.
const (
	StatusPending            = "pending"
	StatusUnderReview        = "under_review"
	StatusAdditionalInfo     = "additional_info_required"
	StatusApproved           = "approved"
	StatusProcessing         = "processing"
	StatusReadyForPickup     = "ready_for_pickup"
	StatusCompleted          = "completed"
	StatusCancelled          = "cancelled"
	StatusRejected           = "rejected"
)

// Payment statuses on a document request.
const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Identity modes.
const (
	IdentitySelf       = "self"
	IdentityThirdParty = "third_party"
)

// Known document types. Windows and fees for these live in configuration,
// not in the database, so unknown types still work with defaults.
const (
	DocumentTypeResidencyCertificate = "residency_certificate"
	DocumentTypeTaxCertificate       = "tax_certificate"
	DocumentTypeFamilyStatus         = "family_status_certificate"
)

// DocumentRequest is one request for one document type on behalf of one
// identity. Status and payment status are only mutated through the lifecycle
// store; the identity fields are immutable after creation.
type DocumentRequest struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	AccountID            uint       `gorm:"not null;index" json:"account_id"`
	DocumentType         string     `gorm:"type:varchar(100);not null;index" json:"document_type" validate:"required,max=100"`
	IdentityMode         string     `gorm:"type:varchar(20);not null;default:'self';index" json:"identity_mode" validate:"oneof=self third_party"`
	BeneficiaryFirstName string     `gorm:"type:varchar(150);default:''" json:"beneficiary_first_name,omitempty" validate:"max=150"`
	BeneficiaryLastName  string     `gorm:"type:varchar(150);default:''" json:"beneficiary_last_name,omitempty" validate:"max=150"`
	BeneficiaryBirthDate *time.Time `gorm:"type:date;default:null" json:"beneficiary_birth_date,omitempty"`
	Status               string     `gorm:"type:varchar(50);not null;default:'pending';index" json:"status"`
	PaymentStatus        string     `gorm:"type:varchar(20);not null;default:'unpaid';index" json:"payment_status"`
	PaidAt               *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *DocumentRequest) Validate() error {
	v := validator.New()
	if err := v.Struct(r); err != nil {
		return err
	}
	return r.Identity().Validate()
}

// Identity returns the principal the request was filed on behalf of.
func (r *DocumentRequest) Identity() RequestIdentity {
	id := RequestIdentity{Mode: r.IdentityMode, AccountID: r.AccountID}
	if r.IdentityMode == IdentityThirdParty {
		id.FirstName = r.BeneficiaryFirstName
		id.LastName = r.BeneficiaryLastName
		if r.BeneficiaryBirthDate != nil {
			id.BirthDate = *r.BeneficiaryBirthDate
		}
	}
	return id
}

// RequestIdentity is the self/third-party principal of a request. A self
// identity is keyed by the submitting account; a third-party identity is the
// (first name, last name, birth date) tuple, independent of any account.
type RequestIdentity struct {
	Mode      string
	AccountID uint
	FirstName string
	LastName  string
	BirthDate time.Time
}

func (i RequestIdentity) IsThirdParty() bool {
	return i.Mode == IdentityThirdParty
}

// Validate checks structural integrity of the identity tuple.
func (i RequestIdentity) Validate() error {
	if i.Mode != IdentitySelf && i.Mode != IdentityThirdParty {
		return ErrInvalidIdentity
	}
	if i.Mode == IdentitySelf && i.AccountID == 0 {
		return ErrInvalidIdentity
	}
	if i.Mode == IdentityThirdParty {
		if strings.TrimSpace(i.FirstName) == "" || strings.TrimSpace(i.LastName) == "" || i.BirthDate.IsZero() {
			return ErrInvalidIdentity
		}
	}
	return nil
}

// Matches reports whether two identities denote the same principal. Name
// comparison is case-insensitive; birth dates compare by calendar day.
func (i RequestIdentity) Matches(other RequestIdentity) bool {
	if i.Mode != other.Mode {
		return false
	}
	if i.Mode == IdentitySelf {
		return i.AccountID == other.AccountID
	}
	return strings.EqualFold(i.FirstName, other.FirstName) &&
		strings.EqualFold(i.LastName, other.LastName) &&
		sameDay(i.BirthDate, other.BirthDate)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsCountingStatus reports whether a status occupies the re-request window.
// Cancelled and rejected requests never block a future request.
func IsCountingStatus(status string) bool {
	switch status {
	case StatusCancelled, StatusRejected:
		return false
	default:
		return true
	}
}

// CountingStatuses lists every status that occupies the re-request window.
func CountingStatuses() []string {
	return []string{
		StatusPending,
		StatusUnderReview,
		StatusAdditionalInfo,
		StatusApproved,
		StatusProcessing,
		StatusReadyForPickup,
		StatusCompleted,
	}
}
