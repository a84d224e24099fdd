package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleCitizen = "citizen"
	RoleAdmin   = "admin"

	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
	AccountStatusDisabled = "disabled"
)

const apiKeyPrefixLen = 8

// Account is a registered submitter (citizen or administrator). Registration
// and credential management live outside this service; the model carries just
// enough to authenticate API calls and format human-readable messaging.
type Account struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	FirstName        string         `gorm:"type:varchar(150)" json:"first_name" validate:"required,min=1,max=150"`
	LastName         string         `gorm:"type:varchar(150)" json:"last_name" validate:"required,min=1,max=150"`
	Email            string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password         string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role             string         `gorm:"type:varchar(50);default:'citizen'" json:"role" validate:"oneof=citizen admin"`
	Status           string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	APIKeyHash       string         `gorm:"type:varchar(64);default:'';index" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(12);default:''" json:"-"`
	APIKeyCreatedAt  *time.Time     `gorm:"type:timestamp;default:null" json:"-"`
	APIKeyLastUsedAt *time.Time     `gorm:"type:timestamp;default:null" json:"-"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Account) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// IsActive reports whether the account may use the API.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// FullName formats the account holder name for messaging.
func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPassword verifies the given password against the stored hash.
func (a *Account) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)) == nil
}

// SetPassword hashes and sets a new password.
func (a *Account) SetPassword(password string) error {
	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}
	a.Password = hashed
	return nil
}

// HashAPIKey returns the storable hash of a plaintext API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// IssueAPIKey generates a fresh API key, stores its hash and prefix on the
// account and returns the plaintext key exactly once.
func (a *Account) IssueAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	key := "cd_" + hex.EncodeToString(b)
	a.APIKeyHash = HashAPIKey(key)
	a.APIKeyPrefix = key[:apiKeyPrefixLen]
	now := time.Now()
	a.APIKeyCreatedAt = &now
	a.APIKeyLastUsedAt = nil
	return key, nil
}

// HasActiveAPIKey reports whether the account currently holds an API key.
func (a *Account) HasActiveAPIKey() bool {
	return a.APIKeyHash != ""
}
