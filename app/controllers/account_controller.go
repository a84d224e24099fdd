package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/citydesk/citydesk/app/models"
	"github.com/citydesk/citydesk/app/repository"
)

var accountRepo repository.AccountRepository

// InitializeAccountController wires the account admin handlers.
func InitializeAccountController() {
	accountRepo = repository.GetGlobalFactory().GetAccountRepository()
}

type createAccountInput struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=150"`
	LastName  string `json:"last_name" validate:"required,min=1,max=150"`
	Email     string `json:"email" validate:"required,email,min=5,max=200"`
	Password  string `json:"password" validate:"required,min=6"`
	Role      string `json:"role" validate:"omitempty,oneof=citizen admin"`
}

// HandleAdminCreateAccount registers an account and issues its API key. The
// plaintext key appears in this response exactly once; only the hash is stored.
func HandleAdminCreateAccount(c *fiber.Ctx) error {
	var input createAccountInput
	if err := c.BodyParser(&input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "Request body could not be parsed")
	}
	if err := inputValidator.Struct(input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := accountRepo.GetByEmail(email); err == nil {
		return jsonError(c, fiber.StatusConflict, "email_taken", "An account with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account lookup failed")
	}

	role := input.Role
	if role == "" {
		role = models.RoleCitizen
	}
	account := &models.Account{
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     email,
		Role:      role,
		Status:    models.AccountStatusActive,
	}
	if err := account.SetPassword(input.Password); err != nil {
		log.Errorf("password hashing failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account could not be created")
	}
	key, err := account.IssueAPIKey()
	if err != nil {
		log.Errorf("api key generation failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account could not be created")
	}
	if err := accountRepo.Create(account); err != nil {
		log.Errorf("account creation failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account could not be created")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"account": account,
		"api_key": key,
	})
}

// HandleAdminRotateAPIKey issues a fresh API key for an account, invalidating
// the previous one.
func HandleAdminRotateAPIKey(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid account id")
	}

	account, err := accountRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Account not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Account lookup failed")
	}

	key, err := account.IssueAPIKey()
	if err != nil {
		log.Errorf("api key generation failed for account %d: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "API key could not be issued")
	}
	if err := accountRepo.Update(account); err != nil {
		log.Errorf("api key rotation failed for account %d: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "API key could not be issued")
	}

	return c.JSON(fiber.Map{
		"account_id":     account.ID,
		"api_key":        key,
		"api_key_prefix": account.APIKeyPrefix,
	})
}
