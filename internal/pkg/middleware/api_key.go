package middleware

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/citydesk/citydesk/app/models"
	"github.com/citydesk/citydesk/app/repository"
	"github.com/citydesk/citydesk/internal/pkg/database"
)

// AccountLocalKey is the fiber locals key the authenticated account is
// stored under.
const AccountLocalKey = "account"

// APIKeyAuthMiddleware authenticates requests carrying an account API key header.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		db := database.GetDB()
		if db == nil {
			log.Print("api key middleware: database unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
		}

		hash := models.HashAPIKey(apiKey)
		repo := repository.GetGlobalFactory().GetAccountRepository()
		account, err := repo.GetByAPIKeyHash(hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if !account.IsActive() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Account inactive"})
		}

		// Refresh last-used timestamp best-effort.
		if err := repo.TouchAPIKeyUsage(account.ID, time.Now()); err != nil {
			log.Printf("failed to update api key usage timestamp for account %d: %v", account.ID, err)
		}

		c.Locals(AccountLocalKey, account)
		return c.Next()
	}
}

// RequireAdmin rejects requests whose authenticated account is not an admin.
// Must run after APIKeyAuthMiddleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := AccountFromContext(c)
		if account == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing account context"})
		}
		if !account.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Admin role required"})
		}
		return c.Next()
	}
}

// AccountFromContext returns the authenticated account, or nil.
func AccountFromContext(c *fiber.Ctx) *models.Account {
	account, _ := c.Locals(AccountLocalKey).(*models.Account)
	return account
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	if key := strings.TrimSpace(c.Get("X-API-Key")); key != "" {
		return key
	}
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
