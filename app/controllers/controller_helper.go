package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/citydesk/citydesk/app/models"
)

// parseIDParam reads a positive numeric :id path parameter.
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id parameter")
	}
	return uint(id), nil
}

// actorFor renders an account as a status-history actor.
func actorFor(account *models.Account) string {
	return strconv.FormatUint(uint64(account.ID), 10)
}

// formatTimePtr formats an optional timestamp as RFC3339 UTC, or nil.
func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseDateOnly parses a YYYY-MM-DD value.
func parseDateOnly(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}
