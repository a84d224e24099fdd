package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/citydesk/citydesk/app/models"
	"github.com/citydesk/citydesk/internal/pkg/middleware"
)

type adminTransitionInput struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

// HandleAdminTransitionRequest drives a status transition as the acting admin.
func HandleAdminTransitionRequest(c *fiber.Ctx) error {
	account := middleware.AccountFromContext(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid request id")
	}

	var input adminTransitionInput
	if err := c.BodyParser(&input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "Request body could not be parsed")
	}
	if err := inputValidator.Struct(input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	updated, err := lifecycleStore.TransitionStatus(id, strings.TrimSpace(input.Status), actorFor(account), strings.TrimSpace(input.Reason))
	if err != nil {
		return transitionError(c, err)
	}
	return c.JSON(updated)
}

// HandleAdminListRequests lists requests in a given status, oldest first.
func HandleAdminListRequests(c *fiber.Ctx) error {
	status := strings.TrimSpace(c.Query("status", models.StatusPending))
	reqs, err := requestRepo.ListByStatus(status, c.QueryInt("offset", 0), c.QueryInt("limit", 50))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Listing failed")
	}
	return c.JSON(fiber.Map{"requests": reqs})
}

// HandleAdminRequestHistory returns the full status audit trail of a request.
func HandleAdminRequestHistory(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid request id")
	}
	entries, err := requestRepo.HistoryByRequest(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "History lookup failed")
	}
	return c.JSON(fiber.Map{"history": entries})
}

// HandleAdminRequestDeliveries returns the webhook deliveries recorded for a
// request, for audit tooling.
func HandleAdminRequestDeliveries(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid request id")
	}
	deliveries, err := paymentRepo.DeliveriesByRequest(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Delivery lookup failed")
	}
	return c.JSON(fiber.Map{"deliveries": deliveries})
}

// HandleAdminHistoryRange returns status history rows within a time range,
// for audit tooling. Bounds are RFC3339; the upper bound is exclusive.
func HandleAdminHistoryRange(c *fiber.Ctx) error {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_range", "from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_range", "to must be RFC3339")
	}
	entries, err := requestRepo.HistoryByTimeRange(from, to)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "History lookup failed")
	}
	return c.JSON(fiber.Map{"history": entries})
}

// HandleAdminGetTransaction returns one ledger row together with its receipt,
// if one has been generated.
func HandleAdminGetTransaction(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid transaction id")
	}

	txn, err := paymentRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Transaction not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Transaction lookup failed")
	}

	var receipt *models.Receipt
	if r, err := receiptRepo.GetByTransactionID(id); err == nil {
		receipt = r
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Receipt lookup failed")
	}

	return c.JSON(fiber.Map{"transaction": txn, "receipt": receipt})
}

// HandleAdminGetReceiptByNumber resolves a receipt by its printed number.
func HandleAdminGetReceiptByNumber(c *fiber.Ctx) error {
	number := strings.TrimSpace(c.Params("number"))
	if number == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_number", "Invalid receipt number")
	}

	receipt, err := receiptRepo.GetByNumber(number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Receipt not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Receipt lookup failed")
	}
	return c.JSON(receipt)
}

// HandleAdminGenerateReceipt is the manual reconciliation entry point: it
// (re-)generates the receipt for a succeeded transaction, idempotently.
func HandleAdminGenerateReceipt(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid transaction id")
	}

	receipt, err := paymentService.GenerateReceipt(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Transaction not found")
		}
		return jsonError(c, fiber.StatusUnprocessableEntity, "not_generatable", err.Error())
	}
	return c.JSON(receipt)
}
