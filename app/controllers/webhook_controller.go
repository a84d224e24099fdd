package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/citydesk/citydesk/internal/pkg/database"
	"github.com/citydesk/citydesk/internal/pkg/env"
	"github.com/citydesk/citydesk/internal/pkg/notify"
	"github.com/citydesk/citydesk/internal/pkg/payment"
)

var webhookProcessor *payment.Processor

// InitializeWebhookController wires the webhook processor. The signature
// secret is optional but recommended; without it deliveries are accepted
// unverified.
func InitializeWebhookController() {
	secret := env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")
	repo := payment.NewRepository(database.GetDB())
	webhookProcessor = payment.NewProcessor(repo, secret, notify.GetDispatcher())
}

// HandlePaymentWebhook consumes provider notifications. The response is
// always HTTP 200 with {success, message} so permanently-failing deliveries
// never trigger provider retry storms; internal failures are logged and left
// retryable through the unprocessed delivery row.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("X-Payment-Signature"))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result := webhookProcessor.HandleDelivery(ctx, rawBody, signature)
	return c.Status(fiber.StatusOK).JSON(result)
}
