package router

import (
	"github.com/citydesk/citydesk/app/controllers"
	"github.com/citydesk/citydesk/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

// webhookPath is exempt from rate limiting: the provider redelivers in bursts
// from a fixed IP and every delivery must reach the always-200 handler.
const webhookPath = "/api/v1/payments/webhook"

func apiLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == webhookPath
		},
	})
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	controllers.InitializeRequestController()
	controllers.InitializeWebhookController()
	controllers.InitializeAccountController()

	api := app.Group("/api", apiLimiter())
	v1 := api.Group("/v1")

	// Provider callback: unauthenticated at the HTTP layer, authenticated by
	// the HMAC signature inside the processor.
	v1.Post("/payments/webhook", controllers.HandlePaymentWebhook)

	authed := v1.Group("", middleware.APIKeyAuthMiddleware())
	authed.Post("/requests", controllers.HandleCreateRequest)
	authed.Get("/requests", controllers.HandleListOwnRequests)
	authed.Get("/requests/:id", controllers.HandleGetRequest)
	authed.Post("/requests/:id/cancel", controllers.HandleCancelRequest)
	authed.Post("/requests/:id/pay", controllers.HandleInitiatePayment)
	authed.Get("/requests/:id/payment", controllers.HandleGetLatestPayment)
	authed.Get("/requests/:id/transactions", controllers.HandleListRequestTransactions)
	authed.Get("/requests/:id/receipts", controllers.HandleGetRequestReceipts)

	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.Get("/requests", controllers.HandleAdminListRequests)
	admin.Post("/requests/:id/status", controllers.HandleAdminTransitionRequest)
	admin.Get("/requests/:id/history", controllers.HandleAdminRequestHistory)
	admin.Get("/requests/:id/deliveries", controllers.HandleAdminRequestDeliveries)
	admin.Get("/history", controllers.HandleAdminHistoryRange)
	admin.Get("/transactions/:id", controllers.HandleAdminGetTransaction)
	admin.Post("/transactions/:id/receipt", controllers.HandleAdminGenerateReceipt)
	admin.Get("/receipts/:number", controllers.HandleAdminGetReceiptByNumber)
	admin.Post("/accounts", controllers.HandleAdminCreateAccount)
	admin.Post("/accounts/:id/api-key", controllers.HandleAdminRotateAPIKey)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
