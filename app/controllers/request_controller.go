package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/citydesk/citydesk/app/models"
	"github.com/citydesk/citydesk/app/repository"
	"github.com/citydesk/citydesk/internal/pkg/database"
	"github.com/citydesk/citydesk/internal/pkg/eligibility"
	"github.com/citydesk/citydesk/internal/pkg/lifecycle"
	"github.com/citydesk/citydesk/internal/pkg/middleware"
	"github.com/citydesk/citydesk/internal/pkg/payment"
)

var (
	requestRepo       repository.RequestRepository
	paymentRepo       repository.PaymentRepository
	receiptRepo       repository.ReceiptRepository
	eligibilityEngine *eligibility.Engine
	lifecycleStore    *lifecycle.Store
	paymentService    payment.Repository
	feeSchedule       payment.FeeSchedule
	inputValidator    = validator.New()
)

// InitializeRequestController wires the request handlers to the repositories
// and domain services.
func InitializeRequestController() {
	factory := repository.GetGlobalFactory()
	requestRepo = factory.GetRequestRepository()
	paymentRepo = factory.GetPaymentRepository()
	receiptRepo = factory.GetReceiptRepository()
	eligibilityEngine = eligibility.NewEngine(requestRepo, eligibility.DefaultConfig())
	lifecycleStore = lifecycle.NewStore(database.GetDB())
	paymentService = payment.NewRepository(database.GetDB())
	feeSchedule = payment.DefaultFeeSchedule()
}

type createRequestInput struct {
	DocumentType         string `json:"document_type" validate:"required,max=100"`
	IdentityMode         string `json:"identity_mode" validate:"required,oneof=self third_party"`
	BeneficiaryFirstName string `json:"beneficiary_first_name" validate:"max=150"`
	BeneficiaryLastName  string `json:"beneficiary_last_name" validate:"max=150"`
	BeneficiaryBirthDate string `json:"beneficiary_birth_date"`
}

// HandleCreateRequest runs the eligibility gate and creates a new document
// request in pending.
func HandleCreateRequest(c *fiber.Ctx) error {
	account := middleware.AccountFromContext(c)

	var input createRequestInput
	if err := c.BodyParser(&input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "Request body could not be parsed")
	}
	if err := inputValidator.Struct(input); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	identity := models.RequestIdentity{Mode: input.IdentityMode, AccountID: account.ID}
	var birthDate *time.Time
	if input.IdentityMode == models.IdentityThirdParty {
		parsed, err := parseDateOnly(strings.TrimSpace(input.BeneficiaryBirthDate))
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "validation_failed", "beneficiary_birth_date must be YYYY-MM-DD")
		}
		birthDate = &parsed
		identity.FirstName = strings.TrimSpace(input.BeneficiaryFirstName)
		identity.LastName = strings.TrimSpace(input.BeneficiaryLastName)
		identity.BirthDate = parsed
	}
	if err := identity.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", "beneficiary first name, last name and birth date are required for third-party requests")
	}

	result, err := eligibilityEngine.Check(identity, input.DocumentType, time.Now())
	if err != nil {
		log.Errorf("eligibility check failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Eligibility check failed")
	}
	if !result.Allowed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":               "not_eligible",
			"message":             "A recent request for this document already occupies the re-request window",
			"next_allowed_at":     formatTimePtr(result.NextAllowedAt),
			"blocking_request_id": result.BlockingRequestID,
		})
	}

	// The check and the insert are deliberately not one transaction: two
	// concurrent submissions for the same identity can both pass. Known,
	// accepted gap; the window math self-corrects on the next check.
	req := &models.DocumentRequest{
		AccountID:            account.ID,
		DocumentType:         input.DocumentType,
		IdentityMode:         input.IdentityMode,
		BeneficiaryFirstName: identity.FirstName,
		BeneficiaryLastName:  identity.LastName,
		BeneficiaryBirthDate: birthDate,
		Status:               models.StatusPending,
		PaymentStatus:        models.PaymentStatusUnpaid,
	}
	entry := &models.StatusHistoryEntry{
		OldStatus: models.StatusPending,
		NewStatus: models.StatusPending,
		Actor:     actorFor(account),
		Reason:    "request submitted",
	}
	if err := requestRepo.CreateWithHistory(req, entry); err != nil {
		log.Errorf("request creation failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Request could not be created")
	}

	return c.Status(fiber.StatusCreated).JSON(req)
}

// HandleGetRequest returns a request visible to its owner or an admin.
func HandleGetRequest(c *fiber.Ctx) error {
	account := middleware.AccountFromContext(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid request id")
	}

	req, err := requestRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Request not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Request lookup failed")
	}
	if req.AccountID != account.ID && !account.IsAdmin() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your request")
	}
	return c.JSON(req)
}

// HandleListOwnRequests returns the caller's requests, newest first.
func HandleListOwnRequests(c *fiber.Ctx) error {
	account := middleware.AccountFromContext(c)
	reqs, err := requestRepo.ListByAccount(account.ID, c.QueryInt("offset", 0), c.QueryInt("limit", 50))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Listing failed")
	}
	return c.JSON(fiber.Map{"requests": reqs})
}

type cancelRequestInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// HandleCancelRequest lets the submitter cancel while the request is still in
// an early status.
func HandleCancelRequest(c *fiber.Ctx) error {
	account := middleware.AccountFromContext(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid request id")
	}

	req, err := requestRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Request not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Request lookup failed")
	}
	if req.AccountID != account.ID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your request")
	}
	if !lifecycle.SubmitterCancellable(req.Status) {
		return jsonError(c, fiber.StatusUnprocessableEntity, "not_cancellable", "Request can no longer be cancelled")
	}

	var input cancelRequestInput
	_ = c.BodyParser(&input)
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "cancelled by submitter"
	}

	updated, err := lifecycleStore.TransitionStatus(id, models.StatusCancelled, actorFor(account), reason)
	if err != nil {
		return transitionError(c, err)
	}
	return c.JSON(updated)
}

// HandleInitiatePayment creates a pending ledger row for an approved request
// and returns the reference the provider will echo back in its webhook.
func HandleInitiatePayment(c *fiber.Ctx) error {
	account := middleware.AccountFromContext(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid request id")
	}

	req, err := requestRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Request not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Request lookup failed")
	}
	if req.AccountID != account.ID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your request")
	}

	txn, err := paymentService.InitiateTransaction(c.UserContext(), id, feeSchedule.FeeFor(req.DocumentType), "EUR")
	if err != nil {
		if errors.Is(err, payment.ErrNotPayable) || errors.Is(err, lifecycle.ErrInvalidPaymentOutcome) {
			return jsonError(c, fiber.StatusUnprocessableEntity, "not_payable", "Request is not awaiting payment")
		}
		log.Errorf("payment initiation failed for request %d: %v", id, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Payment could not be initiated")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"transaction_id": txn.ID,
		"reference":      payment.FormatReference(id),
		"amount":         txn.Amount,
		"currency":       txn.Currency,
	})
}

// HandleGetLatestPayment returns the most recent ledger row of a request so
// clients can poll the outcome after initiating payment.
func HandleGetLatestPayment(c *fiber.Ctx) error {
	account := middleware.AccountFromContext(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid request id")
	}

	req, err := requestRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Request not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Request lookup failed")
	}
	if req.AccountID != account.ID && !account.IsAdmin() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your request")
	}

	txn, err := paymentRepo.LatestByRequest(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "no_payment", "No payment transaction for this request")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Payment lookup failed")
	}
	return c.JSON(txn)
}

// HandleListRequestTransactions returns every payment attempt of a request,
// oldest first.
func HandleListRequestTransactions(c *fiber.Ctx) error {
	account := middleware.AccountFromContext(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid request id")
	}

	req, err := requestRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Request not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Request lookup failed")
	}
	if req.AccountID != account.ID && !account.IsAdmin() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your request")
	}

	txns, err := paymentRepo.ListByRequest(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Transaction lookup failed")
	}
	return c.JSON(fiber.Map{"transactions": txns})
}

// HandleGetRequestReceipts returns the receipts of a request.
func HandleGetRequestReceipts(c *fiber.Ctx) error {
	account := middleware.AccountFromContext(c)
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "Invalid request id")
	}

	req, err := requestRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Request not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Request lookup failed")
	}
	if req.AccountID != account.ID && !account.IsAdmin() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your request")
	}

	receipts, err := receiptRepo.ListByRequest(id)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Receipt lookup failed")
	}
	return c.JSON(fiber.Map{"receipts": receipts})
}

func transitionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, "not_found", "Request not found")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return jsonError(c, fiber.StatusUnprocessableEntity, "invalid_transition", err.Error())
	default:
		log.Errorf("status transition failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Transition failed")
	}
}
