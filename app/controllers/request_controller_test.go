package controllers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/citydesk/citydesk/app/models"
	"github.com/citydesk/citydesk/internal/pkg/middleware"
)

type fakeRequestRepo struct {
	byID map[uint]*models.DocumentRequest
}

func (f *fakeRequestRepo) CreateWithHistory(req *models.DocumentRequest, entry *models.StatusHistoryEntry) error {
	return nil
}

func (f *fakeRequestRepo) GetByID(id uint) (*models.DocumentRequest, error) {
	if r, ok := f.byID[id]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRequestRepo) ListByAccount(accountID uint, offset, limit int) ([]models.DocumentRequest, error) {
	return nil, nil
}

func (f *fakeRequestRepo) ListByStatus(status string, offset, limit int) ([]models.DocumentRequest, error) {
	return nil, nil
}

func (f *fakeRequestRepo) FindLatestCounting(identity models.RequestIdentity, documentType string, since time.Time) (*models.DocumentRequest, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRequestRepo) HistoryByRequest(requestID uint) ([]models.StatusHistoryEntry, error) {
	return nil, nil
}

func (f *fakeRequestRepo) HistoryByTimeRange(from, to time.Time) ([]models.StatusHistoryEntry, error) {
	return nil, nil
}

type fakeLedgerRepo struct {
	byRequest map[uint][]models.PaymentTransaction
	byID      map[uint]*models.PaymentTransaction
}

func (f *fakeLedgerRepo) GetByID(id uint) (*models.PaymentTransaction, error) {
	if t, ok := f.byID[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLedgerRepo) LatestByRequest(requestID uint) (*models.PaymentTransaction, error) {
	txns := f.byRequest[requestID]
	if len(txns) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &txns[len(txns)-1], nil
}

func (f *fakeLedgerRepo) ListByRequest(requestID uint) ([]models.PaymentTransaction, error) {
	return f.byRequest[requestID], nil
}

func (f *fakeLedgerRepo) DeliveriesByRequest(requestID uint) ([]models.WebhookDelivery, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) DeliveriesByTimeRange(from, to time.Time) ([]models.WebhookDelivery, error) {
	return nil, nil
}

type fakeReceiptLookupRepo struct {
	byTxn    map[uint]*models.Receipt
	byNumber map[string]*models.Receipt
}

func (f *fakeReceiptLookupRepo) GetByTransactionID(transactionID uint) (*models.Receipt, error) {
	if r, ok := f.byTxn[transactionID]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReceiptLookupRepo) GetByNumber(number string) (*models.Receipt, error) {
	if r, ok := f.byNumber[number]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReceiptLookupRepo) ListByRequest(requestID uint) ([]models.Receipt, error) {
	return nil, nil
}

func requestTestApp(account *models.Account) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.AccountLocalKey, account)
		return c.Next()
	})
	app.Get("/requests/:id/payment", HandleGetLatestPayment)
	app.Get("/requests/:id/transactions", HandleListRequestTransactions)
	return app
}

func TestHandleGetLatestPayment(t *testing.T) {
	requestRepo = &fakeRequestRepo{byID: map[uint]*models.DocumentRequest{
		4: {ID: 4, AccountID: 1, Status: models.StatusApproved, PaymentStatus: models.PaymentStatusPending},
	}}
	paymentRepo = &fakeLedgerRepo{byRequest: map[uint][]models.PaymentTransaction{
		4: {
			{ID: 1, RequestID: 4, Status: models.TransactionFailed, Amount: decimal.RequireFromString("12.50")},
			{ID: 2, RequestID: 4, Status: models.TransactionPending, Amount: decimal.RequireFromString("12.50")},
		},
	}}
	app := requestTestApp(&models.Account{ID: 1, Role: models.RoleCitizen})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/requests/4/payment", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(2), body["id"])
	assert.Equal(t, models.TransactionPending, body["status"])
}

func TestHandleGetLatestPaymentNoTransaction(t *testing.T) {
	requestRepo = &fakeRequestRepo{byID: map[uint]*models.DocumentRequest{
		4: {ID: 4, AccountID: 1, Status: models.StatusApproved},
	}}
	paymentRepo = &fakeLedgerRepo{byRequest: map[uint][]models.PaymentTransaction{}}
	app := requestTestApp(&models.Account{ID: 1})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/requests/4/payment", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandleListRequestTransactionsOwnership(t *testing.T) {
	requestRepo = &fakeRequestRepo{byID: map[uint]*models.DocumentRequest{
		4: {ID: 4, AccountID: 1, Status: models.StatusApproved},
	}}
	paymentRepo = &fakeLedgerRepo{byRequest: map[uint][]models.PaymentTransaction{
		4: {{ID: 1, RequestID: 4, Status: models.TransactionFailed}},
	}}

	// Another citizen cannot read the ledger of request 4.
	app := requestTestApp(&models.Account{ID: 2, Role: models.RoleCitizen})
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/requests/4/transactions", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// An admin can.
	app = requestTestApp(&models.Account{ID: 2, Role: models.RoleAdmin})
	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/requests/4/transactions", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	txns, _ := body["transactions"].([]interface{})
	assert.Len(t, txns, 1)
}

func TestHandleListRequestTransactionsUnknownRequest(t *testing.T) {
	requestRepo = &fakeRequestRepo{byID: map[uint]*models.DocumentRequest{}}
	paymentRepo = &fakeLedgerRepo{}
	app := requestTestApp(&models.Account{ID: 1})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/requests/9/transactions", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
