package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/datamart-payments-ledger/internal/domain/deposit"
	"github.com/datamart-payments-ledger/internal/ledger"
	"github.com/datamart-payments-ledger/internal/platform/paystack"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "sk_test_webhook_secret"

type MockSettlementApplier struct {
	mock.Mock
}

func (m *MockSettlementApplier) ApplySettlement(ctx context.Context, report *ledger.SettlementReport) (ledger.CreditOutcome, error) {
	args := m.Called(ctx, report)
	return args.Get(0).(ledger.CreditOutcome), args.Error(1)
}

func setupWebhookRouter(settler *MockSettlementApplier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	r := gin.New()
	h := NewWebhookHandler(logger, testWebhookSecret, settler)
	r.POST("/api/v1/paystack-webhook", h.Receive)
	return r
}

func signedWebhookRequest(t *testing.T, payload WebhookPayload, secret string) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, "/api/v1/paystack-webhook", bytes.NewBuffer(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(paystack.SignatureHeader, paystack.Sign(body, secret))
	return req
}

func chargeSuccessPayload(reference string, amount int64) WebhookPayload {
	var p WebhookPayload
	p.Event = "charge.success"
	p.Data.Reference = reference
	p.Data.Amount = amount
	p.Data.Currency = "GHS"
	p.Data.Status = "success"
	return p
}

func TestWebhookHandler_ValidSignatureCredits(t *testing.T) {
	settler := new(MockSettlementApplier)
	router := setupWebhookRouter(settler)

	settler.On("ApplySettlement", mock.Anything, mock.MatchedBy(func(r *ledger.SettlementReport) bool {
		return r.Reference == "DEP-abc-1" && r.Succeeded && r.Amount == 1050 && r.Source == "webhook"
	})).Return(ledger.OutcomeCredited, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedWebhookRequest(t, chargeSuccessPayload("DEP-abc-1", 1050), testWebhookSecret))

	assert.Equal(t, http.StatusOK, rr.Code)
	settler.AssertExpectations(t)
}

func TestWebhookHandler_MissingSignatureRejected(t *testing.T) {
	settler := new(MockSettlementApplier)
	router := setupWebhookRouter(settler)

	body, _ := json.Marshal(chargeSuccessPayload("DEP-abc-1", 1050))
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/paystack-webhook", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	// The ledger must never be consulted for an unauthenticated delivery.
	settler.AssertNotCalled(t, "ApplySettlement", mock.Anything, mock.Anything)
}

func TestWebhookHandler_WrongSecretRejected(t *testing.T) {
	settler := new(MockSettlementApplier)
	router := setupWebhookRouter(settler)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedWebhookRequest(t, chargeSuccessPayload("DEP-abc-1", 1050), "sk_wrong_secret"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	settler.AssertNotCalled(t, "ApplySettlement", mock.Anything, mock.Anything)
}

func TestWebhookHandler_TamperedBodyRejected(t *testing.T) {
	settler := new(MockSettlementApplier)
	router := setupWebhookRouter(settler)

	body, _ := json.Marshal(chargeSuccessPayload("DEP-abc-1", 1050))
	signature := paystack.Sign(body, testWebhookSecret)

	tampered, _ := json.Marshal(chargeSuccessPayload("DEP-abc-1", 999950))
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/paystack-webhook", bytes.NewBuffer(tampered))
	req.Header.Set(paystack.SignatureHeader, signature)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	settler.AssertNotCalled(t, "ApplySettlement", mock.Anything, mock.Anything)
}

func TestWebhookHandler_DuplicateDeliveryAcknowledged(t *testing.T) {
	settler := new(MockSettlementApplier)
	router := setupWebhookRouter(settler)

	// The retried delivery loses the conditional update and no-ops; the
	// handler still answers 200 so the provider stops redelivering.
	settler.On("ApplySettlement", mock.Anything, mock.Anything).Return(ledger.OutcomeAlreadyFinal, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedWebhookRequest(t, chargeSuccessPayload("DEP-abc-1", 1050), testWebhookSecret))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebhookHandler_AmountMismatchFlagged(t *testing.T) {
	settler := new(MockSettlementApplier)
	router := setupWebhookRouter(settler)

	settler.On("ApplySettlement", mock.Anything, mock.Anything).Return(ledger.OutcomeFlagged, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedWebhookRequest(t, chargeSuccessPayload("DEP-abc-1", 9999), testWebhookSecret))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebhookHandler_UnknownReference(t *testing.T) {
	settler := new(MockSettlementApplier)
	router := setupWebhookRouter(settler)

	settler.On("ApplySettlement", mock.Anything, mock.Anything).
		Return(ledger.CreditOutcome(""), deposit.ErrNotFound{Reference: "DEP-unknown-1"})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedWebhookRequest(t, chargeSuccessPayload("DEP-unknown-1", 1050), testWebhookSecret))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWebhookHandler_ChargeFailedMarksFailed(t *testing.T) {
	settler := new(MockSettlementApplier)
	router := setupWebhookRouter(settler)

	settler.On("ApplySettlement", mock.Anything, mock.MatchedBy(func(r *ledger.SettlementReport) bool {
		return r.Reference == "DEP-abc-1" && !r.Succeeded
	})).Return(ledger.OutcomeMarkedFailed, nil)

	payload := chargeSuccessPayload("DEP-abc-1", 1050)
	payload.Event = "charge.failed"
	payload.Data.Status = "failed"

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedWebhookRequest(t, payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, rr.Code)
	settler.AssertExpectations(t)
}

func TestWebhookHandler_IrrelevantEventIgnored(t *testing.T) {
	settler := new(MockSettlementApplier)
	router := setupWebhookRouter(settler)

	payload := chargeSuccessPayload("DEP-abc-1", 1050)
	payload.Event = "transfer.success"

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedWebhookRequest(t, payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, rr.Code)
	settler.AssertNotCalled(t, "ApplySettlement", mock.Anything, mock.Anything)
}
