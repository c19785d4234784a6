package webapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/app"
	"github.com/payvault/payvault/pkg/config"
	"github.com/payvault/payvault/pkg/provider/payment"
	"github.com/payvault/payvault/pkg/testutils"
	"github.com/payvault/payvault/webapi"
	"github.com/payvault/payvault/webapi/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Jwt:       config.Jwt{Secret: testSecret, Expiry: time.Hour},
		RateLimit: config.RateLimit{MaxRequests: 1000, Window: time.Minute},
		Scheduler: config.Scheduler{
			Interval:         time.Second,
			PageSize:         50,
			MaxRetries:       3,
			RetryBackoffBase: time.Minute,
		},
		Fees: config.Fees{
			Rate: decimal.RequireFromString("0.01"),
			Cap:  decimal.RequireFromString("10.00"),
		},
	}
}

func newTestApp(t *testing.T) (*fiber.App, *app.App) {
	t.Helper()
	a := app.New(&app.Deps{
		Uow:             testutils.NewTestUoW(t),
		EventBus:        testutils.NewTestBus(),
		PaymentProvider: payment.NewMockProvider(),
		Logger:          testutils.NewTestLogger(),
	}, testConfig())
	return webapi.SetupApp(a), a
}

func bearerToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, fiberApp *fiber.App, method, path, body, token string) *http.Response {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := fiberApp.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeSuccess(t *testing.T, resp *http.Response) common.Response {
	t.Helper()
	defer resp.Body.Close() //nolint: errcheck
	var r common.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	return r
}

func decodeProblem(t *testing.T, resp *http.Response) common.ProblemDetails {
	t.Helper()
	defer resp.Body.Close() //nolint: errcheck
	var pd common.ProblemDetails
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pd))
	return pd
}

func dataMap(t *testing.T, r common.Response) map[string]any {
	t.Helper()
	m, ok := r.Data.(map[string]any)
	require.True(t, ok, "expected object data, got %T", r.Data)
	return m
}

func dataList(t *testing.T, r common.Response) []any {
	t.Helper()
	l, ok := r.Data.([]any)
	require.True(t, ok, "expected array data, got %T", r.Data)
	return l
}

func TestHealthEndpoint(t *testing.T) {
	fiberApp, _ := newTestApp(t)

	resp := doRequest(t, fiberApp, fiber.MethodGet, "/", "", "")
	defer resp.Body.Close() //nolint: errcheck
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWalletEndpointsRequireJwt(t *testing.T) {
	fiberApp, _ := newTestApp(t)

	resp := doRequest(t, fiberApp, fiber.MethodGet, "/wallet", "", "")
	defer resp.Body.Close() //nolint: errcheck
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "missing token")

	resp = doRequest(t, fiberApp, fiber.MethodGet, "/wallet", "", "not-a-jwt")
	defer resp.Body.Close() //nolint: errcheck
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "malformed token")
}

func TestCreateAndReadWallet(t *testing.T) {
	fiberApp, _ := newTestApp(t)
	userID := uuid.New()
	token := bearerToken(t, userID)

	resp := doRequest(t, fiberApp, fiber.MethodPost, "/wallet", "", token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decodeSuccess(t, resp)
	assert.Equal(t, "Wallet created", created.Message)
	wallet := dataMap(t, created)
	walletID := wallet["ID"].(string)
	assert.Equal(t, "0.00", wallet["Balance"])
	assert.Equal(t, true, wallet["Active"])

	resp = doRequest(t, fiberApp, fiber.MethodGet, "/wallet", "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, dataList(t, decodeSuccess(t, resp)), 1)

	resp = doRequest(t, fiberApp, fiber.MethodGet, "/wallet/"+walletID, "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, walletID, dataMap(t, decodeSuccess(t, resp))["ID"])

	// someone else's token must not see the wallet
	resp = doRequest(t, fiberApp, fiber.MethodGet, "/wallet/"+walletID, "", bearerToken(t, uuid.New()))
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	pd := decodeProblem(t, resp)
	assert.Equal(t, fiber.StatusForbidden, pd.Status)

	resp = doRequest(t, fiberApp, fiber.MethodGet, "/wallet/not-a-uuid", "", token)
	defer resp.Body.Close() //nolint: errcheck
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDeactivateWallet(t *testing.T) {
	fiberApp, a := newTestApp(t)
	userID := uuid.New()
	token := bearerToken(t, userID)
	walletID := testutils.SeedWallet(t, a.Deps.Uow, userID, "10.00")

	resp := doRequest(t, fiberApp, fiber.MethodDelete, "/wallet/"+walletID.String(), "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint: errcheck

	// withdrawals are refused once the wallet is inactive
	resp = doRequest(t, fiberApp, fiber.MethodPost,
		"/wallet/"+walletID.String()+"/withdraw", `{"amount":"5.00"}`, token)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close() //nolint: errcheck
}

func TestDepositCheckoutAndWebhookSettlement(t *testing.T) {
	fiberApp, _ := newTestApp(t)
	userID := uuid.New()
	token := bearerToken(t, userID)

	resp := doRequest(t, fiberApp, fiber.MethodPost, "/wallet", "", token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	walletID := dataMap(t, decodeSuccess(t, resp))["ID"].(string)

	resp = doRequest(t, fiberApp, fiber.MethodPost,
		"/wallet/"+walletID+"/deposit", `{"amount":"50.00","email":"payer@example.com"}`, token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	session := dataMap(t, decodeSuccess(t, resp))
	sessionID := session["ID"].(string)
	reference := session["Reference"].(string)
	require.NotEmpty(t, reference)
	assert.NotEmpty(t, session["CheckoutURL"])

	// the balance does not move until the gateway confirms
	resp = doRequest(t, fiberApp, fiber.MethodGet, "/wallet/"+walletID, "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.00", dataMap(t, decodeSuccess(t, resp))["Balance"])

	resp = doRequest(t, fiberApp, fiber.MethodGet, "/checkout/"+sessionID, "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, reference, dataMap(t, decodeSuccess(t, resp))["Reference"])

	// another user polling the session is told it does not exist
	resp = doRequest(t, fiberApp, fiber.MethodGet, "/checkout/"+sessionID, "", bearerToken(t, uuid.New()))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close() //nolint: errcheck

	payload := fmt.Sprintf(
		`{"type":"payment.succeeded","reference":%q,"payment_id":"pay_123","amount":"50.00"}`, reference)
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/payment", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Payment-Signature", "sig_test")
	whResp, err := fiberApp.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, whResp.StatusCode)
	whResp.Body.Close() //nolint: errcheck

	resp = doRequest(t, fiberApp, fiber.MethodGet, "/wallet/"+walletID, "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "50.00", dataMap(t, decodeSuccess(t, resp))["Balance"])

	// redelivery is acknowledged without crediting twice
	req = httptest.NewRequest(fiber.MethodPost, "/webhooks/payment", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Payment-Signature", "sig_test")
	whResp, err = fiberApp.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, whResp.StatusCode)
	whResp.Body.Close() //nolint: errcheck

	resp = doRequest(t, fiberApp, fiber.MethodGet, "/wallet/"+walletID, "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "50.00", dataMap(t, decodeSuccess(t, resp))["Balance"])
}

func TestWebhookValidation(t *testing.T) {
	fiberApp, _ := newTestApp(t)

	t.Run("missing signature", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/webhooks/payment",
			bytes.NewBufferString(`{"type":"payment.succeeded"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := fiberApp.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close() //nolint: errcheck
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed payload", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/webhooks/payment",
			bytes.NewBufferString(`not json`))
		req.Header.Set("Payment-Signature", "sig_test")
		resp, err := fiberApp.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close() //nolint: errcheck
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown reference is acknowledged", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/webhooks/payment", bytes.NewBufferString(
			`{"type":"payment.succeeded","reference":"TXN-UNKNOWN","payment_id":"pay_9","amount":"1.00"}`))
		req.Header.Set("Payment-Signature", "sig_test")
		resp, err := fiberApp.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close() //nolint: errcheck
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestTransferEndpoint(t *testing.T) {
	fiberApp, a := newTestApp(t)
	sender := uuid.New()
	receiver := uuid.New()
	senderToken := bearerToken(t, sender)
	senderWallet := testutils.SeedWallet(t, a.Deps.Uow, sender, "100.00")
	receiverWallet := testutils.SeedWallet(t, a.Deps.Uow, receiver, "50.00")

	body := fmt.Sprintf(`{"receiver_wallet_id":%q,"amount":"25.50","note":"rent"}`, receiverWallet)
	resp := doRequest(t, fiberApp, fiber.MethodPost,
		"/wallet/"+senderWallet.String()+"/transfer", body, senderToken)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	tx := dataMap(t, decodeSuccess(t, resp))
	assert.Equal(t, "25.50", tx["Amount"])
	assert.Equal(t, "0.26", tx["Fee"])
	assert.Equal(t, "SUCCESS", tx["Status"])

	resp = doRequest(t, fiberApp, fiber.MethodGet, "/wallet/"+senderWallet.String(), "", senderToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "74.50", dataMap(t, decodeSuccess(t, resp))["Balance"])

	resp = doRequest(t, fiberApp, fiber.MethodGet,
		"/wallet/"+receiverWallet.String(), "", bearerToken(t, receiver))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "75.50", dataMap(t, decodeSuccess(t, resp))["Balance"])

	t.Run("insufficient funds", func(t *testing.T) {
		body := fmt.Sprintf(`{"receiver_wallet_id":%q,"amount":"1000.00"}`, receiverWallet)
		resp := doRequest(t, fiberApp, fiber.MethodPost,
			"/wallet/"+senderWallet.String()+"/transfer", body, senderToken)
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		pd := decodeProblem(t, resp)
		assert.Equal(t, "Transfer failed", pd.Title)
		assert.Contains(t, pd.Detail, "insufficient funds")
	})

	t.Run("same wallet", func(t *testing.T) {
		body := fmt.Sprintf(`{"receiver_wallet_id":%q,"amount":"1.00"}`, senderWallet)
		resp := doRequest(t, fiberApp, fiber.MethodPost,
			"/wallet/"+senderWallet.String()+"/transfer", body, senderToken)
		defer resp.Body.Close() //nolint: errcheck
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not the wallet owner", func(t *testing.T) {
		body := fmt.Sprintf(`{"receiver_wallet_id":%q,"amount":"1.00"}`, receiverWallet)
		resp := doRequest(t, fiberApp, fiber.MethodPost,
			"/wallet/"+senderWallet.String()+"/transfer", body, bearerToken(t, uuid.New()))
		defer resp.Body.Close() //nolint: errcheck
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("validation failure", func(t *testing.T) {
		resp := doRequest(t, fiberApp, fiber.MethodPost,
			"/wallet/"+senderWallet.String()+"/transfer",
			`{"receiver_wallet_id":"nope","amount":"1.00"}`, senderToken)
		defer resp.Body.Close() //nolint: errcheck
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestWithdrawEndpoint(t *testing.T) {
	fiberApp, a := newTestApp(t)
	userID := uuid.New()
	token := bearerToken(t, userID)
	walletID := testutils.SeedWallet(t, a.Deps.Uow, userID, "30.00")

	resp := doRequest(t, fiberApp, fiber.MethodPost,
		"/wallet/"+walletID.String()+"/withdraw", `{"amount":"10.00"}`, token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	tx := dataMap(t, decodeSuccess(t, resp))
	assert.Equal(t, "WITHDRAWAL", tx["Kind"])
	assert.Equal(t, "SUCCESS", tx["Status"])

	resp = doRequest(t, fiberApp, fiber.MethodGet, "/wallet/"+walletID.String(), "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "20.00", dataMap(t, decodeSuccess(t, resp))["Balance"])
}

func TestListTransactions(t *testing.T) {
	fiberApp, a := newTestApp(t)
	userID := uuid.New()
	token := bearerToken(t, userID)
	walletID := testutils.SeedWallet(t, a.Deps.Uow, userID, "100.00")

	for i := 0; i < 3; i++ {
		resp := doRequest(t, fiberApp, fiber.MethodPost,
			"/wallet/"+walletID.String()+"/withdraw", `{"amount":"1.00"}`, token)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		resp.Body.Close() //nolint: errcheck
	}

	resp := doRequest(t, fiberApp, fiber.MethodGet,
		"/wallet/"+walletID.String()+"/transactions?limit=2", "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, dataList(t, decodeSuccess(t, resp)), 2)

	resp = doRequest(t, fiberApp, fiber.MethodGet,
		"/wallet/"+walletID.String()+"/transactions", "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, dataList(t, decodeSuccess(t, resp)), 3)
}

func TestScheduledTransferEndpoints(t *testing.T) {
	fiberApp, a := newTestApp(t)
	userID := uuid.New()
	token := bearerToken(t, userID)
	senderWallet := testutils.SeedWallet(t, a.Deps.Uow, userID, "100.00")
	receiverWallet := testutils.SeedWallet(t, a.Deps.Uow, uuid.New(), "0.00")

	scheduledAt := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(
		`{"receiver_wallet_id":%q,"amount":"5.00","recurrence":"WEEKLY","scheduled_at":%q}`,
		receiverWallet, scheduledAt)
	resp := doRequest(t, fiberApp, fiber.MethodPost,
		"/wallet/"+senderWallet.String()+"/scheduled", body, token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	st := dataMap(t, decodeSuccess(t, resp))
	scheduledID := st["ID"].(string)
	assert.Equal(t, "WEEKLY", st["Recurrence"])

	t.Run("past schedule is rejected", func(t *testing.T) {
		past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
		body := fmt.Sprintf(
			`{"receiver_wallet_id":%q,"amount":"5.00","recurrence":"NONE","scheduled_at":%q}`,
			receiverWallet, past)
		resp := doRequest(t, fiberApp, fiber.MethodPost,
			"/wallet/"+senderWallet.String()+"/scheduled", body, token)
		defer resp.Body.Close() //nolint: errcheck
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	resp = doRequest(t, fiberApp, fiber.MethodGet,
		"/wallet/"+senderWallet.String()+"/scheduled", "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, dataList(t, decodeSuccess(t, resp)), 1)

	resp = doRequest(t, fiberApp, fiber.MethodDelete, "/scheduled/"+scheduledID, "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint: errcheck

	// a cancelled definition cannot be cancelled again
	resp = doRequest(t, fiberApp, fiber.MethodDelete, "/scheduled/"+scheduledID, "", token)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	resp.Body.Close() //nolint: errcheck
}

func TestReviewEndpoints(t *testing.T) {
	fiberApp, a := newTestApp(t)
	userID := uuid.New()
	token := bearerToken(t, userID)
	senderWallet := testutils.SeedWallet(t, a.Deps.Uow, userID, "100.00")
	receiverWallet := testutils.SeedWallet(t, a.Deps.Uow, uuid.New(), "0.00")

	body := fmt.Sprintf(`{"receiver_wallet_id":%q,"amount":"10.00"}`, receiverWallet)
	resp := doRequest(t, fiberApp, fiber.MethodPost,
		"/wallet/"+senderWallet.String()+"/transfer", body, token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	reference := dataMap(t, decodeSuccess(t, resp))["Reference"].(string)

	resp = doRequest(t, fiberApp, fiber.MethodGet,
		"/transactions/"+reference+"/audit", "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	trail := dataList(t, decodeSuccess(t, resp))
	require.Len(t, trail, 2)
	first := trail[0].(map[string]any)
	last := trail[1].(map[string]any)
	assert.Equal(t, "PENDING", first["Status"])
	assert.Equal(t, "SUCCESS", last["Status"])

	resp = doRequest(t, fiberApp, fiber.MethodGet, "/transactions/flagged", "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeSuccess(t, resp).Data)

	resp = doRequest(t, fiberApp, fiber.MethodGet,
		"/transactions/"+reference+"/flags", "", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeSuccess(t, resp).Data)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimit{MaxRequests: 3, Window: time.Second}
	a := app.New(&app.Deps{
		Uow:             testutils.NewTestUoW(t),
		EventBus:        testutils.NewTestBus(),
		PaymentProvider: payment.NewMockProvider(),
		Logger:          testutils.NewTestLogger(),
	}, cfg)
	fiberApp := webapi.SetupApp(a)

	for i := 0; i < 4; i++ {
		resp := doRequest(t, fiberApp, fiber.MethodGet, "/", "", "")
		if i < 3 {
			assert.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d should pass", i+1)
			resp.Body.Close() //nolint: errcheck
		} else {
			assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
			pd := decodeProblem(t, resp)
			assert.Equal(t, "Too Many Requests", pd.Title)
		}
	}

	// clients sharing a proxy are told apart by X-Forwarded-For
	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	resp, err := fiberApp.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint: errcheck
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	time.Sleep(1100 * time.Millisecond)
	resp2 := doRequest(t, fiberApp, fiber.MethodGet, "/", "", "")
	defer resp2.Body.Close() //nolint: errcheck
	assert.Equal(t, fiber.StatusOK, resp2.StatusCode)
}
