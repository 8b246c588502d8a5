package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bitbucket.org/calmisland/go-receipt-verify/internal/global"
	"bitbucket.org/calmisland/go-receipt-verify/pkg/iap"
	"github.com/Jeffail/gabs/v2"
	"github.com/calmisland/go-testify/assert"
	"github.com/labstack/echo/v4"
)

type stubStoreAdapter struct {
	result *iap.Result
	err    error
}

func (s *stubStoreAdapter) VerifyPayment(ctx context.Context, payment *iap.Payment) (*iap.Result, error) {
	return s.result, s.err
}

func setupStubVerifier(adapter iap.Adapter) {
	verifier := iap.New()
	verifier.Register("stub", adapter)
	global.Verifier = verifier
}

func performRequest(handler echo.HandlerFunc, platform, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("platform")
	c.SetParamValues(platform)

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	return rec
}

func TestHandleVerifyPaymentSuccess(t *testing.T) {
	receipt, _ := gabs.ParseJSON([]byte(`{"productId": "com.example.premium"}`))
	setupStubVerifier(&stubStoreAdapter{result: &iap.Result{
		Receipt:       receipt,
		ProductID:     "com.example.premium",
		TransactionID: "txn-1",
	}})

	rec := performRequest(HandleVerifyPayment, "stub", `{"receipt": "some receipt"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"platform":"stub"`)
	assert.Contains(t, rec.Body.String(), `"transactionId":"txn-1"`)
}

func TestHandleVerifyPaymentUnknownPlatform(t *testing.T) {
	global.Verifier = iap.New()

	rec := performRequest(HandleVerifyPayment, "steam", `{"receipt": "some receipt"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "steam")
}

func TestHandleVerifyPaymentValidationFailure(t *testing.T) {
	global.Verifier = iap.New()

	rec := performRequest(HandleVerifyPayment, "apple", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleVerifyPaymentVendorRejection(t *testing.T) {
	setupStubVerifier(&stubStoreAdapter{err: &iap.AppleStatusError{Status: 21003}})

	rec := performRequest(HandleVerifyPayment, "stub", `{"receipt": "some receipt"}`)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestHandleCancelSubscriptionUnsupportedPlatform(t *testing.T) {
	global.Verifier = iap.New()

	rec := performRequest(HandleCancelSubscription, "apple", `{"receipt": "some receipt"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cancelSubscription")
}

func TestHandleServerInfo(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/serverinfo", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.NoError(t, HandleServerInfo(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
