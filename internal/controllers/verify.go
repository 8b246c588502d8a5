package controllers

import (
	"encoding/json"
	"net/http"

	"bitbucket.org/calmisland/go-receipt-verify/internal/global"
	utils "bitbucket.org/calmisland/go-receipt-verify/internal/helpers"
	"bitbucket.org/calmisland/go-receipt-verify/pkg/iap"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

type verifyRequestBody struct {
	Receipt                string          `json:"receipt"`
	ProductID              string          `json:"productId"`
	PackageName            string          `json:"packageName"`
	Secret                 string          `json:"secret"`
	Subscription           bool            `json:"subscription"`
	ExcludeOldTransactions *bool           `json:"excludeOldTransactions"`
	UserID                 string          `json:"userId"`
	DevToken               string          `json:"devToken"`
	KeyObject              json.RawMessage `json:"keyObject"`

	DeferralInfo *iap.DeferralInfo `json:"deferralInfo"`
}

func (reqBody *verifyRequestBody) payment() *iap.Payment {
	return &iap.Payment{
		Receipt:                reqBody.Receipt,
		ProductID:              reqBody.ProductID,
		PackageName:            reqBody.PackageName,
		Secret:                 reqBody.Secret,
		Subscription:           reqBody.Subscription,
		ExcludeOldTransactions: reqBody.ExcludeOldTransactions,
		UserID:                 reqBody.UserID,
		DevToken:               reqBody.DevToken,
		KeyObject:              []byte(reqBody.KeyObject),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeVerifyError translates a verification failure into an HTTP answer.
// Caller mistakes come back as 400, vendor rejections as 402, unexpected
// upstream answers as 502, everything else as 500.
func writeVerifyError(c echo.Context, err error) error {
	switch err.(type) {
	case *iap.InvalidArgumentError, *iap.UnknownPlatformError, *iap.UnsupportedOperationError:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case *iap.AppleStatusError, *iap.VendorError:
		return c.JSON(http.StatusPaymentRequired, errorResponse{Error: err.Error()})
	case *iap.UnexpectedStatusError:
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	}

	switch err {
	case iap.ErrNoPayment:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case iap.ErrAmazonInvalidReceipt, iap.ErrAmazonInvalidSecret, iap.ErrAmazonInvalidUserID:
		return c.JSON(http.StatusPaymentRequired, errorResponse{Error: err.Error()})
	}

	return utils.HandleInternalError(c, err)
}

// HandleVerifyPayment handles receipt verification requests.
func HandleVerifyPayment(c echo.Context) error {
	platform := c.Param("platform")

	reqBody := new(verifyRequestBody)
	if err := c.Bind(reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad request body"})
	}

	contextLogger := log.WithFields(log.Fields{
		"operation": "verifyPayment",
		"platform":  platform,
	})

	result, err := global.Verifier.VerifyPayment(c.Request().Context(), platform, reqBody.payment())
	if err != nil {
		contextLogger.Info(err)
		return writeVerifyError(c, err)
	}

	utils.LogFormat(contextLogger, "[VERIFYRECEIPT] Successfully verified transaction [%s] for store [%s].", result.TransactionID, platform)
	return c.JSON(http.StatusOK, result)
}

// HandleCancelSubscription handles subscription cancel requests.
func HandleCancelSubscription(c echo.Context) error {
	platform := c.Param("platform")

	reqBody := new(verifyRequestBody)
	if err := c.Bind(reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad request body"})
	}

	contextLogger := log.WithFields(log.Fields{
		"operation": "cancelSubscription",
		"platform":  platform,
	})

	if err := global.Verifier.CancelSubscription(c.Request().Context(), platform, reqBody.payment()); err != nil {
		contextLogger.Info(err)
		return writeVerifyError(c, err)
	}

	utils.LogFormat(contextLogger, "[CANCELSUBSCRIPTION] Successfully cancelled subscription for store [%s].", platform)
	return c.NoContent(http.StatusNoContent)
}

// HandleDeferSubscription handles subscription defer requests.
func HandleDeferSubscription(c echo.Context) error {
	platform := c.Param("platform")

	reqBody := new(verifyRequestBody)
	if err := c.Bind(reqBody); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad request body"})
	}

	contextLogger := log.WithFields(log.Fields{
		"operation": "deferSubscription",
		"platform":  platform,
	})

	response, err := global.Verifier.DeferSubscription(c.Request().Context(), platform, reqBody.payment(), reqBody.DeferralInfo)
	if err != nil {
		contextLogger.Info(err)
		return writeVerifyError(c, err)
	}

	utils.LogFormat(contextLogger, "[DEFERSUBSCRIPTION] Successfully deferred subscription for store [%s].", platform)
	return c.JSONBlob(http.StatusOK, response.Bytes())
}
