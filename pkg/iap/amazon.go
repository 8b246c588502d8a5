package iap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Jeffail/gabs/v2"
	calmerr "github.com/calmisland/go-errors"
)

const amazonBaseURL = "https://appstore-sdk.amazon.com/version/1.0/verifyReceiptId/developer/"

// Amazon RVS failure taxonomy. The endpoint encodes its business errors as
// HTTP status codes.
var (
	ErrAmazonInvalidReceipt = errors.New("receiptId is invalid, or no transaction was found for this receiptId")
	ErrAmazonInvalidSecret  = errors.New("invalid sharedSecret")
	ErrAmazonInvalidUserID  = errors.New("invalid user ID")
	ErrAmazonServerError    = errors.New("there was an internal server error")
	ErrAmazonUnknown        = errors.New("unknown operation exception")
)

// AmazonAdapter verifies receipts against the Amazon Receipt Verification
// Service.
type AmazonAdapter struct {
	Transport Transport
	BaseURL   string
}

// NewAmazonAdapter returns an AmazonAdapter pointed at the live RVS endpoint.
func NewAmazonAdapter(transport Transport) *AmazonAdapter {
	return &AmazonAdapter{
		Transport: transport,
		BaseURL:   amazonBaseURL,
	}
}

// VerifyPayment looks the receipt up by developer secret, user and receipt
// ID.
func (a *AmazonAdapter) VerifyPayment(ctx context.Context, payment *Payment) (*Result, error) {
	if payment.Secret == "" {
		return nil, &InvalidArgumentError{Field: "secret", Message: "shared secret must be a string"}
	}
	if payment.UserID == "" {
		return nil, &InvalidArgumentError{Field: "userId", Message: "user ID must be a string"}
	}
	if payment.Receipt == "" {
		return nil, &InvalidArgumentError{Field: "receipt", Message: "receipt must be a string"}
	}

	requestURL := fmt.Sprintf("%s%s/user/%s/receiptId/%s",
		a.BaseURL,
		url.PathEscape(payment.Secret),
		url.PathEscape(payment.UserID),
		url.PathEscape(payment.Receipt),
	)

	status, raw, err := a.Transport.Request(ctx, http.MethodGet, requestURL, nil, nil)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusBadRequest:
		return nil, ErrAmazonInvalidReceipt
	case 496:
		return nil, ErrAmazonInvalidSecret
	case 497:
		return nil, ErrAmazonInvalidUserID
	case http.StatusInternalServerError:
		return nil, ErrAmazonServerError
	default:
		return nil, ErrAmazonUnknown
	}

	return parseAmazonResponse(raw)
}

func parseAmazonResponse(raw []byte) (*Result, error) {
	response, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, calmerr.Errorf("failed to parse Amazon RVS response: %v", err)
	}

	result := &Result{
		Receipt:       response,
		TransactionID: stringValue(fieldData(response, "receiptId")),
		ProductID:     stringValue(fieldData(response, "productId")),
		PurchaseDate:  parseMillis(fieldData(response, "purchaseDate")),
	}

	// A cancelled subscription reports cancelDate; an active one reports
	// renewalDate. First non-null wins.
	result.ExpirationDate = parseMillis(fieldData(response, "cancelDate"))
	if result.ExpirationDate == nil {
		result.ExpirationDate = parseMillis(fieldData(response, "renewalDate"))
	}

	return result, nil
}
