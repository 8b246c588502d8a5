package iap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/Jeffail/gabs/v2"
	"github.com/calmisland/go-errors"
)

const rokuBaseURL = "https://apipub.roku.com/listen/transaction-service.svc/validate-transaction"

var (
	rokuWordChars  = regexp.MustCompile(`\w`)
	rokuDashes     = regexp.MustCompile(`-`)
	rokuDatePrefix = regexp.MustCompile(`^-?\d+`)
)

// RokuAdapter verifies transactions against the Roku transaction service.
type RokuAdapter struct {
	Transport Transport
	BaseURL   string
}

// NewRokuAdapter returns a RokuAdapter pointed at the live Roku endpoint.
func NewRokuAdapter(transport Transport) *RokuAdapter {
	return &RokuAdapter{
		Transport: transport,
		BaseURL:   rokuBaseURL,
	}
}

// VerifyPayment validates the transaction with the developer token. The
// receipt must look like a transaction UUID: exactly 32 word characters and
// exactly 4 dashes. This is a sanity check, not a cryptographic one.
func (r *RokuAdapter) VerifyPayment(ctx context.Context, payment *Payment) (*Result, error) {
	if payment.DevToken == "" {
		return nil, &InvalidArgumentError{Field: "devToken", Message: "developer ID must be a string"}
	}
	if payment.Receipt == "" {
		return nil, &InvalidArgumentError{Field: "receipt", Message: "receipt must be a string"}
	}
	if len(rokuWordChars.FindAllString(payment.Receipt, -1)) != 32 {
		return nil, &InvalidArgumentError{Field: "receipt", Message: "receipt must contain 32 digits"}
	}
	if len(rokuDashes.FindAllString(payment.Receipt, -1)) != 4 {
		return nil, &InvalidArgumentError{Field: "receipt", Message: "receipt must contain 4 dashes"}
	}

	requestURL := fmt.Sprintf("%s/%s/%s",
		r.BaseURL,
		url.PathEscape(payment.DevToken),
		url.PathEscape(payment.Receipt),
	)

	headers := map[string]string{"Accept": "application/json"}
	status, raw, err := r.Transport.Request(ctx, http.MethodGet, requestURL, headers, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UnexpectedStatusError{StatusCode: status, Body: string(raw)}
	}

	return parseRokuResponse(raw)
}

func parseRokuResponse(raw []byte) (*Result, error) {
	response, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, errors.Errorf("failed to parse Roku response: %v", err)
	}

	// Roku signals business errors inside a 200 envelope.
	if message := stringValue(fieldData(response, "errorMessage")); message != "" {
		return nil, &VendorError{Message: message}
	}

	originalPurchaseDate, err := parseRokuDate(fieldData(response, "originalPurchaseDate"))
	if err != nil {
		return nil, err
	}
	purchaseDate, err := parseRokuDate(fieldData(response, "purchaseDate"))
	if err != nil {
		return nil, err
	}

	var expirationDate *int64
	if v := fieldData(response, "expirationDate"); v != nil {
		ms, err := parseRokuDate(v)
		if err != nil {
			return nil, err
		}
		expirationDate = &ms
	}

	// The receipt keeps the normalized epoch values in place of the vendor
	// date strings.
	response.Set(originalPurchaseDate, "originalPurchaseDate")
	response.Set(purchaseDate, "purchaseDate")
	if expirationDate != nil {
		response.Set(*expirationDate, "expirationDate")
	}

	return &Result{
		Receipt:        response,
		TransactionID:  stringValue(fieldData(response, "transactionId")),
		ProductID:      stringValue(fieldData(response, "productId")),
		PurchaseDate:   &purchaseDate,
		ExpirationDate: expirationDate,
	}, nil
}

// parseRokuDate extracts the epoch milliseconds from Roku's embedded-epoch
// date format, e.g. /Date(1483242628000-0800)/: the leading integer after the
// fixed 6-character prefix, ignoring the timezone suffix.
func parseRokuDate(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok || len(s) < 7 {
		return 0, errors.Errorf("unexpected Roku date value: %v", v)
	}

	digits := rokuDatePrefix.FindString(s[6:])
	if digits == "" {
		return 0, errors.Errorf("unexpected Roku date value: %s", s)
	}

	ms, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, errors.Errorf("unexpected Roku date value: %s", s)
	}

	return ms, nil
}
