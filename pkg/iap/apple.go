package iap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"regexp"
	"sort"

	"github.com/Jeffail/gabs/v2"
	"github.com/calmisland/go-errors"
)

const (
	appleProductionURL = "https://buy.itunes.apple.com/verifyReceipt"
	appleSandboxURL    = "https://sandbox.itunes.apple.com/verifyReceipt"

	appleEnvironmentProduction = "production"
	appleEnvironmentSandbox    = "sandbox"

	appleStatusValid               = 0
	appleStatusSubscriptionExpired = 21006
	appleStatusSandboxReceipt      = 21007
)

// appleStatusMessages maps the receipt status codes documented by Apple to
// their meanings. 0 and 21006 are success codes; 21007 means the receipt
// belongs to the sandbox environment and triggers a single retry there.
var appleStatusMessages = map[int]string{
	21000: "The App Store could not read the JSON object you provided.",
	21002: "The data in the receipt-data property was malformed or missing.",
	21003: "The receipt could not be authenticated.",
	21004: "The shared secret you provided does not match the shared secret on file for your account.",
	21005: "The receipt server is not currently available.",
	21006: "This receipt is valid but the subscription has expired. When this status code is returned to your server, the receipt data is also decoded and returned as part of the response.",
	21007: "This receipt is from the test environment, but it was sent to the production service for verification. Send it to the test environment service instead.",
	21008: "This receipt is from the production receipt, but it was sent to the test environment service for verification. Send it to the production environment service instead.",
}

var appleBase64Receipt = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// AppleAdapter verifies receipts against the App Store verifyReceipt
// endpoints.
type AppleAdapter struct {
	Transport     Transport
	ProductionURL string
	SandboxURL    string
}

// NewAppleAdapter returns an AppleAdapter pointed at the live Apple
// endpoints.
func NewAppleAdapter(transport Transport) *AppleAdapter {
	return &AppleAdapter{
		Transport:     transport,
		ProductionURL: appleProductionURL,
		SandboxURL:    appleSandboxURL,
	}
}

// VerifyPayment posts the receipt to the production endpoint and, when Apple
// answers with status 21007, retries exactly once against the sandbox
// endpoint with the identical body. The result is tagged with the
// environment that accepted the receipt.
func (a *AppleAdapter) VerifyPayment(ctx context.Context, payment *Payment) (*Result, error) {
	if payment.Receipt == "" {
		return nil, &InvalidArgumentError{Field: "receipt", Message: "receipt must be a string"}
	}

	receiptData := payment.Receipt
	if !appleBase64Receipt.MatchString(receiptData) {
		receiptData = base64.StdEncoding.EncodeToString([]byte(receiptData))
	}

	body := map[string]interface{}{"receipt-data": receiptData}
	if payment.Secret != "" {
		body["password"] = payment.Secret
	}
	if payment.ExcludeOldTransactions != nil {
		body["exclude-old-transactions"] = *payment.ExcludeOldTransactions
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	environment := appleEnvironmentProduction
	result, err := a.verify(ctx, a.ProductionURL, requestBody)

	// 21007: this is a sandbox receipt, so take it there.
	if statusError, ok := err.(*AppleStatusError); ok && statusError.Status == appleStatusSandboxReceipt {
		environment = appleEnvironmentSandbox
		result, err = a.verify(ctx, a.SandboxURL, requestBody)
	}

	if err != nil {
		return nil, err
	}

	if err := checkAppleReceipt(payment, result.Receipt); err != nil {
		return nil, err
	}

	result.Environment = environment
	return result, nil
}

func (a *AppleAdapter) verify(ctx context.Context, url string, body []byte) (*Result, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	status, raw, err := a.Transport.Request(ctx, http.MethodPost, url, headers, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UnexpectedStatusError{StatusCode: status, Body: string(raw)}
	}
	return parseAppleResponse(raw)
}

// parseAppleResponse interprets the verifyReceipt response body.
// Reference: https://developer.apple.com/library/content/releasenotes/General/ValidateAppStoreReceipt/Chapters/ValidateRemotely.html
func parseAppleResponse(raw []byte) (*Result, error) {
	response, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, errors.Errorf("failed to parse App Store response: %v", err)
	}

	status := 0
	if v := response.Search("status"); v != nil {
		if ms := parseMillis(v.Data()); ms != nil {
			status = int(*ms)
		}
	}

	if status != appleStatusValid && status != appleStatusSubscriptionExpired {
		return nil, &AppleStatusError{Status: status}
	}

	receipt := response.Search("receipt")
	if receipt == nil {
		return nil, errors.Errorf("App Store response carries no receipt")
	}

	result := &Result{
		Receipt:                  receipt,
		ProductID:                stringValue(appleReceiptField(receipt, "product_id")),
		TransactionID:            stringValue(appleReceiptField(receipt, "transaction_id")),
		PurchaseDate:             parseMillis(appleReceiptField(receipt, "purchase_date_ms")),
		LatestExpiredReceiptInfo: response.Search("latest_expired_receipt_info"),
		PendingRenewalInfo:       response.Search("pending_renewal_info"),
	}

	result.ExpirationDate = parseMillis(appleReceiptField(receipt, "expires_date_ms"))
	if result.ExpirationDate == nil {
		result.ExpirationDate = parseMillis(appleReceiptField(receipt, "expires_date"))
	}

	if info := response.Search("latest_receipt_info"); info != nil {
		applyLatestReceiptInfo(result, info)
	}

	return result, nil
}

// applyLatestReceiptInfo overrides the default receipt fields with the newest
// entry of the subscription renewal history. Apple returns the history as an
// array in no guaranteed order; the current record is the one with the
// numerically largest transaction ID, not the last array element. A single
// non-array object is treated as a one-element history.
func applyLatestReceiptInfo(result *Result, info *gabs.Container) {
	var entries []*gabs.Container

	switch data := info.Data().(type) {
	case []interface{}:
		if len(data) == 0 {
			return
		}
		entries = info.Children()
		sort.SliceStable(entries, func(i, j int) bool {
			return appleTransactionID(entries[i]) < appleTransactionID(entries[j])
		})
	case map[string]interface{}:
		if _, ok := data["transaction_id"]; !ok {
			return
		}
		entries = []*gabs.Container{info}
	default:
		return
	}

	last := entries[len(entries)-1]

	result.LatestReceiptInfo = entries
	result.ProductID = stringValue(fieldData(last, "product_id"))
	result.TransactionID = stringValue(fieldData(last, "transaction_id"))
	result.PurchaseDate = parseMillis(fieldData(last, "purchase_date_ms"))
	result.ExpirationDate = parseMillis(fieldData(last, "expires_date_ms"))
	if result.ExpirationDate == nil {
		result.ExpirationDate = parseMillis(fieldData(last, "expires_date"))
	}
}

func appleTransactionID(entry *gabs.Container) int64 {
	if id := parseMillis(fieldData(entry, "transaction_id")); id != nil {
		return *id
	}
	return 0
}

// appleReceiptField reads a field from the top-level receipt, falling back to
// the latest-purchased entry of the in_app array on bundle-shaped receipts.
// "Latest purchased" means max purchase_date_ms; the later entry wins ties.
func appleReceiptField(receipt *gabs.Container, field string) interface{} {
	if v := receipt.Search(field); v != nil {
		return v.Data()
	}

	inApp := receipt.Search("in_app")
	if inApp == nil {
		return nil
	}
	entries := inApp.Children()
	if len(entries) == 0 {
		return nil
	}

	latest := entries[0]
	latestMS := applePurchaseMillis(latest)
	for _, entry := range entries[1:] {
		if ms := applePurchaseMillis(entry); ms >= latestMS {
			latest, latestMS = entry, ms
		}
	}

	return fieldData(latest, field)
}

func applePurchaseMillis(entry *gabs.Container) int64 {
	if ms := parseMillis(fieldData(entry, "purchase_date_ms")); ms != nil {
		return *ms
	}
	return 0
}

func fieldData(container *gabs.Container, field string) interface{} {
	if v := container.Search(field); v != nil {
		return v.Data()
	}
	return nil
}

// checkAppleReceipt guards against receipt substitution: when the caller
// names a product or bundle, the verified receipt must agree.
func checkAppleReceipt(payment *Payment, receipt *gabs.Container) error {
	productID := stringValue(appleReceiptField(receipt, "product_id"))
	if payment.ProductID != "" && payment.ProductID != productID {
		return errors.Errorf("wrong product ID: %s (expected: %s)", payment.ProductID, productID)
	}

	bundleID := stringValue(appleReceiptField(receipt, "bid"))
	if bundleID == "" {
		bundleID = stringValue(appleReceiptField(receipt, "bundle_id"))
	}
	if payment.PackageName != "" && payment.PackageName != bundleID {
		return errors.Errorf("wrong bundle ID: %s (expected: %s)", payment.PackageName, bundleID)
	}

	return nil
}
