package iap

import (
	"encoding/json"
	"strconv"

	"github.com/Jeffail/gabs/v2"
)

// Result is the normalized outcome of a successful verification. Receipt
// carries the vendor's payload untouched; the remaining fields are extracted
// and normalized so callers never deal with vendor-native formats.
type Result struct {
	// Receipt is the raw (parsed) vendor receipt payload.
	Receipt *gabs.Container `json:"receipt"`

	// Platform is stamped by the verifier, not the adapter.
	Platform string `json:"platform"`

	ProductID     string `json:"productId"`
	TransactionID string `json:"transactionId"`

	// PurchaseDate and ExpirationDate are epoch milliseconds; nil when the
	// vendor did not report them.
	PurchaseDate   *int64 `json:"purchaseDate"`
	ExpirationDate *int64 `json:"expirationDate"`

	// Environment reports which App Store endpoint verified the receipt,
	// "production" or "sandbox". Apple only.
	Environment string `json:"environment,omitempty"`

	// LatestReceiptInfo is Apple's subscription renewal history, ordered
	// ascending by numeric transaction ID (last element is current).
	LatestReceiptInfo []*gabs.Container `json:"latestReceiptInfo,omitempty"`

	// LatestExpiredReceiptInfo and PendingRenewalInfo are carried through
	// from Apple's response when present.
	LatestExpiredReceiptInfo *gabs.Container `json:"latestExpiredReceiptInfo,omitempty"`
	PendingRenewalInfo       *gabs.Container `json:"pendingRenewalInfo,omitempty"`
}

// parseMillis normalizes a vendor-supplied epoch-millisecond value. Vendors
// are inconsistent about whether these arrive as JSON strings or numbers.
func parseMillis(v interface{}) *int64 {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		ms, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil
		}
		return &ms
	case float64:
		ms := int64(t)
		return &ms
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return nil
		}
		return &ms
	case int64:
		ms := t
		return &ms
	}
	return nil
}

// stringValue renders a dynamic JSON leaf as a string, tolerating numeric
// values the way the vendors occasionally emit them.
func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}
