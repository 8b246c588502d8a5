package iap

import (
	"encoding/json"
)

// Payment is the input to every verification call. Which fields are required
// depends on the platform; each adapter validates its own requirements before
// performing any network I/O.
type Payment struct {
	// Receipt is the vendor-issued proof of purchase. Required everywhere.
	// Apple accepts raw receipt text or pre-encoded base64 data; Google
	// expects the purchase token; Amazon the receipt ID; Roku the
	// transaction UUID.
	Receipt string

	// ProductID is required for Google. For Apple it is optional and, when
	// set, must match the product ID found in the verified receipt.
	ProductID string

	// PackageName is required for Google. For Apple it is optional and,
	// when set, must match the receipt's bundle ID.
	PackageName string

	// Secret is the Apple shared secret (optional) or the Amazon developer
	// shared secret (required).
	Secret string

	// Subscription selects Google's subscription-purchase endpoint instead
	// of the product-purchase one.
	Subscription bool

	// ExcludeOldTransactions is forwarded to Apple when set.
	ExcludeOldTransactions *bool

	// UserID identifies the Amazon customer. Required for Amazon.
	UserID string

	// DevToken is the Roku developer API token. Required for Roku.
	DevToken string

	// Key is the Google service-account credential. Required for Google,
	// either directly or as raw JSON via KeyObject.
	Key *ServiceAccountKey

	// KeyObject is the raw JSON form of the Google service-account key, as
	// downloaded from the Google API console. Parsed when Key is nil.
	KeyObject []byte
}

// ServiceAccountKey is the subset of a Google service-account credential
// needed to authenticate against the Android Publisher API.
type ServiceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// serviceAccountKey resolves the credential from either the structured or the
// raw JSON form and validates its required fields.
func (p *Payment) serviceAccountKey() (*ServiceAccountKey, error) {
	key := p.Key
	if key == nil {
		if len(p.KeyObject) == 0 {
			return nil, &InvalidArgumentError{Field: "keyObject", Message: "Google API key object must be provided"}
		}
		key = &ServiceAccountKey{}
		if err := json.Unmarshal(p.KeyObject, key); err != nil {
			return nil, &InvalidArgumentError{Field: "keyObject", Message: "Google API key object must be valid JSON: " + err.Error()}
		}
	}
	if key.ClientEmail == "" {
		return nil, &InvalidArgumentError{Field: "keyObject", Message: "Google API client_email must be a string"}
	}
	if key.PrivateKey == "" {
		return nil, &InvalidArgumentError{Field: "keyObject", Message: "Google API private_key must be a string"}
	}
	return key, nil
}

// DeferralInfo describes how far a Google subscription expiry should be
// pushed forward.
type DeferralInfo struct {
	ExpectedExpiryTimeMillis int64 `json:"expectedExpiryTimeMillis"`
	DesiredExpiryTimeMillis  int64 `json:"desiredExpiryTimeMillis"`
}
