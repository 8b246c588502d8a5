package iap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Jeffail/gabs/v2"
	"github.com/calmisland/go-errors"
)

const googleAPIBaseURL = "https://www.googleapis.com"

// GoogleAdapter verifies purchases and manages subscriptions through the
// Android Publisher API. It owns a per-issuer bearer-token cache; one adapter
// instance can serve any number of concurrent calls.
type GoogleAdapter struct {
	Transport  Transport
	TokenURL   string
	APIBaseURL string

	tokens *tokenCache
}

// NewGoogleAdapter returns a GoogleAdapter pointed at the live Google
// endpoints with an empty token cache.
func NewGoogleAdapter(transport Transport) *GoogleAdapter {
	return &GoogleAdapter{
		Transport:  transport,
		TokenURL:   googleTokenURL,
		APIBaseURL: googleAPIBaseURL,
		tokens:     newTokenCache(),
	}
}

func validateGooglePayment(payment *Payment) (*ServiceAccountKey, error) {
	if payment.PackageName == "" {
		return nil, &InvalidArgumentError{Field: "packageName", Message: "package name must be a string"}
	}
	if payment.ProductID == "" {
		return nil, &InvalidArgumentError{Field: "productId", Message: "product ID must be a string"}
	}
	if payment.Receipt == "" {
		return nil, &InvalidArgumentError{Field: "receipt", Message: "receipt must be a string"}
	}
	return payment.serviceAccountKey()
}

// purchaseURL builds an Android Publisher purchases URL. The access token
// rides the query string to match the wire shape the publisher API accepts
// for server-to-server calls.
func (g *GoogleAdapter) purchaseURL(version, kind string, payment *Payment, action, token string) string {
	return fmt.Sprintf("%s/androidpublisher/%s/applications/%s/purchases/%s/%s/tokens/%s%s?access_token=%s",
		g.APIBaseURL,
		version,
		url.PathEscape(payment.PackageName),
		kind,
		url.PathEscape(payment.ProductID),
		url.PathEscape(payment.Receipt),
		action,
		url.QueryEscape(token),
	)
}

// VerifyPayment looks the purchase up on the product-purchase endpoint, or
// the subscription-purchase endpoint when payment.Subscription is set.
func (g *GoogleAdapter) VerifyPayment(ctx context.Context, payment *Payment) (*Result, error) {
	key, err := validateGooglePayment(payment)
	if err != nil {
		return nil, err
	}

	token, err := g.bearerToken(ctx, key)
	if err != nil {
		return nil, err
	}

	kind := "products"
	if payment.Subscription {
		kind = "subscriptions"
	}
	requestURL := g.purchaseURL("v3", kind, payment, "", token)

	status, raw, err := g.Transport.Request(ctx, http.MethodGet, requestURL, nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UnexpectedStatusError{StatusCode: status, Body: string(raw)}
	}

	response, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, errors.Errorf("failed to parse Android Publisher response: %v", err)
	}

	result := &Result{
		Receipt:       response,
		TransactionID: stringValue(fieldData(response, "orderId")),
		// The product-purchase response does not name its own product, so
		// the input is echoed back.
		ProductID: payment.ProductID,
	}

	result.PurchaseDate = parseMillis(fieldData(response, "startTimeMillis"))
	if result.PurchaseDate == nil {
		result.PurchaseDate = parseMillis(fieldData(response, "purchaseTimeMillis"))
	}
	result.ExpirationDate = parseMillis(fieldData(response, "expiryTimeMillis"))

	return result, nil
}

// CancelSubscription stops a subscription from renewing. Google answers a
// successful cancel with 204 and no body.
func (g *GoogleAdapter) CancelSubscription(ctx context.Context, payment *Payment) error {
	key, err := validateGooglePayment(payment)
	if err != nil {
		return err
	}

	token, err := g.bearerToken(ctx, key)
	if err != nil {
		return err
	}

	requestURL := g.purchaseURL("v3", "subscriptions", payment, ":cancel", token)

	status, raw, err := g.Transport.Request(ctx, http.MethodPost, requestURL, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return &UnexpectedStatusError{StatusCode: status, Body: string(raw)}
	}

	return nil
}

func validateDeferralInfo(info *DeferralInfo) error {
	if info == nil {
		return &InvalidArgumentError{Field: "deferralInfo", Message: "deferralInfo must be an object"}
	}
	if info.ExpectedExpiryTimeMillis <= 0 {
		return &InvalidArgumentError{Field: "deferralInfo.expectedExpiryTimeMillis", Message: "expectedExpiryTimeMillis must be a number"}
	}
	if info.DesiredExpiryTimeMillis <= 0 {
		return &InvalidArgumentError{Field: "deferralInfo.desiredExpiryTimeMillis", Message: "desiredExpiryTimeMillis must be a number"}
	}
	if info.DesiredExpiryTimeMillis <= info.ExpectedExpiryTimeMillis {
		return &InvalidArgumentError{Field: "deferralInfo", Message: "desiredExpiryTimeMillis must be greater than expectedExpiryTimeMillis"}
	}
	return nil
}

// DeferSubscription pushes the subscription's expiry forward to the desired
// time. Expiry can only move forward; validation fails before any network
// call otherwise. The defer action still lives on the v2 publisher API.
func (g *GoogleAdapter) DeferSubscription(ctx context.Context, payment *Payment, info *DeferralInfo) (*gabs.Container, error) {
	key, err := validateGooglePayment(payment)
	if err != nil {
		return nil, err
	}
	if err := validateDeferralInfo(info); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{"deferralInfo": info})
	if err != nil {
		return nil, err
	}

	token, err := g.bearerToken(ctx, key)
	if err != nil {
		return nil, err
	}

	requestURL := g.purchaseURL("v2", "subscriptions", payment, ":defer", token)

	headers := map[string]string{"Content-Type": "application/json"}
	status, raw, err := g.Transport.Request(ctx, http.MethodPost, requestURL, headers, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UnexpectedStatusError{StatusCode: status, Body: string(raw)}
	}

	response, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, errors.Errorf("failed to parse subscription defer response: %v", err)
	}

	return response, nil
}
