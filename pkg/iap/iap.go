// Package iap verifies in-app purchase receipts against the Apple, Google
// Play, Amazon and Roku store APIs and normalizes the vendor responses into
// one result shape.
package iap

import (
	"context"

	"github.com/Jeffail/gabs/v2"
)

// Platform names recognized by the default verifier.
const (
	PlatformAmazon = "amazon"
	PlatformApple  = "apple"
	PlatformGoogle = "google"
	PlatformRoku   = "roku"
)

// Adapter verifies a payment against one vendor's store API.
type Adapter interface {
	VerifyPayment(ctx context.Context, payment *Payment) (*Result, error)
}

// SubscriptionCanceler is implemented by adapters whose vendor supports
// cancelling a subscription.
type SubscriptionCanceler interface {
	CancelSubscription(ctx context.Context, payment *Payment) error
}

// SubscriptionDeferrer is implemented by adapters whose vendor supports
// deferring a subscription's expiry.
type SubscriptionDeferrer interface {
	DeferSubscription(ctx context.Context, payment *Payment, info *DeferralInfo) (*gabs.Container, error)
}

// Verifier routes a platform name to its adapter. It performs no I/O itself;
// every failure, including input validation, is delivered through the same
// error return as network failures so callers have a single error path.
type Verifier struct {
	adapters map[string]Adapter
}

// New returns a Verifier with all four store adapters registered, using the
// default net/http transport.
func New() *Verifier {
	return NewWithTransport(NewHTTPTransport())
}

// NewWithTransport returns a Verifier whose adapters share the given
// transport. Used by tests and by callers that need custom HTTP behavior.
func NewWithTransport(transport Transport) *Verifier {
	verifier := &Verifier{adapters: make(map[string]Adapter)}
	verifier.Register(PlatformAmazon, NewAmazonAdapter(transport))
	verifier.Register(PlatformApple, NewAppleAdapter(transport))
	verifier.Register(PlatformGoogle, NewGoogleAdapter(transport))
	verifier.Register(PlatformRoku, NewRokuAdapter(transport))
	return verifier
}

// Register adds or replaces the adapter for a platform name.
func (v *Verifier) Register(platform string, adapter Adapter) {
	v.adapters[platform] = adapter
}

func (v *Verifier) adapter(platform string, payment *Payment) (Adapter, error) {
	if payment == nil {
		return nil, ErrNoPayment
	}
	adapter, ok := v.adapters[platform]
	if !ok {
		return nil, &UnknownPlatformError{Platform: platform}
	}
	return adapter, nil
}

// VerifyPayment verifies the payment with the platform's store and stamps the
// platform name onto the result.
func (v *Verifier) VerifyPayment(ctx context.Context, platform string, payment *Payment) (*Result, error) {
	adapter, err := v.adapter(platform, payment)
	if err != nil {
		return nil, err
	}

	result, err := adapter.VerifyPayment(ctx, payment)
	if err != nil {
		return nil, err
	}

	result.Platform = platform
	return result, nil
}

// CancelSubscription cancels a subscription on platforms that support it.
func (v *Verifier) CancelSubscription(ctx context.Context, platform string, payment *Payment) error {
	adapter, err := v.adapter(platform, payment)
	if err != nil {
		return err
	}

	canceler, ok := adapter.(SubscriptionCanceler)
	if !ok {
		return &UnsupportedOperationError{Platform: platform, Operation: "cancelSubscription"}
	}

	return canceler.CancelSubscription(ctx, payment)
}

// DeferSubscription pushes a subscription's expiry forward on platforms that
// support it and returns the vendor's response body.
func (v *Verifier) DeferSubscription(ctx context.Context, platform string, payment *Payment, info *DeferralInfo) (*gabs.Container, error) {
	adapter, err := v.adapter(platform, payment)
	if err != nil {
		return nil, err
	}

	deferrer, ok := adapter.(SubscriptionDeferrer)
	if !ok {
		return nil, &UnsupportedOperationError{Platform: platform, Operation: "deferSubscription"}
	}

	return deferrer.DeferSubscription(ctx, payment, info)
}
