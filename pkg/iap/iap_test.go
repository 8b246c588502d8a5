package iap

import (
	"context"
	"sync"
	"testing"

	"github.com/Jeffail/gabs/v2"
	"github.com/calmisland/go-testify/assert"
)

type fakeCall struct {
	method  string
	url     string
	headers map[string]string
	body    []byte
}

type fakeResponse struct {
	status int
	body   string
	err    error
}

// fakeTransport answers queued responses in order and records every call.
// When the queue runs out, the last response repeats.
type fakeTransport struct {
	mu        sync.Mutex
	calls     []fakeCall
	responses []fakeResponse
}

func (t *fakeTransport) Request(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, fakeCall{method: method, url: url, headers: headers, body: body})

	index := len(t.calls) - 1
	if index >= len(t.responses) {
		index = len(t.responses) - 1
	}
	response := t.responses[index]
	if response.err != nil {
		return 0, nil, response.err
	}
	return response.status, []byte(response.body), nil
}

func (t *fakeTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

type stubAdapter struct {
	result *Result
	err    error
}

func (a *stubAdapter) VerifyPayment(ctx context.Context, payment *Payment) (*Result, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func emptyReceipt() *gabs.Container {
	return gabs.New()
}

func TestVerifyPaymentWithoutPayment(t *testing.T) {
	transport := &fakeTransport{}
	verifier := NewWithTransport(transport)

	result, err := verifier.VerifyPayment(context.Background(), PlatformApple, nil)

	assert.Nil(t, result)
	assert.Equal(t, ErrNoPayment, err)
	assert.Equal(t, 0, transport.callCount())
}

func TestVerifyPaymentUnknownPlatform(t *testing.T) {
	transport := &fakeTransport{}
	verifier := NewWithTransport(transport)

	result, err := verifier.VerifyPayment(context.Background(), "steam", &Payment{Receipt: "abc"})

	assert.Nil(t, result)
	platformErr, ok := err.(*UnknownPlatformError)
	if assert.True(t, ok) {
		assert.Equal(t, "steam", platformErr.Platform)
	}
	assert.Equal(t, 0, transport.callCount())
}

func TestVerifyPaymentStampsPlatform(t *testing.T) {
	verifier := NewWithTransport(&fakeTransport{})
	verifier.Register("stub", &stubAdapter{result: &Result{
		Receipt:       emptyReceipt(),
		ProductID:     "product-1",
		TransactionID: "txn-1",
	}})

	result, err := verifier.VerifyPayment(context.Background(), "stub", &Payment{Receipt: "abc"})

	assert.NoError(t, err)
	assert.Equal(t, "stub", result.Platform)
	assert.Equal(t, "product-1", result.ProductID)
	assert.Equal(t, "txn-1", result.TransactionID)
}

func TestCancelSubscriptionWithoutPayment(t *testing.T) {
	verifier := NewWithTransport(&fakeTransport{})

	err := verifier.CancelSubscription(context.Background(), PlatformGoogle, nil)

	assert.Equal(t, ErrNoPayment, err)
}

func TestCancelSubscriptionUnsupportedPlatforms(t *testing.T) {
	verifier := NewWithTransport(&fakeTransport{})

	for _, platform := range []string{PlatformApple, PlatformAmazon, PlatformRoku} {
		err := verifier.CancelSubscription(context.Background(), platform, &Payment{Receipt: "abc"})

		opErr, ok := err.(*UnsupportedOperationError)
		if assert.True(t, ok, platform) {
			assert.Equal(t, platform, opErr.Platform)
			assert.Equal(t, "cancelSubscription", opErr.Operation)
		}
	}
}

func TestDeferSubscriptionUnsupportedPlatforms(t *testing.T) {
	verifier := NewWithTransport(&fakeTransport{})

	for _, platform := range []string{PlatformApple, PlatformAmazon, PlatformRoku} {
		result, err := verifier.DeferSubscription(context.Background(), platform, &Payment{Receipt: "abc"}, &DeferralInfo{
			ExpectedExpiryTimeMillis: 1,
			DesiredExpiryTimeMillis:  2,
		})

		assert.Nil(t, result)
		opErr, ok := err.(*UnsupportedOperationError)
		if assert.True(t, ok, platform) {
			assert.Equal(t, "deferSubscription", opErr.Operation)
		}
	}
}

func TestDeferSubscriptionUnknownPlatform(t *testing.T) {
	verifier := NewWithTransport(&fakeTransport{})

	_, err := verifier.DeferSubscription(context.Background(), "xbox", &Payment{Receipt: "abc"}, nil)

	_, ok := err.(*UnknownPlatformError)
	assert.True(t, ok)
}
