package iap

import (
	"context"
	"testing"

	"github.com/calmisland/go-testify/assert"
)

func newTestAmazonAdapter(responses ...fakeResponse) (*AmazonAdapter, *fakeTransport) {
	transport := &fakeTransport{responses: responses}
	return NewAmazonAdapter(transport), transport
}

func testAmazonPayment() *Payment {
	return &Payment{
		Secret:  "developer-secret",
		UserID:  "amazon-user",
		Receipt: "receipt-id",
	}
}

func TestAmazonValidatesRequiredFields(t *testing.T) {
	tests := []struct {
		mutate func(p *Payment)
		field  string
	}{
		{func(p *Payment) { p.Secret = "" }, "secret"},
		{func(p *Payment) { p.UserID = "" }, "userId"},
		{func(p *Payment) { p.Receipt = "" }, "receipt"},
	}

	for _, test := range tests {
		adapter, transport := newTestAmazonAdapter()
		payment := testAmazonPayment()
		test.mutate(payment)

		_, err := adapter.VerifyPayment(context.Background(), payment)

		argErr, ok := err.(*InvalidArgumentError)
		if assert.True(t, ok, test.field) {
			assert.Equal(t, test.field, argErr.Field)
		}
		assert.Equal(t, 0, transport.callCount(), test.field)
	}
}

func TestAmazonRequestURL(t *testing.T) {
	adapter, transport := newTestAmazonAdapter(
		fakeResponse{status: 200, body: `{"receiptId": "receipt-id"}`},
	)

	_, err := adapter.VerifyPayment(context.Background(), testAmazonPayment())

	assert.NoError(t, err)
	call := transport.calls[0]
	assert.Equal(t, "GET", call.method)
	assert.Equal(t, amazonBaseURL+"developer-secret/user/amazon-user/receiptId/receipt-id", call.url)
}

func TestAmazonStatusTable(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{400, ErrAmazonInvalidReceipt},
		{496, ErrAmazonInvalidSecret},
		{497, ErrAmazonInvalidUserID},
		{500, ErrAmazonServerError},
		{418, ErrAmazonUnknown},
	}

	for _, test := range tests {
		adapter, _ := newTestAmazonAdapter(fakeResponse{status: test.status, body: ""})

		_, err := adapter.VerifyPayment(context.Background(), testAmazonPayment())

		assert.Equal(t, test.want, err)
	}
}

func TestAmazonEntitlement(t *testing.T) {
	adapter, _ := newTestAmazonAdapter(fakeResponse{status: 200, body: `{
		"receiptId": "q1YqVrJSSs7P1UvMTazKz9PLTCxKTqwsSE0uyczP08tMUdJRykwBijiGBgeFYAgXJeYCxT0dg13dQ1zdQvVdLXzdIkwBkJLSxNTixJLkjMzkxNLcotS8xKzU5ESwtYYGZkamhsbGJoYGQFZmCdCGciNTAwsjC6CxtQA",
		"productId": "com.amazon.subscription",
		"purchaseDate": 1561104377444,
		"renewalDate": 1563696377444
	}`})

	result, err := adapter.VerifyPayment(context.Background(), testAmazonPayment())

	assert.NoError(t, err)
	assert.Equal(t, "com.amazon.subscription", result.ProductID)
	if assert.NotNil(t, result.PurchaseDate) {
		assert.Equal(t, int64(1561104377444), *result.PurchaseDate)
	}
	if assert.NotNil(t, result.ExpirationDate) {
		assert.Equal(t, int64(1563696377444), *result.ExpirationDate)
	}
}

func TestAmazonCancelDateWinsOverRenewalDate(t *testing.T) {
	adapter, _ := newTestAmazonAdapter(fakeResponse{status: 200, body: `{
		"receiptId": "receipt-id",
		"productId": "com.amazon.subscription",
		"purchaseDate": 1561104377444,
		"cancelDate": 1562000000000,
		"renewalDate": 1563696377444
	}`})

	result, err := adapter.VerifyPayment(context.Background(), testAmazonPayment())

	assert.NoError(t, err)
	if assert.NotNil(t, result.ExpirationDate) {
		assert.Equal(t, int64(1562000000000), *result.ExpirationDate)
	}
}

func TestAmazonConsumableHasNoExpiration(t *testing.T) {
	adapter, _ := newTestAmazonAdapter(fakeResponse{status: 200, body: `{
		"receiptId": "receipt-id",
		"productId": "com.amazon.consumable",
		"purchaseDate": 1561104377444
	}`})

	result, err := adapter.VerifyPayment(context.Background(), testAmazonPayment())

	assert.NoError(t, err)
	assert.Equal(t, "receipt-id", result.TransactionID)
	assert.Nil(t, result.ExpirationDate)
}

func TestAmazonMalformedBody(t *testing.T) {
	adapter, _ := newTestAmazonAdapter(fakeResponse{status: 200, body: "<html>"})

	_, err := adapter.VerifyPayment(context.Background(), testAmazonPayment())

	assert.Error(t, err)
}
