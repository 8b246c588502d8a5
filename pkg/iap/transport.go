package iap

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// Transport performs a single HTTP round-trip for an adapter. A non-2xx
// status is not an error here; errors are reserved for transport-level
// failures (DNS, TLS, connection reset) so adapters can tell the two apart.
// Timeouts and retries at this layer are the implementation's concern.
type Transport interface {
	Request(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error)
}

// HTTPTransport is the default Transport backed by net/http.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport returns a Transport using http.DefaultClient.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{Client: http.DefaultClient}
}

// Request implements Transport.
func (t *HTTPTransport) Request(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}

	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, responseBody, nil
}
