package iap

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPayment is returned when a nil payment is passed to the verifier.
	ErrNoPayment = errors.New("no payment given")
)

// UnknownPlatformError is returned when no adapter is registered for the
// requested platform name.
type UnknownPlatformError struct {
	Platform string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("platform %s not recognized", e.Platform)
}

// UnsupportedOperationError is returned when the selected adapter does not
// implement the requested operation.
type UnsupportedOperationError struct {
	Platform  string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("platform %s does not have %s method", e.Platform, e.Operation)
}

// InvalidArgumentError is returned when a required payment field is missing
// or malformed. It is always detected before any network call.
type InvalidArgumentError struct {
	Field   string
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return e.Message
}

// UnexpectedStatusError is returned when an HTTP response was received but
// its status code is outside the success set for that endpoint. The raw body
// is carried along for diagnosis.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("received %d status code with body: %s", e.StatusCode, e.Body)
}

// AppleStatusError is returned when the App Store verification endpoint
// answers with a non-success receipt status. The numeric status is preserved
// so callers can act on specific codes.
type AppleStatusError struct {
	Status int
}

func (e *AppleStatusError) Error() string {
	if msg, ok := appleStatusMessages[e.Status]; ok {
		return msg
	}
	return fmt.Sprintf("unknown status code: %d", e.Status)
}

// VendorError is a business-rule failure signalled inside an otherwise
// successful vendor response, such as Roku's in-band errorMessage.
type VendorError struct {
	Message string
}

func (e *VendorError) Error() string {
	return e.Message
}
