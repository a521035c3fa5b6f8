package shipper

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	KindAuthentication  ErrorKind = "authentication"
	KindCarrierRejected ErrorKind = "carrier_rejected"
	KindRemoteFailure   ErrorKind = "remote_failure"
	KindUnsupported     ErrorKind = "unsupported_operation"
	KindValidation      ErrorKind = "validation"
)

// ShipperError represents an error from the carrier or the gateway.
type ShipperError struct {
	Kind       ErrorKind
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is matches another ShipperError by code, or a kind sentinel by kind.
func (e *ShipperError) Is(target error) bool {
	if kind, ok := sentinelKinds[target]; ok {
		return e.Kind == kind
	}
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new ShipperError of the given kind.
func NewShipperError(kind ErrorKind, code, message string) *ShipperError {
	return &ShipperError{
		Kind:    kind,
		Carrier: CarrierName,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// Sentinel errors, one per kind. errors.Is(err, ErrCarrierRejected) holds
// for every ShipperError of that kind.
var (
	// ErrAuthenticationFailed indicates the identity provider rejected the credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrCarrierRejected indicates the carrier answered with an error envelope.
	ErrCarrierRejected = errors.New("carrier rejected request")

	// ErrRemoteFailure indicates a transport failure or an unrecognizable response.
	ErrRemoteFailure = errors.New("remote failure")

	// ErrUnsupportedOperation indicates the protocol lacks the capability.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrValidation indicates an incomplete account configuration.
	ErrValidation = errors.New("validation failed")

	// ErrAccountNotFound indicates the requested account is not registered.
	ErrAccountNotFound = errors.New("account not found")
)

var sentinelKinds = map[error]ErrorKind{
	ErrAuthenticationFailed: KindAuthentication,
	ErrCarrierRejected:      KindCarrierRejected,
	ErrRemoteFailure:        KindRemoteFailure,
	ErrUnsupportedOperation: KindUnsupported,
	ErrValidation:           KindValidation,
}

// NewAuthError creates an authentication failure.
func NewAuthError(message string) *ShipperError {
	return NewShipperError(KindAuthentication, "AUTH_FAILED", message)
}

// NewRemoteError creates a retryable remote failure.
func NewRemoteError(code, message string) *ShipperError {
	return NewShipperError(KindRemoteFailure, code, message).WithRetryable(true)
}

// NewUnsupportedError reports an operation the protocol cannot perform.
func NewUnsupportedError(protocol Protocol, operation string) *ShipperError {
	return NewShipperError(KindUnsupported, "UNSUPPORTED",
		fmt.Sprintf("%s is not available for %s accounts", operation, protocol))
}

// NewValidationError creates a configuration validation failure.
func NewValidationError(code, message string) *ShipperError {
	return NewShipperError(KindValidation, code, message)
}

// CarrierMessage is one code/message pair of a carrier error envelope.
type CarrierMessage struct {
	Code    string
	Message string
}

// CheckCarrierMessages turns an error envelope into a CarrierRejected error.
// Entries without a code are ignored, so an empty or all-nil list is success.
func CheckCarrierMessages(msgs []CarrierMessage) error {
	var b strings.Builder
	first := ""
	for _, m := range msgs {
		if strings.TrimSpace(m.Code) == "" {
			continue
		}
		if first == "" {
			first = m.Code
		}
		fmt.Fprintf(&b, "%s - %s\n", m.Code, m.Message)
	}
	if first == "" {
		return nil
	}
	return NewShipperError(KindCarrierRejected, first, strings.TrimRight(b.String(), "\n"))
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	return errors.Is(err, ErrRemoteFailure)
}

// KindOf returns the kind of a ShipperError in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Kind
	}
	return ""
}
