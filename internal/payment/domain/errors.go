package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the repository and gateway adapters.
var (
	// ErrSignatureVerification means a gateway response or notification
	// failed platform-certificate verification and must be rejected.
	ErrSignatureVerification = errors.New("signature verification failed")

	// ErrDuplicateOrder means an order with the same out_order_no
	// already exists. The storage layer enforces the unique index.
	ErrDuplicateOrder = errors.New("duplicate out_order_no")

	// ErrStaleOrder means a conditional update matched no row because a
	// concurrent writer got there first. Callers re-fetch before retrying.
	ErrStaleOrder = errors.New("stale order state")
)

// ValidationError reports bad input shape or bounds.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Msg
}

// InvalidAmountError reports a non-positive payment amount.
type InvalidAmountError struct {
	Cents int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount: %d fen, must be greater than 0", e.Cents)
}

// OrderNotFoundError reports a lookup miss.
type OrderNotFoundError struct {
	Key string
}

func (e *OrderNotFoundError) Error() string {
	return "payment order not found: " + e.Key
}

// InvalidStateError reports an illegal lifecycle transition.
type InvalidStateError struct {
	Expected string
	Actual   PaymentState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid payment state: expected %s, got %s", e.Expected, e.Actual)
}

// GatewayError reports a non-2xx or malformed WeChat Pay API response.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("wechat pay api error: status %d: %s", e.Status, e.Body)
}

// CryptoError reports a key load, signing or AEAD failure. Not retryable.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto error: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// StorageError wraps a database failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SerializationError wraps an encoding/decoding failure.
type SerializationError struct {
	Op  string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error: %s: %v", e.Op, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// ConfigurationError reports invalid or missing process configuration.
// Fatal at startup, never retried.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// InternalError wraps failures that have no better classification.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s: %v", e.Msg, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
