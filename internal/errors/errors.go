// Package errors defines the error taxonomy for the QSTP secure mesh
// transport. Errors are grouped into five classes; callers branch on the
// class with errors.Is while messages stay specific enough for operators.
//
// Classes:
//   - ErrInvalidInput: local contract violations, never retried
//   - ErrLimitExceeded: replayed/stale sequence numbers and oversized
//     sections; the offending item is dropped
//   - ErrVerifyFailed: authentication failures, security-relevant
//   - ErrPrimitiveFailure: a cryptographic primitive misbehaved, fatal
//   - ErrIntegrationError: storage or optimizer integration failed, fatal
package errors

import (
	"errors"
	"fmt"
)

// Class sentinels. Every specific error below wraps exactly one class, so
// errors.Is(err, ErrInvalidInput) matches any invalid-input condition.
var (
	// ErrInvalidInput indicates a local contract violation.
	ErrInvalidInput = errors.New("qstp: invalid input")

	// ErrLimitExceeded indicates a configured limit or window was exceeded.
	ErrLimitExceeded = errors.New("qstp: limit exceeded")

	// ErrVerifyFailed indicates an authentication or verification failure.
	ErrVerifyFailed = errors.New("qstp: verification failed")

	// ErrPrimitiveFailure indicates an underlying primitive failed.
	ErrPrimitiveFailure = errors.New("qstp: primitive failure")

	// ErrIntegrationError indicates a collaborator (store, optimizer,
	// host runtime) failed.
	ErrIntegrationError = errors.New("qstp: integration error")
)

// Invalid-input conditions.
var (
	// ErrEmptyRequest indicates an empty handshake request.
	ErrEmptyRequest = fmt.Errorf("%w: handshake request is empty", ErrInvalidInput)

	// ErrEmptyTopic indicates a route plan without a mesh topic.
	ErrEmptyTopic = fmt.Errorf("%w: mesh topic missing", ErrInvalidInput)

	// ErrTunnelIDMismatch indicates a frame addressed to a different tunnel.
	ErrTunnelIDMismatch = fmt.Errorf("%w: tunnel id mismatch", ErrInvalidInput)

	// ErrRouteHashMismatch indicates a frame stamped with a stale route.
	ErrRouteHashMismatch = fmt.Errorf("%w: route hash mismatch", ErrInvalidInput)

	// ErrRouteEpochMismatch indicates a frame stamped with a stale epoch.
	ErrRouteEpochMismatch = fmt.Errorf("%w: route epoch mismatch", ErrInvalidInput)

	// ErrNonceMismatch indicates a frame nonce inconsistent with its
	// sequence number.
	ErrNonceMismatch = fmt.Errorf("%w: nonce mismatch", ErrInvalidInput)

	// ErrEmptyPathSet indicates a QACE request without viable routes.
	ErrEmptyPathSet = fmt.Errorf("%w: qace path set empty", ErrInvalidInput)

	// ErrInvalidKeySize indicates key material of the wrong length.
	ErrInvalidKeySize = fmt.Errorf("%w: invalid key size", ErrInvalidInput)

	// ErrInvalidEnvelope indicates a malformed handshake envelope.
	ErrInvalidEnvelope = fmt.Errorf("%w: malformed handshake envelope", ErrInvalidInput)

	// ErrUnsupportedSuite indicates an unknown cipher suite identifier.
	ErrUnsupportedSuite = fmt.Errorf("%w: unsupported cipher suite", ErrInvalidInput)

	// ErrMetadataTruncated indicates a tuple metadata record too short to
	// parse.
	ErrMetadataTruncated = fmt.Errorf("%w: tuple metadata truncated", ErrInvalidInput)

	// ErrUnknownQoSClass indicates an unrecognized QoS class byte.
	ErrUnknownQoSClass = fmt.Errorf("%w: unknown qos class", ErrInvalidInput)
)

// Limit conditions.
var (
	// ErrFrameReplayed indicates a frame at or below the receive watermark.
	ErrFrameReplayed = fmt.Errorf("%w: frame replayed", ErrLimitExceeded)

	// ErrSectionTooLarge indicates an envelope section exceeding the
	// uint16 length field.
	ErrSectionTooLarge = fmt.Errorf("%w: envelope section too large", ErrLimitExceeded)

	// ErrBufferTooSmall indicates a caller-supplied buffer shorter than the
	// serialized envelope.
	ErrBufferTooSmall = fmt.Errorf("%w: response buffer too small", ErrLimitExceeded)
)

// Integration conditions.
var (
	// ErrTupleMissing indicates the tuple record is absent from the store.
	ErrTupleMissing = fmt.Errorf("%w: tuple metadata missing from store", ErrIntegrationError)

	// ErrNoActiveKey indicates the key manager has no installed KEM key.
	ErrNoActiveKey = fmt.Errorf("%w: no active KEM key", ErrIntegrationError)

	// ErrOptimizerStalled indicates the genetic optimizer produced no
	// usable candidate.
	ErrOptimizerStalled = fmt.Errorf("%w: optimizer failed to converge", ErrIntegrationError)
)

// CryptoError wraps a primitive failure with the operation that hit it.
type CryptoError struct {
	Op  string // operation that failed
	Err error  // underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a CryptoError classified as a primitive failure
// unless the underlying error already carries a class.
func NewCryptoError(op string, err error) *CryptoError {
	if !hasClass(err) {
		err = fmt.Errorf("%w: %w", ErrPrimitiveFailure, err)
	}
	return &CryptoError{Op: op, Err: err}
}

func hasClass(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrVerifyFailed) ||
		errors.Is(err, ErrPrimitiveFailure) ||
		errors.Is(err, ErrIntegrationError)
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
