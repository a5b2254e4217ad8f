package payment

import (
	"errors"
	"fmt"
)

// Kind classifies every failure this layer can surface, so callers never
// pattern-match provider-specific strings.
type Kind string

const (
	KindInvalidProvider  Kind = "INVALID_PROVIDER"
	KindPaymentNotFound  Kind = "PAYMENT_NOT_FOUND"
	KindSignatureInvalid Kind = "SIGNATURE_INVALID"
	KindPaymentFailed    Kind = "PAYMENT_FAILED"
	KindRefundFailed     Kind = "REFUND_FAILED"
	KindOrderAlreadyPaid Kind = "ORDER_ALREADY_PAID"
	KindAmountMismatch   Kind = "AMOUNT_MISMATCH"
	KindProviderError    Kind = "PROVIDER_ERROR"
	KindTimeout          Kind = "TIMEOUT"
	KindValidation       Kind = "VALIDATION_ERROR"
)

// Error is the typed failure for infrastructure faults: bad input, unknown
// provider, signature mismatch, timeout, malformed gateway response.
// Gateway-side business declines are not errors; they come back as results
// with Success=false.
type Error struct {
	Kind     Kind
	Provider string
	Code     string // prefixed native code, e.g. "MOMO_1006"
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func validationErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func signatureErr(provider, message string) *Error {
	return &Error{Kind: KindSignatureInvalid, Provider: provider, Message: message}
}

func providerErr(provider, code, message string) *Error {
	return &Error{Kind: KindProviderError, Provider: provider, Code: code, Message: message}
}

func invalidProviderErr(name string) *Error {
	return &Error{Kind: KindInvalidProvider, Message: "unknown payment provider " + name}
}

func notFoundErr(provider, code, message string) *Error {
	return &Error{Kind: KindPaymentNotFound, Provider: provider, Code: code, Message: message}
}

func wrapErr(kind Kind, provider, message string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, Err: err}
}

// As unwraps err to this package's Error type.
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf reports the classification of err, or the empty Kind when err is nil
// or foreign to this package.
func KindOf(err error) Kind {
	if pe, ok := As(err); ok {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
