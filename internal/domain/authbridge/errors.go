package authbridge

import (
	"errors"
	"fmt"
)

// Kind classifies why a login attempt did not produce a session.
type Kind string

const (
	KindProvider          Kind = "provider_error"
	KindTransport         Kind = "transport_error"
	KindBackendRejected   Kind = "backend_rejected"
	KindMalformedResponse Kind = "malformed_response"
)

// Sentinel errors for deterministic HTTP mapping.
var (
	ErrProvider          = errors.New("identity provider did not produce a credential")
	ErrTransport         = errors.New("exchange request failed")
	ErrBackendRejected   = errors.New("backend rejected the credential")
	ErrMalformedResponse = errors.New("backend returned a malformed session")
)

// Error is the single failure shape returned by Exchange.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error kind.
func (e *Error) Is(target error) bool {
	return sentinelFor(e.Kind) == target
}

// KindOf reports the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}

func sentinelFor(kind Kind) error {
	switch kind {
	case KindProvider:
		return ErrProvider
	case KindTransport:
		return ErrTransport
	case KindBackendRejected:
		return ErrBackendRejected
	case KindMalformedResponse:
		return ErrMalformedResponse
	}
	return nil
}

// NewProviderError reports a provider-side failure such as a canceled popup.
func NewProviderError(message string, cause error) *Error {
	return &Error{Kind: KindProvider, Message: message, Err: cause}
}

func transportError(cause error) *Error {
	return &Error{Kind: KindTransport, Err: cause}
}

func rejected(status int, message string) *Error {
	return &Error{Kind: KindBackendRejected, StatusCode: status, Message: message}
}

func malformed(message string, cause error) *Error {
	return &Error{Kind: KindMalformedResponse, Message: message, Err: cause}
}
