package session

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrBreakerOpen is the distinguished fail-fast error returned while the
// refresh circuit is open.
var ErrBreakerOpen = errors.New("auth circuit open: too many recent failures")

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidToken
	KindExpired
	KindMalformed
	KindNetworkFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidToken:
		return "invalid_token"
	case KindExpired:
		return "expired"
	case KindMalformed:
		return "malformed"
	case KindNetworkFailure:
		return "network_failure"
	default:
		return "unknown"
	}
}

// AuthError is the typed result of classifying a backend failure. Call
// sites branch on Kind, never on message text.
type AuthError struct {
	Kind    ErrorKind
	Message string
}

func (e *AuthError) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// Corruption reports whether the error indicates locally-held auth state
// that can no longer be trusted.
func (e *AuthError) Corruption() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindInvalidToken, KindExpired, KindMalformed:
		return true
	}
	return false
}

// Classify is the single point where loose errors from outside the typed
// boundary are translated. Backends that already return *AuthError pass
// through unchanged.
func Classify(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &AuthError{Kind: KindNetworkFailure, Message: err.Error()}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "expired"):
		return &AuthError{Kind: KindExpired, Message: msg}
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "corrupt"):
		return &AuthError{Kind: KindMalformed, Message: msg}
	case strings.Contains(msg, "Invalid"), strings.Contains(msg, "invalid token"):
		return &AuthError{Kind: KindInvalidToken, Message: msg}
	default:
		return &AuthError{Kind: KindUnknown, Message: msg}
	}
}
