package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyNil(t *testing.T) {
	require.Nil(t, Classify(nil))
}

func TestClassifyPassesThroughTypedErrors(t *testing.T) {
	original := &AuthError{Kind: KindExpired, Message: "expired"}
	require.Same(t, original, Classify(original))
	require.Same(t, original, Classify(fmt.Errorf("wrapped: %w", original)))
}

func TestClassifyNetworkErrors(t *testing.T) {
	var netErr net.Error = &net.DNSError{Err: "no such host", IsTimeout: false}
	require.Equal(t, KindNetworkFailure, Classify(netErr).Kind)
	require.Equal(t, KindNetworkFailure, Classify(context.DeadlineExceeded).Kind)
}

func TestClassifyByMessage(t *testing.T) {
	require.Equal(t, KindExpired, Classify(errors.New("JWT expired")).Kind)
	require.Equal(t, KindMalformed, Classify(errors.New("token is malformed")).Kind)
	require.Equal(t, KindMalformed, Classify(errors.New("corrupt session payload")).Kind)
	require.Equal(t, KindInvalidToken, Classify(errors.New("Invalid login credentials")).Kind)
	require.Equal(t, KindInvalidToken, Classify(errors.New("invalid token signature")).Kind)
	require.Equal(t, KindUnknown, Classify(errors.New("something else")).Kind)
}

func TestCorruption(t *testing.T) {
	require.True(t, (&AuthError{Kind: KindInvalidToken}).Corruption())
	require.True(t, (&AuthError{Kind: KindExpired}).Corruption())
	require.True(t, (&AuthError{Kind: KindMalformed}).Corruption())
	require.False(t, (&AuthError{Kind: KindNetworkFailure}).Corruption())
	require.False(t, (&AuthError{Kind: KindUnknown}).Corruption())

	var nilErr *AuthError
	require.False(t, nilErr.Corruption())
}

func TestErrorString(t *testing.T) {
	e := &AuthError{Kind: KindExpired, Message: "token past its exp claim"}
	require.Equal(t, "expired: token past its exp claim", e.Error())
}

func TestKindString(t *testing.T) {
	require.Equal(t, "invalid_token", KindInvalidToken.String())
	require.Equal(t, "network_failure", KindNetworkFailure.String())
	require.Equal(t, "unknown", ErrorKind(99).String())
}
