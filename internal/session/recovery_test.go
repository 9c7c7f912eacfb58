package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soggo/bounty/internal/kvstore"
	"github.com/soggo/bounty/internal/route"
)

func TestDetectCorruptedStateFindsTokenKeys(t *testing.T) {
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set("sb-bounty-auth-token", "{}"))
	require.NoError(t, kv.Set("bounty:cart", "[]"))

	d := DetectCorruptedState(&AuthError{Kind: KindInvalidToken}, kv)
	require.True(t, d.HasStaleTokens)
	require.Equal(t, []string{"sb-bounty-auth-token"}, d.StaleKeys)
	require.Equal(t, "invalid_token", d.Reason)
}

func TestDetectCorruptedStateIgnoresNetworkFailures(t *testing.T) {
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set("sb-bounty-auth-token", "{}"))

	d := DetectCorruptedState(&AuthError{Kind: KindNetworkFailure}, kv)
	require.False(t, d.HasStaleTokens)
}

func TestDetectCorruptedStateNilError(t *testing.T) {
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set("sb-bounty-auth-token", "{}"))

	require.False(t, DetectCorruptedState(nil, kv).HasStaleTokens)
}

func TestDetectCorruptedStateNoTokens(t *testing.T) {
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set("bounty:cart", "[]"))

	require.False(t, DetectCorruptedState(&AuthError{Kind: KindExpired}, kv).HasStaleTokens)
}

func TestForceCleanupRemovesAuthKeysOnly(t *testing.T) {
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set("sb-bounty-auth-token", "{}"))
	require.NoError(t, kv.Set("sb-bounty-refresh-token", "r"))
	require.NoError(t, kv.Set(route.ReturnToKey, "#/admin"))
	require.NoError(t, kv.Set("bounty:cart", "[]"))
	require.NoError(t, kv.Set("bounty:checkout", "{}"))

	ForceCleanup(kv)

	require.Equal(t, []string{"bounty:cart", "bounty:checkout"}, kv.Keys())
}
