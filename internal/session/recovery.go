package session

import (
	"strings"

	"github.com/soggo/bounty/internal/kvstore"
	"github.com/soggo/bounty/internal/route"
)

// Detection is the result of scanning local storage for auth state that
// contradicts the backend's view of the session.
type Detection struct {
	HasStaleTokens bool
	StaleKeys      []string
	Reason         string
}

func isTokenKey(key string) bool {
	return strings.HasPrefix(key, "sb-") && strings.Contains(key, "auth-token")
}

// DetectCorruptedState flags locally stored tokens only when the last
// refresh error points at untrustworthy credentials. Network failures
// never condemn stored tokens.
func DetectCorruptedState(lastErr *AuthError, store kvstore.Store) Detection {
	if !lastErr.Corruption() || store == nil {
		return Detection{}
	}
	var stale []string
	for _, key := range store.Keys() {
		if isTokenKey(key) {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return Detection{}
	}
	return Detection{
		HasStaleTokens: true,
		StaleKeys:      stale,
		Reason:         lastErr.Kind.String(),
	}
}

// ForceCleanup removes every auth-related key so the next start begins
// from a signed-out baseline.
func ForceCleanup(store kvstore.Store) {
	if store == nil {
		return
	}
	for _, key := range store.Keys() {
		if strings.HasPrefix(key, "sb-") || strings.Contains(key, "auth") || key == route.ReturnToKey {
			store.Delete(key)
		}
	}
}
