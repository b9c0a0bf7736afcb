package models

import (
	"slices"
	"time"
)

// TokenEntry is the cached token set of one signed-in account.
type TokenEntry struct {
	ExpiresAt    time.Time
	LastUsed     time.Time
	Account      Account
	RefreshToken string
	AccessToken  string
	Scopes       []string
	// SignedIn is false once the program forgot the account; the refresh
	// token then only serves silent login by username.
	SignedIn     bool
}

// Valid reports whether the access token is usable at now with the given
// margin and covers every requested scope.
func (t *TokenEntry) Valid(now time.Time, margin time.Duration, scopes []string) bool {
	if t == nil || t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return false
	}
	if !now.Add(margin).Before(t.ExpiresAt) {
		return false
	}
	for _, s := range scopes {
		if !slices.Contains(t.Scopes, s) {
			return false
		}
	}
	return true
}
