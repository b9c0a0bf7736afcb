// Package models defines data structures and domain types.
package models

import (
	"maps"
	"time"
)

// Account is an identity resolved by the identity provider.
// Tokens are owned by the identity client's cache and are not part of the account.
type Account struct {
	LastUsed      time.Time         `json:"lastUsed"`
	Claims        map[string]string `json:"claims,omitempty"`
	HomeAccountID string            `json:"homeAccountId"`
	Username      string            `json:"username"`
	Name          string            `json:"name,omitempty"`
	TenantID      string            `json:"tenantId,omitempty"`
	Environment   string            `json:"environment,omitempty"`
}

// Label returns "Name (username)", falling back to whichever part is set.
func (a *Account) Label() string {
	if a == nil {
		return "User"
	}
	switch {
	case a.Name != "" && a.Username != "":
		return a.Name + " (" + a.Username + ")"
	case a.Name != "":
		return a.Name
	case a.Username != "":
		return a.Username
	default:
		return "User"
	}
}

// SameAs reports whether both accounts refer to the same home account.
func (a *Account) SameAs(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.HomeAccountID == other.HomeAccountID
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() Account {
	clone := Account{
		HomeAccountID: a.HomeAccountID,
		Username:      a.Username,
		Name:          a.Name,
		TenantID:      a.TenantID,
		Environment:   a.Environment,
		LastUsed:      a.LastUsed,
	}

	if a.Claims != nil {
		clone.Claims = make(map[string]string, len(a.Claims))
		maps.Copy(clone.Claims, a.Claims)
	}

	return clone
}
