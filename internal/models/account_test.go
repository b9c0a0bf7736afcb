package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_Label(t *testing.T) {
	tests := []struct {
		name    string
		account *Account
		want    string
	}{
		{"NameAndUsername", &Account{Name: "Rina", Username: "rina@example.com"}, "Rina (rina@example.com)"},
		{"NameOnly", &Account{Name: "Rina"}, "Rina"},
		{"UsernameOnly", &Account{Username: "rina@example.com"}, "rina@example.com"},
		{"Empty", &Account{}, "User"},
		{"Nil", nil, "User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.Label())
		})
	}
}

func TestAccount_SameAs(t *testing.T) {
	a := &Account{HomeAccountID: "oid.tid"}
	b := &Account{HomeAccountID: "oid.tid", Username: "other"}
	c := &Account{HomeAccountID: "x.tid"}

	assert.True(t, a.SameAs(b))
	assert.False(t, a.SameAs(c))
	assert.False(t, a.SameAs(nil))

	var nilAcc *Account
	assert.True(t, nilAcc.SameAs(nil))
}

func TestAccount_Clone(t *testing.T) {
	original := Account{
		HomeAccountID: "oid.tid",
		Username:      "rina@example.com",
		Name:          "Rina",
		TenantID:      "tid",
		LastUsed:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Claims:        map[string]string{"oid": "oid"},
	}

	clone := original.Clone()
	require.Equal(t, original, clone)

	clone.Claims["oid"] = "changed"
	assert.Equal(t, "oid", original.Claims["oid"], "clone must not share the claims map")
}
