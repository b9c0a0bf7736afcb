package identity

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// idClaims are the ID token claims an account is built from.
type idClaims struct {
	Subject           string `json:"sub"`
	ObjectID          string `json:"oid"`
	TenantID          string `json:"tid"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	UPN               string `json:"upn"`
}

func (c idClaims) username() string {
	for _, v := range []string{c.PreferredUsername, c.Email, c.UPN} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// homeAccountID is "oid.tid" when the provider issues both, else the subject.
func (c idClaims) homeAccountID() string {
	if c.ObjectID != "" && c.TenantID != "" {
		return c.ObjectID + "." + c.TenantID
	}
	return c.Subject
}

func accountFromIDToken(tok *oidc.IDToken) (*models.Account, error) {
	var c idClaims
	if err := tok.Claims(&c); err != nil {
		return nil, fmt.Errorf("identity: decode id_token claims: %w", err)
	}
	acc := accountFromClaims(c, tok.Issuer)
	if acc.HomeAccountID == "" {
		return nil, NewAuthError("invalid_id_token", "id_token carries no subject")
	}
	return acc, nil
}

func accountFromClaims(c idClaims, issuer string) *models.Account {
	acc := &models.Account{
		HomeAccountID: c.homeAccountID(),
		Username:      c.username(),
		Name:          c.Name,
		TenantID:      c.TenantID,
		Claims:        map[string]string{"sub": c.Subject},
	}
	if u, err := url.Parse(issuer); err == nil {
		acc.Environment = u.Host
	}
	if c.ObjectID != "" {
		acc.Claims["oid"] = c.ObjectID
	}
	return acc
}
