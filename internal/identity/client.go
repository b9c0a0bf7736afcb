// Package identity is the identity collaborator: an OpenID Connect public
// client using the authorization code flow with PKCE and redirects through
// the system browser.
package identity

import (
	"context"
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// Client is the identity client contract the session layer relies on.
type Client interface {
	Initialize(ctx context.Context) error
	// HandleRedirectPromise completes a pending redirect if location carries
	// an authorization response. It returns nil, nil when there is none.
	HandleRedirectPromise(ctx context.Context, location string) (*AuthResult, error)
	AcquireTokenSilent(ctx context.Context, req TokenRequest) (*AuthResult, error)
	AcquireTokenRedirect(ctx context.Context, req TokenRequest) error
	LoginRedirect(ctx context.Context, req LoginRequest) error
	LogoutRedirect(ctx context.Context, account *models.Account) error
	SSOSilent(ctx context.Context, req SSORequest) (*AuthResult, error)
	GetAllAccounts() []models.Account
	GetActiveAccount() *models.Account
	SetActiveAccount(account *models.Account)
	// InteractionInProgress reports whether a redirect was issued and has
	// not completed yet.
	InteractionInProgress() bool
	// AddEventCallback subscribes to client events and returns a function
	// removing the subscription.
	AddEventCallback(fn func(Event)) (remove func())
}

// AuthResult is the outcome of a successful token or login operation.
type AuthResult struct {
	ExpiresOn   time.Time
	Account     *models.Account
	AccessToken string
	IDToken     string
	Scopes      []string
}

// TokenRequest asks for an access token for an account.
type TokenRequest struct {
	Account *models.Account
	Scopes  []string
}

// LoginRequest starts an interactive login.
type LoginRequest struct {
	Scopes    []string
	LoginHint string
	Prompt    string
}

// SSORequest asks for a silent login using an existing provider session.
type SSORequest struct {
	Scopes    []string
	LoginHint string
}

// Prompt values for LoginRequest.
const (
	PromptSelectAccount = "select_account"
	PromptLogin         = "login"
	PromptNone          = "none"
)

// EventType identifies a client event.
type EventType int

const (
	// EventLoginSuccess follows a completed login redirect.
	EventLoginSuccess EventType = iota
	// EventAcquireTokenSuccess follows any successful token acquisition.
	EventAcquireTokenSuccess
	// EventSSOSilentSuccess follows a successful silent login.
	EventSSOSilentSuccess
	// EventLogoutSuccess follows a logout.
	EventLogoutSuccess
	// EventLoginFailure follows a failed login redirect.
	EventLoginFailure
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventLoginSuccess:
		return "login_success"
	case EventAcquireTokenSuccess:
		return "acquire_token_success"
	case EventSSOSilentSuccess:
		return "sso_silent_success"
	case EventLogoutSuccess:
		return "logout_success"
	case EventLoginFailure:
		return "login_failure"
	default:
		return "unknown"
	}
}

// Event is delivered to callbacks registered with AddEventCallback.
type Event struct {
	Err     error
	Account *models.Account
	Type    EventType
}
