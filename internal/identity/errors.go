package identity

import (
	"errors"
	"fmt"
)

// Error codes reported by the identity client.
const (
	CodeNoTokenRequestCache = "no_token_request_cache_error"
	CodeLoginRequired       = "login_required"
	CodeInteractionRequired = "interaction_required"
	CodeConsentRequired     = "consent_required"
	CodeNoTokensFound       = "no_tokens_found"
	CodeInvalidGrant        = "invalid_grant"
	CodeNoAccount           = "no_account_error"
	CodeNotInitialized      = "uninitialized_public_client_application"
	CodeStateMismatch       = "state_mismatch"
	CodeNonceMismatch       = "nonce_mismatch"
)

// ErrNoNavigator is returned when a redirect is requested but the client has
// no way to open the authorization page.
var ErrNoNavigator = errors.New("no navigator configured")

// AuthError is an identity failure carrying a protocol error code.
type AuthError struct {
	Err         error
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	switch {
	case e.Description != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return e.Code
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// InteractionRequiredError reports that a token can only be obtained with
// user interaction.
type InteractionRequiredError struct {
	AuthError
}

// NewAuthError builds an AuthError.
func NewAuthError(code, description string) *AuthError {
	return &AuthError{Code: code, Description: description}
}

// NewInteractionRequired builds an InteractionRequiredError.
func NewInteractionRequired(code, description string) *InteractionRequiredError {
	return &InteractionRequiredError{AuthError{Code: code, Description: description}}
}

// ErrorCode extracts the protocol error code from err, or "".
func ErrorCode(err error) string {
	var ire *InteractionRequiredError
	if errors.As(err, &ire) {
		return ire.Code
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsInteractionRequired reports whether err means the user has to interact:
// the typed error or one of the login, interaction or consent codes.
func IsInteractionRequired(err error) bool {
	if err == nil {
		return false
	}
	var ire *InteractionRequiredError
	if errors.As(err, &ire) {
		return true
	}
	switch ErrorCode(err) {
	case CodeLoginRequired, CodeInteractionRequired, CodeConsentRequired:
		return true
	}
	return false
}
