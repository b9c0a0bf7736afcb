package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/j-veylop/audit-dashboard-tui/internal/db"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

const (
	// requestKeyPrefix prefixes request cache entries, keyed by state.
	requestKeyPrefix = "adt:request:"

	// expiryMargin is how long before expiry a cached access token is renewed.
	expiryMargin = 5 * time.Minute

	// defaultTokenLifetime applies when the provider omits expires_in.
	defaultTokenLifetime = time.Hour
)

// baseScopes are requested with every login.
var baseScopes = []string{oidc.ScopeOpenID, "profile", oidc.ScopeOfflineAccess}

// RequestStore holds pending authorization requests between the redirect and
// the response. The session storage scope satisfies it.
type RequestStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// TokenCache persists token sets per account.
type TokenCache interface {
	UpsertToken(entry *models.TokenEntry) error
	GetToken(homeAccountID string) (*models.TokenEntry, error)
	GetTokenByUsername(username string) (*models.TokenEntry, error)
	ListSignedIn() ([]models.TokenEntry, error)
	TouchToken(homeAccountID string, at time.Time) error
	DeleteToken(homeAccountID string) error
	SignOutAll() error
}

// Config configures an OIDCClient.
type Config struct {
	Authority             string
	ClientID              string
	RedirectURI           string
	PostLogoutRedirectURI string
	Scopes                []string
}

// Option customizes an OIDCClient.
type Option func(*OIDCClient)

// WithEndpoint skips provider discovery and uses a fixed endpoint and ID
// token verifier.
func WithEndpoint(endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) Option {
	return func(c *OIDCClient) {
		c.presetEndpoint = &endpoint
		c.verifier = verifier
	}
}

// WithHTTPClient sets the client used for discovery and token requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OIDCClient) { c.httpClient = hc }
}

// WithNavigator sets how authorization pages are opened.
func WithNavigator(nav Navigator) Option {
	return func(c *OIDCClient) { c.nav = nav }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *OIDCClient) { c.now = now }
}

// pendingRequest is the request cache entry of one redirect.
type pendingRequest struct {
	CreatedAt    time.Time `json:"createdAt"`
	CodeVerifier string    `json:"codeVerifier"`
	Nonce        string    `json:"nonce"`
	Kind         string    `json:"kind"`
	Scopes       []string  `json:"scopes"`
}

const (
	kindLogin        = "login"
	kindAcquireToken = "acquire_token"
)

// OIDCClient implements Client against an OpenID Connect provider.
type OIDCClient struct {
	mu             sync.RWMutex
	cfg            Config
	requests       RequestStore
	cache          TokenCache
	nav            Navigator
	httpClient     *http.Client
	now            func() time.Time
	presetEndpoint *oauth2.Endpoint
	oauth          *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	endSessionURL  string
	active         *models.Account
	callbacks      map[int]func(Event)
	nextCallback   int
	inProgress     bool
}

// NewOIDCClient validates the configuration and creates a client. Discovery
// happens in Initialize.
func NewOIDCClient(cfg Config, requests RequestStore, cache TokenCache, opts ...Option) (*OIDCClient, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("identity: client id is required")
	}
	if _, err := url.ParseRequestURI(cfg.RedirectURI); err != nil {
		return nil, fmt.Errorf("identity: invalid redirect uri %q: %w", cfg.RedirectURI, err)
	}
	if requests == nil || cache == nil {
		return nil, errors.New("identity: request store and token cache are required")
	}

	c := &OIDCClient{
		cfg:       cfg,
		requests:  requests,
		cache:     cache,
		now:       time.Now,
		callbacks: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.presetEndpoint == nil {
		if _, err := url.ParseRequestURI(cfg.Authority); err != nil {
			return nil, fmt.Errorf("identity: invalid authority %q: %w", cfg.Authority, err)
		}
	}
	return c, nil
}

func (c *OIDCClient) httpContext(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, c.httpClient)
}

// multiTenant reports whether the authority is a multi-tenant alias whose
// discovery document advertises a templated issuer.
func (c *OIDCClient) multiTenant() bool {
	a := strings.ToLower(c.cfg.Authority)
	return strings.Contains(a, "/common") || strings.Contains(a, "/organizations") || strings.Contains(a, "/consumers")
}

// Initialize discovers the provider. It is safe to call more than once.
func (c *OIDCClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.oauth != nil {
		return nil
	}

	endpoint := c.presetEndpoint
	if endpoint == nil {
		dctx := c.httpContext(ctx)
		if c.multiTenant() {
			dctx = oidc.InsecureIssuerURLContext(dctx, c.cfg.Authority)
		}
		provider, err := oidc.NewProvider(dctx, c.cfg.Authority)
		if err != nil {
			return fmt.Errorf("identity: discovery failed: %w", err)
		}
		ep := provider.Endpoint()
		ep.AuthStyle = oauth2.AuthStyleInParams
		endpoint = &ep
		c.verifier = provider.Verifier(&oidc.Config{
			ClientID:        c.cfg.ClientID,
			SkipIssuerCheck: c.multiTenant(),
		})

		var meta struct {
			EndSessionEndpoint string `json:"end_session_endpoint"`
		}
		if err := provider.Claims(&meta); err == nil {
			c.endSessionURL = meta.EndSessionEndpoint
		}
	}

	c.oauth = &oauth2.Config{
		ClientID:    c.cfg.ClientID,
		Endpoint:    *endpoint,
		RedirectURL: c.cfg.RedirectURI,
		Scopes:      mergeScopes(baseScopes, c.cfg.Scopes),
	}
	logger.Debug("identity client initialized", "authority", c.cfg.Authority, "token_url", endpoint.TokenURL)
	return nil
}

func (c *OIDCClient) config(scopes []string) (*oauth2.Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.oauth == nil {
		return nil, NewAuthError(CodeNotInitialized, "Initialize must be called first")
	}
	cfg := *c.oauth
	cfg.Scopes = mergeScopes(c.oauth.Scopes, scopes)
	return &cfg, nil
}

// LoginRedirect opens the authorization page for an interactive login.
func (c *OIDCClient) LoginRedirect(ctx context.Context, req LoginRequest) error {
	return c.beginRedirect(ctx, kindLogin, req.Scopes, req.LoginHint, req.Prompt)
}

// AcquireTokenRedirect opens the authorization page to obtain a token for
// an account interactively.
func (c *OIDCClient) AcquireTokenRedirect(ctx context.Context, req TokenRequest) error {
	hint := ""
	if req.Account != nil {
		hint = req.Account.Username
	}
	return c.beginRedirect(ctx, kindAcquireToken, req.Scopes, hint, "")
}

func (c *OIDCClient) beginRedirect(ctx context.Context, kind string, scopes []string, hint, prompt string) error {
	cfg, err := c.config(scopes)
	if err != nil {
		return err
	}
	if c.nav == nil {
		return ErrNoNavigator
	}

	state := uuid.NewString()
	pending := pendingRequest{
		CreatedAt:    c.now(),
		CodeVerifier: oauth2.GenerateVerifier(),
		Nonce:        uuid.NewString(),
		Kind:         kind,
		Scopes:       cfg.Scopes,
	}
	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("identity: encode request: %w", err)
	}
	c.requests.Set(requestKeyPrefix+state, string(raw))

	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(pending.CodeVerifier),
		oidc.Nonce(pending.Nonce),
	}
	if hint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", hint))
	}
	if prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", prompt))
	}
	authURL := cfg.AuthCodeURL(state, opts...)

	c.setInProgress(true)
	if err := c.nav.Navigate(ctx, authURL); err != nil {
		c.setInProgress(false)
		c.requests.Remove(requestKeyPrefix + state)
		return fmt.Errorf("identity: open authorization page: %w", err)
	}
	logger.Info("redirect issued", "kind", kind, "state", state, "hint", hint != "")
	return nil
}

// HandleRedirectPromise completes the redirect whose response is carried by
// location, in the query or the fragment.
func (c *OIDCClient) HandleRedirectPromise(ctx context.Context, location string) (*AuthResult, error) {
	params := responseParams(location)
	if params.Get("code") == "" && params.Get("error") == "" {
		return nil, nil
	}
	defer c.setInProgress(false)

	state := params.Get("state")
	key := requestKeyPrefix + state

	if code := params.Get("error"); code != "" {
		c.requests.Remove(key)
		err := NewAuthError(code, params.Get("error_description"))
		c.emit(Event{Type: EventLoginFailure, Err: err})
		return nil, err
	}

	raw, ok := c.requests.Get(key)
	if state == "" || !ok {
		return nil, NewAuthError(CodeNoTokenRequestCache, "no cached request matches the response state")
	}
	c.requests.Remove(key)

	var pending pendingRequest
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, &AuthError{Code: CodeNoTokenRequestCache, Description: "cached request is corrupt", Err: err}
	}

	cfg, err := c.config(pending.Scopes)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(c.httpContext(ctx), params.Get("code"), oauth2.VerifierOption(pending.CodeVerifier))
	if err != nil {
		return nil, tokenError(err)
	}

	rawID, _ := token.Extra("id_token").(string)
	if rawID == "" {
		return nil, NewAuthError("missing_id_token", "token response carries no id_token")
	}
	idToken, err := c.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, &AuthError{Code: "invalid_id_token", Err: err}
	}
	if idToken.Nonce != pending.Nonce {
		return nil, NewAuthError(CodeNonceMismatch, "id_token nonce does not match the request")
	}

	account, err := accountFromIDToken(idToken)
	if err != nil {
		return nil, err
	}

	entry := c.entryFromToken(account, token, pending.Scopes, "")
	if err := c.cache.UpsertToken(entry); err != nil {
		return nil, fmt.Errorf("identity: store token: %w", err)
	}

	result := resultFromEntry(entry)
	result.IDToken = rawID

	evt := EventLoginSuccess
	if pending.Kind == kindAcquireToken {
		evt = EventAcquireTokenSuccess
	}
	c.emit(Event{Type: evt, Account: result.Account})
	return result, nil
}

// AcquireTokenSilent returns a cached access token or renews it with the
// refresh token.
func (c *OIDCClient) AcquireTokenSilent(ctx context.Context, req TokenRequest) (*AuthResult, error) {
	if _, err := c.config(nil); err != nil {
		return nil, err
	}
	if req.Account == nil || req.Account.HomeAccountID == "" {
		return nil, NewAuthError(CodeNoAccount, "no account given for silent token acquisition")
	}

	entry, err := c.cache.GetToken(req.Account.HomeAccountID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, NewInteractionRequired(CodeNoTokensFound, "no cached tokens for the account")
	}
	if err != nil {
		return nil, fmt.Errorf("identity: read token cache: %w", err)
	}

	now := c.now()
	if entry.Valid(now, expiryMargin, req.Scopes) {
		if err := c.cache.TouchToken(entry.Account.HomeAccountID, now); err != nil {
			logger.Debug("failed to touch token", "error", err)
		}
		result := resultFromEntry(entry)
		c.emit(Event{Type: EventAcquireTokenSuccess, Account: result.Account})
		return result, nil
	}

	result, err := c.refresh(ctx, entry, req.Scopes)
	if err != nil {
		return nil, err
	}
	c.emit(Event{Type: EventAcquireTokenSuccess, Account: result.Account})
	return result, nil
}

// SSOSilent signs in without interaction, using the provider session kept
// for the hinted username.
func (c *OIDCClient) SSOSilent(ctx context.Context, req SSORequest) (*AuthResult, error) {
	if _, err := c.config(nil); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.LoginHint) == "" {
		return nil, NewInteractionRequired(CodeLoginRequired, "no login hint")
	}

	entry, err := c.cache.GetTokenByUsername(req.LoginHint)
	if errors.Is(err, db.ErrNotFound) {
		return nil, NewInteractionRequired(CodeLoginRequired, "no provider session for the hinted user")
	}
	if err != nil {
		return nil, fmt.Errorf("identity: read token cache: %w", err)
	}

	result, err := c.refresh(ctx, entry, req.Scopes)
	if err != nil {
		return nil, err
	}
	c.emit(Event{Type: EventSSOSilentSuccess, Account: result.Account})
	return result, nil
}

func (c *OIDCClient) refresh(ctx context.Context, entry *models.TokenEntry, scopes []string) (*AuthResult, error) {
	if entry.RefreshToken == "" {
		return nil, NewInteractionRequired(CodeNoTokensFound, "no refresh token for the account")
	}
	cfg, err := c.config(scopes)
	if err != nil {
		return nil, err
	}

	expired := &oauth2.Token{RefreshToken: entry.RefreshToken, Expiry: time.Unix(1, 0)}
	token, err := cfg.TokenSource(c.httpContext(ctx), expired).Token()
	if err != nil {
		return nil, tokenError(err)
	}

	account := entry.Account
	if rawID, _ := token.Extra("id_token").(string); rawID != "" && c.verifier != nil {
		if idToken, err := c.verifier.Verify(ctx, rawID); err == nil {
			if fresh, err := accountFromIDToken(idToken); err == nil && fresh.HomeAccountID == account.HomeAccountID {
				account = *fresh
			}
		}
	}

	updated := c.entryFromToken(&account, token, scopes, entry.RefreshToken)
	if err := c.cache.UpsertToken(updated); err != nil {
		return nil, fmt.Errorf("identity: store token: %w", err)
	}
	return resultFromEntry(updated), nil
}

func (c *OIDCClient) entryFromToken(account *models.Account, token *oauth2.Token, requested []string, previousRefresh string) *models.TokenEntry {
	now := c.now()
	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = now.Add(defaultTokenLifetime)
	}
	refresh := token.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	acc := account.Clone()
	acc.LastUsed = now
	return &models.TokenEntry{
		Account:      acc,
		AccessToken:  token.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiry,
		LastUsed:     now,
		Scopes:       grantedScopes(token, requested),
		SignedIn:     true,
	}
}

// grantedScopes prefers the scope list of the token response.
func grantedScopes(token *oauth2.Token, requested []string) []string {
	if s, ok := token.Extra("scope").(string); ok && strings.TrimSpace(s) != "" {
		return strings.Fields(s)
	}
	return slices.Clone(requested)
}

func resultFromEntry(entry *models.TokenEntry) *AuthResult {
	acc := entry.Account.Clone()
	return &AuthResult{
		Account:     &acc,
		AccessToken: entry.AccessToken,
		Scopes:      slices.Clone(entry.Scopes),
		ExpiresOn:   entry.ExpiresAt,
	}
}

// tokenError classifies a token endpoint failure. Grants the provider
// refuses to honor without the user become InteractionRequiredError.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return fmt.Errorf("identity: token request failed: %w", err)
	}
	switch re.ErrorCode {
	case CodeInvalidGrant:
		ire := NewInteractionRequired(CodeInteractionRequired, re.ErrorDescription)
		ire.Err = err
		return ire
	case CodeLoginRequired, CodeInteractionRequired, CodeConsentRequired:
		ire := NewInteractionRequired(re.ErrorCode, re.ErrorDescription)
		ire.Err = err
		return ire
	case "":
		return &AuthError{Code: "token_request_failed", Err: err}
	default:
		return &AuthError{Code: re.ErrorCode, Description: re.ErrorDescription, Err: err}
	}
}

// LogoutRedirect signs the account out: its tokens are dropped and the
// provider's end-session page is opened when the provider has one.
func (c *OIDCClient) LogoutRedirect(ctx context.Context, account *models.Account) error {
	if account == nil {
		account = c.GetActiveAccount()
	}
	if account != nil {
		if err := c.cache.DeleteToken(account.HomeAccountID); err != nil {
			return fmt.Errorf("identity: drop tokens: %w", err)
		}
	}

	c.mu.Lock()
	if account == nil || c.active.SameAs(account) {
		c.active = nil
	}
	endSession := c.endSessionURL
	c.mu.Unlock()

	c.emit(Event{Type: EventLogoutSuccess, Account: account})

	if endSession == "" || c.nav == nil {
		return nil
	}
	u, err := url.Parse(endSession)
	if err != nil {
		return fmt.Errorf("identity: invalid end session url: %w", err)
	}
	q := u.Query()
	q.Set("client_id", c.cfg.ClientID)
	if c.cfg.PostLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", c.cfg.PostLogoutRedirectURI)
	}
	if account != nil && account.Username != "" {
		q.Set("logout_hint", account.Username)
	}
	u.RawQuery = q.Encode()
	return c.nav.Navigate(ctx, u.String())
}

// ClearCache forgets every signed-in account. Provider sessions stay
// available to SSOSilent.
func (c *OIDCClient) ClearCache() error {
	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
	return c.cache.SignOutAll()
}

// GetAllAccounts returns the signed-in accounts, most recently used first.
func (c *OIDCClient) GetAllAccounts() []models.Account {
	entries, err := c.cache.ListSignedIn()
	if err != nil {
		logger.Warn("failed to list accounts", "error", err)
		return nil
	}
	accounts := make([]models.Account, 0, len(entries))
	for _, e := range entries {
		accounts = append(accounts, e.Account)
	}
	return accounts
}

// GetActiveAccount returns a copy of the active account, or nil.
func (c *OIDCClient) GetActiveAccount() *models.Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return nil
	}
	acc := c.active.Clone()
	return &acc
}

// SetActiveAccount sets or, with nil, clears the active account.
func (c *OIDCClient) SetActiveAccount(account *models.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if account == nil {
		c.active = nil
		return
	}
	acc := account.Clone()
	c.active = &acc
}

// InteractionInProgress implements Client.
func (c *OIDCClient) InteractionInProgress() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inProgress
}

func (c *OIDCClient) setInProgress(v bool) {
	c.mu.Lock()
	c.inProgress = v
	c.mu.Unlock()
}

// AddEventCallback implements Client.
func (c *OIDCClient) AddEventCallback(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextCallback
	c.nextCallback++
	c.callbacks[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.callbacks, id)
		c.mu.Unlock()
	}
}

func (c *OIDCClient) emit(evt Event) {
	c.mu.RLock()
	ids := make([]int, 0, len(c.callbacks))
	for id := range c.callbacks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.callbacks[id])
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}

// responseParams merges the query and fragment parameters of location.
func responseParams(location string) url.Values {
	out := url.Values{}
	if strings.TrimSpace(location) == "" {
		return out
	}
	u, err := url.Parse(location)
	if err != nil {
		return out
	}
	for k, v := range u.Query() {
		out[k] = v
	}
	if frag := u.Fragment; strings.Contains(frag, "=") {
		if i := strings.Index(frag, "?"); i >= 0 {
			frag = frag[i+1:]
		}
		if fq, err := url.ParseQuery(frag); err == nil {
			for k, v := range fq {
				if _, exists := out[k]; !exists {
					out[k] = v
				}
			}
		}
	}
	return out
}

func mergeScopes(base, extra []string) []string {
	out := slices.Clone(base)
	for _, s := range extra {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

var _ Client = (*OIDCClient)(nil)
