package records

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/gateway"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/normalize"
)

// ResumeKey is set in session storage before a token redirect so the load
// resumes once the user is back.
const ResumeKey = "sp:autoload"

// DefaultScopes are requested for list reads.
var DefaultScopes = []string{"Sites.Read.All"}

// ErrNotConfigured is returned when no list is configured.
var ErrNotConfigured = errors.New("records source is not configured")

// TokenSource returns access tokens for the signed-in user.
type TokenSource interface {
	FetchAsUser(ctx context.Context, account *models.Account, scopes []string, opts ...gateway.Option) (gateway.TokenResult, error)
}

// ResumeStore holds the resume marker.
type ResumeStore interface {
	Get(key string) (string, bool)
	Remove(key string)
}

// FieldMapSource provides the current alias table.
type FieldMapSource interface {
	Current() models.FieldMap
}

// StaticFieldMap is a FieldMapSource that never changes.
type StaticFieldMap models.FieldMap

// Current implements FieldMapSource.
func (m StaticFieldMap) Current() models.FieldMap { return models.FieldMap(m) }

// Config identifies the list to read.
type Config struct {
	Hostname string
	SitePath string
	ListID   string
	Scopes   []string
	PageSize int
	MaxPages int
}

// Configured reports whether every list coordinate is set.
func (c Config) Configured() bool {
	return c.Hostname != "" && c.SitePath != "" && c.ListID != ""
}

// Source names the list for display.
func (c Config) Source(siteID string) string {
	if siteID != "" {
		return "sharepoint-list:" + siteID
	}
	return "sharepoint-list:" + c.ListID
}

// Result is one completed load.
type Result struct {
	FetchedAt     time.Time
	Site          *Site
	Items         []models.RawListItem
	Rows          []models.LogicalRow
	GrantedScopes []string
	Truncated     bool
}

// Service loads list records for the active account.
type Service struct {
	client   *Client
	tokens   TokenSource
	resume   ResumeStore
	fieldMap FieldMapSource
	now      func() time.Time
	cfg      Config

	mu   sync.RWMutex
	last *Result
}

// New creates a records service.
func New(cfg Config, client *Client, tokens TokenSource, resume ResumeStore, fieldMap FieldMapSource) *Service {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if fieldMap == nil {
		fieldMap = StaticFieldMap(nil)
	}
	return &Service{
		cfg:      cfg,
		client:   client,
		tokens:   tokens,
		resume:   resume,
		fieldMap: fieldMap,
		now:      time.Now,
	}
}

// Config returns the list configuration.
func (s *Service) Config() Config { return s.cfg }

// ResumePending reports whether a load was interrupted by a redirect.
func (s *Service) ResumePending() bool {
	if s.resume == nil {
		return false
	}
	v, ok := s.resume.Get(ResumeKey)
	return ok && v == "1"
}

// Load fetches every list item for account and maps them to logical rows.
// A load that needs interaction returns an error matching
// gateway.IsRedirecting unless opts include gateway.WithoutRedirect.
func (s *Service) Load(ctx context.Context, account *models.Account, opts ...gateway.Option) (*Result, error) {
	if !s.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	opts = append([]gateway.Option{gateway.WithResumeHint(ResumeKey)}, opts...)
	tok, err := s.tokens.FetchAsUser(ctx, account, s.cfg.Scopes, opts...)
	if err != nil {
		return nil, err
	}

	site, err := s.client.SiteByPath(ctx, tok.AccessToken, s.cfg.Hostname, s.cfg.SitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve site: %w", err)
	}

	items, truncated, err := s.client.ListItems(ctx, tok.AccessToken, site.ID, s.cfg.ListID, s.cfg.PageSize, s.cfg.MaxPages)
	if err != nil {
		return nil, err
	}

	res := &Result{
		FetchedAt:     s.now(),
		Site:          site,
		Items:         items,
		Rows:          normalize.MapRaw(items, s.fieldMap.Current()),
		GrantedScopes: tok.GrantedScopes,
		Truncated:     truncated,
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	if s.resume != nil {
		s.resume.Remove(ResumeKey)
	}
	logger.Info("records loaded", "site", site.ID, "items", len(items), "truncated", truncated)
	return res, nil
}

// Remap rebuilds the rows of the last load with the current field map.
func (s *Service) Remap() []models.LogicalRow {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last == nil {
		return nil
	}
	return normalize.MapRaw(last.Items, s.fieldMap.Current())
}

// Last returns the last successful load, or nil.
func (s *Service) Last() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
