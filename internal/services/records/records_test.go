package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/audit-dashboard-tui/internal/gateway"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/storage"
)

// fakeGraph serves a site and a paginated list with pages items each.
type fakeGraph struct {
	srv      *httptest.Server
	pages    int
	requests atomic.Int32
	siteID   string
}

func newFakeGraph(t *testing.T, pages int) *fakeGraph {
	t.Helper()
	g := &fakeGraph{pages: pages, siteID: "contoso.sharepoint.com,abc,def"}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGraph) serve(w http.ResponseWriter, r *http.Request) {
	g.requests.Add(1)
	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasPrefix(r.URL.Path, "/sites/contoso.sharepoint.com:/"):
		_ = json.NewEncoder(w).Encode(map[string]string{"id": g.siteID, "displayName": "Audit"})
	case strings.HasSuffix(r.URL.Path, "/items"):
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			_, _ = fmt.Sscanf(p, "%d", &page)
		}
		body := map[string]any{
			"value": []map[string]any{{
				"id": fmt.Sprintf("%d", page),
				"fields": map[string]any{
					"Title":              fmt.Sprintf("Finding %d", page),
					"Area":               "Warehouse",
					"Audit_x0020_Status": "Open",
					"field_7":            4,
				},
			}},
		}
		if page < g.pages {
			body["@odata.nextLink"] = fmt.Sprintf("%s%s?page=%d", g.srv.URL, r.URL.Path, page+1)
		}
		_ = json.NewEncoder(w).Encode(body)
	default:
		http.NotFound(w, r)
	}
}

type stubTokens struct {
	err   error
	calls int
	opts  int
}

func (s *stubTokens) FetchAsUser(_ context.Context, _ *models.Account, _ []string, opts ...gateway.Option) (gateway.TokenResult, error) {
	s.calls++
	s.opts = len(opts)
	if s.err != nil {
		return gateway.TokenResult{}, s.err
	}
	return gateway.TokenResult{AccessToken: "tok", GrantedScopes: []string{"Sites.Read.All"}}, nil
}

var testConfig = Config{
	Hostname: "contoso.sharepoint.com",
	SitePath: "/sites/Audit/",
	ListID:   "{1234-abcd}",
}

func TestURLs(t *testing.T) {
	c := NewClient("", nil)
	assert.Equal(t, "https://graph.microsoft.com/v1.0/sites/contoso.sharepoint.com:/sites/Audit:/",
		c.SiteByPathURL(" contoso.sharepoint.com ", "//sites/Audit//"))
	assert.Equal(t, "https://graph.microsoft.com/v1.0/sites/site-1/lists/1234-abcd/items?$expand=fields&$top=200",
		c.ListItemsURL("site-1", " {1234-abcd} ", 0))
	assert.Equal(t, "https://graph.microsoft.com/v1.0/sites/site-1/lists/l/items?$expand=fields&$top=50",
		c.ListItemsURL("site-1", "l", 50))
}

func TestListItems_FollowsNextLink(t *testing.T) {
	g := newFakeGraph(t, 3)
	c := NewClient(g.srv.URL, g.srv.Client())

	items, truncated, err := c.ListItems(context.Background(), "tok", "site", "list", 1, 10)
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, items, 3)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "3", items[2].ID)
	assert.Equal(t, json.Number("4"), items[0].Fields["field_7"])
}

func TestListItems_StopsAtPageCap(t *testing.T) {
	g := newFakeGraph(t, 5)
	c := NewClient(g.srv.URL, g.srv.Client())

	items, truncated, err := c.ListItems(context.Background(), "tok", "site", "list", 1, 2)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(2), g.requests.Load())
}

func TestGetJSON_GraphError(t *testing.T) {
	g := newFakeGraph(t, 1)
	c := NewClient(g.srv.URL, g.srv.Client())

	_, err := c.SiteByPath(context.Background(), "wrong", "contoso.sharepoint.com", "sites/Audit")
	require.Error(t, err)
	var ge *GraphError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusUnauthorized, ge.Status)
	assert.Contains(t, err.Error(), "graph error 401")
}

func TestSiteByPath_NoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).SiteByPath(context.Background(), "tok", "h", "p")
	assert.ErrorIs(t, err, ErrNoSiteID)
}

func TestListItems_ContextCanceled(t *testing.T) {
	g := newFakeGraph(t, 3)
	c := NewClient(g.srv.URL, g.srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.ListItems(ctx, "tok", "site", "list", 1, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_Load(t *testing.T) {
	g := newFakeGraph(t, 2)
	resume := storage.NewSafe("session", storage.NewMemory())
	resume.Set(ResumeKey, "1")
	tokens := &stubTokens{}
	fieldMap := StaticFieldMap{models.FieldAuditScore: {"field_7"}}

	svc := New(testConfig, NewClient(g.srv.URL, g.srv.Client()), tokens, resume, fieldMap)
	assert.True(t, svc.ResumePending())

	res, err := svc.Load(context.Background(), &models.Account{HomeAccountID: "a"})
	require.NoError(t, err)
	assert.Equal(t, g.siteID, res.Site.ID)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Finding 1", res.Rows[0].Title())
	assert.Equal(t, "Open", res.Rows[0].Get(models.FieldAuditStatus))
	assert.Equal(t, json.Number("4"), res.Rows[0].Get(models.FieldAuditScore))
	assert.Equal(t, []string{"Sites.Read.All"}, res.GrantedScopes)
	assert.Equal(t, 1, tokens.opts, "resume hint requested")

	assert.False(t, svc.ResumePending())
	assert.Same(t, res, svc.Last())
	assert.Len(t, svc.Remap(), 2)
	assert.Equal(t, "sharepoint-list:"+g.siteID, svc.Config().Source(res.Site.ID))
}

func TestService_LoadRedirecting(t *testing.T) {
	g := newFakeGraph(t, 1)
	resume := storage.NewSafe("session", storage.NewMemory())
	resume.Set(ResumeKey, "1")
	tokens := &stubTokens{err: gateway.ErrRedirecting}

	svc := New(testConfig, NewClient(g.srv.URL, g.srv.Client()), tokens, resume, nil)
	_, err := svc.Load(context.Background(), &models.Account{HomeAccountID: "a"})
	assert.True(t, gateway.IsRedirecting(err))
	assert.Equal(t, int32(0), g.requests.Load())
	assert.True(t, svc.ResumePending(), "marker survives until a load succeeds")
	assert.Nil(t, svc.Last())
	assert.Nil(t, svc.Remap())
}

func TestService_NotConfigured(t *testing.T) {
	svc := New(Config{}, NewClient("", nil), &stubTokens{}, nil, nil)
	_, err := svc.Load(context.Background(), &models.Account{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, svc.ResumePending())
	assert.Equal(t, "sharepoint-list:", svc.Config().Source(""))
}
