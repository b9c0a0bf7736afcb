// Package records reads audit list records from a Microsoft Graph
// compatible list endpoint.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

const (
	// DefaultBaseURL is the Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	// DefaultPageSize is the $top value of list item requests.
	DefaultPageSize = 200

	// DefaultMaxPages bounds pagination.
	DefaultMaxPages = 20

	maxErrorBody = 4 << 10
)

// ErrNoSiteID is returned when the site lookup carries no id.
var ErrNoSiteID = errors.New("site lookup returned no site id")

// GraphError is a non-2xx Graph response.
type GraphError struct {
	Body   string
	Status int
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph error %d: %s", e.Status, e.Body)
}

// Site is the part of a Graph site resource the dashboard needs.
type Site struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

type itemsPage struct {
	NextLink string               `json:"@odata.nextLink"`
	Value    []models.RawListItem `json:"value"`
}

// Client talks to the Graph API with a caller-supplied bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL; a nil
// httpClient gets a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// SiteByPathURL addresses a site by host name and server-relative path.
func (c *Client) SiteByPathURL(hostname, sitePath string) string {
	host := strings.TrimSpace(hostname)
	path := strings.Trim(strings.TrimSpace(sitePath), "/")
	return fmt.Sprintf("%s/sites/%s:/%s:/", c.baseURL, host, path)
}

// ListItemsURL is the first page of a list's items with their fields.
// Braces around the list id are dropped.
func (c *Client) ListItemsURL(siteID, listID string, top int) string {
	if top <= 0 {
		top = DefaultPageSize
	}
	id := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(listID), "{"), "}")
	return fmt.Sprintf("%s/sites/%s/lists/%s/items?$expand=fields&$top=%d", c.baseURL, siteID, id, top)
}

// SiteByPath resolves a site.
func (c *Client) SiteByPath(ctx context.Context, token, hostname, sitePath string) (*Site, error) {
	var site Site
	if err := c.getJSON(ctx, token, c.SiteByPathURL(hostname, sitePath), &site); err != nil {
		return nil, err
	}
	if site.ID == "" {
		return nil, ErrNoSiteID
	}
	return &site, nil
}

// ListItems fetches list items page by page, following @odata.nextLink up
// to maxPages pages. truncated reports whether more pages were left.
func (c *Client) ListItems(ctx context.Context, token, siteID, listID string, pageSize, maxPages int) (items []models.RawListItem, truncated bool, err error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	next := c.ListItemsURL(siteID, listID, pageSize)
	for page := 0; page < maxPages && next != ""; page++ {
		var p itemsPage
		if err := c.getJSON(ctx, token, next, &p); err != nil {
			return nil, false, fmt.Errorf("failed to fetch page %d: %w", page+1, err)
		}
		items = append(items, p.Value...)
		next = p.NextLink
	}
	if next != "" {
		logger.Warn("list pagination stopped at page cap", "max_pages", maxPages, "items", len(items))
	}
	return items, next != "", nil
}

func (c *Client) getJSON(ctx context.Context, token, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &GraphError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse graph response: %w", err)
	}
	return nil
}
