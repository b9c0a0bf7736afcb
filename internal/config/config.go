// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ClientID              string
	Authority             string
	RedirectURI           string
	PostLogoutRedirectURI string
	LoginScopes           []string
	ListScopes            []string
	GraphBaseURL          string
	SiteHostname          string
	SitePath              string
	ListID                string
	FieldMapPath          string
	SessionID             string
	DatabasePath          string
	LogPath               string
	LogLevel              string
	PageSize              int
	MaxPages              int
	RefreshInterval       time.Duration
	SessionRetention      time.Duration
	Notify                bool
}

// Default values
const (
	defaultAuthority        = "https://login.microsoftonline.com/organizations"
	defaultRedirectURI      = "http://localhost:8400/"
	defaultGraphBaseURL     = "https://graph.microsoft.com/v1.0"
	defaultPageSize         = 200
	defaultMaxPages         = 20
	defaultSessionRetention = 7 * 24 * time.Hour
	defaultLogLevel         = "info"
)

var (
	defaultLoginScopes = []string{"User.Read"}
	defaultListScopes  = []string{"Sites.Read.All"}
)

// ErrMissingClientID is returned when no client id is configured.
var ErrMissingClientID = errors.New("ADT_CLIENT_ID is required (set via env or .env)")

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	redirect := getEnvString("ADT_REDIRECT_URI", defaultRedirectURI)
	cfg := &Config{
		ClientID:              getEnvString("ADT_CLIENT_ID", ""),
		Authority:             getEnvString("ADT_AUTHORITY", defaultAuthority),
		RedirectURI:           redirect,
		PostLogoutRedirectURI: getEnvString("ADT_POST_LOGOUT_REDIRECT_URI", redirect),
		LoginScopes:           getEnvList("ADT_SCOPES", defaultLoginScopes),
		ListScopes:            getEnvList("ADT_LIST_SCOPES", defaultListScopes),
		GraphBaseURL:          getEnvString("ADT_GRAPH_BASE", defaultGraphBaseURL),
		SiteHostname:          getEnvString("ADT_SITE_HOSTNAME", DefaultSiteHostname),
		SitePath:              getEnvString("ADT_SITE_PATH", DefaultSitePath),
		ListID:                getEnvString("ADT_LIST_ID", DefaultListID),
		FieldMapPath:          getEnvString("ADT_FIELD_MAP_PATH", getDefaultConfigPath("fieldmap.json")),
		SessionID:             getEnvString("ADT_SESSION_ID", ""),
		DatabasePath:          getEnvString("DATABASE_PATH", getDefaultConfigPath("adt.db")),
		LogPath:               getEnvString("LOG_PATH", getDefaultConfigPath("adt.log")),
		LogLevel:              getEnvString("LOG_LEVEL", defaultLogLevel),
		PageSize:              getEnvInt("ADT_PAGE_SIZE", defaultPageSize),
		MaxPages:              getEnvInt("ADT_MAX_PAGES", defaultMaxPages),
		RefreshInterval:       getEnvDuration("REFRESH_INTERVAL", 0),
		SessionRetention:      getEnvDuration("ADT_SESSION_RETENTION", defaultSessionRetention),
		Notify:                getEnvBool("ADT_NOTIFY", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return ErrMissingClientID
	}
	if c.PageSize <= 0 || c.PageSize > 999 {
		return fmt.Errorf("ADT_PAGE_SIZE must be between 1 and 999, got %d", c.PageSize)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("ADT_MAX_PAGES must be positive, got %d", c.MaxPages)
	}
	return nil
}

// ListConfigured reports whether the record list coordinates are set.
func (c *Config) ListConfigured() bool {
	return c.SiteHostname != "" && c.SitePath != "" && c.ListID != ""
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "adt", ".env"))
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
		grandparent := filepath.Dir(parent)
		paths = append(paths, filepath.Join(grandparent, ".env"))
	}

	return paths
}

// getDefaultConfigPath returns name inside ~/.config/adt.
func getDefaultConfigPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".config", "adt", name)
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a space or comma separated variable.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return append([]string(nil), defaultValue...)
	}
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
