package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/j-veylop/audit-dashboard-tui/internal/db"
)

// Local is the durable scope, shared by every run of the program.
type Local struct {
	database *db.DB
}

// NewLocal creates the durable scope on top of database.
func NewLocal(database *db.DB) *Local {
	return &Local{database: database}
}

// Get implements Store.
func (l *Local) Get(key string) (string, bool, error) {
	v, err := l.database.GetLocal(key)
	if errors.Is(err, db.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements Store.
func (l *Local) Set(key, value string) error { return l.database.SetLocal(key, value) }

// Remove implements Store.
func (l *Local) Remove(key string) error { return l.database.RemoveLocal(key) }

// Session is the scope of one terminal session. A program restarted in the
// same terminal sees the values of the previous run, a new terminal does not.
type Session struct {
	database *db.DB
	id       string
}

// NewSession creates the scope identified by sessionID.
func NewSession(database *db.DB, sessionID string) *Session {
	return &Session{database: database, id: sessionID}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Get implements Store.
func (s *Session) Get(key string) (string, bool, error) {
	v, err := s.database.GetSession(s.id, key)
	if errors.Is(err, db.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements Store.
func (s *Session) Set(key, value string) error { return s.database.SetSession(s.id, key, value) }

// Remove implements Store.
func (s *Session) Remove(key string) error { return s.database.RemoveSession(s.id, key) }

// Clear drops every value of the session.
func (s *Session) Clear() error { return s.database.ClearSession(s.id) }

// terminalSessionVars identify the hosting terminal session, most specific first.
var terminalSessionVars = []string{
	"TERM_SESSION_ID",
	"WT_SESSION",
	"TMUX_PANE",
	"KITTY_WINDOW_ID",
	"WEZTERM_PANE",
	"WINDOWID",
}

// ResolveSessionID picks the session scope key: an explicit override, else
// an identifier exported by the terminal, else the parent process id.
func ResolveSessionID(override string) string {
	if override != "" {
		return override
	}
	for _, name := range terminalSessionVars {
		if v := os.Getenv(name); v != "" {
			return name + ":" + v
		}
	}
	return fmt.Sprintf("ppid:%d", os.Getppid())
}
