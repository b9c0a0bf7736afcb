// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/aggregate"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/services/records"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

// LoadingNotificationID is the fixed ID for loading notifications.
const LoadingNotificationID = "__loading__"

// maxNotifications caps the toast stack.
const maxNotifications = 10

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Duration  time.Duration
	Type      NotificationType
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial bool
	Records bool
}

// State is shared by the root model and every tab. Tabs read the summary of
// the current filter; loads and filter changes rebuild it.
type State struct {
	mu sync.RWMutex

	now func() time.Time

	account *models.Account
	result  *records.Result
	rows    []models.LogicalRow
	filter  aggregate.Filter
	summary aggregate.Summary
	loadErr string

	Loading     LoadingState
	LastUpdated time.Time
	version     int

	notifications   []Notification
	notificationSeq int
}

// NewState creates the shared state. Initial loading is on until the session
// is established.
func NewState() *State {
	return &State{
		now:           time.Now,
		notifications: make([]Notification, 0),
		Loading:       LoadingState{Initial: true},
	}
}

// SetClock replaces time.Now for summaries.
func (s *State) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case "initial":
		s.Loading.Initial = loading
	case "records":
		s.Loading.Records = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial || s.Loading.Records
}

// IsInitialLoading returns true while the session is being established.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// IsLoadingRecords returns true while a records load is in flight.
func (s *State) IsLoadingRecords() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Records
}

// SetAccount records the active account, or nil.
func (s *State) SetAccount(account *models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account == nil {
		s.account = nil
		return
	}
	clone := account.Clone()
	s.account = &clone
}

// Account returns the active account, or nil.
func (s *State) Account() *models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// SetRecords stores a completed load and rebuilds the summary.
func (s *State) SetRecords(res *records.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.result = res
	s.rows = res.Rows
	s.loadErr = ""
	s.LastUpdated = res.FetchedAt
	s.rebuildLocked()
}

// SetRows replaces the rows of the last load, as after a field map change.
func (s *State) SetRows(rows []models.LogicalRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
	s.rebuildLocked()
}

// ClearRecords forgets every loaded row, as after a logout.
func (s *State) ClearRecords() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = nil
	s.rows = nil
	s.loadErr = ""
	s.LastUpdated = time.Time{}
	s.rebuildLocked()
}

// SetFilter validates and applies a filter.
func (s *State) SetFilter(f aggregate.Filter) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	s.rebuildLocked()
	return nil
}

// Filter returns the active filter.
func (s *State) Filter() aggregate.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Refresh recomputes the summary against the current time, which moves
// follow-ups across the overdue line at midnight.
func (s *State) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		s.rebuildLocked()
	}
}

func (s *State) rebuildLocked() {
	s.summary = aggregate.Build(s.rows, s.filter, s.now())
	s.version++
}

// Summary returns the view model of the current filter.
func (s *State) Summary() aggregate.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Version increases on every summary rebuild.
func (s *State) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// HasRecords reports whether a load completed.
func (s *State) HasRecords() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result != nil
}

// Result returns the last completed load, or nil.
func (s *State) Result() *records.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// TotalRows is the number of rows before filtering.
func (s *State) TotalRows() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// SetLoadError stores the message of a failed load.
func (s *State) SetLoadError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = msg
}

// LoadError returns the message of the last failed load, or "".
func (s *State) LoadError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := fmt.Sprintf("n%d", s.notificationSeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	s.notifications = active
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}
