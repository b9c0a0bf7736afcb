package app

import (
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/guard"
	"github.com/j-veylop/audit-dashboard-tui/internal/services"
	"github.com/j-veylop/audit-dashboard-tui/internal/services/records"
	"github.com/j-veylop/audit-dashboard-tui/internal/session"
)

// TickMsg is sent periodically to expire notifications.
type TickMsg struct {
	Time time.Time
}

// RefreshTickMsg is sent every REFRESH_INTERVAL while the dashboard runs.
type RefreshTickMsg struct {
	Time time.Time
}

// BootstrapDoneMsg carries the result of establishing the session.
type BootstrapDoneMsg struct {
	Err          error
	Bootstrapper *session.Bootstrapper
	Outcome      session.Outcome
}

// GuardEvaluatedMsg carries the decision of the login guard.
type GuardEvaluatedMsg struct {
	Err    error
	Action guard.Action
}

// GuardRetryMsg carries the result of a manual sign-in retry.
type GuardRetryMsg struct {
	Err error
}

// LoadRecordsMsg asks the root model to start a records load.
type LoadRecordsMsg struct{}

// RecordsLoadedMsg carries a finished records load. Generation identifies
// the load; results of superseded loads are dropped.
type RecordsLoadedMsg struct {
	Err        error
	Result     *records.Result
	Generation int
}

// RecordsChangedMsg tells tabs that the summary was rebuilt.
type RecordsChangedMsg struct{}

// FilterChangedMsg tells tabs that the filter changed.
type FilterChangedMsg struct{}

// LogoutMsg asks the root model to sign out.
type LogoutMsg struct{}

// LogoutDoneMsg carries the result of a logout.
type LogoutDoneMsg struct {
	Err error
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// AddNotificationMsg adds a notification.
type AddNotificationMsg struct {
	Message  string
	Duration time.Duration
	Type     NotificationType
}

// RemoveNotificationMsg removes a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearExpiredNotificationsMsg removes expired notifications.
type ClearExpiredNotificationsMsg struct{}

// ErrorMsg reports an error as a notification.
type ErrorMsg struct {
	Error error
}

// TabSwitchMsg switches the active tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help overlay.
type ToggleHelpMsg struct{}

// SubscriptionEventMsg carries the service event channel after subscribing.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ServiceEventMsg wraps a service event.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}
