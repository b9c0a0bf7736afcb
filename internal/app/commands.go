package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/audit-dashboard-tui/internal/guard"
	"github.com/j-veylop/audit-dashboard-tui/internal/services"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second
)

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// refreshTickCmd schedules the next automatic reload. A non-positive
// interval disables it.
func refreshTickCmd(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		return nil
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return RefreshTickMsg{Time: t}
	})
}

// bootstrapCmd establishes the session for location.
func bootstrapCmd(ctx context.Context, mgr *services.Manager, location string) tea.Cmd {
	return func() tea.Msg {
		b, outcome, err := mgr.Bootstrap(ctx, location)
		return BootstrapDoneMsg{Bootstrapper: b, Outcome: outcome, Err: err}
	}
}

// evaluateGuardCmd runs one guard evaluation.
func evaluateGuardCmd(ctx context.Context, g *guard.Guard) tea.Cmd {
	return func() tea.Msg {
		action, err := g.Evaluate(ctx)
		return GuardEvaluatedMsg{Action: action, Err: err}
	}
}

// retryGuardCmd clears the attempt flag and redirects.
func retryGuardCmd(ctx context.Context, g *guard.Guard) tea.Cmd {
	return func() tea.Msg {
		return GuardRetryMsg{Err: g.Retry(ctx)}
	}
}

// loadRecordsCmd fetches the list. ctx is cancelled when a newer load starts.
func loadRecordsCmd(ctx context.Context, mgr *services.Manager, generation int) tea.Cmd {
	return func() tea.Msg {
		res, err := mgr.LoadRecords(ctx)
		return RecordsLoadedMsg{Result: res, Err: err, Generation: generation}
	}
}

func logoutCmd(ctx context.Context, mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return LogoutDoneMsg{Err: mgr.Logout(ctx)}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

// NotifySuccess returns a command that adds a success notification.
func NotifySuccess(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// NotifyError returns a command that adds an error notification.
func NotifyError(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// NotifyWarning returns a command that adds a warning notification.
func NotifyWarning(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, DefaultNotificationDuration)
}

// NotifyInfo returns a command that adds an info notification.
func NotifyInfo(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}

// Send returns a command that emits msg.
func Send(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
