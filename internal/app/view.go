package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/audit-dashboard-tui/internal/guard"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/styles"
)

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(fmt.Sprintf("%s Loading...", m.spinner.View())))
		return b.String()
	}

	switch m.phase {
	case phaseFatal:
		b.WriteString(m.renderFatal())
	case phaseBootstrap:
		b.WriteString(m.styles.Content.Render(fmt.Sprintf("%s Signing in...", m.spinner.View())))
	case phaseSignIn:
		b.WriteString(m.renderSignIn())
	default:
		if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
			b.WriteString(m.tabs[m.activeTab].View())
		} else {
			b.WriteString(m.renderPlaceholder())
		}
	}

	mainView := b.String()

	if m.showHelp {
		mainView = m.overlayCentered(mainView, m.renderHelp())
	}

	notifications := m.renderNotifications()
	if len(notifications) > 0 {
		return m.overlayToasts(mainView, notifications)
	}

	return mainView
}

func (m *Model) overlayCentered(mainView string, overlay string) string {
	mainLines := strings.Split(mainView, "\n")
	overlayLines := strings.Split(overlay, "\n")

	overlayHeight := len(overlayLines)
	overlayWidth := lipgloss.Width(overlay)

	y := max((m.height-overlayHeight)/2, 0)
	x := max((m.width-overlayWidth)/2, 0)

	for len(mainLines) < y+overlayHeight && len(mainLines) < m.height {
		mainLines = append(mainLines, "")
	}

	for i, overlayLine := range overlayLines {
		mainY := y + i
		if mainY >= len(mainLines) {
			break
		}

		mainLine := mainLines[mainY]

		left := ansi.Truncate(mainLine, x, "")
		// skip x+overlayWidth cells for the part right of the overlay
		right := ansi.TruncateLeft(mainLine, x+overlayWidth, "")

		if lipgloss.Width(left) < x {
			left += strings.Repeat(" ", x-lipgloss.Width(left))
		}

		mainLines[mainY] = left + overlayLine + right
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderNavbar() string {
	var tabs []string

	if m.phase == phaseReady {
		for i, name := range m.tabNames {
			if TabID(i) == m.activeTab {
				tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", i+1, name)))
			} else {
				tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", i+1, name)))
			}
		}
	} else {
		tabs = append(tabs, m.styles.ActiveTab.Render("Audit Dashboard"))
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	if account := m.state.Account(); account != nil {
		label := m.styles.AccountLabel.Render(account.Label())
		gap := m.width - lipgloss.Width(tabBar) - lipgloss.Width(label) - 2
		if gap > 0 {
			tabBar = tabBar + strings.Repeat(" ", gap) + label
		}
	}

	return m.styles.TabBar.Width(m.width).Render(tabBar)
}

func (m *Model) renderFatal() string {
	var lines []string
	lines = append(lines, m.styles.Error.Bold(true).Render("Cannot start"))
	lines = append(lines, "")
	if m.fatalErr != nil {
		lines = append(lines, m.fatalErr.Error())
	}
	lines = append(lines, "")
	lines = append(lines, m.styles.Subtle.Render("Press q to quit"))

	return m.styles.Content.Render(styles.ErrorPanelStyle.Render(strings.Join(lines, "\n")))
}

func (m *Model) renderSignIn() string {
	var lines []string
	lines = append(lines, m.styles.Title.Render("Sign-in required"))
	lines = append(lines, "")

	switch {
	case m.signedOut:
		lines = append(lines, "You are signed out.")
	case m.guardAction == guard.ActionRedirect || m.guardAction == guard.ActionForcedRetry:
		lines = append(lines, fmt.Sprintf("%s Waiting for the browser to finish signing in...", m.spinner.View()))
	default:
		lines = append(lines, "No account is signed in.")
	}

	if m.guard != nil {
		if msg := m.guard.Message(); msg != "" {
			lines = append(lines, m.styles.Highlight.Render(msg))
		}
		if lastErr := m.guard.LastError(); lastErr != "" {
			lines = append(lines, m.styles.Error.Render("Last error: "+lastErr))
		}
		lines = append(lines, "")
		lines = append(lines, m.renderDiagnostics(m.guard.Diagnostics())...)
	}

	lines = append(lines, "")
	lines = append(lines, m.styles.Subtle.Render("r retry sign-in • x reset session • q quit"))

	return m.styles.Content.Render(m.styles.Panel.Render(strings.Join(lines, "\n")))
}

func (m *Model) renderDiagnostics(d guard.Diagnostics) []string {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	hint := d.LoginHint
	if hint == "" {
		hint = "-"
	}

	rows := [][2]string{
		{"Redirect URI", d.RedirectTarget},
		{"Location", m.location},
		{"Secure context", yesNo(d.SecureContext)},
		{"Cached accounts", fmt.Sprintf("%d", d.CachedAccounts)},
		{"Login hint", hint},
		{"Attempted", yesNo(d.AttemptedFlag)},
		{"In progress", yesNo(d.InProgress)},
		{"Storage degraded", yesNo(d.StorageDegraded)},
	}
	lines := []string{m.styles.Highlight.Render("Diagnostics")}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("  %-17s %s", r[0]+":", r[1]))
	}
	return lines
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return nil
	}

	var toasts []string
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style = m.styles.NotificationSuccess
			prefix = "[OK]"
		case NotificationError:
			style = m.styles.NotificationError
			prefix = "[ERR]"
		case NotificationWarning:
			style = m.styles.NotificationWarning
			prefix = "[WARN]"
		case NotificationInfo:
			style = m.styles.NotificationInfo
			prefix = "[INFO]"
		case NotificationLoading:
			style = m.styles.NotificationInfo
			prefix = m.spinner.View()
		}

		content := style.Render(fmt.Sprintf("%s %s", prefix, n.Message))
		toasts = append(toasts, m.styles.Toast.Render(content))
	}

	return toasts
}

func (m *Model) overlayToasts(mainView string, toasts []string) string {
	if len(toasts) == 0 {
		return mainView
	}

	toastStack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
	toastLines := strings.Split(toastStack, "\n")
	mainLines := strings.Split(mainView, "\n")

	toastWidth := lipgloss.Width(toastStack)
	startX := max(m.width-toastWidth-2, 0)
	startY := 2

	for i, toastLine := range toastLines {
		lineIdx := startY + i
		if lineIdx >= len(mainLines) {
			break
		}

		mainLine := mainLines[lineIdx]
		mainLineWidth := lipgloss.Width(mainLine)

		if mainLineWidth < startX {
			mainLines[lineIdx] = mainLine + strings.Repeat(" ", startX-mainLineWidth) + toastLine
		} else {
			mainLines[lineIdx] = ansi.Truncate(mainLine, startX, "") + toastLine
		}
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderHelp() string {
	var lines []string

	lines = append(lines, m.styles.Title.Render("Keyboard Shortcuts"))
	lines = append(lines, "")

	if m.phase == phaseSignIn {
		lines = append(lines, m.styles.Highlight.Render("Sign-in"))
		lines = append(lines, "  r          Retry sign-in")
		lines = append(lines, "  x          Reset session")
		lines = append(lines, "  q/Ctrl+C   Quit")
	} else {
		lines = append(lines, m.styles.Highlight.Render("Navigation"))
		lines = append(lines, "  1-4        Switch tabs")
		lines = append(lines, "  Tab        Next tab")
		lines = append(lines, "  Shift+Tab  Previous tab")
		lines = append(lines, "")

		lines = append(lines, m.styles.Highlight.Render("Actions"))
		lines = append(lines, "  r          Load records")
		lines = append(lines, "  O          Sign out")
		lines = append(lines, "  ?          Toggle help")
		lines = append(lines, "  q/Ctrl+C   Quit")

		if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
			if tabHelp := m.tabs[m.activeTab].ShortHelp(); len(tabHelp) > 0 {
				lines = append(lines, "")
				lines = append(lines, m.styles.Highlight.Render(fmt.Sprintf("%s Tab", m.tabNames[m.activeTab])))
				for _, binding := range tabHelp {
					lines = append(lines, fmt.Sprintf("  %-10s %s", binding.Help().Key, binding.Help().Desc))
				}
			}
		}
	}

	lines = append(lines, "")
	lines = append(lines, m.styles.Subtle.Render("Press ? or Esc to close"))

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPlaceholder() string {
	content := fmt.Sprintf(
		"Tab %d: %s\n\n%s",
		m.activeTab+1,
		m.tabNames[m.activeTab],
		m.styles.Subtle.Render("This tab is not available."),
	)
	return m.styles.Content.Render(content)
}
