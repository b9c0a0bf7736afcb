package info

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/audit-dashboard-tui/internal/ui/styles"
	"github.com/j-veylop/audit-dashboard-tui/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderSessionCard(),
		m.renderAboutCard(),
	)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration, session and build information")
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 90)
}

func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration"), ""}

	cfg := m.config()
	if cfg == nil {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	refresh := "off"
	if cfg.RefreshInterval > 0 {
		refresh = cfg.RefreshInterval.String()
	}

	rows = append(rows,
		renderRow("Client ID", cfg.ClientID),
		renderRow("Authority", cfg.Authority),
		renderRow("Redirect URI", cfg.RedirectURI),
		renderRow("Login scopes", strings.Join(cfg.LoginScopes, " ")),
		renderRow("List scopes", strings.Join(cfg.ListScopes, " ")),
		renderRow("Site", cfg.SiteHostname+"/"+strings.TrimPrefix(cfg.SitePath, "/")),
		renderRow("List ID", cfg.ListID),
		renderRow("Paging", fmt.Sprintf("%d per page, at most %d pages", cfg.PageSize, cfg.MaxPages)),
		renderRow("Auto refresh", refresh),
		renderRow("Field map", cfg.FieldMapPath),
		renderRow("Database", cfg.DatabasePath),
		renderRow("Log file", cfg.LogPath),
		"",
		styles.HelpStyle.Render("Press 'c' to copy the field map path"),
	)

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderSessionCard() string {
	rows := []string{styles.CardTitleStyle.Render("Session"), ""}

	account := styles.HelpStyle.Render("signed out")
	if acc := m.state.Account(); acc != nil {
		account = styles.SuccessTextStyle.Render(acc.Label())
	}
	rows = append(rows, renderRow("Account", account))

	if m.services != nil {
		sc := m.services.Session()
		rows = append(rows, renderRow("Session ID", m.services.SessionID()))
		if hint := sc.LoginHint(); hint != "" {
			rows = append(rows, renderRow("Login hint", hint))
		}
		rows = append(rows, renderRow("Sign-in attempted", yesNo(sc.AttemptedFlag())))
		if sc.Degraded() {
			rows = append(rows, renderRow("Storage", styles.WarningTextStyle.Render("degraded, using memory")))
		}
	}

	if res := m.state.Result(); res != nil {
		site := "-"
		if res.Site != nil {
			site = res.Site.DisplayName
		}
		items := fmt.Sprintf("%d", len(res.Items))
		if res.Truncated {
			items += styles.WarningTextStyle.Render(" (truncated)")
		}
		rows = append(rows,
			renderRow("Site", site),
			renderRow("Items", items),
			renderRow("Granted scopes", strings.Join(res.GrantedScopes, " ")),
			renderRow("Fetched", res.FetchedAt.Format("2006-01-02 15:04:05")),
		)
	} else {
		rows = append(rows, renderRow("Records", "not loaded"))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderAboutCard() string {
	rows := []string{
		styles.CardTitleStyle.Render("About"),
		"",
		renderRow("Version", version.GetVersion()),
		renderRow("Commit", version.GetCommit()),
		renderRow("Built", version.GetDate()),
		"",
		styles.HelpStyle.Render(version.Info()),
	}
	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)
	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	if value == "" {
		value = "-"
	}
	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
