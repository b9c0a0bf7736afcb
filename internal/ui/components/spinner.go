package components

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/audit-dashboard-tui/internal/ui/styles"
)

// SpinnerOption configures a LoadingSpinner.
type SpinnerOption func(*LoadingSpinner)

// WithFrames replaces the default dot animation.
func WithFrames(frames spinner.Spinner) SpinnerOption {
	return func(l *LoadingSpinner) { l.model.Spinner = frames }
}

// WithHint adds a muted second line below the label.
func WithHint(hint string) SpinnerOption {
	return func(l *LoadingSpinner) { l.hint = hint }
}

// LoadingSpinner is a spinner with a label, used for sign-in and loads.
type LoadingSpinner struct {
	model spinner.Model
	label string
	hint  string
}

// NewSpinner creates a spinner showing label.
func NewSpinner(label string, opts ...SpinnerOption) LoadingSpinner {
	l := LoadingSpinner{
		model: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(styles.Primary)),
		),
		label: label,
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// Init starts the animation.
func (l LoadingSpinner) Init() tea.Cmd {
	return l.model.Tick
}

// Update advances the animation on its own tick messages.
func (l LoadingSpinner) Update(msg tea.Msg) (LoadingSpinner, tea.Cmd) {
	var cmd tea.Cmd
	l.model, cmd = l.model.Update(msg)
	return l, cmd
}

// View renders the current frame only.
func (l LoadingSpinner) View() string {
	return l.model.View()
}

// ViewWithLabel renders the frame followed by the label.
func (l LoadingSpinner) ViewWithLabel() string {
	if l.label == "" {
		return l.View()
	}
	return l.View() + " " + lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(l.label)
}

// SetLabel changes the label.
func (l *LoadingSpinner) SetLabel(label string) { l.label = label }

// Label returns the label.
func (l LoadingSpinner) Label() string { return l.label }

// RenderSpinnerCentered centers the labelled spinner and its hint in a
// width x height box.
func RenderSpinnerCentered(s LoadingSpinner, width, height int) string {
	content := s.ViewWithLabel()
	if s.hint != "" {
		content = lipgloss.JoinVertical(lipgloss.Center, content, styles.HelpStyle.Render(s.hint))
	}
	return styles.CenterBoth(content, width, height)
}
