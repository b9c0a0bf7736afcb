// Package main is the entry point of the audit dashboard. Without a
// subcommand it signs in and runs the Bubble Tea dashboard.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/j-veylop/audit-dashboard-tui/internal/app"
	"github.com/j-veylop/audit-dashboard-tui/internal/config"
	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
	"github.com/j-veylop/audit-dashboard-tui/internal/services"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/tabs/dashboard"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/tabs/followups"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/tabs/info"
	"github.com/j-veylop/audit-dashboard-tui/internal/ui/tabs/records"
	"github.com/j-veylop/audit-dashboard-tui/internal/version"
)

// callbackURL is a redirect location pasted by the user when the redirect
// URI is not served by the loopback listener.
var callbackURL string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adt",
		Short: "5S audit dashboard for a SharePoint list",
		Long: `adt signs in with your organisation account and shows the 5S audit
findings of the configured SharePoint list: summary charts, a filterable
records table and the follow-ups that are due.

Configuration is read from the environment and from the first .env file found
in the current directory, ~/.config/adt or a parent directory. ADT_CLIENT_ID
is required.`,
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := runDashboard(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			return nil
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.Flags().StringVar(&callbackURL, "callback-url", "", "finish a sign-in from the URL the browser was redirected to")

	root.AddCommand(newLogoutCmd(), newResetCmd(), newSummaryCmd(), newVersionCmd())
	return root
}

// setup loads the configuration, opens the log file and builds the service
// manager. The returned cleanup closes both.
func setup() (*services.Manager, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var logFile io.Closer
	if cfg.LogPath != "" {
		logFile, err = logger.Init(cfg.LogPath, cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
	}

	mgr, err := services.NewManager(cfg)
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	logger.Info("starting", "version", version.GetVersion(), "session", mgr.SessionID())

	cleanup := func() {
		if closeErr := mgr.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
		if logFile != nil {
			_ = logFile.Close()
		}
	}
	return mgr, cleanup, nil
}

func runDashboard() error {
	mgr, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	model := app.NewModel(mgr)
	if callbackURL != "" {
		model.SetLocation(callbackURL)
	}

	state := model.GetState()
	model.SetTabs([]app.Tab{
		dashboard.New(state),
		records.New(state),
		followups.New(state),
		info.New(state, mgr),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		if _, ok := <-sigChan; ok {
			p.Send(tea.Quit())
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
