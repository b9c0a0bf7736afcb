package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/j-veylop/audit-dashboard-tui/internal/aggregate"
	"github.com/j-veylop/audit-dashboard-tui/internal/gateway"
	"github.com/j-veylop/audit-dashboard-tui/internal/identity"
	"github.com/j-veylop/audit-dashboard-tui/internal/models"
	"github.com/j-veylop/audit-dashboard-tui/internal/services"
	"github.com/j-veylop/audit-dashboard-tui/internal/version"
)

const commandTimeout = 2 * time.Minute

var errSignInRequired = errors.New("not signed in: run adt to sign in first")

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign the cached account out",
		Long: `Sign the cached account out. The identity provider's sign-out page is
opened in the browser and the login hint is forgotten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			if _, _, err := mgr.Bootstrap(ctx, ""); err != nil {
				return fmt.Errorf("establishing the session: %w", err)
			}
			if err := mgr.Logout(ctx); err != nil {
				if errors.Is(err, services.ErrNotSignedIn) {
					fmt.Fprintln(cmd.OutOrStdout(), "No account is signed in.")
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget cached accounts and the sign-in attempt of this session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			mgr.Session().ClearAttemptedFlag()
			mgr.Session().ClearLoginHint()
			if err := mgr.Forget(); err != nil {
				return fmt.Errorf("clearing the account cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session reset.")
			return nil
		},
	}
}

type summaryFlags struct {
	search string
	area   string
	status string
	fiveS  string
}

func (f summaryFlags) filter() aggregate.Filter {
	equals := make(map[string]string)
	for field, v := range map[string]string{
		models.FieldArea:        f.area,
		models.FieldAuditStatus: f.status,
		models.Field5S:          f.fiveS,
	} {
		if v = strings.TrimSpace(v); v != "" {
			equals[field] = v
		}
	}
	return aggregate.Filter{Search: f.search, Equals: equals}
}

func newSummaryCmd() *cobra.Command {
	var flags summaryFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the audit aggregates without the dashboard",
		Long: `Load the list with the cached account and print the aggregates.

Examples:
  # Everything
  adt summary

  # Open findings of one area
  adt summary --area Assembly --status Open

  # Free-text search over title, area, 5S item and people
  adt summary --search leak`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := flags.filter()
			if err := f.Validate(); err != nil {
				return err
			}

			mgr, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			_, outcome, err := mgr.Bootstrap(ctx, "")
			if err != nil {
				return fmt.Errorf("establishing the session: %w", err)
			}
			if !outcome.HasAccount() {
				return errSignInRequired
			}

			res, err := mgr.LoadRecords(ctx, gateway.WithoutRedirect())
			switch {
			case identity.IsInteractionRequired(err), errors.Is(err, gateway.ErrNoAccount):
				return errSignInRequired
			case err != nil:
				return err
			}

			site := ""
			if res.Site != nil {
				site = res.Site.DisplayName
			}
			writeSummary(cmd.OutOrStdout(), site, aggregate.Build(res.Rows, f, time.Now()), res.Truncated)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.search, "search", "", "free-text search")
	cmd.Flags().StringVar(&flags.area, "area", "", "only this area")
	cmd.Flags().StringVar(&flags.status, "status", "", "only this audit status")
	cmd.Flags().StringVar(&flags.fiveS, "5s", "", "only this 5S pillar")
	return cmd
}

// writeSummary prints the aggregates as plain tables.
func writeSummary(w io.Writer, site string, sum aggregate.Summary, truncated bool) {
	stats := sum.Stats
	header := fmt.Sprintf("%d audits, %d open, %d closed, average score %s, %d overdue",
		stats.Total, stats.Open, stats.Closed, stats.AvgScoreText(), sum.Overdue)
	if site != "" {
		header = site + ": " + header
	}
	fmt.Fprintln(w, header)
	if truncated {
		fmt.Fprintln(w, "The list was truncated; raise ADT_MAX_PAGES to load every item.")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, bucketTable("Area", sum.ByArea))
	fmt.Fprintln(w, bucketTable("Status", sum.ByStatus))
	fmt.Fprintln(w, bucketTable("5S", sum.By5S))
	fmt.Fprintln(w, bucketTable("Follow-up", sum.Stages))

	if len(sum.ScoreByArea) > 0 {
		t := newTable("Area", "Average score", "Scored")
		for _, a := range sum.ScoreByArea {
			t.Row(a.Label, fmt.Sprintf("%.2f", a.Average), fmt.Sprintf("%d", a.Count))
		}
		fmt.Fprintln(w, t.Render())
	}
}

func bucketTable(title string, buckets []aggregate.Bucket) string {
	t := newTable(title, "Count")
	for _, b := range buckets {
		t.Row(b.Label, fmt.Sprintf("%d", b.Count))
	}
	return t.Render()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}
