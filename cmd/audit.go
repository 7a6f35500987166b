package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/output"
	"github.com/joescharf/auditwise/internal/score"
	"github.com/joescharf/auditwise/internal/store"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Manage saved audits",
	Long:  "List, inspect, resolve, share and delete saved design audits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return auditListRun()
	},
}

var auditListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved audits",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return auditListRun()
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show <audit-id>",
	Short: "Show an audit and its issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return auditShowRun(args[0])
	},
}

var auditResolveCmd = &cobra.Command{
	Use:   "resolve <audit-id> <issue#>",
	Short: "Mark an issue resolved",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return auditIssueStatusRun(args[0], args[1], models.IssueStatusResolved)
	},
}

var auditReopenCmd = &cobra.Command{
	Use:   "reopen <audit-id> <issue#>",
	Short: "Reopen a resolved issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return auditIssueStatusRun(args[0], args[1], models.IssueStatusOpen)
	},
}

var auditDeleteCmd = &cobra.Command{
	Use:     "delete <audit-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an audit",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return auditDeleteRun(args[0])
	},
}

var auditShareCmd = &cobra.Command{
	Use:   "share <audit-id>",
	Short: "Publish an audit at a stable share URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return auditShareRun(args[0])
	},
}

var auditUnshareCmd = &cobra.Command{
	Use:   "unshare <audit-id>",
	Short: "Stop sharing an audit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return auditUnshareRun(args[0])
	},
}

func init() {
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditResolveCmd)
	auditCmd.AddCommand(auditReopenCmd)
	auditCmd.AddCommand(auditDeleteCmd)
	auditCmd.AddCommand(auditShareCmd)
	auditCmd.AddCommand(auditUnshareCmd)
	rootCmd.AddCommand(auditCmd)
}

func auditListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	audits, err := s.ListAudits(context.Background(), currentUser())
	if err != nil {
		return err
	}
	if len(audits) == 0 {
		ui.Info("No audits found. Run 'auditwise scan --save' to create one.")
		return nil
	}

	scorer := score.NewScorer()
	table := ui.Table([]string{"ID", "Title", "Type", "Score", "Open", "Shared", "Created"})
	for _, a := range audits {
		shared := ""
		if a.IsShared {
			shared = "yes"
		}
		if err := table.Append([]string{
			shortID(a.ID),
			a.Title,
			string(a.DesignType),
			output.ScoreColor(a.Score),
			strconv.Itoa(scorer.Score(a.Issues).Open),
			shared,
			a.CreatedAt.Local().Format("2006-01-02 15:04"),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func auditShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	a, err := findAudit(context.Background(), s, id)
	if err != nil {
		return err
	}

	res := score.NewScorer().Score(a.Issues)
	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(a.ID)), a.Title)
	fmt.Fprintf(ui.Out, "  Type:       %s\n", a.DesignType)
	if a.DesignURL != "" {
		fmt.Fprintf(ui.Out, "  URL:        %s\n", a.DesignURL)
	}
	fmt.Fprintf(ui.Out, "  Depth:      %s\n", a.AuditDepth)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(a.Status)))
	fmt.Fprintf(ui.Out, "  Score:      %s/100 (%s)\n", output.ScoreColor(a.Score), score.Label(a.Score))
	fmt.Fprintf(ui.Out, "  Issues:     %s open, %s resolved\n",
		output.Yellow(strconv.Itoa(res.Open)), output.Green(strconv.Itoa(res.Resolved)))
	if a.IsShared {
		fmt.Fprintf(ui.Out, "  Shared:     %s\n", sharedAuditURL(a.ShareToken))
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", a.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n\n", a.ID)

	return ui.Issues(a.Issues)
}

func auditIssueStatusRun(id, number string, status models.IssueStatus) error {
	n, err := strconv.Atoi(strings.TrimPrefix(number, "#"))
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid issue number: %s", number)
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := findAudit(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would mark issue #%d of %s %s", n, shortID(a.ID), status)
		return nil
	}

	updated, err := s.UpdateIssueStatus(ctx, a.ID, n, status)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	ui.Success("Issue #%d is now %s. Score: %s/100", n, output.StatusColor(string(status)), output.ScoreColor(updated.Score))
	return nil
}

func auditDeleteRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := findAudit(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete audit %s: %s", shortID(a.ID), a.Title)
		return nil
	}

	if err := s.DeleteAudit(ctx, a.ID); err != nil {
		return fmt.Errorf("delete audit: %w", err)
	}
	ui.Success("Deleted audit %s: %s", output.Cyan(shortID(a.ID)), a.Title)
	return nil
}

func auditShareRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := findAudit(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would share audit %s", shortID(a.ID))
		return nil
	}

	token, err := s.ShareAudit(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("share audit: %w", err)
	}
	ui.Success("Shared %s", a.Title)
	fmt.Fprintln(ui.Out, sharedAuditURL(token))
	return nil
}

func auditUnshareRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := findAudit(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would stop sharing audit %s", shortID(a.ID))
		return nil
	}

	if err := s.UnshareAudit(ctx, a.ID); err != nil {
		return fmt.Errorf("unshare audit: %w", err)
	}
	ui.Success("Stopped sharing %s", a.Title)
	return nil
}

// publicURL is the base URL of the server as seen by share-link recipients.
func publicURL() string {
	if u := viper.GetString("server.public_url"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return fmt.Sprintf("http://localhost:%d", viper.GetInt("server.port"))
}

func sharedAuditURL(token string) string {
	return publicURL() + "/api/v1/shared/" + token
}

// findAudit finds an audit of the current user by full ID or prefix match.
func findAudit(ctx context.Context, s store.Store, id string) (*models.Audit, error) {
	user := currentUser()

	// Try exact match first
	if a, err := s.GetAudit(ctx, id); err == nil && a.UserID == user {
		return a, nil
	}

	// Try prefix match - list all and filter
	upper := strings.ToUpper(id)
	audits, err := s.ListAudits(ctx, user)
	if err != nil {
		return nil, err
	}

	var matches []*models.Audit
	for _, a := range audits {
		if strings.HasPrefix(a.ID, upper) {
			matches = append(matches, a)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("audit not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous audit ID %s: matches %d audits", id, len(matches))
	}
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
