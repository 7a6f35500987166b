package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/auditwise/internal/output"
	"github.com/joescharf/auditwise/internal/score"
	"github.com/joescharf/auditwise/internal/share"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Create and read self-contained share links",
	Long: `Share links carry a snapshot of an audit in the URL itself, so they work
without a server-side copy. See 'auditwise audit share' for stable links
to saved audits.`,
}

var shareLinkCmd = &cobra.Command{
	Use:   "link <audit-id>",
	Short: "Print a self-contained share link for an audit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return shareLinkRun(args[0])
	},
}

var shareDecodeCmd = &cobra.Command{
	Use:   "decode <link|data>",
	Short: "Show the audit carried by a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return shareDecodeRun(args[0])
	},
}

func init() {
	shareCmd.AddCommand(shareLinkCmd)
	shareCmd.AddCommand(shareDecodeCmd)
	rootCmd.AddCommand(shareCmd)
}

func shareLinkRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	a, err := findAudit(context.Background(), s, id)
	if err != nil {
		return err
	}

	link, err := share.Link(publicURL(), share.NewPayload(a.Title, a.DesignType, a.Issues, time.Now()))
	if err != nil {
		return fmt.Errorf("encode share link: %w", err)
	}
	fmt.Fprintln(ui.Out, link)
	return nil
}

func shareDecodeRun(link string) error {
	var (
		p   share.Payload
		err error
	)
	if strings.Contains(link, "?") {
		p, err = share.DecodeLink(link)
	} else {
		p, err = share.Decode(link)
	}
	if err != nil {
		return err
	}

	counts := score.Counts(p.Issues)
	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(p.Title), p.DesignType)
	fmt.Fprintf(ui.Out, "  Score:    %s/100 (%s)\n", output.ScoreColor(p.Score), score.Label(p.Score))
	fmt.Fprintf(ui.Out, "  Issues:   %d high, %d medium, %d low\n", counts.High, counts.Medium, counts.Low)
	fmt.Fprintf(ui.Out, "  Created:  %s\n\n", p.CreatedAt)
	return ui.Issues(p.Issues)
}
