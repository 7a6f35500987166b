package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/auditwise/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <audit-id>",
	Short: "Export an audit report",
	Long: `Render a saved audit as a printable HTML report or a plain-text report.

The file is written to the current directory under a name derived from the
audit title unless --output is given. Use --output - to print to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun(args[0])
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "html", "Report format: html, text")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: derived from title, - for stdout)")
	rootCmd.AddCommand(exportCmd)
}

func exportRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	a, err := findAudit(context.Background(), s, id)
	if err != nil {
		return err
	}

	rep := export.Report{
		Title:      a.Title,
		DesignType: a.DesignType,
		AuditDepth: a.AuditDepth,
		Issues:     a.Issues,
		Generated:  time.Now(),
	}

	var buf bytes.Buffer
	var name string
	switch exportFormat {
	case "html":
		if err := export.HTML(&buf, rep); err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		name = export.HTMLFilename(a.Title)
	case "text", "txt":
		buf.WriteString(export.Text(rep))
		name = export.Filename(a.Title)
	default:
		return fmt.Errorf("unknown format %q (want html or text)", exportFormat)
	}

	if exportOutput == "-" {
		_, err := buf.WriteTo(ui.Out)
		return err
	}
	if exportOutput != "" {
		name = exportOutput
	}

	if dryRun {
		ui.DryRunMsg("Would write %s report to %s", exportFormat, name)
		return nil
	}

	if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	ui.Success("Exported %s to %s", a.Title, name)
	return nil
}
