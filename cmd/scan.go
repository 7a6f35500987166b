package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/auditwise/internal/asset"
	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/output"
	"github.com/joescharf/auditwise/internal/scan"
	"github.com/joescharf/auditwise/internal/session"
)

var (
	scanFigma      string
	scanFigmaToken string
	scanURL        string
	scanFile       string
	scanDepth      string
	scanTitle      string
	scanSave       bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Audit a design",
	Long: `Audit a Figma file, PNG or PDF upload, or live website.

Exactly one of --figma, --file or --url selects the design. Without an AI
key (ai.api_key or AUDITWISE_AI_API_KEY) a fixed sample issue set is shown.`,
	Example: `  auditwise scan --figma "https://www.figma.com/design/KEY/Checkout?node-id=1-2"
  auditwise scan --file mockup.png --depth Deep --save
  auditwise scan --url https://example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanRun(cmd.Context())
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanFigma, "figma", "", "Figma file URL")
	scanCmd.Flags().StringVar(&scanFigmaToken, "figma-token", "", "Figma personal access token (default: figma.token)")
	scanCmd.Flags().StringVar(&scanURL, "url", "", "Live website URL")
	scanCmd.Flags().StringVar(&scanFile, "file", "", "PNG or PDF file")
	scanCmd.Flags().StringVar(&scanDepth, "depth", string(models.AuditDepthStandard), "Audit depth: Quick, Standard, Deep")
	scanCmd.Flags().StringVar(&scanTitle, "title", "", "Audit title (default: derived from the design)")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Save the audit")
	scanCmd.MarkFlagsMutuallyExclusive("figma", "url", "file")
	scanCmd.MarkFlagsOneRequired("figma", "url", "file")
	rootCmd.AddCommand(scanCmd)
}

// scanInput builds the submission from the scan flags.
func scanInput() (models.DesignInput, error) {
	in := models.DesignInput{
		AuditDepth: models.AuditDepth(scanDepth),
		APIKey:     viper.GetString("ai.api_key"),
	}
	switch {
	case scanFigma != "":
		in.Type = models.DesignTypeFigma
		in.URL = scanFigma
		in.FigmaToken = scanFigmaToken
		if in.FigmaToken == "" {
			in.FigmaToken = viper.GetString("figma.token")
		}
	case scanURL != "":
		in.Type = models.DesignTypeURL
		in.URL = scanURL
	case scanFile != "":
		img, err := asset.FromFile(scanFile)
		if err != nil {
			return in, err
		}
		switch {
		case img.MIMEType == "application/pdf":
			in.Type = models.DesignTypePDF
		case img.IsVisual():
			in.Type = models.DesignTypePNG
		default:
			return in, fmt.Errorf("unsupported file type %s (want an image or PDF)", img.MIMEType)
		}
		in.FileData = img.DataURL()
		in.FileName = filepath.Base(scanFile)
	}
	return in, asset.Validate(in)
}

func scanRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	in, err := scanInput()
	if err != nil {
		return err
	}

	sess := session.New(in)
	if scanTitle != "" {
		sess.SetTitle(scanTitle)
	}

	if dryRun {
		ui.DryRunMsg("Would scan %s design %q at %s depth", in.Type, sess.Title(), in.Depth())
		return nil
	}
	if in.APIKey == "" {
		ui.Warning("No AI key configured; showing sample issues")
	}

	scanner, err := newScanner()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	var mu sync.Mutex
	onUpdate := func(s scan.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(ui.ErrOut, "\r%s %3.0f%%  %-48s", output.ProgressBar(s.Percent, 30), s.Percent, s.Message())
	}
	if err := sess.Scan(ctx, scanner, onUpdate, nil); err != nil {
		return err
	}
	<-sess.Run().Done()
	mu.Lock()
	fmt.Fprintln(ui.ErrOut)
	mu.Unlock()

	if sess.Progress().State == scan.StateCancelled {
		return fmt.Errorf("scan cancelled")
	}

	res := sess.Score()
	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(sess.Title()), in.Type)
	fmt.Fprintf(ui.Out, "  Score:   %s/100 (%s)\n", output.ScoreColor(res.Score), res.Label)
	fmt.Fprintf(ui.Out, "  Issues:  %s high, %s medium, %s low\n\n",
		output.Red(fmt.Sprint(res.Counts.High)), output.Yellow(fmt.Sprint(res.Counts.Medium)), fmt.Sprint(res.Counts.Low))
	if err := ui.Issues(sess.Issues()); err != nil {
		return err
	}

	if !scanSave {
		return nil
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	a := &models.Audit{
		UserID:         currentUser(),
		Title:          sess.Title(),
		DesignType:     in.Type,
		DesignURL:      in.URL,
		DesignImageURL: sess.DesignImage(),
		AuditDepth:     in.Depth(),
		Status:         models.AuditStatusCompleted,
		Issues:         sess.Issues(),
	}
	if err := s.CreateAudit(ctx, a); err != nil {
		return fmt.Errorf("save audit: %w", err)
	}
	fmt.Fprintln(ui.Out)
	ui.Success("Saved audit %s", output.Cyan(shortID(a.ID)))
	return nil
}
