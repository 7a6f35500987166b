// Package export renders audit reports for printing and download.
package export

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/score"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTmpl = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Report is the input for every export format.
type Report struct {
	Title      string
	DesignType models.DesignType
	AuditDepth models.AuditDepth
	Issues     []models.Issue
	Generated  time.Time
}

type swatch struct{ fg, bg string }

var severitySwatches = map[models.Severity]swatch{
	models.SeverityHigh:   {"#D4505A", "#FFF0F1"},
	models.SeverityMedium: {"#C8882A", "#FFF8EC"},
	models.SeverityLow:    {"#4B65E8", "#EEF1FF"},
}

var categorySwatches = map[models.Category]swatch{
	models.CategoryAccessibility: {"#D4505A", "#FFF0F1"},
	models.CategoryUX:            {"#4B65E8", "#EEF1FF"},
	models.CategoryUI:            {"#8B5CF6", "#F3EEFF"},
	models.CategoryLayout:        {"#C8882A", "#FFF8EC"},
	models.CategoryContent:       {"#4CAF7D", "#EEF7F1"},
}

type issueView struct {
	models.Issue
	Resolved      bool
	PinColor      string
	SeverityColor string
	SeverityBg    string
	CategoryColor string
	CategoryBg    string
}

type reportView struct {
	Title      string
	DesignType string
	Depth      models.AuditDepth
	LongDate   string
	ISODate    string
	Score      int
	ScoreColor string
	Total      int
	Counts     score.SeverityCounts
	Issues     []issueView
}

// ScoreColor returns the report color for a score band.
func ScoreColor(s int) string {
	switch {
	case s >= score.GoodThreshold:
		return "#4CAF7D"
	case s >= score.NeedsAttentionThreshold:
		return "#E8A44F"
	default:
		return "#D4505A"
	}
}

// HTML writes a self-contained printable report. All user and AI supplied
// text is escaped.
func HTML(w io.Writer, r Report) error {
	res := score.NewScorer().Score(r.Issues)

	designType := strings.ToUpper(string(r.DesignType))
	if designType == "" {
		designType = "UNKNOWN"
	}
	depth := r.AuditDepth
	if depth == "" {
		depth = models.AuditDepthStandard
	}
	gen := r.Generated
	if gen.IsZero() {
		gen = time.Now()
	}

	v := reportView{
		Title:      r.Title,
		DesignType: designType,
		Depth:      depth,
		LongDate:   gen.Format("January 2, 2006"),
		ISODate:    gen.UTC().Format(time.DateOnly),
		Score:      res.Score,
		ScoreColor: ScoreColor(res.Score),
		Total:      res.Total,
		Counts:     res.Counts,
	}
	for _, is := range r.Issues {
		sev := severitySwatches[is.Severity]
		cat, ok := categorySwatches[is.Category]
		if !ok {
			cat = categorySwatches[models.CategoryContent]
		}
		iv := issueView{
			Issue:         is,
			Resolved:      is.Status == models.IssueStatusResolved,
			PinColor:      sev.fg,
			SeverityColor: sev.fg,
			SeverityBg:    sev.bg,
			CategoryColor: cat.fg,
			CategoryBg:    cat.bg,
		}
		if iv.Resolved {
			iv.PinColor = "#4CAF7D"
		}
		v.Issues = append(v.Issues, iv)
	}

	if err := reportTmpl.Execute(w, v); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// Text renders the plain-text report of open issues.
func Text(r Report) string {
	res := score.NewScorer().Score(r.Issues)

	var open []models.Issue
	for _, is := range r.Issues {
		if is.IsOpen() {
			open = append(open, is)
		}
	}

	lines := []string{
		r.Title + " — Audit Report",
		fmt.Sprintf("Score: %d/100", res.Score),
		fmt.Sprintf("\nIssues (%d open):\n", len(open)),
	}
	for _, is := range open {
		lines = append(lines, fmt.Sprintf("[%s] %s\n  %s\n  Fix: %s\n", is.Severity, is.Title, is.Explanation, is.HowToFix))
	}
	return strings.Join(lines, "\n")
}

// Filename is the download name for a text report.
func Filename(title string) string {
	return nonAlnum.ReplaceAllString(title, "-") + "-audit.txt"
}

// HTMLFilename is the download name for an HTML report.
func HTMLFilename(title string) string {
	return nonAlnum.ReplaceAllString(title, "-") + "-audit.html"
}
