package score

import (
	"math"

	"github.com/joescharf/auditwise/internal/models"
)

const (
	// Base is the score of an audit with nothing resolved.
	Base = 74
	// ResolvedWeight is the maximum bonus for resolving every issue.
	ResolvedWeight = 20
)

// Label thresholds.
const (
	GoodThreshold           = 80
	NeedsAttentionThreshold = 60
)

// Labels for score bands.
const (
	LabelGood           = "Good"
	LabelNeedsAttention = "Needs Attention"
	LabelCritical       = "Critical Issues"
)

// Result is the computed score of an issue list.
type Result struct {
	Total    int
	Resolved int
	Open     int
	Score    int
	Label    string
	Counts   SeverityCounts
}

// SeverityCounts tallies issues per severity.
type SeverityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Scorer computes audit scores.
type Scorer struct{}

// NewScorer returns a new Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes the audit score for issues.
func (s *Scorer) Score(issues []models.Issue) *Result {
	r := &Result{Total: len(issues), Counts: Counts(issues)}
	for _, is := range issues {
		if is.Status == models.IssueStatusResolved {
			r.Resolved++
		}
	}
	r.Open = r.Total - r.Resolved
	r.Score = Compute(r.Resolved, r.Total)
	r.Label = Label(r.Score)
	return r
}

// Compute returns round(74 + resolved/total*20), or 74 when total is 0.
func Compute(resolved, total int) int {
	if total <= 0 {
		return Base
	}
	return int(math.Round(Base + float64(resolved)/float64(total)*ResolvedWeight))
}

// Label maps a score to its band.
func Label(score int) string {
	switch {
	case score >= GoodThreshold:
		return LabelGood
	case score >= NeedsAttentionThreshold:
		return LabelNeedsAttention
	default:
		return LabelCritical
	}
}

// Counts tallies issues by severity.
func Counts(issues []models.Issue) SeverityCounts {
	var c SeverityCounts
	for _, is := range issues {
		switch is.Severity {
		case models.SeverityHigh:
			c.High++
		case models.SeverityMedium:
			c.Medium++
		case models.SeverityLow:
			c.Low++
		}
	}
	return c
}
