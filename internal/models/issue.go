package models

import "strings"

// IssueStatus represents the state of a design issue.
type IssueStatus string

const (
	IssueStatusOpen     IssueStatus = "open"
	IssueStatusResolved IssueStatus = "resolved"
)

// Severity represents how badly an issue hurts the design.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// Severities lists all severities from most to least severe.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// Category represents the area of the design an issue belongs to.
type Category string

const (
	CategoryAccessibility Category = "Accessibility"
	CategoryUX            Category = "UX"
	CategoryUI            Category = "UI"
	CategoryLayout        Category = "Layout"
	CategoryContent       Category = "Content"
)

// Categories lists all categories in display order.
var Categories = []Category{CategoryAccessibility, CategoryUX, CategoryUI, CategoryLayout, CategoryContent}

// ParseSeverity matches s case-insensitively against the known severities.
func ParseSeverity(s string) (Severity, bool) {
	for _, v := range Severities {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, true
		}
	}
	return "", false
}

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) (Category, bool) {
	for _, v := range Categories {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, true
		}
	}
	return "", false
}

// Issue is a single design problem detected in one audit.
// ID is the 1-based position in the parsed batch and is only unique within it.
type Issue struct {
	ID          int         `json:"id"`
	Title       string      `json:"title"`
	Category    Category    `json:"category"`
	Severity    Severity    `json:"severity"`
	Status      IssueStatus `json:"status"`
	Explanation string      `json:"explanation"`
	HowToFix    string      `json:"howToFix"`
	Suggestion  string      `json:"suggestion"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
}

// IsOpen reports whether the issue is still unresolved.
func (i Issue) IsOpen() bool {
	return i.Status == IssueStatusOpen
}

// CloneIssues returns a copy of issues that shares no backing array.
func CloneIssues(issues []Issue) []Issue {
	if issues == nil {
		return nil
	}
	out := make([]Issue, len(issues))
	copy(out, issues)
	return out
}
