package parser

import "github.com/joescharf/auditwise/internal/models"

// Fallback returns the fixed issue set used whenever AI analysis cannot be
// obtained or parsed. Each call returns a fresh slice.
func Fallback() []models.Issue {
	return []models.Issue{
		{
			ID: 1, Title: "Low contrast body text",
			Category: models.CategoryAccessibility, Severity: models.SeverityHigh, Status: models.IssueStatusOpen,
			Explanation: "The body text may not meet WCAG AA contrast requirements. Ensure a minimum contrast ratio of 4.5:1 for normal text.",
			HowToFix:    "Darken the text color or lighten the background to achieve the required contrast.",
			Suggestion:  "Use #595959 or darker for body text on white backgrounds.",
			X:           70, Y: 20,
		},
		{
			ID: 2, Title: "Inconsistent spacing",
			Category: models.CategoryLayout, Severity: models.SeverityMedium, Status: models.IssueStatusOpen,
			Explanation: "Multiple spacing values detected that fall outside an 8px base grid. This creates visual inconsistency.",
			HowToFix:    "Audit all margin and padding values and align them to the 8px scale.",
			Suggestion:  "Replace non-standard gaps (10px, 14px) with 8px or 16px values.",
			X:           30, Y: 45,
		},
		{
			ID: 3, Title: "Missing focus indicators",
			Category: models.CategoryUX, Severity: models.SeverityMedium, Status: models.IssueStatusOpen,
			Explanation: "Interactive elements may lack visible focus rings for keyboard navigation.",
			HowToFix:    "Add focus-visible styles using outline or box-shadow.",
			Suggestion:  "Add .focus-visible:ring-2 to all interactive elements.",
			X:           55, Y: 65,
		},
		{
			ID: 4, Title: "Icon-only buttons without labels",
			Category: models.CategoryAccessibility, Severity: models.SeverityHigh, Status: models.IssueStatusOpen,
			Explanation: "Icon-only buttons lack accessible text for screen readers.",
			HowToFix:    "Add aria-label attributes to all icon-only interactive elements.",
			Suggestion:  "Add aria-label='Action name' to all icon buttons.",
			X:           80, Y: 15,
		},
		{
			ID: 5, Title: "Heading hierarchy skip",
			Category: models.CategoryContent, Severity: models.SeverityMedium, Status: models.IssueStatusOpen,
			Explanation: "The page skips heading levels, breaking semantic document structure.",
			HowToFix:    "Restructure headings to follow logical H1 → H2 → H3 sequence.",
			Suggestion:  "Use CSS for visual sizing, not semantic heading levels.",
			X:           40, Y: 30,
		},
		{
			ID: 6, Title: "Touch targets too small",
			Category: models.CategoryUX, Severity: models.SeverityLow, Status: models.IssueStatusOpen,
			Explanation: "Some interactive elements may be smaller than the recommended 44×44px touch target.",
			HowToFix:    "Increase the clickable area of small buttons and links.",
			Suggestion:  "Use min-width: 44px; min-height: 44px for all interactive elements.",
			X:           60, Y: 80,
		},
	}
}
