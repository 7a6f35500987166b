package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/auditwise/internal/models"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		resolved, total, want int
	}{
		{0, 0, 74},
		{0, 6, 74},
		{3, 6, 84},
		{6, 6, 94},
		{1, 3, 81}, // 80.67
		{1, 8, 77}, // 76.5 rounds half away from zero
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compute(tt.resolved, tt.total), "%d/%d", tt.resolved, tt.total)
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, LabelGood, Label(80))
	assert.Equal(t, LabelGood, Label(94))
	assert.Equal(t, LabelNeedsAttention, Label(79))
	assert.Equal(t, LabelNeedsAttention, Label(60))
	assert.Equal(t, LabelCritical, Label(59))
}

func TestScore(t *testing.T) {
	s := NewScorer()
	issues := []models.Issue{
		{ID: 1, Severity: models.SeverityHigh, Status: models.IssueStatusResolved},
		{ID: 2, Severity: models.SeverityHigh, Status: models.IssueStatusOpen},
		{ID: 3, Severity: models.SeverityLow, Status: models.IssueStatusOpen},
		{ID: 4, Severity: models.SeverityMedium, Status: models.IssueStatusResolved},
	}

	r := s.Score(issues)
	assert.Equal(t, 4, r.Total)
	assert.Equal(t, 2, r.Resolved)
	assert.Equal(t, 2, r.Open)
	assert.Equal(t, 84, r.Score)
	assert.Equal(t, LabelGood, r.Label)
	assert.Equal(t, SeverityCounts{High: 2, Medium: 1, Low: 1}, r.Counts)
}

func TestScore_NoIssues(t *testing.T) {
	r := NewScorer().Score(nil)
	assert.Equal(t, 74, r.Score)
	assert.Equal(t, LabelNeedsAttention, r.Label)
	assert.Zero(t, r.Total)
}
