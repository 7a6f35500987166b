// Package parser turns raw model output into a normalized list of issues.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/joescharf/auditwise/internal/models"
)

// Defaults applied when a field is missing or has the wrong type.
const (
	DefaultTitle    = "Untitled issue"
	DefaultCategory = models.CategoryUI
	DefaultSeverity = models.SeverityMedium
	DefaultPosition = 50.0
	MinPosition     = 5.0
	MaxPosition     = 95.0
)

var (
	jsonFence  = regexp.MustCompile("(?i)```json\\s*")
	plainFence = regexp.MustCompile("```\\s*")
	arrayMatch = regexp.MustCompile(`(?s)\[.*\]`)
)

// Parse converts raw model text into issues. It never fails: when no JSON
// array can be recovered, or the array is empty, the fallback set is returned.
func Parse(raw string) []models.Issue {
	cleaned := plainFence.ReplaceAllString(jsonFence.ReplaceAllString(raw, ""), "")
	cleaned = strings.TrimSpace(cleaned)

	if issues, ok := parseArray(cleaned); ok {
		return issues
	}

	if m := arrayMatch.FindString(raw); m != "" {
		if issues, ok := parseArray(m); ok {
			return issues
		}
	}

	return Fallback()
}

// parseArray normalizes s if it is a non-empty JSON array.
func parseArray(s string) ([]models.Issue, bool) {
	if !gjson.Valid(s) {
		return nil, false
	}
	result := gjson.Parse(s)
	if !result.IsArray() {
		return nil, false
	}

	items := result.Array()
	if len(items) == 0 {
		return nil, false
	}

	issues := make([]models.Issue, 0, len(items))
	for idx, item := range items {
		issues = append(issues, Normalize(idx, item))
	}
	return issues, true
}

// Normalize repairs one array element field by field. Elements that are not
// objects still produce a valid issue made of defaults.
func Normalize(idx int, item gjson.Result) models.Issue {
	issue := models.Issue{
		ID:          idx + 1,
		Title:       stringField(item, "title", DefaultTitle),
		Category:    DefaultCategory,
		Severity:    DefaultSeverity,
		Status:      models.IssueStatusOpen,
		Explanation: stringField(item, "explanation", ""),
		HowToFix:    stringField(item, "howToFix", ""),
		Suggestion:  stringField(item, "suggestion", ""),
		X:           position(item, "x"),
		Y:           position(item, "y"),
	}

	if c, ok := models.ParseCategory(stringField(item, "category", "")); ok {
		issue.Category = c
	}
	if s, ok := models.ParseSeverity(stringField(item, "severity", "")); ok {
		issue.Severity = s
	}
	return issue
}

func stringField(item gjson.Result, key, def string) string {
	if !item.IsObject() {
		return def
	}
	v := item.Get(key)
	if v.Type != gjson.String {
		return def
	}
	return v.Str
}

func position(item gjson.Result, key string) float64 {
	if !item.IsObject() {
		return DefaultPosition
	}

	v := item.Get(key)
	n := DefaultPosition
	switch v.Type {
	case gjson.Number:
		n = v.Num
	case gjson.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			n = f
		}
	}
	if math.IsNaN(n) {
		n = DefaultPosition
	}
	return Clamp(n)
}

// Clamp bounds a pin coordinate to [MinPosition, MaxPosition].
func Clamp(v float64) float64 {
	return math.Min(MaxPosition, math.Max(MinPosition, v))
}
