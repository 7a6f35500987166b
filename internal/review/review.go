// Package review holds the interactive state of an audit's issue list:
// selection, focused mode, resolution, and list filters.
package review

import (
	"errors"
	"fmt"

	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/parser"
)

// ErrIssueNotFound is returned when an issue id is not on the board.
var ErrIssueNotFound = errors.New("issue not found")

// Tab selects which issues the list shows.
type Tab string

const (
	TabOpen     Tab = "open"
	TabResolved Tab = "resolved"
)

// AllCategories is the category filter that matches everything.
const AllCategories = "All"

// Board is the review state of one audit. It is not safe for concurrent use;
// callers serialize access.
type Board struct {
	issues   []models.Issue
	selected int
	focused  int
	tab      Tab
	category string
}

// State is an immutable view of a Board.
type State struct {
	Issues     []models.Issue `json:"issues"`
	Visible    []models.Issue `json:"visible"`
	SelectedID int            `json:"selectedId,omitempty"`
	FocusedID  int            `json:"focusedId,omitempty"`
	Tab        Tab            `json:"tab"`
	Category   string         `json:"category"`
	OpenCount  int            `json:"openCount"`
	Resolved   int            `json:"resolvedCount"`
	HasPrev    bool           `json:"hasPrev"`
	HasNext    bool           `json:"hasNext"`
}

// NewBoard creates a board over issues. An empty list is replaced by the
// fallback set. The first issue starts selected.
func NewBoard(issues []models.Issue) *Board {
	if len(issues) == 0 {
		issues = parser.Fallback()
	}
	b := &Board{
		issues:   models.CloneIssues(issues),
		tab:      TabOpen,
		category: AllCategories,
	}
	b.selected = b.issues[0].ID
	return b
}

// Issues returns a copy of every issue in order.
func (b *Board) Issues() []models.Issue {
	return models.CloneIssues(b.issues)
}

// Open returns the open issues in order.
func (b *Board) Open() []models.Issue {
	return b.filterStatus(models.IssueStatusOpen)
}

// Resolved returns the resolved issues in order.
func (b *Board) Resolved() []models.Issue {
	return b.filterStatus(models.IssueStatusResolved)
}

func (b *Board) filterStatus(st models.IssueStatus) []models.Issue {
	out := []models.Issue{}
	for _, is := range b.issues {
		if is.Status == st {
			out = append(out, is)
		}
	}
	return out
}

// Visible returns the issues shown by the current tab and category filter.
func (b *Board) Visible() []models.Issue {
	var src []models.Issue
	if b.tab == TabResolved {
		src = b.Resolved()
	} else {
		src = b.Open()
	}
	out := []models.Issue{}
	for _, is := range src {
		if b.category == AllCategories || string(is.Category) == b.category {
			out = append(out, is)
		}
	}
	return out
}

// Selected returns the selected issue, if any.
func (b *Board) Selected() (models.Issue, bool) {
	return b.find(b.selected)
}

// Focused returns the issue shown in focused mode, if any.
func (b *Board) Focused() (models.Issue, bool) {
	return b.find(b.focused)
}

func (b *Board) find(id int) (models.Issue, bool) {
	if id == 0 {
		return models.Issue{}, false
	}
	for _, is := range b.issues {
		if is.ID == id {
			return is, true
		}
	}
	return models.Issue{}, false
}

func (b *Board) index(id int) int {
	for i, is := range b.issues {
		if is.ID == id {
			return i
		}
	}
	return -1
}

// ToggleSelect selects id from the list, or clears the selection when id is
// already selected. Focused mode is left alone.
func (b *Board) ToggleSelect(id int) error {
	if b.index(id) < 0 {
		return fmt.Errorf("%w: %d", ErrIssueNotFound, id)
	}
	if b.selected == id {
		b.selected = 0
	} else {
		b.selected = id
	}
	return nil
}

// ClearSelection deselects the current issue.
func (b *Board) ClearSelection() {
	b.selected = 0
}

// FocusPin selects id and enters focused mode on it.
func (b *Board) FocusPin(id int) error {
	if b.index(id) < 0 {
		return fmt.Errorf("%w: %d", ErrIssueNotFound, id)
	}
	b.selected = id
	b.focused = id
	return nil
}

// Unfocus leaves focused mode.
func (b *Board) Unfocus() {
	b.focused = 0
}

// neighbors returns the open issues before and after the focused one. When
// the focused issue is not open, only a next neighbor (the first open issue)
// exists.
func (b *Board) neighbors() (prev, next *models.Issue) {
	if b.focused == 0 {
		return nil, nil
	}
	open := b.Open()
	idx := -1
	for i, is := range open {
		if is.ID == b.focused {
			idx = i
			break
		}
	}
	if idx-1 >= 0 {
		prev = &open[idx-1]
	}
	if idx+1 < len(open) {
		next = &open[idx+1]
	}
	return prev, next
}

// FocusNext moves focus to the next open issue. It reports false and changes
// nothing when there is none.
func (b *Board) FocusNext() bool {
	_, next := b.neighbors()
	if next == nil {
		return false
	}
	b.focused, b.selected = next.ID, next.ID
	return true
}

// FocusPrev moves focus to the previous open issue.
func (b *Board) FocusPrev() bool {
	prev, _ := b.neighbors()
	if prev == nil {
		return false
	}
	b.focused, b.selected = prev.ID, prev.ID
	return true
}

// Resolve marks id resolved, selects the first other open issue (or nothing)
// and leaves focused mode.
func (b *Board) Resolve(id int) error {
	i := b.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrIssueNotFound, id)
	}
	b.issues[i].Status = models.IssueStatusResolved

	b.selected = 0
	for _, is := range b.issues {
		if is.ID != id && is.IsOpen() {
			b.selected = is.ID
			break
		}
	}
	b.focused = 0
	return nil
}

// Reopen marks id open again. Selection and focus are unchanged.
func (b *Board) Reopen(id int) error {
	i := b.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrIssueNotFound, id)
	}
	b.issues[i].Status = models.IssueStatusOpen
	return nil
}

// SetTab switches the list between open and resolved issues.
func (b *Board) SetTab(t Tab) error {
	switch t {
	case TabOpen, TabResolved:
		b.tab = t
		return nil
	}
	return fmt.Errorf("unknown tab %q", t)
}

// SetCategory filters the list by category. "All" clears the filter.
func (b *Board) SetCategory(c string) error {
	if c == "" || c == AllCategories {
		b.category = AllCategories
		return nil
	}
	cat, ok := models.ParseCategory(c)
	if !ok {
		return fmt.Errorf("unknown category %q", c)
	}
	b.category = string(cat)
	return nil
}

// State returns a snapshot of the board.
func (b *Board) State() State {
	prev, next := b.neighbors()
	return State{
		Issues:     b.Issues(),
		Visible:    b.Visible(),
		SelectedID: b.selected,
		FocusedID:  b.focused,
		Tab:        b.tab,
		Category:   b.category,
		OpenCount:  len(b.Open()),
		Resolved:   len(b.Resolved()),
		HasPrev:    prev != nil,
		HasNext:    next != nil,
	}
}
