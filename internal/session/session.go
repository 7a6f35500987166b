// Package session holds the in-memory state of audits being scanned and
// reviewed.
package session

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joescharf/auditwise/internal/canvas"
	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/review"
	"github.com/joescharf/auditwise/internal/scan"
	"github.com/joescharf/auditwise/internal/score"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// DefaultTitle is used when nothing better can be derived.
const DefaultTitle = "Untitled Design"

// Session is one audit from upload to review. All methods are safe for
// concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time
	// Owner is the user that created the session.
	Owner string

	mu          sync.Mutex
	lastUsed    time.Time
	input       models.DesignInput
	title       string
	designImage string
	board       *review.Board
	canvas      *canvas.Controller
	run         *scan.Run
	cancel      context.CancelFunc
	committed   bool
}

// New creates a session for in. Uploaded PNG files are previewed immediately.
func New(in models.DesignInput) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		lastUsed:  time.Now(),
		input:     in,
		title:     TitleFor(in),
		canvas:    canvas.NewController(),
	}
	if in.Type == models.DesignTypePNG {
		s.designImage = in.FileData
	}
	return s
}

// TitleFor derives an audit title from a submission: the last path segment
// of a Figma link, the host of a live URL, or the uploaded file name.
func TitleFor(in models.DesignInput) string {
	switch in.Type {
	case models.DesignTypeFigma:
		var last string
		for _, seg := range strings.Split(in.URL, "/") {
			if seg != "" {
				last = seg
			}
		}
		last, _, _ = strings.Cut(last, "?")
		if last == "" {
			return "Figma Design"
		}
		return last
	case models.DesignTypeURL:
		u, err := url.Parse(in.URL)
		if err != nil || u.Hostname() == "" {
			return in.URL
		}
		return strings.Replace(u.Hostname(), "www.", "", 1)
	case models.DesignTypePNG, models.DesignTypePDF:
		if in.FileName != "" {
			return in.FileName
		}
		return "Uploaded Design"
	}
	return DefaultTitle
}

// Input returns the submission the session was created from.
func (s *Session) Input() models.DesignInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Title returns the audit title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// SetTitle renames the audit.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if title != "" {
		s.title = title
	}
}

// DesignImage returns the preview data URL, or "" when there is none.
func (s *Session) DesignImage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.designImage
}

// Commit replaces the issue list and review state with a scan result.
func (s *Session) Commit(designImage string, issues []models.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if designImage != "" {
		s.designImage = designImage
	}
	s.board = review.NewBoard(issues)
	s.committed = true
}

// Touch marks the session as used at t.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = t
}

// LastUsed returns when the session was last looked up.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Scanning reports whether a scan has started and not yet handed off.
func (s *Session) Scanning() bool {
	run := s.Run()
	if run == nil {
		return false
	}
	select {
	case <-run.Done():
		return false
	default:
		return true
	}
}

// Committed reports whether a scan result has been committed.
func (s *Session) Committed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Scan starts the session's scan. A session scans at most once; Close
// cancels it.
func (s *Session) Scan(ctx context.Context, scanner *scan.Scanner, onUpdate func(scan.Snapshot), onHandOff func()) error {
	s.mu.Lock()
	if s.run != nil {
		s.mu.Unlock()
		return scan.ErrAlreadyStarted
	}
	s.run = scanner.NewRun(onUpdate)
	ctx, s.cancel = context.WithCancel(ctx)
	run := s.run
	in := s.input
	s.mu.Unlock()

	return run.Start(ctx, in, s, onHandOff)
}

// Close cancels a scan in progress. A finished session is unaffected.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run returns the session's scan run, or nil before Scan.
func (s *Session) Run() *scan.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// Progress returns the scan snapshot. A session that was never scanned
// reports idle.
func (s *Session) Progress() scan.Snapshot {
	run := s.Run()
	if run == nil {
		return scan.Snapshot{State: scan.StateIdle, Phase: scan.Phases[0]}
	}
	return run.Snapshot()
}

// Review runs fn against the review board. Before a commit the board holds
// the fallback set.
func (s *Session) Review(fn func(b *review.Board) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		s.board = review.NewBoard(nil)
	}
	return fn(s.board)
}

// Canvas runs fn against the canvas controller.
func (s *Session) Canvas(fn func(c *canvas.Controller)) canvas.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.canvas)
	return s.canvas.Transform()
}

// Issues returns the current issue list.
func (s *Session) Issues() []models.Issue {
	var out []models.Issue
	_ = s.Review(func(b *review.Board) error {
		out = b.Issues()
		return nil
	})
	return out
}

// Score returns the score of the current issue list.
func (s *Session) Score() *score.Result {
	return score.NewScorer().Score(s.Issues())
}

// View is the JSON shape of a session.
type View struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	DesignType  models.DesignType    `json:"designType"`
	DesignURL   string               `json:"designUrl,omitempty"`
	AuditDepth  models.AuditDepth    `json:"auditDepth"`
	DesignImage string               `json:"designImage,omitempty"`
	Scan        scan.Snapshot        `json:"scan"`
	Score       int                  `json:"score"`
	ScoreLabel  string               `json:"scoreLabel"`
	Counts      score.SeverityCounts `json:"counts"`
	Review      *review.State        `json:"review,omitempty"`
	Canvas      canvas.Transform     `json:"canvas"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// View snapshots the session. Review state is only included after a commit.
func (s *Session) View() View {
	progress := s.Progress()

	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:          s.ID,
		Title:       s.title,
		DesignType:  s.input.Type,
		DesignURL:   s.input.URL,
		AuditDepth:  s.input.Depth(),
		DesignImage: s.designImage,
		Scan:        progress,
		Canvas:      s.canvas.Transform(),
		CreatedAt:   s.CreatedAt,
	}
	if s.committed && s.board != nil {
		st := s.board.State()
		res := score.NewScorer().Score(st.Issues)
		v.Review = &st
		v.Score, v.ScoreLabel, v.Counts = res.Score, res.Label, res.Counts
	}
	return v
}
