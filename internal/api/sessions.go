package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/joescharf/auditwise/internal/asset"
	"github.com/joescharf/auditwise/internal/canvas"
	"github.com/joescharf/auditwise/internal/export"
	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/review"
	"github.com/joescharf/auditwise/internal/scan"
	"github.com/joescharf/auditwise/internal/session"
	"github.com/joescharf/auditwise/internal/share"
)

// createSession validates the submission, registers a session and starts its
// scan. With ?wait=true the response is held until the scan hands off.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var in models.DesignInput
	if !decodeBody(w, r, &in) {
		return
	}
	in = in.WithCredentials(s.apiKey, s.figmaToken)
	if err := asset.Validate(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := session.New(in)
	sess.Owner = UserID(r.Context())
	s.sessions.Add(sess)

	// The scan outlives this request; only deleting the session cancels it.
	if err := sess.Scan(context.Background(), s.scanner, nil, nil); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("session created", "session", sess.ID, "type", in.Type, "depth", in.Depth())

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		select {
		case <-sess.Run().Done():
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, http.StatusCreated, sess.View())
}

// listSessions returns the caller's live sessions.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	views := []session.View{}
	for _, sess := range s.sessions.ListOwnedBy(UserID(r.Context())) {
		views = append(views, sess.View())
	}
	writeJSON(w, http.StatusOK, views)
}

// lookupSession resolves the {id} path value. Sessions of other users are
// reported as not found.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err == nil && sess.Owner != UserID(r.Context()) {
		err = session.ErrNotFound
	}
	if err != nil {
		writeLookupError(w, err)
		return nil, false
	}
	return sess, true
}

// committedSession is lookupSession for routes that need scan results.
func (s *Server) committedSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return nil, false
	}
	if !sess.Committed() {
		writeError(w, http.StatusConflict, "scan not complete")
		return nil, false
	}
	return sess, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// deleteSession is the "back to upload" reset.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(sess.ID); err != nil {
		writeLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type progressResponse struct {
	scan.Snapshot
	Message string `json:"message"`
}

func (s *Server) sessionProgress(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	snap := sess.Progress()
	writeJSON(w, http.StatusOK, progressResponse{Snapshot: snap, Message: snap.Message()})
}

type reviewRequest struct {
	Action   string `json:"action"`
	IssueID  int    `json:"issueId"`
	Tab      string `json:"tab"`
	Category string `json:"category"`
}

func (s *Server) reviewAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.committedSession(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var state review.State
	err := sess.Review(func(b *review.Board) error {
		var err error
		switch req.Action {
		case "select":
			err = b.ToggleSelect(req.IssueID)
		case "clear":
			b.ClearSelection()
		case "focus":
			err = b.FocusPin(req.IssueID)
		case "unfocus":
			b.Unfocus()
		case "next":
			b.FocusNext()
		case "prev":
			b.FocusPrev()
		case "tab":
			err = b.SetTab(review.Tab(req.Tab))
		case "category":
			err = b.SetCategory(req.Category)
		default:
			err = fmt.Errorf("unknown review action %q", req.Action)
		}
		state = b.State()
		return err
	})
	if err != nil {
		if errors.Is(err, review.ErrIssueNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) resolveSessionIssue(w http.ResponseWriter, r *http.Request) {
	s.setSessionIssueStatus(w, r, models.IssueStatusResolved)
}

func (s *Server) reopenSessionIssue(w http.ResponseWriter, r *http.Request) {
	s.setSessionIssueStatus(w, r, models.IssueStatusOpen)
}

func (s *Server) setSessionIssueStatus(w http.ResponseWriter, r *http.Request, status models.IssueStatus) {
	sess, ok := s.committedSession(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue number")
		return
	}

	var state review.State
	err = sess.Review(func(b *review.Board) error {
		var err error
		if status == models.IssueStatusResolved {
			err = b.Resolve(n)
		} else {
			err = b.Reopen(n)
		}
		state = b.State()
		return err
	})
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type canvasRequest struct {
	Action string  `json:"action"`
	DeltaY float64 `json:"deltaY"`
	Button int     `json:"button"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func (s *Server) canvasAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req canvasRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var unknown bool
	t := sess.Canvas(func(c *canvas.Controller) {
		p := canvas.Point{X: req.X, Y: req.Y}
		switch req.Action {
		case "wheel":
			c.Wheel(req.DeltaY)
		case "zoom_in":
			c.ZoomIn()
		case "zoom_out":
			c.ZoomOut()
		case "reset":
			c.Reset()
		case "pointer_down":
			c.PointerDown(req.Button, p)
		case "pointer_move":
			c.PointerMove(p)
		case "pointer_up":
			c.PointerUp()
		case "pointer_leave":
			c.PointerLeave()
		default:
			unknown = true
		}
	})
	if unknown {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown canvas action %q", req.Action))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) sessionPins(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.committedSession(w, r)
	if !ok {
		return
	}
	width, _ := strconv.ParseFloat(r.URL.Query().Get("width"), 64)
	height, _ := strconv.ParseFloat(r.URL.Query().Get("height"), 64)
	if width <= 0 || height <= 0 {
		width, height = 100, 100
	}
	writeJSON(w, http.StatusOK, canvas.Layout(sess.Issues(), width, height))
}

func (s *Server) exportSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.committedSession(w, r)
	if !ok {
		return
	}
	in := sess.Input()
	writeReport(w, r.URL.Query().Get("format"), export.Report{
		Title:      sess.Title(),
		DesignType: in.Type,
		AuditDepth: in.Depth(),
		Issues:     sess.Issues(),
		Generated:  time.Now(),
	})
}

func writeReport(w http.ResponseWriter, format string, rep export.Report) {
	switch format {
	case "", "html":
		var buf bytes.Buffer
		if err := export.HTML(&buf, rep); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", export.HTMLFilename(rep.Title)))
		_, _ = w.Write(buf.Bytes())
	case "text", "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(rep.Title)))
		_, _ = w.Write([]byte(export.Text(rep)))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown export format %q", format))
	}
}

func (s *Server) shareSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.committedSession(w, r)
	if !ok {
		return
	}
	payload := share.NewPayload(sess.Title(), sess.Input().Type, sess.Issues(), time.Now())
	link, err := share.Link(s.publicOrigin(r), payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

// saveSession persists the reviewed session as an audit of the caller.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.committedSession(w, r)
	if !ok {
		return
	}
	in := sess.Input()
	a := &models.Audit{
		UserID:         UserID(r.Context()),
		Title:          sess.Title(),
		DesignType:     in.Type,
		DesignURL:      in.URL,
		DesignImageURL: sess.DesignImage(),
		AuditDepth:     in.Depth(),
		Status:         models.AuditStatusCompleted,
		Issues:         sess.Issues(),
	}
	if err := s.store.CreateAudit(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
