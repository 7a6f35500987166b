package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/joescharf/auditwise/internal/export"
	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/score"
	"github.com/joescharf/auditwise/internal/share"
	"github.com/joescharf/auditwise/internal/store"
)

type sharedResponse struct {
	share.Payload
	ScoreLabel string               `json:"scoreLabel"`
	Counts     score.SeverityCounts `json:"counts"`
}

// decodeShared renders the read-only view of a ?data= share link.
func (s *Server) decodeShared(w http.ResponseWriter, r *http.Request) {
	p, err := share.Decode(r.URL.Query().Get("data"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "home": "/"})
		return
	}
	writeJSON(w, http.StatusOK, sharedResponse{
		Payload:    p,
		ScoreLabel: score.Label(p.Score),
		Counts:     score.Counts(p.Issues),
	})
}

// invalidLinkPage is shown for share links that cannot be decoded.
const invalidLinkPage = `<!DOCTYPE html><html><head><meta charset="utf-8"/><title>Invalid link</title></head>
<body><p>This share link is invalid or has expired.</p><p><a href="/">Go home</a></p></body></html>`

// sharedPage renders a share link as the printable report.
func (s *Server) sharedPage(w http.ResponseWriter, r *http.Request) {
	p, err := share.Decode(r.URL.Query().Get("data"))
	if err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(invalidLinkPage))
		return
	}

	generated, err := time.Parse(share.DateLayout, p.CreatedAt)
	if err != nil {
		generated = time.Now()
	}
	var buf bytes.Buffer
	if err := export.HTML(&buf, export.Report{
		Title:      p.Title,
		DesignType: models.DesignType(p.DesignType),
		Issues:     p.Issues,
		Generated:  generated,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) getSharedAudit(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetSharedAudit(r.Context(), r.PathValue("token"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": share.ErrInvalidLink.Error(), "home": "/"})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) listAudits(w http.ResponseWriter, r *http.Request) {
	audits, err := s.store.ListAudits(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if audits == nil {
		audits = []*models.Audit{}
	}
	writeJSON(w, http.StatusOK, audits)
}

// ownedAudit loads the audit named in the path. Audits of other users are
// reported as missing.
func (s *Server) ownedAudit(w http.ResponseWriter, r *http.Request) (*models.Audit, bool) {
	id := r.PathValue("id")
	a, err := s.store.GetAudit(r.Context(), id)
	if err != nil {
		writeLookupError(w, err)
		return nil, false
	}
	if a.UserID != UserID(r.Context()) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("audit not found: %s", id))
		return nil, false
	}
	return a, true
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request) {
	a, ok := s.ownedAudit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type auditPatch struct {
	Title  *string          `json:"title"`
	Status *string          `json:"status"`
	Issues *[]models.Issue `json:"issues"`
}

func (s *Server) updateAudit(w http.ResponseWriter, r *http.Request) {
	a, ok := s.ownedAudit(w, r)
	if !ok {
		return
	}
	var patch auditPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	// Issues stay nil unless replaced so the stored list is left alone.
	update := *a
	update.Issues = nil
	if patch.Title != nil {
		update.Title = *patch.Title
	}
	if patch.Status != nil {
		update.Status = models.AuditStatus(*patch.Status)
	}
	if patch.Issues != nil {
		update.Issues = *patch.Issues
	}
	if err := s.store.UpdateAudit(r.Context(), &update); err != nil {
		writeLookupError(w, err)
		return
	}

	updated, err := s.store.GetAudit(r.Context(), a.ID)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteAudit(w http.ResponseWriter, r *http.Request) {
	a, ok := s.ownedAudit(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteAudit(r.Context(), a.ID); err != nil {
		writeLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resolveAuditIssue(w http.ResponseWriter, r *http.Request) {
	s.setAuditIssueStatus(w, r, models.IssueStatusResolved)
}

func (s *Server) reopenAuditIssue(w http.ResponseWriter, r *http.Request) {
	s.setAuditIssueStatus(w, r, models.IssueStatusOpen)
}

func (s *Server) setAuditIssueStatus(w http.ResponseWriter, r *http.Request, status models.IssueStatus) {
	a, ok := s.ownedAudit(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue number")
		return
	}
	updated, err := s.store.UpdateIssueStatus(r.Context(), a.ID, n, status)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) shareAudit(w http.ResponseWriter, r *http.Request) {
	a, ok := s.ownedAudit(w, r)
	if !ok {
		return
	}
	token, err := s.store.ShareAudit(r.Context(), a.ID)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"url":   s.publicOrigin(r) + "/api/v1/shared/" + token,
	})
}

func (s *Server) unshareAudit(w http.ResponseWriter, r *http.Request) {
	a, ok := s.ownedAudit(w, r)
	if !ok {
		return
	}
	if err := s.store.UnshareAudit(r.Context(), a.ID); err != nil {
		writeLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportAudit(w http.ResponseWriter, r *http.Request) {
	a, ok := s.ownedAudit(w, r)
	if !ok {
		return
	}
	writeReport(w, r.URL.Query().Get("format"), export.Report{
		Title:      a.Title,
		DesignType: a.DesignType,
		AuditDepth: a.AuditDepth,
		Issues:     a.Issues,
		Generated:  time.Now(),
	})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id := UserID(r.Context())
	p, err := s.store.GetProfile(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, &models.Profile{ID: id})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var p models.Profile
	if !decodeBody(w, r, &p) {
		return
	}
	p.ID = UserID(r.Context())
	if err := s.store.UpsertProfile(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	updated, err := s.store.GetProfile(r.Context(), p.ID)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
