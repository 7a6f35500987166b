package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/auditwise/internal/review"
	"github.com/joescharf/auditwise/internal/scan"
	"github.com/joescharf/auditwise/internal/session"
	"github.com/joescharf/auditwise/internal/share"
	"github.com/joescharf/auditwise/internal/store"
)

// maxBodyBytes bounds request bodies; uploads arrive as data URLs.
const maxBodyBytes = 32 << 20

// DefaultSessionTTL is how long a finished session may sit unused before it
// is evicted.
const DefaultSessionTTL = time.Hour

// Config holds the server settings taken from configuration.
type Config struct {
	// Origin is the public base URL used in share links. When empty it is
	// derived from each request.
	Origin string
	// APIKey and FigmaToken fill submissions that do not carry their own.
	APIKey     string
	FigmaToken string
	SessionTTL time.Duration
}

// Server provides the REST API handlers.
type Server struct {
	store      store.Store
	scanner    *scan.Scanner
	sessions   *session.Registry
	auth       *Authenticator
	origin     string
	apiKey     string
	figmaToken string
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewServer creates a new API server.
func NewServer(s store.Store, scanner *scan.Scanner, auth *Authenticator, cfg Config) *Server {
	if auth == nil {
		auth = NewAuthenticator("", "")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	return &Server{
		store:      s,
		scanner:    scanner,
		sessions:   session.NewRegistry(),
		auth:       auth,
		origin:     strings.TrimRight(cfg.Origin, "/"),
		apiKey:     cfg.APIKey,
		figmaToken: cfg.FigmaToken,
		sessionTTL: cfg.SessionTTL,
		logger:     slog.Default(),
	}
}

// Sessions exposes the live session registry.
func (s *Server) Sessions() *session.Registry {
	return s.sessions
}

// EvictSessions drops idle sessions every interval until ctx is done.
func (s *Server) EvictSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.sessions.Evict(now.Add(-s.sessionTTL)); n > 0 {
				s.logger.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/sessions", s.auth.Require(s.createSession))
	mux.HandleFunc("GET /api/v1/sessions", s.auth.Require(s.listSessions))
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.auth.Require(s.getSession))
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.auth.Require(s.deleteSession))
	mux.HandleFunc("GET /api/v1/sessions/{id}/progress", s.auth.Require(s.sessionProgress))
	mux.HandleFunc("POST /api/v1/sessions/{id}/review", s.auth.Require(s.reviewAction))
	mux.HandleFunc("POST /api/v1/sessions/{id}/issues/{n}/resolve", s.auth.Require(s.resolveSessionIssue))
	mux.HandleFunc("POST /api/v1/sessions/{id}/issues/{n}/reopen", s.auth.Require(s.reopenSessionIssue))
	mux.HandleFunc("POST /api/v1/sessions/{id}/canvas", s.auth.Require(s.canvasAction))
	mux.HandleFunc("GET /api/v1/sessions/{id}/pins", s.auth.Require(s.sessionPins))
	mux.HandleFunc("GET /api/v1/sessions/{id}/export", s.auth.Require(s.exportSession))
	mux.HandleFunc("POST /api/v1/sessions/{id}/share", s.auth.Require(s.shareSession))
	mux.HandleFunc("POST /api/v1/sessions/{id}/save", s.auth.Require(s.saveSession))

	mux.HandleFunc("GET "+share.Path, s.sharedPage)
	mux.HandleFunc("GET /api/v1/shared", s.decodeShared)
	mux.HandleFunc("GET /api/v1/shared/{token}", s.getSharedAudit)

	mux.HandleFunc("GET /api/v1/audits", s.auth.Require(s.listAudits))
	mux.HandleFunc("GET /api/v1/audits/{id}", s.auth.Require(s.getAudit))
	mux.HandleFunc("PUT /api/v1/audits/{id}", s.auth.Require(s.updateAudit))
	mux.HandleFunc("DELETE /api/v1/audits/{id}", s.auth.Require(s.deleteAudit))
	mux.HandleFunc("POST /api/v1/audits/{id}/issues/{n}/resolve", s.auth.Require(s.resolveAuditIssue))
	mux.HandleFunc("POST /api/v1/audits/{id}/issues/{n}/reopen", s.auth.Require(s.reopenAuditIssue))
	mux.HandleFunc("POST /api/v1/audits/{id}/share", s.auth.Require(s.shareAudit))
	mux.HandleFunc("DELETE /api/v1/audits/{id}/share", s.auth.Require(s.unshareAudit))
	mux.HandleFunc("GET /api/v1/audits/{id}/export", s.auth.Require(s.exportAudit))

	mux.HandleFunc("GET /api/v1/profile", s.auth.Require(s.getProfile))
	mux.HandleFunc("PUT /api/v1/profile", s.auth.Require(s.updateProfile))

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLookupError maps "not found" errors to 404 and everything else to 500.
func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, session.ErrNotFound) ||
		errors.Is(err, review.ErrIssueNotFound) || strings.Contains(err.Error(), "not found") {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// publicOrigin is the base URL for links handed to users.
func (s *Server) publicOrigin(r *http.Request) string {
	if s.origin != "" {
		return s.origin
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}
