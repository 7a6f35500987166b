package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/auditwise/internal/ai"
	"github.com/joescharf/auditwise/internal/asset"
	"github.com/joescharf/auditwise/internal/canvas"
	"github.com/joescharf/auditwise/internal/figma"
	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/review"
	"github.com/joescharf/auditwise/internal/scan"
	"github.com/joescharf/auditwise/internal/session"
	"github.com/joescharf/auditwise/internal/store"
)

func setupTestServer(t *testing.T, auth *Authenticator) (*Server, store.Store) {
	t.Helper()
	scanner := scan.NewScanner(nil, nil)
	return setupTestServerWith(t, auth, scanner, Config{Origin: "https://auditwise.test"})
}

func setupTestServerWith(t *testing.T, auth *Authenticator, scanner *scan.Scanner, cfg Config) (*Server, store.Store) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	scanner.Duration = 20 * time.Millisecond
	scanner.Tick = time.Millisecond
	scanner.HandOffDelay = time.Millisecond

	srv := NewServer(s, scanner, auth, cfg)
	t.Cleanup(func() {
		for _, sess := range srv.Sessions().List() {
			_ = srv.Sessions().Delete(sess.ID)
		}
	})
	return srv, s
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// createScannedSession submits a URL design and waits for the scan to hand off.
func createScannedSession(t *testing.T, h http.Handler) session.View {
	t.Helper()
	w := do(t, h, "POST", "/api/v1/sessions?wait=true",
		`{"type":"url","url":"https://www.example.com/pricing","auditDepth":"Deep"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[session.View](t, w)
}

func TestCreateSession_Validation(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()

	w := do(t, router, "POST", "/api/v1/sessions", `{"type":"url"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "url")

	w = do(t, router, "POST", "/api/v1/sessions", `{"type":"sketch"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "POST", "/api/v1/sessions", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")
}

func TestSessionFlow_FallbackScan(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()

	view := createScannedSession(t, router)
	assert.Equal(t, "example.com", view.Title)
	assert.Equal(t, models.AuditDepthDeep, view.AuditDepth)
	assert.True(t, view.Scan.Done)
	require.NotNil(t, view.Review)
	assert.Len(t, view.Review.Issues, 6)
	assert.Equal(t, 74, view.Score)
	assert.Equal(t, "Needs Attention", view.ScoreLabel)

	w := do(t, router, "GET", "/api/v1/sessions/"+view.ID+"/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	progress := decode[progressResponse](t, w)
	assert.Equal(t, scan.StateComplete, progress.State)
	assert.Equal(t, float64(100), progress.Percent)
	assert.Equal(t, scan.StatusDone, progress.Message)

	w = do(t, router, "GET", "/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]session.View](t, w), 1)
}

func TestSession_NotFound(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()

	w := do(t, router, "GET", "/api/v1/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "DELETE", "/api/v1/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSession_ReviewBeforeCommit(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()

	sess := session.New(models.DesignInput{Type: models.DesignTypeURL, URL: "https://example.com"})
	srv.Sessions().Add(sess)

	w := do(t, router, "POST", "/api/v1/sessions/"+sess.ID+"/review", `{"action":"next"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, "GET", "/api/v1/sessions/"+sess.ID+"/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, scan.StateIdle, decode[progressResponse](t, w).State)
}

func TestSession_ReviewActions(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()
	view := createScannedSession(t, router)
	base := "/api/v1/sessions/" + view.ID

	w := do(t, router, "POST", base+"/review", `{"action":"focus","issueId":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[review.State](t, w)
	assert.Equal(t, 2, st.FocusedID)
	assert.Equal(t, 2, st.SelectedID)
	assert.True(t, st.HasPrev)
	assert.True(t, st.HasNext)

	w = do(t, router, "POST", base+"/review", `{"action":"next"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[review.State](t, w).FocusedID)

	w = do(t, router, "POST", base+"/issues/3/resolve", "")
	require.Equal(t, http.StatusOK, w.Code)
	st = decode[review.State](t, w)
	assert.Zero(t, st.FocusedID)
	assert.Equal(t, 1, st.SelectedID)
	assert.Equal(t, 5, st.OpenCount)
	assert.Equal(t, 1, st.Resolved)

	w = do(t, router, "POST", base+"/review", `{"action":"category","category":"accessibility"}`)
	require.Equal(t, http.StatusOK, w.Code)
	st = decode[review.State](t, w)
	assert.Equal(t, "Accessibility", st.Category)
	assert.Len(t, st.Visible, 2)

	w = do(t, router, "POST", base+"/review", `{"action":"tab","tab":"resolved"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[review.State](t, w).Visible)

	w = do(t, router, "POST", base+"/issues/3/reopen", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 6, decode[review.State](t, w).OpenCount)

	w = do(t, router, "POST", base+"/issues/99/resolve", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "POST", base+"/issues/x/resolve", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "POST", base+"/review", `{"action":"dance"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "POST", base+"/review", `{"action":"focus","issueId":42}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSession_CanvasAndPins(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()
	view := createScannedSession(t, router)
	base := "/api/v1/sessions/" + view.ID

	w := do(t, router, "POST", base+"/canvas", `{"action":"zoom_in"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 1.2, decode[canvas.Transform](t, w).Scale, 1e-9)

	do(t, router, "POST", base+"/canvas", `{"action":"pointer_down","button":0,"x":10,"y":10}`)
	w = do(t, router, "POST", base+"/canvas", `{"action":"pointer_move","x":30,"y":15}`)
	tr := decode[canvas.Transform](t, w)
	assert.InDelta(t, 20, tr.X, 1e-9)
	assert.InDelta(t, 5, tr.Y, 1e-9)

	w = do(t, router, "POST", base+"/canvas", `{"action":"reset"}`)
	assert.Equal(t, canvas.Identity, decode[canvas.Transform](t, w))

	w = do(t, router, "POST", base+"/canvas", `{"action":"spin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "GET", base+"/pins?width=200&height=100", "")
	require.Equal(t, http.StatusOK, w.Code)
	pins := decode[[]canvas.Pin](t, w)
	require.Len(t, pins, 6)
	assert.InDelta(t, 140, pins[0].X, 1e-9)
	assert.InDelta(t, 20, pins[0].Y, 1e-9)
}

func TestSession_ExportAndShare(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()
	view := createScannedSession(t, router)
	base := "/api/v1/sessions/" + view.ID

	w := do(t, router, "GET", base+"/export?format=text", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "example-com-audit.txt")
	assert.Contains(t, w.Body.String(), "Low contrast body text")

	w = do(t, router, "GET", base+"/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<html")

	w = do(t, router, "GET", base+"/export?format=docx", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "POST", base+"/share", "")
	require.Equal(t, http.StatusOK, w.Code)
	link := decode[map[string]string](t, w)["url"]
	require.True(t, strings.HasPrefix(link, "https://auditwise.test/audit/shared?data="), link)

	u, err := url.Parse(link)
	require.NoError(t, err)
	w = do(t, router, "GET", "/api/v1/shared?data="+url.QueryEscape(u.Query().Get("data")), "")
	require.Equal(t, http.StatusOK, w.Code)
	shared := decode[sharedResponse](t, w)
	assert.Equal(t, "example.com", shared.Title)
	assert.Len(t, shared.Issues, 6)
	assert.Equal(t, 74, shared.Score)
	assert.Equal(t, "Needs Attention", shared.ScoreLabel)
	assert.Equal(t, 2, shared.Counts.High)
}

func TestDecodeShared_Invalid(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()

	for _, data := range []string{"", "not-base64!!", "aGVsbG8="} {
		w := do(t, router, "GET", "/api/v1/shared?data="+url.QueryEscape(data), "")
		assert.Equal(t, http.StatusBadRequest, w.Code, data)
		body := decode[map[string]string](t, w)
		assert.Equal(t, "invalid link", body["error"])
		assert.Equal(t, "/", body["home"])
	}
}

func TestSharedPage(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()
	view := createScannedSession(t, router)

	w := do(t, router, "POST", "/api/v1/sessions/"+view.ID+"/share", "")
	require.Equal(t, http.StatusOK, w.Code)
	u, err := url.Parse(decode[map[string]string](t, w)["url"])
	require.NoError(t, err)

	w = do(t, router, "GET", u.RequestURI(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "example.com")

	w = do(t, router, "GET", "/audit/shared?data=garbage", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `href="/"`)
}

func TestDeleteSession(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()
	view := createScannedSession(t, router)

	w := do(t, router, "DELETE", "/api/v1/sessions/"+view.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, "GET", "/api/v1/sessions/"+view.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveAndManageAudit(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()
	view := createScannedSession(t, router)

	w := do(t, router, "POST", "/api/v1/sessions/"+view.ID+"/save", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	saved := decode[models.Audit](t, w)
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, "local", saved.UserID)
	assert.Equal(t, models.DesignTypeURL, saved.DesignType)
	assert.Equal(t, models.AuditStatusCompleted, saved.Status)
	assert.Len(t, saved.Issues, 6)

	w = do(t, router, "GET", "/api/v1/audits", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*models.Audit](t, w), 1)

	auditPath := "/api/v1/audits/" + saved.ID

	w = do(t, router, "PUT", auditPath, `{"title":"Pricing page"}`)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.Audit](t, w)
	assert.Equal(t, "Pricing page", updated.Title)
	assert.Len(t, updated.Issues, 6)

	w = do(t, router, "POST", auditPath+"/issues/1/resolve", "")
	require.Equal(t, http.StatusOK, w.Code)
	resolved := decode[models.Audit](t, w)
	assert.Equal(t, models.IssueStatusResolved, resolved.Issues[0].Status)
	assert.Equal(t, 77, resolved.Score)

	w = do(t, router, "POST", auditPath+"/issues/1/reopen", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 74, decode[models.Audit](t, w).Score)

	w = do(t, router, "GET", auditPath+"/export?format=text", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Pricing-page-audit.txt")

	w = do(t, router, "DELETE", auditPath, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, "GET", auditPath, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShareAudit_API(t *testing.T) {
	srv, s := setupTestServer(t, nil)
	router := srv.Router()

	a := &models.Audit{UserID: "local", Title: "Dash", DesignType: models.DesignTypePNG, AuditDepth: models.AuditDepthQuick}
	require.NoError(t, s.CreateAudit(context.Background(), a))

	w := do(t, router, "POST", "/api/v1/audits/"+a.ID+"/share", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	token := body["token"]
	require.NotEmpty(t, token)
	assert.Equal(t, "https://auditwise.test/api/v1/shared/"+token, body["url"])

	w = do(t, router, "GET", "/api/v1/shared/"+token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dash", decode[models.Audit](t, w).Title)

	w = do(t, router, "DELETE", "/api/v1/audits/"+a.ID+"/share", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, "GET", "/api/v1/shared/"+token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "/", decode[map[string]string](t, w)["home"])

	// Re-sharing restores the same link.
	w = do(t, router, "POST", "/api/v1/audits/"+a.ID+"/share", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, token, decode[map[string]string](t, w)["token"])
}

func TestAudit_OtherUserIsNotFound(t *testing.T) {
	srv, s := setupTestServer(t, nil)
	router := srv.Router()

	a := &models.Audit{UserID: "someone-else", Title: "Private", DesignType: models.DesignTypeURL, AuditDepth: models.AuditDepthStandard}
	require.NoError(t, s.CreateAudit(context.Background(), a))

	w := do(t, router, "GET", "/api/v1/audits/"+a.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "DELETE", "/api/v1/audits/"+a.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, "GET", "/api/v1/audits", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]*models.Audit](t, w))
}

func TestProfile_API(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	router := srv.Router()

	w := do(t, router, "GET", "/api/v1/profile", "")
	require.Equal(t, http.StatusOK, w.Code)
	p := decode[models.Profile](t, w)
	assert.Equal(t, "local", p.ID)
	assert.Empty(t, p.FullName)

	w = do(t, router, "PUT", "/api/v1/profile", `{"id":"ignored","fullName":"Ada Lovelace","email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	p = decode[models.Profile](t, w)
	assert.Equal(t, "local", p.ID)
	assert.Equal(t, "Ada Lovelace", p.FullName)
	assert.Equal(t, "ada@example.com", p.Email)
}

func TestAuth_JWT(t *testing.T) {
	secret := "test-secret"
	srv, _ := setupTestServer(t, NewAuthenticator(secret, ""))
	router := srv.Router()

	w := do(t, router, "GET", "/api/v1/audits", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing token")

	w = do(t, router, "GET", "/api/v1/audits", "", "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")

	wrong, err := GenerateToken("user-1", []byte("other-secret"), time.Hour)
	require.NoError(t, err)
	w = do(t, router, "GET", "/api/v1/audits", "", "Authorization", "Bearer "+wrong)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := GenerateToken("user-1", []byte(secret), -time.Minute)
	require.NoError(t, err)
	w = do(t, router, "GET", "/api/v1/audits", "", "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := GenerateToken("user-1", []byte(secret), time.Hour)
	require.NoError(t, err)
	w = do(t, router, "GET", "/api/v1/profile", "", "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", decode[models.Profile](t, w).ID)

	w = do(t, router, "GET", "/api/v1/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessions_ScopedToCreator(t *testing.T) {
	secret := "test-secret"
	srv, _ := setupTestServer(t, NewAuthenticator(secret, ""))
	router := srv.Router()

	alice, err := GenerateToken("alice", []byte(secret), time.Hour)
	require.NoError(t, err)
	bob, err := GenerateToken("bob", []byte(secret), time.Hour)
	require.NoError(t, err)

	w := do(t, router, "POST", "/api/v1/sessions?wait=true",
		`{"type":"url","url":"https://www.example.com/pricing"}`, "Authorization", "Bearer "+alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[session.View](t, w).ID

	w = do(t, router, "GET", "/api/v1/sessions", "", "Authorization", "Bearer "+alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]session.View](t, w), 1)

	w = do(t, router, "GET", "/api/v1/sessions", "", "Authorization", "Bearer "+bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]session.View](t, w))

	for _, req := range []struct{ method, path string }{
		{"GET", "/api/v1/sessions/" + id},
		{"POST", "/api/v1/sessions/" + id + "/issues/1/resolve"},
		{"POST", "/api/v1/sessions/" + id + "/share"},
		{"POST", "/api/v1/sessions/" + id + "/save"},
		{"DELETE", "/api/v1/sessions/" + id},
	} {
		w = do(t, router, req.method, req.path, "", "Authorization", "Bearer "+bob)
		assert.Equal(t, http.StatusNotFound, w.Code, req.path)
	}

	w = do(t, router, "GET", "/api/v1/sessions/"+id, "", "Authorization", "Bearer "+alice)
	assert.Equal(t, http.StatusOK, w.Code)
}

// tokenFetcher returns a one-pixel PNG and remembers the token it got.
type tokenFetcher struct {
	mu    sync.Mutex
	token string
}

func (f *tokenFetcher) FetchImage(_ context.Context, _ figma.Ref, token string) (*figma.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	return &figma.Image{MIMEType: "image/png", Data: []byte("\x89PNG\r\n\x1a\n")}, nil
}

func (f *tokenFetcher) seen() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

type keyCaller struct {
	mu     sync.Mutex
	apiKey string
}

func (c *keyCaller) Generate(_ context.Context, apiKey string, _ ai.RequestBuilder, _ ai.StatusFunc) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = apiKey
	return `[{"title":"Crowded header","category":"Layout","severity":"Low","x":40,"y":12}]`, true, nil
}

func (c *keyCaller) seen() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiKey
}

func TestCreateSession_ConfiguredCredentials(t *testing.T) {
	fetcher := &tokenFetcher{}
	caller := &keyCaller{}
	scanner := scan.NewScanner(asset.NewResolver(fetcher), caller)
	srv, _ := setupTestServerWith(t, nil, scanner, Config{
		Origin:     "https://auditwise.test",
		APIKey:     "configured-key",
		FigmaToken: "configured-token",
	})
	router := srv.Router()

	w := do(t, router, "POST", "/api/v1/sessions?wait=true",
		`{"type":"figma","url":"https://www.figma.com/design/AbC123/Checkout"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	v := decode[session.View](t, w)

	assert.Equal(t, "configured-token", fetcher.seen())
	assert.Equal(t, "configured-key", caller.seen())
	assert.True(t, strings.HasPrefix(v.DesignImage, "data:image/png;base64,"))
	require.NotNil(t, v.Review)
	require.Len(t, v.Review.Issues, 1)
	assert.Equal(t, "Crowded header", v.Review.Issues[0].Title)
	assert.NotContains(t, w.Body.String(), "configured-token")
	assert.NotContains(t, w.Body.String(), "configured-key")

	w = do(t, router, "POST", "/api/v1/sessions?wait=true",
		`{"type":"figma","url":"https://www.figma.com/design/AbC123/Checkout","figmaToken":"own-token","apiKey":"own-key"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "own-token", fetcher.seen())
	assert.Equal(t, "own-key", caller.seen())
}

func TestEvictSessions(t *testing.T) {
	scanner := scan.NewScanner(nil, nil)
	srv, _ := setupTestServerWith(t, nil, scanner, Config{SessionTTL: time.Millisecond})
	router := srv.Router()

	createScannedSession(t, router)
	require.Len(t, srv.Sessions().List(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.EvictSessions(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(srv.Sessions().List()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t, nil)
	w := do(t, srv.Router(), "OPTIONS", "/api/v1/sessions", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}
