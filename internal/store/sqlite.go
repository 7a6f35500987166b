package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/score"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; concurrent API requests queue in the pool.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Audits ---

const auditColumns = `id, user_id, title, design_type, design_url, design_image_url, audit_depth, score, status, is_shared, share_token, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*models.Audit, error) {
	a := &models.Audit{}
	var designType, depth, status string
	var token sql.NullString
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &designType, &a.DesignURL, &a.DesignImageURL, &depth,
		&a.Score, &status, &a.IsShared, &token, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.DesignType = models.DesignType(designType)
	a.AuditDepth = models.AuditDepth(depth)
	a.Status = models.AuditStatus(status)
	a.ShareToken = token.String
	return a, nil
}

func (s *SQLiteStore) CreateAudit(ctx context.Context, a *models.Audit) error {
	if a.ID == "" {
		a.ID = newULID()
	}
	if a.Status == "" {
		a.Status = models.AuditStatusCompleted
	}
	if a.AuditDepth == "" {
		a.AuditDepth = models.AuditDepthStandard
	}
	if a.Issues == nil {
		a.Issues = []models.Issue{}
	}
	a.Score = score.NewScorer().Score(a.Issues).Score
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create audit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audits (id, user_id, title, design_type, design_url, design_image_url, audit_depth, score, status, is_shared, share_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
		a.ID, a.UserID, a.Title, string(a.DesignType), a.DesignURL, a.DesignImageURL, string(a.AuditDepth),
		a.Score, string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create audit: %w", err)
	}
	if err := insertIssues(ctx, tx, a.ID, a.Issues, now); err != nil {
		return err
	}
	return tx.Commit()
}

func insertIssues(ctx context.Context, tx *sql.Tx, auditID string, issues []models.Issue, now time.Time) error {
	for _, is := range issues {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO audit_issues (id, audit_id, number, title, category, severity, status, explanation, how_to_fix, suggestion, x, y, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			newULID(), auditID, is.ID, is.Title, string(is.Category), string(is.Severity), string(is.Status),
			is.Explanation, is.HowToFix, is.Suggestion, is.X, is.Y, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert issue %d: %w", is.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) loadIssues(ctx context.Context, a *models.Audit) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, title, category, severity, status, explanation, how_to_fix, suggestion, x, y
		FROM audit_issues WHERE audit_id = ? ORDER BY number`, a.ID)
	if err != nil {
		return fmt.Errorf("list audit issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	a.Issues = []models.Issue{}
	for rows.Next() {
		var is models.Issue
		var category, severity, status string
		if err := rows.Scan(&is.ID, &is.Title, &category, &severity, &status, &is.Explanation, &is.HowToFix, &is.Suggestion, &is.X, &is.Y); err != nil {
			return fmt.Errorf("scan audit issue: %w", err)
		}
		is.Category = models.Category(category)
		is.Severity = models.Severity(severity)
		is.Status = models.IssueStatus(status)
		a.Issues = append(a.Issues, is)
	}
	return rows.Err()
}

func (s *SQLiteStore) GetAudit(ctx context.Context, id string) (*models.Audit, error) {
	a, err := scanAudit(s.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audits WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit %w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get audit: %w", err)
	}
	if err := s.loadIssues(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAudits returns a user's audits, newest first.
func (s *SQLiteStore) ListAudits(ctx context.Context, userID string) ([]*models.Audit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}

	var audits []*models.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		audits = append(audits, a)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// Issues load after the cursor is closed; the pool holds one connection.
	for _, a := range audits {
		if err := s.loadIssues(ctx, a); err != nil {
			return nil, err
		}
	}
	return audits, nil
}

// UpdateAudit saves the editable fields of a. A non-nil Issues slice replaces
// the stored issues and the score is recomputed from it.
func (s *SQLiteStore) UpdateAudit(ctx context.Context, a *models.Audit) error {
	now := time.Now().UTC()
	a.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update audit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if a.Issues != nil {
		a.Score = score.NewScorer().Score(a.Issues).Score
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE audits SET title=?, design_url=?, design_image_url=?, audit_depth=?, score=?, status=?, updated_at=?
		WHERE id=?`,
		a.Title, a.DesignURL, a.DesignImageURL, string(a.AuditDepth), a.Score, string(a.Status), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update audit: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("audit %w: %s", ErrNotFound, a.ID)
	}

	if a.Issues != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM audit_issues WHERE audit_id = ?", a.ID); err != nil {
			return fmt.Errorf("replace audit issues: %w", err)
		}
		if err := insertIssues(ctx, tx, a.ID, a.Issues, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteAudit(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM audits WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete audit: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("audit %w: %s", ErrNotFound, id)
	}
	return nil
}

// UpdateIssueStatus resolves or reopens issue number of an audit and
// recomputes the audit score.
func (s *SQLiteStore) UpdateIssueStatus(ctx context.Context, auditID string, number int, status models.IssueStatus) (*models.Audit, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE audit_issues SET status=?, updated_at=? WHERE audit_id=? AND number=?`,
		string(status), now, auditID, number)
	if err != nil {
		return nil, fmt.Errorf("update issue status: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("issue %w: %s#%d", ErrNotFound, auditID, number)
	}

	a, err := s.GetAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	a.Score = score.NewScorer().Score(a.Issues).Score
	a.UpdatedAt = now
	if _, err := s.db.ExecContext(ctx, `UPDATE audits SET score=?, updated_at=? WHERE id=?`, a.Score, now, a.ID); err != nil {
		return nil, fmt.Errorf("update audit score: %w", err)
	}
	return a, nil
}

// --- Sharing ---

// ShareAudit marks an audit shared and returns its token. Sharing an already
// shared audit returns the existing token.
func (s *SQLiteStore) ShareAudit(ctx context.Context, id string) (string, error) {
	a, err := s.GetAudit(ctx, id)
	if err != nil {
		return "", err
	}
	if a.IsShared && a.ShareToken != "" {
		return a.ShareToken, nil
	}

	token := a.ShareToken
	if token == "" {
		token = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE audits SET is_shared=?, share_token=?, updated_at=? WHERE id=?`,
		boolToInt(true), token, time.Now().UTC(), id)
	if err != nil {
		return "", fmt.Errorf("share audit: %w", err)
	}
	return token, nil
}

// UnshareAudit revokes public access. The token is kept so re-sharing
// restores the same link.
func (s *SQLiteStore) UnshareAudit(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE audits SET is_shared=?, updated_at=? WHERE id=?`,
		boolToInt(false), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("unshare audit: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("audit %w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) GetSharedAudit(ctx context.Context, token string) (*models.Audit, error) {
	a, err := scanAudit(s.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE share_token = ? AND is_shared = 1`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shared audit %w: %s", ErrNotFound, token)
	}
	if err != nil {
		return nil, fmt.Errorf("get shared audit: %w", err)
	}
	if err := s.loadIssues(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// --- Profiles ---

func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	p := &models.Profile{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, avatar_url, created_at, updated_at FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpsertProfile creates the profile or updates its editable fields.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email=excluded.email, full_name=excluded.full_name,
			avatar_url=excluded.avatar_url, updated_at=excluded.updated_at`,
		p.ID, p.Email, p.FullName, p.AvatarURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	got, err := s.GetProfile(ctx, p.ID)
	if err != nil {
		return err
	}
	p.CreatedAt = got.CreatedAt
	return nil
}
