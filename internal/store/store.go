package store

import (
	"context"
	"errors"

	"github.com/joescharf/auditwise/internal/models"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for auditwise.
type Store interface {
	// Audits
	CreateAudit(ctx context.Context, a *models.Audit) error
	GetAudit(ctx context.Context, id string) (*models.Audit, error)
	ListAudits(ctx context.Context, userID string) ([]*models.Audit, error)
	UpdateAudit(ctx context.Context, a *models.Audit) error
	DeleteAudit(ctx context.Context, id string) error
	UpdateIssueStatus(ctx context.Context, auditID string, number int, status models.IssueStatus) (*models.Audit, error)

	// Sharing
	ShareAudit(ctx context.Context, id string) (string, error)
	UnshareAudit(ctx context.Context, id string) error
	GetSharedAudit(ctx context.Context, token string) (*models.Audit, error)

	// Profiles
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
