// internal/inventory/store.go
package inventory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("application not found")
	// ErrConflict marks a uniqueness violation on (company, entra app id),
	// e.g. two concurrent syncs racing to insert the same application.
	// Retryable: re-running the sync resolves it.
	ErrConflict = errors.New("application already exists")
)

// Application is a locally tracked SSO application discovered from the
// directory. Exactly one row exists per (CompanyID, EntraAppID); sync
// never deletes rows.
type Application struct {
	ID           string     `json:"id"`
	CompanyID    string     `json:"company_id"`
	EntraAppID   string     `json:"entra_app_id"`
	Name         string     `json:"name"`
	AppType      string     `json:"app_type"`
	IsActive     bool       `json:"is_active"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Store is the application inventory contract.
type Store interface {
	// Insert creates a new application; ErrConflict when the
	// (company, entra app id) pair already exists.
	Insert(ctx context.Context, app *Application) error
	// UpdateRemoteFields refreshes the directory-owned fields of an
	// existing application.
	UpdateRemoteFields(ctx context.Context, companyID, entraAppID, name, appType string, isActive bool) error
	GetByEntraID(ctx context.Context, companyID, entraAppID string) (Application, error)
	ListByCompany(ctx context.Context, companyID string) ([]Application, error)
	// TouchActivity advances the last-activity timestamp (monotonic:
	// older instants are ignored).
	TouchActivity(ctx context.Context, companyID, entraAppID string, at time.Time) error
}
