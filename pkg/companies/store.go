package companies

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrExists        = errors.New("already exists")
	ErrNoIntegration = errors.New("integration not configured")
)

// Store is the data-access contract for companies, users and directory
// integrations. Backed by Postgres in production and memory in dev/tests.
type Store interface {
	CreateCompany(ctx context.Context, c *Company) error
	GetCompany(ctx context.Context, id string) (Company, error)

	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListCompanyUsers(ctx context.Context, companyID string) ([]User, error)
	AttachUserToCompany(ctx context.Context, userID, companyID, role string) error
	RecordLogin(ctx context.Context, userID string) error

	UpsertIntegration(ctx context.Context, in Integration) error
	GetIntegration(ctx context.Context, companyID string) (Integration, error)
	// SetSyncStatus records the outcome of a sync run. lastSync advances
	// only when non-nil; lastError replaces the stored message.
	SetSyncStatus(ctx context.Context, companyID, status string, lastSync *time.Time, lastError string) error
}
