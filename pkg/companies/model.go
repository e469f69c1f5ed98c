package companies

import "time"

// Sync status values for a company's directory integration.
const (
	SyncPending = "pending"
	SyncActive  = "active"
	SyncError   = "error"
)

// Company represents one customer organization / directory tenant.
type Company struct {
	ID            string // uuid
	Name          string
	Domain        string // primary email domain (acme.com)
	Industry      string
	EmployeeCount int
	CreatedAt     time.Time
}

// User is a dashboard login. Role is company-scoped ("admin" | "user");
// IsAdmin marks platform operators.
type User struct {
	ID           string // uuid
	CompanyID    string // empty until company setup completes
	Username     string
	Email        string
	PasswordHash string // bcrypt, never serialized
	FirstName    string
	LastName     string
	Role         string
	IsAdmin      bool
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Integration holds the Entra ID client-credentials configuration for a
// company plus the recorded outcome of the last sync. ClientSecret is
// sensitive and must never be logged or serialized.
type Integration struct {
	CompanyID    string
	TenantID     string
	ClientID     string
	ClientSecret string
	SyncStatus   string // pending | active | error
	LastSync     *time.Time
	LastError    string
	UpdatedAt    time.Time
}

// Configured reports whether the integration carries a complete credential set.
func (i Integration) Configured() bool {
	return i.TenantID != "" && i.ClientID != "" && i.ClientSecret != ""
}
