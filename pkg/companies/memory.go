// pkg/companies/memory.go
package companies

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memStore struct {
	log *zap.SugaredLogger

	mu           sync.RWMutex
	companies    map[string]Company
	users        map[string]User
	integrations map[string]Integration // key: company id
}

// NewMemoryStore returns an in-memory Store for dev and tests.
func NewMemoryStore(log *zap.SugaredLogger) Store {
	return &memStore{
		log:          log,
		companies:    map[string]Company{},
		users:        map[string]User{},
		integrations: map[string]Integration{},
	}
}

func (m *memStore) CreateCompany(ctx context.Context, c *Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.companies {
		if c.Domain != "" && existing.Domain == c.Domain {
			return ErrExists
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	m.companies[c.ID] = *c
	return nil
}

func (m *memStore) GetCompany(ctx context.Context, id string) (Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.companies[id]; ok {
		return c, nil
	}
	return Company{}, ErrNotFound
}

func (m *memStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = "user"
	}
	u.CreatedAt = time.Now().UTC()
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetUser(ctx context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memStore) ListCompanyUsers(ctx context.Context, companyID string) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []User
	for _, u := range m.users {
		if u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) AttachUserToCompany(ctx context.Context, userID, companyID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.CompanyID = companyID
	u.Role = role
	m.users[userID] = u
	return nil
}

func (m *memStore) RecordLogin(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	u.LastLogin = &now
	m.users[userID] = u
	return nil
}

func (m *memStore) UpsertIntegration(ctx context.Context, in Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.SyncStatus == "" {
		in.SyncStatus = SyncPending
	}
	if existing, ok := m.integrations[in.CompanyID]; ok {
		in.LastSync = existing.LastSync
	}
	in.LastError = ""
	in.UpdatedAt = time.Now().UTC()
	m.integrations[in.CompanyID] = in
	return nil
}

func (m *memStore) GetIntegration(ctx context.Context, companyID string) (Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if in, ok := m.integrations[companyID]; ok {
		return in, nil
	}
	return Integration{}, ErrNoIntegration
}

func (m *memStore) SetSyncStatus(ctx context.Context, companyID, status string, lastSync *time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.integrations[companyID]
	if !ok {
		return ErrNoIntegration
	}
	in.SyncStatus = status
	if lastSync != nil {
		in.LastSync = lastSync
	}
	in.LastError = lastError
	in.UpdatedAt = time.Now().UTC()
	m.integrations[companyID] = in
	return nil
}
