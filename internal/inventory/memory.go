// internal/inventory/memory.go
package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memStore struct {
	mu   sync.RWMutex
	apps map[string]Application // key: company id + "/" + entra app id
}

// NewMemoryStore returns an in-memory Store for dev and tests.
func NewMemoryStore() Store {
	return &memStore{apps: map[string]Application{}}
}

func key(companyID, entraAppID string) string { return companyID + "/" + entraAppID }

func (m *memStore) Insert(ctx context.Context, app *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(app.CompanyID, app.EntraAppID)
	if _, ok := m.apps[k]; ok {
		return ErrConflict
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.AppType == "" {
		app.AppType = "web"
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	m.apps[k] = *app
	return nil
}

func (m *memStore) UpdateRemoteFields(ctx context.Context, companyID, entraAppID, name, appType string, isActive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(companyID, entraAppID)
	a, ok := m.apps[k]
	if !ok {
		return ErrNotFound
	}
	if a.Name == name && a.AppType == appType && a.IsActive == isActive {
		return nil
	}
	a.Name = name
	a.AppType = appType
	a.IsActive = isActive
	a.UpdatedAt = time.Now().UTC()
	m.apps[k] = a
	return nil
}

func (m *memStore) GetByEntraID(ctx context.Context, companyID, entraAppID string) (Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.apps[key(companyID, entraAppID)]; ok {
		return a, nil
	}
	return Application{}, ErrNotFound
}

func (m *memStore) ListByCompany(ctx context.Context, companyID string) ([]Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Application
	for _, a := range m.apps {
		if a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) TouchActivity(ctx context.Context, companyID, entraAppID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(companyID, entraAppID)
	a, ok := m.apps[k]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	if a.LastActivity == nil || a.LastActivity.Before(at) {
		a.LastActivity = &at
		a.UpdatedAt = time.Now().UTC()
		m.apps[k] = a
	}
	return nil
}
