// internal/records/memory.go
package records

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memStore struct {
	mu      sync.RWMutex
	metrics []Metric
	events  []Event
	prefs   map[string]Preferences
}

// NewMemoryStore returns an in-memory Store for dev and tests.
func NewMemoryStore() Store {
	return &memStore{prefs: map[string]Preferences{}}
}

func (m *memStore) InsertMetric(ctx context.Context, mt *Metric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mt.ID == "" {
		mt.ID = uuid.NewString()
	}
	if mt.Timestamp.IsZero() {
		mt.Timestamp = time.Now().UTC()
	}
	if mt.Type == "" {
		mt.Type = "gauge"
	}
	m.metrics = append(m.metrics, *mt)
	return nil
}

func (m *memStore) ListMetrics(ctx context.Context, companyID string, limit int) ([]Metric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Metric
	// newest first
	for i := len(m.metrics) - 1; i >= 0 && len(out) < limit; i-- {
		if m.metrics[i].CompanyID == companyID {
			out = append(out, m.metrics[i])
		}
	}
	return out, nil
}

func (m *memStore) InsertEvent(ctx context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Level == "" {
		e.Level = "info"
	}
	if e.Source == "" {
		e.Source = "system"
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *memStore) ListEvents(ctx context.Context, companyID string, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Event
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].CompanyID == companyID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memStore) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.prefs[userID]; ok {
		return p, nil
	}
	return Preferences{}, ErrNotFound
}

func (m *memStore) SavePreferences(ctx context.Context, p *Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	m.prefs[p.UserID] = *p
	return nil
}
