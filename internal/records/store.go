// internal/records/store.go
package records

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Metric is one application-metric sample reported by a user.
type Metric struct {
	ID        string         `json:"id"`
	CompanyID string         `json:"-"`
	UserID    string         `json:"user_id"`
	Name      string         `json:"metric_name"`
	Value     float64        `json:"metric_value"`
	Unit      string         `json:"metric_unit,omitempty"`
	Type      string         `json:"metric_type,omitempty"` // counter | gauge | histogram
	Tags      map[string]any `json:"tags,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Event is one system event / log line.
type Event struct {
	ID        string         `json:"id"`
	CompanyID string         `json:"-"`
	Type      string         `json:"event_type"`
	Level     string         `json:"event_level"` // debug | info | warning | error | critical
	Message   string         `json:"message"`
	Source    string         `json:"source,omitempty"`
	Data      map[string]any `json:"event_data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Preferences holds per-user dashboard settings.
type Preferences struct {
	UserID               string    `json:"-"`
	Theme                string    `json:"theme"`
	DashboardLayout      string    `json:"dashboard_layout"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	RefreshInterval      int       `json:"refresh_interval"` // seconds
	UpdatedAt            time.Time `json:"updated_at"`
}

// DefaultPreferences are applied when a user has no stored row yet.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:               userID,
		Theme:                "light",
		DashboardLayout:      "default",
		NotificationsEnabled: true,
		RefreshInterval:      30,
	}
}

// Store is the data-access contract for metrics, events and preferences.
type Store interface {
	InsertMetric(ctx context.Context, m *Metric) error
	ListMetrics(ctx context.Context, companyID string, limit int) ([]Metric, error)
	InsertEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, companyID string, limit int) ([]Event, error)
	GetPreferences(ctx context.Context, userID string) (Preferences, error)
	SavePreferences(ctx context.Context, p *Preferences) error
}
