// internal/records/postgres.go
package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed records store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS app_metrics (
  id uuid PRIMARY KEY,
  company_id uuid REFERENCES companies(id) ON DELETE CASCADE,
  user_id uuid REFERENCES users(id),
  metric_name text NOT NULL,
  metric_value double precision NOT NULL,
  metric_unit text NOT NULL DEFAULT '',
  metric_type text NOT NULL DEFAULT 'gauge',
  tags jsonb,
  ts timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS app_metrics_company_ts_idx ON app_metrics(company_id, ts DESC);
CREATE TABLE IF NOT EXISTS system_events (
  id uuid PRIMARY KEY,
  company_id uuid REFERENCES companies(id) ON DELETE CASCADE,
  event_type text NOT NULL,
  event_level text NOT NULL DEFAULT 'info',
  message text NOT NULL,
  source text NOT NULL DEFAULT 'system',
  event_data jsonb,
  ts timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS system_events_company_ts_idx ON system_events(company_id, ts DESC);
CREATE TABLE IF NOT EXISTS user_preferences (
  user_id uuid PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
  theme text NOT NULL DEFAULT 'light',
  dashboard_layout text NOT NULL DEFAULT 'default',
  notifications_enabled boolean NOT NULL DEFAULT true,
  refresh_interval int NOT NULL DEFAULT 30,
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (p *pgStore) InsertMetric(ctx context.Context, m *Metric) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	_, err := p.dbPool.Exec(ctx, `INSERT INTO app_metrics(id,company_id,user_id,metric_name,metric_value,metric_unit,metric_type,tags,ts)
	  VALUES ($1,NULLIF($2,'')::uuid,NULLIF($3,'')::uuid,$4,$5,$6,COALESCE(NULLIF($7,''),'gauge'),$8,$9)`,
		m.ID, m.CompanyID, m.UserID, m.Name, m.Value, m.Unit, m.Type, m.Tags, m.Timestamp)
	return err
}

func (p *pgStore) ListMetrics(ctx context.Context, companyID string, limit int) ([]Metric, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT id,COALESCE(company_id::text,''),COALESCE(user_id::text,''),metric_name,metric_value,metric_unit,metric_type,tags,ts
	  FROM app_metrics WHERE company_id=$1 ORDER BY ts DESC LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.UserID, &m.Name, &m.Value, &m.Unit, &m.Type, &m.Tags, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *pgStore) InsertEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := p.dbPool.Exec(ctx, `INSERT INTO system_events(id,company_id,event_type,event_level,message,source,event_data,ts)
	  VALUES ($1,NULLIF($2,'')::uuid,$3,COALESCE(NULLIF($4,''),'info'),$5,COALESCE(NULLIF($6,''),'system'),$7,$8)`,
		e.ID, e.CompanyID, e.Type, e.Level, e.Message, e.Source, e.Data, e.Timestamp)
	return err
}

func (p *pgStore) ListEvents(ctx context.Context, companyID string, limit int) ([]Event, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT id,COALESCE(company_id::text,''),event_type,event_level,message,source,event_data,ts
	  FROM system_events WHERE company_id=$1 ORDER BY ts DESC LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Type, &e.Level, &e.Message, &e.Source, &e.Data, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *pgStore) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT user_id,theme,dashboard_layout,notifications_enabled,refresh_interval,updated_at
	  FROM user_preferences WHERE user_id=$1`, userID)
	var pr Preferences
	if err := row.Scan(&pr.UserID, &pr.Theme, &pr.DashboardLayout, &pr.NotificationsEnabled, &pr.RefreshInterval, &pr.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Preferences{}, ErrNotFound
		}
		return Preferences{}, err
	}
	return pr, nil
}

func (p *pgStore) SavePreferences(ctx context.Context, pr *Preferences) error {
	pr.UpdatedAt = time.Now().UTC()
	_, err := p.dbPool.Exec(ctx, `INSERT INTO user_preferences(user_id,theme,dashboard_layout,notifications_enabled,refresh_interval,updated_at)
	  VALUES ($1,$2,$3,$4,$5,$6)
	  ON CONFLICT (user_id) DO UPDATE SET theme=EXCLUDED.theme,dashboard_layout=EXCLUDED.dashboard_layout,notifications_enabled=EXCLUDED.notifications_enabled,refresh_interval=EXCLUDED.refresh_interval,updated_at=EXCLUDED.updated_at`,
		pr.UserID, pr.Theme, pr.DashboardLayout, pr.NotificationsEnabled, pr.RefreshInterval, pr.UpdatedAt)
	return err
}
