// internal/inventory/postgres.go
package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed inventory store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the inventory table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS sso_applications (
  id uuid PRIMARY KEY,
  company_id uuid NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
  entra_app_id text NOT NULL,
  name text NOT NULL,
  app_type text NOT NULL DEFAULT 'web',
  is_active boolean NOT NULL DEFAULT true,
  last_activity timestamptz,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS sso_applications_company_app_idx ON sso_applications(company_id, entra_app_id);
`)
	return err
}

func (p *pgStore) Insert(ctx context.Context, app *Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.AppType == "" {
		app.AppType = "web"
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	_, err := p.dbPool.Exec(ctx, `INSERT INTO sso_applications(id,company_id,entra_app_id,name,app_type,is_active,last_activity,created_at,updated_at)
	  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		app.ID, app.CompanyID, app.EntraAppID, app.Name, app.AppType, app.IsActive, app.LastActivity, app.CreatedAt, app.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (p *pgStore) UpdateRemoteFields(ctx context.Context, companyID, entraAppID, name, appType string, isActive bool) error {
	// Zero rows affected just means nothing changed.
	_, err := p.dbPool.Exec(ctx, `UPDATE sso_applications
	  SET name=$1, app_type=$2, is_active=$3, updated_at=NOW()
	  WHERE company_id=$4 AND entra_app_id=$5 AND (name<>$1 OR app_type<>$2 OR is_active<>$3)`,
		name, appType, isActive, companyID, entraAppID)
	return err
}

func (p *pgStore) GetByEntraID(ctx context.Context, companyID, entraAppID string) (Application, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT id,company_id,entra_app_id,name,app_type,is_active,last_activity,created_at,updated_at
	  FROM sso_applications WHERE company_id=$1 AND entra_app_id=$2`, companyID, entraAppID)
	return scanApp(row)
}

func (p *pgStore) ListByCompany(ctx context.Context, companyID string) ([]Application, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT id,company_id,entra_app_id,name,app_type,is_active,last_activity,created_at,updated_at
	  FROM sso_applications WHERE company_id=$1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Application
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *pgStore) TouchActivity(ctx context.Context, companyID, entraAppID string, at time.Time) error {
	_, err := p.dbPool.Exec(ctx, `UPDATE sso_applications
	  SET last_activity=$1, updated_at=NOW()
	  WHERE company_id=$2 AND entra_app_id=$3 AND (last_activity IS NULL OR last_activity < $1)`,
		at.UTC(), companyID, entraAppID)
	return err
}

func scanApp(row pgx.Row) (Application, error) {
	var a Application
	if err := row.Scan(&a.ID, &a.CompanyID, &a.EntraAppID, &a.Name, &a.AppType, &a.IsActive, &a.LastActivity, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, err
	}
	return a, nil
}
