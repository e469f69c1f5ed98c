// pkg/companies/postgres.go
package companies

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS companies (
  id uuid PRIMARY KEY,
  name text NOT NULL,
  domain text UNIQUE,
  industry text DEFAULT '',
  employee_count int DEFAULT 0,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS users (
  id uuid PRIMARY KEY,
  company_id uuid REFERENCES companies(id),
  username text UNIQUE NOT NULL,
  email text UNIQUE NOT NULL,
  password_hash text NOT NULL,
  first_name text DEFAULT '',
  last_name text DEFAULT '',
  role text NOT NULL DEFAULT 'user',
  is_admin boolean NOT NULL DEFAULT false,
  is_active boolean NOT NULL DEFAULT true,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  last_login timestamptz
);
CREATE TABLE IF NOT EXISTS entra_integrations (
  company_id uuid PRIMARY KEY REFERENCES companies(id) ON DELETE CASCADE,
  tenant_id text NOT NULL DEFAULT '',
  client_id text NOT NULL DEFAULT '',
  client_secret text NOT NULL DEFAULT '',
  sync_status text NOT NULL DEFAULT 'pending',
  last_sync timestamptz,
  last_error text NOT NULL DEFAULT '',
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

// SeedFromEnv ingests an initial company + admin user for dev bring-up.
// jsonSeed format (APPMON_SEED_JSON):
// [
//
//	{
//	  "company":"Acme","domain":"acme.com",
//	  "username":"admin","email":"admin@acme.com","password":"...",
//	  "tenant_id":"...","client_id":"...","client_secret":"..."
//	}
//
// ]
func SeedFromEnv(ctx context.Context, st Store, jsonSeed string) error {
	if jsonSeed == "" {
		return nil
	}
	var entries []struct {
		Company, Domain              string
		Username, Email, Password    string
		TenantID                     string `json:"tenant_id"`
		ClientID                     string `json:"client_id"`
		ClientSecret                 string `json:"client_secret"`
	}
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := st.GetUserByUsername(ctx, e.Username); err == nil {
			continue
		}
		c := Company{Name: e.Company, Domain: e.Domain}
		if err := st.CreateCompany(ctx, &c); err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(e.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u := User{
			CompanyID: c.ID, Username: e.Username, Email: e.Email,
			PasswordHash: string(hash), Role: "admin", IsAdmin: true, IsActive: true,
		}
		if err := st.CreateUser(ctx, &u); err != nil {
			return err
		}
		if e.TenantID != "" {
			in := Integration{
				CompanyID: c.ID, TenantID: e.TenantID,
				ClientID: e.ClientID, ClientSecret: e.ClientSecret,
				SyncStatus: SyncPending,
			}
			if err := st.UpsertIntegration(ctx, in); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *pgStore) CreateCompany(ctx context.Context, c *Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := p.dbPool.Exec(ctx, `INSERT INTO companies(id,name,domain,industry,employee_count,created_at)
	  VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.Name, c.Domain, c.Industry, c.EmployeeCount, c.CreatedAt)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

func (p *pgStore) GetCompany(ctx context.Context, id string) (Company, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT id,name,COALESCE(domain,''),industry,employee_count,created_at FROM companies WHERE id=$1`, id)
	var c Company
	if err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.Industry, &c.EmployeeCount, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrNotFound
		}
		return Company{}, err
	}
	return c, nil
}

func (p *pgStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	if u.Role == "" {
		u.Role = "user"
	}
	_, err := p.dbPool.Exec(ctx, `INSERT INTO users(id,company_id,username,email,password_hash,first_name,last_name,role,is_admin,is_active,created_at)
	  VALUES ($1,NULLIF($2,'')::uuid,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		u.ID, u.CompanyID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.IsAdmin, u.IsActive, u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

const userCols = `id,COALESCE(company_id::text,''),username,email,password_hash,first_name,last_name,role,is_admin,is_active,created_at,last_login`

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.CompanyID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.IsAdmin, &u.IsActive, &u.CreatedAt, &u.LastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (p *pgStore) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(p.dbPool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (p *pgStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(p.dbPool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username))
}

func (p *pgStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(p.dbPool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
}

func (p *pgStore) ListCompanyUsers(ctx context.Context, companyID string) ([]User, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT `+userCols+` FROM users WHERE company_id=$1 ORDER BY created_at`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *pgStore) AttachUserToCompany(ctx context.Context, userID, companyID, role string) error {
	tag, err := p.dbPool.Exec(ctx, `UPDATE users SET company_id=$1, role=$2 WHERE id=$3`, companyID, role, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgStore) RecordLogin(ctx context.Context, userID string) error {
	_, err := p.dbPool.Exec(ctx, `UPDATE users SET last_login=NOW() WHERE id=$1`, userID)
	return err
}

func (p *pgStore) UpsertIntegration(ctx context.Context, in Integration) error {
	if in.SyncStatus == "" {
		in.SyncStatus = SyncPending
	}
	_, err := p.dbPool.Exec(ctx, `INSERT INTO entra_integrations(company_id,tenant_id,client_id,client_secret,sync_status,updated_at)
	  VALUES ($1,$2,$3,$4,$5,NOW())
	  ON CONFLICT (company_id) DO UPDATE SET tenant_id=EXCLUDED.tenant_id,client_id=EXCLUDED.client_id,client_secret=EXCLUDED.client_secret,sync_status=EXCLUDED.sync_status,last_error='',updated_at=NOW()`,
		in.CompanyID, in.TenantID, in.ClientID, in.ClientSecret, in.SyncStatus)
	return err
}

func (p *pgStore) GetIntegration(ctx context.Context, companyID string) (Integration, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT company_id,tenant_id,client_id,client_secret,sync_status,last_sync,last_error,updated_at FROM entra_integrations WHERE company_id=$1`, companyID)
	var in Integration
	if err := row.Scan(&in.CompanyID, &in.TenantID, &in.ClientID, &in.ClientSecret, &in.SyncStatus, &in.LastSync, &in.LastError, &in.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Integration{}, ErrNoIntegration
		}
		return Integration{}, err
	}
	return in, nil
}

func (p *pgStore) SetSyncStatus(ctx context.Context, companyID, status string, lastSync *time.Time, lastError string) error {
	tag, err := p.dbPool.Exec(ctx, `UPDATE entra_integrations
	  SET sync_status=$1, last_sync=COALESCE($2,last_sync), last_error=$3, updated_at=NOW()
	  WHERE company_id=$4`, status, lastSync, lastError, companyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoIntegration
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
